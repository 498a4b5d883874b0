package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/scrapline/auction-engine/internal/store"
)

// BidRepo implements store.BidRepository with sqlx.
type BidRepo struct {
	db *sqlx.DB
}

// NewBidRepo returns a new BidRepo.
func NewBidRepo(db *sqlx.DB) *BidRepo {
	return &BidRepo{db: db}
}

func (r *BidRepo) Insert(ctx context.Context, b *store.BidRecord) error {
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO bids (id, auction_id, bidder_id, amount, placed_at, is_auto_bid, superseded_by)
		VALUES (:id, :auction_id, :bidder_id, :amount, :placed_at, :is_auto_bid, :superseded_by)`,
		b,
	)
	if err != nil {
		return fmt.Errorf("inserting bid: %w", err)
	}
	return nil
}

func (r *BidRepo) MarkSuperseded(ctx context.Context, bidID, supersededBy string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE bids SET superseded_by = $1 WHERE id = $2`, supersededBy, bidID)
	if err != nil {
		return fmt.Errorf("marking bid superseded: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("bid %s not found", bidID)
	}
	return nil
}

func (r *BidRepo) ListByAuction(ctx context.Context, auctionID string) ([]store.BidRecord, error) {
	var bids []store.BidRecord
	err := r.db.SelectContext(ctx, &bids,
		`SELECT * FROM bids WHERE auction_id = $1 ORDER BY placed_at ASC, id ASC`, auctionID)
	if err != nil {
		return nil, fmt.Errorf("listing bids by auction: %w", err)
	}
	return bids, nil
}

func (r *BidRepo) ListByBidder(ctx context.Context, bidderID string) ([]store.BidRecord, error) {
	var bids []store.BidRecord
	err := r.db.SelectContext(ctx, &bids,
		`SELECT * FROM bids WHERE bidder_id = $1 ORDER BY placed_at DESC`, bidderID)
	if err != nil {
		return nil, fmt.Errorf("listing bids by bidder: %w", err)
	}
	return bids, nil
}
