package pgxstore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/scrapline/auction-engine/internal/store"
)

// BidRepo implements store.BidRepository using database/sql.
type BidRepo struct {
	db *sql.DB
}

// NewBidRepo returns a new BidRepo.
func NewBidRepo(db *sql.DB) *BidRepo {
	return &BidRepo{db: db}
}

const bidColumns = `id, auction_id, bidder_id, amount, placed_at, is_auto_bid, superseded_by`

func (r *BidRepo) Insert(ctx context.Context, b *store.BidRecord) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO bids (`+bidColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		b.ID, b.AuctionID, b.BidderID, b.Amount, b.PlacedAt, b.IsAutoBid, b.SupersededBy,
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
	return r.list(ctx,
		`SELECT `+bidColumns+` FROM bids WHERE auction_id = $1 ORDER BY placed_at ASC, id ASC`, auctionID)
}

func (r *BidRepo) ListByBidder(ctx context.Context, bidderID string) ([]store.BidRecord, error) {
	return r.list(ctx,
		`SELECT `+bidColumns+` FROM bids WHERE bidder_id = $1 ORDER BY placed_at DESC`, bidderID)
}

func (r *BidRepo) list(ctx context.Context, query string, args ...any) ([]store.BidRecord, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing bids: %w", err)
	}
	defer rows.Close()

	var bids []store.BidRecord
	for rows.Next() {
		var b store.BidRecord
		if err := rows.Scan(&b.ID, &b.AuctionID, &b.BidderID, &b.Amount, &b.PlacedAt,
			&b.IsAutoBid, &b.SupersededBy); err != nil {
			return nil, fmt.Errorf("scanning bid row: %w", err)
		}
		bids = append(bids, b)
	}
	return bids, rows.Err()
}
