package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/scrapline/auction-engine/internal/store"
)

// AutoBidRepo implements store.AutoBidRepository with sqlx.
type AutoBidRepo struct {
	db *sqlx.DB
}

// NewAutoBidRepo returns a new AutoBidRepo.
func NewAutoBidRepo(db *sqlx.DB) *AutoBidRepo {
	return &AutoBidRepo{db: db}
}

func (r *AutoBidRepo) Upsert(ctx context.Context, a *store.AutoBidRecord) error {
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO auto_bids (auction_id, bidder_id, max_amount, active, committed_at)
		VALUES (:auction_id, :bidder_id, :max_amount, :active, :committed_at)
		ON CONFLICT (auction_id, bidder_id) DO UPDATE SET
		    max_amount   = EXCLUDED.max_amount,
		    active       = EXCLUDED.active,
		    committed_at = EXCLUDED.committed_at`,
		a,
	)
	if err != nil {
		return fmt.Errorf("upserting auto-bid: %w", err)
	}
	return nil
}

func (r *AutoBidRepo) Deactivate(ctx context.Context, auctionID, bidderID string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE auto_bids SET active = FALSE WHERE auction_id = $1 AND bidder_id = $2`,
		auctionID, bidderID)
	if err != nil {
		return fmt.Errorf("deactivating auto-bid: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("auto-bid for %s by %s not found", auctionID, bidderID)
	}
	return nil
}

func (r *AutoBidRepo) ListActive(ctx context.Context, auctionID string) ([]store.AutoBidRecord, error) {
	var ceilings []store.AutoBidRecord
	err := r.db.SelectContext(ctx, &ceilings,
		`SELECT * FROM auto_bids WHERE auction_id = $1 AND active ORDER BY committed_at ASC`,
		auctionID)
	if err != nil {
		return nil, fmt.Errorf("listing active auto-bids: %w", err)
	}
	return ceilings, nil
}
