package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/scrapline/auction-engine/internal/clock"
	"github.com/scrapline/auction-engine/internal/store"
)

// AuctionRepo implements store.AuctionRepository with sqlx.
type AuctionRepo struct {
	db    *sqlx.DB
	clock clock.Clock
}

// NewAuctionRepo returns a new AuctionRepo.
func NewAuctionRepo(db *sqlx.DB, clk clock.Clock) *AuctionRepo {
	return &AuctionRepo{db: db, clock: clk}
}

func (r *AuctionRepo) Upsert(ctx context.Context, a *store.AuctionRecord) error {
	a.UpdatedAt = r.clock.Now().UTC()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = a.UpdatedAt
	}
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO auctions (id, type, seller_id, status, outcome, starting_price, current_price,
		                      reserve_price, buy_it_now_price, increment_amount, start_time, end_time,
		                      winning_bidder_id, total_bids, created_at, updated_at)
		VALUES (:id, :type, :seller_id, :status, :outcome, :starting_price, :current_price,
		        :reserve_price, :buy_it_now_price, :increment_amount, :start_time, :end_time,
		        :winning_bidder_id, :total_bids, :created_at, :updated_at)
		ON CONFLICT (id) DO UPDATE SET
		    status            = EXCLUDED.status,
		    outcome           = EXCLUDED.outcome,
		    current_price     = EXCLUDED.current_price,
		    end_time          = EXCLUDED.end_time,
		    winning_bidder_id = EXCLUDED.winning_bidder_id,
		    total_bids        = EXCLUDED.total_bids,
		    updated_at        = EXCLUDED.updated_at`,
		a,
	)
	if err != nil {
		return fmt.Errorf("upserting auction: %w", err)
	}
	return nil
}

func (r *AuctionRepo) GetByID(ctx context.Context, id string) (*store.AuctionRecord, error) {
	var a store.AuctionRecord
	err := r.db.GetContext(ctx, &a, `SELECT * FROM auctions WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("auction %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("getting auction: %w", err)
	}
	return &a, nil
}

func (r *AuctionRepo) ListByStatus(ctx context.Context, status string) ([]store.AuctionRecord, error) {
	var auctions []store.AuctionRecord
	err := r.db.SelectContext(ctx, &auctions,
		`SELECT * FROM auctions WHERE status = $1 ORDER BY end_time ASC`, status)
	if err != nil {
		return nil, fmt.Errorf("listing auctions by status: %w", err)
	}
	return auctions, nil
}

func (r *AuctionRepo) ListBySeller(ctx context.Context, sellerID string) ([]store.AuctionRecord, error) {
	var auctions []store.AuctionRecord
	err := r.db.SelectContext(ctx, &auctions,
		`SELECT * FROM auctions WHERE seller_id = $1 ORDER BY created_at DESC`, sellerID)
	if err != nil {
		return nil, fmt.Errorf("listing auctions by seller: %w", err)
	}
	return auctions, nil
}
