package pgxstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/scrapline/auction-engine/internal/clock"
	"github.com/scrapline/auction-engine/internal/store"
)

// AuctionRepo implements store.AuctionRepository using database/sql.
type AuctionRepo struct {
	db    *sql.DB
	clock clock.Clock
}

// NewAuctionRepo returns a new AuctionRepo.
func NewAuctionRepo(db *sql.DB, clk clock.Clock) *AuctionRepo {
	return &AuctionRepo{db: db, clock: clk}
}

const auctionColumns = `id, type, seller_id, status, outcome, starting_price, current_price,
	reserve_price, buy_it_now_price, increment_amount, start_time, end_time,
	winning_bidder_id, total_bids, created_at, updated_at`

func scanAuction(row interface{ Scan(...any) error }, a *store.AuctionRecord) error {
	return row.Scan(&a.ID, &a.Type, &a.SellerID, &a.Status, &a.Outcome,
		&a.StartingPrice, &a.CurrentPrice, &a.ReservePrice, &a.BuyItNowPrice,
		&a.IncrementAmount, &a.StartTime, &a.EndTime, &a.WinningBidderID,
		&a.TotalBids, &a.CreatedAt, &a.UpdatedAt)
}

func (r *AuctionRepo) Upsert(ctx context.Context, a *store.AuctionRecord) error {
	a.UpdatedAt = r.clock.Now().UTC()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = a.UpdatedAt
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO auctions (`+auctionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT (id) DO UPDATE SET
		    status            = EXCLUDED.status,
		    outcome           = EXCLUDED.outcome,
		    current_price     = EXCLUDED.current_price,
		    end_time          = EXCLUDED.end_time,
		    winning_bidder_id = EXCLUDED.winning_bidder_id,
		    total_bids        = EXCLUDED.total_bids,
		    updated_at        = EXCLUDED.updated_at`,
		a.ID, a.Type, a.SellerID, a.Status, a.Outcome, a.StartingPrice, a.CurrentPrice,
		a.ReservePrice, a.BuyItNowPrice, a.IncrementAmount, a.StartTime, a.EndTime,
		a.WinningBidderID, a.TotalBids, a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upserting auction: %w", err)
	}
	return nil
}

func (r *AuctionRepo) GetByID(ctx context.Context, id string) (*store.AuctionRecord, error) {
	a := &store.AuctionRecord{}
	err := scanAuction(r.db.QueryRowContext(ctx,
		`SELECT `+auctionColumns+` FROM auctions WHERE id = $1`, id), a)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("auction %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("getting auction: %w", err)
	}
	return a, nil
}

func (r *AuctionRepo) ListByStatus(ctx context.Context, status string) ([]store.AuctionRecord, error) {
	return r.list(ctx,
		`SELECT `+auctionColumns+` FROM auctions WHERE status = $1 ORDER BY end_time ASC`, status)
}

func (r *AuctionRepo) ListBySeller(ctx context.Context, sellerID string) ([]store.AuctionRecord, error) {
	return r.list(ctx,
		`SELECT `+auctionColumns+` FROM auctions WHERE seller_id = $1 ORDER BY created_at DESC`, sellerID)
}

func (r *AuctionRepo) list(ctx context.Context, query string, args ...any) ([]store.AuctionRecord, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing auctions: %w", err)
	}
	defer rows.Close()

	var auctions []store.AuctionRecord
	for rows.Next() {
		var a store.AuctionRecord
		if err := scanAuction(rows, &a); err != nil {
			return nil, fmt.Errorf("scanning auction row: %w", err)
		}
		auctions = append(auctions, a)
	}
	return auctions, rows.Err()
}
