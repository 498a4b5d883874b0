package pgxstore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/scrapline/auction-engine/internal/clock"
	"github.com/scrapline/auction-engine/internal/store"
)

// WatchlistRepo implements store.WatchlistRepository using database/sql.
type WatchlistRepo struct {
	db    *sql.DB
	clock clock.Clock
}

// NewWatchlistRepo returns a new WatchlistRepo.
func NewWatchlistRepo(db *sql.DB, clk clock.Clock) *WatchlistRepo {
	return &WatchlistRepo{db: db, clock: clk}
}

func (r *WatchlistRepo) Add(ctx context.Context, auctionID, userID string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO watchlists (auction_id, user_id, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (auction_id, user_id) DO NOTHING`,
		auctionID, userID, r.clock.Now().UTC())
	if err != nil {
		return fmt.Errorf("adding watch: %w", err)
	}
	return nil
}

func (r *WatchlistRepo) Remove(ctx context.Context, auctionID, userID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM watchlists WHERE auction_id = $1 AND user_id = $2`, auctionID, userID)
	if err != nil {
		return fmt.Errorf("removing watch: %w", err)
	}
	return nil
}

func (r *WatchlistRepo) ListByUser(ctx context.Context, userID string) ([]store.WatchRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT auction_id, user_id, created_at
		 FROM watchlists WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("listing watches: %w", err)
	}
	defer rows.Close()

	var watches []store.WatchRecord
	for rows.Next() {
		var w store.WatchRecord
		if err := rows.Scan(&w.AuctionID, &w.UserID, &w.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning watch row: %w", err)
		}
		watches = append(watches, w)
	}
	return watches, rows.Err()
}

func (r *WatchlistRepo) CountByAuction(ctx context.Context, auctionID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM watchlists WHERE auction_id = $1`, auctionID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting watches: %w", err)
	}
	return count, nil
}
