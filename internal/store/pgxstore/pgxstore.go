// Package pgxstore provides the "pgx" store driver: the same Postgres schema
// as the sqlx driver, accessed through jackc/pgx's database/sql adapter with
// OTEL instrumentation via otelsql.
package pgxstore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/XSAM/otelsql"
	_ "github.com/jackc/pgx/v5/stdlib" // pgx database/sql driver
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/scrapline/auction-engine/internal/clock"
	"github.com/scrapline/auction-engine/internal/config"
	"github.com/scrapline/auction-engine/internal/store"
)

// closerFunc adapts a func() error into an io.Closer.
type closerFunc func() error

func (f closerFunc) Close() error { return f() }

func init() {
	store.Register("pgx", openPgx)
}

// openPgx is the store.Driver for the "pgx" backend. The schema is managed
// by the sqlx driver's migrations; this driver expects it to exist.
func openPgx(ctx context.Context, cfg config.DatabaseConfig, clk clock.Clock) (*store.Repositories, error) {
	db, err := Connect(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &store.Repositories{
		Auctions:   NewAuctionRepo(db, clk),
		Bids:       NewBidRepo(db),
		AutoBids:   NewAutoBidRepo(db),
		Watchlists: NewWatchlistRepo(db, clk),
		Events:     NewEventStore(db),
		Closer:     closerFunc(db.Close),
		Ping:       db.PingContext,
	}, nil
}

// Connect opens and verifies a Postgres connection via pgx's database/sql
// adapter with OTEL instrumentation.
func Connect(ctx context.Context, cfg config.DatabaseConfig) (*sql.DB, error) {
	dsn := cfg.DSN()

	db, err := otelsql.Open("pgx", dsn,
		otelsql.WithAttributes(semconv.DBSystemPostgreSQL),
	)
	if err != nil {
		return nil, fmt.Errorf("opening pgx database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging pgx database: %w", err)
	}

	return db, nil
}
