package store

import (
	"context"
	"time"

	"github.com/scrapline/auction-engine/internal/money"
)

// AuctionRecord is the query-side row for one auction. It is derived from
// the event stream by the Projector and serves reads that must not touch the
// live aggregates (search pages, seller dashboards, settlement reports).
type AuctionRecord struct {
	ID              string        `db:"id"`
	Type            string        `db:"type"`
	SellerID        string        `db:"seller_id"`
	Status          string        `db:"status"`
	Outcome         *string       `db:"outcome"`
	StartingPrice   money.Amount  `db:"starting_price"`
	CurrentPrice    money.Amount  `db:"current_price"`
	ReservePrice    *money.Amount `db:"reserve_price"`
	BuyItNowPrice   *money.Amount `db:"buy_it_now_price"`
	IncrementAmount money.Amount  `db:"increment_amount"`
	StartTime       time.Time     `db:"start_time"`
	EndTime         time.Time     `db:"end_time"`
	WinningBidderID *string       `db:"winning_bidder_id"`
	TotalBids       int           `db:"total_bids"`
	CreatedAt       time.Time     `db:"created_at"`
	UpdatedAt       time.Time     `db:"updated_at"`
}

// BidRecord is the query-side row for one accepted bid.
type BidRecord struct {
	ID           string       `db:"id"`
	AuctionID    string       `db:"auction_id"`
	BidderID     string       `db:"bidder_id"`
	Amount       money.Amount `db:"amount"`
	PlacedAt     time.Time    `db:"placed_at"`
	IsAutoBid    bool         `db:"is_auto_bid"`
	SupersededBy *string      `db:"superseded_by"`
}

// AutoBidRecord is the query-side row for a proxy-bid ceiling.
type AutoBidRecord struct {
	AuctionID   string       `db:"auction_id"`
	BidderID    string       `db:"bidder_id"`
	MaxAmount   money.Amount `db:"max_amount"`
	Active      bool         `db:"active"`
	CommittedAt time.Time    `db:"committed_at"`
}

// WatchRecord links a user to an auction they follow.
type WatchRecord struct {
	AuctionID string    `db:"auction_id"`
	UserID    string    `db:"user_id"`
	CreatedAt time.Time `db:"created_at"`
}

// AuctionRepository defines auction read-model persistence operations.
type AuctionRepository interface {
	Upsert(ctx context.Context, a *AuctionRecord) error
	GetByID(ctx context.Context, id string) (*AuctionRecord, error)
	ListByStatus(ctx context.Context, status string) ([]AuctionRecord, error)
	ListBySeller(ctx context.Context, sellerID string) ([]AuctionRecord, error)
}

// BidRepository defines bid read-model persistence operations.
type BidRepository interface {
	Insert(ctx context.Context, b *BidRecord) error
	MarkSuperseded(ctx context.Context, bidID, supersededBy string) error
	ListByAuction(ctx context.Context, auctionID string) ([]BidRecord, error)
	ListByBidder(ctx context.Context, bidderID string) ([]BidRecord, error)
}

// AutoBidRepository defines auto-bid ceiling persistence operations.
type AutoBidRepository interface {
	Upsert(ctx context.Context, a *AutoBidRecord) error
	Deactivate(ctx context.Context, auctionID, bidderID string) error
	ListActive(ctx context.Context, auctionID string) ([]AutoBidRecord, error)
}

// WatchlistRepository defines watch-list persistence operations.
type WatchlistRepository interface {
	Add(ctx context.Context, auctionID, userID string) error
	Remove(ctx context.Context, auctionID, userID string) error
	ListByUser(ctx context.Context, userID string) ([]WatchRecord, error)
	CountByAuction(ctx context.Context, auctionID string) (int, error)
}
