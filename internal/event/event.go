package event

import (
	"encoding/json"
	"time"

	"github.com/scrapline/auction-engine/internal/money"
)

// Type identifies an event kind.
type Type string

const (
	AuctionCreated     Type = "auction.created"
	BidAccepted        Type = "auction.bid_accepted"
	AutoBidSet         Type = "auction.autobid_set"
	AutoBidDeactivated Type = "auction.autobid_deactivated"
	AuctionExtended    Type = "auction.extended"
	AuctionEnded       Type = "auction.ended"
	AuctionCancelled   Type = "auction.cancelled"
)

// Event represents a single domain event.
type Event struct {
	ID          string          `json:"id" db:"id"`
	AggregateID string          `json:"aggregate_id" db:"aggregate_id"`
	Type        Type            `json:"type" db:"type"`
	Data        json.RawMessage `json:"data" db:"data"`
	Version     int             `json:"version" db:"version"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
}

// AuctionCreatedData is the payload for AuctionCreated events.
type AuctionCreatedData struct {
	AuctionType       string        `json:"auction_type"`
	SellerID          string        `json:"seller_id"`
	StartingPrice     money.Amount  `json:"starting_price"`
	ReservePrice      *money.Amount `json:"reserve_price,omitempty"`
	BuyItNowPrice     *money.Amount `json:"buy_it_now_price,omitempty"`
	IncrementAmount   money.Amount  `json:"increment_amount"`
	DecrementAmount   money.Amount  `json:"decrement_amount,omitempty"`
	DecrementInterval time.Duration `json:"decrement_interval,omitempty"`
	MinimumPrice      money.Amount  `json:"minimum_price,omitempty"`
	StartTime         time.Time     `json:"start_time"`
	EndTime           time.Time     `json:"end_time"`
	TimeExtension     time.Duration `json:"time_extension"`
	AllowSelfOutbid   bool          `json:"allow_self_outbid,omitempty"`
}

// BidAcceptedData is the payload for BidAccepted events.
type BidAcceptedData struct {
	BidID        string       `json:"bid_id"`
	BidderID     string       `json:"bidder_id"`
	Amount       money.Amount `json:"amount"`
	PlacedAt     time.Time    `json:"placed_at"`
	IsAutoBid    bool         `json:"is_auto_bid"`
	SupersededID string       `json:"superseded_id,omitempty"`
}

// AutoBidSetData is the payload for AutoBidSet events.
type AutoBidSetData struct {
	BidderID  string       `json:"bidder_id"`
	MaxAmount money.Amount `json:"max_amount"`
}

// AutoBidDeactivatedData is the payload for AutoBidDeactivated events.
type AutoBidDeactivatedData struct {
	BidderID string `json:"bidder_id"`
	Reason   string `json:"reason"`
}

// AuctionExtendedData is the payload for AuctionExtended events.
type AuctionExtendedData struct {
	NewEndTime time.Time `json:"new_end_time"`
	BidID      string    `json:"bid_id"`
}

// AuctionEndedData is the payload for AuctionEnded events.
type AuctionEndedData struct {
	Outcome    string       `json:"outcome"`
	WinnerID   string       `json:"winner_id,omitempty"`
	FinalPrice money.Amount `json:"final_price"`
}

// AuctionCancelledData is the payload for AuctionCancelled events.
type AuctionCancelledData struct {
	CancelledBy string `json:"cancelled_by"`
}
