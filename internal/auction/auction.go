package auction

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/scrapline/auction-engine/internal/event"
	"github.com/scrapline/auction-engine/internal/money"
)

// Errors returned by auction operations.
var (
	ErrNotFound      = errors.New("auction not found")
	ErrNotLive       = errors.New("auction is not accepting bids")
	ErrEnded         = errors.New("auction has ended")
	ErrBelowMinimum  = errors.New("bid is below the minimum")
	ErrSelfBid       = errors.New("you are already the highest bidder")
	ErrInvalidConfig = errors.New("invalid auction configuration")
	ErrWrongType     = errors.New("operation not valid for this auction type")
	ErrCannotCancel  = errors.New("auction can no longer be cancelled")
)

// Type is the auction format.
type Type string

const (
	TypeStandard Type = "standard"
	TypeDutch    Type = "dutch"
	TypeSealed   Type = "sealed"
	TypeBuyItNow Type = "buy_it_now"
)

// Status is the lifecycle state. Transitions are monotonic along
// upcoming → live → ending_soon → ended; cancelled is reachable from
// upcoming or live only.
type Status string

const (
	StatusUpcoming   Status = "upcoming"
	StatusLive       Status = "live"
	StatusEndingSoon Status = "ending_soon"
	StatusEnded      Status = "ended"
	StatusCancelled  Status = "cancelled"
)

// Outcome is the settlement result of an ended auction.
type Outcome string

const (
	OutcomeWon           Outcome = "won"
	OutcomeReserveNotMet Outcome = "reserve_not_met"
	OutcomeNoSale        Outcome = "no_sale"
)

// Bid is a single accepted bid. Immutable once appended to the ledger,
// except that a sealed bid may gain a SupersededBy back-reference when the
// same bidder replaces it before close.
type Bid struct {
	ID           string       `json:"id"`
	AuctionID    string       `json:"auction_id"`
	BidderID     string       `json:"bidder_id"`
	Amount       money.Amount `json:"amount"`
	PlacedAt     time.Time    `json:"placed_at"`
	IsAutoBid    bool         `json:"is_auto_bid"`
	SupersededBy string       `json:"superseded_by,omitempty"`

	seq int
}

// AutoBidCeiling is a bidder's standing proxy-bid maximum. At most one is
// active per (auction, bidder) pair.
type AutoBidCeiling struct {
	AuctionID   string       `json:"auction_id"`
	BidderID    string       `json:"bidder_id"`
	MaxAmount   money.Amount `json:"max_amount"`
	Active      bool         `json:"active"`
	CommittedAt time.Time    `json:"committed_at"`

	seq int
}

// Config holds the parameters for creating an auction.
type Config struct {
	Type            Type
	SellerID        string
	StartingPrice   money.Amount
	ReservePrice    *money.Amount
	BuyItNowPrice   *money.Amount
	IncrementAmount money.Amount

	// Dutch schedule: the price drops by DecrementAmount every
	// DecrementInterval, never below MinimumPrice.
	DecrementAmount   money.Amount
	DecrementInterval time.Duration
	MinimumPrice      money.Amount

	StartTime     time.Time
	EndTime       time.Time
	TimeExtension time.Duration

	// AllowSelfOutbid permits the current leader to raise their own bid.
	AllowSelfOutbid bool
}

func (c Config) validate() error {
	if c.SellerID == "" {
		return fmt.Errorf("%w: seller id is required", ErrInvalidConfig)
	}
	if !c.EndTime.After(c.StartTime) {
		return fmt.Errorf("%w: end time must be after start time", ErrInvalidConfig)
	}
	if c.ReservePrice != nil && c.ReservePrice.LessThan(c.StartingPrice) {
		return fmt.Errorf("%w: reserve price below starting price", ErrInvalidConfig)
	}
	switch c.Type {
	case TypeStandard:
		if c.IncrementAmount.IsZero() {
			return fmt.Errorf("%w: increment amount must be positive", ErrInvalidConfig)
		}
	case TypeBuyItNow:
		if c.BuyItNowPrice == nil {
			return fmt.Errorf("%w: buy-it-now price is required", ErrInvalidConfig)
		}
		if c.BuyItNowPrice.LessThan(c.StartingPrice) {
			return fmt.Errorf("%w: buy-it-now price below starting price", ErrInvalidConfig)
		}
		if c.IncrementAmount.IsZero() {
			return fmt.Errorf("%w: increment amount must be positive", ErrInvalidConfig)
		}
	case TypeDutch:
		if c.DecrementAmount.IsZero() || c.DecrementInterval <= 0 {
			return fmt.Errorf("%w: dutch auctions need a decrement amount and interval", ErrInvalidConfig)
		}
		if c.StartingPrice.LessThan(c.MinimumPrice) {
			return fmt.Errorf("%w: minimum price above starting price", ErrInvalidConfig)
		}
	case TypeSealed:
		// No extra constraints.
	default:
		return fmt.Errorf("%w: unknown auction type %q", ErrInvalidConfig, c.Type)
	}
	return nil
}

// Auction is the aggregate root for a single listing. All state for one
// auction (record, bid ledger, auto-bid ceilings, watchers) lives behind one
// mutex, so every operation is a single atomic transaction per auction.
type Auction struct {
	mu sync.Mutex
	// commitMu serializes draining pending events with their publication.
	commitMu sync.Mutex

	ID              string
	Type            Type
	SellerID        string
	StartingPrice   money.Amount
	ReservePrice    *money.Amount
	BuyItNowPrice   *money.Amount
	IncrementAmount money.Amount

	DecrementAmount   money.Amount
	DecrementInterval time.Duration
	MinimumPrice      money.Amount

	StartTime     time.Time
	EndTime       time.Time
	TimeExtension time.Duration

	AllowSelfOutbid bool

	Status          Status
	Outcome         Outcome
	CurrentPrice    money.Amount
	WinningBidderID string
	Version         int

	ledger     *Ledger
	ceilings   map[string]*AutoBidCeiling
	ceilingSeq int
	watchers   map[string]struct{}

	events []event.Event
}

// New creates an auction from cfg and records a created event. The auction
// opens immediately if its start time is not in the future.
func New(id string, cfg Config, now time.Time) (*Auction, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	a := &Auction{
		ID:                id,
		Type:              cfg.Type,
		SellerID:          cfg.SellerID,
		StartingPrice:     cfg.StartingPrice,
		ReservePrice:      cfg.ReservePrice,
		BuyItNowPrice:     cfg.BuyItNowPrice,
		IncrementAmount:   cfg.IncrementAmount,
		DecrementAmount:   cfg.DecrementAmount,
		DecrementInterval: cfg.DecrementInterval,
		MinimumPrice:      cfg.MinimumPrice,
		StartTime:         cfg.StartTime,
		EndTime:           cfg.EndTime,
		TimeExtension:     cfg.TimeExtension,
		AllowSelfOutbid:   cfg.AllowSelfOutbid,
		Status:            StatusUpcoming,
		CurrentPrice:      cfg.StartingPrice,
		ledger:            newLedger(),
		ceilings:          make(map[string]*AutoBidCeiling),
		watchers:          make(map[string]struct{}),
	}

	data, _ := json.Marshal(event.AuctionCreatedData{
		AuctionType:       string(cfg.Type),
		SellerID:          cfg.SellerID,
		StartingPrice:     cfg.StartingPrice,
		ReservePrice:      cfg.ReservePrice,
		BuyItNowPrice:     cfg.BuyItNowPrice,
		IncrementAmount:   cfg.IncrementAmount,
		DecrementAmount:   cfg.DecrementAmount,
		DecrementInterval: cfg.DecrementInterval,
		MinimumPrice:      cfg.MinimumPrice,
		StartTime:         cfg.StartTime,
		EndTime:           cfg.EndTime,
		TimeExtension:     cfg.TimeExtension,
		AllowSelfOutbid:   cfg.AllowSelfOutbid,
	})
	a.recordEvent(event.AuctionCreated, data, now)

	a.tick(now)
	return a, nil
}

// Snapshot is a caller-safe copy of the auction's visible state. The reserve
// price is deliberately absent: it is never exposed to bidders.
type Snapshot struct {
	ID              string        `json:"id"`
	Type            Type          `json:"type"`
	SellerID        string        `json:"seller_id"`
	StartingPrice   money.Amount  `json:"starting_price"`
	BuyItNowPrice   *money.Amount `json:"buy_it_now_price,omitempty"`
	IncrementAmount money.Amount  `json:"increment_amount"`
	CurrentPrice    money.Amount  `json:"current_price"`
	Status          Status        `json:"status"`
	Outcome         Outcome       `json:"outcome,omitempty"`
	StartTime       time.Time     `json:"start_time"`
	EndTime         time.Time     `json:"end_time"`
	TimeExtension   time.Duration `json:"time_extension"`
	TotalBids       int           `json:"total_bids"`
	WinningBidderID string        `json:"winning_bidder_id,omitempty"`
	Watchers        int           `json:"watchers"`
}

// Snapshot returns a copy of the auction's visible state. Thread-safe.
func (a *Auction) Snapshot() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.snapshot()
}

func (a *Auction) snapshot() Snapshot {
	return Snapshot{
		ID:              a.ID,
		Type:            a.Type,
		SellerID:        a.SellerID,
		StartingPrice:   a.StartingPrice,
		BuyItNowPrice:   a.BuyItNowPrice,
		IncrementAmount: a.IncrementAmount,
		CurrentPrice:    a.CurrentPrice,
		Status:          a.Status,
		Outcome:         a.Outcome,
		StartTime:       a.StartTime,
		EndTime:         a.EndTime,
		TimeExtension:   a.TimeExtension,
		TotalBids:       a.ledger.Len(),
		WinningBidderID: a.WinningBidderID,
		Watchers:        len(a.watchers),
	}
}

// History returns the accepted bids in ledger order. The returned slice is a
// copy; previously returned entries never change across calls.
func (a *Auction) History() []Bid {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.ledger.History()
}

// Ceiling returns the bidder's auto-bid ceiling, if any. Thread-safe.
func (a *Auction) Ceiling(bidderID string) (AutoBidCeiling, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	c, ok := a.ceilings[bidderID]
	if !ok {
		return AutoBidCeiling{}, false
	}
	return *c, true
}

// Watch adds userID to the auction's watch list.
func (a *Auction) Watch(userID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.watchers[userID] = struct{}{}
}

// Unwatch removes userID from the auction's watch list.
func (a *Auction) Unwatch(userID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.watchers, userID)
}

// IsWatching reports whether userID watches the auction.
func (a *Auction) IsWatching(userID string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.watchers[userID]
	return ok
}

// Cancel cancels the auction. Only upcoming and live auctions can be
// cancelled; once the closing window starts the auction must run to its end.
func (a *Auction) Cancel(cancelledBy string, now time.Time) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.tick(now)

	switch a.Status {
	case StatusUpcoming, StatusLive:
		// cancellable
	case StatusEnded, StatusCancelled:
		return ErrEnded
	default:
		return ErrCannotCancel
	}

	a.Status = StatusCancelled
	data, _ := json.Marshal(event.AuctionCancelledData{CancelledBy: cancelledBy})
	a.recordEvent(event.AuctionCancelled, data, now)
	return nil
}

// PendingEvents returns uncommitted events and clears the buffer.
func (a *Auction) PendingEvents() []event.Event {
	a.mu.Lock()
	defer a.mu.Unlock()
	events := a.events
	a.events = nil
	return events
}

func (a *Auction) recordEvent(t event.Type, data json.RawMessage, now time.Time) {
	a.Version++
	a.events = append(a.events, event.Event{
		AggregateID: a.ID,
		Type:        t,
		Data:        data,
		Version:     a.Version,
		CreatedAt:   now.UTC(),
	})
}
