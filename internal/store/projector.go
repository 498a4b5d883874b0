package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/scrapline/auction-engine/internal/clock"
	"github.com/scrapline/auction-engine/internal/event"
)

// Projector folds the event stream into the query-side tables. It subscribes
// to the event bus, so projection runs off the bidding path: a failed or slow
// write here never delays a bid. The event store remains the source of truth;
// the projected rows can always be rebuilt from it.
type Projector struct {
	repos  *Repositories
	clock  clock.Clock
	logger *slog.Logger
	// Timeout bounds each projected write. Defaults to 5s.
	Timeout time.Duration
}

// NewProjector returns a Projector writing through repos.
func NewProjector(repos *Repositories, clk clock.Clock, logger *slog.Logger) *Projector {
	return &Projector{repos: repos, clock: clk, logger: logger, Timeout: 5 * time.Second}
}

// Subscribe attaches the projector to bus.
func (p *Projector) Subscribe(bus *event.Bus) {
	bus.Subscribe(p.handle)
}

func (p *Projector) handle(e event.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), p.Timeout)
	defer cancel()

	if err := p.Apply(ctx, e); err != nil {
		p.logger.ErrorContext(ctx, "failed to project event",
			slog.String("auction_id", e.AggregateID),
			slog.String("type", string(e.Type)),
			slog.Int("version", e.Version),
			slog.Any("error", err),
		)
	}
}

// Apply projects a single event into the read model. Exported so that a
// rebuild job can replay the whole event store through it.
func (p *Projector) Apply(ctx context.Context, e event.Event) error {
	switch e.Type {
	case event.AuctionCreated:
		return p.applyCreated(ctx, e)
	case event.BidAccepted:
		return p.applyBidAccepted(ctx, e)
	case event.AutoBidSet:
		return p.applyAutoBidSet(ctx, e)
	case event.AutoBidDeactivated:
		return p.applyAutoBidDeactivated(ctx, e)
	case event.AuctionExtended:
		return p.applyExtended(ctx, e)
	case event.AuctionEnded:
		return p.applyEnded(ctx, e)
	case event.AuctionCancelled:
		return p.applyCancelled(ctx, e)
	default:
		return nil
	}
}

func (p *Projector) applyCreated(ctx context.Context, e event.Event) error {
	var d event.AuctionCreatedData
	if err := json.Unmarshal(e.Data, &d); err != nil {
		return fmt.Errorf("unmarshalling created event: %w", err)
	}

	status := "upcoming"
	if !e.CreatedAt.Before(d.StartTime) {
		status = "live"
	}

	now := p.clock.Now().UTC()
	return p.repos.Auctions.Upsert(ctx, &AuctionRecord{
		ID:              e.AggregateID,
		Type:            d.AuctionType,
		SellerID:        d.SellerID,
		Status:          status,
		StartingPrice:   d.StartingPrice,
		CurrentPrice:    d.StartingPrice,
		ReservePrice:    d.ReservePrice,
		BuyItNowPrice:   d.BuyItNowPrice,
		IncrementAmount: d.IncrementAmount,
		StartTime:       d.StartTime,
		EndTime:         d.EndTime,
		CreatedAt:       now,
		UpdatedAt:       now,
	})
}

func (p *Projector) applyBidAccepted(ctx context.Context, e event.Event) error {
	var d event.BidAcceptedData
	if err := json.Unmarshal(e.Data, &d); err != nil {
		return fmt.Errorf("unmarshalling bid event: %w", err)
	}

	if err := p.repos.Bids.Insert(ctx, &BidRecord{
		ID:        d.BidID,
		AuctionID: e.AggregateID,
		BidderID:  d.BidderID,
		Amount:    d.Amount,
		PlacedAt:  d.PlacedAt,
		IsAutoBid: d.IsAutoBid,
	}); err != nil {
		return fmt.Errorf("inserting bid: %w", err)
	}
	if d.SupersededID != "" {
		if err := p.repos.Bids.MarkSuperseded(ctx, d.SupersededID, d.BidID); err != nil {
			return fmt.Errorf("marking superseded bid: %w", err)
		}
	}

	a, err := p.repos.Auctions.GetByID(ctx, e.AggregateID)
	if err != nil {
		return fmt.Errorf("loading auction record: %w", err)
	}
	a.TotalBids++
	a.Status = "live"
	// Sealed amounts stay hidden until the auction ends.
	if a.Type != "sealed" {
		a.CurrentPrice = d.Amount
		a.WinningBidderID = &d.BidderID
	}
	a.UpdatedAt = p.clock.Now().UTC()
	return p.repos.Auctions.Upsert(ctx, a)
}

func (p *Projector) applyAutoBidSet(ctx context.Context, e event.Event) error {
	var d event.AutoBidSetData
	if err := json.Unmarshal(e.Data, &d); err != nil {
		return fmt.Errorf("unmarshalling autobid event: %w", err)
	}
	return p.repos.AutoBids.Upsert(ctx, &AutoBidRecord{
		AuctionID:   e.AggregateID,
		BidderID:    d.BidderID,
		MaxAmount:   d.MaxAmount,
		Active:      true,
		CommittedAt: e.CreatedAt,
	})
}

func (p *Projector) applyAutoBidDeactivated(ctx context.Context, e event.Event) error {
	var d event.AutoBidDeactivatedData
	if err := json.Unmarshal(e.Data, &d); err != nil {
		return fmt.Errorf("unmarshalling autobid deactivation: %w", err)
	}
	return p.repos.AutoBids.Deactivate(ctx, e.AggregateID, d.BidderID)
}

func (p *Projector) applyExtended(ctx context.Context, e event.Event) error {
	var d event.AuctionExtendedData
	if err := json.Unmarshal(e.Data, &d); err != nil {
		return fmt.Errorf("unmarshalling extension event: %w", err)
	}
	a, err := p.repos.Auctions.GetByID(ctx, e.AggregateID)
	if err != nil {
		return fmt.Errorf("loading auction record: %w", err)
	}
	a.EndTime = d.NewEndTime
	a.UpdatedAt = p.clock.Now().UTC()
	return p.repos.Auctions.Upsert(ctx, a)
}

func (p *Projector) applyEnded(ctx context.Context, e event.Event) error {
	var d event.AuctionEndedData
	if err := json.Unmarshal(e.Data, &d); err != nil {
		return fmt.Errorf("unmarshalling ended event: %w", err)
	}
	a, err := p.repos.Auctions.GetByID(ctx, e.AggregateID)
	if err != nil {
		return fmt.Errorf("loading auction record: %w", err)
	}
	a.Status = "ended"
	a.Outcome = &d.Outcome
	a.CurrentPrice = d.FinalPrice
	if d.WinnerID != "" {
		a.WinningBidderID = &d.WinnerID
	}
	a.UpdatedAt = p.clock.Now().UTC()
	return p.repos.Auctions.Upsert(ctx, a)
}

func (p *Projector) applyCancelled(ctx context.Context, e event.Event) error {
	a, err := p.repos.Auctions.GetByID(ctx, e.AggregateID)
	if err != nil {
		return fmt.Errorf("loading auction record: %w", err)
	}
	a.Status = "cancelled"
	a.UpdatedAt = p.clock.Now().UTC()
	return p.repos.Auctions.Upsert(ctx, a)
}
