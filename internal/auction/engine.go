package auction

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/scrapline/auction-engine/internal/clock"
	"github.com/scrapline/auction-engine/internal/event"
	"github.com/scrapline/auction-engine/internal/money"
)

// Policy holds engine-wide bidding defaults.
type Policy struct {
	// DefaultIncrement applies when a listing is created without one.
	DefaultIncrement money.Amount
	// DefaultExtension is the anti-sniping window for listings created
	// without one.
	DefaultExtension time.Duration
	// AllowSelfOutbid lets the current leader raise their own bid.
	AllowSelfOutbid bool
}

// Engine coordinates auction lifecycle and concurrency. Each auction is its
// own unit of mutual exclusion; operations on different auctions run in
// parallel. After every committed transaction the pending events are
// persisted to the event store and published to the bus, fire-and-forget.
type Engine struct {
	mu       sync.RWMutex
	auctions map[string]*Auction

	events event.Store
	bus    *event.Bus
	logger *slog.Logger
	tracer trace.Tracer
	clock  clock.Clock
	policy Policy
}

// NewEngine creates an auction Engine.
func NewEngine(events event.Store, bus *event.Bus, logger *slog.Logger, tp trace.TracerProvider, clk clock.Clock, policy Policy) *Engine {
	return &Engine{
		auctions: make(map[string]*Auction),
		events:   events,
		bus:      bus,
		logger:   logger,
		tracer:   tp.Tracer("github.com/scrapline/auction-engine/internal/auction"),
		clock:    clk,
		policy:   policy,
	}
}

// CreateAuction creates and tracks a new listing.
func (e *Engine) CreateAuction(ctx context.Context, cfg Config) (Snapshot, error) {
	ctx, span := e.tracer.Start(ctx, "Engine.CreateAuction",
		trace.WithAttributes(
			attribute.String("auction.type", string(cfg.Type)),
			attribute.String("seller.id", cfg.SellerID),
		),
	)
	defer span.End()

	if cfg.IncrementAmount.IsZero() {
		cfg.IncrementAmount = e.policy.DefaultIncrement
	}
	if cfg.TimeExtension == 0 {
		cfg.TimeExtension = e.policy.DefaultExtension
	}
	cfg.AllowSelfOutbid = e.policy.AllowSelfOutbid

	id := uuid.NewString()
	a, err := New(id, cfg, e.clock.Now())
	if err != nil {
		return Snapshot{}, err
	}

	e.mu.Lock()
	e.auctions[id] = a
	e.mu.Unlock()

	e.commit(ctx, a)

	e.logger.InfoContext(ctx, "auction created",
		slog.String("auction_id", id),
		slog.String("type", string(cfg.Type)),
		slog.String("seller_id", cfg.SellerID),
	)
	return a.Snapshot(), nil
}

// PlaceBid places a bid on an active auction.
func (e *Engine) PlaceBid(ctx context.Context, auctionID, bidderID string, amount money.Amount) (Snapshot, error) {
	ctx, span := e.tracer.Start(ctx, "Engine.PlaceBid",
		trace.WithAttributes(
			attribute.String("auction_id", auctionID),
			attribute.String("bidder_id", bidderID),
			attribute.String("amount", amount.String()),
		),
	)
	defer span.End()

	a, err := e.get(auctionID)
	if err != nil {
		return Snapshot{}, err
	}

	snap, err := a.PlaceBid(ctx, bidderID, amount, e.clock.Now())
	if err != nil {
		// Ticking may have moved the lifecycle even on a rejected bid.
		e.commit(ctx, a)
		return Snapshot{}, err
	}

	e.commit(ctx, a)
	return snap, nil
}

// SetAutoBid upserts a proxy-bid ceiling and resolves it immediately.
func (e *Engine) SetAutoBid(ctx context.Context, auctionID, bidderID string, max money.Amount) (Snapshot, error) {
	ctx, span := e.tracer.Start(ctx, "Engine.SetAutoBid",
		trace.WithAttributes(
			attribute.String("auction_id", auctionID),
			attribute.String("bidder_id", bidderID),
			attribute.String("max", max.String()),
		),
	)
	defer span.End()

	a, err := e.get(auctionID)
	if err != nil {
		return Snapshot{}, err
	}

	snap, err := a.SetAutoBid(ctx, bidderID, max, e.clock.Now())
	if err != nil {
		e.commit(ctx, a)
		return Snapshot{}, err
	}

	e.commit(ctx, a)
	return snap, nil
}

// CancelAutoBid deactivates the bidder's ceiling on an auction.
func (e *Engine) CancelAutoBid(ctx context.Context, auctionID, bidderID string) error {
	a, err := e.get(auctionID)
	if err != nil {
		return err
	}
	if err := a.CancelAutoBid(ctx, bidderID, e.clock.Now()); err != nil {
		return err
	}
	e.commit(ctx, a)
	return nil
}

// BuyItNow closes a buy_it_now auction at its fixed price. Exactly one
// concurrent caller succeeds; the rest are rejected against the ended state.
func (e *Engine) BuyItNow(ctx context.Context, auctionID, bidderID string) (Snapshot, error) {
	ctx, span := e.tracer.Start(ctx, "Engine.BuyItNow",
		trace.WithAttributes(
			attribute.String("auction_id", auctionID),
			attribute.String("bidder_id", bidderID),
		),
	)
	defer span.End()

	a, err := e.get(auctionID)
	if err != nil {
		return Snapshot{}, err
	}

	snap, err := a.BuyItNow(ctx, bidderID, e.clock.Now())
	if err != nil {
		e.commit(ctx, a)
		return Snapshot{}, err
	}

	e.commit(ctx, a)
	return snap, nil
}

// Watch adds userID to an auction's watch list.
func (e *Engine) Watch(ctx context.Context, auctionID, userID string) error {
	a, err := e.get(auctionID)
	if err != nil {
		return err
	}
	a.Watch(userID)
	return nil
}

// Unwatch removes userID from an auction's watch list.
func (e *Engine) Unwatch(ctx context.Context, auctionID, userID string) error {
	a, err := e.get(auctionID)
	if err != nil {
		return err
	}
	a.Unwatch(userID)
	return nil
}

// Cancel cancels an upcoming or live auction.
func (e *Engine) Cancel(ctx context.Context, auctionID, cancelledBy string) error {
	ctx, span := e.tracer.Start(ctx, "Engine.Cancel",
		trace.WithAttributes(attribute.String("auction_id", auctionID)),
	)
	defer span.End()

	a, err := e.get(auctionID)
	if err != nil {
		return err
	}
	if err := a.Cancel(cancelledBy, e.clock.Now()); err != nil {
		e.commit(ctx, a)
		return err
	}

	e.commit(ctx, a)
	e.logger.InfoContext(ctx, "auction cancelled",
		slog.String("auction_id", auctionID),
		slog.String("cancelled_by", cancelledBy),
	)
	return nil
}

// Tick drives one auction's lifecycle for callers that poll.
func (e *Engine) Tick(ctx context.Context, auctionID string) (Snapshot, error) {
	a, err := e.get(auctionID)
	if err != nil {
		return Snapshot{}, err
	}
	a.Tick(e.clock.Now())
	e.commit(ctx, a)
	return a.Snapshot(), nil
}

// TickAll advances every tracked auction and returns how many changed.
func (e *Engine) TickAll(ctx context.Context) int {
	ctx, span := e.tracer.Start(ctx, "Engine.TickAll")
	defer span.End()

	now := e.clock.Now()
	changed := 0
	for _, a := range e.all() {
		if a.Tick(now) {
			changed++
		}
		e.commit(ctx, a)
	}
	return changed
}

// Get returns a snapshot of one auction.
func (e *Engine) Get(ctx context.Context, auctionID string) (Snapshot, error) {
	a, err := e.get(auctionID)
	if err != nil {
		return Snapshot{}, err
	}
	return a.Snapshot(), nil
}

// History returns one auction's accepted bids in ledger order.
func (e *Engine) History(ctx context.Context, auctionID string) ([]Bid, error) {
	a, err := e.get(auctionID)
	if err != nil {
		return nil, err
	}
	return a.History(), nil
}

// List returns snapshots of all tracked auctions, soonest close first.
func (e *Engine) List(ctx context.Context) []Snapshot {
	auctions := e.all()
	out := make([]Snapshot, 0, len(auctions))
	for _, a := range auctions {
		out = append(out, a.Snapshot())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].EndTime.Equal(out[j].EndTime) {
			return out[i].ID < out[j].ID
		}
		return out[i].EndTime.Before(out[j].EndTime)
	})
	return out
}

// Recover replays all auctions from the event store and loads the
// non-terminal ones into memory. Used at startup so that in-flight auctions
// survive a restart or failover.
func (e *Engine) Recover(ctx context.Context) (int, error) {
	ctx, span := e.tracer.Start(ctx, "Engine.Recover")
	defer span.End()

	created, err := e.events.LoadByType(ctx, event.AuctionCreated)
	if err != nil {
		return 0, err
	}

	seen := make(map[string]struct{}, len(created))
	var ids []string
	for _, ev := range created {
		if _, ok := seen[ev.AggregateID]; !ok {
			seen[ev.AggregateID] = struct{}{}
			ids = append(ids, ev.AggregateID)
		}
	}

	now := e.clock.Now()
	recovered := 0
	for _, id := range ids {
		history, loadErr := e.events.Load(ctx, id)
		if loadErr != nil {
			e.logger.WarnContext(ctx, "failed to load auction history during recovery",
				slog.String("auction_id", id),
				slog.Any("error", loadErr),
			)
			continue
		}
		a, replayErr := Replay(history)
		if replayErr != nil {
			e.logger.WarnContext(ctx, "failed to replay auction during recovery",
				slog.String("auction_id", id),
				slog.Any("error", replayErr),
			)
			continue
		}
		// Auctions settled before the restart stay archived; the read
		// model serves their history.
		if s := a.Snapshot().Status; s == StatusEnded || s == StatusCancelled {
			continue
		}

		a.Tick(now)

		e.mu.Lock()
		e.auctions[id] = a
		e.mu.Unlock()
		e.commit(ctx, a)
		recovered++
	}

	e.logger.InfoContext(ctx, "auction recovery complete",
		slog.Int("total", len(ids)),
		slog.Int("recovered", recovered),
	)
	return recovered, nil
}

func (e *Engine) get(auctionID string) (*Auction, error) {
	e.mu.RLock()
	a, ok := e.auctions[auctionID]
	e.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return a, nil
}

func (e *Engine) all() []*Auction {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]*Auction, 0, len(e.auctions))
	for _, a := range e.auctions {
		out = append(out, a)
	}
	return out
}

// commit drains the auction's pending events, persists them and publishes
// them to subscribers. Persistence failures are logged, not returned: the
// in-memory transaction has already committed and callers cannot roll it
// back.
// commit persists and publishes an auction's pending events. The commit
// mutex keeps drain and publish atomic per auction, so the bus receives
// events in version order even under concurrent operations.
func (e *Engine) commit(ctx context.Context, a *Auction) {
	a.commitMu.Lock()
	defer a.commitMu.Unlock()

	events := a.PendingEvents()
	if len(events) == 0 {
		return
	}
	if err := e.events.Append(ctx, events...); err != nil {
		e.logger.ErrorContext(ctx, "failed to persist events",
			slog.String("auction_id", events[0].AggregateID),
			slog.Any("error", err),
		)
	}
	e.bus.Publish(events...)
}
