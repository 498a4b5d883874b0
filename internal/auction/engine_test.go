package auction_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"go.opentelemetry.io/otel/trace/noop"

	"github.com/scrapline/auction-engine/internal/auction"
	"github.com/scrapline/auction-engine/internal/clock"
	"github.com/scrapline/auction-engine/internal/event"
	"github.com/scrapline/auction-engine/internal/money"
)

// memStore is an in-memory event.Store for engine tests.
type memStore struct {
	mu     sync.Mutex
	events []event.Event
}

func (s *memStore) Append(ctx context.Context, events ...event.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, events...)
	return nil
}

func (s *memStore) Load(ctx context.Context, aggregateID string) ([]event.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []event.Event
	for _, e := range s.events {
		if e.AggregateID == aggregateID {
			out = append(out, e)
		}
	}
	return out, nil
}

var _ event.Store = (*memStore)(nil)

func (s *memStore) LoadByType(ctx context.Context, eventType event.Type) ([]event.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []event.Event
	for _, e := range s.events {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out, nil
}

func testPolicy() auction.Policy {
	return auction.Policy{
		DefaultIncrement: money.FromInt(50),
		DefaultExtension: 5 * time.Minute,
	}
}

func newTestEngine(t *testing.T) (*auction.Engine, *clock.Mock, *memStore) {
	t.Helper()
	store := &memStore{}
	clk := clock.NewMock(baseTime)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	e := auction.NewEngine(store, event.NewBus(), logger, noop.NewTracerProvider(), clk, testPolicy())
	return e, clk, store
}

func createStandard(t *testing.T, e *auction.Engine, clk *clock.Mock) auction.Snapshot {
	t.Helper()
	snap, err := e.CreateAuction(context.Background(), auction.Config{
		Type:          auction.TypeStandard,
		SellerID:      "seller-1",
		StartingPrice: money.FromInt(100),
		StartTime:     clk.Now(),
		EndTime:       clk.Now().Add(time.Hour),
	})
	if err != nil {
		t.Fatalf("CreateAuction: %v", err)
	}
	return snap
}

func TestEngine_CreateAuctionAppliesDefaults(t *testing.T) {
	e, clk, _ := newTestEngine(t)
	snap := createStandard(t, e, clk)

	if !snap.IncrementAmount.Equal(amt(50)) {
		t.Errorf("IncrementAmount = %s, want policy default 50.00", snap.IncrementAmount)
	}
	if snap.TimeExtension != 5*time.Minute {
		t.Errorf("TimeExtension = %s, want policy default 5m", snap.TimeExtension)
	}
	if snap.ID == "" {
		t.Error("expected a generated auction id")
	}
	if snap.Status != auction.StatusLive {
		t.Errorf("status = %s, want live", snap.Status)
	}
}

func TestEngine_CreateAuctionKeepsExplicitValues(t *testing.T) {
	e, clk, _ := newTestEngine(t)
	snap, err := e.CreateAuction(context.Background(), auction.Config{
		Type:            auction.TypeStandard,
		SellerID:        "seller-1",
		StartingPrice:   money.FromInt(100),
		IncrementAmount: money.FromInt(25),
		StartTime:       clk.Now(),
		EndTime:         clk.Now().Add(time.Hour),
		TimeExtension:   time.Minute,
	})
	if err != nil {
		t.Fatalf("CreateAuction: %v", err)
	}
	if !snap.IncrementAmount.Equal(amt(25)) || snap.TimeExtension != time.Minute {
		t.Errorf("explicit values overridden: %s/%s", snap.IncrementAmount, snap.TimeExtension)
	}
}

func TestEngine_UnknownAuction(t *testing.T) {
	e, _, _ := newTestEngine(t)
	ctx := context.Background()

	if _, err := e.PlaceBid(ctx, "missing", "b1", amt(100)); !errors.Is(err, auction.ErrNotFound) {
		t.Errorf("PlaceBid error = %v, want ErrNotFound", err)
	}
	if _, err := e.Get(ctx, "missing"); !errors.Is(err, auction.ErrNotFound) {
		t.Errorf("Get error = %v, want ErrNotFound", err)
	}
	if err := e.Cancel(ctx, "missing", "seller-1"); !errors.Is(err, auction.ErrNotFound) {
		t.Errorf("Cancel error = %v, want ErrNotFound", err)
	}
}

func TestEngine_BidFlow(t *testing.T) {
	e, clk, _ := newTestEngine(t)
	ctx := context.Background()
	created := createStandard(t, e, clk)

	clk.Advance(time.Minute)
	snap, err := e.PlaceBid(ctx, created.ID, "b1", amt(200))
	if err != nil {
		t.Fatalf("PlaceBid: %v", err)
	}
	if !snap.CurrentPrice.Equal(amt(200)) || snap.WinningBidderID != "b1" {
		t.Errorf("price/winner = %s/%s, want 200.00/b1", snap.CurrentPrice, snap.WinningBidderID)
	}

	history, err := e.History(ctx, created.ID)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history) != 1 || history[0].BidderID != "b1" {
		t.Errorf("history = %+v, want one bid by b1", history)
	}
}

func TestEngine_PersistsEvents(t *testing.T) {
	e, clk, store := newTestEngine(t)
	ctx := context.Background()
	created := createStandard(t, e, clk)

	clk.Advance(time.Minute)
	if _, err := e.PlaceBid(ctx, created.ID, "b1", amt(200)); err != nil {
		t.Fatalf("PlaceBid: %v", err)
	}

	events, err := store.Load(ctx, created.ID)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	wantTypes := []event.Type{event.AuctionCreated, event.BidAccepted}
	if len(events) != len(wantTypes) {
		t.Fatalf("stored %d events, want %d", len(events), len(wantTypes))
	}
	for i, want := range wantTypes {
		if events[i].Type != want {
			t.Errorf("event %d type = %s, want %s", i, events[i].Type, want)
		}
		if events[i].Version != i+1 {
			t.Errorf("event %d version = %d, want %d", i, events[i].Version, i+1)
		}
	}
}

func TestEngine_PublishesToBus(t *testing.T) {
	store := &memStore{}
	clk := clock.NewMock(baseTime)
	bus := event.NewBus()

	var mu sync.Mutex
	var got []event.Type
	bus.Subscribe(func(e event.Event) {
		mu.Lock()
		got = append(got, e.Type)
		mu.Unlock()
	})

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	e := auction.NewEngine(store, bus, logger, noop.NewTracerProvider(), clk, testPolicy())

	created := createStandard(t, e, clk)
	clk.Advance(time.Minute)
	if _, err := e.PlaceBid(context.Background(), created.ID, "b1", amt(200)); err != nil {
		t.Fatalf("PlaceBid: %v", err)
	}
	bus.Wait()

	mu.Lock()
	defer mu.Unlock()
	want := []event.Type{event.AuctionCreated, event.BidAccepted}
	if len(got) != len(want) {
		t.Fatalf("delivered %d events, want %d (%v)", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("delivery %d = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestEngine_TickAll(t *testing.T) {
	e, clk, _ := newTestEngine(t)
	ctx := context.Background()
	created := createStandard(t, e, clk)

	clk.Advance(2 * time.Hour)
	if changed := e.TickAll(ctx); changed != 1 {
		t.Errorf("TickAll changed = %d, want 1", changed)
	}
	snap, err := e.Get(ctx, created.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if snap.Status != auction.StatusEnded {
		t.Errorf("status = %s, want ended", snap.Status)
	}

	// A second sweep over settled auctions is a no-op.
	if changed := e.TickAll(ctx); changed != 0 {
		t.Errorf("second TickAll changed = %d, want 0", changed)
	}
}

func TestEngine_List(t *testing.T) {
	e, clk, _ := newTestEngine(t)
	ctx := context.Background()

	mk := func(closeIn time.Duration) string {
		snap, err := e.CreateAuction(ctx, auction.Config{
			Type:          auction.TypeStandard,
			SellerID:      "seller-1",
			StartingPrice: money.FromInt(100),
			StartTime:     clk.Now(),
			EndTime:       clk.Now().Add(closeIn),
		})
		if err != nil {
			t.Fatalf("CreateAuction: %v", err)
		}
		return snap.ID
	}

	late := mk(3 * time.Hour)
	early := mk(1 * time.Hour)
	mid := mk(2 * time.Hour)

	list := e.List(ctx)
	if len(list) != 3 {
		t.Fatalf("List returned %d auctions, want 3", len(list))
	}
	if list[0].ID != early || list[1].ID != mid || list[2].ID != late {
		t.Errorf("List order = %s,%s,%s, want soonest close first", list[0].ID, list[1].ID, list[2].ID)
	}
}

func TestEngine_Watch(t *testing.T) {
	e, clk, _ := newTestEngine(t)
	ctx := context.Background()
	created := createStandard(t, e, clk)

	if err := e.Watch(ctx, created.ID, "u1"); err != nil {
		t.Fatalf("Watch: %v", err)
	}
	snap, _ := e.Get(ctx, created.ID)
	if snap.Watchers != 1 {
		t.Errorf("Watchers = %d, want 1", snap.Watchers)
	}
	if err := e.Unwatch(ctx, created.ID, "u1"); err != nil {
		t.Fatalf("Unwatch: %v", err)
	}
	snap, _ = e.Get(ctx, created.ID)
	if snap.Watchers != 0 {
		t.Errorf("Watchers = %d, want 0", snap.Watchers)
	}
}

func TestEngine_Recover(t *testing.T) {
	store := &memStore{}
	clk := clock.NewMock(baseTime)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx := context.Background()

	e1 := auction.NewEngine(store, event.NewBus(), logger, noop.NewTracerProvider(), clk, testPolicy())

	live := createStandard(t, e1, clk)
	cancelled := createStandard(t, e1, clk)
	stale := createStandard(t, e1, clk)

	clk.Advance(time.Minute)
	if _, err := e1.PlaceBid(ctx, live.ID, "b1", amt(200)); err != nil {
		t.Fatalf("PlaceBid: %v", err)
	}
	if _, err := e1.SetAutoBid(ctx, live.ID, "alice", amt(500)); err != nil {
		t.Fatalf("SetAutoBid: %v", err)
	}
	if err := e1.Cancel(ctx, cancelled.ID, "seller-1"); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	_ = stale

	want, err := e1.Get(ctx, live.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}

	// A fresh engine over the same store stands the auctions back up.
	clk2 := clock.NewMock(clk.Now())
	e2 := auction.NewEngine(store, event.NewBus(), logger, noop.NewTracerProvider(), clk2, testPolicy())
	recovered, err := e2.Recover(ctx)
	if err != nil {
		t.Fatalf("Recover: %v", err)
	}
	if recovered != 2 {
		t.Errorf("recovered = %d, want 2 (cancelled auction skipped)", recovered)
	}

	if _, err := e2.Get(ctx, cancelled.ID); !errors.Is(err, auction.ErrNotFound) {
		t.Errorf("cancelled auction resurrected, err = %v", err)
	}

	got, err := e2.Get(ctx, live.ID)
	if err != nil {
		t.Fatalf("Get after recover: %v", err)
	}
	if !got.CurrentPrice.Equal(want.CurrentPrice) || got.WinningBidderID != want.WinningBidderID ||
		got.Status != want.Status || !got.EndTime.Equal(want.EndTime) {
		t.Errorf("recovered state %+v, want %+v", got, want)
	}

	// Bidding continues seamlessly on the recovered aggregate.
	if _, err := e2.PlaceBid(ctx, live.ID, "carol", amt(1000)); err != nil {
		t.Fatalf("PlaceBid after recover: %v", err)
	}
}

func TestEngine_Recover_SkipsSettledAuctions(t *testing.T) {
	store := &memStore{}
	clk := clock.NewMock(baseTime)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx := context.Background()

	e1 := auction.NewEngine(store, event.NewBus(), logger, noop.NewTracerProvider(), clk, testPolicy())
	created := createStandard(t, e1, clk)
	clk.Advance(time.Minute)
	if _, err := e1.PlaceBid(ctx, created.ID, "b1", amt(200)); err != nil {
		t.Fatalf("PlaceBid: %v", err)
	}
	clk.Advance(2 * time.Hour)
	e1.TickAll(ctx)

	// The auction was settled and persisted in the previous run; a restart
	// must not load it back into the live map.
	clk2 := clock.NewMock(clk.Now())
	e2 := auction.NewEngine(store, event.NewBus(), logger, noop.NewTracerProvider(), clk2, testPolicy())
	recovered, err := e2.Recover(ctx)
	if err != nil {
		t.Fatalf("Recover: %v", err)
	}
	if recovered != 0 {
		t.Errorf("recovered = %d, want 0", recovered)
	}
	if _, err := e2.Get(ctx, created.ID); !errors.Is(err, auction.ErrNotFound) {
		t.Errorf("settled auction resurrected, err = %v", err)
	}
}

func TestEngine_RecoverEndsStaleAuctions(t *testing.T) {
	store := &memStore{}
	clk := clock.NewMock(baseTime)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx := context.Background()

	e1 := auction.NewEngine(store, event.NewBus(), logger, noop.NewTracerProvider(), clk, testPolicy())
	created := createStandard(t, e1, clk)
	clk.Advance(time.Minute)
	if _, err := e1.PlaceBid(ctx, created.ID, "b1", amt(200)); err != nil {
		t.Fatalf("PlaceBid: %v", err)
	}

	// The process was down across the close; recovery settles the auction.
	clk2 := clock.NewMock(baseTime.Add(3 * time.Hour))
	e2 := auction.NewEngine(store, event.NewBus(), logger, noop.NewTracerProvider(), clk2, testPolicy())
	if _, err := e2.Recover(ctx); err != nil {
		t.Fatalf("Recover: %v", err)
	}

	snap, err := e2.Get(ctx, created.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if snap.Status != auction.StatusEnded || snap.Outcome != auction.OutcomeWon {
		t.Errorf("status/outcome = %s/%s, want ended/won", snap.Status, snap.Outcome)
	}

	// Settlement must be persisted, not just in memory.
	events, _ := store.LoadByType(ctx, event.AuctionEnded)
	if len(events) != 1 {
		t.Errorf("stored %d ended events, want 1", len(events))
	}
}
