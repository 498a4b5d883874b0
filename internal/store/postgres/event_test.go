package postgres_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/scrapline/auction-engine/internal/event"
	"github.com/scrapline/auction-engine/internal/store/postgres"
)

func TestEventStore_AppendAndLoad(t *testing.T) {
	db := newTestDB(t)
	es := postgres.NewEventStore(db)
	ctx := context.Background()

	aggID := "auction-001"
	events := []event.Event{
		{AggregateID: aggID, Type: event.AuctionCreated, Data: json.RawMessage(`{"auction_type":"standard"}`), Version: 1},
		{AggregateID: aggID, Type: event.BidAccepted, Data: json.RawMessage(`{"bidder_id":"b1","amount":"150.00"}`), Version: 2},
	}

	if err := es.Append(ctx, events...); err != nil {
		t.Fatalf("Append: %v", err)
	}

	loaded, err := es.Load(ctx, aggID)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(loaded) != 2 {
		t.Fatalf("Load returned %d events, want 2", len(loaded))
	}

	// Should be ordered by version.
	if loaded[0].Version != 1 || loaded[1].Version != 2 {
		t.Errorf("versions = [%d, %d], want [1, 2]", loaded[0].Version, loaded[1].Version)
	}
	if loaded[0].Type != event.AuctionCreated {
		t.Errorf("event[0].Type = %q, want %q", loaded[0].Type, event.AuctionCreated)
	}
	if loaded[0].ID == "" {
		t.Error("expected generated event id")
	}
}

func TestEventStore_AppendIsAtomic(t *testing.T) {
	db := newTestDB(t)
	es := postgres.NewEventStore(db)
	ctx := context.Background()

	if err := es.Append(ctx,
		event.Event{AggregateID: "a1", Type: event.AuctionCreated, Data: json.RawMessage(`{}`), Version: 1},
	); err != nil {
		t.Fatalf("Append: %v", err)
	}

	// A batch with a conflicting version must fail as a whole.
	err := es.Append(ctx,
		event.Event{AggregateID: "a1", Type: event.BidAccepted, Data: json.RawMessage(`{}`), Version: 2},
		event.Event{AggregateID: "a1", Type: event.BidAccepted, Data: json.RawMessage(`{}`), Version: 1},
	)
	if err == nil {
		t.Fatal("expected version conflict error")
	}

	loaded, _ := es.Load(ctx, "a1")
	if len(loaded) != 1 {
		t.Errorf("Load returned %d events, want 1 (failed batch rolled back)", len(loaded))
	}
}

func TestEventStore_LoadByType(t *testing.T) {
	db := newTestDB(t)
	es := postgres.NewEventStore(db)
	ctx := context.Background()

	events := []event.Event{
		{AggregateID: "a1", Type: event.AuctionCreated, Data: json.RawMessage(`{}`), Version: 1},
		{AggregateID: "a1", Type: event.AuctionEnded, Data: json.RawMessage(`{}`), Version: 2},
		{AggregateID: "a2", Type: event.AuctionCreated, Data: json.RawMessage(`{}`), Version: 1},
	}
	if err := es.Append(ctx, events...); err != nil {
		t.Fatalf("Append: %v", err)
	}

	created, err := es.LoadByType(ctx, event.AuctionCreated)
	if err != nil {
		t.Fatalf("LoadByType: %v", err)
	}
	if len(created) != 2 {
		t.Fatalf("LoadByType returned %d events, want 2", len(created))
	}
	for _, e := range created {
		if e.Type != event.AuctionCreated {
			t.Errorf("got type %q, want %q", e.Type, event.AuctionCreated)
		}
	}
}
