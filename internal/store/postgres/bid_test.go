package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/scrapline/auction-engine/internal/clock"
	"github.com/scrapline/auction-engine/internal/money"
	"github.com/scrapline/auction-engine/internal/store"
	"github.com/scrapline/auction-engine/internal/store/postgres"
)

// seedAuction inserts the auction row that bids, auto-bids and watches
// reference by foreign key.
func seedAuction(t *testing.T, repos *store.Repositories, id string) {
	t.Helper()
	if err := repos.Auctions.Upsert(context.Background(), testRecord(id)); err != nil {
		t.Fatalf("seeding auction %s: %v", id, err)
	}
}

func newRepos(t *testing.T) *store.Repositories {
	t.Helper()
	db := newTestDB(t)
	clk := clock.Real{}
	return &store.Repositories{
		Auctions:   postgres.NewAuctionRepo(db, clk),
		Bids:       postgres.NewBidRepo(db),
		AutoBids:   postgres.NewAutoBidRepo(db),
		Watchlists: postgres.NewWatchlistRepo(db, clk),
		Events:     postgres.NewEventStore(db),
	}
}

func TestBidRepo_InsertAndList(t *testing.T) {
	repos := newRepos(t)
	ctx := context.Background()
	seedAuction(t, repos, "a1")

	placed := time.Date(2026, 4, 1, 12, 30, 0, 0, time.UTC)
	bids := []*store.BidRecord{
		{ID: "bid-1", AuctionID: "a1", BidderID: "b1", Amount: money.FromInt(150), PlacedAt: placed},
		{ID: "bid-2", AuctionID: "a1", BidderID: "alice", Amount: money.FromInt(200), PlacedAt: placed.Add(time.Minute), IsAutoBid: true},
	}
	for _, b := range bids {
		if err := repos.Bids.Insert(ctx, b); err != nil {
			t.Fatalf("Insert(%s): %v", b.ID, err)
		}
	}

	got, err := repos.Bids.ListByAuction(ctx, "a1")
	if err != nil {
		t.Fatalf("ListByAuction: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("ListByAuction returned %d, want 2", len(got))
	}
	if got[0].ID != "bid-1" || got[1].ID != "bid-2" {
		t.Errorf("order = %s,%s, want placement order", got[0].ID, got[1].ID)
	}
	if !got[1].IsAutoBid {
		t.Error("IsAutoBid flag lost")
	}
	if !got[0].Amount.Equal(money.FromInt(150)) {
		t.Errorf("Amount = %s, want 150.00", got[0].Amount)
	}

	byBidder, err := repos.Bids.ListByBidder(ctx, "alice")
	if err != nil {
		t.Fatalf("ListByBidder: %v", err)
	}
	if len(byBidder) != 1 || byBidder[0].ID != "bid-2" {
		t.Errorf("ListByBidder = %+v, want bid-2 only", byBidder)
	}
}

func TestBidRepo_MarkSuperseded(t *testing.T) {
	repos := newRepos(t)
	ctx := context.Background()
	seedAuction(t, repos, "a1")

	placed := time.Date(2026, 4, 1, 12, 30, 0, 0, time.UTC)
	for _, b := range []*store.BidRecord{
		{ID: "bid-1", AuctionID: "a1", BidderID: "b1", Amount: money.FromInt(500), PlacedAt: placed},
		{ID: "bid-2", AuctionID: "a1", BidderID: "b1", Amount: money.FromInt(300), PlacedAt: placed.Add(time.Minute)},
	} {
		if err := repos.Bids.Insert(ctx, b); err != nil {
			t.Fatalf("Insert(%s): %v", b.ID, err)
		}
	}

	if err := repos.Bids.MarkSuperseded(ctx, "bid-1", "bid-2"); err != nil {
		t.Fatalf("MarkSuperseded: %v", err)
	}

	got, _ := repos.Bids.ListByAuction(ctx, "a1")
	if got[0].SupersededBy == nil || *got[0].SupersededBy != "bid-2" {
		t.Errorf("SupersededBy = %v, want bid-2", got[0].SupersededBy)
	}
	if got[1].SupersededBy != nil {
		t.Errorf("bid-2 SupersededBy = %v, want nil", got[1].SupersededBy)
	}

	if err := repos.Bids.MarkSuperseded(ctx, "missing", "bid-2"); err == nil {
		t.Error("expected error for unknown bid")
	}
}

func TestAutoBidRepo(t *testing.T) {
	repos := newRepos(t)
	ctx := context.Background()
	seedAuction(t, repos, "a1")

	committed := time.Date(2026, 4, 1, 12, 30, 0, 0, time.UTC)
	ceiling := &store.AutoBidRecord{
		AuctionID: "a1", BidderID: "alice", MaxAmount: money.FromInt(500),
		Active: true, CommittedAt: committed,
	}
	if err := repos.AutoBids.Upsert(ctx, ceiling); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	// Raising the ceiling replaces the row.
	ceiling.MaxAmount = money.FromInt(800)
	ceiling.CommittedAt = committed.Add(time.Minute)
	if err := repos.AutoBids.Upsert(ctx, ceiling); err != nil {
		t.Fatalf("second Upsert: %v", err)
	}

	active, err := repos.AutoBids.ListActive(ctx, "a1")
	if err != nil {
		t.Fatalf("ListActive: %v", err)
	}
	if len(active) != 1 || !active[0].MaxAmount.Equal(money.FromInt(800)) {
		t.Fatalf("ListActive = %+v, want one ceiling at 800.00", active)
	}

	if err := repos.AutoBids.Deactivate(ctx, "a1", "alice"); err != nil {
		t.Fatalf("Deactivate: %v", err)
	}
	active, _ = repos.AutoBids.ListActive(ctx, "a1")
	if len(active) != 0 {
		t.Errorf("ListActive after deactivate = %d rows, want 0", len(active))
	}

	if err := repos.AutoBids.Deactivate(ctx, "a1", "nobody"); err == nil {
		t.Error("expected error for unknown ceiling")
	}
}

func TestWatchlistRepo(t *testing.T) {
	repos := newRepos(t)
	ctx := context.Background()
	seedAuction(t, repos, "a1")
	seedAuction(t, repos, "a2")

	for _, add := range []struct{ auctionID, userID string }{
		{"a1", "u1"}, {"a1", "u2"}, {"a2", "u1"},
	} {
		if err := repos.Watchlists.Add(ctx, add.auctionID, add.userID); err != nil {
			t.Fatalf("Add(%s, %s): %v", add.auctionID, add.userID, err)
		}
	}
	// Adding twice is idempotent.
	if err := repos.Watchlists.Add(ctx, "a1", "u1"); err != nil {
		t.Fatalf("duplicate Add: %v", err)
	}

	count, err := repos.Watchlists.CountByAuction(ctx, "a1")
	if err != nil {
		t.Fatalf("CountByAuction: %v", err)
	}
	if count != 2 {
		t.Errorf("CountByAuction = %d, want 2", count)
	}

	watches, err := repos.Watchlists.ListByUser(ctx, "u1")
	if err != nil {
		t.Fatalf("ListByUser: %v", err)
	}
	if len(watches) != 2 {
		t.Errorf("ListByUser = %d rows, want 2", len(watches))
	}

	if err := repos.Watchlists.Remove(ctx, "a1", "u1"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	count, _ = repos.Watchlists.CountByAuction(ctx, "a1")
	if count != 1 {
		t.Errorf("CountByAuction after remove = %d, want 1", count)
	}
}
