package auction

import (
	"encoding/json"
	"time"

	"github.com/scrapline/auction-engine/internal/event"
	"github.com/scrapline/auction-engine/internal/money"
)

// Ledger is the append-only history of accepted bids for one auction. It is
// the single source of truth for the current price and winning bidder.
// Entries are totally ordered by placement time, ties broken by insertion
// sequence (first received wins). The ledger is not safe for concurrent use
// on its own; the owning Auction's mutex guards it.
type Ledger struct {
	bids []Bid
	// latest live (not superseded) bid index per bidder, for sealed replace.
	liveByBidder map[string]int
}

func newLedger() *Ledger {
	return &Ledger{liveByBidder: make(map[string]int)}
}

// append adds b to the ledger and returns its index.
func (l *Ledger) append(b Bid) int {
	b.seq = len(l.bids)
	l.bids = append(l.bids, b)
	l.liveByBidder[b.BidderID] = b.seq
	return b.seq
}

// appendSealed adds a sealed bid, marking the bidder's prior sealed bid (if
// any) as superseded. Last submitted before close wins.
func (l *Ledger) appendSealed(b Bid) int {
	if prev, ok := l.liveByBidder[b.BidderID]; ok {
		l.bids[prev].SupersededBy = b.ID
	}
	return l.append(b)
}

// Len returns the number of ledger entries, superseded bids included.
func (l *Ledger) Len() int { return len(l.bids) }

// Latest returns the most recently appended bid, or nil.
func (l *Ledger) Latest() *Bid {
	if len(l.bids) == 0 {
		return nil
	}
	return &l.bids[len(l.bids)-1]
}

// History returns a copy of the full ledger in append order.
func (l *Ledger) History() []Bid {
	out := make([]Bid, len(l.bids))
	copy(out, l.bids)
	return out
}

// winningSealed returns the highest live sealed bid, earliest-placed winning
// ties, or nil when no live bid exists.
func (l *Ledger) winningSealed() *Bid {
	var best *Bid
	for i := range l.bids {
		b := &l.bids[i]
		if b.SupersededBy != "" {
			continue
		}
		if best == nil || b.Amount.GreaterThan(best.Amount) {
			best = b
		}
	}
	return best
}

// applyAccepted appends an already-validated bid and updates the derived
// fields (current price, winning bidder) in the same transaction. Sealed
// bids do not move the visible price; it is revealed at close.
func (a *Auction) applyAccepted(b Bid) {
	var superseded string
	if a.Type == TypeSealed {
		if prev, ok := a.ledger.liveByBidder[b.BidderID]; ok {
			superseded = a.ledger.bids[prev].ID
		}
		a.ledger.appendSealed(b)
	} else {
		a.ledger.append(b)
		a.CurrentPrice = b.Amount
		a.WinningBidderID = b.BidderID
	}

	data, _ := json.Marshal(event.BidAcceptedData{
		BidID:        b.ID,
		BidderID:     b.BidderID,
		Amount:       b.Amount,
		PlacedAt:     b.PlacedAt,
		IsAutoBid:    b.IsAutoBid,
		SupersededID: superseded,
	})
	a.recordEvent(event.BidAccepted, data, b.PlacedAt)
}

// newBid builds a ledger entry for this auction.
func (a *Auction) newBid(id, bidderID string, amount money.Amount, now time.Time, auto bool) Bid {
	return Bid{
		ID:        id,
		AuctionID: a.ID,
		BidderID:  bidderID,
		Amount:    amount,
		PlacedAt:  now.UTC(),
		IsAutoBid: auto,
	}
}
