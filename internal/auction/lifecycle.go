package auction

import (
	"encoding/json"
	"time"

	"github.com/scrapline/auction-engine/internal/event"
	"github.com/scrapline/auction-engine/internal/money"
)

// Tick advances the auction's lifecycle to match now. Ticking an ended or
// cancelled auction is a no-op, so callers may poll at any cadence and ticks
// may arrive out of order. Returns true if the visible state changed.
func (a *Auction) Tick(now time.Time) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.tick(now)
}

// tick is the state machine: upcoming → live → ending_soon → ended. A single
// call applies as many transitions as now justifies (a stale auction ticks
// straight through to ended). Caller holds the mutex.
func (a *Auction) tick(now time.Time) bool {
	changed := false
	for {
		switch a.Status {
		case StatusUpcoming:
			if now.Before(a.StartTime) {
				return changed
			}
			a.Status = StatusLive
			changed = true

		case StatusLive:
			if a.refreshDutchPrice(now) {
				changed = true
			}
			if now.Before(a.endingSoonAt()) {
				return changed
			}
			a.Status = StatusEndingSoon
			changed = true

		case StatusEndingSoon:
			if a.refreshDutchPrice(now) {
				changed = true
			}
			if now.Before(a.EndTime) {
				return changed
			}
			a.finalize(now)
			return true

		default: // ended, cancelled
			return changed
		}
	}
}

func (a *Auction) endingSoonAt() time.Time {
	return a.EndTime.Add(-a.TimeExtension)
}

// refreshDutchPrice recomputes the schedule-derived price of a dutch auction
// that has not yet been accepted.
func (a *Auction) refreshDutchPrice(now time.Time) bool {
	if a.Type != TypeDutch || a.WinningBidderID != "" {
		return false
	}
	price := a.dutchPrice(now)
	if price.Equal(a.CurrentPrice) {
		return false
	}
	a.CurrentPrice = price
	return true
}

// dutchPrice is the schedule price at now: the starting price less one
// decrement per elapsed interval, floored at the minimum price.
func (a *Auction) dutchPrice(now time.Time) money.Amount {
	if a.DecrementInterval <= 0 || now.Before(a.StartTime) {
		return a.StartingPrice
	}
	steps := int64(now.Sub(a.StartTime) / a.DecrementInterval)
	return money.Max(a.StartingPrice.Sub(a.DecrementAmount.MulInt(steps)), a.MinimumPrice)
}

// maybeExtend pushes the close back when an accepted bid lands inside the
// extension window. Repeated extensions are intentional: a contested auction
// only ends once a full window elapses with no accepted bid.
func (a *Auction) maybeExtend(placedAt time.Time, bidID string) bool {
	if a.TimeExtension <= 0 {
		return false
	}
	if a.Status != StatusLive && a.Status != StatusEndingSoon {
		return false
	}
	if a.EndTime.Sub(placedAt) >= a.TimeExtension {
		return false
	}

	a.EndTime = placedAt.Add(a.TimeExtension)
	data, _ := json.Marshal(event.AuctionExtendedData{
		NewEndTime: a.EndTime.UTC(),
		BidID:      bidID,
	})
	a.recordEvent(event.AuctionExtended, data, placedAt)
	return true
}

// finalize moves the auction to ended and settles the outcome. Sealed bids
// are revealed here: the highest live sealed bid becomes the winner and the
// visible price.
func (a *Auction) finalize(now time.Time) {
	a.Status = StatusEnded

	if a.Type == TypeSealed {
		if w := a.ledger.winningSealed(); w != nil {
			a.CurrentPrice = w.Amount
			a.WinningBidderID = w.BidderID
		}
	}

	switch {
	case a.WinningBidderID == "":
		a.Outcome = OutcomeNoSale
	case a.ReservePrice != nil && a.CurrentPrice.LessThan(*a.ReservePrice):
		a.Outcome = OutcomeReserveNotMet
	default:
		a.Outcome = OutcomeWon
	}

	for _, c := range a.ceilings {
		c.Active = false
	}

	data, _ := json.Marshal(event.AuctionEndedData{
		Outcome:    string(a.Outcome),
		WinnerID:   a.WinningBidderID,
		FinalPrice: a.CurrentPrice,
	})
	a.recordEvent(event.AuctionEnded, data, now)
}
