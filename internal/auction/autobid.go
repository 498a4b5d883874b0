package auction

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/scrapline/auction-engine/internal/event"
	"github.com/scrapline/auction-engine/internal/money"
)

// upsertCeiling creates or replaces a bidder's ceiling. Raising a ceiling
// re-stamps its commit order, so ties between ceilings resolve in favour of
// whoever committed their current maximum first.
func (a *Auction) upsertCeiling(bidderID string, max money.Amount, now time.Time) {
	a.ceilingSeq++
	a.ceilings[bidderID] = &AutoBidCeiling{
		AuctionID:   a.ID,
		BidderID:    bidderID,
		MaxAmount:   max,
		Active:      true,
		CommittedAt: now.UTC(),
		seq:         a.ceilingSeq,
	}

	data, _ := json.Marshal(event.AutoBidSetData{BidderID: bidderID, MaxAmount: max})
	a.recordEvent(event.AutoBidSet, data, now)
}

func (a *Auction) deactivateCeiling(c *AutoBidCeiling, reason string, now time.Time) {
	c.Active = false
	data, _ := json.Marshal(event.AutoBidDeactivatedData{BidderID: c.BidderID, Reason: reason})
	a.recordEvent(event.AutoBidDeactivated, data, now)
}

// resolveAutoBids runs proxy bidding to its fixed point: while any ceiling
// can still profitably outbid the current leader, the highest ceiling
// (earliest committed on ties) fires a bid at one increment over the
// second-highest commitment, capped by its own maximum. The price therefore
// rises only as far as needed to beat the runner-up, never jumping straight
// to the winner's true ceiling. Ceilings priced out along the way are
// deactivated; their owners must re-commit to continue. Terminates within
// one step per active ceiling. Caller holds the mutex.
func (a *Auction) resolveAutoBids(now time.Time) {
	if a.Type != TypeStandard && a.Type != TypeBuyItNow {
		return
	}

	for i := 0; i <= len(a.ceilings); i++ {
		if a.Status != StatusLive && a.Status != StatusEndingSoon {
			return
		}

		minNext := a.minimumBid()

		// Retire ceilings that can no longer meet the next minimum. The
		// leader's own ceiling stays active while it holds the lead.
		for _, c := range a.ceilings {
			if c.Active && c.BidderID != a.WinningBidderID && c.MaxAmount.LessThan(minNext) {
				a.deactivateCeiling(c, "priced_out", now)
			}
		}

		top := a.topCeiling()
		if top == nil {
			return
		}

		// The best competing commitment: the standing price or any other
		// active ceiling's maximum.
		second := a.CurrentPrice
		challenged := false
		for _, c := range a.ceilings {
			if !c.Active || c == top {
				continue
			}
			if c.MaxAmount.GreaterThan(second) {
				second = c.MaxAmount
			}
			if c.MaxAmount.GreaterThanOrEqual(minNext) {
				challenged = true
			}
		}

		// The leader's ceiling only fires to defend against a live
		// challenger; otherwise the standing bid already holds.
		if top.BidderID == a.WinningBidderID && !challenged {
			return
		}

		price := money.Min(top.MaxAmount, second.Add(a.IncrementAmount))
		if err := a.validateBid(top.BidderID, price, now, true); err != nil {
			return
		}

		bid := a.newBid(uuid.NewString(), top.BidderID, price, now, true)
		a.applyAccepted(bid)
	}
}

// topCeiling returns the active ceiling able to meet the next minimum bid,
// highest maximum first, earliest committed winning ties.
func (a *Auction) topCeiling() *AutoBidCeiling {
	minNext := a.minimumBid()
	var top *AutoBidCeiling
	for _, c := range a.ceilings {
		if !c.Active || c.MaxAmount.LessThan(minNext) {
			continue
		}
		if top == nil {
			top = c
			continue
		}
		if c.MaxAmount.GreaterThan(top.MaxAmount) ||
			(c.MaxAmount.Equal(top.MaxAmount) && c.seq < top.seq) {
			top = c
		}
	}
	return top
}
