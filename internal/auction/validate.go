package auction

import (
	"fmt"
	"time"

	"github.com/scrapline/auction-engine/internal/money"
)

// validateBid decides whether a proposed bid is acceptable against the
// auction's current state. It is a pure decision function with no side
// effects, shared by interactive bids and auto-bid resolution. Callers hold
// the auction mutex.
//
// Rejections carry the specific reason, including the amount a corrected bid
// must reach, so the caller can prompt the bidder.
// The auto flag marks resolver-generated bids, which are exempt from the
// self-bid policy: a leading ceiling defending its position raises the
// leader's own standing bid.
func (a *Auction) validateBid(bidderID string, amount money.Amount, now time.Time, auto bool) error {
	switch a.Status {
	case StatusEnded, StatusCancelled:
		return ErrEnded
	case StatusUpcoming:
		return ErrNotLive
	}

	// A bid timestamped at or past the close, with no extension pending, is
	// too late even if the status has not been ticked yet.
	if !now.Before(a.EndTime) {
		return ErrEnded
	}

	switch a.Type {
	case TypeSealed:
		if amount.IsZero() {
			return fmt.Errorf("%w: sealed bids must be positive", ErrBelowMinimum)
		}
		return nil

	case TypeDutch:
		// A dutch bid accepts the schedule price; offering less is a
		// rejection, offering more still settles at the schedule price.
		if price := a.dutchPrice(now); amount.LessThan(price) {
			return fmt.Errorf("%w: the current price is %s", ErrBelowMinimum, price)
		}
		return nil

	default: // standard ascending, including bids on a buy_it_now listing
		if !auto && !a.AllowSelfOutbid && a.WinningBidderID != "" && bidderID == a.WinningBidderID {
			return ErrSelfBid
		}
		if min := a.minimumBid(); amount.LessThan(min) {
			return fmt.Errorf("%w: bid must be at least %s", ErrBelowMinimum, min)
		}
		return nil
	}
}

// minimumBid is the least acceptable next bid for ascending auctions.
func (a *Auction) minimumBid() money.Amount {
	return a.CurrentPrice.Add(a.IncrementAmount)
}
