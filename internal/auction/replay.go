package auction

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/scrapline/auction-engine/internal/event"
)

// Replay reconstructs an auction from its event history. The returned
// aggregate records no new events; callers normalize its lifecycle with Tick.
func Replay(events []event.Event) (*Auction, error) {
	if len(events) == 0 {
		return nil, fmt.Errorf("no events to replay")
	}

	a := &Auction{
		ledger:   newLedger(),
		ceilings: make(map[string]*AutoBidCeiling),
		watchers: make(map[string]struct{}),
	}

	for _, e := range events {
		switch e.Type {
		case event.AuctionCreated:
			var d event.AuctionCreatedData
			if err := json.Unmarshal(e.Data, &d); err != nil {
				return nil, fmt.Errorf("unmarshalling created event: %w", err)
			}
			a.ID = e.AggregateID
			a.Type = Type(d.AuctionType)
			a.SellerID = d.SellerID
			a.StartingPrice = d.StartingPrice
			a.ReservePrice = d.ReservePrice
			a.BuyItNowPrice = d.BuyItNowPrice
			a.IncrementAmount = d.IncrementAmount
			a.DecrementAmount = d.DecrementAmount
			a.DecrementInterval = d.DecrementInterval
			a.MinimumPrice = d.MinimumPrice
			a.StartTime = d.StartTime
			a.EndTime = d.EndTime
			a.TimeExtension = d.TimeExtension
			a.AllowSelfOutbid = d.AllowSelfOutbid
			a.Status = StatusUpcoming
			a.CurrentPrice = d.StartingPrice

		case event.BidAccepted:
			var d event.BidAcceptedData
			if err := json.Unmarshal(e.Data, &d); err != nil {
				return nil, fmt.Errorf("unmarshalling bid event: %w", err)
			}
			bid := Bid{
				ID:        d.BidID,
				AuctionID: e.AggregateID,
				BidderID:  d.BidderID,
				Amount:    d.Amount,
				PlacedAt:  d.PlacedAt,
				IsAutoBid: d.IsAutoBid,
			}
			if a.Type == TypeSealed {
				a.ledger.appendSealed(bid)
			} else {
				a.ledger.append(bid)
				a.CurrentPrice = d.Amount
				a.WinningBidderID = d.BidderID
			}
			if a.Status == StatusUpcoming {
				a.Status = StatusLive
			}

		case event.AutoBidSet:
			var d event.AutoBidSetData
			if err := json.Unmarshal(e.Data, &d); err != nil {
				return nil, fmt.Errorf("unmarshalling autobid event: %w", err)
			}
			a.ceilingSeq++
			a.ceilings[d.BidderID] = &AutoBidCeiling{
				AuctionID:   e.AggregateID,
				BidderID:    d.BidderID,
				MaxAmount:   d.MaxAmount,
				Active:      true,
				CommittedAt: e.CreatedAt,
				seq:         a.ceilingSeq,
			}

		case event.AutoBidDeactivated:
			var d event.AutoBidDeactivatedData
			if err := json.Unmarshal(e.Data, &d); err != nil {
				return nil, fmt.Errorf("unmarshalling autobid deactivation: %w", err)
			}
			if c, ok := a.ceilings[d.BidderID]; ok {
				c.Active = false
			}

		case event.AuctionExtended:
			var d event.AuctionExtendedData
			if err := json.Unmarshal(e.Data, &d); err != nil {
				return nil, fmt.Errorf("unmarshalling extension event: %w", err)
			}
			a.EndTime = d.NewEndTime

		case event.AuctionEnded:
			var d event.AuctionEndedData
			if err := json.Unmarshal(e.Data, &d); err != nil {
				return nil, fmt.Errorf("unmarshalling ended event: %w", err)
			}
			a.Status = StatusEnded
			a.Outcome = Outcome(d.Outcome)
			a.WinningBidderID = d.WinnerID
			a.CurrentPrice = d.FinalPrice

		case event.AuctionCancelled:
			a.Status = StatusCancelled
		}
		a.Version = e.Version
	}

	if a.ID == "" {
		return nil, fmt.Errorf("history has no created event")
	}
	return a, nil
}

// ReplayAt is Replay followed by a lifecycle tick at now.
func ReplayAt(events []event.Event, now time.Time) (*Auction, error) {
	a, err := Replay(events)
	if err != nil {
		return nil, err
	}
	a.Tick(now)
	return a, nil
}
