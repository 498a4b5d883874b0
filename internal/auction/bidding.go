package auction

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/scrapline/auction-engine/internal/money"
)

var tracer = otel.Tracer("github.com/scrapline/auction-engine/internal/auction")

// PlaceBid runs one bid transaction: validate, append to the ledger, resolve
// competing auto-bids to a fixed point, then apply any anti-sniping
// extension. The steps run in that fixed order under the auction mutex; a
// rejection leaves the auction untouched. Thread-safe.
func (a *Auction) PlaceBid(ctx context.Context, bidderID string, amount money.Amount, now time.Time) (Snapshot, error) {
	ctx, span := tracer.Start(ctx, "Auction.PlaceBid",
		trace.WithAttributes(
			attribute.String("auction.id", a.ID),
			attribute.String("bidder.id", bidderID),
			attribute.String("bid.amount", amount.String()),
		),
	)
	defer span.End()

	a.mu.Lock()
	defer a.mu.Unlock()

	a.tick(now)

	if err := a.validateBid(bidderID, amount, now, false); err != nil {
		return Snapshot{}, err
	}

	switch a.Type {
	case TypeDutch:
		// First acceptance wins at the schedule price and ends the auction.
		bid := a.newBid(uuid.NewString(), bidderID, a.dutchPrice(now), now, false)
		a.applyAccepted(bid)
		a.finalize(now)

	case TypeSealed:
		bid := a.newBid(uuid.NewString(), bidderID, amount, now, false)
		a.applyAccepted(bid)
		a.maybeExtend(now, bid.ID)

	default:
		bid := a.newBid(uuid.NewString(), bidderID, amount, now, false)
		a.applyAccepted(bid)
		a.resolveAutoBids(now)
		a.maybeExtend(now, bid.ID)
	}

	slog.InfoContext(ctx, "bid accepted",
		slog.String("auction_id", a.ID),
		slog.String("bidder_id", bidderID),
		slog.String("amount", amount.String()),
		slog.String("current_price", a.CurrentPrice.String()),
	)
	return a.snapshot(), nil
}

// SetAutoBid upserts the bidder's proxy-bid ceiling and immediately resolves
// against it: a ceiling above the current price may need to act at once.
func (a *Auction) SetAutoBid(ctx context.Context, bidderID string, max money.Amount, now time.Time) (Snapshot, error) {
	ctx, span := tracer.Start(ctx, "Auction.SetAutoBid",
		trace.WithAttributes(
			attribute.String("auction.id", a.ID),
			attribute.String("bidder.id", bidderID),
			attribute.String("autobid.max", max.String()),
		),
	)
	defer span.End()

	a.mu.Lock()
	defer a.mu.Unlock()

	a.tick(now)

	if a.Type != TypeStandard && a.Type != TypeBuyItNow {
		return Snapshot{}, ErrWrongType
	}
	switch a.Status {
	case StatusEnded, StatusCancelled:
		return Snapshot{}, ErrEnded
	case StatusUpcoming:
		return Snapshot{}, ErrNotLive
	}
	if max.IsZero() {
		return Snapshot{}, ErrBelowMinimum
	}

	a.upsertCeiling(bidderID, max, now)
	before := a.ledger.Len()
	a.resolveAutoBids(now)
	if a.ledger.Len() > before {
		a.maybeExtend(now, a.ledger.Latest().ID)
	}

	slog.InfoContext(ctx, "auto-bid ceiling set",
		slog.String("auction_id", a.ID),
		slog.String("bidder_id", bidderID),
		slog.String("max", max.String()),
	)
	return a.snapshot(), nil
}

// CancelAutoBid deactivates the bidder's ceiling, if one is active.
func (a *Auction) CancelAutoBid(ctx context.Context, bidderID string, now time.Time) error {
	_, span := tracer.Start(ctx, "Auction.CancelAutoBid",
		trace.WithAttributes(
			attribute.String("auction.id", a.ID),
			attribute.String("bidder.id", bidderID),
		),
	)
	defer span.End()

	a.mu.Lock()
	defer a.mu.Unlock()

	c, ok := a.ceilings[bidderID]
	if !ok || !c.Active {
		return ErrNotFound
	}
	a.deactivateCeiling(c, "cancelled", now)
	return nil
}

// BuyItNow closes a buy_it_now auction at the fixed price. The first caller
// wins; every later attempt is rejected against the ended auction.
func (a *Auction) BuyItNow(ctx context.Context, bidderID string, now time.Time) (Snapshot, error) {
	ctx, span := tracer.Start(ctx, "Auction.BuyItNow",
		trace.WithAttributes(
			attribute.String("auction.id", a.ID),
			attribute.String("bidder.id", bidderID),
		),
	)
	defer span.End()

	a.mu.Lock()
	defer a.mu.Unlock()

	a.tick(now)

	if a.Type != TypeBuyItNow {
		return Snapshot{}, ErrWrongType
	}
	switch a.Status {
	case StatusEnded, StatusCancelled:
		return Snapshot{}, ErrEnded
	case StatusUpcoming:
		return Snapshot{}, ErrNotLive
	}

	bid := a.newBid(uuid.NewString(), bidderID, *a.BuyItNowPrice, now, false)
	a.applyAccepted(bid)
	a.finalize(now)

	slog.InfoContext(ctx, "buy-it-now accepted",
		slog.String("auction_id", a.ID),
		slog.String("bidder_id", bidderID),
		slog.String("price", a.CurrentPrice.String()),
	)
	return a.snapshot(), nil
}
