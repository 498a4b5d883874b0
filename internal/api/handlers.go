package api

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/scrapline/auction-engine/internal/auction"
	"github.com/scrapline/auction-engine/internal/money"
)

type createAuctionRequest struct {
	Type            string  `json:"type"`
	StartingPrice   string  `json:"starting_price"`
	ReservePrice    *string `json:"reserve_price,omitempty"`
	BuyItNowPrice   *string `json:"buy_it_now_price,omitempty"`
	IncrementAmount string  `json:"increment_amount,omitempty"`

	DecrementAmount   string `json:"decrement_amount,omitempty"`
	DecrementInterval string `json:"decrement_interval,omitempty"`
	MinimumPrice      string `json:"minimum_price,omitempty"`

	StartTime     time.Time `json:"start_time"`
	EndTime       time.Time `json:"end_time"`
	TimeExtension string    `json:"time_extension,omitempty"`
}

func (h *Handler) createAuction(w http.ResponseWriter, r *http.Request) {
	var req createAuctionRequest
	if !decode(w, r, &req) {
		return
	}

	cfg := auction.Config{
		Type:      auction.Type(req.Type),
		SellerID:  userID(r.Context()),
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
	}

	var err error
	if cfg.StartingPrice, err = money.Parse(req.StartingPrice); err != nil {
		writeError(w, http.StatusBadRequest, "invalid starting_price")
		return
	}
	if cfg.ReservePrice, err = parseOptionalAmount(req.ReservePrice); err != nil {
		writeError(w, http.StatusBadRequest, "invalid reserve_price")
		return
	}
	if cfg.BuyItNowPrice, err = parseOptionalAmount(req.BuyItNowPrice); err != nil {
		writeError(w, http.StatusBadRequest, "invalid buy_it_now_price")
		return
	}
	if req.IncrementAmount != "" {
		if cfg.IncrementAmount, err = money.Parse(req.IncrementAmount); err != nil {
			writeError(w, http.StatusBadRequest, "invalid increment_amount")
			return
		}
	}
	if req.DecrementAmount != "" {
		if cfg.DecrementAmount, err = money.Parse(req.DecrementAmount); err != nil {
			writeError(w, http.StatusBadRequest, "invalid decrement_amount")
			return
		}
	}
	if req.MinimumPrice != "" {
		if cfg.MinimumPrice, err = money.Parse(req.MinimumPrice); err != nil {
			writeError(w, http.StatusBadRequest, "invalid minimum_price")
			return
		}
	}
	if cfg.DecrementInterval, err = parseOptionalDuration(req.DecrementInterval); err != nil {
		writeError(w, http.StatusBadRequest, "invalid decrement_interval")
		return
	}
	if cfg.TimeExtension, err = parseOptionalDuration(req.TimeExtension); err != nil {
		writeError(w, http.StatusBadRequest, "invalid time_extension")
		return
	}

	snap, err := h.engine.CreateAuction(r.Context(), cfg)
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, snap)
}

func (h *Handler) listAuctions(w http.ResponseWriter, r *http.Request) {
	snaps := h.engine.List(r.Context())
	if status := r.URL.Query().Get("status"); status != "" {
		filtered := snaps[:0]
		for _, s := range snaps {
			if s.Status == auction.Status(status) {
				filtered = append(filtered, s)
			}
		}
		snaps = filtered
	}
	writeJSON(w, http.StatusOK, map[string]any{"auctions": snaps})
}

func (h *Handler) getAuction(w http.ResponseWriter, r *http.Request) {
	snap, err := h.engine.Get(r.Context(), chi.URLParam(r, "auctionID"))
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (h *Handler) cancelAuction(w http.ResponseWriter, r *http.Request) {
	auctionID := chi.URLParam(r, "auctionID")
	caller := userID(r.Context())

	snap, err := h.engine.Get(r.Context(), auctionID)
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}
	if snap.SellerID != caller {
		writeError(w, http.StatusForbidden, "only the seller can cancel an auction")
		return
	}

	if err := h.engine.Cancel(r.Context(), auctionID, caller); err != nil {
		h.writeEngineError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// listBids returns the bid ledger. For a sealed auction that has not yet
// ended, only the caller's own bids are returned; everyone else's stay
// sealed until settlement.
func (h *Handler) listBids(w http.ResponseWriter, r *http.Request) {
	auctionID := chi.URLParam(r, "auctionID")

	snap, err := h.engine.Get(r.Context(), auctionID)
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}
	bids, err := h.engine.History(r.Context(), auctionID)
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}

	sealed := snap.Type == auction.TypeSealed &&
		snap.Status != auction.StatusEnded && snap.Status != auction.StatusCancelled
	if sealed {
		caller := userID(r.Context())
		own := bids[:0:0]
		for _, b := range bids {
			if b.BidderID == caller {
				own = append(own, b)
			}
		}
		bids = own
	}
	if bids == nil {
		bids = []auction.Bid{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"bids": bids})
}

type bidRequest struct {
	Amount string `json:"amount"`
}

func (h *Handler) placeBid(w http.ResponseWriter, r *http.Request) {
	var req bidRequest
	if !decode(w, r, &req) {
		return
	}
	amount, err := money.Parse(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid amount")
		return
	}

	snap, err := h.engine.PlaceBid(r.Context(), chi.URLParam(r, "auctionID"), userID(r.Context()), amount)
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

type autoBidRequest struct {
	MaxAmount string `json:"max_amount"`
}

func (h *Handler) setAutoBid(w http.ResponseWriter, r *http.Request) {
	var req autoBidRequest
	if !decode(w, r, &req) {
		return
	}
	max, err := money.Parse(req.MaxAmount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid max_amount")
		return
	}

	snap, err := h.engine.SetAutoBid(r.Context(), chi.URLParam(r, "auctionID"), userID(r.Context()), max)
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (h *Handler) cancelAutoBid(w http.ResponseWriter, r *http.Request) {
	err := h.engine.CancelAutoBid(r.Context(), chi.URLParam(r, "auctionID"), userID(r.Context()))
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) buyItNow(w http.ResponseWriter, r *http.Request) {
	snap, err := h.engine.BuyItNow(r.Context(), chi.URLParam(r, "auctionID"), userID(r.Context()))
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (h *Handler) watch(w http.ResponseWriter, r *http.Request) {
	auctionID := chi.URLParam(r, "auctionID")
	caller := userID(r.Context())

	if err := h.engine.Watch(r.Context(), auctionID, caller); err != nil {
		h.writeEngineError(w, r, err)
		return
	}
	if h.repos != nil {
		if err := h.repos.Watchlists.Add(r.Context(), auctionID, caller); err != nil {
			h.logger.ErrorContext(r.Context(), "failed to persist watch",
				slog.String("auction_id", auctionID), slog.Any("error", err))
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) unwatch(w http.ResponseWriter, r *http.Request) {
	auctionID := chi.URLParam(r, "auctionID")
	caller := userID(r.Context())

	if err := h.engine.Unwatch(r.Context(), auctionID, caller); err != nil {
		h.writeEngineError(w, r, err)
		return
	}
	if h.repos != nil {
		if err := h.repos.Watchlists.Remove(r.Context(), auctionID, caller); err != nil {
			h.logger.ErrorContext(r.Context(), "failed to remove watch",
				slog.String("auction_id", auctionID), slog.Any("error", err))
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) myAuctions(w http.ResponseWriter, r *http.Request) {
	records, err := h.repos.Auctions.ListBySeller(r.Context(), userID(r.Context()))
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"auctions": records})
}

func (h *Handler) myBids(w http.ResponseWriter, r *http.Request) {
	records, err := h.repos.Bids.ListByBidder(r.Context(), userID(r.Context()))
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"bids": records})
}

func (h *Handler) myWatchlist(w http.ResponseWriter, r *http.Request) {
	records, err := h.repos.Watchlists.ListByUser(r.Context(), userID(r.Context()))
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"watchlist": records})
}

// writeEngineError maps auction errors to HTTP statuses.
func (h *Handler) writeEngineError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, auction.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, auction.ErrInvalidConfig), errors.Is(err, auction.ErrWrongType):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, auction.ErrBelowMinimum), errors.Is(err, auction.ErrSelfBid):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, auction.ErrNotLive), errors.Is(err, auction.ErrEnded),
		errors.Is(err, auction.ErrCannotCancel):
		writeError(w, http.StatusConflict, err.Error())
	default:
		h.logger.ErrorContext(r.Context(), "request failed",
			slog.String("path", r.URL.Path), slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func (h *Handler) writeStoreError(w http.ResponseWriter, r *http.Request, err error) {
	h.logger.ErrorContext(r.Context(), "store query failed",
		slog.String("path", r.URL.Path), slog.Any("error", err))
	writeError(w, http.StatusInternalServerError, "internal error")
}
