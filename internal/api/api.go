// Package api exposes the auction engine over HTTP.
//
// Callers are identified by the X-User-ID header; authentication itself is
// terminated upstream (gateway), so the handlers only require the header to
// be present.
package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/scrapline/auction-engine/internal/auction"
	"github.com/scrapline/auction-engine/internal/store"
)

type ctxKey int

const userIDKey ctxKey = 0

// Handler contains dependencies for HTTP handlers.
type Handler struct {
	engine *auction.Engine
	repos  *store.Repositories
	logger *slog.Logger
}

// NewHandler creates a new Handler.
func NewHandler(engine *auction.Engine, repos *store.Repositories, logger *slog.Logger) *Handler {
	return &Handler{engine: engine, repos: repos, logger: logger}
}

// Router builds the HTTP route tree.
func (h *Handler) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Route("/v1", func(r chi.Router) {
		r.Use(h.requireUser)

		r.Route("/auctions", func(r chi.Router) {
			r.Post("/", h.createAuction)
			r.Get("/", h.listAuctions)

			r.Route("/{auctionID}", func(r chi.Router) {
				r.Get("/", h.getAuction)
				r.Post("/cancel", h.cancelAuction)
				r.Get("/bids", h.listBids)
				r.Post("/bids", h.placeBid)
				r.Put("/autobid", h.setAutoBid)
				r.Delete("/autobid", h.cancelAutoBid)
				r.Post("/buy", h.buyItNow)
				r.Put("/watch", h.watch)
				r.Delete("/watch", h.unwatch)
			})
		})

		r.Route("/me", func(r chi.Router) {
			r.Get("/auctions", h.myAuctions)
			r.Get("/bids", h.myBids)
			r.Get("/watchlist", h.myWatchlist)
		})
	})

	return r
}

// requireUser extracts the caller identity from the X-User-ID header.
func (h *Handler) requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := r.Header.Get("X-User-ID")
		if userID == "" {
			writeError(w, http.StatusUnauthorized, "X-User-ID header required")
			return
		}
		ctx := context.WithValue(r.Context(), userIDKey, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func userID(ctx context.Context) string {
	id, _ := ctx.Value(userIDKey).(string)
	return id
}
