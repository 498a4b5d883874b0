package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/scrapline/auction-engine/internal/money"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// decode parses the request body into v. On failure it writes a 400 response
// and returns false.
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func parseOptionalAmount(s *string) (*money.Amount, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	a, err := money.Parse(*s)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func parseOptionalDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	return time.ParseDuration(s)
}
