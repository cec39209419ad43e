package handlers

import (
	"net/http"
	"strconv"
	"time"

	"productshot/internal/domain"
)

type ledgerEntryResponse struct {
	ID        string    `json:"id"`
	Delta     int64     `json:"delta"`
	Reason    string    `json:"reason"`
	RefType   string    `json:"ref_type,omitempty"`
	RefID     string    `json:"ref_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Credits returns the caller's balance and most recent ledger entries.
func (a *App) Credits(w http.ResponseWriter, r *http.Request) {
	userID := a.requireUser(w, r)
	if userID == "" {
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	balance, err := a.Ledger.Balance(r.Context(), userID)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	entries, err := a.Ledger.Entries(r.Context(), userID, limit)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	items := make([]ledgerEntryResponse, 0, len(entries))
	for _, e := range entries {
		items = append(items, newLedgerEntryResponse(e))
	}
	a.json(w, http.StatusOK, map[string]any{"balance": balance, "entries": items})
}

func newLedgerEntryResponse(e domain.LedgerEntry) ledgerEntryResponse {
	return ledgerEntryResponse{
		ID:        e.ID,
		Delta:     e.Delta,
		Reason:    string(e.Reason),
		RefType:   e.RefType,
		RefID:     e.RefID,
		CreatedAt: e.CreatedAt,
	}
}

// Usage reports both rate-limit windows without consuming capacity.
func (a *App) Usage(w http.ResponseWriter, r *http.Request) {
	userID := a.requireUser(w, r)
	if userID == "" {
		return
	}
	decision, err := a.Limiter.Peek(r.Context(), userID)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, decision)
}
