package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"productshot/internal/domain"
	"productshot/internal/infra"
	"productshot/internal/ledger"
	"productshot/internal/middleware"
	"productshot/internal/orchestrator"
	"productshot/internal/ratelimit"
	"productshot/internal/storage"
)

// Pinger reports whether the relational store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// App carries the collaborators shared by all handlers.
type App struct {
	Config       *infra.Config
	Logger       zerolog.Logger
	Orchestrator *orchestrator.Orchestrator
	Assets       domain.AssetRepository
	Ledger       *ledger.Ledger
	Limiter      *ratelimit.Limiter
	Store        storage.ObjectStore
	// Files is set when the filesystem driver serves signed downloads.
	Files *storage.FileStore
	DB    Pinger
	Now   func() time.Time
}

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

func (a *App) now() time.Time {
	if a.Now != nil {
		return a.Now()
	}
	return time.Now()
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, errCode, message string) {
	a.errorWithDetails(w, code, errCode, message, nil)
}

func (a *App) errorWithDetails(w http.ResponseWriter, code int, errCode, message string, details map[string]any) {
	a.json(w, code, errorBody{Error: errorDetail{Code: errCode, Message: message, Details: details}})
}

// fail maps a domain error onto its HTTP status and error code.
func (a *App) fail(w http.ResponseWriter, r *http.Request, err error) {
	var rle *domain.RateLimitError
	var ice *domain.InsufficientCreditsError
	switch {
	case errors.As(err, &rle):
		retry := int(math.Ceil(rle.ResetAt.Sub(a.now()).Seconds()))
		if retry < 1 {
			retry = 1
		}
		w.Header().Set("Retry-After", strconv.Itoa(retry))
		a.errorWithDetails(w, http.StatusTooManyRequests, "rate_limited", rle.Error(), map[string]any{
			"window":   rle.Window,
			"limit":    rle.Limit,
			"reset_at": rle.ResetAt,
		})
	case errors.As(err, &ice):
		a.errorWithDetails(w, http.StatusPaymentRequired, "insufficient_credits", "not enough credits for this generation", map[string]any{
			"balance":  ice.Balance,
			"required": ice.Required,
		})
	case errors.Is(err, domain.ErrInvalidInput):
		a.error(w, http.StatusBadRequest, "invalid_input", err.Error())
	case errors.Is(err, domain.ErrNotFound):
		a.error(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, domain.ErrForbidden):
		a.error(w, http.StatusForbidden, "forbidden", err.Error())
	case errors.Is(err, domain.ErrUnauthorized):
		a.error(w, http.StatusUnauthorized, "unauthorized", err.Error())
	default:
		a.Logger.Error().Err(err).
			Str("request_id", middleware.RequestIDFromContext(r.Context())).
			Str("path", r.URL.Path).
			Msg("request failed")
		a.error(w, http.StatusInternalServerError, "internal", "internal error")
	}
}

func (a *App) currentUserID(r *http.Request) string {
	return middleware.UserIDFromContext(r.Context())
}

// requireUser writes a 401 and returns "" when the request is anonymous.
func (a *App) requireUser(w http.ResponseWriter, r *http.Request) string {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
	}
	return userID
}
