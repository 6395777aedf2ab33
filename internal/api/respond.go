package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/trogers1052/trade-ledger/internal/apperrors"
	"github.com/trogers1052/trade-ledger/internal/tenant"
)

// UserHeader carries the authenticated user id, set by the session layer in
// front of this service.
const UserHeader = "X-User-ID"

type tenantKey struct{}

// requireTenant resolves the tenant from UserHeader and rejects requests
// without one
func requireTenant(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tn, err := tenant.Parse(r.Header.Get(UserHeader))
		if err != nil {
			writeError(w, err)
			return
		}
		ctx := context.WithValue(r.Context(), tenantKey{}, tn)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// tenantFrom returns the tenant stored by requireTenant, or the zero tenant
// which every ledger call rejects
func tenantFrom(r *http.Request) tenant.Tenant {
	tn, _ := r.Context().Value(tenantKey{}).(tenant.Tenant)
	return tn
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Error("failed to encode response", "err", err)
		}
	}
}

type errorResponse struct {
	Error  string                 `json:"error"`
	Errors []apperrors.FieldError `json:"errors,omitempty"`
}

// writeError maps the ledger error taxonomy onto HTTP status codes
func writeError(w http.ResponseWriter, err error) {
	var v *apperrors.ValidationError
	switch {
	case errors.As(err, &v):
		respondJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: "validation failed", Errors: v.Fields})
	case errors.Is(err, apperrors.ErrNoTenant):
		respondJSON(w, http.StatusUnauthorized, errorResponse{Error: err.Error()})
	case errors.Is(err, apperrors.ErrNotFound):
		respondJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
	case errors.Is(err, apperrors.ErrInvariantViolation):
		respondJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
	default:
		slog.Error("request failed", "err", err)
		respondJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}

func badRequest(w http.ResponseWriter, msg string) {
	respondJSON(w, http.StatusBadRequest, errorResponse{Error: msg})
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		badRequest(w, "invalid request body")
		return false
	}
	return true
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)[name], 10, 64)
	if err != nil || id <= 0 {
		badRequest(w, "invalid "+name)
		return 0, false
	}
	return id, true
}

func queryInt64(r *http.Request, name string) (int64, error) {
	s := r.URL.Query().Get(name)
	if s == "" {
		return 0, nil
	}
	return strconv.ParseInt(s, 10, 64)
}

func queryDate(r *http.Request, name string) (*time.Time, error) {
	s := r.URL.Query().Get(name)
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
