package handler

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/proofhub/proof-notify/internal/domain"
)

type errorBody struct {
	Error     string     `json:"error"`
	Code      string     `json:"code,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, errorBody{Error: msg})
}

func respondCode(w http.ResponseWriter, status int, code, msg string) {
	respondJSON(w, status, errorBody{Error: msg, Code: code})
}

// mapError translates domain sentinel errors to HTTP status codes.
// All mapping lives here so individual handlers stay concise.
func mapError(w http.ResponseWriter, err error) {
	var dup *domain.DuplicateTokenError
	switch {
	case errors.As(err, &dup):
		expires := dup.ExpiresAt
		respondJSON(w, http.StatusConflict, errorBody{
			Error:     domain.ErrDuplicateToken.Error(),
			Code:      "duplicate_token",
			ExpiresAt: &expires,
		})
	case errors.Is(err, domain.ErrNotFound):
		respondCode(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, domain.ErrTokenExpired):
		respondCode(w, http.StatusGone, "token_expired", domain.ErrTokenExpired.Error())
	case errors.Is(err, domain.ErrTokenInvalid):
		// Same message whether the token never existed, was consumed or
		// belongs to another purpose.
		respondCode(w, http.StatusBadRequest, "token_invalid", domain.ErrTokenInvalid.Error())
	case errors.Is(err, domain.ErrInvalidRecipient),
		errors.Is(err, domain.ErrInvalidRequest),
		errors.Is(err, domain.ErrInvalidPurpose),
		errors.Is(err, domain.ErrUnknownTemplate):
		respondCode(w, http.StatusUnprocessableEntity, "validation_failed", err.Error())
	case errors.Is(err, domain.ErrConfiguration):
		respondCode(w, http.StatusServiceUnavailable, "mail_not_configured", err.Error())
	case errors.Is(err, domain.ErrQueueFull):
		respondCode(w, http.StatusServiceUnavailable, "queue_full", err.Error())
	case errors.Is(err, domain.ErrQueueClosed):
		respondCode(w, http.StatusServiceUnavailable, "queue_closed", err.Error())
	case errors.Is(err, domain.ErrThrottled):
		respondCode(w, http.StatusTooManyRequests, "throttled", err.Error())
	default:
		respondError(w, http.StatusInternalServerError, "internal server error")
	}
}

// clientMeta prefers the values forwarded by the calling application and
// falls back to the connection itself.
func clientMeta(r *http.Request, forwarded domain.ClientMeta) domain.ClientMeta {
	meta := forwarded
	if meta.IP == "" {
		meta.IP = r.RemoteAddr
		if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
			meta.IP = host
		}
	}
	if meta.UserAgent == "" {
		meta.UserAgent = r.UserAgent()
	}
	return meta
}

func ttlFromSeconds(secs *int64) *time.Duration {
	if secs == nil {
		return nil
	}
	d := time.Duration(*secs) * time.Second
	return &d
}
