package handler

import (
	"encoding/json"
	"math"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	apimw "github.com/proofhub/proof-notify/internal/api/middleware"
	"github.com/proofhub/proof-notify/internal/audit"
	"github.com/proofhub/proof-notify/internal/domain"
	"github.com/proofhub/proof-notify/internal/service"
)

// AccessHandler serves the customer invite, password reset and login
// bookkeeping endpoints.
type AccessHandler struct {
	access   *service.AccessService
	recorder *audit.Recorder
	logger   *zap.Logger
}

func NewAccessHandler(access *service.AccessService, recorder *audit.Recorder, logger *zap.Logger) *AccessHandler {
	return &AccessHandler{access: access, recorder: recorder, logger: logger}
}

type inviteRequest struct {
	CustomerID    string            `json:"customer_id"`
	PrincipalID   *string           `json:"principal_id,omitempty"`
	TTLSeconds    *int64            `json:"ttl_seconds,omitempty"`
	Force         bool              `json:"force"`
	SuppressEmail bool              `json:"suppress_email"`
	Client        domain.ClientMeta `json:"client"`
}

type redeemRequest struct {
	Token  string            `json:"token"`
	Client domain.ClientMeta `json:"client"`
}

type resetRequest struct {
	Email  string            `json:"email"`
	Client domain.ClientMeta `json:"client"`
}

type loginEventRequest struct {
	SubjectID string            `json:"subject_id"`
	Success   bool              `json:"success"`
	Client    domain.ClientMeta `json:"client"`
}

type throttleResponse struct {
	Locked            bool `json:"locked"`
	RetryAfterSeconds int  `json:"retry_after_seconds,omitempty"`
}

func toThrottleResponse(out audit.LoginOutcome) throttleResponse {
	return throttleResponse{
		Locked:            out.Locked,
		RetryAfterSeconds: int(math.Ceil(out.RetryAfter.Seconds())),
	}
}

// Invite handles POST /api/v1/invites
//
// @Summary  Issue a customer invite and queue the invite email
// @Tags     access
// @Accept   json
// @Produce  json
// @Success  201  {object}  service.InviteResult
// @Failure  404  {object}  map[string]string
// @Failure  409  {object}  map[string]string
// @Router   /api/v1/invites [post]
func (h *AccessHandler) Invite(w http.ResponseWriter, r *http.Request) {
	var req inviteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	res, err := h.access.SendInvite(r.Context(), service.InviteRequest{
		CustomerID:    req.CustomerID,
		PrincipalID:   req.PrincipalID,
		TTL:           ttlFromSeconds(req.TTLSeconds),
		Force:         req.Force,
		SuppressEmail: req.SuppressEmail,
		Meta:          clientMeta(r, req.Client),
	})
	if err != nil {
		h.logger.Warn("send invite failed",
			zap.String("correlation_id", apimw.GetCorrelationID(r.Context())),
			zap.String("customer_id", req.CustomerID),
			zap.Error(err),
		)
		mapError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, res)
}

// AcceptInvite handles POST /api/v1/invites/accept
//
// @Summary  Redeem an invite token
// @Tags     access
// @Accept   json
// @Produce  json
// @Success  200  {object}  subjectResponse
// @Failure  400  {object}  map[string]string
// @Failure  410  {object}  map[string]string
// @Router   /api/v1/invites/accept [post]
func (h *AccessHandler) AcceptInvite(w http.ResponseWriter, r *http.Request) {
	h.redeem(w, r, domain.PurposeInvite)
}

// RequestReset handles POST /api/v1/password-resets
//
// @Summary  Start a password reset; the response never reveals whether the address exists
// @Tags     access
// @Accept   json
// @Success  202
// @Failure  422  {object}  map[string]string
// @Router   /api/v1/password-resets [post]
func (h *AccessHandler) RequestReset(w http.ResponseWriter, r *http.Request) {
	var req resetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := h.access.RequestPasswordReset(r.Context(), req.Email, clientMeta(r, req.Client)); err != nil {
		mapError(w, err)
		return
	}
	respondJSON(w, http.StatusAccepted, map[string]string{
		"status": "If an account exists for that address, a reset link is on its way.",
	})
}

// CompleteReset handles POST /api/v1/password-resets/complete
//
// @Summary  Redeem a password reset token
// @Tags     access
// @Accept   json
// @Produce  json
// @Success  200  {object}  subjectResponse
// @Failure  400  {object}  map[string]string
// @Failure  410  {object}  map[string]string
// @Router   /api/v1/password-resets/complete [post]
func (h *AccessHandler) CompleteReset(w http.ResponseWriter, r *http.Request) {
	h.redeem(w, r, domain.PurposeReset)
}

func (h *AccessHandler) redeem(w http.ResponseWriter, r *http.Request, purpose domain.Purpose) {
	var req redeemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	subject, err := h.access.Redeem(r.Context(), req.Token, purpose, clientMeta(r, req.Client))
	if err != nil {
		mapError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, subjectResponse{SubjectID: subject})
}

// LoginEvent handles POST /api/v1/login-events
//
// @Summary  Record a login outcome and return the caller IP's throttle state
// @Tags     access
// @Accept   json
// @Produce  json
// @Success  200  {object}  throttleResponse
// @Router   /api/v1/login-events [post]
func (h *AccessHandler) LoginEvent(w http.ResponseWriter, r *http.Request) {
	var req loginEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	out, err := h.recorder.RecordLogin(r.Context(), req.SubjectID, req.Success, clientMeta(r, req.Client))
	if err != nil {
		h.logger.Error("record login event failed",
			zap.String("correlation_id", apimw.GetCorrelationID(r.Context())),
			zap.Error(err),
		)
		mapError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, toThrottleResponse(out))
}

// LoginThrottle handles GET /api/v1/login-throttle?ip=
//
// @Summary  Check whether an IP may attempt a login
// @Tags     access
// @Produce  json
// @Success  200  {object}  throttleResponse
// @Failure  429  {object}  map[string]string
// @Router   /api/v1/login-throttle [get]
func (h *AccessHandler) LoginThrottle(w http.ResponseWriter, r *http.Request) {
	out := h.recorder.Throttled(r.URL.Query().Get("ip"))
	if out.Locked {
		w.Header().Set("Retry-After", strconv.Itoa(toThrottleResponse(out).RetryAfterSeconds))
		mapError(w, domain.ErrThrottled)
		return
	}
	respondJSON(w, http.StatusOK, toThrottleResponse(out))
}

// Events handles GET /api/v1/auth-events?subject_id=&limit=
//
// @Summary  Recent audit events for a subject, newest first
// @Tags     access
// @Produce  json
// @Success  200  {object}  map[string]any
// @Router   /api/v1/auth-events [get]
func (h *AccessHandler) Events(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	subject := q.Get("subject_id")
	if subject == "" {
		respondCode(w, http.StatusUnprocessableEntity, "validation_failed", "subject_id is required")
		return
	}
	limit, _ := strconv.Atoi(q.Get("limit"))
	events, err := h.recorder.Events(r.Context(), subject, limit)
	if err != nil {
		mapError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"data": events})
}
