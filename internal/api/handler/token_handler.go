package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	apimw "github.com/proofhub/proof-notify/internal/api/middleware"
	"github.com/proofhub/proof-notify/internal/domain"
	"github.com/proofhub/proof-notify/internal/token"
)

// TokenHandler exposes the raw token lifecycle for callers that build their
// own flows on top of it.
type TokenHandler struct {
	tokens *token.Manager
	logger *zap.Logger
}

func NewTokenHandler(tokens *token.Manager, logger *zap.Logger) *TokenHandler {
	return &TokenHandler{tokens: tokens, logger: logger}
}

type issueTokenRequest struct {
	SubjectID  string         `json:"subject_id"`
	Purpose    domain.Purpose `json:"purpose"`
	TTLSeconds *int64         `json:"ttl_seconds,omitempty"`
	IssuedBy   *string        `json:"issued_by,omitempty"`
	Force      bool           `json:"force"`
}

type issueTokenResponse struct {
	ID        string         `json:"id"`
	Token     string         `json:"token"`
	SubjectID string         `json:"subject_id"`
	Purpose   domain.Purpose `json:"purpose"`
	ExpiresAt time.Time      `json:"expires_at"`
}

type tokenRequest struct {
	Token   string         `json:"token"`
	Purpose domain.Purpose `json:"purpose"`
}

type subjectResponse struct {
	SubjectID string `json:"subject_id"`
}

// Issue handles POST /api/v1/tokens
//
// @Summary  Issue a single-use token; the plaintext is returned only here
// @Tags     tokens
// @Accept   json
// @Produce  json
// @Success  201  {object}  issueTokenResponse
// @Failure  409  {object}  map[string]string
// @Failure  422  {object}  map[string]string
// @Router   /api/v1/tokens [post]
func (h *TokenHandler) Issue(w http.ResponseWriter, r *http.Request) {
	var req issueTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	issued, err := h.tokens.Issue(r.Context(), token.IssueRequest{
		SubjectID: req.SubjectID,
		Purpose:   req.Purpose,
		TTL:       ttlFromSeconds(req.TTLSeconds),
		IssuedBy:  req.IssuedBy,
		Force:     req.Force,
	})
	if err != nil {
		h.logger.Warn("issue token failed",
			zap.String("correlation_id", apimw.GetCorrelationID(r.Context())),
			zap.String("subject_id", req.SubjectID),
			zap.Error(err),
		)
		mapError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, issueTokenResponse{
		ID:        issued.Token.ID,
		Token:     issued.Plaintext,
		SubjectID: issued.Token.SubjectID,
		Purpose:   issued.Token.Purpose,
		ExpiresAt: issued.Token.ExpiresAt,
	})
}

// Validate handles POST /api/v1/tokens/validate
//
// @Summary  Check a token without consuming it
// @Tags     tokens
// @Accept   json
// @Produce  json
// @Success  200  {object}  subjectResponse
// @Failure  400  {object}  map[string]string
// @Failure  410  {object}  map[string]string
// @Router   /api/v1/tokens/validate [post]
func (h *TokenHandler) Validate(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	subject, err := h.tokens.Validate(r.Context(), req.Token, req.Purpose)
	if err != nil {
		mapError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, subjectResponse{SubjectID: subject})
}

// Consume handles POST /api/v1/tokens/consume
//
// @Summary  Redeem a token exactly once
// @Tags     tokens
// @Accept   json
// @Produce  json
// @Success  200  {object}  subjectResponse
// @Failure  400  {object}  map[string]string
// @Failure  410  {object}  map[string]string
// @Router   /api/v1/tokens/consume [post]
func (h *TokenHandler) Consume(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	subject, err := h.tokens.Consume(r.Context(), req.Token, req.Purpose)
	if err != nil {
		mapError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, subjectResponse{SubjectID: subject})
}

// Status handles GET /api/v1/tokens/status?subject_id=&purpose=
//
// @Summary  Latest token state for a subject
// @Tags     tokens
// @Produce  json
// @Success  200  {object}  domain.TokenStatus
// @Router   /api/v1/tokens/status [get]
func (h *TokenHandler) Status(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	subject := q.Get("subject_id")
	if subject == "" {
		respondCode(w, http.StatusUnprocessableEntity, "validation_failed", "subject_id is required")
		return
	}
	st, err := h.tokens.Status(r.Context(), subject, domain.Purpose(q.Get("purpose")))
	if err != nil {
		mapError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, st)
}
