package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	apimw "github.com/proofhub/proof-notify/internal/api/middleware"
	"github.com/proofhub/proof-notify/internal/service"
)

// PrincipalHandler serves per-principal SMTP maintenance endpoints.
type PrincipalHandler struct {
	check  *service.SMTPCheckService
	logger *zap.Logger
}

func NewPrincipalHandler(check *service.SMTPCheckService, logger *zap.Logger) *PrincipalHandler {
	return &PrincipalHandler{check: check, logger: logger}
}

type smtpTestRequest struct {
	Recipient string `json:"recipient"`
}

// SMTPTest handles POST /api/v1/principals/{id}/smtp-test
//
// A failed send still answers 200; the outcome is in the status field.
//
// @Summary  Send a test message through the principal's own SMTP settings
// @Tags     principals
// @Accept   json
// @Produce  json
// @Param    id   path      string  true  "Principal ID"
// @Success  200  {object}  domain.SMTPTestResult
// @Failure  404  {object}  map[string]string
// @Failure  422  {object}  map[string]string
// @Router   /api/v1/principals/{id}/smtp-test [post]
func (h *PrincipalHandler) SMTPTest(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req smtpTestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	res, err := h.check.Check(r.Context(), id, req.Recipient)
	if err != nil {
		h.logger.Warn("smtp test request failed",
			zap.String("correlation_id", apimw.GetCorrelationID(r.Context())),
			zap.String("principal_id", id),
			zap.Error(err),
		)
		mapError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}
