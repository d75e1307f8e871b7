package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	apimw "github.com/proofhub/proof-notify/internal/api/middleware"
	"github.com/proofhub/proof-notify/internal/domain"
	"github.com/proofhub/proof-notify/internal/service"
)

// NotificationHandler handles the notification ledger endpoints.
type NotificationHandler struct {
	svc    *service.NotificationService
	logger *zap.Logger
}

func NewNotificationHandler(svc *service.NotificationService, logger *zap.Logger) *NotificationHandler {
	return &NotificationHandler{svc: svc, logger: logger}
}

// Create handles POST /api/v1/notifications
//
// @Summary     Queue a notification email
// @Tags        notifications
// @Accept      json
// @Produce     json
// @Param       body  body      domain.NotificationRequest  true  "Notification payload"
// @Success     201   {object}  domain.NotificationRecord
// @Failure     422   {object}  map[string]string
// @Failure     503   {object}  map[string]string
// @Router      /api/v1/notifications [post]
func (h *NotificationHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.NotificationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	rec, err := h.svc.RequestNotification(r.Context(), req)
	if err != nil {
		h.logger.Warn("create notification failed",
			zap.String("correlation_id", apimw.GetCorrelationID(r.Context())),
			zap.Error(err),
		)
		mapError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, rec)
}

// GetByID handles GET /api/v1/notifications/{id}
//
// @Summary  Get a notification's delivery status
// @Tags     notifications
// @Produce  json
// @Param    id   path      string  true  "Notification UUID"
// @Success  200  {object}  domain.NotificationRecord
// @Failure  404  {object}  map[string]string
// @Router   /api/v1/notifications/{id} [get]
func (h *NotificationHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	rec, err := h.svc.GetStatus(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		mapError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, rec)
}

// List handles GET /api/v1/notifications
//
// @Summary  List ledger rows with filtering and pagination
// @Tags     notifications
// @Produce  json
// @Param    entity_type  query     string  false  "Related entity type"
// @Param    entity_id    query     string  false  "Related entity ID"
// @Param    recipient    query     string  false  "Recipient address"
// @Param    status       query     string  false  "queued, sent or failed"
// @Param    page         query     int     false  "Page number (default 1)"
// @Param    limit        query     int     false  "Items per page (default 20, max 100)"
// @Success  200          {object}  map[string]any
// @Router   /api/v1/notifications [get]
func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	filter := parseListFilter(r)
	records, total, err := h.svc.List(r.Context(), filter)
	if err != nil {
		mapError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"data":  records,
		"total": total,
		"page":  filter.Page,
		"limit": filter.Limit,
	})
}

// Resend handles POST /api/v1/notifications/{id}/resend
//
// @Summary  Queue a new copy of an existing notification
// @Tags     notifications
// @Produce  json
// @Param    id   path      string  true  "Notification UUID"
// @Success  201  {object}  domain.NotificationRecord
// @Failure  404  {object}  map[string]string
// @Router   /api/v1/notifications/{id}/resend [post]
func (h *NotificationHandler) Resend(w http.ResponseWriter, r *http.Request) {
	rec, err := h.svc.Resend(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.logger.Warn("resend notification failed",
			zap.String("correlation_id", apimw.GetCorrelationID(r.Context())),
			zap.Error(err),
		)
		mapError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, rec)
}

func parseListFilter(r *http.Request) domain.ListFilter {
	q := r.URL.Query()
	filter := domain.ListFilter{
		Page:       1,
		Limit:      20,
		EntityType: q.Get("entity_type"),
		EntityID:   q.Get("entity_id"),
		Recipient:  q.Get("recipient"),
	}

	if p, err := strconv.Atoi(q.Get("page")); err == nil && p > 0 {
		filter.Page = p
	}
	if l, err := strconv.Atoi(q.Get("limit")); err == nil && l > 0 && l <= 100 {
		filter.Limit = l
	}
	if s := q.Get("status"); s != "" {
		st := domain.Status(s)
		filter.Status = &st
	}
	return filter
}
