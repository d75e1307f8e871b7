package handler

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/proofhub/proof-notify/internal/queue"
)

// MetricsHandler serves a human-readable JSON queue snapshot.
// Raw Prometheus metrics (counters, histograms) are available at /metrics
// via promhttp.Handler and are separate from this endpoint.
type MetricsHandler struct {
	q       *queue.Queue
	workers int
	depth   prometheus.Gauge
}

// NewMetricsHandler builds the snapshot handler. depth may be nil; when set
// it is refreshed on every call.
func NewMetricsHandler(q *queue.Queue, workers int, depth prometheus.Gauge) *MetricsHandler {
	return &MetricsHandler{q: q, workers: workers, depth: depth}
}

// GetMetrics handles GET /api/v1/metrics
//
// @Summary  Real-time queue depth snapshot
// @Tags     metrics
// @Produce  json
// @Success  200  {object}  map[string]any
// @Router   /api/v1/metrics [get]
func (h *MetricsHandler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	depth := h.q.Depth()
	if h.depth != nil {
		h.depth.Set(float64(depth))
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"queue": map[string]int{
			"depth":    depth,
			"capacity": h.q.Capacity(),
		},
		"workers": h.workers,
	})
}
