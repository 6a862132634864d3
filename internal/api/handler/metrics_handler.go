package handler

import (
	"net/http"

	"github.com/notifyhub/notify-stream/internal/service"
)

// MetricsHandler serves a human-readable JSON inbox snapshot.
// Raw Prometheus metrics are available at /metrics via promhttp.
type MetricsHandler struct {
	svc *service.NotificationService
}

func NewMetricsHandler(svc *service.NotificationService) *MetricsHandler {
	return &MetricsHandler{svc: svc}
}

// GetMetrics handles GET /api/v1/metrics
func (h *MetricsHandler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	stats := h.svc.Stats()
	respondJSON(w, http.StatusOK, map[string]any{
		"inbox": map[string]int{
			"total":  stats.Total,
			"unread": stats.Unread,
			"read":   stats.Total - stats.Unread,
		},
		"connected": h.svc.Status().Connected,
	})
}
