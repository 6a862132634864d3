package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/notifyhub/notify-stream/internal/api/handler"
	apimw "github.com/notifyhub/notify-stream/internal/api/middleware"
	"github.com/notifyhub/notify-stream/internal/ratelimiter"
	"github.com/notifyhub/notify-stream/internal/service"
)

// NewRouter wires the chi router, attaches all middleware, and registers
// every route. It is the single source of truth for the local HTTP surface.
func NewRouter(
	svc *service.NotificationService,
	connectLimiter *ratelimiter.Limiter,
	reg prometheus.Gatherer,
	logger *zap.Logger,
) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.Recoverer)
	r.Use(chimw.RequestSize(64 << 10))
	r.Use(apimw.CorrelationID)
	r.Use(apimw.RequestLogger(logger))

	nh := handler.NewNotificationHandler(svc, logger)
	ch := handler.NewConnectionHandler(svc, logger)
	mh := handler.NewMetricsHandler(svc)
	hh := handler.NewHealthHandler()

	r.Get("/health", hh.Health)
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/notifications", nh.List)
		r.Post("/notifications/{id}/read", nh.MarkRead)

		// Each connect is a dial to the remote service.
		r.With(connectLimiter.Middleware).Post("/connection", ch.Connect)
		r.Get("/connection", ch.Status)
		r.Delete("/connection", ch.Disconnect)

		r.Get("/metrics", mh.GetMetrics)
	})

	return r
}
