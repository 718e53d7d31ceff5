package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"ms-registration/internal/auth"
	"ms-registration/internal/logger"
	"ms-registration/internal/metrics"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const apiKeyHeader = "x-api-key"

type RouterOptions struct {
	Verifier      auth.Verifier
	WebhookAPIKey string
	AdminAPIKey   string
	Logger        *logger.Logger
}

func NewRouter(h *Handler, opts RouterOptions) http.Handler {
	l := opts.Logger
	if l == nil {
		l = h.Logger
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(l))

	r.Get("/health", Health)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.With(auth.APIKey(apiKeyHeader, opts.WebhookAPIKey, l)).Post("/{event}/webhook", h.Webhook)
		r.With(auth.APIKey(apiKeyHeader, opts.AdminAPIKey, l)).Post("/admin/reconcile-counters/{event}", h.ReconcileCounters)

		r.Group(func(r chi.Router) {
			r.Use(auth.Middleware(opts.Verifier, l))
			r.Get("/{event}/counters", h.GetCounters)
			r.Get("/{event}/phone/{phone}", h.GetByPhone)
			r.Get("/{event}/{email}", h.GetParticipant)
			r.Put("/{event}/{email}", h.CheckIn)
			r.Delete("/{event}/{email}", h.CancelCheckIn)
			r.Put("/{event}/{email}/payment", h.ConfirmPayment)
			r.Post("/{event}/{email}/email/{template}", h.ResendEmail)
		})
	})

	r.Route("/v2", func(r chi.Router) {
		r.Use(auth.Middleware(opts.Verifier, l))
		r.Put("/{event}/{email}", h.UpdateParticipant)
		r.Put("/{event}/{email}/checkin", h.CheckIn)
		r.Delete("/{event}/{email}/checkin", h.CancelCheckIn)
	})

	return r
}

func requestLogger(l *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			duration := time.Since(start)
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, strconv.Itoa(status)).Observe(duration.Seconds())
			l.LogAPI(r.Method, r.URL.Path, fmt.Sprintf("%d", status), duration.String())
		})
	}
}
