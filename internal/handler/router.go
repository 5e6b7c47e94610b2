package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/pinflow/internal/metrics"
	"github.com/hitoshi/pinflow/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	Health   HealthChecker
	Stats    StatsProvider
	Records  RecordLister
	Schedule ScheduleProvider
	Logger   *slog.Logger
	Gatherer prometheus.Gatherer
}

// NewRouter は運用APIのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RecoveryMiddleware → LoggingMiddleware
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewLoggingMiddleware(deps.Logger))

	h := NewStatusHandler(deps.Health, deps.Stats, deps.Records, deps.Schedule)

	r.Get("/health", h.Health)

	r.Route("/api", func(r chi.Router) {
		r.Get("/stats", h.Stats)
		r.Get("/records/recent", h.RecentRecords)
		r.Get("/schedule", h.Schedule)
	})

	if deps.Gatherer != nil {
		r.Handle("/metrics", metrics.Handler(deps.Gatherer))
	}

	return r
}
