package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/hitoshi/pinflow/internal/model"
)

// defaultRecentLimit は投稿履歴一覧の既定取得件数。
const defaultRecentLimit = 20

// HealthChecker はDB疎通確認のインターフェース。
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// StatsProvider は投稿統計を返すインターフェース。
type StatsProvider interface {
	Stats(ctx context.Context) *model.Stats
}

// RecordLister は直近の投稿記録を返すインターフェース。
type RecordLister interface {
	ListRecent(ctx context.Context, limit int) []*model.PostRecord
}

// ScheduleProvider は投稿スケジュールの参照インターフェース。
type ScheduleProvider interface {
	NextPostingTime() time.Time
	DailyTargetTimes() []time.Time
	ScheduleSummary() string
}

// StatusHandler は運用状態参照のHTTPハンドラー。
type StatusHandler struct {
	health   HealthChecker
	stats    StatsProvider
	records  RecordLister
	schedule ScheduleProvider
}

// NewStatusHandler はStatusHandlerを生成する。
func NewStatusHandler(health HealthChecker, stats StatsProvider, records RecordLister, schedule ScheduleProvider) *StatusHandler {
	return &StatusHandler{
		health:   health,
		stats:    stats,
		records:  records,
		schedule: schedule,
	}
}

// --- レスポンス型 ---

// healthResponse はヘルスチェックのレスポンス。
type healthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
}

// recordResponse は投稿記録のレスポンス。
type recordResponse struct {
	ID            string    `json:"id"`
	ASIN          string    `json:"asin"`
	Title         string    `json:"title"`
	Price         float64   `json:"price"`
	AffiliateLink string    `json:"affiliate_link"`
	Keyword       string    `json:"keyword"`
	PinCreated    bool      `json:"pin_created"`
	PostedAt      time.Time `json:"posted_at"`
}

// scheduleResponse は投稿スケジュールのレスポンス。
type scheduleResponse struct {
	Summary      string      `json:"summary"`
	NextPostAt   time.Time   `json:"next_post_at"`
	TodayTargets []time.Time `json:"today_targets"`
}

// Health はDB疎通を含むヘルスチェック結果を返す。
// DBなしで起動した場合（メモリ退避運用）は degraded を返す。
func (h *StatusHandler) Health(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok", Database: "ok"}
	status := http.StatusOK

	if h.health == nil {
		resp = healthResponse{Status: "degraded", Database: "unavailable"}
		status = http.StatusServiceUnavailable
	} else if err := h.health.PingContext(r.Context()); err != nil {
		resp = healthResponse{Status: "degraded", Database: "unreachable"}
		status = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(resp)
}

// Stats は投稿統計を返す。
func (h *StatusHandler) Stats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(h.stats.Stats(r.Context()))
}

// RecentRecords は直近の投稿記録を返す。limitクエリで件数を指定できる。
func (h *StatusHandler) RecentRecords(w http.ResponseWriter, r *http.Request) {
	limit := defaultRecentLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			http.Error(w, "invalid limit parameter", http.StatusBadRequest)
			return
		}
		limit = parsed
	}

	records := h.records.ListRecent(r.Context(), limit)
	resp := make([]recordResponse, 0, len(records))
	for _, record := range records {
		resp = append(resp, recordResponse{
			ID:            record.ID,
			ASIN:          record.ASIN,
			Title:         record.Title,
			Price:         record.Price,
			AffiliateLink: record.AffiliateLink,
			Keyword:       record.Keyword,
			PinCreated:    record.PinCreated,
			PostedAt:      record.PostedAt,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// Schedule は投稿スケジュールの要約を返す。
func (h *StatusHandler) Schedule(w http.ResponseWriter, r *http.Request) {
	targets := h.schedule.DailyTargetTimes()
	if targets == nil {
		targets = []time.Time{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(scheduleResponse{
		Summary:      h.schedule.ScheduleSummary(),
		NextPostAt:   h.schedule.NextPostingTime(),
		TodayTargets: targets,
	})
}
