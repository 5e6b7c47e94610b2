package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/hitoshi/pinflow/internal/model"
)

// TrendResearcher はトレンド候補の収集を行う。
type TrendResearcher interface {
	TopCandidates(ctx context.Context) ([]model.TrendCandidate, error)
}

// FulfillService は候補を投稿可能なピンへ具体化する。
type FulfillService interface {
	Fulfill(ctx context.Context, candidate model.TrendCandidate, fallbackRank int) (*model.PreparedPin, *model.CatalogItem, error)
}

// RecordKeeper は投稿試行の記録と直近履歴の参照を行う。
type RecordKeeper interface {
	Record(ctx context.Context, itemID, title string, price float64, link, keyword string, succeeded bool)
	RecentlyPosted(ctx context.Context, windowDays int) map[string]struct{}
}

// PinPublisher はピンを公開する。API 拒否は (false, nil)、通信失敗は (false, err)。
type PinPublisher interface {
	Publish(ctx context.Context, pin *model.PreparedPin) (bool, error)
}

// MetricsRecorder はサイクルの結果をメトリクスへ記録する。
type MetricsRecorder interface {
	RecordCycle(outcome model.CycleOutcome, d time.Duration)
	RecordPublish(succeeded bool)
	RecordCatalogFallback()
	RecordWritten()
}

// Orchestrator は 1 回の投稿サイクル(調査→選定→具体化→公開→記録)を統括する。
type Orchestrator struct {
	research  TrendResearcher
	fulfiller FulfillService
	records   RecordKeeper
	publisher PinPublisher
	metrics   MetricsRecorder
	logger    *slog.Logger

	maxPostsPerDay    int
	recencyWindowDays int
	includeFallback   bool

	mu         sync.Mutex
	postsToday int
	day        string
	now        func() time.Time
}

// OrchestratorParams は Orchestrator の依存と設定をまとめる。
type OrchestratorParams struct {
	Research          TrendResearcher
	Fulfiller         FulfillService
	Records           RecordKeeper
	Publisher         PinPublisher
	Metrics           MetricsRecorder
	Logger            *slog.Logger
	MaxPostsPerDay    int
	RecencyWindowDays int
	IncludeFallback   bool
	Now               func() time.Time
}

// NewOrchestrator は Orchestrator を生成する。Now が nil の場合は time.Now を使う。
func NewOrchestrator(params OrchestratorParams) *Orchestrator {
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &Orchestrator{
		research:          params.Research,
		fulfiller:         params.Fulfiller,
		records:           params.Records,
		publisher:         params.Publisher,
		metrics:           params.Metrics,
		logger:            params.Logger,
		maxPostsPerDay:    params.MaxPostsPerDay,
		recencyWindowDays: params.RecencyWindowDays,
		includeFallback:   params.IncludeFallback,
		now:               now,
	}
}

// RunCycle は投稿サイクルを 1 回実行する。
// 日次上限に達している場合は副作用なしでスキップを返す。
func (o *Orchestrator) RunCycle(ctx context.Context) model.CycleResult {
	started := o.now()
	result := o.runCycle(ctx)
	if o.metrics != nil {
		o.metrics.RecordCycle(result.Outcome, o.now().Sub(started))
	}

	o.logger.Info("投稿サイクルが完了しました",
		slog.String("outcome", string(result.Outcome)),
		slog.String("reason", result.Reason),
		slog.String("asin", result.ASIN))
	return result
}

func (o *Orchestrator) runCycle(ctx context.Context) model.CycleResult {
	if !o.tryAcquireSlot() {
		return model.CycleResult{
			Outcome: model.OutcomeSkipped,
			Reason:  model.ReasonDailyLimitReached,
		}
	}

	candidates, err := o.research.TopCandidates(ctx)
	if err != nil {
		o.logger.Error("トレンド調査に失敗しました", slog.String("error", err.Error()))
		return model.CycleResult{Outcome: model.OutcomeFailed, Reason: model.ErrCodeNoTrends}
	}

	recentlyPosted := o.records.RecentlyPosted(ctx, o.recencyWindowDays)

	candidate, err := Select(candidates, recentlyPosted)
	if err != nil {
		return model.CycleResult{Outcome: model.OutcomeFailed, Reason: model.ErrorCode(err)}
	}

	pin, item, err := o.fulfiller.Fulfill(ctx, candidate, 0)
	if err != nil && o.includeFallback {
		o.logger.Warn("具体化に失敗したためフォールバック検索を試します",
			slog.String("keyword", candidate.Keyword),
			slog.String("error", err.Error()))
		if o.metrics != nil {
			o.metrics.RecordCatalogFallback()
		}
		pin, item, err = o.fulfiller.Fulfill(ctx, candidate, 1)
	}
	if err != nil {
		o.recordFailure(ctx, candidate, item)
		return model.CycleResult{Outcome: model.OutcomeFailed, Reason: model.ErrorCode(err)}
	}

	published, err := o.publisher.Publish(ctx, pin)
	if err != nil {
		o.logger.Error("ピンの公開に失敗しました", slog.String("error", err.Error()))
	}
	if o.metrics != nil {
		o.metrics.RecordPublish(published)
	}

	o.records.Record(ctx, item.ASIN, item.Title, item.Price, pin.Link, candidate.Keyword, published)
	if o.metrics != nil {
		o.metrics.RecordWritten()
	}

	if !published {
		return model.CycleResult{
			Outcome: model.OutcomeFailed,
			Reason:  model.ErrCodePublishRejected,
			ASIN:    item.ASIN,
			Title:   item.Title,
		}
	}

	o.commitSlot()
	return model.CycleResult{
		Outcome: model.OutcomePublished,
		ASIN:    item.ASIN,
		Title:   item.Title,
	}
}

// recordFailure は具体化に失敗した試行を記録する。
// 商品まで解決できていれば商品情報を、そうでなければ候補の情報を残す。
func (o *Orchestrator) recordFailure(ctx context.Context, candidate model.TrendCandidate, item *model.CatalogItem) {
	if item != nil {
		o.records.Record(ctx, item.ASIN, item.Title, item.Price, item.AffiliateLink, candidate.Keyword, false)
	} else {
		itemID := candidate.SuggestedProduct
		if itemID == "" {
			itemID = candidate.Keyword
		}
		o.records.Record(ctx, itemID, itemID, 0, "", candidate.Keyword, false)
	}
	if o.metrics != nil {
		o.metrics.RecordWritten()
	}
}

// tryAcquireSlot は日付の切り替わりを確認し、当日の投稿上限に空きがあるかを返す。
func (o *Orchestrator) tryAcquireSlot() bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	today := o.now().Format("2006-01-02")
	if today != o.day {
		o.day = today
		o.postsToday = 0
	}
	return o.postsToday < o.maxPostsPerDay
}

// commitSlot は公開成功後に当日の投稿数を確定させる。
func (o *Orchestrator) commitSlot() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.postsToday++
}

// PostsToday は当日の公開成功数を返す。
func (o *Orchestrator) PostsToday() int {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.now().Format("2006-01-02") != o.day {
		return 0
	}
	return o.postsToday
}
