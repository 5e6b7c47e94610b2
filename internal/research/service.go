package research

import (
	"context"
	"log/slog"
	"sort"

	"golang.org/x/time/rate"

	"github.com/hitoshi/pinflow/internal/model"
)

// topCandidateLimit は TopCandidates が返す候補の上限数。
const topCandidateLimit = 10

// TrendClient はキーワード単位のトレンド検索を行うクライアント。
type TrendClient interface {
	Trending(ctx context.Context, keyword string, limit int) ([]model.TrendCandidate, error)
}

// FeedReader は RSS フィードからトレンド候補を取り込む読み取り口。
type FeedReader interface {
	Candidates(ctx context.Context) ([]model.TrendCandidate, error)
}

// Service は複数キーワードのトレンド調査を束ね、有望度順の候補リストを組み立てる。
type Service struct {
	client     TrendClient
	feedSource FeedReader
	keywords   []string
	limiter    *rate.Limiter
	logger     *slog.Logger
}

// NewService は Service を生成する。feedSource は nil を許容する。
func NewService(client TrendClient, feedSource FeedReader, keywords []string, limiter *rate.Limiter, logger *slog.Logger) *Service {
	return &Service{
		client:     client,
		feedSource: feedSource,
		keywords:   keywords,
		limiter:    limiter,
		logger:     logger,
	}
}

// TopCandidates は全調査キーワードとフィードの候補を集約し、
// 有望度(トレンドスコア×検索ボリューム)の降順で上位を返す。
// 個々のキーワードの失敗はログに残してスキップし、全滅の場合のみエラーを返す。
func (s *Service) TopCandidates(ctx context.Context) ([]model.TrendCandidate, error) {
	var candidates []model.TrendCandidate

	for _, keyword := range s.keywords {
		if s.limiter != nil {
			if err := s.limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}

		results, err := s.client.Trending(ctx, keyword, topCandidateLimit)
		if err != nil {
			s.logger.Warn("トレンド取得に失敗したためキーワードをスキップします",
				slog.String("keyword", keyword),
				slog.String("error", err.Error()))
			continue
		}
		candidates = append(candidates, results...)
	}

	if s.feedSource != nil {
		feedCandidates, err := s.feedSource.Candidates(ctx)
		if err != nil {
			s.logger.Warn("フィード候補の取得に失敗しました", slog.String("error", err.Error()))
		} else {
			candidates = append(candidates, feedCandidates...)
		}
	}

	if len(candidates) == 0 {
		return nil, model.NewNoTrendsError()
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Desirability() > candidates[j].Desirability()
	})

	if len(candidates) > topCandidateLimit {
		candidates = candidates[:topCandidateLimit]
	}

	s.logger.Info("トレンド候補を収集しました", slog.Int("count", len(candidates)))
	return candidates, nil
}
