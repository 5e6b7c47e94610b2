package research

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/mmcdole/gofeed"

	"github.com/hitoshi/pinflow/internal/model"
)

// feedSourceScoreBase はフィード先頭エントリに与えるトレンドスコア。
// フィードはランキング済みである前提で、順位が下がるごとに減衰させる。
const feedSourceScoreBase = 0.9

// feedSourceScoreStep は順位1つあたりのスコア減衰幅。
const feedSourceScoreStep = 0.05

// feedSourceVolume はフィード由来候補に与える検索ボリュームの仮値。
// フィードはボリュームを持たないため、API由来候補より控えめな固定値を使う。
const feedSourceVolume = 1000

// maxEntriesPerFeed は1フィードから取り込むエントリ数の上限。
const maxEntriesPerFeed = 5

// FeedSource はランキング済みRSS/Atomフィードからトレンド候補を生成する。
// トレンドAPIを補完する第2のリサーチソースとして使用する。
type FeedSource struct {
	httpClient  *http.Client
	logger      *slog.Logger
	feedURLs    []string
	maxBodySize int64
}

// NewFeedSource はFeedSourceの新しいインスタンスを生成する。
func NewFeedSource(httpClient *http.Client, logger *slog.Logger, feedURLs []string, maxBodySize int64) *FeedSource {
	return &FeedSource{
		httpClient:  httpClient,
		logger:      logger,
		feedURLs:    feedURLs,
		maxBodySize: maxBodySize,
	}
}

// Candidates は設定された全フィードを取得し、エントリをトレンド候補に変換する。
// 個別フィードの失敗はログに記録して他のフィードの処理を継続する。
func (f *FeedSource) Candidates(ctx context.Context) ([]model.TrendCandidate, error) {
	var candidates []model.TrendCandidate

	for _, feedURL := range f.feedURLs {
		if ctx.Err() != nil {
			return candidates, ctx.Err()
		}

		cands, err := f.fetchFeed(ctx, feedURL)
		if err != nil {
			f.logger.Error("トレンドフィードの取得に失敗しました",
				slog.String("feed_url", feedURL),
				slog.String("error", err.Error()),
			)
			continue
		}
		candidates = append(candidates, cands...)
	}

	return candidates, nil
}

// fetchFeed は1フィードを取得してパースし、上位エントリを候補に変換する。
func (f *FeedSource) fetchFeed(ctx context.Context, feedURL string) ([]model.TrendCandidate, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("リクエスト作成に失敗: %w", err)
	}
	req.Header.Set("User-Agent", "Pinflow/1.0 Trend Research")
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml, text/xml, */*")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTPリクエスト失敗: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("フィードがステータス %d を返しました", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("レスポンス読み取り失敗: %w", err)
	}

	parser := gofeed.NewParser()
	parsed, err := parser.ParseString(string(body))
	if err != nil {
		return nil, fmt.Errorf("フィードのパースに失敗: %w", err)
	}

	var candidates []model.TrendCandidate
	for i, item := range parsed.Items {
		if i >= maxEntriesPerFeed {
			break
		}
		if item == nil || strings.TrimSpace(item.Title) == "" {
			continue
		}

		keyword := strings.TrimSpace(item.Title)
		score := feedSourceScoreBase - float64(i)*feedSourceScoreStep
		if score < 0 {
			score = 0
		}

		candidates = append(candidates, model.TrendCandidate{
			Keyword:          keyword,
			TrendingScore:    score,
			SearchVolume:     feedSourceVolume,
			SuggestedProduct: keyword,
		})
	}

	f.logger.Info("トレンドフィードを取り込みました",
		slog.String("feed_url", feedURL),
		slog.Int("candidate_count", len(candidates)),
		slog.String("feed_title", parsed.Title),
	)

	return candidates, nil
}
