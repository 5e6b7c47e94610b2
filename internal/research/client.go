// Package research はトレンドリサーチ機能を提供する。
// トレンドAPIクライアント、RSSトレンドフィードソース、
// 候補を複合スコア順に束ねるリサーチサービスを含む。
package research

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/hitoshi/pinflow/internal/model"
)

// Client はトレンドAPIのクライアント。
// キーワードごとのトレンド候補を取得する。
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	endpoint   string // テスト用にエンドポイントを差し替え可能
	token      string
}

// NewClient はClientの新しいインスタンスを生成する。
// endpointにはトレンドAPIのベースURLを指定する（例: "https://api.pinterest.com/v5"）。
func NewClient(httpClient *http.Client, logger *slog.Logger, endpoint, token string) *Client {
	return &Client{
		httpClient: httpClient,
		logger:     logger,
		endpoint:   endpoint,
		token:      token,
	}
}

// trendEntry はトレンドAPIレスポンスの1エントリ。
type trendEntry struct {
	Keyword          string  `json:"keyword"`
	PinCount         int     `json:"pin_count"`
	TrendingScore    float64 `json:"trending_score"`
	SearchVolume     int     `json:"search_volume"`
	SuggestedProduct string  `json:"suggested_product"`
}

// trendsResponse はトレンドAPIのレスポンスボディ。
type trendsResponse struct {
	Trends []trendEntry `json:"trends"`
}

// Trending は指定キーワードのトレンド候補を最大limit件取得する。
// レスポンスの並び順は保持する。取得失敗時はエラーを返す
// （呼び出し元が他キーワードの結果で続行するかを判断する）。
func (c *Client) Trending(ctx context.Context, keyword string, limit int) ([]model.TrendCandidate, error) {
	reqURL, err := url.Parse(c.endpoint + "/trends/keywords")
	if err != nil {
		return nil, fmt.Errorf("トレンドAPIのURL構築に失敗しました: %w", err)
	}

	q := reqURL.Query()
	q.Set("keyword", keyword)
	q.Set("limit", strconv.Itoa(limit))
	reqURL.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("トレンドAPIの呼び出しに失敗しました",
			slog.String("keyword", keyword),
			slog.String("error", err.Error()),
		)
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Error("トレンドAPIがエラーステータスを返しました",
			slog.String("keyword", keyword),
			slog.Int("http_status", resp.StatusCode),
		)
		return nil, fmt.Errorf("トレンドAPIがステータス %d を返しました", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("レスポンスボディの読み取りに失敗しました: %w", err)
	}

	var parsed trendsResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("レスポンスJSONのパースに失敗しました: %w", err)
	}

	candidates := make([]model.TrendCandidate, 0, len(parsed.Trends))
	for _, t := range parsed.Trends {
		cand := model.TrendCandidate{
			Keyword:          t.Keyword,
			PinCount:         t.PinCount,
			TrendingScore:    t.TrendingScore,
			SearchVolume:     t.SearchVolume,
			SuggestedProduct: t.SuggestedProduct,
		}
		// APIがキーワードを省略した場合はリクエストのキーワードを採用する
		if cand.Keyword == "" {
			cand.Keyword = keyword
		}
		candidates = append(candidates, cand)
	}

	return candidates, nil
}
