package publisher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"

	"github.com/hitoshi/pinflow/internal/model"
)

// Client は Pinterest v5 API でピンを作成するクライアント。
// ボード名からボード ID への解決結果はキャッシュする。
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	endpoint   string
	token      string

	mu         sync.Mutex
	boardCache map[string]string
}

// NewClient は Client を生成する。
func NewClient(httpClient *http.Client, logger *slog.Logger, endpoint, token string) *Client {
	return &Client{
		httpClient: httpClient,
		logger:     logger,
		endpoint:   endpoint,
		token:      token,
		boardCache: make(map[string]string),
	}
}

type boardListResponse struct {
	Items []struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"items"`
}

type createPinRequest struct {
	BoardID     string         `json:"board_id"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Link        string         `json:"link"`
	MediaSource pinMediaSource `json:"media_source"`
}

type pinMediaSource struct {
	SourceType string `json:"source_type"`
	URL        string `json:"url"`
}

// Publish はピンを作成する。API に拒否された場合は (false, nil)、
// 通信やサーバ側の失敗は (false, err) を返す。
func (c *Client) Publish(ctx context.Context, pin *model.PreparedPin) (bool, error) {
	boardID, err := c.resolveBoardID(ctx, pin.BoardName)
	if err != nil {
		return false, err
	}
	if boardID == "" {
		c.logger.Error("ボードが見つかりません", slog.String("board_name", pin.BoardName))
		return false, nil
	}

	payload, err := json.Marshal(createPinRequest{
		BoardID:     boardID,
		Title:       pin.Title,
		Description: pin.Description,
		Link:        pin.Link,
		MediaSource: pinMediaSource{
			SourceType: "image_url",
			URL:        pin.ImageRef,
		},
	})
	if err != nil {
		return false, fmt.Errorf("リクエストのエンコードに失敗しました: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/pins", bytes.NewReader(payload))
	if err != nil {
		return false, fmt.Errorf("リクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("ピン作成 API の呼び出しに失敗しました: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusCreated:
		c.logger.Info("ピンを作成しました",
			slog.String("board_id", boardID),
			slog.String("title", pin.Title))
		return true, nil
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		c.logger.Warn("ピン作成が拒否されました",
			slog.Int("status_code", resp.StatusCode),
			slog.String("body", string(body)))
		return false, nil
	default:
		return false, fmt.Errorf("予期しないステータスコード: %d", resp.StatusCode)
	}
}

// resolveBoardID はボード名をボード ID に解決する。未知のボードは "" を返す。
func (c *Client) resolveBoardID(ctx context.Context, name string) (string, error) {
	c.mu.Lock()
	if id, ok := c.boardCache[name]; ok {
		c.mu.Unlock()
		return id, nil
	}
	c.mu.Unlock()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"/boards", nil)
	if err != nil {
		return "", fmt.Errorf("リクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("ボード一覧の取得に失敗しました: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("予期しないステータスコード: %d", resp.StatusCode)
	}

	var boards boardListResponse
	if err := json.NewDecoder(resp.Body).Decode(&boards); err != nil {
		return "", fmt.Errorf("レスポンスの解析に失敗しました: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, board := range boards.Items {
		c.boardCache[board.Name] = board.ID
	}
	return c.boardCache[name], nil
}
