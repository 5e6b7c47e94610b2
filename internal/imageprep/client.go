package imageprep

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/pinflow/internal/model"
)

const (
	defaultPollInterval = 2 * time.Second
	defaultMaxPolls     = 10
)

// Client は画像加工 API に加工ジョブを投入し、完了をポーリングで待つクライアント。
// ピン向けの縦長サイズ(既定 1000x1500)への変換に使う。
type Client struct {
	httpClient   *http.Client
	logger       *slog.Logger
	endpoint     string
	token        string
	targetWidth  int
	targetHeight int
	pollInterval time.Duration
	maxPolls     int
}

// NewClient は Client を生成する。
func NewClient(httpClient *http.Client, logger *slog.Logger, endpoint, token string, targetWidth, targetHeight int) *Client {
	return &Client{
		httpClient:   httpClient,
		logger:       logger,
		endpoint:     endpoint,
		token:        token,
		targetWidth:  targetWidth,
		targetHeight: targetHeight,
		pollInterval: defaultPollInterval,
		maxPolls:     defaultMaxPolls,
	}
}

type prepareRequest struct {
	Input prepareInput `json:"input"`
}

type prepareInput struct {
	ImageURL string `json:"image"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	Title    string `json:"title,omitempty"`
}

type prepareResponse struct {
	ID     string   `json:"id"`
	Status string   `json:"status"`
	Output []string `json:"output"`
	Error  string   `json:"error"`
}

// Prepare は元画像の加工を依頼し、完成した画像 URL を返す。
// トークン未設定の場合は加工をスキップして元画像をそのまま返す。
func (c *Client) Prepare(ctx context.Context, imageURL, title string) (string, error) {
	if c.token == "" {
		c.logger.Debug("画像加工トークン未設定のため元画像を使用します", slog.String("image_url", imageURL))
		return imageURL, nil
	}

	job, err := c.submit(ctx, imageURL, title)
	if err != nil {
		return "", model.NewImagePrepError(err.Error())
	}

	for i := 0; i < c.maxPolls; i++ {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(c.pollInterval):
		}

		status, err := c.poll(ctx, job.ID)
		if err != nil {
			return "", model.NewImagePrepError(err.Error())
		}

		switch status.Status {
		case "succeeded":
			if len(status.Output) == 0 {
				return "", model.NewImagePrepError("加工結果に出力画像がありません")
			}
			return status.Output[0], nil
		case "failed", "canceled":
			return "", model.NewImagePrepError(fmt.Sprintf("加工ジョブが失敗しました: %s", status.Error))
		}
	}

	return "", model.NewImagePrepError("加工ジョブがタイムアウトしました")
}

func (c *Client) submit(ctx context.Context, imageURL, title string) (*prepareResponse, error) {
	payload, err := json.Marshal(prepareRequest{
		Input: prepareInput{
			ImageURL: imageURL,
			Width:    c.targetWidth,
			Height:   c.targetHeight,
			Title:    title,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("リクエストのエンコードに失敗しました: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("リクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	return c.do(req)
}

func (c *Client) poll(ctx context.Context, jobID string) (*prepareResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"/"+jobID, nil)
	if err != nil {
		return nil, fmt.Errorf("リクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	return c.do(req)
}

func (c *Client) do(req *http.Request) (*prepareResponse, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("画像加工 API の呼び出しに失敗しました: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("予期しないステータスコード %d: %s", resp.StatusCode, string(body))
	}

	var result prepareResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("レスポンスの解析に失敗しました: %w", err)
	}
	return &result, nil
}
