package catalog

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/hitoshi/pinflow/internal/model"
	"github.com/hitoshi/pinflow/internal/security"
)

// userAgent は検索ページ取得に使うブラウザ相当の UA。
const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36"

// AmazonClient は Amazon の検索結果ページと商品ページを解析して商品を解決する。
type AmazonClient struct {
	httpClient   *http.Client
	logger       *slog.Logger
	baseURL      string
	associateTag string
	sanitizer    security.CopySanitizerService
	maxBodySize  int64
}

// NewAmazonClient は AmazonClient を生成する。
func NewAmazonClient(httpClient *http.Client, logger *slog.Logger, baseURL, associateTag string, sanitizer security.CopySanitizerService, maxBodySize int64) *AmazonClient {
	return &AmazonClient{
		httpClient:   httpClient,
		logger:       logger,
		baseURL:      strings.TrimRight(baseURL, "/"),
		associateTag: associateTag,
		sanitizer:    sanitizer,
		maxBodySize:  maxBodySize,
	}
}

var _ Resolver = (*AmazonClient)(nil)

// Resolve は検索クエリの先頭ヒットを商品として返す。ヒットなしは (nil, nil)。
func (c *AmazonClient) Resolve(ctx context.Context, query string) (*model.CatalogItem, error) {
	item, err := c.search(ctx, query)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, nil
	}

	// 商品ページから画像と説明文を補完する。失敗しても検索結果だけで成立させる。
	if err := c.enrich(ctx, item); err != nil {
		c.logger.Warn("商品ページの解析に失敗しました",
			slog.String("asin", item.ASIN),
			slog.String("error", err.Error()))
	}

	item.AffiliateLink = BuildAffiliateLink(c.baseURL, item.ASIN, c.associateTag)
	return item, nil
}

func (c *AmazonClient) search(ctx context.Context, query string) (*model.CatalogItem, error) {
	searchURL := fmt.Sprintf("%s/s?k=%s", c.baseURL, url.QueryEscape(query))

	doc, err := c.fetchDocument(ctx, searchURL)
	if err != nil {
		return nil, err
	}

	var item *model.CatalogItem
	doc.Find("div[data-asin]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		asin, _ := s.Attr("data-asin")
		if asin == "" {
			return true
		}

		title := strings.TrimSpace(s.Find("h2 span").First().Text())
		if title == "" {
			return true
		}

		item = &model.CatalogItem{
			ASIN:       asin,
			Title:      c.sanitizer.Sanitize(title),
			Price:      parsePrice(s.Find("span.a-offscreen").First().Text()),
			Rating:     parseRating(s.Find("span.a-icon-alt").First().Text()),
			BestSeller: strings.Contains(s.Find("span.a-badge-text").Text(), "Best Seller"),
		}
		return false
	})

	return item, nil
}

// enrich は商品ページの og:image / og:description を item に取り込む。
func (c *AmazonClient) enrich(ctx context.Context, item *model.CatalogItem) error {
	productURL := fmt.Sprintf("%s/dp/%s", c.baseURL, item.ASIN)

	body, err := c.fetch(ctx, productURL)
	if err != nil {
		return err
	}
	defer body.Close()

	image, description := extractOpenGraph(io.LimitReader(body, c.maxBodySize))
	if image != "" {
		item.Images = append(item.Images, image)
	}
	if description != "" {
		item.Description = c.sanitizer.Sanitize(description)
	}
	return nil
}

func (c *AmazonClient) fetchDocument(ctx context.Context, rawURL string) (*goquery.Document, error) {
	body, err := c.fetch(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(body, c.maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("HTML の解析に失敗しました: %w", err)
	}
	return doc, nil
}

func (c *AmazonClient) fetch(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("リクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ページの取得に失敗しました: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("予期しないステータスコード: %d", resp.StatusCode)
	}
	return resp.Body, nil
}

// extractOpenGraph は meta タグから og:image と og:description を取り出す。
func extractOpenGraph(r io.Reader) (image, description string) {
	tokenizer := html.NewTokenizer(r)
	for {
		tt := tokenizer.Next()
		switch tt {
		case html.ErrorToken:
			return image, description
		case html.StartTagToken, html.SelfClosingTagToken:
			token := tokenizer.Token()
			if token.Data != "meta" {
				continue
			}
			var property, content string
			for _, attr := range token.Attr {
				switch attr.Key {
				case "property":
					property = attr.Val
				case "content":
					content = attr.Val
				}
			}
			switch property {
			case "og:image":
				if image == "" {
					image = content
				}
			case "og:description":
				if description == "" {
					description = content
				}
			}
			if image != "" && description != "" {
				return image, description
			}
		}
	}
}

// parsePrice は "$12.99" 形式の表示価格を数値に変換する。解析不能は 0。
func parsePrice(text string) float64 {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "$")
	text = strings.ReplaceAll(text, ",", "")
	if text == "" {
		return 0
	}
	price, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return 0
	}
	return price
}

// parseRating は "4.5 out of 5 stars" 形式の評価文言を数値に変換する。解析不能は 0。
func parseRating(text string) float64 {
	fields := strings.Fields(strings.TrimSpace(text))
	if len(fields) == 0 {
		return 0
	}
	rating, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return 0
	}
	return rating
}
