package catalog

import (
	"context"
	"fmt"

	"github.com/hitoshi/pinflow/internal/model"
)

// Resolver は検索クエリから商品を 1 件解決する。
// 見つからない場合は (nil, nil) を返し、エラーは通信・解析の失敗に限る。
type Resolver interface {
	Resolve(ctx context.Context, query string) (*model.CatalogItem, error)
}

// BuildAffiliateLink は ASIN とアソシエイトタグからアフィリエイトリンクを組み立てる。
func BuildAffiliateLink(baseURL, asin, tag string) string {
	return fmt.Sprintf("%s/dp/%s/?tag=%s", baseURL, asin, tag)
}
