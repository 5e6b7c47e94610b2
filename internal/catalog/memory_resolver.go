package catalog

import (
	"context"
	"strings"

	"github.com/hitoshi/pinflow/internal/model"
)

// MemoryResolver は固定の商品テーブルを検索するインメモリ実装。
// 開発環境や Amazon へ到達できないテストで AmazonClient の代替として使う。
type MemoryResolver struct {
	baseURL      string
	associateTag string
	items        []model.CatalogItem
}

// NewMemoryResolver は組み込みの商品フィクスチャを持つ MemoryResolver を生成する。
func NewMemoryResolver(baseURL, associateTag string) *MemoryResolver {
	return &MemoryResolver{
		baseURL:      strings.TrimRight(baseURL, "/"),
		associateTag: associateTag,
		items: []model.CatalogItem{
			{
				ASIN:        "B08XYZ1234",
				Title:       "Modern Wall Art Canvas Print Set",
				Price:       49.99,
				Rating:      4.6,
				Reviews:     1250,
				Images:      []string{"https://m.media-amazon.com/images/I/wall-art-main.jpg"},
				Description: "Beautiful modern wall art set of 3 canvas prints. Perfect for living room, bedroom, or office decor.",
				Category:    "home decor",
				BestSeller:  true,
			},
			{
				ASIN:        "B09XYZ5678",
				Title:       "Instant Pot Duo 7-in-1 Electric Pressure Cooker",
				Price:       89.95,
				Rating:      4.7,
				Reviews:     98400,
				Images:      []string{"https://m.media-amazon.com/images/I/instant-pot-main.jpg"},
				Description: "7-in-1 functionality: pressure cooker, slow cooker, rice cooker, steamer, saute pan, yogurt maker and warmer.",
				Category:    "kitchen gadgets",
				BestSeller:  true,
			},
		},
	}
}

var _ Resolver = (*MemoryResolver)(nil)

// Resolve はクエリとカテゴリ・タイトルの部分一致で商品を返す。不一致は (nil, nil)。
func (r *MemoryResolver) Resolve(_ context.Context, query string) (*model.CatalogItem, error) {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil, nil
	}

	for _, item := range r.items {
		if strings.Contains(q, item.Category) ||
			strings.Contains(strings.ToLower(item.Title), q) ||
			strings.Contains(q, strings.ToLower(item.Title)) {
			found := item
			found.AffiliateLink = BuildAffiliateLink(r.baseURL, found.ASIN, r.associateTag)
			return &found, nil
		}
	}
	return nil, nil
}
