package pipeline

import (
	"fmt"
	"strings"

	"github.com/hitoshi/pinflow/internal/model"
)

// hashtagPool はピン本文に付与する汎用ハッシュタグの候補。先頭 3 件を使う。
var hashtagPool = []string{"AmazonFinds", "BestProducts", "MustHave", "GiftIdeas", "ShoppingDeals"}

// PinBuilder は商品情報からピンの投稿内容を組み立てる。
type PinBuilder struct {
	boardName string
}

// NewPinBuilder は PinBuilder を生成する。
func NewPinBuilder(boardName string) *PinBuilder {
	return &PinBuilder{boardName: boardName}
}

// Build は商品と加工済み画像からピンを組み立てる。
func (b *PinBuilder) Build(item *model.CatalogItem, imageRef string) *model.PreparedPin {
	return &model.PreparedPin{
		Title:       b.DecorateTitle(item),
		Description: b.BuildDescription(item),
		Link:        b.BuildTrackedLink(item.AffiliateLink, item.ASIN),
		ImageRef:    imageRef,
		BoardName:   b.boardName,
	}
}

// BuildTrackedLink はアフィリエイトリンクに Pinterest 流入計測用の UTM パラメータを付与する。
func (b *PinBuilder) BuildTrackedLink(link, asin string) string {
	params := fmt.Sprintf("utm_source=pinterest&utm_medium=pin&utm_campaign=amazon_automation&utm_content=%s", asin)
	if strings.Contains(link, "?") {
		return link + "&" + params
	}
	return link + "?" + params
}

// DecorateTitle はベストセラーの有無に応じてタイトルを装飾する。
func (b *PinBuilder) DecorateTitle(item *model.CatalogItem) string {
	if item.BestSeller {
		return fmt.Sprintf("🔥 %s - Amazon Best Seller!", item.Title)
	}
	return fmt.Sprintf("✨ %s", item.Title)
}

// BuildDescription はピン本文を組み立てる。価格・評価の行は値がある場合のみ付く。
func (b *PinBuilder) BuildDescription(item *model.CatalogItem) string {
	parts := make([]string, 0, 5)
	if item.Description != "" {
		parts = append(parts, item.Description)
	}
	if item.Price > 0 {
		parts = append(parts, fmt.Sprintf("💰 Price: $%.2f", item.Price))
	}
	if item.Rating >= 4.0 {
		parts = append(parts, fmt.Sprintf("⭐ Rating: %.1f/5", item.Rating))
	}
	parts = append(parts, "🛒 Click link to buy on Amazon!")
	parts = append(parts, strings.Join(buildHashtags(item.Category), " "))
	return strings.Join(parts, "\n\n")
}

// buildHashtags はカテゴリ由来のタグと汎用タグ 3 件を組み立てる。
func buildHashtags(category string) []string {
	tags := make([]string, 0, 4)
	if category != "" {
		normalized := strings.NewReplacer(" ", "", "&", "").Replace(category)
		if normalized != "" {
			tags = append(tags, "#"+normalized)
		}
	}
	for _, tag := range hashtagPool[:3] {
		tags = append(tags, "#"+tag)
	}
	return tags
}
