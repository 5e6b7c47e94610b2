package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hitoshi/pinflow/internal/model"
)

// maxVariationAttempts はバリエーション検索を試行する最大回数。
const maxVariationAttempts = 4

// CatalogResolver は検索クエリから商品を解決する。未ヒットは (nil, nil)。
type CatalogResolver interface {
	Resolve(ctx context.Context, query string) (*model.CatalogItem, error)
}

// ImagePreparer は元画像をピン向けに加工し、参照 URL を返す。
type ImagePreparer interface {
	Prepare(ctx context.Context, imageURL, title string) (string, error)
}

// Fulfiller はトレンド候補を投稿可能なピンへと具体化する。
// 商品解決・画像加工・本文組み立てを 1 つの手順として束ねる。
type Fulfiller struct {
	catalog CatalogResolver
	images  ImagePreparer
	builder *PinBuilder
	logger  *slog.Logger
}

// NewFulfiller は Fulfiller を生成する。
func NewFulfiller(catalog CatalogResolver, images ImagePreparer, builder *PinBuilder, logger *slog.Logger) *Fulfiller {
	return &Fulfiller{
		catalog: catalog,
		images:  images,
		builder: builder,
		logger:  logger,
	}
}

// Fulfill は候補から商品を解決してピンを組み立てる。
// 直接クエリで見つからない場合は fallbackRank の位置からバリエーション検索を行う。
// 商品が解決できた後の失敗では、記録用に解決済み商品も併せて返す。
func (f *Fulfiller) Fulfill(ctx context.Context, candidate model.TrendCandidate, fallbackRank int) (*model.PreparedPin, *model.CatalogItem, error) {
	query := candidate.SuggestedProduct
	if query == "" {
		query = candidate.Keyword
	}

	item, err := f.resolve(ctx, query, fallbackRank)
	if err != nil {
		return nil, nil, err
	}
	if item == nil {
		return nil, nil, model.NewProductNotFoundError(query)
	}

	if len(item.Images) == 0 {
		return nil, item, model.NewNoImageError(item.ASIN)
	}

	imageRef, err := f.images.Prepare(ctx, item.Images[0], item.Title)
	if err != nil {
		f.logger.Warn("画像加工に失敗しました",
			slog.String("asin", item.ASIN),
			slog.String("error", err.Error()))
		return nil, item, model.NewImagePrepError(err.Error())
	}

	return f.builder.Build(item, imageRef), item, nil
}

// resolve は直接クエリを試す。初回 (fallbackRank == 0) はそこで打ち切り、
// 再試行時のみバリエーションを fallbackRank の位置から順に試す。
func (f *Fulfiller) resolve(ctx context.Context, query string, fallbackRank int) (*model.CatalogItem, error) {
	item, err := f.catalog.Resolve(ctx, query)
	if err != nil {
		return nil, err
	}
	if item != nil {
		return item, nil
	}

	if fallbackRank <= 0 {
		return nil, nil
	}

	variations := searchVariations(query)
	if fallbackRank > len(variations) {
		fallbackRank = len(variations)
	}

	attempts := 0
	for _, variation := range variations[fallbackRank:] {
		if attempts >= maxVariationAttempts {
			break
		}
		attempts++

		f.logger.Debug("バリエーション検索を試します", slog.String("query", variation))
		item, err = f.catalog.Resolve(ctx, variation)
		if err != nil {
			return nil, err
		}
		if item != nil {
			return item, nil
		}
	}
	return nil, nil
}

// searchVariations は元クエリから検索バリエーションを生成する。
func searchVariations(query string) []string {
	return []string{
		fmt.Sprintf("%s best seller", query),
		fmt.Sprintf("best %s", query),
		fmt.Sprintf("%s popular", query),
		fmt.Sprintf("top rated %s", query),
		fmt.Sprintf("%s amazon choice", query),
	}
}
