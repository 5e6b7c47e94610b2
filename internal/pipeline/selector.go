package pipeline

import (
	"github.com/hitoshi/pinflow/internal/model"
)

// Select は候補リストから次に投稿する商品候補を 1 件選ぶ。
// 最近投稿済みの商品名に一致する候補を除外し、残った先頭を返す。
// 全候補が除外された場合は重複を許して先頭にフォールバックする。
func Select(candidates []model.TrendCandidate, recentlyPosted map[string]struct{}) (model.TrendCandidate, error) {
	if len(candidates) == 0 {
		return model.TrendCandidate{}, model.NewNoCandidatesError()
	}

	for _, candidate := range candidates {
		if _, posted := recentlyPosted[candidate.SuggestedProduct]; !posted {
			return candidate, nil
		}
	}

	return candidates[0], nil
}
