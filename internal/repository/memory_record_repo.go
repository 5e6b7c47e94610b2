package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/hitoshi/pinflow/internal/model"
)

// MemoryRecordRepo はメモリ上に投稿レコードを保持するリポジトリ。
// テスト用の実装であると同時に、永続化障害時のレコードストアの
// 縮退バッファとしても使用される。プロセス終了で内容は失われる。
type MemoryRecordRepo struct {
	mu      sync.RWMutex
	records []*model.PostRecord
}

// NewMemoryRecordRepo はMemoryRecordRepoを生成する。
func NewMemoryRecordRepo() *MemoryRecordRepo {
	return &MemoryRecordRepo{}
}

// Insert はレコードを追記する。メモリ実装は失敗しない。
func (r *MemoryRecordRepo) Insert(ctx context.Context, rec *model.PostRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	copied := *rec
	r.records = append(r.records, &copied)
	return nil
}

// ListPostedSince はposted_atがsince以降のレコードの商品識別子を返す。
func (r *MemoryRecordRepo) ListPostedSince(ctx context.Context, since time.Time, includeFailed bool) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var asins []string
	for _, rec := range r.records {
		if rec.PostedAt.Before(since) {
			continue
		}
		if !includeFailed && !rec.PinCreated {
			continue
		}
		asins = append(asins, rec.ASIN)
	}
	return asins, nil
}

// ListRecent はposted_at降順で最新のレコードを最大limit件返す。
func (r *MemoryRecordRepo) ListRecent(ctx context.Context, limit int) ([]*model.PostRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sorted := make([]*model.PostRecord, len(r.records))
	copy(sorted, r.records)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].PostedAt.After(sorted[j].PostedAt)
	})

	if limit > 0 && len(sorted) > limit {
		sorted = sorted[:limit]
	}
	return sorted, nil
}

// Stats は全レコードの集計統計を返す。
func (r *MemoryRecordRepo) Stats(ctx context.Context, now time.Time) (*model.Stats, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := &model.Stats{}
	cutoff7 := now.AddDate(0, 0, -7)
	cutoff30 := now.AddDate(0, 0, -30)

	for _, rec := range r.records {
		stats.Total++
		if rec.PinCreated {
			stats.Succeeded++
		} else {
			stats.Failed++
		}
		if !rec.PostedAt.Before(cutoff7) {
			stats.Last7Days++
		}
		if !rec.PostedAt.Before(cutoff30) {
			stats.Last30Days++
		}
	}
	return stats, nil
}

// Len は保持しているレコード数を返す。
func (r *MemoryRecordRepo) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.records)
}

// compile-time interface check
var _ RecordRepository = (*MemoryRecordRepo)(nil)
