// Package store は投稿レコードストアを提供する。
// ストアは「この商品を最近投稿したか」の唯一の情報源であり、
// 永続化障害があってもサイクルを中断させない。
package store

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/pinflow/internal/model"
	"github.com/hitoshi/pinflow/internal/repository"
)

// RecordStore は投稿レコードの追記・重複判定・統計を提供するサービス。
// Recordは呼び出し元に対して決して失敗しない: 永続化エラーは記録して
// 握りつぶし、メモリ上の縮退バッファに退避する。以降の参照系は
// 永続ストアと縮退バッファの両方を合成して返す。
type RecordStore struct {
	repo          repository.RecordRepository
	fallback      *repository.MemoryRecordRepo
	logger        *slog.Logger
	includeFailed bool
	now           func() time.Time
}

// New はRecordStoreを生成する。
// includeFailedは公開失敗の試行も「最近投稿済み」に数えるかを制御する。
func New(repo repository.RecordRepository, logger *slog.Logger, includeFailed bool) *RecordStore {
	return &RecordStore{
		repo:          repo,
		fallback:      repository.NewMemoryRecordRepo(),
		logger:        logger,
		includeFailed: includeFailed,
		now:           time.Now,
	}
}

// Record は公開試行1回分のレコードを現在時刻で追記する。
// 永続化に失敗してもエラーを返さない: ログに記録し、メモリ上の
// 縮退バッファへ退避してサイクルを継続させる。
func (s *RecordStore) Record(ctx context.Context, itemID, title string, price float64, link, keyword string, succeeded bool) {
	rec := &model.PostRecord{
		ID:            uuid.NewString(),
		ASIN:          itemID,
		Title:         title,
		Price:         price,
		AffiliateLink: link,
		Keyword:       keyword,
		PinCreated:    succeeded,
		PostedAt:      s.now(),
	}

	if err := s.repo.Insert(ctx, rec); err != nil {
		s.logger.Error("投稿レコードの永続化に失敗したためメモリに退避します",
			slog.String("item_id", itemID),
			slog.String("error", err.Error()),
		)
		// メモリ実装のInsertは失敗しない
		_ = s.fallback.Insert(ctx, rec)
	}
}

// RecentlyPosted はwindowDays日以内に投稿試行された商品識別子の集合を返す。
// 永続ストアの取得に失敗した場合は縮退バッファのみで判定する
// （重複判定が空になるより、縮退した集合で続行する方が安全側）。
func (s *RecordStore) RecentlyPosted(ctx context.Context, windowDays int) map[string]struct{} {
	since := s.now().AddDate(0, 0, -windowDays)
	recent := make(map[string]struct{})

	asins, err := s.repo.ListPostedSince(ctx, since, s.includeFailed)
	if err != nil {
		s.logger.Error("投稿済み商品の取得に失敗しました",
			slog.Int("window_days", windowDays),
			slog.String("error", err.Error()),
		)
	} else {
		for _, asin := range asins {
			recent[asin] = struct{}{}
		}
	}

	fallbackASINs, _ := s.fallback.ListPostedSince(ctx, since, s.includeFailed)
	for _, asin := range fallbackASINs {
		recent[asin] = struct{}{}
	}

	return recent
}

// Stats は投稿レコードの集計統計を返す。
// 永続ストアの集計に失敗した場合は縮退バッファ分のみを返す。
func (s *RecordStore) Stats(ctx context.Context) *model.Stats {
	now := s.now()

	stats, err := s.repo.Stats(ctx, now)
	if err != nil {
		s.logger.Error("投稿統計の集計に失敗しました",
			slog.String("error", err.Error()),
		)
		stats = &model.Stats{}
	}

	fallbackStats, _ := s.fallback.Stats(ctx, now)
	stats.Total += fallbackStats.Total
	stats.Succeeded += fallbackStats.Succeeded
	stats.Failed += fallbackStats.Failed
	stats.Last7Days += fallbackStats.Last7Days
	stats.Last30Days += fallbackStats.Last30Days

	return stats
}

// ListRecent はposted_at降順で最新のレコードを最大limit件返す。
// 管理APIの参照用。永続ストアの取得に失敗した場合は縮退バッファ分のみを返す。
func (s *RecordStore) ListRecent(ctx context.Context, limit int) []*model.PostRecord {
	records, err := s.repo.ListRecent(ctx, limit)
	if err != nil {
		s.logger.Error("最新レコードの取得に失敗しました",
			slog.String("error", err.Error()),
		)
		records = nil
	}

	fallbackRecords, _ := s.fallback.ListRecent(ctx, limit)
	records = append(records, fallbackRecords...)
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	return records
}
