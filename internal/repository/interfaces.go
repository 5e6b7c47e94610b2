// Package repository は投稿レコードの永続化インターフェースを定義する。
package repository

import (
	"context"
	"time"

	"github.com/hitoshi/pinflow/internal/model"
)

// RecordRepository は投稿レコードの永続化インターフェース。
// レコードは追記専用で、作成後に更新されることはない。
type RecordRepository interface {
	// Insert はレコードを追記する。
	Insert(ctx context.Context, rec *model.PostRecord) error

	// ListPostedSince はposted_atがsince以降のレコードの商品識別子を返す。
	// includeFailedがfalseの場合はpin_created=trueのレコードのみを対象とする。
	ListPostedSince(ctx context.Context, since time.Time, includeFailed bool) ([]string, error)

	// ListRecent はposted_at降順で最新のレコードを最大limit件返す。
	ListRecent(ctx context.Context, limit int) ([]*model.PostRecord, error)

	// Stats は全レコードの集計統計を返す。nowは直近7日/30日の境界計算に使う。
	Stats(ctx context.Context, now time.Time) (*model.Stats, error)
}
