package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/pinflow/internal/model"
)

// PostgresRecordRepo はPostgreSQLを使用した投稿レコードリポジトリ。
type PostgresRecordRepo struct {
	db *sql.DB
}

// NewPostgresRecordRepo はPostgresRecordRepoを生成する。
func NewPostgresRecordRepo(db *sql.DB) *PostgresRecordRepo {
	return &PostgresRecordRepo{db: db}
}

// Insert はレコードを追記する。
func (r *PostgresRecordRepo) Insert(ctx context.Context, rec *model.PostRecord) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO post_records (id, asin, title, price, affiliate_link, keyword, pin_created, posted_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		rec.ID, rec.ASIN, rec.Title, rec.Price,
		rec.AffiliateLink, rec.Keyword, rec.PinCreated, rec.PostedAt,
	)
	if err != nil {
		return fmt.Errorf("投稿レコードの追記に失敗しました: %w", err)
	}
	return nil
}

// ListPostedSince はposted_atがsince以降のレコードの商品識別子を返す。
func (r *PostgresRecordRepo) ListPostedSince(ctx context.Context, since time.Time, includeFailed bool) ([]string, error) {
	query := `SELECT asin FROM post_records WHERE posted_at >= $1`
	if !includeFailed {
		query += ` AND pin_created = TRUE`
	}

	rows, err := r.db.QueryContext(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("投稿済み商品の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var asins []string
	for rows.Next() {
		var asin string
		if err := rows.Scan(&asin); err != nil {
			return nil, fmt.Errorf("投稿済み商品の読み取りに失敗しました: %w", err)
		}
		asins = append(asins, asin)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("投稿済み商品の走査に失敗しました: %w", err)
	}

	return asins, nil
}

// ListRecent はposted_at降順で最新のレコードを最大limit件返す。
func (r *PostgresRecordRepo) ListRecent(ctx context.Context, limit int) ([]*model.PostRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, asin, title, price, affiliate_link, keyword, pin_created, posted_at
		 FROM post_records
		 ORDER BY posted_at DESC
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("最新レコードの取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var records []*model.PostRecord
	for rows.Next() {
		rec := &model.PostRecord{}
		if err := rows.Scan(
			&rec.ID, &rec.ASIN, &rec.Title, &rec.Price,
			&rec.AffiliateLink, &rec.Keyword, &rec.PinCreated, &rec.PostedAt,
		); err != nil {
			return nil, fmt.Errorf("最新レコードの読み取りに失敗しました: %w", err)
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("最新レコードの走査に失敗しました: %w", err)
	}

	return records, nil
}

// Stats は全レコードの集計統計を返す。
func (r *PostgresRecordRepo) Stats(ctx context.Context, now time.Time) (*model.Stats, error) {
	stats := &model.Stats{}

	err := r.db.QueryRowContext(ctx,
		`SELECT
		    count(*),
		    count(*) FILTER (WHERE pin_created),
		    count(*) FILTER (WHERE NOT pin_created),
		    count(*) FILTER (WHERE posted_at >= $1),
		    count(*) FILTER (WHERE posted_at >= $2)
		 FROM post_records`,
		now.AddDate(0, 0, -7), now.AddDate(0, 0, -30),
	).Scan(&stats.Total, &stats.Succeeded, &stats.Failed, &stats.Last7Days, &stats.Last30Days)
	if err != nil {
		return nil, fmt.Errorf("投稿統計の集計に失敗しました: %w", err)
	}

	return stats, nil
}

// compile-time interface check
var _ RecordRepository = (*PostgresRecordRepo)(nil)
