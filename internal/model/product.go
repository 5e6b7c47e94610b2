// Package model はドメインモデルを定義する。
package model

import "time"

// TrendCandidate はトレンドリサーチが返す投稿候補を表す。
// 1回の選定パスの間だけ生存する一時データで、永続化されない。
type TrendCandidate struct {
	Keyword          string  // リサーチに使用したキーワード
	TrendingScore    float64 // トレンドスコア（0.0〜1.0）
	SearchVolume     int     // 検索ボリュームの推定値（非負）
	PinCount         int
	SuggestedProduct string // 候補から導出された商品名
}

// Desirability は候補の複合スコア（トレンドスコア×検索ボリューム）を返す。
// 候補列はこの値の降順で並べてからセレクタに渡す。
func (c TrendCandidate) Desirability() float64 {
	return c.TrendingScore * float64(c.SearchVolume)
}

// CatalogItem はカタログ検索で解決された購入可能な商品を表す。
// 画像URLが1件もない場合、下流では解決失敗として扱う。
type CatalogItem struct {
	ASIN          string // カタログ内で一意な商品識別子
	Title         string
	Price         float64 // 通貨単位なしの10進価格
	Rating        float64 // 0.0〜5.0
	Reviews       int
	Images        []string // 画像ソースURLの順序付きリスト
	Description   string   // サニタイズ済みプレーンテキスト
	Category      string
	BestSeller    bool
	AffiliateLink string // アソシエイトタグ付きの商品リンク
}

// PreparedPin はパブリッシャーに渡す投稿単位。
// サイクルごとに新規構築され、公開試行の成否に関わらず破棄される。
type PreparedPin struct {
	Title       string // ベストセラーマーカー等で装飾済みのタイトル
	Description string // 説明・価格・評価・CTA・ハッシュタグを組み立てた本文
	Link        string // トラッキングパラメータ付与済みのアフィリエイトリンク
	ImageRef    string // 画像準備サービスが返した画像参照
	BoardName   string // 投稿先ボード名
}

// PostRecord は公開試行1回分の追記専用レコードを表す。
// 作成後は変更されない。ASINとPostedAtの組は一意。
type PostRecord struct {
	ID            string // レコードID（UUID）
	ASIN          string
	Title         string
	Price         float64
	AffiliateLink string
	Keyword       string // 候補を生んだリサーチキーワード
	PinCreated    bool   // true=公開成功 / false=試行したが失敗
	PostedAt      time.Time
}

// Stats は投稿レコードの集計統計を表す。
type Stats struct {
	Total      int `json:"total"`
	Succeeded  int `json:"succeeded"`
	Failed     int `json:"failed"`
	Last7Days  int `json:"last_7_days"`
	Last30Days int `json:"last_30_days"`
}

// ScheduleSlot は投稿スケジュールの (時, 分) スロットを表す。
// ジッターによってスロットが日付境界を跨ぎ、隣接スロットと投稿が
// 重複する可能性があるが、この構造体レベルでは強制しない。
type ScheduleSlot struct {
	Hour   int
	Minute int
}

// CycleOutcome は1サイクルの終端結果の種別を表す。
type CycleOutcome string

const (
	// OutcomePublished は公開成功を示す。
	OutcomePublished CycleOutcome = "published"
	// OutcomeSkipped は副作用なしのスキップを示す（日次上限など）。
	OutcomeSkipped CycleOutcome = "skipped"
	// OutcomeFailed はサイクルの失敗を示す。
	OutcomeFailed CycleOutcome = "failed"
)

// CycleResult は1サイクルの構造化された終端結果。
// オーケストレータは例外を漏らさず、必ずこの値を返す。
type CycleResult struct {
	Outcome CycleOutcome
	Reason  string // Skipped/Failedの理由コード（model.ErrCode*、ReasonDailyLimitReached）
	ASIN    string // 公開・記録された商品の識別子（該当する場合のみ）
	Title   string
}
