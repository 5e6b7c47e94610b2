package model

import (
	"errors"
	"fmt"
)

// PipelineError はサイクル内の各ステージ境界で生成される分類済みエラー。
// コラボレータの生のエラーはステージ境界でこの型に変換され、
// オーケストレータより外には伝播しない。
type PipelineError struct {
	Code    string // エラーコード
	Message string // エラーメッセージ
	Stage   string // 発生ステージ: research, select, catalog, image, publish
}

// Error はerrorインターフェースを実装する。
func (e *PipelineError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeNoTrends         = "NO_TRENDS"
	ErrCodeNoCandidates     = "NO_CANDIDATES_AVAILABLE"
	ErrCodeProductNotFound  = "PRODUCT_NOT_FOUND"
	ErrCodeNoImageAvailable = "NO_IMAGE_AVAILABLE"
	ErrCodeImagePrepFailed  = "IMAGE_PREPARATION_FAILED"
	ErrCodePublishRejected  = "PUBLISH_REJECTED"
)

// ReasonDailyLimitReached は日次上限によるスキップ理由。エラーではない。
const ReasonDailyLimitReached = "DAILY_LIMIT_REACHED"

// NewNoTrendsError はリサーチが候補を1件も返さなかった場合のエラーを生成する。
func NewNoTrendsError() *PipelineError {
	return &PipelineError{
		Code:    ErrCodeNoTrends,
		Message: "トレンドリサーチが投稿候補を返しませんでした",
		Stage:   "research",
	}
}

// NewNoCandidatesError は空の候補列がセレクタに渡された場合のエラーを生成する。
func NewNoCandidatesError() *PipelineError {
	return &PipelineError{
		Code:    ErrCodeNoCandidates,
		Message: "選定可能な候補がありません",
		Stage:   "select",
	}
}

// NewProductNotFoundError はクエリバリエーションを使い切っても
// カタログ解決に失敗した場合のエラーを生成する。
func NewProductNotFoundError(query string) *PipelineError {
	return &PipelineError{
		Code:    ErrCodeProductNotFound,
		Message: fmt.Sprintf("カタログで商品が見つかりませんでした: %s", query),
		Stage:   "catalog",
	}
}

// NewNoImageError は解決された商品に画像URLが1件もない場合のエラーを生成する。
func NewNoImageError(asin string) *PipelineError {
	return &PipelineError{
		Code:    ErrCodeNoImageAvailable,
		Message: fmt.Sprintf("商品に利用可能な画像がありません: %s", asin),
		Stage:   "image",
	}
}

// NewImagePrepError は画像準備サービスの失敗エラーを生成する。
func NewImagePrepError(reason string) *PipelineError {
	return &PipelineError{
		Code:    ErrCodeImagePrepFailed,
		Message: fmt.Sprintf("画像の準備に失敗しました: %s", reason),
		Stage:   "image",
	}
}

// NewPublishRejectedError はパブリッシャーが投稿を受理しなかった場合の
// エラーを生成する。
func NewPublishRejectedError(reason string) *PipelineError {
	return &PipelineError{
		Code:    ErrCodePublishRejected,
		Message: fmt.Sprintf("投稿が受理されませんでした: %s", reason),
		Stage:   "publish",
	}
}

// ErrorCode はerrからPipelineErrorのコードを取り出す。
// PipelineErrorでない場合は空文字列を返す。
func ErrorCode(err error) string {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Code
	}
	return ""
}
