package security

import (
	"html"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// CopySanitizerService は商品コピーのサニタイズ機能のインターフェースを定義する。
// カタログページからスクレイピングした商品説明は信頼できないHTMLであり、
// ピン本文に載せる前にプレーンテキスト化する。
type CopySanitizerService interface {
	// Sanitize はHTML断片からタグを全て除去し、実体参照を復元した
	// プレーンテキストを返す。連続する空白は1つに圧縮される。
	// 空文字列の入力には空文字列を返す。冪等。
	Sanitize(raw string) string
}

// copySanitizer はCopySanitizerServiceの実装。
// bluemondayのStrictPolicy（全タグ除去）を保持し、スレッドセーフに動作する。
type copySanitizer struct {
	policy *bluemonday.Policy
}

// spaceRun は連続する空白文字（改行・タブ含む）にマッチする。
var spaceRun = regexp.MustCompile(`\s+`)

// NewCopySanitizer はCopySanitizerServiceの新しいインスタンスを生成する。
// ピン本文はプレーンテキストのみなので、許可タグを一切持たない
// StrictPolicyを使用する。
func NewCopySanitizer() *copySanitizer {
	return &copySanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// Sanitize はHTML断片をプレーンテキストに変換する。
func (s *copySanitizer) Sanitize(raw string) string {
	if raw == "" {
		return ""
	}

	// StrictPolicyはタグを除去した上で実体参照をエスケープするため、
	// 除去後にアンエスケープしてプレーンテキストへ戻す。
	text := s.policy.Sanitize(raw)
	text = html.UnescapeString(text)
	text = spaceRun.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}
