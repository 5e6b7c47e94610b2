package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/hitoshi/pinflow/internal/model"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// Pinterest
	PinterestAccessToken string
	PinterestAPIBaseURL  string
	BoardName            string

	// Amazon
	AmazonAssociateTag string
	AmazonBaseURL      string

	// Image preparation
	ImagePrepAPIURL   string
	ImagePrepAPIToken string
	ImageTargetWidth  int
	ImageTargetHeight int

	// Posting
	PostsPerDay            int
	PostTimes              []model.ScheduleSlot
	RandomTimeRangeMinutes int
	PostToleranceMinutes   int
	IncludeFallback        bool
	RecencyWindowDays      int
	DedupeCountFailed      bool

	// Research
	ResearchKeywords    []string
	TrendFeedURLs       []string
	ResearchAPIInterval time.Duration

	// HTTP
	HTTPTimeout     time.Duration
	HTTPMaxBodySize int64

	// Retention
	RecordRetentionDays int

	// Dry run: カタログ解決を組み込みフィクスチャで行う
	DryRun bool

	// Server
	ServerPort string
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す（プロセスを起動失敗させる唯一の設定経路）。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	cfg.PinterestAccessToken = os.Getenv("PINTEREST_ACCESS_TOKEN")
	if cfg.PinterestAccessToken == "" {
		missing = append(missing, "PINTEREST_ACCESS_TOKEN")
	}

	cfg.AmazonAssociateTag = os.Getenv("AMAZON_ASSOCIATE_TAG")
	if cfg.AmazonAssociateTag == "" {
		missing = append(missing, "AMAZON_ASSOCIATE_TAG")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.PinterestAPIBaseURL = getEnvString("PINTEREST_API_BASE_URL", "https://api.pinterest.com/v5")
	cfg.BoardName = getEnvString("BOARD_NAME", "Amazon Finds")
	cfg.AmazonBaseURL = getEnvString("AMAZON_BASE_URL", "https://www.amazon.com")
	cfg.ImagePrepAPIURL = getEnvString("IMAGE_PREP_API_URL", "https://api.replicate.com/v1/predictions")
	cfg.ImagePrepAPIToken = getEnvString("IMAGE_PREP_API_TOKEN", "")
	cfg.ImageTargetWidth = getEnvInt("IMAGE_TARGET_WIDTH", 1000)
	cfg.ImageTargetHeight = getEnvInt("IMAGE_TARGET_HEIGHT", 1500)

	cfg.PostsPerDay = getEnvInt("POSTS_PER_DAY", 3)
	cfg.RandomTimeRangeMinutes = getEnvInt("RANDOM_TIME_RANGE_MINUTES", 30)
	cfg.PostToleranceMinutes = getEnvInt("POST_TOLERANCE_MINUTES", 5)
	cfg.IncludeFallback = getEnvBool("INCLUDE_FALLBACK", true)
	cfg.RecencyWindowDays = getEnvInt("RECENCY_WINDOW_DAYS", 7)
	cfg.DedupeCountFailed = getEnvBool("DEDUPE_COUNT_FAILED", true)

	cfg.ResearchKeywords = getEnvCSV("RESEARCH_KEYWORDS",
		[]string{"home decor", "kitchen gadgets", "fitness gear", "desk setup"})
	cfg.TrendFeedURLs = getEnvCSV("TREND_FEED_URLS", nil)
	cfg.ResearchAPIInterval = getEnvDuration("RESEARCH_API_INTERVAL", 500*time.Millisecond)

	cfg.HTTPTimeout = getEnvDuration("HTTP_TIMEOUT", 10*time.Second)
	cfg.HTTPMaxBodySize = getEnvInt64("HTTP_MAX_BODY_SIZE", 5242880)

	cfg.RecordRetentionDays = getEnvInt("RECORD_RETENTION_DAYS", 365)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.DryRun = getEnvBool("DRY_RUN", false)

	slots, err := parsePostTimes(getEnvString("POST_TIMES", "09:30,14:15,18:45"))
	if err != nil {
		return nil, fmt.Errorf("invalid POST_TIMES: %w", err)
	}
	cfg.PostTimes = slots

	return cfg, nil
}

// parsePostTimes は "HH:MM,HH:MM,..." 形式の文字列をスロット列に変換する。
// 空文字列は空のスロット列を返す（スケジューラ側でデフォルトを適用する）。
func parsePostTimes(s string) ([]model.ScheduleSlot, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}

	var slots []model.ScheduleSlot
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		hm := strings.SplitN(part, ":", 2)
		if len(hm) != 2 {
			return nil, fmt.Errorf("invalid slot %q (want HH:MM)", part)
		}
		hour, err := strconv.Atoi(hm[0])
		if err != nil || hour < 0 || hour > 23 {
			return nil, fmt.Errorf("invalid hour in slot %q", part)
		}
		minute, err := strconv.Atoi(hm[1])
		if err != nil || minute < 0 || minute > 59 {
			return nil, fmt.Errorf("invalid minute in slot %q", part)
		}
		slots = append(slots, model.ScheduleSlot{Hour: hour, Minute: minute})
	}
	return slots, nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvInt64(key string, defaultVal int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}

func getEnvCSV(key string, defaultVal []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultVal
	}
	return out
}
