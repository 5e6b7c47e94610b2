package repository

import (
	"testing"
	"time"

	"github.com/hitoshi/pinflow/internal/model"
)

// PostgresRecordRepoはRecordRepositoryインターフェースを満たすことを検証
func TestPostgresRecordRepo_ImplementsInterface(t *testing.T) {
	var _ RecordRepository = (*PostgresRecordRepo)(nil)
}

// NewPostgresRecordRepoが正しく初期化されることを検証
func TestNewPostgresRecordRepo_Initializes(t *testing.T) {
	repo := NewPostgresRecordRepo(nil)
	if repo == nil {
		t.Fatal("expected non-nil repo")
	}
}

// PostRecordモデルのフィールドが正しく構築されることを検証
func TestPostgresRecordRepo_RecordModel_Fields(t *testing.T) {
	now := time.Now()
	record := &model.PostRecord{
		ID:            "record-id-1",
		ASIN:          "B08XYZ1234",
		Title:         "モダンウォールアートキャンバス",
		Price:         49.99,
		AffiliateLink: "https://www.amazon.com/dp/B08XYZ1234/?tag=pinflow-20",
		Keyword:       "home decor",
		PinCreated:    true,
		PostedAt:      now,
	}

	if record.ID != "record-id-1" {
		t.Errorf("record.ID = %q, want %q", record.ID, "record-id-1")
	}
	if record.ASIN != "B08XYZ1234" {
		t.Errorf("record.ASIN = %q, want %q", record.ASIN, "B08XYZ1234")
	}
	if record.Price != 49.99 {
		t.Errorf("record.Price = %v, want %v", record.Price, 49.99)
	}
	if !record.PinCreated {
		t.Error("record.PinCreated = false, want true")
	}
	if !record.PostedAt.Equal(now) {
		t.Errorf("record.PostedAt = %v, want %v", record.PostedAt, now)
	}
}
