package repository

import (
	"context"
	"testing"
	"time"

	"github.com/hitoshi/pinflow/internal/model"
)

func insertRecord(t *testing.T, repo *MemoryRecordRepo, asin string, pinCreated bool, postedAt time.Time) {
	t.Helper()
	err := repo.Insert(context.Background(), &model.PostRecord{
		ID:         asin + "-id",
		ASIN:       asin,
		Title:      "title " + asin,
		PinCreated: pinCreated,
		PostedAt:   postedAt,
	})
	if err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
}

func TestMemoryRecordRepo_ListPostedSince_WindowFilter(t *testing.T) {
	repo := NewMemoryRecordRepo()
	now := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)

	insertRecord(t, repo, "B001", true, now.AddDate(0, 0, -1))
	insertRecord(t, repo, "B002", true, now.AddDate(0, 0, -10))
	insertRecord(t, repo, "B003", false, now.AddDate(0, 0, -2))

	since := now.AddDate(0, 0, -7)

	asins, err := repo.ListPostedSince(context.Background(), since, true)
	if err != nil {
		t.Fatalf("ListPostedSince failed: %v", err)
	}
	if len(asins) != 2 {
		t.Fatalf("asins length = %d, want 2", len(asins))
	}

	// includeFailed=false の場合は失敗レコードを除く
	asins, err = repo.ListPostedSince(context.Background(), since, false)
	if err != nil {
		t.Fatalf("ListPostedSince failed: %v", err)
	}
	if len(asins) != 1 {
		t.Fatalf("asins length = %d, want 1", len(asins))
	}
	if asins[0] != "B001" {
		t.Errorf("asins[0] = %q, want %q", asins[0], "B001")
	}
}

func TestMemoryRecordRepo_ListRecent_SortedAndLimited(t *testing.T) {
	repo := NewMemoryRecordRepo()
	now := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)

	insertRecord(t, repo, "B001", true, now.AddDate(0, 0, -3))
	insertRecord(t, repo, "B002", true, now.AddDate(0, 0, -1))
	insertRecord(t, repo, "B003", true, now.AddDate(0, 0, -2))

	records, err := repo.ListRecent(context.Background(), 2)
	if err != nil {
		t.Fatalf("ListRecent failed: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("records length = %d, want 2", len(records))
	}
	if records[0].ASIN != "B002" {
		t.Errorf("records[0].ASIN = %q, want %q", records[0].ASIN, "B002")
	}
	if records[1].ASIN != "B003" {
		t.Errorf("records[1].ASIN = %q, want %q", records[1].ASIN, "B003")
	}
}

func TestMemoryRecordRepo_Stats(t *testing.T) {
	repo := NewMemoryRecordRepo()
	now := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)

	insertRecord(t, repo, "B001", true, now.AddDate(0, 0, -1))   // 7日以内
	insertRecord(t, repo, "B002", false, now.AddDate(0, 0, -10)) // 30日以内
	insertRecord(t, repo, "B003", true, now.AddDate(0, 0, -40))  // 30日より古い

	stats, err := repo.Stats(context.Background(), now)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}

	if stats.Total != 3 {
		t.Errorf("Total = %d, want 3", stats.Total)
	}
	if stats.Succeeded != 2 {
		t.Errorf("Succeeded = %d, want 2", stats.Succeeded)
	}
	if stats.Failed != 1 {
		t.Errorf("Failed = %d, want 1", stats.Failed)
	}
	if stats.Last7Days != 1 {
		t.Errorf("Last7Days = %d, want 1", stats.Last7Days)
	}
	if stats.Last30Days != 2 {
		t.Errorf("Last30Days = %d, want 2", stats.Last30Days)
	}
}

func TestMemoryRecordRepo_Insert_CopiesRecord(t *testing.T) {
	repo := NewMemoryRecordRepo()
	now := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)

	rec := &model.PostRecord{ID: "id-1", ASIN: "B001", PinCreated: true, PostedAt: now}
	if err := repo.Insert(context.Background(), rec); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	// 呼び出し元の変更は保存済みレコードに影響しない
	rec.ASIN = "changed"

	records, err := repo.ListRecent(context.Background(), 1)
	if err != nil {
		t.Fatalf("ListRecent failed: %v", err)
	}
	if records[0].ASIN != "B001" {
		t.Errorf("ASIN = %q, want %q", records[0].ASIN, "B001")
	}
}
