package store

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/pinflow/internal/model"
)

// --- モック定義 ---

// mockRecordRepo はRecordRepositoryのテスト用モック。
type mockRecordRepo struct {
	insertFunc          func(ctx context.Context, rec *model.PostRecord) error
	listPostedSinceFunc func(ctx context.Context, since time.Time, includeFailed bool) ([]string, error)
	listRecentFunc      func(ctx context.Context, limit int) ([]*model.PostRecord, error)
	statsFunc           func(ctx context.Context, now time.Time) (*model.Stats, error)
}

func (m *mockRecordRepo) Insert(ctx context.Context, rec *model.PostRecord) error {
	if m.insertFunc != nil {
		return m.insertFunc(ctx, rec)
	}
	return nil
}

func (m *mockRecordRepo) ListPostedSince(ctx context.Context, since time.Time, includeFailed bool) ([]string, error) {
	if m.listPostedSinceFunc != nil {
		return m.listPostedSinceFunc(ctx, since, includeFailed)
	}
	return nil, nil
}

func (m *mockRecordRepo) ListRecent(ctx context.Context, limit int) ([]*model.PostRecord, error) {
	if m.listRecentFunc != nil {
		return m.listRecentFunc(ctx, limit)
	}
	return nil, nil
}

func (m *mockRecordRepo) Stats(ctx context.Context, now time.Time) (*model.Stats, error) {
	if m.statsFunc != nil {
		return m.statsFunc(ctx, now)
	}
	return &model.Stats{}, nil
}

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, nil))
}

// --- テスト ---

func TestRecordStore_Record_PersistsToRepo(t *testing.T) {
	var inserted *model.PostRecord
	repo := &mockRecordRepo{
		insertFunc: func(ctx context.Context, rec *model.PostRecord) error {
			inserted = rec
			return nil
		},
	}
	store := New(repo, newTestLogger(&bytes.Buffer{}), true)

	store.Record(context.Background(), "B001", "Test Product", 19.99, "https://example.com/dp/B001", "home decor", true)

	if inserted == nil {
		t.Fatal("expected record to be inserted")
	}
	if inserted.ID == "" {
		t.Error("expected non-empty record ID")
	}
	if inserted.ASIN != "B001" {
		t.Errorf("ASIN = %q, want %q", inserted.ASIN, "B001")
	}
	if inserted.Price != 19.99 {
		t.Errorf("Price = %v, want 19.99", inserted.Price)
	}
	if !inserted.PinCreated {
		t.Error("PinCreated = false, want true")
	}
	if inserted.PostedAt.IsZero() {
		t.Error("expected PostedAt to be set")
	}
}

func TestRecordStore_Record_FallsBackToMemoryOnInsertFailure(t *testing.T) {
	repo := &mockRecordRepo{
		insertFunc: func(ctx context.Context, rec *model.PostRecord) error {
			return errors.New("db down")
		},
	}
	buf := &bytes.Buffer{}
	store := New(repo, newTestLogger(buf), true)

	// Recordはエラーを返さない
	store.Record(context.Background(), "B001", "Test Product", 0, "", "home decor", false)

	if store.fallback.Len() != 1 {
		t.Fatalf("fallback length = %d, want 1", store.fallback.Len())
	}
	if !strings.Contains(buf.String(), "db down") {
		t.Error("expected persistence failure to be logged")
	}
}

func TestRecordStore_RecentlyPosted_MergesRepoAndFallback(t *testing.T) {
	repo := &mockRecordRepo{
		listPostedSinceFunc: func(ctx context.Context, since time.Time, includeFailed bool) ([]string, error) {
			return []string{"B001", "B002"}, nil
		},
		insertFunc: func(ctx context.Context, rec *model.PostRecord) error {
			return errors.New("db down")
		},
	}
	store := New(repo, newTestLogger(&bytes.Buffer{}), true)

	// 縮退バッファへ退避させる
	store.Record(context.Background(), "B003", "Fallback Product", 0, "", "kitchen gadgets", true)

	recent := store.RecentlyPosted(context.Background(), 7)
	for _, asin := range []string{"B001", "B002", "B003"} {
		if _, ok := recent[asin]; !ok {
			t.Errorf("expected %q in recently posted set", asin)
		}
	}
}

func TestRecordStore_RecentlyPosted_RepoFailureUsesFallbackOnly(t *testing.T) {
	repo := &mockRecordRepo{
		listPostedSinceFunc: func(ctx context.Context, since time.Time, includeFailed bool) ([]string, error) {
			return nil, errors.New("db down")
		},
		insertFunc: func(ctx context.Context, rec *model.PostRecord) error {
			return errors.New("db down")
		},
	}
	store := New(repo, newTestLogger(&bytes.Buffer{}), true)
	store.Record(context.Background(), "B003", "Fallback Product", 0, "", "kitchen gadgets", true)

	recent := store.RecentlyPosted(context.Background(), 7)
	if len(recent) != 1 {
		t.Fatalf("recently posted size = %d, want 1", len(recent))
	}
	if _, ok := recent["B003"]; !ok {
		t.Error("expected fallback record in recently posted set")
	}
}

func TestRecordStore_RecentlyPosted_IncludeFailedFlagPropagates(t *testing.T) {
	var gotIncludeFailed bool
	repo := &mockRecordRepo{
		listPostedSinceFunc: func(ctx context.Context, since time.Time, includeFailed bool) ([]string, error) {
			gotIncludeFailed = includeFailed
			return nil, nil
		},
	}
	store := New(repo, newTestLogger(&bytes.Buffer{}), false)

	store.RecentlyPosted(context.Background(), 7)
	if gotIncludeFailed {
		t.Error("includeFailed = true, want false")
	}
}

func TestRecordStore_RecentlyPosted_WindowIsApplied(t *testing.T) {
	fixed := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	var gotSince time.Time
	repo := &mockRecordRepo{
		listPostedSinceFunc: func(ctx context.Context, since time.Time, includeFailed bool) ([]string, error) {
			gotSince = since
			return nil, nil
		},
	}
	store := New(repo, newTestLogger(&bytes.Buffer{}), true)
	store.now = func() time.Time { return fixed }

	store.RecentlyPosted(context.Background(), 7)

	want := fixed.AddDate(0, 0, -7)
	if !gotSince.Equal(want) {
		t.Errorf("since = %v, want %v", gotSince, want)
	}
}

func TestRecordStore_Stats_SumsRepoAndFallback(t *testing.T) {
	repo := &mockRecordRepo{
		statsFunc: func(ctx context.Context, now time.Time) (*model.Stats, error) {
			return &model.Stats{Total: 10, Succeeded: 8, Failed: 2, Last7Days: 3, Last30Days: 7}, nil
		},
		insertFunc: func(ctx context.Context, rec *model.PostRecord) error {
			return errors.New("db down")
		},
	}
	store := New(repo, newTestLogger(&bytes.Buffer{}), true)
	store.Record(context.Background(), "B003", "Fallback Product", 0, "", "kitchen gadgets", true)

	stats := store.Stats(context.Background())
	if stats.Total != 11 {
		t.Errorf("Total = %d, want 11", stats.Total)
	}
	if stats.Succeeded != 9 {
		t.Errorf("Succeeded = %d, want 9", stats.Succeeded)
	}
	if stats.Failed != 2 {
		t.Errorf("Failed = %d, want 2", stats.Failed)
	}
}

func TestRecordStore_Stats_RepoFailureReturnsFallbackOnly(t *testing.T) {
	repo := &mockRecordRepo{
		statsFunc: func(ctx context.Context, now time.Time) (*model.Stats, error) {
			return nil, errors.New("db down")
		},
	}
	store := New(repo, newTestLogger(&bytes.Buffer{}), true)

	stats := store.Stats(context.Background())
	if stats.Total != 0 {
		t.Errorf("Total = %d, want 0", stats.Total)
	}
}

func TestRecordStore_ListRecent_AppliesLimit(t *testing.T) {
	repo := &mockRecordRepo{
		listRecentFunc: func(ctx context.Context, limit int) ([]*model.PostRecord, error) {
			return []*model.PostRecord{
				{ASIN: "B001"}, {ASIN: "B002"},
			}, nil
		},
		insertFunc: func(ctx context.Context, rec *model.PostRecord) error {
			return errors.New("db down")
		},
	}
	store := New(repo, newTestLogger(&bytes.Buffer{}), true)
	store.Record(context.Background(), "B003", "Fallback Product", 0, "", "kitchen gadgets", true)

	records := store.ListRecent(context.Background(), 2)
	if len(records) != 2 {
		t.Fatalf("records length = %d, want 2", len(records))
	}
}
