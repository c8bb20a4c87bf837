package assessment

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/TobiSchelling/MindCare/internal/database"
	"github.com/TobiSchelling/MindCare/internal/knowledge"
	"github.com/TobiSchelling/MindCare/internal/scl90"
)

func openTestDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

type mockCache struct {
	values      map[string]string
	getErr      error
	setErr      error
	gets        int
	invalidated []string
}

func newMockCache() *mockCache { return &mockCache{values: map[string]string{}} }

func (m *mockCache) Get(ctx context.Context, ownerID string) (string, bool, error) {
	m.gets++
	if m.getErr != nil {
		return "", false, m.getErr
	}
	v, ok := m.values[ownerID]
	return v, ok, nil
}

func (m *mockCache) Set(ctx context.Context, ownerID, summary string) error {
	if m.setErr != nil {
		return m.setErr
	}
	m.values[ownerID] = summary
	return nil
}

func (m *mockCache) Invalidate(ctx context.Context, ownerID string) error {
	m.invalidated = append(m.invalidated, ownerID)
	delete(m.values, ownerID)
	return nil
}

func answers(score int, overrides map[int]int) scl90.AnswerSet {
	m := make(map[int]int, scl90.ItemCount)
	for i := 1; i <= scl90.ItemCount; i++ {
		m[i] = score
	}
	for id, s := range overrides {
		m[id] = s
	}
	return scl90.FromInts(m)
}

func TestSubmitStoresAndSyncs(t *testing.T) {
	db := openTestDB(t)
	fusion := knowledge.NewFusion(db, nil)
	c := newMockCache()
	svc := NewService(db, fusion, c)
	ctx := context.Background()

	id, result, err := svc.Submit(ctx, "alice", answers(1, map[int]int{1: 4}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.TotalScore != 93 {
		t.Errorf("expected total 93, got %d", result.TotalScore)
	}

	detail, err := svc.Detail("alice", id)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if detail == nil {
		t.Fatal("expected stored detail")
	}
	if detail.TotalScore != 93 || len(detail.AbnormalItems) != 1 {
		t.Errorf("unexpected detail: %+v", detail)
	}
	if detail.FactorResults[scl90.Somatization].RawSum != 15 {
		t.Errorf("expected somatization raw sum 15, got %d", detail.FactorResults[scl90.Somatization].RawSum)
	}

	if got := c.values["alice"]; got != scl90.Summary(result) {
		t.Errorf("expected fresh summary to be cached, got %q", got)
	}

	items, _ := fusion.List("alice")
	if len(items) != 1 || items[0].Title != ReportTitle {
		t.Fatalf("expected a private report entry, got %+v", items)
	}
	if !strings.Contains(items[0].Content, "头痛(4分)") {
		t.Errorf("unexpected report content %q", items[0].Content)
	}
}

func TestSubmitReplacesStaleCachedSummary(t *testing.T) {
	c := newMockCache()
	svc := NewService(openTestDB(t), nil, c)
	ctx := context.Background()

	svc.Submit(ctx, "alice", answers(1, nil))
	// A reader that loaded the first record caches it after the next submit started.
	c.values["alice"] = "SCL-90总分: 90, 异常症状: 无"
	svc.Submit(ctx, "alice", answers(1, map[int]int{2: 3}))

	want := "SCL-90总分: 92, 异常症状: 神经过敏，心中不踏实"
	if got, _ := svc.LatestSummary(ctx, "alice"); got != want {
		t.Errorf("expected %q after resubmit, got %q", want, got)
	}
}

func TestSubmitCacheWriteFailureInvalidates(t *testing.T) {
	c := newMockCache()
	c.values["alice"] = "stale"
	c.setErr = errors.New("redis down")
	svc := NewService(openTestDB(t), nil, c)

	if _, _, err := svc.Submit(context.Background(), "alice", answers(1, nil)); err != nil {
		t.Fatalf("cache failure must not fail the submit, got %v", err)
	}
	if _, ok := c.values["alice"]; ok {
		t.Error("expected stale entry to be dropped")
	}
	if len(c.invalidated) != 1 || c.invalidated[0] != "alice" {
		t.Errorf("expected invalidation for alice, got %v", c.invalidated)
	}
}

func TestSubmitValidation(t *testing.T) {
	svc := NewService(openTestDB(t), nil, nil)
	_, _, err := svc.Submit(context.Background(), "alice", answers(1, map[int]int{5: 6}))
	if !errors.Is(err, scl90.ErrValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
	history, _ := svc.History("alice")
	if len(history) != 0 {
		t.Error("invalid submissions must not be stored")
	}
}

func TestDetailForeignOwner(t *testing.T) {
	svc := NewService(openTestDB(t), nil, nil)
	id, _, _ := svc.Submit(context.Background(), "alice", answers(2, nil))

	d, err := svc.Detail("bob", id)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d != nil {
		t.Error("expected nil for foreign record")
	}
}

func TestLatestSummaryReadsThroughCache(t *testing.T) {
	c := newMockCache()
	svc := NewService(openTestDB(t), nil, c)
	ctx := context.Background()

	summary, err := svc.LatestSummary(ctx, "alice")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary != "" {
		t.Errorf("expected empty summary without records, got %q", summary)
	}

	svc.Submit(ctx, "alice", answers(1, map[int]int{2: 3}))
	summary, _ = svc.LatestSummary(ctx, "alice")
	want := "SCL-90总分: 92, 异常症状: 神经过敏，心中不踏实"
	if summary != want {
		t.Errorf("expected %q, got %q", want, summary)
	}
	if c.values["alice"] != want {
		t.Error("expected summary to be cached")
	}

	c.values["alice"] = "cached"
	if got, _ := svc.LatestSummary(ctx, "alice"); got != "cached" {
		t.Errorf("expected cached value to be served, got %q", got)
	}
}

func TestLatestSummaryCacheFailureFallsThrough(t *testing.T) {
	c := newMockCache()
	c.getErr = errors.New("redis down")
	svc := NewService(openTestDB(t), nil, c)
	ctx := context.Background()
	svc.Submit(ctx, "alice", answers(1, nil))

	summary, err := svc.LatestSummary(ctx, "alice")
	if err != nil {
		t.Fatalf("cache failure must not fail the lookup, got %v", err)
	}
	if summary != "SCL-90总分: 90, 异常症状: 无" {
		t.Errorf("unexpected summary %q", summary)
	}
}

func TestHistoryNewestFirst(t *testing.T) {
	svc := NewService(openTestDB(t), nil, nil)
	ctx := context.Background()
	first, _, _ := svc.Submit(ctx, "alice", answers(1, nil))
	second, _, _ := svc.Submit(ctx, "alice", answers(2, nil))

	history, err := svc.History("alice")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(history) != 2 || history[0].ID != second || history[1].ID != first {
		t.Errorf("unexpected history order: %+v", history)
	}
	if history[1].AverageScore != 1.0 || history[0].TotalScore != 180 {
		t.Errorf("unexpected history values: %+v", history)
	}
}
