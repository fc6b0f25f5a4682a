package items

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kailas-cloud/newsdex/internal/domain"
)

// --- Mocks ---

type mockReader struct {
	queryItems  []domain.Item
	queryCursor string
	queryErr    error
	freshItems  []domain.Item
	freshErr    error
	popItems    []domain.Item
	popErr      error
	getItem     domain.Item
	getErr      error

	gotCategory domain.Category
	gotLimit    int
	gotCursor   string
	gotWindow   time.Duration
}

func (m *mockReader) Query(_ context.Context, category domain.Category, limit int, cursor string) (
	[]domain.Item, string, error,
) {
	m.gotCategory, m.gotLimit, m.gotCursor = category, limit, cursor
	return m.queryItems, m.queryCursor, m.queryErr
}

func (m *mockReader) QueryFresh(_ context.Context, category domain.Category, window time.Duration, limit int) (
	[]domain.Item, error,
) {
	m.gotCategory, m.gotWindow, m.gotLimit = category, window, limit
	return m.freshItems, m.freshErr
}

func (m *mockReader) QueryByPopularityPercentile(_ context.Context, _, _ float64, _ int) ([]domain.Item, error) {
	return m.popItems, m.popErr
}

func (m *mockReader) GetByID(_ context.Context, _ string) (domain.Item, error) {
	return m.getItem, m.getErr
}

type mockCounters struct {
	viewCount  int64
	viewErr    error
	clickCount int64
	clickErr   error
}

func (m *mockCounters) RecordView(_ context.Context, _ string) (int64, error) {
	return m.viewCount, m.viewErr
}
func (m *mockCounters) RecordClick(_ context.Context, _ string) (int64, error) {
	return m.clickCount, m.clickErr
}

type mockSearcher struct {
	items []domain.Item
	err   error
}

func (m *mockSearcher) Search(_ context.Context, _ string, _ int) ([]domain.Item, error) {
	return m.items, m.err
}

func titled(id, title string) domain.Item {
	return domain.Item{ID: id, Title: title, Category: domain.CategoryTech}
}

// --- List tests ---

func TestList_PassesThrough(t *testing.T) {
	reader := &mockReader{
		queryItems:  []domain.Item{titled("a", "one"), titled("b", "two")},
		queryCursor: "next-token",
	}
	svc := New(reader, &mockCounters{})

	items, next, err := svc.List(context.Background(), domain.CategoryTech, 5, "tok")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(items) != 2 || next != "next-token" {
		t.Errorf("got %d items, cursor %q", len(items), next)
	}
	if reader.gotCategory != domain.CategoryTech || reader.gotLimit != 5 || reader.gotCursor != "tok" {
		t.Errorf("reader got (%v, %d, %q)", reader.gotCategory, reader.gotLimit, reader.gotCursor)
	}
}

func TestList_CollapsesNearDuplicates(t *testing.T) {
	reader := &mockReader{queryItems: []domain.Item{
		titled("a", "Go 1.26 released with faster GC"),
		titled("b", "Go 1.26 released, faster GC included"),
		titled("c", "Quarterly earnings beat estimates"),
	}}
	svc := New(reader, &mockCounters{})

	items, _, err := svc.List(context.Background(), "", 20, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("got %d items, want 2 after collapse", len(items))
	}
	if items[0].ID != "a" {
		t.Errorf("group must keep its earliest member, got %s", items[0].ID)
	}
	if items[0].GroupID == "" || items[0].GroupCount != 2 {
		t.Errorf("group lead = %+v, want group id and count 2", items[0])
	}
	if items[1].GroupID != "" || items[1].GroupCount != 0 {
		t.Errorf("singleton must stay unannotated, got %+v", items[1])
	}
}

func TestList_GroupIDsAreFreshPerCall(t *testing.T) {
	reader := &mockReader{queryItems: []domain.Item{
		titled("a", "Go 1.26 released with faster GC"),
		titled("b", "Go 1.26 released, faster GC included"),
	}}
	svc := New(reader, &mockCounters{})

	first, _, _ := svc.List(context.Background(), "", 20, "")
	second, _, _ := svc.List(context.Background(), "", 20, "")
	if first[0].GroupID == second[0].GroupID {
		t.Error("group ids must not be stable across calls")
	}
}

func TestList_GroupingDisabled(t *testing.T) {
	reader := &mockReader{queryItems: []domain.Item{
		titled("a", "Go 1.26 released with faster GC"),
		titled("b", "Go 1.26 released, faster GC included"),
	}}
	svc := New(reader, &mockCounters{}).WithGrouping(false, 0)

	items, _, err := svc.List(context.Background(), "", 20, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(items) != 2 {
		t.Errorf("got %d items, want 2 with grouping off", len(items))
	}
}

func TestList_ReaderError(t *testing.T) {
	reader := &mockReader{queryErr: errors.New("boom")}
	svc := New(reader, &mockCounters{})

	if _, _, err := svc.List(context.Background(), "", 20, ""); err == nil {
		t.Fatal("expected error")
	}
}

// --- Fresh tests ---

func TestFresh_WindowFallback(t *testing.T) {
	reader := &mockReader{freshItems: []domain.Item{titled("a", "one")}}
	svc := New(reader, &mockCounters{}).WithFreshWindow(30 * time.Minute)

	items, err := svc.Fresh(context.Background(), domain.CategoryScience, 0, 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(items) != 1 {
		t.Errorf("got %d items", len(items))
	}
	if reader.gotWindow != 30*time.Minute {
		t.Errorf("default window = %v, want 30m", reader.gotWindow)
	}

	if _, err := svc.Fresh(context.Background(), "", 10*time.Minute, 5); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reader.gotWindow != 10*time.Minute {
		t.Errorf("explicit window = %v, want 10m", reader.gotWindow)
	}
}

// --- Popular tests ---

func TestPopular_NoCollapse(t *testing.T) {
	reader := &mockReader{popItems: []domain.Item{
		titled("a", "Go 1.26 released with faster GC"),
		titled("b", "Go 1.26 released, faster GC included"),
	}}
	svc := New(reader, &mockCounters{})

	items, err := svc.Popular(context.Background(), 80, 100, 20)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(items) != 2 {
		t.Errorf("popular ranking must not collapse titles, got %d items", len(items))
	}
}

// --- Get / Search tests ---

func TestGet_NotFound(t *testing.T) {
	reader := &mockReader{getErr: domain.ErrItemNotFound}
	svc := New(reader, &mockCounters{})

	_, err := svc.Get(context.Background(), "missing")
	if !errors.Is(err, domain.ErrItemNotFound) {
		t.Errorf("expected ErrItemNotFound, got %v", err)
	}
}

func TestSearch_Unsupported(t *testing.T) {
	svc := New(&mockReader{}, &mockCounters{})

	if _, err := svc.Search(context.Background(), "go", 10); !errors.Is(err, domain.ErrUnsupported) {
		t.Errorf("expected ErrUnsupported, got %v", err)
	}
}

func TestSearch_Delegates(t *testing.T) {
	svc := New(&mockReader{}, &mockCounters{}).
		WithSearcher(&mockSearcher{items: []domain.Item{titled("a", "go")}})

	items, err := svc.Search(context.Background(), "go", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(items) != 1 {
		t.Errorf("got %d items", len(items))
	}
}

// --- Counter tests ---

func TestRecordView(t *testing.T) {
	svc := New(&mockReader{}, &mockCounters{viewCount: 7})

	count, err := svc.RecordView(context.Background(), "a")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 7 {
		t.Errorf("count = %d, want 7", count)
	}
}

func TestRecordClick_NotFound(t *testing.T) {
	svc := New(&mockReader{}, &mockCounters{clickErr: domain.ErrItemNotFound})

	if _, err := svc.RecordClick(context.Background(), "gone"); !errors.Is(err, domain.ErrItemNotFound) {
		t.Errorf("expected ErrItemNotFound, got %v", err)
	}
}
