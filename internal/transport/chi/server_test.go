package chi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/newsdex/internal/domain"
	"github.com/kailas-cloud/newsdex/internal/store"
)

// --- Mocks ---

type mockItems struct {
	listItems   []domain.Item
	listCursor  string
	listErr     error
	freshItems  []domain.Item
	freshErr    error
	popItems    []domain.Item
	popErr      error
	getItem     domain.Item
	getErr      error
	searchItems []domain.Item
	searchErr   error
	viewCount   int64
	viewErr     error
	clickCount  int64
	clickErr    error

	popCalls    int
	gotCategory domain.Category
	gotWindow   time.Duration
	gotCursor   string
}

func (m *mockItems) List(_ context.Context, category domain.Category, _ int, cursor string) (
	[]domain.Item, string, error,
) {
	m.gotCategory, m.gotCursor = category, cursor
	return m.listItems, m.listCursor, m.listErr
}

func (m *mockItems) Fresh(_ context.Context, category domain.Category, window time.Duration, _ int) (
	[]domain.Item, error,
) {
	m.gotCategory, m.gotWindow = category, window
	return m.freshItems, m.freshErr
}

func (m *mockItems) Popular(_ context.Context, _, _ float64, _ int) ([]domain.Item, error) {
	m.popCalls++
	return m.popItems, m.popErr
}

func (m *mockItems) Get(_ context.Context, _ string) (domain.Item, error) {
	return m.getItem, m.getErr
}

func (m *mockItems) Search(_ context.Context, _ string, _ int) ([]domain.Item, error) {
	return m.searchItems, m.searchErr
}

func (m *mockItems) RecordView(_ context.Context, _ string) (int64, error) {
	return m.viewCount, m.viewErr
}

func (m *mockItems) RecordClick(_ context.Context, _ string) (int64, error) {
	return m.clickCount, m.clickErr
}

type mockHealth struct{ err error }

func (m *mockHealth) Ping(_ context.Context) error { return m.err }

type mapCache struct {
	values map[string][]byte
	sets   int
}

func newMapCache() *mapCache { return &mapCache{values: map[string][]byte{}} }

func (c *mapCache) CacheGet(_ context.Context, key string) ([]byte, error) {
	if v, ok := c.values[key]; ok {
		return v, nil
	}
	return nil, store.ErrCacheMiss
}

func (c *mapCache) CacheSet(_ context.Context, key string, value []byte, _ time.Duration) error {
	c.values[key] = value
	c.sets++
	return nil
}

func serve(t *testing.T, s *Server, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, http.NoBody)
	rr := httptest.NewRecorder()
	s.Routes().ServeHTTP(rr, req)
	return rr
}

func decodeList(t *testing.T, rr *httptest.ResponseRecorder) listResponse {
	t.Helper()
	var resp listResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp
}

// --- Tests ---

func TestListItems(t *testing.T) {
	items := &mockItems{
		listItems:  []domain.Item{{ID: "a", Title: "one"}},
		listCursor: "tok",
	}
	s := NewServer(items, &mockHealth{}, zap.NewNop())

	rr := serve(t, s, "GET", "/api/items?category=tech&cursor=abc")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	resp := decodeList(t, rr)
	if len(resp.Items) != 1 || resp.NextCursor != "tok" {
		t.Errorf("resp = %+v", resp)
	}
	if items.gotCategory != domain.CategoryTech || items.gotCursor != "abc" {
		t.Errorf("service got (%v, %q)", items.gotCategory, items.gotCursor)
	}
}

func TestListItems_EmptyPageIsArray(t *testing.T) {
	s := NewServer(&mockItems{}, &mockHealth{}, zap.NewNop())

	rr := serve(t, s, "GET", "/api/items")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(rr.Body.Bytes(), &raw); err != nil {
		t.Fatal(err)
	}
	if string(raw["items"]) != "[]" {
		t.Errorf(`items = %s, want []`, raw["items"])
	}
}

func TestListItems_InvalidCategory(t *testing.T) {
	s := NewServer(&mockItems{}, &mockHealth{}, zap.NewNop())

	rr := serve(t, s, "GET", "/api/items?category=cooking")
	if rr.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rr.Code)
	}
}

func TestListItems_FreshWindow(t *testing.T) {
	items := &mockItems{freshItems: []domain.Item{{ID: "a"}}}
	s := NewServer(items, &mockHealth{}, zap.NewNop())

	rr := serve(t, s, "GET", "/api/items?fresh_minutes=45")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if items.gotWindow != 45*time.Minute {
		t.Errorf("window = %v, want 45m", items.gotWindow)
	}

	rr = serve(t, s, "GET", "/api/items?fresh_minutes=soon")
	if rr.Code != http.StatusBadRequest {
		t.Errorf("garbage fresh_minutes: status = %d, want 400", rr.Code)
	}
}

func TestListItems_StorageErrorIs503(t *testing.T) {
	items := &mockItems{listErr: &store.Error{Op: store.OpQuery, Err: errors.New("connection refused")}}
	s := NewServer(items, &mockHealth{}, zap.NewNop())

	rr := serve(t, s, "GET", "/api/items")
	if rr.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rr.Code)
	}
}

func TestGetItem_NotFound(t *testing.T) {
	items := &mockItems{getErr: domain.ErrItemNotFound}
	s := NewServer(items, &mockHealth{}, zap.NewNop())

	rr := serve(t, s, "GET", "/api/items/nope")
	if rr.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rr.Code)
	}
}

func TestPopular_CachesResponse(t *testing.T) {
	items := &mockItems{popItems: []domain.Item{{ID: "a", Title: "hot"}}}
	cache := newMapCache()
	s := NewServer(items, &mockHealth{}, zap.NewNop()).WithCache(cache)

	rr := serve(t, s, "GET", "/api/items/popular")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if items.popCalls != 1 || cache.sets != 1 {
		t.Fatalf("first hit: popCalls = %d, cache sets = %d", items.popCalls, cache.sets)
	}
	first := rr.Body.String()

	rr = serve(t, s, "GET", "/api/items/popular")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if items.popCalls != 1 {
		t.Errorf("second hit must come from cache, popCalls = %d", items.popCalls)
	}
	if rr.Body.String() != first {
		t.Error("cached body differs from original")
	}
}

func TestPopular_DistinctWindowsDistinctCacheKeys(t *testing.T) {
	items := &mockItems{popItems: []domain.Item{{ID: "a"}}}
	cache := newMapCache()
	s := NewServer(items, &mockHealth{}, zap.NewNop()).WithCache(cache)

	serve(t, s, "GET", "/api/items/popular?min=80&max=100")
	serve(t, s, "GET", "/api/items/popular?min=50&max=80")
	if items.popCalls != 2 {
		t.Errorf("different percentile windows must not share a cache entry, popCalls = %d", items.popCalls)
	}
}

func TestRecordViewAndClick(t *testing.T) {
	items := &mockItems{viewCount: 5, clickCount: 2}
	s := NewServer(items, &mockHealth{}, zap.NewNop())

	rr := serve(t, s, "POST", "/api/items/a/view")
	if rr.Code != http.StatusOK {
		t.Fatalf("view status = %d", rr.Code)
	}
	var resp countResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Count != 5 {
		t.Errorf("view count = %d, want 5", resp.Count)
	}

	rr = serve(t, s, "POST", "/api/items/a/click")
	if rr.Code != http.StatusOK {
		t.Fatalf("click status = %d", rr.Code)
	}
}

func TestCategories(t *testing.T) {
	s := NewServer(&mockItems{}, &mockHealth{}, zap.NewNop())

	rr := serve(t, s, "GET", "/api/categories")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var cats []domain.CategoryInfo
	if err := json.Unmarshal(rr.Body.Bytes(), &cats); err != nil {
		t.Fatal(err)
	}
	if len(cats) != len(domain.AllCategories()) {
		t.Errorf("got %d categories, want %d", len(cats), len(domain.AllCategories()))
	}
}

func TestSearch(t *testing.T) {
	items := &mockItems{searchItems: []domain.Item{{ID: "a"}}}
	s := NewServer(items, &mockHealth{}, zap.NewNop())

	rr := serve(t, s, "GET", "/api/search?q=go")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}

	rr = serve(t, s, "GET", "/api/search")
	if rr.Code != http.StatusBadRequest {
		t.Errorf("missing q: status = %d, want 400", rr.Code)
	}
}

func TestSearch_UnsupportedBackend(t *testing.T) {
	items := &mockItems{searchErr: domain.ErrUnsupported}
	s := NewServer(items, &mockHealth{}, zap.NewNop())

	rr := serve(t, s, "GET", "/api/search?q=go")
	if rr.Code != http.StatusNotImplemented {
		t.Errorf("status = %d, want 501", rr.Code)
	}
}

func TestHealthz(t *testing.T) {
	s := NewServer(&mockItems{}, &mockHealth{}, zap.NewNop())
	rr := serve(t, s, "GET", "/healthz")
	if rr.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rr.Code)
	}

	s = NewServer(&mockItems{}, &mockHealth{err: errors.New("down")}, zap.NewNop())
	rr = serve(t, s, "GET", "/healthz")
	if rr.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rr.Code)
	}
}
