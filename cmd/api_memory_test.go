package cmd

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	dto "github.com/prometheus/client_model/go"

	"github.com/engramkit/engram/pkg/embedding"
	"github.com/engramkit/engram/pkg/memory"
	"github.com/engramkit/engram/pkg/semantic"
	"github.com/engramkit/engram/pkg/vectorstore"
)

func newTestAPI(t *testing.T) (*MemoryAPI, *http.ServeMux, *apiMetrics) {
	t.Helper()
	dir := t.TempDir()
	vs, err := vectorstore.NewFileStore(filepath.Join(dir, "vectors.json"), nil)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	t.Cleanup(func() { _ = vs.Close() })

	sem := semantic.New(embedding.NewTFIDF(0), vs, 0)
	store, err := memory.NewStore(filepath.Join(dir, "memory.json"), memory.Options{
		Semantic:  sem,
		Extractor: memory.NewExtractor(),
	})
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	metrics := newAPIMetrics()
	mw := func(route string, next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next(rec, r)
			metrics.recordRequest(r.Method, route, http.StatusText(rec.status), 0)
		}
	}

	api := &MemoryAPI{store: store}
	mux := http.NewServeMux()
	api.RegisterMemoryRoutes(mux, mw)
	return api, mux, metrics
}

func postJSON(t *testing.T, mux *http.ServeMux, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

func TestAddAndGetEndpoints(t *testing.T) {
	_, mux, _ := newTestAPI(t)

	w := postJSON(t, mux, "/v1/memory/add", `{"key":"preference:color","value":{"raw":"我喜欢蓝色"}}`)
	if w.Code != http.StatusOK {
		t.Fatalf("add status = %d, body %s", w.Code, w.Body.String())
	}
	var rec memory.Record
	if err := json.Unmarshal(w.Body.Bytes(), &rec); err != nil {
		t.Fatalf("decode add response: %v", err)
	}
	if rec.ID == "" {
		t.Fatal("expected generated id")
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/memory/get?id="+rec.ID, nil)
	w2 := httptest.NewRecorder()
	mux.ServeHTTP(w2, req)
	if w2.Code != http.StatusOK {
		t.Fatalf("get status = %d", w2.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/v1/memory/get?id=missing", nil)
	w3 := httptest.NewRecorder()
	mux.ServeHTTP(w3, req)
	if w3.Code != http.StatusNotFound {
		t.Errorf("missing id status = %d, want 404", w3.Code)
	}
}

func TestAddEndpointRejectsEmptyKey(t *testing.T) {
	_, mux, _ := newTestAPI(t)

	w := postJSON(t, mux, "/v1/memory/add", `{}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if body["error"] == "" {
		t.Error("expected error message in body")
	}
}

func TestSearchEndpoint(t *testing.T) {
	_, mux, _ := newTestAPI(t)

	w := postJSON(t, mux, "/v1/memory/add-vector", `{"key":"preference:color","value":{"raw":"我喜欢蓝色"}}`)
	if w.Code != http.StatusOK {
		t.Fatalf("add-vector status = %d", w.Code)
	}

	w = postJSON(t, mux, "/v1/memory/search", `{"query":"蓝色","limit":5}`)
	if w.Code != http.StatusOK {
		t.Fatalf("search status = %d, body %s", w.Code, w.Body.String())
	}
	var hits []memory.ScoredRecord
	if err := json.Unmarshal(w.Body.Bytes(), &hits); err != nil {
		t.Fatalf("decode search response: %v", err)
	}
	if len(hits) == 0 {
		t.Fatal("expected at least one hit")
	}
	if hits[0].Key != "preference:color" {
		t.Errorf("top hit key = %q", hits[0].Key)
	}

	w = postJSON(t, mux, "/v1/memory/search", `{"query":""}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("empty query status = %d, want 400", w.Code)
	}
}

func TestLearnEndpoint(t *testing.T) {
	_, mux, _ := newTestAPI(t)

	w := postJSON(t, mux, "/v1/memory/learn", `{
		"user_id": "u1",
		"messages": [
			{"role": "user", "content": "我喜欢蓝色"},
			{"role": "assistant", "content": "好的"}
		]
	}`)
	if w.Code != http.StatusOK {
		t.Fatalf("learn status = %d, body %s", w.Code, w.Body.String())
	}
	var resp struct {
		Learned []memory.Record `json:"learned"`
		Count   int             `json:"count"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode learn response: %v", err)
	}
	if resp.Count != 1 {
		t.Fatalf("count = %d, want 1", resp.Count)
	}
	if resp.Learned[0].Type != memory.TypePreference {
		t.Errorf("type = %q, want preference", resp.Learned[0].Type)
	}
}

func TestConsolidateEndpoint(t *testing.T) {
	_, mux, _ := newTestAPI(t)

	postJSON(t, mux, "/v1/memory/add", `{"user_id":"u1","key":"preference:color","priority":"low"}`)
	postJSON(t, mux, "/v1/memory/add", `{"user_id":"u1","key":"preference:color","priority":"high"}`)

	w := postJSON(t, mux, "/v1/memory/consolidate", `{"user_id":"u1","key":"preference:color"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("consolidate status = %d", w.Code)
	}
	var res memory.ConsolidateResult
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode consolidate response: %v", err)
	}
	if res.Count != 1 {
		t.Errorf("superseded count = %d, want 1", res.Count)
	}
	if res.Merged == nil || res.Merged.Priority != memory.PriorityHigh {
		t.Error("expected the high-priority record to win")
	}
}

func TestMethodNotAllowed(t *testing.T) {
	_, mux, _ := newTestAPI(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/memory/add", nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", w.Code)
	}
}

func TestMetricsCountRequests(t *testing.T) {
	_, mux, metrics := newTestAPI(t)

	postJSON(t, mux, "/v1/memory/add", `{"key":"a"}`)
	postJSON(t, mux, "/v1/memory/add", `{"key":"b"}`)

	families, err := metrics.registry.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	var total float64
	var fam *dto.MetricFamily
	for _, f := range families {
		if f.GetName() == "engram_http_requests_total" {
			fam = f
		}
	}
	if fam == nil {
		t.Fatal("engram_http_requests_total not gathered")
	}
	for _, m := range fam.GetMetric() {
		total += m.GetCounter().GetValue()
	}
	if total != 2 {
		t.Errorf("requests_total = %f, want 2", total)
	}
}
