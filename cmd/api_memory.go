package cmd

import (
	"encoding/json"
	"net/http"

	"github.com/engramkit/engram/pkg/memory"
)

// MemoryAPI handles memory-related HTTP endpoints.
type MemoryAPI struct {
	store *memory.Store
}

// RegisterMemoryRoutes adds memory endpoints to the given mux.
func (m *MemoryAPI) RegisterMemoryRoutes(mux *http.ServeMux, mw func(string, http.HandlerFunc) http.HandlerFunc) {
	mux.HandleFunc("/v1/memory/add", mw("/v1/memory/add", m.handleAdd))
	mux.HandleFunc("/v1/memory/add-vector", mw("/v1/memory/add-vector", m.handleAddVector))
	mux.HandleFunc("/v1/memory/get", mw("/v1/memory/get", m.handleGet))
	mux.HandleFunc("/v1/memory/list", mw("/v1/memory/list", m.handleList))
	mux.HandleFunc("/v1/memory/update", mw("/v1/memory/update", m.handleUpdate))
	mux.HandleFunc("/v1/memory/delete", mw("/v1/memory/delete", m.handleDelete))
	mux.HandleFunc("/v1/memory/search", mw("/v1/memory/search", m.handleSearch))
	mux.HandleFunc("/v1/memory/learn", mw("/v1/memory/learn", m.handleLearn))
	mux.HandleFunc("/v1/memory/smart-forget", mw("/v1/memory/smart-forget", m.handleSmartForget))
	mux.HandleFunc("/v1/memory/review", mw("/v1/memory/review", m.handleReview))
	mux.HandleFunc("/v1/memory/consolidate", mw("/v1/memory/consolidate", m.handleConsolidate))
	mux.HandleFunc("/v1/memory/purge", mw("/v1/memory/purge", m.handlePurge))
	mux.HandleFunc("/v1/memory/feedback", mw("/v1/memory/feedback", m.handleFeedback))
	mux.HandleFunc("/v1/memory/importance", mw("/v1/memory/importance", m.handleImportance))
	mux.HandleFunc("/v1/memory/export", mw("/v1/memory/export", m.handleExport))
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func (m *MemoryAPI) handleAdd(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req memory.AddInput
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	rec, err := m.store.Add(req)
	if err != nil {
		if err == memory.ErrEmptyKey {
			writeJSONError(w, err.Error(), http.StatusBadRequest)
			return
		}
		writeJSONError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, rec)
}

func (m *MemoryAPI) handleAddVector(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req memory.AddInput
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	rec, err := m.store.AddWithVector(r.Context(), req)
	if err != nil {
		if err == memory.ErrEmptyKey {
			writeJSONError(w, err.Error(), http.StatusBadRequest)
			return
		}
		writeJSONError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, rec)
}

func (m *MemoryAPI) handleGet(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id := r.URL.Query().Get("id")
	if id == "" {
		writeJSONError(w, "id is required", http.StatusBadRequest)
		return
	}
	rec := m.store.Get(id)
	if rec == nil {
		writeJSONError(w, "memory not found", http.StatusNotFound)
		return
	}
	writeJSON(w, rec)
}

func (m *MemoryAPI) handleList(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	q := r.URL.Query()
	records := m.store.ForUser(q.Get("user_id"), memory.Filter{
		Type:       memory.Type(q.Get("type")),
		Key:        q.Get("key"),
		ActiveOnly: q.Get("active") == "true",
	})
	if records == nil {
		records = []memory.Record{}
	}
	writeJSON(w, records)
}

func (m *MemoryAPI) handleUpdate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		ID string `json:"id"`
		memory.Patch
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.ID == "" {
		writeJSONError(w, "id is required", http.StatusBadRequest)
		return
	}

	rec, err := m.store.Update(req.ID, req.Patch)
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if rec == nil {
		writeJSONError(w, "memory not found", http.StatusNotFound)
		return
	}
	writeJSON(w, rec)
}

func (m *MemoryAPI) handleDelete(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete && r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.ID == "" {
		writeJSONError(w, "id is required", http.StatusBadRequest)
		return
	}

	rec, err := m.store.Delete(r.Context(), req.ID)
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if rec == nil {
		writeJSONError(w, "memory not found", http.StatusNotFound)
		return
	}
	writeJSON(w, map[string]interface{}{"deleted": rec.ID})
}

func (m *MemoryAPI) handleSearch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		Query string `json:"query"`
		Limit int    `json:"limit"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Query == "" {
		writeJSONError(w, "query is required", http.StatusBadRequest)
		return
	}

	hits, err := m.store.SemanticSearch(r.Context(), req.Query, req.Limit)
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if hits == nil {
		hits = []memory.ScoredRecord{}
	}
	writeJSON(w, hits)
}

func (m *MemoryAPI) handleLearn(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		UserID   string           `json:"user_id"`
		Messages []memory.Message `json:"messages"`
		Index    bool             `json:"index"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if len(req.Messages) == 0 {
		writeJSONError(w, "messages is required", http.StatusBadRequest)
		return
	}

	var (
		learned []memory.Record
		err     error
	)
	if req.Index {
		learned, err = m.store.AutoLearn(r.Context(), req.Messages, req.UserID)
	} else {
		learned, err = m.store.Learn(req.Messages, req.UserID)
	}
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if learned == nil {
		learned = []memory.Record{}
	}
	writeJSON(w, map[string]interface{}{"learned": learned, "count": len(learned)})
}

func (m *MemoryAPI) handleSmartForget(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		UserID string `json:"user_id"`
		Type   string `json:"type"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	plan, err := m.store.SmartForget(r.Context(), req.UserID, memory.Type(req.Type))
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, plan)
}

func (m *MemoryAPI) handleReview(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	review := m.store.ToReview(r.URL.Query().Get("user_id"))
	if review == nil {
		review = []memory.Evaluated{}
	}
	writeJSON(w, review)
}

func (m *MemoryAPI) handleConsolidate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		UserID string `json:"user_id"`
		Key    string `json:"key"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Key == "" {
		writeJSONError(w, "key is required", http.StatusBadRequest)
		return
	}

	result, err := m.store.Consolidate(req.UserID, req.Key)
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, result)
}

func (m *MemoryAPI) handlePurge(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost && r.Method != http.MethodDelete {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	removed, err := m.store.PurgeExpired()
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]int{"purged": removed})
}

func (m *MemoryAPI) handleFeedback(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		ID       string `json:"id"`
		Positive *bool  `json:"positive"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.ID == "" {
		writeJSONError(w, "id is required", http.StatusBadRequest)
		return
	}
	positive := true
	if req.Positive != nil {
		positive = *req.Positive
	}

	rec, err := m.store.RecordFeedback(req.ID, positive)
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if rec == nil {
		writeJSONError(w, "memory not found", http.StatusNotFound)
		return
	}
	writeJSON(w, rec)
}

func (m *MemoryAPI) handleImportance(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id := r.URL.Query().Get("id")
	if id == "" {
		writeJSONError(w, "id is required", http.StatusBadRequest)
		return
	}
	imp := m.store.Importance(id)
	if imp == nil {
		writeJSONError(w, "memory not found", http.StatusNotFound)
		return
	}
	writeJSON(w, imp)
}

func (m *MemoryAPI) handleExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	switch r.URL.Query().Get("format") {
	case "csv":
		w.Header().Set("Content-Type", "text/csv")
		if err := m.store.ExportCSV(w); err != nil {
			writeJSONError(w, err.Error(), http.StatusInternalServerError)
		}
	default:
		w.Header().Set("Content-Type", "application/json")
		if err := m.store.ExportJSON(w); err != nil {
			writeJSONError(w, err.Error(), http.StatusInternalServerError)
		}
	}
}
