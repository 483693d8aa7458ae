package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"testing"
	"time"

	"github.com/hyperjump/nursesim/internal/config"
	"github.com/hyperjump/nursesim/internal/embedding"
	"github.com/hyperjump/nursesim/internal/llm"
	"github.com/hyperjump/nursesim/internal/models"
	"github.com/hyperjump/nursesim/internal/prompt"
	"github.com/hyperjump/nursesim/internal/ranking"
	"github.com/hyperjump/nursesim/internal/scenario"
	"github.com/hyperjump/nursesim/internal/search"
	"github.com/hyperjump/nursesim/internal/storage"
)

type mapTranslator map[string]string

func (m mapTranslator) Translate(_ context.Context, text, _, _ string) string {
	if out, ok := m[text]; ok {
		return out
	}
	return text
}

func (m mapTranslator) ToEnglish(ctx context.Context, text string) string {
	return m.Translate(ctx, text, "KO", "EN")
}

type fakeLLM struct {
	replies map[string]string
	err     error
}

func (f *fakeLLM) Generate(_ context.Context, req llm.Request) (*llm.Response, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &llm.Response{Text: f.replies[req.SystemRole], Model: req.Model}, nil
}

type mockWatchService struct {
	dirs []string
}

func (m *mockWatchService) Directories() []string {
	return append([]string(nil), m.dirs...)
}

type testEnv struct {
	handler http.Handler
	store   *storage.SQLStore
	llm     *fakeLLM
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "server.db")
	store, err := storage.NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = store.Close() })

	embedder := embedding.NewMockEmbedder(16)
	translator := mapTranslator{"열": "fever"}
	fake := &fakeLLM{replies: map[string]string{
		prompt.RoleSummary:  "요약된 배경",
		prompt.RoleRevision: "수정된 시나리오",
	}}
	clockTime := time.Date(2024, 5, 1, 9, 0, 0, 0, time.Local)
	clock := func() time.Time {
		clockTime = clockTime.Add(time.Minute)
		return clockTime
	}

	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	cfg.Storage.DatabasePath = dbPath
	cfg.Embedding.Provider = "mock"

	deps := Deps{
		Engine:     search.NewEngine(store, embedder, translator, ranking.NewRanker(nil)),
		Generator:  scenario.NewGenerator(fake, prompt.NewBuilder("gpt-3.5-turbo", nil), store),
		Scenarios:  scenario.NewService(store, scenario.WithClock(clock)),
		Store:      store,
		Embedder:   embedder,
		Translator: translator,
		Watch:      &mockWatchService{dirs: []string{"/srv/diseases"}},
	}
	srv := NewServer(deps, cfg, nil)
	return &testEnv{handler: srv.Router(), store: store, llm: fake}
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	r := httptest.NewRequest(method, path, &buf)
	w := httptest.NewRecorder()
	e.handler.ServeHTTP(w, r)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
}

func (e *testEnv) createDisease(t *testing.T, in models.DiseaseInput) *models.DiseaseRecord {
	t.Helper()
	w := e.do(t, http.MethodPost, "/api/v1/diseases", in)
	if w.Code != http.StatusCreated {
		t.Fatalf("create disease: status %d body %s", w.Code, w.Body.String())
	}
	var d models.DiseaseRecord
	decodeBody(t, w, &d)
	return &d
}

func TestHandleHealth(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodGet, "/health", nil)
	if w.Code != http.StatusOK {
		t.Errorf("status: got %d", w.Code)
	}
	if w.Header().Get("X-Request-ID") == "" {
		t.Error("expected X-Request-ID header")
	}
}

func TestHandleDiseases_CreateAndGet(t *testing.T) {
	env := newTestEnv(t)
	d := env.createDisease(t, models.DiseaseInput{
		Title:      "Influenza",
		Paragraphs: []string{"Fever and cough."},
	})
	if d.ID == "" {
		t.Fatal("expected generated id")
	}
	if d.Embedding != nil {
		t.Errorf("responses should not carry embeddings")
	}

	stored, err := env.store.GetDisease(context.Background(), d.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(stored.Embedding) != 16 {
		t.Errorf("stored embedding dims = %d, want 16", len(stored.Embedding))
	}

	w := env.do(t, http.MethodGet, "/api/v1/diseases/"+d.ID, nil)
	if w.Code != http.StatusOK {
		t.Errorf("get by id: status %d", w.Code)
	}

	w = env.do(t, http.MethodGet, "/api/v1/diseases/by-title?title=Influenza", nil)
	if w.Code != http.StatusOK {
		t.Errorf("get by title: status %d", w.Code)
	}

	w = env.do(t, http.MethodGet, "/api/v1/diseases/by-title?title=influenza", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("get by title with other case: status %d, want 404", w.Code)
	}

	w = env.do(t, http.MethodGet, "/api/v1/diseases/missing", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("get missing id: status %d, want 404", w.Code)
	}
}

func TestHandleDiseases_CreateRejectsEmptyTitle(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodPost, "/api/v1/diseases", models.DiseaseInput{Title: " "})
	if w.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want 400", w.Code)
	}
	w = env.do(t, http.MethodPost, "/api/v1/diseases", "{not json")
	if w.Code != http.StatusBadRequest {
		t.Errorf("malformed body: got %d, want 400", w.Code)
	}
}

func TestHandleDiseases_ListAndTextSearch(t *testing.T) {
	env := newTestEnv(t)
	env.createDisease(t, models.DiseaseInput{Title: "Malaria", Paragraphs: []string{"High fever was observed"}})
	env.createDisease(t, models.DiseaseInput{Title: "Asthma"})

	var out struct {
		Diseases []models.DiseaseRecord `json:"diseases"`
		Count    int                    `json:"count"`
	}
	w := env.do(t, http.MethodGet, "/api/v1/diseases", nil)
	decodeBody(t, w, &out)
	if out.Count != 2 || out.Diseases[0].Title != "Malaria" || out.Diseases[1].Title != "Asthma" {
		t.Errorf("list: got %+v", out)
	}

	w = env.do(t, http.MethodGet, "/api/v1/diseases?q=FEVER", nil)
	decodeBody(t, w, &out)
	if out.Count != 1 || out.Diseases[0].Title != "Malaria" {
		t.Errorf("search fever: got %+v", out)
	}
}

func TestHandleDiseases_Delete(t *testing.T) {
	env := newTestEnv(t)
	d := env.createDisease(t, models.DiseaseInput{Title: "Gout"})

	w := env.do(t, http.MethodDelete, "/api/v1/diseases", map[string][]string{"ids": {d.ID, "missing"}})
	var out map[string]int64
	decodeBody(t, w, &out)
	if w.Code != http.StatusOK || out["deleted"] != 1 {
		t.Errorf("delete: status %d body %v", w.Code, out)
	}

	w = env.do(t, http.MethodDelete, "/api/v1/diseases", map[string][]string{"ids": {}})
	if w.Code != http.StatusBadRequest {
		t.Errorf("empty ids: got %d, want 400", w.Code)
	}
}

func TestHandleSearch(t *testing.T) {
	env := newTestEnv(t)
	env.createDisease(t, models.DiseaseInput{Title: "Influenza", Paragraphs: []string{"Flu causes fever and cough."}})
	env.createDisease(t, models.DiseaseInput{Title: "Fever of unknown origin", Paragraphs: []string{"A fever lasting weeks."}})
	env.createDisease(t, models.DiseaseInput{Title: "Asthma", Paragraphs: []string{"Airway disease with wheezing."}})

	w := env.do(t, http.MethodPost, "/api/v1/diseases/search", models.SearchQuery{Query: "열"})
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d body %s", w.Code, w.Body.String())
	}
	var resp models.SearchResponse
	decodeBody(t, w, &resp)
	if resp.TranslatedQuery != "fever" {
		t.Errorf("translated query: got %q", resp.TranslatedQuery)
	}
	if len(resp.ContentResults) != 2 {
		t.Fatalf("content results: got %d, want 2", len(resp.ContentResults))
	}
	for _, rd := range resp.ContentResults {
		if rd.Disease.Embedding != nil {
			t.Error("search results should not carry embeddings")
		}
	}
	if len(resp.TitleResults) != 1 || resp.TitleResults[0].Disease.Title != "Fever of unknown origin" {
		t.Errorf("title results: got %+v", resp.TitleResults)
	}

	w = env.do(t, http.MethodPost, "/api/v1/diseases/search", models.SearchQuery{Query: "  "})
	if w.Code != http.StatusBadRequest {
		t.Errorf("empty query: got %d, want 400", w.Code)
	}
}

func TestHandleTranslate(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodPost, "/api/v1/translate", map[string]string{"text": "열"})
	var out translateResponse
	decodeBody(t, w, &out)
	if out.Text != "fever" || !out.Translated {
		t.Errorf("translate: got %+v", out)
	}

	w = env.do(t, http.MethodPost, "/api/v1/translate", map[string]string{"text": "기침"})
	decodeBody(t, w, &out)
	if out.Text != "기침" || out.Translated {
		t.Errorf("untranslated text: got %+v", out)
	}
}

func TestHandleGenerate(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/api/v1/generate/summary", models.SummaryRequest{Text: "긴 배경 정보"})
	var gen models.GenerationResponse
	decodeBody(t, w, &gen)
	if w.Code != http.StatusOK || gen.Text != "요약된 배경" {
		t.Errorf("summary: status %d body %+v", w.Code, gen)
	}

	w = env.do(t, http.MethodPost, "/api/v1/generate/revision", models.RevisionRequest{Scenario: "원본", Feedback: "더 길게"})
	decodeBody(t, w, &gen)
	if gen.Text != "수정된 시나리오" {
		t.Errorf("revision: got %+v", gen)
	}

	w = env.do(t, http.MethodPost, "/api/v1/generate/revision", models.RevisionRequest{Scenario: "원본"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing feedback: got %d, want 400", w.Code)
	}

	w = env.do(t, http.MethodPost, "/api/v1/generate/overview", models.OverviewRequest{
		Disease: "폐렴", Purpose: "교육", Background: []string{"missing"},
	})
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown background id: got %d, want 404", w.Code)
	}

	env.llm.err = fmt.Errorf("%w: rate limited", models.ErrUpstreamService)
	w = env.do(t, http.MethodPost, "/api/v1/generate/summary", models.SummaryRequest{Text: "배경"})
	if w.Code != http.StatusBadGateway {
		t.Errorf("upstream failure: got %d, want 502", w.Code)
	}
}

func TestHandleScenarios_Lifecycle(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/api/v1/scenarios", models.ScenarioInput{
		Disease:  "급성 신부전",
		Purpose:  "교육",
		Scenario: "1단계",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("save: status %d body %s", w.Code, w.Body.String())
	}
	var rec models.ScenarioRecord
	decodeBody(t, w, &rec)
	if rec.ID != "급성신부전_교육_20240501090100" {
		t.Fatalf("id: got %q", rec.ID)
	}

	w = env.do(t, http.MethodGet, "/api/v1/scenarios/"+url.PathEscape(rec.ID), nil)
	if w.Code != http.StatusOK {
		t.Errorf("get: status %d", w.Code)
	}

	w = env.do(t, http.MethodPut, "/api/v1/scenarios/"+url.PathEscape(rec.ID), models.ScenarioInput{
		Disease:  "급성 신부전",
		Purpose:  "평가",
		Scenario: "수정됨",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("update: status %d body %s", w.Code, w.Body.String())
	}
	var updated models.ScenarioRecord
	decodeBody(t, w, &updated)
	if updated.ID != "급성신부전_평가_20240501090100" {
		t.Errorf("renamed id: got %q", updated.ID)
	}

	var list struct {
		Scenarios []models.ScenarioSummary `json:"scenarios"`
		Count     int                      `json:"count"`
	}
	w = env.do(t, http.MethodGet, "/api/v1/scenarios?q="+url.QueryEscape("평가"), nil)
	decodeBody(t, w, &list)
	if list.Count != 1 || list.Scenarios[0].Title != "급성신부전 평가 시나리오" {
		t.Errorf("list: got %+v", list)
	}

	w = env.do(t, http.MethodGet, "/api/v1/scenarios?sort=sideways", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad sort: got %d, want 400", w.Code)
	}

	w = env.do(t, http.MethodDelete, "/api/v1/scenarios", map[string][]string{"ids": {updated.ID}})
	var del map[string]int64
	decodeBody(t, w, &del)
	if del["deleted"] != 1 {
		t.Errorf("delete: got %v", del)
	}

	w = env.do(t, http.MethodGet, "/api/v1/scenarios/"+url.PathEscape(updated.ID), nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("get after delete: got %d, want 404", w.Code)
	}
}

func TestHandleStatus(t *testing.T) {
	env := newTestEnv(t)
	env.createDisease(t, models.DiseaseInput{Title: "Gout"})

	w := env.do(t, http.MethodGet, "/api/v1/status", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d", w.Code)
	}
	var out struct {
		Diseases       int64                  `json:"diseases"`
		Scenarios      int64                  `json:"scenarios"`
		DiskUsageBytes int64                  `json:"disk_usage_bytes"`
		Config         map[string]interface{} `json:"config"`
	}
	decodeBody(t, w, &out)
	if out.Diseases != 1 || out.Scenarios != 0 {
		t.Errorf("counts: got %+v", out)
	}
	if out.DiskUsageBytes <= 0 {
		t.Errorf("disk usage: got %d", out.DiskUsageBytes)
	}
	if out.Config["embedding_provider"] != "mock" || out.Config["embedding_dimensions"] != float64(16) {
		t.Errorf("config: got %v", out.Config)
	}
	if dirs, ok := out.Config["watch_directories"].([]interface{}); !ok || len(dirs) != 1 {
		t.Errorf("watch directories: got %v", out.Config["watch_directories"])
	}
}

func TestHandleMetrics(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodGet, "/api/v1/status", nil)

	w := env.do(t, http.MethodGet, "/metrics", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d", w.Code)
	}
	if !bytes.Contains(w.Body.Bytes(), []byte("nursesim_http_requests_total")) {
		t.Error("expected http request counter in metrics output")
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("get: %w", models.ErrNotFound), http.StatusNotFound},
		{models.InvalidInputf("bad"), http.StatusBadRequest},
		{fmt.Errorf("list: %w", models.ErrStoreUnavailable), http.StatusServiceUnavailable},
		{fmt.Errorf("llm: %w", models.ErrUpstreamService), http.StatusBadGateway},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
