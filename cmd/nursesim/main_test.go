package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/hyperjump/nursesim/internal/cli"
	"github.com/hyperjump/nursesim/internal/models"
)

func TestSearchArgsReorder(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected []string
	}{
		{
			name:     "flags after query are moved first",
			args:     []string{"급성 신부전", "-candidates", "keyword"},
			expected: []string{"-candidates", "keyword", "급성 신부전"},
		},
		{
			name:     "flags first returns unchanged",
			args:     []string{"-candidates", "keyword", "급성 신부전"},
			expected: []string{"-candidates", "keyword", "급성 신부전"},
		},
		{
			name:     "query only returns unchanged",
			args:     []string{"pneumonia"},
			expected: []string{"pneumonia"},
		},
		{
			name:     "empty args returns unchanged",
			args:     []string{},
			expected: []string{},
		},
		{
			name:     "multiple positionals then flags",
			args:     []string{"acute", "kidney", "-output", "json"},
			expected: []string{"-output", "json", "acute", "kidney"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := searchArgsReorder(tt.args)
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("searchArgsReorder() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestBuildSearchQuery(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected string
	}{
		{"single word", []string{"fever"}, "fever"},
		{"multiple words", []string{"kidney", "injury"}, "kidney injury"},
		{"single quoted phrase", []string{"kidney injury"}, "kidney injury"},
		{"hangul words", []string{"급성", "신부전"}, "급성 신부전"},
		{"empty args", []string{}, ""},
		{"blank args", []string{"  ", "  "}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := buildSearchQuery(tt.args)
			if got != tt.expected {
				t.Errorf("buildSearchQuery(%v) = %q, want %q", tt.args, got, tt.expected)
			}
		})
	}
}

func TestSearchConfigPathFromArgs(t *testing.T) {
	tests := []struct {
		name        string
		args        []string
		defaultPath string
		want        string
	}{
		{"no config flag", []string{"-output", "json", "query"}, "/default.yaml", "/default.yaml"},
		{"-config present", []string{"-config", "/custom.yaml", "query"}, "/default.yaml", "/custom.yaml"},
		{"--config present", []string{"--config", "/other.yaml"}, "/default.yaml", "/other.yaml"},
		{"config at end", []string{"query", "-config", "/end.yaml"}, "/default.yaml", "/end.yaml"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := searchConfigPathFromArgs(tt.args, tt.defaultPath)
			if got != tt.want {
				t.Errorf("searchConfigPathFromArgs() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSearchCandidatesDefaultFromConfig(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	content := `
search:
  candidates: keyword
`
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	if got := searchCandidatesDefaultFromConfig(configPath); got != models.CandidatesKeyword {
		t.Errorf("searchCandidatesDefaultFromConfig() = %q, want keyword", got)
	}
	if got := searchCandidatesDefaultFromConfig(filepath.Join(dir, "nonexistent.yaml")); got != models.CandidatesAll {
		t.Errorf("searchCandidatesDefaultFromConfig(nonexistent) = %q, want all", got)
	}
}

func TestLoadConfig_prefersCwdConfigWhenDefaultPath(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	content := `
debug: true
server:
  host: "localhost"
  port: 8080
storage:
  database_path: "./test.db"
`
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	origWd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = os.Chdir(origWd) }()
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}

	cfg, resolved, err := loadConfig(defaultConfigPath)
	if err != nil {
		t.Fatal(err)
	}
	// On macOS, cwd can be /private/var/... while configPath from t.TempDir() is /var/...; compare canonical paths.
	resolvedCanon, _ := filepath.EvalSymlinks(resolved)
	configPathCanon, _ := filepath.EvalSymlinks(configPath)
	if resolvedCanon != configPathCanon {
		t.Errorf("resolved path = %s (canon %s), want %s (canon %s)", resolved, resolvedCanon, configPath, configPathCanon)
	}
	if !cfg.Debug {
		t.Error("debug should be true from cwd config.yaml")
	}
}

func TestLoadConfig_usesExplicitPath(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	content := `
server:
  host: "127.0.0.1"
  port: 9000
storage:
  database_path: "./test.db"
`
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, resolved, err := loadConfig(configPath)
	if err != nil {
		t.Fatal(err)
	}
	if resolved != configPath {
		t.Errorf("resolved path = %s, want %s", resolved, configPath)
	}
	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 9000 {
		t.Errorf("unexpected server config: %+v", cfg.Server)
	}
}

func writeTestConfig(t *testing.T, dir string) string {
	t.Helper()
	configPath := filepath.Join(dir, "config.yaml")
	content := `
storage:
  database_path: "./nursesim.db"
embedding:
  provider: mock
  dimensions: 16
translation:
  enabled: false
`
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	return configPath
}

func TestInitializeComponents_ingestSearchAndStatus(t *testing.T) {
	dir := t.TempDir()
	cfg, _, err := loadConfig(writeTestConfig(t, dir))
	if err != nil {
		t.Fatal(err)
	}
	components, err := initializeComponents(cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("initializeComponents: %v", err)
	}
	defer components.Close()
	if components.Translator != nil {
		t.Error("translator should be nil when translation is disabled")
	}

	dataDir := filepath.Join(dir, "data")
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		t.Fatal(err)
	}
	records := `[
  {"title": "Pneumonia", "paragraphs": ["Infection of the lungs with fever and cough."]},
  {"title": "Asthma", "paragraphs": ["Chronic airway inflammation."]}
]`
	if err := os.WriteFile(filepath.Join(dataDir, "respiratory.json"), []byte(records), 0600); err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	res, err := components.Ingester.IngestPath(ctx, dataDir, true)
	if err != nil {
		t.Fatalf("IngestPath: %v", err)
	}
	if res.Files != 1 || res.Records != 2 {
		t.Errorf("IngestPath = %+v, want 1 file and 2 records", res)
	}

	resp, err := components.Engine.Search(ctx, &models.SearchQuery{Query: "fever"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(resp.ContentResults) != 1 || resp.ContentResults[0].Disease.Title != "Pneumonia" {
		t.Errorf("content results = %+v", resp.ContentResults)
	}

	status, err := directStatus(ctx, cfg, components)
	if err != nil {
		t.Fatalf("directStatus: %v", err)
	}
	if status.Diseases != 2 || status.Scenarios != 0 {
		t.Errorf("status counts = %d diseases, %d scenarios", status.Diseases, status.Scenarios)
	}
	if status.DiskUsageBytes == nil || *status.DiskUsageBytes <= 0 {
		t.Error("sqlite status should report disk usage")
	}
	if status.Config["embedding_dimensions"] != 16 {
		t.Errorf("embedding_dimensions = %v", status.Config["embedding_dimensions"])
	}
}

func TestWriteStatus(t *testing.T) {
	size := int64(4096)
	status := &statusResponse{
		Diseases:       3,
		Scenarios:      1,
		DiskUsageBytes: &size,
		Config:         map[string]interface{}{"storage_driver": "sqlite3", "candidates": "all"},
	}

	var buf bytes.Buffer
	writeStatus(&buf, status, cli.OutputText)
	out := buf.String()
	for _, sub := range []string{"diseases:           3", "scenarios:          1", "disk_usage_bytes:   4096", "storage_driver:"} {
		if !strings.Contains(out, sub) {
			t.Errorf("text status missing %q:\n%s", sub, out)
		}
	}
	if strings.Index(out, "candidates:") > strings.Index(out, "storage_driver:") {
		t.Error("config keys should be sorted")
	}

	buf.Reset()
	writeStatus(&buf, status, cli.OutputJSON)
	var decoded statusResponse
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("JSON status: %v", err)
	}
	if decoded.Diseases != 3 || *decoded.DiskUsageBytes != 4096 {
		t.Errorf("decoded status = %+v", decoded)
	}
}

func TestSearchViaHTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/diseases/search" || r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		var q models.SearchQuery
		_ = json.NewDecoder(r.Body).Decode(&q)
		if q.Query == "" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"query cannot be empty"}`))
			return
		}
		_ = json.NewEncoder(w).Encode(models.SearchResponse{Query: q.Query, TranslatedQuery: "fever"})
	}))
	defer srv.Close()

	resp, err := searchViaHTTP(srv.URL, &models.SearchQuery{Query: "열"})
	if err != nil {
		t.Fatalf("searchViaHTTP: %v", err)
	}
	if resp.Query != "열" || resp.TranslatedQuery != "fever" {
		t.Errorf("response = %+v", resp)
	}

	_, err = searchViaHTTP(srv.URL, &models.SearchQuery{})
	if err == nil || !strings.Contains(err.Error(), "400: query cannot be empty") {
		t.Errorf("expected server error message, got %v", err)
	}
}
