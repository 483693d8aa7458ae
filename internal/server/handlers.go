package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hyperjump/nursesim/internal/config"
	"github.com/hyperjump/nursesim/internal/models"
	"github.com/hyperjump/nursesim/internal/storage"
)

type idsRequest struct {
	IDs []string `json:"ids"`
}

type translateRequest struct {
	Text       string `json:"text"`
	SourceLang string `json:"source_lang,omitempty"`
	TargetLang string `json:"target_lang,omitempty"`
}

type translateResponse struct {
	Text       string `json:"text"`
	Translated bool   `json:"translated"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var query models.SearchQuery
	if !s.decode(w, r, &query) {
		return
	}
	s.logger.Debug("search request", zap.String("query", query.Query), zap.String("candidates", query.Candidates))
	resp, err := s.deps.Engine.Search(r.Context(), &query)
	if err != nil {
		s.fail(w, "search", err)
		return
	}
	for _, panel := range [][]*models.RankedDisease{resp.TitleResults, resp.ContentResults, resp.Similar} {
		for _, rd := range panel {
			rd.Disease = stripEmbedding(rd.Disease)
		}
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListDiseases(w http.ResponseWriter, r *http.Request) {
	var (
		records []*models.DiseaseRecord
		err     error
	)
	if q := strings.TrimSpace(r.URL.Query().Get("q")); q != "" {
		records, err = s.deps.Store.SearchByText(r.Context(), q)
	} else {
		records, err = s.deps.Store.ListDiseases(r.Context())
	}
	if err != nil {
		s.fail(w, "list diseases", err)
		return
	}
	out := make([]*models.DiseaseRecord, len(records))
	for i, d := range records {
		out[i] = stripEmbedding(d)
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"diseases": out, "count": len(out)})
}

func (s *Server) handleGetDiseaseByTitle(w http.ResponseWriter, r *http.Request) {
	title := r.URL.Query().Get("title")
	if strings.TrimSpace(title) == "" {
		s.respondError(w, http.StatusBadRequest, "title is required")
		return
	}
	d, err := s.deps.Store.GetByTitle(r.Context(), title)
	if err != nil {
		s.fail(w, "get disease by title", err)
		return
	}
	s.respondJSON(w, http.StatusOK, stripEmbedding(d))
}

func (s *Server) handleGetDisease(w http.ResponseWriter, r *http.Request) {
	d, err := s.deps.Store.GetDisease(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, "get disease", err)
		return
	}
	s.respondJSON(w, http.StatusOK, stripEmbedding(d))
}

func (s *Server) handleCreateDisease(w http.ResponseWriter, r *http.Request) {
	var input models.DiseaseInput
	if !s.decode(w, r, &input) {
		return
	}
	if err := input.Validate(); err != nil {
		s.fail(w, "create disease", err)
		return
	}
	d := input.Record()
	if len(d.Embedding) == 0 {
		emb, err := s.deps.Embedder.Embed(r.Context(), d.EmbeddingText())
		if err != nil {
			s.fail(w, "embed disease", err)
			return
		}
		d.Embedding = emb
	}
	if err := s.deps.Store.CreateDisease(r.Context(), d); err != nil {
		s.fail(w, "create disease", err)
		return
	}
	s.logger.Debug("disease created", zap.String("id", d.ID), zap.String("title", d.Title))
	s.respondJSON(w, http.StatusCreated, stripEmbedding(d))
}

func (s *Server) handleDeleteDiseases(w http.ResponseWriter, r *http.Request) {
	var req idsRequest
	if !s.decode(w, r, &req) {
		return
	}
	if len(req.IDs) == 0 {
		s.respondError(w, http.StatusBadRequest, "ids is required")
		return
	}
	n, err := s.deps.Store.DeleteDiseases(r.Context(), req.IDs)
	if err != nil {
		s.fail(w, "delete diseases", err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]int64{"deleted": n})
}

func (s *Server) handleTranslate(w http.ResponseWriter, r *http.Request) {
	var req translateRequest
	if !s.decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		s.respondError(w, http.StatusBadRequest, "text is required")
		return
	}
	if s.deps.Translator == nil {
		s.respondJSON(w, http.StatusOK, translateResponse{Text: req.Text})
		return
	}
	var out string
	if req.SourceLang == "" && req.TargetLang == "" {
		out = s.deps.Translator.ToEnglish(r.Context(), req.Text)
	} else {
		out = s.deps.Translator.Translate(r.Context(), req.Text, req.SourceLang, req.TargetLang)
	}
	s.respondJSON(w, http.StatusOK, translateResponse{Text: out, Translated: out != req.Text})
}

func (s *Server) handleGenerateDetails(w http.ResponseWriter, r *http.Request) {
	var req models.PatientDetailsRequest
	if !s.decode(w, r, &req) {
		return
	}
	resp, err := s.deps.Generator.PatientDetails(r.Context(), &req)
	if err != nil {
		s.fail(w, "generate details", err)
		return
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGenerateOverview(w http.ResponseWriter, r *http.Request) {
	var req models.OverviewRequest
	if !s.decode(w, r, &req) {
		return
	}
	resp, err := s.deps.Generator.PatientOverview(r.Context(), &req)
	if err != nil {
		s.fail(w, "generate overview", err)
		return
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGenerateScenario(w http.ResponseWriter, r *http.Request) {
	var req models.NursingScenarioRequest
	if !s.decode(w, r, &req) {
		return
	}
	resp, err := s.deps.Generator.NursingScenario(r.Context(), &req)
	if err != nil {
		s.fail(w, "generate scenario", err)
		return
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGenerateRevision(w http.ResponseWriter, r *http.Request) {
	var req models.RevisionRequest
	if !s.decode(w, r, &req) {
		return
	}
	resp, err := s.deps.Generator.Revise(r.Context(), &req)
	if err != nil {
		s.fail(w, "generate revision", err)
		return
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGenerateSummary(w http.ResponseWriter, r *http.Request) {
	var req models.SummaryRequest
	if !s.decode(w, r, &req) {
		return
	}
	resp, err := s.deps.Generator.Summarize(r.Context(), &req)
	if err != nil {
		s.fail(w, "generate summary", err)
		return
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListScenarios(w http.ResponseWriter, r *http.Request) {
	q := models.ScenarioListQuery{
		Query: r.URL.Query().Get("q"),
		Sort:  r.URL.Query().Get("sort"),
	}
	rows, err := s.deps.Scenarios.List(r.Context(), &q)
	if err != nil {
		s.fail(w, "list scenarios", err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"scenarios": rows, "count": len(rows)})
}

func (s *Server) handleSaveScenario(w http.ResponseWriter, r *http.Request) {
	var in models.ScenarioInput
	if !s.decode(w, r, &in) {
		return
	}
	rec, err := s.deps.Scenarios.Save(r.Context(), &in)
	if err != nil {
		s.fail(w, "save scenario", err)
		return
	}
	s.respondJSON(w, http.StatusCreated, rec)
}

func (s *Server) handleGetScenario(w http.ResponseWriter, r *http.Request) {
	rec, err := s.deps.Scenarios.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, "get scenario", err)
		return
	}
	s.respondJSON(w, http.StatusOK, rec)
}

func (s *Server) handleUpdateScenario(w http.ResponseWriter, r *http.Request) {
	var in models.ScenarioInput
	if !s.decode(w, r, &in) {
		return
	}
	rec, err := s.deps.Scenarios.Update(r.Context(), chi.URLParam(r, "id"), &in)
	if err != nil {
		s.fail(w, "update scenario", err)
		return
	}
	s.respondJSON(w, http.StatusOK, rec)
}

func (s *Server) handleDeleteScenarios(w http.ResponseWriter, r *http.Request) {
	var req idsRequest
	if !s.decode(w, r, &req) {
		return
	}
	n, err := s.deps.Scenarios.Delete(r.Context(), req.IDs)
	if err != nil {
		s.fail(w, "delete scenarios", err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]int64{"deleted": n})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.deps.Store != nil {
		if err := s.deps.Store.Ping(r.Context()); err != nil {
			s.respondError(w, http.StatusServiceUnavailable, err.Error())
			return
		}
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	diseaseCount, err := s.deps.Store.CountDiseases(ctx)
	if err != nil {
		s.fail(w, "status: count diseases", err)
		return
	}
	scenarioCount, err := s.deps.Store.CountScenarios(ctx)
	if err != nil {
		s.fail(w, "status: count scenarios", err)
		return
	}
	resp := map[string]interface{}{
		"diseases":  diseaseCount,
		"scenarios": scenarioCount,
	}

	configInfo := map[string]interface{}{}
	if s.deps.Embedder != nil {
		configInfo["embedding_dimensions"] = s.deps.Embedder.Dimensions()
	}
	if s.deps.Watch != nil {
		configInfo["watch_directories"] = s.deps.Watch.Directories()
	}
	if s.config != nil {
		configInfo["storage_driver"] = s.config.Storage.Driver
		configInfo["embedding_provider"] = s.config.Embedding.Provider
		configInfo["llm_model"] = s.config.LLM.Model
		configInfo["translation_enabled"] = s.config.Translation.EnabledOrDefault()
		configInfo["similarity_threshold"] = s.config.Search.Threshold()
		configInfo["keyword_top_n"] = s.config.Search.KeywordTopN
		configInfo["candidates"] = s.config.Search.Candidates
		if s.config.Storage.Driver == config.DriverSQLite {
			configInfo["database_path"] = s.config.Storage.DatabasePath
			if diskBytes, err := storage.DatabaseSizeBytes(s.config.Storage.DatabasePath); err == nil {
				resp["disk_usage_bytes"] = diskBytes
			}
		}
	}
	resp["config"] = configInfo
	s.respondJSON(w, http.StatusOK, resp)
}

// decode reads a JSON body into v and answers 400 when it is malformed.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// fail logs err and answers with the status its error kind maps to.
func (s *Server) fail(w http.ResponseWriter, op string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error(op+" failed", zap.Error(err))
	} else {
		s.logger.Debug(op+" rejected", zap.Error(err))
	}
	s.respondError(w, status, err.Error())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, models.ErrUpstreamService):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// stripEmbedding returns a copy of d without its vector for API responses.
func stripEmbedding(d *models.DiseaseRecord) *models.DiseaseRecord {
	if d == nil {
		return nil
	}
	c := *d
	c.Embedding = nil
	return &c
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
