package scenario

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/nursesim/internal/models"
	"github.com/hyperjump/nursesim/internal/storage"
)

// Service saves, lists, edits and deletes scenarios.
type Service struct {
	store  storage.ScenarioStore
	now    func() time.Time
	logger *zap.Logger
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithServiceLogger sets the logger.
func WithServiceLogger(l *zap.Logger) ServiceOption {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock sets the time source for new scenario IDs.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService creates a scenario service.
func NewService(store storage.ScenarioStore, opts ...ServiceOption) *Service {
	s := &Service{store: store, now: time.Now, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Save stores a new scenario under a generated ID.
func (s *Service) Save(ctx context.Context, in *models.ScenarioInput) (*models.ScenarioRecord, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	now := s.now().Truncate(time.Second)
	rec := &models.ScenarioRecord{
		ID:              models.NewScenarioID(in.Disease, in.Purpose, now),
		PatientInfo:     in.PatientInfo,
		PatientOverview: in.PatientOverview,
		Scenario:        in.Scenario,
		CreatedAt:       now,
	}
	if err := s.store.CreateScenario(ctx, rec); err != nil {
		return nil, fmt.Errorf("save scenario: %w", err)
	}
	s.logger.Info("scenario saved", zap.String("id", rec.ID))
	return rec, nil
}

// Get returns one scenario.
func (s *Service) Get(ctx context.Context, id string) (*models.ScenarioRecord, error) {
	return s.store.GetScenario(ctx, id)
}

// List returns the listing rows matching q, ordered as requested.
func (s *Service) List(ctx context.Context, q *models.ScenarioListQuery) ([]models.ScenarioSummary, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	records, err := s.store.ListScenarios(ctx, q.Query)
	if err != nil {
		return nil, fmt.Errorf("list scenarios: %w", err)
	}
	out := make([]models.ScenarioSummary, 0, len(records))
	for _, r := range records {
		out = append(out, r.Summary())
	}
	sortSummaries(out, q.Sort)
	return out, nil
}

func sortSummaries(rows []models.ScenarioSummary, order string) {
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		switch order {
		case models.SortDateAsc:
			return a.CreatedAt.Before(b.CreatedAt)
		case models.SortTitleAsc:
			return a.Title < b.Title
		case models.SortTitleDesc:
			return a.Title > b.Title
		default:
			return a.CreatedAt.After(b.CreatedAt)
		}
	})
}

// Update replaces scenario id with in. A changed disease or purpose gives the
// scenario a new ID that keeps the original timestamp.
func (s *Service) Update(ctx context.Context, id string, in *models.ScenarioInput) (*models.ScenarioRecord, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	old, err := s.store.GetScenario(ctx, id)
	if err != nil {
		return nil, err
	}
	stamp := old.CreatedAt
	if sid, err := models.ParseScenarioID(id); err == nil {
		stamp = sid.Timestamp
	}
	rec := &models.ScenarioRecord{
		ID:              models.NewScenarioID(in.Disease, in.Purpose, stamp),
		PatientInfo:     in.PatientInfo,
		PatientOverview: in.PatientOverview,
		Scenario:        in.Scenario,
		CreatedAt:       old.CreatedAt,
	}
	if err := s.store.ReplaceScenario(ctx, id, rec); err != nil {
		return nil, fmt.Errorf("update scenario %s: %w", id, err)
	}
	if rec.ID != id {
		s.logger.Info("scenario renamed", zap.String("from", id), zap.String("to", rec.ID))
	}
	return rec, nil
}

// Delete removes the given scenarios and returns how many existed.
func (s *Service) Delete(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, models.InvalidInputf("no scenario ids given")
	}
	n, err := s.store.DeleteScenarios(ctx, ids)
	if err != nil {
		return 0, fmt.Errorf("delete scenarios: %w", err)
	}
	return n, nil
}
