// Package storage defines the persistence interfaces for disease records and scenarios.
package storage

import (
	"context"

	"github.com/hyperjump/nursesim/internal/models"
)

// DiseaseStore answers queries over disease records.
type DiseaseStore interface {
	// SearchByText returns records whose title, joined paragraphs, or joined
	// attribute values contain fragment, case-insensitively, in storage order.
	SearchByText(ctx context.Context, fragment string) ([]*models.DiseaseRecord, error)
	// GetByTitle returns the record with exactly this title, or models.ErrNotFound.
	GetByTitle(ctx context.Context, title string) (*models.DiseaseRecord, error)
	GetDisease(ctx context.Context, id string) (*models.DiseaseRecord, error)
	ListDiseases(ctx context.Context) ([]*models.DiseaseRecord, error)

	CreateDisease(ctx context.Context, d *models.DiseaseRecord) error
	DeleteDiseases(ctx context.Context, ids []string) (int64, error)
	// ReplaceSource atomically swaps all records ingested from source for records.
	ReplaceSource(ctx context.Context, source string, records []*models.DiseaseRecord) error
	DeleteBySource(ctx context.Context, source string) (int64, error)

	CountDiseases(ctx context.Context) (int64, error)
}

// ScenarioStore persists generated scenarios.
type ScenarioStore interface {
	CreateScenario(ctx context.Context, s *models.ScenarioRecord) error
	GetScenario(ctx context.Context, id string) (*models.ScenarioRecord, error)
	// ListScenarios returns scenarios whose ID contains filter (all when empty), oldest first.
	ListScenarios(ctx context.Context, filter string) ([]*models.ScenarioRecord, error)
	// ReplaceScenario atomically stores s and removes oldID when the ID changed.
	ReplaceScenario(ctx context.Context, oldID string, s *models.ScenarioRecord) error
	DeleteScenarios(ctx context.Context, ids []string) (int64, error)

	CountScenarios(ctx context.Context) (int64, error)
}

// Storage combines both stores with lifecycle methods.
type Storage interface {
	DiseaseStore
	ScenarioStore
	Ping(ctx context.Context) error
	Close() error
}
