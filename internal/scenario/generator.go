// Package scenario generates nursing scenarios and manages saved ones.
package scenario

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/hyperjump/nursesim/internal/llm"
	"github.com/hyperjump/nursesim/internal/models"
	"github.com/hyperjump/nursesim/internal/prompt"
	"github.com/hyperjump/nursesim/internal/storage"
)

// Generator runs the generation steps: patient details, overview, nursing
// scenario, revision and background summary.
type Generator struct {
	llm                llm.Generator
	builder            *prompt.Builder
	diseases           storage.DiseaseStore
	summaryMaxLength   int
	backgroundMaxChars int
	logger             *zap.Logger
}

// GeneratorOption configures a Generator.
type GeneratorOption func(*Generator)

// WithGeneratorLogger sets the logger.
func WithGeneratorLogger(l *zap.Logger) GeneratorOption {
	return func(g *Generator) {
		if l != nil {
			g.logger = l
		}
	}
}

// WithSummaryLimits sets the summary length and the background cut used
// before summarizing for the patient details step.
func WithSummaryLimits(summaryMaxLength, backgroundMaxChars int) GeneratorOption {
	return func(g *Generator) {
		if summaryMaxLength > 0 {
			g.summaryMaxLength = summaryMaxLength
		}
		if backgroundMaxChars > 0 {
			g.backgroundMaxChars = backgroundMaxChars
		}
	}
}

// NewGenerator creates a generator. diseases resolves background record IDs.
func NewGenerator(gen llm.Generator, builder *prompt.Builder, diseases storage.DiseaseStore, opts ...GeneratorOption) *Generator {
	g := &Generator{
		llm:                gen,
		builder:            builder,
		diseases:           diseases,
		summaryMaxLength:   prompt.DefaultSummaryLength,
		backgroundMaxChars: 1000,
		logger:             zap.NewNop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *Generator) generate(ctx context.Context, step string, req llm.Request) (string, error) {
	resp, err := g.llm.Generate(ctx, req)
	if err != nil {
		return "", fmt.Errorf("generate %s: %w", step, err)
	}
	g.logger.Info("generated",
		zap.String("step", step),
		zap.Int("prompt_tokens", resp.PromptTokens),
		zap.Int("completion_tokens", resp.CompletionTokens))
	return strings.TrimSpace(resp.Text), nil
}

// background loads the records with the given IDs and renders them for
// summarization, cut at maxChars when positive.
func (g *Generator) background(ctx context.Context, ids []string, maxChars int) (string, error) {
	records := make([]*models.DiseaseRecord, 0, len(ids))
	for _, id := range ids {
		rec, err := g.diseases.GetDisease(ctx, id)
		if err != nil {
			return "", fmt.Errorf("load background %s: %w", id, err)
		}
		records = append(records, rec)
	}
	return prompt.FormatBackground(records, maxChars), nil
}

// summaryFor returns summary when already known, otherwise summarizes the
// background records. No records means no summary.
func (g *Generator) summaryFor(ctx context.Context, ids []string, summary string, maxChars int) (string, error) {
	if summary != "" || len(ids) == 0 {
		return summary, nil
	}
	info, err := g.background(ctx, ids, maxChars)
	if err != nil {
		return "", err
	}
	return g.generate(ctx, "summary", g.builder.Summary(info, g.summaryMaxLength))
}

// PatientDetails fills in every random field of the request.
func (g *Generator) PatientDetails(ctx context.Context, req *models.PatientDetailsRequest) (*models.PatientDetailsResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	details, err := prompt.BuildDetails(req.Fields)
	if err != nil {
		return nil, err
	}
	summary, err := g.summaryFor(ctx, req.Background, "", g.backgroundMaxChars)
	if err != nil {
		return nil, err
	}
	text, err := g.generate(ctx, "details", g.builder.PatientDetails(req.Disease, req.Purpose, details, summary))
	if err != nil {
		return nil, err
	}
	return &models.PatientDetailsResponse{
		Details: prompt.ApplyGeneratedDetails(details, text),
		Summary: summary,
	}, nil
}

// PatientOverview writes the patient overview and situation description.
func (g *Generator) PatientOverview(ctx context.Context, req *models.OverviewRequest) (*models.GenerationResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	summary, err := g.summaryFor(ctx, req.Background, req.Summary, 0)
	if err != nil {
		return nil, err
	}
	text, err := g.generate(ctx, "overview", g.builder.PatientOverview(req.Disease, req.Purpose, req.Details, summary))
	if err != nil {
		return nil, err
	}
	return &models.GenerationResponse{Text: text, Summary: summary}, nil
}

// NursingScenario writes the staged nursing scenario.
func (g *Generator) NursingScenario(ctx context.Context, req *models.NursingScenarioRequest) (*models.GenerationResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	summary, err := g.summaryFor(ctx, req.Background, req.Summary, 0)
	if err != nil {
		return nil, err
	}
	text, err := g.generate(ctx, "scenario", g.builder.NursingScenario(req.Purpose, req.Details, summary))
	if err != nil {
		return nil, err
	}
	return &models.GenerationResponse{Text: text, Summary: summary}, nil
}

// Revise rewrites an edited scenario with user feedback.
func (g *Generator) Revise(ctx context.Context, req *models.RevisionRequest) (*models.GenerationResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	text, err := g.generate(ctx, "revision", g.builder.Revision(req.Scenario, req.Feedback))
	if err != nil {
		return nil, err
	}
	return &models.GenerationResponse{Text: text}, nil
}

// Summarize summarizes free text and/or background records.
func (g *Generator) Summarize(ctx context.Context, req *models.SummaryRequest) (*models.GenerationResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	var parts []string
	if len(req.Background) > 0 {
		info, err := g.background(ctx, req.Background, 0)
		if err != nil {
			return nil, err
		}
		parts = append(parts, info)
	}
	if t := strings.TrimSpace(req.Text); t != "" {
		parts = append(parts, t)
	}
	maxLength := req.MaxLength
	if maxLength == 0 {
		maxLength = g.summaryMaxLength
	}
	text, err := g.generate(ctx, "summary", g.builder.Summary(strings.Join(parts, "\n"), maxLength))
	if err != nil {
		return nil, err
	}
	return &models.GenerationResponse{Text: text}, nil
}
