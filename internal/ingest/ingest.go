// Package ingest loads disease records from files into the disease store.
package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hyperjump/nursesim/internal/embedding"
	"github.com/hyperjump/nursesim/internal/extract"
	"github.com/hyperjump/nursesim/internal/metrics"
	"github.com/hyperjump/nursesim/internal/models"
	"github.com/hyperjump/nursesim/internal/storage"
	"go.uber.org/zap"
)

// Ingester reads disease files, embeds records that lack a vector, and
// replaces the records previously loaded from the same file.
type Ingester struct {
	store      storage.DiseaseStore
	embedder   embedding.Embedder
	extractor  *extract.Extractor
	extensions []string
	logger     *zap.Logger
}

// Option configures an Ingester.
type Option func(*Ingester)

// WithLogger sets a logger for debug output.
func WithLogger(l *zap.Logger) Option {
	return func(in *Ingester) { in.logger = l }
}

// NewIngester creates an ingester. extensions limits which files IngestFile
// accepts; nil or empty accepts every supported format.
func NewIngester(store storage.DiseaseStore, embedder embedding.Embedder, extractor *extract.Extractor, extensions []string, opts ...Option) *Ingester {
	if extractor == nil {
		extractor = extract.NewExtractor()
	}
	in := &Ingester{
		store:      store,
		embedder:   embedder,
		extractor:  extractor,
		extensions: extensions,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(in)
	}
	return in
}

// Result reports what one ingestion run wrote.
type Result struct {
	Files   int `json:"files"`
	Records int `json:"records"`
}

// Accepts reports whether path has an extension this ingester loads.
func (in *Ingester) Accepts(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == "" {
		return false
	}
	if len(in.extensions) == 0 {
		return true
	}
	return extensionAllowed(ext, in.extensions)
}

// IngestFile loads every record in the file at path and atomically replaces
// the records whose source is the file's absolute path. It returns the number
// of records written.
func (in *Ingester) IngestFile(ctx context.Context, path string) (int, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return 0, fmt.Errorf("absolute path: %w", err)
	}
	ext := strings.ToLower(filepath.Ext(absPath))
	if !in.Accepts(absPath) {
		return 0, models.InvalidInputf("extension %q not in allowed list", ext)
	}
	info, err := os.Stat(absPath)
	if err != nil {
		return 0, fmt.Errorf("stat file: %w", err)
	}
	if !info.Mode().IsRegular() {
		return 0, models.InvalidInputf("not a regular file: %s", absPath)
	}
	in.logger.Debug("ingesting file", zap.String("path", absPath))

	records, err := in.load(absPath, ext)
	if err != nil {
		return 0, fmt.Errorf("load %s: %w", filepath.Base(absPath), err)
	}
	if err := in.embedMissing(ctx, records); err != nil {
		return 0, err
	}
	if err := in.store.ReplaceSource(ctx, absPath, records); err != nil {
		return 0, fmt.Errorf("store records: %w", err)
	}

	metrics.IngestRecordsTotal.WithLabelValues(strings.TrimPrefix(ext, ".")).Add(float64(len(records)))
	in.logger.Debug("file ingested", zap.String("path", absPath), zap.Int("records", len(records)))
	return len(records), nil
}

// IngestPath ingests a single file, or every accepted file under a directory.
// Subdirectories are walked only when recursive is set. The walk stops at the
// first file that fails.
func (in *Ingester) IngestPath(ctx context.Context, path string, recursive bool) (Result, error) {
	var res Result
	absPath, err := filepath.Abs(path)
	if err != nil {
		return res, fmt.Errorf("absolute path: %w", err)
	}
	info, err := os.Stat(absPath)
	if err != nil {
		return res, fmt.Errorf("stat path: %w", err)
	}
	if !info.IsDir() {
		n, err := in.IngestFile(ctx, absPath)
		if err != nil {
			return res, err
		}
		return Result{Files: 1, Records: n}, nil
	}

	err = filepath.WalkDir(absPath, func(p string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			if p != absPath && !recursive {
				return filepath.SkipDir
			}
			return nil
		}
		if !in.Accepts(p) {
			return nil
		}
		// Resolve symlinks so only regular files are ingested.
		finfo, statErr := os.Stat(p)
		if statErr != nil || !finfo.Mode().IsRegular() {
			return nil
		}
		n, err := in.IngestFile(ctx, p)
		if err != nil {
			return err
		}
		res.Files++
		res.Records += n
		return nil
	})
	return res, err
}

// RemoveSource deletes every record that was ingested from path.
func (in *Ingester) RemoveSource(ctx context.Context, path string) (int64, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return 0, fmt.Errorf("absolute path: %w", err)
	}
	n, err := in.store.DeleteBySource(ctx, absPath)
	if err != nil {
		return 0, err
	}
	in.logger.Debug("source removed", zap.String("path", absPath), zap.Int64("records", n))
	return n, nil
}

func (in *Ingester) load(path, ext string) ([]*models.DiseaseRecord, error) {
	switch {
	case ext == ".json" || ext == ".jsonl":
		content, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read file: %w", err)
		}
		if ext == ".jsonl" {
			return decodeJSONLines(content)
		}
		return decodeJSON(content)
	case extract.IsTable(ext):
		tables, err := in.extractor.ExtractTables(path)
		if err != nil {
			return nil, err
		}
		return recordsFromTables(tables), nil
	default:
		doc, err := in.extractor.Extract(path)
		if err != nil {
			return nil, err
		}
		return []*models.DiseaseRecord{recordFromDocument(path, doc)}, nil
	}
}

// embedMissing fills in embeddings for records that were loaded without one.
func (in *Ingester) embedMissing(ctx context.Context, records []*models.DiseaseRecord) error {
	var (
		pending []*models.DiseaseRecord
		texts   []string
	)
	for _, d := range records {
		if len(d.Embedding) == 0 {
			pending = append(pending, d)
			texts = append(texts, d.EmbeddingText())
		}
	}
	if len(pending) == 0 {
		return nil
	}
	if in.embedder == nil {
		return models.InvalidInputf("%d records have no embedding and no embedder is configured", len(pending))
	}
	embeddings, err := in.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return fmt.Errorf("generate embeddings: %w", err)
	}
	for i, d := range pending {
		d.Embedding = embeddings[i]
	}
	return nil
}

// recordFromDocument turns a whole document into one record titled after the file.
func recordFromDocument(path string, doc *extract.Document) *models.DiseaseRecord {
	base := filepath.Base(path)
	title := strings.TrimSuffix(base, filepath.Ext(base))
	in := models.DiseaseInput{Title: title, Paragraphs: doc.Paragraphs}
	return in.Record()
}

func extensionAllowed(ext string, allowed []string) bool {
	extNorm := strings.ToLower(strings.TrimPrefix(ext, "."))
	for _, a := range allowed {
		if strings.ToLower(strings.TrimPrefix(a, ".")) == extNorm {
			return true
		}
	}
	return false
}
