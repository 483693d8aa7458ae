package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/hyperjump/nursesim/internal/config"
	"github.com/hyperjump/nursesim/internal/models"
)

// SQLStore implements Storage on a pooled database/sql connection via sqlx.
// It supports the sqlite3 and mysql drivers.
type SQLStore struct {
	db           *sqlx.DB
	driver       string
	path         string
	dimensions   int
	queryTimeout time.Duration
	logger       *zap.Logger
}

// Option configures a SQLStore.
type Option func(*SQLStore)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *SQLStore) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithDimensions enforces the embedding length on insert. Zero disables the check.
func WithDimensions(n int) Option {
	return func(s *SQLStore) { s.dimensions = n }
}

// WithQueryTimeout bounds every statement. Zero means no extra deadline.
func WithQueryTimeout(d time.Duration) Option {
	return func(s *SQLStore) { s.queryTimeout = d }
}

// Open creates a store from configuration.
func Open(cfg config.StorageConfig, opts ...Option) (*SQLStore, error) {
	opts = append([]Option{WithQueryTimeout(cfg.QueryTimeout)}, opts...)
	var (
		s   *SQLStore
		err error
	)
	switch cfg.Driver {
	case config.DriverMySQL:
		s, err = NewMySQLStore(cfg.DSN, opts...)
	case config.DriverSQLite, "":
		s, err = NewSQLiteStore(cfg.DatabasePath, opts...)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}
	if cfg.MaxOpenConns > 0 {
		s.db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	return s, nil
}

// NewSQLiteStore opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteStore(dbPath string, opts ...Option) (*SQLStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sqlx.Connect(config.DriverSQLite, dbPath+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w: %v", models.ErrStoreUnavailable, err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return newSQLStore(db, config.DriverSQLite, dbPath, opts...), nil
}

// NewMySQLStore connects to MySQL or MariaDB and initializes the schema.
// The DSN must set parseTime=true.
func NewMySQLStore(dsn string, opts ...Option) (*SQLStore, error) {
	db, err := sqlx.Connect(config.DriverMySQL, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w: %v", models.ErrStoreUnavailable, err)
	}
	for _, stmt := range mysqlSchema {
		if _, err := db.Exec(stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to initialize schema: %w", err)
		}
	}
	return newSQLStore(db, config.DriverMySQL, "", opts...), nil
}

func newSQLStore(db *sqlx.DB, driver, path string, opts ...Option) *SQLStore {
	s := &SQLStore{db: db, driver: driver, path: path, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Driver returns the database driver name.
func (s *SQLStore) Driver() string { return s.driver }

// Path returns the SQLite file path, or "" for network databases.
func (s *SQLStore) Path() string { return s.path }

func (s *SQLStore) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.queryTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.queryTimeout)
}

type diseaseRow struct {
	Seq            int64     `db:"seq"`
	ID             string    `db:"id"`
	Title          string    `db:"title"`
	TitleLower     string    `db:"title_lower"`
	Paragraphs     string    `db:"paragraphs"`
	Attributes     string    `db:"attributes"`
	Embedding      string    `db:"embedding"`
	BodyText       string    `db:"body_text"`
	AttributesText string    `db:"attributes_text"`
	Source         string    `db:"source"`
	CreatedAt      time.Time `db:"created_at"`
}

const diseaseColumns = `seq, id, title, paragraphs, attributes, embedding, source, created_at`

func (r *diseaseRow) record() (*models.DiseaseRecord, error) {
	d := &models.DiseaseRecord{ID: r.ID, Title: r.Title, Source: r.Source, CreatedAt: r.CreatedAt}
	if err := json.Unmarshal([]byte(r.Paragraphs), &d.Paragraphs); err != nil {
		return nil, fmt.Errorf("failed to unmarshal paragraphs of %s: %w", r.ID, err)
	}
	if err := json.Unmarshal([]byte(r.Attributes), &d.Attributes); err != nil {
		return nil, fmt.Errorf("failed to unmarshal attributes of %s: %w", r.ID, err)
	}
	if err := json.Unmarshal([]byte(r.Embedding), &d.Embedding); err != nil {
		return nil, fmt.Errorf("failed to unmarshal embedding of %s: %w", r.ID, err)
	}
	d.Normalize()
	return d, nil
}

func newDiseaseRow(d *models.DiseaseRecord) (*diseaseRow, error) {
	paragraphs, err := json.Marshal(d.Paragraphs)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal paragraphs: %w", err)
	}
	attributes, err := json.Marshal(d.Attributes)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal attributes: %w", err)
	}
	embedding, err := json.Marshal(d.Embedding)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal embedding: %w", err)
	}
	values := make([]string, 0, len(d.Attributes))
	for _, k := range d.AttributeKeys() {
		values = append(values, d.Attributes[k])
	}
	return &diseaseRow{
		ID:             d.ID,
		Title:          d.Title,
		TitleLower:     strings.ToLower(d.Title),
		Paragraphs:     string(paragraphs),
		Attributes:     string(attributes),
		Embedding:      string(embedding),
		BodyText:       strings.ToLower(strings.Join(d.Paragraphs, " ")),
		AttributesText: strings.ToLower(strings.Join(values, " ")),
		Source:         d.Source,
		CreatedAt:      d.CreatedAt,
	}, nil
}

func rowsToRecords(rows []diseaseRow) ([]*models.DiseaseRecord, error) {
	out := make([]*models.DiseaseRecord, 0, len(rows))
	for i := range rows {
		d, err := rows[i].record()
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

// likePattern lower-cases fragment, escapes LIKE wildcards with '!', and wraps it in '%'.
func likePattern(fragment string) string {
	r := strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")
	return "%" + r.Replace(strings.ToLower(fragment)) + "%"
}

// SearchByText returns records containing fragment in title, body, or attribute values.
// Matching is case-insensitive and results come in insertion order.
func (s *SQLStore) SearchByText(ctx context.Context, fragment string) ([]*models.DiseaseRecord, error) {
	if fragment == "" {
		return []*models.DiseaseRecord{}, nil
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	pattern := likePattern(fragment)
	var rows []diseaseRow
	err := s.db.SelectContext(ctx, &rows,
		`SELECT `+diseaseColumns+` FROM diseases
		 WHERE title_lower LIKE ? ESCAPE '!'
		    OR body_text LIKE ? ESCAPE '!'
		    OR attributes_text LIKE ? ESCAPE '!'
		 ORDER BY seq`,
		pattern, pattern, pattern,
	)
	if err != nil {
		return nil, classify("search diseases", err)
	}
	return rowsToRecords(rows)
}

// GetByTitle returns the record whose title equals title.
func (s *SQLStore) GetByTitle(ctx context.Context, title string) (*models.DiseaseRecord, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var row diseaseRow
	err := s.db.GetContext(ctx, &row,
		`SELECT `+diseaseColumns+` FROM diseases WHERE title = ? ORDER BY seq LIMIT 1`, title)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("disease titled %q: %w", title, models.ErrNotFound)
	}
	if err != nil {
		return nil, classify("get disease by title", err)
	}
	return row.record()
}

// GetDisease returns a record by ID.
func (s *SQLStore) GetDisease(ctx context.Context, id string) (*models.DiseaseRecord, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var row diseaseRow
	err := s.db.GetContext(ctx, &row, `SELECT `+diseaseColumns+` FROM diseases WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("disease %s: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, classify("get disease", err)
	}
	return row.record()
}

// ListDiseases returns every record in insertion order.
func (s *SQLStore) ListDiseases(ctx context.Context) ([]*models.DiseaseRecord, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var rows []diseaseRow
	if err := s.db.SelectContext(ctx, &rows, `SELECT `+diseaseColumns+` FROM diseases ORDER BY seq`); err != nil {
		return nil, classify("list diseases", err)
	}
	return rowsToRecords(rows)
}

func (s *SQLStore) prepareDisease(d *models.DiseaseRecord) (*diseaseRow, error) {
	if strings.TrimSpace(d.Title) == "" {
		return nil, models.InvalidInputf("disease title cannot be empty")
	}
	if s.dimensions > 0 && len(d.Embedding) != s.dimensions {
		return nil, models.InvalidInputf("embedding of %q has %d dimensions, want %d", d.Title, len(d.Embedding), s.dimensions)
	}
	if d.ID == "" {
		d.ID = uuid.New().String()
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now().UTC()
	}
	d.Normalize()
	return newDiseaseRow(d)
}

const insertDisease = `INSERT INTO diseases
	(id, title, title_lower, paragraphs, attributes, embedding, body_text, attributes_text, source, created_at)
	VALUES (:id, :title, :title_lower, :paragraphs, :attributes, :embedding, :body_text, :attributes_text, :source, :created_at)`

// CreateDisease inserts a record, assigning an ID when empty.
func (s *SQLStore) CreateDisease(ctx context.Context, d *models.DiseaseRecord) error {
	row, err := s.prepareDisease(d)
	if err != nil {
		return err
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if _, err := s.db.NamedExecContext(ctx, insertDisease, row); err != nil {
		return classify("create disease", err)
	}
	return nil
}

// DeleteDiseases removes the records with the given IDs and returns how many were deleted.
func (s *SQLStore) DeleteDiseases(ctx context.Context, ids []string) (int64, error) {
	return s.deleteIn(ctx, "diseases", ids)
}

// ReplaceSource deletes every record from source and inserts records in one transaction.
func (s *SQLStore) ReplaceSource(ctx context.Context, source string, records []*models.DiseaseRecord) error {
	rows := make([]*diseaseRow, 0, len(records))
	for _, d := range records {
		d.Source = source
		row, err := s.prepareDisease(d)
		if err != nil {
			return err
		}
		rows = append(rows, row)
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return classify("begin replace source", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM diseases WHERE source = ?`, source); err != nil {
		return classify("delete source", err)
	}
	for _, row := range rows {
		if _, err := tx.NamedExecContext(ctx, insertDisease, row); err != nil {
			return classify("insert disease", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return classify("commit replace source", err)
	}
	s.logger.Debug("replaced source", zap.String("source", source), zap.Int("records", len(rows)))
	return nil
}

// DeleteBySource removes every record ingested from source.
func (s *SQLStore) DeleteBySource(ctx context.Context, source string) (int64, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	res, err := s.db.ExecContext(ctx, `DELETE FROM diseases WHERE source = ?`, source)
	if err != nil {
		return 0, classify("delete source", err)
	}
	return res.RowsAffected()
}

// CountDiseases returns the number of disease records.
func (s *SQLStore) CountDiseases(ctx context.Context) (int64, error) {
	return s.count(ctx, "diseases")
}

type scenarioRow struct {
	Seq             int64     `db:"seq"`
	ID              string    `db:"id"`
	IDLower         string    `db:"id_lower"`
	PatientInfo     string    `db:"patient_info"`
	PatientOverview string    `db:"patient_overview"`
	Scenario        string    `db:"scenario"`
	CreatedAt       time.Time `db:"created_at"`
}

const scenarioColumns = `seq, id, patient_info, patient_overview, scenario, created_at`

const insertScenario = `INSERT INTO scenarios (id, id_lower, patient_info, patient_overview, scenario, created_at)
	VALUES (:id, :id_lower, :patient_info, :patient_overview, :scenario, :created_at)`

func (r *scenarioRow) record() (*models.ScenarioRecord, error) {
	sc := &models.ScenarioRecord{
		ID:              r.ID,
		PatientOverview: r.PatientOverview,
		Scenario:        r.Scenario,
		CreatedAt:       r.CreatedAt,
	}
	if err := json.Unmarshal([]byte(r.PatientInfo), &sc.PatientInfo); err != nil {
		return nil, fmt.Errorf("failed to unmarshal patient info of %s: %w", r.ID, err)
	}
	if sc.PatientInfo == nil {
		sc.PatientInfo = map[string]string{}
	}
	return sc, nil
}

func newScenarioRow(sc *models.ScenarioRecord) (*scenarioRow, error) {
	if sc.ID == "" {
		return nil, models.InvalidInputf("scenario id cannot be empty")
	}
	if sc.PatientInfo == nil {
		sc.PatientInfo = map[string]string{}
	}
	info, err := json.Marshal(sc.PatientInfo)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal patient info: %w", err)
	}
	if sc.CreatedAt.IsZero() {
		sc.CreatedAt = time.Now().UTC()
	}
	return &scenarioRow{
		ID:              sc.ID,
		IDLower:         strings.ToLower(sc.ID),
		PatientInfo:     string(info),
		PatientOverview: sc.PatientOverview,
		Scenario:        sc.Scenario,
		CreatedAt:       sc.CreatedAt,
	}, nil
}

// CreateScenario inserts a scenario. A duplicate ID is reported as models.ErrInvalidInput.
func (s *SQLStore) CreateScenario(ctx context.Context, sc *models.ScenarioRecord) error {
	row, err := newScenarioRow(sc)
	if err != nil {
		return err
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if _, err := s.db.NamedExecContext(ctx, insertScenario, row); err != nil {
		return classify("create scenario", err)
	}
	return nil
}

// GetScenario returns a scenario by ID.
func (s *SQLStore) GetScenario(ctx context.Context, id string) (*models.ScenarioRecord, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var row scenarioRow
	err := s.db.GetContext(ctx, &row, `SELECT `+scenarioColumns+` FROM scenarios WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("scenario %s: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, classify("get scenario", err)
	}
	return row.record()
}

// ListScenarios returns scenarios whose ID contains filter, oldest first.
func (s *SQLStore) ListScenarios(ctx context.Context, filter string) ([]*models.ScenarioRecord, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var rows []scenarioRow
	err := s.db.SelectContext(ctx, &rows,
		`SELECT `+scenarioColumns+` FROM scenarios WHERE id_lower LIKE ? ESCAPE '!' ORDER BY seq`,
		likePattern(filter))
	if err != nil {
		return nil, classify("list scenarios", err)
	}
	out := make([]*models.ScenarioRecord, 0, len(rows))
	for i := range rows {
		sc, err := rows[i].record()
		if err != nil {
			return nil, err
		}
		out = append(out, sc)
	}
	return out, nil
}

// ReplaceScenario inserts sc and deletes oldID in one transaction. When the ID is
// unchanged the row is updated in place. An ID that collides with another
// scenario is reported as models.ErrInvalidInput.
func (s *SQLStore) ReplaceScenario(ctx context.Context, oldID string, sc *models.ScenarioRecord) error {
	row, err := newScenarioRow(sc)
	if err != nil {
		return err
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return classify("begin replace scenario", err)
	}
	defer func() { _ = tx.Rollback() }()

	var exists int
	if err := tx.GetContext(ctx, &exists, `SELECT COUNT(*) FROM scenarios WHERE id = ?`, oldID); err != nil {
		return classify("find scenario", err)
	}
	if exists == 0 {
		return fmt.Errorf("scenario %s: %w", oldID, models.ErrNotFound)
	}

	if oldID == sc.ID {
		if _, err := tx.NamedExecContext(ctx,
			`UPDATE scenarios SET patient_info = :patient_info, patient_overview = :patient_overview,
			 scenario = :scenario WHERE id = :id`, row); err != nil {
			return classify("update scenario", err)
		}
	} else {
		if _, err := tx.ExecContext(ctx, `DELETE FROM scenarios WHERE id = ?`, oldID); err != nil {
			return classify("delete scenario", err)
		}
		if _, err := tx.NamedExecContext(ctx, insertScenario, row); err != nil {
			return classify("insert scenario", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return classify("commit replace scenario", err)
	}
	return nil
}

// DeleteScenarios removes the scenarios with the given IDs.
func (s *SQLStore) DeleteScenarios(ctx context.Context, ids []string) (int64, error) {
	return s.deleteIn(ctx, "scenarios", ids)
}

// CountScenarios returns the number of stored scenarios.
func (s *SQLStore) CountScenarios(ctx context.Context) (int64, error) {
	return s.count(ctx, "scenarios")
}

// deleteIn removes rows of table whose id is in ids. table is never user input.
func (s *SQLStore) deleteIn(ctx context.Context, table string, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	query, args, err := sqlx.In(`DELETE FROM `+table+` WHERE id IN (?)`, ids)
	if err != nil {
		return 0, fmt.Errorf("failed to build delete: %w", err)
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	res, err := s.db.ExecContext(ctx, s.db.Rebind(query), args...)
	if err != nil {
		return 0, classify("delete "+table, err)
	}
	return res.RowsAffected()
}

func (s *SQLStore) count(ctx context.Context, table string) (int64, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var n int64
	if err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM `+table); err != nil {
		return 0, classify("count "+table, err)
	}
	return n, nil
}

// Ping checks the connection.
func (s *SQLStore) Ping(ctx context.Context) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping: %w: %v", models.ErrStoreUnavailable, err)
	}
	return nil
}

// Close closes the connection pool.
func (s *SQLStore) Close() error {
	return s.db.Close()
}
