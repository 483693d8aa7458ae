package storage

// The *_lower, body_text and attributes_text columns hold text lowercased in Go.
// SQLite's LOWER() folds ASCII only, so substring search compares against these.
const sqliteSchema = `
CREATE TABLE IF NOT EXISTS diseases (
	seq INTEGER PRIMARY KEY AUTOINCREMENT,
	id TEXT NOT NULL UNIQUE,
	title TEXT NOT NULL,
	title_lower TEXT NOT NULL,
	paragraphs TEXT NOT NULL,
	attributes TEXT NOT NULL,
	embedding TEXT NOT NULL,
	body_text TEXT NOT NULL,
	attributes_text TEXT NOT NULL,
	source TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_diseases_title ON diseases(title);
CREATE INDEX IF NOT EXISTS idx_diseases_source ON diseases(source);

CREATE TABLE IF NOT EXISTS scenarios (
	seq INTEGER PRIMARY KEY AUTOINCREMENT,
	id TEXT NOT NULL UNIQUE,
	id_lower TEXT NOT NULL,
	patient_info TEXT NOT NULL,
	patient_overview TEXT NOT NULL,
	scenario TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL
);
`

// mysqlSchema is split into statements because the driver runs one per Exec
// unless multiStatements is set in the DSN.
var mysqlSchema = []string{
	`CREATE TABLE IF NOT EXISTS diseases (
		seq BIGINT AUTO_INCREMENT PRIMARY KEY,
		id VARCHAR(64) NOT NULL UNIQUE,
		title VARCHAR(512) NOT NULL,
		title_lower VARCHAR(512) NOT NULL,
		paragraphs LONGTEXT NOT NULL,
		attributes LONGTEXT NOT NULL,
		embedding LONGTEXT NOT NULL,
		body_text LONGTEXT NOT NULL,
		attributes_text LONGTEXT NOT NULL,
		source VARCHAR(1024) NOT NULL DEFAULT '',
		created_at DATETIME(6) NOT NULL,
		INDEX idx_diseases_title (title),
		INDEX idx_diseases_source (source(255))
	) DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS scenarios (
		seq BIGINT AUTO_INCREMENT PRIMARY KEY,
		id VARCHAR(512) NOT NULL UNIQUE,
		id_lower VARCHAR(512) NOT NULL,
		patient_info LONGTEXT NOT NULL,
		patient_overview LONGTEXT NOT NULL,
		scenario LONGTEXT NOT NULL,
		created_at DATETIME(6) NOT NULL
	) DEFAULT CHARSET=utf8mb4`,
}
