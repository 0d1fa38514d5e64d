// Package store persists indexed changes and their embeddings in SQLite.
// Similarity search runs brute-force cosine over stored vectors; when the
// sqlite-vec extension is available (sqlite_vec build tag) an ANN index
// accelerates it.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"sprout/internal/embedding"
)

// Change is one indexed historical change.
type Change struct {
	ID         int64
	CommitHash string
	Author     string
	Email      string
	AuthoredAt time.Time
	Subject    string
	Body       string
	Files      []string
	Summary    string
	Embedding  []float32
	CreatedAt  time.Time
}

// Document renders the text a change is embedded as. Indexing and
// reembedding must embed identical text so both vector populations rank
// comparably.
func (c Change) Document() string {
	var b strings.Builder
	b.WriteString(c.Subject)
	if c.Body != "" {
		b.WriteString("\n")
		b.WriteString(c.Body)
	}
	if c.Summary != "" && c.Summary != "No changes detected" {
		b.WriteString("\n")
		b.WriteString(c.Summary)
	}
	if len(c.Files) > 0 {
		b.WriteString("\nfiles: ")
		b.WriteString(strings.Join(c.Files, ", "))
	}
	return b.String()
}

// ScoredChange is a search hit with its cosine similarity to the query.
type ScoredChange struct {
	Change
	Similarity float64
}

// Stats describes the store's contents.
type Stats struct {
	TotalChanges      int64
	WithEmbeddings    int64
	WithoutEmbeddings int64
	VecExtension      bool
	LastIndexedAt     time.Time
}

// ChangeStore is a SQLite-backed store of indexed changes.
type ChangeStore struct {
	db        *sql.DB
	mu        sync.RWMutex
	dbPath    string
	logger    *zap.Logger
	vectorExt bool
	vecDims   int
}

// Open initializes the SQLite database at the given path, creating parent
// directories and the schema as needed.
func Open(path string, logger *zap.Logger) (*ChangeStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		logger.Debug("failed to set busy_timeout", zap.Error(err))
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		logger.Debug("failed to set journal_mode=WAL", zap.Error(err))
	}
	// synchronous=NORMAL is safe under WAL and much faster than FULL.
	if _, err := db.Exec("PRAGMA synchronous = NORMAL"); err != nil {
		logger.Debug("failed to set synchronous=NORMAL", zap.Error(err))
	}

	s := &ChangeStore{db: db, dbPath: path, logger: logger}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	s.detectVecExtension()
	if s.vectorExt {
		logger.Debug("sqlite-vec extension detected, ANN search enabled")
	}

	return s, nil
}

func (s *ChangeStore) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS changes (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		commit_hash TEXT NOT NULL UNIQUE,
		author TEXT NOT NULL,
		email TEXT NOT NULL,
		authored_at INTEGER NOT NULL,
		subject TEXT NOT NULL,
		body TEXT,
		files TEXT,
		summary TEXT,
		embedding TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_changes_hash ON changes(commit_hash);
	CREATE INDEX IF NOT EXISTS idx_changes_authored ON changes(authored_at);

	CREATE TABLE IF NOT EXISTS index_runs (
		id TEXT PRIMARY KEY,
		started_at DATETIME NOT NULL,
		finished_at DATETIME NOT NULL,
		indexed INTEGER NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// detectVecExtension probes for sqlite-vec. Without it searches fall back to a
// full scan in Go.
func (s *ChangeStore) detectVecExtension() {
	var version string
	if err := s.db.QueryRow("SELECT vec_version()").Scan(&version); err == nil {
		s.vectorExt = true
	}
}

// Close closes the underlying database.
func (s *ChangeStore) Close() error {
	return s.db.Close()
}

// Put stores a change, replacing any previous record for the same commit.
func (s *ChangeStore) Put(ctx context.Context, c Change) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	filesJSON, err := json.Marshal(c.Files)
	if err != nil {
		return fmt.Errorf("failed to serialize files: %w", err)
	}

	var embeddingJSON interface{}
	if len(c.Embedding) > 0 {
		data, err := json.Marshal(c.Embedding)
		if err != nil {
			return fmt.Errorf("failed to serialize embedding: %w", err)
		}
		embeddingJSON = string(data)
	}

	// Upsert keeps the rowid stable so ANN entries keyed by it stay valid.
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO changes (commit_hash, author, email, authored_at, subject, body, files, summary, embedding)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(commit_hash) DO UPDATE SET
		   author = excluded.author, email = excluded.email,
		   authored_at = excluded.authored_at, subject = excluded.subject,
		   body = excluded.body, files = excluded.files,
		   summary = excluded.summary, embedding = excluded.embedding`,
		c.CommitHash, c.Author, c.Email, c.AuthoredAt.Unix(), c.Subject, c.Body, string(filesJSON), c.Summary, embeddingJSON,
	)
	if err != nil {
		return err
	}

	if s.vectorExt && len(c.Embedding) > 0 {
		var rowID int64
		err := s.db.QueryRowContext(ctx,
			"SELECT id FROM changes WHERE commit_hash = ?", c.CommitHash,
		).Scan(&rowID)
		if err == nil {
			if err := s.putVec(ctx, rowID, c.Embedding); err != nil {
				// ANN index is an accelerator; the JSON copy remains authoritative.
				s.logger.Debug("failed to update ANN index", zap.Error(err))
			}
		}
	}

	return nil
}

// Has reports whether a commit is already indexed with an embedding.
func (s *ChangeStore) Has(ctx context.Context, commitHash string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM changes WHERE commit_hash = ? AND embedding IS NOT NULL", commitHash,
	).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Count returns the number of stored changes.
func (s *ChangeStore) Count(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM changes").Scan(&n)
	return n, err
}

// SearchSimilar returns the k stored changes most similar to the query
// vector, ordered by descending cosine similarity. k <= 0 defaults to 10.
func (s *ChangeStore) SearchSimilar(ctx context.Context, query []float32, k int) ([]ScoredChange, error) {
	if k <= 0 {
		k = 10
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.vectorExt {
		if results, err := s.searchVec(ctx, query, k); err == nil {
			return results, nil
		}
		// Fall through to the full scan on ANN errors.
	}

	return s.searchScan(ctx, query, k)
}

// searchScan is the brute-force cosine path.
func (s *ChangeStore) searchScan(ctx context.Context, query []float32, k int) ([]ScoredChange, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, commit_hash, author, email, authored_at, subject, body, files, summary, embedding, created_at
		 FROM changes WHERE embedding IS NOT NULL`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var changes []Change
	var vectors [][]float32

	for rows.Next() {
		c, vec, err := scanChange(rows)
		if err != nil {
			continue
		}
		changes = append(changes, c)
		vectors = append(vectors, vec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	top := embedding.FindTopK(query, vectors, k)

	results := make([]ScoredChange, 0, len(top))
	for _, hit := range top {
		results = append(results, ScoredChange{
			Change:     changes[hit.Index],
			Similarity: hit.Similarity,
		})
	}
	return results, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanChange(rows rowScanner) (Change, []float32, error) {
	var c Change
	var authoredAt int64
	var body, filesJSON, summary sql.NullString
	var embeddingJSON sql.NullString

	if err := rows.Scan(&c.ID, &c.CommitHash, &c.Author, &c.Email, &authoredAt,
		&c.Subject, &body, &filesJSON, &summary, &embeddingJSON, &c.CreatedAt); err != nil {
		return Change{}, nil, err
	}

	c.AuthoredAt = time.Unix(authoredAt, 0).UTC()
	c.Body = body.String
	c.Summary = summary.String
	if filesJSON.Valid && filesJSON.String != "" {
		if err := json.Unmarshal([]byte(filesJSON.String), &c.Files); err != nil {
			return Change{}, nil, err
		}
	}

	var vec []float32
	if embeddingJSON.Valid && embeddingJSON.String != "" {
		if err := json.Unmarshal([]byte(embeddingJSON.String), &vec); err != nil {
			return Change{}, nil, err
		}
		c.Embedding = vec
	}

	return c, vec, nil
}

// GetByHash loads a single change by commit hash.
func (s *ChangeStore) GetByHash(ctx context.Context, commitHash string) (*Change, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		`SELECT id, commit_hash, author, email, authored_at, subject, body, files, summary, embedding, created_at
		 FROM changes WHERE commit_hash = ?`, commitHash,
	)

	c, _, err := scanChange(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &c, nil
}

// Stats returns statistics about the store.
func (s *ChangeStore) Stats(ctx context.Context) (Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var st Stats
	st.VecExtension = s.vectorExt

	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM changes").Scan(&st.TotalChanges); err != nil {
		return st, err
	}
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM changes WHERE embedding IS NOT NULL").Scan(&st.WithEmbeddings); err != nil {
		return st, err
	}
	st.WithoutEmbeddings = st.TotalChanges - st.WithEmbeddings

	var finished sql.NullTime
	if err := s.db.QueryRowContext(ctx, "SELECT MAX(finished_at) FROM index_runs").Scan(&finished); err == nil && finished.Valid {
		st.LastIndexedAt = finished.Time
	}

	return st, nil
}

// ReembedAll regenerates embeddings in batches of 32. With force it
// recomputes every stored change, which is how stale vectors are replaced
// after an embedding model change; otherwise only changes missing a vector
// are backfilled. Each change is embedded as its Document text, the same
// text indexing uses.
func (s *ChangeStore) ReembedAll(ctx context.Context, engine embedding.Engine, force bool) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if engine == nil {
		return 0, fmt.Errorf("no embedding engine configured")
	}

	query := `SELECT id, commit_hash, author, email, authored_at, subject, body, files, summary, embedding, created_at
		 FROM changes`
	if !force {
		query += " WHERE embedding IS NULL"
	}
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return 0, err
	}

	type pending struct {
		id   int64
		text string
	}
	var items []pending
	for rows.Next() {
		c, _, err := scanChange(rows)
		if err != nil {
			continue
		}
		items = append(items, pending{id: c.ID, text: c.Document()})
	}
	rows.Close()

	if len(items) == 0 {
		return 0, nil
	}

	const batchSize = 32
	done := 0
	for i := 0; i < len(items); i += batchSize {
		end := i + batchSize
		if end > len(items) {
			end = len(items)
		}
		batch := items[i:end]

		texts := make([]string, len(batch))
		for j, p := range batch {
			texts[j] = p.text
		}

		embeddings, err := engine.EmbedBatch(ctx, texts)
		if err != nil {
			return done, fmt.Errorf("failed to generate batch embeddings: %w", err)
		}

		for j, p := range batch {
			data, _ := json.Marshal(embeddings[j])
			if _, err := s.db.ExecContext(ctx, "UPDATE changes SET embedding = ? WHERE id = ?", string(data), p.id); err != nil {
				return done, fmt.Errorf("failed to update change %d: %w", p.id, err)
			}
			if s.vectorExt {
				if err := s.putVec(ctx, p.id, embeddings[j]); err != nil {
					s.logger.Debug("failed to update ANN index", zap.Error(err))
				}
			}
			done++
		}
	}

	return done, nil
}

// RecordIndexRun stores one indexing run for status reporting.
func (s *ChangeStore) RecordIndexRun(ctx context.Context, id string, started, finished time.Time, indexed int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO index_runs (id, started_at, finished_at, indexed) VALUES (?, ?, ?, ?)",
		id, started.UTC(), finished.UTC(), indexed,
	)
	return err
}
