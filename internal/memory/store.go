package memory

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"appforge/internal/logging"

	_ "github.com/mattn/go-sqlite3"
)

// RecordKind tags a memory record variant.
type RecordKind string

const (
	KindCode       RecordKind = "code"
	KindDecision   RecordKind = "decision"
	KindPreference RecordKind = "preference"
	KindConstraint RecordKind = "constraint"
)

// Record is one stored memory entry. Field usage varies by kind: code uses
// Title (filepath) + Content (snippet) + Language; decision uses Title +
// Content (reasoning); preference uses Category/Key/Value; constraint uses
// Content (description) + Severity.
type Record struct {
	ID        int64      `json:"id"`
	Kind      RecordKind `json:"kind"`
	Title     string     `json:"title,omitempty"`
	Content   string     `json:"content,omitempty"`
	Language  string     `json:"language,omitempty"`
	Category  string     `json:"category,omitempty"`
	Key       string     `json:"key,omitempty"`
	Value     string     `json:"value,omitempty"`
	Severity  string     `json:"severity,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// Match is one search hit with its cosine similarity score.
type Match struct {
	Record Record  `json:"record"`
	Score  float64 `json:"score"`
}

// Store owns one vector collection per project, each persisted as a SQLite
// database under the memory directory. ANN search uses the sqlite-vec vec0
// table when the extension is registered, with a linear cosine scan
// fallback otherwise. Records are append-only within a project.
type Store struct {
	dir    string
	engine Engine

	mu  sync.Mutex
	dbs map[string]*collection
}

type collection struct {
	db  *sql.DB
	vec bool // vec0 virtual table available
}

// NewStore creates a store rooted at dir using the given embedding engine.
func NewStore(dir string, engine Engine) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create memory dir: %w", err)
	}
	return &Store{
		dir:    dir,
		engine: engine,
		dbs:    make(map[string]*collection),
	}, nil
}

func (s *Store) dbPath(projectID string) string {
	return filepath.Join(s.dir, projectID+".db")
}

// open returns (creating on first use) the project's collection.
func (s *Store) open(projectID string) (*collection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c, ok := s.dbs[projectID]; ok {
		return c, nil
	}

	db, err := sql.Open("sqlite3", s.dbPath(projectID))
	if err != nil {
		return nil, fmt.Errorf("open memory db: %w", err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS records (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			kind       TEXT NOT NULL,
			title      TEXT,
			content    TEXT,
			language   TEXT,
			category   TEXT,
			key        TEXT,
			value      TEXT,
			severity   TEXT,
			created_at TIMESTAMP NOT NULL,
			embedding  BLOB NOT NULL
		)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create records table: %w", err)
	}

	c := &collection{db: db}

	// vec0 is only present when the sqlite-vec build is active; the linear
	// fallback keeps search working either way.
	vecSQL := fmt.Sprintf(
		"CREATE VIRTUAL TABLE IF NOT EXISTS vec_records USING vec0(embedding float[%d])", Dimensions)
	if _, err := db.Exec(vecSQL); err != nil {
		logging.Memory("sqlite-vec unavailable for %s, using linear scan: %v", projectID, err)
	} else {
		c.vec = true
	}

	s.dbs[projectID] = c
	logging.Memory("opened collection %s (vec=%v)", projectID, c.vec)
	return c, nil
}

// embedText is the short text representation handed to the embedder.
func embedText(r *Record) string {
	switch r.Kind {
	case KindCode:
		snippet := r.Content
		if len(snippet) > 2048 {
			snippet = snippet[:2048]
		}
		return r.Title + " :: " + snippet
	case KindDecision:
		return r.Title + " :: " + r.Content
	case KindPreference:
		return fmt.Sprintf("%s.%s = %s", r.Category, r.Key, r.Value)
	default:
		return r.Content
	}
}

func (s *Store) insert(ctx context.Context, projectID string, r *Record) error {
	c, err := s.open(projectID)
	if err != nil {
		return err
	}

	embedding, err := s.engine.Embed(ctx, embedText(r))
	if err != nil {
		return fmt.Errorf("embed record: %w", err)
	}

	r.CreatedAt = time.Now()
	res, err := c.db.ExecContext(ctx, `
		INSERT INTO records (kind, title, content, language, category, key, value, severity, created_at, embedding)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.Kind, r.Title, r.Content, r.Language, r.Category, r.Key, r.Value, r.Severity,
		r.CreatedAt, encodeEmbedding(embedding))
	if err != nil {
		return fmt.Errorf("insert record: %w", err)
	}
	r.ID, _ = res.LastInsertId()

	if c.vec {
		if _, err := c.db.ExecContext(ctx,
			"INSERT INTO vec_records (rowid, embedding) VALUES (?, ?)",
			r.ID, encodeEmbedding(embedding)); err != nil {
			logging.Memory("vec insert failed (ANN degraded): %v", err)
		}
	}

	logging.MemoryDebug("stored %s record %d in %s", r.Kind, r.ID, projectID)
	return nil
}

// StoreCode stores a code snippet keyed by filepath.
func (s *Store) StoreCode(ctx context.Context, projectID, path, snippet, language string) error {
	return s.insert(ctx, projectID, &Record{
		Kind: KindCode, Title: path, Content: snippet, Language: language,
	})
}

// StoreDecision stores a design decision and its reasoning.
func (s *Store) StoreDecision(ctx context.Context, projectID, title, reasoning string) error {
	return s.insert(ctx, projectID, &Record{
		Kind: KindDecision, Title: title, Content: reasoning,
	})
}

// StorePreference stores a user preference.
func (s *Store) StorePreference(ctx context.Context, projectID, category, key, value string) error {
	return s.insert(ctx, projectID, &Record{
		Kind: KindPreference, Category: category, Key: key, Value: value,
	})
}

// StoreConstraint stores a project constraint.
func (s *Store) StoreConstraint(ctx context.Context, projectID, description, severity string) error {
	return s.insert(ctx, projectID, &Record{
		Kind: KindConstraint, Content: description, Severity: severity,
	})
}

// SearchCode returns the code snippets most similar to the query,
// optionally filtered by language.
func (s *Store) SearchCode(ctx context.Context, projectID, query string, n int, language string) ([]Match, error) {
	matches, err := s.search(ctx, projectID, query, KindCode, n)
	if err != nil || language == "" {
		return matches, err
	}
	filtered := matches[:0]
	for _, m := range matches {
		if m.Record.Language == language {
			filtered = append(filtered, m)
		}
	}
	return filtered, nil
}

// SearchDecisions returns the decisions most similar to the query.
func (s *Store) SearchDecisions(ctx context.Context, projectID, query string, n int) ([]Match, error) {
	return s.search(ctx, projectID, query, KindDecision, n)
}

// SearchPreferences returns the preferences most similar to the query.
func (s *Store) SearchPreferences(ctx context.Context, projectID, query string, n int) ([]Match, error) {
	return s.search(ctx, projectID, query, KindPreference, n)
}

// SearchConstraints returns the constraints most similar to the query.
func (s *Store) SearchConstraints(ctx context.Context, projectID, query string, n int) ([]Match, error) {
	return s.search(ctx, projectID, query, KindConstraint, n)
}

func (s *Store) search(ctx context.Context, projectID, query string, kind RecordKind, n int) ([]Match, error) {
	if n <= 0 {
		n = 5
	}
	c, err := s.open(projectID)
	if err != nil {
		return nil, err
	}

	queryEmbedding, err := s.engine.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	start := time.Now()
	var matches []Match
	if c.vec {
		matches, err = s.searchVec(ctx, c, queryEmbedding, kind, n)
	} else {
		matches, err = s.searchLinear(ctx, c, queryEmbedding, kind, n)
	}
	if err != nil {
		return nil, err
	}
	logging.MemoryDebug("search %s kind=%s n=%d -> %d matches in %v",
		projectID, kind, n, len(matches), time.Since(start))
	return matches, nil
}

func (s *Store) searchVec(ctx context.Context, c *collection, query []float32, kind RecordKind, n int) ([]Match, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT r.id, r.kind, r.title, r.content, r.language, r.category, r.key, r.value, r.severity, r.created_at,
			vec_distance_cosine(v.embedding, ?) AS distance
		FROM vec_records v
		JOIN records r ON r.id = v.rowid
		WHERE r.kind = ?
		ORDER BY distance ASC
		LIMIT ?`,
		encodeEmbedding(query), kind, n)
	if err != nil {
		return nil, fmt.Errorf("vec search: %w", err)
	}
	defer rows.Close()

	var out []Match
	for rows.Next() {
		var m Match
		var distance float64
		if err := rows.Scan(&m.Record.ID, &m.Record.Kind, &m.Record.Title, &m.Record.Content,
			&m.Record.Language, &m.Record.Category, &m.Record.Key, &m.Record.Value,
			&m.Record.Severity, &m.Record.CreatedAt, &distance); err != nil {
			continue
		}
		m.Score = 1.0 - distance
		out = append(out, m)
	}
	return out, rows.Err()
}

// searchLinear scans every record of the kind and ranks by cosine in Go.
func (s *Store) searchLinear(ctx context.Context, c *collection, query []float32, kind RecordKind, n int) ([]Match, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT id, kind, title, content, language, category, key, value, severity, created_at, embedding
		FROM records WHERE kind = ?`, kind)
	if err != nil {
		return nil, fmt.Errorf("linear search: %w", err)
	}
	defer rows.Close()

	var out []Match
	for rows.Next() {
		var m Match
		var blob []byte
		if err := rows.Scan(&m.Record.ID, &m.Record.Kind, &m.Record.Title, &m.Record.Content,
			&m.Record.Language, &m.Record.Category, &m.Record.Key, &m.Record.Value,
			&m.Record.Severity, &m.Record.CreatedAt, &blob); err != nil {
			continue
		}
		embedding := decodeEmbedding(blob)
		score, err := CosineSimilarity(query, embedding)
		if err != nil {
			continue
		}
		m.Score = score
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Insertion-sort the small result window; kinds rarely exceed a few
	// hundred records per project.
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].Score > out[j-1].Score; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	if len(out) > n {
		out = out[:n]
	}
	return out, nil
}

// Count returns the number of records a project holds.
func (s *Store) Count(ctx context.Context, projectID string) (int, error) {
	c, err := s.open(projectID)
	if err != nil {
		return 0, err
	}
	var n int
	err = c.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM records").Scan(&n)
	return n, err
}

// DeleteProject closes and removes a project's collection.
func (s *Store) DeleteProject(projectID string) error {
	s.mu.Lock()
	if c, ok := s.dbs[projectID]; ok {
		c.db.Close()
		delete(s.dbs, projectID)
	}
	s.mu.Unlock()

	if err := os.Remove(s.dbPath(projectID)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove collection: %w", err)
	}
	logging.Memory("deleted collection %s", projectID)
	return nil
}

// Close closes every open collection.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, c := range s.dbs {
		c.db.Close()
		delete(s.dbs, id)
	}
	return nil
}

// encodeEmbedding encodes float32s little-endian, the layout sqlite-vec
// expects.
func encodeEmbedding(vec []float32) []byte {
	buf := &bytes.Buffer{}
	_ = binary.Write(buf, binary.LittleEndian, vec)
	return buf.Bytes()
}

func decodeEmbedding(blob []byte) []float32 {
	out := make([]float32, len(blob)/4)
	_ = binary.Read(bytes.NewReader(blob), binary.LittleEndian, &out)
	return out
}
