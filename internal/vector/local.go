package vector

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	_ "github.com/mattn/go-sqlite3"

	"codewiki/internal/embedding"
	"codewiki/internal/logging"
	"codewiki/internal/wikierr"
)

// LocalStore is a SQLite-backed vector store for single-node setups with
// no search cluster. Records live as JSON documents; dense scoring runs in
// process over the stored embeddings. Results are shaped like a cluster
// response so the Result helpers behave identically across backends.
type LocalStore struct {
	db *sql.DB
	mu sync.RWMutex
}

const localSchema = `
CREATE TABLE IF NOT EXISTS spaces (
	name TEXT PRIMARY KEY,
	vector_size INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS records (
	space TEXT NOT NULL,
	id TEXT NOT NULL,
	doc TEXT NOT NULL,
	embedding TEXT,
	PRIMARY KEY (space, id)
);
`

// NewLocalStore opens (or creates) the local backend at path.
func NewLocalStore(path string) (*LocalStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, wikierr.Wrap(wikierr.KindIO, err, "create vector store directory")
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, wikierr.Wrap(wikierr.KindIO, err, "open local vector store")
	}
	db.SetMaxOpenConns(1)
	db.Exec("PRAGMA busy_timeout = 5000")
	db.Exec("PRAGMA journal_mode = WAL")
	if _, err := db.Exec(localSchema); err != nil {
		db.Close()
		return nil, wikierr.Wrap(wikierr.KindIO, err, "initialize vector schema")
	}
	logging.Vector("local vector store opened at %s", path)
	return &LocalStore{db: db}, nil
}

func (s *LocalStore) CreateSpace(ctx context.Context, name string, vectorSize int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO spaces (name, vector_size) VALUES (?, ?)`, name, vectorSize)
	if err != nil {
		return wikierr.Wrap(wikierr.KindIO, err, "create space %s", name)
	}
	return nil
}

func (s *LocalStore) DeleteSpace(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.db.ExecContext(ctx, `DELETE FROM records WHERE space = ?`, name); err != nil {
		return wikierr.Wrap(wikierr.KindIO, err, "clear space %s", name)
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM spaces WHERE name = ?`, name); err != nil {
		return wikierr.Wrap(wikierr.KindIO, err, "delete space %s", name)
	}
	return nil
}

func (s *LocalStore) SpaceExists(ctx context.Context, name string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM spaces WHERE name = ?`, name).Scan(&n)
	if err != nil {
		return false, wikierr.Wrap(wikierr.KindIO, err, "space exists check")
	}
	return n > 0, nil
}

func (s *LocalStore) InsertRecords(ctx context.Context, space string, records []Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return wikierr.Wrap(wikierr.KindIO, err, "begin insert")
	}
	for _, rec := range records {
		id := rec.ID()
		if id == "" {
			tx.Rollback()
			return wikierr.New(wikierr.KindValidation, "record missing id")
		}
		var embeddingJSON interface{}
		if emb, ok := rec["embedding"]; ok {
			data, err := json.Marshal(emb)
			if err == nil {
				embeddingJSON = string(data)
			}
		}
		doc, err := json.Marshal(rec)
		if err != nil {
			tx.Rollback()
			return wikierr.Wrap(wikierr.KindValidation, err, "serialize record %s", id)
		}
		_, err = tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO records (space, id, doc, embedding) VALUES (?, ?, ?, ?)`,
			space, id, string(doc), embeddingJSON)
		if err != nil {
			tx.Rollback()
			return wikierr.Wrap(wikierr.KindIO, err, "insert record %s", id)
		}
	}
	return tx.Commit()
}

func (s *LocalStore) UpdateRecords(ctx context.Context, space string, cond Condition, spec UpdateSpec) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	matched, err := s.matchRecords(ctx, space, &cond)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, rec := range matched {
		applyUpdate(rec, spec)
		doc, err := json.Marshal(rec)
		if err != nil {
			continue
		}
		var embeddingJSON interface{}
		if emb, ok := rec["embedding"]; ok {
			if data, err := json.Marshal(emb); err == nil {
				embeddingJSON = string(data)
			}
		}
		_, err = s.db.ExecContext(ctx,
			`UPDATE records SET doc = ?, embedding = ? WHERE space = ? AND id = ?`,
			string(doc), embeddingJSON, space, rec.ID())
		if err != nil {
			return count, wikierr.Wrap(wikierr.KindIO, err, "update record %s", rec.ID())
		}
		count++
	}
	return count, nil
}

func applyUpdate(rec Record, spec UpdateSpec) {
	for field, value := range spec.Set {
		rec[field] = value
	}
	for _, field := range spec.Remove {
		delete(rec, field)
	}
	for field, value := range spec.ArrayAdd {
		arr, _ := rec[field].([]interface{})
		exists := false
		for _, v := range arr {
			if v == value {
				exists = true
				break
			}
		}
		if !exists {
			rec[field] = append(arr, value)
		}
	}
	for field, value := range spec.ArrayRemove {
		arr, _ := rec[field].([]interface{})
		var kept []interface{}
		for _, v := range arr {
			if v != value {
				kept = append(kept, v)
			}
		}
		rec[field] = kept
	}
}

func (s *LocalStore) DeleteRecords(ctx context.Context, space string, cond Condition) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	matched, err := s.matchRecords(ctx, space, &cond)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, rec := range matched {
		res, err := s.db.ExecContext(ctx,
			`DELETE FROM records WHERE space = ? AND id = ?`, space, rec.ID())
		if err != nil {
			return count, wikierr.Wrap(wikierr.KindIO, err, "delete record %s", rec.ID())
		}
		if n, _ := res.RowsAffected(); n > 0 {
			count++
		}
	}
	return count, nil
}

func (s *LocalStore) GetRecord(ctx context.Context, spaces []string, id string) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, space := range spaces {
		var doc string
		err := s.db.QueryRowContext(ctx,
			`SELECT doc FROM records WHERE space = ? AND id = ?`, space, id).Scan(&doc)
		if err == sql.ErrNoRows {
			continue
		}
		if err != nil {
			return nil, wikierr.Wrap(wikierr.KindIO, err, "get record %s", id)
		}
		var rec Record
		if err := json.Unmarshal([]byte(doc), &rec); err != nil {
			return nil, wikierr.Wrap(wikierr.KindIO, err, "decode record %s", id)
		}
		return rec, nil
	}
	return nil, nil
}

// matchRecords loads the records of one space satisfying cond. Caller
// holds the lock.
func (s *LocalStore) matchRecords(ctx context.Context, space string, cond *Condition) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT doc FROM records WHERE space = ?`, space)
	if err != nil {
		return nil, wikierr.Wrap(wikierr.KindIO, err, "scan space %s", space)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, wikierr.Wrap(wikierr.KindIO, err, "scan record")
		}
		var rec Record
		if err := json.Unmarshal([]byte(doc), &rec); err != nil {
			continue
		}
		if conditionMatches(rec, cond) {
			out = append(out, rec)
		}
	}
	return out, rows.Err()
}

func conditionMatches(rec Record, cond *Condition) bool {
	if cond == nil {
		return true
	}
	if cond.ID != "" && rec.ID() != cond.ID {
		return false
	}
	for field, value := range cond.Terms {
		switch vs := value.(type) {
		case []interface{}:
			found := false
			for _, v := range vs {
				if rec[field] == v {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		case []string:
			found := false
			for _, v := range vs {
				if rec[field] == v {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		default:
			if rec[field] != value {
				return false
			}
		}
	}
	for _, field := range cond.Exists {
		if _, ok := rec[field]; !ok {
			return false
		}
	}
	for _, field := range cond.MustNotExists {
		if _, ok := rec[field]; ok {
			return false
		}
	}
	return true
}

type scoredRecord struct {
	rec   Record
	score float64
}

// Search scores records in process: term-overlap for text clauses, cosine
// similarity for dense clauses, weighted-sum fusion when both are present.
func (s *LocalStore) Search(ctx context.Context, spaces []string, req SearchRequest) (*Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	text, dense, fusion, _, err := splitExprs(req.MatchExprs)
	if err != nil {
		return nil, err
	}
	textWeight, denseWeight := 1.0, 1.0
	if fusion != nil && fusion.Method == "weighted_sum" && text != nil && dense != nil {
		textWeight, denseWeight = fusion.Weights()
	}

	var scored []scoredRecord
	for _, space := range spaces {
		records, err := s.matchRecords(ctx, space, req.Condition)
		if err != nil {
			return nil, err
		}
		for _, rec := range records {
			score := 0.0
			matchedAny := text == nil && dense == nil
			if text != nil {
				if ts := textScore(rec, text); ts > 0 {
					score += textWeight * ts
					matchedAny = true
				}
			}
			if dense != nil {
				if ds := denseScore(rec, dense); ds > 0 {
					score += denseWeight * ds
					matchedAny = true
				}
			}
			if matchedAny {
				scored = append(scored, scoredRecord{rec: rec, score: score})
			}
		}
	}

	sort.SliceStable(scored, func(i, j int) bool { return scored[i].score > scored[j].score })
	if req.Offset > 0 && req.Offset < len(scored) {
		scored = scored[req.Offset:]
	} else if req.Offset >= len(scored) {
		scored = nil
	}
	if req.Limit > 0 && len(scored) > req.Limit {
		scored = scored[:req.Limit]
	}

	hits := make([]interface{}, 0, len(scored))
	for _, sr := range scored {
		hits = append(hits, map[string]interface{}{
			"_id":     sr.rec.ID(),
			"_score":  sr.score,
			"_source": map[string]interface{}(sr.rec),
		})
	}
	raw := map[string]interface{}{
		"hits": map[string]interface{}{
			"total": map[string]interface{}{"value": float64(len(hits))},
			"hits":  hits,
		},
	}
	return NewResult(raw), nil
}

func textScore(rec Record, expr *MatchTextExpr) float64 {
	terms := strings.Fields(strings.ToLower(expr.Text))
	if len(terms) == 0 {
		return 0
	}
	matched := 0
	for _, field := range expr.Fields {
		value, _ := rec[field].(string)
		if value == "" {
			continue
		}
		lower := strings.ToLower(value)
		for _, term := range terms {
			if strings.Contains(lower, term) {
				matched++
			}
		}
	}
	return float64(matched) / float64(len(terms)*maxInt(len(expr.Fields), 1))
}

func denseScore(rec Record, expr *MatchDenseExpr) float64 {
	raw, ok := rec[expr.Column].([]interface{})
	if !ok {
		return 0
	}
	stored := make([]float32, 0, len(raw))
	for _, v := range raw {
		f, ok := v.(float64)
		if !ok {
			return 0
		}
		stored = append(stored, float32(f))
	}
	sim, err := embedding.CosineSimilarity(expr.Vector, stored)
	if err != nil || sim < 0 {
		return 0
	}
	return sim
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func (s *LocalStore) Close() error { return s.db.Close() }
