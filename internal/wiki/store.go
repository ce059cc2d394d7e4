package wiki

import (
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"codewiki/internal/logging"
	"codewiki/internal/wikierr"
)

// Store wraps the SQLite database holding all wiki entities.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

const schema = `
CREATE TABLE IF NOT EXISTS repositories (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	provider TEXT NOT NULL,
	remote_url TEXT NOT NULL DEFAULT '',
	organization TEXT NOT NULL,
	name TEXT NOT NULL,
	branch TEXT NOT NULL DEFAULT '',
	local_path TEXT NOT NULL,
	is_cloned INTEGER NOT NULL DEFAULT 0,
	last_sync_time TIMESTAMP,
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL,
	UNIQUE(user_id, provider, organization, name)
);

CREATE TABLE IF NOT EXISTS wiki_documents (
	id TEXT PRIMARY KEY,
	repo_id TEXT NOT NULL UNIQUE REFERENCES repositories(id) ON DELETE CASCADE,
	classify TEXT NOT NULL DEFAULT '',
	readme TEXT NOT NULL DEFAULT '',
	optimized_directory TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL DEFAULT 'Pending',
	progress INTEGER NOT NULL DEFAULT 0,
	processing_message TEXT NOT NULL DEFAULT '',
	is_embedded INTEGER NOT NULL DEFAULT 0,
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS overviews (
	id TEXT PRIMARY KEY,
	document_id TEXT NOT NULL REFERENCES wiki_documents(id) ON DELETE CASCADE,
	title TEXT NOT NULL DEFAULT '',
	content TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS catalogs (
	id TEXT PRIMARY KEY,
	document_id TEXT NOT NULL REFERENCES wiki_documents(id) ON DELETE CASCADE,
	name TEXT NOT NULL,
	url TEXT NOT NULL DEFAULT '',
	description TEXT NOT NULL DEFAULT '',
	parent_id TEXT REFERENCES catalogs(id) ON DELETE CASCADE,
	sort_order INTEGER NOT NULL DEFAULT 0,
	is_completed INTEGER NOT NULL DEFAULT 0,
	prompt TEXT NOT NULL DEFAULT '',
	is_deleted INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_catalogs_document ON catalogs(document_id);

CREATE TABLE IF NOT EXISTS contents (
	id TEXT PRIMARY KEY,
	catalog_id TEXT NOT NULL UNIQUE REFERENCES catalogs(id) ON DELETE CASCADE,
	title TEXT NOT NULL DEFAULT '',
	description TEXT NOT NULL DEFAULT '',
	body TEXT NOT NULL DEFAULT '',
	size INTEGER NOT NULL DEFAULT 0,
	sources_json TEXT NOT NULL DEFAULT '[]',
	extend1 TEXT NOT NULL DEFAULT '',
	extend2 TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS content_sources (
	id TEXT PRIMARY KEY,
	content_id TEXT NOT NULL REFERENCES contents(id) ON DELETE CASCADE,
	source_path TEXT NOT NULL,
	display_name TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_content_sources_path ON content_sources(source_path);

CREATE TABLE IF NOT EXISTS mini_maps (
	id TEXT PRIMARY KEY,
	document_id TEXT NOT NULL UNIQUE REFERENCES wiki_documents(id) ON DELETE CASCADE,
	value TEXT NOT NULL DEFAULT '{}'
);

CREATE TABLE IF NOT EXISTS commit_records (
	id TEXT PRIMARY KEY,
	document_id TEXT NOT NULL REFERENCES wiki_documents(id) ON DELETE CASCADE,
	commit_date TIMESTAMP,
	title TEXT NOT NULL DEFAULT '',
	description TEXT NOT NULL DEFAULT ''
);
`

// Open initializes the SQLite database at path.
func Open(path string) (*Store, error) {
	timer := logging.StartTimer(logging.CategoryStore, "Open")
	defer timer.Stop()

	logging.Store("opening wiki store at %s", path)

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, wikierr.Wrap(wikierr.KindIO, err, "create database directory")
	}

	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on")
	if err != nil {
		return nil, wikierr.Wrap(wikierr.KindIO, err, "open database")
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		logging.StoreDebug("failed to set sqlite busy_timeout: %v", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		logging.StoreDebug("failed to set sqlite journal_mode=WAL: %v", err)
	}
	if _, err := db.Exec("PRAGMA synchronous = NORMAL"); err != nil {
		logging.StoreDebug("failed to set sqlite synchronous=NORMAL: %v", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, wikierr.Wrap(wikierr.KindIO, err, "initialize schema")
	}
	return &Store{db: db}, nil
}

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }

// CreateRepository registers a repository. Duplicate
// (user, provider, organization, name) combinations conflict.
func (s *Store) CreateRepository(repo *Repository) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if repo.ID == "" {
		repo.ID = newID()
	}
	now := time.Now().UTC()
	repo.CreatedAt = now
	repo.UpdatedAt = now

	_, err := s.db.Exec(`INSERT INTO repositories
		(id, user_id, provider, remote_url, organization, name, branch, local_path, is_cloned, last_sync_time, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		repo.ID, repo.UserID, repo.Provider, repo.RemoteURL, repo.Organization, repo.Name,
		repo.Branch, repo.LocalPath, repo.IsCloned, repo.LastSyncTime, repo.CreatedAt, repo.UpdatedAt)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return wikierr.New(wikierr.KindConflict,
				"repository %s/%s already registered for this user", repo.Organization, repo.Name)
		}
		return wikierr.Wrap(wikierr.KindIO, err, "create repository")
	}
	logging.Store("registered repository %s/%s (%s)", repo.Organization, repo.Name, repo.ID)
	return nil
}

// GetRepository loads one repository by id.
func (s *Store) GetRepository(id string) (*Repository, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return scanRepository(s.db.QueryRow(`SELECT id, user_id, provider, remote_url, organization, name,
		branch, local_path, is_cloned, last_sync_time, created_at, updated_at
		FROM repositories WHERE id = ?`, id))
}

// FindRepository loads a repository by its unique registration key.
func (s *Store) FindRepository(userID, provider, organization, name string) (*Repository, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return scanRepository(s.db.QueryRow(`SELECT id, user_id, provider, remote_url, organization, name,
		branch, local_path, is_cloned, last_sync_time, created_at, updated_at
		FROM repositories WHERE user_id = ? AND provider = ? AND organization = ? AND name = ?`,
		userID, provider, organization, name))
}

// ListRepositories returns every registered repository.
func (s *Store) ListRepositories() ([]*Repository, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`SELECT id, user_id, provider, remote_url, organization, name,
		branch, local_path, is_cloned, last_sync_time, created_at, updated_at
		FROM repositories ORDER BY created_at`)
	if err != nil {
		return nil, wikierr.Wrap(wikierr.KindIO, err, "list repositories")
	}
	defer rows.Close()

	var out []*Repository
	for rows.Next() {
		repo, err := scanRepository(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, repo)
	}
	return out, rows.Err()
}

// UpdateRepositorySync marks a repository as materialized.
func (s *Store) UpdateRepositorySync(id string, cloned bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(`UPDATE repositories SET is_cloned = ?, last_sync_time = ?, updated_at = ? WHERE id = ?`,
		cloned, time.Now().UTC(), time.Now().UTC(), id)
	if err != nil {
		return wikierr.Wrap(wikierr.KindIO, err, "update repository sync")
	}
	return nil
}

// DeleteRepository removes a repository; the cascade deletes its document
// and everything the document owns.
func (s *Store) DeleteRepository(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.db.Exec(`DELETE FROM repositories WHERE id = ?`, id)
	if err != nil {
		return wikierr.Wrap(wikierr.KindIO, err, "delete repository")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return wikierr.New(wikierr.KindNotFound, "repository %s not found", id)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRepository(row rowScanner) (*Repository, error) {
	var repo Repository
	var lastSync sql.NullTime
	err := row.Scan(&repo.ID, &repo.UserID, &repo.Provider, &repo.RemoteURL, &repo.Organization,
		&repo.Name, &repo.Branch, &repo.LocalPath, &repo.IsCloned, &lastSync, &repo.CreatedAt, &repo.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, wikierr.New(wikierr.KindNotFound, "repository not found")
	}
	if err != nil {
		return nil, wikierr.Wrap(wikierr.KindIO, err, "scan repository")
	}
	if lastSync.Valid {
		repo.LastSyncTime = lastSync.Time
	}
	return &repo, nil
}

// CreateDocument creates the WikiDocument for a repository. One per repo.
func (s *Store) CreateDocument(repoID string) (*WikiDocument, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc := &WikiDocument{
		ID:        newID(),
		RepoID:    repoID,
		Status:    StatusPending,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	_, err := s.db.Exec(`INSERT INTO wiki_documents (id, repo_id, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)`, doc.ID, doc.RepoID, doc.Status, doc.CreatedAt, doc.UpdatedAt)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return nil, wikierr.New(wikierr.KindConflict, "repository already has a wiki document")
		}
		return nil, wikierr.Wrap(wikierr.KindIO, err, "create document")
	}
	return doc, nil
}

// GetDocument loads one document by id.
func (s *Store) GetDocument(id string) (*WikiDocument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return scanDocument(s.db.QueryRow(documentSelect+` WHERE id = ?`, id))
}

// GetDocumentByRepo loads the document of one repository.
func (s *Store) GetDocumentByRepo(repoID string) (*WikiDocument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return scanDocument(s.db.QueryRow(documentSelect+` WHERE repo_id = ?`, repoID))
}

const documentSelect = `SELECT id, repo_id, classify, readme, optimized_directory, status,
	progress, processing_message, is_embedded, created_at, updated_at FROM wiki_documents`

func scanDocument(row rowScanner) (*WikiDocument, error) {
	var doc WikiDocument
	err := row.Scan(&doc.ID, &doc.RepoID, &doc.Classify, &doc.Readme, &doc.OptimizedDirectory,
		&doc.Status, &doc.Progress, &doc.ProcessingMessage, &doc.IsEmbedded, &doc.CreatedAt, &doc.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, wikierr.New(wikierr.KindNotFound, "wiki document not found")
	}
	if err != nil {
		return nil, wikierr.Wrap(wikierr.KindIO, err, "scan document")
	}
	return &doc, nil
}

// UpdateDocumentStatus is the single status/progress/message update
// operation the orchestrator reports through.
func (s *Store) UpdateDocumentStatus(id string, status Status, progress int, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(`UPDATE wiki_documents SET status = ?, progress = ?, processing_message = ?, updated_at = ?
		WHERE id = ?`, status, progress, message, time.Now().UTC(), id)
	if err != nil {
		return wikierr.Wrap(wikierr.KindIO, err, "update document status")
	}
	logging.StoreDebug("document %s -> %s progress=%d msg=%q", id, status, progress, message)
	return nil
}

// SetDocumentReadme stores the stage-1 output.
func (s *Store) SetDocumentReadme(id, readme string) error {
	return s.setDocumentField(id, "readme", readme)
}

// SetDocumentDirectory stores the stage-2 output.
func (s *Store) SetDocumentDirectory(id, directory string) error {
	return s.setDocumentField(id, "optimized_directory", directory)
}

// SetDocumentClassify stores the stage-3 output.
func (s *Store) SetDocumentClassify(id, classify string) error {
	return s.setDocumentField(id, "classify", classify)
}

func (s *Store) setDocumentField(id, column, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(`UPDATE wiki_documents SET `+column+` = ?, updated_at = ? WHERE id = ?`,
		value, time.Now().UTC(), id)
	if err != nil {
		return wikierr.Wrap(wikierr.KindIO, err, "update document %s", column)
	}
	return nil
}

// SetDocumentEmbedded flips the embedding flag after vector indexing.
func (s *Store) SetDocumentEmbedded(id string, embedded bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(`UPDATE wiki_documents SET is_embedded = ?, updated_at = ? WHERE id = ?`,
		embedded, time.Now().UTC(), id)
	if err != nil {
		return wikierr.Wrap(wikierr.KindIO, err, "update document embedded flag")
	}
	return nil
}
