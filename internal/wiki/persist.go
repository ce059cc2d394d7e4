package wiki

import (
	"database/sql"
	"errors"

	"codewiki/internal/logging"
	"codewiki/internal/wikierr"
)

// Stage writes. Every writer here replaces its own slice of the document
// inside one transaction, so a re-run of any pipeline stage converges on
// the same state instead of accumulating duplicates.

func (s *Store) withTx(op string, f func(tx *sql.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return wikierr.Wrap(wikierr.KindIO, err, "begin %s", op)
	}
	if err := f(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return wikierr.Wrap(wikierr.KindIO, err, "commit %s", op)
	}
	return nil
}

// ReplaceOverview swaps the document overview for a fresh one.
func (s *Store) ReplaceOverview(documentID, title, content string) error {
	return s.withTx("replace overview", func(tx *sql.Tx) error {
		if _, err := tx.Exec(`DELETE FROM overviews WHERE document_id = ?`, documentID); err != nil {
			return wikierr.Wrap(wikierr.KindIO, err, "delete overview")
		}
		_, err := tx.Exec(`INSERT INTO overviews (id, document_id, title, content) VALUES (?, ?, ?, ?)`,
			newID(), documentID, title, content)
		if err != nil {
			return wikierr.Wrap(wikierr.KindIO, err, "insert overview")
		}
		return nil
	})
}

// GetOverview loads the document overview, if any.
func (s *Store) GetOverview(documentID string) (*Overview, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var ov Overview
	err := s.db.QueryRow(`SELECT id, document_id, title, content FROM overviews WHERE document_id = ?`,
		documentID).Scan(&ov.ID, &ov.DocumentID, &ov.Title, &ov.Content)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, wikierr.New(wikierr.KindNotFound, "overview not found")
	}
	if err != nil {
		return nil, wikierr.Wrap(wikierr.KindIO, err, "scan overview")
	}
	return &ov, nil
}

// ReplaceCatalogTree replaces the whole catalog forest of a document.
// Nodes are flattened depth-first; sort_order preserves traversal order so
// readers reconstruct the exact tree the model produced. Replacing the
// catalogs cascades away any contents attached to the old tree.
func (s *Store) ReplaceCatalogTree(documentID string, roots []*CatalogNode) ([]*Catalog, error) {
	var flat []*Catalog
	err := s.withTx("replace catalog tree", func(tx *sql.Tx) error {
		if _, err := tx.Exec(`DELETE FROM catalogs WHERE document_id = ?`, documentID); err != nil {
			return wikierr.Wrap(wikierr.KindIO, err, "delete catalogs")
		}
		order := 0
		var insert func(nodes []*CatalogNode, parentID string) error
		insert = func(nodes []*CatalogNode, parentID string) error {
			for _, node := range nodes {
				cat := &Catalog{
					ID:          newID(),
					DocumentID:  documentID,
					Name:        node.Name,
					URL:         node.URL,
					Description: node.Description,
					ParentID:    parentID,
					Order:       order,
					Prompt:      node.Prompt,
				}
				order++
				var parent interface{}
				if parentID != "" {
					parent = parentID
				}
				_, err := tx.Exec(`INSERT INTO catalogs
					(id, document_id, name, url, description, parent_id, sort_order, is_completed, prompt, is_deleted)
					VALUES (?, ?, ?, ?, ?, ?, ?, 0, ?, 0)`,
					cat.ID, cat.DocumentID, cat.Name, cat.URL, cat.Description, parent, cat.Order, cat.Prompt)
				if err != nil {
					return wikierr.Wrap(wikierr.KindIO, err, "insert catalog %s", node.Name)
				}
				flat = append(flat, cat)
				if err := insert(node.Children, cat.ID); err != nil {
					return err
				}
			}
			return nil
		}
		return insert(roots, "")
	})
	if err != nil {
		return nil, err
	}
	logging.Store("replaced catalog tree for document %s: %d nodes", documentID, len(flat))
	return flat, nil
}

// ListCatalogs returns all live catalogs of a document in traversal order.
func (s *Store) ListCatalogs(documentID string) ([]*Catalog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`SELECT id, document_id, name, url, description,
		COALESCE(parent_id, ''), sort_order, is_completed, prompt, is_deleted
		FROM catalogs WHERE document_id = ? AND is_deleted = 0 ORDER BY sort_order`, documentID)
	if err != nil {
		return nil, wikierr.Wrap(wikierr.KindIO, err, "list catalogs")
	}
	defer rows.Close()

	var out []*Catalog
	for rows.Next() {
		var c Catalog
		if err := rows.Scan(&c.ID, &c.DocumentID, &c.Name, &c.URL, &c.Description,
			&c.ParentID, &c.Order, &c.IsCompleted, &c.Prompt, &c.IsDeleted); err != nil {
			return nil, wikierr.Wrap(wikierr.KindIO, err, "scan catalog")
		}
		out = append(out, &c)
	}
	return out, rows.Err()
}

// LeafCatalogs returns the catalogs with no children, which are the ones
// the content stage writes articles for.
func LeafCatalogs(all []*Catalog) []*Catalog {
	hasChild := make(map[string]bool, len(all))
	for _, c := range all {
		if c.ParentID != "" {
			hasChild[c.ParentID] = true
		}
	}
	var leaves []*Catalog
	for _, c := range all {
		if !hasChild[c.ID] {
			leaves = append(leaves, c)
		}
	}
	return leaves
}

// UpsertContent writes the article of one catalog, replacing any previous
// article and its sources. Size is the byte length of the body. The owning
// catalog is marked completed in the same transaction.
func (s *Store) UpsertContent(catalogID string, content *Content, sources []ContentSource) error {
	return s.withTx("upsert content", func(tx *sql.Tx) error {
		if _, err := tx.Exec(`DELETE FROM contents WHERE catalog_id = ?`, catalogID); err != nil {
			return wikierr.Wrap(wikierr.KindIO, err, "delete previous content")
		}
		content.ID = newID()
		content.CatalogID = catalogID
		content.Size = len(content.Body)
		if content.SourcesJSON == "" {
			content.SourcesJSON = "[]"
		}
		_, err := tx.Exec(`INSERT INTO contents
			(id, catalog_id, title, description, body, size, sources_json, extend1, extend2)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			content.ID, content.CatalogID, content.Title, content.Description, content.Body,
			content.Size, content.SourcesJSON, content.Extend1, content.Extend2)
		if err != nil {
			return wikierr.Wrap(wikierr.KindIO, err, "insert content")
		}
		for _, src := range sources {
			_, err := tx.Exec(`INSERT INTO content_sources (id, content_id, source_path, display_name)
				VALUES (?, ?, ?, ?)`, newID(), content.ID, src.SourcePath, src.DisplayName)
			if err != nil {
				return wikierr.Wrap(wikierr.KindIO, err, "insert content source")
			}
		}
		if _, err := tx.Exec(`UPDATE catalogs SET is_completed = 1 WHERE id = ?`, catalogID); err != nil {
			return wikierr.Wrap(wikierr.KindIO, err, "mark catalog completed")
		}
		return nil
	})
}

// GetContent loads the article of one catalog.
func (s *Store) GetContent(catalogID string) (*Content, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return scanContent(s.db.QueryRow(contentSelect+` WHERE catalog_id = ?`, catalogID))
}

// ListContents returns every article of a document in catalog order.
func (s *Store) ListContents(documentID string) ([]*Content, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(contentSelect+` WHERE catalog_id IN
		(SELECT id FROM catalogs WHERE document_id = ?)
		ORDER BY (SELECT sort_order FROM catalogs WHERE catalogs.id = contents.catalog_id)`, documentID)
	if err != nil {
		return nil, wikierr.Wrap(wikierr.KindIO, err, "list contents")
	}
	defer rows.Close()

	var out []*Content
	for rows.Next() {
		c, err := scanContent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

const contentSelect = `SELECT id, catalog_id, title, description, body, size, sources_json, extend1, extend2
	FROM contents`

func scanContent(row rowScanner) (*Content, error) {
	var c Content
	err := row.Scan(&c.ID, &c.CatalogID, &c.Title, &c.Description, &c.Body, &c.Size,
		&c.SourcesJSON, &c.Extend1, &c.Extend2)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, wikierr.New(wikierr.KindNotFound, "content not found")
	}
	if err != nil {
		return nil, wikierr.Wrap(wikierr.KindIO, err, "scan content")
	}
	return &c, nil
}

// ListContentSources returns the source files one article was grounded on.
func (s *Store) ListContentSources(contentID string) ([]*ContentSource, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`SELECT id, content_id, source_path, display_name
		FROM content_sources WHERE content_id = ?`, contentID)
	if err != nil {
		return nil, wikierr.Wrap(wikierr.KindIO, err, "list content sources")
	}
	defer rows.Close()

	var out []*ContentSource
	for rows.Next() {
		var src ContentSource
		if err := rows.Scan(&src.ID, &src.ContentID, &src.SourcePath, &src.DisplayName); err != nil {
			return nil, wikierr.Wrap(wikierr.KindIO, err, "scan content source")
		}
		out = append(out, &src)
	}
	return out, rows.Err()
}

// FindContentsBySourcePath returns the contents grounded on one source
// file. The watcher uses this to find articles invalidated by an edit.
func (s *Store) FindContentsBySourcePath(sourcePath string) ([]*Content, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(contentSelect+` WHERE id IN
		(SELECT content_id FROM content_sources WHERE source_path = ?)`, sourcePath)
	if err != nil {
		return nil, wikierr.Wrap(wikierr.KindIO, err, "find contents by source")
	}
	defer rows.Close()

	var out []*Content
	for rows.Next() {
		c, err := scanContent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// ResetCatalogCompletion flags catalogs touched by a source change so the
// next generation run rebuilds only their articles.
func (s *Store) ResetCatalogCompletion(catalogIDs []string) error {
	return s.withTx("reset catalog completion", func(tx *sql.Tx) error {
		for _, id := range catalogIDs {
			if _, err := tx.Exec(`UPDATE catalogs SET is_completed = 0 WHERE id = ?`, id); err != nil {
				return wikierr.Wrap(wikierr.KindIO, err, "reset catalog %s", id)
			}
		}
		return nil
	})
}

// ReplaceMiniMap swaps the serialized mind-map of a document.
func (s *Store) ReplaceMiniMap(documentID, valueJSON string) error {
	return s.withTx("replace mini map", func(tx *sql.Tx) error {
		if _, err := tx.Exec(`DELETE FROM mini_maps WHERE document_id = ?`, documentID); err != nil {
			return wikierr.Wrap(wikierr.KindIO, err, "delete mini map")
		}
		_, err := tx.Exec(`INSERT INTO mini_maps (id, document_id, value) VALUES (?, ?, ?)`,
			newID(), documentID, valueJSON)
		if err != nil {
			return wikierr.Wrap(wikierr.KindIO, err, "insert mini map")
		}
		return nil
	})
}

// GetMiniMap loads the serialized mind-map, if any.
func (s *Store) GetMiniMap(documentID string) (*MiniMap, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var m MiniMap
	err := s.db.QueryRow(`SELECT id, document_id, value FROM mini_maps WHERE document_id = ?`,
		documentID).Scan(&m.ID, &m.DocumentID, &m.Value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, wikierr.New(wikierr.KindNotFound, "mini map not found")
	}
	if err != nil {
		return nil, wikierr.Wrap(wikierr.KindIO, err, "scan mini map")
	}
	return &m, nil
}

// ReplaceCommitRecords swaps the change-log entries of a document.
func (s *Store) ReplaceCommitRecords(documentID string, records []*CommitRecord) error {
	return s.withTx("replace commit records", func(tx *sql.Tx) error {
		if _, err := tx.Exec(`DELETE FROM commit_records WHERE document_id = ?`, documentID); err != nil {
			return wikierr.Wrap(wikierr.KindIO, err, "delete commit records")
		}
		for _, rec := range records {
			_, err := tx.Exec(`INSERT INTO commit_records (id, document_id, commit_date, title, description)
				VALUES (?, ?, ?, ?, ?)`, newID(), documentID, rec.CommitDate, rec.Title, rec.Description)
			if err != nil {
				return wikierr.Wrap(wikierr.KindIO, err, "insert commit record")
			}
		}
		return nil
	})
}

// ListCommitRecords returns the change log newest-first.
func (s *Store) ListCommitRecords(documentID string) ([]*CommitRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`SELECT id, document_id, commit_date, title, description
		FROM commit_records WHERE document_id = ? ORDER BY commit_date DESC`, documentID)
	if err != nil {
		return nil, wikierr.Wrap(wikierr.KindIO, err, "list commit records")
	}
	defer rows.Close()

	var out []*CommitRecord
	for rows.Next() {
		var rec CommitRecord
		var commitDate sql.NullTime
		if err := rows.Scan(&rec.ID, &rec.DocumentID, &commitDate, &rec.Title, &rec.Description); err != nil {
			return nil, wikierr.Wrap(wikierr.KindIO, err, "scan commit record")
		}
		if commitDate.Valid {
			rec.CommitDate = commitDate.Time
		}
		out = append(out, &rec)
	}
	return out, rows.Err()
}
