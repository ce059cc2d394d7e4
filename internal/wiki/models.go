// Package wiki holds the generated-wiki data model and its SQLite
// persistence. A Repository owns one WikiDocument; the document owns the
// overview, catalog tree, mind-map, and change log the pipeline produces.
package wiki

import (
	"time"

	"github.com/google/uuid"
)

// Status is the processing state of one WikiDocument.
type Status string

const (
	StatusPending    Status = "Pending"
	StatusProcessing Status = "Processing"
	StatusCompleted  Status = "Completed"
	StatusCanceled   Status = "Canceled"
	StatusFailed     Status = "Failed"
)

// Repository is one source tree on disk. Immutable after creation except
// IsCloned and LastSyncTime.
type Repository struct {
	ID           string
	UserID       string
	Provider     string
	RemoteURL    string
	Organization string
	Name         string
	Branch       string
	LocalPath    string
	IsCloned     bool
	LastSyncTime time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// WikiDocument aggregates everything the pipeline produces for one
// repository.
type WikiDocument struct {
	ID                 string
	RepoID             string
	Classify           string
	Readme             string
	OptimizedDirectory string
	Status             Status
	Progress           int
	ProcessingMessage  string
	IsEmbedded         bool
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Overview is the stage-5 project overview. Zero or one per document.
type Overview struct {
	ID         string
	DocumentID string
	Title      string
	Content    string
}

// Catalog is one node of the generated topic tree. ParentID empty means a
// root node.
type Catalog struct {
	ID          string
	DocumentID  string
	Name        string
	URL         string
	Description string
	ParentID    string
	Order       int
	IsCompleted bool
	Prompt      string
	IsDeleted   bool
}

// CatalogNode is the tree shape used when writing a whole catalog forest.
type CatalogNode struct {
	Name        string
	URL         string
	Description string
	Prompt      string
	Children    []*CatalogNode
}

// Content is the rendered article of one leaf catalog.
type Content struct {
	ID          string
	CatalogID   string
	Title       string
	Description string
	Body        string
	Size        int
	SourcesJSON string
	Extend1     string
	Extend2     string
}

// ContentSource names one source file that grounded an article.
type ContentSource struct {
	ID          string
	ContentID   string
	SourcePath  string
	DisplayName string
}

// MiniMap is the serialized mind-map. Zero or one per document.
type MiniMap struct {
	ID         string
	DocumentID string
	Value      string // JSON-encoded recursive node structure
}

// CommitRecord is one change-log entry summarized from commit history.
type CommitRecord struct {
	ID          string
	DocumentID  string
	CommitDate  time.Time
	Title       string
	Description string
}

func newID() string { return uuid.NewString() }
