// Package vector unifies Elasticsearch, OpenSearch, and a local SQLite
// backend behind one interface for semantic search over generated wiki
// content and ingested source files.
package vector

import (
	"context"
	"strconv"
	"strings"
)

// Record is one indexed document. The "id" field is required.
type Record map[string]interface{}

// ID returns the record's string id, or "".
func (r Record) ID() string {
	id, _ := r["id"].(string)
	return id
}

// Condition selects records for update, delete, and filtered search.
type Condition struct {
	// ID selects exactly one record.
	ID string
	// Terms adds term (scalar) or terms (slice) clauses per field.
	Terms map[string]interface{}
	// Exists requires the named fields to be present.
	Exists []string
	// MustNotExists requires the named fields to be absent.
	MustNotExists []string
}

// MatchExpr is one search clause. Implementations: MatchTextExpr,
// MatchDenseExpr, MatchSparseExpr, MatchTensorExpr, FusionExpr.
type MatchExpr interface {
	matchExpr()
}

// MatchTextExpr is a multi-field full-text clause.
type MatchTextExpr struct {
	Fields []string
	Text   string
	TopN   int
	// Extra recognizes "minimum_should_match".
	Extra map[string]string
}

func (MatchTextExpr) matchExpr() {}

// MatchDenseExpr is a KNN clause over a dense vector column.
type MatchDenseExpr struct {
	Column       string
	Vector       []float32
	DistanceType string
	TopN         int
	// Extra recognizes "similarity".
	Extra map[string]string
}

func (MatchDenseExpr) matchExpr() {}

// MatchSparseExpr is reserved; the raw clause passes through to backends
// that support it.
type MatchSparseExpr struct {
	Raw map[string]interface{}
}

func (MatchSparseExpr) matchExpr() {}

// MatchTensorExpr is reserved; the raw clause passes through to backends
// that support it.
type MatchTensorExpr struct {
	Raw map[string]interface{}
}

func (MatchTensorExpr) matchExpr() {}

// FusionExpr combines a text and a dense clause with weighted scores.
// Params recognizes "weights" as "text,dense" (e.g. "0.3,0.7"); the text
// clause's boost becomes 1 - dense weight.
type FusionExpr struct {
	Method string
	TopN   int
	Params map[string]string
}

func (FusionExpr) matchExpr() {}

// Weights parses the fusion weights, defaulting to 0.5/0.5.
func (f FusionExpr) Weights() (text, dense float64) {
	text, dense = 0.5, 0.5
	raw, ok := f.Params["weights"]
	if !ok {
		return
	}
	parts := strings.Split(raw, ",")
	if len(parts) != 2 {
		return
	}
	t, err1 := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	d, err2 := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err1 != nil || err2 != nil {
		return
	}
	return t, d
}

// SortField orders search results.
type SortField struct {
	Field string
	// Order is "asc" or "desc".
	Order string
	// Mode is one of min, max, avg, sum, median; empty omits it.
	Mode         string
	UnmappedType string
	NumericType  string
}

// SearchRequest is the backend-independent query shape.
type SearchRequest struct {
	SelectFields    []string
	HighlightFields []string
	Condition       *Condition
	MatchExprs      []MatchExpr
	OrderBy         []SortField
	Offset          int
	Limit           int
	AggFields       []string
	RankFeature     map[string]float64
}

// UpdateSpec mutates matched records. Scalar fields are set; fields listed
// in Remove are deleted. ArrayAdd/ArrayRemove operate on array-valued
// fields.
type UpdateSpec struct {
	Set         map[string]interface{}
	Remove      []string
	ArrayAdd    map[string]interface{}
	ArrayRemove map[string]interface{}
	// Script is a backend-native scripted update; it wins over the other
	// fields when set.
	Script string
}

// Store is the uniform vector store contract.
type Store interface {
	CreateSpace(ctx context.Context, name string, vectorSize int) error
	DeleteSpace(ctx context.Context, name string) error
	SpaceExists(ctx context.Context, name string) (bool, error)
	InsertRecords(ctx context.Context, space string, records []Record) error
	UpdateRecords(ctx context.Context, space string, cond Condition, spec UpdateSpec) (int, error)
	DeleteRecords(ctx context.Context, space string, cond Condition) (int, error)
	GetRecord(ctx context.Context, spaces []string, id string) (Record, error)
	Search(ctx context.Context, spaces []string, req SearchRequest) (*Result, error)
	Close() error
}
