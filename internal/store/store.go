// Package store is the document store port. Documents are JSON objects grouped
// into collections and addressed by id; drivers are PostgreSQL (jsonb) and memory.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Collections used by the application.
const (
	CollectionGroups  = "groups"
	CollectionQuotes  = "quotes"
	CollectionUsers   = "users"
	CollectionQuizzes = "quizzes"
)

// Document is a stored record. Data is a JSON object.
type Document struct {
	Collection string
	ID         string
	Data       json.RawMessage
	CreateTime time.Time
	UpdateTime time.Time
}

// Decode unmarshals the document data into v.
func (d *Document) Decode(v any) error {
	if err := json.Unmarshal(d.Data, v); err != nil {
		return fmt.Errorf("decode %s/%s: %w", d.Collection, d.ID, err)
	}
	return nil
}

type Op int

const (
	// OpEqual matches documents whose field equals the value.
	OpEqual Op = iota + 1
	// OpContains matches array fields holding the value, or string fields containing it as a substring.
	OpContains
)

// Filter is a predicate on a top-level field of the document data.
type Filter struct {
	Field string
	Op    Op
	Value any
}

func Equal(field string, value any) Filter {
	return Filter{Field: field, Op: OpEqual, Value: value}
}

func Contains(field string, value string) Filter {
	return Filter{Field: field, Op: OpContains, Value: value}
}

// Store is the document store.
//
// List returns documents ordered by creation time, then id. Update merges the
// given top-level fields into the document. AppendToArray and RemoveFromArray
// are atomic on the stored document; AppendToArray treats the array as a set
// and leaves it untouched when the value is already present.
type Store interface {
	Get(ctx context.Context, collection, id string) (*Document, error)
	List(ctx context.Context, collection string, filters ...Filter) ([]Document, error)
	Create(ctx context.Context, collection, id string, data any) (*Document, error)
	Update(ctx context.Context, collection, id string, fields map[string]any) (*Document, error)
	Delete(ctx context.Context, collection, id string) error
	AppendToArray(ctx context.Context, collection, id, field, value string) error
	RemoveFromArray(ctx context.Context, collection, id, field, value string) error
}

// NewID generates a document id. IDs are UUIDv7, so they sort by creation time.
func NewID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generate id: %w", err)
	}
	return id.String(), nil
}

func entity(collection string) string {
	switch collection {
	case CollectionGroups:
		return "group"
	case CollectionQuotes:
		return "quote"
	case CollectionUsers:
		return "user"
	case CollectionQuizzes:
		return "quiz result"
	default:
		return collection
	}
}
