package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
)

// ErrNoDocument is returned by Collection.Update when the target id is absent.
var ErrNoDocument = errors.New("no document to update")

// ErrDuplicate is returned by writes that violate a unique index.
var ErrDuplicate = errors.New("duplicate key")

// Fields is the store-facing shape of a document body. The identifier is never
// part of Fields; it travels separately as the document key.
type Fields map[string]any

// Snapshot is a single document read from a collection.
type Snapshot struct {
	ID     string
	Exists bool
	Data   Fields
}

// Store hands out collection handles. Implementations are safe for concurrent use.
type Store interface {
	Collection(name string) Collection
	Ping(ctx context.Context) error
}

// Collection is the document-level API every store adapter provides.
type Collection interface {
	Name() string
	// Add creates a document with a store-assigned id.
	Add(ctx context.Context, data Fields) (string, error)
	// Get returns a snapshot with Exists=false when id is absent.
	Get(ctx context.Context, id string) (Snapshot, error)
	// Update applies a partial write and fails with ErrNoDocument when id is absent.
	Update(ctx context.Context, id string, data Fields) error
	// Set replaces the document, or merges into it when merge is true, creating it if needed.
	Set(ctx context.Context, id string, data Fields, merge bool) error
	// Delete removes the document. Deleting an absent id is not an error.
	Delete(ctx context.Context, id string) error
	// Find returns the documents matching every filter. Filters only match
	// documents that carry the field, so == nil selects explicit nulls, and
	// ordering by a field drops documents that lack it.
	Find(ctx context.Context, q Query) ([]Snapshot, error)
}

// UniqueIndexer is implemented by stores that can enforce field uniqueness.
// Writes that collide fail with ErrDuplicate.
type UniqueIndexer interface {
	EnsureUniqueIndex(ctx context.Context, collection, field string) error
}

// Op is a query comparison operator.
type Op string

const (
	OpEqual            Op = "=="
	OpNotEqual         Op = "!="
	OpLess             Op = "<"
	OpLessOrEqual      Op = "<="
	OpGreater          Op = ">"
	OpGreaterOrEqual   Op = ">="
	OpIn               Op = "in"
	OpNotIn            Op = "not-in"
	OpArrayContains    Op = "array-contains"
	OpArrayContainsAny Op = "array-contains-any"
)

func (o Op) valid() bool {
	switch o {
	case OpEqual, OpNotEqual, OpLess, OpLessOrEqual, OpGreater, OpGreaterOrEqual,
		OpIn, OpNotIn, OpArrayContains, OpArrayContainsAny:
		return true
	}
	return false
}

// Direction orders query results.
type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// Filter is one (field, operator, value) predicate.
type Filter struct {
	Field string
	Op    Op
	Value any
}

// Where is shorthand for building a Filter.
func Where(field string, op Op, value any) Filter {
	return Filter{Field: field, Op: op, Value: value}
}

// Query is a conjunction of filters with optional single-field ordering and a limit.
// Ordering is applied before the limit and only returns documents that have
// the OrderBy field. Zero Limit means unlimited.
type Query struct {
	Filters   []Filter
	Limit     int
	OrderBy   string
	Direction Direction
}

// Validate rejects unknown operators and list operators without a list value.
func (q Query) Validate() error {
	for _, f := range q.Filters {
		if !f.Op.valid() {
			return fmt.Errorf("unsupported operator %q on field %q", f.Op, f.Field)
		}
		switch f.Op {
		case OpIn, OpNotIn, OpArrayContainsAny:
			if _, ok := f.Value.([]any); !ok {
				return fmt.Errorf("operator %q on field %q requires a list value", f.Op, f.Field)
			}
		}
	}
	if q.Limit < 0 {
		return fmt.Errorf("negative limit %d", q.Limit)
	}
	if q.Direction != "" && q.Direction != Asc && q.Direction != Desc {
		return fmt.Errorf("unsupported order direction %q", q.Direction)
	}
	return nil
}

// FieldValue is a write-time sentinel resolved by the store when the write commits.
type FieldValue struct {
	kind string
}

var serverTimestamp = FieldValue{kind: "serverTimestamp"}

// ServerTimestamp returns the placeholder resolved to the store clock at write time.
func ServerTimestamp() FieldValue { return serverTimestamp }

// IsServerTimestamp reports whether v is the server timestamp placeholder.
func IsServerTimestamp(v any) bool {
	fv, ok := v.(FieldValue)
	return ok && fv == serverTimestamp
}

// Ref points at another document.
type Ref struct {
	Collection string
	ID         string
}

func (r Ref) Path() string { return r.Collection + "/" + r.ID }

// Timestamp is the memory store's native timestamp value.
type Timestamp struct {
	t time.Time
}

func NewTimestamp(t time.Time) Timestamp { return Timestamp{t: t.UTC()} }

func (ts Timestamp) Time() time.Time { return ts.t }

// MarshalBSONValue encodes the timestamp as a BSON date so raw reads decode
// into time.Time fields.
func (ts Timestamp) MarshalBSONValue() (bsontype.Type, []byte, error) {
	return bson.MarshalValue(ts.t)
}
