// Package repository implements the generic document repository every
// entity repository is built on.
package repository

import (
	"context"
	"fmt"

	"github.com/gogotex/todo-api/internal/apperr"
	"github.com/gogotex/todo-api/internal/database"
	"github.com/gogotex/todo-api/internal/document"
	"github.com/gogotex/todo-api/pkg/metrics"
	"go.mongodb.org/mongo-driver/bson"
	"golang.org/x/sync/errgroup"
)

// Repository provides CRUD and query operations over one collection, decoding
// documents into T through its bson struct tags.
type Repository[T any] struct {
	collection string
	col        database.Collection
}

// New binds a repository to the named collection of store.
func New[T any](collection string, store database.Store) *Repository[T] {
	return &Repository[T]{collection: collection, col: store.Collection(collection)}
}

// Add writes data as a new document and returns the store-assigned id. Any
// id carried by data is discarded.
func (r *Repository[T]) Add(ctx context.Context, data any, opts ...document.Option) (string, error) {
	o := document.Apply(opts)
	fields, err := r.payload(data)
	if err != nil {
		return "", err
	}
	if o.Timestamps {
		fields[document.FieldCreatedAt] = database.ServerTimestamp()
		fields[document.FieldUpdatedAt] = nil
	}
	delete(fields, document.FieldID)

	id, err := r.col.Add(ctx, fields)
	r.observe("add", err)
	return id, err
}

// Update applies a partial write to the document identified by data's id.
// The creation timestamp is never rewritten when timestamps are enabled.
func (r *Repository[T]) Update(ctx context.Context, data any, opts ...document.Option) error {
	o := document.Apply(opts)
	fields, err := r.payload(data)
	if err != nil {
		return err
	}
	id := idOf(fields)
	if id == "" {
		return apperr.DocumentWithoutIdentifier()
	}
	if o.Timestamps {
		fields[document.FieldUpdatedAt] = database.ServerTimestamp()
		delete(fields, document.FieldCreatedAt)
	}
	delete(fields, document.FieldID)

	err = r.col.Update(ctx, id, fields)
	r.observe("update", err)
	return err
}

// Set replaces (or merges into) the document identified by data's id, creating
// it when absent. With timestamps enabled the document is stamped as newly
// created on every call.
func (r *Repository[T]) Set(ctx context.Context, data any, opts ...document.Option) error {
	o := document.Apply(opts)
	fields, err := r.payload(data)
	if err != nil {
		return err
	}
	id := idOf(fields)
	if id == "" {
		return apperr.DocumentWithoutIdentifier()
	}
	if o.Timestamps {
		fields[document.FieldCreatedAt] = database.ServerTimestamp()
		fields[document.FieldUpdatedAt] = nil
	}
	delete(fields, document.FieldID)

	err = r.col.Set(ctx, id, fields, o.Merge)
	r.observe("set", err)
	return err
}

// Delete removes the document. A missing document is not an error.
func (r *Repository[T]) Delete(ctx context.Context, id string) error {
	if id == "" {
		return apperr.DocumentWithoutIdentifier()
	}
	err := r.col.Delete(ctx, id)
	r.observe("delete", err)
	return err
}

// GetByID fails with a document-not-found error when id is absent.
func (r *Repository[T]) GetByID(ctx context.Context, id string, opts ...document.Option) (T, error) {
	var zero T
	if id == "" {
		return zero, apperr.DocumentWithoutIdentifier()
	}
	o := document.Apply(opts)
	snap, err := r.col.Get(ctx, id)
	r.observe("get", err)
	if err != nil {
		return zero, err
	}
	if !snap.Exists {
		return zero, apperr.DocumentNotFound(r.collection, id)
	}
	return r.decode(snap, o.Timestamps)
}

// GetByIDs fetches ids concurrently and returns the records in input order.
// The first miss fails the whole call.
func (r *Repository[T]) GetByIDs(ctx context.Context, ids []string, opts ...document.Option) ([]T, error) {
	out := make([]T, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	for i, id := range ids {
		g.Go(func() error {
			rec, err := r.GetByID(gctx, id, opts...)
			if err != nil {
				return err
			}
			out[i] = rec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// GetAll returns every document of the collection. There is no pagination.
func (r *Repository[T]) GetAll(ctx context.Context, opts ...document.Option) ([]T, error) {
	return r.query(ctx, nil, document.Apply(opts))
}

// GetWhere runs a single-predicate query. Limit and ordering come from opts.
func (r *Repository[T]) GetWhere(ctx context.Context, field string, op database.Op, value any, opts ...document.Option) ([]T, error) {
	return r.query(ctx, []database.Filter{database.Where(field, op, value)}, document.Apply(opts))
}

// GetWhereMany runs a conjunction of predicates.
func (r *Repository[T]) GetWhereMany(ctx context.Context, filters []database.Filter, opts ...document.Option) ([]T, error) {
	return r.query(ctx, filters, document.Apply(opts))
}

// GetOneWhere returns the first match, or nil when nothing matches.
func (r *Repository[T]) GetOneWhere(ctx context.Context, field string, op database.Op, value any, opts ...document.Option) (*T, error) {
	return r.GetOneWhereMany(ctx, []database.Filter{database.Where(field, op, value)}, opts...)
}

// GetOneWhereMany returns the first match of the conjunction, or nil.
func (r *Repository[T]) GetOneWhereMany(ctx context.Context, filters []database.Filter, opts ...document.Option) (*T, error) {
	o := document.Apply(opts)
	o.Limit = 1
	recs, err := r.query(ctx, filters, o)
	if err != nil || len(recs) == 0 {
		return nil, err
	}
	return &recs[0], nil
}

func (r *Repository[T]) query(ctx context.Context, filters []database.Filter, o document.Options) ([]T, error) {
	q := database.Query{Limit: o.Limit, OrderBy: o.OrderBy, Direction: o.Direction}
	for _, f := range filters {
		f.Value = database.ToStore(f.Value)
		q.Filters = append(q.Filters, f)
	}
	snaps, err := r.col.Find(ctx, q)
	r.observe("query", err)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(snaps))
	for _, s := range snaps {
		rec, err := r.decode(s, o.Timestamps)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func (r *Repository[T]) payload(data any) (database.Fields, error) {
	fields, ok := database.ToStoreFields(data)
	if !ok {
		return nil, fmt.Errorf("%s: payload must be a struct or map, got %T", r.collection, data)
	}
	return fields, nil
}

func (r *Repository[T]) decode(snap database.Snapshot, convertTimestamps bool) (T, error) {
	var rec T
	raw, err := bson.Marshal(database.FromStore(snap, convertTimestamps))
	if err != nil {
		return rec, fmt.Errorf("%s/%s: encode: %w", r.collection, snap.ID, err)
	}
	if err := bson.Unmarshal(raw, &rec); err != nil {
		return rec, fmt.Errorf("%s/%s: decode: %w", r.collection, snap.ID, err)
	}
	return rec, nil
}

func (r *Repository[T]) observe(op string, err error) {
	metrics.ObserveStoreOperation(r.collection, op, err)
}

func idOf(fields database.Fields) string {
	id, _ := fields[document.FieldID].(string)
	return id
}
