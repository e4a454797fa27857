// Package document holds the base record shared by every stored entity and
// the options accepted by repository operations.
package document

import (
	"time"

	"github.com/gogotex/todo-api/internal/database"
)

// Base is embedded (inline) by every stored model. ID is the document key and
// is never written into the document body.
type Base struct {
	ID        string     `bson:"id" json:"id"`
	CreatedAt *time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt *time.Time `bson:"updatedAt" json:"updatedAt"`
}

const (
	FieldID        = "id"
	FieldCreatedAt = "createdAt"
	FieldUpdatedAt = "updatedAt"
)

// Options configures a repository call. Timestamps defaults to true.
type Options struct {
	Timestamps bool
	Merge      bool
	Limit      int
	OrderBy    string
	Direction  database.Direction
}

type Option func(*Options)

// WithTimestamps toggles timestamp injection on writes and conversion on reads.
func WithTimestamps(enabled bool) Option {
	return func(o *Options) { o.Timestamps = enabled }
}

// WithMerge makes Set merge into an existing document instead of replacing it.
func WithMerge() Option {
	return func(o *Options) { o.Merge = true }
}

// WithLimit caps the number of query results; zero means no limit.
func WithLimit(n int) Option {
	return func(o *Options) { o.Limit = n }
}

// WithOrderBy orders query results by field. An empty direction means ascending.
func WithOrderBy(field string, dir database.Direction) Option {
	return func(o *Options) {
		o.OrderBy = field
		o.Direction = dir
	}
}

// Apply resolves opts over the defaults.
func Apply(opts []Option) Options {
	o := Options{Timestamps: true}
	for _, fn := range opts {
		fn(&o)
	}
	if o.OrderBy != "" && o.Direction == "" {
		o.Direction = database.Asc
	}
	return o
}
