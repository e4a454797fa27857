package database

import (
	"bytes"
	"context"
	"reflect"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-process Store used by tests and by the service when no
// MongoDB URI is configured. Values are copied on every read and write.
type MemoryStore struct {
	mu    sync.RWMutex
	docs  map[string]map[string]Fields
	clock func() time.Time
}

type MemoryOption func(*MemoryStore)

// WithClock sets the clock used to resolve server timestamps.
func WithClock(now func() time.Time) MemoryOption {
	return func(m *MemoryStore) { m.clock = now }
}

func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	m := &MemoryStore{docs: make(map[string]map[string]Fields), clock: time.Now}
	for _, o := range opts {
		o(m)
	}
	return m
}

func (m *MemoryStore) Collection(name string) Collection {
	return &memoryCollection{store: m, name: name}
}

func (m *MemoryStore) Ping(ctx context.Context) error { return ctx.Err() }

type memoryCollection struct {
	store *MemoryStore
	name  string
}

func (c *memoryCollection) Name() string { return c.name }

// table must be called with the write lock held.
func (c *memoryCollection) table() map[string]Fields {
	t, ok := c.store.docs[c.name]
	if !ok {
		t = make(map[string]Fields)
		c.store.docs[c.name] = t
	}
	return t
}

func (c *memoryCollection) Add(ctx context.Context, data Fields) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	id := uuid.NewString()
	c.store.mu.Lock()
	defer c.store.mu.Unlock()
	c.table()[id] = c.resolveFields(data)
	return id, nil
}

func (c *memoryCollection) Get(ctx context.Context, id string) (Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return Snapshot{}, err
	}
	c.store.mu.RLock()
	defer c.store.mu.RUnlock()
	d, ok := c.store.docs[c.name][id]
	if !ok {
		return Snapshot{ID: id}, nil
	}
	return Snapshot{ID: id, Exists: true, Data: cloneFields(d)}, nil
}

func (c *memoryCollection) Update(ctx context.Context, id string, data Fields) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.store.mu.Lock()
	defer c.store.mu.Unlock()
	d, ok := c.store.docs[c.name][id]
	if !ok {
		return ErrNoDocument
	}
	for k, v := range c.resolveFields(data) {
		setPath(d, k, v)
	}
	return nil
}

func (c *memoryCollection) Set(ctx context.Context, id string, data Fields, merge bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.store.mu.Lock()
	defer c.store.mu.Unlock()
	t := c.table()
	resolved := c.resolveFields(data)
	if existing, ok := t[id]; ok && merge {
		for k, v := range resolved {
			existing[k] = v
		}
		return nil
	}
	t[id] = resolved
	return nil
}

func (c *memoryCollection) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.store.mu.Lock()
	defer c.store.mu.Unlock()
	delete(c.store.docs[c.name], id)
	return nil
}

func (c *memoryCollection) Find(ctx context.Context, q Query) ([]Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := q.Validate(); err != nil {
		return nil, err
	}
	c.store.mu.RLock()
	out := make([]Snapshot, 0)
	for id, d := range c.store.docs[c.name] {
		if !matchesAll(d, q.Filters) {
			continue
		}
		if _, ok := lookupPath(d, q.OrderBy); q.OrderBy == "" || ok {
			out = append(out, Snapshot{ID: id, Exists: true, Data: cloneFields(d)})
		}
	}
	c.store.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if q.OrderBy != "" {
		sort.SliceStable(out, func(i, j int) bool {
			a, _ := lookupPath(out[i].Data, q.OrderBy)
			b, _ := lookupPath(out[j].Data, q.OrderBy)
			cmp := orderValues(a, b)
			if q.Direction == Desc {
				return cmp > 0
			}
			return cmp < 0
		})
	}
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

// resolveFields copies data, turning server timestamp sentinels and time.Time
// values into the store's native Timestamp.
func (c *memoryCollection) resolveFields(data Fields) Fields {
	now := c.store.clock()
	out := make(Fields, len(data))
	for k, v := range data {
		out[k] = resolveValue(v, now)
	}
	return out
}

func resolveValue(v any, now time.Time) any {
	switch x := v.(type) {
	case FieldValue:
		if x == serverTimestamp {
			return NewTimestamp(now)
		}
		return x
	case time.Time:
		return NewTimestamp(x)
	case Fields:
		return resolveValue(map[string]any(x), now)
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[k] = resolveValue(e, now)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = resolveValue(e, now)
		}
		return out
	}
	return cloneValue(v)
}

func cloneFields(d Fields) Fields {
	out := make(Fields, len(d))
	for k, v := range d {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch x := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[k] = cloneValue(e)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = cloneValue(e)
		}
		return out
	case []byte:
		return append([]byte(nil), x...)
	}
	return v
}

// setPath writes v at a dotted path, creating intermediate maps.
func setPath(d Fields, path string, v any) {
	parts := strings.Split(path, ".")
	cur := map[string]any(d)
	for _, p := range parts[:len(parts)-1] {
		next, ok := cur[p].(map[string]any)
		if !ok {
			next = map[string]any{}
			cur[p] = next
		}
		cur = next
	}
	cur[parts[len(parts)-1]] = v
}

func lookupPath(d Fields, path string) (any, bool) {
	var cur any = map[string]any(d)
	for _, p := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[p]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

func matchesAll(d Fields, filters []Filter) bool {
	for _, f := range filters {
		if !matches(d, f) {
			return false
		}
	}
	return true
}

func matches(d Fields, f Filter) bool {
	v, present := lookupPath(d, f.Field)
	if !present {
		return false
	}
	switch f.Op {
	case OpEqual:
		return equalValues(v, f.Value)
	case OpNotEqual:
		return !equalValues(v, f.Value)
	case OpLess, OpLessOrEqual, OpGreater, OpGreaterOrEqual:
		cmp, ok := compareValues(v, f.Value)
		if !ok {
			return false
		}
		switch f.Op {
		case OpLess:
			return cmp < 0
		case OpLessOrEqual:
			return cmp <= 0
		case OpGreater:
			return cmp > 0
		}
		return cmp >= 0
	case OpIn:
		return containsValue(f.Value.([]any), v)
	case OpNotIn:
		return !containsValue(f.Value.([]any), v)
	case OpArrayContains:
		arr, ok := v.([]any)
		return ok && containsValue(arr, f.Value)
	case OpArrayContainsAny:
		arr, ok := v.([]any)
		if !ok {
			return false
		}
		for _, want := range f.Value.([]any) {
			if containsValue(arr, want) {
				return true
			}
		}
	}
	return false
}

func containsValue(list []any, v any) bool {
	for _, e := range list {
		if equalValues(e, v) {
			return true
		}
	}
	return false
}

func equalValues(a, b any) bool {
	if cmp, ok := compareValues(a, b); ok {
		return cmp == 0
	}
	return reflect.DeepEqual(a, b)
}

// typeRank orders values of different kinds: null, bool, number, time,
// string, bytes, ref, everything else.
func typeRank(v any) int {
	if v == nil {
		return 0
	}
	if _, ok := v.(bool); ok {
		return 1
	}
	if _, ok := toFloat(v); ok {
		return 2
	}
	if _, ok := toTime(v); ok {
		return 3
	}
	switch v.(type) {
	case string:
		return 4
	case []byte:
		return 5
	case Ref:
		return 6
	}
	return 7
}

// compareValues compares two values of the same rank; ok is false otherwise.
func compareValues(a, b any) (int, bool) {
	ra, rb := typeRank(a), typeRank(b)
	if ra != rb {
		return 0, false
	}
	switch ra {
	case 0:
		return 0, true
	case 1:
		x, y := a.(bool), b.(bool)
		switch {
		case x == y:
			return 0, true
		case !x:
			return -1, true
		}
		return 1, true
	case 2:
		x, _ := toFloat(a)
		y, _ := toFloat(b)
		switch {
		case x < y:
			return -1, true
		case x > y:
			return 1, true
		}
		return 0, true
	case 3:
		x, _ := toTime(a)
		y, _ := toTime(b)
		return x.Compare(y), true
	case 4:
		return strings.Compare(a.(string), b.(string)), true
	case 5:
		return bytes.Compare(a.([]byte), b.([]byte)), true
	case 6:
		return strings.Compare(a.(Ref).Path(), b.(Ref).Path()), true
	}
	return 0, false
}

// orderValues is a total order used for sorting: by rank, then by value.
func orderValues(a, b any) int {
	if cmp, ok := compareValues(a, b); ok {
		return cmp
	}
	ra, rb := typeRank(a), typeRank(b)
	switch {
	case ra < rb:
		return -1
	case ra > rb:
		return 1
	}
	return 0
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case int:
		return float64(x), true
	case int8:
		return float64(x), true
	case int16:
		return float64(x), true
	case int32:
		return float64(x), true
	case int64:
		return float64(x), true
	case uint:
		return float64(x), true
	case uint8:
		return float64(x), true
	case uint16:
		return float64(x), true
	case uint32:
		return float64(x), true
	case uint64:
		return float64(x), true
	case float32:
		return float64(x), true
	case float64:
		return x, true
	}
	return 0, false
}

func toTime(v any) (time.Time, bool) {
	switch x := v.(type) {
	case time.Time:
		return x, true
	case nativeTimestamp:
		return x.Time(), true
	}
	return time.Time{}, false
}
