package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// MongoStore implements Store on a MongoDB database. Documents are keyed by a
// string _id; new ids are ObjectID hex strings.
type MongoStore struct {
	db    *mongo.Database
	clock func() time.Time
}

func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{db: db, clock: time.Now}
}

func (s *MongoStore) Collection(name string) Collection {
	return &mongoCollection{col: s.db.Collection(name), clock: s.clock}
}

// EnsureUniqueIndex creates a unique ascending index on field. It is idempotent.
func (s *MongoStore) EnsureUniqueIndex(ctx context.Context, collection, field string) error {
	_, err := s.db.Collection(collection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: field, Value: 1}},
		Options: options.Index().SetUnique(true).SetName(field + "_unique"),
	})
	if err != nil {
		return fmt.Errorf("mongo index %s.%s: %w", collection, field, err)
	}
	return nil
}

func (s *MongoStore) Ping(ctx context.Context) error {
	return s.db.Client().Ping(ctx, readpref.Primary())
}

type mongoCollection struct {
	col   *mongo.Collection
	clock func() time.Time
}

func (c *mongoCollection) Name() string { return c.col.Name() }

// now is truncated to the millisecond precision BSON dates carry.
func (c *mongoCollection) now() time.Time {
	return c.clock().UTC().Truncate(time.Millisecond)
}

func (c *mongoCollection) Add(ctx context.Context, data Fields) (string, error) {
	id := primitive.NewObjectID().Hex()
	doc := encodeDocument(data, c.now())
	doc["_id"] = id
	if _, err := c.col.InsertOne(ctx, doc); err != nil {
		return "", writeErr("insert", c.col.Name(), err)
	}
	return id, nil
}

func (c *mongoCollection) Get(ctx context.Context, id string) (Snapshot, error) {
	var raw bson.M
	err := c.col.FindOne(ctx, bson.M{"_id": id}).Decode(&raw)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return Snapshot{ID: id}, nil
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("mongo find %s/%s: %w", c.col.Name(), id, err)
	}
	return decodeSnapshot(raw), nil
}

func (c *mongoCollection) Update(ctx context.Context, id string, data Fields) error {
	update := c.updateDocument(data)
	if len(update) == 0 {
		n, err := c.col.CountDocuments(ctx, bson.M{"_id": id}, options.Count().SetLimit(1))
		if err != nil {
			return fmt.Errorf("mongo count %s/%s: %w", c.col.Name(), id, err)
		}
		if n == 0 {
			return ErrNoDocument
		}
		return nil
	}
	res, err := c.col.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return writeErr("update", c.col.Name()+"/"+id, err)
	}
	if res.MatchedCount == 0 {
		return ErrNoDocument
	}
	return nil
}

func (c *mongoCollection) Set(ctx context.Context, id string, data Fields, merge bool) error {
	if !merge {
		doc := encodeDocument(data, c.now())
		_, err := c.col.ReplaceOne(ctx, bson.M{"_id": id}, doc, options.Replace().SetUpsert(true))
		if err != nil {
			return writeErr("replace", c.col.Name()+"/"+id, err)
		}
		return nil
	}
	update := c.updateDocument(data)
	if len(update) == 0 {
		return c.ensureExists(ctx, id)
	}
	_, err := c.col.UpdateOne(ctx, bson.M{"_id": id}, update, options.Update().SetUpsert(true))
	if err != nil {
		return writeErr("merge", c.col.Name()+"/"+id, err)
	}
	return nil
}

func writeErr(op, target string, err error) error {
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("mongo %s %s: %w", op, target, ErrDuplicate)
	}
	return fmt.Errorf("mongo %s %s: %w", op, target, err)
}

// ensureExists creates an empty document for id when none exists.
func (c *mongoCollection) ensureExists(ctx context.Context, id string) error {
	n, err := c.col.CountDocuments(ctx, bson.M{"_id": id}, options.Count().SetLimit(1))
	if err != nil {
		return fmt.Errorf("mongo count %s/%s: %w", c.col.Name(), id, err)
	}
	if n > 0 {
		return nil
	}
	if _, err := c.col.InsertOne(ctx, bson.M{"_id": id}); err != nil && !mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("mongo insert %s/%s: %w", c.col.Name(), id, err)
	}
	return nil
}

func (c *mongoCollection) Delete(ctx context.Context, id string) error {
	if _, err := c.col.DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		return fmt.Errorf("mongo delete %s/%s: %w", c.col.Name(), id, err)
	}
	return nil
}

func (c *mongoCollection) Find(ctx context.Context, q Query) ([]Snapshot, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	opts := options.Find()
	if q.OrderBy != "" {
		dir := 1
		if q.Direction == Desc {
			dir = -1
		}
		opts.SetSort(bson.D{{Key: q.OrderBy, Value: dir}, {Key: "_id", Value: 1}})
	}
	if q.Limit > 0 {
		opts.SetLimit(int64(q.Limit))
	}
	filters := q.Filters
	if q.OrderBy != "" {
		filters = append(filters[:len(filters):len(filters)], Filter{Field: q.OrderBy, Op: opExists})
	}
	cur, err := c.col.Find(ctx, buildFilter(filters), opts)
	if err != nil {
		return nil, fmt.Errorf("mongo find %s: %w", c.col.Name(), err)
	}
	var raws []bson.M
	if err := cur.All(ctx, &raws); err != nil {
		return nil, fmt.Errorf("mongo cursor %s: %w", c.col.Name(), err)
	}
	out := make([]Snapshot, 0, len(raws))
	for _, raw := range raws {
		out = append(out, decodeSnapshot(raw))
	}
	return out, nil
}

// updateDocument splits data into $set and $currentDate parts. Top-level
// server timestamps go to $currentDate so they resolve on the server clock.
func (c *mongoCollection) updateDocument(data Fields) bson.M {
	set := bson.M{}
	current := bson.M{}
	now := c.now()
	for k, v := range data {
		if IsServerTimestamp(v) {
			current[k] = true
			continue
		}
		set[k] = encodeValue(v, now)
	}
	update := bson.M{}
	if len(set) > 0 {
		update["$set"] = set
	}
	if len(current) > 0 {
		update["$currentDate"] = current
	}
	return update
}

func encodeDocument(data Fields, now time.Time) bson.M {
	doc := make(bson.M, len(data)+1)
	for k, v := range data {
		doc[k] = encodeValue(v, now)
	}
	return doc
}

func encodeValue(v any, now time.Time) any {
	switch x := v.(type) {
	case FieldValue:
		if x == serverTimestamp {
			return now
		}
		return nil
	case Ref:
		return bson.D{{Key: "$ref", Value: x.Collection}, {Key: "$id", Value: x.ID}}
	case Timestamp:
		return x.Time()
	case Fields:
		return encodeDocument(x, now)
	case map[string]any:
		return encodeDocument(x, now)
	case []any:
		arr := make(bson.A, len(x))
		for i, e := range x {
			arr[i] = encodeValue(e, now)
		}
		return arr
	}
	return v
}

func buildFilter(filters []Filter) bson.D {
	conds := make(bson.A, 0, len(filters))
	for _, f := range filters {
		conds = append(conds, bson.D{{Key: f.Field, Value: filterExpr(f)}})
	}
	switch len(conds) {
	case 0:
		return bson.D{}
	case 1:
		return conds[0].(bson.D)
	}
	return bson.D{{Key: "$and", Value: conds}}
}

// opExists is internal to the Mongo adapter; it backs the OrderBy presence rule.
const opExists Op = "exists"

func filterExpr(f Filter) bson.D {
	v := encodeValue(f.Value, time.Time{})
	switch f.Op {
	case opExists:
		return bson.D{{Key: "$exists", Value: true}}
	case OpEqual:
		if v == nil {
			// $eq:null alone would also match a missing field
			return bson.D{{Key: "$exists", Value: true}, {Key: "$eq", Value: nil}}
		}
	case OpNotEqual:
		return bson.D{{Key: "$exists", Value: true}, {Key: "$ne", Value: v}}
	case OpLess:
		return bson.D{{Key: "$lt", Value: v}}
	case OpLessOrEqual:
		return bson.D{{Key: "$lte", Value: v}}
	case OpGreater:
		return bson.D{{Key: "$gt", Value: v}}
	case OpGreaterOrEqual:
		return bson.D{{Key: "$gte", Value: v}}
	case OpIn:
		return bson.D{{Key: "$in", Value: v}}
	case OpNotIn:
		return bson.D{{Key: "$exists", Value: true}, {Key: "$nin", Value: v}}
	case OpArrayContains:
		return bson.D{{Key: "$elemMatch", Value: bson.D{{Key: "$eq", Value: v}}}}
	case OpArrayContainsAny:
		return bson.D{{Key: "$elemMatch", Value: bson.D{{Key: "$in", Value: v}}}}
	}
	return bson.D{{Key: "$eq", Value: v}}
}

func decodeSnapshot(raw bson.M) Snapshot {
	id := fmt.Sprint(raw["_id"])
	if oid, ok := raw["_id"].(primitive.ObjectID); ok {
		id = oid.Hex()
	}
	data := make(Fields, len(raw))
	for k, v := range raw {
		if k == "_id" {
			continue
		}
		data[k] = decodeValue(v)
	}
	return Snapshot{ID: id, Exists: true, Data: data}
}

// decodeValue normalises driver container types to map[string]any / []any
// and turns {$ref, $id} sub-documents back into Ref.
func decodeValue(v any) any {
	switch x := v.(type) {
	case bson.M:
		return decodeMap(x)
	case map[string]any:
		return decodeMap(x)
	case bson.D:
		m := make(map[string]any, len(x))
		for _, e := range x {
			m[e.Key] = e.Value
		}
		return decodeMap(m)
	case bson.A:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = decodeValue(e)
		}
		return out
	case primitive.ObjectID:
		return x.Hex()
	}
	return v
}

func decodeMap(m map[string]any) any {
	if coll, ok := m["$ref"].(string); ok {
		if id, ok := m["$id"]; ok {
			return Ref{Collection: coll, ID: fmt.Sprint(id)}
		}
	}
	out := make(map[string]any, len(m))
	for k, e := range m {
		out[k] = decodeValue(e)
	}
	return out
}
