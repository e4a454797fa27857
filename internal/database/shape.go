package database

import (
	"reflect"
	"strings"
	"time"
)

// nativeTimestamp is implemented by every store-native timestamp
// (Timestamp here, primitive.DateTime for MongoDB).
type nativeTimestamp interface {
	Time() time.Time
}

// ToStore converts an in-memory value into the shape written to a store.
//
// Untyped nil is null and is kept. A nil pointer, map or slice held in a
// typed slot counts as undefined: the key holding it is dropped, at every
// depth. Structs are walked by their bson tags. Sentinels, refs and
// store-native timestamps pass through.
func ToStore(v any) any {
	if v == nil {
		return nil
	}
	switch x := v.(type) {
	case FieldValue, Ref:
		return x
	case time.Time:
		return x.Round(0)
	case nativeTimestamp:
		return x
	case *time.Time:
		if x == nil {
			return nil
		}
		return ToStore(*x)
	case Fields:
		return toStoreMap(reflect.ValueOf(map[string]any(x)))
	}
	out, _ := toStoreValue(reflect.ValueOf(v))
	return out
}

// toStoreValue returns ok=false when rv is undefined.
func toStoreValue(rv reflect.Value) (any, bool) {
	if !rv.IsValid() {
		return nil, true
	}
	switch rv.Kind() {
	case reflect.Interface:
		if rv.IsNil() {
			return nil, true
		}
		return toStoreValue(rv.Elem())
	case reflect.Pointer:
		if rv.IsNil() {
			return nil, false
		}
		return toStoreValue(rv.Elem())
	}
	if rv.CanInterface() {
		switch x := rv.Interface().(type) {
		case FieldValue, Ref, time.Time, nativeTimestamp:
			return ToStore(x), true
		}
	}
	switch rv.Kind() {
	case reflect.Map:
		if rv.IsNil() {
			return nil, false
		}
		if rv.Type().Key().Kind() != reflect.String {
			return rv.Interface(), true
		}
		return toStoreMap(rv), true
	case reflect.Slice:
		if rv.IsNil() {
			return nil, false
		}
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			return append([]byte(nil), rv.Bytes()...), true
		}
		return toStoreSlice(rv), true
	case reflect.Array:
		return toStoreSlice(rv), true
	case reflect.Struct:
		out := map[string]any{}
		toStoreStruct(rv, out)
		return out, true
	case reflect.Func, reflect.Chan:
		if rv.IsNil() {
			return nil, false
		}
		return rv.Interface(), true
	}
	return normalizeScalar(rv), true
}

func toStoreMap(rv reflect.Value) map[string]any {
	out := make(map[string]any, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		if v, ok := toStoreValue(iter.Value()); ok {
			out[iter.Key().String()] = v
		}
	}
	return out
}

func toStoreSlice(rv reflect.Value) []any {
	out := make([]any, 0, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		v, ok := toStoreValue(rv.Index(i))
		if !ok {
			v = nil
		}
		out = append(out, v)
	}
	return out
}

func toStoreStruct(rv reflect.Value, out map[string]any) {
	rt := rv.Type()
	for i := 0; i < rt.NumField(); i++ {
		sf := rt.Field(i)
		if !sf.IsExported() {
			continue
		}
		name, omitEmpty, inline, skip := parseTag(sf)
		if skip {
			continue
		}
		fv := rv.Field(i)
		if inline {
			for fv.Kind() == reflect.Pointer {
				if fv.IsNil() {
					break
				}
				fv = fv.Elem()
			}
			if fv.Kind() == reflect.Struct {
				toStoreStruct(fv, out)
				continue
			}
		}
		if omitEmpty && fv.IsZero() {
			continue
		}
		if v, ok := toStoreValue(fv); ok {
			out[name] = v
		}
	}
}

// parseTag reads the bson tag of sf. Embedded structs without an explicit
// name are inlined.
func parseTag(sf reflect.StructField) (name string, omitEmpty, inline, skip bool) {
	tag := sf.Tag.Get("bson")
	if tag == "-" {
		return "", false, false, true
	}
	parts := strings.Split(tag, ",")
	name = parts[0]
	for _, opt := range parts[1:] {
		switch opt {
		case "omitempty":
			omitEmpty = true
		case "inline":
			inline = true
		}
	}
	if name == "" {
		if sf.Anonymous && sf.Type.Kind() != reflect.Interface {
			inline = true
		}
		name = strings.ToLower(sf.Name)
	}
	return name, omitEmpty, inline, false
}

// normalizeScalar converts named scalar types (e.g. an enum over string) to
// their base type so that stored values compare equal to query values.
func normalizeScalar(rv reflect.Value) any {
	t := rv.Type()
	if t.PkgPath() == "" {
		return rv.Interface()
	}
	switch rv.Kind() {
	case reflect.String:
		return rv.String()
	case reflect.Bool:
		return rv.Bool()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return int64(rv.Uint())
	case reflect.Float32, reflect.Float64:
		return rv.Float()
	}
	return rv.Interface()
}

// FromStore merges the snapshot id into its data. When convertTimestamps is
// set, store-native timestamps are replaced with time.Time at every depth.
func FromStore(snap Snapshot, convertTimestamps bool) Fields {
	out := make(Fields, len(snap.Data)+1)
	for k, v := range snap.Data {
		if convertTimestamps {
			v = ToNative(v)
		}
		out[k] = v
	}
	out["id"] = snap.ID
	return out
}

// ToNative converts store-native timestamps to time.Time, recursing into maps
// and slices. Refs and everything else pass through.
func ToNative(v any) any {
	switch x := v.(type) {
	case nil:
		return nil
	case Ref:
		return x
	case time.Time:
		return x
	case nativeTimestamp:
		return x.Time().UTC()
	case Fields:
		return toNativeMap(x)
	case map[string]any:
		return toNativeMap(x)
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = ToNative(e)
		}
		return out
	}
	return v
}

func toNativeMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, e := range m {
		out[k] = ToNative(e)
	}
	return out
}

// ToStoreFields is ToStore for values that must produce a document body.
// ok is false when v does not convert to a keyed structure.
func ToStoreFields(v any) (Fields, bool) {
	m, ok := ToStore(v).(map[string]any)
	if !ok {
		return nil, false
	}
	return Fields(m), true
}
