package audit

import (
	"fmt"
	"reflect"
	"strings"
	"time"
)

var timeType = reflect.TypeOf(time.Time{})

// Snapshot flattens an entity's scalar and value-object properties into a
// serializable map keyed by field name. Navigation fields (slices, maps,
// nested models) are skipped; temporal values are canonicalized to RFC 3339
// so rows stay stable and comparable across entity-model versions.
func Snapshot(entity any) map[string]any {
	out := make(map[string]any)
	v := reflect.ValueOf(entity)
	for v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return out
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return out
	}
	snapshotStruct(v, out)
	return out
}

func snapshotStruct(v reflect.Value, out map[string]any) {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if field.PkgPath != "" {
			continue // unexported
		}
		if tag := field.Tag.Get("gorm"); tag == "-" || strings.HasPrefix(tag, "-:") {
			continue
		}

		fv := v.Field(i)
		if field.Anonymous {
			ev := fv
			for ev.Kind() == reflect.Pointer && !ev.IsNil() {
				ev = ev.Elem()
			}
			if ev.Kind() == reflect.Struct && ev.Type() != timeType {
				snapshotStruct(ev, out)
				continue
			}
		}

		if val, ok := snapshotValue(fv); ok {
			out[field.Name] = val
		}
	}
}

func snapshotValue(v reflect.Value) (any, bool) {
	for v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return nil, true
		}
		v = v.Elem()
	}

	if v.Type() == timeType {
		t := v.Interface().(time.Time)
		if t.IsZero() {
			return nil, true
		}
		return t.UTC().Format(time.RFC3339Nano), true
	}

	switch v.Kind() {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64,
		reflect.String:
		return v.Interface(), true
	case reflect.Struct:
		// Value objects render through their Stringer; anything else at this
		// point is a navigation property.
		if s, ok := v.Interface().(fmt.Stringer); ok {
			return s.String(), true
		}
		return nil, false
	default:
		return nil, false
	}
}
