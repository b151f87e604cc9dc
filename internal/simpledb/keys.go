package simpledb

import (
	"fmt"
	"math"
	"reflect"
	"strings"
	"time"
)

// timeKey compares time values by instant regardless of location.
type timeKey struct {
	sec  int64
	nsec int
}

// normalizeKey maps a column value onto a comparable key so that values of
// different integer widths, named string types and pointers compare by
// content.
func normalizeKey(v any) any {
	switch x := v.(type) {
	case nil:
		return nil
	case string:
		return x
	case bool:
		return x
	case int64:
		return x
	case int:
		return int64(x)
	case time.Time:
		if x.IsZero() {
			return timeKey{}
		}
		return timeKey{sec: x.Unix(), nsec: x.Nanosecond()}
	case *time.Time:
		if x == nil {
			return nil
		}
		return normalizeKey(*x)
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return nil
		}
		return normalizeKey(rv.Elem().Interface())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		u := rv.Uint()
		if u <= math.MaxInt64 {
			return int64(u)
		}
		return u
	case reflect.Float32, reflect.Float64:
		return rv.Float()
	case reflect.String:
		return rv.String()
	case reflect.Bool:
		return rv.Bool()
	}
	if rv.Comparable() {
		return v
	}
	return fmt.Sprintf("%#v", v)
}

// isZeroKey reports whether a normalized key is the zero value of its kind.
func isZeroKey(k any) bool {
	switch x := k.(type) {
	case nil:
		return true
	case int64:
		return x == 0
	case uint64:
		return x == 0
	case float64:
		return x == 0
	case string:
		return x == ""
	case bool:
		return !x
	case timeKey:
		return x == timeKey{}
	}
	return reflect.ValueOf(k).IsZero()
}

// compositeKey joins normalized keys into one map key. Each component is
// written as type, length and value, so no value can mimic a separator.
func compositeKey(keys []any) string {
	var b strings.Builder
	for _, k := range keys {
		v := fmt.Sprintf("%v", k)
		fmt.Fprintf(&b, "%T:%d:%s;", k, len(v), v)
	}
	return b.String()
}
