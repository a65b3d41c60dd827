package reactive

import (
	"math"
	"reflect"
)

// strictEquals is the default equality: == for comparable values, identity
// for slices, maps and pointers to their backing storage. Functions never
// compare equal.
func strictEquals(a, b any) (eq bool) {
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb {
		return false
	}
	if ta == nil {
		return true
	}
	if ta.Comparable() {
		// Interfaces nested in structs can still hold uncomparable values.
		defer func() {
			if recover() != nil {
				eq = false
			}
		}()
		return a == b
	}
	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	switch va.Kind() {
	case reflect.Slice:
		return va.Pointer() == vb.Pointer() && va.Len() == vb.Len()
	case reflect.Map:
		return va.Pointer() == vb.Pointer()
	}
	return false
}

// safeEquals treats NaN as equal to itself and reports every reference-like
// value (pointer, slice, map, struct, function) as changed, so that in-place
// mutation followed by a write always propagates.
func safeEquals(a, b any) bool {
	if fa, ok := a.(float64); ok && math.IsNaN(fa) {
		fb, ok := b.(float64)
		return ok && math.IsNaN(fb)
	}
	if fa, ok := a.(float32); ok && math.IsNaN(float64(fa)) {
		fb, ok := b.(float32)
		return ok && math.IsNaN(float64(fb))
	}
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	switch reflect.TypeOf(a).Kind() {
	case reflect.Pointer, reflect.Slice, reflect.Map, reflect.Struct, reflect.Func, reflect.Chan, reflect.Interface, reflect.Array:
		return false
	}
	return strictEquals(a, b)
}

// as converts a stored value back to T. A nil interface becomes the zero value.
func as[T any](v any) T {
	if v == nil {
		var zero T
		return zero
	}
	return v.(T)
}
