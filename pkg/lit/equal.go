package lit

import "reflect"

// EqualFunc decides whether a part may skip committing value because it
// already shows last.
type EqualFunc func(last, value any) bool

// DefaultEqual compares scalars and strings by value and pointers, channels
// and directive values by identity. Slices, maps, funcs and template results
// are never equal, so they are always committed and diffed by the part.
func DefaultEqual(last, value any) bool {
	if last == nil || value == nil {
		return last == nil && value == nil
	}
	t := reflect.TypeOf(last)
	if t != reflect.TypeOf(value) {
		return false
	}
	switch t.Kind() {
	case reflect.Bool, reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64, reflect.Complex64, reflect.Complex128,
		reflect.Pointer, reflect.UnsafePointer, reflect.Chan:
		return last == value
	case reflect.Struct, reflect.Array:
		if t.Comparable() {
			return comparableEqual(last, value)
		}
	}
	return false
}

// comparableEqual guards against structs whose interface fields hold
// uncomparable dynamic values.
func comparableEqual(a, b any) (eq bool) {
	defer func() {
		if recover() != nil {
			eq = false
		}
	}()
	return a == b
}

// NeverEqual makes every render commit every value.
func NeverEqual(_, _ any) bool { return false }
