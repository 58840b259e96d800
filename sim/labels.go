package sim

import "reflect"

// Comparable reports whether v can be compared with == and used as a map key
// without panicking. Interface values held in struct fields or array
// elements are checked by their dynamic type, so struct{ v any }{[]int{}}
// is not comparable.
func Comparable(v any) bool {
	if v == nil {
		return true
	}
	return comparableValue(reflect.ValueOf(v))
}

func comparableValue(v reflect.Value) bool {
	if !v.Type().Comparable() {
		return false
	}
	switch v.Kind() {
	case reflect.Interface:
		return v.IsNil() || comparableValue(v.Elem())
	case reflect.Struct:
		for i := 0; i < v.NumField(); i++ {
			if !comparableValue(v.Field(i)) {
				return false
			}
		}
	case reflect.Array:
		for i := 0; i < v.Len(); i++ {
			if !comparableValue(v.Index(i)) {
				return false
			}
		}
	}
	return true
}
