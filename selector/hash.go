package selector

import "reflect"

// Hashable reports whether v can be compared with == or used as a map key
// without panicking. Unlike reflect.Type.Comparable it inspects the dynamic
// values held in interface fields.
func Hashable(v any) bool {
	if v == nil {
		return true
	}
	return isHashable(reflect.ValueOf(v))
}

func isHashable(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Slice, reflect.Map, reflect.Func:
		return false
	case reflect.Interface:
		if v.IsNil() {
			return true
		}
		return isHashable(v.Elem())
	case reflect.Array:
		for i := 0; i < v.Len(); i++ {
			if !isHashable(v.Index(i)) {
				return false
			}
		}
		return true
	case reflect.Struct:
		for i := 0; i < v.NumField(); i++ {
			if !isHashable(v.Field(i)) {
				return false
			}
		}
		return true
	default:
		return true
	}
}
