// Package copyx provides functionality to perform deep copies of complex data structures.
package copyx

import (
	"reflect"
)

// DeepCopy performs a deep copy from the source (src) to the destination (dst).
// It uses reflection to recursively copy all fields of the source object,
// ensuring that nested structures are also duplicated rather than simply referenced.
// dst and src must be pointers to the same type.
func DeepCopy(dst, src interface{}) {
	dstValue := reflect.ValueOf(dst).Elem()
	srcValue := reflect.ValueOf(src).Elem()

	deepCopyValue(dstValue, srcValue)
}

// Clone returns a deep copy of src.
func Clone[T any](src T) T {
	var dst T
	DeepCopy(&dst, &src)

	return dst
}

// deepCopyValue is a recursive helper function that performs the actual deep copy logic
// for various kinds of values, including pointers, interfaces, structs, slices, arrays, and maps.
// Unexported struct fields cannot be set through reflection and are left to their zero value,
// so values such as time.Time are copied as a whole instead of field by field.
func deepCopyValue(dst, src reflect.Value) {
	switch src.Kind() {
	case reflect.Ptr:
		if !src.IsNil() {
			dst.Set(reflect.New(src.Elem().Type()))
			deepCopyValue(dst.Elem(), src.Elem())
		}
	case reflect.Interface:
		if !src.IsNil() {
			concrete := reflect.New(src.Elem().Type()).Elem()
			deepCopyValue(concrete, src.Elem())
			dst.Set(concrete)
		}
	case reflect.Struct:
		if !allFieldsExported(src.Type()) {
			dst.Set(src)
			return
		}

		for i := 0; i < src.NumField(); i++ {
			deepCopyValue(dst.Field(i), src.Field(i))
		}
	case reflect.Slice:
		if !src.IsNil() {
			dst.Set(reflect.MakeSlice(src.Type(), src.Len(), src.Cap()))
			for i := 0; i < src.Len(); i++ {
				deepCopyValue(dst.Index(i), src.Index(i))
			}
		}
	case reflect.Array:
		for i := 0; i < src.Len(); i++ {
			deepCopyValue(dst.Index(i), src.Index(i))
		}
	case reflect.Map:
		if !src.IsNil() {
			dst.Set(reflect.MakeMapWithSize(src.Type(), src.Len()))
			for _, key := range src.MapKeys() {
				dstValue := reflect.New(src.Type().Elem()).Elem()
				deepCopyValue(dstValue, src.MapIndex(key))
				dst.SetMapIndex(key, dstValue)
			}
		}
	default:
		dst.Set(src)
	}
}

func allFieldsExported(t reflect.Type) bool {
	for i := 0; i < t.NumField(); i++ {
		if !t.Field(i).IsExported() {
			return false
		}
	}

	return true
}
