package heapgraph

import "strings"

// staticClassPrefix wraps the type name of a static-class descriptor
// object, e.g. "java.lang.Class<java.lang.String>".
const staticClassPrefix = "java.lang.Class<"

// NormalizedType is the shape of a type name with array and static-class
// wrapping stripped. Denormalize re-applies the shape to a (possibly
// substituted) base name.
type NormalizedType struct {
	Name           string
	IsStaticClass  bool
	NumberOfArrays int
}

// GetStaticClassTypeName unwraps a static-class descriptor type name,
// returning the wrapped class name and true, or ("", false) if the name is
// not wrapped.
func GetStaticClassTypeName(typ string) (string, bool) {
	if len(typ) > len(staticClassPrefix) &&
		strings.HasPrefix(typ, staticClassPrefix) &&
		typ[len(typ)-1] == '>' {
		return typ[len(staticClassPrefix) : len(typ)-1], true
	}
	return "", false
}

// NumberOfArrays counts trailing "[]" repetitions of a type name.
func NumberOfArrays(typ string) int {
	n := 0
	for len(typ) >= 2 && strings.HasSuffix(typ, "[]") {
		typ = typ[:len(typ)-2]
		n++
	}
	return n
}

// GetNormalizedType strips static-class wrapping and array suffixes,
// recording both in the returned shape descriptor.
func GetNormalizedType(typ string) NormalizedType {
	name := typ
	inner, isStatic := GetStaticClassTypeName(typ)
	if isStatic {
		name = inner
	}
	arrays := NumberOfArrays(name)
	return NormalizedType{
		Name:           name[:len(name)-2*arrays],
		IsStaticClass:  isStatic,
		NumberOfArrays: arrays,
	}
}

// NormalizeTypeName returns the base name of typ with array and
// static-class wrapping stripped.
func NormalizeTypeName(typ string) string {
	return GetNormalizedType(typ).Name
}

// DenormalizeTypeName re-applies a recorded shape to name: the exact
// inverse of GetNormalizedType given the same shape descriptor.
func DenormalizeTypeName(shape NormalizedType, name string) string {
	var b strings.Builder
	b.Grow(len(name) + 2*shape.NumberOfArrays + len(staticClassPrefix) + 1)
	if shape.IsStaticClass {
		b.WriteString(staticClassPrefix)
	}
	b.WriteString(name)
	for i := 0; i < shape.NumberOfArrays; i++ {
		b.WriteString("[]")
	}
	if shape.IsStaticClass {
		b.WriteByte('>')
	}
	return b.String()
}
