package heapgraph

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetStaticClassTypeName(t *testing.T) {
	tests := []struct {
		input  string
		want   string
		wantOK bool
	}{
		{"java.lang.Class<java.lang.String>", "java.lang.String", true},
		{"java.lang.Class<foo.Bar[]>", "foo.Bar[]", true},
		{"java.lang.String", "", false},
		{"java.lang.Class<", "", false},
		{"java.lang.Class<>", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := GetStaticClassTypeName(tt.input)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNumberOfArrays(t *testing.T) {
	assert.Equal(t, 0, NumberOfArrays("java.lang.String"))
	assert.Equal(t, 1, NumberOfArrays("java.lang.String[]"))
	assert.Equal(t, 3, NumberOfArrays("int[][][]"))
	assert.Equal(t, 0, NumberOfArrays(""))
	assert.Equal(t, 1, NumberOfArrays("[]"))
}

func TestGetNormalizedType(t *testing.T) {
	tests := []struct {
		input string
		want  NormalizedType
	}{
		{"java.lang.String", NormalizedType{Name: "java.lang.String"}},
		{"java.lang.String[]", NormalizedType{Name: "java.lang.String", NumberOfArrays: 1}},
		{"java.lang.Class<foo.Bar>", NormalizedType{Name: "foo.Bar", IsStaticClass: true}},
		{"java.lang.Class<foo.Bar[][]>", NormalizedType{Name: "foo.Bar", IsStaticClass: true, NumberOfArrays: 2}},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, GetNormalizedType(tt.input))
		})
	}
}

func TestDenormalizeTypeName_RoundTrip(t *testing.T) {
	// Denormalizing with the original base name must reproduce the input
	// exactly, for any shape.
	inputs := []string{
		"java.lang.String",
		"java.lang.String[]",
		"int[][][]",
		"java.lang.Class<foo.Bar>",
		"java.lang.Class<foo.Bar[]>",
	}
	for _, input := range inputs {
		shape := GetNormalizedType(input)
		assert.Equal(t, input, DenormalizeTypeName(shape, shape.Name))
	}
}

func TestDenormalizeTypeName_Substitute(t *testing.T) {
	shape := GetNormalizedType("java.lang.Class<a.b.C[]>")
	assert.Equal(t, "java.lang.Class<x.y.Z[]>", DenormalizeTypeName(shape, "x.y.Z"))

	shape = GetNormalizedType("a.b.C[][]")
	assert.Equal(t, "x.y.Z[][]", DenormalizeTypeName(shape, "x.y.Z"))
}
