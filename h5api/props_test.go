package h5api

import (
	"testing"

	qt "github.com/frankban/quicktest"
)

func TestCreationPropertiesFilters(t *testing.T) {
	level := int64(6)
	alloc := "H5D_ALLOC_TIME_EARLY"
	p := &CreationProperties{
		Layout:    &Layout{Class: string(LayoutClass_Chunked), Dims: &[]int64{4, 4}},
		Filters:   &[]Filter{{Class: "H5Z_FILTER_DEFLATE", Id: 1, Level: &level}, {Class: "H5Z_FILTER_SHUFFLE", Id: 2}},
		AllocTime: &alloc,
	}
	b, err := MarshalCreationProperties(p)
	qt.Assert(t, err, qt.IsNil)
	qt.Check(t, string(b), qt.Contains, `"id":1`)

	back, err := UnmarshalCreationProperties(b)
	qt.Assert(t, err, qt.IsNil)
	qt.Assert(t, back.Filters, qt.IsNotNil)
	qt.Assert(t, *back.Filters, qt.HasLen, 2)
	qt.Check(t, (*back.Filters)[0].Id, qt.Equals, int64(1))
	qt.Check(t, *(*back.Filters)[0].Level, qt.Equals, int64(6))
	qt.Check(t, (*back.Filters)[1].Class, qt.Equals, "H5Z_FILTER_SHUFFLE")
	qt.Check(t, back.ChunkDims(), qt.DeepEquals, []int{4, 4})
	qt.Check(t, *back.AllocTime, qt.Equals, alloc)
}
