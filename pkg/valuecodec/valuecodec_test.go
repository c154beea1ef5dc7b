package valuecodec

import (
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/serum-errors/go-serum"

	"github.com/HDFGroup/hdf5-json/h5api"
	"github.com/HDFGroup/hdf5-json/pkg/jsonenc"
	"github.com/HDFGroup/hdf5-json/pkg/store"
	"github.com/HDFGroup/hdf5-json/pkg/store/memstore"
)

const (
	groupUUID = "0a1b2c3d-0000-4000-8000-000000000001"
	dsetUUID  = "0a1b2c3d-0000-4000-8000-000000000002"
)

type fakeRefs struct{}

func (fakeRefs) ObjectID(addr store.Addr) (h5api.ObjectKind, string, error) {
	switch addr {
	case 10:
		return h5api.ObjectKind_Group, groupUUID, nil
	case 20:
		return h5api.ObjectKind_Dataset, dsetUUID, nil
	}
	return "", "", h5api.ErrorNotFound("address", "?")
}

func (fakeRefs) ObjectAddr(kind h5api.ObjectKind, uuid string) (store.Addr, error) {
	switch {
	case kind == h5api.ObjectKind_Group && uuid == groupUUID:
		return 10, nil
	case kind == h5api.ObjectKind_Dataset && uuid == dsetUUID:
		return 20, nil
	}
	return 0, h5api.ErrorNotFound(string(kind), uuid)
}

func (fakeRefs) DatasetRank(uuid string) (store.Addr, int, error) {
	if uuid == dsetUUID {
		return 20, 2, nil
	}
	return 0, 0, h5api.ErrorNotFound("dataset", uuid)
}

var (
	i32  = h5api.TypeDescriptor{Integer: &h5api.IntegerType{Signed: true, Bits: 32, Order: h5api.ByteOrder_LE}}
	u8   = h5api.TypeDescriptor{Integer: &h5api.IntegerType{Bits: 8, Order: h5api.ByteOrder_LE}}
	f64  = h5api.TypeDescriptor{Float: &h5api.FloatType{Bits: 64, Order: h5api.ByteOrder_LE}}
	vstr = h5api.TypeDescriptor{String: &h5api.StringType{CharSet: h5api.CharSet_UTF8, Variable: true, Padding: h5api.StrPad_NullTerm}}
)

func TestRoundTrip(t *testing.T) {
	c := New(nil, fakeRefs{})
	for _, tc := range []struct {
		name  string
		typ   h5api.TypeDescriptor
		dims  []int
		value any
		flat  []any
	}{
		{
			name:  "int matrix",
			typ:   i32,
			dims:  []int{2, 3},
			value: []any{[]any{int64(1), int64(2), int64(3)}, []any{int64(4), int64(5), int64(-6)}},
			flat:  []any{int64(1), int64(2), int64(3), int64(4), int64(5), int64(-6)},
		},
		{
			name:  "scalar float",
			typ:   f64,
			value: 2.5,
			flat:  []any{2.5},
		},
		{
			name:  "fixed string",
			typ:   h5api.TypeDescriptor{String: &h5api.StringType{CharSet: h5api.CharSet_ASCII, Length: 6, Padding: h5api.StrPad_NullPad}},
			dims:  []int{2},
			value: []any{"abc", "defghi"},
			flat:  []any{[]byte("abc"), []byte("defghi")},
		},
		{
			name:  "compound",
			typ:   h5api.TypeDescriptor{Compound: &h5api.CompoundType{Fields: []h5api.CompoundField{{Name: "a", Type: i32}, {Name: "b", Type: vstr}}}},
			dims:  []int{1},
			value: []any{[]any{int64(7), "x"}},
			flat:  []any{[]any{int64(7), "x"}},
		},
		{
			name:  "vlen",
			typ:   h5api.TypeDescriptor{Vlen: &h5api.VlenType{Base: i32}},
			dims:  []int{2},
			value: []any{[]any{int64(1)}, []any{int64(2), int64(3)}},
			flat:  []any{[]any{int64(1)}, []any{int64(2), int64(3)}},
		},
		{
			name:  "array",
			typ:   h5api.TypeDescriptor{Array: &h5api.ArrayType{Dims: []int{2, 2}, Base: u8}},
			value: []any{[]any{int64(1), int64(2)}, []any{int64(3), int64(4)}},
			flat:  []any{[]any{int64(1), int64(2), int64(3), int64(4)}},
		},
		{
			name:  "opaque",
			typ:   h5api.TypeDescriptor{Opaque: &h5api.OpaqueType{Size: 2}},
			dims:  []int{1},
			value: []any{[]any{int64(0xca), int64(0xfe)}},
			flat:  []any{[]byte{0xca, 0xfe}},
		},
		{
			name:  "object refs",
			typ:   h5api.TypeDescriptor{Reference: &h5api.ReferenceType{Kind: h5api.RefKind_Object}},
			dims:  []int{2},
			value: []any{"groups/" + groupUUID, "null"},
			flat:  []any{store.ObjectRef{Addr: 10}, store.ObjectRef{}},
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			flat, err := c.Encode(tc.typ, tc.value, tc.dims)
			qt.Assert(t, err, qt.IsNil)
			qt.Assert(t, flat, qt.DeepEquals, tc.flat)
			back, err := c.Decode(tc.typ, flat, tc.dims)
			qt.Assert(t, err, qt.IsNil)
			qt.Assert(t, back, qt.DeepEquals, tc.value)
		})
	}
}

func TestEnumLabels(t *testing.T) {
	c := New(nil, nil)
	enum := h5api.TypeDescriptor{Enum: &h5api.EnumType{
		Base:    h5api.IntegerType{Bits: 8, Order: h5api.ByteOrder_LE},
		Mapping: []h5api.EnumMember{{Name: "RED", Value: 0}, {Name: "BLUE", Value: 2}},
	}}
	flat, err := c.Encode(enum, []any{"BLUE", int64(0)}, []int{2})
	qt.Assert(t, err, qt.IsNil)
	qt.Assert(t, flat, qt.DeepEquals, []any{int64(2), int64(0)})

	_, err = c.Encode(enum, []any{"GREEN"}, []int{1})
	qt.Assert(t, serum.Code(err), qt.Equals, h5api.ECodeInvalidArgument)
}

func TestShapeMismatch(t *testing.T) {
	c := New(nil, nil)
	compound := h5api.TypeDescriptor{Compound: &h5api.CompoundType{Fields: []h5api.CompoundField{{Name: "a", Type: i32}, {Name: "b", Type: i32}}}}

	_, err := c.Decode(compound, []any{[]any{int64(1)}}, []int{1})
	qt.Check(t, serum.Code(err), qt.Equals, h5api.ECodeShapeMismatch)

	_, err = c.Encode(compound, []any{[]any{int64(1), int64(2), int64(3)}}, []int{1})
	qt.Check(t, serum.Code(err), qt.Equals, h5api.ECodeShapeMismatch)

	_, err = c.Encode(i32, []any{int64(1), int64(2)}, []int{3})
	qt.Check(t, serum.Code(err), qt.Equals, h5api.ECodeShapeMismatch)

	_, err = c.Decode(i32, []any{int64(1), int64(2)}, []int{3})
	qt.Check(t, serum.Code(err), qt.Equals, h5api.ECodeShapeMismatch)
}

func TestIntegerRange(t *testing.T) {
	c := New(nil, nil)
	_, err := c.Encode(u8, int64(256), nil)
	qt.Check(t, serum.Code(err), qt.Equals, h5api.ECodeInvalidArgument)
	_, err = c.Encode(u8, int64(-1), nil)
	qt.Check(t, serum.Code(err), qt.Equals, h5api.ECodeInvalidArgument)
	_, err = c.Encode(i32, 1.5, nil)
	qt.Check(t, serum.Code(err), qt.Equals, h5api.ECodeInvalidArgument)

	flat, err := c.Encode(i32, float64(-2147483648), nil)
	qt.Assert(t, err, qt.IsNil)
	qt.Check(t, flat, qt.DeepEquals, []any{int64(-2147483648)})

	u64 := h5api.TypeDescriptor{Integer: &h5api.IntegerType{Bits: 64, Order: h5api.ByteOrder_LE}}
	flat, err = c.Encode(u64, uint64(1<<63), nil)
	qt.Assert(t, err, qt.IsNil)
	qt.Check(t, flat, qt.DeepEquals, []any{uint64(1 << 63)})
}

func TestNullTermScalar(t *testing.T) {
	c := New(nil, nil)
	st := h5api.TypeDescriptor{String: &h5api.StringType{CharSet: h5api.CharSet_ASCII, Length: 4, Padding: h5api.StrPad_NullTerm}}

	flat, err := c.Encode(st, "abcd", nil)
	qt.Assert(t, err, qt.IsNil)
	qt.Assert(t, flat, qt.DeepEquals, []any{[]byte("abcd")})

	v, err := c.Decode(st, flat, nil)
	qt.Assert(t, err, qt.IsNil)
	qt.Assert(t, v, qt.Equals, "abcd")

	// Same width as the rank-1 path.
	flat, err = c.Encode(st, []any{"abcd"}, []int{1})
	qt.Assert(t, err, qt.IsNil)
	v, err = c.Decode(st, flat, []int{1})
	qt.Assert(t, err, qt.IsNil)
	qt.Assert(t, v, qt.DeepEquals, []any{"abcd"})

	flat, err = c.Encode(st, "abcdef", nil)
	qt.Assert(t, err, qt.IsNil)
	qt.Assert(t, flat, qt.DeepEquals, []any{[]byte("abcd")})

	flat, err = c.Encode(st, "ab", nil)
	qt.Assert(t, err, qt.IsNil)
	v, err = c.Decode(st, flat, nil)
	qt.Assert(t, err, qt.IsNil)
	qt.Assert(t, v, qt.Equals, "ab")

	_, err = c.Encode(st, "é", nil)
	qt.Assert(t, serum.Code(err), qt.Equals, h5api.ECodeInvalidArgument)
}

func TestPaddingTrim(t *testing.T) {
	qt.Check(t, string(trimPadding([]byte("ab\x00cd"), h5api.StrPad_NullTerm)), qt.Equals, "ab")
	qt.Check(t, string(trimPadding([]byte("ab\x00\x00"), h5api.StrPad_NullPad)), qt.Equals, "ab")
	qt.Check(t, string(trimPadding([]byte("ab  "), h5api.StrPad_SpacePad)), qt.Equals, "ab")
}

func TestRegionReferences(t *testing.T) {
	c := New(nil, fakeRefs{})
	region := h5api.TypeDescriptor{Reference: &h5api.ReferenceType{Kind: h5api.RefKind_Region}}

	wire := map[string]any{
		"id":          dsetUUID,
		"select_type": "H5S_SEL_HYPERSLABS",
		"selection":   []any{[]any{[]any{int64(2), int64(2)}, []any{int64(5), int64(5)}}},
	}
	flat, err := c.Encode(region, wire, nil)
	qt.Assert(t, err, qt.IsNil)
	qt.Assert(t, flat, qt.DeepEquals, []any{store.RegionRef{
		Addr:   20,
		Kind:   store.SelectHyperslabs,
		Blocks: []store.Block{{Start: []int{2, 2}, End: []int{4, 4}}},
	}})
	back, err := c.Decode(region, flat, nil)
	qt.Assert(t, err, qt.IsNil)
	qt.Assert(t, back, qt.DeepEquals, wire)

	points := map[string]any{
		"id":          dsetUUID,
		"select_type": "H5S_SEL_POINTS",
		"selection":   []any{[]any{int64(0), int64(1)}, []any{int64(3), int64(3)}},
	}
	flat, err = c.Encode(region, points, nil)
	qt.Assert(t, err, qt.IsNil)
	back, err = c.Decode(region, flat, nil)
	qt.Assert(t, err, qt.IsNil)
	qt.Assert(t, back, qt.DeepEquals, points)

	t.Run("null regions", func(t *testing.T) {
		for _, v := range []any{nil, "", map[string]any{}, map[string]any{"select_type": "H5S_SEL_NONE"}} {
			flat, err := c.Encode(region, v, nil)
			qt.Assert(t, err, qt.IsNil)
			qt.Assert(t, flat, qt.DeepEquals, []any{store.RegionRef{}})
		}
		back, err := c.Decode(region, []any{store.RegionRef{}}, nil)
		qt.Assert(t, err, qt.IsNil)
		qt.Assert(t, back, qt.DeepEquals, map[string]any{})
	})

	t.Run("rejections", func(t *testing.T) {
		for name, v := range map[string]map[string]any{
			"no select_type": {"id": dsetUUID},
			"no id":          {"select_type": "H5S_SEL_ALL"},
			"short id":       {"id": "abc", "select_type": "H5S_SEL_ALL"},
			"no selection":   {"id": dsetUUID, "select_type": "H5S_SEL_POINTS"},
			"point rank":     {"id": dsetUUID, "select_type": "H5S_SEL_POINTS", "selection": []any{[]any{int64(1)}}},
			"stop not after start": {"id": dsetUUID, "select_type": "H5S_SEL_HYPERSLABS",
				"selection": []any{[]any{[]any{int64(2), int64(2)}, []any{int64(2), int64(5)}}}},
			"negative start": {"id": dsetUUID, "select_type": "H5S_SEL_HYPERSLABS",
				"selection": []any{[]any{[]any{int64(-1), int64(0)}, []any{int64(2), int64(5)}}}},
		} {
			_, err := c.Encode(region, v, nil)
			qt.Check(t, serum.Code(err), qt.Equals, h5api.ECodeInvalidArgument, qt.Commentf("%s", name))
		}
		_, err := c.Encode(region, map[string]any{"id": groupUUID, "select_type": "H5S_SEL_ALL"}, nil)
		qt.Check(t, serum.Code(err), qt.Equals, h5api.ECodeNotFound)
	})
}

func TestObjectRefRejections(t *testing.T) {
	c := New(nil, fakeRefs{})
	ref := h5api.TypeDescriptor{Reference: &h5api.ReferenceType{Kind: h5api.RefKind_Object}}

	_, err := c.Encode(ref, "groups/short", nil)
	qt.Check(t, serum.Code(err), qt.Equals, h5api.ECodeInvalidArgument)
	_, err = c.Encode(ref, "datasets/"+groupUUID, nil)
	qt.Check(t, serum.Code(err), qt.Equals, h5api.ECodeNotFound)

	// A reference whose target is gone reads as null.
	v, err := c.Decode(ref, []any{store.ObjectRef{Addr: 99}}, nil)
	qt.Assert(t, err, qt.IsNil)
	qt.Assert(t, v, qt.IsNil)
}

func TestRaw(t *testing.T) {
	c := New(nil, nil)
	i16be := h5api.TypeDescriptor{Integer: &h5api.IntegerType{Signed: true, Bits: 16, Order: h5api.ByteOrder_BE}}
	f32 := h5api.TypeDescriptor{Float: &h5api.FloatType{Bits: 32, Order: h5api.ByteOrder_LE}}
	rec := h5api.TypeDescriptor{Compound: &h5api.CompoundType{Fields: []h5api.CompoundField{
		{Name: "a", Type: i16be},
		{Name: "b", Type: f32},
		{Name: "c", Type: h5api.TypeDescriptor{String: &h5api.StringType{CharSet: h5api.CharSet_ASCII, Length: 3, Padding: h5api.StrPad_NullPad}}},
	}}}
	values := []any{
		[]any{int64(-2), 1.5, []byte("ab\x00")},
		[]any{int64(258), -0.25, []byte("xyz")},
	}
	raw, err := c.EncodeRaw(rec, values)
	qt.Assert(t, err, qt.IsNil)
	qt.Assert(t, raw, qt.HasLen, 18)
	qt.Assert(t, raw[:2], qt.DeepEquals, []byte{0xff, 0xfe})
	qt.Assert(t, raw[9:11], qt.DeepEquals, []byte{0x01, 0x02})

	back, err := c.DecodeRaw(rec, raw)
	qt.Assert(t, err, qt.IsNil)
	qt.Assert(t, back, qt.DeepEquals, values)

	_, err = c.DecodeRaw(rec, raw[:5])
	qt.Check(t, serum.Code(err), qt.Equals, h5api.ECodeInvalidArgument)
	_, err = c.EncodeRaw(vstr, []any{"x"})
	qt.Check(t, serum.Code(err), qt.Equals, h5api.ECodeInvalidArgument)
}

func TestIsNullSpace(t *testing.T) {
	st := memstore.New()
	intType := &store.Type{Class: store.ClassInteger, Size: 4, Order: store.OrderLE, Signed: true}

	null, err := st.Root().CreateDataset("null", store.DatasetSpec{Type: intType, Space: store.Space{Class: store.SpaceNull}})
	qt.Assert(t, err, qt.IsNil)
	scalar, err := st.Root().CreateDataset("scalar", store.DatasetSpec{Type: intType, Space: store.Space{Class: store.SpaceScalar}})
	qt.Assert(t, err, qt.IsNil)
	simple, err := st.Root().CreateDataset("simple", store.DatasetSpec{Type: intType, Space: store.Space{Class: store.SpaceSimple, Dims: []int{3}}})
	qt.Assert(t, err, qt.IsNil)

	qt.Check(t, IsNullSpace(null), qt.IsTrue)
	qt.Check(t, IsNullSpace(scalar), qt.IsFalse)
	qt.Check(t, IsNullSpace(simple), qt.IsFalse)
}

func TestNodeBridge(t *testing.T) {
	v := map[string]any{
		"b": int64(1),
		"a": []any{1.5, "x", nil, true},
	}
	n, err := ToNode(v)
	qt.Assert(t, err, qt.IsNil)
	s, err := jsonenc.Canonical(n)
	qt.Assert(t, err, qt.IsNil)
	qt.Assert(t, s, qt.Equals, `{"a":[1.5,"x",null,true],"b":1}`)

	n2, err := jsonenc.DecodeBytes([]byte(s))
	qt.Assert(t, err, qt.IsNil)
	back, err := FromNode(n2)
	qt.Assert(t, err, qt.IsNil)
	qt.Assert(t, back, qt.DeepEquals, any(v))
}
