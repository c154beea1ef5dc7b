package typecodec

import (
	"strings"
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/ipld/go-ipld-prime/datamodel"
	"github.com/serum-errors/go-serum"
	"github.com/warpfork/go-testmark"

	"github.com/HDFGroup/hdf5-json/h5api"
	"github.com/HDFGroup/hdf5-json/pkg/jsonenc"
	"github.com/HDFGroup/hdf5-json/pkg/store"
)

func canon(t *testing.T, n datamodel.Node) string {
	s, err := jsonenc.Canonical(n)
	qt.Assert(t, err, qt.IsNil)
	return s
}

func TestDescriptorFixtures(t *testing.T) {
	doc, err := testmark.ReadFile("testdata/descriptors.md")
	if err != nil {
		t.Fatalf("fixture file parse failed?!: %s", err)
	}
	doc.BuildDirIndex()
	codec := New(nil)
	for _, dir := range doc.DirEnt.ChildrenList {
		t.Run(dir.Name, func(t *testing.T) {
			if rej := dir.Children["reject"]; rej != nil {
				n, err := jsonenc.DecodeBytes(rej.Hunk.Body)
				qt.Assert(t, err, qt.IsNil)
				d, err := ParseNode(n)
				if err == nil {
					_, err = codec.Encode(d)
				}
				qt.Assert(t, serum.Code(err), qt.Equals, h5api.ECodeInvalidType)
				return
			}

			n, err := jsonenc.DecodeBytes(dir.Children["descriptor"].Hunk.Body)
			qt.Assert(t, err, qt.IsNil)
			d, err := ParseNode(n)
			qt.Assert(t, err, qt.IsNil)

			t.Run("round-trip", func(t *testing.T) {
				native, err := codec.Encode(d)
				qt.Assert(t, err, qt.IsNil)
				back, err := codec.Decode(native)
				qt.Assert(t, err, qt.IsNil)
				qt.Assert(t, back, qt.DeepEquals, d)

				rendered, err := Node(back)
				qt.Assert(t, err, qt.IsNil)
				qt.Assert(t, canon(t, rendered), qt.Equals, canon(t, n))
			})

			if v := dir.Children["view"]; v != nil {
				t.Run("view", func(t *testing.T) {
					want, err := jsonenc.DecodeBytes(v.Hunk.Body)
					qt.Assert(t, err, qt.IsNil)
					got, err := ResponseView(d)
					qt.Assert(t, err, qt.IsNil)
					qt.Assert(t, canon(t, got), qt.Equals, canon(t, want))

					// Views parse back to the same descriptor.
					reparsed, err := ParseNode(got)
					qt.Assert(t, err, qt.IsNil)
					if d.Opaque == nil {
						qt.Assert(t, reparsed, qt.DeepEquals, d)
					}
				})
			}

			if s := dir.Children["size"]; s != nil {
				t.Run("size", func(t *testing.T) {
					size, err := codec.ElementSize(d)
					qt.Assert(t, err, qt.IsNil)
					qt.Assert(t, size.String(), qt.Equals, strings.TrimSpace(string(s.Hunk.Body)))
				})
			}
		})
	}
}

type fakeResolver struct {
	byUUID map[string]*store.Type
}

func (r fakeResolver) TypeUUID(addr store.Addr) (string, bool) {
	for uuid, t := range r.byUUID {
		if t.Addr == addr {
			return uuid, true
		}
	}
	return "", false
}

func (r fakeResolver) CommittedType(uuid string) (*store.Type, error) {
	t, ok := r.byUUID[uuid]
	if !ok {
		return nil, h5api.ErrorNotFound("datatype", uuid)
	}
	return t, nil
}

func TestNamedTypes(t *testing.T) {
	const uuid = "0189a0a0-0000-7000-8000-000000000001"
	committed := &store.Type{Class: store.ClassFloat, Size: 4, Order: store.OrderBE, Addr: 4242}
	codec := New(fakeResolver{byUUID: map[string]*store.Type{uuid: committed}})

	d, err := codec.Decode(committed)
	qt.Assert(t, err, qt.IsNil)
	qt.Assert(t, d.Named, qt.DeepEquals, &h5api.NamedType{UUID: uuid})

	inline, err := codec.DecodeInline(committed)
	qt.Assert(t, err, qt.IsNil)
	qt.Assert(t, inline.Float, qt.DeepEquals, &h5api.FloatType{Bits: 32, Order: h5api.ByteOrder_BE})

	// Top level keeps the committed type; nested uses get a transient copy.
	native, err := codec.Encode(d)
	qt.Assert(t, err, qt.IsNil)
	qt.Assert(t, native.Addr, qt.Equals, store.Addr(4242))

	vlen, err := codec.Encode(h5api.TypeDescriptor{Vlen: &h5api.VlenType{Base: d}})
	qt.Assert(t, err, qt.IsNil)
	qt.Assert(t, vlen.Base.Addr, qt.Equals, store.Addr(0))
	qt.Assert(t, vlen.Base.Class, qt.Equals, store.ClassFloat)

	size, err := codec.ElementSize(d)
	qt.Assert(t, err, qt.IsNil)
	qt.Assert(t, size, qt.Equals, Size{Bytes: 4})

	view, err := ResponseView(d)
	qt.Assert(t, err, qt.IsNil)
	s, err := view.AsString()
	qt.Assert(t, err, qt.IsNil)
	qt.Assert(t, s, qt.Equals, "datatypes/"+uuid)

	parsed, err := ParseNode(view)
	qt.Assert(t, err, qt.IsNil)
	qt.Assert(t, parsed, qt.DeepEquals, d)

	_, err = codec.Encode(h5api.TypeDescriptor{Named: &h5api.NamedType{UUID: "0189a0a0-0000-7000-8000-00000000dead"}})
	qt.Assert(t, h5api.IsNotFound(err), qt.IsTrue)

	_, err = New(nil).Encode(d)
	qt.Assert(t, serum.Code(err), qt.Equals, h5api.ECodeInvalidType)
}

func TestPredefinedNames(t *testing.T) {
	for _, tc := range []struct {
		name string
		want h5api.TypeDescriptor
	}{
		{"H5T_STD_I8LE", h5api.TypeDescriptor{Integer: &h5api.IntegerType{Signed: true, Bits: 8, Order: h5api.ByteOrder_LE}}},
		{"H5T_STD_U64BE", h5api.TypeDescriptor{Integer: &h5api.IntegerType{Bits: 64, Order: h5api.ByteOrder_BE}}},
		{"H5T_STD_I32", h5api.TypeDescriptor{Integer: &h5api.IntegerType{Signed: true, Bits: 32, Order: h5api.ByteOrder_LE}}},
		{"H5T_IEEE_F32LE", h5api.TypeDescriptor{Float: &h5api.FloatType{Bits: 32, Order: h5api.ByteOrder_LE}}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			got, err := parsePredefined(tc.name)
			qt.Assert(t, err, qt.IsNil)
			qt.Assert(t, got, qt.DeepEquals, tc.want)
		})
	}
	for _, bad := range []string{"H5T_STD_I12LE", "H5T_IEEE_F16LE", "H5T_NATIVE_INT", "datatypes/short"} {
		_, err := parsePredefined(bad)
		qt.Assert(t, serum.Code(err), qt.Equals, h5api.ECodeInvalidType, qt.Commentf("%s", bad))
	}
}

func TestDecodeVlenProbe(t *testing.T) {
	codec := New(nil)
	str, err := codec.Decode(&store.Type{Class: store.ClassVlen, Base: &store.Type{Class: store.ClassString, Size: 1}})
	qt.Assert(t, err, qt.IsNil)
	qt.Assert(t, str.String, qt.DeepEquals, &h5api.StringType{CharSet: h5api.CharSet_ASCII, Variable: true, Padding: h5api.StrPad_NullTerm})

	seq, err := codec.Decode(&store.Type{Class: store.ClassVlen, Base: &store.Type{Class: store.ClassInteger, Size: 2, Signed: true}})
	qt.Assert(t, err, qt.IsNil)
	qt.Assert(t, seq.Vlen, qt.IsNotNil)
	qt.Assert(t, seq.Vlen.Base.Integer.Base(), qt.Equals, "H5T_STD_I16LE")
}

func TestDepthGuard(t *testing.T) {
	d := h5api.TypeDescriptor{Integer: &h5api.IntegerType{Bits: 8, Order: h5api.ByteOrder_LE}}
	for i := 0; i < MaxDepth+5; i++ {
		d = h5api.TypeDescriptor{Vlen: &h5api.VlenType{Base: d}}
	}
	_, err := New(nil).Encode(d)
	qt.Assert(t, serum.Code(err), qt.Equals, h5api.ECodeInvalidType)
	_, err = Node(d)
	qt.Assert(t, serum.Code(err), qt.Equals, h5api.ECodeInvalidType)

	native := &store.Type{Class: store.ClassInteger, Size: 1}
	for i := 0; i < MaxDepth+5; i++ {
		native = &store.Type{Class: store.ClassVlen, Base: native}
	}
	_, err = New(nil).Decode(native)
	qt.Assert(t, serum.Code(err), qt.Equals, h5api.ECodeInvalidType)
}
