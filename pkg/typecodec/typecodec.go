/*
Package typecodec maps between native store types and type descriptors.

Decode and Encode are inverses: for every supported descriptor d,
Decode(Encode(d)) equals d. Committed types show up as Named descriptors,
which the Resolver maps to and from committed store types.

The JSON forms live in json.go: the full descriptor (ParseNode, Node),
and the compact response view used in item views (ResponseView).
*/
package typecodec

import (
	"strconv"

	"github.com/HDFGroup/hdf5-json/h5api"
	"github.com/HDFGroup/hdf5-json/pkg/store"
)

// MaxDepth bounds the nesting of types. Deeper types fail with InvalidType.
const MaxDepth = 32

// Resolver connects committed store types with their uuids.
type Resolver interface {
	// TypeUUID returns the uuid of the committed type at addr.
	TypeUUID(addr store.Addr) (string, bool)
	// CommittedType returns the committed type with the given uuid.
	CommittedType(uuid string) (*store.Type, error)
}

// Codec converts types. The zero value works without committed types.
type Codec struct {
	Resolver Resolver
}

func New(r Resolver) *Codec {
	return &Codec{Resolver: r}
}

// Decode describes a native type.
// A committed type known to the resolver is described as Named.
//
// Errors:
//
//   - h5json-error-invalid-type -- when the native type has no descriptor form
func (c *Codec) Decode(t *store.Type) (h5api.TypeDescriptor, error) {
	if t == nil {
		return h5api.TypeDescriptor{}, h5api.ErrorInvalidType("missing type")
	}
	if t.Addr != 0 && c != nil && c.Resolver != nil {
		if uuid, ok := c.Resolver.TypeUUID(t.Addr); ok {
			return h5api.TypeDescriptor{Named: &h5api.NamedType{UUID: uuid}}, nil
		}
	}
	return decode(t, 0)
}

// DecodeInline describes a native type without collapsing committed types to Named.
//
// Errors:
//
//   - h5json-error-invalid-type -- when the native type has no descriptor form
func (c *Codec) DecodeInline(t *store.Type) (h5api.TypeDescriptor, error) {
	if t == nil {
		return h5api.TypeDescriptor{}, h5api.ErrorInvalidType("missing type")
	}
	return decode(t, 0)
}

func decode(t *store.Type, depth int) (h5api.TypeDescriptor, error) {
	var d h5api.TypeDescriptor
	if depth > MaxDepth {
		return d, h5api.ErrorInvalidType("type nesting is too deep", [2]string{"depth", strconv.Itoa(depth)})
	}
	switch t.Class {
	case store.ClassInteger:
		it, err := decodeInteger(t)
		if err != nil {
			return d, err
		}
		d.Integer = &it
	case store.ClassFloat:
		if t.Size != 4 && t.Size != 8 {
			return d, h5api.ErrorInvalidType("unsupported float size", [2]string{"size", strconv.Itoa(t.Size)})
		}
		d.Float = &h5api.FloatType{Bits: t.Size * 8, Order: decodeOrder(t.Order)}
	case store.ClassString:
		d.String = &h5api.StringType{
			CharSet: decodeCharSet(t.CharSet),
			Length:  t.Size,
			Padding: decodeStrPad(t.StrPad),
		}
	case store.ClassVlen:
		if t.Base == nil {
			return d, h5api.ErrorInvalidType("vlen type without a base")
		}
		// A vlen of characters is a variable length string.
		if t.Base.Class == store.ClassString {
			d.String = &h5api.StringType{
				CharSet:  decodeCharSet(t.Base.CharSet),
				Variable: true,
				Padding:  decodeStrPad(t.Base.StrPad),
			}
			return d, nil
		}
		base, err := decode(t.Base, depth+1)
		if err != nil {
			return d, err
		}
		d.Vlen = &h5api.VlenType{Base: base}
	case store.ClassArray:
		if t.Base == nil || len(t.Dims) == 0 {
			return d, h5api.ErrorInvalidType("array type without a base or dims")
		}
		base, err := decode(t.Base, depth+1)
		if err != nil {
			return d, err
		}
		d.Array = &h5api.ArrayType{Dims: append([]int(nil), t.Dims...), Base: base}
	case store.ClassEnum:
		base := t.Base
		if base == nil {
			base = &store.Type{Class: store.ClassInteger, Size: t.Size, Order: t.Order, Signed: t.Signed}
		}
		if base.Class != store.ClassInteger {
			return d, h5api.ErrorInvalidType("enum base must be an integer type")
		}
		it, err := decodeInteger(base)
		if err != nil {
			return d, err
		}
		et := &h5api.EnumType{Base: it}
		for _, ev := range t.Enum {
			et.Mapping = append(et.Mapping, h5api.EnumMember{Name: ev.Name, Value: ev.Value})
		}
		d.Enum = et
	case store.ClassOpaque:
		d.Opaque = &h5api.OpaqueType{Size: t.Size, Tag: t.Tag}
	case store.ClassReference:
		switch t.RefKind {
		case store.RefObject:
			d.Reference = &h5api.ReferenceType{Kind: h5api.RefKind_Object}
		case store.RefRegion:
			d.Reference = &h5api.ReferenceType{Kind: h5api.RefKind_Region}
		default:
			return d, h5api.ErrorInvalidType("unknown reference kind")
		}
	case store.ClassCompound:
		ct := &h5api.CompoundType{}
		for _, m := range t.Members {
			ft, err := decode(m.Type, depth+1)
			if err != nil {
				return d, err
			}
			ct.Fields = append(ct.Fields, h5api.CompoundField{Name: m.Name, Type: ft})
		}
		d.Compound = ct
	default:
		return d, h5api.ErrorInvalidType("unknown type class", [2]string{"class", t.Class.String()})
	}
	return d, nil
}

func decodeInteger(t *store.Type) (h5api.IntegerType, error) {
	switch t.Size {
	case 1, 2, 4, 8:
	default:
		return h5api.IntegerType{}, h5api.ErrorInvalidType("unsupported integer size", [2]string{"size", strconv.Itoa(t.Size)})
	}
	return h5api.IntegerType{Signed: t.Signed, Bits: t.Size * 8, Order: decodeOrder(t.Order)}, nil
}

func decodeOrder(o store.Order) h5api.ByteOrder {
	if o == store.OrderBE {
		return h5api.ByteOrder_BE
	}
	return h5api.ByteOrder_LE
}

func decodeCharSet(cs store.CharSet) h5api.CharSet {
	if cs == store.CharSetUTF8 {
		return h5api.CharSet_UTF8
	}
	return h5api.CharSet_ASCII
}

func decodeStrPad(p store.StrPad) h5api.StrPad {
	switch p {
	case store.StrPadNullPad:
		return h5api.StrPad_NullPad
	case store.StrPadSpacePad:
		return h5api.StrPad_SpacePad
	}
	return h5api.StrPad_NullTerm
}

// Encode builds the native type for a descriptor.
// A top level Named descriptor yields the committed type itself,
// so objects created with it share the committed type.
// Named descriptors nested in other types are copied in.
//
// Errors:
//
//   - h5json-error-invalid-type -- when the descriptor is incomplete or not supported
//   - h5json-error-not-found -- when a Named descriptor does not resolve
func (c *Codec) Encode(d h5api.TypeDescriptor) (*store.Type, error) {
	if d.Named != nil {
		return c.resolveNamed(d.Named)
	}
	return c.encode(d, 0)
}

func (c *Codec) resolveNamed(n *h5api.NamedType) (*store.Type, error) {
	if c == nil || c.Resolver == nil {
		return nil, h5api.ErrorInvalidType("committed types are not available here", [2]string{"uuid", n.UUID})
	}
	return c.Resolver.CommittedType(n.UUID)
}

func (c *Codec) encode(d h5api.TypeDescriptor, depth int) (*store.Type, error) {
	if depth > MaxDepth {
		return nil, h5api.ErrorInvalidType("type nesting is too deep", [2]string{"depth", strconv.Itoa(depth)})
	}
	switch {
	case d.Named != nil:
		t, err := c.resolveNamed(d.Named)
		if err != nil {
			return nil, err
		}
		return t.Clone(), nil
	case d.Integer != nil:
		return encodeInteger(*d.Integer)
	case d.Float != nil:
		if d.Float.Bits != 32 && d.Float.Bits != 64 {
			return nil, h5api.ErrorInvalidType("unsupported float precision", [2]string{"bits", strconv.Itoa(d.Float.Bits)})
		}
		order, err := encodeOrder(d.Float.Order)
		if err != nil {
			return nil, err
		}
		return &store.Type{Class: store.ClassFloat, Size: d.Float.Bits / 8, Order: order}, nil
	case d.String != nil:
		return encodeString(*d.String)
	case d.Compound != nil:
		if len(d.Compound.Fields) == 0 {
			return nil, h5api.ErrorInvalidType("compound type has no fields")
		}
		t := &store.Type{Class: store.ClassCompound}
		seen := map[string]bool{}
		for _, f := range d.Compound.Fields {
			if f.Name == "" || !isASCII(f.Name) {
				return nil, h5api.ErrorInvalidType("compound field names must be non-empty ascii", [2]string{"field", f.Name})
			}
			if seen[f.Name] {
				return nil, h5api.ErrorInvalidType("duplicate compound field", [2]string{"field", f.Name})
			}
			seen[f.Name] = true
			ft, err := c.encode(f.Type, depth+1)
			if err != nil {
				return nil, err
			}
			t.Members = append(t.Members, store.Member{Name: f.Name, Type: ft})
			t.Size += ft.Size
		}
		return t, nil
	case d.Vlen != nil:
		if d.Vlen.Base.IsZero() {
			return nil, h5api.ErrorInvalidType("vlen type needs a base")
		}
		base, err := c.encode(d.Vlen.Base, depth+1)
		if err != nil {
			return nil, err
		}
		return &store.Type{Class: store.ClassVlen, Base: base}, nil
	case d.Array != nil:
		if len(d.Array.Dims) == 0 {
			return nil, h5api.ErrorInvalidType("array type needs dims")
		}
		for _, n := range d.Array.Dims {
			if n <= 0 {
				return nil, h5api.ErrorInvalidType("array dims must be positive", [2]string{"dim", strconv.Itoa(n)})
			}
		}
		base, err := c.encode(d.Array.Base, depth+1)
		if err != nil {
			return nil, err
		}
		switch {
		case base.Class == store.ClassInteger, base.Class == store.ClassFloat,
			base.Class == store.ClassString, base.IsVariableString():
		default:
			return nil, h5api.ErrorInvalidType("array base type must be integer, float, or string")
		}
		t := &store.Type{Class: store.ClassArray, Base: base, Dims: append([]int(nil), d.Array.Dims...)}
		t.Size = base.Size * t.ArrayLen()
		return t, nil
	case d.Enum != nil:
		base, err := encodeInteger(d.Enum.Base)
		if err != nil {
			return nil, err
		}
		if len(d.Enum.Mapping) == 0 {
			return nil, h5api.ErrorInvalidType("enum type needs a mapping")
		}
		t := &store.Type{Class: store.ClassEnum, Size: base.Size, Order: base.Order, Signed: base.Signed, Base: base}
		seen := map[string]bool{}
		for _, m := range d.Enum.Mapping {
			if seen[m.Name] {
				return nil, h5api.ErrorInvalidType("duplicate enum label", [2]string{"label", m.Name})
			}
			seen[m.Name] = true
			t.Enum = append(t.Enum, store.EnumValue{Name: m.Name, Value: m.Value})
		}
		return t, nil
	case d.Opaque != nil:
		if d.Opaque.Size <= 0 {
			return nil, h5api.ErrorInvalidType("opaque size must be positive", [2]string{"size", strconv.Itoa(d.Opaque.Size)})
		}
		return &store.Type{Class: store.ClassOpaque, Size: d.Opaque.Size, Tag: d.Opaque.Tag}, nil
	case d.Reference != nil:
		switch d.Reference.Kind {
		case h5api.RefKind_Object:
			return &store.Type{Class: store.ClassReference, Size: 8, RefKind: store.RefObject}, nil
		case h5api.RefKind_Region:
			return &store.Type{Class: store.ClassReference, Size: 12, RefKind: store.RefRegion}, nil
		}
		return nil, h5api.ErrorInvalidType("invalid base type for reference type", [2]string{"base", string(d.Reference.Kind)})
	}
	return nil, h5api.ErrorInvalidType("type descriptor is empty")
}

func encodeInteger(it h5api.IntegerType) (*store.Type, error) {
	switch it.Bits {
	case 8, 16, 32, 64:
	default:
		return nil, h5api.ErrorInvalidType("unsupported integer precision", [2]string{"bits", strconv.Itoa(it.Bits)})
	}
	order, err := encodeOrder(it.Order)
	if err != nil {
		return nil, err
	}
	return &store.Type{Class: store.ClassInteger, Size: it.Bits / 8, Order: order, Signed: it.Signed}, nil
}

func encodeOrder(o h5api.ByteOrder) (store.Order, error) {
	switch o {
	case h5api.ByteOrder_LE, "":
		return store.OrderLE, nil
	case h5api.ByteOrder_BE:
		return store.OrderBE, nil
	}
	return 0, h5api.ErrorInvalidType("unknown byte order", [2]string{"order", string(o)})
}

func encodeString(st h5api.StringType) (*store.Type, error) {
	var cs store.CharSet
	switch st.CharSet {
	case h5api.CharSet_ASCII:
		cs = store.CharSetASCII
	case h5api.CharSet_UTF8:
		cs = store.CharSetUTF8
	case "":
		return nil, h5api.ErrorInvalidType("string type needs a charSet")
	default:
		return nil, h5api.ErrorInvalidType("unexpected charSet value", [2]string{"charSet", string(st.CharSet)})
	}
	var pad store.StrPad
	switch st.Padding {
	case h5api.StrPad_NullTerm, "":
		pad = store.StrPadNullTerm
	case h5api.StrPad_NullPad:
		pad = store.StrPadNullPad
	case h5api.StrPad_SpacePad:
		pad = store.StrPadSpacePad
	default:
		return nil, h5api.ErrorInvalidType("unexpected strPad value", [2]string{"strPad", string(st.Padding)})
	}
	if st.Variable {
		return &store.Type{Class: store.ClassVlen, Base: &store.Type{Class: store.ClassString, Size: 1, CharSet: cs, StrPad: pad}}, nil
	}
	if cs == store.CharSetUTF8 {
		return nil, h5api.ErrorInvalidType("fixed-width unicode strings are not supported")
	}
	if st.Length <= 0 {
		return nil, h5api.ErrorInvalidType("fixed string length must be positive", [2]string{"length", strconv.Itoa(st.Length)})
	}
	return &store.Type{Class: store.ClassString, Size: st.Length, CharSet: cs, StrPad: pad}, nil
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= 0x80 {
			return false
		}
	}
	return true
}
