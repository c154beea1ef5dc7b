package typecodec

import (
	"strconv"
	"strings"

	"github.com/ipld/go-ipld-prime/datamodel"
	"github.com/ipld/go-ipld-prime/fluent/qp"
	"github.com/ipld/go-ipld-prime/node/basicnode"

	"github.com/HDFGroup/hdf5-json/h5api"
)

// ParseNode reads a full type descriptor.
//
// The descriptor is either a predefined type name ("H5T_STD_I32LE", "H5T_IEEE_F64BE"),
// a committed type reference ("datatypes/<uuid>"), or a map keyed by "class".
// Unknown keys are ignored, so response views parse as well.
//
// Errors:
//
//   - h5json-error-invalid-type -- when the descriptor is malformed
func ParseNode(n datamodel.Node) (h5api.TypeDescriptor, error) {
	return parseNode(n, 0)
}

func parseNode(n datamodel.Node, depth int) (h5api.TypeDescriptor, error) {
	var d h5api.TypeDescriptor
	if depth > MaxDepth {
		return d, h5api.ErrorInvalidType("type nesting is too deep", [2]string{"depth", strconv.Itoa(depth)})
	}
	switch n.Kind() {
	case datamodel.Kind_String:
		s, _ := n.AsString()
		return parsePredefined(s)
	case datamodel.Kind_Map:
	default:
		return d, h5api.ErrorInvalidType("type must be a string or a map", [2]string{"kind", n.Kind().String()})
	}
	class, err := requireString(n, "class")
	if err != nil {
		return d, err
	}
	if h5api.TypeClass(class) != h5api.TypeClass_Array {
		if _, ok := field(n, "dims"); ok {
			return d, h5api.ErrorInvalidType("'dims' is only supported for array types", [2]string{"class", class})
		}
	}
	switch h5api.TypeClass(class) {
	case h5api.TypeClass_Integer:
		base, err := requireString(n, "base")
		if err != nil {
			return d, err
		}
		it, err := h5api.ParseIntegerBase(base)
		if err != nil {
			return d, err
		}
		d.Integer = &it
	case h5api.TypeClass_Float:
		base, err := requireString(n, "base")
		if err != nil {
			return d, err
		}
		ft, err := h5api.ParseFloatBase(base)
		if err != nil {
			return d, err
		}
		d.Float = &ft
	case h5api.TypeClass_String:
		st, err := parseString(n)
		if err != nil {
			return d, err
		}
		d.String = st
	case h5api.TypeClass_Vlen:
		bn, ok := field(n, "base")
		if !ok {
			return d, missing("base", class)
		}
		base, err := parseNode(bn, depth+1)
		if err != nil {
			return d, err
		}
		d.Vlen = &h5api.VlenType{Base: base}
	case h5api.TypeClass_Array:
		dn, ok := field(n, "dims")
		if !ok {
			return d, missing("dims", class)
		}
		dims, err := parseDims(dn)
		if err != nil {
			return d, err
		}
		bn, ok := field(n, "base")
		if !ok {
			return d, missing("base", class)
		}
		base, err := parseNode(bn, depth+1)
		if err != nil {
			return d, err
		}
		d.Array = &h5api.ArrayType{Dims: dims, Base: base}
	case h5api.TypeClass_Enum:
		et, err := parseEnum(n)
		if err != nil {
			return d, err
		}
		d.Enum = et
	case h5api.TypeClass_Opaque:
		sn, ok := field(n, "size")
		if !ok {
			return d, missing("size", class)
		}
		size, err := sn.AsInt()
		if err != nil || size <= 0 {
			return d, h5api.ErrorInvalidType("opaque 'size' must be a positive integer")
		}
		ot := &h5api.OpaqueType{Size: int(size)}
		if tn, ok := field(n, "tag"); ok {
			ot.Tag, _ = tn.AsString()
		}
		d.Opaque = ot
	case h5api.TypeClass_Reference:
		base, err := requireString(n, "base")
		if err != nil {
			return d, err
		}
		switch h5api.RefKind(base) {
		case h5api.RefKind_Object, h5api.RefKind_Region:
		default:
			return d, h5api.ErrorInvalidType("invalid base type for reference type", [2]string{"base", base})
		}
		d.Reference = &h5api.ReferenceType{Kind: h5api.RefKind(base)}
	case h5api.TypeClass_Compound:
		ct, err := parseCompound(n, depth)
		if err != nil {
			return d, err
		}
		d.Compound = ct
	default:
		return d, h5api.ErrorInvalidType("invalid type class", [2]string{"class", class})
	}
	return d, nil
}

func parsePredefined(s string) (h5api.TypeDescriptor, error) {
	var d h5api.TypeDescriptor
	switch {
	case strings.HasPrefix(s, string(h5api.ObjectKind_Datatype)+"/"):
		kind, uuid, err := h5api.ParseObjectRefString(s)
		if err != nil || kind != h5api.ObjectKind_Datatype {
			return d, h5api.ErrorInvalidType("invalid committed type reference", [2]string{"type", s})
		}
		d.Named = &h5api.NamedType{UUID: uuid}
	case strings.HasPrefix(s, "H5T_STD_I"), strings.HasPrefix(s, "H5T_STD_U"):
		it, err := h5api.ParseIntegerBase(s)
		if err != nil {
			return d, err
		}
		d.Integer = &it
	case strings.HasPrefix(s, "H5T_IEEE_F"):
		ft, err := h5api.ParseFloatBase(s)
		if err != nil {
			return d, err
		}
		d.Float = &ft
	default:
		return d, h5api.ErrorInvalidType("invalid predefined type", [2]string{"type", s})
	}
	return d, nil
}

func parseString(n datamodel.Node) (*h5api.StringType, error) {
	class := string(h5api.TypeClass_String)
	ln, ok := field(n, "length")
	if !ok {
		return nil, missing("length", class)
	}
	cs, err := requireString(n, "charSet")
	if err != nil {
		return nil, err
	}
	st := &h5api.StringType{CharSet: h5api.CharSet(cs)}
	switch ln.Kind() {
	case datamodel.Kind_String:
		s, _ := ln.AsString()
		if s != h5api.LengthVariable {
			return nil, h5api.ErrorInvalidType("string 'length' must be an integer or "+h5api.LengthVariable, [2]string{"length", s})
		}
		st.Variable = true
		st.Padding = h5api.StrPad_NullTerm
	case datamodel.Kind_Int:
		l, _ := ln.AsInt()
		st.Length = int(l)
		st.Padding = h5api.StrPad_NullPad
	default:
		return nil, h5api.ErrorInvalidType("string 'length' must be an integer or " + h5api.LengthVariable)
	}
	if pn, ok := field(n, "strPad"); ok {
		p, err := pn.AsString()
		if err != nil {
			return nil, h5api.ErrorInvalidType("'strPad' must be a string")
		}
		st.Padding = h5api.StrPad(p)
	}
	return st, nil
}

func parseDims(n datamodel.Node) ([]int, error) {
	if n.Kind() == datamodel.Kind_Int {
		v, _ := n.AsInt()
		return []int{int(v)}, nil
	}
	if n.Kind() != datamodel.Kind_List {
		return nil, h5api.ErrorInvalidType("expected list or integer for dims")
	}
	dims := make([]int, 0, n.Length())
	for it := n.ListIterator(); !it.Done(); {
		_, v, err := it.Next()
		if err != nil {
			return nil, h5api.ErrorInvalidType("reading dims: " + err.Error())
		}
		x, err := v.AsInt()
		if err != nil {
			return nil, h5api.ErrorInvalidType("dims must be integers")
		}
		dims = append(dims, int(x))
	}
	return dims, nil
}

func parseEnum(n datamodel.Node) (*h5api.EnumType, error) {
	class := string(h5api.TypeClass_Enum)
	bn, ok := field(n, "base")
	if !ok {
		return nil, missing("base", class)
	}
	if bn.Kind() == datamodel.Kind_Map {
		bc, err := requireString(bn, "class")
		if err != nil {
			return nil, err
		}
		if h5api.TypeClass(bc) != h5api.TypeClass_Integer {
			return nil, h5api.ErrorInvalidType("only integer base types can be used with enum type", [2]string{"class", bc})
		}
	}
	base, err := parseNode(bn, 1)
	if err != nil {
		return nil, err
	}
	if base.Integer == nil {
		return nil, h5api.ErrorInvalidType("only integer base types can be used with enum type")
	}
	mn, ok := field(n, "mapping")
	if !ok {
		return nil, missing("mapping", class)
	}
	if mn.Kind() != datamodel.Kind_Map || mn.Length() == 0 {
		return nil, h5api.ErrorInvalidType("enum 'mapping' must be a non-empty map")
	}
	et := &h5api.EnumType{Base: *base.Integer}
	for it := mn.MapIterator(); !it.Done(); {
		k, v, err := it.Next()
		if err != nil {
			return nil, h5api.ErrorInvalidType("reading enum mapping: " + err.Error())
		}
		label, _ := k.AsString()
		val, err := v.AsInt()
		if err != nil {
			return nil, h5api.ErrorInvalidType("enum values must be integers", [2]string{"label", label})
		}
		et.Mapping = append(et.Mapping, h5api.EnumMember{Name: label, Value: val})
	}
	return et, nil
}

func parseCompound(n datamodel.Node, depth int) (*h5api.CompoundType, error) {
	class := string(h5api.TypeClass_Compound)
	fn, ok := field(n, "fields")
	if !ok {
		return nil, missing("fields", class)
	}
	if fn.Kind() != datamodel.Kind_List {
		return nil, h5api.ErrorInvalidType("expected list type for 'fields'")
	}
	if fn.Length() == 0 {
		return nil, h5api.ErrorInvalidType("no 'field' elements provided")
	}
	ct := &h5api.CompoundType{}
	for it := fn.ListIterator(); !it.Done(); {
		_, f, err := it.Next()
		if err != nil {
			return nil, h5api.ErrorInvalidType("reading fields: " + err.Error())
		}
		if f.Kind() != datamodel.Kind_Map {
			return nil, h5api.ErrorInvalidType("expected map type for field")
		}
		name, err := requireString(f, "name")
		if err != nil {
			return nil, err
		}
		tn, ok := field(f, "type")
		if !ok {
			return nil, h5api.ErrorInvalidType("'type' missing from field", [2]string{"field", name})
		}
		ft, err := parseNode(tn, depth+1)
		if err != nil {
			return nil, err
		}
		ct.Fields = append(ct.Fields, h5api.CompoundField{Name: name, Type: ft})
	}
	return ct, nil
}

func field(n datamodel.Node, key string) (datamodel.Node, bool) {
	v, err := n.LookupByString(key)
	if err != nil || v == nil || v.IsAbsent() || v.IsNull() {
		return nil, false
	}
	return v, true
}

func requireString(n datamodel.Node, key string) (string, error) {
	v, ok := field(n, key)
	if !ok {
		return "", h5api.ErrorInvalidType("'"+key+"' not provided", [2]string{"key", key})
	}
	s, err := v.AsString()
	if err != nil {
		return "", h5api.ErrorInvalidType("'"+key+"' must be a string", [2]string{"key", key})
	}
	return s, nil
}

func missing(key, class string) error {
	return h5api.ErrorInvalidType("'"+key+"' not provided", [2]string{"key", key}, [2]string{"class", class})
}

// Node renders the full descriptor.
//
// Errors:
//
//   - h5json-error-invalid-type -- when the descriptor is empty or nested too deeply
func Node(d h5api.TypeDescriptor) (datamodel.Node, error) {
	return build(func(na datamodel.NodeAssembler) { assembleType(d, false, 0)(na) })
}

// ResponseView renders the compact descriptor used in item views.
// Predefined integer and float types collapse to class and base,
// opaque types to class and size, and committed types to their reference string.
// An enum following the boolean convention is marked with "boolean": true.
//
// Errors:
//
//   - h5json-error-invalid-type -- when the descriptor is empty or nested too deeply
func ResponseView(d h5api.TypeDescriptor) (datamodel.Node, error) {
	return build(func(na datamodel.NodeAssembler) { assembleType(d, true, 0)(na) })
}

// build runs a qp assembly whose root may be a string or a map.
// Assembly errors surface as panics, the same way qp.BuildMap handles them.
func build(fn qp.Assemble) (_ datamodel.Node, err error) {
	defer func() {
		if r := recover(); r != nil {
			rerr, ok := r.(error)
			if !ok {
				panic(r)
			}
			err = rerr
		}
	}()
	nb := basicnode.Prototype.Any.NewBuilder()
	fn(nb)
	return nb.Build(), nil
}

func assembleType(d h5api.TypeDescriptor, view bool, depth int) qp.Assemble {
	if depth > MaxDepth {
		panic(h5api.ErrorInvalidType("type nesting is too deep", [2]string{"depth", strconv.Itoa(depth)}))
	}
	if d.Named != nil {
		return qp.String(h5api.ObjectRefString(h5api.ObjectKind_Datatype, d.Named.UUID))
	}
	class := d.Class()
	if class == "" {
		panic(h5api.ErrorInvalidType("type descriptor is empty"))
	}
	return qp.Map(-1, func(ma datamodel.MapAssembler) {
		qp.MapEntry(ma, "class", qp.String(string(class)))
		switch {
		case d.Integer != nil:
			qp.MapEntry(ma, "base", qp.String(d.Integer.Base()))
		case d.Float != nil:
			qp.MapEntry(ma, "base", qp.String(d.Float.Base()))
		case d.String != nil:
			qp.MapEntry(ma, "charSet", qp.String(string(d.String.CharSet)))
			if d.String.Variable {
				qp.MapEntry(ma, "length", qp.String(h5api.LengthVariable))
			} else {
				qp.MapEntry(ma, "length", qp.Int(int64(d.String.Length)))
			}
			qp.MapEntry(ma, "strPad", qp.String(string(d.String.Padding)))
		case d.Vlen != nil:
			if !view {
				qp.MapEntry(ma, "size", qp.String(h5api.LengthVariable))
			}
			qp.MapEntry(ma, "base", assembleType(d.Vlen.Base, view, depth+1))
		case d.Array != nil:
			qp.MapEntry(ma, "dims", qp.List(int64(len(d.Array.Dims)), func(la datamodel.ListAssembler) {
				for _, v := range d.Array.Dims {
					qp.ListEntry(la, qp.Int(int64(v)))
				}
			}))
			qp.MapEntry(ma, "base", assembleType(d.Array.Base, view, depth+1))
		case d.Enum != nil:
			qp.MapEntry(ma, "base", qp.Map(2, func(ma datamodel.MapAssembler) {
				qp.MapEntry(ma, "class", qp.String(string(h5api.TypeClass_Integer)))
				qp.MapEntry(ma, "base", qp.String(d.Enum.Base.Base()))
			}))
			qp.MapEntry(ma, "mapping", qp.Map(int64(len(d.Enum.Mapping)), func(ma datamodel.MapAssembler) {
				for _, m := range d.Enum.Mapping {
					qp.MapEntry(ma, m.Name, qp.Int(m.Value))
				}
			}))
			if view && d.IsBoolean() {
				qp.MapEntry(ma, "boolean", qp.Bool(true))
			}
		case d.Opaque != nil:
			qp.MapEntry(ma, "size", qp.Int(int64(d.Opaque.Size)))
			if !view {
				qp.MapEntry(ma, "tag", qp.String(d.Opaque.Tag))
			}
		case d.Reference != nil:
			qp.MapEntry(ma, "base", qp.String(string(d.Reference.Kind)))
		case d.Compound != nil:
			qp.MapEntry(ma, "fields", qp.List(int64(len(d.Compound.Fields)), func(la datamodel.ListAssembler) {
				for _, f := range d.Compound.Fields {
					qp.ListEntry(la, qp.Map(2, func(ma datamodel.MapAssembler) {
						qp.MapEntry(ma, "name", qp.String(f.Name))
						qp.MapEntry(ma, "type", assembleType(f.Type, view, depth+1))
					}))
				}
			}))
		}
	})
}
