/*
Package valuecodec converts between native values, in the flat row-major form
the store uses, and JSON value trees.

A JSON value tree is built from nil, bool, int64, uint64, float64, string,
[]any and map[string]any. The nesting depth of a decoded dataset value always
equals its rank; scalars are bare elements.
Compound elements are lists of field values in declaration order.
Object references are "<collection>/<uuid>" strings, and region references are
maps with "id", "select_type" and "selection".
*/
package valuecodec

import (
	"fmt"
	"math"
	"strconv"
	"unicode/utf8"

	"github.com/HDFGroup/hdf5-json/h5api"
	"github.com/HDFGroup/hdf5-json/pkg/typecodec"
)

// Codec converts values. Types resolves Named descriptors;
// Refs is needed only for reference types.
type Codec struct {
	Types *typecodec.Codec
	Refs  RefResolver
}

func New(types *typecodec.Codec, refs RefResolver) *Codec {
	return &Codec{Types: types, Refs: refs}
}

// Decode builds the JSON value of flat values shaped by dims.
// Empty dims mean a scalar, and values must hold exactly one element.
//
// Errors:
//
//   - h5json-error-shape-mismatch -- when the values do not fit dims or the type
//   - h5json-error-invalid-type -- when the descriptor is malformed
//   - h5json-error-not-found -- when a Named descriptor does not resolve
func (c *Codec) Decode(d h5api.TypeDescriptor, values []any, dims []int) (any, error) {
	d, err := c.expand(d, 0)
	if err != nil {
		return nil, err
	}
	if want := product(dims); len(values) != want {
		return nil, h5api.ErrorShapeMismatch("number of values does not match the shape",
			[2]string{"values", strconv.Itoa(len(values))},
			[2]string{"elements", strconv.Itoa(want)},
		)
	}
	if len(dims) == 0 {
		return c.decodeElement(d, values[0], 0)
	}
	return c.decodeNested(d, values, dims, 0)
}

// decodeNested rebuilds one nesting level per dimension.
func (c *Codec) decodeNested(d h5api.TypeDescriptor, values []any, dims []int, depth int) (any, error) {
	if len(dims) == 0 {
		return c.decodeElement(d, values[0], depth)
	}
	n := dims[0]
	stride := product(dims[1:])
	out := make([]any, n)
	for i := 0; i < n; i++ {
		v, err := c.decodeNested(d, values[i*stride:(i+1)*stride], dims[1:], depth)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (c *Codec) decodeElement(d h5api.TypeDescriptor, v any, depth int) (any, error) {
	if depth > typecodec.MaxDepth {
		return nil, h5api.ErrorInvalidType("type nesting is too deep")
	}
	switch {
	case d.Integer != nil, d.Enum != nil:
		switch x := v.(type) {
		case int64, uint64:
			return x, nil
		}
		return nil, mismatch("integer", v)
	case d.Float != nil:
		if f, ok := v.(float64); ok {
			return f, nil
		}
		return nil, mismatch("float", v)
	case d.String != nil:
		return decodeString(d.String, v)
	case d.Opaque != nil:
		b, ok := v.([]byte)
		if !ok {
			return nil, mismatch("opaque", v)
		}
		out := make([]any, len(b))
		for i, x := range b {
			out[i] = int64(x)
		}
		return out, nil
	case d.Compound != nil:
		fields, ok := v.([]any)
		if !ok {
			return nil, mismatch("compound", v)
		}
		if len(fields) != len(d.Compound.Fields) {
			return nil, h5api.ErrorShapeMismatch("number of elements in compound type does not match type",
				[2]string{"fields", strconv.Itoa(len(d.Compound.Fields))},
				[2]string{"values", strconv.Itoa(len(fields))},
			)
		}
		out := make([]any, len(fields))
		for i, f := range d.Compound.Fields {
			x, err := c.decodeElement(f.Type, fields[i], depth+1)
			if err != nil {
				return nil, err
			}
			out[i] = x
		}
		return out, nil
	case d.Vlen != nil:
		seq, ok := v.([]any)
		if !ok {
			return nil, mismatch("vlen", v)
		}
		out := make([]any, len(seq))
		for i, e := range seq {
			x, err := c.decodeElement(d.Vlen.Base, e, depth+1)
			if err != nil {
				return nil, err
			}
			out[i] = x
		}
		return out, nil
	case d.Array != nil:
		flat, ok := v.([]any)
		if !ok {
			return nil, mismatch("array", v)
		}
		if len(flat) != product(d.Array.Dims) {
			return nil, h5api.ErrorShapeMismatch("array element does not match its dims")
		}
		return c.decodeNested(d.Array.Base, flat, d.Array.Dims, depth+1)
	case d.Reference != nil:
		return c.decodeRef(d.Reference, v)
	}
	return nil, h5api.ErrorInvalidType("type descriptor is empty")
}

func decodeString(st *h5api.StringType, v any) (any, error) {
	if st.Variable {
		switch x := v.(type) {
		case string:
			return x, nil
		case []byte:
			return string(x), nil
		}
		return nil, mismatch("string", v)
	}
	b, ok := v.([]byte)
	if !ok {
		if s, isStr := v.(string); isStr {
			b = []byte(s)
		} else {
			return nil, mismatch("string", v)
		}
	}
	return string(trimPadding(b, st.Padding)), nil
}

// trimPadding strips what the padding mode added.
func trimPadding(b []byte, pad h5api.StrPad) []byte {
	switch pad {
	case h5api.StrPad_NullTerm:
		for i, x := range b {
			if x == 0 {
				return b[:i]
			}
		}
		return b
	case h5api.StrPad_SpacePad:
		end := len(b)
		for end > 0 && (b[end-1] == ' ' || b[end-1] == 0) {
			end--
		}
		return b[:end]
	default:
		end := len(b)
		for end > 0 && b[end-1] == 0 {
			end--
		}
		return b[:end]
	}
}

// Encode converts a JSON value shaped by dims into flat native values.
// The nesting of value must match dims exactly.
//
// A scalar fixed length ASCII string with null termination is cut to length bytes,
// the same as one element of a rank-1 value.
//
// Errors:
//
//   - h5json-error-shape-mismatch -- when the value does not match dims or the type's structure
//   - h5json-error-invalid-argument -- when an element is not valid for its type
//   - h5json-error-invalid-type -- when the descriptor is malformed
//   - h5json-error-not-found -- when a reference or Named descriptor does not resolve
func (c *Codec) Encode(d h5api.TypeDescriptor, value any, dims []int) ([]any, error) {
	d, err := c.expand(d, 0)
	if err != nil {
		return nil, err
	}
	if len(dims) == 0 {
		if d.String != nil && !d.String.Variable && d.String.Padding == h5api.StrPad_NullTerm && d.String.CharSet == h5api.CharSet_ASCII {
			return encodeNullTermScalar(d.String, value)
		}
		x, err := c.encodeElement(d, value, 0)
		if err != nil {
			return nil, err
		}
		return []any{x}, nil
	}
	out := make([]any, 0, product(dims))
	return c.encodeNested(d, value, dims, out, 0)
}

func (c *Codec) encodeNested(d h5api.TypeDescriptor, value any, dims []int, out []any, depth int) ([]any, error) {
	if len(dims) == 0 {
		x, err := c.encodeElement(d, value, depth)
		if err != nil {
			return nil, err
		}
		return append(out, x), nil
	}
	seq, ok := value.([]any)
	if !ok || len(seq) != dims[0] {
		return nil, h5api.ErrorShapeMismatch("value does not match the shape",
			[2]string{"extent", strconv.Itoa(dims[0])},
			[2]string{"found", describeLen(value)},
		)
	}
	var err error
	for _, e := range seq {
		out, err = c.encodeNested(d, e, dims[1:], out, depth)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

func encodeNullTermScalar(st *h5api.StringType, value any) ([]any, error) {
	s, ok := value.(string)
	if !ok {
		return nil, badValue("string", value)
	}
	if !isASCII(s) {
		return nil, h5api.ErrorInvalidArgument("non-ascii value not allowed with " + string(h5api.CharSet_ASCII))
	}
	b := make([]byte, st.Length)
	copy(b, s)
	return []any{b}, nil
}

func (c *Codec) encodeElement(d h5api.TypeDescriptor, v any, depth int) (any, error) {
	if depth > typecodec.MaxDepth {
		return nil, h5api.ErrorInvalidType("type nesting is too deep")
	}
	switch {
	case d.Integer != nil:
		return encodeInteger(*d.Integer, v)
	case d.Enum != nil:
		if label, ok := v.(string); ok {
			for _, m := range d.Enum.Mapping {
				if m.Name == label {
					return m.Value, nil
				}
			}
			return nil, h5api.ErrorInvalidArgument("unknown enum label", [2]string{"label", label})
		}
		x, err := encodeInteger(d.Enum.Base, v)
		if err != nil {
			return nil, err
		}
		if u, ok := x.(uint64); ok {
			return int64(u), nil
		}
		return x, nil
	case d.Float != nil:
		switch x := v.(type) {
		case float64:
			return x, nil
		case int64:
			return float64(x), nil
		case uint64:
			return float64(x), nil
		case string:
			// Non-finite values have no JSON number form.
			switch x {
			case "NaN":
				return math.NaN(), nil
			case "Infinity":
				return math.Inf(1), nil
			case "-Infinity":
				return math.Inf(-1), nil
			}
		}
		return nil, badValue("float", v)
	case d.String != nil:
		s, ok := v.(string)
		if !ok {
			return nil, badValue("string", v)
		}
		if d.String.CharSet == h5api.CharSet_ASCII && !isASCII(s) {
			return nil, h5api.ErrorInvalidArgument("non-ascii value not allowed with " + string(h5api.CharSet_ASCII))
		}
		if d.String.CharSet == h5api.CharSet_UTF8 && !utf8.ValidString(s) {
			return nil, h5api.ErrorInvalidArgument("string is not valid utf-8")
		}
		if d.String.Variable {
			return s, nil
		}
		return []byte(s), nil
	case d.Opaque != nil:
		return encodeOpaque(d.Opaque, v)
	case d.Compound != nil:
		seq, ok := v.([]any)
		if !ok || len(seq) != len(d.Compound.Fields) {
			return nil, h5api.ErrorShapeMismatch("number of elements in compound type does not match type",
				[2]string{"fields", strconv.Itoa(len(d.Compound.Fields))},
				[2]string{"found", describeLen(v)},
			)
		}
		out := make([]any, len(seq))
		for i, f := range d.Compound.Fields {
			x, err := c.encodeElement(f.Type, seq[i], depth+1)
			if err != nil {
				return nil, err
			}
			out[i] = x
		}
		return out, nil
	case d.Vlen != nil:
		seq, ok := v.([]any)
		if !ok {
			return nil, h5api.ErrorShapeMismatch("unexpected type for vlen value", [2]string{"found", describeLen(v)})
		}
		out := make([]any, len(seq))
		for i, e := range seq {
			x, err := c.encodeElement(d.Vlen.Base, e, depth+1)
			if err != nil {
				return nil, err
			}
			out[i] = x
		}
		return out, nil
	case d.Array != nil:
		return c.encodeNested(d.Array.Base, v, d.Array.Dims, make([]any, 0, product(d.Array.Dims)), depth+1)
	case d.Reference != nil:
		return c.encodeRef(d.Reference, v)
	}
	return nil, h5api.ErrorInvalidType("type descriptor is empty")
}

func encodeInteger(it h5api.IntegerType, v any) (any, error) {
	var neg bool
	var mag uint64
	switch x := v.(type) {
	case int64:
		neg = x < 0
		if neg {
			mag = uint64(-(x + 1)) + 1
		} else {
			mag = uint64(x)
		}
	case uint64:
		mag = x
	case float64:
		if x != math.Trunc(x) || math.IsInf(x, 0) || math.IsNaN(x) || math.Abs(x) >= 1<<63 {
			return nil, badValue("integer", v)
		}
		return encodeInteger(it, int64(x))
	case bool:
		if x {
			mag = 1
		}
	default:
		return nil, badValue("integer", v)
	}
	bits := uint(it.Bits)
	if it.Signed {
		limit := uint64(1) << (bits - 1)
		if (!neg && mag >= limit) || (neg && mag > limit) {
			return nil, outOfRange(it, v)
		}
		if neg {
			return -int64(mag-1) - 1, nil
		}
		return int64(mag), nil
	}
	if neg || (bits < 64 && mag >= uint64(1)<<bits) {
		return nil, outOfRange(it, v)
	}
	if bits == 64 {
		return mag, nil
	}
	return int64(mag), nil
}

func encodeOpaque(ot *h5api.OpaqueType, v any) ([]byte, error) {
	var b []byte
	switch x := v.(type) {
	case string:
		b = []byte(x)
	case []any:
		b = make([]byte, len(x))
		for i, e := range x {
			n, ok := e.(int64)
			if !ok || n < 0 || n > 255 {
				return nil, badValue("opaque byte", e)
			}
			b[i] = byte(n)
		}
	default:
		return nil, badValue("opaque", v)
	}
	if len(b) > ot.Size {
		return nil, h5api.ErrorInvalidArgument("opaque value is larger than the type",
			[2]string{"size", strconv.Itoa(ot.Size)},
			[2]string{"found", strconv.Itoa(len(b))},
		)
	}
	return b, nil
}

// expand replaces Named descriptors with their committed definitions.
func (c *Codec) expand(d h5api.TypeDescriptor, depth int) (h5api.TypeDescriptor, error) {
	if depth > typecodec.MaxDepth {
		return d, h5api.ErrorInvalidType("type nesting is too deep")
	}
	switch {
	case d.Named != nil:
		if c.Types == nil || c.Types.Resolver == nil {
			return d, h5api.ErrorInvalidType("committed types are not available here", [2]string{"uuid", d.Named.UUID})
		}
		t, err := c.Types.Resolver.CommittedType(d.Named.UUID)
		if err != nil {
			return d, err
		}
		inline, err := c.Types.DecodeInline(t)
		if err != nil {
			return d, err
		}
		return c.expand(inline, depth+1)
	case d.Compound != nil:
		ct := &h5api.CompoundType{Fields: make([]h5api.CompoundField, len(d.Compound.Fields))}
		for i, f := range d.Compound.Fields {
			ft, err := c.expand(f.Type, depth+1)
			if err != nil {
				return d, err
			}
			ct.Fields[i] = h5api.CompoundField{Name: f.Name, Type: ft}
		}
		return h5api.TypeDescriptor{Compound: ct}, nil
	case d.Vlen != nil:
		base, err := c.expand(d.Vlen.Base, depth+1)
		if err != nil {
			return d, err
		}
		return h5api.TypeDescriptor{Vlen: &h5api.VlenType{Base: base}}, nil
	case d.Array != nil:
		base, err := c.expand(d.Array.Base, depth+1)
		if err != nil {
			return d, err
		}
		return h5api.TypeDescriptor{Array: &h5api.ArrayType{Dims: d.Array.Dims, Base: base}}, nil
	}
	return d, nil
}

func product(dims []int) int {
	n := 1
	for _, d := range dims {
		n *= d
	}
	return n
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= 0x80 {
			return false
		}
	}
	return true
}

func describeLen(v any) string {
	if seq, ok := v.([]any); ok {
		return "list of " + strconv.Itoa(len(seq))
	}
	return typeName(v)
}

func typeName(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case bool:
		return "bool"
	case int64, uint64:
		return "integer"
	case float64:
		return "float"
	case string:
		return "string"
	case []any:
		return "list"
	case map[string]any:
		return "map"
	}
	return "unknown"
}

// mismatch is for native values that do not have the shape their type implies.
func mismatch(want string, v any) error {
	return h5api.ErrorShapeMismatch("unexpected native value for "+want+" type", [2]string{"found", typeName(v)})
}

// badValue is for JSON values that can not be converted to the type.
func badValue(want string, v any) error {
	return h5api.ErrorInvalidArgument("expected a "+want+" value", [2]string{"found", typeName(v)})
}

func outOfRange(it h5api.IntegerType, v any) error {
	return h5api.ErrorInvalidArgument("value out of range for "+it.Base(), [2]string{"found", fmt.Sprint(v)})
}
