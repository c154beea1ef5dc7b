package h5api

import (
	"fmt"
	"strconv"
	"strings"
)

// TypeClass names the class of a type descriptor, as it appears on the wire.
type TypeClass string

const (
	TypeClass_Integer   TypeClass = "H5T_INTEGER"
	TypeClass_Float     TypeClass = "H5T_FLOAT"
	TypeClass_String    TypeClass = "H5T_STRING"
	TypeClass_Compound  TypeClass = "H5T_COMPOUND"
	TypeClass_Vlen      TypeClass = "H5T_VLEN"
	TypeClass_Array     TypeClass = "H5T_ARRAY"
	TypeClass_Enum      TypeClass = "H5T_ENUM"
	TypeClass_Opaque    TypeClass = "H5T_OPAQUE"
	TypeClass_Reference TypeClass = "H5T_REFERENCE"
)

// TypeDescriptor is a recursive description of a store type.
//
// Exactly one member is set.
// Named refers to a committed type by uuid; it never nests further.
type TypeDescriptor struct {
	Integer   *IntegerType
	Float     *FloatType
	String    *StringType
	Compound  *CompoundType
	Vlen      *VlenType
	Array     *ArrayType
	Enum      *EnumType
	Opaque    *OpaqueType
	Reference *ReferenceType
	Named     *NamedType
}

// Class returns the wire class of the descriptor.
// Named descriptors have no class of their own and return the empty string.
func (d TypeDescriptor) Class() TypeClass {
	switch {
	case d.Integer != nil:
		return TypeClass_Integer
	case d.Float != nil:
		return TypeClass_Float
	case d.String != nil:
		return TypeClass_String
	case d.Compound != nil:
		return TypeClass_Compound
	case d.Vlen != nil:
		return TypeClass_Vlen
	case d.Array != nil:
		return TypeClass_Array
	case d.Enum != nil:
		return TypeClass_Enum
	case d.Opaque != nil:
		return TypeClass_Opaque
	case d.Reference != nil:
		return TypeClass_Reference
	default:
		return ""
	}
}

// IsZero is true when no member of the union is set.
func (d TypeDescriptor) IsZero() bool {
	return d.Class() == "" && d.Named == nil
}

// IsBoolean detects the boolean convention: an enum on an 8-bit integer
// base with exactly the labels FALSE=0 and TRUE=1.
func (d TypeDescriptor) IsBoolean() bool {
	if d.Enum == nil || d.Enum.Base.Bits != 8 || len(d.Enum.Mapping) != 2 {
		return false
	}
	seen := 0
	for _, m := range d.Enum.Mapping {
		switch {
		case m.Name == "FALSE" && m.Value == 0:
			seen |= 1
		case m.Name == "TRUE" && m.Value == 1:
			seen |= 2
		}
	}
	return seen == 3
}

// ByteOrder is "LE" or "BE".
type ByteOrder string

const (
	ByteOrder_LE ByteOrder = "LE"
	ByteOrder_BE ByteOrder = "BE"
)

type IntegerType struct {
	Signed bool
	Bits   int // 8, 16, 32 or 64
	Order  ByteOrder
}

// Base returns the predefined type name, e.g. "H5T_STD_I32LE".
func (t IntegerType) Base() string {
	sign := "U"
	if t.Signed {
		sign = "I"
	}
	return fmt.Sprintf("H5T_STD_%s%d%s", sign, t.Bits, t.Order)
}

type FloatType struct {
	Bits  int // 32 or 64
	Order ByteOrder
}

// Base returns the predefined type name, e.g. "H5T_IEEE_F64LE".
func (t FloatType) Base() string {
	return fmt.Sprintf("H5T_IEEE_F%d%s", t.Bits, t.Order)
}

// ParseIntegerBase parses names like "H5T_STD_U16BE".
// A missing byte order suffix means little endian.
//
// Errors:
//
//   - h5json-error-invalid-type -- when the name is not a predefined integer type
func ParseIntegerBase(name string) (IntegerType, error) {
	var t IntegerType
	rest := name
	switch {
	case strings.HasPrefix(rest, "H5T_STD_I"):
		t.Signed = true
		rest = rest[len("H5T_STD_I"):]
	case strings.HasPrefix(rest, "H5T_STD_U"):
		rest = rest[len("H5T_STD_U"):]
	default:
		return t, ErrorInvalidType("unknown integer base", [2]string{"base", name})
	}
	bits, order, ok := splitBitsOrder(rest)
	if !ok || !validIntBits(bits) {
		return t, ErrorInvalidType("unknown integer base", [2]string{"base", name})
	}
	t.Bits, t.Order = bits, order
	return t, nil
}

// ParseFloatBase parses names like "H5T_IEEE_F32LE".
//
// Errors:
//
//   - h5json-error-invalid-type -- when the name is not a predefined float type
func ParseFloatBase(name string) (FloatType, error) {
	var t FloatType
	if !strings.HasPrefix(name, "H5T_IEEE_F") {
		return t, ErrorInvalidType("unknown float base", [2]string{"base", name})
	}
	bits, order, ok := splitBitsOrder(name[len("H5T_IEEE_F"):])
	if !ok || (bits != 32 && bits != 64) {
		return t, ErrorInvalidType("unknown float base", [2]string{"base", name})
	}
	t.Bits, t.Order = bits, order
	return t, nil
}

func splitBitsOrder(s string) (int, ByteOrder, bool) {
	order := ByteOrder_LE
	switch {
	case strings.HasSuffix(s, "LE"):
		s = s[:len(s)-2]
	case strings.HasSuffix(s, "BE"):
		order = ByteOrder_BE
		s = s[:len(s)-2]
	}
	bits, err := strconv.Atoi(s)
	if err != nil {
		return 0, "", false
	}
	return bits, order, true
}

func validIntBits(bits int) bool {
	switch bits {
	case 8, 16, 32, 64:
		return true
	}
	return false
}

type CharSet string

const (
	CharSet_ASCII CharSet = "H5T_CSET_ASCII"
	CharSet_UTF8  CharSet = "H5T_CSET_UTF8"
)

type StrPad string

const (
	StrPad_NullTerm StrPad = "H5T_STR_NULLTERM"
	StrPad_NullPad  StrPad = "H5T_STR_NULLPAD"
	StrPad_SpacePad StrPad = "H5T_STR_SPACEPAD"
)

// LengthVariable is the wire spelling of a variable length or size.
const LengthVariable = "H5T_VARIABLE"

type StringType struct {
	CharSet  CharSet
	Variable bool
	Length   int // bytes; only meaningful when not Variable
	Padding  StrPad
}

type CompoundField struct {
	Name string
	Type TypeDescriptor
}

type CompoundType struct {
	Fields []CompoundField
}

// FieldNames lists the field names in declaration order.
func (t CompoundType) FieldNames() []string {
	names := make([]string, len(t.Fields))
	for i, f := range t.Fields {
		names[i] = f.Name
	}
	return names
}

type VlenType struct {
	Base TypeDescriptor
}

type ArrayType struct {
	Dims []int
	Base TypeDescriptor
}

type EnumMember struct {
	Name  string
	Value int64
}

type EnumType struct {
	Base    IntegerType
	Mapping []EnumMember // declaration order
}

type OpaqueType struct {
	Size int
	Tag  string
}

// RefKind is the predefined reference base name.
type RefKind string

const (
	RefKind_Object RefKind = "H5T_STD_REF_OBJ"
	RefKind_Region RefKind = "H5T_STD_REF_DSETREG"
)

type ReferenceType struct {
	Kind RefKind
}

type NamedType struct {
	UUID string
}
