package store

// Class is the native class of a type.
type Class uint8

const (
	ClassInteger Class = iota + 1
	ClassFloat
	ClassString
	ClassCompound
	ClassVlen
	ClassArray
	ClassEnum
	ClassOpaque
	ClassReference
)

func (c Class) String() string {
	switch c {
	case ClassInteger:
		return "integer"
	case ClassFloat:
		return "float"
	case ClassString:
		return "string"
	case ClassCompound:
		return "compound"
	case ClassVlen:
		return "vlen"
	case ClassArray:
		return "array"
	case ClassEnum:
		return "enum"
	case ClassOpaque:
		return "opaque"
	case ClassReference:
		return "reference"
	default:
		return "invalid"
	}
}

type Order uint8

const (
	OrderNone Order = iota
	OrderLE
	OrderBE
)

type CharSet uint8

const (
	CharSetASCII CharSet = iota
	CharSetUTF8
)

type StrPad uint8

const (
	StrPadNullTerm StrPad = iota
	StrPadNullPad
	StrPadSpacePad
)

type RefKind uint8

const (
	RefObject RefKind = iota + 1
	RefRegion
)

// Member is one field of a compound type.
type Member struct {
	Name string
	Type *Type
}

// EnumValue is one label of an enum type.
type EnumValue struct {
	Name  string
	Value int64
}

// Type is a native type handle.
//
// A variable length string is a Vlen whose Base has ClassString;
// its charset and padding live on the base.
// Addr is non-zero when the type is committed (stored as a named datatype).
type Type struct {
	Class   Class
	Size    int // bytes per element; 0 when variable
	Order   Order
	Signed  bool
	CharSet CharSet
	StrPad  StrPad
	Base    *Type
	Members []Member
	Dims    []int
	Enum    []EnumValue
	Tag     string
	RefKind RefKind
	Addr    Addr
}

// Clone copies t deeply. The committed address is dropped;
// a clone is always a transient type.
func (t *Type) Clone() *Type {
	if t == nil {
		return nil
	}
	c := *t
	c.Addr = 0
	c.Base = t.Base.Clone()
	if t.Members != nil {
		c.Members = make([]Member, len(t.Members))
		for i, m := range t.Members {
			c.Members[i] = Member{Name: m.Name, Type: m.Type.Clone()}
		}
	}
	if t.Dims != nil {
		c.Dims = append([]int(nil), t.Dims...)
	}
	if t.Enum != nil {
		c.Enum = append([]EnumValue(nil), t.Enum...)
	}
	return &c
}

// IsVariableString is true for the vlen-of-string encoding of variable strings.
func (t *Type) IsVariableString() bool {
	return t.Class == ClassVlen && t.Base != nil && t.Base.Class == ClassString
}

// ArrayLen is the number of base elements held by one array element.
func (t *Type) ArrayLen() int {
	n := 1
	for _, d := range t.Dims {
		n *= d
	}
	return n
}
