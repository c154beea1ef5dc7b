package store

// SpaceClass is the class of a dataspace.
type SpaceClass uint8

const (
	SpaceNull SpaceClass = iota + 1
	SpaceScalar
	SpaceSimple
)

// Unlimited as a max extent.
const Unlimited = 0

// Space is a dataspace. MaxDims is nil for fixed size spaces.
type Space struct {
	Class   SpaceClass
	Dims    []int
	MaxDims []int
}

// NumElements is the product of Dims; 1 for a scalar and 0 for null.
func (s Space) NumElements() int {
	switch s.Class {
	case SpaceNull:
		return 0
	case SpaceScalar:
		return 1
	}
	n := 1
	for _, d := range s.Dims {
		n *= d
	}
	return n
}

func (s Space) Rank() int {
	return len(s.Dims)
}

// Slab selects [Start, Stop) every Step along one dimension.
type Slab struct {
	Start int
	Stop  int
	Step  int
}

// Count is how many indices the slab selects.
func (s Slab) Count() int {
	step := s.Step
	if step < 1 {
		step = 1
	}
	if s.Stop <= s.Start {
		return 0
	}
	return (s.Stop - s.Start + step - 1) / step
}

// DatasetSpec is everything needed to create a dataset.
type DatasetSpec struct {
	Type      *Type
	Space     Space
	Chunks    []int
	FillValue any
	Filters   []FilterSpec
	Layout    string
}

// FilterSpec is a filter id with its client values; the engine records them
// but does not run any codec.
type FilterSpec struct {
	ID     int
	Name   string
	Values []int
}

// LinkClass is the class of a link.
type LinkClass uint8

const (
	LinkHard LinkClass = iota + 1
	LinkSoft
	LinkExternal
	LinkUserDefined
)

// LinkInfo describes a link without resolving it.
type LinkInfo struct {
	Name   string
	Class  LinkClass
	Target Addr   // hard links
	Path   string // soft and external links
	File   string // external links
}

// ObjectRef is a reference to an object. The zero value is the null reference.
type ObjectRef struct {
	Addr Addr
}

func (r ObjectRef) IsNull() bool {
	return r.Addr == 0
}

// SelectionKind is the kind of selection held by a region reference.
type SelectionKind uint8

const (
	SelectNone SelectionKind = iota
	SelectAll
	SelectPoints
	SelectHyperslabs
)

// Block is one hyperslab block. End is inclusive.
type Block struct {
	Start []int
	End   []int
}

// RegionRef is a reference to a selection within a dataset.
// A zero Addr is the null region reference.
type RegionRef struct {
	Addr   Addr
	Kind   SelectionKind
	Points [][]int
	Blocks []Block
}

func (r RegionRef) IsNull() bool {
	return r.Addr == 0
}
