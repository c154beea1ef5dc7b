package h5api

import (
	"strings"
)

// ObjectKind is one of the three addressable object kinds.
// The string value doubles as the collection name used in references ("datasets/<uuid>").
type ObjectKind string

const (
	ObjectKind_Group    ObjectKind = "groups"
	ObjectKind_Dataset  ObjectKind = "datasets"
	ObjectKind_Datatype ObjectKind = "datatypes"
)

// ObjectKinds lists every kind, in the order collections are reported.
var ObjectKinds = []ObjectKind{ObjectKind_Group, ObjectKind_Dataset, ObjectKind_Datatype}

// Singular names one object of the kind: "group", "dataset" or "datatype".
func (k ObjectKind) Singular() string {
	return strings.TrimSuffix(string(k), "s")
}

// ParseObjectKind accepts a collection name.
//
// Errors:
//
//   - h5json-error-invalid-argument -- when the name is not a collection
func ParseObjectKind(s string) (ObjectKind, error) {
	switch ObjectKind(s) {
	case ObjectKind_Group, ObjectKind_Dataset, ObjectKind_Datatype:
		return ObjectKind(s), nil
	}
	return "", ErrorInvalidArgument("unknown collection", [2]string{"collection", s})
}

// UUIDLen is the length of the canonical text form of a uuid.
const UUIDLen = 36

// ObjectRefString renders "<collection>/<uuid>".
func ObjectRefString(kind ObjectKind, uuid string) string {
	return string(kind) + "/" + uuid
}

// ParseObjectRefString splits "<collection>/<uuid>".
//
// Errors:
//
//   - h5json-error-invalid-argument -- when the string is not a well formed object reference
func ParseObjectRefString(s string) (ObjectKind, string, error) {
	for _, kind := range ObjectKinds {
		prefix := string(kind) + "/"
		if strings.HasPrefix(s, prefix) && len(s) == len(prefix)+UUIDLen {
			return kind, s[len(prefix):], nil
		}
	}
	return "", "", ErrorInvalidArgument("invalid object reference value", [2]string{"value", s})
}

// NullRefString is the wire form of a null object reference.
const NullRefString = "null"

// Storage tells how a directory entry is held.
type Storage uint8

const (
	Storage_Anonymous Storage = iota + 1 // only reachable through the private per-kind container
	Storage_Linked                       // reachable through at least one named link
)

func (s Storage) String() string {
	switch s {
	case Storage_Anonymous:
		return "anonymous"
	case Storage_Linked:
		return "linked"
	default:
		return "unknown"
	}
}

// LinkClass is the wire class of a link.
type LinkClass string

const (
	LinkClass_Hard        LinkClass = "H5L_TYPE_HARD"
	LinkClass_Soft        LinkClass = "H5L_TYPE_SOFT"
	LinkClass_External    LinkClass = "H5L_TYPE_EXTERNAL"
	LinkClass_UserDefined LinkClass = "H5L_TYPE_USER_DEFINED"
)

// Link describes one named link of a group.
type Link struct {
	Title string
	Class LinkClass

	// Hard links.
	ID         string
	Collection ObjectKind

	// Soft and external links.
	H5Path string
	// External links.
	File string

	Ctime int64
	Mtime int64
}

// ShapeClass is the wire class of a dataspace.
type ShapeClass string

const (
	ShapeClass_Null   ShapeClass = "H5S_NULL"
	ShapeClass_Scalar ShapeClass = "H5S_SCALAR"
	ShapeClass_Simple ShapeClass = "H5S_SIMPLE"
)

// Unlimited marks an unlimited maximum extent. On the wire it is 0 in
// item views and "H5S_UNLIMITED" in exported documents.
const Unlimited = 0

const UnlimitedString = "H5S_UNLIMITED"

type Shape struct {
	Class   ShapeClass
	Dims    []int
	MaxDims []int // nil unless the dataset is extendable
}

// Rank is the number of dimensions; zero for null and scalar shapes.
func (s Shape) Rank() int {
	return len(s.Dims)
}

// NumElements is the product of the dims; 1 for scalar and 0 for null shapes.
func (s Shape) NumElements() int {
	switch s.Class {
	case ShapeClass_Null:
		return 0
	case ShapeClass_Scalar:
		return 1
	}
	n := 1
	for _, d := range s.Dims {
		n *= d
	}
	return n
}

// SelectType is the wire selection type of a region reference.
type SelectType string

const (
	SelectType_None       SelectType = "H5S_SEL_NONE"
	SelectType_All        SelectType = "H5S_SEL_ALL"
	SelectType_Points     SelectType = "H5S_SEL_POINTS"
	SelectType_Hyperslabs SelectType = "H5S_SEL_HYPERSLABS"
)

// Hyperslab is one block of a region selection in wire convention:
// Stop is exclusive.
type Hyperslab struct {
	Start []int
	Stop  []int
}

// RegionSelection is the wire form of a region reference value.
// ID is empty for the null region.
type RegionSelection struct {
	ID         string
	SelectType SelectType
	Points     [][]int
	Hyperslabs []Hyperslab
}

// Slice selects along one dimension: [Start, Stop) every Step.
type Slice struct {
	Start int
	Stop  int
	Step  int
}

// Count is the number of indices the slice selects.
func (s Slice) Count() int {
	step := s.Step
	if step <= 0 {
		step = 1
	}
	if s.Stop <= s.Start {
		return 0
	}
	return (s.Stop - s.Start + step - 1) / step
}
