/*
Package store defines the boundary to the store engine:
the component that owns groups, datasets, committed types, attributes and links,
and their physical addresses.

Everything above this package (the type and value codecs, the object directory,
the ACL store, the query scanner) talks to an engine only through these interfaces.
The memstore subpackage provides the engine used by the command line tool and the tests.

Native values are passed around in a flat, row-major form:

  - integers are int64, except unsigned 64-bit integers which are uint64
  - floats are float64
  - fixed length strings and opaque elements are []byte
  - variable length strings are string
  - compound elements are []any, one entry per member
  - vlen elements are []any
  - array elements are []any of length Type.ArrayLen(), row-major
  - enum elements are int64
  - object references are ObjectRef, region references are RegionRef

A dataset or attribute with rank > 0 holds []any of length product(dims).
A scalar holds []any of length 1. A null dataspace holds nothing,
and reading it fails.

Engines are not safe for concurrent use. One session owns a Store at a time.
*/
package store

import (
	"context"
	"errors"
)

// Addr is the physical address of an object. Zero is never a valid object.
type Addr uint64

// ErrNoStorage is reported when reading data from a dataspace that has none.
var ErrNoStorage = errors.New("dataspace has no storage")

// ErrReadOnly is reported by any mutation against a read-only store.
var ErrReadOnly = errors.New("store is read-only")

// ErrNotFound is reported when a name, path or address does not resolve.
var ErrNotFound = errors.New("not found")

// ErrExists is reported when creating a name that is already taken.
var ErrExists = errors.New("already exists")

// ErrTypeMismatch is reported when a value does not fit its native type.
var ErrTypeMismatch = errors.New("value does not match type")

// ErrInvalidSelection is reported for selections outside of a dataspace.
var ErrInvalidSelection = errors.New("invalid selection")

type ObjectType uint8

const (
	ObjectGroup ObjectType = iota + 1
	ObjectDataset
	ObjectDatatype
)

func (t ObjectType) String() string {
	switch t {
	case ObjectGroup:
		return "group"
	case ObjectDataset:
		return "dataset"
	case ObjectDatatype:
		return "datatype"
	default:
		return "invalid"
	}
}

// Object is any addressable object.
type Object interface {
	Addr() Addr
	Type() ObjectType
	// Name is one path the engine knows the object by, or "" if it has none.
	Name() string
	Attrs() Attributes
}

// Group holds named links and may create child objects.
type Group interface {
	Object

	// Links lists the links in creation order.
	Links() []LinkInfo
	Link(name string) (LinkInfo, bool)
	// Get resolves a hard or soft link name (or a relative path) to an object.
	Get(path string) (Object, error)

	LinkHard(name string, target Object) error
	LinkSoft(name string, path string) error
	LinkExternal(name string, file string, path string) error
	// Unlink removes one link. The target object lives on while
	// anything else still links to it.
	Unlink(name string) error

	CreateGroup(name string) (Group, error)
	CreateDataset(name string, spec DatasetSpec) (Dataset, error)
	CommitType(name string, t *Type) (Datatype, error)
}

// Dataset holds typed, shaped data.
type Dataset interface {
	Object

	DataType() *Type
	Space() Space
	Spec() DatasetSpec

	// Read returns the elements selected by sel in row-major order,
	// or all elements when sel is nil.
	// Reading a null dataspace fails with ErrNoStorage.
	Read(sel []Slab) ([]any, error)
	// Write stores values (row-major, len = selection size) into the selection.
	Write(sel []Slab, values []any) error
	// ReadPoints and WritePoints address individual elements by coordinates.
	ReadPoints(points [][]int) ([]any, error)
	WritePoints(points [][]int, values []any) error

	Resize(dims []int) error
}

// Datatype is a committed type.
type Datatype interface {
	Object
	DataType() *Type
}

// Attributes are the named, typed values attached to an object.
type Attributes interface {
	Names() []string
	Get(name string) (*Attribute, error)
	Set(name string, a Attribute) error
	Delete(name string) error
	Len() int
}

// Attribute is an attribute value with its type and space.
type Attribute struct {
	Type   *Type
	Space  Space
	Values []any
}

// Store is an open store.
type Store interface {
	Root() Group
	Filename() string
	ReadOnly() bool
	// Modified is the last modification time of the backing file, in unix seconds.
	Modified() int64

	// ObjectAt resolves an address; it fails with ErrNotFound.
	ObjectAt(addr Addr) (Object, error)
	// Deref resolves an object reference.
	Deref(ref ObjectRef) (Object, error)
	// Visit calls fn for every object reachable by hard links from the root,
	// once per object, with the first path (relative to the root) it was found by.
	// The root itself is not visited.
	Visit(ctx context.Context, fn func(path string, obj Object) error) error

	Flush(ctx context.Context) error
	Close() error

	// EngineName and EngineVersion identify the implementation.
	EngineName() string
	EngineVersion() string
}
