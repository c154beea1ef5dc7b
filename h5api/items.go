package h5api

// APIVersion is the document format version written by this module.
const APIVersion = "1.1.1"

// GroupItem is the item view of a group.
type GroupItem struct {
	ID             string
	Alias          []string
	LinkCount      int
	AttributeCount int
	Ctime          int64
	Mtime          int64
}

// DatasetItem is the item view of a dataset.
// Type is a Named descriptor when the dataset uses a committed type.
type DatasetItem struct {
	ID                 string
	Alias              []string
	AttributeCount     int
	Type               TypeDescriptor
	Shape              Shape
	CreationProperties *CreationProperties
	Ctime              int64
	Mtime              int64
}

// DatatypeItem is the item view of a committed type.
type DatatypeItem struct {
	ID             string
	Alias          []string
	AttributeCount int
	Type           TypeDescriptor
	Ctime          int64
	Mtime          int64
}

// AttributeItem is the view of one attribute.
// Value holds a JSON value tree (nil, bool, int64, uint64, float64, string,
// []any, map[string]any) and is only meaningful when HasValue is set.
type AttributeItem struct {
	Name     string
	Type     TypeDescriptor
	Shape    Shape
	Value    any
	HasValue bool
	Ctime    int64
	Mtime    int64
}

// VersionInfo reports the document and engine versions.
type VersionInfo struct {
	APIVersion    string
	EngineName    string
	EngineVersion string
}
