package h5api

import (
	"github.com/ipld/go-ipld-prime"
	"github.com/ipld/go-ipld-prime/codec/json"
	"github.com/ipld/go-ipld-prime/datamodel"
	"github.com/ipld/go-ipld-prime/node/bindnode"
)

// CreationProperties of a dataset, in wire form.
// Unknown allocTime and fillTime values are tolerated: they are advisory.
type CreationProperties struct {
	FillValue  datamodel.Node
	TrackTimes *bool
	Layout     *Layout
	Filters    *[]Filter
	AllocTime  *string
	FillTime   *string
}

type LayoutClass string

const (
	LayoutClass_Chunked    LayoutClass = "H5D_CHUNKED"
	LayoutClass_Contiguous LayoutClass = "H5D_CONTIGUOUS"
	LayoutClass_Compact    LayoutClass = "H5D_COMPACT"
)

type Layout struct {
	Class string
	Dims  *[]int64
}

type Filter struct {
	Class             string
	Id                int64
	Name              *string
	Level             *int64
	BitsPerPixel      *int64
	Coding            *string
	PixelsPerBlock    *int64
	PixelsPerScanline *int64
	ScaleType         *string
	ScaleOffset       *int64
	Parameters        *[]int64
}

// Well known filter ids and their classes.
var FilterClasses = map[int64]string{
	1:     "H5Z_FILTER_DEFLATE",
	2:     "H5Z_FILTER_SHUFFLE",
	3:     "H5Z_FILTER_FLETCHER32",
	4:     "H5Z_FILTER_SZIP",
	5:     "H5Z_FILTER_NBIT",
	6:     "H5Z_FILTER_SCALEOFFSET",
	32000: "H5Z_FILTER_LZF",
}

const FilterClass_User = "H5Z_FILTER_USER"

// Recognized allocTime and fillTime values.
var (
	AllocTimes = []string{"H5D_ALLOC_TIME_DEFAULT", "H5D_ALLOC_TIME_EARLY", "H5D_ALLOC_TIME_INCR", "H5D_ALLOC_TIME_LATE"}
	FillTimes  = []string{"H5D_FILL_TIME_IFSET", "H5D_FILL_TIME_ALLOC", "H5D_FILL_TIME_NEVER"}
)

// ChunkDims returns the layout dims of a chunked layout, or nil.
func (p *CreationProperties) ChunkDims() []int {
	if p == nil || p.Layout == nil || p.Layout.Class != string(LayoutClass_Chunked) || p.Layout.Dims == nil {
		return nil
	}
	dims := make([]int, len(*p.Layout.Dims))
	for i, d := range *p.Layout.Dims {
		dims[i] = int(d)
	}
	return dims
}

// Node exposes the properties as a data model node in their representation form.
func (p *CreationProperties) Node() datamodel.Node {
	return bindnode.Wrap(p, TypeSystem.TypeByName("CreationProperties")).Representation()
}

// ParseCreationProperties reads creation properties from a data model node.
//
// Errors:
//
//   - h5json-error-invalid-argument -- when the node does not match the expected structure
func ParseCreationProperties(n datamodel.Node) (*CreationProperties, error) {
	np := bindnode.Prototype((*CreationProperties)(nil), TypeSystem.TypeByName("CreationProperties"))
	nb := np.Representation().NewBuilder()
	if err := datamodel.Copy(n, nb); err != nil {
		return nil, ErrorInvalidArgument("invalid creationProperties: " + err.Error())
	}
	return bindnode.Unwrap(nb.Build()).(*CreationProperties), nil
}

// MarshalCreationProperties serializes to JSON, the form kept in the directory.
//
// Errors:
//
//   - h5json-error-serialization --
func MarshalCreationProperties(p *CreationProperties) ([]byte, error) {
	b, err := ipld.Marshal(json.Encode, p, TypeSystem.TypeByName("CreationProperties"))
	if err != nil {
		return nil, ErrorSerialization("creationProperties", err)
	}
	return b, nil
}

// UnmarshalCreationProperties is the inverse of MarshalCreationProperties.
//
// Errors:
//
//   - h5json-error-serialization --
func UnmarshalCreationProperties(b []byte) (*CreationProperties, error) {
	p := &CreationProperties{}
	if _, err := ipld.Unmarshal(b, json.Decode, p, TypeSystem.TypeByName("CreationProperties")); err != nil {
		return nil, ErrorSerialization("creationProperties", err)
	}
	return p, nil
}
