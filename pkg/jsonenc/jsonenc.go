// Package jsonenc encodes and decodes data model nodes as JSON.
//
// Documents use plain JSON: links and bytes are never given the dag-json
// special forms.
package jsonenc

import (
	"bytes"
	"io"

	"github.com/ipld/go-ipld-prime/codec"
	"github.com/ipld/go-ipld-prime/codec/dagjson"
	"github.com/ipld/go-ipld-prime/datamodel"
	"github.com/ipld/go-ipld-prime/node/basicnode"
	rfmtjson "github.com/polydawn/refmt/json"
	"github.com/serum-errors/go-serum"

	"github.com/HDFGroup/hdf5-json/h5api"
)

var defaultEncodeOptions = dagjson.EncodeOptions{
	EncodeLinks: false,
	EncodeBytes: false,
	MapSortMode: codec.MapSortMode_None,
}

var sortedEncodeOptions = dagjson.EncodeOptions{
	EncodeLinks: false,
	EncodeBytes: false,
	MapSortMode: codec.MapSortMode_RFC7049,
}

// compact leaves Line nil: a non-nil Line, even empty, makes refmt put a space after each colon.
var compact = rfmtjson.EncodeOptions{}

var defaultDecodeOptions = dagjson.DecodeOptions{
	ParseLinks: false,
	ParseBytes: false,
}

func encode(n datamodel.Node, w io.Writer, opt rfmtjson.EncodeOptions, eopt dagjson.EncodeOptions) error {
	err := dagjson.Marshal(n, rfmtjson.NewEncoder(w, opt), eopt)
	if err != nil {
		return serum.Error(h5api.ECodeSerialization, serum.WithCause(err),
			serum.WithMessageLiteral("json encoder failed"),
		)
	}
	return nil
}

// Encoder is a compact json encoder.
//
// Errors:
//
//   - h5json-error-serialization --
func Encoder(n datamodel.Node, w io.Writer) error {
	return encode(n, w, compact, defaultEncodeOptions)
}

// PrettyEncoder is a json encoder with line breaks and four space indentation,
// the layout used for documents.
//
// Errors:
//
//   - h5json-error-serialization --
func PrettyEncoder(n datamodel.Node, w io.Writer) error {
	return encode(n, w, rfmtjson.EncodeOptions{
		Line:   []byte{'\n'},
		Indent: []byte("    "),
	}, defaultEncodeOptions)
}

// Canonical renders n compactly with map keys sorted, for comparisons.
//
// Errors:
//
//   - h5json-error-serialization --
func Canonical(n datamodel.Node) (string, error) {
	var buf bytes.Buffer
	err := encode(n, &buf, compact, sortedEncodeOptions)
	return buf.String(), err
}

// Decode reads one JSON value into a basic node.
//
// Errors:
//
//   - h5json-error-serialization --
func Decode(r io.Reader) (datamodel.Node, error) {
	nb := basicnode.Prototype.Any.NewBuilder()
	if err := defaultDecodeOptions.Decode(nb, r); err != nil {
		return nil, serum.Error(h5api.ECodeSerialization, serum.WithCause(err),
			serum.WithMessageLiteral("json decoder failed"),
		)
	}
	return nb.Build(), nil
}

// DecodeBytes is Decode on a byte slice.
//
// Errors:
//
//   - h5json-error-serialization --
func DecodeBytes(b []byte) (datamodel.Node, error) {
	return Decode(bytes.NewReader(b))
}
