package render

import (
	"io"

	"github.com/alecthomas/chroma"
	"github.com/alecthomas/chroma/formatters"
	"github.com/alecthomas/chroma/lexers"
	"github.com/alecthomas/chroma/styles"

	"github.com/HDFGroup/hdf5-json/h5api"
)

// JSONStyle is the chroma style used for highlighting.
var JSONStyle = "monokai"

// HighlightJSON writes src with terminal color codes.
//
// Errors:
//
//   - h5json-error-io -- when tokenizing or writing fails
func HighlightJSON(w io.Writer, src []byte) error {
	lexer := chroma.Coalesce(lexers.Get("json"))
	style := styles.Get(JSONStyle)
	formatter := formatters.Get("terminal256")
	iterator, err := lexer.Tokenise(nil, string(src))
	if err != nil {
		return h5api.ErrorIo("tokenizing json", err)
	}
	if err := formatter.Format(w, style, iterator); err != nil {
		return h5api.ErrorIo("highlighting json", err)
	}
	return nil
}
