package render

import (
	"bytes"
	"strings"
	"testing"

	qt "github.com/frankban/quicktest"
)

const sample = `# /grid

A dataset of *32-bit* integers
with shape ` + "`[2, 3]`" + `.

## Attributes

- units
- scale

` + "```json" + `
[[1, 2, 3], [4, 5, 6]]
` + "```" + `
`

func TestRenderMarkdown(t *testing.T) {
	var buf bytes.Buffer
	qt.Assert(t, RenderWidth([]byte(sample), &buf, Mode_Markdown, 0), qt.IsNil)
	qt.Check(t, buf.String(), qt.Equals, "# /grid\n\n"+
		"A dataset of *32-bit* integers with shape `[2, 3]`.\n\n"+
		"## Attributes\n\n"+
		"- units\n"+
		"- scale\n"+
		"\n"+
		"```json\n[[1, 2, 3], [4, 5, 6]]\n```\n\n")
}

func TestRenderANSI(t *testing.T) {
	var buf bytes.Buffer
	qt.Assert(t, RenderWidth([]byte(sample), &buf, Mode_ANSI, 100), qt.IsNil)
	out := buf.String()
	qt.Check(t, strings.HasPrefix(out, "\x1b[1;4;97m/grid\x1b[0m\n\n"), qt.IsTrue, qt.Commentf("%q", out))
	qt.Check(t, out, qt.Contains, "\x1b[36m[2, 3]\x1b[0m")
	qt.Check(t, out, qt.Contains, "\x1b[1;95mAttributes\x1b[0m")
	qt.Check(t, out, qt.Contains, "    \x1b[90m•\x1b[0m units\n")
	qt.Check(t, out, qt.Not(qt.Contains), "```")
}

func TestModeFor(t *testing.T) {
	var buf bytes.Buffer
	qt.Check(t, ModeFor(&buf, true), qt.Equals, Mode_Markdown)
	qt.Check(t, ModeFor(&buf, false), qt.Equals, Mode_Markdown)
}

func TestHighlightJSON(t *testing.T) {
	var buf bytes.Buffer
	qt.Assert(t, HighlightJSON(&buf, []byte(`{"a": [1, "x"]}`)), qt.IsNil)
	qt.Check(t, buf.String(), qt.Contains, "\x1b[")
	qt.Check(t, buf.String(), qt.Contains, `"x"`)
}
