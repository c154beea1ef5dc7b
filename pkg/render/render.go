/*
Package render turns the markdown that describe commands produce into
terminal output, and highlights JSON documents.

Markdown mode passes the text through, normalized.
ANSI mode indents sections under their headings, wraps paragraphs to the
terminal width, and colors headings, code spans and fenced JSON blocks.
*/
package render

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/muesli/reflow/indent"
	"github.com/muesli/reflow/wordwrap"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/renderer"
	"github.com/yuin/goldmark/util"
	"golang.org/x/term"

	"github.com/HDFGroup/hdf5-json/h5api"
)

type Mode uint8

const (
	Mode_Markdown Mode = iota // Plain markdown, without indentation.
	Mode_ANSI                 // Terminal ANSI codes for color, indented under headings, wrapped to the terminal width.
)

// ModeFor picks ANSI when wr is a terminal and color is wanted.
func ModeFor(wr io.Writer, color bool) Mode {
	if !color {
		return Mode_Markdown
	}
	if fd, ok := wr.(interface{ Fd() uintptr }); ok && term.IsTerminal(int(fd.Fd())) {
		return Mode_ANSI
	}
	return Mode_Markdown
}

// Render writes markdown to wr in mode m.
// When wr is a terminal its width is used for wrapping.
//
// Errors:
//
//   - h5json-error-io -- when wr fails
func Render(markdown []byte, wr io.Writer, m Mode) error {
	width := -1
	if fd, ok := wr.(interface{ Fd() uintptr }); ok {
		width, _, _ = term.GetSize(int(fd.Fd()))
		if width > 0 && width < 60 {
			width = 60
		}
	}
	return RenderWidth(markdown, wr, m, width)
}

// RenderWidth is Render with a fixed width; zero or less disables wrapping.
func RenderWidth(markdown []byte, wr io.Writer, m Mode, width int) error {
	md := goldmark.New(
		goldmark.WithRenderer(renderer.NewRenderer(
			renderer.WithNodeRenderers(
				util.PrioritizedValue{Value: &gmRenderer{m, width}, Priority: 1},
			),
		)),
	)
	if err := md.Convert(markdown, wr); err != nil {
		return h5api.ErrorIo("rendering markdown", err)
	}
	return nil
}

type gmRenderer struct {
	mode  Mode
	width int
}

// RegisterFuncs is to meet `goldmark/renderer.NodeRenderer`.
func (r *gmRenderer) RegisterFuncs(reg renderer.NodeRendererFuncRegisterer) {
	// blocks
	reg.Register(ast.KindDocument, r.renderDocument)
	reg.Register(ast.KindHeading, r.renderHeading)
	reg.Register(ast.KindParagraph, r.renderParagraph)
	reg.Register(ast.KindList, r.renderList)
	reg.Register(ast.KindListItem, r.renderListItem)
	reg.Register(ast.KindTextBlock, r.renderTextBlock)
	reg.Register(ast.KindFencedCodeBlock, r.renderFencedCodeBlock)
	reg.Register(ast.KindThematicBreak, r.renderThematicBreak)

	// inlines
	reg.Register(ast.KindCodeSpan, r.renderCodeSpan)
	reg.Register(ast.KindEmphasis, r.renderEmphasis)
	reg.Register(ast.KindRawHTML, r.renderRawHTML)
	reg.Register(ast.KindText, r.renderText)
	reg.Register(ast.KindString, r.renderString)
}

func (r *gmRenderer) renderDocument(w util.BufWriter, source []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	return ast.WalkContinue, nil
}

// indentFor is how far content under the nearest heading is indented.
func (r *gmRenderer) indentFor(node ast.Node) int {
	if r.mode != Mode_ANSI {
		return 0
	}
	return 4 * (findHeading(node) - 1)
}

func (r *gmRenderer) renderHeading(w util.BufWriter, source []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	n := node.(*ast.Heading)
	if entering {
		switch r.mode {
		case Mode_Markdown:
			w.WriteString(strings.Repeat("#", n.Level) + " ")
		case Mode_ANSI:
			if n.Level > 1 {
				w.WriteString(strings.Repeat(" ", 4*(n.Level-2)))
			}
			switch n.Level {
			case 1:
				writeAnsi(w, ansiBold, ansiUnderline, ansiFgHiWhite)
			case 2:
				writeAnsi(w, ansiBold, ansiFgHiMagenta)
			case 3:
				writeAnsi(w, ansiBold, ansiFgHiCyan)
			default:
				writeAnsi(w, ansiBold, ansiFgHiBlue)
			}
		}
	} else {
		if r.mode == Mode_ANSI {
			writeAnsi(w, ansiReset)
		}
		w.WriteString("\n\n")
	}
	return ast.WalkContinue, nil
}

func (r *gmRenderer) renderParagraph(w util.BufWriter, source []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	if !entering {
		return ast.WalkContinue, nil
	}
	var buf bytes.Buffer
	r.inline(&buf, source, node)
	body := bytes.TrimRight(buf.Bytes(), " ")
	if r.mode == Mode_ANSI {
		left := r.indentFor(node)
		if r.width > 0 {
			body = wordwrap.Bytes(body, r.width-2-left)
		}
		body = indent.Bytes(body, uint(left))
	}
	w.Write(body)
	w.WriteString("\n\n")
	return ast.WalkSkipChildren, nil
}

func listDepth(node ast.Node) int {
	depth := 0
	for p := node.Parent(); p != nil; p = p.Parent() {
		if p.Kind() == ast.KindList {
			depth++
		}
	}
	return depth
}

func (r *gmRenderer) renderList(w util.BufWriter, source []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	if !entering && listDepth(node) == 0 {
		w.WriteByte('\n')
	}
	return ast.WalkContinue, nil
}

func (r *gmRenderer) renderListItem(w util.BufWriter, source []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	if !entering {
		return ast.WalkContinue, nil
	}
	left := r.indentFor(node.Parent()) + 2*(listDepth(node)-1)
	w.WriteString(strings.Repeat(" ", left))
	if r.mode == Mode_ANSI {
		writeAnsi(w, ansiFgHiBlack)
		w.WriteString("•")
		writeAnsi(w, ansiReset)
		w.WriteByte(' ')
	} else {
		w.WriteString("- ")
	}
	return ast.WalkContinue, nil
}

func (r *gmRenderer) renderTextBlock(w util.BufWriter, source []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	if !entering {
		w.WriteByte('\n')
	}
	return ast.WalkContinue, nil
}

func (r *gmRenderer) renderFencedCodeBlock(w util.BufWriter, source []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	if !entering {
		return ast.WalkContinue, nil
	}
	n := node.(*ast.FencedCodeBlock)
	var body bytes.Buffer
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		body.Write(seg.Value(source))
	}
	lang := string(n.Language(source))
	switch r.mode {
	case Mode_Markdown:
		fmt.Fprintf(w, "```%s\n", lang)
		w.Write(body.Bytes())
		w.WriteString("```\n\n")
	case Mode_ANSI:
		left := uint(r.indentFor(node) + 2)
		if lang == "json" {
			var colored bytes.Buffer
			if err := HighlightJSON(&colored, body.Bytes()); err == nil {
				body = colored
			}
		}
		w.Write(indent.Bytes(body.Bytes(), left))
		w.WriteString("\n")
	}
	return ast.WalkSkipChildren, nil
}

func (r *gmRenderer) renderThematicBreak(w util.BufWriter, source []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	if entering {
		w.WriteString("---\n\n")
	}
	return ast.WalkContinue, nil
}

func (r *gmRenderer) renderCodeSpan(w util.BufWriter, source []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	switch r.mode {
	case Mode_Markdown:
		w.WriteByte('`')
	case Mode_ANSI:
		if entering {
			writeAnsi(w, ansiFgCyan)
		} else {
			writeAnsi(w, ansiReset)
		}
	}
	return ast.WalkContinue, nil
}

func (r *gmRenderer) renderEmphasis(w util.BufWriter, source []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	n := node.(*ast.Emphasis)
	switch r.mode {
	case Mode_Markdown:
		w.WriteString(strings.Repeat("*", n.Level))
	case Mode_ANSI:
		if !entering {
			writeAnsi(w, ansiReset)
		} else if n.Level > 1 {
			writeAnsi(w, ansiBold)
		} else {
			writeAnsi(w, ansiItalic)
		}
	}
	return ast.WalkContinue, nil
}

func (r *gmRenderer) renderText(w util.BufWriter, source []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	if !entering {
		return ast.WalkContinue, nil
	}
	n := node.(*ast.Text)
	w.Write(n.Segment.Value(source))
	if n.SoftLineBreak() {
		w.WriteByte(' ')
	}
	return ast.WalkContinue, nil
}

func (r *gmRenderer) renderString(w util.BufWriter, source []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	if entering {
		w.Write(node.(*ast.String).Value)
	}
	return ast.WalkContinue, nil
}

// Object paths and type names in angle brackets parse as raw HTML;
// the raw text is passed through.
func (r *gmRenderer) renderRawHTML(w util.BufWriter, source []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	if entering {
		n := node.(*ast.RawHTML)
		for i := 0; i < n.Segments.Len(); i++ {
			segment := n.Segments.At(i)
			w.Write(segment.Value(source))
		}
	}
	return ast.WalkContinue, nil
}

// inline renders the inline children of a block into buf, so that the
// whole paragraph can be wrapped at once.
func (r *gmRenderer) inline(buf *bytes.Buffer, source []byte, node ast.Node) {
	for c := node.FirstChild(); c != nil; c = c.NextSibling() {
		switch n := c.(type) {
		case *ast.Text:
			buf.Write(n.Segment.Value(source))
			if n.SoftLineBreak() || n.HardLineBreak() {
				buf.WriteByte(' ')
			}
			continue
		case *ast.String:
			buf.Write(n.Value)
			continue
		case *ast.RawHTML:
			for i := 0; i < n.Segments.Len(); i++ {
				seg := n.Segments.At(i)
				buf.Write(seg.Value(source))
			}
			continue
		case *ast.CodeSpan:
			if r.mode == Mode_ANSI {
				writeAnsi(buf, ansiFgCyan)
				r.inline(buf, source, c)
				writeAnsi(buf, ansiReset)
			} else {
				buf.WriteByte('`')
				r.inline(buf, source, c)
				buf.WriteByte('`')
			}
			continue
		case *ast.Emphasis:
			if r.mode == Mode_ANSI {
				if n.Level > 1 {
					writeAnsi(buf, ansiBold)
				} else {
					writeAnsi(buf, ansiItalic)
				}
				r.inline(buf, source, c)
				writeAnsi(buf, ansiReset)
			} else {
				mark := strings.Repeat("*", n.Level)
				buf.WriteString(mark)
				r.inline(buf, source, c)
				buf.WriteString(mark)
			}
			continue
		}
		r.inline(buf, source, c)
	}
}
