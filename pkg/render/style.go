package render

import (
	"io"
	"strconv"
)

// A small table of ANSI SGR codes. Output goes through printf-style writes
// to a stream, so the codes are written directly.

type ansiColor int

var (
	ansi_CSI_bytes = []byte("\x1b[")
	ansi_SGR_bytes = []byte{'m'}
)

func writeAnsi(wr io.Writer, codes ...ansiColor) (n int, err error) {
	var n2 int
	n2, err = wr.Write(ansi_CSI_bytes)
	n += n2
	if err != nil {
		return
	}
	for i, code := range codes {
		if i > 0 {
			n2, err = wr.Write([]byte{';'})
			n += n2
			if err != nil {
				return
			}
		}
		n2, err = wr.Write(strconv.AppendInt(nil, int64(code), 10))
		n += n2
		if err != nil {
			return
		}
	}
	n2, err = wr.Write(ansi_SGR_bytes)
	n += n2
	return
}

// Attributes
const (
	ansiReset     ansiColor = 0
	ansiBold      ansiColor = 1
	ansiItalic    ansiColor = 3
	ansiUnderline ansiColor = 4
)

// Foreground colors
const (
	ansiFgRed ansiColor = iota + 31
	ansiFgGreen
	ansiFgYellow
	ansiFgBlue
	ansiFgMagenta
	ansiFgCyan
	ansiFgWhite
)

// Foreground Hi-Intensity colors
const (
	ansiFgHiBlack ansiColor = iota + 90
	ansiFgHiRed
	ansiFgHiGreen
	ansiFgHiYellow
	ansiFgHiBlue
	ansiFgHiMagenta
	ansiFgHiCyan
	ansiFgHiWhite
)
