/*
Package logging carries a Logger through a context.Context.

Output meant for the user (results of a command) goes to Out;
everything else is tagged diagnostic lines on the error stream.
*/
package logging

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
)

type Logger struct {
	out     io.Writer
	err     io.Writer
	json    bool
	quiet   bool
	verbose bool
}

type ctxKey struct{}

func DefaultLogger() Logger {
	return Logger{
		out: os.Stdout,
		err: os.Stderr,
	}
}

// NewLogger builds a logger.
// With json set, diagnostic lines are emitted as one json object per line.
// Quiet drops Info lines; Warn lines are always shown.
func NewLogger(out, err io.Writer, json, quiet, verbose bool) *Logger {
	return &Logger{
		out:     out,
		err:     err,
		json:    json,
		quiet:   quiet,
		verbose: verbose,
	}
}

// WithContext returns a copy of ctx carrying l.
func (l *Logger) WithContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// Ctx returns the logger carried by ctx, or a default logger if there is none.
func Ctx(ctx context.Context) *Logger {
	if l, ok := ctx.Value(ctxKey{}).(*Logger); ok && l != nil {
		return l
	}
	l := DefaultLogger()
	return &l
}

func (l *Logger) Out(f string, args ...interface{}) {
	fmt.Fprintf(l.out, f+"\n", args...)
}

func (l *Logger) OutRaw(s string) {
	fmt.Fprintf(l.out, "%s", s)
}

// OutWriter is where command results go.
func (l *Logger) OutWriter() io.Writer {
	return l.out
}

func (l *Logger) Info(tag string, f string, args ...interface{}) {
	if l.quiet {
		return
	}
	l.print("info", color.New(color.FgHiGreen), tag, f, args...)
}

func (l *Logger) Debug(tag string, f string, args ...interface{}) {
	if l.verbose {
		l.print("debug", color.New(color.FgGreen), tag, f, args...)
	}
}

// Warn is for conditions that were tolerated and defaulted.
func (l *Logger) Warn(tag string, f string, args ...interface{}) {
	l.print("warn", color.New(color.FgHiYellow), tag, f, args...)
}

func (l *Logger) print(level string, tagColor *color.Color, tag, f string, args ...interface{}) {
	str := fmt.Sprintf(f, args...)
	if l.json {
		json.NewEncoder(l.err).Encode(struct {
			Level string `json:"level"`
			Tag   string `json:"tag"`
			Msg   string `json:"msg"`
		}{level, tag, str})
		return
	}
	for _, line := range strings.Split(str, "\n") {
		fmt.Fprintf(l.err, "%s  %s\n",
			tagColor.Sprint(tag),
			color.WhiteString(line))
	}
}

type Writer struct {
	pipe io.Writer
	tag  string
}

func (l *Logger) InfoWriter(tag string) *Writer {
	return &Writer{
		pipe: l.err,
		tag:  tag,
	}
}

func (w *Writer) Write(data []byte) (n int, err error) {
	for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
		fmt.Fprintf(w.pipe, "%s  %s\n",
			color.HiYellowString(w.tag),
			color.HiWhiteString(line))
	}
	return len(data), nil
}
