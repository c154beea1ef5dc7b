// Package healthcheck holds the checks behind `h5json health`.
//
// A check reports through a serum code: okay, fail or ambiguous.
// The error message is the one line shown next to the check's name.
package healthcheck

import (
	"context"
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/serum-errors/go-serum"

	"github.com/HDFGroup/hdf5-json/pkg/logging"
)

const LOG_TAG = "health"

const (
	CodeRunOkay      = "h5json-healthcheck-run-okay"
	CodeRunFailure   = "h5json-healthcheck-run-fail"
	CodeRunAmbiguous = "h5json-healthcheck-run-ambiguous"
)

type Status int

const (
	StatusNone Status = iota
	StatusOkay
	StatusFail
	StatusAmbiguous
	StatusUnknown
)

var statusMarks = map[Status]string{
	StatusNone:      "∅",
	StatusOkay:      "✔",
	StatusFail:      "✘",
	StatusAmbiguous: "?",
}

func (s Status) String() string {
	if m, ok := statusMarks[s]; ok {
		return m
	}
	return "!"
}

func (s Status) color() *color.Color {
	switch s {
	case StatusOkay:
		return color.New(color.FgHiGreen, color.Bold)
	case StatusAmbiguous:
		return color.New(color.FgHiYellow, color.Bold)
	case StatusFail:
		return color.New(color.FgHiRed, color.Bold)
	case StatusNone:
		return color.New(color.Reset)
	}
	return color.New(color.FgHiMagenta, color.Bold)
}

// StatusOf reads the status a check reported.
func StatusOf(err error) Status {
	if err == nil {
		return StatusNone
	}
	if _, ok := err.(serum.ErrorInterface); !ok {
		return StatusNone
	}
	switch serum.Code(err) {
	case CodeRunOkay:
		return StatusOkay
	case CodeRunFailure:
		return StatusFail
	case CodeRunAmbiguous:
		return StatusAmbiguous
	}
	return StatusUnknown
}

// Check is one diagnostic.
type Check interface {
	// Name labels the check in the report.
	Name() string
	// Run never returns nil.
	//
	// Errors:
	//
	//    - h5json-healthcheck-run-okay --
	//    - h5json-healthcheck-run-fail --
	//    - h5json-healthcheck-run-ambiguous --
	Run(context.Context) error
}

// Result is what one check reported.
type Result struct {
	Name    string
	Status  Status
	Message string
}

// Report lists results in the order the checks ran.
type Report []Result

// Run runs every check, one after another.
// A check that answers without a serum message counts as failed.
func Run(ctx context.Context, checks ...Check) Report {
	log := logging.Ctx(ctx)
	report := make(Report, 0, len(checks))
	for _, c := range checks {
		log.Debug(LOG_TAG, "running %q", c.Name())
		err := c.Run(ctx)
		res := Result{Name: c.Name(), Status: StatusOf(err)}
		if m, ok := err.(serum.ErrorInterfaceWithMessage); ok {
			res.Message = m.Message()
		} else {
			res.Status = StatusFail
			res.Message = fmt.Sprintf("check gave no usable answer: %v", err)
		}
		report = append(report, res)
	}
	return report
}

// Failed is true when any check failed.
func (r Report) Failed() bool {
	for _, res := range r {
		if res.Status == StatusFail {
			return true
		}
	}
	return false
}

// Fprint writes one aligned line per check.
func (r Report) Fprint(w io.Writer) {
	width := 0
	for _, res := range r {
		width = max(width, len(res.Name))
	}
	for _, res := range r {
		fmt.Fprintf(w, " %s  %-*s\t%s\n", res.Status.color().Sprint(res.Status), width, res.Name, res.Message)
	}
}
