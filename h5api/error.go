package h5api

import (
	"encoding/json"
	"os"
	"strings"

	"github.com/serum-errors/go-serum"
)

// Error codes used across the module.
// Every exported function that can fail documents which of these it returns.
const (
	ECodeNotFound         = "h5json-error-not-found"
	ECodeAlreadyDeleted   = "h5json-error-already-deleted"
	ECodePermissionDenied = "h5json-error-permission-denied"
	ECodeInvalidArgument  = "h5json-error-invalid-argument"
	ECodeInvalidType      = "h5json-error-invalid-type"
	ECodeShapeMismatch    = "h5json-error-shape-mismatch"
	ECodeIo               = "h5json-error-io"
	ECodeInvalidQuery     = "h5json-error-invalid-query"
	ECodeSerialization    = "h5json-error-serialization"
	ECodeInitialization   = "h5json-error-initialization"
	ECodeInternal         = "h5json-error-internal"
)

// TerminalError emits an error on stdout as json, and halts immediately.
// Only used during process init, where no other output protocol exists yet.
func TerminalError(err serum.ErrorInterface, exitCode int) {
	json.NewEncoder(os.Stdout).Encode(struct {
		Error serum.ErrorInterface `json:"error"`
	}{err})
	os.Exit(exitCode)
}

// IsNotFound reports whether err means the addressed thing does not exist.
// An object that existed and was deleted also counts as not found;
// use IsAlreadyDeleted to tell the two apart.
func IsNotFound(err error) bool {
	switch serum.Code(err) {
	case ECodeNotFound, ECodeAlreadyDeleted:
		return true
	}
	return false
}

// ECodePrefix starts every code this module returns.
const ECodePrefix = "h5json-error-"

// HasCode reports whether err already carries one of this module's codes.
// serum makes up a "bestguess-" code for plain errors; those do not count.
func HasCode(err error) bool {
	return strings.HasPrefix(serum.Code(err), ECodePrefix)
}

// IsAlreadyDeleted reports whether err refers to a uuid that existed once.
func IsAlreadyDeleted(err error) bool {
	return serum.Code(err) == ECodeAlreadyDeleted
}

// ErrorNotFound is returned when a uuid, path, link or attribute is absent.
//
// Errors:
//
//   - h5json-error-not-found --
func ErrorNotFound(what string, id string) error {
	return serum.Error(ECodeNotFound,
		serum.WithMessageTemplate("{{what}} not found: {{id|q}}"),
		serum.WithDetail("what", what),
		serum.WithDetail("id", id),
	)
}

// ErrorAlreadyDeleted is returned when a uuid is known to have existed but is gone now.
//
// Errors:
//
//   - h5json-error-already-deleted --
func ErrorAlreadyDeleted(kind ObjectKind, uuid string) error {
	return serum.Error(ECodeAlreadyDeleted,
		serum.WithMessageTemplate("{{kind}} {{uuid|q}} has been previously deleted"),
		serum.WithDetail("kind", string(kind)),
		serum.WithDetail("uuid", uuid),
	)
}

// ErrorPermissionDenied is returned for writes to read-only stores,
// deletion of the root group, and mutation of user-defined links.
//
// Errors:
//
//   - h5json-error-permission-denied --
func ErrorPermissionDenied(reason string, deets ...[2]string) error {
	return serum.Error(ECodePermissionDenied, withDetails(reason, deets)...)
}

// ErrorInvalidArgument is returned for malformed shapes, slices, selections and the like.
// The caller must format the message string.
//
// Errors:
//
//   - h5json-error-invalid-argument --
func ErrorInvalidArgument(message string, deets ...[2]string) error {
	return serum.Error(ECodeInvalidArgument, withDetails(message, deets)...)
}

// ErrorInvalidType is returned when a type descriptor is malformed or unsupported.
//
// Errors:
//
//   - h5json-error-invalid-type --
func ErrorInvalidType(message string, deets ...[2]string) error {
	return serum.Error(ECodeInvalidType, withDetails(message, deets)...)
}

// ErrorShapeMismatch is returned when a value does not have the rank, extents,
// or field count its type and shape require.
//
// Errors:
//
//   - h5json-error-shape-mismatch --
func ErrorShapeMismatch(message string, deets ...[2]string) error {
	return serum.Error(ECodeShapeMismatch, withDetails(message, deets)...)
}

// ErrorIo wraps failures reported by the store engine or the filesystem.
//
// Errors:
//
//   - h5json-error-io --
func ErrorIo(context string, cause error) error {
	return serum.Error(ECodeIo,
		serum.WithMessageTemplate("io error: {{context}}"),
		serum.WithDetail("context", context),
		serum.WithCause(cause),
	)
}

// ErrorInvalidQuery is returned when a row filter expression is rejected.
//
// Errors:
//
//   - h5json-error-invalid-query --
func ErrorInvalidQuery(query string, reason string) error {
	return serum.Error(ECodeInvalidQuery,
		serum.WithMessageTemplate("invalid query {{query|q}}: {{reason}}"),
		serum.WithDetail("query", query),
		serum.WithDetail("reason", reason),
	)
}

// ErrorSerialization is returned when a serialization or deserialization error occurs
//
// Errors:
//
//   - h5json-error-serialization --
func ErrorSerialization(context string, cause error) error {
	result := serum.Errorf(ECodeSerialization,
		"serialization error: %s: %w", context, cause)
	addDetails(result, [][2]string{
		{"context", context},
	})
	return result
}

// ErrorInitialization is returned when the process configuration is unusable.
//
// Errors:
//
//   - h5json-error-initialization --
func ErrorInitialization(message string, deets ...[2]string) error {
	return serum.Error(ECodeInitialization, withDetails(message, deets)...)
}

// ErrorInternal is for failures that an end user is not expected to be able to fix.
//
// Errors:
//
//   - h5json-error-internal --
func ErrorInternal(msg string, cause error) error {
	if cause == nil {
		return serum.Error(ECodeInternal, serum.WithMessageLiteral(msg))
	}
	return serum.Errorf(ECodeInternal, "%s: %w", msg, cause)
}

func withDetails(message string, deets [][2]string) []serum.WithConstruction {
	opts := make([]serum.WithConstruction, 0, len(deets)+1)
	for _, d := range deets {
		opts = append(opts, serum.WithDetail(d[0], d[1]))
	}
	return append(opts, serum.WithMessageLiteral(message))
}

func addDetails(err error, details [][2]string) {
	s := err.(*serum.ErrorValue)
	s.Data.Details = append(s.Data.Details, details...)
}
