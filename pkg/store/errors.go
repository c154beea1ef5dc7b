package store

import (
	"errors"

	"github.com/HDFGroup/hdf5-json/h5api"
)

// APIError converts an engine error into the error kind callers see.
// Errors that already carry a code pass through unchanged.
//
// Errors:
//
//   - h5json-error-permission-denied -- for writes against a read-only store
//   - h5json-error-not-found -- for names, paths and addresses that do not resolve
//   - h5json-error-invalid-argument -- for taken names and bad selections
//   - h5json-error-shape-mismatch -- for values that do not fit their type
//   - h5json-error-io -- for anything else
func APIError(context string, err error) error {
	if err == nil {
		return nil
	}
	if h5api.HasCode(err) {
		return err
	}
	switch {
	case errors.Is(err, ErrReadOnly):
		return h5api.ErrorPermissionDenied("updates are not allowed", [2]string{"context", context})
	case errors.Is(err, ErrNotFound):
		return h5api.ErrorNotFound(context, err.Error())
	case errors.Is(err, ErrExists), errors.Is(err, ErrInvalidSelection), errors.Is(err, ErrNoStorage):
		return h5api.ErrorInvalidArgument(context + ": " + err.Error())
	case errors.Is(err, ErrTypeMismatch):
		return h5api.ErrorShapeMismatch(context + ": " + err.Error())
	}
	return h5api.ErrorIo(context, err)
}
