package store

import (
	"errors"
	"fmt"
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/serum-errors/go-serum"

	"github.com/HDFGroup/hdf5-json/h5api"
)

func TestAPIError(t *testing.T) {
	for _, tc := range []struct {
		err  error
		code string
	}{
		{fmt.Errorf("link %q: %w", "x", ErrNotFound), h5api.ECodeNotFound},
		{ErrNotFound, h5api.ECodeNotFound},
		{fmt.Errorf("create: %w", ErrReadOnly), h5api.ECodePermissionDenied},
		{fmt.Errorf("link: %w", ErrExists), h5api.ECodeInvalidArgument},
		{fmt.Errorf("read: %w", ErrInvalidSelection), h5api.ECodeInvalidArgument},
		{fmt.Errorf("write: %w", ErrTypeMismatch), h5api.ECodeShapeMismatch},
		{errors.New("disk on fire"), h5api.ECodeIo},
	} {
		got := APIError("x", tc.err)
		qt.Check(t, serum.Code(got), qt.Equals, tc.code, qt.Commentf("%v", tc.err))
	}

	qt.Check(t, APIError("x", nil), qt.IsNil)

	coded := h5api.ErrorInvalidType("bad")
	qt.Check(t, APIError("x", coded), qt.Equals, coded)
}

func TestHasCode(t *testing.T) {
	qt.Check(t, h5api.HasCode(h5api.ErrorNotFound("link", "x")), qt.IsTrue)
	qt.Check(t, h5api.HasCode(errors.New("plain")), qt.IsFalse)
	qt.Check(t, h5api.HasCode(fmt.Errorf("wrapped: %w", ErrNotFound)), qt.IsFalse)
}
