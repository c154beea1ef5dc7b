package valuecodec

import (
	"errors"

	"github.com/HDFGroup/hdf5-json/pkg/store"
)

// IsNullSpace tells a null dataspace from a scalar one.
// Both have rank zero; only the null one fails a trial read for lack of storage.
func IsNullSpace(ds store.Dataset) bool {
	if ds.Space().Rank() > 0 {
		return false
	}
	_, err := ds.Read(nil)
	return errors.Is(err, store.ErrNoStorage)
}
