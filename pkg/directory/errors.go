package directory

import (
	"fmt"

	"github.com/HDFGroup/hdf5-json/pkg/store"
)

func errNotGroup(name string) error {
	return fmt.Errorf("%q is not a group", name)
}

func errMissing(name string) error {
	return fmt.Errorf("%q is missing or malformed", name)
}

func errUnknownObject(addr store.Addr) error {
	return fmt.Errorf("object at address %d has an unknown type", addr)
}

func errWriteOnce(id string) error {
	return fmt.Errorf("%q may only be written once", id)
}
