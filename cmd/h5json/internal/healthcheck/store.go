package healthcheck

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/serum-errors/go-serum"

	"github.com/HDFGroup/hdf5-json/h5api"
	"github.com/HDFGroup/hdf5-json/pkg/h5db"
)

// StoreCheck opens a store read-only and resolves every uuid its directory lists.
type StoreCheck struct {
	Filename string
	Options  h5db.Options
}

func (c *StoreCheck) Name() string {
	return "Store " + filepath.Base(c.Filename)
}

// Run
// Errors:
//
//   - h5json-healthcheck-run-okay -- when every listed object resolves
//   - h5json-healthcheck-run-fail -- when the store cannot be opened or an object is missing
func (c *StoreCheck) Run(ctx context.Context) error {
	opts := c.Options
	opts.ReadOnly = true
	db, err := h5db.Open(ctx, c.Filename, opts)
	if err != nil {
		return serum.Errorf(CodeRunFailure, "opening: %s", err)
	}
	defer db.Close()

	dir := db.Directory()
	if _, err := dir.Resolve(h5api.ObjectKind_Group, db.RootUUID()); err != nil {
		return serum.Errorf(CodeRunFailure, "root group %s: %s", db.RootUUID(), err)
	}
	counts := make([]int, len(h5api.ObjectKinds))
	for i, kind := range h5api.ObjectKinds {
		ids, err := dir.Collection(kind, "", 0)
		if err != nil {
			return serum.Errorf(CodeRunFailure, "listing %s: %s", kind, err)
		}
		for _, id := range ids {
			if _, err := dir.Resolve(kind, id); err != nil {
				return serum.Errorf(CodeRunFailure, "%s %s: %s", kind.Singular(), id, err)
			}
		}
		counts[i] = len(ids)
	}
	return serum.Errorf(CodeRunOkay, "root %s, %s", db.RootUUID(), summary(counts))
}

func summary(counts []int) string {
	s := ""
	for i, kind := range h5api.ObjectKinds {
		if i > 0 {
			s += ", "
		}
		s += fmt.Sprintf("%d %s", counts[i], kind)
	}
	return s
}
