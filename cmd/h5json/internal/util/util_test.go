package util

import (
	"os"
	"path/filepath"
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/serum-errors/go-serum"
	"github.com/warpfork/go-fsx/osfs"

	"github.com/HDFGroup/hdf5-json/h5api"
)

func TestExpandStores(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.h5j", "sub/b.h5j", "sub/.b.h5j", "sub/notes.json"} {
		path := filepath.Join(dir, name)
		qt.Assert(t, os.MkdirAll(filepath.Dir(path), 0o755), qt.IsNil)
		qt.Assert(t, os.WriteFile(path, nil, 0o644), qt.IsNil)
	}
	fsys := osfs.DirFS(dir)

	got, err := ExpandStores(fsys, []string{"..."})
	qt.Assert(t, err, qt.IsNil)
	qt.Check(t, got, qt.DeepEquals, []string{"a.h5j", "sub/b.h5j"})

	got, err = ExpandStores(fsys, []string{"sub/...", "a.h5j"})
	qt.Assert(t, err, qt.IsNil)
	qt.Check(t, got, qt.DeepEquals, []string{"sub/b.h5j", "a.h5j"})

	_, err = ExpandStores(fsys, []string{"missing.h5j"})
	qt.Check(t, serum.Code(err), qt.Equals, h5api.ECodeInvalidArgument)
	_, err = ExpandStores(fsys, []string{"sub"})
	qt.Check(t, serum.Code(err), qt.Equals, h5api.ECodeInvalidArgument)
}
