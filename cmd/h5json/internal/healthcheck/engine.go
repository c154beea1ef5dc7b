package healthcheck

import (
	"context"
	"os"
	"path/filepath"

	"github.com/serum-errors/go-serum"

	"github.com/HDFGroup/hdf5-json/h5api"
	"github.com/HDFGroup/hdf5-json/pkg/h5db"
	"github.com/HDFGroup/hdf5-json/pkg/store/memstore"
)

// EngineCheck writes a small store, reopens it read-only and reads it back.
type EngineCheck struct {
	Compression memstore.Compression
	// TempDir defaults to the system temporary directory.
	TempDir string
}

func (c *EngineCheck) Name() string {
	return "Store engine round trip"
}

// Run
// Errors:
//
//   - h5json-healthcheck-run-okay -- when the values read back match
//   - h5json-healthcheck-run-fail -- when any step fails
func (c *EngineCheck) Run(ctx context.Context) error {
	dir, err := os.MkdirTemp(c.TempDir, "h5json-health-")
	if err != nil {
		return serum.Errorf(CodeRunFailure, "creating temp dir: %w", err)
	}
	defer os.RemoveAll(dir)
	filename := filepath.Join(dir, "health.h5j")

	i32 := h5api.TypeDescriptor{Integer: &h5api.IntegerType{Signed: true, Bits: 32, Order: h5api.ByteOrder_LE}}
	want := []any{int64(1), int64(2), int64(3)}

	db, err := h5db.Open(ctx, filename, h5db.Options{Compression: c.Compression})
	if err != nil {
		return serum.Errorf(CodeRunFailure, "creating store: %w", err)
	}
	id, err := db.CreateDataset(ctx, h5db.DatasetRequest{
		Type:  i32,
		Shape: h5api.Shape{Class: h5api.ShapeClass_Simple, Dims: []int{len(want)}},
	})
	if err == nil {
		err = db.SetDatasetValues(ctx, id, nil, want)
	}
	if err == nil {
		err = db.Flush(ctx)
	}
	db.Close()
	if err != nil {
		return serum.Errorf(CodeRunFailure, "writing store: %w", err)
	}

	db, err = h5db.Open(ctx, filename, h5db.Options{ReadOnly: true, Compression: c.Compression})
	if err != nil {
		return serum.Errorf(CodeRunFailure, "reopening store: %w", err)
	}
	defer db.Close()
	got, err := db.GetDatasetValues(ctx, id, nil)
	if err != nil {
		return serum.Errorf(CodeRunFailure, "reading store: %w", err)
	}
	gotList, ok := got.([]any)
	if !ok || len(gotList) != len(want) {
		return serum.Errorf(CodeRunFailure, "read back %v, wrote %v", got, want)
	}
	for i := range want {
		if gotList[i] != want[i] {
			return serum.Errorf(CodeRunFailure, "read back %v, wrote %v", got, want)
		}
	}
	v := db.Version()
	return serum.Errorf(CodeRunOkay, "%s %s", v.EngineName, v.EngineVersion)
}
