package h5db

import (
	"context"
	"strconv"

	"github.com/HDFGroup/hdf5-json/h5api"
	"github.com/HDFGroup/hdf5-json/pkg/directory"
	"github.com/HDFGroup/hdf5-json/pkg/store"
	"github.com/HDFGroup/hdf5-json/pkg/valuecodec"
)

// datasetForValues resolves a dataset with its descriptor.
// A null dataspace reports null=true.
func (db *DB) datasetForValues(id string) (ds store.Dataset, d h5api.TypeDescriptor, null bool, err error) {
	ds, err = db.dir.Dataset(id)
	if err != nil {
		return nil, d, false, err
	}
	d, err = db.types.DecodeInline(ds.DataType())
	if err != nil {
		return nil, d, false, err
	}
	return ds, d, valuecodec.IsNullSpace(ds), nil
}

// selection converts per-dimension slices into slabs.
// A nil selection selects everything. It returns the extent of the selection.
func selection(sp store.Space, sel []h5api.Slice) ([]store.Slab, []int, error) {
	if sp.Rank() == 0 {
		if len(sel) != 0 {
			return nil, nil, h5api.ErrorInvalidArgument("a scalar dataset takes no selection")
		}
		return nil, nil, nil
	}
	if sel == nil {
		return nil, append([]int(nil), sp.Dims...), nil
	}
	if len(sel) != sp.Rank() {
		return nil, nil, h5api.ErrorInvalidArgument("selection rank does not match the dataset",
			[2]string{"rank", strconv.Itoa(sp.Rank())},
			[2]string{"selection", strconv.Itoa(len(sel))},
		)
	}
	slabs := make([]store.Slab, len(sel))
	dims := make([]int, len(sel))
	for i, s := range sel {
		step := s.Step
		if step == 0 {
			step = 1
		}
		if step < 0 || s.Start < 0 || s.Stop > sp.Dims[i] || s.Start > s.Stop {
			return nil, nil, h5api.ErrorInvalidArgument("selection is out of range",
				[2]string{"dim", strconv.Itoa(i)},
				[2]string{"extent", strconv.Itoa(sp.Dims[i])},
			)
		}
		slabs[i] = store.Slab{Start: s.Start, Stop: s.Stop, Step: step}
		dims[i] = slabs[i].Count()
	}
	return slabs, dims, nil
}

func product(dims []int) int {
	n := 1
	for _, d := range dims {
		n *= d
	}
	return n
}

// GetDatasetValues reads a selection as a JSON value tree nested like the
// selection. A dataset with a null dataspace has no value and yields nil.
//
// Errors:
//
//   - h5json-error-not-found -- when there is no such dataset
//   - h5json-error-invalid-argument -- when the selection does not fit the dataset
func (db *DB) GetDatasetValues(ctx context.Context, id string, sel []h5api.Slice) (any, error) {
	ds, d, null, err := db.datasetForValues(id)
	if err != nil || null {
		return nil, err
	}
	slabs, dims, err := selection(ds.Space(), sel)
	if err != nil {
		return nil, err
	}
	vals, err := ds.Read(slabs)
	if err != nil {
		return nil, store.APIError("reading dataset "+id, err)
	}
	return db.values.Decode(d, vals, dims)
}

// SetDatasetValues writes a JSON value tree into a selection.
// The value must be nested exactly like the selection.
//
// Errors:
//
//   - h5json-error-permission-denied -- when the store is read-only
//   - h5json-error-not-found -- when there is no such dataset
//   - h5json-error-invalid-argument -- when the dataset has a null dataspace, or the selection does not fit
//   - h5json-error-shape-mismatch -- when the value does not match the selection or the type
func (db *DB) SetDatasetValues(ctx context.Context, id string, sel []h5api.Slice, value any) error {
	if err := db.checkWritable(); err != nil {
		return err
	}
	ds, d, null, err := db.datasetForValues(id)
	if err != nil {
		return err
	}
	if null {
		return h5api.ErrorInvalidArgument("dataset has a null dataspace", [2]string{"uuid", id})
	}
	slabs, dims, err := selection(ds.Space(), sel)
	if err != nil {
		return err
	}
	vals, err := db.values.Encode(d, value, dims)
	if err != nil {
		return err
	}
	return db.write(id, ds, slabs, dims, vals)
}

func (db *DB) write(id string, ds store.Dataset, slabs []store.Slab, dims []int, vals []any) error {
	if want := product(dims); len(vals) != want {
		return h5api.ErrorShapeMismatch("number of values does not match the selection",
			[2]string{"values", strconv.Itoa(len(vals))},
			[2]string{"selected", strconv.Itoa(want)},
		)
	}
	if err := ds.Write(slabs, vals); err != nil {
		return store.APIError("writing dataset "+id, err)
	}
	return db.dir.SetModifiedTime(id, directory.ObjectScope, 0)
}

// GetDatasetValuesBinary reads a selection in the packed binary element layout.
//
// Errors:
//
//   - h5json-error-invalid-argument -- when the type has a variable size, or the selection does not fit
//   - h5json-error-not-found -- when there is no such dataset
func (db *DB) GetDatasetValuesBinary(ctx context.Context, id string, sel []h5api.Slice) ([]byte, error) {
	ds, d, null, err := db.datasetForValues(id)
	if err != nil || null {
		return nil, err
	}
	slabs, _, err := selection(ds.Space(), sel)
	if err != nil {
		return nil, err
	}
	vals, err := ds.Read(slabs)
	if err != nil {
		return nil, store.APIError("reading dataset "+id, err)
	}
	return db.values.EncodeRaw(d, vals)
}

// SetDatasetValuesBinary writes packed binary elements into a selection.
//
// Errors:
//
//   - h5json-error-permission-denied -- when the store is read-only
//   - h5json-error-invalid-argument -- when the type has a variable size, or raw is not a whole number of elements
//   - h5json-error-shape-mismatch -- when the number of elements does not match the selection
func (db *DB) SetDatasetValuesBinary(ctx context.Context, id string, sel []h5api.Slice, raw []byte) error {
	if err := db.checkWritable(); err != nil {
		return err
	}
	ds, d, null, err := db.datasetForValues(id)
	if err != nil {
		return err
	}
	if null {
		return h5api.ErrorInvalidArgument("dataset has a null dataspace", [2]string{"uuid", id})
	}
	slabs, dims, err := selection(ds.Space(), sel)
	if err != nil {
		return err
	}
	vals, err := db.values.DecodeRaw(d, raw)
	if err != nil {
		return err
	}
	return db.write(id, ds, slabs, dims, vals)
}

func checkPoints(sp store.Space, points [][]int) error {
	if sp.Rank() == 0 {
		return h5api.ErrorInvalidArgument("point selections need a dataset of rank 1 or more")
	}
	for _, p := range points {
		if len(p) != sp.Rank() {
			return h5api.ErrorInvalidArgument("point rank does not match the dataset",
				[2]string{"rank", strconv.Itoa(sp.Rank())})
		}
		for i, x := range p {
			if x < 0 || x >= sp.Dims[i] {
				return h5api.ErrorInvalidArgument("point is out of range",
					[2]string{"dim", strconv.Itoa(i)},
					[2]string{"index", strconv.Itoa(x)},
				)
			}
		}
	}
	return nil
}

// GetDatasetPointSelection reads individual elements; the result is a list
// with one value per point.
//
// Errors:
//
//   - h5json-error-not-found -- when there is no such dataset
//   - h5json-error-invalid-argument -- when a point does not fit the dataset
func (db *DB) GetDatasetPointSelection(ctx context.Context, id string, points [][]int) (any, error) {
	ds, d, null, err := db.datasetForValues(id)
	if err != nil {
		return nil, err
	}
	if null {
		return nil, h5api.ErrorInvalidArgument("dataset has a null dataspace", [2]string{"uuid", id})
	}
	if err := checkPoints(ds.Space(), points); err != nil {
		return nil, err
	}
	vals, err := ds.ReadPoints(points)
	if err != nil {
		return nil, store.APIError("reading dataset "+id, err)
	}
	return db.values.Decode(d, vals, []int{len(points)})
}

// SetDatasetPointSelection writes one value per point.
//
// Errors:
//
//   - h5json-error-permission-denied -- when the store is read-only
//   - h5json-error-invalid-argument -- when a point does not fit the dataset
//   - h5json-error-shape-mismatch -- when value is not a list with one element per point
func (db *DB) SetDatasetPointSelection(ctx context.Context, id string, points [][]int, value any) error {
	if err := db.checkWritable(); err != nil {
		return err
	}
	ds, d, null, err := db.datasetForValues(id)
	if err != nil {
		return err
	}
	if null {
		return h5api.ErrorInvalidArgument("dataset has a null dataspace", [2]string{"uuid", id})
	}
	if err := checkPoints(ds.Space(), points); err != nil {
		return err
	}
	vals, err := db.values.Encode(d, value, []int{len(points)})
	if err != nil {
		return err
	}
	if err := ds.WritePoints(points, vals); err != nil {
		return store.APIError("writing dataset "+id, err)
	}
	return db.dir.SetModifiedTime(id, directory.ObjectScope, 0)
}
