package memstore

import (
	"fmt"

	"github.com/HDFGroup/hdf5-json/pkg/store"
)

// selectionIndices maps a slab selection to flat row-major indices.
// A nil selection selects everything.
func selectionIndices(sp store.Space, sel []store.Slab) ([]int, error) {
	switch sp.Class {
	case store.SpaceNull:
		return nil, store.ErrNoStorage
	case store.SpaceScalar:
		if len(sel) != 0 {
			return nil, fmt.Errorf("scalar dataspace takes no selection: %w", store.ErrInvalidSelection)
		}
		return []int{0}, nil
	}
	rank := sp.Rank()
	if sel == nil {
		sel = make([]store.Slab, rank)
		for i, d := range sp.Dims {
			sel[i] = store.Slab{Start: 0, Stop: d, Step: 1}
		}
	}
	if len(sel) != rank {
		return nil, fmt.Errorf("selection rank %d does not match space rank %d: %w", len(sel), rank, store.ErrInvalidSelection)
	}
	total := 1
	for i, s := range sel {
		if s.Step < 1 {
			sel[i].Step = 1
		}
		if s.Start < 0 || s.Stop > sp.Dims[i] || s.Start > s.Stop {
			return nil, fmt.Errorf("slab [%d:%d] out of extent %d in dimension %d: %w", s.Start, s.Stop, sp.Dims[i], i, store.ErrInvalidSelection)
		}
		total *= sel[i].Count()
	}
	strides := make([]int, rank)
	stride := 1
	for i := rank - 1; i >= 0; i-- {
		strides[i] = stride
		stride *= sp.Dims[i]
	}
	out := make([]int, 0, total)
	if total == 0 {
		return out, nil
	}
	odo := make([]int, rank)
	for {
		idx := 0
		for i := range odo {
			idx += (sel[i].Start + odo[i]*sel[i].Step) * strides[i]
		}
		out = append(out, idx)
		i := rank - 1
		for ; i >= 0; i-- {
			odo[i]++
			if odo[i] < sel[i].Count() {
				break
			}
			odo[i] = 0
		}
		if i < 0 {
			return out, nil
		}
	}
}

// copySlabs keeps nil as nil; selectionIndices may adjust steps in place.
func copySlabs(sel []store.Slab) []store.Slab {
	if sel == nil {
		return nil
	}
	return append([]store.Slab{}, sel...)
}

func pointIndices(sp store.Space, points [][]int) ([]int, error) {
	switch sp.Class {
	case store.SpaceNull:
		return nil, store.ErrNoStorage
	case store.SpaceScalar:
		return nil, fmt.Errorf("point selection on a scalar dataspace: %w", store.ErrInvalidSelection)
	}
	out := make([]int, len(points))
	for n, pt := range points {
		if len(pt) != sp.Rank() {
			return nil, fmt.Errorf("point %v does not match space rank %d: %w", pt, sp.Rank(), store.ErrInvalidSelection)
		}
		idx := 0
		for i, c := range pt {
			if c < 0 || c >= sp.Dims[i] {
				return nil, fmt.Errorf("point %v out of extent %v: %w", pt, sp.Dims, store.ErrInvalidSelection)
			}
			idx = idx*sp.Dims[i] + c
		}
		out[n] = idx
	}
	return out, nil
}

func (o *object) checkDataset() error {
	if o.typ != store.ObjectDataset {
		return fmt.Errorf("object %d is not a dataset: %w", o.addr, store.ErrTypeMismatch)
	}
	return nil
}

func (o *object) Read(sel []store.Slab) ([]any, error) {
	if err := o.checkDataset(); err != nil {
		return nil, err
	}
	idx, err := selectionIndices(o.space, copySlabs(sel))
	if err != nil {
		return nil, err
	}
	return o.gather(idx), nil
}

func (o *object) ReadPoints(points [][]int) ([]any, error) {
	if err := o.checkDataset(); err != nil {
		return nil, err
	}
	idx, err := pointIndices(o.space, points)
	if err != nil {
		return nil, err
	}
	return o.gather(idx), nil
}

func (o *object) gather(idx []int) []any {
	out := make([]any, len(idx))
	for i, n := range idx {
		out[i] = o.data[n]
	}
	return out
}

func (o *object) Write(sel []store.Slab, values []any) error {
	if err := o.checkDataset(); err != nil {
		return err
	}
	if err := o.st.checkWritable(); err != nil {
		return err
	}
	idx, err := selectionIndices(o.space, copySlabs(sel))
	if err != nil {
		return err
	}
	return o.scatter(idx, values)
}

func (o *object) WritePoints(points [][]int, values []any) error {
	if err := o.checkDataset(); err != nil {
		return err
	}
	if err := o.st.checkWritable(); err != nil {
		return err
	}
	idx, err := pointIndices(o.space, points)
	if err != nil {
		return err
	}
	return o.scatter(idx, values)
}

// scatter normalizes every value before storing any, so a bad value leaves
// the dataset untouched.
func (o *object) scatter(idx []int, values []any) error {
	if len(values) != len(idx) {
		return fmt.Errorf("%d values for %d selected elements: %w", len(values), len(idx), store.ErrInvalidSelection)
	}
	norm := make([]any, len(values))
	for i, v := range values {
		nv, err := normalize(o.dtype, v)
		if err != nil {
			return fmt.Errorf("element %d: %w", i, err)
		}
		norm[i] = nv
	}
	for i, n := range idx {
		o.data[n] = norm[i]
	}
	o.st.dirty = true
	return nil
}

// Resize changes the current extent within the max extent.
// Elements inside both extents keep their values; new ones get the fill value.
func (o *object) Resize(dims []int) error {
	if err := o.checkDataset(); err != nil {
		return err
	}
	if err := o.st.checkWritable(); err != nil {
		return err
	}
	if o.space.Class != store.SpaceSimple || o.space.MaxDims == nil {
		return fmt.Errorf("dataset %d is not extendable: %w", o.addr, store.ErrInvalidSelection)
	}
	if len(dims) != o.space.Rank() {
		return fmt.Errorf("resize rank %d does not match space rank %d: %w", len(dims), o.space.Rank(), store.ErrInvalidSelection)
	}
	for i, d := range dims {
		m := o.space.MaxDims[i]
		if d < 0 || (m != store.Unlimited && d > m) {
			return fmt.Errorf("extent %d exceeds max extent %d: %w", d, m, store.ErrInvalidSelection)
		}
	}
	newSpace := copySpace(o.space)
	newSpace.Dims = append([]int(nil), dims...)
	fill := o.spec.FillValue
	if fill == nil {
		fill = zeroValue(o.dtype)
	}
	data := make([]any, newSpace.NumElements())
	for i := range data {
		data[i] = fill
	}
	overlap := make([]store.Slab, len(dims))
	for i := range dims {
		overlap[i] = store.Slab{Stop: min(dims[i], o.space.Dims[i]), Step: 1}
	}
	from, err := selectionIndices(o.space, overlap)
	if err != nil {
		return err
	}
	to, err := selectionIndices(newSpace, overlap)
	if err != nil {
		return err
	}
	for i := range from {
		data[to[i]] = o.data[from[i]]
	}
	o.space = newSpace
	o.spec.Space = copySpace(newSpace)
	o.data = data
	o.st.dirty = true
	return nil
}
