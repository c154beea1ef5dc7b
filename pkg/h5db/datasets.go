package h5db

import (
	"context"
	"strconv"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/HDFGroup/hdf5-json/h5api"
	"github.com/HDFGroup/hdf5-json/pkg/directory"
	"github.com/HDFGroup/hdf5-json/pkg/logging"
	"github.com/HDFGroup/hdf5-json/pkg/store"
	"github.com/HDFGroup/hdf5-json/pkg/tracing"
	"github.com/HDFGroup/hdf5-json/pkg/valuecodec"
)

// DatasetRequest describes a dataset to create.
// ID may be empty to mint a uuid; Props may be nil.
type DatasetRequest struct {
	ID    string
	Type  h5api.TypeDescriptor
	Shape h5api.Shape
	Props *h5api.CreationProperties
}

// CreateDataset makes a new anonymous dataset and returns its uuid.
// Unknown allocTime and fillTime values, and filters with neither a known id
// nor a user id, are warned about and left out.
//
// Errors:
//
//   - h5json-error-permission-denied -- when the store is read-only
//   - h5json-error-invalid-argument -- when the shape, layout or fill value is not valid
//   - h5json-error-invalid-type -- when the type descriptor is malformed
//   - h5json-error-not-found -- when a Named type does not resolve
func (db *DB) CreateDataset(ctx context.Context, req DatasetRequest) (string, error) {
	ctx, span := tracing.Start(ctx, "h5db.CreateDataset", trace.WithAttributes(attribute.String(tracing.AttrKeyObjectID, req.ID)))
	defer span.End()
	id, err := db.createDataset(ctx, req)
	tracing.SetSpanError(ctx, err)
	return id, err
}

func (db *DB) createDataset(ctx context.Context, req DatasetRequest) (string, error) {
	if err := db.checkWritable(); err != nil {
		return "", err
	}
	t, err := db.types.Encode(req.Type)
	if err != nil {
		return "", err
	}
	if err := checkShape(req.Shape); err != nil {
		return "", err
	}
	spec := store.DatasetSpec{Type: t, Space: spaceOf(req.Shape)}
	var props *h5api.CreationProperties
	if req.Props != nil {
		props, err = db.applyProps(ctx, req, &spec)
		if err != nil {
			return "", err
		}
	}
	id, _, err := db.dir.CreateDataset(ctx, req.ID, spec)
	if err != nil {
		return "", err
	}
	if props != nil {
		js, err := h5api.MarshalCreationProperties(props)
		if err != nil {
			return "", err
		}
		if err := db.dir.SetCreationProps(id, string(js)); err != nil {
			return "", err
		}
	}
	return id, nil
}

func checkShape(shape h5api.Shape) error {
	switch shape.Class {
	case h5api.ShapeClass_Null, h5api.ShapeClass_Scalar:
		if len(shape.Dims) != 0 || len(shape.MaxDims) != 0 {
			return h5api.ErrorInvalidArgument("null and scalar shapes have no dims")
		}
		return nil
	case h5api.ShapeClass_Simple:
	default:
		return h5api.ErrorInvalidArgument("unknown shape class", [2]string{"class", string(shape.Class)})
	}
	if len(shape.Dims) == 0 {
		return h5api.ErrorInvalidArgument("a simple shape needs dims")
	}
	for _, d := range shape.Dims {
		if d < 0 {
			return h5api.ErrorInvalidArgument("negative extent", [2]string{"extent", strconv.Itoa(d)})
		}
	}
	if shape.MaxDims == nil {
		return nil
	}
	if len(shape.MaxDims) != len(shape.Dims) {
		return h5api.ErrorInvalidArgument("maxdims rank does not match dims rank")
	}
	for i, m := range shape.MaxDims {
		if m != h5api.Unlimited && m < shape.Dims[i] {
			return h5api.ErrorInvalidArgument("maxdims is less than dims",
				[2]string{"dim", strconv.Itoa(shape.Dims[i])},
				[2]string{"maxdim", strconv.Itoa(m)},
			)
		}
	}
	return nil
}

func contains(list []string, s string) bool {
	for _, x := range list {
		if x == s {
			return true
		}
	}
	return false
}

// applyProps fills spec from the creation properties, and returns the
// properties as they will be stored.
func (db *DB) applyProps(ctx context.Context, req DatasetRequest, spec *store.DatasetSpec) (*h5api.CreationProperties, error) {
	log := logging.Ctx(ctx)
	p := *req.Props

	if p.FillValue != nil {
		v, err := valuecodec.FromNode(p.FillValue)
		if err != nil {
			return nil, err
		}
		vals, err := db.values.Encode(req.Type, v, nil)
		if err != nil {
			return nil, h5api.ErrorInvalidArgument("invalid fill value: " + err.Error())
		}
		spec.FillValue = vals[0]
	}

	if p.Layout != nil {
		switch h5api.LayoutClass(p.Layout.Class) {
		case h5api.LayoutClass_Chunked:
			chunks := p.ChunkDims()
			if len(chunks) != spec.Space.Rank() {
				return nil, h5api.ErrorInvalidArgument("chunk dims do not match the rank of the shape")
			}
			for _, c := range chunks {
				if c < 1 {
					return nil, h5api.ErrorInvalidArgument("chunk extents must be positive")
				}
			}
			spec.Chunks = chunks
		case h5api.LayoutClass_Contiguous, h5api.LayoutClass_Compact:
			if spec.Space.MaxDims != nil {
				return nil, h5api.ErrorInvalidArgument("an extendable dataset needs a chunked layout",
					[2]string{"layout", p.Layout.Class})
			}
		default:
			return nil, h5api.ErrorInvalidArgument("unknown layout class", [2]string{"layout", p.Layout.Class})
		}
		spec.Layout = p.Layout.Class
	}

	if p.Filters != nil {
		var kept []h5api.Filter
		for _, f := range *p.Filters {
			fs, ok := filterSpec(f)
			if !ok {
				log.Warn(LOG_TAG, "filter %q with id %d is not supported, ignoring it", f.Class, f.Id)
				continue
			}
			spec.Filters = append(spec.Filters, fs)
			kept = append(kept, f)
		}
		p.Filters = &kept
	}

	if p.AllocTime != nil && !contains(h5api.AllocTimes, *p.AllocTime) {
		log.Warn(LOG_TAG, "unknown allocTime value %q, ignoring it", *p.AllocTime)
		p.AllocTime = nil
	}
	if p.FillTime != nil && !contains(h5api.FillTimes, *p.FillTime) {
		log.Warn(LOG_TAG, "unknown fillTime value %q, ignoring it", *p.FillTime)
		p.FillTime = nil
	}
	return &p, nil
}

// filterSpec maps a wire filter to what the engine records.
// Filters are known by id; a class alone names a known filter too.
func filterSpec(f h5api.Filter) (store.FilterSpec, bool) {
	id := f.Id
	if id == 0 {
		for k, class := range h5api.FilterClasses {
			if class == f.Class {
				id = k
			}
		}
	}
	if id <= 0 {
		return store.FilterSpec{}, false
	}
	fs := store.FilterSpec{ID: int(id), Name: h5api.FilterClasses[id]}
	if f.Name != nil {
		fs.Name = *f.Name
	}
	add := func(v *int64) {
		if v != nil {
			fs.Values = append(fs.Values, int(*v))
		}
	}
	switch id {
	case 1:
		add(f.Level)
	case 4:
		add(f.PixelsPerBlock)
		add(f.PixelsPerScanline)
	case 6:
		add(f.ScaleOffset)
	default:
		if f.Parameters != nil {
			for _, v := range *f.Parameters {
				fs.Values = append(fs.Values, int(v))
			}
		}
	}
	return fs, true
}

// creationProps returns the stored creation properties of a dataset,
// or, when none were stored, the ones implied by how it was created.
func (db *DB) creationProps(ctx context.Context, id string, ds store.Dataset) (*h5api.CreationProperties, error) {
	spec := ds.Spec()
	if js, ok := db.dir.CreationProps(id); ok {
		p, err := h5api.UnmarshalCreationProperties([]byte(js))
		if err != nil {
			return nil, err
		}
		if p.Layout == nil && spec.Chunks != nil {
			p.Layout = chunkedLayout(spec.Chunks)
		}
		return p, nil
	}
	return db.derivedProps(ctx, ds)
}

func chunkedLayout(chunks []int) *h5api.Layout {
	dims := make([]int64, len(chunks))
	for i, c := range chunks {
		dims[i] = int64(c)
	}
	return &h5api.Layout{Class: string(h5api.LayoutClass_Chunked), Dims: &dims}
}

func (db *DB) derivedProps(ctx context.Context, ds store.Dataset) (*h5api.CreationProperties, error) {
	spec := ds.Spec()
	p := &h5api.CreationProperties{}

	class := h5api.LayoutClass(spec.Layout)
	switch {
	case spec.Chunks != nil:
		class = h5api.LayoutClass_Chunked
		p.Layout = chunkedLayout(spec.Chunks)
	case class == "":
		class = h5api.LayoutClass_Contiguous
		fallthrough
	default:
		p.Layout = &h5api.Layout{Class: string(class)}
	}
	alloc := map[h5api.LayoutClass]string{
		h5api.LayoutClass_Contiguous: "H5D_ALLOC_TIME_LATE",
		h5api.LayoutClass_Chunked:    "H5D_ALLOC_TIME_INCR",
		h5api.LayoutClass_Compact:    "H5D_ALLOC_TIME_EARLY",
	}[class]
	if alloc != "" {
		p.AllocTime = &alloc
	}
	fillTime := "H5D_FILL_TIME_IFSET"
	p.FillTime = &fillTime

	t := spec.Type
	if spec.FillValue != nil && t.Class != store.ClassVlen && t.Class != store.ClassOpaque {
		d, err := db.types.DecodeInline(t)
		if err != nil {
			return nil, err
		}
		v, err := db.values.Decode(d, []any{spec.FillValue}, nil)
		if err != nil {
			return nil, err
		}
		if p.FillValue, err = valuecodec.ToNode(v); err != nil {
			return nil, err
		}
	}

	if len(spec.Filters) > 0 {
		filters := make([]h5api.Filter, 0, len(spec.Filters))
		for _, fs := range spec.Filters {
			filters = append(filters, wireFilter(fs))
		}
		p.Filters = &filters
	}
	return p, nil
}

func wireFilter(fs store.FilterSpec) h5api.Filter {
	f := h5api.Filter{Id: int64(fs.ID), Class: h5api.FilterClass_User}
	if class, ok := h5api.FilterClasses[f.Id]; ok {
		f.Class = class
	}
	if fs.Name != "" {
		name := fs.Name
		f.Name = &name
	}
	values := make([]int64, len(fs.Values))
	for i, v := range fs.Values {
		values[i] = int64(v)
	}
	switch {
	case fs.ID == 1 && len(values) > 0:
		f.Level = &values[0]
	case fs.ID == 4 && len(values) > 1:
		f.PixelsPerBlock = &values[0]
		f.PixelsPerScanline = &values[1]
	case fs.ID == 6 && len(values) > 0:
		f.ScaleOffset = &values[0]
	case len(values) > 0:
		f.Parameters = &values
	}
	return f
}

// ResizeDataset changes the current extent of an extendable dataset.
// Datasets never shrink.
//
// Errors:
//
//   - h5json-error-permission-denied -- when the store is read-only
//   - h5json-error-invalid-argument -- when the dataset is not extendable, or dims do not fit
//   - h5json-error-not-found -- when there is no such dataset
func (db *DB) ResizeDataset(ctx context.Context, id string, dims []int) error {
	if err := db.checkWritable(); err != nil {
		return err
	}
	ds, err := db.dir.Dataset(id)
	if err != nil {
		return err
	}
	sp := ds.Space()
	if sp.MaxDims == nil {
		return h5api.ErrorInvalidArgument("dataset is not extendable", [2]string{"uuid", id})
	}
	if len(dims) != sp.Rank() {
		return h5api.ErrorInvalidArgument("resize rank does not match the dataset",
			[2]string{"rank", strconv.Itoa(sp.Rank())})
	}
	for i, d := range dims {
		if d < sp.Dims[i] {
			return h5api.ErrorInvalidArgument("datasets can not be made smaller",
				[2]string{"dim", strconv.Itoa(i)})
		}
		if m := sp.MaxDims[i]; m != h5api.Unlimited && d > m {
			return h5api.ErrorInvalidArgument("extent exceeds maxdims",
				[2]string{"dim", strconv.Itoa(i)},
				[2]string{"maxdim", strconv.Itoa(m)},
			)
		}
	}
	if err := ds.Resize(dims); err != nil {
		return store.APIError("resizing dataset "+id, err)
	}
	logging.Ctx(ctx).Debug(LOG_TAG, "resized dataset %s to %v", id, dims)
	return db.dir.SetModifiedTime(id, directory.ObjectScope, 0)
}
