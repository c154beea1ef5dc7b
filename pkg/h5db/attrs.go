package h5db

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/HDFGroup/hdf5-json/h5api"
	"github.com/HDFGroup/hdf5-json/pkg/directory"
	"github.com/HDFGroup/hdf5-json/pkg/logging"
	"github.com/HDFGroup/hdf5-json/pkg/store"
)

// Dimension scale attribute names.
const (
	DimensionListAttr = "DIMENSION_LIST"
	ReferenceListAttr = "REFERENCE_LIST"
	classAttr         = "CLASS"
	dimensionScale    = "DIMENSION_SCALE"
)

// AttributeRequest describes an attribute to create or replace.
type AttributeRequest struct {
	Name  string
	Type  h5api.TypeDescriptor
	Shape h5api.Shape
	Value any
}

func paginate(names []string, marker string, limit int) []string {
	start := 0
	if marker != "" {
		start = len(names)
		for i, n := range names {
			if n == marker {
				start = i + 1
				break
			}
		}
	}
	out := names[start:]
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func spaceShape(sp store.Space) h5api.Shape {
	switch sp.Class {
	case store.SpaceNull:
		return h5api.Shape{Class: h5api.ShapeClass_Null}
	case store.SpaceScalar:
		return h5api.Shape{Class: h5api.ShapeClass_Scalar}
	}
	return h5api.Shape{Class: h5api.ShapeClass_Simple, Dims: append([]int(nil), sp.Dims...)}
}

// GetAttributeItems lists the attributes of an object in creation order,
// without their values. Listing resumes after marker; limit 0 means no limit.
//
// Errors:
//
//   - h5json-error-not-found -- when there is no such object
//   - h5json-error-invalid-type -- when an attribute type has no descriptor form
func (db *DB) GetAttributeItems(ctx context.Context, kind h5api.ObjectKind, id, marker string, limit int) ([]h5api.AttributeItem, error) {
	obj, err := db.dir.Resolve(kind, id)
	if err != nil {
		return nil, err
	}
	names := paginate(obj.Attrs().Names(), marker, limit)
	out := make([]h5api.AttributeItem, 0, len(names))
	for _, name := range names {
		item, err := db.attributeItem(id, obj, name, false)
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, nil
}

// GetAttributeItem describes one attribute, with its value.
//
// Errors:
//
//   - h5json-error-not-found -- when there is no such object or attribute
//   - h5json-error-already-deleted -- when the attribute was deleted
func (db *DB) GetAttributeItem(ctx context.Context, kind h5api.ObjectKind, id, name string) (h5api.AttributeItem, error) {
	obj, err := db.dir.Resolve(kind, id)
	if err != nil {
		return h5api.AttributeItem{}, err
	}
	return db.attributeItem(id, obj, name, true)
}

func (db *DB) attributeItem(id string, obj store.Object, name string, withValue bool) (h5api.AttributeItem, error) {
	a, err := obj.Attrs().Get(name)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			if db.dir.Stamped(id, directory.AttrScope(name)) {
				return h5api.AttributeItem{}, h5api.ErrorAlreadyDeleted("attributes", name)
			}
			return h5api.AttributeItem{}, h5api.ErrorNotFound("attribute", name)
		}
		return h5api.AttributeItem{}, store.APIError("attribute "+name, err)
	}
	t, err := db.types.Decode(a.Type)
	if err != nil {
		return h5api.AttributeItem{}, err
	}
	item := h5api.AttributeItem{Name: name, Type: t, Shape: spaceShape(a.Space)}
	if withValue && a.Space.Class != store.SpaceNull {
		item.Value, err = db.values.Decode(t, a.Values, a.Space.Dims)
		if err != nil {
			return h5api.AttributeItem{}, err
		}
		item.HasValue = true
	}
	item.Ctime, item.Mtime = db.times(id, directory.AttrScope(name))
	return item, nil
}

// CreateAttribute creates or replaces an attribute.
//
// DIMENSION_LIST on a dataset attaches dimension scales: the value lists the
// scale references of each dimension, and every attached scale gets this
// dataset added to its REFERENCE_LIST. REFERENCE_LIST is only ever maintained
// that way and is skipped when given directly.
//
// Errors:
//
//   - h5json-error-permission-denied -- when the store is read-only
//   - h5json-error-not-found -- when there is no such object, or a reference does not resolve
//   - h5json-error-shape-mismatch -- when the value does not match the shape or type
//   - h5json-error-invalid-argument -- when the name or shape is not valid
func (db *DB) CreateAttribute(ctx context.Context, kind h5api.ObjectKind, id string, req AttributeRequest) error {
	if err := db.checkWritable(); err != nil {
		return err
	}
	obj, err := db.dir.Resolve(kind, id)
	if err != nil {
		return err
	}
	if req.Name == "" {
		return h5api.ErrorInvalidArgument("attribute name is empty")
	}
	log := logging.Ctx(ctx)
	switch {
	case req.Name == ReferenceListAttr:
		log.Info(LOG_TAG, "skipping %s on %s, it is maintained by attaching scales", ReferenceListAttr, id)
		return nil
	case req.Name == DimensionListAttr && kind == h5api.ObjectKind_Dataset:
		return db.attachScales(ctx, id, obj.(store.Dataset), req.Value)
	}
	if err := checkShape(req.Shape); err != nil {
		return err
	}
	if req.Shape.MaxDims != nil {
		return h5api.ErrorInvalidArgument("attributes are not extendable")
	}
	t, err := db.types.Encode(req.Type)
	if err != nil {
		return err
	}
	a := store.Attribute{Type: t, Space: spaceOf(req.Shape)}
	if req.Shape.Class != h5api.ShapeClass_Null {
		a.Values, err = db.values.Encode(req.Type, req.Value, req.Shape.Dims)
		if err != nil {
			return err
		}
	}
	if err := obj.Attrs().Set(req.Name, a); err != nil {
		return store.APIError("setting attribute "+req.Name, err)
	}
	log.Debug(LOG_TAG, "set attribute %q on %s", req.Name, id)
	return db.stampAttr(id, req.Name)
}

func (db *DB) stampAttr(id, name string) error {
	if err := db.dir.SetCreateTime(id, directory.AttrScope(name), 0); err != nil {
		return err
	}
	return db.dir.SetModifiedTime(id, directory.AttrScope(name), 0)
}

// DeleteAttribute removes an attribute.
//
// Errors:
//
//   - h5json-error-permission-denied -- when the store is read-only
//   - h5json-error-not-found -- when there is no such object or attribute
func (db *DB) DeleteAttribute(ctx context.Context, kind h5api.ObjectKind, id, name string) error {
	if err := db.checkWritable(); err != nil {
		return err
	}
	obj, err := db.dir.Resolve(kind, id)
	if err != nil {
		return err
	}
	if err := obj.Attrs().Delete(name); err != nil {
		return store.APIError("attribute "+name, err)
	}
	logging.Ctx(ctx).Debug(LOG_TAG, "deleted attribute %q of %s", name, id)
	return db.dir.SetModifiedTime(id, directory.AttrScope(name), 0)
}

func objectRefType() h5api.TypeDescriptor {
	return h5api.TypeDescriptor{Reference: &h5api.ReferenceType{Kind: h5api.RefKind_Object}}
}

func dimensionListType() h5api.TypeDescriptor {
	return h5api.TypeDescriptor{Vlen: &h5api.VlenType{Base: objectRefType()}}
}

func referenceListType() h5api.TypeDescriptor {
	return h5api.TypeDescriptor{Compound: &h5api.CompoundType{Fields: []h5api.CompoundField{
		{Name: "dataset", Type: objectRefType()},
		{Name: "dimension", Type: h5api.TypeDescriptor{Integer: &h5api.IntegerType{Bits: 32, Signed: true, Order: h5api.ByteOrder_LE}}},
	}}}
}

// isDimensionScale checks the CLASS attribute of a dataset.
func isDimensionScale(ds store.Dataset) bool {
	a, err := ds.Attrs().Get(classAttr)
	if err != nil || len(a.Values) != 1 {
		return false
	}
	var s string
	switch v := a.Values[0].(type) {
	case []byte:
		s = string(v)
	case string:
		s = v
	}
	return strings.TrimRight(s, "\x00 ") == dimensionScale
}

func (db *DB) attachScales(ctx context.Context, id string, ds store.Dataset, value any) error {
	log := logging.Ctx(ctx)
	rank := ds.Space().Rank()
	dims, ok := value.([]any)
	if !ok || len(dims) != rank {
		return h5api.ErrorShapeMismatch(DimensionListAttr+" needs one entry per dimension",
			[2]string{"rank", strconv.Itoa(rank)})
	}
	rows := make([]any, rank)
	for dim, entry := range dims {
		refs, ok := entry.([]any)
		if !ok {
			refs = []any{entry}
		}
		row := []any{}
		for _, r := range refs {
			s, _ := r.(string)
			kind, sid, err := h5api.ParseObjectRefString(s)
			if err != nil {
				return err
			}
			if kind != h5api.ObjectKind_Dataset {
				return h5api.ErrorInvalidArgument("dimension scales are datasets", [2]string{"ref", s})
			}
			scale, err := db.dir.Dataset(sid)
			if err != nil {
				return err
			}
			if !isDimensionScale(scale) {
				log.Warn(LOG_TAG, "%s is not a dimension scale, not attaching it to %s", sid, id)
				continue
			}
			if err := db.addReference(sid, scale, ds.Addr(), dim); err != nil {
				return err
			}
			row = append(row, store.ObjectRef{Addr: scale.Addr()})
		}
		rows[dim] = row
	}
	t, err := db.types.Encode(dimensionListType())
	if err != nil {
		return err
	}
	a := store.Attribute{Type: t, Space: store.Space{Class: store.SpaceSimple, Dims: []int{rank}}, Values: rows}
	if err := ds.Attrs().Set(DimensionListAttr, a); err != nil {
		return store.APIError("setting "+DimensionListAttr, err)
	}
	return db.stampAttr(id, DimensionListAttr)
}

// addReference records on a scale that dimension dim of the dataset at addr uses it.
func (db *DB) addReference(scaleID string, scale store.Dataset, addr store.Addr, dim int) error {
	var rows []any
	if a, err := scale.Attrs().Get(ReferenceListAttr); err == nil {
		rows = a.Values
	}
	for _, r := range rows {
		if row, ok := r.([]any); ok && len(row) == 2 && row[0] == (store.ObjectRef{Addr: addr}) && row[1] == int64(dim) {
			return nil
		}
	}
	rows = append(rows, []any{store.ObjectRef{Addr: addr}, int64(dim)})
	t, err := db.types.Encode(referenceListType())
	if err != nil {
		return err
	}
	a := store.Attribute{Type: t, Space: store.Space{Class: store.SpaceSimple, Dims: []int{len(rows)}}, Values: rows}
	if err := scale.Attrs().Set(ReferenceListAttr, a); err != nil {
		return store.APIError("setting "+ReferenceListAttr, err)
	}
	return db.stampAttr(scaleID, ReferenceListAttr)
}
