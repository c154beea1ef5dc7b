package h5db

import (
	"context"
	"strings"

	"github.com/HDFGroup/hdf5-json/h5api"
	"github.com/HDFGroup/hdf5-json/pkg/directory"
	"github.com/HDFGroup/hdf5-json/pkg/store"
	"github.com/HDFGroup/hdf5-json/pkg/valuecodec"
)

// aliases lists the path an object is known by, unless it only lives
// inside the directory.
func aliases(obj store.Object) []string {
	name := obj.Name()
	if name == "" || strings.HasPrefix(name, "/"+directory.DBGroupName) {
		return []string{}
	}
	return []string{name}
}

func shapeOf(ds store.Dataset) h5api.Shape {
	sp := ds.Space()
	if sp.Rank() == 0 {
		if sp.Class == store.SpaceNull || valuecodec.IsNullSpace(ds) {
			return h5api.Shape{Class: h5api.ShapeClass_Null}
		}
		return h5api.Shape{Class: h5api.ShapeClass_Scalar}
	}
	shape := h5api.Shape{Class: h5api.ShapeClass_Simple, Dims: append([]int(nil), sp.Dims...)}
	if sp.MaxDims != nil {
		shape.MaxDims = append([]int(nil), sp.MaxDims...)
	}
	return shape
}

func spaceOf(shape h5api.Shape) store.Space {
	switch shape.Class {
	case h5api.ShapeClass_Null:
		return store.Space{Class: store.SpaceNull}
	case h5api.ShapeClass_Scalar:
		return store.Space{Class: store.SpaceScalar}
	}
	sp := store.Space{Class: store.SpaceSimple, Dims: append([]int(nil), shape.Dims...)}
	if shape.MaxDims != nil {
		sp.MaxDims = append([]int(nil), shape.MaxDims...)
	}
	return sp
}

func (db *DB) times(id string, scope directory.Scope) (int64, int64) {
	if !db.dir.Timestamps() {
		return 0, 0
	}
	return db.dir.CreateTime(id, scope), db.dir.ModifiedTime(id, scope)
}

// GetGroupItem describes a group.
//
// Errors:
//
//   - h5json-error-not-found -- when there is no such group
//   - h5json-error-already-deleted -- when the group was deleted
func (db *DB) GetGroupItem(ctx context.Context, id string) (h5api.GroupItem, error) {
	g, err := db.dir.Group(id)
	if err != nil {
		return h5api.GroupItem{}, err
	}
	item := h5api.GroupItem{
		ID:             id,
		Alias:          aliases(g),
		LinkCount:      db.dir.LinkCount(g),
		AttributeCount: g.Attrs().Len(),
	}
	if id == db.dir.RootUUID() {
		item.Alias = []string{"/"}
	}
	item.Ctime, item.Mtime = db.times(id, directory.ObjectScope)
	return item, nil
}

// GetDatasetItem describes a dataset.
//
// Errors:
//
//   - h5json-error-not-found -- when there is no such dataset
//   - h5json-error-already-deleted -- when the dataset was deleted
//   - h5json-error-invalid-type -- when the dataset type has no descriptor form
func (db *DB) GetDatasetItem(ctx context.Context, id string) (h5api.DatasetItem, error) {
	ds, err := db.dir.Dataset(id)
	if err != nil {
		return h5api.DatasetItem{}, err
	}
	t, err := db.types.Decode(ds.DataType())
	if err != nil {
		return h5api.DatasetItem{}, err
	}
	props, err := db.creationProps(ctx, id, ds)
	if err != nil {
		return h5api.DatasetItem{}, err
	}
	item := h5api.DatasetItem{
		ID:                 id,
		Alias:              aliases(ds),
		AttributeCount:     ds.Attrs().Len(),
		Type:               t,
		Shape:              shapeOf(ds),
		CreationProperties: props,
	}
	item.Ctime, item.Mtime = db.times(id, directory.ObjectScope)
	return item, nil
}

// GetDatatypeItem describes a committed type. Its type is always given inline.
//
// Errors:
//
//   - h5json-error-not-found -- when there is no such datatype
//   - h5json-error-already-deleted -- when the datatype was deleted
func (db *DB) GetDatatypeItem(ctx context.Context, id string) (h5api.DatatypeItem, error) {
	obj, err := db.dir.Resolve(h5api.ObjectKind_Datatype, id)
	if err != nil {
		return h5api.DatatypeItem{}, err
	}
	dt := obj.(store.Datatype)
	t, err := db.types.DecodeInline(dt.DataType())
	if err != nil {
		return h5api.DatatypeItem{}, err
	}
	item := h5api.DatatypeItem{
		ID:             id,
		Alias:          aliases(dt),
		AttributeCount: dt.Attrs().Len(),
		Type:           t,
	}
	item.Ctime, item.Mtime = db.times(id, directory.ObjectScope)
	return item, nil
}

// GetObjectByUUID finds an object of any kind.
//
// Errors:
//
//   - h5json-error-not-found -- when the uuid is unknown
//   - h5json-error-already-deleted -- when the object was deleted
func (db *DB) GetObjectByUUID(id string) (h5api.ObjectKind, store.Object, error) {
	rec, err := db.dir.Lookup(id)
	if err != nil {
		return "", nil, err
	}
	obj, err := db.dir.Resolve(rec.Kind, id)
	return rec.Kind, obj, err
}

// GetUUIDByPath resolves a path from the root group.
//
// Errors:
//
//   - h5json-error-not-found -- when the path does not resolve
//   - h5json-error-invalid-argument -- when the path is inside the directory
func (db *DB) GetUUIDByPath(path string) (directory.Record, error) {
	return db.dir.UUIDByPath(path)
}

// Collection lists the uuids of one kind; see directory.Directory.Collection.
func (db *DB) Collection(kind h5api.ObjectKind, marker string, limit int) ([]string, error) {
	return db.dir.Collection(kind, marker, limit)
}

// NumberOfGroups includes the root group.
func (db *DB) NumberOfGroups() (int, error) {
	return db.dir.Count(h5api.ObjectKind_Group)
}

func (db *DB) NumberOfDatasets() (int, error) {
	return db.dir.Count(h5api.ObjectKind_Dataset)
}

func (db *DB) NumberOfDatatypes() (int, error) {
	return db.dir.Count(h5api.ObjectKind_Datatype)
}
