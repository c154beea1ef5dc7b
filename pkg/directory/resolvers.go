package directory

import (
	"github.com/HDFGroup/hdf5-json/h5api"
	"github.com/HDFGroup/hdf5-json/pkg/store"
)

// The methods below let the type and value codecs resolve
// committed types and references through the directory.

// TypeUUID names a committed datatype by its address.
func (d *Directory) TypeUUID(addr store.Addr) (string, bool) {
	id, ok := d.UUIDByAddr(addr)
	if !ok {
		return "", false
	}
	obj, err := d.st.ObjectAt(addr)
	if err != nil || obj.Type() != store.ObjectDatatype {
		return "", false
	}
	return id, true
}

// CommittedType returns the native type of a committed datatype.
func (d *Directory) CommittedType(id string) (*store.Type, error) {
	obj, err := d.Resolve(h5api.ObjectKind_Datatype, id)
	if err != nil {
		return nil, err
	}
	dt, ok := obj.(store.Datatype)
	if !ok {
		return nil, h5api.ErrorNotFound("datatype", id)
	}
	return dt.DataType(), nil
}

// ObjectID names the object at addr.
func (d *Directory) ObjectID(addr store.Addr) (h5api.ObjectKind, string, error) {
	id, ok := d.UUIDByAddr(addr)
	if !ok {
		return "", "", h5api.ErrorNotFound("object at address", addrKey(addr))
	}
	obj, err := d.st.ObjectAt(addr)
	if err != nil {
		return "", "", store.APIError("object at address "+addrKey(addr), err)
	}
	kind, err := kindOf(obj)
	return kind, id, err
}

// ObjectAddr resolves an object identity to its address.
func (d *Directory) ObjectAddr(kind h5api.ObjectKind, id string) (store.Addr, error) {
	obj, err := d.Resolve(kind, id)
	if err != nil {
		return 0, err
	}
	return obj.Addr(), nil
}

// DatasetRank resolves a dataset and reports its rank.
func (d *Directory) DatasetRank(id string) (store.Addr, int, error) {
	ds, err := d.Dataset(id)
	if err != nil {
		return 0, 0, err
	}
	return ds.Addr(), ds.Space().Rank(), nil
}

// Dataset resolves a dataset uuid.
func (d *Directory) Dataset(id string) (store.Dataset, error) {
	obj, err := d.Resolve(h5api.ObjectKind_Dataset, id)
	if err != nil {
		return nil, err
	}
	return obj.(store.Dataset), nil
}

// Group resolves a group uuid.
func (d *Directory) Group(id string) (store.Group, error) {
	obj, err := d.Resolve(h5api.ObjectKind_Group, id)
	if err != nil {
		return nil, err
	}
	return obj.(store.Group), nil
}
