package h5db

import (
	"context"

	"github.com/HDFGroup/hdf5-json/h5api"
)

// GetLinkItems lists the links of a group in creation order.
func (db *DB) GetLinkItems(ctx context.Context, id, marker string, limit int) ([]h5api.Link, error) {
	return db.dir.Links(id, marker, limit)
}

func (db *DB) GetLinkItemByUUID(ctx context.Context, id, name string) (h5api.Link, error) {
	return db.dir.LinkItem(id, name)
}

// LinkObject adds a hard link to any object, replacing a link of the same name.
func (db *DB) LinkObject(ctx context.Context, parent, child, name string) error {
	return db.dir.Link(ctx, parent, child, name)
}

func (db *DB) CreateSoftLink(ctx context.Context, parent, path, name string) error {
	return db.dir.CreateSoftLink(ctx, parent, path, name)
}

func (db *DB) CreateExternalLink(ctx context.Context, parent, file, path, name string) error {
	return db.dir.CreateExternalLink(ctx, parent, file, path, name)
}

// UnlinkItem removes a link. An object losing its last link becomes anonymous,
// it is not deleted.
func (db *DB) UnlinkItem(ctx context.Context, parent, name string) error {
	return db.dir.Unlink(ctx, parent, name)
}

func (db *DB) IsObjectHardLinked(parent, name, child string) (bool, error) {
	return db.dir.IsHardLinked(parent, name, child)
}
