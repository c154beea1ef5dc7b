package h5db

import (
	"context"

	"github.com/HDFGroup/hdf5-json/h5api"
)

// GetAcl returns the ACL that applies to userID on an object,
// following the precedence of acl.Store.Get.
//
// Errors:
//
//   - h5json-error-not-found -- when there is no such object
//   - h5json-error-already-deleted -- when the object was deleted
func (db *DB) GetAcl(ctx context.Context, id string, userID int64) (h5api.AclEntry, error) {
	if _, err := db.dir.Lookup(id); err != nil {
		return h5api.AclEntry{}, err
	}
	return db.acls.Get(ctx, id, userID)
}

// GetAcls lists the entries stored on the object itself.
func (db *DB) GetAcls(ctx context.Context, id string) ([]h5api.AclEntry, error) {
	if _, err := db.dir.Lookup(id); err != nil {
		return nil, err
	}
	return db.acls.GetAll(ctx, id)
}

// SetAcl stores the entry of e.UserID on an object.
//
// Errors:
//
//   - h5json-error-permission-denied -- when the store is read-only
//   - h5json-error-not-found -- when there is no such object
//   - h5json-error-invalid-argument -- when the userid does not fit
func (db *DB) SetAcl(ctx context.Context, id string, e h5api.AclEntry) error {
	if err := db.checkWritable(); err != nil {
		return err
	}
	if _, err := db.dir.Lookup(id); err != nil {
		return err
	}
	return db.acls.Set(ctx, id, e)
}
