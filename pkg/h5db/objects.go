package h5db

import (
	"context"

	"github.com/HDFGroup/hdf5-json/h5api"
	"github.com/HDFGroup/hdf5-json/pkg/logging"
)

// CreateGroup makes a new anonymous group and returns its uuid.
// An empty id mints one.
//
// Errors:
//
//   - h5json-error-permission-denied -- when the store is read-only
//   - h5json-error-invalid-argument -- when id is malformed or already in use
func (db *DB) CreateGroup(ctx context.Context, id string) (string, error) {
	id, _, err := db.dir.CreateGroup(ctx, id)
	return id, err
}

// CreateCommittedType commits a type as a new anonymous datatype and returns its uuid.
//
// Errors:
//
//   - h5json-error-permission-denied -- when the store is read-only
//   - h5json-error-invalid-type -- when the descriptor is malformed
//   - h5json-error-invalid-argument -- when id is malformed or already in use
func (db *DB) CreateCommittedType(ctx context.Context, id string, d h5api.TypeDescriptor) (string, error) {
	if err := db.checkWritable(); err != nil {
		return "", err
	}
	t, err := db.types.Encode(d)
	if err != nil {
		return "", err
	}
	id, _, err = db.dir.CreateDatatype(ctx, id, t.Clone())
	if err != nil {
		return "", err
	}
	logging.Ctx(ctx).Debug(LOG_TAG, "committed %s type as %s", d.Class(), id)
	return id, nil
}

// DeleteObject removes an object with every link to it, its ACL and
// its creation properties.
//
// Errors:
//
//   - h5json-error-permission-denied -- when the store is read-only, or for the root group
//   - h5json-error-not-found -- when there is no such object
//   - h5json-error-already-deleted -- when the object was deleted before
func (db *DB) DeleteObject(ctx context.Context, kind h5api.ObjectKind, id string) error {
	return db.dir.Delete(ctx, kind, id)
}
