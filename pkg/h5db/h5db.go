/*
Package h5db is the session a driver uses to work with one store:
object items, attributes, dataset values, committed types, links, ACLs and queries,
all addressed by uuid and described in the wire forms of package h5api.

A DB owns its store (and, for read-only stores, the shadow store holding the
directory) until Close. Like the stores, it is not safe for concurrent use.
*/
package h5db

import (
	"context"
	"path/filepath"

	"github.com/HDFGroup/hdf5-json/h5api"
	"github.com/HDFGroup/hdf5-json/pkg/acl"
	"github.com/HDFGroup/hdf5-json/pkg/directory"
	"github.com/HDFGroup/hdf5-json/pkg/logging"
	"github.com/HDFGroup/hdf5-json/pkg/store"
	"github.com/HDFGroup/hdf5-json/pkg/store/memstore"
	"github.com/HDFGroup/hdf5-json/pkg/typecodec"
	"github.com/HDFGroup/hdf5-json/pkg/valuecodec"
)

const LOG_TAG = "h5db"

type Options struct {
	ReadOnly bool
	// ShadowPath is where a read-only store keeps its directory.
	// Defaults to a dot-file next to the store.
	ShadowPath   string
	Compression  memstore.Compression
	NoTimestamps bool
	// QueryBlockSize replaces the default number of elements read per block by queries.
	QueryBlockSize int
	// RootUUID is used for the root group of a store that has no directory yet.
	RootUUID string

	// NewUUID and Now may be replaced in tests.
	NewUUID func() (string, error)
	Now     func() int64
}

type DB struct {
	st     store.Store
	shadow store.Store
	dir    *directory.Directory
	types  *typecodec.Codec
	values *valuecodec.Codec
	acls   *acl.Store
	opts   Options
}

// ShadowPath is the default location of the directory of a read-only store.
func ShadowPath(filename string) string {
	return filepath.Join(filepath.Dir(filename), "."+filepath.Base(filename))
}

// Open opens the snapshot file at filename, creating it on Close when it
// does not exist and the store is writable.
// A read-only store that has no directory of its own gets a shadow store,
// at opts.ShadowPath or ShadowPath(filename).
//
// Errors:
//
//   - h5json-error-not-found -- when a read-only store does not exist
//   - h5json-error-io -- when the store or its shadow cannot be opened
func Open(ctx context.Context, filename string, opts Options) (*DB, error) {
	st, err := memstore.Open(filename, memstore.Options{ReadOnly: opts.ReadOnly, Compression: opts.Compression})
	if err != nil {
		return nil, store.APIError("opening "+filename, err)
	}
	var shadow store.Store
	if _, hasDir := st.Root().Link(directory.DBGroupName); opts.ReadOnly && !hasDir {
		path := opts.ShadowPath
		if path == "" {
			path = ShadowPath(filename)
		}
		logging.Ctx(ctx).Debug(LOG_TAG, "keeping the directory of %q in %q", filename, path)
		sh, err := memstore.Open(path, memstore.Options{Compression: opts.Compression})
		if err != nil {
			st.Close()
			return nil, store.APIError("opening shadow "+path, err)
		}
		shadow = sh
	}
	db, err := New(ctx, st, shadow, opts)
	if err != nil {
		if shadow != nil {
			shadow.Close()
		}
		st.Close()
		return nil, err
	}
	return db, nil
}

// New starts a session on stores that are already open.
// shadow is only used, and then required, when st is read-only.
// The DB takes ownership of both.
//
// Errors:
//
//   - h5json-error-invalid-argument -- when st is read-only and shadow is nil
//   - h5json-error-io -- when the directory cannot be opened
func New(ctx context.Context, st store.Store, shadow store.Store, opts Options) (*DB, error) {
	dir, err := directory.Open(ctx, st, directory.Options{
		Shadow:       shadow,
		RootUUID:     opts.RootUUID,
		NoTimestamps: opts.NoTimestamps,
		NewUUID:      opts.NewUUID,
		Now:          opts.Now,
	})
	if err != nil {
		return nil, err
	}
	types := typecodec.New(dir)
	return &DB{
		st:     st,
		shadow: shadow,
		dir:    dir,
		types:  types,
		values: valuecodec.New(types, dir),
		acls:   acl.New(dir),
		opts:   opts,
	}, nil
}

func (db *DB) Directory() *directory.Directory { return db.dir }
func (db *DB) Types() *typecodec.Codec         { return db.types }
func (db *DB) Values() *valuecodec.Codec       { return db.values }
func (db *DB) RootUUID() string                { return db.dir.RootUUID() }
func (db *DB) ReadOnly() bool                  { return db.dir.ReadOnly() }
func (db *DB) Filename() string                { return db.st.Filename() }

// Version reports the document format version and the store engine.
func (db *DB) Version() h5api.VersionInfo {
	return h5api.VersionInfo{
		APIVersion:    h5api.APIVersion,
		EngineName:    db.st.EngineName(),
		EngineVersion: db.st.EngineVersion(),
	}
}

// Flush writes pending changes of the store and its shadow.
//
// Errors:
//
//   - h5json-error-io -- when writing fails
func (db *DB) Flush(ctx context.Context) error {
	if err := db.st.Flush(ctx); err != nil {
		return store.APIError("flushing "+db.st.Filename(), err)
	}
	if db.shadow != nil {
		if err := db.shadow.Flush(ctx); err != nil {
			return store.APIError("flushing shadow "+db.shadow.Filename(), err)
		}
	}
	return nil
}

// Close flushes and releases the stores. Both are closed even when one fails.
//
// Errors:
//
//   - h5json-error-io -- when writing or releasing fails
func (db *DB) Close() error {
	logging.Ctx(context.Background()).Debug(LOG_TAG, "closing %q", db.st.Filename())
	err := db.st.Close()
	if db.shadow != nil {
		if e2 := db.shadow.Close(); err == nil {
			err = e2
		}
	}
	return store.APIError("closing "+db.st.Filename(), err)
}

func (db *DB) checkWritable() error {
	if db.dir.ReadOnly() {
		return h5api.ErrorPermissionDenied("updates are not allowed")
	}
	return nil
}
