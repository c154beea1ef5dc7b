/*
Package acl keeps per-object, per-user permissions.

Each object that has any entries gets one extendable dataset, named by its uuid,
in the directory's {acl} group. The rows are compound records of a userid and
six 0/1 flags, unique by userid.
*/
package acl

import (
	"context"
	"fmt"
	"math"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/HDFGroup/hdf5-json/h5api"
	"github.com/HDFGroup/hdf5-json/pkg/directory"
	"github.com/HDFGroup/hdf5-json/pkg/logging"
	"github.com/HDFGroup/hdf5-json/pkg/store"
	"github.com/HDFGroup/hdf5-json/pkg/tracing"
)

const LOG_TAG = "acl"

var (
	flagType  = &store.Type{Class: store.ClassInteger, Size: 1, Order: store.OrderLE, Signed: true}
	entryType = &store.Type{
		Class: store.ClassCompound,
		Size:  4 + len(h5api.AclFields),
		Members: append([]store.Member{
			{Name: "userid", Type: &store.Type{Class: store.ClassInteger, Size: 4, Order: store.OrderLE, Signed: true}},
		}, flagMembers()...),
	}
)

func flagMembers() []store.Member {
	out := make([]store.Member, len(h5api.AclFields))
	for i, name := range h5api.AclFields {
		out[i] = store.Member{Name: name, Type: flagType}
	}
	return out
}

// Store reads and writes ACLs through a directory.
type Store struct {
	dir *directory.Directory
}

func New(dir *directory.Directory) *Store {
	return &Store{dir: dir}
}

// dataset returns the ACL dataset of id, or nil when it has none and create is false.
func (s *Store) dataset(id string, create bool) (store.Dataset, error) {
	g, ok, err := s.dir.PrivateGroup(directory.AclGroup, create)
	if err != nil || !ok {
		return nil, err
	}
	if _, exists := g.Link(id); exists {
		obj, err := g.Get(id)
		if err != nil {
			return nil, store.APIError("acl of "+id, err)
		}
		ds, ok := obj.(store.Dataset)
		if !ok {
			return nil, h5api.ErrorIo("acl of "+id, fmt.Errorf("%q is not a dataset", id))
		}
		return ds, nil
	}
	if !create {
		return nil, nil
	}
	ds, err := g.CreateDataset(id, store.DatasetSpec{
		Type: entryType,
		Space: store.Space{
			Class:   store.SpaceSimple,
			Dims:    []int{0},
			MaxDims: []int{store.Unlimited},
		},
	})
	if err != nil {
		return nil, store.APIError("creating acl of "+id, err)
	}
	return ds, nil
}

func readEntries(ds store.Dataset) ([]h5api.AclEntry, error) {
	rows, err := ds.Read(nil)
	if err != nil {
		return nil, store.APIError("reading acl", err)
	}
	out := make([]h5api.AclEntry, 0, len(rows))
	for i, r := range rows {
		e, err := fromRow(r)
		if err != nil {
			return nil, h5api.ErrorIo(fmt.Sprintf("acl row %d", i), err)
		}
		out = append(out, e)
	}
	return out, nil
}

func fromRow(r any) (h5api.AclEntry, error) {
	fields, ok := r.([]any)
	if !ok || len(fields) != 1+len(h5api.AclFields) {
		return h5api.AclEntry{}, fmt.Errorf("malformed acl row %v", r)
	}
	ints := make([]int64, len(fields))
	for i, f := range fields {
		v, ok := f.(int64)
		if !ok {
			return h5api.AclEntry{}, fmt.Errorf("acl field %d is %T, not an integer", i, f)
		}
		ints[i] = v
	}
	e := h5api.AclEntry{UserID: ints[0]}
	for i, p := range e.Perms() {
		*p = h5api.PermFromInt(ints[i+1])
	}
	return e, nil
}

func toRow(e h5api.AclEntry) []any {
	row := []any{e.UserID}
	for _, p := range e.Perms() {
		row = append(row, p.Int())
	}
	return row
}

// lookup finds the entry of one user on one object.
func (s *Store) lookup(id string, userID int64) (h5api.AclEntry, bool, error) {
	ds, err := s.dataset(id, false)
	if err != nil || ds == nil {
		return h5api.AclEntry{}, false, err
	}
	entries, err := readEntries(ds)
	if err != nil {
		return h5api.AclEntry{}, false, err
	}
	for _, e := range entries {
		if e.UserID == userID {
			return e, true, nil
		}
	}
	return h5api.AclEntry{}, false, nil
}

// Get returns the ACL that applies to userID on the object id.
// The first of these that exists wins:
// the user's entry on the object, the user's entry on the root group,
// the default user's entry on the object, the default user's entry on the root group.
// When none exists everything is granted.
//
// Errors:
//
//   - h5json-error-io -- when a stored ACL is damaged
func (s *Store) Get(ctx context.Context, id string, userID int64) (h5api.AclEntry, error) {
	root := s.dir.RootUUID()
	type candidate struct {
		id   string
		user int64
		skip bool
	}
	for _, c := range []candidate{
		{id, userID, false},
		{root, userID, id == root || userID == 0},
		{id, 0, userID == 0},
		{root, 0, id == root},
	} {
		if c.skip {
			continue
		}
		e, ok, err := s.lookup(c.id, c.user)
		if err != nil {
			return h5api.AclEntry{}, err
		}
		if ok {
			logging.Ctx(ctx).Debug(LOG_TAG, "acl for user %d on %s comes from user %d on %s", userID, id, c.user, c.id)
			return e, nil
		}
	}
	return h5api.DefaultAcl(), nil
}

// GetAll returns the entries stored on the object itself, in the order they were added.
//
// Errors:
//
//   - h5json-error-io -- when the stored ACL is damaged
func (s *Store) GetAll(ctx context.Context, id string) ([]h5api.AclEntry, error) {
	ds, err := s.dataset(id, false)
	if err != nil || ds == nil {
		return nil, err
	}
	return readEntries(ds)
}

// Count is the number of entries stored on the object.
func (s *Store) Count(id string) int {
	ds, err := s.dataset(id, false)
	if err != nil || ds == nil {
		return 0
	}
	return ds.Space().NumElements()
}

// Set stores the entry of e.UserID on the object.
// An existing entry for the user keeps the flags e leaves unset;
// a new entry stores unset flags as denied.
//
// Errors:
//
//   - h5json-error-permission-denied -- when the store is read-only
//   - h5json-error-invalid-argument -- when the userid does not fit the stored width
//   - h5json-error-io -- when the store engine fails
func (s *Store) Set(ctx context.Context, id string, e h5api.AclEntry) error {
	ctx, span := tracing.Start(ctx, "acl.Set", trace.WithAttributes(attribute.String(tracing.AttrKeyObjectID, id)))
	defer span.End()
	err := s.set(ctx, id, e)
	tracing.SetSpanError(ctx, err)
	return err
}

func (s *Store) set(ctx context.Context, id string, e h5api.AclEntry) error {
	if s.dir.ReadOnly() {
		return h5api.ErrorPermissionDenied("updates are not allowed")
	}
	if e.UserID < math.MinInt32 || e.UserID > math.MaxInt32 {
		return h5api.ErrorInvalidArgument("userid out of range", [2]string{"userid", fmt.Sprint(e.UserID)})
	}
	ds, err := s.dataset(id, true)
	if err != nil {
		return err
	}
	entries, err := readEntries(ds)
	if err != nil {
		return err
	}
	index := -1
	for i, have := range entries {
		if have.UserID == e.UserID {
			index = i
			break
		}
	}
	row := e
	grown := false
	if index < 0 {
		index = len(entries)
		if err := ds.Resize([]int{index + 1}); err != nil {
			return store.APIError("growing acl of "+id, err)
		}
		grown = true
		logging.Ctx(ctx).Debug(LOG_TAG, "adding acl for user %d on %s", e.UserID, id)
	} else {
		row = entries[index]
		row.Merge(e)
	}
	err = ds.Write([]store.Slab{{Start: index, Stop: index + 1, Step: 1}}, []any{toRow(row)})
	if err != nil && grown {
		// A zero row would read as userid 0 with everything denied.
		if rerr := ds.Resize([]int{index}); rerr != nil {
			logging.Ctx(ctx).Warn(LOG_TAG, "could not drop unwritten acl row %d on %s: %s", index, id, rerr)
		}
	}
	return store.APIError("writing acl of "+id, err)
}
