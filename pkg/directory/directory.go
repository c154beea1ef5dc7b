/*
Package directory gives every group, dataset and committed datatype of a store
a stable uuid, and keeps the bookkeeping that goes with it: which objects are
anonymous and which are linked, the reverse address index, and timestamps.

The directory lives in the store itself, under a private group named "__db__":

	__db__              attribute rootUUID
	  {groups}          anonymous groups as children named by uuid;
	  {datasets}        linked objects as attributes uuid -> reference
	  {datatypes}       (or uuid -> path, for read-only stores)
	  {addr}            attributes address -> uuid
	  {ctime} {mtime}   attributes timestamp key -> unix seconds
	  {acl}             one dataset per uuid (see package acl)
	  {dataset_props}   attributes uuid -> creation properties json

Read-only stores can not hold this layout, so it is kept at the root of
a separate, writable shadow store instead.
*/
package directory

import (
	"context"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/HDFGroup/hdf5-json/h5api"
	"github.com/HDFGroup/hdf5-json/pkg/logging"
	"github.com/HDFGroup/hdf5-json/pkg/store"
	"github.com/HDFGroup/hdf5-json/pkg/tracing"
)

const LOG_TAG = "directory"

// DBGroupName is the link under the root group holding the directory.
const DBGroupName = "__db__"

const (
	rootUUIDAttr = "rootUUID"
	addrGroup    = "{addr}"
	ctimeGroup   = "{ctime}"
	mtimeGroup   = "{mtime}"
	propsGroup   = "{dataset_props}"
	AclGroup     = "{acl}"
)

func collectionGroup(kind h5api.ObjectKind) string {
	return "{" + string(kind) + "}"
}

type Options struct {
	// Shadow holds the directory of a read-only store. It must be writable.
	Shadow store.Store
	// RootUUID is used for the root group when the directory is first created.
	RootUUID string
	// NoTimestamps disables all timestamp updates.
	NoTimestamps bool

	// NewUUID and Now may be replaced in tests.
	NewUUID func() (string, error)
	Now     func() int64
}

// Directory is the uuid layer over one open store.
// Like the store, it is not safe for concurrent use.
type Directory struct {
	st         store.Store
	db         store.Group
	rootUUID   string
	readOnly   bool
	timestamps bool
	newUUID    func() (string, error)
	now        func() int64
}

// Record is what the directory knows about one uuid.
type Record struct {
	UUID    string
	Kind    h5api.ObjectKind
	Storage h5api.Storage
}

// Open attaches to the directory of st, creating it (and ingesting every
// object already in the store) when there is none yet.
// A read-only store without a directory keeps it in opts.Shadow.
//
// Errors:
//
//   - h5json-error-invalid-argument -- when st is read-only, has no directory, and no shadow store is given
//   - h5json-error-io -- when the store engine fails, or the directory is damaged
func Open(ctx context.Context, st store.Store, opts Options) (*Directory, error) {
	ctx, span := tracing.Start(ctx, "directory.Open", trace.WithAttributes(attribute.String(tracing.AttrKeyFilename, st.Filename())))
	defer span.End()
	d, err := open(ctx, st, opts)
	tracing.SetSpanError(ctx, err)
	return d, err
}

func open(ctx context.Context, st store.Store, opts Options) (*Directory, error) {
	d := &Directory{
		st:         st,
		readOnly:   st.ReadOnly(),
		timestamps: !opts.NoTimestamps,
		newUUID:    opts.NewUUID,
		now:        opts.Now,
	}
	if d.newUUID == nil {
		d.newUUID = newTimeOrderedUUID
	}
	if d.now == nil {
		d.now = unixNow
	}

	root := st.Root()
	if _, ok := root.Link(DBGroupName); ok {
		obj, err := root.Get(DBGroupName)
		if err != nil {
			return nil, store.APIError("opening directory", err)
		}
		g, ok := obj.(store.Group)
		if !ok {
			return nil, h5api.ErrorIo("opening directory", errNotGroup(DBGroupName))
		}
		d.db = g
		return d, d.load()
	}
	if d.readOnly {
		if opts.Shadow == nil {
			return nil, h5api.ErrorInvalidArgument("a read-only store without a directory needs a shadow store",
				[2]string{"filename", st.Filename()})
		}
		d.db = opts.Shadow.Root()
		if _, ok := d.db.Link(collectionGroup(h5api.ObjectKind_Group)); ok {
			return d, d.load()
		}
	} else {
		g, err := root.CreateGroup(DBGroupName)
		if err != nil {
			return nil, store.APIError("creating directory", err)
		}
		d.db = g
	}
	return d, d.initialize(ctx, opts.RootUUID)
}

func (d *Directory) load() error {
	root, ok := getString(d.db.Attrs(), rootUUIDAttr)
	if !ok {
		return h5api.ErrorIo("opening directory", errMissing(rootUUIDAttr))
	}
	d.rootUUID = root
	return nil
}

func (d *Directory) initialize(ctx context.Context, rootUUID string) error {
	logging.Ctx(ctx).Debug(LOG_TAG, "initializing directory for %q", d.st.Filename())
	if rootUUID == "" {
		var err error
		if rootUUID, err = d.newUUID(); err != nil {
			return h5api.ErrorInternal("minting root uuid", err)
		}
	}
	d.rootUUID = rootUUID
	if err := setString(d.db.Attrs(), rootUUIDAttr, rootUUID); err != nil {
		return store.APIError("initializing directory", err)
	}
	for _, name := range []string{
		collectionGroup(h5api.ObjectKind_Group),
		collectionGroup(h5api.ObjectKind_Dataset),
		collectionGroup(h5api.ObjectKind_Datatype),
		addrGroup, ctimeGroup, mtimeGroup,
	} {
		if _, err := d.db.CreateGroup(name); err != nil {
			return store.APIError("initializing directory", err)
		}
	}
	if err := d.setAddr(d.st.Root().Addr(), rootUUID); err != nil {
		return err
	}
	ts := d.st.Modified()
	if ts == 0 {
		ts = d.now()
	}
	if err := d.SetCreateTime(rootUUID, ObjectScope, ts); err != nil {
		return err
	}
	if err := d.SetModifiedTime(rootUUID, ObjectScope, ts); err != nil {
		return err
	}
	return d.ingest(ctx)
}

// ingest gives a uuid to every object reachable from the root.
// Objects reachable by several links get one uuid.
func (d *Directory) ingest(ctx context.Context) error {
	ctx, span := tracing.Start(ctx, "directory.ingest")
	defer span.End()
	seen := map[store.Addr]bool{}
	count := 0
	err := d.st.Visit(ctx, func(path string, obj store.Object) error {
		if path == DBGroupName || strings.HasPrefix(path, DBGroupName+"/") {
			return nil
		}
		if seen[obj.Addr()] {
			return nil
		}
		seen[obj.Addr()] = true
		kind, err := kindOf(obj)
		if err != nil {
			return err
		}
		id, err := d.newUUID()
		if err != nil {
			return h5api.ErrorInternal("minting uuid", err)
		}
		if err := d.recordLinked(kind, id, "/"+path, obj); err != nil {
			return err
		}
		if err := d.setAddr(obj.Addr(), id); err != nil {
			return err
		}
		count++
		return nil
	})
	if err != nil {
		err = store.APIError("ingesting store", err)
		tracing.SetSpanError(ctx, err)
		return err
	}
	logging.Ctx(ctx).Debug(LOG_TAG, "ingested %d objects", count)
	return nil
}

func newTimeOrderedUUID() (string, error) {
	u, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return u.String(), nil
}

func kindOf(obj store.Object) (h5api.ObjectKind, error) {
	switch obj.Type() {
	case store.ObjectGroup:
		return h5api.ObjectKind_Group, nil
	case store.ObjectDataset:
		return h5api.ObjectKind_Dataset, nil
	case store.ObjectDatatype:
		return h5api.ObjectKind_Datatype, nil
	}
	return "", h5api.ErrorIo("classifying object", errUnknownObject(obj.Addr()))
}

func (d *Directory) Store() store.Store { return d.st }
func (d *Directory) RootUUID() string   { return d.rootUUID }
func (d *Directory) ReadOnly() bool     { return d.readOnly }

func (d *Directory) checkWritable() error {
	if d.readOnly {
		return h5api.ErrorPermissionDenied("updates are not allowed")
	}
	return nil
}

func (d *Directory) dbGroup(name string) (store.Group, error) {
	obj, err := d.db.Get(name)
	if err != nil {
		return nil, store.APIError("directory group "+name, err)
	}
	g, ok := obj.(store.Group)
	if !ok {
		return nil, h5api.ErrorIo("directory group "+name, errNotGroup(name))
	}
	return g, nil
}

// PrivateGroup returns a group of the directory layout by name,
// creating it when create is set. ok is false when it does not exist.
//
// Errors:
//
//   - h5json-error-permission-denied -- when creating in a read-only store
//   - h5json-error-io -- when the store engine fails
func (d *Directory) PrivateGroup(name string, create bool) (g store.Group, ok bool, err error) {
	if _, exists := d.db.Link(name); exists {
		g, err := d.dbGroup(name)
		return g, err == nil, err
	}
	if !create {
		return nil, false, nil
	}
	if err := d.checkWritable(); err != nil {
		return nil, false, err
	}
	g, err = d.db.CreateGroup(name)
	if err != nil {
		return nil, false, store.APIError("creating directory group "+name, err)
	}
	return g, true, nil
}

func (d *Directory) setAddr(addr store.Addr, id string) error {
	g, err := d.dbGroup(addrGroup)
	if err != nil {
		return err
	}
	return store.APIError("recording address", setString(g.Attrs(), addrKey(addr), id))
}

func addrKey(addr store.Addr) string {
	return strconv.FormatUint(uint64(addr), 10)
}

func (d *Directory) recordLinked(kind h5api.ObjectKind, id, path string, obj store.Object) error {
	col, err := d.dbGroup(collectionGroup(kind))
	if err != nil {
		return err
	}
	if d.readOnly {
		err = setString(col.Attrs(), id, path)
	} else {
		err = setRef(col.Attrs(), id, obj.Addr())
	}
	return store.APIError("recording linked object", err)
}

// UUIDByAddr is the reverse address index.
func (d *Directory) UUIDByAddr(addr store.Addr) (string, bool) {
	g, err := d.dbGroup(addrGroup)
	if err != nil {
		return "", false
	}
	return getString(g.Attrs(), addrKey(addr))
}

// Resolve finds the object with the given uuid.
// Linked objects are looked up first, then anonymous ones.
//
// Errors:
//
//   - h5json-error-not-found -- when no object of the kind has the uuid
//   - h5json-error-already-deleted -- when the object existed but has been deleted
func (d *Directory) Resolve(kind h5api.ObjectKind, id string) (store.Object, error) {
	if kind == h5api.ObjectKind_Group && id == d.rootUUID {
		return d.st.Root(), nil
	}
	obj, _, err := d.find(kind, id)
	if err != nil {
		return nil, err
	}
	if obj != nil {
		return obj, nil
	}
	if d.hasOwnTimestamp(id, ObjectScope) {
		// A live object of another kind is simply not found.
		if _, err := d.Lookup(id); err != nil {
			return nil, h5api.ErrorAlreadyDeleted(kind, id)
		}
	}
	return nil, h5api.ErrorNotFound(kind.Singular(), id)
}

// find returns nil without error when the uuid is not in the collection.
func (d *Directory) find(kind h5api.ObjectKind, id string) (store.Object, h5api.Storage, error) {
	col, err := d.dbGroup(collectionGroup(kind))
	if err != nil {
		return nil, 0, err
	}
	var obj store.Object
	var storage h5api.Storage
	if v, ok := scalarValue(col.Attrs(), id); ok {
		storage = h5api.Storage_Linked
		switch x := v.(type) {
		case store.ObjectRef:
			obj, err = d.st.Deref(x)
		case string:
			obj, err = d.st.Root().Get(x)
		default:
			return nil, 0, h5api.ErrorIo("resolving "+id, errMissing(id))
		}
		if err != nil {
			return nil, 0, store.APIError("resolving "+kind.Singular()+" "+id, err)
		}
	} else if _, ok := col.Link(id); ok {
		storage = h5api.Storage_Anonymous
		if obj, err = col.Get(id); err != nil {
			return nil, 0, store.APIError("resolving "+kind.Singular()+" "+id, err)
		}
	} else {
		return nil, 0, nil
	}
	if k, err := kindOf(obj); err != nil || k != kind {
		return nil, 0, nil
	}
	return obj, storage, nil
}

// Lookup finds which kind of object a uuid names, and how it is held.
//
// Errors:
//
//   - h5json-error-not-found -- when the uuid is unknown
//   - h5json-error-already-deleted -- when the object existed but has been deleted
func (d *Directory) Lookup(id string) (Record, error) {
	if id == d.rootUUID {
		return Record{UUID: id, Kind: h5api.ObjectKind_Group, Storage: h5api.Storage_Linked}, nil
	}
	for _, kind := range h5api.ObjectKinds {
		obj, storage, err := d.find(kind, id)
		if err != nil {
			return Record{}, err
		}
		if obj != nil {
			return Record{UUID: id, Kind: kind, Storage: storage}, nil
		}
	}
	if d.hasOwnTimestamp(id, ObjectScope) {
		return Record{}, h5api.ErrorAlreadyDeleted("objects", id)
	}
	return Record{}, h5api.ErrorNotFound("object", id)
}

// UUIDByPath resolves a path from the root group.
//
// Errors:
//
//   - h5json-error-invalid-argument -- when the path is inside the directory itself
//   - h5json-error-not-found -- when the path does not resolve, or the object has no uuid
func (d *Directory) UUIDByPath(path string) (Record, error) {
	trimmed := strings.TrimPrefix(path, "/")
	if trimmed == DBGroupName || strings.HasPrefix(trimmed, DBGroupName+"/") {
		return Record{}, h5api.ErrorInvalidArgument("path is reserved", [2]string{"path", path})
	}
	if trimmed == "" {
		return d.Lookup(d.rootUUID)
	}
	obj, err := d.st.Root().Get(path)
	if err != nil {
		return Record{}, store.APIError("path "+path, err)
	}
	id, ok := d.UUIDByAddr(obj.Addr())
	if !ok {
		return Record{}, h5api.ErrorNotFound("uuid for path", path)
	}
	return d.Lookup(id)
}

// Collection lists uuids of one kind: linked objects first, then anonymous ones.
// Listing resumes after marker when it is not empty; limit 0 means no limit.
// The root group is not listed.
//
// Errors:
//
//   - h5json-error-io -- when the directory is damaged
func (d *Directory) Collection(kind h5api.ObjectKind, marker string, limit int) ([]string, error) {
	col, err := d.dbGroup(collectionGroup(kind))
	if err != nil {
		return nil, err
	}
	anon := col.Links()
	all := col.Attrs().Names()
	for _, l := range anon {
		all = append(all, l.Name)
	}
	return paginate(all, marker, limit), nil
}

// paginate returns the names after marker, at most limit of them.
// An unknown marker yields nothing.
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
	return append([]string(nil), out...)
}

// Count is the number of objects of a kind; for groups it includes the root.
func (d *Directory) Count(kind h5api.ObjectKind) (int, error) {
	col, err := d.dbGroup(collectionGroup(kind))
	if err != nil {
		return 0, err
	}
	n := len(col.Links()) + col.Attrs().Len()
	if kind == h5api.ObjectKind_Group {
		n++
	}
	return n, nil
}

// claim validates a caller chosen uuid, or mints one.
func (d *Directory) claim(id string) (string, error) {
	if id == "" {
		minted, err := d.newUUID()
		if err != nil {
			return "", h5api.ErrorInternal("minting uuid", err)
		}
		return minted, nil
	}
	if _, err := uuid.Parse(id); err != nil || len(id) != h5api.UUIDLen {
		return "", h5api.ErrorInvalidArgument("not a valid uuid", [2]string{"uuid", id})
	}
	if _, err := d.Lookup(id); err == nil {
		return "", h5api.ErrorInvalidArgument("uuid is already in use", [2]string{"uuid", id})
	}
	return id, nil
}

// created finishes the creation of an anonymous object.
func (d *Directory) created(obj store.Object, id string) error {
	if err := d.setAddr(obj.Addr(), id); err != nil {
		return err
	}
	return d.touch(id, ObjectScope)
}

// CreateGroup makes a new anonymous group. An empty id mints a fresh uuid.
//
// Errors:
//
//   - h5json-error-permission-denied -- when the store is read-only
//   - h5json-error-invalid-argument -- when id is malformed or already in use
//   - h5json-error-io -- when the store engine fails
func (d *Directory) CreateGroup(ctx context.Context, id string) (string, store.Group, error) {
	if err := d.checkWritable(); err != nil {
		return "", nil, err
	}
	id, err := d.claim(id)
	if err != nil {
		return "", nil, err
	}
	col, err := d.dbGroup(collectionGroup(h5api.ObjectKind_Group))
	if err != nil {
		return "", nil, err
	}
	g, err := col.CreateGroup(id)
	if err != nil {
		return "", nil, store.APIError("creating group", err)
	}
	logging.Ctx(ctx).Debug(LOG_TAG, "created group %s", id)
	return id, g, d.created(g, id)
}

// CreateDataset makes a new anonymous dataset. An empty id mints a fresh uuid.
//
// Errors:
//
//   - h5json-error-permission-denied -- when the store is read-only
//   - h5json-error-invalid-argument -- when id is malformed or already in use, or the spec is rejected
//   - h5json-error-io -- when the store engine fails
func (d *Directory) CreateDataset(ctx context.Context, id string, spec store.DatasetSpec) (string, store.Dataset, error) {
	if err := d.checkWritable(); err != nil {
		return "", nil, err
	}
	id, err := d.claim(id)
	if err != nil {
		return "", nil, err
	}
	col, err := d.dbGroup(collectionGroup(h5api.ObjectKind_Dataset))
	if err != nil {
		return "", nil, err
	}
	ds, err := col.CreateDataset(id, spec)
	if err != nil {
		return "", nil, store.APIError("creating dataset", err)
	}
	logging.Ctx(ctx).Debug(LOG_TAG, "created dataset %s", id)
	return id, ds, d.created(ds, id)
}

// CreateDatatype commits a type as a new anonymous datatype.
// An empty id mints a fresh uuid.
//
// Errors:
//
//   - h5json-error-permission-denied -- when the store is read-only
//   - h5json-error-invalid-argument -- when id is malformed or already in use
//   - h5json-error-io -- when the store engine fails
func (d *Directory) CreateDatatype(ctx context.Context, id string, t *store.Type) (string, store.Datatype, error) {
	if err := d.checkWritable(); err != nil {
		return "", nil, err
	}
	id, err := d.claim(id)
	if err != nil {
		return "", nil, err
	}
	col, err := d.dbGroup(collectionGroup(h5api.ObjectKind_Datatype))
	if err != nil {
		return "", nil, err
	}
	dt, err := col.CommitType(id, t)
	if err != nil {
		return "", nil, store.APIError("committing datatype", err)
	}
	logging.Ctx(ctx).Debug(LOG_TAG, "created datatype %s", id)
	return id, dt, d.created(dt, id)
}

// Delete removes an object: every hard link to it anywhere in the store goes
// first, then its directory entries. The uuid is never reused, and later
// lookups report it as deleted.
//
// Errors:
//
//   - h5json-error-permission-denied -- when the store is read-only, or for the root group
//   - h5json-error-not-found -- when the uuid is unknown
//   - h5json-error-already-deleted -- when the object was deleted before
//   - h5json-error-io -- when the store engine fails
func (d *Directory) Delete(ctx context.Context, kind h5api.ObjectKind, id string) error {
	ctx, span := tracing.Start(ctx, "directory.Delete", trace.WithAttributes(
		attribute.String(tracing.AttrKeyObjectKind, string(kind)),
		attribute.String(tracing.AttrKeyObjectID, id),
	))
	defer span.End()
	err := d.delete(ctx, kind, id)
	tracing.SetSpanError(ctx, err)
	return err
}

func (d *Directory) delete(ctx context.Context, kind h5api.ObjectKind, id string) error {
	if err := d.checkWritable(); err != nil {
		return err
	}
	if kind == h5api.ObjectKind_Group && id == d.rootUUID {
		return h5api.ErrorPermissionDenied("root group may not be deleted")
	}
	tgt, err := d.Resolve(kind, id)
	if err != nil {
		return err
	}
	groups, err := d.visibleGroups()
	if err != nil {
		return err
	}
	for _, g := range groups {
		for _, l := range g.Links() {
			if l.Class == store.LinkHard && l.Target == tgt.Addr() {
				if err := d.unlinkHard(ctx, g, l.Name, tgt); err != nil {
					return err
				}
			}
		}
	}

	col, err := d.dbGroup(collectionGroup(kind))
	if err != nil {
		return err
	}
	if _, ok := col.Link(id); ok {
		err = col.Unlink(id)
	} else {
		logging.Ctx(ctx).Warn(LOG_TAG, "did not find %s in the anonymous collection", id)
		err = col.Attrs().Delete(id)
	}
	if err != nil {
		return store.APIError("deleting "+kind.Singular(), err)
	}
	addrs, err := d.dbGroup(addrGroup)
	if err != nil {
		return err
	}
	if key := addrKey(tgt.Addr()); has(addrs.Attrs(), key) {
		if err := addrs.Attrs().Delete(key); err != nil {
			return store.APIError("deleting address of "+id, err)
		}
	}
	if acls, ok, _ := d.PrivateGroup(AclGroup, false); ok {
		if _, exists := acls.Link(id); exists {
			if err := acls.Unlink(id); err != nil {
				return store.APIError("deleting acl", err)
			}
		}
	}
	if props, ok, _ := d.PrivateGroup(propsGroup, false); ok && has(props.Attrs(), id) {
		if err := props.Attrs().Delete(id); err != nil {
			return store.APIError("deleting creation properties", err)
		}
	}
	logging.Ctx(ctx).Debug(LOG_TAG, "deleted %s %s", kind.Singular(), id)
	return d.SetModifiedTime(id, ObjectScope, 0)
}

// visibleGroups is every group that may hold user links:
// the root, then linked groups, then anonymous groups.
func (d *Directory) visibleGroups() ([]store.Group, error) {
	col, err := d.dbGroup(collectionGroup(h5api.ObjectKind_Group))
	if err != nil {
		return nil, err
	}
	out := []store.Group{d.st.Root()}
	for _, id := range col.Attrs().Names() {
		obj, _, err := d.find(h5api.ObjectKind_Group, id)
		if err != nil {
			return nil, err
		}
		if g, ok := obj.(store.Group); ok {
			out = append(out, g)
		}
	}
	for _, l := range col.Links() {
		obj, err := col.Get(l.Name)
		if err != nil {
			return nil, store.APIError("resolving group "+l.Name, err)
		}
		if g, ok := obj.(store.Group); ok {
			out = append(out, g)
		}
	}
	return out, nil
}

// CreationProps returns the stored creation properties json of a dataset.
func (d *Directory) CreationProps(id string) (string, bool) {
	g, ok, _ := d.PrivateGroup(propsGroup, false)
	if !ok {
		return "", false
	}
	return getString(g.Attrs(), id)
}

// SetCreationProps stores the creation properties json of a dataset.
// They are written once.
//
// Errors:
//
//   - h5json-error-permission-denied -- when the store is read-only
//   - h5json-error-io -- when properties were already stored for id
func (d *Directory) SetCreationProps(id string, js string) error {
	g, _, err := d.PrivateGroup(propsGroup, true)
	if err != nil {
		return err
	}
	if has(g.Attrs(), id) {
		return h5api.ErrorIo("setting creation properties", errWriteOnce(id))
	}
	return store.APIError("setting creation properties", setString(g.Attrs(), id, js))
}
