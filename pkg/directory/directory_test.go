package directory

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
	"github.com/google/uuid"
	"github.com/serum-errors/go-serum"

	"github.com/HDFGroup/hdf5-json/h5api"
	"github.com/HDFGroup/hdf5-json/pkg/store"
	"github.com/HDFGroup/hdf5-json/pkg/store/memstore"
)

var intType = &store.Type{Class: store.ClassInteger, Size: 4, Order: store.OrderLE, Signed: true}

func vector(n int) store.DatasetSpec {
	return store.DatasetSpec{Type: intType, Space: store.Space{Class: store.SpaceSimple, Dims: []int{n}}}
}

func testOptions() Options {
	n := 0
	return Options{
		NewUUID: func() (string, error) {
			n++
			return fmt.Sprintf("00000000-0000-7000-8000-%012d", n), nil
		},
		Now: func() int64 { return 1700000000 },
	}
}

func openDir(t *testing.T, st store.Store) *Directory {
	t.Helper()
	d, err := Open(context.Background(), st, testOptions())
	qt.Assert(t, err, qt.IsNil)
	return d
}

func TestIngestOneUUIDPerObject(t *testing.T) {
	st := memstore.New()
	g, err := st.Root().CreateGroup("g")
	qt.Assert(t, err, qt.IsNil)
	ds, err := g.CreateDataset("d", vector(3))
	qt.Assert(t, err, qt.IsNil)
	qt.Assert(t, st.Root().LinkHard("alias", ds), qt.IsNil)
	qt.Assert(t, st.Root().LinkSoft("soft", "/g/d"), qt.IsNil)

	d := openDir(t, st)

	n, err := d.Count(h5api.ObjectKind_Dataset)
	qt.Assert(t, err, qt.IsNil)
	qt.Check(t, n, qt.Equals, 1)
	n, err = d.Count(h5api.ObjectKind_Group)
	qt.Assert(t, err, qt.IsNil)
	qt.Check(t, n, qt.Equals, 2)

	viaGroup, err := d.UUIDByPath("/g/d")
	qt.Assert(t, err, qt.IsNil)
	viaAlias, err := d.UUIDByPath("/alias")
	qt.Assert(t, err, qt.IsNil)
	viaSoft, err := d.UUIDByPath("soft")
	qt.Assert(t, err, qt.IsNil)
	qt.Check(t, viaAlias, qt.Equals, viaGroup)
	qt.Check(t, viaSoft, qt.Equals, viaGroup)
	qt.Check(t, viaGroup.Kind, qt.Equals, h5api.ObjectKind_Dataset)
	qt.Check(t, viaGroup.Storage, qt.Equals, h5api.Storage_Linked)

	root, err := d.UUIDByPath("/")
	qt.Assert(t, err, qt.IsNil)
	qt.Check(t, root.UUID, qt.Equals, d.RootUUID())

	_, err = d.UUIDByPath("/__db__/{groups}")
	qt.Check(t, serum.Code(err), qt.Equals, h5api.ECodeInvalidArgument)
	_, err = d.UUIDByPath("/no/such/path")
	qt.Check(t, serum.Code(err), qt.Equals, h5api.ECodeNotFound)
}

func TestDefaultOptions(t *testing.T) {
	before := time.Now().Unix()
	d, err := Open(context.Background(), memstore.New(), Options{})
	qt.Assert(t, err, qt.IsNil)
	id, _, err := d.CreateGroup(context.Background(), "")
	qt.Assert(t, err, qt.IsNil)

	u, err := uuid.Parse(id)
	qt.Assert(t, err, qt.IsNil)
	qt.Check(t, u.Version(), qt.Equals, uuid.Version(7))
	ts := d.CreateTime(id, ObjectScope)
	qt.Check(t, ts >= before, qt.IsTrue)
	qt.Check(t, ts <= time.Now().Unix(), qt.IsTrue)
}

func TestReopenKeepsDirectory(t *testing.T) {
	st := memstore.New()
	_, err := st.Root().CreateGroup("g")
	qt.Assert(t, err, qt.IsNil)
	first := openDir(t, st)
	rec, err := first.UUIDByPath("/g")
	qt.Assert(t, err, qt.IsNil)

	second, err := Open(context.Background(), st, Options{})
	qt.Assert(t, err, qt.IsNil)
	qt.Check(t, second.RootUUID(), qt.Equals, first.RootUUID())
	again, err := second.UUIDByPath("/g")
	qt.Assert(t, err, qt.IsNil)
	qt.Check(t, again, qt.Equals, rec)
}

func TestCreateResolveDelete(t *testing.T) {
	ctx := context.Background()
	d := openDir(t, memstore.New())

	id, ds, err := d.CreateDataset(ctx, "", vector(4))
	qt.Assert(t, err, qt.IsNil)
	rec, err := d.Lookup(id)
	qt.Assert(t, err, qt.IsNil)
	qt.Check(t, rec, qt.Equals, Record{UUID: id, Kind: h5api.ObjectKind_Dataset, Storage: h5api.Storage_Anonymous})

	got, err := d.Resolve(h5api.ObjectKind_Dataset, id)
	qt.Assert(t, err, qt.IsNil)
	qt.Check(t, got.Addr(), qt.Equals, ds.Addr())
	_, err = d.Resolve(h5api.ObjectKind_Group, id)
	qt.Check(t, serum.Code(err), qt.Equals, h5api.ECodeNotFound)

	byAddr, ok := d.UUIDByAddr(ds.Addr())
	qt.Check(t, ok, qt.IsTrue)
	qt.Check(t, byAddr, qt.Equals, id)

	qt.Assert(t, d.Delete(ctx, h5api.ObjectKind_Dataset, id), qt.IsNil)
	_, err = d.Resolve(h5api.ObjectKind_Dataset, id)
	qt.Check(t, serum.Code(err), qt.Equals, h5api.ECodeAlreadyDeleted)
	qt.Check(t, h5api.IsNotFound(err), qt.IsTrue)
	_, ok = d.UUIDByAddr(ds.Addr())
	qt.Check(t, ok, qt.IsFalse)
	addrs, err := d.dbGroup(addrGroup)
	qt.Assert(t, err, qt.IsNil)
	qt.Check(t, has(addrs.Attrs(), addrKey(ds.Addr())), qt.IsFalse)

	_, err = d.Resolve(h5api.ObjectKind_Dataset, "00000000-0000-7000-8000-999999999999")
	qt.Check(t, serum.Code(err), qt.Equals, h5api.ECodeNotFound)

	err = d.Delete(ctx, h5api.ObjectKind_Group, d.RootUUID())
	qt.Check(t, serum.Code(err), qt.Equals, h5api.ECodePermissionDenied)
}

func TestCreateWithChosenUUID(t *testing.T) {
	ctx := context.Background()
	d := openDir(t, memstore.New())
	const want = "1b3e2f48-9d2c-11ee-8c90-0242ac120002"

	id, _, err := d.CreateGroup(ctx, want)
	qt.Assert(t, err, qt.IsNil)
	qt.Check(t, id, qt.Equals, want)

	_, _, err = d.CreateGroup(ctx, want)
	qt.Check(t, serum.Code(err), qt.Equals, h5api.ECodeInvalidArgument)
	_, _, err = d.CreateGroup(ctx, "not-a-uuid")
	qt.Check(t, serum.Code(err), qt.Equals, h5api.ECodeInvalidArgument)
}

func TestLinkPromotionDemotion(t *testing.T) {
	ctx := context.Background()
	d := openDir(t, memstore.New())
	root := d.RootUUID()
	gid, _, err := d.CreateGroup(ctx, "")
	qt.Assert(t, err, qt.IsNil)
	qt.Assert(t, d.Link(ctx, root, gid, "g"), qt.IsNil)
	id, _, err := d.CreateDataset(ctx, "", vector(2))
	qt.Assert(t, err, qt.IsNil)

	storage := func() h5api.Storage {
		rec, err := d.Lookup(id)
		qt.Assert(t, err, qt.IsNil)
		return rec.Storage
	}

	qt.Assert(t, d.Link(ctx, root, id, "first"), qt.IsNil)
	qt.Assert(t, d.Link(ctx, gid, id, "second"), qt.IsNil)
	qt.Check(t, storage(), qt.Equals, h5api.Storage_Linked)

	ds, err := d.Dataset(id)
	qt.Assert(t, err, qt.IsNil)
	n, err := d.CountLinks(ctx, ds.Addr())
	qt.Assert(t, err, qt.IsNil)
	qt.Check(t, n, qt.Equals, 2)

	qt.Assert(t, d.Unlink(ctx, root, "first"), qt.IsNil)
	qt.Check(t, storage(), qt.Equals, h5api.Storage_Linked)
	n, err = d.CountLinks(ctx, ds.Addr())
	qt.Assert(t, err, qt.IsNil)
	qt.Check(t, n, qt.Equals, 1)

	qt.Assert(t, d.Unlink(ctx, gid, "second"), qt.IsNil)
	qt.Check(t, storage(), qt.Equals, h5api.Storage_Anonymous)

	// Still resolvable, and still the same object.
	again, err := d.Dataset(id)
	qt.Assert(t, err, qt.IsNil)
	qt.Check(t, again.Addr(), qt.Equals, ds.Addr())
}

func TestRelinkSameName(t *testing.T) {
	ctx := context.Background()
	d := openDir(t, memstore.New())
	id, _, err := d.CreateDataset(ctx, "", vector(1))
	qt.Assert(t, err, qt.IsNil)
	qt.Assert(t, d.Link(ctx, d.RootUUID(), id, "x"), qt.IsNil)
	qt.Assert(t, d.Link(ctx, d.RootUUID(), id, "x"), qt.IsNil)

	rec, err := d.Lookup(id)
	qt.Assert(t, err, qt.IsNil)
	qt.Check(t, rec.Storage, qt.Equals, h5api.Storage_Linked)
	ok, err := d.IsHardLinked(d.RootUUID(), "x", id)
	qt.Assert(t, err, qt.IsNil)
	qt.Check(t, ok, qt.IsTrue)
}

func TestDeleteRemovesEveryLink(t *testing.T) {
	ctx := context.Background()
	d := openDir(t, memstore.New())
	root := d.RootUUID()
	gid, _, err := d.CreateGroup(ctx, "")
	qt.Assert(t, err, qt.IsNil)
	qt.Assert(t, d.Link(ctx, root, gid, "g"), qt.IsNil)
	id, _, err := d.CreateDataset(ctx, "", vector(2))
	qt.Assert(t, err, qt.IsNil)
	qt.Assert(t, d.Link(ctx, root, id, "a"), qt.IsNil)
	qt.Assert(t, d.Link(ctx, gid, id, "b"), qt.IsNil)

	qt.Assert(t, d.Delete(ctx, h5api.ObjectKind_Dataset, id), qt.IsNil)

	links, err := d.Links(root, "", 0)
	qt.Assert(t, err, qt.IsNil)
	qt.Check(t, links, qt.HasLen, 1)
	qt.Check(t, links[0].Title, qt.Equals, "g")
	links, err = d.Links(gid, "", 0)
	qt.Assert(t, err, qt.IsNil)
	qt.Check(t, links, qt.HasLen, 0)
	n, err := d.Count(h5api.ObjectKind_Dataset)
	qt.Assert(t, err, qt.IsNil)
	qt.Check(t, n, qt.Equals, 0)
}

func TestLinkItems(t *testing.T) {
	ctx := context.Background()
	d := openDir(t, memstore.New())
	root := d.RootUUID()
	id, _, err := d.CreateDataset(ctx, "", vector(2))
	qt.Assert(t, err, qt.IsNil)
	qt.Assert(t, d.Link(ctx, root, id, "data"), qt.IsNil)
	qt.Assert(t, d.CreateSoftLink(ctx, root, "/data", "soft"), qt.IsNil)
	qt.Assert(t, d.CreateExternalLink(ctx, root, "other.h5", "/x", "ext"), qt.IsNil)

	links, err := d.Links(root, "", 0)
	qt.Assert(t, err, qt.IsNil)
	qt.Assert(t, links, qt.DeepEquals, []h5api.Link{
		{Title: "data", Class: h5api.LinkClass_Hard, ID: id, Collection: h5api.ObjectKind_Dataset, Ctime: 1700000000, Mtime: 1700000000},
		{Title: "soft", Class: h5api.LinkClass_Soft, H5Path: "/data", Ctime: 1700000000, Mtime: 1700000000},
		{Title: "ext", Class: h5api.LinkClass_External, H5Path: "/x", File: "other.h5", Ctime: 1700000000, Mtime: 1700000000},
	})

	page, err := d.Links(root, "data", 1)
	qt.Assert(t, err, qt.IsNil)
	qt.Check(t, page, qt.HasLen, 1)
	qt.Check(t, page[0].Title, qt.Equals, "soft")

	qt.Assert(t, d.Unlink(ctx, root, "soft"), qt.IsNil)
	_, err = d.LinkItem(root, "soft")
	qt.Check(t, serum.Code(err), qt.Equals, h5api.ECodeAlreadyDeleted)
	_, err = d.LinkItem(root, "never")
	qt.Check(t, serum.Code(err), qt.Equals, h5api.ECodeNotFound)
	err = d.Unlink(ctx, root, "never")
	qt.Check(t, serum.Code(err), qt.Equals, h5api.ECodeNotFound)
	err = d.Unlink(ctx, root, DBGroupName)
	qt.Check(t, serum.Code(err), qt.Equals, h5api.ECodePermissionDenied)
	err = d.Link(ctx, root, id, "a/b")
	qt.Check(t, serum.Code(err), qt.Equals, h5api.ECodeInvalidArgument)
}

func TestTimestamps(t *testing.T) {
	ctx := context.Background()
	d := openDir(t, memstore.New())
	root := d.RootUUID()

	qt.Assert(t, d.SetCreateTime(root, ObjectScope, 100), qt.IsNil)
	qt.Assert(t, d.SetModifiedTime(root, ObjectScope, 200), qt.IsNil)
	qt.Check(t, ObjectScope.key("u"), qt.Equals, "u")
	qt.Check(t, AttrScope("a").key("u"), qt.Equals, "u_attr:[a]")
	qt.Check(t, LinkScope("l").key("u"), qt.Equals, "u_link:[l]")

	// Nothing of its own: the root's times.
	qt.Check(t, d.CreateTime("unknown", AttrScope("x")), qt.Equals, int64(100))
	qt.Check(t, d.ModifiedTime("unknown", AttrScope("x")), qt.Equals, int64(200))

	id, _, err := d.CreateGroup(ctx, "")
	qt.Assert(t, err, qt.IsNil)
	qt.Check(t, d.CreateTime(id, ObjectScope), qt.Equals, int64(1700000000))

	// The modification time falls back to the creation time.
	qt.Assert(t, d.SetCreateTime(id, AttrScope("a"), 300), qt.IsNil)
	qt.Check(t, d.ModifiedTime(id, AttrScope("a")), qt.Equals, int64(300))

	qt.Check(t, d.SetCreateTime(id, AttrScope(""), 1), qt.Not(qt.IsNil))
}

func TestNoTimestamps(t *testing.T) {
	opts := testOptions()
	opts.NoTimestamps = true
	d, err := Open(context.Background(), memstore.New(), opts)
	qt.Assert(t, err, qt.IsNil)
	id, _, err := d.CreateGroup(context.Background(), "")
	qt.Assert(t, err, qt.IsNil)
	qt.Check(t, d.CreateTime(id, ObjectScope), qt.Equals, int64(0))
	qt.Check(t, d.Timestamps(), qt.IsFalse)
}

func TestCollectionOrder(t *testing.T) {
	ctx := context.Background()
	d := openDir(t, memstore.New())
	var ids []string
	for i := 0; i < 4; i++ {
		id, _, err := d.CreateDataset(ctx, "", vector(1))
		qt.Assert(t, err, qt.IsNil)
		ids = append(ids, id)
	}
	qt.Assert(t, d.Link(ctx, d.RootUUID(), ids[2], "linked"), qt.IsNil)

	all, err := d.Collection(h5api.ObjectKind_Dataset, "", 0)
	qt.Assert(t, err, qt.IsNil)
	qt.Check(t, all, qt.DeepEquals, []string{ids[2], ids[0], ids[1], ids[3]})

	page, err := d.Collection(h5api.ObjectKind_Dataset, ids[0], 2)
	qt.Assert(t, err, qt.IsNil)
	qt.Check(t, page, qt.DeepEquals, []string{ids[1], ids[3]})

	page, err = d.Collection(h5api.ObjectKind_Dataset, "", 1)
	qt.Assert(t, err, qt.IsNil)
	qt.Check(t, page, qt.DeepEquals, []string{ids[2]})
}

func TestReadOnlyShadow(t *testing.T) {
	ctx := context.Background()
	filename := filepath.Join(t.TempDir(), "data.h5snap")
	st, err := memstore.Open(filename, memstore.Options{})
	qt.Assert(t, err, qt.IsNil)
	g, err := st.Root().CreateGroup("g")
	qt.Assert(t, err, qt.IsNil)
	_, err = g.CreateDataset("d", vector(2))
	qt.Assert(t, err, qt.IsNil)
	qt.Assert(t, st.Close(), qt.IsNil)

	ro, err := memstore.Open(filename, memstore.Options{ReadOnly: true})
	qt.Assert(t, err, qt.IsNil)
	defer ro.Close()

	_, err = Open(ctx, ro, testOptions())
	qt.Check(t, serum.Code(err), qt.Equals, h5api.ECodeInvalidArgument)

	opts := testOptions()
	opts.Shadow = memstore.New()
	d, err := Open(ctx, ro, opts)
	qt.Assert(t, err, qt.IsNil)
	qt.Check(t, d.ReadOnly(), qt.IsTrue)

	rec, err := d.UUIDByPath("/g/d")
	qt.Assert(t, err, qt.IsNil)
	ds, err := d.Dataset(rec.UUID)
	qt.Assert(t, err, qt.IsNil)
	qt.Check(t, ds.Space().Dims, qt.DeepEquals, []int{2})

	_, _, err = d.CreateGroup(ctx, "")
	qt.Check(t, serum.Code(err), qt.Equals, h5api.ECodePermissionDenied)
	err = d.Delete(ctx, h5api.ObjectKind_Dataset, rec.UUID)
	qt.Check(t, serum.Code(err), qt.Equals, h5api.ECodePermissionDenied)

	// The shadow keeps the same uuids when reopened.
	again, err := Open(ctx, ro, Options{Shadow: opts.Shadow})
	qt.Assert(t, err, qt.IsNil)
	rec2, err := again.UUIDByPath("/g/d")
	qt.Assert(t, err, qt.IsNil)
	qt.Check(t, rec2, qt.Equals, rec)
}

func TestReadOnlyKeepsStoreDirectory(t *testing.T) {
	ctx := context.Background()
	filename := filepath.Join(t.TempDir(), "data.h5snap")
	st, err := memstore.Open(filename, memstore.Options{})
	qt.Assert(t, err, qt.IsNil)
	d, err := Open(ctx, st, testOptions())
	qt.Assert(t, err, qt.IsNil)
	id, _, err := d.CreateGroup(ctx, "")
	qt.Assert(t, err, qt.IsNil)
	qt.Assert(t, d.Link(ctx, d.RootUUID(), id, "g"), qt.IsNil)
	qt.Assert(t, st.Close(), qt.IsNil)

	ro, err := memstore.Open(filename, memstore.Options{ReadOnly: true})
	qt.Assert(t, err, qt.IsNil)
	defer ro.Close()

	// No shadow is needed; the uuids are the ones the store was written with.
	again, err := Open(ctx, ro, Options{})
	qt.Assert(t, err, qt.IsNil)
	qt.Check(t, again.RootUUID(), qt.Equals, d.RootUUID())
	rec, err := again.UUIDByPath("/g")
	qt.Assert(t, err, qt.IsNil)
	qt.Check(t, rec.UUID, qt.Equals, id)
}
