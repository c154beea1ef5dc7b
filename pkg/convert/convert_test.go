package convert

import (
	"bytes"
	"context"
	"strings"
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/ipld/go-ipld-prime/datamodel"
	"github.com/serum-errors/go-serum"
	"github.com/warpfork/go-testmark"

	"github.com/HDFGroup/hdf5-json/h5api"
	"github.com/HDFGroup/hdf5-json/pkg/h5db"
	"github.com/HDFGroup/hdf5-json/pkg/store/memstore"
)

func emptyDB(t *testing.T, root string) *h5db.DB {
	t.Helper()
	db, err := h5db.New(context.Background(), memstore.New(), nil, h5db.Options{RootUUID: root})
	qt.Assert(t, err, qt.IsNil)
	t.Cleanup(func() { db.Close() })
	return db
}

// load imports a serialized document into an empty store.
func load(t *testing.T, serial []byte) *h5db.DB {
	t.Helper()
	doc, err := ReadDocument(bytes.NewReader(serial))
	qt.Assert(t, err, qt.IsNil)
	root, err := RootUUID(doc)
	qt.Assert(t, err, qt.IsNil)
	db := emptyDB(t, root)
	qt.Assert(t, Import(context.Background(), db, doc), qt.IsNil)
	return db
}

func dump(t *testing.T, db *h5db.DB, opts ExportOptions) (datamodel.Node, []byte) {
	t.Helper()
	doc, err := Export(context.Background(), db, opts)
	qt.Assert(t, err, qt.IsNil)
	var buf bytes.Buffer
	qt.Assert(t, WriteDocument(doc, &buf), qt.IsNil)
	return doc, buf.Bytes()
}

func lookup(t *testing.T, n datamodel.Node, path ...string) datamodel.Node {
	t.Helper()
	for _, p := range path {
		var err error
		n, err = n.LookupByString(p)
		qt.Assert(t, err, qt.IsNil, qt.Commentf("looking up %q", p))
	}
	return n
}

func TestDocumentFixtures(t *testing.T) {
	doc, err := testmark.ReadFile("testdata/documents.md")
	qt.Assert(t, err, qt.IsNil)

	doc.BuildDirIndex()
	for _, dir := range doc.DirEnt.ChildrenList {
		dir := dir
		t.Run(dir.Name, func(t *testing.T) {
			qt.Assert(t, dir.Children["document"], qt.IsNotNil)
			serial := dir.Children["document"].Hunk.Body

			first, firstSerial := dump(t, load(t, serial), ExportOptions{})
			second, secondSerial := dump(t, load(t, firstSerial), ExportOptions{})
			qt.Check(t, string(secondSerial), qt.Equals, string(firstSerial))

			cid1, err := CID(first)
			qt.Assert(t, err, qt.IsNil)
			cid2, err := CID(second)
			qt.Assert(t, err, qt.IsNil)
			qt.Check(t, cid1, qt.Equals, cid2)
			qt.Check(t, strings.HasPrefix(cid1, "bafy"), qt.IsTrue)
		})
	}
}

func fixture(t *testing.T, name string) []byte {
	t.Helper()
	doc, err := testmark.ReadFile("testdata/documents.md")
	qt.Assert(t, err, qt.IsNil)
	hunk, ok := doc.HunksByName[name]
	qt.Assert(t, ok, qt.IsTrue)
	return hunk.Body
}

func TestImportedObjects(t *testing.T) {
	ctx := context.Background()
	db := load(t, fixture(t, "datasets/document"))

	rec, err := db.GetUUIDByPath("/grid")
	qt.Assert(t, err, qt.IsNil)
	qt.Check(t, rec.UUID, qt.Equals, "3d0e1a5a-8f6b-11ee-b9d1-0242ac120002")
	v, err := db.GetDatasetValues(ctx, rec.UUID, nil)
	qt.Assert(t, err, qt.IsNil)
	qt.Check(t, v, qt.DeepEquals, []any{
		[]any{int64(1), int64(2), int64(3)},
		[]any{int64(4), int64(5), int64(6)},
	})

	item, err := db.GetDatasetItem(ctx, "4b3d2c8e-8f6b-11ee-b9d1-0242ac120002")
	qt.Assert(t, err, qt.IsNil)
	qt.Check(t, item.Shape.MaxDims, qt.DeepEquals, []int{h5api.Unlimited})
	qt.Check(t, item.CreationProperties.ChunkDims(), qt.DeepEquals, []int{4})

	item, err = db.GetDatasetItem(ctx, "7c1d2e34-8f6b-11ee-b9d1-0242ac120002")
	qt.Assert(t, err, qt.IsNil)
	qt.Assert(t, item.Type.Named, qt.IsNotNil)
	qt.Check(t, item.Type.Named.UUID, qt.Equals, "6e8a9b02-8f6b-11ee-b9d1-0242ac120002")

	n, err := db.NumberOfDatasets()
	qt.Assert(t, err, qt.IsNil)
	qt.Check(t, n, qt.Equals, 4)
}

func TestExportLayout(t *testing.T) {
	db := load(t, fixture(t, "links/document"))
	doc, _ := dump(t, db, ExportOptions{})

	root := "0a8ad1d0-8f6b-11ee-b9d1-0242ac120002"
	alias := lookup(t, doc, "groups", root, "alias")
	first, err := alias.LookupByIndex(0)
	qt.Assert(t, err, qt.IsNil)
	s, _ := first.AsString()
	qt.Check(t, s, qt.Equals, "/")

	links := lookup(t, doc, "groups", root, "links")
	qt.Check(t, links.Length(), qt.Equals, int64(3))
	soft, err := links.LookupByIndex(1)
	qt.Assert(t, err, qt.IsNil)
	path, _ := lookup(t, soft, "h5path").AsString()
	qt.Check(t, path, qt.Equals, "/g1/missing")

	_, err = doc.LookupByString("datasets")
	qt.Check(t, err, qt.IsNotNil)

	value := lookup(t, doc, "groups", "1c7ab6e4-8f6b-11ee-b9d1-0242ac120002", "attributes")
	attr, err := value.LookupByIndex(0)
	qt.Assert(t, err, qt.IsNil)
	qt.Check(t, lookup(t, attr, "value").Length(), qt.Equals, int64(3))
}

func TestExportWithoutValues(t *testing.T) {
	db := load(t, fixture(t, "datasets/document"))
	grid := "3d0e1a5a-8f6b-11ee-b9d1-0242ac120002"

	doc, _ := dump(t, db, ExportOptions{NoDatasetValues: true})
	_, err := lookup(t, doc, "datasets", grid).LookupByString("value")
	qt.Check(t, err, qt.IsNotNil)
	lookup(t, doc, "datasets", grid, "shape")

	db = load(t, fixture(t, "links/document"))
	doc, _ = dump(t, db, ExportOptions{NoValues: true})
	attr, err := lookup(t, doc, "groups", "0a8ad1d0-8f6b-11ee-b9d1-0242ac120002", "attributes").LookupByIndex(0)
	qt.Assert(t, err, qt.IsNil)
	_, err = attr.LookupByString("value")
	qt.Check(t, err, qt.IsNotNil)
}

func TestImportRejects(t *testing.T) {
	ctx := context.Background()
	for _, tc := range []struct {
		name string
		doc  string
		code string
	}{
		{"no root", `{"apiVersion": "1.1.1"}`, h5api.ECodeInvalidArgument},
		{"not a map", `[1, 2]`, h5api.ECodeInvalidArgument},
		{"not json", `{"root": `, h5api.ECodeSerialization},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ReadDocument(strings.NewReader(tc.doc))
			qt.Check(t, serum.Code(err), qt.Equals, tc.code)
		})
	}

	t.Run("other root", func(t *testing.T) {
		doc, err := ReadDocument(bytes.NewReader(fixture(t, "links/document")))
		qt.Assert(t, err, qt.IsNil)
		db := emptyDB(t, "")
		err = Import(ctx, db, doc)
		qt.Check(t, serum.Code(err), qt.Equals, h5api.ECodeInvalidArgument)
	})

	t.Run("bad type", func(t *testing.T) {
		doc, err := ReadDocument(strings.NewReader(`{
			"root": "0a8ad1d0-8f6b-11ee-b9d1-0242ac120002",
			"datasets": {"3d0e1a5a-8f6b-11ee-b9d1-0242ac120002": {"type": "H5T_BOGUS", "shape": {"class": "H5S_SCALAR"}}}
		}`))
		qt.Assert(t, err, qt.IsNil)
		db := emptyDB(t, "0a8ad1d0-8f6b-11ee-b9d1-0242ac120002")
		err = Import(ctx, db, doc)
		qt.Check(t, serum.Code(err), qt.Equals, h5api.ECodeInvalidType)
	})
}
