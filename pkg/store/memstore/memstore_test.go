package memstore

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/HDFGroup/hdf5-json/pkg/store"
)

var (
	i32    = &store.Type{Class: store.ClassInteger, Size: 4, Order: store.OrderLE, Signed: true}
	u8     = &store.Type{Class: store.ClassInteger, Size: 1, Order: store.OrderLE}
	f32    = &store.Type{Class: store.ClassFloat, Size: 4, Order: store.OrderLE}
	fixed5 = &store.Type{Class: store.ClassString, Size: 5, StrPad: store.StrPadNullPad}
	vstr   = &store.Type{Class: store.ClassVlen, Base: &store.Type{Class: store.ClassString, CharSet: store.CharSetUTF8}}
	objRef = &store.Type{Class: store.ClassReference, Size: 8, RefKind: store.RefObject}
	regRef = &store.Type{Class: store.ClassReference, Size: 12, RefKind: store.RefRegion}
)

func simple(dims ...int) store.Space {
	return store.Space{Class: store.SpaceSimple, Dims: dims}
}

func TestLinksAndPaths(t *testing.T) {
	s := New()
	root := s.Root()
	g1, err := root.CreateGroup("g1")
	qt.Assert(t, err, qt.IsNil)
	g11, err := g1.CreateGroup("g1.1")
	qt.Assert(t, err, qt.IsNil)
	qt.Assert(t, g11.Name(), qt.Equals, "/g1/g1.1")

	_, err = root.CreateGroup("g1")
	qt.Assert(t, errors.Is(err, store.ErrExists), qt.IsTrue)

	qt.Assert(t, root.LinkSoft("slink", "/g1/g1.1"), qt.IsNil)
	qt.Assert(t, root.LinkExternal("ext", "other.h5", "/x"), qt.IsNil)

	obj, err := root.Get("slink")
	qt.Assert(t, err, qt.IsNil)
	qt.Assert(t, obj.Addr(), qt.Equals, g11.Addr())

	obj, err = g1.Get("/g1/g1.1")
	qt.Assert(t, err, qt.IsNil)
	qt.Assert(t, obj.Addr(), qt.Equals, g11.Addr())

	_, err = root.Get("ext")
	qt.Assert(t, errors.Is(err, store.ErrNotFound), qt.IsTrue)

	qt.Assert(t, root.LinkSoft("loop", "/loop"), qt.IsNil)
	_, err = root.Get("loop")
	qt.Assert(t, errors.Is(err, store.ErrNotFound), qt.IsTrue)

	names := []string{}
	for _, l := range root.Links() {
		names = append(names, l.Name)
	}
	qt.Assert(t, names, qt.DeepEquals, []string{"g1", "slink", "ext", "loop"})
}

func TestUnlinkFreesUnreachable(t *testing.T) {
	s := New()
	root := s.Root()
	g1, _ := root.CreateGroup("g1")
	g2, _ := g1.CreateGroup("g2")
	qt.Assert(t, root.LinkHard("alias", g2), qt.IsNil)

	qt.Assert(t, root.Unlink("g1"), qt.IsNil)
	_, err := s.ObjectAt(g1.Addr())
	qt.Assert(t, errors.Is(err, store.ErrNotFound), qt.IsTrue)
	// Still reachable through the second link.
	obj, err := s.ObjectAt(g2.Addr())
	qt.Assert(t, err, qt.IsNil)
	qt.Assert(t, obj.Name(), qt.Equals, "/alias")

	qt.Assert(t, root.Unlink("alias"), qt.IsNil)
	_, err = s.ObjectAt(g2.Addr())
	qt.Assert(t, errors.Is(err, store.ErrNotFound), qt.IsTrue)

	err = root.Unlink("alias")
	qt.Assert(t, errors.Is(err, store.ErrNotFound), qt.IsTrue)
}

func TestNamePrefersPublicPaths(t *testing.T) {
	s := New()
	root := s.Root()
	db, _ := root.CreateGroup("__db__")
	g, _ := db.CreateGroup("hidden")
	qt.Assert(t, g.Name(), qt.Equals, "/__db__/hidden")
	qt.Assert(t, root.LinkHard("visible", g), qt.IsNil)
	qt.Assert(t, g.Name(), qt.Equals, "/visible")
}

func TestVisitOncePerObject(t *testing.T) {
	s := New()
	root := s.Root()
	g1, _ := root.CreateGroup("g1")
	_, err := g1.CreateDataset("d", store.DatasetSpec{Type: i32, Space: store.Space{Class: store.SpaceScalar}})
	qt.Assert(t, err, qt.IsNil)
	qt.Assert(t, root.LinkHard("again", g1), qt.IsNil)
	qt.Assert(t, g1.LinkHard("self", g1), qt.IsNil)

	var paths []string
	err = s.Visit(context.Background(), func(path string, obj store.Object) error {
		paths = append(paths, path)
		return nil
	})
	qt.Assert(t, err, qt.IsNil)
	qt.Assert(t, paths, qt.DeepEquals, []string{"g1", "g1/d"})
}

func TestDatasetSelections(t *testing.T) {
	s := New()
	ds, err := s.Root().CreateDataset("grid", store.DatasetSpec{Type: i32, Space: simple(3, 4)})
	qt.Assert(t, err, qt.IsNil)

	all := make([]any, 12)
	for i := range all {
		all[i] = i
	}
	qt.Assert(t, ds.Write(nil, all), qt.IsNil)

	got, err := ds.Read([]store.Slab{{Start: 1, Stop: 3, Step: 1}, {Start: 0, Stop: 4, Step: 2}})
	qt.Assert(t, err, qt.IsNil)
	qt.Assert(t, got, qt.DeepEquals, []any{int64(4), int64(6), int64(8), int64(10)})

	qt.Assert(t, ds.WritePoints([][]int{{0, 0}, {2, 3}}, []any{100, 200}), qt.IsNil)
	got, err = ds.ReadPoints([][]int{{2, 3}, {0, 0}})
	qt.Assert(t, err, qt.IsNil)
	qt.Assert(t, got, qt.DeepEquals, []any{int64(200), int64(100)})

	_, err = ds.Read([]store.Slab{{Start: 0, Stop: 4}, {Start: 0, Stop: 1}})
	qt.Assert(t, errors.Is(err, store.ErrInvalidSelection), qt.IsTrue)

	err = ds.Write([]store.Slab{{Start: 0, Stop: 1}, {Start: 0, Stop: 1}}, []any{int64(1) << 40})
	qt.Assert(t, errors.Is(err, store.ErrTypeMismatch), qt.IsTrue)
}

func TestNullAndScalar(t *testing.T) {
	s := New()
	null, err := s.Root().CreateDataset("null", store.DatasetSpec{Type: i32, Space: store.Space{Class: store.SpaceNull}})
	qt.Assert(t, err, qt.IsNil)
	_, err = null.Read(nil)
	qt.Assert(t, errors.Is(err, store.ErrNoStorage), qt.IsTrue)

	sc, err := s.Root().CreateDataset("scalar", store.DatasetSpec{Type: vstr, Space: store.Space{Class: store.SpaceScalar}})
	qt.Assert(t, err, qt.IsNil)
	qt.Assert(t, sc.Write(nil, []any{"hello"}), qt.IsNil)
	got, err := sc.Read(nil)
	qt.Assert(t, err, qt.IsNil)
	qt.Assert(t, got, qt.DeepEquals, []any{"hello"})
}

func TestResize(t *testing.T) {
	s := New()
	spec := store.DatasetSpec{
		Type:      u8,
		Space:     store.Space{Class: store.SpaceSimple, Dims: []int{2, 2}, MaxDims: []int{store.Unlimited, 3}},
		FillValue: 9,
	}
	ds, err := s.Root().CreateDataset("ext", spec)
	qt.Assert(t, err, qt.IsNil)
	qt.Assert(t, ds.Spec().Chunks, qt.HasLen, 2)
	qt.Assert(t, ds.Write(nil, []any{1, 2, 3, 4}), qt.IsNil)

	qt.Assert(t, ds.Resize([]int{3, 3}), qt.IsNil)
	got, err := ds.Read(nil)
	qt.Assert(t, err, qt.IsNil)
	qt.Assert(t, got, qt.DeepEquals, []any{
		int64(1), int64(2), int64(9),
		int64(3), int64(4), int64(9),
		int64(9), int64(9), int64(9),
	})

	err = ds.Resize([]int{3, 4})
	qt.Assert(t, errors.Is(err, store.ErrInvalidSelection), qt.IsTrue)
}

func TestNormalize(t *testing.T) {
	for _, tc := range []struct {
		name string
		typ  *store.Type
		in   any
		out  any
		err  error
	}{
		{"int from float", i32, 7.0, int64(7), nil},
		{"int overflow", u8, 256, nil, store.ErrTypeMismatch},
		{"negative unsigned", u8, -1, nil, store.ErrTypeMismatch},
		{"signed min", i32, -2147483648, int64(-2147483648), nil},
		{"float32 rounding", f32, 0.1, float64(float32(0.1)), nil},
		{"fixed string padded", fixed5, "ab", []byte{'a', 'b', 0, 0, 0}, nil},
		{"fixed string truncated", fixed5, "abcdefg", []byte("abcde"), nil},
		{"null object ref", objRef, nil, store.ObjectRef{}, nil},
		{"wrong kind", objRef, store.RegionRef{Addr: 1}, nil, store.ErrTypeMismatch},
	} {
		t.Run(tc.name, func(t *testing.T) {
			got, err := normalize(tc.typ, tc.in)
			if tc.err != nil {
				qt.Assert(t, errors.Is(err, tc.err), qt.IsTrue)
				return
			}
			qt.Assert(t, err, qt.IsNil)
			qt.Assert(t, got, qt.DeepEquals, tc.out)
		})
	}
}

func buildSample(t *testing.T, s *Store) (store.Dataset, store.Datatype) {
	root := s.Root()
	g, err := root.CreateGroup("g")
	qt.Assert(t, err, qt.IsNil)
	dt, err := root.CommitType("dtype", &store.Type{Class: store.ClassCompound, Size: 9, Members: []store.Member{
		{Name: "a", Type: i32},
		{Name: "b", Type: fixed5},
	}})
	qt.Assert(t, err, qt.IsNil)
	ds, err := g.CreateDataset("refs", store.DatasetSpec{Type: objRef, Space: simple(2)})
	qt.Assert(t, err, qt.IsNil)
	qt.Assert(t, ds.Write(nil, []any{store.ObjectRef{Addr: g.Addr()}, store.ObjectRef{}}), qt.IsNil)
	qt.Assert(t, g.Attrs().Set("region", store.Attribute{
		Type:  regRef,
		Space: store.Space{Class: store.SpaceScalar},
		Values: []any{store.RegionRef{Addr: ds.Addr(), Kind: store.SelectHyperslabs, Blocks: []store.Block{
			{Start: []int{0}, End: []int{1}},
		}}},
	}), qt.IsNil)
	qt.Assert(t, g.Attrs().Set("count", store.Attribute{Type: i32, Space: simple(2), Values: []any{-1, 2}}), qt.IsNil)
	return ds, dt
}

func TestSnapshotRoundTrip(t *testing.T) {
	for _, c := range []Compression{CompressionNone, CompressionLZ4, CompressionZstd} {
		t.Run(c.String(), func(t *testing.T) {
			s := New()
			ds, dt := buildSample(t, s)

			var buf bytes.Buffer
			qt.Assert(t, writeSnapshot(&buf, s, c), qt.IsNil)
			s2, err := readSnapshot(bytes.NewReader(buf.Bytes()))
			qt.Assert(t, err, qt.IsNil)

			obj, err := s2.Root().Get("g/refs")
			qt.Assert(t, err, qt.IsNil)
			qt.Assert(t, obj.Addr(), qt.Equals, ds.Addr())
			vals, err := obj.(store.Dataset).Read(nil)
			qt.Assert(t, err, qt.IsNil)
			g, _ := s2.Root().Get("g")
			qt.Assert(t, vals, qt.DeepEquals, []any{store.ObjectRef{Addr: g.Addr()}, store.ObjectRef{}})

			attr, err := g.Attrs().Get("count")
			qt.Assert(t, err, qt.IsNil)
			qt.Assert(t, attr.Values, qt.DeepEquals, []any{int64(-1), int64(2)})
			reg, err := g.Attrs().Get("region")
			qt.Assert(t, err, qt.IsNil)
			qt.Assert(t, reg.Values[0].(store.RegionRef).Blocks[0].End, qt.DeepEquals, []int{1})

			typ, err := s2.ObjectAt(dt.Addr())
			qt.Assert(t, err, qt.IsNil)
			qt.Assert(t, typ.(store.Datatype).DataType().Addr, qt.Equals, dt.Addr())
			qt.Assert(t, typ.(store.Datatype).DataType().Members[1].Name, qt.Equals, "b")
		})
	}
}

func TestSnapshotCorruption(t *testing.T) {
	s := New()
	buildSample(t, s)
	var buf bytes.Buffer
	qt.Assert(t, writeSnapshot(&buf, s, CompressionNone), qt.IsNil)
	raw := buf.Bytes()
	raw[len(raw)-1] ^= 0xff
	_, err := readSnapshot(bytes.NewReader(raw))
	qt.Assert(t, errors.Is(err, ErrCorruptSnapshot), qt.IsTrue)

	_, err = readSnapshot(bytes.NewReader([]byte("not a snapshot")))
	qt.Assert(t, errors.Is(err, ErrCorruptSnapshot), qt.IsTrue)
}

func TestOpenFlushReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sample.h5s")
	s, err := Open(path, Options{Compression: CompressionZstd})
	qt.Assert(t, err, qt.IsNil)
	buildSample(t, s)

	// A second writer is refused while the first holds the lock.
	_, err = Open(path, Options{})
	qt.Assert(t, err, qt.IsNotNil)

	qt.Assert(t, s.Close(), qt.IsNil)

	ro, err := Open(path, Options{ReadOnly: true})
	qt.Assert(t, err, qt.IsNil)
	defer ro.Close()
	qt.Assert(t, ro.ReadOnly(), qt.IsTrue)
	_, err = ro.Root().CreateGroup("nope")
	qt.Assert(t, errors.Is(err, store.ErrReadOnly), qt.IsTrue)
	_, err = ro.Root().Get("g/refs")
	qt.Assert(t, err, qt.IsNil)

	_, err = Open(filepath.Join(t.TempDir(), "missing.h5s"), Options{ReadOnly: true})
	qt.Assert(t, errors.Is(err, store.ErrNotFound), qt.IsTrue)
}
