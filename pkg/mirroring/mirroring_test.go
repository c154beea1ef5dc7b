package mirroring

import (
	"context"
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/serum-errors/go-serum"

	"github.com/HDFGroup/hdf5-json/h5api"
)

func TestKeys(t *testing.T) {
	cid := "bafyrgqabcdefghijkl"
	qt.Check(t, DocumentKey(cid), qt.Equals, "documents/ghi/jkl/bafyrgqabcdefghijkl.json")
	qt.Check(t, SnapshotKey(cid), qt.Equals, "snapshots/ghi/jkl/bafyrgqabcdefghijkl.h5j")
	qt.Check(t, DocumentKey("ab"), qt.Equals, "documents/ab/ab.json")
}

func TestPublishSkipsExisting(t *testing.T) {
	ctx := context.Background()
	p := NewMockPusher()
	items := []Item{
		{Key: "documents/a.json", Body: []byte(`{}`)},
		{Key: "snapshots/a.h5j", Body: []byte{1, 2, 3}},
	}
	pushed, err := Publish(ctx, p, items)
	qt.Assert(t, err, qt.IsNil)
	qt.Check(t, pushed, qt.DeepEquals, []string{"documents/a.json", "snapshots/a.h5j"})
	b, ok := p.Get("snapshots/a.h5j")
	qt.Assert(t, ok, qt.IsTrue)
	qt.Check(t, b, qt.DeepEquals, []byte{1, 2, 3})

	pushed, err = Publish(ctx, p, items)
	qt.Assert(t, err, qt.IsNil)
	qt.Check(t, pushed, qt.HasLen, 0)
}

func TestNewPusher(t *testing.T) {
	ctx := context.Background()
	_, err := NewPusher(ctx, PushConfig{})
	qt.Check(t, serum.Code(err), qt.Equals, h5api.ECodeInitialization)

	p, err := NewPusher(ctx, PushConfig{Mock: &MockPushConfig{}})
	qt.Assert(t, err, qt.IsNil)
	_, ok := p.(*MockPusher)
	qt.Check(t, ok, qt.IsTrue)
}
