package healthcheck

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/fatih/color"
	qt "github.com/frankban/quicktest"
	"github.com/serum-errors/go-serum"

	"github.com/HDFGroup/hdf5-json/h5api"
	"github.com/HDFGroup/hdf5-json/pkg/h5db"
	"github.com/HDFGroup/hdf5-json/pkg/mirroring"
)

type fixedCheck struct {
	name string
	err  error
}

func (c fixedCheck) Name() string              { return c.name }
func (c fixedCheck) Run(context.Context) error { return c.err }

func TestReport(t *testing.T) {
	color.NoColor = true
	report := Run(context.Background(),
		fixedCheck{"first", serum.Errorf(CodeRunOkay, "fine")},
		fixedCheck{"second one", serum.Errorf(CodeRunAmbiguous, "unsure")},
	)
	qt.Assert(t, report.Failed(), qt.IsFalse)
	var buf bytes.Buffer
	report.Fprint(&buf)
	qt.Assert(t, buf.String(), qt.Equals,
		" ✔  first     \tfine\n"+
			" ?  second one\tunsure\n")

	report = Run(context.Background(), fixedCheck{"plain", errors.New("oops")})
	qt.Assert(t, report.Failed(), qt.IsTrue)
	qt.Check(t, report[0].Message, qt.Equals, "check gave no usable answer: oops")

	report = Run(context.Background(), fixedCheck{"third", serum.Errorf(CodeRunFailure, "broken")})
	qt.Check(t, report.Failed(), qt.IsTrue)
}

func TestStatusOf(t *testing.T) {
	qt.Check(t, StatusOf(nil), qt.Equals, StatusNone)
	qt.Check(t, StatusOf(serum.Errorf("something-else", "x")), qt.Equals, StatusUnknown)
	qt.Check(t, StatusOf(serum.Errorf(CodeRunFailure, "x")), qt.Equals, StatusFail)
	qt.Check(t, StatusUnknown.String(), qt.Equals, "!")
}

func TestChecks(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	t.Run("engine", func(t *testing.T) {
		err := (&EngineCheck{TempDir: dir}).Run(ctx)
		qt.Assert(t, StatusOf(err), qt.Equals, StatusOkay, qt.Commentf("%v", err))
	})
	t.Run("shadow-dir", func(t *testing.T) {
		qt.Check(t, StatusOf((&ShadowDirCheck{}).Run(ctx)), qt.Equals, StatusAmbiguous)
		qt.Check(t, StatusOf((&ShadowDirCheck{Dir: dir}).Run(ctx)), qt.Equals, StatusOkay)
		qt.Check(t, StatusOf((&ShadowDirCheck{Dir: dir + "/missing"}).Run(ctx)), qt.Equals, StatusFail)
	})
	t.Run("publish", func(t *testing.T) {
		qt.Check(t, StatusOf((&PublishCheck{}).Run(ctx)), qt.Equals, StatusAmbiguous)
		cfg := mirroring.PushConfig{Mock: &mirroring.MockPushConfig{}}
		qt.Check(t, StatusOf((&PublishCheck{Config: cfg}).Run(ctx)), qt.Equals, StatusOkay)
	})
	t.Run("store", func(t *testing.T) {
		const root = "5a0f5c9e-9c2e-11ee-8c90-0242ac120002"
		filename := filepath.Join(dir, "ok.h5j")
		db, err := h5db.Open(ctx, filename, h5db.Options{RootUUID: root})
		qt.Assert(t, err, qt.IsNil)
		_, err = db.CreateGroup(ctx, "")
		qt.Assert(t, err, qt.IsNil)
		i8 := h5api.TypeDescriptor{Integer: &h5api.IntegerType{Signed: true, Bits: 8, Order: h5api.ByteOrder_LE}}
		_, err = db.CreateCommittedType(ctx, "", i8)
		qt.Assert(t, err, qt.IsNil)
		qt.Assert(t, db.Flush(ctx), qt.IsNil)
		qt.Assert(t, db.Close(), qt.IsNil)

		check := &StoreCheck{Filename: filename}
		qt.Check(t, check.Name(), qt.Equals, "Store ok.h5j")
		err = check.Run(ctx)
		qt.Assert(t, StatusOf(err), qt.Equals, StatusOkay, qt.Commentf("%v", err))
		qt.Check(t, err.(serum.ErrorInterfaceWithMessage).Message(), qt.Equals,
			"root "+root+", 1 groups, 0 datasets, 1 datatypes")

		err = (&StoreCheck{Filename: filepath.Join(dir, "missing.h5j")}).Run(ctx)
		qt.Check(t, StatusOf(err), qt.Equals, StatusFail)
	})
}
