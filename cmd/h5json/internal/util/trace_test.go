package util

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/HDFGroup/hdf5-json/pkg/store/memstore"
	"github.com/HDFGroup/hdf5-json/pkg/tracing"
)

func TestTracingProvider(t *testing.T) {
	ctx := context.Background()

	tp, err := newTracingProvider(ctx, TraceSettings{}, "v0.0.0")
	qt.Assert(t, err, qt.IsNil)
	qt.Check(t, tp == nil, qt.IsTrue)

	file := filepath.Join(t.TempDir(), "spans.json")
	tp, err = newTracingProvider(ctx, TraceSettings{File: file}, "v0.0.0")
	qt.Assert(t, err, qt.IsNil)
	qt.Assert(t, tp, qt.IsNotNil)

	_, span := tp.Tracer(Module).Start(ctx, "dump")
	span.End()
	qt.Assert(t, tp.Shutdown(ctx), qt.IsNil)

	spans, err := os.ReadFile(file)
	qt.Assert(t, err, qt.IsNil)
	qt.Check(t, string(spans), qt.Contains, `"Name": "dump"`)
	qt.Check(t, string(spans), qt.Contains, tracing.AttrKeyEngine)
	qt.Check(t, string(spans), qt.Contains, memstore.EngineName)
}
