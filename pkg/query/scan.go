package query

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/HDFGroup/hdf5-json/h5api"
	"github.com/HDFGroup/hdf5-json/pkg/logging"
	"github.com/HDFGroup/hdf5-json/pkg/store"
	"github.com/HDFGroup/hdf5-json/pkg/tracing"
)

const LOG_TAG = "query"

// DefaultBlockSize is how many elements are read at a time from an unchunked dataset.
const DefaultBlockSize = 256000

type Options struct {
	// BlockSize replaces DefaultBlockSize when positive.
	BlockSize int
	// Limit stops the scan after this many matches; zero means no limit.
	Limit int
}

// Match is one row that passed the filter.
type Match struct {
	Index int
	Row   []any
}

// Fields lists the field names of a compound type.
//
// Errors:
//
//   - h5json-error-invalid-argument -- when t is not a compound type
func Fields(t *store.Type) ([]string, error) {
	if t == nil || t.Class != store.ClassCompound {
		return nil, h5api.ErrorInvalidArgument("queries need a compound type")
	}
	out := make([]string, len(t.Members))
	for i, m := range t.Members {
		out[i] = m.Name
	}
	return out, nil
}

// CompileFor compiles expr against the fields of a dataset.
//
// Errors:
//
//   - h5json-error-invalid-argument -- when the dataset is not a one dimensional compound dataset
//   - h5json-error-invalid-query -- as for Compile
func CompileFor(ds store.Dataset, expr string) (*Query, error) {
	if ds.Space().Rank() != 1 {
		return nil, h5api.ErrorInvalidArgument("queries need a one dimensional dataset")
	}
	fields, err := Fields(ds.DataType())
	if err != nil {
		return nil, err
	}
	return Compile(expr, fields)
}

// BlockSize is the number of elements read at a time: a whole number of
// chunks when the dataset is chunked.
func BlockSize(ds store.Dataset, preferred int) int {
	if preferred <= 0 {
		preferred = DefaultBlockSize
	}
	chunks := ds.Spec().Chunks
	if len(chunks) == 0 || chunks[0] <= 0 {
		return preferred
	}
	n := preferred / chunks[0]
	if n < 1 {
		n = 1
	}
	return n * chunks[0]
}

// Scan reads a one dimensional compound dataset block by block
// and returns the rows that match q, in index order.
//
// Errors:
//
//   - h5json-error-invalid-argument -- when the dataset is not a one dimensional compound dataset
//   - h5json-error-invalid-query -- when a row cannot be compared as the query asks
//   - h5json-error-io -- when reading fails
func Scan(ctx context.Context, ds store.Dataset, q *Query, opts Options) ([]Match, error) {
	ctx, span := tracing.Start(ctx, "query.Scan", trace.WithAttributes(attribute.String(tracing.AttrKeyQuery, q.Text())))
	defer span.End()
	matches, err := scanBlocks(ctx, ds, q, opts)
	span.SetAttributes(attribute.Int(tracing.AttrKeyMatches, len(matches)))
	tracing.SetSpanError(ctx, err)
	return matches, err
}

func scanBlocks(ctx context.Context, ds store.Dataset, q *Query, opts Options) ([]Match, error) {
	sp := ds.Space()
	if sp.Class != store.SpaceSimple || sp.Rank() != 1 {
		return nil, h5api.ErrorInvalidArgument("queries need a one dimensional dataset")
	}
	if _, err := Fields(ds.DataType()); err != nil {
		return nil, err
	}
	total := sp.Dims[0]
	block := BlockSize(ds, opts.BlockSize)
	log := logging.Ctx(ctx)
	var matches []Match
	for start := 0; start < total; start += block {
		if err := ctx.Err(); err != nil {
			return matches, h5api.ErrorIo("query scan", err)
		}
		stop := min(start+block, total)
		rows, err := ds.Read([]store.Slab{{Start: start, Stop: stop, Step: 1}})
		if err != nil {
			return matches, store.APIError("query scan", err)
		}
		log.Debug(LOG_TAG, "scanning elements %d to %d", start, stop)
		for i, r := range rows {
			row, ok := r.([]any)
			if !ok {
				return matches, h5api.ErrorIo("query scan", errNotCompound(start+i))
			}
			ok, err := q.Match(row)
			if err != nil {
				return matches, err
			}
			if !ok {
				continue
			}
			matches = append(matches, Match{Index: start + i, Row: row})
			if opts.Limit > 0 && len(matches) >= opts.Limit {
				return matches, nil
			}
		}
	}
	return matches, nil
}
