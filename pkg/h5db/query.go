package h5db

import (
	"context"

	"github.com/HDFGroup/hdf5-json/pkg/query"
)

// QueryRow is a row of a query result, decoded to JSON values in field order.
type QueryRow struct {
	Index int
	Value []any
}

// QueryDataset returns the rows of a one-dimensional compound dataset that
// satisfy expr, in index order. limit 0 means every match.
//
// Errors:
//
//   - h5json-error-not-found -- when there is no such dataset
//   - h5json-error-invalid-argument -- when the dataset is not a one-dimensional compound dataset
//   - h5json-error-invalid-query -- when expr is rejected
func (db *DB) QueryDataset(ctx context.Context, id string, expr string, limit int) ([]QueryRow, error) {
	ds, err := db.dir.Dataset(id)
	if err != nil {
		return nil, err
	}
	q, err := query.CompileFor(ds, expr)
	if err != nil {
		return nil, err
	}
	matches, err := query.Scan(ctx, ds, q, query.Options{BlockSize: db.opts.QueryBlockSize, Limit: limit})
	if err != nil {
		return nil, err
	}
	d, err := db.types.DecodeInline(ds.DataType())
	if err != nil {
		return nil, err
	}
	rows := make([]QueryRow, 0, len(matches))
	for _, m := range matches {
		v, err := db.values.Decode(d, []any{m.Row}, nil)
		if err != nil {
			return nil, err
		}
		fields, _ := v.([]any)
		rows = append(rows, QueryRow{Index: m.Index, Value: fields})
	}
	return rows, nil
}
