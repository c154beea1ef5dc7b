package main

import (
	"github.com/urfave/cli/v2"

	"github.com/HDFGroup/hdf5-json/cmd/h5json/internal/util"
	"github.com/HDFGroup/hdf5-json/h5api"
	"github.com/HDFGroup/hdf5-json/pkg/logging"
	"github.com/HDFGroup/hdf5-json/pkg/valuecodec"
)

var queryCmdDef = cli.Command{
	Name:      "query",
	Usage:     "Select the rows of a compound dataset matching an expression",
	ArgsUsage: "<store> <dataset path> <expression>",
	Flags: []cli.Flag{
		&cli.IntFlag{
			Name:  "limit",
			Usage: "Stop after this many rows; zero returns every match",
		},
	},
	Action: util.Action(cmdQuery),
}

func cmdQuery(c *cli.Context) error {
	if c.NArg() != 3 {
		return h5api.ErrorInvalidArgument("query takes a store, a dataset path and an expression")
	}
	if c.Int("limit") < 0 {
		return h5api.ErrorInvalidArgument("limit must not be negative")
	}
	ctx := c.Context

	db, err := util.OpenDB(ctx, c.Args().Get(0), true)
	if err != nil {
		return err
	}
	defer db.Close()
	rec, err := db.GetUUIDByPath(c.Args().Get(1))
	if err != nil {
		return err
	}
	if rec.Kind != h5api.ObjectKind_Dataset {
		return h5api.ErrorInvalidArgument("not a dataset", [2]string{"path", c.Args().Get(1)})
	}
	rows, err := db.QueryDataset(ctx, rec.UUID, c.Args().Get(2), c.Int("limit"))
	if err != nil {
		return err
	}
	index := make([]any, len(rows))
	value := make([]any, len(rows))
	for i, r := range rows {
		index[i] = int64(r.Index)
		value[i] = r.Value
	}
	n, err := valuecodec.ToNode(map[string]any{"index": index, "value": value})
	if err != nil {
		return err
	}
	logging.Ctx(ctx).Debug("", "%d rows matched", len(rows))
	util.SetResult(c, n)
	return nil
}
