package main

import (
	"bytes"

	"github.com/urfave/cli/v2"

	"github.com/HDFGroup/hdf5-json/cmd/h5json/internal/util"
	"github.com/HDFGroup/hdf5-json/h5api"
	"github.com/HDFGroup/hdf5-json/pkg/convert"
	"github.com/HDFGroup/hdf5-json/pkg/logging"
	"github.com/HDFGroup/hdf5-json/pkg/render"
)

var dumpCmdDef = cli.Command{
	Name:      "dump",
	Usage:     "Write the HDF5/JSON document of a store",
	ArgsUsage: "<store>",
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:    "no-values",
			Aliases: []string{"D"},
			Usage:   "Leave out every value",
		},
		&cli.BoolFlag{
			Name:    "no-dataset-values",
			Aliases: []string{"d"},
			Usage:   "Leave out dataset values but keep attribute values",
		},
		&cli.BoolFlag{
			Name:  "cid",
			Usage: "Print only the content identifier of the document",
		},
		&cli.BoolFlag{
			Name:  "color",
			Usage: "Highlight the document when writing to a terminal",
		},
	},
	Action: util.Action(cmdDump),
}

func cmdDump(c *cli.Context) error {
	if c.NArg() != 1 {
		return h5api.ErrorInvalidArgument("dump takes one store")
	}
	ctx := c.Context
	log := logging.Ctx(ctx)

	db, err := util.OpenDB(ctx, c.Args().First(), true)
	if err != nil {
		return err
	}
	defer db.Close()
	doc, err := convert.Export(ctx, db, convert.ExportOptions{
		NoValues:        c.Bool("no-values"),
		NoDatasetValues: c.Bool("no-dataset-values"),
	})
	if err != nil {
		return err
	}

	if c.Bool("cid") {
		id, err := convert.CID(doc)
		if err != nil {
			return err
		}
		log.Out("%s", id)
		return nil
	}

	out := log.OutWriter()
	if render.ModeFor(out, c.Bool("color")) == render.Mode_ANSI {
		var buf bytes.Buffer
		if err := convert.WriteDocument(doc, &buf); err != nil {
			return err
		}
		return render.HighlightJSON(out, buf.Bytes())
	}
	return convert.WriteDocument(doc, out)
}
