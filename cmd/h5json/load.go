package main

import (
	"io"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/HDFGroup/hdf5-json/cmd/h5json/internal/util"
	"github.com/HDFGroup/hdf5-json/h5api"
	"github.com/HDFGroup/hdf5-json/pkg/convert"
	"github.com/HDFGroup/hdf5-json/pkg/logging"
)

var loadCmdDef = cli.Command{
	Name:      "load",
	Usage:     "Create a store from an HDF5/JSON document",
	ArgsUsage: "<document.json|-> <store>",
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:  "force",
			Usage: "Replace the store if it already exists",
		},
	},
	Action: util.Action(cmdLoad),
}

func cmdLoad(c *cli.Context) error {
	if c.NArg() != 2 {
		return h5api.ErrorInvalidArgument("load takes a document and a store")
	}
	ctx := c.Context
	log := logging.Ctx(ctx)

	var r io.Reader = c.App.Reader
	if name := c.Args().Get(0); name != "-" {
		f, err := os.Open(name)
		if err != nil {
			return h5api.ErrorIo("opening document "+name, err)
		}
		defer f.Close()
		r = f
	}
	doc, err := convert.ReadDocument(r)
	if err != nil {
		return err
	}
	root, err := convert.RootUUID(doc)
	if err != nil {
		return err
	}

	filename := c.Args().Get(1)
	db, err := util.CreateDB(ctx, filename, root, c.Bool("force"))
	if err != nil {
		return err
	}
	defer db.Close()
	if err := convert.Import(ctx, db, doc); err != nil {
		return err
	}
	if err := db.Flush(ctx); err != nil {
		return err
	}
	log.Info(convert.LOG_TAG, "loaded %s", filename)
	return nil
}
