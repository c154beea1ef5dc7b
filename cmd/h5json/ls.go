package main

import (
	"github.com/facette/natsort"
	"github.com/urfave/cli/v2"

	"github.com/HDFGroup/hdf5-json/cmd/h5json/internal/util"
	"github.com/HDFGroup/hdf5-json/h5api"
	"github.com/HDFGroup/hdf5-json/pkg/logging"
)

var lsCmdDef = cli.Command{
	Name:      "ls",
	Usage:     "List the links of a group",
	ArgsUsage: "<store> [group path]",
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:  "creation-order",
			Usage: "Keep the order links were created in instead of sorting by name",
		},
	},
	Action: util.Action(cmdLs),
}

func cmdLs(c *cli.Context) error {
	if c.NArg() < 1 || c.NArg() > 2 {
		return h5api.ErrorInvalidArgument("ls takes a store and an optional group path")
	}
	ctx := c.Context
	log := logging.Ctx(ctx)

	db, err := util.OpenDB(ctx, c.Args().Get(0), true)
	if err != nil {
		return err
	}
	defer db.Close()

	path := c.Args().Get(1)
	if path == "" {
		path = "/"
	}
	rec, err := db.GetUUIDByPath(path)
	if err != nil {
		return err
	}
	if rec.Kind != h5api.ObjectKind_Group {
		return h5api.ErrorInvalidArgument("not a group", [2]string{"path", path})
	}
	links, err := db.GetLinkItems(ctx, rec.UUID, "", 0)
	if err != nil {
		return err
	}

	byTitle := make(map[string]h5api.Link, len(links))
	titles := make([]string, 0, len(links))
	for _, l := range links {
		byTitle[l.Title] = l
		titles = append(titles, l.Title)
	}
	if !c.Bool("creation-order") {
		natsort.Sort(titles)
	}
	for _, title := range titles {
		l := byTitle[title]
		switch l.Class {
		case h5api.LinkClass_Hard:
			log.Out("%s\t%s\t%s", title, l.Collection, l.ID)
		case h5api.LinkClass_External:
			log.Out("%s\t%s\t%s:%s", title, l.Class, l.File, l.H5Path)
		default:
			log.Out("%s\t%s\t%s", title, l.Class, l.H5Path)
		}
	}
	return nil
}
