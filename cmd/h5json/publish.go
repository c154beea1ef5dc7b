package main

import (
	"bytes"
	"os"

	"github.com/urfave/cli/v2"
	"github.com/warpfork/go-fsx/osfs"

	"github.com/HDFGroup/hdf5-json/cmd/h5json/internal/util"
	"github.com/HDFGroup/hdf5-json/h5api"
	"github.com/HDFGroup/hdf5-json/pkg/convert"
	"github.com/HDFGroup/hdf5-json/pkg/logging"
	"github.com/HDFGroup/hdf5-json/pkg/mirroring"
	"github.com/HDFGroup/hdf5-json/pkg/valuecodec"
)

var publishCmdDef = cli.Command{
	Name:  "publish",
	Usage: "Push documents and snapshots of stores to the configured destination",
	UsageText: "Stores are named by relative path; dir/... publishes every " +
		util.StoreExtension + " file below dir. Items are keyed by the content id of the document.",
	ArgsUsage: "<store|dir/...>...",
	Action:    util.Action(cmdPublish),
}

func cmdPublish(c *cli.Context) error {
	if c.NArg() < 1 {
		return h5api.ErrorInvalidArgument("publish takes at least one store")
	}
	ctx := c.Context
	log := logging.Ctx(ctx)

	cfg, err := util.LoadConfig()
	if err != nil {
		return err
	}
	pusher, err := mirroring.NewPusher(ctx, cfg.Publish)
	if err != nil {
		return err
	}
	stores, err := util.ExpandStores(osfs.DirFS("."), c.Args().Slice())
	if err != nil {
		return err
	}

	results := make([]any, 0, len(stores))
	for _, filename := range stores {
		id, items, err := publishItems(c, filename)
		if err != nil {
			return err
		}
		pushed, err := mirroring.Publish(ctx, pusher, items)
		if err != nil {
			return err
		}
		keys := make([]any, len(pushed))
		for i, k := range pushed {
			keys[i] = k
		}
		results = append(results, map[string]any{"store": filename, "cid": id, "pushed": keys})
	}
	log.Info(mirroring.LOG_TAG, "published %d stores", len(stores))
	n, err := valuecodec.ToNode(map[string]any{"published": results})
	if err != nil {
		return err
	}
	util.SetResult(c, n)
	return nil
}

func publishItems(c *cli.Context, filename string) (string, []mirroring.Item, error) {
	ctx := c.Context
	db, err := util.OpenDB(ctx, filename, true)
	if err != nil {
		return "", nil, err
	}
	defer db.Close()
	doc, err := convert.Export(ctx, db, convert.ExportOptions{})
	if err != nil {
		return "", nil, err
	}
	id, err := convert.CID(doc)
	if err != nil {
		return "", nil, err
	}
	var buf bytes.Buffer
	if err := convert.WriteDocument(doc, &buf); err != nil {
		return "", nil, err
	}
	snapshot, err := os.ReadFile(filename)
	if err != nil {
		return "", nil, h5api.ErrorIo("reading "+filename, err)
	}
	return id, []mirroring.Item{
		{Key: mirroring.DocumentKey(id), Body: buf.Bytes(), ContentType: "application/json"},
		{Key: mirroring.SnapshotKey(id), Body: snapshot, ContentType: "application/octet-stream"},
	}, nil
}
