package main

import (
	"github.com/urfave/cli/v2"
	"github.com/warpfork/go-fsx/osfs"

	"github.com/HDFGroup/hdf5-json/cmd/h5json/internal/healthcheck"
	"github.com/HDFGroup/hdf5-json/cmd/h5json/internal/util"
	"github.com/HDFGroup/hdf5-json/h5api"
	"github.com/HDFGroup/hdf5-json/pkg/config"
	"github.com/HDFGroup/hdf5-json/pkg/logging"
)

var healthCmdDef = cli.Command{
	Name:      "health",
	Usage:     "Check the configuration, the store engine, and optionally some stores",
	ArgsUsage: "[store...]",
	Action:    util.Action(cmdHealth),
}

func cmdHealth(c *cli.Context) error {
	ctx := c.Context

	// Checks past the first use whatever configuration loads.
	cfg, _ := util.LoadConfig()
	checks := []healthcheck.Check{
		&healthcheck.ConfigCheck{Load: util.LoadConfig},
		&healthcheck.ShadowDirCheck{Dir: cfg.ShadowDir},
		&healthcheck.EngineCheck{Compression: cfg.Compression, TempDir: config.NewState().TempDir},
		&healthcheck.PublishCheck{Config: cfg.Publish},
	}
	if c.Args().Present() {
		stores, err := util.ExpandStores(osfs.DirFS("."), c.Args().Slice())
		if err != nil {
			return err
		}
		for _, name := range stores {
			checks = append(checks, &healthcheck.StoreCheck{Filename: name, Options: cfg.DBOptions(name)})
		}
	}

	report := healthcheck.Run(ctx, checks...)
	logging.Ctx(ctx).Debug("", "%d checks ran", len(report))
	report.Fprint(c.App.Writer)
	if report.Failed() {
		return h5api.ErrorInitialization("health check failed")
	}
	return nil
}
