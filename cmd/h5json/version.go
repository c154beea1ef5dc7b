package main

import (
	"github.com/urfave/cli/v2"

	"github.com/HDFGroup/hdf5-json/cmd/h5json/internal/util"
	"github.com/HDFGroup/hdf5-json/h5api"
	"github.com/HDFGroup/hdf5-json/pkg/store/memstore"
	"github.com/HDFGroup/hdf5-json/pkg/valuecodec"
)

var versionCmdDef = cli.Command{
	Name:   "version",
	Usage:  "Report the document format version and the store engine",
	Action: util.Action(cmdVersion),
}

func cmdVersion(c *cli.Context) error {
	v := h5api.VersionInfo{
		APIVersion:    h5api.APIVersion,
		EngineName:    memstore.EngineName,
		EngineVersion: memstore.EngineVersion,
	}
	n, err := valuecodec.ToNode(map[string]any{
		"h5json":         VERSION,
		"api_version":    v.APIVersion,
		"engine":         v.EngineName,
		"engine_version": v.EngineVersion,
	})
	if err != nil {
		return err
	}
	util.SetResult(c, n)
	return nil
}
