package healthcheck

import (
	"context"
	"os"

	"github.com/serum-errors/go-serum"

	"github.com/HDFGroup/hdf5-json/pkg/config"
)

// ConfigCheck loads the configuration.
type ConfigCheck struct {
	Load func() (config.Config, error)
}

func (c *ConfigCheck) Name() string {
	return "Configuration"
}

// Run
// Errors:
//
//   - h5json-healthcheck-run-okay -- when the configuration loads
//   - h5json-healthcheck-run-fail -- when it does not
func (c *ConfigCheck) Run(ctx context.Context) error {
	cfg, err := c.Load()
	if err != nil {
		return serum.Errorf(CodeRunFailure, "%s", err)
	}
	if cfg.Path == "" {
		return serum.Errorf(CodeRunOkay, "no config file, using defaults")
	}
	return serum.Errorf(CodeRunOkay, "loaded %s", cfg.Path)
}

// ShadowDirCheck checks that read-only stores can keep their directory.
type ShadowDirCheck struct {
	Dir string
}

func (c *ShadowDirCheck) Name() string {
	return "Shadow directory"
}

// Run
// Errors:
//
//   - h5json-healthcheck-run-okay -- when the directory is writable
//   - h5json-healthcheck-run-fail -- when it is not
//   - h5json-healthcheck-run-ambiguous -- when no directory is configured
func (c *ShadowDirCheck) Run(ctx context.Context) error {
	if c.Dir == "" {
		return serum.Errorf(CodeRunAmbiguous, "not configured; shadow files are kept next to each store")
	}
	f, err := os.CreateTemp(c.Dir, ".h5json-health-")
	if err != nil {
		return serum.Errorf(CodeRunFailure, "cannot write to %s: %w", c.Dir, err)
	}
	f.Close()
	os.Remove(f.Name())
	return serum.Errorf(CodeRunOkay, "%s is writable", c.Dir)
}
