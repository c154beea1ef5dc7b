package util

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/ipld/go-ipld-prime/datamodel"
	"github.com/urfave/cli/v2"
	"github.com/warpfork/go-fsx"

	"github.com/HDFGroup/hdf5-json/h5api"
	"github.com/HDFGroup/hdf5-json/pkg/config"
	"github.com/HDFGroup/hdf5-json/pkg/h5db"
	"github.com/HDFGroup/hdf5-json/pkg/logging"
)

// StoreExtension is the suffix `...` arguments match.
const StoreExtension = ".h5j"

// LoadConfig resolves the configuration of this process.
//
// Errors:
//
//   - h5json-error-io -- when the config file cannot be read
//   - h5json-error-initialization -- when a setting is invalid
func LoadConfig() (config.Config, error) {
	return config.Load(os.DirFS("/"), config.NewState())
}

// OpenDB opens an existing store. With readOnly set the store itself is
// never written; its directory is kept in a shadow file.
//
// Errors:
//
//   - h5json-error-not-found -- when the store does not exist
//   - h5json-error-io -- when the store cannot be opened
//   - h5json-error-initialization -- when the configuration is invalid
func OpenDB(ctx context.Context, filename string, readOnly bool) (*h5db.DB, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(filename); err != nil {
		return nil, h5api.ErrorNotFound("store", filename)
	}
	opts := cfg.DBOptions(filename)
	opts.ReadOnly = opts.ReadOnly || readOnly
	logging.Ctx(ctx).Debug("", "opening %s (read-only: %t)", filename, opts.ReadOnly)
	return h5db.Open(ctx, filename, opts)
}

// CreateDB creates a new store whose root group has the given uuid.
//
// Errors:
//
//   - h5json-error-invalid-argument -- when the store exists and force is not set
//   - h5json-error-permission-denied -- when the configuration is read-only
//   - h5json-error-io -- when the store cannot be created
func CreateDB(ctx context.Context, filename, rootUUID string, force bool) (*h5db.DB, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, err
	}
	if cfg.ReadOnly {
		return nil, h5api.ErrorPermissionDenied("the configuration is read-only")
	}
	if _, err := os.Stat(filename); err == nil {
		if !force {
			return nil, h5api.ErrorInvalidArgument("store already exists", [2]string{"path", filename})
		}
		if err := os.Remove(filename); err != nil {
			return nil, h5api.ErrorIo("replacing "+filename, err)
		}
	}
	opts := cfg.DBOptions(filename)
	opts.RootUUID = rootUUID
	return h5db.Open(ctx, filename, opts)
}

// SetResult makes the after hook print n on stdout.
func SetResult(c *cli.Context, n datamodel.Node) {
	c.App.Metadata["result"] = n
}

// ExpandStores turns arguments into store filenames.
// An argument ending in "..." walks its directory for files ending in StoreExtension.
// Other arguments must name existing files.
//
// Errors:
//
//   - h5json-error-invalid-argument -- when an argument names nothing
func ExpandStores(fs fsx.FS, args []string) ([]string, error) {
	var out []string
	for _, arg := range args {
		if filepath.Base(arg) == "..." {
			err := fsx.WalkDir(fs, filepath.Dir(arg), func(path string, _ fsx.DirEntry, err error) error {
				if err != nil {
					return err
				}
				if strings.HasSuffix(path, StoreExtension) && !strings.HasPrefix(filepath.Base(path), ".") {
					out = append(out, path)
				}
				return nil
			})
			if err != nil {
				return nil, h5api.ErrorInvalidArgument("walking for stores: "+err.Error(), [2]string{"path", arg})
			}
			continue
		}
		if isFile, _ := fsx.IsPathFile(fs, arg); !isFile {
			return nil, h5api.ErrorInvalidArgument("no store file", [2]string{"path", arg})
		}
		out = append(out, arg)
	}
	return out, nil
}
