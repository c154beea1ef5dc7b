/*
Package config assembles session options from a YAML file and the environment.

The file is named by H5JSON_CONFIG or found by searching upward from the
working directory for .h5json.yaml; without either, defaults apply.
Environment variables override keys of the file.
*/
package config

import (
	"io/fs"
	"os"
	"path/filepath"
	"strconv"

	"github.com/HDFGroup/hdf5-json/h5api"
	"github.com/HDFGroup/hdf5-json/pkg/h5db"
	"github.com/HDFGroup/hdf5-json/pkg/mirroring"
	"github.com/HDFGroup/hdf5-json/pkg/store/memstore"
)

// DefaultQueryBlockSize is the number of rows a query reads at a time.
const DefaultQueryBlockSize = 1000

// Config is the resolved configuration.
type Config struct {
	// Path of the config file that was loaded, if any.
	Path string

	ReadOnly       bool
	ShadowDir      string
	Compression    memstore.Compression
	QueryBlockSize int
	NoTimestamps   bool
	Publish        mirroring.PushConfig
}

// Load resolves the configuration for state.
// fsys is typically `os.DirFS("/")` outside of tests.
//
// Errors:
//
//   - h5json-error-io -- when the config file cannot be found or read
//   - h5json-error-initialization -- when a setting has an invalid value
func Load(fsys fs.FS, state State) (Config, error) {
	cfg := Config{QueryBlockSize: DefaultQueryBlockSize}
	path, ok := state.Env[EnvConfig]
	if !ok && state.WorkingDirectory != "" {
		found, err := FindConfigFile(fsys, "", trimRoot(state.WorkingDirectory))
		if err != nil {
			return cfg, err
		}
		if found != "" {
			path = "/" + found
		}
	}
	var f File
	if path != "" {
		var err error
		f, err = LoadFile(fsys, trimRoot(absPath(state, path)))
		if err != nil {
			return cfg, err
		}
		cfg.Path = path
	}
	if err := cfg.apply(f, state.Env); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (cfg *Config) apply(f File, env map[string]string) error {
	if f.ReadOnly != nil {
		cfg.ReadOnly = *f.ReadOnly
	}
	if f.NoTimestamps != nil {
		cfg.NoTimestamps = *f.NoTimestamps
	}
	cfg.ShadowDir = f.ShadowDir
	if f.QueryBlockSize != 0 {
		cfg.QueryBlockSize = f.QueryBlockSize
	}
	cfg.Publish = f.Publish
	compression := f.SnapshotCompression

	var err error
	if v, ok := env[EnvReadOnly]; ok {
		if cfg.ReadOnly, err = parseBool(EnvReadOnly, v); err != nil {
			return err
		}
	}
	if v, ok := env[EnvNoTimestamps]; ok {
		if cfg.NoTimestamps, err = parseBool(EnvNoTimestamps, v); err != nil {
			return err
		}
	}
	if v, ok := env[EnvShadowDir]; ok {
		cfg.ShadowDir = v
	}
	if v, ok := env[EnvQueryBlockSize]; ok {
		if cfg.QueryBlockSize, err = strconv.Atoi(v); err != nil {
			return invalid(EnvQueryBlockSize, v)
		}
	}
	if v, ok := env[EnvSnapshotCompression]; ok {
		compression = v
	}

	if cfg.QueryBlockSize <= 0 {
		return invalid("queryBlockSize", strconv.Itoa(cfg.QueryBlockSize))
	}
	if cfg.Compression, err = memstore.ParseCompression(compression); err != nil {
		return invalid("snapshotCompression", compression)
	}
	return nil
}

func parseBool(key, v string) (bool, error) {
	if v == "" {
		return true, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, invalid(key, v)
	}
	return b, nil
}

func invalid(key, value string) error {
	return h5api.ErrorInitialization("invalid configuration value",
		[2]string{"key", key},
		[2]string{"value", value},
	)
}

// DBOptions are the session options for filename.
// The store is opened read-only when the config says so,
// or when the file exists and cannot be written.
func (cfg Config) DBOptions(filename string) h5db.Options {
	opts := h5db.Options{
		ReadOnly:       cfg.ReadOnly || notWritable(filename),
		Compression:    cfg.Compression,
		NoTimestamps:   cfg.NoTimestamps,
		QueryBlockSize: cfg.QueryBlockSize,
	}
	if opts.ReadOnly && cfg.ShadowDir != "" {
		opts.ShadowPath = filepath.Join(cfg.ShadowDir, filepath.Base(h5db.ShadowPath(filename)))
	}
	return opts
}

func notWritable(filename string) bool {
	fi, err := os.Stat(filename)
	if err != nil {
		return false
	}
	return fi.Mode().Perm()&0o222 == 0
}

func absPath(state State, path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(state.WorkingDirectory, path)
}

// trimRoot makes an absolute path relative to the root of an os.DirFS("/").
func trimRoot(path string) string {
	if filepath.IsAbs(path) {
		return path[1:]
	}
	return path
}
