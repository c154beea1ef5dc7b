package config

import (
	"bytes"
	"errors"
	"io/fs"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/HDFGroup/hdf5-json/h5api"
	"github.com/HDFGroup/hdf5-json/pkg/mirroring"
)

// DefaultConfigFilename is the name FindConfigFile looks for.
const DefaultConfigFilename = ".h5json.yaml"

// File is the YAML config file. Every key is optional;
// environment variables override the file.
type File struct {
	ReadOnly            *bool                `yaml:"readonly"`
	ShadowDir           string               `yaml:"shadowDir"`
	SnapshotCompression string               `yaml:"snapshotCompression"`
	QueryBlockSize      int                  `yaml:"queryBlockSize"`
	NoTimestamps        *bool                `yaml:"noTimestamps"`
	Publish             mirroring.PushConfig `yaml:"publish"`
}

// FindConfigFile looks for a config file, searching directories upward.
//
// It searches from `join(basisPath,searchPath)` up to `basisPath`
// (in other words, it won't search above basisPath).
// If no file is found, it returns an empty path and a nil error.
//
// An fsys handle is required, but is typically `os.DirFS("/")` outside of tests.
//
// Errors:
//
//   - h5json-error-io -- when an unexpected error occurs traversing the search path
func FindConfigFile(fsys fs.FS, basisPath, searchPath string) (string, error) {
	searchAt := searchPath
	for {
		path := filepath.Join(basisPath, searchAt, DefaultConfigFilename)
		_, err := fs.Stat(fsys, path)
		if err == nil {
			return path, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return "", h5api.ErrorIo("searching for "+DefaultConfigFilename, err)
		}
		searchAt = filepath.Dir(searchAt)
		if searchAt == "/" || searchAt == "." {
			return "", nil
		}
	}
}

// LoadFile reads a config file. Unknown keys are rejected.
//
// Errors:
//
//   - h5json-error-io -- when the file cannot be read
//   - h5json-error-initialization -- when the file is not a valid config
func LoadFile(fsys fs.FS, path string) (File, error) {
	var f File
	b, err := fs.ReadFile(fsys, path)
	if err != nil {
		return f, h5api.ErrorIo("reading config "+path, err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && len(bytes.TrimSpace(b)) > 0 {
		return File{}, h5api.ErrorInitialization("invalid config file",
			[2]string{"path", path},
			[2]string{"cause", err.Error()},
		)
	}
	return f, nil
}
