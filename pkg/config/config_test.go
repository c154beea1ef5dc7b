package config

import (
	"testing"
	"testing/fstest"

	qt "github.com/frankban/quicktest"
	"github.com/serum-errors/go-serum"

	"github.com/HDFGroup/hdf5-json/h5api"
	"github.com/HDFGroup/hdf5-json/pkg/store/memstore"
)

const sampleConfig = `
readonly: true
shadowDir: /var/cache/h5json
snapshotCompression: lz4
queryBlockSize: 64
publish:
  s3:
    region: us-east-1
    bucket: hdf-docs
    prefix: mirror
`

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(fstest.MapFS{}, State{WorkingDirectory: "/work/project"})
	qt.Assert(t, err, qt.IsNil)
	qt.Check(t, cfg.Path, qt.Equals, "")
	qt.Check(t, cfg.ReadOnly, qt.IsFalse)
	qt.Check(t, cfg.Compression, qt.Equals, memstore.CompressionZstd)
	qt.Check(t, cfg.QueryBlockSize, qt.Equals, DefaultQueryBlockSize)
	qt.Check(t, cfg.Publish.Configured(), qt.IsFalse)
}

func TestLoadSearchesUpward(t *testing.T) {
	fsys := fstest.MapFS{
		"work/" + DefaultConfigFilename: {Data: []byte(sampleConfig)},
	}
	cfg, err := Load(fsys, State{WorkingDirectory: "/work/project/sub"})
	qt.Assert(t, err, qt.IsNil)
	qt.Check(t, cfg.Path, qt.Equals, "/work/"+DefaultConfigFilename)
	qt.Check(t, cfg.ReadOnly, qt.IsTrue)
	qt.Check(t, cfg.ShadowDir, qt.Equals, "/var/cache/h5json")
	qt.Check(t, cfg.Compression, qt.Equals, memstore.CompressionLZ4)
	qt.Check(t, cfg.QueryBlockSize, qt.Equals, 64)
	qt.Assert(t, cfg.Publish.S3, qt.IsNotNil)
	qt.Check(t, cfg.Publish.S3.Bucket, qt.Equals, "hdf-docs")

	opts := cfg.DBOptions("/data/sample.h5j")
	qt.Check(t, opts.ReadOnly, qt.IsTrue)
	qt.Check(t, opts.ShadowPath, qt.Equals, "/var/cache/h5json/.sample.h5j")
	qt.Check(t, opts.QueryBlockSize, qt.Equals, 64)
}

func TestEnvironmentOverridesFile(t *testing.T) {
	fsys := fstest.MapFS{
		"etc/h5json.yaml": {Data: []byte(sampleConfig)},
	}
	cfg, err := Load(fsys, State{
		WorkingDirectory: "/work",
		Env: map[string]string{
			EnvConfig:              "/etc/h5json.yaml",
			EnvReadOnly:            "false",
			EnvNoTimestamps:        "",
			EnvSnapshotCompression: "none",
			EnvQueryBlockSize:      "10",
		},
	})
	qt.Assert(t, err, qt.IsNil)
	qt.Check(t, cfg.ReadOnly, qt.IsFalse)
	qt.Check(t, cfg.NoTimestamps, qt.IsTrue)
	qt.Check(t, cfg.Compression, qt.Equals, memstore.CompressionNone)
	qt.Check(t, cfg.QueryBlockSize, qt.Equals, 10)

	opts := cfg.DBOptions("/data/sample.h5j")
	qt.Check(t, opts.ShadowPath, qt.Equals, "")
	qt.Check(t, opts.NoTimestamps, qt.IsTrue)
}

func TestLoadRejects(t *testing.T) {
	for _, tc := range []struct {
		name string
		file string
		env  map[string]string
		code string
	}{
		{"unknown key", "colour: blue\n", nil, h5api.ECodeInitialization},
		{"bad compression", "snapshotCompression: gzip\n", nil, h5api.ECodeInitialization},
		{"bad block size", "", map[string]string{EnvQueryBlockSize: "lots"}, h5api.ECodeInitialization},
		{"zero block size", "queryBlockSize: -1\n", nil, h5api.ECodeInitialization},
		{"bad bool", "", map[string]string{EnvReadOnly: "maybe"}, h5api.ECodeInitialization},
	} {
		t.Run(tc.name, func(t *testing.T) {
			fsys := fstest.MapFS{"w/" + DefaultConfigFilename: {Data: []byte(tc.file)}}
			_, err := Load(fsys, State{WorkingDirectory: "/w", Env: tc.env})
			qt.Check(t, serum.Code(err), qt.Equals, tc.code)
		})
	}

	t.Run("missing file", func(t *testing.T) {
		_, err := Load(fstest.MapFS{}, State{Env: map[string]string{EnvConfig: "/nope.yaml"}})
		qt.Check(t, serum.Code(err), qt.Equals, h5api.ECodeIo)
	})
}
