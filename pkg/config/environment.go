package config

const (
	// EnvConfig is the path of a YAML config file.
	// When unset, the file is searched for upward from the working directory.
	EnvConfig = "H5JSON_CONFIG"
	// EnvReadOnly opens every store read-only when set to a true value.
	EnvReadOnly = "H5JSON_READONLY"
	// EnvShadowDir is where the directory of a read-only store is kept.
	// Defaults to next to the store.
	EnvShadowDir = "H5JSON_SHADOW_DIR"
	// EnvSnapshotCompression is one of "zstd", "lz4" or "none".
	EnvSnapshotCompression = "H5JSON_SNAPSHOT_COMPRESSION"
	// EnvQueryBlockSize is the number of rows a query reads at a time.
	EnvQueryBlockSize = "H5JSON_QUERY_BLOCK_SIZE"
	// EnvNoTimestamps turns off creation and modification times.
	EnvNoTimestamps = "H5JSON_NO_TIMESTAMPS"
)

// NOTE: keep this up to date or the config loader won't load them
var envKeys = []string{
	EnvConfig,
	EnvReadOnly,
	EnvShadowDir,
	EnvSnapshotCompression,
	EnvQueryBlockSize,
	EnvNoTimestamps,
}
