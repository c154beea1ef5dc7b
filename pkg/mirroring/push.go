/*
Package mirroring publishes exported documents and snapshot files to
content-addressed storage.

Every item is keyed by the content id of the document it carries,
so publishing the same content twice uploads nothing the second time.
*/
package mirroring

import (
	"context"
	"path"

	"github.com/HDFGroup/hdf5-json/h5api"
	"github.com/HDFGroup/hdf5-json/pkg/logging"
)

const LOG_TAG = "mirror"

// PushConfig selects where items are pushed. Exactly one member is set.
type PushConfig struct {
	S3   *S3PushConfig   `yaml:"s3"`
	Mock *MockPushConfig `yaml:"mock"`
}

// S3PushConfig names a bucket. Endpoint is only needed for S3-compatible
// services other than AWS.
type S3PushConfig struct {
	Endpoint string `yaml:"endpoint"`
	Region   string `yaml:"region"`
	Bucket   string `yaml:"bucket"`
	Prefix   string `yaml:"prefix"`
}

// MockPushConfig pushes nowhere; items are only recorded.
type MockPushConfig struct{}

// Configured reports whether a destination was set.
func (cfg PushConfig) Configured() bool {
	return cfg.S3 != nil || cfg.Mock != nil
}

// Item is one object to publish.
type Item struct {
	Key         string
	Body        []byte
	ContentType string
}

// Pusher is a destination.
type Pusher interface {
	// Errors:
	//
	// 	- h5json-error-io -- for IO errors that occur during push operations
	Has(ctx context.Context, key string) (bool, error)
	// Errors:
	//
	// 	- h5json-error-io -- for IO errors that occur during push operations
	Push(ctx context.Context, it Item) error
}

// NewPusher builds the pusher for cfg.
//
// Errors:
//
//   - h5json-error-initialization -- when no destination is configured
//   - h5json-error-io -- when the bucket cannot be reached
func NewPusher(ctx context.Context, cfg PushConfig) (Pusher, error) {
	switch {
	case cfg.S3 != nil:
		return NewS3Pusher(ctx, *cfg.S3)
	case cfg.Mock != nil:
		return NewMockPusher(), nil
	}
	return nil, h5api.ErrorInitialization("no publish destination is configured")
}

// DocumentKey is where the document with content id cid is kept.
func DocumentKey(cid string) string {
	return path.Join("documents", shard(cid), cid+".json")
}

// SnapshotKey is where the snapshot file exported as cid is kept.
func SnapshotKey(cid string) string {
	return path.Join("snapshots", shard(cid), cid+".h5j")
}

// shard spreads keys by the tail of the id; CIDs share their leading characters.
func shard(cid string) string {
	if len(cid) < 6 {
		return cid
	}
	tail := cid[len(cid)-6:]
	return path.Join(tail[0:3], tail[3:6])
}

// Publish pushes every item the destination does not have yet,
// and returns the keys that were pushed.
//
// Errors:
//
//   - h5json-error-io -- for IO errors that occur during push operations
func Publish(ctx context.Context, p Pusher, items []Item) ([]string, error) {
	log := logging.Ctx(ctx)
	var pushed []string
	for _, it := range items {
		has, err := p.Has(ctx, it.Key)
		if err != nil {
			return pushed, err
		}
		if has {
			log.Debug(LOG_TAG, "destination already has %q, skipping", it.Key)
			continue
		}
		log.Info(LOG_TAG, "pushing %s (%d bytes)", it.Key, len(it.Body))
		if err := p.Push(ctx, it); err != nil {
			return pushed, err
		}
		pushed = append(pushed, it.Key)
	}
	return pushed, nil
}
