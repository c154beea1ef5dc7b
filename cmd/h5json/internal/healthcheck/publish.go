package healthcheck

import (
	"context"

	"github.com/serum-errors/go-serum"

	"github.com/HDFGroup/hdf5-json/pkg/mirroring"
)

// PublishCheck connects to the publish destination.
type PublishCheck struct {
	Config mirroring.PushConfig
}

func (c *PublishCheck) Name() string {
	return "Publish destination"
}

// Run
// Errors:
//
//   - h5json-healthcheck-run-okay -- when the destination is reachable
//   - h5json-healthcheck-run-fail -- when it is not
//   - h5json-healthcheck-run-ambiguous -- when no destination is configured
func (c *PublishCheck) Run(ctx context.Context) error {
	if !c.Config.Configured() {
		return serum.Errorf(CodeRunAmbiguous, "not configured")
	}
	if _, err := mirroring.NewPusher(ctx, c.Config); err != nil {
		return serum.Errorf(CodeRunFailure, "%s", err)
	}
	if c.Config.S3 != nil {
		return serum.Errorf(CodeRunOkay, "bucket %s is reachable", c.Config.S3.Bucket)
	}
	return serum.Errorf(CodeRunOkay, "mock destination")
}
