package mirroring

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/HDFGroup/hdf5-json/h5api"
)

type S3Pusher struct {
	client *s3.Client
	cfg    S3PushConfig
}

// NewS3Pusher connects to the bucket of cfg and checks that it is reachable.
//
// Errors:
//
//   - h5json-error-initialization -- when the AWS configuration cannot be loaded
//   - h5json-error-io -- when the bucket cannot be accessed
func NewS3Pusher(ctx context.Context, cfg S3PushConfig) (*S3Pusher, error) {
	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.Endpoint != "" {
		opts = append(opts, config.WithEndpointResolverWithOptions(aws.EndpointResolverWithOptionsFunc(
			func(service, region string, options ...interface{}) (aws.Endpoint, error) {
				return aws.Endpoint{
					URL:               cfg.Endpoint,
					HostnameImmutable: true,
					SigningRegion:     cfg.Region,
				}, nil
			})))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, h5api.ErrorInitialization("loading AWS configuration", [2]string{"cause", err.Error()})
	}

	client := s3.NewFromConfig(awsCfg)

	_, err = client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(cfg.Bucket),
	})
	if err != nil {
		return nil, h5api.ErrorIo("accessing bucket "+cfg.Bucket, err)
	}

	return &S3Pusher{
		client: client,
		cfg:    cfg,
	}, nil
}

func (p *S3Pusher) key(key string) string {
	return path.Join(p.cfg.Prefix, key)
}

func (p *S3Pusher) Has(ctx context.Context, key string) (bool, error) {
	_, err := p.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(p.cfg.Bucket),
		Key:    aws.String(p.key(key)),
	})
	if err == nil {
		return true, nil
	}
	var responseError *awshttp.ResponseError
	if errors.As(err, &responseError) && responseError.ResponseError.HTTPStatusCode() == http.StatusNotFound {
		return false, nil
	}
	return false, h5api.ErrorIo("checking for "+key, err)
}

func (p *S3Pusher) Push(ctx context.Context, it Item) error {
	uploader := manager.NewUploader(p.client)
	in := &s3.PutObjectInput{
		Bucket: aws.String(p.cfg.Bucket),
		Key:    aws.String(p.key(it.Key)),
		Body:   bytes.NewReader(it.Body),
	}
	if it.ContentType != "" {
		in.ContentType = aws.String(it.ContentType)
	}
	if _, err := uploader.Upload(ctx, in); err != nil {
		return h5api.ErrorIo("uploading "+it.Key, err)
	}
	return nil
}
