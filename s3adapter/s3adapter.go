// Package s3adapter stores generated sitemaps in an S3 bucket.
package s3adapter

import (
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	gen "github.com/kotylevskiy/go-sitemap-generator"
)

const (
	contentTypeXML  = "application/xml"
	contentTypeGzip = "application/x-gzip"
)

// PutObjectAPI is the subset of *s3.Client used by the adapter.
type PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Options configures an Adapter.
type Options struct {
	Bucket string
	// Prefix is prepended to every object key.
	Prefix       string
	Client       PutObjectAPI
	ACL          string
	CacheControl string
	// Local also writes every file through this adapter before uploading, e.g.
	// a gen.FileAdapter to keep a copy under the public path.
	Local gen.Adapter
}

// Adapter uploads documents under key Prefix/SitemapsPath/Filename.
type Adapter struct {
	opts Options
}

// New returns an Adapter using opts.Client.
func New(opts Options) (*Adapter, error) {
	if opts.Bucket == "" {
		return nil, &gen.ErrConfiguration{Field: "bucket", Reason: "bucket is required"}
	}
	if opts.Client == nil {
		return nil, &gen.ErrConfiguration{Field: "client", Reason: "S3 client is required"}
	}
	return &Adapter{opts: opts}, nil
}

// NewFromEnv builds the S3 client from the default AWS configuration chain
// (environment, shared config, instance role).
func NewFromEnv(ctx context.Context, region string, opts Options) (*Adapter, error) {
	var loadOpts []func(*config.LoadOptions) error
	if region != "" {
		loadOpts = append(loadOpts, config.WithRegion(region))
	}
	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	opts.Client = s3.NewFromConfig(cfg)
	return New(opts)
}

// Key returns the object key for loc.
func (a *Adapter) Key(loc *gen.Location) string {
	return path.Join(a.opts.Prefix, loc.SitemapsPath(), loc.Filename())
}

// Write implements gen.Adapter.
func (a *Adapter) Write(ctx context.Context, loc *gen.Location, data []byte) error {
	if a.opts.Local != nil {
		if err := a.opts.Local.Write(ctx, loc, data); err != nil {
			return err
		}
	}
	body := data
	contentType := contentTypeXML
	if loc.Compressed() {
		var buf bytes.Buffer
		gz := gzip.NewWriter(&buf)
		if _, err := gz.Write(data); err != nil {
			return err
		}
		if err := gz.Close(); err != nil {
			return err
		}
		body = buf.Bytes()
		contentType = contentTypeGzip
	}
	input := &s3.PutObjectInput{
		Bucket:        aws.String(a.opts.Bucket),
		Key:           aws.String(a.Key(loc)),
		Body:          bytes.NewReader(body),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(body))),
	}
	if a.opts.CacheControl != "" {
		input.CacheControl = aws.String(a.opts.CacheControl)
	}
	if a.opts.ACL != "" {
		input.ACL = types.ObjectCannedACL(a.opts.ACL)
	}
	if _, err := a.opts.Client.PutObject(ctx, input); err != nil {
		return fmt.Errorf("put s3://%s/%s: %w", a.opts.Bucket, *input.Key, err)
	}
	return nil
}
