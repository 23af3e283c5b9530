// Package publish uploads a saved report directory to S3, optionally
// invalidating the CloudFront distribution serving it.
package publish

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/cloudfront"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultRegion      = "us-east-1"
	DefaultConcurrency = 4
	defaultContentType = "application/octet-stream"
)

var contentTypes = map[string]string{
	".json": "application/json",
	".html": "text/html; charset=utf-8",
	".xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	".pdf":  "application/pdf",
	".csv":  "text/csv",
	".yaml": "application/yaml",
	".png":  "image/png",
	".log":  "text/plain",
}

// Uploader is the subset of the s3manager uploader used to send objects.
type Uploader interface {
	UploadWithContext(ctx aws.Context, input *s3manager.UploadInput, opts ...func(*s3manager.Uploader)) (*s3manager.UploadOutput, error)
}

// Invalidator is the subset of the CloudFront API used after uploads.
type Invalidator interface {
	CreateInvalidationWithContext(ctx aws.Context, input *cloudfront.CreateInvalidationInput, opts ...request.Option) (*cloudfront.CreateInvalidationOutput, error)
}

type Config struct {
	Bucket       string
	Region       string
	Distribution string
	Prefix       string
	Concurrency  int
	DryRun       bool
}

// Object is one file of the report directory and its destination.
type Object struct {
	Path        string `json:"path"`
	Key         string `json:"key"`
	ContentType string `json:"contentType"`
	URI         string `json:"uri"`
	Uploaded    bool   `json:"uploaded"`
}

type Publisher struct {
	Config
	uploader    Uploader
	invalidator Invalidator
	now         func() time.Time
}

// NewPublisher creates a publisher backed by an AWS session in the configured
// region. The CloudFront client is only created when a distribution is set.
func NewPublisher(cfg Config) (*Publisher, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("a destination bucket is required")
	}
	if cfg.Region == "" {
		cfg.Region = DefaultRegion
	}
	sess, err := session.NewSession(&aws.Config{
		Region: aws.String(cfg.Region),
	})
	if err != nil {
		return nil, errors.Wrap(err, "unable to create the AWS session")
	}
	p := &Publisher{Config: cfg, uploader: s3manager.NewUploader(sess)}
	if cfg.Distribution != "" {
		p.invalidator = cloudfront.New(sess)
	}
	return p, nil
}

// NewPublisherWithClients creates a publisher using the given clients.
func NewPublisherWithClients(cfg Config, up Uploader, inv Invalidator) *Publisher {
	return &Publisher{Config: cfg, uploader: up, invalidator: inv}
}

// ContentType returns the MIME type sent for a file name.
func ContentType(name string) string {
	if ct, ok := contentTypes[strings.ToLower(filepath.Ext(name))]; ok {
		return ct
	}
	return defaultContentType
}

// ObjectKey joins the prefix and a slash separated relative path.
func ObjectKey(prefix, rel string) string {
	return strings.TrimPrefix(path.Join(prefix, filepath.ToSlash(rel)), "/")
}

// Objects lists the regular files under dir with their object keys.
func (p *Publisher) Objects(dir string) ([]*Object, error) {
	objects := []*Object{}
	err := filepath.WalkDir(dir, func(name string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(dir, name)
		if err != nil {
			return err
		}
		key := ObjectKey(p.Prefix, rel)
		objects = append(objects, &Object{
			Path:        name,
			Key:         key,
			ContentType: ContentType(name),
			URI:         fmt.Sprintf("s3://%s/%s", p.Bucket, key),
		})
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "unable to list the files of %s", dir)
	}
	if len(objects) == 0 {
		return nil, errors.Errorf("no files found in %s", dir)
	}
	sort.Slice(objects, func(i, j int) bool { return objects[i].Key < objects[j].Key })
	return objects, nil
}

// Publish uploads every file of dir with the given metadata, then requests
// a CloudFront invalidation of the prefix. In dry-run mode nothing is sent.
func (p *Publisher) Publish(ctx context.Context, dir string, meta map[string]string) ([]*Object, error) {
	objects, err := p.Objects(dir)
	if err != nil {
		return nil, err
	}
	if p.DryRun {
		for _, o := range objects {
			log.Warnf("DRY-RUN mode: skipping upload of %s to %s", o.Path, o.URI)
		}
		if p.Distribution != "" {
			log.Warnf("DRY-RUN mode: skipping invalidation of %s on distribution %s", p.invalidationPath(), p.Distribution)
		}
		return objects, nil
	}
	if p.uploader == nil {
		return nil, errors.New("publisher has no S3 uploader")
	}

	limit := p.Concurrency
	if limit <= 0 {
		limit = DefaultConcurrency
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	var mu sync.Mutex
	for _, o := range objects {
		o := o
		g.Go(func() error {
			if err := p.upload(gctx, o, meta); err != nil {
				return err
			}
			mu.Lock()
			o.Uploaded = true
			mu.Unlock()
			log.Infof("Published %s", o.URI)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return objects, err
	}

	if p.Distribution != "" {
		if err := p.invalidate(ctx); err != nil {
			return objects, err
		}
	}
	return objects, nil
}

func (p *Publisher) upload(ctx context.Context, o *Object, meta map[string]string) error {
	log.Debugf("Publish/Upload: %s -> %s", o.Path, o.URI)
	fd, err := os.Open(o.Path)
	if err != nil {
		return errors.Wrapf(err, "failed to open file %s", o.Path)
	}
	defer fd.Close()

	input := &s3manager.UploadInput{
		Bucket:      aws.String(p.Bucket),
		Key:         aws.String(o.Key),
		ContentType: aws.String(o.ContentType),
		Body:        fd,
	}
	if len(meta) > 0 {
		input.Metadata = aws.StringMap(meta)
	}
	if _, err := p.uploader.UploadWithContext(ctx, input); err != nil {
		return errors.Wrapf(err, "failed to upload file %s to bucket %s", o.Path, p.Bucket)
	}
	return nil
}

func (p *Publisher) invalidationPath() string {
	if p.Prefix == "" {
		return "/*"
	}
	return "/" + strings.Trim(p.Prefix, "/") + "/*"
}

func (p *Publisher) invalidate(ctx context.Context) error {
	if p.invalidator == nil {
		return errors.New("publisher has no CloudFront client")
	}
	now := time.Now
	if p.now != nil {
		now = p.now
	}
	target := p.invalidationPath()
	_, err := p.invalidator.CreateInvalidationWithContext(ctx, &cloudfront.CreateInvalidationInput{
		DistributionId: aws.String(p.Distribution),
		InvalidationBatch: &cloudfront.InvalidationBatch{
			CallerReference: aws.String(fmt.Sprintf("qareport-%d", now().UnixNano())),
			Paths: &cloudfront.Paths{
				Quantity: aws.Int64(1),
				Items:    []*string{aws.String(target)},
			},
		},
	})
	if err != nil {
		return errors.Wrapf(err, "failed to invalidate %s on distribution %s", target, p.Distribution)
	}
	log.Infof("CloudFront invalidation requested for %s", target)
	return nil
}
