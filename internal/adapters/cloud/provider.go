// Package cloud implements the network cache tier on S3-compatible object storage.
package cloud

import (
	"bytes"
	"context"
	"io"
	"path"
	"strings"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.trai.ch/monorun/internal/core/domain"
	"go.trai.ch/monorun/internal/core/ports"
	"go.trai.ch/zerr"
)

const (
	defaultRegion = "us-east-1"
	contentType   = "application/gzip"
	objectSuffix  = ".tar.gz"
)

var _ ports.CacheProvider = (*Provider)(nil)

// Provider is a CacheProvider backed by an S3 bucket.
type Provider struct {
	client   *minio.Client
	bucket   string
	region   string
	prefix   string
	writable bool

	initOnce sync.Once
	initErr  error
}

// New validates settings and creates a Provider.
func New(settings domain.CloudSettings) (*Provider, error) {
	endpoint := strings.TrimSpace(settings.Endpoint)
	if endpoint == "" {
		return nil, zerr.With(domain.ErrCloudConfigInvalid, "missing", "endpoint")
	}
	bucket := strings.TrimSpace(settings.Bucket)
	if bucket == "" {
		return nil, zerr.With(domain.ErrCloudConfigInvalid, "missing", "bucket")
	}
	access := strings.TrimSpace(settings.AccessKey)
	secret := strings.TrimSpace(settings.SecretKey)
	if settings.WriteAllowed && (access == "" || secret == "") {
		return nil, zerr.With(domain.ErrCloudConfigInvalid, "missing", "credentials")
	}
	region := strings.TrimSpace(settings.Region)
	if region == "" {
		region = defaultRegion
	}

	opts := &minio.Options{
		Secure: settings.UseSSL,
		Region: region,
	}
	if access != "" {
		opts.Creds = credentials.NewStaticV4(access, secret, "")
	} else {
		opts.Creds = credentials.NewStatic("", "", "", credentials.SignatureAnonymous)
	}

	client, err := minio.New(endpoint, opts)
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, domain.ErrCloudConfigInvalid.Error()), "endpoint", endpoint)
	}

	return &Provider{
		client:   client,
		bucket:   bucket,
		region:   region,
		prefix:   strings.Trim(settings.Prefix, "/"),
		writable: settings.WriteAllowed,
	}, nil
}

// Source reports the cloud tier.
func (p *Provider) Source() domain.CacheSource {
	return domain.CacheSourceCloud
}

// Writable reports whether the operator allowed writes to the bucket.
func (p *Provider) Writable() bool {
	return p.writable
}

// Get downloads the object stored under key. Missing objects and buckets are misses.
func (p *Provider) Get(ctx context.Context, key string) ([]byte, bool, error) {
	name := p.objectKey(key)
	obj, err := p.client.GetObject(ctx, p.bucket, name, minio.GetObjectOptions{})
	if err != nil {
		return nil, false, p.readError(err, name)
	}
	defer obj.Close() //nolint:errcheck // Best effort close in defer

	data, err := io.ReadAll(obj)
	if err != nil {
		resp := minio.ToErrorResponse(err)
		if resp.Code == "NoSuchKey" || resp.Code == "NoSuchBucket" {
			return nil, false, nil
		}
		return nil, false, p.readError(err, name)
	}
	return data, true, nil
}

// Put uploads blob under key, creating the bucket on first use.
func (p *Provider) Put(ctx context.Context, key string, blob []byte) error {
	name := p.objectKey(key)
	if !p.writable {
		return zerr.With(zerr.Wrap(domain.ErrCloudConfigInvalid, "cloud cache is read-only"), "object", name)
	}
	if err := p.ensureBucket(ctx); err != nil {
		return p.writeError(err, name)
	}

	_, err := p.client.PutObject(ctx, p.bucket, name, bytes.NewReader(blob), int64(len(blob)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return p.writeError(err, name)
	}
	return nil
}

func (p *Provider) ensureBucket(ctx context.Context) error {
	p.initOnce.Do(func() {
		exists, err := p.client.BucketExists(ctx, p.bucket)
		if err != nil {
			p.initErr = err
			return
		}
		if exists {
			return
		}
		p.initErr = p.client.MakeBucket(ctx, p.bucket, minio.MakeBucketOptions{Region: p.region})
	})
	return p.initErr
}

func (p *Provider) objectKey(key string) string {
	if p.prefix == "" {
		return key + objectSuffix
	}
	return path.Join(p.prefix, key+objectSuffix)
}

func (p *Provider) readError(err error, name string) error {
	return zerr.With(zerr.With(zerr.Wrap(err, domain.ErrCacheReadFailed.Error()), "bucket", p.bucket), "object", name)
}

func (p *Provider) writeError(err error, name string) error {
	return zerr.With(zerr.With(zerr.Wrap(err, domain.ErrCacheWriteFailed.Error()), "bucket", p.bucket), "object", name)
}
