package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	aws3 "github.com/aws/aws-sdk-go/service/s3"
	"github.com/casdoor/oss"
	"github.com/casdoor/oss/s3"
)

// Config selects and configures the storage provider.
type Config struct {
	Provider string // filesystem, minio, aws-s3
	ID       string
	Secret   string
	Region   string
	Bucket   string // base folder for filesystem
	Endpoint string
	// PublicBase is the URL prefix attachments are served from, e.g.
	// http://localhost:8080/files for the filesystem provider.
	PublicBase string
}

// OSS adapts an oss.StorageInterface provider to the Store contract and maps
// between storage paths and the public URLs comments carry.
type OSS struct {
	storage    oss.StorageInterface
	publicBase string
}

// New builds the configured provider.
func New(c *Config) (*OSS, error) {
	var (
		storage oss.StorageInterface
		err     error
	)
	switch c.Provider {
	case "", "filesystem":
		storage, err = NewFileSystem(c.Bucket)
		if err != nil {
			return nil, err
		}
	case "minio":
		if c.Endpoint == "" || c.ID == "" || c.Secret == "" || c.Bucket == "" {
			return nil, errors.New("minio requires endpoint, id, secret and bucket")
		}
		region := c.Region
		if region == "" {
			region = "us-east-1"
		}
		storage = s3.New(&s3.Config{
			AccessID:         c.ID,
			AccessKey:        c.Secret,
			Region:           region,
			Bucket:           c.Bucket,
			Endpoint:         c.Endpoint,
			S3Endpoint:       c.Endpoint,
			ACL:              aws3.BucketCannedACLPublicRead,
			S3ForcePathStyle: true,
		})
	case "aws-s3":
		if c.ID == "" || c.Secret == "" || c.Bucket == "" {
			return nil, errors.New("aws-s3 requires id, secret and bucket")
		}
		region := c.Region
		if region == "" {
			region = "us-east-1"
		}
		storage = s3.New(&s3.Config{
			AccessID:  c.ID,
			AccessKey: c.Secret,
			Region:    region,
			Bucket:    c.Bucket,
			Endpoint:  c.Endpoint,
			ACL:       aws3.BucketCannedACLPublicRead,
		})
	default:
		return nil, fmt.Errorf("unsupported storage provider %q", c.Provider)
	}
	return &OSS{storage: storage, publicBase: strings.TrimSuffix(c.PublicBase, "/")}, nil
}

func (o *OSS) Upload(_ context.Context, path string, r io.Reader) (string, error) {
	if _, err := o.storage.Put(path, r); err != nil {
		return "", fmt.Errorf("upload %s: %w", path, err)
	}
	if o.publicBase != "" {
		return o.publicBase + "/" + strings.TrimPrefix(path, "/"), nil
	}
	url, err := o.storage.GetURL(path)
	if err != nil {
		return "", fmt.Errorf("resolve url for %s: %w", path, err)
	}
	return url, nil
}

func (o *OSS) Delete(_ context.Context, url string) error {
	err := o.storage.Delete(o.pathFromURL(url))
	if err == nil || isNotFound(err) {
		return nil
	}
	return err
}

func (o *OSS) pathFromURL(url string) string {
	p := url
	if o.publicBase != "" && strings.HasPrefix(url, o.publicBase) {
		p = strings.TrimPrefix(url, o.publicBase)
	} else if ep := o.storage.GetEndpoint(); ep != "/" && ep != "" {
		if i := strings.Index(url, ep); i >= 0 {
			p = url[i+len(ep):]
		}
	}
	return strings.TrimPrefix(p, "/")
}

// isNotFound spots the provider-specific shapes of "already gone".
func isNotFound(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "NoSuchKey") ||
		strings.Contains(msg, "NotFound") ||
		strings.Contains(msg, "no such file")
}
