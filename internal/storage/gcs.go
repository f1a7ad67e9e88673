package storage

import (
	"context"
	"fmt"
	"io"
	"path"

	gcs "cloud.google.com/go/storage"
)

// GCSUploader writes objects to a bucket under a fixed prefix.
type GCSUploader struct {
	client *gcs.Client
	bucket string
	prefix string
	// public grants allUsers read on each object. Leave off for buckets
	// with uniform bucket-level access.
	public bool
}

type GCSOption func(*GCSUploader)

func WithPrefix(p string) GCSOption { return func(u *GCSUploader) { u.prefix = p } }

func WithPublicRead() GCSOption { return func(u *GCSUploader) { u.public = true } }

func NewGCSUploader(ctx context.Context, bucket string, opts ...GCSOption) (*GCSUploader, error) {
	c, err := gcs.NewClient(ctx)
	if err != nil {
		return nil, err
	}
	u := &GCSUploader{client: c, bucket: bucket, prefix: "analyses"}
	for _, o := range opts {
		o(u)
	}
	return u, nil
}

func (u *GCSUploader) Close() error { return u.client.Close() }

func (u *GCSUploader) Upload(ctx context.Context, objectName string, contentType string, r io.Reader) (string, error) {
	name := path.Join(u.prefix, objectName)
	obj := u.client.Bucket(u.bucket).Object(name)

	w := obj.NewWriter(ctx)
	w.ContentType = contentType

	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("gcs write %s: %w", name, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("gcs close %s: %w", name, err)
	}

	if u.public {
		if err := obj.ACL().Set(ctx, gcs.AllUsers, gcs.RoleReader); err != nil {
			return "", fmt.Errorf("gcs acl %s: %w", name, err)
		}
	}

	return ObjectURL(u.bucket, name), nil
}

func ObjectURL(bucket, name string) string {
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", bucket, name)
}

var _ Uploader = (*GCSUploader)(nil)
