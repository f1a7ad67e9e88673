// Package storage publishes uploaded images so analyses can reference them
// after the local temp file is gone.
package storage

import (
	"context"
	"io"
)

type Uploader interface {
	// Upload stores r under objectName and returns its public URL.
	Upload(ctx context.Context, objectName string, contentType string, r io.Reader) (url string, err error)
}
