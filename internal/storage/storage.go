// Package storage persists uploaded listing photos.
package storage

import (
	"context"
	"io"
)

// ImageStore saves and removes uploaded photos by generated filename.
type ImageStore interface {
	Save(ctx context.Context, name string, src io.Reader, contentType string) error
	Remove(ctx context.Context, name string) error
}
