// Package storage stores uploaded product images on the local filesystem
// or an S3-compatible bucket (AWS S3, MinIO, R2).
//
//	disk, err := storage.Open(ctx)
//	url, err := storage.PutImage(ctx, disk, productID, "image/jpeg", file)
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/google/uuid"

	"github.com/buddyengineerz/storefront/config"
)

// Disk is a flat object store addressed by slash-separated keys.
type Disk interface {
	Put(ctx context.Context, key string, r io.Reader, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Exists(ctx context.Context, key string) bool
	// Delete returns nil when the key does not exist.
	Delete(ctx context.Context, key string) error
	URL(key string) string
}

// ErrUnsupportedType is returned for uploads that are not images.
var ErrUnsupportedType = errors.New("storage: only jpeg, png and webp images are accepted")

var imageExt = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
}

// Open builds the disk named by STORAGE_DISK.
func Open(ctx context.Context) (Disk, error) {
	switch config.StorageDefault() {
	case "s3":
		return NewS3(ctx, S3Config{
			Bucket:   config.StorageS3Bucket(),
			Region:   config.StorageS3Region(),
			Key:      config.StorageS3Key(),
			Secret:   config.StorageS3Secret(),
			Endpoint: config.StorageS3Endpoint(),
			BaseURL:  config.StorageS3URL(),
		})
	case "local", "":
		return NewLocal(config.StorageLocalRoot(), config.StorageURL())
	default:
		return nil, fmt.Errorf("storage: unknown disk %q", config.StorageDefault())
	}
}

// ImageKey returns products/{id}/{uuid}{ext} for an upload.
func ImageKey(productID uint, contentType string) (string, error) {
	ext, ok := imageExt[strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0]))]
	if !ok {
		return "", ErrUnsupportedType
	}
	return path.Join("products", fmt.Sprint(productID), uuid.NewString()+ext), nil
}

// PutImage stores an image upload and returns its public URL.
func PutImage(ctx context.Context, d Disk, productID uint, contentType string, r io.Reader) (string, error) {
	key, err := ImageKey(productID, contentType)
	if err != nil {
		return "", err
	}
	if err := d.Put(ctx, key, r, contentType); err != nil {
		return "", err
	}
	return d.URL(key), nil
}
