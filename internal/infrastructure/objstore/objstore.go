// Package objstore stores listing images and hands back the URLs saved on
// listings.
package objstore

import (
	"context"
	"errors"
	"io"
	"strings"
)

var (
	ErrNotOwned    = errors.New("url does not belong to this store")
	ErrContentType = errors.New("content type is not an accepted image type")
)

// ImageStore is implemented by *MinIO and *Memory.
type ImageStore interface {
	// Put stores the object under key and returns its public URL.
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error)
	// Delete removes the object behind a URL returned by Put.
	Delete(ctx context.Context, url string) error
}

var imageExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
}

// ImageExtension returns the file extension for an accepted image content
// type. Parameters such as "; charset=..." are ignored.
func ImageExtension(contentType string) (string, bool) {
	ct, _, _ := strings.Cut(contentType, ";")
	ext, ok := imageExtensions[strings.ToLower(strings.TrimSpace(ct))]
	return ext, ok
}

// keyFromURL strips prefix from url, failing if url was not produced by the
// same store.
func keyFromURL(prefix, url string) (string, error) {
	key, ok := strings.CutPrefix(url, prefix)
	if !ok || key == "" {
		return "", ErrNotOwned
	}
	return key, nil
}
