package object

import (
	"context"
	"errors"
	"io"
	"mime"
	"path"
	"strings"
	"time"
)

var (
	// ErrNotFound indicates the storage key does not exist.
	ErrNotFound = errors.New("object not found")

	// ErrInvalidKey indicates a key that escapes the store root or is empty.
	ErrInvalidKey = errors.New("invalid storage key")
)

// Info describes a stored object.
type Info struct {
	Key         string
	Size        int64
	ContentType string
	ModTime     time.Time
}

// ObjectStore defines the contract for saving and retrieving binary objects.
type ObjectStore interface {
	SaveWithKey(ctx context.Context, storageKey string, contentType string, r io.Reader) (int64, error)
	Open(ctx context.Context, storageKey string) (io.ReadCloser, error)
	Stat(ctx context.Context, storageKey string) (Info, error)
}

// CleanKey normalizes a slash-separated key and rejects traversal.
func CleanKey(storageKey string) (string, error) {
	key := strings.TrimSpace(strings.ReplaceAll(storageKey, "\\", "/"))
	if key == "" || strings.HasPrefix(key, "/") {
		return "", ErrInvalidKey
	}
	clean := path.Clean(key)
	if clean == "." || clean == ".." || strings.HasPrefix(clean, "../") {
		return "", ErrInvalidKey
	}
	return clean, nil
}

// ContentTypeFor guesses a MIME type from the key's extension.
func ContentTypeFor(storageKey string) string {
	switch strings.ToLower(path.Ext(storageKey)) {
	case ".pdf":
		return "application/pdf"
	case ".docx":
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	case ".xlsx":
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	if ct := mime.TypeByExtension(path.Ext(storageKey)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
