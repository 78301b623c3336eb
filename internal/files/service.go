package files

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"mailmerge-backend/internal/batches"
	"mailmerge-backend/internal/extract"
	"mailmerge-backend/internal/shared/storage/object"
	"mailmerge-backend/internal/shared/util"
)

var (
	// ErrNotFound is returned for unknown or unsafe file identifiers.
	ErrNotFound = errors.New("file not found")
	// ErrUnsupported is returned when text cannot be extracted from a file.
	ErrUnsupported = errors.New("unsupported file type")
)

// Info describes a generated file.
type Info struct {
	Name         string    `json:"name"`
	DownloadName string    `json:"downloadName"`
	SizeBytes    int64     `json:"sizeBytes"`
	ContentType  string    `json:"contentType"`
	ModifiedAt   time.Time `json:"modifiedAt"`
	Pages        int       `json:"pages,omitempty"`
}

// Service reads generated files from the object store.
type Service struct {
	Store object.ObjectStore
}

// Open returns a reader for a generated file and its metadata.
func (s *Service) Open(ctx context.Context, name string) (io.ReadCloser, Info, error) {
	key, err := cleanName(name)
	if err != nil {
		return nil, Info{}, err
	}
	meta, err := s.Store.Stat(ctx, key)
	if err != nil {
		return nil, Info{}, mapStoreErr(err)
	}
	rc, err := s.Store.Open(ctx, key)
	if err != nil {
		return nil, Info{}, mapStoreErr(err)
	}
	return rc, toInfo(key, meta), nil
}

// Text returns the plain text of a generated DOCX or PDF.
func (s *Service) Text(ctx context.Context, name string) (string, error) {
	data, info, err := s.read(ctx, name)
	if err != nil {
		return "", err
	}
	text, err := extract.Text(ctx, data, info.ContentType, info.Name)
	if err != nil {
		if errors.Is(err, extract.ErrUnsupportedType) {
			return "", fmt.Errorf("%w: %s", ErrUnsupported, info.Name)
		}
		return "", err
	}
	return text, nil
}

// Info returns file metadata. PDFs also report their page count.
func (s *Service) Info(ctx context.Context, name string) (Info, error) {
	key, err := cleanName(name)
	if err != nil {
		return Info{}, err
	}
	meta, err := s.Store.Stat(ctx, key)
	if err != nil {
		return Info{}, mapStoreErr(err)
	}
	info := toInfo(key, meta)
	if info.ContentType != "application/pdf" {
		return info, nil
	}

	data, _, err := s.read(ctx, key)
	if err != nil {
		return Info{}, err
	}
	pages, err := pageCount(data)
	if err != nil {
		return Info{}, fmt.Errorf("count pages: %w", err)
	}
	info.Pages = pages
	return info, nil
}

func (s *Service) read(ctx context.Context, name string) ([]byte, Info, error) {
	rc, info, err := s.Open(ctx, name)
	if err != nil {
		return nil, Info{}, err
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, Info{}, err
	}
	return data, info, nil
}

var disableConfigDir sync.Once

func pageCount(data []byte) (int, error) {
	disableConfigDir.Do(api.DisableConfigDir)
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return api.PageCount(bytes.NewReader(data), conf)
}

func cleanName(name string) (string, error) {
	clean, err := util.SanitizeFileName(strings.TrimSpace(name))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	return clean, nil
}

func mapStoreErr(err error) error {
	if errors.Is(err, object.ErrNotFound) || errors.Is(err, object.ErrInvalidKey) {
		return ErrNotFound
	}
	return err
}

func toInfo(key string, meta object.Info) Info {
	ct := meta.ContentType
	if ct == "" || ct == "application/octet-stream" || strings.HasPrefix(ct, "binary/") {
		ct = object.ContentTypeFor(key)
	}
	return Info{
		Name:         key,
		DownloadName: batches.DownloadName(key),
		SizeBytes:    meta.Size,
		ContentType:  ct,
		ModifiedAt:   meta.ModTime,
	}
}
