package rag

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"document-qa/internal/helper"
	"document-qa/internal/models"
)

// BatchWarning rejects an upload batch before anything is processed. Message
// is shown to the user as is.
type BatchWarning struct {
	Message string
}

func (w *BatchWarning) Error() string { return w.Message }

// Upload is one file received from a client
type Upload struct {
	Name   string
	Reader io.Reader
}

// CheckBatch validates the file names of a batch: 1 to 5 PDFs
func CheckBatch(names []string) error {
	switch {
	case len(names) == 0:
		return &BatchWarning{Message: models.NoFilesMessage}
	case len(names) > models.MaxBatchFiles:
		return &BatchWarning{Message: models.TooManyFilesMessage}
	}
	for _, n := range names {
		if !strings.EqualFold(filepath.Ext(n), models.PDFExtension) {
			return &BatchWarning{Message: models.OnlyPDFMessage}
		}
	}
	return nil
}

// IngestUploads stores uploads in a temporary directory, ingests them and
// removes the directory whatever the outcome.
func (s *Session) IngestUploads(ctx context.Context, uploads []Upload) (*IngestResult, error) {
	names := make([]string, len(uploads))
	for i, u := range uploads {
		names[i] = u.Name
	}
	if err := CheckBatch(names); err != nil {
		return nil, err
	}

	var result *IngestResult
	err := helper.WithTempDir("pdf-upload-*", func(dir string) error {
		paths := make([]string, len(uploads))
		for i, u := range uploads {
			// one subdirectory per file keeps equal names apart
			path, err := writeUpload(filepath.Join(dir, strconv.Itoa(i)), u)
			if err != nil {
				return err
			}
			paths[i] = path
		}

		var err error
		result, err = s.Ingest(ctx, paths)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func writeUpload(dir string, u Upload) (string, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("failed to create upload dir: %w", err)
	}
	path := filepath.Join(dir, filepath.Base(u.Name))
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to store %s: %w", u.Name, err)
	}
	defer f.Close()

	if _, err := io.Copy(f, u.Reader); err != nil {
		return "", fmt.Errorf("failed to store %s: %w", u.Name, err)
	}
	return path, nil
}
