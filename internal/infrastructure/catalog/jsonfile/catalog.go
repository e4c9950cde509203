// Package jsonfile reads and writes the ingested catalog as one JSON array.
package jsonfile

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/goccy/go-json"

	"github.com/kirillkom/assessment-recommender/internal/core/domain"
)

type Catalog struct {
	path string
}

func New(path string) *Catalog {
	if path == "" {
		path = "./data/assessments.json"
	}
	return &Catalog{path: path}
}

func (c *Catalog) LoadRecords(_ context.Context) ([]domain.CatalogRecord, error) {
	data, err := os.ReadFile(c.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, domain.WrapError(domain.ErrNotFound, "load catalog", err)
		}
		return nil, fmt.Errorf("read catalog file: %w", err)
	}
	var records []domain.CatalogRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("decode catalog file %s: %w", c.path, err)
	}
	return records, nil
}

// SaveRecords writes through a temp file and rename so a reader never sees a
// half-written catalog.
func (c *Catalog) SaveRecords(_ context.Context, records []domain.CatalogRecord) error {
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("encode catalog: %w", err)
	}
	dir := filepath.Dir(c.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create catalog dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(c.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp catalog: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp catalog: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp catalog: %w", err)
	}
	if err := os.Rename(tmp.Name(), c.path); err != nil {
		return fmt.Errorf("replace catalog file: %w", err)
	}
	return nil
}
