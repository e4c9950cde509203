// Package localfs persists artifact bundles as a directory of files. A save
// builds the whole set in a staging directory and swaps it in at once, so a
// reader never sees artifacts from two different builds.
package localfs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/goccy/go-json"

	"github.com/kirillkom/assessment-recommender/internal/core/domain"
)

const (
	manifestFile      = "manifest.json"
	recordsFile       = "records.json"
	lexicalModelFile  = "lexical_model.json"
	lexicalMatrixFile = "lexical_matrix.json"
	neighborsFile     = "neighbors.json"
)

type lexicalModelArtifact struct {
	Fingerprint string              `json:"fingerprint"`
	Model       domain.LexicalModel `json:"model"`
}

type lexicalMatrixArtifact struct {
	Fingerprint string              `json:"fingerprint"`
	Matrix      domain.SparseMatrix `json:"matrix"`
}

type recordsArtifact struct {
	Fingerprint string                 `json:"fingerprint"`
	Records     []domain.CatalogRecord `json:"records"`
}

type Store struct {
	basePath string
}

func New(basePath string) (*Store, error) {
	if basePath == "" {
		basePath = "./data/artifacts"
	}
	parent := filepath.Dir(filepath.Clean(basePath))
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return nil, fmt.Errorf("create artifacts parent dir: %w", err)
	}
	return &Store{basePath: filepath.Clean(basePath)}, nil
}

func (s *Store) Path() string { return s.basePath }

func (s *Store) Save(_ context.Context, bundle *domain.ArtifactBundle) error {
	if bundle == nil {
		return errors.New("nil artifact bundle")
	}
	if err := bundle.CheckAlignment(); err != nil {
		return err
	}

	staging, err := os.MkdirTemp(filepath.Dir(s.basePath), filepath.Base(s.basePath)+".staging-*")
	if err != nil {
		return fmt.Errorf("create staging dir: %w", err)
	}
	defer os.RemoveAll(staging)

	fp := bundle.Manifest.Fingerprint
	writes := []struct {
		name string
		v    any
	}{
		{recordsFile, recordsArtifact{Fingerprint: fp, Records: bundle.Records}},
		{lexicalModelFile, lexicalModelArtifact{Fingerprint: fp, Model: bundle.LexicalModel}},
		{lexicalMatrixFile, lexicalMatrixArtifact{Fingerprint: fp, Matrix: bundle.LexicalMatrix}},
		{neighborsFile, bundle.Neighbors},
	}
	for _, w := range writes {
		if err := writeJSON(filepath.Join(staging, w.name), w.v); err != nil {
			return err
		}
	}

	var buf bytes.Buffer
	if err := writeEmbeddings(&buf, bundle.Embeddings, fp); err != nil {
		return fmt.Errorf("encode embeddings: %w", err)
	}
	if err := writeFileSync(filepath.Join(staging, bundle.Neighbors.EmbeddingsFile), buf.Bytes()); err != nil {
		return err
	}

	// Manifest last: a staging dir without one is never loadable.
	if err := writeJSON(filepath.Join(staging, manifestFile), bundle.Manifest); err != nil {
		return err
	}
	return s.swap(staging)
}

func (s *Store) swap(staging string) error {
	previous := s.basePath + ".previous"
	if err := os.RemoveAll(previous); err != nil {
		return fmt.Errorf("clear previous artifacts: %w", err)
	}
	hadCurrent := true
	if err := os.Rename(s.basePath, previous); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("move current artifacts aside: %w", err)
		}
		hadCurrent = false
	}
	if err := os.Rename(staging, s.basePath); err != nil {
		if hadCurrent {
			_ = os.Rename(previous, s.basePath)
		}
		return fmt.Errorf("activate new artifacts: %w", err)
	}
	_ = os.RemoveAll(previous)
	return nil
}

func (s *Store) Load(_ context.Context) (*domain.ArtifactBundle, error) {
	bundle, err := s.load()
	if err != nil {
		if domain.IsKind(err, domain.ErrIndexMisaligned) {
			return nil, err
		}
		return nil, domain.WrapError(domain.ErrArtifactLoad, "load artifacts from "+s.basePath, err)
	}
	return bundle, nil
}

func (s *Store) load() (*domain.ArtifactBundle, error) {
	var manifest domain.BuildManifest
	if err := readJSON(filepath.Join(s.basePath, manifestFile), &manifest); err != nil {
		return nil, err
	}
	fp := manifest.Fingerprint

	var records recordsArtifact
	if err := readJSON(filepath.Join(s.basePath, recordsFile), &records); err != nil {
		return nil, err
	}
	var model lexicalModelArtifact
	if err := readJSON(filepath.Join(s.basePath, lexicalModelFile), &model); err != nil {
		return nil, err
	}
	var matrix lexicalMatrixArtifact
	if err := readJSON(filepath.Join(s.basePath, lexicalMatrixFile), &matrix); err != nil {
		return nil, err
	}
	var neighbors domain.NeighborIndexSpec
	if err := readJSON(filepath.Join(s.basePath, neighborsFile), &neighbors); err != nil {
		return nil, err
	}
	if neighbors.EmbeddingsFile == "" || filepath.Base(neighbors.EmbeddingsFile) != neighbors.EmbeddingsFile {
		return nil, fmt.Errorf("invalid embeddings file reference %q", neighbors.EmbeddingsFile)
	}

	raw, err := os.ReadFile(filepath.Join(s.basePath, neighbors.EmbeddingsFile))
	if err != nil {
		return nil, fmt.Errorf("read embeddings: %w", err)
	}
	embeddings, embFP, err := readEmbeddings(raw)
	if err != nil {
		return nil, err
	}

	for name, got := range map[string]string{
		recordsFile:              records.Fingerprint,
		lexicalModelFile:         model.Fingerprint,
		lexicalMatrixFile:        matrix.Fingerprint,
		neighborsFile:            neighbors.Fingerprint,
		neighbors.EmbeddingsFile: embFP,
	} {
		if got != fp {
			return nil, fmt.Errorf("%w: %s was built from a different record list", domain.ErrIndexMisaligned, name)
		}
	}
	if err := matrix.Matrix.Validate(); err != nil {
		return nil, fmt.Errorf("lexical matrix: %w", err)
	}

	bundle := &domain.ArtifactBundle{
		Manifest:      manifest,
		Records:       records.Records,
		LexicalModel:  model.Model,
		LexicalMatrix: matrix.Matrix,
		Embeddings:    embeddings,
		Neighbors:     neighbors,
	}
	if err := bundle.CheckAlignment(); err != nil {
		return nil, err
	}
	return bundle, nil
}

func writeJSON(path string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}
	return writeFileSync(path, data)
}

func writeFileSync(path string, data []byte) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", filepath.Base(path), err)
	}
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("sync %s: %w", filepath.Base(path), err)
	}
	return nil
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return nil
}
