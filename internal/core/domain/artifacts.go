package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// LexicalModel is the fitted state of the TF-IDF vectorizer.
type LexicalModel struct {
	Vocabulary  map[string]int `json:"vocabulary"`
	IDF         []float64      `json:"idf"`
	MinNGram    int            `json:"min_ngram"`
	MaxNGram    int            `json:"max_ngram"`
	MaxFeatures int            `json:"max_features"`
	StopWords   string         `json:"stop_words"`
}

func (m LexicalModel) VocabularySize() int {
	return len(m.IDF)
}

// SparseMatrix is a CSR matrix: row i spans Indices/Data[IndPtr[i]:IndPtr[i+1]].
type SparseMatrix struct {
	Rows    int       `json:"rows"`
	Cols    int       `json:"cols"`
	IndPtr  []int     `json:"indptr"`
	Indices []int     `json:"indices"`
	Data    []float64 `json:"data"`
}

func (m SparseMatrix) Validate() error {
	if len(m.IndPtr) != m.Rows+1 {
		return fmt.Errorf("indptr length %d does not match %d rows", len(m.IndPtr), m.Rows)
	}
	if len(m.Indices) != len(m.Data) {
		return fmt.Errorf("indices/data length mismatch: %d vs %d", len(m.Indices), len(m.Data))
	}
	if m.IndPtr[0] != 0 || m.IndPtr[m.Rows] != len(m.Data) {
		return fmt.Errorf("indptr bounds do not cover data")
	}
	for i := 0; i < m.Rows; i++ {
		if m.IndPtr[i] > m.IndPtr[i+1] {
			return fmt.Errorf("indptr not monotonic at row %d", i)
		}
	}
	for _, col := range m.Indices {
		if col < 0 || col >= m.Cols {
			return fmt.Errorf("column %d out of range [0,%d)", col, m.Cols)
		}
	}
	return nil
}

// DenseMatrix is a row-major Rows x Dim matrix.
type DenseMatrix struct {
	Rows int
	Dim  int
	Data []float32
}

func (m DenseMatrix) Row(i int) []float32 {
	return m.Data[i*m.Dim : (i+1)*m.Dim]
}

func (m DenseMatrix) Validate() error {
	if m.Rows < 0 || m.Dim < 0 {
		return fmt.Errorf("negative matrix shape %dx%d", m.Rows, m.Dim)
	}
	if len(m.Data) != m.Rows*m.Dim {
		return fmt.Errorf("matrix data length %d does not match %dx%d", len(m.Data), m.Rows, m.Dim)
	}
	return nil
}

const (
	NeighborMetricCosine   = "cosine"
	NeighborAlgorithmBrute = "brute"
	EmbeddingsFileName     = "embeddings.bin"
)

// NeighborIndexSpec is the fitted nearest-neighbor structure over the embedding matrix.
type NeighborIndexSpec struct {
	Metric         string `json:"metric"`
	Algorithm      string `json:"algorithm"`
	Rows           int    `json:"rows"`
	Dim            int    `json:"dim"`
	EmbeddingsFile string `json:"embeddings_file"`
	Fingerprint    string `json:"fingerprint"`
}

// NewNeighborIndexSpec fits the exact cosine structure over embeddings.
func NewNeighborIndexSpec(embeddings DenseMatrix, fingerprint string) (NeighborIndexSpec, error) {
	if err := embeddings.Validate(); err != nil {
		return NeighborIndexSpec{}, err
	}
	return NeighborIndexSpec{
		Metric:         NeighborMetricCosine,
		Algorithm:      NeighborAlgorithmBrute,
		Rows:           embeddings.Rows,
		Dim:            embeddings.Dim,
		EmbeddingsFile: EmbeddingsFileName,
		Fingerprint:    fingerprint,
	}, nil
}

// BuildManifest describes one complete, aligned set of artifacts.
type BuildManifest struct {
	BuildID        string    `json:"build_id"`
	CreatedAt      time.Time `json:"created_at"`
	RecordCount    int       `json:"record_count"`
	VocabularySize int       `json:"vocabulary_size"`
	EmbeddingDim   int       `json:"embedding_dim"`
	EncoderModel   string    `json:"encoder_model"`
	Fingerprint    string    `json:"fingerprint"`
}

// ArtifactBundle is everything the offline build produces and the server loads.
type ArtifactBundle struct {
	Manifest      BuildManifest
	Records       []CatalogRecord
	LexicalModel  LexicalModel
	LexicalMatrix SparseMatrix
	Embeddings    DenseMatrix
	Neighbors     NeighborIndexSpec
}

// CheckAlignment verifies that every derived structure has one row per record
// and was built from the same record texts.
func (b *ArtifactBundle) CheckAlignment() error {
	n := len(b.Records)
	want := RecordsFingerprint(b.Records)
	switch {
	case b.Manifest.RecordCount != n:
		return fmt.Errorf("%w: manifest has %d records, record list has %d", ErrIndexMisaligned, b.Manifest.RecordCount, n)
	case b.Manifest.Fingerprint != want:
		return fmt.Errorf("%w: record list fingerprint differs from manifest", ErrIndexMisaligned)
	case b.LexicalMatrix.Rows != n:
		return fmt.Errorf("%w: lexical matrix has %d rows, want %d", ErrIndexMisaligned, b.LexicalMatrix.Rows, n)
	case b.LexicalMatrix.Cols != b.LexicalModel.VocabularySize():
		return fmt.Errorf("%w: lexical matrix has %d columns, vocabulary has %d", ErrIndexMisaligned, b.LexicalMatrix.Cols, b.LexicalModel.VocabularySize())
	case b.Embeddings.Rows != n:
		return fmt.Errorf("%w: embedding matrix has %d rows, want %d", ErrIndexMisaligned, b.Embeddings.Rows, n)
	case b.Neighbors.Rows != n || b.Neighbors.Dim != b.Embeddings.Dim:
		return fmt.Errorf("%w: neighbor index shape %dx%d does not match embeddings %dx%d", ErrIndexMisaligned, b.Neighbors.Rows, b.Neighbors.Dim, n, b.Embeddings.Dim)
	case b.Neighbors.Fingerprint != want:
		return fmt.Errorf("%w: neighbor index fingerprint differs from record list", ErrIndexMisaligned)
	}
	return nil
}

// RecordsFingerprint hashes the ordered index texts of the records.
func RecordsFingerprint(records []CatalogRecord) string {
	h := sha256.New()
	for _, rec := range records {
		_, _ = h.Write([]byte(rec.IndexText()))
		_, _ = h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// IndexTexts returns the per-row source text for both indices.
func IndexTexts(records []CatalogRecord) []string {
	out := make([]string, len(records))
	for i, rec := range records {
		out[i] = rec.IndexText()
	}
	return out
}
