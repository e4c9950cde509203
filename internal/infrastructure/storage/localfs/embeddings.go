package localfs

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/kirillkom/assessment-recommender/internal/core/domain"
)

var embeddingsMagic = [4]byte{'E', 'M', 'B', '1'}

// writeEmbeddings layout, little endian:
// magic[4] | rows uint32 | dim uint32 | fpLen uint32 | fingerprint | rows*dim float32.
func writeEmbeddings(w io.Writer, m domain.DenseMatrix, fingerprint string) error {
	bw := bufio.NewWriter(w)
	if _, err := bw.Write(embeddingsMagic[:]); err != nil {
		return err
	}
	header := []uint32{uint32(m.Rows), uint32(m.Dim), uint32(len(fingerprint))}
	if err := binary.Write(bw, binary.LittleEndian, header); err != nil {
		return err
	}
	if _, err := bw.WriteString(fingerprint); err != nil {
		return err
	}
	if err := binary.Write(bw, binary.LittleEndian, m.Data); err != nil {
		return err
	}
	return bw.Flush()
}

func readEmbeddings(data []byte) (domain.DenseMatrix, string, error) {
	if len(data) < 16 || !bytes.Equal(data[:4], embeddingsMagic[:]) {
		return domain.DenseMatrix{}, "", errors.New("not an embeddings file")
	}
	rows := int(binary.LittleEndian.Uint32(data[4:8]))
	dim := int(binary.LittleEndian.Uint32(data[8:12]))
	fpLen := int(binary.LittleEndian.Uint32(data[12:16]))

	off := 16 + fpLen
	if len(data) < off {
		return domain.DenseMatrix{}, "", errors.New("truncated embeddings header")
	}
	fingerprint := string(data[16:off])

	need := rows * dim * 4
	if len(data)-off != need {
		return domain.DenseMatrix{}, "", fmt.Errorf("embeddings payload is %d bytes, want %d for %dx%d", len(data)-off, need, rows, dim)
	}
	vec := make([]float32, rows*dim)
	if err := binary.Read(bytes.NewReader(data[off:]), binary.LittleEndian, vec); err != nil {
		return domain.DenseMatrix{}, "", fmt.Errorf("decode embeddings: %w", err)
	}
	return domain.DenseMatrix{Rows: rows, Dim: dim, Data: vec}, fingerprint, nil
}
