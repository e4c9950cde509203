// Package badgerstore memoizes catalog embeddings in BadgerDB so rebuilds
// only encode texts that changed.
package badgerstore

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
)

const keyPrefix = "emb:"

type slogAdapter struct {
	logger *slog.Logger
}

func (a slogAdapter) Errorf(msg string, args ...any) { a.logger.Error(fmt.Sprintf(msg, args...)) }

func (a slogAdapter) Warningf(msg string, args ...any) { a.logger.Warn(fmt.Sprintf(msg, args...)) }

func (a slogAdapter) Infof(msg string, args ...any) { a.logger.Debug(fmt.Sprintf(msg, args...)) }

func (a slogAdapter) Debugf(msg string, args ...any) { a.logger.Debug(fmt.Sprintf(msg, args...)) }

type Cache struct {
	db *badger.DB
}

// Open opens the cache at path; an empty path opens an in-memory store.
func Open(path string, logger *slog.Logger) (*Cache, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var opts badger.Options
	if path == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(path, 0o755); err != nil {
			return nil, fmt.Errorf("create embedding cache dir: %w", err)
		}
		opts = badger.DefaultOptions(path)
	}
	opts.Logger = slogAdapter{logger: logger}
	opts.Compression = options.None

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open embedding cache: %w", err)
	}
	return &Cache{db: db}, nil
}

func (c *Cache) Close() error {
	return c.db.Close()
}

func (c *Cache) Get(_ context.Context, model, text string) ([]float32, bool, error) {
	var out []float32
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(cacheKey(model, text))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			v, err := decodeVector(val)
			if err != nil {
				return err
			}
			out = v
			return nil
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read cached embedding: %w", err)
	}
	return out, true, nil
}

func (c *Cache) Put(_ context.Context, model, text string, vector []float32) error {
	err := c.db.Update(func(txn *badger.Txn) error {
		return txn.Set(cacheKey(model, text), encodeVector(vector))
	})
	if err != nil {
		return fmt.Errorf("write cached embedding: %w", err)
	}
	return nil
}

func cacheKey(model, text string) []byte {
	sum := sha256.Sum256([]byte(model + "\x00" + text))
	return []byte(keyPrefix + hex.EncodeToString(sum[:]))
}

// encodeVector layout: length uint32 | float32 bits, little endian.
func encodeVector(v []float32) []byte {
	buf := make([]byte, 4+4*len(v))
	binary.LittleEndian.PutUint32(buf[:4], uint32(len(v)))
	for i, x := range v {
		binary.LittleEndian.PutUint32(buf[4+4*i:], math.Float32bits(x))
	}
	return buf
}

func decodeVector(buf []byte) ([]float32, error) {
	if len(buf) < 4 {
		return nil, errors.New("cached embedding too short")
	}
	n := int(binary.LittleEndian.Uint32(buf[:4]))
	if len(buf) != 4+4*n {
		return nil, fmt.Errorf("cached embedding length %d does not match header %d", len(buf), n)
	}
	out := make([]float32, n)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[4+4*i:]))
	}
	return out, nil
}
