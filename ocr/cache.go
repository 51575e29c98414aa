package ocr

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	bolt "go.etcd.io/bbolt"
	"go.uber.org/zap"
)

var cacheBucket = []byte("ocr_results")

// CachedEngine wraps an Engine with a persistent bbolt-backed result cache.
// Entries are keyed by the SHA-256 of the image bytes plus a namespace
// identifying the engine and prompt, so a changed prompt or model never
// serves stale text.
type CachedEngine struct {
	db        *bolt.DB
	inner     Engine
	namespace string
	logger    *zap.Logger
}

// OpenCache opens (or creates) the cache database at path.
func OpenCache(path string) (*bolt.DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(cacheBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create cache bucket: %w", err)
	}
	return db, nil
}

func NewCachedEngine(db *bolt.DB, inner Engine, namespace string, logger *zap.Logger) *CachedEngine {
	return &CachedEngine{
		db:        db,
		inner:     inner,
		namespace: namespace,
		logger:    logger,
	}
}

// ExtractText returns the cached text for the image when present, otherwise
// delegates to the wrapped engine and stores the result.
func (c *CachedEngine) ExtractText(ctx context.Context, imagePath string) (string, error) {
	key, err := c.cacheKey(imagePath)
	if err != nil {
		return "", err
	}

	var cached []byte
	err = c.db.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket(cacheBucket).Get(key); v != nil {
			cached = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to read result cache: %w", err)
	}
	if cached != nil {
		c.logger.Info("cache hit", zap.String("file", filepath.Base(imagePath)))
		return string(cached), nil
	}

	text, err := c.inner.ExtractText(ctx, imagePath)
	if err != nil {
		return "", err
	}

	err = c.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(cacheBucket).Put(key, []byte(text))
	})
	if err != nil {
		return "", fmt.Errorf("failed to write result cache: %w", err)
	}
	return text, nil
}

func (c *CachedEngine) cacheKey(imagePath string) ([]byte, error) {
	data, err := os.ReadFile(imagePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read image %s: %w", imagePath, err)
	}
	h := sha256.New()
	h.Write([]byte(c.namespace))
	h.Write([]byte{0})
	h.Write(data)
	return []byte(hex.EncodeToString(h.Sum(nil))), nil
}
