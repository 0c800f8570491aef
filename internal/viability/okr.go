package viability

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
)

// DocLoader fetches the current objectives document from its backing store.
type DocLoader func(ctx context.Context) (string, error)

// FileDocLoader reads the objectives document from a path on disk.
func FileDocLoader(path string) DocLoader {
	return func(ctx context.Context) (string, error) {
		b, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("read objectives document: %w", err)
		}
		doc := strings.TrimSpace(string(b))
		if doc == "" {
			return "", errors.New("objectives document is empty")
		}
		return doc, nil
	}
}

// DocCache holds the objectives document for the alignment branch. The
// document is loaded lazily on first use and kept until Invalidate. Loads
// and reads are safe across concurrent analyses; only one loader call runs
// at a time.
type DocCache struct {
	load DocLoader

	mu     sync.RWMutex
	doc    string
	loaded bool
}

func NewDocCache(load DocLoader) *DocCache {
	return &DocCache{load: load}
}

// Load returns the cached document, fetching it on a cold cache. A load
// failure leaves the cache cold so the next call retries.
func (c *DocCache) Load(ctx context.Context) (string, error) {
	c.mu.RLock()
	if c.loaded {
		doc := c.doc
		c.mu.RUnlock()
		return doc, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.loaded {
		return c.doc, nil
	}
	doc, err := c.load(ctx)
	if err != nil {
		return "", err
	}
	c.doc = doc
	c.loaded = true
	return doc, nil
}

// Invalidate drops the cached document. The next Load fetches fresh.
func (c *DocCache) Invalidate() {
	c.mu.Lock()
	c.doc = ""
	c.loaded = false
	c.mu.Unlock()
}

// Cached reports whether a document is currently held.
func (c *DocCache) Cached() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loaded
}
