// Package assetcache is the local content cache for downloaded node
// assets. Entries are keyed per consuming node: the same remote object
// fetched for two different nodes is stored twice. That is deliberate —
// cache hits never cross node boundaries.
package assetcache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Cache stores downloaded assets under a single directory. The directory
// is shared, unlocked, across concurrent executor runs; a duplicate
// concurrent write for the same (node, url) is an idempotent overwrite.
type Cache struct {
	dir string
}

func New(dir string) *Cache {
	return &Cache{dir: dir}
}

// Dir returns the cache directory.
func (c *Cache) Dir() string {
	return c.dir
}

// Key builds the deterministic cache file name for (nodeID, url): the
// node id, a digest of the url, and the url's file extension if any.
func (c *Cache) Key(nodeID, url string) string {
	sum := sha256.Sum256([]byte(url))
	name := nodeID + "-" + hex.EncodeToString(sum[:])
	if ext := urlExtension(url); ext != "" {
		name += ext
	}
	return name
}

// Path returns the local path for (nodeID, url) if the entry exists. It
// is a pure existence check and never touches the network.
func (c *Cache) Path(nodeID, url string) (string, bool) {
	p := filepath.Join(c.dir, c.Key(nodeID, url))
	info, err := os.Stat(p)
	if err != nil || info.IsDir() {
		return "", false
	}
	return p, true
}

// Save writes data for (nodeID, url) and returns the resulting path. The
// cache directory is created lazily on first save.
func (c *Cache) Save(nodeID, url string, data []byte) (string, error) {
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return "", fmt.Errorf("create cache dir: %w", err)
	}
	p := filepath.Join(c.dir, c.Key(nodeID, url))
	if err := os.WriteFile(p, data, 0o644); err != nil {
		return "", fmt.Errorf("write cache entry: %w", err)
	}
	return p, nil
}

// urlExtension extracts the file extension from the url path, ignoring
// any query string.
func urlExtension(url string) string {
	path := url
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	ext := filepath.Ext(path)
	if strings.ContainsAny(ext, "/\\") {
		return ""
	}
	return ext
}
