// Package objectstore moves asset bytes between the remote object service
// and the local asset cache.
package objectstore

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/jiki-education/video-production-sub000/pkg/infra/assetcache"
	"github.com/jiki-education/video-production-sub000/pkg/infra/logger"
	"github.com/jiki-education/video-production-sub000/pkg/pipeline"
)

// Config identifies the remote object service.
type Config struct {
	// Scheme is http or https.
	Scheme string
	// ServiceDomain is the object service host, e.g. storage.example.com.
	ServiceDomain string
	// Container is the default container for uploads.
	Container string
}

// Client downloads and uploads remote objects, backed by the local asset
// cache on the download side.
type Client struct {
	cfg        Config
	cache      *assetcache.Cache
	httpClient *http.Client
}

func NewClient(cfg Config, cache *assetcache.Cache) *Client {
	if cfg.Scheme == "" {
		cfg.Scheme = "https"
	}
	return &Client{
		cfg:   cfg,
		cache: cache,
		httpClient: &http.Client{
			Timeout: 30 * time.Minute,
		},
	}
}

// SetHTTPClient overrides the HTTP client, primarily for tests.
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

// ObjectURL builds the resolvable path-style URL for a key in the default
// container.
func (c *Client) ObjectURL(key string) string {
	return fmt.Sprintf("%s://%s/%s/%s", c.cfg.Scheme, c.cfg.ServiceDomain, c.cfg.Container, key)
}

// DownloadAsset fetches the object behind url into the local cache for
// nodeID and returns the local path. The cache is consulted first; a hit
// costs no network access. The returned file is always fully materialized
// on disk before this returns — downstream byte-range consumers depend on
// a complete, seekable file.
func (c *Client) DownloadAsset(ctx context.Context, nodeID, url string) (string, error) {
	if p, ok := c.cache.Path(nodeID, url); ok {
		logger.WithContext(ctx).Debug("asset cache hit", "node", nodeID, "path", p)
		return p, nil
	}

	ref, err := ParseObjectURL(url, c.cfg.ServiceDomain)
	if err != nil {
		return "", err
	}

	fetchURL := fmt.Sprintf("%s://%s/%s/%s", c.cfg.Scheme, c.cfg.ServiceDomain, ref.Container, ref.Key)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fetchURL, nil)
	if err != nil {
		return "", pipeline.WrapError(err, pipeline.ErrCodeTransfer, "create download request")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", pipeline.WrapError(err, pipeline.ErrCodeTransfer, "download %s/%s", ref.Container, ref.Key)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", pipeline.NewError(pipeline.ErrCodeTransfer,
			"download %s/%s: status %d, body: %s", ref.Container, ref.Key, resp.StatusCode, string(body))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", pipeline.WrapError(err, pipeline.ErrCodeTransfer, "read object body")
	}

	path, err := c.cache.Save(nodeID, url, data)
	if err != nil {
		return "", err
	}

	logger.WithContext(ctx).Debug("asset downloaded",
		"node", nodeID, "container", ref.Container, "key", ref.Key, "size", len(data))
	return path, nil
}

// UploadResult is what an upload produces: the generated key is what gets
// persisted; the URL is a resolvable convenience.
type UploadResult struct {
	URL string
	Key string
}

// UploadAsset streams localPath to the object service under a key
// namespaced pipelineID/nodeID/<uuid><ext>. A fresh uuid per call means a
// key is never reused, so an upload can never overwrite a previous
// artifact.
func (c *Client) UploadAsset(ctx context.Context, localPath, pipelineID, nodeID string) (*UploadResult, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return nil, pipeline.WrapError(err, pipeline.ErrCodeTransfer, "open upload file")
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, pipeline.WrapError(err, pipeline.ErrCodeTransfer, "stat upload file")
	}

	key := fmt.Sprintf("%s/%s/%s%s", pipelineID, nodeID, uuid.New().String(), filepath.Ext(localPath))
	uploadURL := c.ObjectURL(key)

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, uploadURL, f)
	if err != nil {
		return nil, pipeline.WrapError(err, pipeline.ErrCodeTransfer, "create upload request")
	}
	req.ContentLength = info.Size()
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, pipeline.WrapError(err, pipeline.ErrCodeTransfer, "upload %s", key)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, pipeline.NewError(pipeline.ErrCodeTransfer,
			"upload %s: status %d, body: %s", key, resp.StatusCode, string(body))
	}

	logger.WithContext(ctx).Info("asset uploaded", "key", key, "size", info.Size())
	return &UploadResult{URL: uploadURL, Key: key}, nil
}
