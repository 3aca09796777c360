package artifactstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// HTTPRemote talks to an S3/Supabase-storage-style object endpoint over
// plain HTTP PUT/GET/HEAD, keyed by URL path. It is intentionally generic
// so any bucket-style object store reachable over HTTP can sit behind it.
type HTTPRemote struct {
	baseURL string
	client  *http.Client
}

func NewHTTPRemote(baseURL string) *HTTPRemote {
	return &HTTPRemote{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

func (r *HTTPRemote) objectURL(key string) string {
	return r.baseURL + "/" + url.PathEscape(key)
}

func (r *HTTPRemote) Put(ctx context.Context, key string, data []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, r.objectURL(key), bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	resp, err := r.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("remote put %s: status %d", key, resp.StatusCode)
	}
	return nil
}

func (r *HTTPRemote) Get(ctx context.Context, key string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.objectURL(key), nil)
	if err != nil {
		return nil, err
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("remote get %s: not found", key)
	}
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("remote get %s: status %d", key, resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

func (r *HTTPRemote) Exists(ctx context.Context, key string) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, r.objectURL(key), nil)
	if err != nil {
		return false, err
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK, nil
}

// List is not supported by the generic HTTP remote; callers should rely on
// the local-disk fallback or a store-specific listing endpoint. Returning
// an error here is what triggers the Store's fallback-to-local behavior.
func (r *HTTPRemote) List(ctx context.Context, prefix string) ([]string, error) {
	return nil, fmt.Errorf("remote list not supported")
}
