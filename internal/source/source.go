// Package source resolves composite inputs (local paths or http(s)
// URLs) to bytes and turns them into scanline decoders.
package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/jburnhams/image-stitch-sub000/pkg/decode"
)

// Resolver fetches input bytes, optionally memoizing remote fetches in
// an explicit cache supplied by the caller.
type Resolver struct {
	client    *http.Client
	userAgent string
	cache     *decode.Cache
}

// NewResolver creates a resolver. cache may be nil to disable
// memoization.
func NewResolver(userAgent string, cache *decode.Cache) *Resolver {
	return &Resolver{
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		userAgent: userAgent,
		cache:     cache,
	}
}

// Resolve returns the raw bytes of one input, reading a local file or
// fetching a URL.
func (r *Resolver) Resolve(ctx context.Context, input string) ([]byte, error) {
	if strings.HasPrefix(input, "http://") || strings.HasPrefix(input, "https://") {
		return r.fetch(ctx, input)
	}
	data, err := os.ReadFile(input)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", input, err)
	}
	return data, nil
}

// Open resolves an input and wraps it in the decoder matching its
// detected format.
func (r *Resolver) Open(ctx context.Context, input string) (decode.Decoder, error) {
	data, err := r.Resolve(ctx, input)
	if err != nil {
		return nil, err
	}
	dec, err := decode.Open(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", input, err)
	}
	return dec, nil
}

func (r *Resolver) fetch(ctx context.Context, url string) ([]byte, error) {
	if data, ok := r.cache.Get(url); ok {
		return data, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", r.userAgent)

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: HTTP %d: %s", url, resp.StatusCode, resp.Status)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	r.cache.Put(url, data)
	return data, nil
}
