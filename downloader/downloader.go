// Package downloader fetches static feed archives over HTTP, with
// optional caching.
package downloader

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/pkg/errors"
)

type GetOptions struct {
	// Bodies larger than this are rejected. 0 means no limit.
	MaxSize int

	Timeout  time.Duration
	Cache    bool
	CacheTTL time.Duration
}

// Downloads a file, optionally caching it.
type Downloader interface {
	Get(ctx context.Context, url string, headers map[string]string, options GetOptions) ([]byte, error)
}

// Gets a file without caching.
func HTTPGet(ctx context.Context, url string, headers map[string]string, options GetOptions) ([]byte, error) {
	client := &http.Client{
		Timeout: options.Timeout,
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.Wrap(err, "creating request")
	}

	for k, v := range headers {
		req.Header.Add(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "making request")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("status %d", resp.StatusCode)
	}

	var reader io.Reader = resp.Body
	if options.MaxSize > 0 {
		reader = io.LimitReader(resp.Body, int64(options.MaxSize)+1)
	}

	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, errors.Wrap(err, "reading body")
	}

	if options.MaxSize > 0 && len(body) > options.MaxSize {
		return nil, errors.Errorf("body exceeds %d bytes", options.MaxSize)
	}

	return body, nil
}
