package downloader

import (
	"context"
	"sync"
	"time"
)

// Caches downloaded files in memory.
type Memory struct {
	mutex sync.Mutex
	cache map[string]memoryEntry

	TimeNow func() time.Time

	// Replaces HTTPGet.
	Fetch func(ctx context.Context, url string, headers map[string]string, options GetOptions) ([]byte, error)
}

type memoryEntry struct {
	data       []byte
	expiration time.Time
}

func NewMemory() *Memory {
	return &Memory{
		cache:   map[string]memoryEntry{},
		TimeNow: time.Now,
		Fetch:   HTTPGet,
	}
}

func (d *Memory) Get(
	ctx context.Context,
	url string,
	headers map[string]string,
	options GetOptions,
) ([]byte, error) {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if options.Cache {
		if entry, ok := d.cache[url]; ok && entry.expiration.After(d.TimeNow()) {
			return entry.data, nil
		}
	}

	body, err := d.Fetch(ctx, url, headers, options)
	if err != nil {
		return nil, err
	}

	if options.Cache {
		d.cache[url] = memoryEntry{
			data:       body,
			expiration: d.TimeNow().Add(options.CacheTTL),
		}
	}

	return body, nil
}
