package downloader

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/pkg/errors"

	"tidbyt.dev/tripsplit/internal/logging"
)

// Caches downloads as files in a directory, one per URL. A file's
// modification time is when it was retrieved.
type Filesystem struct {
	Dir    string
	Logger *slog.Logger

	TimeNow func() time.Time

	mutex sync.Mutex
}

func NewFilesystem(dir string, logger *slog.Logger) (*Filesystem, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errors.Wrapf(err, "creating cache directory %s", dir)
	}
	if logger == nil {
		logger = logging.Nop()
	}
	return &Filesystem{
		Dir:     dir,
		Logger:  logger,
		TimeNow: time.Now,
	}, nil
}

func (f *Filesystem) path(url string) string {
	sum := sha256.Sum256([]byte(url))
	return filepath.Join(f.Dir, hex.EncodeToString(sum[:])+".zip")
}

func (f *Filesystem) Get(
	ctx context.Context,
	url string,
	headers map[string]string,
	options GetOptions,
) ([]byte, error) {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	path := f.path(url)

	if options.Cache {
		info, err := os.Stat(path)
		switch {
		case err == nil && info.ModTime().Add(options.CacheTTL).After(f.TimeNow()):
			body, err := os.ReadFile(path)
			if err != nil {
				return nil, errors.Wrap(err, "reading cached file")
			}
			f.Logger.Debug("cache_hit", slog.String("url", url), slog.String("path", path))
			return body, nil
		case err == nil:
			f.Logger.Debug("cache_expired", slog.String("url", url), slog.Time("retrieved_at", info.ModTime()))
		case !os.IsNotExist(err):
			return nil, errors.Wrap(err, "checking cache")
		}
	}

	start := time.Now()
	body, err := HTTPGet(ctx, url, headers, options)
	if err != nil {
		return nil, errors.Wrap(err, "http get")
	}
	logging.LogOperation(f.Logger, "download_complete",
		slog.String("url", url),
		slog.Int("bytes", len(body)),
		slog.Duration("duration", time.Since(start)),
	)

	if options.Cache {
		if err := f.save(path, body); err != nil {
			return nil, err
		}
	}

	return body, nil
}

// Writes through a temp file so readers never see a partial archive.
func (f *Filesystem) save(path string, body []byte) error {
	tmp, err := os.CreateTemp(f.Dir, "download-*")
	if err != nil {
		return errors.Wrap(err, "creating temp file")
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(body); err != nil {
		tmp.Close()
		return errors.Wrap(err, "writing temp file")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "closing temp file")
	}

	now := f.TimeNow()
	if err := os.Chtimes(tmp.Name(), now, now); err != nil {
		return errors.Wrap(err, "setting retrieval time")
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		return errors.Wrap(err, "saving")
	}
	return nil
}
