package probe

import (
	"context"
	"encoding/hex"
	"os"
	"strconv"

	"golang.org/x/crypto/blake2b"

	"media-converter/internal/logging"
	"media-converter/internal/media"
	"media-converter/internal/metrics"
)

// Store persists probe results between runs.
type Store interface {
	GetProbe(ctx context.Context, key string) (*media.MediaInfo, bool, error)
	PutProbe(ctx context.Context, key, path string, info *media.MediaInfo) error
}

// CachedProber serves repeat probes of an unchanged file from a Store.
// Store failures are logged and never fail the probe itself.
type CachedProber struct {
	prober Prober
	store  Store
}

// NewCachedProber wraps prober with store.
func NewCachedProber(prober Prober, store Store) *CachedProber {
	return &CachedProber{prober: prober, store: store}
}

// Probe returns cached metadata when the file's path, size and modification
// time match a stored entry, and probes otherwise.
func (c *CachedProber) Probe(ctx context.Context, path string) (*media.MediaInfo, error) {
	fi, err := os.Stat(path)
	if err != nil || c.store == nil {
		return c.prober.Probe(ctx, path)
	}

	key := CacheKey(path, fi)
	if info, ok, err := c.store.GetProbe(ctx, key); err != nil {
		logging.Warn("Probe cache lookup failed for %s: %v", path, err)
	} else if ok {
		metrics.ProbeCacheHits.Inc()
		logging.Debug("Probe cache hit for %s", path)
		info.Path = path
		return info, nil
	}
	metrics.ProbeCacheMisses.Inc()

	info, err := c.prober.Probe(ctx, path)
	if err != nil {
		return nil, err
	}

	if err := c.store.PutProbe(ctx, key, path, info); err != nil {
		logging.Warn("Failed to cache probe result for %s: %v", path, err)
	}
	return info, nil
}

// CacheKey derives the cache key for a file. Any change in size or
// modification time produces a new key.
func CacheKey(path string, fi os.FileInfo) string {
	h, _ := blake2b.New256(nil)
	h.Write([]byte(path))
	h.Write([]byte{0})
	h.Write([]byte(strconv.FormatInt(fi.Size(), 10)))
	h.Write([]byte{0})
	h.Write([]byte(strconv.FormatInt(fi.ModTime().UnixNano(), 10)))
	return hex.EncodeToString(h.Sum(nil))
}
