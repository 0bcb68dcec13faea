// Package processed manages the cache of previously compiled tables.
// Matching is metadata-driven: a file satisfies a query when its
// embedded forecast type and table match and its declared window covers
// the requested one, regardless of the file's name.
package processed

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/gridseer/gridseer/internal/compiler"
	"github.com/gridseer/gridseer/internal/domain"
	"github.com/gridseer/gridseer/internal/observability"
)

// Store is the columnar reader/writer used for cache files.
type Store interface {
	Write(path string, f *domain.Frame, meta map[string]string) error
	Read(path string) (*domain.Frame, map[string]string, error)
	ReadMetadata(path string) (map[string]string, error)
}

// Cache scans and populates a processed-cache directory.
type Cache struct {
	dir     string
	store   Store
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewCache opens (or creates) the processed cache at dir.
func NewCache(dir string, store Store, logger *slog.Logger, metrics *observability.Metrics) (*Cache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create processed cache directory: %w", err)
	}
	return &Cache{dir: dir, store: store, logger: logger, metrics: metrics}, nil
}

// Find looks for a cache file whose declared coverage is a superset of
// the query for the given table, loading the first match. Files with
// unreadable or foreign metadata are skipped, so users may keep other
// parquet files in the directory.
func (c *Cache) Find(q domain.Query, table string) (*domain.Frame, bool, error) {
	paths, err := filepath.Glob(filepath.Join(c.dir, "*.parquet"))
	if err != nil {
		return nil, false, fmt.Errorf("scan processed cache: %w", err)
	}

	for _, path := range paths {
		meta, err := c.store.ReadMetadata(path)
		if err != nil {
			c.logger.Warn("skipping unreadable processed cache file", "path", path, "error", err)
			continue
		}
		if meta[compiler.MetaForecastType] != string(q.ForecastType) || meta[compiler.MetaTable] != table {
			continue
		}
		declared, err := windowFromMetadata(meta)
		if err != nil {
			c.logger.Warn("skipping processed cache file with malformed coverage", "path", path, "error", err)
			continue
		}
		if !declared.Covers(q.Window) {
			continue
		}

		frame, _, err := c.store.Read(path)
		if err != nil {
			return nil, false, fmt.Errorf("load processed cache file %s: %w", path, err)
		}
		c.metrics.ProcessedCacheLookups.WithLabelValues("hit").Inc()
		c.logger.Info("query satisfied from processed cache", "table", table, "path", path)
		return frame, true, nil
	}

	c.metrics.ProcessedCacheLookups.WithLabelValues("miss").Inc()
	return nil, false, nil
}

// Save persists a compiled result with its coverage metadata. The
// filename is derived from the query so recompiling an identical query
// supersedes the prior file rather than accumulating copies.
func (c *Cache) Save(res *compiler.Result) error {
	name := fmt.Sprintf("%s_%s_%s.parquet",
		res.Metadata[compiler.MetaForecastType],
		res.Table,
		windowStamp(res.Metadata),
	)
	path := filepath.Join(c.dir, name)
	if err := c.store.Write(path, res.Frame, res.Metadata); err != nil {
		return fmt.Errorf("write processed cache file %s: %w", path, err)
	}
	c.logger.Info("saved compiled result to processed cache", "table", res.Table, "path", path)
	return nil
}

func windowFromMetadata(meta map[string]string) (domain.Window, error) {
	var w domain.Window
	var err error
	if w.RunStart, err = domain.ParseDateTime(compiler.MetaRunStart, meta[compiler.MetaRunStart]); err != nil {
		return w, err
	}
	if w.RunEnd, err = domain.ParseDateTime(compiler.MetaRunEnd, meta[compiler.MetaRunEnd]); err != nil {
		return w, err
	}
	if w.ForecastedStart, err = domain.ParseDateTime(compiler.MetaForecastedStart, meta[compiler.MetaForecastedStart]); err != nil {
		return w, err
	}
	if w.ForecastedEnd, err = domain.ParseDateTime(compiler.MetaForecastedEnd, meta[compiler.MetaForecastedEnd]); err != nil {
		return w, err
	}
	return w, nil
}

func windowStamp(meta map[string]string) string {
	stamp := func(key string) string {
		t, err := domain.ParseDateTime(key, meta[key])
		if err != nil {
			return "unknown"
		}
		return t.Format("200601021504")
	}
	return fmt.Sprintf("%s-%s_%s-%s",
		stamp(compiler.MetaRunStart), stamp(compiler.MetaRunEnd),
		stamp(compiler.MetaForecastedStart), stamp(compiler.MetaForecastedEnd))
}
