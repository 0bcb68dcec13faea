// Package rawcache maintains the local normalized copy of monthly AEMO
// archives. Each archive resolves to exactly one parquet file named
// after the archive stem; a quarantine list records archives known to
// be corrupt or missing upstream.
package rawcache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"github.com/gridseer/gridseer/internal/config"
	"github.com/gridseer/gridseer/internal/domain"
	"github.com/gridseer/gridseer/internal/observability"
)

// Fetcher downloads one monthly archive and extracts its CSV into
// destDir, returning the CSV path.
type Fetcher interface {
	FetchArchive(ctx context.Context, id domain.ArchiveID, destDir string) (string, error)
}

// Store writes and reads normalized frames in the cache format.
type Store interface {
	Write(path string, f *domain.Frame, meta map[string]string) error
	Read(path string) (*domain.Frame, map[string]string, error)
}

// ResolvedArchive is a locally available normalized archive.
type ResolvedArchive struct {
	ID   domain.ArchiveID
	Path string
}

// Manager ensures requested monthly archives exist in the raw cache,
// downloading and normalizing the ones that are absent.
type Manager struct {
	dir     string
	fetcher Fetcher
	store   Store
	tables  *config.Tables
	invalid *InvalidRecord
	workers int
	keepCSV bool
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewManager opens (or creates) the raw cache at dir.
func NewManager(dir string, fetcher Fetcher, store Store, tables *config.Tables, workers int, keepCSV bool, logger *slog.Logger, metrics *observability.Metrics) (*Manager, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create raw cache directory: %w", err)
	}
	invalid, err := OpenInvalidRecord(dir)
	if err != nil {
		return nil, err
	}
	if workers < 1 {
		workers = 1
	}
	return &Manager{
		dir:     dir,
		fetcher: fetcher,
		store:   store,
		tables:  tables,
		invalid: invalid,
		workers: workers,
		keepCSV: keepCSV,
		logger:  logger,
		metrics: metrics,
	}, nil
}

// Path returns the cache file for an archive.
func (m *Manager) Path(id domain.ArchiveID) string {
	return filepath.Join(m.dir, id.BaseName()+".parquet")
}

// Read loads a normalized archive from the cache.
func (m *Manager) Read(id domain.ArchiveID) (*domain.Frame, error) {
	frame, _, err := m.store.Read(m.Path(id))
	if err != nil {
		return nil, fmt.Errorf("read raw cache entry %s: %w", id.BaseName(), err)
	}
	return frame, nil
}

// Ensure makes the requested archives locally available, fetching and
// normalizing absent ones in parallel. Archives that cannot resolve
// (missing or corrupt upstream, or already quarantined) are skipped
// with a warning; the returned set preserves request order and may be
// a strict subset of the request. Only cache I/O failures abort.
func (m *Manager) Ensure(ctx context.Context, ids []domain.ArchiveID) ([]ResolvedArchive, error) {
	ids = dedupeIDs(ids)

	resolved := make([]ResolvedArchive, len(ids))
	ok := make([]bool, len(ids))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(m.workers)
	for i, id := range ids {
		g.Go(func() error {
			path, present, err := m.ensureOne(ctx, id)
			if err != nil {
				return err
			}
			if present {
				resolved[i] = ResolvedArchive{ID: id, Path: path}
				ok[i] = true
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]ResolvedArchive, 0, len(ids))
	for i := range ids {
		if ok[i] {
			out = append(out, resolved[i])
		}
	}
	return out, nil
}

func (m *Manager) ensureOne(ctx context.Context, id domain.ArchiveID) (string, bool, error) {
	path := m.Path(id)
	if _, err := os.Stat(path); err == nil {
		m.metrics.RawCacheLookups.WithLabelValues("hit").Inc()
		return path, true, nil
	}
	m.metrics.RawCacheLookups.WithLabelValues("miss").Inc()

	base := id.BaseName()
	if m.invalid.Contains(base) {
		m.metrics.RawCacheLookups.WithLabelValues("invalid").Inc()
		m.logger.Warn("skipping quarantined archive", "archive", base)
		return "", false, nil
	}

	csvPath, err := m.fetcher.FetchArchive(ctx, id, m.dir)
	switch {
	case errors.Is(err, domain.ErrArchiveNotFound), errors.Is(err, domain.ErrArchiveCorrupt):
		m.logger.Warn("archive unavailable upstream, quarantining", "archive", base, "error", err)
		if qerr := m.invalid.Add(base); qerr != nil {
			return "", false, qerr
		}
		return "", false, nil
	case err != nil:
		// Transient failure after retry exhaustion: a coverage gap for
		// this month, not a reason to quarantine or abort.
		m.logger.Warn("archive fetch failed", "archive", base, "error", err)
		return "", false, nil
	}

	frame, err := CleanCSV(csvPath, m.tables, m.logger)
	if err != nil {
		m.logger.Warn("archive content malformed, quarantining", "archive", base, "error", err)
		if qerr := m.invalid.Add(base); qerr != nil {
			return "", false, qerr
		}
		os.Remove(csvPath)
		return "", false, nil
	}

	if err := m.store.Write(path, frame, nil); err != nil {
		return "", false, fmt.Errorf("write raw cache entry %s: %w", base, err)
	}

	if !m.keepCSV {
		if err := os.Remove(csvPath); err != nil {
			m.logger.Warn("could not remove downloaded csv", "path", csvPath, "error", err)
		}
	}

	m.logger.Info("normalized archive into raw cache", "archive", base, "rows", frame.NumRows())
	return path, true, nil
}

func dedupeIDs(ids []domain.ArchiveID) []domain.ArchiveID {
	seen := make(map[domain.ArchiveID]bool, len(ids))
	out := make([]domain.ArchiveID, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
