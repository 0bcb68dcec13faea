package rawcache

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// invalidRecordName lives inside the raw cache directory and lists the
// base names of archives known to be corrupt or absent upstream, one
// per line. Consulting it avoids re-fetching archives that can never
// resolve.
const invalidRecordName = ".invalid_aemo_files.txt"

// InvalidRecord is the persistent append-only quarantine list. Writes
// are flushed immediately so entries survive a crash mid-run.
type InvalidRecord struct {
	path string

	mu    sync.Mutex
	names map[string]bool
}

// OpenInvalidRecord loads the quarantine list from dir, creating an
// empty one when none exists yet.
func OpenInvalidRecord(dir string) (*InvalidRecord, error) {
	r := &InvalidRecord{
		path:  filepath.Join(dir, invalidRecordName),
		names: make(map[string]bool),
	}

	f, err := os.Open(r.path)
	if os.IsNotExist(err) {
		return r, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open invalid-file record: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		name := strings.TrimSpace(scanner.Text())
		if name != "" {
			r.names[name] = true
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read invalid-file record: %w", err)
	}
	return r, nil
}

// Contains reports whether the archive base name is quarantined.
func (r *InvalidRecord) Contains(baseName string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.names[baseName]
}

// Add quarantines an archive base name, appending it to the on-disk
// record. Adding a name twice is a no-op.
func (r *InvalidRecord) Add(baseName string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.names[baseName] {
		return nil
	}

	f, err := os.OpenFile(r.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open invalid-file record: %w", err)
	}
	defer f.Close()

	if _, err := fmt.Fprintln(f, baseName); err != nil {
		return fmt.Errorf("append to invalid-file record: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("flush invalid-file record: %w", err)
	}

	r.names[baseName] = true
	return nil
}
