// Package datafile manages the append-only per-site CSV files.
package datafile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Directory names under the data base path
const (
	ArchiveDir = "archive"
	TimingDir  = "curl-data"
	LCPDir     = "lcp-data"
)

// Headers written once when a data file is created
const (
	TimingHeader = "timestamp,name_lookup_time,connection_time,handshake_time,sever_processing_time,content_transfer_time"
	LCPHeader    = "timestamp,lcp_time"
)

// Kind identifies which metric a data file holds
type Kind int

const (
	KindTiming Kind = iota
	KindLCP
)

func (k Kind) String() string {
	switch k {
	case KindTiming:
		return "timing"
	case KindLCP:
		return "lcp"
	default:
		return "unknown"
	}
}

func (k Kind) dir() string {
	if k == KindLCP {
		return LCPDir
	}
	return TimingDir
}

func (k Kind) header() string {
	if k == KindLCP {
		return LCPHeader
	}
	return TimingHeader
}

// Store resolves data file paths under a base directory
type Store struct {
	baseDir string
	mu      sync.Mutex
}

// NewStore creates a store rooted at baseDir
func NewStore(baseDir string) *Store {
	if baseDir == "" {
		baseDir = "."
	}
	return &Store{baseDir: baseDir}
}

// BaseDir returns the root of the store
func (s *Store) BaseDir() string {
	return s.baseDir
}

// Path returns the CSV path for a site key and kind
func (s *Store) Path(kind Kind, key string) string {
	return filepath.Join(s.baseDir, kind.dir(), key+".csv")
}

// ArchivePath returns where the fetch utility stores the downloaded page
func (s *Store) ArchivePath(key string) string {
	return filepath.Join(s.baseDir, ArchiveDir, key+".txt")
}

// EnsureArchiveDir creates the archive directory if it does not exist
func (s *Store) EnsureArchiveDir() error {
	if err := os.MkdirAll(filepath.Join(s.baseDir, ArchiveDir), 0755); err != nil {
		return fmt.Errorf("failed to create archive directory: %w", err)
	}
	return nil
}

// Open returns the path of the data file for key, creating it with its
// header if it does not exist yet. Calling Open repeatedly never writes the
// header twice.
func (s *Store) Open(kind Kind, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.Path(kind, key)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("failed to create %s data directory: %w", kind, err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if errors.Is(err, os.ErrExist) {
		return path, nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to create %s data file: %w", kind, err)
	}
	defer f.Close()

	if _, err := f.WriteString(kind.header() + "\n"); err != nil {
		return "", fmt.Errorf("failed to write %s header: %w", kind, err)
	}
	return path, nil
}

// Append opens the data file for key and appends one row to it
func (s *Store) Append(kind Kind, key, row string) error {
	path, err := s.Open(kind, key)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open %s data file: %w", kind, err)
	}

	if _, err := f.WriteString(row); err != nil {
		f.Close()
		return fmt.Errorf("failed to append %s row: %w", kind, err)
	}
	return f.Close()
}
