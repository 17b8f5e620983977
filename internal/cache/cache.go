// Package cache implements the on-disk record cache shared with the
// sso-login command-line tool.
//
// Records are JSON files named "{kind}-{key}.json" inside a per-user cache
// directory. The key is derived from the authorization request (see NewKey)
// so that independent processes asking for the same thing find each other's
// records. The file format and key scheme are a compatibility contract:
// changing either silently orphans every existing sign-in.
package cache

import (
	"crypto/md5"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"
)

// expiryBuffer is the margin applied when checking record expiry.
// This accounts for clock skew and for the time the caller spends using the
// record after loading it.
const expiryBuffer = 60 * time.Second

// Key identifies a cache record lineage derived from request parameters.
type Key string

// NewKey derives the cache key for an authorization request.
//
// The canonical serialization hashes the region, start URL and sorted scopes
// (each terminated with a 0xff byte, which cannot appear in UTF-8 text) with
// MD5, folds the digest to 64 bits by XORing its big-endian halves, and
// formats the result as lowercase hex. Identical inputs always produce the
// identical key; scope order does not matter.
func NewKey(region, startURL string, scopes []string) Key {
	h := md5.New()
	writeField := func(s string) {
		h.Write([]byte(s))
		h.Write([]byte{0xff})
	}

	writeField(region)
	writeField(startURL)

	sorted := append([]string(nil), scopes...)
	sort.Strings(sorted)
	for _, scope := range sorted {
		writeField(scope)
	}

	digest := h.Sum(nil)
	folded := binary.BigEndian.Uint64(digest[:8]) ^ binary.BigEndian.Uint64(digest[8:])
	return Key(strconv.FormatUint(folded, 16))
}

// Expirer is implemented by record types that carry an absolute expiry.
type Expirer interface {
	Expiry() time.Time
}

// Store reads and writes expiring JSON records in a single directory.
//
// A Store with an empty directory is valid and behaves as if every record is
// missing; loads always miss and stores are no-ops. This mirrors the
// behaviour on platforms where no user cache directory can be determined.
type Store struct {
	dir    string
	logger *slog.Logger
}

// NewStore creates a store rooted at dir. The directory is created lazily on
// first write, not here, so constructing a store never touches the disk.
func NewStore(dir string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{dir: dir, logger: logger}
}

// Dir returns the directory the store reads and writes.
func (s *Store) Dir() string {
	return s.dir
}

// Load reads the record of the given kind for key into v.
//
// Any failure to produce a usable record (missing file, unreadable file,
// malformed JSON, expired record) is reported as a miss by returning false.
// Expired records are left on disk; other tools sharing the cache may still
// want to inspect them.
func (s *Store) Load(kind string, key Key, v Expirer) bool {
	if s.dir == "" {
		return false
	}

	path := s.path(kind, key)
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Debug("unreadable cache record treated as miss", "path", path, "error", err)
		}
		return false
	}

	if err := json.Unmarshal(data, v); err != nil {
		s.logger.Debug("corrupt cache record treated as miss", "path", path, "error", err)
		return false
	}

	now := time.Now()
	if exp := v.Expiry(); !now.Add(expiryBuffer).Before(exp) {
		s.logger.Debug("expired cache record treated as miss", "path", path, "expires_at", exp)
		return false
	}

	return true
}

// Store writes the record of the given kind for key.
//
// The record is written to a temporary file in the same directory and renamed
// into place, so a crash mid-write never corrupts a previously valid record.
// A reader racing with the write observes either the old or the new content,
// never a mixture.
func (s *Store) Store(kind string, key Key, v Expirer) error {
	if s.dir == "" {
		return nil
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s record: %w", kind, err)
	}

	if err := os.MkdirAll(s.dir, 0700); err != nil {
		return fmt.Errorf("create cache directory %s: %w", s.dir, err)
	}

	tmp, err := os.CreateTemp(s.dir, kind+"-*.tmp")
	if err != nil {
		return fmt.Errorf("create temporary cache file in %s: %w", s.dir, err)
	}
	defer os.Remove(tmp.Name())

	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		return fmt.Errorf("restrict cache file permissions: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write cache record: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write cache record: %w", err)
	}

	path := s.path(kind, key)
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace cache record %s: %w", path, err)
	}

	return nil
}

func (s *Store) path(kind string, key Key) string {
	return filepath.Join(s.dir, fmt.Sprintf("%s-%s.json", kind, key))
}

// DefaultDir returns the default cache directory, namespaced by the client
// name so that incompatible future formats can live side by side. Returns ""
// if no user cache directory can be determined.
func DefaultDir(clientName string) string {
	base, err := os.UserCacheDir()
	if err != nil {
		return ""
	}
	return filepath.Join(base, clientName)
}
