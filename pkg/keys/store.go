// Package keys loads the realm's RSA public keys from a key directory and
// serves them by key id.
//
// Every regular file below the base directory (searched recursively) is one
// key. The file's base name is the key id that tokens reference in their
// "kid" header, and the file content is a PEM-style SubjectPublicKeyInfo:
//
//	-----BEGIN PUBLIC KEY-----
//	MIIBIjANBgkqhkiG9w0BAQEFAAOCAQ8AMIIBCgKCAQEA...
//	-----END PUBLIC KEY-----
//
// The header and footer lines are optional; a bare base64 body works too.
//
// A Store is built once by Load and is read-only afterwards, so Lookup can be
// called from any number of goroutines without locking. Use a Ring when keys
// need to be reloaded while serving.
package keys

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"slices"
)

var (
	errNotRSA      = errors.New("not an RSA public key")
	errEmptyKey    = errors.New("empty key material")
	pemBoundary    = regexp.MustCompile(`-+(BEGIN|END) PUBLIC KEY-+`)
	whitespaceRuns = regexp.MustCompile(`\s+`)
)

// Entry is a single trusted public key.
type Entry struct {
	KeyID     string
	PublicKey *rsa.PublicKey
}

// Store maps key ids to entries. It is never modified after Load returns.
type Store struct {
	entries map[string]*Entry
}

type loadResult struct {
	path  string
	entry *Entry
	err   error
}

// Load reads every key file below basePath. Files that cannot be read or
// parsed are logged and left out; if basePath itself cannot be walked the
// returned store is empty.
func Load(basePath string) *Store {
	entries := make(map[string]*Entry)
	for _, result := range scan(basePath) {
		if result.err != nil {
			log.Printf("keys: skipping '%s': %v\n", result.path, result.err)
			continue
		}
		if _, ok := entries[result.entry.KeyID]; ok {
			log.Printf("keys: duplicate key id '%s'; overwriting\n", result.entry.KeyID)
		}
		entries[result.entry.KeyID] = result.entry
	}

	log.Printf("keys: loaded %d keys from %s\n", len(entries), basePath)
	return &Store{entries: entries}
}

// Lookup returns the entry for keyID, if one was loaded.
func (s *Store) Lookup(keyID string) (*Entry, bool) {
	if s == nil {
		return nil, false
	}
	entry, ok := s.entries[keyID]
	return entry, ok
}

// KeyIDs returns the loaded key ids in sorted order.
func (s *Store) KeyIDs() []string {
	if s == nil {
		return nil
	}
	ids := make([]string, 0, len(s.entries))
	for id := range s.entries {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

func (s *Store) Len() int {
	if s == nil {
		return 0
	}
	return len(s.entries)
}

func scan(basePath string) []loadResult {
	var results []loadResult
	err := filepath.WalkDir(basePath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == basePath {
				return err
			}
			results = append(results, loadResult{path: path, err: err})
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if !isRegular(path, d) {
			return nil
		}
		entry, err := loadEntry(path)
		results = append(results, loadResult{path: path, entry: entry, err: err})
		return nil
	})
	if err != nil {
		log.Printf("keys: failed to read key directory '%s': %v\n", basePath, err)
		return nil
	}
	return results
}

// mounted secrets are usually symlinks to regular files
func isRegular(path string, d fs.DirEntry) bool {
	if d.Type().IsRegular() {
		return true
	}
	if d.Type()&fs.ModeSymlink == 0 {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

func loadEntry(path string) (*Entry, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read key file: %w", err)
	}

	publicKey, err := ParsePublicKey(string(content))
	if err != nil {
		return nil, err
	}

	return &Entry{
		KeyID:     filepath.Base(path),
		PublicKey: publicKey,
	}, nil
}

// ParsePublicKey decodes a PEM-style or bare base64 SubjectPublicKeyInfo
// holding an RSA key.
func ParsePublicKey(content string) (*rsa.PublicKey, error) {
	cleaned := pemBoundary.ReplaceAllString(content, "")
	cleaned = whitespaceRuns.ReplaceAllString(cleaned, "")
	if cleaned == "" {
		return nil, errEmptyKey
	}

	der, err := base64.StdEncoding.DecodeString(cleaned)
	if err != nil {
		return nil, fmt.Errorf("invalid base64 encoding: %w", err)
	}

	parsed, err := x509.ParsePKIXPublicKey(der)
	if err != nil {
		return nil, fmt.Errorf("failed to parse public key: %w", err)
	}

	publicKey, ok := parsed.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("%w: got %T", errNotRSA, parsed)
	}
	return publicKey, nil
}

// String is used in log lines.
func (e *Entry) String() string {
	if e == nil || e.PublicKey == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%s (rsa-%d)", e.KeyID, e.PublicKey.N.BitLen())
}
