package config

import (
	"bytes"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/mozilla-ai/mcporch/internal/domain"
	"github.com/mozilla-ai/mcporch/internal/perms"
)

// FileStore persists server descriptors as a JSON object keyed by server name.
// NewFileStore should be used to create instances of FileStore.
type FileStore struct {
	path string

	mu sync.Mutex

	// digest is the checksum of the content last read or written by this store.
	digest [sha256.Size]byte
}

// NewFileStore returns a store backed by the JSON file at path.
func NewFileStore(path string) (*FileStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("%w: servers file path cannot be empty", ErrConfigLoadFailed)
	}

	return &FileStore{path: path}, nil
}

// Path returns the location of the servers file.
func (s *FileStore) Path() string {
	return s.path
}

// Init writes the given descriptors to a new servers file.
// It fails if the file already exists.
func (s *FileStore) Init(servers []domain.ServerDescriptor) error {
	if _, err := os.Stat(s.path); err == nil {
		return fmt.Errorf("%s already exists", s.path)
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("failed to stat %s: %w", s.path, err)
	}

	return s.Save(servers)
}

// Load reads, resolves and validates every descriptor in the servers file.
// Placeholders are resolved from the process environment.
// All invalid entries are reported together.
func (s *FileStore) Load() ([]domain.ServerDescriptor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: servers file cannot be found (%s), run: 'mcporch init'", ErrConfigLoadFailed, s.path)
		}
		return nil, fmt.Errorf("%w: failed to read servers file (%s): %w", ErrConfigLoadFailed, s.path, err)
	}

	servers, err := DecodeServers(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrConfigLoadFailed, s.path, err)
	}

	s.digest = sha256.Sum256(data)

	return servers, nil
}

// Save atomically replaces the servers file with the given descriptors.
// The file is written to a temporary sibling and renamed into place.
func (s *FileStore) Save(servers []domain.ServerDescriptor) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := EncodeServers(servers)
	if err != nil {
		return err
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temporary servers file in %s: %w", dir, err)
	}
	tmpName := tmp.Name()

	cleanup := func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}

	if err := tmp.Chmod(fileMode(servers)); err != nil {
		cleanup()
		return fmt.Errorf("failed to set permissions on %s: %w", tmpName, err)
	}
	if _, err := tmp.Write(data); err != nil {
		cleanup()
		return fmt.Errorf("failed to write %s: %w", tmpName, err)
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return fmt.Errorf("failed to sync %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to close %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to replace %s: %w", s.path, err)
	}

	s.digest = sha256.Sum256(data)

	return nil
}

// Changed reports whether the file on disk differs from what this store last read or wrote.
func (s *FileStore) Changed() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		return false, err
	}

	return sha256.Sum256(data) != s.digest, nil
}

// fileMode returns SecureFile when any descriptor carries environment values, RegularFile otherwise.
func fileMode(servers []domain.ServerDescriptor) os.FileMode {
	if slices.ContainsFunc(servers, func(d domain.ServerDescriptor) bool { return len(d.Env) > 0 }) {
		return perms.SecureFile
	}
	return perms.RegularFile
}

// DecodeServers parses the JSON servers document.
// Each key must match the entry's name (an empty name takes the key), and enabled defaults to true.
func DecodeServers(data []byte) ([]domain.ServerDescriptor, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return []domain.ServerDescriptor{}, nil
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode servers: %w", err)
	}

	var errs []error
	servers := make([]domain.ServerDescriptor, 0, len(raw))

	for key, msg := range raw {
		d := domain.ServerDescriptor{Enabled: true}
		if err := json.Unmarshal(msg, &d); err != nil {
			errs = append(errs, fmt.Errorf("server '%s': %w", key, err))
			continue
		}

		if strings.TrimSpace(d.Name) == "" {
			d.Name = key
		}
		if d.Name != key {
			errs = append(errs, fmt.Errorf("server key '%s' does not match name '%s'", key, d.Name))
			continue
		}

		prepared, err := PrepareDescriptor(d)
		if err != nil {
			errs = append(errs, err)
			continue
		}

		servers = append(servers, prepared)
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	slices.SortFunc(servers, func(a, b domain.ServerDescriptor) int {
		return strings.Compare(a.Name, b.Name)
	})

	return servers, nil
}

// PrepareDescriptor normalizes d, resolves its placeholders from the process environment and validates the result.
func PrepareDescriptor(d domain.ServerDescriptor) (domain.ServerDescriptor, error) {
	resolved, err := ResolveDescriptor(d.Normalize())
	if err != nil {
		return domain.ServerDescriptor{}, err
	}

	if err := resolved.Validate(); err != nil {
		return domain.ServerDescriptor{}, err
	}

	return resolved, nil
}

// EncodeServers renders descriptors as the JSON servers document.
func EncodeServers(servers []domain.ServerDescriptor) ([]byte, error) {
	doc := make(map[string]domain.ServerDescriptor, len(servers))
	for _, d := range servers {
		if _, exists := doc[d.Name]; exists {
			return nil, fmt.Errorf("duplicate server '%s'", d.Name)
		}
		doc[d.Name] = d
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode servers: %w", err)
	}

	return append(data, '\n'), nil
}
