// Package dirstore keeps one directory per entity under a base directory,
// holding JSON documents and append-only JSONL files.
package dirstore

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sync"
)

// ErrNotFound is returned when a document does not exist.
var ErrNotFound = errors.New("dirstore: not found")

// Store serializes writes per base directory.
type Store struct {
	mu      sync.RWMutex
	baseDir string
	entity  string // for error messages: "thread", "session"
}

// New creates a Store rooted at baseDir.
func New(baseDir, entity string) *Store {
	return &Store{baseDir: baseDir, entity: entity}
}

// BaseDir returns the root directory.
func (s *Store) BaseDir() string { return s.baseDir }

// Dir returns the directory of an entity. Ids are path-escaped so they can
// never leave the base directory.
func (s *Store) Dir(id string) string {
	name := url.PathEscape(id)
	if name == "." || name == ".." || name == "" {
		name = "_" + name
	}
	return filepath.Join(s.baseDir, name)
}

// Path returns the path of a named file of an entity.
func (s *Store) Path(id, name string) string {
	return filepath.Join(s.Dir(id), name)
}

// Remove deletes the entity directory and its contents.
func (s *Store) Remove(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.RemoveAll(s.Dir(id)); err != nil {
		return fmt.Errorf("remove %s %s: %w", s.entity, id, err)
	}
	return nil
}

// List returns the ids of all entities.
func (s *Store) List() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("list %ss: %w", s.entity, err)
	}
	var ids []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		id, err := url.PathUnescape(e.Name())
		if err != nil {
			id = e.Name()
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// WriteJSON atomically replaces a JSON document using a temp file + rename.
func (s *Store) WriteJSON(id, name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", name, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.MkdirAll(s.Dir(id), 0o755); err != nil {
		return fmt.Errorf("create %s dir: %w", s.entity, err)
	}
	path := s.Path(id, name)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename %s: %w", name, err)
	}
	return nil
}

// ReadJSON decodes a JSON document into out.
func (s *Store) ReadJSON(id, name string, out any) error {
	s.mu.RLock()
	data, err := os.ReadFile(s.Path(id, name))
	s.mu.RUnlock()
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%s %s %s: %w", s.entity, id, name, ErrNotFound)
		}
		return fmt.Errorf("read %s: %w", name, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("unmarshal %s: %w", name, err)
	}
	return nil
}

// AppendJSONL appends v as one JSON line.
func (s *Store) AppendJSONL(id, name string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", name, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.MkdirAll(s.Dir(id), 0o755); err != nil {
		return fmt.Errorf("create %s dir: %w", s.entity, err)
	}
	f, err := os.OpenFile(s.Path(id, name), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open %s: %w", name, err)
	}
	defer f.Close()
	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}

// ReadJSONL decodes the lines of a JSONL file. Corrupted lines are skipped.
// limit > 0 keeps only the last limit items. A missing file yields nil.
func ReadJSONL[T any](s *Store, id, name string, limit int) ([]T, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	f, err := os.Open(s.Path(id, name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	defer f.Close()

	var items []T
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var item T
		if err := json.Unmarshal(line, &item); err != nil {
			continue
		}
		items = append(items, item)
		if limit > 0 && len(items) > 2*limit {
			items = append(items[:0], items[len(items)-limit:]...)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan %s: %w", name, err)
	}
	if limit > 0 && len(items) > limit {
		items = items[len(items)-limit:]
	}
	return items, nil
}
