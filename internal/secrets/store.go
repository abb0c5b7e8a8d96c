package secrets

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"sync"
)

var (
	// ErrNotFound is returned by Get for a key with no stored value.
	ErrNotFound = errors.New("credential not found")
	// ErrUnknownKey is returned for keys outside Keys.
	ErrUnknownKey = errors.New("unknown credential key")
)

// Keys lists every credential the application understands.
var Keys = []string{
	"anthropic_api_key",
	"openai_api_key",
	"mistral_api_key",
	"gemini_api_key",
	"perplexity_api_key",
	"email_address",
	"email_username",
	"email_password",
	"email_imap_server",
	"email_smtp_server",
}

// KnownKey reports whether key is in Keys.
func KnownKey(key string) bool {
	return slices.Contains(Keys, key)
}

// Store keeps credentials as age-sealed values in a JSON object file.
type Store struct {
	mu     sync.Mutex
	path   string
	cipher *Cipher
}

// NewStore opens the credential file at path. The file is created on first Set.
func NewStore(path string, cipher *Cipher) *Store {
	return &Store{path: path, cipher: cipher}
}

func (s *Store) read() (map[string]string, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read credentials: %w", err)
	}
	sealed := map[string]string{}
	if len(data) == 0 {
		return sealed, nil
	}
	if err := json.Unmarshal(data, &sealed); err != nil {
		return nil, fmt.Errorf("parse credentials %s: %w", s.path, err)
	}
	return sealed, nil
}

func (s *Store) write(sealed map[string]string) error {
	data, err := json.MarshalIndent(sealed, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("create credentials directory: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, append(data, '\n'), 0o600); err != nil {
		return fmt.Errorf("write credentials: %w", err)
	}
	return os.Rename(tmp, s.path)
}

// Get returns the decrypted value of key.
func (s *Store) Get(key string) (string, error) {
	if !KnownKey(key) {
		return "", fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	sealed, err := s.read()
	if err != nil {
		return "", err
	}
	blob, ok := sealed[key]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return s.cipher.Open(blob)
}

// Set seals and stores value under key.
func (s *Store) Set(key, value string) error {
	if !KnownKey(key) {
		return fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
	blob, err := s.cipher.Seal(value)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	sealed, err := s.read()
	if err != nil {
		return err
	}
	sealed[key] = blob
	return s.write(sealed)
}

// Delete removes key. Deleting a missing key is not an error.
func (s *Store) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sealed, err := s.read()
	if err != nil {
		return err
	}
	if _, ok := sealed[key]; !ok {
		return nil
	}
	delete(sealed, key)
	return s.write(sealed)
}

// All returns every stored known credential, decrypted. Values that fail to
// decrypt are skipped.
func (s *Store) All() (Credentials, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sealed, err := s.read()
	if err != nil {
		return nil, err
	}
	out := Credentials{}
	for _, key := range Keys {
		blob, ok := sealed[key]
		if !ok {
			continue
		}
		v, err := s.cipher.Open(blob)
		if err != nil {
			continue
		}
		out[key] = v
	}
	return out, nil
}

// StoredKeys lists the keys with a stored value, sorted.
func (s *Store) StoredKeys() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sealed, err := s.read()
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(sealed))
	for k := range sealed {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}
