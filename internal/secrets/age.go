package secrets

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"filippo.io/age"

	"github.com/anonx3247/aios-chat-sub000/internal/config"
)

const (
	encPrefix = "ENC[age:"
	encSuffix = "]"
)

// IdentityPath returns the age identity location: $AIOS_PATH/.age/identity.
func IdentityPath() string {
	return filepath.Join(config.AiosPath(), ".age", "identity")
}

// Cipher seals credential values for one X25519 identity.
type Cipher struct {
	identity *age.X25519Identity
}

// OpenCipher loads the identity at path, generating it (mode 0600) on first use.
func OpenCipher(path string) (*Cipher, error) {
	id, err := loadIdentity(path)
	if errors.Is(err, os.ErrNotExist) {
		id, err = createIdentity(path)
	}
	if err != nil {
		return nil, err
	}
	return &Cipher{identity: id}, nil
}

// NewCipher wraps an in-memory identity.
func NewCipher(id *age.X25519Identity) *Cipher {
	return &Cipher{identity: id}
}

// Recipient returns the public key values are encrypted to.
func (c *Cipher) Recipient() string {
	return c.identity.Recipient().String()
}

func createIdentity(path string) (*age.X25519Identity, error) {
	id, err := age.GenerateX25519Identity()
	if err != nil {
		return nil, fmt.Errorf("generate age identity: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create identity directory: %w", err)
	}
	content := fmt.Sprintf("# aios credential identity\n# public key: %s\n%s\n", id.Recipient(), id)
	// O_EXCL: a concurrent first run must not overwrite a key already in use
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return loadIdentity(path)
		}
		return nil, fmt.Errorf("write age identity: %w", err)
	}
	defer f.Close()
	if _, err := io.WriteString(f, content); err != nil {
		return nil, fmt.Errorf("write age identity: %w", err)
	}
	return id, nil
}

func loadIdentity(path string) (*age.X25519Identity, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	identities, err := age.ParseIdentities(f)
	if err != nil {
		return nil, fmt.Errorf("parse age identity %s: %w", path, err)
	}
	for _, candidate := range identities {
		if id, ok := candidate.(*age.X25519Identity); ok {
			return id, nil
		}
	}
	return nil, fmt.Errorf("no X25519 identity in %s", path)
}

// Seal encrypts plaintext into an ENC[age:...] blob.
func (c *Cipher) Seal(plaintext string) (string, error) {
	var buf bytes.Buffer
	w, err := age.Encrypt(&buf, c.identity.Recipient())
	if err != nil {
		return "", fmt.Errorf("age encrypt: %w", err)
	}
	if _, err := io.WriteString(w, plaintext); err != nil {
		return "", fmt.Errorf("age encrypt: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("age encrypt: %w", err)
	}
	return encPrefix + base64.StdEncoding.EncodeToString(buf.Bytes()) + encSuffix, nil
}

// Open decrypts a blob produced by Seal.
func (c *Cipher) Open(blob string) (string, error) {
	if !IsSealed(blob) {
		return "", errors.New("value is not an ENC[age:...] blob")
	}
	raw, err := base64.StdEncoding.DecodeString(blob[len(encPrefix) : len(blob)-len(encSuffix)])
	if err != nil {
		return "", fmt.Errorf("decode sealed value: %w", err)
	}
	r, err := age.Decrypt(bytes.NewReader(raw), c.identity)
	if err != nil {
		return "", fmt.Errorf("age decrypt: %w", err)
	}
	plain, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("age decrypt: %w", err)
	}
	return string(plain), nil
}

// IsSealed reports whether s looks like an ENC[age:...] blob.
func IsSealed(s string) bool {
	return strings.HasPrefix(s, encPrefix) && strings.HasSuffix(s, encSuffix)
}
