package secrets

import (
	"os"
	"path/filepath"
	"testing"

	"filippo.io/age"
)

func newTestCipher(t *testing.T) *Cipher {
	t.Helper()
	id, err := age.GenerateX25519Identity()
	if err != nil {
		t.Fatalf("generate identity: %v", err)
	}
	return NewCipher(id)
}

func TestOpenCipherCreatesIdentity(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".age", "identity")

	c1, err := OpenCipher(path)
	if err != nil {
		t.Fatalf("OpenCipher: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("expected mode 0600, got %o", info.Mode().Perm())
	}

	c2, err := OpenCipher(path)
	if err != nil {
		t.Fatalf("second OpenCipher: %v", err)
	}
	if c1.Recipient() != c2.Recipient() {
		t.Error("expected the existing identity to be reused")
	}
}

func TestOpenCipherRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "identity")
	if err := os.WriteFile(path, []byte("not a key\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := OpenCipher(path); err == nil {
		t.Error("expected parse error")
	}
}

func TestSealOpen(t *testing.T) {
	c := newTestCipher(t)
	for _, plain := range []string{"sk-ant-api03-secret", "", "with spaces and \"quotes\""} {
		blob, err := c.Seal(plain)
		if err != nil {
			t.Fatalf("Seal: %v", err)
		}
		if !IsSealed(blob) {
			t.Errorf("expected sealed blob, got %q", blob)
		}
		got, err := c.Open(blob)
		if err != nil {
			t.Fatalf("Open: %v", err)
		}
		if got != plain {
			t.Errorf("expected %q, got %q", plain, got)
		}
	}
}

func TestOpenWithOtherIdentityFails(t *testing.T) {
	blob, err := newTestCipher(t).Seal("secret")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := newTestCipher(t).Open(blob); err == nil {
		t.Error("expected decrypt error with a foreign identity")
	}
}

func TestIsSealed(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"ENC[age:abc123]", true},
		{"ENC[age:]", true},
		{"plaintext", false},
		{"ENC[age:abc123", false},
		{"age:abc123]", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := IsSealed(tt.input); got != tt.want {
			t.Errorf("IsSealed(%q): expected %v, got %v", tt.input, tt.want, got)
		}
	}
	if _, err := newTestCipher(t).Open("plaintext"); err == nil {
		t.Error("expected plaintext to be rejected")
	}
}
