package keys_test

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"git.sr.ht/~jakintosh/ssoguard/pkg/keys"
	"git.sr.ht/~jakintosh/ssoguard/pkg/ssotest"
)

func newTestKeys(t *testing.T, keyID string) *ssotest.Keys {
	t.Helper()
	k, err := ssotest.NewKeys(keyID)
	if err != nil {
		t.Fatalf("failed to generate keys: %v", err)
	}
	return k
}

func writeFile(t *testing.T, path string, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir failed: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write failed: %v", err)
	}
}

func publicPEM(t *testing.T, k *ssotest.Keys) string {
	t.Helper()
	pemBytes, err := ssotest.PublicKeyPEM(k)
	if err != nil {
		t.Fatalf("PublicKeyPEM failed: %v", err)
	}
	return string(pemBytes)
}

func TestLoad_IsolatesCorruptFiles(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	k1 := newTestKeys(t, "k1")
	if err := ssotest.WritePublicKey(dir, k1); err != nil {
		t.Fatalf("WritePublicKey failed: %v", err)
	}
	writeFile(t, filepath.Join(dir, "k2"), "-----BEGIN PUBLIC KEY-----\nnot a key\n-----END PUBLIC KEY-----\n")

	store := keys.Load(dir)

	// good key loads
	entry, ok := store.Lookup("k1")
	if !ok {
		t.Fatal("k1 should be loaded")
	}
	if entry.KeyID != "k1" {
		t.Errorf("KeyID = %s, want k1", entry.KeyID)
	}
	if !entry.PublicKey.Equal(&k1.SigningKey.PublicKey) {
		t.Error("loaded public key does not match k1")
	}

	// corrupt key is absent
	if _, ok := store.Lookup("k2"); ok {
		t.Error("k2 should not be loaded")
	}
	if store.Len() != 1 {
		t.Errorf("Len = %d, want 1", store.Len())
	}
}

func TestLoad_Recursive(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	top := newTestKeys(t, "top")
	nested := newTestKeys(t, "nested")
	writeFile(t, filepath.Join(dir, "top"), publicPEM(t, top))
	writeFile(t, filepath.Join(dir, "a", "b", "nested"), publicPEM(t, nested))

	store := keys.Load(dir)

	// keys in subdirectories are keyed by base name
	want := []string{"nested", "top"}
	if got := store.KeyIDs(); !slices.Equal(got, want) {
		t.Errorf("KeyIDs = %v, want %v", got, want)
	}
}

func TestLoad_DuplicateKeyID(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	first := newTestKeys(t, "dup")
	second := newTestKeys(t, "dup")
	writeFile(t, filepath.Join(dir, "a", "dup"), publicPEM(t, first))
	writeFile(t, filepath.Join(dir, "b", "dup"), publicPEM(t, second))

	store := keys.Load(dir)

	// one entry survives; walk order is lexical so "b/dup" wins
	if store.Len() != 1 {
		t.Fatalf("Len = %d, want 1", store.Len())
	}
	entry, _ := store.Lookup("dup")
	if !entry.PublicKey.Equal(&second.SigningKey.PublicKey) {
		t.Error("expected the last loaded key to win")
	}
}

func TestLoad_MissingDirectory(t *testing.T) {
	t.Parallel()

	// unreadable base directory yields an empty store
	store := keys.Load(filepath.Join(t.TempDir(), "does-not-exist"))
	if store == nil {
		t.Fatal("Load returned nil store")
	}
	if store.Len() != 0 {
		t.Errorf("Len = %d, want 0", store.Len())
	}
	if _, ok := store.Lookup("k1"); ok {
		t.Error("Lookup should fail on empty store")
	}
}

func TestLoad_SkipsNonRSAKeys(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	ecKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("failed to generate ec key: %v", err)
	}
	der, err := x509.MarshalPKIXPublicKey(&ecKey.PublicKey)
	if err != nil {
		t.Fatalf("failed to marshal ec key: %v", err)
	}
	writeFile(t, filepath.Join(dir, "ec"), string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})))

	store := keys.Load(dir)
	if _, ok := store.Lookup("ec"); ok {
		t.Error("ECDSA key should not be loaded")
	}
}

func TestLoad_Symlink(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	data := t.TempDir()
	k := newTestKeys(t, "linked")
	writeFile(t, filepath.Join(data, "target"), publicPEM(t, k))
	if err := os.Symlink(filepath.Join(data, "target"), filepath.Join(dir, "linked")); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}

	// symlinked key files load under the link name
	store := keys.Load(dir)
	if _, ok := store.Lookup("linked"); !ok {
		t.Error("symlinked key should be loaded")
	}
}

func TestParsePublicKey_Formats(t *testing.T) {
	t.Parallel()
	k := newTestKeys(t, "k")
	der, err := x509.MarshalPKIXPublicKey(&k.SigningKey.PublicKey)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	body := base64.StdEncoding.EncodeToString(der)

	tests := []struct {
		name    string
		content string
	}{
		{"pem", publicPEM(t, k)},
		{"bare base64", body},
		{"single line pem", "-----BEGIN PUBLIC KEY-----" + body + "-----END PUBLIC KEY-----"},
		{"crlf wrapped", "-----BEGIN PUBLIC KEY-----\r\n" + body[:64] + "\r\n" + body[64:] + "\r\n-----END PUBLIC KEY-----\r\n"},
		{"padded with spaces", "  " + body + "  \n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			publicKey, err := keys.ParsePublicKey(tt.content)
			if err != nil {
				t.Fatalf("ParsePublicKey failed: %v", err)
			}
			if !publicKey.Equal(&k.SigningKey.PublicKey) {
				t.Error("parsed key does not match")
			}
		})
	}
}

func TestParsePublicKey_Invalid(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		content string
	}{
		{"empty", ""},
		{"only markers", "-----BEGIN PUBLIC KEY-----\n-----END PUBLIC KEY-----"},
		{"bad base64", "!!!!"},
		{"not der", base64.StdEncoding.EncodeToString([]byte("hello world"))},
		{"truncated base64", strings.Repeat("A", 10)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := keys.ParsePublicKey(tt.content); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestStore_NilSafe(t *testing.T) {
	t.Parallel()
	var store *keys.Store

	if _, ok := store.Lookup("k1"); ok {
		t.Error("nil store should not find keys")
	}
	if store.Len() != 0 {
		t.Error("nil store should be empty")
	}
	if store.KeyIDs() != nil {
		t.Error("nil store should have no key ids")
	}
}
