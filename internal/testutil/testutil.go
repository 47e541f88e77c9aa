// Package testutil provides test environment setup and utilities for internal package tests.
package testutil

import (
	"net/http"
	"sync"
	"testing"
	"time"

	"git.sr.ht/~jakintosh/ssoguard/internal/database"
	"git.sr.ht/~jakintosh/ssoguard/internal/server"
	"git.sr.ht/~jakintosh/ssoguard/pkg/identity"
	"git.sr.ht/~jakintosh/ssoguard/pkg/keys"
	"git.sr.ht/~jakintosh/ssoguard/pkg/ssotest"
	"git.sr.ht/~jakintosh/ssoguard/pkg/tokens"
)

const (
	SSOURL        = "https://sso.test.local/auth/"
	Realm         = "test"
	KeyID         = "test-key"
	AdminUser     = "admin"
	AdminPassword = "admin-password"
)

var (
	sharedKeys     *ssotest.Keys
	sharedKeysOnce sync.Once

	sharedAdminHash     string
	sharedAdminHashOnce sync.Once
)

// getSharedKeys returns a cached RSA key pair for tests.
// This avoids the overhead of generating a new key for each test.
func getSharedKeys() *ssotest.Keys {
	sharedKeysOnce.Do(func() {
		k, err := ssotest.NewKeys(KeyID)
		if err != nil {
			panic("failed to generate shared signing key: " + err.Error())
		}
		sharedKeys = k
	})
	return sharedKeys
}

func getSharedAdminHash() string {
	sharedAdminHashOnce.Do(func() {
		hash, err := server.HashPassword(AdminPassword)
		if err != nil {
			panic("failed to hash admin password: " + err.Error())
		}
		sharedAdminHash = hash
	})
	return sharedAdminHash
}

// TestEnv provides all dependencies needed for testing
type TestEnv struct {
	Realm    *ssotest.Realm
	Keys     *keys.Ring
	Verifier *tokens.Verifier
	Resolver *identity.Resolver
	Audit    *database.SQLiteStore
	Server   *server.Server
	Router   http.Handler
}

// SetupTestEnv creates an isolated test environment: a key directory holding
// the shared public key, an in-memory audit store and a router with the
// admin endpoints enabled.
func SetupTestEnv(
	t *testing.T,
) *TestEnv {
	t.Helper()

	realm := &ssotest.Realm{
		Dir:    t.TempDir(),
		SSOURL: SSOURL,
		Name:   Realm,
		Keys:   map[string]*ssotest.Keys{KeyID: getSharedKeys()},
	}
	if err := ssotest.WritePublicKey(realm.Dir, getSharedKeys()); err != nil {
		t.Fatalf("failed to write public key: %v", err)
	}

	audit, err := database.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("failed to open audit store: %v", err)
	}
	t.Cleanup(func() {
		_ = audit.Close()
	})

	ring := keys.NewRing(realm.Dir)
	verifier := tokens.NewVerifier(ring, SSOURL, Realm)
	resolver := identity.NewResolver(verifier)
	srv := server.New(
		resolver,
		ring,
		server.WithAudit(audit),
		server.WithAdmin(AdminUser, getSharedAdminHash()),
	)

	return &TestEnv{
		Realm:    realm,
		Keys:     ring,
		Verifier: verifier,
		Resolver: resolver,
		Audit:    audit,
		Server:   srv,
		Router:   srv.Router(),
	}
}

// Token mints a valid token for subject
func (env *TestEnv) Token(
	t *testing.T,
	subject string,
) string {
	t.Helper()
	return env.TokenWithLifetime(t, subject, 30*time.Minute)
}

// TokenWithLifetime mints a token for subject expiring after lifetime
func (env *TestEnv) TokenWithLifetime(
	t *testing.T,
	subject string,
	lifetime time.Duration,
) string {
	t.Helper()
	token, err := env.Realm.Token(KeyID, subject, lifetime)
	if err != nil {
		t.Fatalf("failed to mint test token: %v", err)
	}
	return token
}

// Admin returns the basic auth header for the admin endpoints
func Admin() Header {
	return BasicAuth(AdminUser, AdminPassword)
}
