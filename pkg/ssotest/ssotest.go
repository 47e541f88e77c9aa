// Package ssotest stands in for an SSO realm in tests: it generates RSA key
// pairs, writes their public halves into a key directory the way the realm's
// deployment would, and mints RS256 tokens signed by them.
//
//	realm, err := ssotest.NewRealm(t.TempDir(), "https://sso.example.com/", "org", "k1")
//	store := keys.Load(realm.Dir)
//	verifier := tokens.NewVerifier(store, realm.SSOURL, realm.Name)
//	token, err := realm.Token("k1", "svc:alice", time.Hour)
package ssotest

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"git.sr.ht/~jakintosh/ssoguard/pkg/identity"
	"git.sr.ht/~jakintosh/ssoguard/pkg/tokens"
)

// Keys is one signing key pair and the key id it is published under.
type Keys struct {
	KeyID      string
	SigningKey *rsa.PrivateKey
}

// Realm is a set of signing keys whose public halves live in Dir.
type Realm struct {
	Dir    string
	SSOURL string
	Name   string
	Keys   map[string]*Keys
}

// NewKeys generates a 2048-bit RSA key pair.
func NewKeys(keyID string) (*Keys, error) {
	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, err
	}
	return &Keys{
		KeyID:      keyID,
		SigningKey: privateKey,
	}, nil
}

// NewRealm generates one key pair per key id and writes the public keys
// into dir.
func NewRealm(dir, ssoURL, name string, keyIDs ...string) (*Realm, error) {
	realm := &Realm{
		Dir:    dir,
		SSOURL: ssoURL,
		Name:   name,
		Keys:   make(map[string]*Keys),
	}
	for _, keyID := range keyIDs {
		keys, err := NewKeys(keyID)
		if err != nil {
			return nil, err
		}
		if err := WritePublicKey(dir, keys); err != nil {
			return nil, err
		}
		realm.Keys[keyID] = keys
	}
	return realm, nil
}

// Issuer is the "iss" value tokens from this realm carry.
func (r *Realm) Issuer() string {
	return tokens.RealmURL(r.SSOURL, r.Name)
}

// Claims builds a claim set for subject that expires after lifetime.
func (r *Realm) Claims(subject string, lifetime time.Duration) jwt.MapClaims {
	now := time.Now()
	return jwt.MapClaims{
		"iss": r.Issuer(),
		"sub": subject,
		"iat": now.Unix(),
		"exp": now.Add(lifetime).Unix(),
	}
}

// Token mints a token for subject signed by the named key.
func (r *Realm) Token(keyID, subject string, lifetime time.Duration) (string, error) {
	keys, ok := r.Keys[keyID]
	if !ok {
		return "", fmt.Errorf("ssotest: no key '%s' in realm", keyID)
	}
	return Mint(keys, r.Claims(subject, lifetime))
}

// Mint signs claims with keys, setting "kid" in the header.
func Mint(keys *Keys, claims jwt.MapClaims) (string, error) {
	return MintWithHeader(keys, map[string]any{"kid": keys.KeyID}, claims)
}

// MintWithHeader signs claims with keys using exactly the given header.
func MintWithHeader(keys *Keys, header map[string]any, claims jwt.MapClaims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header = header
	return token.SignedString(keys.SigningKey)
}

// PublicKeyPEM encodes the public half of keys as a PEM SubjectPublicKeyInfo.
func PublicKeyPEM(keys *Keys) ([]byte, error) {
	der, err := x509.MarshalPKIXPublicKey(&keys.SigningKey.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal public key: %w", err)
	}
	return pem.EncodeToMemory(&pem.Block{
		Type:  "PUBLIC KEY",
		Bytes: der,
	}), nil
}

// WritePublicKey writes keys' public key to dir/<KeyID>.
func WritePublicKey(dir string, keys *Keys) error {
	pemBytes, err := PublicKeyPEM(keys)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, keys.KeyID), pemBytes, 0o644)
}

// Tamper flips one bit of the token's signature.
func Tamper(token string) string {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return token
	}
	signature, err := base64.RawURLEncoding.DecodeString(parts[2])
	if err != nil || len(signature) == 0 {
		return token
	}
	signature[len(signature)/2] ^= 0x01
	parts[2] = base64.RawURLEncoding.EncodeToString(signature)
	return strings.Join(parts, ".")
}

// AuthenticatedRequest creates a request carrying a token for subject, signed
// by the named key and valid for 30 minutes, in the user token header.
func (r *Realm) AuthenticatedRequest(
	method string,
	url string,
	keyID string,
	subject string,
) (
	*http.Request,
	error,
) {
	req, err := http.NewRequest(method, url, nil)
	if err != nil {
		return nil, err
	}

	token, err := r.Token(keyID, subject, 30*time.Minute)
	if err != nil {
		return nil, err
	}

	req.Header.Set(identity.HeaderUserToken, token)
	return req, nil
}
