package tokens

import (
	"fmt"
	"log"
	"strings"
	"time"

	"git.sr.ht/~jakintosh/ssoguard/pkg/keys"
)

// KeyResolver finds the public key a token names in its "kid" header.
// Both *keys.Store and *keys.Ring satisfy it.
type KeyResolver interface {
	Lookup(keyID string) (*keys.Entry, bool)
}

// Verifier checks RS256 tokens issued by one SSO realm. It holds no mutable
// state, so a single Verifier can serve any number of goroutines.
type Verifier struct {
	keys     KeyResolver
	realmURL string
	now      func() time.Time
}

type Option func(*Verifier)

// WithClock replaces time.Now for expiry checks.
func WithClock(now func() time.Time) Option {
	return func(v *Verifier) {
		v.now = now
	}
}

// RealmURL derives the issuer string tokens from ssoRealm carry. ssoURL is
// expected to end with a slash. It is blank if either input is blank.
func RealmURL(ssoURL string, ssoRealm string) string {
	if strings.TrimSpace(ssoURL) == "" || strings.TrimSpace(ssoRealm) == "" {
		return ""
	}
	return ssoURL + "realms/" + ssoRealm
}

func NewVerifier(
	keys KeyResolver,
	ssoURL string,
	ssoRealm string,
	opts ...Option,
) *Verifier {
	v := &Verifier{
		keys:     keys,
		realmURL: RealmURL(ssoURL, ssoRealm),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

func (v *Verifier) RealmURL() string {
	return v.realmURL
}

// Verify runs the full check on tokenStr: structure, header, key lookup,
// signature, claims and expiry. The issuer is not checked here; see
// CheckIssuer.
//
// On failure the returned error matches one of the ErrToken* sentinels via
// errors.Is. Verify never panics.
func (v *Verifier) Verify(tokenStr string) (claims Claims, err error) {
	defer func() {
		if r := recover(); r != nil {
			claims = nil
			err = &validateError{
				context: fmt.Sprintf("token verification fault: %v", r),
				err:     errTokenInternal,
			}
		}
		if err != nil {
			log.Printf("tokens: rejected token: %s\n", Context(err))
		}
	}()

	decoded, verr := v.decodeToken(tokenStr)
	if verr != nil {
		return nil, verr
	}
	return decoded, nil
}

func (v *Verifier) decodeToken(tokenStr string) (Claims, *validateError) {
	encHeader, encClaims, encSignature, err := validateStructure(tokenStr)
	if err != nil {
		return nil, &validateError{
			context: fmt.Sprintf("token malformed: %v", err),
			err:     errTokenMalformed,
		}
	}

	header, err := decodeJWTSection(encHeader)
	if err != nil {
		return nil, &validateError{
			context: fmt.Sprintf("token header malformed: %v", err),
			err:     errTokenMalformed,
		}
	}

	keyID, err := verifyHeader(header)
	if err != nil {
		return nil, &validateError{
			context: fmt.Sprintf("token header malformed: %v", err),
			err:     errTokenMalformed,
		}
	}

	if err := verifyAlgorithm(header); err != nil {
		return nil, &validateError{
			context: fmt.Sprintf("token header illegal: %v", err),
			err:     errTokenBadSignature,
		}
	}

	entry, ok := v.keys.Lookup(keyID)
	if !ok || entry == nil || entry.PublicKey == nil {
		return nil, &validateError{
			context: fmt.Sprintf("token key unknown: '%s'", keyID),
			err:     errTokenUnknownKey,
		}
	}

	if err := verifySignature(encHeader, encClaims, encSignature, entry.PublicKey); err != nil {
		return nil, &validateError{
			context: fmt.Sprintf("token signature illegal (kid '%s'): %v", keyID, err),
			err:     errTokenBadSignature,
		}
	}

	body, err := decodeJWTSection(encClaims)
	if err != nil {
		return nil, &validateError{
			context: fmt.Sprintf("token claims malformed: %v", err),
			err:     errTokenMalformed,
		}
	}
	claims := Claims(body)

	expiration, ok := claims.Expiration()
	if !ok {
		return nil, &validateError{
			context: "token claims invalid: missing 'exp'",
			err:     errTokenExpired,
		}
	}
	if !expiration.After(v.now()) {
		return nil, &validateError{
			context: fmt.Sprintf("token claims invalid: expired at %s", expiration.UTC().Format(time.RFC3339)),
			err:     errTokenExpired,
		}
	}

	return claims, nil
}

// CheckIssuer reports whether iss names this verifier's realm, ignoring
// case. A verifier without a realm URL rejects every issuer.
func (v *Verifier) CheckIssuer(iss string) bool {
	if v.realmURL == "" || !strings.EqualFold(v.realmURL, iss) {
		log.Printf("tokens: issuer '%s' does not match realm '%s'\n", iss, v.realmURL)
		return false
	}
	return true
}
