// Package identity turns a bearer token into the caller's user id.
//
// A Resolver verifies the token, checks that it was issued by the configured
// realm and takes the user id from the "sub" claim. Subjects of the form
// "namespace:id" resolve to the part after the last colon.
//
// Callers only learn whether a token authenticated; why a token was rejected
// is logged by package tokens.
package identity

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"

	"git.sr.ht/~jakintosh/ssoguard/pkg/tokens"
)

var (
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrInternal        = errors.New("internal error")
)

const (
	MsgTokenMissing    = "token validation failed"
	MsgTokenRejected   = "access token is expired"
	MsgResolutionFault = "access token validation failed"
)

// Result is the caller-owned response that FetchUserID reports failures to.
// api.Response implements it.
type Result interface {
	Fail(code int, errMsg string)
}

type Resolver struct {
	verifier *tokens.Verifier
}

func NewResolver(verifier *tokens.Verifier) *Resolver {
	return &Resolver{verifier: verifier}
}

// ResolveIdentity returns the user id carried by token. The error is
// ErrUnauthenticated when the token does not verify, comes from another
// realm or has no subject, and ErrInternal on an unexpected fault.
func (r *Resolver) ResolveIdentity(token string) (userID string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			userID = ""
			err = fmt.Errorf("%w: %v", ErrInternal, rec)
		}
	}()

	claims, err := r.verifier.Verify(token)
	if errors.Is(err, tokens.ErrTokenInternal()) {
		return "", fmt.Errorf("%w: %v", ErrInternal, err)
	}
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}

	if !r.verifier.CheckIssuer(claims.Issuer()) {
		return "", fmt.Errorf("%w: %v", ErrUnauthenticated, tokens.ErrTokenInvalidIssuer())
	}

	subject := claims.Subject()
	if strings.TrimSpace(subject) == "" {
		return "", fmt.Errorf("%w: missing subject", ErrUnauthenticated)
	}

	return StripNamespace(subject), nil
}

// StripNamespace drops everything up to and including the last colon.
func StripNamespace(subject string) string {
	return subject[strings.LastIndex(subject, ":")+1:]
}

// FetchUserID resolves token and reports failures to result: 400 when no
// token was given, 401 when it did not authenticate, 500 on a fault. On
// success result is left as it was and the user id is returned.
func (r *Resolver) FetchUserID(token string, result Result) string {
	if token == "" {
		result.Fail(http.StatusBadRequest, MsgTokenMissing)
		return ""
	}

	userID, err := r.ResolveIdentity(token)
	switch {
	case err == nil:
		return userID
	case errors.Is(err, ErrUnauthenticated):
		result.Fail(http.StatusUnauthorized, MsgTokenRejected)
	default:
		log.Printf("identity: failed to resolve user id: %v\n", err)
		result.Fail(http.StatusInternalServerError, MsgResolutionFault)
	}
	return ""
}
