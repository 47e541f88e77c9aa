// Package tokens verifies RS256 signed JSON Web Tokens issued by an SSO realm.
//
// A Verifier resolves the token's "kid" header against a key set loaded by
// package keys, checks the RSA-SHA256 signature over "header.body", decodes
// the claims and rejects tokens whose "exp" is missing or not in the future.
// The issuer is checked separately with CheckIssuer, against the realm URL
// derived once from the SSO base URL and realm name:
//
//	store := keys.Load("/etc/ssoguard/keys")
//	verifier := tokens.NewVerifier(store, "https://sso.example.com/", "org")
//
//	claims, err := verifier.Verify(tokenString)
//	if err != nil {
//	    return fmt.Errorf("invalid token: %w", err)
//	}
//	if !verifier.CheckIssuer(claims.Issuer()) {
//	    return errors.New("token from another realm")
//	}
//	subject := claims.Subject()
//
// # Error Handling
//
// Verify reports why a token was rejected:
//
//	_, err := verifier.Verify(tokenString)
//	switch {
//	case errors.Is(err, tokens.ErrTokenMalformed()):
//	    // not three base64url segments, or undecodable header/body
//	case errors.Is(err, tokens.ErrTokenUnknownKey()):
//	    // "kid" is not in the key set
//	case errors.Is(err, tokens.ErrTokenBadSignature()):
//	    // signature does not verify against the named key
//	case errors.Is(err, tokens.ErrTokenExpired()):
//	    // "exp" missing or in the past
//	case errors.Is(err, tokens.ErrTokenInternal()):
//	    // unexpected fault; the token is rejected
//	}
//
// The detail behind each rejection is logged and is available through
// Context(err); it is meant for diagnostics, not for callers.
package tokens
