package tokens

import (
	"bytes"
	"crypto"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

type validateError struct {
	context string
	err     error
}

func (t *validateError) Context() string {
	return t.context
}
func (t *validateError) Error() string {
	return fmt.Sprintf("%v", t.err)
}
func (t *validateError) Unwrap() error {
	return t.err
}

var (
	errTokenMalformed     = errors.New("token malformed")
	errTokenUnknownKey    = errors.New("token unknown key")
	errTokenBadSignature  = errors.New("token bad signature")
	errTokenExpired       = errors.New("token expired")
	errTokenInvalidIssuer = errors.New("token invalid issuer")
	errTokenInternal      = errors.New("token internal error")
)

func ErrTokenMalformed() error     { return errTokenMalformed }
func ErrTokenUnknownKey() error    { return errTokenUnknownKey }
func ErrTokenBadSignature() error  { return errTokenBadSignature }
func ErrTokenExpired() error       { return errTokenExpired }
func ErrTokenInvalidIssuer() error { return errTokenInvalidIssuer }
func ErrTokenInternal() error      { return errTokenInternal }

// Context returns the diagnostic detail behind a verification error, or the
// error text when err did not come from this package.
func Context(err error) string {
	var verr *validateError
	if errors.As(err, &verr) {
		return verr.Context()
	}
	if err == nil {
		return ""
	}
	return err.Error()
}

func buildMessage(encHeader string, encClaims string) string {
	return fmt.Sprintf("%s.%s", encHeader, encClaims)
}

func hashMessage(message string) []byte {
	hash := sha256.Sum256([]byte(message))
	return hash[:]
}

// tokens from some issuers keep the '=' padding
func decodeSegment(str string) ([]byte, error) {
	bytes, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(str, "="))
	if err != nil {
		return nil, fmt.Errorf("invalid base64 encoding: %v", err)
	}
	return bytes, nil
}

func decodeJWTSection(str string) (map[string]any, error) {
	raw, err := decodeSegment(str)
	if err != nil {
		return nil, err
	}

	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.UseNumber()

	section := map[string]any{}
	if err := decoder.Decode(&section); err != nil {
		return nil, fmt.Errorf("not valid JSON: %v", err)
	}
	if section == nil {
		return nil, fmt.Errorf("not a JSON object")
	}
	return section, nil
}

func validateStructure(tokenStr string) (
	header string,
	claims string,
	signature string,
	err error,
) {
	if tokenStr == "" {
		err = fmt.Errorf("JWT is empty")
		return
	}
	parts := strings.Split(tokenStr, ".")
	if len(parts) != 3 {
		err = fmt.Errorf("JWT expected three parts, found %d", len(parts))
		return
	}
	for i, part := range parts {
		if part == "" {
			err = fmt.Errorf("JWT part %d is empty", i)
			return
		}
	}
	header = parts[0]
	claims = parts[1]
	signature = parts[2]
	return
}

func verifyHeader(header map[string]any) (string, error) {
	kid, ok := header["kid"].(string)
	if !ok || kid == "" {
		return "", fmt.Errorf("missing 'kid'")
	}
	return kid, nil
}

func verifyAlgorithm(header map[string]any) error {
	alg, present := header["alg"]
	if !present {
		return nil
	}
	switch alg {
	case "RS256":
		return nil
	default:
		return fmt.Errorf("illegal algorithm: %v", alg)
	}
}

func verifySignature(
	encHeader string,
	encClaims string,
	encSignature string,
	verificationKey *rsa.PublicKey,
) error {
	signature, err := decodeSegment(encSignature)
	if err != nil {
		return err
	}

	hash := hashMessage(buildMessage(encHeader, encClaims))

	if err := rsa.VerifyPKCS1v15(verificationKey, crypto.SHA256, hash, signature); err != nil {
		return fmt.Errorf("verification failed: %v", err)
	}

	return nil
}
