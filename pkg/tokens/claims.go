package tokens

import (
	"encoding/json"
	"math"
	"time"
)

// Claims is the decoded body of a verified token. Numbers are kept as
// json.Number so large epoch values survive intact.
type Claims map[string]any

func (c Claims) Issuer() string  { return c.stringClaim("iss") }
func (c Claims) Subject() string { return c.stringClaim("sub") }

// Expiration reads the "exp" claim as epoch seconds. The second result is
// false when the claim is missing or is not a number.
func (c Claims) Expiration() (time.Time, bool) {
	exp, ok := c.intClaim("exp")
	if !ok {
		return time.Time{}, false
	}
	return time.Unix(exp, 0), true
}

func (c Claims) stringClaim(name string) string {
	if s, ok := c[name].(string); ok {
		return s
	}
	return ""
}

func (c Claims) intClaim(name string) (int64, bool) {
	switch v := c[name].(type) {
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return i, true
		}
		f, err := v.Float64()
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return int64(f), true
	case float64:
		return int64(v), true
	case int64:
		return v, true
	case int:
		return int64(v), true
	default:
		return 0, false
	}
}
