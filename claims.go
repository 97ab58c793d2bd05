package auth

import (
	"encoding/json"
	"math"
	"time"
)

// Registered claim names.
const (
	ClaimExpiresAt = "exp"
	ClaimIssuedAt  = "iat"
	ClaimNotBefore = "nbf"
	ClaimSubject   = "sub"
	ClaimIssuer    = "iss"
	ClaimAudience  = "aud"
	ClaimTokenID   = "jti"

	// ClaimTokenType marks refresh tokens. Access tokens do not carry it.
	ClaimTokenType   = "typ"
	TokenTypeRefresh = "refresh"
)

// Claims is the payload of a token: claim name to JSON serialisable value.
// Numeric dates are unix seconds.
type Claims map[string]any

// Clone returns a shallow copy.
func (c Claims) Clone() Claims {
	out := make(Claims, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

// Has reports whether the claim is present.
func (c Claims) Has(name string) bool {
	_, ok := c[name]
	return ok
}

// String returns the claim as a string, or "" when absent or not a string.
func (c Claims) String(name string) string {
	s, _ := c[name].(string)
	return s
}

// Subject returns the sub claim
func (c Claims) Subject() string {
	return c.String(ClaimSubject)
}

// Issuer returns the iss claim
func (c Claims) Issuer() string {
	return c.String(ClaimIssuer)
}

// TokenID returns the jti claim
func (c Claims) TokenID() string {
	return c.String(ClaimTokenID)
}

// Audience returns the aud claim, which may be a string or a list of strings.
func (c Claims) Audience() []string {
	switch v := c[ClaimAudience].(type) {
	case string:
		return []string{v}
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, el := range v {
			if s, ok := el.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// Expires returns the expiration time
func (c Claims) Expires() time.Time {
	t, _, _ := c.NumericDate(ClaimExpiresAt)
	return t
}

// IssuedAt returns the issued at time
func (c Claims) IssuedAt() time.Time {
	t, _, _ := c.NumericDate(ClaimIssuedAt)
	return t
}

// NotBefore returns the not before time
func (c Claims) NotBefore() time.Time {
	t, _, _ := c.NumericDate(ClaimNotBefore)
	return t
}

// NumericDate reads a unix timestamp claim. ok is false when the claim is
// absent; valid is false when it is present but not a number.
func (c Claims) NumericDate(name string) (t time.Time, ok bool, valid bool) {
	raw, ok := c[name]
	if !ok {
		return time.Time{}, false, false
	}
	secs, valid := toFloat(raw)
	if !valid {
		return time.Time{}, true, false
	}
	whole, frac := math.Modf(secs)
	return time.Unix(int64(whole), int64(frac*1e9)), true, true
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

// normalizeNumbers replaces json.Number values produced by the decoder with
// int64 when integral and float64 otherwise, recursing into nested values.
func normalizeNumbers(v any) any {
	switch n := v.(type) {
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i
		}
		f, _ := n.Float64()
		return f
	case map[string]any:
		for k, el := range n {
			n[k] = normalizeNumbers(el)
		}
		return n
	case []any:
		for i, el := range n {
			n[i] = normalizeNumbers(el)
		}
		return n
	}
	return v
}

// NormalizeClaims copies a decoded claim map into Claims, turning JSON
// numbers into int64 or float64.
func NormalizeClaims(m map[string]any) Claims {
	claims := make(Claims, len(m))
	for k, v := range m {
		claims[k] = normalizeNumbers(v)
	}
	return claims
}
