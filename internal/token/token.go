package token

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strconv"
	"time"
)

const (
	// Hex-encoded sha256 tag prepended to the JSON message.
	tagSize = 64

	// Browsers cap all cookies on one domain at 4093 bytes, so a token
	// carried in a cookie must stay under that.
	MaxCookieSize = 4093

	minSecretLen = 32
)

var (
	ErrSecretTooShort = errors.New("token: secret must be at least 32 bytes")
	ErrNegativeMaxAge = errors.New("token: max age must be non-negative")
)

// Claims is the identity payload carried by a token. Issued is stamped
// by Create and is not settable by callers.
type Claims struct {
	ID    string
	Name  string
	Email string
	Role  string
}

// Token is a signed identity credential: a hex HMAC-SHA256 tag
// concatenated directly with a JSON message. Parsing never fails;
// a malformed token simply fails the validity predicates.
type Token struct {
	raw    string
	secret string
	maxAge int

	tag string
	msg []byte

	id        string
	name      string
	email     string
	role      string
	issued    int64
	hasID     bool
	hasIssued bool
}

// New parses a raw token string. It returns an error only for
// deployment misconfiguration (weak secret, negative max age); a bad
// token is reported through IsValid / ValidationErrors instead.
func New(raw, secret string, maxAge int) (*Token, error) {
	if len(secret) < minSecretLen {
		return nil, ErrSecretTooShort
	}
	if maxAge < 0 {
		return nil, ErrNegativeMaxAge
	}

	t := &Token{
		raw:    raw,
		secret: secret,
		maxAge: maxAge,
	}
	t.parse()
	return t, nil
}

// Create builds a signed token from claims, stamping the issue time
// with the current clock. The returned token always validates.
func Create(claims Claims, secret string, maxAge int) (*Token, error) {
	payload := map[string]any{
		"id":     claims.ID,
		"issued": time.Now().Unix(),
	}
	if claims.Name != "" {
		payload["name"] = claims.Name
	}
	if claims.Email != "" {
		payload["email"] = claims.Email
	}
	if claims.Role != "" {
		payload["role"] = claims.Role
	}

	msg, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	return New(sign(msg, secret)+string(msg), secret, maxAge)
}

func sign(msg []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(msg)
	return hex.EncodeToString(mac.Sum(nil))
}

func (t *Token) parse() {
	if len(t.raw) < tagSize {
		return
	}

	t.tag = t.raw[:tagSize]
	t.msg = []byte(t.raw[tagSize:])

	var decoded map[string]json.RawMessage
	if err := json.Unmarshal(t.msg, &decoded); err != nil {
		return
	}

	t.id, t.hasID = scalarString(decoded["id"])
	t.name, _ = scalarString(decoded["name"])
	t.email, _ = scalarString(decoded["email"])
	t.role, _ = scalarString(decoded["role"])
	t.issued, t.hasIssued = scalarInt(decoded["issued"])
}

// scalarString accepts only a JSON string; any other shape is treated
// as if the claim were absent.
func scalarString(raw json.RawMessage) (string, bool) {
	if raw == nil {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}

// scalarInt accepts a JSON number or a numeric string.
func scalarInt(raw json.RawMessage) (int64, bool) {
	if raw == nil {
		return 0, false
	}
	var n int64
	if err := json.Unmarshal(raw, &n); err == nil {
		return n, true
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n, true
		}
	}
	return 0, false
}

// IsAuthentic recomputes the HMAC over the message and compares it to
// the parsed tag in constant time.
func (t *Token) IsAuthentic() bool {
	if t.tag == "" {
		return false
	}
	return hmac.Equal([]byte(sign(t.msg, t.secret)), []byte(t.tag))
}

// IsExpired reports whether the token is older than the configured max
// age. A token with no issue time never expires; the missing claim is
// caught by HasRequiredClaims instead.
func (t *Token) IsExpired() bool {
	if !t.hasIssued {
		return false
	}
	return time.Now().Unix()-t.issued > int64(t.maxAge)
}

// HasRequiredClaims reports whether both required claims (id, issued)
// were present.
func (t *Token) HasRequiredClaims() bool {
	return t.hasID && t.hasIssued
}

func (t *Token) IsValid() bool {
	return t.IsAuthentic() && t.HasRequiredClaims() && !t.IsExpired()
}

// ValidationErrors returns a human-readable reason for each failing
// predicate, in a fixed order. It never includes key material.
func (t *Token) ValidationErrors() []string {
	var errs []string
	if !t.IsAuthentic() {
		errs = append(errs, "Token could not be authenticated")
	}
	if !t.HasRequiredClaims() {
		errs = append(errs, "Token missing required fields")
	}
	if t.IsExpired() {
		errs = append(errs, "Token is expired")
	}
	return errs
}

func (t *Token) Raw() string    { return t.raw }
func (t *Token) ID() string     { return t.id }
func (t *Token) Issued() int64  { return t.issued }
func (t *Token) Name() string   { return t.name }
func (t *Token) Email() string  { return t.email }
func (t *Token) Role() string   { return t.role }
