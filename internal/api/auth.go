package api

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/pquerna/otp/totp"
)

// Admin action identifiers. Each mints its own token, so a token captured
// for one action cannot replay another.
const (
	ActionClearCache    = "clear_cache"
	ActionRecordHistory = "record_history"
)

// TokenIssuer mints and validates per-action anti-forgery tokens. A token is
// the HMAC-SHA256 of "action:date" under the admin secret, so it expires
// with the calendar date and is bound to one action.
type TokenIssuer struct {
	secret     []byte
	totpSecret string // optional second factor; empty disables it

	now func() time.Time // overridable in tests
}

// NewTokenIssuer creates an issuer from the admin secrets.
func NewTokenIssuer(secret, totpSecret string) *TokenIssuer {
	return &TokenIssuer{
		secret:     []byte(secret),
		totpSecret: totpSecret,
		now:        time.Now,
	}
}

// Token returns the anti-forgery token for the action, valid today (UTC).
func (t *TokenIssuer) Token(action string) string {
	mac := hmac.New(sha256.New, t.secret)
	mac.Write([]byte(action + ":" + t.now().UTC().Format("2006-01-02")))
	return hex.EncodeToString(mac.Sum(nil))
}

// Validate reports whether the token matches the action for today's date.
func (t *TokenIssuer) Validate(action, token string) bool {
	if action == "" || token == "" {
		return false
	}
	return hmac.Equal([]byte(t.Token(action)), []byte(token))
}

// TOTPEnabled reports whether the second factor is configured.
func (t *TokenIssuer) TOTPEnabled() bool {
	return t.totpSecret != ""
}

// ValidateTOTP checks the one-time code against the configured secret.
// Always false when TOTP is not enabled; callers gate on TOTPEnabled.
func (t *TokenIssuer) ValidateTOTP(code string) bool {
	if !t.TOTPEnabled() {
		return false
	}
	return totp.Validate(code, t.totpSecret)
}
