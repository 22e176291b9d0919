package api

import (
	"testing"
	"time"
)

func TestTokenIssuer_RoundTrip(t *testing.T) {
	issuer := NewTokenIssuer("secret", "")

	tok := issuer.Token(ActionClearCache)
	if !issuer.Validate(ActionClearCache, tok) {
		t.Fatal("freshly minted token rejected")
	}
	if issuer.Validate(ActionRecordHistory, tok) {
		t.Fatal("token valid for a different action")
	}
	if issuer.Validate(ActionClearCache, "") {
		t.Fatal("empty token accepted")
	}
	if issuer.Validate("", tok) {
		t.Fatal("empty action accepted")
	}
}

func TestTokenIssuer_ExpiresWithDate(t *testing.T) {
	issuer := NewTokenIssuer("secret", "")
	day := time.Date(2026, 8, 30, 23, 59, 0, 0, time.UTC)
	issuer.now = func() time.Time { return day }

	tok := issuer.Token(ActionRecordHistory)

	issuer.now = func() time.Time { return day.Add(2 * time.Minute) } // past midnight UTC
	if issuer.Validate(ActionRecordHistory, tok) {
		t.Fatal("yesterday's token still valid")
	}
}

func TestTokenIssuer_DifferentSecrets(t *testing.T) {
	a := NewTokenIssuer("secret-a", "")
	b := NewTokenIssuer("secret-b", "")
	if b.Validate(ActionClearCache, a.Token(ActionClearCache)) {
		t.Fatal("token forged across secrets")
	}
}

func TestTOTPDisabledByDefault(t *testing.T) {
	issuer := NewTokenIssuer("secret", "")
	if issuer.TOTPEnabled() {
		t.Fatal("TOTP enabled without a secret")
	}
	if issuer.ValidateTOTP("123456") {
		t.Fatal("TOTP code accepted while disabled")
	}
}
