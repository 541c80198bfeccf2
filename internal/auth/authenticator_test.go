package auth

import (
	"testing"

	"github.com/coppice-labs/switchboard/internal/apierr"
)

func TestValidateDisabled(t *testing.T) {
	a := NewAuthenticator(false, nil, nil)

	for _, token := range []string{"", "anything", "swb_whatever"} {
		if _, err := a.Validate(token); err != nil {
			t.Errorf("disabled authenticator rejected %q: %v", token, err)
		}
	}
}

func TestValidateAllowList(t *testing.T) {
	a := NewAuthenticator(true, []string{"swb_good", "swb_other"}, nil)

	ac, err := a.Validate("swb_good")
	if err != nil {
		t.Fatalf("allow-listed token rejected: %v", err)
	}
	if ac.Token != "swb_good" {
		t.Errorf("context token = %q", ac.Token)
	}

	if _, err := a.Validate("swb_bad"); err == nil {
		t.Fatal("unknown token accepted")
	} else if apierr.CodeOf(err) != apierr.CodeAuthFailed {
		t.Errorf("expected AUTH_FAILED, got %s", apierr.CodeOf(err))
	}
}

func TestValidateEmptyToken(t *testing.T) {
	a := NewAuthenticator(true, []string{"swb_good"}, nil)

	_, err := a.Validate("")
	if err == nil {
		t.Fatal("empty token accepted")
	}
	if apierr.CodeOf(err) != apierr.CodeAuthFailed {
		t.Errorf("expected AUTH_FAILED, got %s", apierr.CodeOf(err))
	}
}

func TestValidateStoreTokens(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	defer store.Close()

	_, tokenID, err := store.CreateToken("ci", nil)
	if err != nil {
		t.Fatalf("CreateToken: %v", err)
	}

	a := NewAuthenticator(true, nil, store)

	ac, err := a.Validate(tokenID)
	if err != nil {
		t.Fatalf("stored token rejected: %v", err)
	}
	if ac.Name != "ci" {
		t.Errorf("expected token name ci, got %q", ac.Name)
	}

	if err := store.RevokeToken(tokenID); err != nil {
		t.Fatalf("RevokeToken: %v", err)
	}
	if _, err := a.Validate(tokenID); err == nil {
		t.Error("revoked token accepted")
	}
}

func TestMaskToken(t *testing.T) {
	if got := MaskToken("swb_0123456789abcdef"); got == "swb_0123456789abcdef" {
		t.Errorf("token not masked: %q", got)
	}
	if got := MaskToken("short"); got != "***" {
		t.Errorf("short token mask = %q", got)
	}
}
