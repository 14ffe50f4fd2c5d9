package auth

import (
	"testing"

	"github.com/zalando/go-keyring"
)

func TestTokenLifecycle(t *testing.T) {
	keyring.MockInit()
	t.Setenv(TokenEnvVar, "")

	if HasToken() {
		t.Fatal("fresh keychain should be empty")
	}
	if token, src := GetToken(true); token != "" || src != SourceNone {
		t.Fatalf("GetToken = (%q, %q)", token, src)
	}
	if err := SaveToken("  "); err == nil {
		t.Fatal("expected error for blank token")
	}
	if err := SaveToken(" tok-123 \n"); err != nil {
		t.Fatalf("SaveToken: %v", err)
	}
	if token, src := GetToken(false); token != "tok-123" || src != SourceKeychain {
		t.Fatalf("GetToken = (%q, %q)", token, src)
	}
	if err := DeleteToken(); err != nil {
		t.Fatalf("DeleteToken: %v", err)
	}
	if err := DeleteToken(); err != nil {
		t.Fatalf("second DeleteToken: %v", err)
	}
	if HasToken() {
		t.Fatal("token still present after delete")
	}
}

func TestGetToken_EnvRequiresOptIn(t *testing.T) {
	keyring.MockInit()
	t.Setenv(TokenEnvVar, "from-env")

	if token, _ := GetToken(false); token != "" {
		t.Fatalf("env token used without opt-in: %q", token)
	}
	if token, src := GetToken(true); token != "from-env" || src != SourceEnv {
		t.Fatalf("GetToken(true) = (%q, %q)", token, src)
	}
}

func TestGetToken_KeychainWins(t *testing.T) {
	keyring.MockInit()
	t.Setenv(TokenEnvVar, "from-env")
	if err := SaveToken("from-keychain"); err != nil {
		t.Fatalf("SaveToken: %v", err)
	}
	if token, src := GetToken(true); token != "from-keychain" || src != SourceKeychain {
		t.Fatalf("GetToken = (%q, %q)", token, src)
	}
}
