// Package auth stores the optional bearer token for a protected
// transcription service.
package auth

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/zalando/go-keyring"
	"golang.org/x/term"
)

const (
	serviceName  = "bstudio"
	tokenAccount = "service-token"
	TokenEnvVar  = "BSTUDIO_TOKEN"
)

// Source describes where a token was found.
type Source string

const (
	SourceNone     Source = ""
	SourceKeychain Source = "Keychain"
	SourceEnv      Source = "Environment Variable"
	SourcePrompt   Source = "Prompt"
)

// GetToken looks in the keychain first, then in BSTUDIO_TOKEN when
// allowEnv is set.
func GetToken(allowEnv bool) (string, Source) {
	token, err := keyring.Get(serviceName, tokenAccount)
	if err == nil && strings.TrimSpace(token) != "" {
		return strings.TrimSpace(token), SourceKeychain
	}
	if allowEnv {
		if token, ok := GetEnvToken(); ok {
			return token, SourceEnv
		}
	}
	return "", SourceNone
}

// GetEnvToken reads the token from the environment only.
func GetEnvToken() (string, bool) {
	token := strings.TrimSpace(os.Getenv(TokenEnvVar))
	return token, token != ""
}

func SaveToken(token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return errors.New("token is empty")
	}
	return keyring.Set(serviceName, tokenAccount, token)
}

// DeleteToken removes the stored token. A missing token is not an error.
func DeleteToken() error {
	err := keyring.Delete(serviceName, tokenAccount)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil
	}
	return err
}

// HasToken reports whether the keychain holds a token.
func HasToken() bool {
	token, err := keyring.Get(serviceName, tokenAccount)
	return err == nil && token != ""
}

// PromptForToken reads a token from the terminal without echo.
func PromptForToken(out io.Writer, prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", fmt.Errorf("cannot prompt for token: stdin is not a terminal")
	}
	fmt.Fprint(out, prompt)
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(out)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(b)), nil
}
