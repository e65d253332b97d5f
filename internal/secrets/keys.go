package secrets

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/zalando/go-keyring"
)

const (
	// “Service” groups the engine's API keys in the OS keychain.
	KeyringService = "econstats"
)

var ErrNoKey = errors.New("api key not found")

// Sources that need a registration key.
const (
	SourceBEA = "bea"
	SourceBLS = "bls"
)

func validSource(source string) bool {
	return source == SourceBEA || source == SourceBLS
}

func keyringAccount(source string) string {
	return fmt.Sprintf("econstats:%s", source)
}

// EnvVar is the environment fallback for a source, e.g. BEA_API_KEY.
func EnvVar(source string) string {
	return strings.ToUpper(source) + "_API_KEY"
}

// GetAPIKey looks in the keychain first, then the environment (which may have
// been populated from .env).
func GetAPIKey(source string) (string, error) {
	if !validSource(source) {
		return "", fmt.Errorf("unknown key source %q", source)
	}
	key, err := keyring.Get(KeyringService, keyringAccount(source))
	if err == nil && strings.TrimSpace(key) != "" {
		return strings.TrimSpace(key), nil
	}
	if v := strings.TrimSpace(os.Getenv(EnvVar(source))); v != "" {
		return v, nil
	}
	return "", fmt.Errorf("%s: %w (set it in keychain or via %s)", source, ErrNoKey, EnvVar(source))
}

func SetAPIKey(source, key string) error {
	if !validSource(source) {
		return fmt.Errorf("unknown key source %q", source)
	}
	if strings.TrimSpace(key) == "" {
		return errors.New("api key is empty")
	}
	return keyring.Set(KeyringService, keyringAccount(source), strings.TrimSpace(key))
}

func DeleteAPIKey(source string) error {
	if !validSource(source) {
		return fmt.Errorf("unknown key source %q", source)
	}
	return keyring.Delete(KeyringService, keyringAccount(source))
}
