package secrets

import (
	"errors"
	"os"
	"strings"

	"github.com/zalando/go-keyring"
)

const (
	// Service groups this app's secrets in the OS keychain.
	KeyringService = "tenderwatch"
	geminiAccount  = "gemini-api-key"
)

// GetGeminiAPIKey reads the LLM key from the OS keychain, falling back to
// the GEMINI_API_KEY environment variable for headless hosts without one.
func GetGeminiAPIKey() (string, error) {
	pw, err := keyring.Get(KeyringService, geminiAccount)
	if err == nil && strings.TrimSpace(pw) != "" {
		return pw, nil
	}

	if env := strings.TrimSpace(os.Getenv("GEMINI_API_KEY")); env != "" {
		return env, nil
	}

	return "", errors.New("gemini api key not found (set it in the keychain or via GEMINI_API_KEY)")
}

func SetGeminiAPIKey(key string) error {
	if strings.TrimSpace(key) == "" {
		return errors.New("api key is empty")
	}
	return keyring.Set(KeyringService, geminiAccount, key)
}

func DeleteGeminiAPIKey() error {
	return keyring.Delete(KeyringService, geminiAccount)
}
