package config

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/joho/godotenv"
)

var ErrSecretNotFound = errors.New("secret not found")

var loadEnvOnce sync.Once

// LoadEnv loads a local .env file into the process environment. Existing variables win.
func LoadEnv() {
	loadEnvOnce.Do(func() {
		_ = godotenv.Load()
	})
}

func SecretsFile() string {
	return EnvOrDefault("SECRETS_FILE", DefaultSecretsFile)
}

// GetSecret looks the name up in the environment first and then in the secrets store file.
func GetSecret(name string) (string, error) {
	return lookupSecret(name, SecretsFile())
}

func lookupSecret(name string, secretsPath string) (string, error) {
	if v := os.Getenv(name); v != "" {
		return v, nil
	}

	secrets, err := godotenv.Read(secretsPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%s: %w", name, ErrSecretNotFound)
		}
		return "", fmt.Errorf("reading secrets store %s: %w", secretsPath, err)
	}
	if v := secrets[name]; v != "" {
		return v, nil
	}
	return "", fmt.Errorf("%s: %w", name, ErrSecretNotFound)
}

// AuthToken is the bearer token for admin routes. Empty means admin routes reject everything.
func AuthToken() string {
	token, err := GetSecret(AuthTokenName)
	if err != nil {
		return ""
	}
	return token
}

func RedisPassword() string {
	return os.Getenv("REDIS_PASSWORD")
}
