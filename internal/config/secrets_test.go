package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestLookupSecret(t *testing.T) {
	dir := t.TempDir()
	secretsPath := filepath.Join(dir, "secrets.env")
	if err := os.WriteFile(secretsPath, []byte("TEST_ONLY_KEY=from-file\n"), 0600); err != nil {
		t.Fatalf("could not write secrets file: %v", err)
	}

	t.Run("Environment wins", func(t *testing.T) {
		t.Setenv("TEST_ONLY_KEY", "from-env")
		got, err := lookupSecret("TEST_ONLY_KEY", secretsPath)
		if err != nil || got != "from-env" {
			t.Errorf("got %q, %v; want from-env", got, err)
		}
	})

	t.Run("Secrets file fallback", func(t *testing.T) {
		t.Setenv("TEST_ONLY_KEY", "")
		got, err := lookupSecret("TEST_ONLY_KEY", secretsPath)
		if err != nil || got != "from-file" {
			t.Errorf("got %q, %v; want from-file", got, err)
		}
	})

	t.Run("Missing everywhere", func(t *testing.T) {
		_, err := lookupSecret("TEST_ONLY_MISSING", secretsPath)
		if !errors.Is(err, ErrSecretNotFound) {
			t.Errorf("expected ErrSecretNotFound, got %v", err)
		}
	})

	t.Run("Missing secrets file", func(t *testing.T) {
		_, err := lookupSecret("TEST_ONLY_MISSING", filepath.Join(dir, "nope.env"))
		if !errors.Is(err, ErrSecretNotFound) {
			t.Errorf("expected ErrSecretNotFound, got %v", err)
		}
	})
}

func TestInputFilePaths(t *testing.T) {
	paths := InputFilePaths("refs")
	if len(paths) != len(InputFiles) {
		t.Fatalf("expected %d paths, got %d", len(InputFiles), len(paths))
	}
	if paths[0] != filepath.Join("refs", InputFiles[0]) {
		t.Errorf("unexpected path %s", paths[0])
	}
}
