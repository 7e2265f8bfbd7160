package config

import (
	"strings"
	"testing"
	"time"
)

func validConfig() *Config {
	return &Config{
		AccessSecret:   "access-secret",
		RefreshSecret:  "refresh-secret",
		AccessTTL:      30 * time.Minute,
		RefreshTTL:     30 * 24 * time.Hour,
		StorageBackend: "minio",
	}
}

func TestValidate_OK(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}
}

func TestValidate_MissingAccessSecret(t *testing.T) {
	cfg := validConfig()
	cfg.AccessSecret = ""

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for missing SECRET_KEY")
	}
}

func TestValidate_MissingRefreshSecret(t *testing.T) {
	// A missing refresh secret must fail startup rather than fall
	// back to signing refresh tokens with the access secret.
	cfg := validConfig()
	cfg.RefreshSecret = ""

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for missing REFRESH_SECRET_KEY")
	}
	if !strings.Contains(err.Error(), "REFRESH_SECRET_KEY") {
		t.Errorf("error should name the missing variable, got %v", err)
	}
}

func TestValidate_SharedSecretRejected(t *testing.T) {
	cfg := validConfig()
	cfg.RefreshSecret = cfg.AccessSecret

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error when both secrets match")
	}
}

func TestValidate_UnknownStorageBackend(t *testing.T) {
	cfg := validConfig()
	cfg.StorageBackend = "ftp"

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for unknown storage backend")
	}
}
