package gcp

import (
	"fmt"
	"net/url"
	"os"
	"strings"
)

type StorageMode string

const (
	StorageModeGCS         StorageMode = "gcs"
	StorageModeGCSEmulator StorageMode = "gcs_emulator"
)

type StorageConfig struct {
	Mode         StorageMode
	EmulatorHost string
	// Inferred is true when the mode was derived from STORAGE_EMULATOR_HOST
	// rather than set explicitly through OBJECT_STORAGE_MODE.
	Inferred bool
}

func (cfg StorageConfig) IsEmulator() bool { return cfg.Mode == StorageModeGCSEmulator }

type StorageConfigError struct {
	Field string
	Value string
	Cause error
}

func (e *StorageConfigError) Error() string {
	if e == nil {
		return "invalid object storage config"
	}
	switch e.Field {
	case "OBJECT_STORAGE_MODE":
		return fmt.Sprintf("invalid OBJECT_STORAGE_MODE=%q (allowed: %q, %q)", e.Value, StorageModeGCS, StorageModeGCSEmulator)
	case "STORAGE_EMULATOR_HOST":
		if e.Value == "" {
			return fmt.Sprintf("OBJECT_STORAGE_MODE=%q requires STORAGE_EMULATOR_HOST", StorageModeGCSEmulator)
		}
		return fmt.Sprintf("invalid STORAGE_EMULATOR_HOST=%q; expected absolute URL like http://fake-gcs:4443", e.Value)
	default:
		return "invalid object storage config"
	}
}

func (e *StorageConfigError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

func StorageConfigFromEnv() (StorageConfig, error) {
	cfg := StorageConfig{EmulatorHost: strings.TrimSpace(os.Getenv("STORAGE_EMULATOR_HOST"))}
	raw := strings.TrimSpace(os.Getenv("OBJECT_STORAGE_MODE"))
	switch StorageMode(strings.ToLower(raw)) {
	case "":
		cfg.Mode = StorageModeGCS
		if cfg.EmulatorHost != "" {
			cfg.Mode = StorageModeGCSEmulator
			cfg.Inferred = true
		}
	case StorageModeGCS:
		cfg.Mode = StorageModeGCS
	case StorageModeGCSEmulator:
		cfg.Mode = StorageModeGCSEmulator
	default:
		return cfg, &StorageConfigError{Field: "OBJECT_STORAGE_MODE", Value: raw}
	}
	return cfg, ValidateStorageConfig(cfg)
}

func ValidateStorageConfig(cfg StorageConfig) error {
	switch cfg.Mode {
	case StorageModeGCS:
		return nil
	case StorageModeGCSEmulator:
	default:
		return &StorageConfigError{Field: "OBJECT_STORAGE_MODE", Value: string(cfg.Mode)}
	}
	if cfg.EmulatorHost == "" {
		return &StorageConfigError{Field: "STORAGE_EMULATOR_HOST"}
	}
	u, err := url.Parse(cfg.EmulatorHost)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return &StorageConfigError{Field: "STORAGE_EMULATOR_HOST", Value: cfg.EmulatorHost, Cause: err}
	}
	return nil
}
