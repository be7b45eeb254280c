package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoad_OCRConfig(t *testing.T) {
	// Setup environment variables
	os.Setenv("OCR_PROVIDER", "vision")
	os.Setenv("OCR_MAX_WAIT_SECONDS", "60")
	defer func() {
		os.Unsetenv("OCR_PROVIDER")
		os.Unsetenv("OCR_MAX_WAIT_SECONDS")
	}()

	cfg, err := Load()
	assert.NoError(t, err)

	assert.Equal(t, "vision", cfg.OCR.Provider)
	assert.Equal(t, 60, cfg.OCR.MaxWaitSeconds)
}

func TestLoad_Defaults(t *testing.T) {
	// Ensure env vars are cleared
	os.Unsetenv("OCR_PROVIDER")
	os.Unsetenv("OCR_MAX_WAIT_SECONDS")
	os.Unsetenv("STORAGE_BUCKET")

	cfg, err := Load()
	assert.NoError(t, err)

	assert.Equal(t, "textract", cfg.OCR.Provider)
	assert.Equal(t, 150, cfg.OCR.MaxWaitSeconds)
	assert.Equal(t, "carrier-shark-docs", cfg.Storage.Bucket)
	assert.Equal(t, "coi", cfg.Storage.KeyPrefix)
}

func TestDatabaseDSN(t *testing.T) {
	cfg := DatabaseConfig{
		Host:     "db",
		Port:     5432,
		User:     "shark",
		Password: "secret",
		Database: "carrier_shark",
		SSLMode:  "require",
	}

	assert.Equal(t,
		"host=db port=5432 user=shark password=secret dbname=carrier_shark sslmode=require",
		cfg.DatabaseDSN(),
	)
}
