package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDefault_UsesDocumentedDefaults(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "usertest", cfg.Username)
	assert.Equal(t, "passtest", cfg.Password)
	assert.Equal(t, 10*time.Second, cfg.SessionTimeout)
	assert.Equal(t, 30*time.Second, cfg.DownloadTimeout)
}

func TestDefault_HonorsDownloadTimeoutEnvOverride(t *testing.T) {
	t.Setenv("DOWNLOAD_TIMEOUT", "5000")
	cfg := Default()
	assert.Equal(t, 5*time.Second, cfg.DownloadTimeout)
}

func TestDefault_IgnoresInvalidDownloadTimeoutEnv(t *testing.T) {
	t.Setenv("DOWNLOAD_TIMEOUT", "not-a-number")
	cfg := Default()
	assert.Equal(t, 30*time.Second, cfg.DownloadTimeout)
}

func TestIdentity_MapsEveryField(t *testing.T) {
	cfg := Config{
		Manufacturer: "cwmpcpe",
		OUI:          "000000",
		ProductClass: "Simulator",
		SerialNumber: "CWMPCPE0000001",
		MACAddress:   "00:11:22:33:44:55",
		Username:     "u",
		Password:     "p",
	}
	id := cfg.Identity()
	assert.Equal(t, "cwmpcpe", id.Manufacturer)
	assert.Equal(t, "CWMPCPE0000001", id.SerialNumber)
	assert.Equal(t, "u", id.Username)
}
