// Package config holds the launcher-supplied settings spec.md §6.3
// lists as the data-model loader/CLI collaborator's responsibility:
// ACS URL, device identity, and timeouts.
package config

import (
	"os"
	"strconv"
	"time"

	"cwmpcpe/internal/datamodel"
)

const (
	defaultUsername        = "usertest"
	defaultPassword        = "passtest"
	defaultSessionTimeout  = 10 * time.Second
	defaultDownloadTimeout = 30 * time.Second
)

// Config is everything the launcher hands to the simulator before it
// starts (spec.md §6.3).
type Config struct {
	ACSURL          string
	SerialNumber    string
	MACAddress      string
	Manufacturer    string
	OUI             string
	ProductClass    string
	SessionTimeout  time.Duration
	DownloadTimeout time.Duration
	Username        string
	Password        string
	DataModelFile   string
}

// Default returns a Config with the spec's documented defaults; the
// launcher overrides fields from flags before calling it runnable.
func Default() Config {
	return Config{
		SerialNumber:    "CWMPCPE0000001",
		MACAddress:      "00:11:22:33:44:55",
		Manufacturer:    "cwmpcpe",
		OUI:             "000000",
		ProductClass:    "Simulator",
		SessionTimeout:  defaultSessionTimeout,
		DownloadTimeout: downloadTimeoutFromEnv(),
		Username:        defaultUsername,
		Password:        defaultPassword,
	}
}

// downloadTimeoutFromEnv implements spec.md §6.3's optional
// DOWNLOAD_TIMEOUT env var, in milliseconds, default 30000.
func downloadTimeoutFromEnv() time.Duration {
	raw := os.Getenv("DOWNLOAD_TIMEOUT")
	if raw == "" {
		return defaultDownloadTimeout
	}
	ms, err := strconv.Atoi(raw)
	if err != nil || ms <= 0 {
		return defaultDownloadTimeout
	}
	return time.Duration(ms) * time.Millisecond
}

// Identity adapts Config into the datamodel.Identity the parameter
// store needs.
func (c Config) Identity() datamodel.Identity {
	return datamodel.Identity{
		Manufacturer: c.Manufacturer,
		OUI:          c.OUI,
		ProductClass: c.ProductClass,
		SerialNumber: c.SerialNumber,
		MACAddress:   c.MACAddress,
		Username:     c.Username,
		Password:     c.Password,
	}
}
