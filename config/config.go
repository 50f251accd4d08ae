// Package config centralizes reson8's environment-derived configuration.
// It reads from process environment variables, optionally preloaded from a
// .env file for local development.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config carries the server's full configuration surface: the listen
// address, the two store URLs, the SFU's public-facing network identity,
// optional TURN relay credentials, the admin bootstrap id, and the seed flag.
type Config struct {
	Server   ServerConfig
	Durable  DurableConfig
	Presence PresenceConfig
	SFU      SFUConfig
	TURN     TURNConfig
	Admin    AdminConfig
	Seed     bool
}

// ServerConfig is the WebSocket/HTTP bind address.
type ServerConfig struct {
	Host string
	Port int
}

// DurableConfig names the relational store's connection string — a SQLite
// file path in the reference deployment.
type DurableConfig struct {
	URL string
}

// PresenceConfig names the volatile store's connection string. An empty
// value, or one that is neither a redis:// nor a rediss:// URL, selects the
// in-process fallback.
type PresenceConfig struct {
	URL string
}

// SFUConfig controls the in-process SFU's network-facing identity.
type SFUConfig struct {
	AnnouncedAddress string
	RTCPortMin       uint16
	RTCPortMax       uint16
}

// TURNConfig carries optional relay credentials handed back to clients
// during CREATE_WEBRTC_TRANSPORT. All three fields empty means no TURN
// server is advertised.
type TURNConfig struct {
	URL        string
	Username   string
	Credential string
	// Secret, when set, selects ephemeral per-request credential
	// generation (turnrelay.Ephemeral) over the static Username/Credential
	// pair.
	Secret string
}

// AdminConfig names the installation id that is auto-assigned the admin
// role on every JOIN_SERVER (an already-held role is left as is), if set.
type AdminConfig struct {
	InstanceID string
}

// Load builds a Config from the process environment. A .env file in the
// working directory is loaded first, if present; its absence is not an
// error.
func Load() (*Config, error) {
	_ = godotenv.Load()

	port, err := strconv.Atoi(getEnv("LISTEN_PORT", "9090"))
	if err != nil {
		return nil, fmt.Errorf("invalid LISTEN_PORT: %w", err)
	}

	portMin, portMax, err := parsePortRange(getEnv("SFU_RTC_PORT_RANGE", "50000-50100"))
	if err != nil {
		return nil, fmt.Errorf("invalid SFU_RTC_PORT_RANGE: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Host: getEnv("LISTEN_HOST", "0.0.0.0"),
			Port: port,
		},
		Durable: DurableConfig{
			URL: getEnv("DURABLE_STORE_URL", "./data/reson8.db"),
		},
		Presence: PresenceConfig{
			URL: getEnv("PRESENCE_STORE_URL", ""),
		},
		SFU: SFUConfig{
			AnnouncedAddress: getEnv("SFU_ANNOUNCED_ADDRESS", "127.0.0.1"),
			RTCPortMin:       portMin,
			RTCPortMax:       portMax,
		},
		TURN: TURNConfig{
			URL:        getEnv("TURN_URL", ""),
			Username:   getEnv("TURN_USERNAME", ""),
			Credential: getEnv("TURN_CREDENTIAL", ""),
			Secret:     getEnv("TURN_SECRET", ""),
		},
		Admin: AdminConfig{
			InstanceID: getEnv("ADMIN_INSTANCE_ID", ""),
		},
		Seed: getEnv("SEED_TEMPLATE", "false") == "true",
	}

	return cfg, nil
}

// Addr returns the address the HTTP/WebSocket listener binds to.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func parsePortRange(raw string) (uint16, uint16, error) {
	parts := strings.SplitN(raw, "-", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("expected MIN-MAX, got %q", raw)
	}
	min, err := strconv.ParseUint(strings.TrimSpace(parts[0]), 10, 16)
	if err != nil {
		return 0, 0, err
	}
	max, err := strconv.ParseUint(strings.TrimSpace(parts[1]), 10, 16)
	if err != nil {
		return 0, 0, err
	}
	return uint16(min), uint16(max), nil
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}
