// Package config loads configuration from environment variables.
package config

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/filepulse/sftp-mcp-server/internal/errs"
)

// Environment keys.
const (
	EnvHost               = "SFTP_HOST"
	EnvUsername           = "SFTP_USERNAME"
	EnvPassword           = "SFTP_PASSWORD"
	EnvPort               = "SFTP_PORT"
	EnvHostKeyPolicy      = "SFTP_HOST_KEY_POLICY"
	EnvKnownHosts         = "SFTP_KNOWN_HOSTS"
	EnvHostKeyFingerprint = "SFTP_HOST_KEY_FINGERPRINT"
	EnvDialTimeout        = "SFTP_DIAL_TIMEOUT"
	EnvAllowDisconnected  = "SFTP_ALLOW_DISCONNECTED"
)

// HostKeyPolicy selects how the server's host key is verified.
type HostKeyPolicy string

const (
	HostKeyKnownHosts  HostKeyPolicy = "known_hosts"
	HostKeyFingerprint HostKeyPolicy = "fingerprint"
	// HostKeyAcceptAll skips server identity verification entirely.
	HostKeyAcceptAll HostKeyPolicy = "accept_all"
)

// Transport values for Config.Transport.
const (
	TransportStdio = "stdio"
	TransportHTTP  = "http"
)

// SFTP holds the settings needed to open the remote session.
type SFTP struct {
	Host     string
	Port     int
	Username string
	Password string

	HostKeyPolicy      HostKeyPolicy
	KnownHostsFile     string
	HostKeyFingerprint string

	DialTimeout time.Duration

	// AllowDisconnected keeps the server running after a failed connect.
	AllowDisconnected bool
}

// Addr returns host:port. A port already present in Host wins.
func (s SFTP) Addr() string {
	if _, _, err := net.SplitHostPort(s.Host); err == nil {
		return s.Host
	}
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// Config holds all server configuration.
type Config struct {
	SFTP SFTP

	// MCP transport ("stdio" or "http")
	Transport  string
	ListenAddr string

	// Empty disables the metrics endpoint.
	MetricsAddr string

	// Logging
	LogLevel  string
	LogFormat string
}

// LoadEnvFile loads KEY=VALUE pairs from path into the process environment.
// Variables already set are left alone. A missing default ".env" is not an
// error; a missing explicitly named file is.
func LoadEnvFile(path string) error {
	explicit := path != ""
	if !explicit {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if !explicit && os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

// Load reads configuration from environment variables with defaults.
func Load() (*Config, error) {
	cfg := &Config{
		SFTP: SFTP{
			Host:               os.Getenv(EnvHost),
			Username:           os.Getenv(EnvUsername),
			Password:           os.Getenv(EnvPassword),
			HostKeyPolicy:      HostKeyPolicy(envOr(EnvHostKeyPolicy, string(HostKeyKnownHosts))),
			KnownHostsFile:     envOr(EnvKnownHosts, defaultKnownHosts()),
			HostKeyFingerprint: envOr(EnvHostKeyFingerprint, ""),
		},
		Transport:   envOr("MCP_TRANSPORT", TransportStdio),
		ListenAddr:  envOr("LISTEN_ADDR", ":8080"),
		MetricsAddr: envOr("METRICS_ADDR", ""),
		LogLevel:    envOr("LOG_LEVEL", "info"),
		LogFormat:   envOr("LOG_FORMAT", "json"),
	}

	for _, req := range []struct {
		key string
		val string
	}{
		{EnvHost, cfg.SFTP.Host},
		{EnvUsername, cfg.SFTP.Username},
		{EnvPassword, cfg.SFTP.Password},
	} {
		if req.val == "" {
			return nil, errs.Configuration(req.key)
		}
	}

	var err error
	if cfg.SFTP.Port, err = envInt(EnvPort, 22); err != nil {
		return nil, err
	}
	if cfg.SFTP.Port <= 0 || cfg.SFTP.Port > 65535 {
		return nil, errs.InvalidConfig(EnvPort, fmt.Errorf("port %d out of range", cfg.SFTP.Port))
	}
	if cfg.SFTP.DialTimeout, err = envDuration(EnvDialTimeout, 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.SFTP.AllowDisconnected, err = envBool(EnvAllowDisconnected, false); err != nil {
		return nil, err
	}

	switch cfg.SFTP.HostKeyPolicy {
	case HostKeyKnownHosts:
		if cfg.SFTP.KnownHostsFile == "" {
			return nil, errs.Configuration(EnvKnownHosts)
		}
	case HostKeyFingerprint:
		if cfg.SFTP.HostKeyFingerprint == "" {
			return nil, errs.Configuration(EnvHostKeyFingerprint)
		}
	case HostKeyAcceptAll:
	default:
		return nil, errs.InvalidConfig(EnvHostKeyPolicy,
			fmt.Errorf("unknown policy %q (want %s, %s or %s)",
				cfg.SFTP.HostKeyPolicy, HostKeyKnownHosts, HostKeyFingerprint, HostKeyAcceptAll))
	}

	switch cfg.Transport {
	case TransportStdio, TransportHTTP:
	default:
		return nil, errs.InvalidConfig("MCP_TRANSPORT", fmt.Errorf("unknown transport %q", cfg.Transport))
	}

	return cfg, nil
}

func defaultKnownHosts() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".ssh", "known_hosts")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envBool(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return fallback, errs.InvalidConfig(key, err)
	}
	return b, nil
}

func envInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	i, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return fallback, errs.InvalidConfig(key, err)
	}
	return i, nil
}

func envDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(strings.TrimSpace(v))
	if err != nil {
		return fallback, errs.InvalidConfig(key, err)
	}
	return d, nil
}
