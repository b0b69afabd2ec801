package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pelletier/go-toml/v2"
	"github.com/saransh1220/novel-notify/pkg/realtime"
)

const (
	defaultServer = "http://localhost:8080"
	envToken      = "NOTIFYCTL_TOKEN"
	envServer     = "NOTIFYCTL_SERVER"
)

type cliConfig struct {
	Server    string `toml:"server"`
	Token     string `toml:"token"`
	Transport string `toml:"transport"`
	LogLevel  string `toml:"log_level"`
	PageSize  int    `toml:"page_size"`
}

func defaultConfig() cliConfig {
	return cliConfig{
		Server:    defaultServer,
		Transport: string(realtime.TransportSSE),
		LogLevel:  "info",
		PageSize:  10,
	}
}

func defaultConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "notifyctl", "config.toml")
}

// loadConfig reads path over the defaults. A missing file is not an error.
func loadConfig(path string) (cliConfig, error) {
	cfg := defaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

// applyEnv overrides file values with the environment.
func (c *cliConfig) applyEnv() {
	if v := os.Getenv(envServer); v != "" {
		c.Server = v
	}
	if v := os.Getenv(envToken); v != "" {
		c.Token = v
	}
}

func (c cliConfig) validate() error {
	switch realtime.TransportKind(c.Transport) {
	case realtime.TransportSSE, realtime.TransportWebSocket:
	default:
		return fmt.Errorf("unknown transport %q (want sse or websocket)", c.Transport)
	}
	if strings.TrimSpace(c.Server) == "" {
		return errors.New("server address is empty")
	}
	if c.PageSize <= 0 {
		return fmt.Errorf("page_size must be positive, got %d", c.PageSize)
	}
	return nil
}

// userFromToken reads the user_id claim without verifying the signature.
// The server verifies it; the client only needs to know whose session it is.
func userFromToken(token string) (string, error) {
	if token == "" {
		return "", realtime.ErrNoCredential
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return "", fmt.Errorf("decode token: %w", err)
	}
	if id, ok := claims["user_id"].(string); ok && id != "" {
		return id, nil
	}
	if sub, err := claims.GetSubject(); err == nil && sub != "" {
		return sub, nil
	}
	return "", errors.New("token carries no user id")
}
