// Package config loads the bridge CLI configuration. Files are JWCC (JSON
// with comments and trailing commas), standardized through hujson before
// decoding, so configs can be annotated in place.
package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/tailscale/hujson"
)

type Config struct {
	Engine EngineConfig `json:"engine"`
	Socket SocketConfig `json:"socket"`
	Store  StoreConfig  `json:"store"`
}

type EngineConfig struct {
	// ModulePath points at the QuickJS guest binary with the wallet
	// bundle baked in.
	ModulePath         string `json:"module_path"`
	CallTimeoutSeconds int    `json:"call_timeout_seconds"`
}

type SocketConfig struct {
	Enabled    bool   `json:"enabled"`
	ListenAddr string `json:"listen_addr"`
	Path       string `json:"path"`
}

type StoreConfig struct {
	// RedisAddr switches script storage from in-memory to Redis.
	RedisAddr string `json:"redis_addr"`
}

func Default() Config {
	return Config{
		Engine: EngineConfig{
			CallTimeoutSeconds: 30,
		},
		Socket: SocketConfig{
			Enabled:    false,
			ListenAddr: ":8080",
			Path:       "/ws/walletkit",
		},
		Store: StoreConfig{
			RedisAddr: os.Getenv("REDIS_ADDR"),
		},
	}
}

func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config failed: %w", err)
	}
	standardized, err := hujson.Standardize(content)
	if err != nil {
		return Config{}, fmt.Errorf("standardize config failed: %w", err)
	}
	if err := json.Unmarshal(standardized, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config failed: %w", err)
	}

	if cfg.Engine.CallTimeoutSeconds <= 0 {
		cfg.Engine.CallTimeoutSeconds = 30
	}
	if cfg.Socket.ListenAddr == "" {
		cfg.Socket.ListenAddr = ":8080"
	}
	if cfg.Socket.Path == "" {
		cfg.Socket.Path = "/ws/walletkit"
	}

	return cfg, nil
}
