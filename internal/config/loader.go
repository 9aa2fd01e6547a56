package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"sync"

	"github.com/spf13/viper"
	"github.com/tidwall/jsonc"
)

// envPrefix is the prefix for environment overrides: DRES_HOST, DRES_PORT,
// DRES_TLS, DRES_USER, DRES_PASSWORD.
const envPrefix = "DRES"

// Resolver produces a fully populated Configuration by merging the built-in
// defaults, dresapi.json, environment overrides and, when credentials are
// still missing, credentials.json.
//
// The first successful resolution is cached; later calls return the same
// *Configuration without touching the disk until Replace is called.
// Resolver is safe for concurrent use.
type Resolver struct {
	paths  Paths
	logger *slog.Logger

	mu  sync.Mutex
	cfg *Configuration
}

// NewResolver creates a Resolver reading files from the given paths.
func NewResolver(paths Paths, logger *slog.Logger) *Resolver {
	return &Resolver{
		paths:  paths,
		logger: logger,
	}
}

// Paths returns the file locations used by this resolver.
func (r *Resolver) Paths() Paths {
	return r.paths
}

// Resolve returns the merged Configuration.
// Returns a *CredentialsMissingError (errors.Is ErrCredentialsMissing) when
// neither source supplies both user and password. Failures are not cached.
func (r *Resolver) Resolve() (*Configuration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cfg != nil {
		return r.cfg, nil
	}

	cfg, err := r.load()
	if err != nil {
		return nil, err
	}

	if !cfg.HasCredentials() {
		creds, err := r.loadCredentials()
		if err != nil {
			return nil, err
		}
		cfg.User = creds.Username
		cfg.Password = creds.Password
	}

	// A credentials file with blank fields is as good as none.
	if !cfg.HasCredentials() {
		return nil, &CredentialsMissingError{Path: r.paths.CredentialsPath()}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	r.cfg = cfg
	return cfg, nil
}

// LoadRaw reads defaults, the config file and environment overrides, but
// does NOT consult the credentials file, validate, or touch the cache.
// Use this for editing and persisting the configuration.
func (r *Resolver) LoadRaw() (*Configuration, error) {
	return r.load()
}

// Replace swaps the cached configuration. Subsequent Resolve calls return
// cfg. Passing nil forces the next Resolve to read from disk again.
func (r *Resolver) Replace(cfg *Configuration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cfg = cfg
}

// load applies defaults < config file < environment.
func (r *Resolver) load() (*Configuration, error) {
	v := newViper()

	path := r.paths.ConfigPath()
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := v.ReadConfig(bytes.NewReader(jsonc.ToJSON(data))); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
		r.logger.Debug("loaded DRES config", "file", path)
	case errors.Is(err, fs.ErrNotExist):
		r.logger.Info("no DRES config file found, using defaults", "path", path)
	default:
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Configuration
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

// loadCredentials reads credentials.json.
func (r *Resolver) loadCredentials() (*Credentials, error) {
	path := r.paths.CredentialsPath()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &CredentialsMissingError{Path: path}
		}
		return nil, fmt.Errorf("read credentials file: %w", err)
	}

	var creds Credentials
	if err := json.Unmarshal(jsonc.ToJSON(data), &creds); err != nil {
		return nil, fmt.Errorf("parse credentials file %s: %w", path, err)
	}
	r.logger.Debug("loaded DRES credentials", "file", path, "user", creds.Username)
	return &creds, nil
}

// newViper returns an isolated Viper instance with defaults and environment
// bindings. A fresh instance per load keeps resolvers independent of each
// other and of the process-global Viper.
func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("json")

	v.SetDefault("host", DefaultHost)
	v.SetDefault("port", DefaultPort)
	v.SetDefault("tls", false)
	v.SetDefault("user", "")
	v.SetDefault("password", "")

	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	for _, key := range []string{"host", "port", "tls", "user", "password"} {
		_ = v.BindEnv(key)
	}
	return v
}
