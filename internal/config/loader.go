// SPDX-License-Identifier: MIT

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Loader handles configuration loading with precedence
type Loader struct {
	configPath      string
	version         string
	ConsumedEnvKeys map[string]struct{}
}

// NewLoader creates a new configuration loader
func NewLoader(configPath, version string) *Loader {
	return &Loader{
		configPath:      configPath,
		version:         version,
		ConsumedEnvKeys: make(map[string]struct{}),
	}
}

// Path returns the config file path ("" when running from ENV only).
func (l *Loader) Path() string { return l.configPath }

func (l *Loader) key(name string) string {
	k := EnvPrefix + name
	l.ConsumedEnvKeys[k] = struct{}{}
	return k
}

// Load loads configuration with precedence: ENV > File > Defaults
func (l *Loader) Load() (AppConfig, error) {
	cfg := Defaults()

	if l.configPath != "" {
		fileCfg, err := l.loadFile(l.configPath)
		if err != nil {
			return cfg, fmt.Errorf("load config file: %w", err)
		}
		if err := mergeFileConfig(&cfg, fileCfg); err != nil {
			return cfg, fmt.Errorf("merge file config: %w", err)
		}
	}

	l.mergeEnvConfig(&cfg)
	cfg.Version = l.version

	if abs, err := filepath.Abs(cfg.DataDir); err == nil {
		cfg.DataDir = abs
	}
	if cfg.Database.Path != "" && !filepath.IsAbs(cfg.Database.Path) {
		cfg.Database.Path = filepath.Join(cfg.DataDir, cfg.Database.Path)
	}
	if cfg.Auth.SessionPath != "" && !filepath.IsAbs(cfg.Auth.SessionPath) {
		cfg.Auth.SessionPath = filepath.Join(cfg.DataDir, cfg.Auth.SessionPath)
	}

	if err := Validate(cfg); err != nil {
		return cfg, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// loadFile loads configuration from a YAML file with STRICT parsing.
// Unknown fields will cause a fatal error to prevent misconfiguration.
func (l *Loader) loadFile(path string) (*FileConfig, error) {
	path = filepath.Clean(path)

	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("unsupported config format: %s (only YAML supported)", ext)
	}

	// #nosec G304 -- configuration file paths are provided by the operator via CLI/ENV
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	var fileCfg FileConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	if err := dec.Decode(&fileCfg); err != nil {
		if errors.Is(err, io.EOF) {
			return &FileConfig{}, nil
		}
		return nil, fmt.Errorf("strict config parse error: %w", err)
	}

	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config file contains multiple documents or trailing content")
	}

	return &fileCfg, nil
}

// LoadFileConfig loads a YAML config file without applying defaults or env overrides.
func LoadFileConfig(path string) (*FileConfig, error) {
	return NewLoader(path, "").loadFile(path)
}

func parseDur(field, raw string, dst *time.Duration) error {
	if raw == "" {
		return nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("%s: invalid duration %q: %w", field, raw, err)
	}
	*dst = d
	return nil
}

// mergeFileConfig overlays the non-empty file values onto dst.
func mergeFileConfig(dst *AppConfig, src *FileConfig) error {
	if src.DataDir != "" {
		dst.DataDir = src.DataDir
	}
	if f := src.Log; f != nil {
		setStr(&dst.Log.Level, f.Level)
		setStr(&dst.Log.Service, f.Service)
	}
	if f := src.Server; f != nil {
		setStr(&dst.Server.ListenAddr, f.ListenAddr)
		for field, pair := range map[string]struct {
			raw string
			dst *time.Duration
		}{
			"server.readTimeout":     {f.ReadTimeout, &dst.Server.ReadTimeout},
			"server.writeTimeout":    {f.WriteTimeout, &dst.Server.WriteTimeout},
			"server.idleTimeout":     {f.IdleTimeout, &dst.Server.IdleTimeout},
			"server.shutdownTimeout": {f.ShutdownTimeout, &dst.Server.ShutdownTimeout},
		} {
			if err := parseDur(field, pair.raw, pair.dst); err != nil {
				return err
			}
		}
		if len(f.AllowedOrigins) > 0 {
			dst.Server.AllowedOrigins = append([]string(nil), f.AllowedOrigins...)
		}
		if len(f.TrustedProxies) > 0 {
			dst.Server.TrustedProxies = append([]string(nil), f.TrustedProxies...)
		}
		setBool(&dst.Server.EnableCSRF, f.EnableCSRF)
		setInt(&dst.Server.RateLimitRPM, f.RateLimitRPM)
		setInt(&dst.Server.AuthRateLimitRPM, f.AuthRateLimitRPM)
	}
	if f := src.Database; f != nil {
		setStr(&dst.Database.Path, f.Path)
		if err := parseDur("database.busyTimeout", f.BusyTimeout, &dst.Database.BusyTimeout); err != nil {
			return err
		}
		setInt(&dst.Database.MaxOpenConns, f.MaxOpenConns)
	}
	if f := src.Auth; f != nil {
		setStr(&dst.Auth.JWTSecret, f.JWTSecret)
		setStr(&dst.Auth.Issuer, f.Issuer)
		setStr(&dst.Auth.TOTPIssuer, f.TOTPIssuer)
		setStr(&dst.Auth.SessionBackend, f.SessionBackend)
		setStr(&dst.Auth.SessionPath, f.SessionPath)
		setInt(&dst.Auth.BackupCodeCount, f.BackupCodeCount)
		setInt(&dst.Auth.RecoveryMaxTries, f.RecoveryMaxTries)
		setInt(&dst.Auth.MaxFailedLogins, f.MaxFailedLogins)
		setBool(&dst.Auth.Require2FAForAdmin, f.Require2FAForAdmin)
		for field, pair := range map[string]struct {
			raw string
			dst *time.Duration
		}{
			"auth.accessTTL":        {f.AccessTTL, &dst.Auth.AccessTTL},
			"auth.refreshTTL":       {f.RefreshTTL, &dst.Auth.RefreshTTL},
			"auth.trustedDeviceTTL": {f.TrustedDeviceTTL, &dst.Auth.TrustedDeviceTTL},
			"auth.recoveryCodeTTL":  {f.RecoveryCodeTTL, &dst.Auth.RecoveryCodeTTL},
			"auth.lockoutWindow":    {f.LockoutWindow, &dst.Auth.LockoutWindow},
			"auth.purgeInterval":    {f.PurgeInterval, &dst.Auth.PurgeInterval},
		} {
			if err := parseDur(field, pair.raw, pair.dst); err != nil {
				return err
			}
		}
	}
	if f := src.Cache; f != nil {
		setStr(&dst.Cache.Backend, f.Backend)
		setStr(&dst.Cache.RedisAddr, f.RedisAddr)
		setStr(&dst.Cache.RedisPassword, f.RedisPassword)
		setInt(&dst.Cache.RedisDB, f.RedisDB)
		if err := parseDur("cache.dashboardTTL", f.DashboardTTL, &dst.Cache.DashboardTTL); err != nil {
			return err
		}
	}
	if f := src.Mail; f != nil {
		setBool(&dst.Mail.Enabled, f.Enabled)
		setStr(&dst.Mail.Host, f.Host)
		setInt(&dst.Mail.Port, f.Port)
		setStr(&dst.Mail.Username, f.Username)
		setStr(&dst.Mail.Password, f.Password)
		setStr(&dst.Mail.From, f.From)
	}
	if f := src.Telemetry; f != nil {
		setBool(&dst.Telemetry.Enabled, f.Enabled)
		setStr(&dst.Telemetry.Exporter, f.Exporter)
		setStr(&dst.Telemetry.Endpoint, f.Endpoint)
		setStr(&dst.Telemetry.Environment, f.Environment)
		if f.SamplingRate != nil {
			dst.Telemetry.SamplingRate = *f.SamplingRate
		}
	}
	if f := src.Bootstrap; f != nil {
		setStr(&dst.Bootstrap.AdminUsername, f.AdminUsername)
		setStr(&dst.Bootstrap.AdminEmail, f.AdminEmail)
		setStr(&dst.Bootstrap.AdminPassword, f.AdminPassword)
	}
	return nil
}

// mergeEnvConfig applies SEEDLAB_* environment overrides (highest priority).
func (l *Loader) mergeEnvConfig(cfg *AppConfig) {
	cfg.DataDir = ParseString(l.key("DATA"), cfg.DataDir)

	cfg.Log.Level = ParseString(l.key("LOG_LEVEL"), cfg.Log.Level)
	cfg.Log.Service = ParseString(l.key("LOG_SERVICE"), cfg.Log.Service)

	cfg.Server.ListenAddr = ParseString(l.key("LISTEN"), cfg.Server.ListenAddr)
	cfg.Server.ReadTimeout = ParseDuration(l.key("READ_TIMEOUT"), cfg.Server.ReadTimeout)
	cfg.Server.WriteTimeout = ParseDuration(l.key("WRITE_TIMEOUT"), cfg.Server.WriteTimeout)
	cfg.Server.ShutdownTimeout = ParseDuration(l.key("SHUTDOWN_TIMEOUT"), cfg.Server.ShutdownTimeout)
	cfg.Server.AllowedOrigins = ParseList(l.key("ALLOWED_ORIGINS"), cfg.Server.AllowedOrigins)
	cfg.Server.TrustedProxies = ParseList(l.key("TRUSTED_PROXIES"), cfg.Server.TrustedProxies)
	cfg.Server.EnableCSRF = ParseBool(l.key("CSRF"), cfg.Server.EnableCSRF)
	cfg.Server.RateLimitRPM = ParseInt(l.key("RATE_LIMIT_RPM"), cfg.Server.RateLimitRPM)
	cfg.Server.AuthRateLimitRPM = ParseInt(l.key("AUTH_RATE_LIMIT_RPM"), cfg.Server.AuthRateLimitRPM)

	cfg.Database.Path = ParseString(l.key("DB_PATH"), cfg.Database.Path)
	cfg.Database.BusyTimeout = ParseDuration(l.key("DB_BUSY_TIMEOUT"), cfg.Database.BusyTimeout)
	cfg.Database.MaxOpenConns = ParseInt(l.key("DB_MAX_OPEN_CONNS"), cfg.Database.MaxOpenConns)

	cfg.Auth.JWTSecret = ParseString(l.key("JWT_SECRET"), cfg.Auth.JWTSecret)
	cfg.Auth.Issuer = ParseString(l.key("JWT_ISSUER"), cfg.Auth.Issuer)
	cfg.Auth.AccessTTL = ParseDuration(l.key("ACCESS_TTL"), cfg.Auth.AccessTTL)
	cfg.Auth.RefreshTTL = ParseDuration(l.key("REFRESH_TTL"), cfg.Auth.RefreshTTL)
	cfg.Auth.TOTPIssuer = ParseString(l.key("TOTP_ISSUER"), cfg.Auth.TOTPIssuer)
	cfg.Auth.TrustedDeviceTTL = ParseDuration(l.key("TRUSTED_DEVICE_TTL"), cfg.Auth.TrustedDeviceTTL)
	cfg.Auth.BackupCodeCount = ParseInt(l.key("BACKUP_CODE_COUNT"), cfg.Auth.BackupCodeCount)
	cfg.Auth.RecoveryCodeTTL = ParseDuration(l.key("RECOVERY_CODE_TTL"), cfg.Auth.RecoveryCodeTTL)
	cfg.Auth.RecoveryMaxTries = ParseInt(l.key("RECOVERY_MAX_TRIES"), cfg.Auth.RecoveryMaxTries)
	cfg.Auth.MaxFailedLogins = ParseInt(l.key("MAX_FAILED_LOGINS"), cfg.Auth.MaxFailedLogins)
	cfg.Auth.LockoutWindow = ParseDuration(l.key("LOCKOUT_WINDOW"), cfg.Auth.LockoutWindow)
	cfg.Auth.Require2FAForAdmin = ParseBool(l.key("REQUIRE_2FA_ADMIN"), cfg.Auth.Require2FAForAdmin)
	cfg.Auth.SessionBackend = ParseString(l.key("SESSION_BACKEND"), cfg.Auth.SessionBackend)
	cfg.Auth.SessionPath = ParseString(l.key("SESSION_PATH"), cfg.Auth.SessionPath)
	cfg.Auth.PurgeInterval = ParseDuration(l.key("PURGE_INTERVAL"), cfg.Auth.PurgeInterval)

	cfg.Cache.Backend = ParseString(l.key("CACHE_BACKEND"), cfg.Cache.Backend)
	cfg.Cache.RedisAddr = ParseString(l.key("REDIS_ADDR"), cfg.Cache.RedisAddr)
	cfg.Cache.RedisPassword = ParseString(l.key("REDIS_PASSWORD"), cfg.Cache.RedisPassword)
	cfg.Cache.RedisDB = ParseInt(l.key("REDIS_DB"), cfg.Cache.RedisDB)
	cfg.Cache.DashboardTTL = ParseDuration(l.key("DASHBOARD_TTL"), cfg.Cache.DashboardTTL)

	cfg.Mail.Enabled = ParseBool(l.key("MAIL_ENABLED"), cfg.Mail.Enabled)
	cfg.Mail.Host = ParseString(l.key("MAIL_HOST"), cfg.Mail.Host)
	cfg.Mail.Port = ParseInt(l.key("MAIL_PORT"), cfg.Mail.Port)
	cfg.Mail.Username = ParseString(l.key("MAIL_USERNAME"), cfg.Mail.Username)
	cfg.Mail.Password = ParseString(l.key("MAIL_PASSWORD"), cfg.Mail.Password)
	cfg.Mail.From = ParseString(l.key("MAIL_FROM"), cfg.Mail.From)

	cfg.Telemetry.Enabled = ParseBool(l.key("TRACING_ENABLED"), cfg.Telemetry.Enabled)
	cfg.Telemetry.Exporter = ParseString(l.key("TRACING_EXPORTER"), cfg.Telemetry.Exporter)
	cfg.Telemetry.Endpoint = ParseString(l.key("TRACING_ENDPOINT"), cfg.Telemetry.Endpoint)
	cfg.Telemetry.SamplingRate = ParseFloat(l.key("TRACING_SAMPLING_RATE"), cfg.Telemetry.SamplingRate)

	cfg.Bootstrap.AdminUsername = ParseString(l.key("ADMIN_USERNAME"), cfg.Bootstrap.AdminUsername)
	cfg.Bootstrap.AdminEmail = ParseString(l.key("ADMIN_EMAIL"), cfg.Bootstrap.AdminEmail)
	cfg.Bootstrap.AdminPassword = ParseString(l.key("ADMIN_PASSWORD"), cfg.Bootstrap.AdminPassword)
}

func setStr(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}
