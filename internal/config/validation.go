// SPDX-License-Identifier: MIT

package config

import (
	"net"
	"strings"

	"github.com/seedlab/seedlab/internal/validate"
)

const minJWTSecretLen = 32

// Validate validates the resolved configuration.
func Validate(cfg AppConfig) error {
	v := validate.New()

	v.Directory("dataDir", cfg.DataDir, false)
	v.NotEmpty("server.listenAddr", cfg.Server.ListenAddr)
	if _, _, err := net.SplitHostPort(cfg.Server.ListenAddr); err != nil {
		v.AddError("server.listenAddr", "must be host:port", cfg.Server.ListenAddr)
	}
	for _, p := range cfg.Server.TrustedProxies {
		if _, _, err := net.ParseCIDR(p); err != nil {
			v.AddError("server.trustedProxies", "invalid CIDR", p)
		}
	}
	v.NonNegative("server.rateLimitRPM", cfg.Server.RateLimitRPM)
	v.NonNegative("server.authRateLimitRPM", cfg.Server.AuthRateLimitRPM)

	v.NotEmpty("database.path", cfg.Database.Path)
	v.Positive("database.maxOpenConns", cfg.Database.MaxOpenConns)

	if len(strings.TrimSpace(cfg.Auth.JWTSecret)) < minJWTSecretLen {
		v.AddError("auth.jwtSecret", "must be at least 32 characters (set SEEDLAB_JWT_SECRET)", nil)
	}
	v.Check(cfg.Auth.AccessTTL > 0, "auth.accessTTL", "must be positive")
	v.Check(cfg.Auth.RefreshTTL > cfg.Auth.AccessTTL, "auth.refreshTTL", "must be longer than accessTTL")
	v.Check(cfg.Auth.TrustedDeviceTTL > 0, "auth.trustedDeviceTTL", "must be positive")
	v.Check(cfg.Auth.RecoveryCodeTTL > 0, "auth.recoveryCodeTTL", "must be positive")
	v.Check(cfg.Auth.LockoutWindow > 0, "auth.lockoutWindow", "must be positive")
	v.Range("auth.backupCodeCount", cfg.Auth.BackupCodeCount, 4, 20)
	v.Range("auth.recoveryMaxTries", cfg.Auth.RecoveryMaxTries, 1, 20)
	v.Range("auth.maxFailedLogins", cfg.Auth.MaxFailedLogins, 1, 100)
	v.OneOf("auth.sessionBackend", cfg.Auth.SessionBackend, []string{"memory", "badger"})
	if cfg.Auth.SessionBackend == "badger" {
		v.NotEmpty("auth.sessionPath", cfg.Auth.SessionPath)
	}

	v.OneOf("cache.backend", cfg.Cache.Backend, []string{"memory", "redis"})
	if cfg.Cache.Backend == "redis" {
		v.NotEmpty("cache.redisAddr", cfg.Cache.RedisAddr)
	}

	if cfg.Mail.Enabled {
		v.NotEmpty("mail.host", cfg.Mail.Host)
		v.Port("mail.port", cfg.Mail.Port)
		v.Email("mail.from", cfg.Mail.From)
	}

	if cfg.Telemetry.Enabled {
		v.OneOf("telemetry.exporter", cfg.Telemetry.Exporter, []string{"grpc", "http"})
		v.NotEmpty("telemetry.endpoint", cfg.Telemetry.Endpoint)
		v.FloatRange("telemetry.samplingRate", cfg.Telemetry.SamplingRate, 0, 1)
	}

	if cfg.Bootstrap.AdminUsername != "" {
		v.Email("bootstrap.adminEmail", cfg.Bootstrap.AdminEmail)
		v.NotEmpty("bootstrap.adminPassword", cfg.Bootstrap.AdminPassword)
	}

	return v.Err()
}
