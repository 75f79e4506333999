// SPDX-License-Identifier: MIT

package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/seedlab/seedlab/internal/app/bootstrap"
	"github.com/seedlab/seedlab/internal/config"
	"github.com/seedlab/seedlab/internal/version"
)

const redacted = "***"

func runConfigCLI(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 || args[0] == "-h" || args[0] == "--help" || args[0] == "help" {
		printUsage(stderr)
		return 0
	}

	switch args[0] {
	case "validate":
		return runConfigValidate(args[1:], stdout, stderr)
	case "dump":
		return runConfigDump(args[1:], stdout, stderr)
	default:
		fmt.Fprintf(stderr, "Unknown subcommand: %s\n\n", args[0])
		printUsage(stderr)
		return 2
	}
}

func runConfigValidate(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("seedlabd config validate", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "path to YAML configuration file")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	_, path, err := bootstrap.LoadConfig(version.Version, *configPath)
	if err != nil {
		fmt.Fprintf(stderr, "Configuration error:\n  %v\n", err)
		return 1
	}
	if path == "" {
		path = "environment"
	}
	fmt.Fprintf(stdout, "%s is valid\n", path)
	return 0
}

func runConfigDump(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("seedlabd config dump", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "path to YAML configuration file")
	format := fs.String("format", "yaml", "output format: yaml or json")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	cfg, _, err := bootstrap.LoadConfig(version.Version, *configPath)
	if err != nil {
		fmt.Fprintf(stderr, "Configuration error:\n  %v\n", err)
		return 1
	}
	fileCfg := fileConfigFromAppConfig(cfg)
	redactFileConfigSecrets(&fileCfg)

	switch strings.ToLower(strings.TrimSpace(*format)) {
	case "yaml", "yml":
		enc := yaml.NewEncoder(stdout)
		enc.SetIndent(2)
		if err := enc.Encode(fileCfg); err != nil {
			fmt.Fprintf(stderr, "Failed to encode YAML: %v\n", err)
			return 1
		}
		_ = enc.Close()
		return 0
	case "json":
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(fileCfg); err != nil {
			fmt.Fprintf(stderr, "Failed to encode JSON: %v\n", err)
			return 1
		}
		return 0
	default:
		fmt.Fprintf(stderr, "Unsupported format: %s (use yaml or json)\n", *format)
		return 2
	}
}

// fileConfigFromAppConfig renders the effective configuration in file form.
func fileConfigFromAppConfig(cfg config.AppConfig) config.FileConfig {
	csrf := cfg.Server.EnableCSRF
	rpm, authRPM := cfg.Server.RateLimitRPM, cfg.Server.AuthRateLimitRPM
	conns := cfg.Database.MaxOpenConns
	backup, tries, fails := cfg.Auth.BackupCodeCount, cfg.Auth.RecoveryMaxTries, cfg.Auth.MaxFailedLogins
	require2FA := cfg.Auth.Require2FAForAdmin
	redisDB := cfg.Cache.RedisDB
	mailEnabled, mailPort := cfg.Mail.Enabled, cfg.Mail.Port
	telEnabled, rate := cfg.Telemetry.Enabled, cfg.Telemetry.SamplingRate

	return config.FileConfig{
		DataDir: cfg.DataDir,
		Log:     &config.FileLogConfig{Level: cfg.Log.Level, Service: cfg.Log.Service},
		Server: &config.FileServerConfig{
			ListenAddr:       cfg.Server.ListenAddr,
			ReadTimeout:      cfg.Server.ReadTimeout.String(),
			WriteTimeout:     cfg.Server.WriteTimeout.String(),
			IdleTimeout:      cfg.Server.IdleTimeout.String(),
			ShutdownTimeout:  cfg.Server.ShutdownTimeout.String(),
			AllowedOrigins:   cfg.Server.AllowedOrigins,
			TrustedProxies:   cfg.Server.TrustedProxies,
			EnableCSRF:       &csrf,
			RateLimitRPM:     &rpm,
			AuthRateLimitRPM: &authRPM,
		},
		Database: &config.FileDatabaseConfig{
			Path:         cfg.Database.Path,
			BusyTimeout:  cfg.Database.BusyTimeout.String(),
			MaxOpenConns: &conns,
		},
		Auth: &config.FileAuthConfig{
			JWTSecret:          cfg.Auth.JWTSecret,
			Issuer:             cfg.Auth.Issuer,
			AccessTTL:          cfg.Auth.AccessTTL.String(),
			RefreshTTL:         cfg.Auth.RefreshTTL.String(),
			TOTPIssuer:         cfg.Auth.TOTPIssuer,
			TrustedDeviceTTL:   cfg.Auth.TrustedDeviceTTL.String(),
			BackupCodeCount:    &backup,
			RecoveryCodeTTL:    cfg.Auth.RecoveryCodeTTL.String(),
			RecoveryMaxTries:   &tries,
			MaxFailedLogins:    &fails,
			LockoutWindow:      cfg.Auth.LockoutWindow.String(),
			Require2FAForAdmin: &require2FA,
			SessionBackend:     cfg.Auth.SessionBackend,
			SessionPath:        cfg.Auth.SessionPath,
			PurgeInterval:      cfg.Auth.PurgeInterval.String(),
		},
		Cache: &config.FileCacheConfig{
			Backend:       cfg.Cache.Backend,
			RedisAddr:     cfg.Cache.RedisAddr,
			RedisPassword: cfg.Cache.RedisPassword,
			RedisDB:       &redisDB,
			DashboardTTL:  cfg.Cache.DashboardTTL.String(),
		},
		Mail: &config.FileMailConfig{
			Enabled:  &mailEnabled,
			Host:     cfg.Mail.Host,
			Port:     &mailPort,
			Username: cfg.Mail.Username,
			Password: cfg.Mail.Password,
			From:     cfg.Mail.From,
		},
		Telemetry: &config.FileTelemetry{
			Enabled:      &telEnabled,
			Exporter:     cfg.Telemetry.Exporter,
			Endpoint:     cfg.Telemetry.Endpoint,
			SamplingRate: &rate,
			Environment:  cfg.Telemetry.Environment,
		},
		Bootstrap: &config.FileBootstrap{
			AdminUsername: cfg.Bootstrap.AdminUsername,
			AdminEmail:    cfg.Bootstrap.AdminEmail,
			AdminPassword: cfg.Bootstrap.AdminPassword,
		},
	}
}

func redactFileConfigSecrets(cfg *config.FileConfig) {
	redact := func(s *string) {
		if *s != "" {
			*s = redacted
		}
	}
	redact(&cfg.Auth.JWTSecret)
	redact(&cfg.Cache.RedisPassword)
	redact(&cfg.Mail.Password)
	redact(&cfg.Bootstrap.AdminPassword)
}
