// SPDX-License-Identifier: MIT

package config

import "time"

// Defaults returns the baseline configuration before file and ENV overlays.
func Defaults() AppConfig {
	return AppConfig{
		DataDir: "./data",
		Log: LogConfig{
			Level:   "info",
			Service: "seedlab",
		},
		Server: ServerConfig{
			ListenAddr:       ":8080",
			ReadTimeout:      15 * time.Second,
			WriteTimeout:     0, // SSE streams are long-lived
			IdleTimeout:      2 * time.Minute,
			ShutdownTimeout:  15 * time.Second,
			RateLimitRPM:     600,
			AuthRateLimitRPM: 30,
		},
		Database: DatabaseConfig{
			Path:         "seedlab.db",
			BusyTimeout:  5 * time.Second,
			MaxOpenConns: 10,
		},
		Auth: AuthConfig{
			Issuer:           "seedlab",
			AccessTTL:        15 * time.Minute,
			RefreshTTL:       7 * 24 * time.Hour,
			TOTPIssuer:       "SeedLab",
			TrustedDeviceTTL: 30 * 24 * time.Hour,
			BackupCodeCount:  10,
			RecoveryCodeTTL:  15 * time.Minute,
			RecoveryMaxTries: 5,
			MaxFailedLogins:  5,
			LockoutWindow:    15 * time.Minute,
			SessionBackend:   "memory",
			SessionPath:      "sessions",
			PurgeInterval:    time.Hour,
		},
		Cache: CacheConfig{
			Backend:      "memory",
			DashboardTTL: 30 * time.Second,
		},
		Mail: MailConfig{
			Port: 587,
		},
		Telemetry: TelemetryConfig{
			Exporter:     "grpc",
			Endpoint:     "localhost:4317",
			SamplingRate: 0.1,
			Environment:  "production",
		},
	}
}
