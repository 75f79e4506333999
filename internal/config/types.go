// SPDX-License-Identifier: MIT

package config

import "time"

// AppConfig is the fully resolved runtime configuration.
type AppConfig struct {
	Version   string
	DataDir   string
	Log       LogConfig
	Server    ServerConfig
	Database  DatabaseConfig
	Auth      AuthConfig
	Cache     CacheConfig
	Mail      MailConfig
	Telemetry TelemetryConfig
	Bootstrap BootstrapConfig
}

// LogConfig controls the global logger.
type LogConfig struct {
	Level   string
	Service string
}

// ServerConfig controls the HTTP listener and ingress middleware.
type ServerConfig struct {
	ListenAddr       string
	ReadTimeout      time.Duration
	WriteTimeout     time.Duration
	IdleTimeout      time.Duration
	ShutdownTimeout  time.Duration
	AllowedOrigins   []string
	TrustedProxies   []string
	EnableCSRF       bool
	RateLimitRPM     int // general API requests per minute per IP
	AuthRateLimitRPM int // auth endpoint requests per minute per IP
}

// DatabaseConfig controls the SQLite store.
type DatabaseConfig struct {
	Path         string
	BusyTimeout  time.Duration
	MaxOpenConns int
}

// AuthConfig controls tokens and the two-factor flow.
type AuthConfig struct {
	JWTSecret          string
	Issuer             string
	AccessTTL          time.Duration
	RefreshTTL         time.Duration
	TOTPIssuer         string
	TrustedDeviceTTL   time.Duration
	BackupCodeCount    int
	RecoveryCodeTTL    time.Duration
	RecoveryMaxTries   int
	MaxFailedLogins    int
	LockoutWindow      time.Duration
	Require2FAForAdmin bool
	SessionBackend     string // memory | badger
	SessionPath        string
	PurgeInterval      time.Duration
}

// CacheConfig selects the cache backend used for dashboards and lockout counters.
type CacheConfig struct {
	Backend       string // memory | redis
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	DashboardTTL  time.Duration
}

// MailConfig controls outbound mail for recovery codes and notifications.
type MailConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// TelemetryConfig controls OpenTelemetry tracing.
type TelemetryConfig struct {
	Enabled      bool
	Exporter     string // grpc | http
	Endpoint     string
	SamplingRate float64
	Environment  string
}

// BootstrapConfig seeds an initial administrator on an empty database.
type BootstrapConfig struct {
	AdminUsername string
	AdminEmail    string
	AdminPassword string
}

// FileConfig mirrors the YAML file layout. Pointer/zero values mean "not set".
type FileConfig struct {
	DataDir   string              `yaml:"dataDir,omitempty"`
	Log       *FileLogConfig      `yaml:"log,omitempty"`
	Server    *FileServerConfig   `yaml:"server,omitempty"`
	Database  *FileDatabaseConfig `yaml:"database,omitempty"`
	Auth      *FileAuthConfig     `yaml:"auth,omitempty"`
	Cache     *FileCacheConfig    `yaml:"cache,omitempty"`
	Mail      *FileMailConfig     `yaml:"mail,omitempty"`
	Telemetry *FileTelemetry      `yaml:"telemetry,omitempty"`
	Bootstrap *FileBootstrap      `yaml:"bootstrap,omitempty"`
}

type FileLogConfig struct {
	Level   string `yaml:"level,omitempty"`
	Service string `yaml:"service,omitempty"`
}

type FileServerConfig struct {
	ListenAddr       string   `yaml:"listenAddr,omitempty"`
	ReadTimeout      string   `yaml:"readTimeout,omitempty"`
	WriteTimeout     string   `yaml:"writeTimeout,omitempty"`
	IdleTimeout      string   `yaml:"idleTimeout,omitempty"`
	ShutdownTimeout  string   `yaml:"shutdownTimeout,omitempty"`
	AllowedOrigins   []string `yaml:"allowedOrigins,omitempty"`
	TrustedProxies   []string `yaml:"trustedProxies,omitempty"`
	EnableCSRF       *bool    `yaml:"enableCSRF,omitempty"`
	RateLimitRPM     *int     `yaml:"rateLimitRPM,omitempty"`
	AuthRateLimitRPM *int     `yaml:"authRateLimitRPM,omitempty"`
}

type FileDatabaseConfig struct {
	Path         string `yaml:"path,omitempty"`
	BusyTimeout  string `yaml:"busyTimeout,omitempty"`
	MaxOpenConns *int   `yaml:"maxOpenConns,omitempty"`
}

type FileAuthConfig struct {
	JWTSecret          string `yaml:"jwtSecret,omitempty"`
	Issuer             string `yaml:"issuer,omitempty"`
	AccessTTL          string `yaml:"accessTTL,omitempty"`
	RefreshTTL         string `yaml:"refreshTTL,omitempty"`
	TOTPIssuer         string `yaml:"totpIssuer,omitempty"`
	TrustedDeviceTTL   string `yaml:"trustedDeviceTTL,omitempty"`
	BackupCodeCount    *int   `yaml:"backupCodeCount,omitempty"`
	RecoveryCodeTTL    string `yaml:"recoveryCodeTTL,omitempty"`
	RecoveryMaxTries   *int   `yaml:"recoveryMaxTries,omitempty"`
	MaxFailedLogins    *int   `yaml:"maxFailedLogins,omitempty"`
	LockoutWindow      string `yaml:"lockoutWindow,omitempty"`
	Require2FAForAdmin *bool  `yaml:"require2FAForAdmin,omitempty"`
	SessionBackend     string `yaml:"sessionBackend,omitempty"`
	SessionPath        string `yaml:"sessionPath,omitempty"`
	PurgeInterval      string `yaml:"purgeInterval,omitempty"`
}

type FileCacheConfig struct {
	Backend       string `yaml:"backend,omitempty"`
	RedisAddr     string `yaml:"redisAddr,omitempty"`
	RedisPassword string `yaml:"redisPassword,omitempty"`
	RedisDB       *int   `yaml:"redisDB,omitempty"`
	DashboardTTL  string `yaml:"dashboardTTL,omitempty"`
}

type FileMailConfig struct {
	Enabled  *bool  `yaml:"enabled,omitempty"`
	Host     string `yaml:"host,omitempty"`
	Port     *int   `yaml:"port,omitempty"`
	Username string `yaml:"username,omitempty"`
	Password string `yaml:"password,omitempty"`
	From     string `yaml:"from,omitempty"`
}

type FileTelemetry struct {
	Enabled      *bool    `yaml:"enabled,omitempty"`
	Exporter     string   `yaml:"exporter,omitempty"`
	Endpoint     string   `yaml:"endpoint,omitempty"`
	SamplingRate *float64 `yaml:"samplingRate,omitempty"`
	Environment  string   `yaml:"environment,omitempty"`
}

type FileBootstrap struct {
	AdminUsername string `yaml:"adminUsername,omitempty"`
	AdminEmail    string `yaml:"adminEmail,omitempty"`
	AdminPassword string `yaml:"adminPassword,omitempty"`
}
