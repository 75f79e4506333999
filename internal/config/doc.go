// SPDX-License-Identifier: MIT

// Package config loads seedlab configuration with precedence ENV > YAML file > defaults.
//
// The YAML file is parsed strictly: unknown keys abort startup. Environment
// variables use the SEEDLAB_ prefix (e.g. SEEDLAB_LISTEN, SEEDLAB_DB_PATH,
// SEEDLAB_JWT_SECRET). A ConfigHolder keeps the live configuration and reloads
// it on file changes or SIGHUP.
package config
