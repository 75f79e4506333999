// SPDX-License-Identifier: MIT

package health

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/seedlab/seedlab/internal/config"
	"github.com/seedlab/seedlab/internal/log"
	"github.com/seedlab/seedlab/internal/persistence/sqlite"
)

// PerformStartupChecks validates the environment before the server starts.
func PerformStartupChecks(ctx context.Context, cfg config.AppConfig, db *sql.DB) error {
	logger := log.WithComponent("startup-check")
	logger.Info().Msg("running pre-flight startup checks")

	if err := checkDataDir(logger, cfg.DataDir); err != nil {
		return fmt.Errorf("data directory check failed: %w", err)
	}
	if err := checkListenAddr(logger, cfg.Server.ListenAddr); err != nil {
		return err
	}
	if db != nil {
		v, err := sqlite.SchemaVersion(ctx, db)
		if err != nil {
			return err
		}
		if v != sqlite.LatestVersion() {
			return fmt.Errorf("database schema at version %d, expected %d (run migrate)", v, sqlite.LatestVersion())
		}
		logger.Info().Int("schema_version", v).Msg("database schema is current")

		issues, err := sqlite.VerifyIntegrity(ctx, db, false)
		if err != nil {
			return err
		}
		if len(issues) > 0 {
			return fmt.Errorf("database integrity check failed: %s", strings.Join(issues, "; "))
		}
	}
	if cfg.Auth.SessionBackend == "memory" {
		logger.Warn().Msg("session store is in memory; refresh tokens do not survive restarts")
	}
	if !cfg.Mail.Enabled {
		logger.Warn().Msg("mail disabled; recovery codes are written to the log")
	}

	logger.Info().Msg("all startup checks passed")
	return nil
}

func checkDataDir(logger zerolog.Logger, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("directory does not exist: %s", path)
		}
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("path is not a directory: %s", path)
	}

	testFile := filepath.Join(path, ".write_test")
	if err := os.WriteFile(testFile, []byte("ok"), 0600); err != nil {
		return fmt.Errorf("directory is not writable: %s (error: %v)", path, err)
	}
	_ = os.Remove(testFile)

	logger.Info().Str("path", path).Msg("data directory is writable")
	return nil
}

func checkListenAddr(logger zerolog.Logger, addr string) error {
	if addr == "" {
		return nil
	}
	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("invalid listen address %q: %w", addr, err)
	}
	portNum, err := strconv.Atoi(port)
	if err != nil || portNum < 0 || portNum > 65535 {
		return fmt.Errorf("invalid listen port %q in %q", port, addr)
	}
	logger.Info().Str("addr", addr).Msg("listen address is valid")
	return nil
}
