// SPDX-License-Identifier: MIT

package main

import (
	"bufio"
	"context"
	"database/sql"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/renameio/v2"

	"github.com/seedlab/seedlab/internal/app/bootstrap"
	"github.com/seedlab/seedlab/internal/catalog"
	"github.com/seedlab/seedlab/internal/config"
	"github.com/seedlab/seedlab/internal/excel"
	xglog "github.com/seedlab/seedlab/internal/log"
	"github.com/seedlab/seedlab/internal/lots"
	"github.com/seedlab/seedlab/internal/persistence/sqlite"
	"github.com/seedlab/seedlab/internal/users"
	"github.com/seedlab/seedlab/internal/version"
)

// openConfigured loads the configuration and opens the migrated database.
func openConfigured(ctx context.Context, configPath string, stderr io.Writer) (config.AppConfig, *sql.DB, bool) {
	cfg, _, err := bootstrap.LoadConfig(version.Version, configPath)
	if err != nil {
		fmt.Fprintf(stderr, "Configuration error: %v\n", err)
		return cfg, nil, false
	}
	xglog.Configure(xglog.Config{Level: cfg.Log.Level, Service: cfg.Log.Service, Version: cfg.Version})
	db, err := bootstrap.OpenDatabase(ctx, cfg)
	if err != nil {
		fmt.Fprintf(stderr, "Database error: %v\n", err)
		return cfg, nil, false
	}
	return cfg, db, true
}

func runMigrate(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("seedlabd migrate", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "path to config file (YAML)")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	ctx := context.Background()
	cfg, _, err := bootstrap.LoadConfig(version.Version, *configPath)
	if err != nil {
		fmt.Fprintf(stderr, "Configuration error: %v\n", err)
		return 1
	}
	if err := os.MkdirAll(cfg.DataDir, 0o750); err != nil {
		fmt.Fprintf(stderr, "Data dir error: %v\n", err)
		return 1
	}
	db, err := sqlite.Open(cfg.Database.Path, sqlite.Config{
		BusyTimeout:  cfg.Database.BusyTimeout,
		MaxOpenConns: cfg.Database.MaxOpenConns,
	})
	if err != nil {
		fmt.Fprintf(stderr, "Database error: %v\n", err)
		return 1
	}
	defer func() { _ = db.Close() }()

	applied, err := sqlite.Migrate(ctx, db)
	if err != nil {
		fmt.Fprintf(stderr, "Migration failed: %v\n", err)
		return 1
	}
	v, err := sqlite.SchemaVersion(ctx, db)
	if err != nil {
		fmt.Fprintf(stderr, "Migration failed: %v\n", err)
		return 1
	}
	fmt.Fprintf(stdout, "applied %d migration(s); schema at version %d (%s)\n", applied, v, cfg.Database.Path)
	return 0
}

func runVerify(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("seedlabd verify", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "path to config file (YAML)")
	full := fs.Bool("full", false, "run integrity_check instead of quick_check")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	ctx := context.Background()
	cfg, db, ok := openConfigured(ctx, *configPath, stderr)
	if !ok {
		return 1
	}
	defer func() { _ = db.Close() }()

	issues, err := sqlite.VerifyIntegrity(ctx, db, *full)
	if err != nil {
		fmt.Fprintf(stderr, "Verify failed: %v\n", err)
		return 1
	}
	if len(issues) > 0 {
		for _, issue := range issues {
			fmt.Fprintln(stderr, issue)
		}
		fmt.Fprintf(stderr, "%s: %d integrity problem(s)\n", cfg.Database.Path, len(issues))
		return 1
	}
	fmt.Fprintf(stdout, "%s: ok\n", cfg.Database.Path)
	return 0
}

func runCreateAdmin(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("seedlabd create-admin", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "path to config file (YAML)")
	username := fs.String("username", "", "administrator username")
	email := fs.String("email", "", "administrator email")
	password := fs.String("password", "", "administrator password (read from stdin when empty)")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if strings.TrimSpace(*username) == "" || strings.TrimSpace(*email) == "" {
		fmt.Fprintln(stderr, "Error: -username and -email are required")
		return 2
	}
	pw := *password
	if pw == "" {
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && err != io.EOF {
			fmt.Fprintf(stderr, "Error reading password: %v\n", err)
			return 1
		}
		pw = strings.TrimRight(line, "\r\n")
	}

	ctx := context.Background()
	_, db, ok := openConfigured(ctx, *configPath, stderr)
	if !ok {
		return 1
	}
	defer func() { _ = db.Close() }()

	svc := users.NewService(users.NewStore(db), nil, nil, nil)
	u, err := svc.CreateAdmin(ctx, *username, *email, pw)
	if err != nil {
		fmt.Fprintf(stderr, "Create admin failed: %v\n", err)
		return 1
	}
	fmt.Fprintf(stdout, "created administrator %s (id %d)\n", u.Username, u.ID)
	return 0
}

func runExportLots(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("seedlabd export-lots", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "path to config file (YAML)")
	all := fs.Bool("all", false, "include deactivated lots")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(stderr, "Error: exactly one output file is required")
		return 2
	}
	out := fs.Arg(0)

	ctx := context.Background()
	_, db, ok := openConfigured(ctx, *configPath, stderr)
	if !ok {
		return 1
	}
	defer func() { _ = db.Close() }()

	var f lots.Filter
	if !*all {
		active := true
		f.Activo = &active
	}
	lotSvc := lots.NewService(lots.NewStore(db), catalog.NewService(catalog.NewStore(db)))
	n, err := writeAtomically(out, func(w io.Writer) (int, error) {
		return excel.NewService(lotSvc, nil, nil).ExportLots(ctx, f, w)
	})
	if err != nil {
		fmt.Fprintf(stderr, "Export failed: %v\n", err)
		return 1
	}
	fmt.Fprintf(stdout, "exported %d lot(s) to %s\n", n, out)
	return 0
}

// writeAtomically replaces path with what write produces, or leaves it untouched on error.
func writeAtomically(path string, write func(io.Writer) (int, error)) (int, error) {
	pending, err := renameio.NewPendingFile(path)
	if err != nil {
		return 0, fmt.Errorf("create pending file: %w", err)
	}
	defer func() { _ = pending.Cleanup() }()

	n, err := write(pending)
	if err != nil {
		return 0, err
	}
	if err := pending.CloseAtomicallyReplace(); err != nil {
		return 0, fmt.Errorf("atomically replace %s: %w", path, err)
	}
	return n, nil
}
