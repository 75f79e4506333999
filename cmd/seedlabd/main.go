// SPDX-License-Identifier: MIT

// Command seedlabd runs the seed laboratory server and its maintenance commands.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/seedlab/seedlab/internal/app/bootstrap"
	xglog "github.com/seedlab/seedlab/internal/log"
	"github.com/seedlab/seedlab/internal/version"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) > 0 {
		switch args[0] {
		case "migrate":
			return runMigrate(args[1:], stdout, stderr)
		case "verify":
			return runVerify(args[1:], stdout, stderr)
		case "create-admin":
			return runCreateAdmin(args[1:], stdout, stderr)
		case "export-lots":
			return runExportLots(args[1:], stdout, stderr)
		case "config":
			return runConfigCLI(args[1:], stdout, stderr)
		case "help", "-h", "--help":
			printUsage(stderr)
			return 0
		}
	}

	fs := flag.NewFlagSet("seedlabd", flag.ContinueOnError)
	fs.SetOutput(stderr)
	showVersion := fs.Bool("version", false, "print version and exit")
	configPath := fs.String("config", "", "path to config file (YAML)")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *showVersion {
		fmt.Fprintf(stdout, "%s (commit: %s, built: %s)\n", version.Version, version.Commit, version.Date)
		return 0
	}
	if fs.NArg() > 0 {
		fmt.Fprintf(stderr, "Unknown command: %s\n\n", fs.Arg(0))
		printUsage(stderr)
		return 2
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger := xglog.WithComponent("main")
	c, err := bootstrap.WireServices(ctx, version.Version, version.Commit, version.Date, *configPath)
	if err != nil {
		logger.Error().Err(err).Str("event", "startup.failed").Msg("failed to start")
		return 1
	}
	if err := c.Run(ctx); err != nil {
		logger.Error().Err(err).Str("event", "daemon.failed").Msg("daemon exited with error")
		return 1
	}
	logger.Info().Msg("seedlab stopped")
	return 0
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  seedlabd [-config config.yaml]             run the server")
	fmt.Fprintln(w, "  seedlabd -version")
	fmt.Fprintln(w, "  seedlabd migrate [-config config.yaml]")
	fmt.Fprintln(w, "  seedlabd verify [-config config.yaml] [-full]")
	fmt.Fprintln(w, "  seedlabd create-admin [-config config.yaml] -username U -email E [-password P]")
	fmt.Fprintln(w, "  seedlabd export-lots [-config config.yaml] [-all] <file.xlsx>")
	fmt.Fprintln(w, "  seedlabd config validate|dump [-config config.yaml]")
}
