// Package main provides the entry point for the pgduck server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/tmdc-io/pgduck/internal/env"
	"github.com/tmdc-io/pgduck/internal/server"
	"github.com/tmdc-io/pgduck/pkg/platform"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(os.Args[1:], env.OS, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type serverOptions struct {
	configPath  string
	showVersion bool
	hashUser    string
}

func parseFlags(args []string) (serverOptions, error) {
	opts := serverOptions{}
	fs := flag.NewFlagSet("pgduck", flag.ContinueOnError)
	fs.StringVar(&opts.configPath, "config", "", "Path to configuration file")
	fs.BoolVar(&opts.showVersion, "version", false, "Show version and exit")
	fs.StringVar(&opts.hashUser, "hash-password", "", "Print a bcrypt hash of the password read from stdin and exit")
	if err := fs.Parse(args); err != nil {
		return opts, err
	}
	return opts, nil
}

func run(args []string, lookup env.Lookup, stderr io.Writer) error {
	opts, err := parseFlags(args)
	if err != nil {
		return err
	}

	if opts.showVersion {
		fmt.Printf("pgduck version %s\n", server.Version)
		return nil
	}
	if opts.hashUser != "" {
		return printHash(os.Stdin, os.Stdout, opts.hashUser)
	}

	cfg, err := platform.LoadConfig(platform.ResolveConfigPath(opts.configPath, lookup), lookup)
	if err != nil {
		return err
	}
	slog.SetDefault(newLogger(cfg.Log, stderr))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	p, err := platform.New(ctx, platform.WithConfig(cfg))
	if err != nil {
		return fmt.Errorf("creating platform: %w", err)
	}
	defer closePlatform(p)

	if err := p.Start(ctx); err != nil {
		return fmt.Errorf("provisioning: %w", err)
	}

	slog.Info("pgduck starting", "version", server.Version, "addr", cfg.Server.Addr())
	if err := p.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("serving: %w", err)
	}
	slog.Info("pgduck stopped")
	return nil
}

func closePlatform(p *platform.Platform) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := p.Close(ctx); err != nil {
		slog.Warn("shutdown finished with errors", "error", err)
	}
}

// newLogger builds the process logger from the log section.
func newLogger(cfg platform.LogConfig, w io.Writer) *slog.Logger {
	handlerOpts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}
	if strings.EqualFold(cfg.Format, "text") {
		return slog.New(slog.NewTextHandler(w, handlerOpts))
	}
	return slog.New(slog.NewJSONHandler(w, handlerOpts))
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// printHash reads one password line and writes a users entry for the config.
func printHash(r io.Reader, w io.Writer, user string) error {
	data, err := io.ReadAll(io.LimitReader(r, 1024))
	if err != nil {
		return fmt.Errorf("reading password: %w", err)
	}
	password := strings.TrimRight(string(data), "\r\n")
	if password == "" {
		return fmt.Errorf("password is empty")
	}
	hash, err := server.HashPassword(password)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "%s: %s\n", user, hash)
	return err
}
