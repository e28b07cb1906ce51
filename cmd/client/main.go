package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/iudanet/questline/internal/client/api"
	"github.com/iudanet/questline/internal/client/cli"
	"github.com/iudanet/questline/internal/client/iocli"
	"github.com/iudanet/questline/internal/client/storage"
	"github.com/iudanet/questline/internal/client/storage/boltdb"
)

var (
	// Version information set via ldflags during build
	Version   = "dev"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

const defaultServerURL = "http://localhost:8080"

func main() {
	// Глобальные флаги
	showVersion := flag.Bool("version", false, "Show version information")
	serverURL := flag.String("server", defaultServerURL, "Server URL")
	dbPath := flag.String("db", "questline-client.db", "Path to local database")

	flag.Parse()

	if *showVersion {
		printVersion()
		os.Exit(0)
	}

	stdio := iocli.NewStdio()

	args := flag.Args()
	if len(args) == 0 {
		cli.PrintUsage(stdio)
		os.Exit(1)
	}

	os.Exit(run(stdio, *dbPath, *serverURL, serverFlagSet(), args[0], args[1:]))
}

func run(stdio iocli.IO, dbPath, serverURL string, explicitServer bool, command string, args []string) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	boltStorage, err := boltdb.New(ctx, dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open database: %v\n", err)
		return 1
	}
	defer func() {
		if err := boltStorage.Close(); err != nil {
			slog.Error("failed to close database", "error", err)
		}
	}()

	// Без явного --server продолжаем работать с сервером, выдавшим сессию
	if !explicitServer {
		auth, err := boltStorage.GetAuth(ctx)
		switch {
		case err == nil && auth.ServerURL != "":
			serverURL = auth.ServerURL
		case err != nil && !errors.Is(err, storage.ErrAuthNotFound):
			slog.Warn("failed to read saved session", "error", err)
		}
	}

	c := cli.New(stdio, api.NewClient(serverURL, boltStorage), boltStorage)
	if err := c.Run(ctx, command, args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func serverFlagSet() bool {
	set := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == "server" {
			set = true
		}
	})
	return set
}

func printVersion() {
	fmt.Printf("Questline Client\n")
	fmt.Printf("Version:    %s\n", Version)
	fmt.Printf("Build Date: %s\n", BuildDate)
	fmt.Printf("Git Commit: %s\n", GitCommit)
}
