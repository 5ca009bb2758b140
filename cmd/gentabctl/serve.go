package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dekarrin/gentab/internal/cacheapi"
	"github.com/dekarrin/gentab/internal/config"
	"github.com/dekarrin/gentab/internal/project"
	"github.com/spf13/pflag"
)

const shutdownGrace = 5 * time.Second

/*
gentabctl serve runs the compile-result cache as a standalone HTTP service
instead of compiling one grammar file and exiting. Repeated submissions of
the same grammar source (by content hash) are served out of the store
without re-running the pipeline (spec.md §4.L orchestrator, exposed as a
network-reachable cache).

Usage:

	gentabctl serve [flags]

The flags are:

	--addr ADDR (default ":8080")
	    Address to listen on.

	--store PATH (default "gentab-cache.db")
	    Path to the sqlite-backed job/API-key store.

	--secret SECRET
	    HMAC secret used to sign bearer tokens. Required.

	--config PATH
	    Load gentab.toml-style project defaults from PATH (the same
	    config a one-shot compile would use) for every job this server
	    compiles.

	--register-owner OWNER --register-key KEY
	    If both are set, create (or replace) an API key for OWNER with KEY
	    before starting the listener, then proceed to serve.
*/
func runServe(args []string) int {
	fs := pflag.NewFlagSet("serve", pflag.ContinueOnError)
	addr := fs.String("addr", ":8080", "address to listen on")
	storeFile := fs.String("store", "gentab-cache.db", "path to the sqlite-backed job/API-key store")
	secret := fs.String("secret", "", "HMAC secret used to sign bearer tokens")
	cfgPath := fs.String("config", "", "load project defaults from a gentab.toml-style file")
	registerOwner := fs.String("register-owner", "", "create or replace an API key for this owner before serving")
	registerKey := fs.String("register-key", "", "the API key value to register for --register-owner")
	if err := fs.Parse(args); err != nil {
		return ExitUsageError
	}

	if *secret == "" {
		fmt.Fprintln(os.Stderr, "serve: --secret is required")
		return ExitUsageError
	}

	opts := project.DefaultOptions()
	if *cfgPath != "" {
		cfgSrc, err := os.ReadFile(*cfgPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "serve: %s\n", err)
			return ExitUsageError
		}
		cfg, err := config.Load(string(cfgSrc))
		if err != nil {
			fmt.Fprintf(os.Stderr, "serve: %s\n", err)
			return ExitUsageError
		}
		opts = cfg.ProjectOptions()
	}

	srv, err := cacheapi.NewServer(*addr, *storeFile, []byte(*secret), opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "serve: %s\n", err)
		return ExitCompileError
	}

	if *registerOwner != "" && *registerKey != "" {
		if err := srv.RegisterOwner(context.Background(), *registerOwner, *registerKey); err != nil {
			fmt.Fprintf(os.Stderr, "serve: register owner %q: %s\n", *registerOwner, err)
			return ExitCompileError
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	fmt.Fprintf(os.Stderr, "gentabctl serve: listening on %s (store %s)\n", *addr, *storeFile)

	select {
	case err := <-errCh:
		if err != nil {
			fmt.Fprintf(os.Stderr, "serve: %s\n", err)
			return ExitCompileError
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			fmt.Fprintf(os.Stderr, "serve: shutdown: %s\n", err)
			return ExitCompileError
		}
	}
	return ExitSuccess
}
