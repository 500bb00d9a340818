// Package main provides the pathwatch CLI front end.
//
// pathwatch observes a filesystem subtree and emits a structured stream of
// Create/Write/Remove/Move/Chmod/Other events as newline-delimited JSON on
// stdout. Per spec §1 this binary is the external, contract-only collaborator:
// flag parsing and output framing live here; all of the actual move
// detection and storage work is in pkg/engine and below.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/0xmhha/pathwatch/pkg/config"
	"github.com/0xmhha/pathwatch/pkg/engine"
	"github.com/0xmhha/pathwatch/pkg/logger"
	"github.com/0xmhha/pathwatch/pkg/werr"
)

// version is set during build time.
var version = "dev"

// Exit codes, per spec §6.
const (
	exitClean       = 0
	exitConfigError = 2
	exitIOError     = 3
	exitInterrupted = 130
)

func main() {
	os.Exit(run())
}

func run() int {
	path := flag.String("path", "", "root path to watch")
	recursive := flag.Bool("recursive", true, "watch subdirectories")
	timeoutMS := flag.Int("timeout", 0, "move-correlation timeout in milliseconds (0 = config default)")
	dbPath := flag.String("db", "", "path to the persistent store database (empty = config default)")
	configPath := flag.String("config", "", "path to a YAML configuration file")
	verbose := flag.Bool("verbose", false, "enable debug-level logging")
	showVersion := flag.Bool("version", false, "show version information")
	flag.Parse()

	if *showVersion {
		fmt.Printf("pathwatch %s\n", version)
		return exitClean
	}

	cfg, err := loadConfig(*configPath, *path, *recursive, *timeoutMS, *dbPath, *verbose)
	if err != nil {
		fmt.Fprintf(os.Stderr, "pathwatch: configuration error: %v\n", err)
		return exitConfigError
	}

	log := logger.FromFields(cfg.Logging.Level, cfg.Logging.Output, cfg.Logging.Format)

	handle, stream, err := engine.Start(*cfg, log)
	if err != nil {
		switch werr.Classify(err) {
		case werr.Configuration:
			fmt.Fprintf(os.Stderr, "pathwatch: %v\n", err)
			return exitConfigError
		default:
			fmt.Fprintf(os.Stderr, "pathwatch: %v\n", err)
			return exitIOError
		}
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	var interrupted atomic.Bool
	go func() {
		<-sigCh
		interrupted.Store(true)
		_ = handle.Stop()
	}()

	enc := json.NewEncoder(os.Stdout)
	for ev := range stream {
		if err := enc.Encode(ev); err != nil {
			log.Warn("failed to encode event", "error", err)
		}
	}

	if err := handle.Stop(); err != nil {
		fmt.Fprintf(os.Stderr, "pathwatch: shutdown error: %v\n", err)
		return exitIOError
	}

	if interrupted.Load() {
		return exitInterrupted
	}
	return exitClean
}

// loadConfig builds a WatcherConfig from an optional file plus the CLI
// flags, which take precedence over the file and the built-in defaults.
func loadConfig(configPath, path string, recursive bool, timeoutMS int, dbPath string, verbose bool) (*config.WatcherConfig, error) {
	var cfg *config.WatcherConfig
	var err error
	if configPath != "" {
		cfg, err = config.LoadFromFile(configPath)
	} else {
		cfg = config.Default()
	}
	if err != nil {
		return nil, err
	}

	if path != "" {
		cfg.Path = path
	}
	cfg.Recursive = recursive
	if timeoutMS > 0 {
		cfg.MoveDetector.Timeout = time.Duration(timeoutMS) * time.Millisecond
	}
	if dbPath != "" {
		cfg.Store.DatabasePath = dbPath
	}
	if verbose {
		cfg.Logging.Level = "debug"
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
