// Package cli wires flags, configuration, snapshot loading, replication
// handshake, and the server accept loop into a single bootstrap entry
// point.
package cli

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"respd/internal/config"
	"respd/internal/logger"
	"respd/internal/replication"
	"respd/internal/server"
	"respd/internal/snapshot"
)

// Run parses args, brings a server up, serves until a termination
// signal arrives, and returns the process exit code.
func Run(args []string) int {
	fs := flag.NewFlagSet("respd", flag.ContinueOnError)
	fs.SetOutput(os.Stdout)

	var configPath string
	fs.StringVar(&configPath, "config", "", "Configuration file path (YAML)")

	cfg := &config.Config{}
	flagVals := config.RegisterFlags(fs, cfg)

	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		log.Printf("respd: failed to parse arguments: %v", err)
		return 1
	}

	loaded, err := config.LoadFile(configPath)
	if err != nil {
		log.Printf("respd: failed to load config %s: %v", configPath, err)
		return 1
	}
	*cfg = *loaded
	config.ApplyFlags(fs, cfg, flagVals)

	if err := cfg.Validate(); err != nil {
		log.Printf("respd: invalid configuration: %v", err)
		return 1
	}

	if err := logger.Init(logDirFor(cfg), logger.INFO, "respd"); err != nil {
		log.Printf("respd: failed to initialize logging: %v", err)
		return 1
	}
	defer logger.Close()

	store, err := snapshot.LoadFile(cfg.Dir, cfg.DBFilename)
	if err != nil {
		logger.Error("respd: failed to load snapshot: %v", err)
		return 1
	}

	repl, err := buildReplicationState(cfg)
	if err != nil {
		logger.Error("respd: replication handshake failed: %v", err)
		return 1
	}

	srv := server.New(store, cfg, repl)

	addr := fmt.Sprintf(":%d", cfg.Port)
	ln, err := server.Listen(addr)
	if err != nil {
		logger.Error("respd: failed to bind %s: %v", addr, err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("respd: listening on %s (role=%s)", addr, repl.Role)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ctx, ln) }()

	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("respd: server stopped: %v", err)
			return 1
		}
		return 0
	case <-ctx.Done():
		<-errCh
		logger.Info("respd: shutting down")
		return 0
	}
}

// buildReplicationState resolves the server's role from config and, for
// a replica, performs the one-shot PING handshake against the
// configured primary before serving any client traffic.
func buildReplicationState(cfg *config.Config) (replication.State, error) {
	addr, isReplica := cfg.PrimaryAddr()
	if !isReplica {
		return replication.NewPrimary()
	}

	state := replication.NewReplica(addr)
	if err := replication.Handshake(context.Background(), addr); err != nil {
		return replication.State{}, fmt.Errorf("cli: handshake with primary %s: %w", addr, err)
	}
	return state, nil
}

// logDirFor picks a log directory: the configured snapshot dir when
// set, otherwise the current directory.
func logDirFor(cfg *config.Config) string {
	if cfg.Dir != "" {
		return cfg.Dir
	}
	return "."
}
