// guide serves spoken pedestrian guidance and robot steering over HTTP.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/teslashibe/go-guide/internal/config"
	"github.com/teslashibe/go-guide/internal/log"
	"github.com/teslashibe/go-guide/pkg/api"
	"github.com/teslashibe/go-guide/pkg/guide"
)

func main() {
	configPath := flag.String("config", "", "YAML config file")
	envFile := flag.String("env", ".env", "dotenv file loaded before the environment")
	addr := flag.String("addr", "", "listen address (overrides server.addr)")
	robotSource := flag.String("robot", "", "robot transport: firebase, link or sim")
	speechBackend := flag.String("speech", "", "speech backend: auto, system, cloud or simulated")
	debug := flag.Bool("debug", false, "enable debug logging")
	issueToken := flag.String("issue-token", "", "print a bearer token for this subject and exit")
	tokenTTL := flag.Duration("token-ttl", 24*time.Hour, "lifetime of -issue-token tokens")
	flag.Parse()

	cfg, err := config.Load(*configPath, *envFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	if *robotSource != "" {
		cfg.Robot.Source = *robotSource
	}
	if *speechBackend != "" {
		cfg.Speech.Backend = *speechBackend
	}
	if *debug {
		cfg.Log.Level = "debug"
	}

	if *issueToken != "" {
		if cfg.Server.JWTSecret == "" {
			fmt.Fprintln(os.Stderr, "JWT_SECRET is not set")
			os.Exit(1)
		}
		token, err := api.IssueToken([]byte(cfg.Server.JWTSecret), *issueToken, *tokenTTL, time.Now())
		if err != nil {
			fmt.Fprintf(os.Stderr, "issue token: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(token)
		return
	}

	logger := log.New(os.Stdout, cfg.Log.Level, cfg.Log.JSON)
	slog.SetDefault(logger)

	app, err := guide.New(cfg, logger)
	if err != nil {
		logger.Error("configuration error", "error", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := app.Init(ctx); err != nil {
		logger.Error("initialization failed", "error", err)
		os.Exit(1)
	}
	defer app.Shutdown()

	logger.Info("go-guide ready", "addr", app.Addr().String())
	if err := app.Run(ctx); err != nil {
		logger.Error("server stopped", "error", err)
	}
}
