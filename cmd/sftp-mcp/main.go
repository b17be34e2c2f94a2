// SFTP MCP Server
//
// Exposes one SFTP session as MCP tools:
// - retrieve-objects, rename-object, delete-object
// - download-file, create-directory, write-to-file
//
// Credentials come from SFTP_HOST, SFTP_USERNAME and SFTP_PASSWORD (a .env
// file is read first). Serves over stdio by default, or streamable HTTP
// with --transport http. Logs go to stderr; Prometheus metrics are served
// when METRICS_ADDR or --metrics is set.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/filepulse/sftp-mcp-server/internal/config"
	"github.com/filepulse/sftp-mcp-server/internal/logging"
	"github.com/filepulse/sftp-mcp-server/internal/metrics"
	"github.com/filepulse/sftp-mcp-server/internal/remote"
	"github.com/filepulse/sftp-mcp-server/internal/tools"
)

// Build-time variables set via ldflags
var (
	Version   = "dev"
	GitCommit = "unknown"
)

const serverName = "SFTP"

type serveOptions struct {
	envFile     string
	transport   string
	listenAddr  string
	metricsAddr string
	logLevel    string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &serveOptions{}

	root := &cobra.Command{
		Use:          "sftp-mcp",
		Short:        "Serve an SFTP server's files as MCP tools",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), opts)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.envFile, "env-file", "", "Env file to load before reading the environment (default .env if present)")
	flags.StringVar(&opts.transport, "transport", "", "MCP transport: stdio or http (overrides MCP_TRANSPORT)")
	flags.StringVar(&opts.listenAddr, "listen", "", "HTTP transport address (overrides LISTEN_ADDR)")
	flags.StringVar(&opts.metricsAddr, "metrics", "", "Prometheus metrics address (overrides METRICS_ADDR)")
	flags.StringVar(&opts.logLevel, "log-level", "", "Log level: debug, info, warn, error (overrides LOG_LEVEL)")

	root.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Connect to the SFTP server and serve MCP tools (default)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), opts)
		},
	})
	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "sftp-mcp %s (%s)\n", Version, GitCommit)
		},
	})

	return root
}

// loadConfig reads the env file and environment, then applies flag
// overrides.
func loadConfig(opts *serveOptions) (*config.Config, error) {
	if err := config.LoadEnvFile(opts.envFile); err != nil {
		return nil, err
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	if opts.transport != "" {
		if opts.transport != config.TransportStdio && opts.transport != config.TransportHTTP {
			return nil, fmt.Errorf("unknown transport %q", opts.transport)
		}
		cfg.Transport = opts.transport
	}
	if opts.listenAddr != "" {
		cfg.ListenAddr = opts.listenAddr
	}
	if opts.metricsAddr != "" {
		cfg.MetricsAddr = opts.metricsAddr
	}
	if opts.logLevel != "" {
		cfg.LogLevel = opts.logLevel
	}
	return cfg, nil
}

func runServe(ctx context.Context, opts *serveOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := loadConfig(opts)
	if err != nil {
		logging.Error("configuration error", zap.Error(err))
		return err
	}

	if err := logging.Init(logging.Config{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
	}); err != nil {
		return fmt.Errorf("logging init: %w", err)
	}
	defer logging.Sync()

	logging.Info("SFTP MCP server starting",
		zap.String("version", Version),
		zap.String("transport", cfg.Transport),
		zap.String("sftp_addr", cfg.SFTP.Addr()))

	session, err := remote.Connect(ctx, cfg.SFTP)
	if err != nil {
		if !cfg.SFTP.AllowDisconnected {
			return err
		}
		logging.Warn("serving without an SFTP session; every tool call will fail", zap.Error(err))
	}
	defer func() {
		if err := session.Close(); err != nil {
			logging.Error("closing sftp session", zap.Error(err))
		}
		logging.Info("sftp session closed")
	}()

	mcpServer, err := tools.NewServer(serverName, Version, tools.NewDispatcher(session))
	if err != nil {
		return err
	}

	if cfg.MetricsAddr != "" {
		metricsServer := &http.Server{
			Addr:    cfg.MetricsAddr,
			Handler: metrics.Handler(),
		}
		go func() {
			logging.Info("metrics server listening", zap.String("addr", cfg.MetricsAddr))
			if err := metricsServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				logging.Error("metrics server error", zap.Error(err))
			}
		}()
		defer metricsServer.Close()
	}

	switch cfg.Transport {
	case config.TransportHTTP:
		return serveHTTP(ctx, mcpServer, cfg.ListenAddr)
	default:
		return serveStdio(ctx, mcpServer)
	}
}

func serveStdio(ctx context.Context, mcpServer *server.MCPServer) error {
	stdio := server.NewStdioServer(mcpServer)
	stdio.SetErrorLogger(zap.NewStdLog(logging.L()))

	logging.Info("serving MCP over stdio")
	err := stdio.Listen(ctx, os.Stdin, os.Stdout)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logging.Info("shutting down...")
	return nil
}

func serveHTTP(ctx context.Context, mcpServer *server.MCPServer, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/mcp", logging.Middleware(metrics.Middleware(server.NewStreamableHTTPServer(mcpServer))))

	httpServer := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	go func() {
		<-ctx.Done()
		logging.Info("shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		httpServer.Shutdown(shutdownCtx)
	}()

	logging.Info("serving MCP over HTTP", zap.String("addr", addr), zap.String("path", "/mcp"))
	if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
