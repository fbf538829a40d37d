package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/joelkehle/patentos/internal/agent"
	"github.com/joelkehle/patentos/internal/config"
	"github.com/joelkehle/patentos/internal/gateway"
	"github.com/joelkehle/patentos/internal/journal"
	"github.com/joelkehle/patentos/internal/patent"
	"github.com/joelkehle/patentos/internal/report"
	"github.com/joelkehle/patentos/internal/server"
	"github.com/joelkehle/patentos/internal/session"
	"github.com/joelkehle/patentos/internal/telemetry"
)

var version = "dev"

var (
	configPath string
	envFile    string
	debug      bool

	logger *zap.Logger
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "patentos",
		Short:        "PatentOS patent-landscape agent",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			logger, err = telemetry.NewLogger(debug)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if logger != nil {
				_ = logger.Sync()
			}
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "YAML config file")
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before reading the environment")
	root.PersistentFlags().BoolVar(&debug, "debug", false, "debug logging")

	root.AddCommand(serveCmd(), searchCmd(), versionCmd())
	return root
}

func loadConfig() (config.Config, error) {
	if err := config.LoadDotEnv(envFile); err != nil {
		return config.Config{}, err
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return config.Config{}, err
	}
	cfg.ApplyEnv(os.Getenv)
	if debug {
		cfg.Debug = true
	}
	return cfg, nil
}

// buildGateway never fails on a missing credential: it logs the config error
// and returns a gateway that reports it on every search.
func buildGateway(ctx context.Context, cfg config.Config) gateway.Gateway {
	gw, err := gateway.FromConfig(ctx, cfg.LLM, logger)
	if err != nil {
		logger.Error("gateway_unconfigured", zap.String("provider", cfg.LLM.Provider), zap.Error(err))
	}
	return gw
}

func serveCmd() *cobra.Command {
	var addr, webDir string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the API and the web UI",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Addr = addr
			}
			if webDir != "" {
				cfg.WebDir = webDir
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default :8090)")
	cmd.Flags().StringVar(&webDir, "web-dir", "", "directory containing the web UI")
	return cmd
}

func serve(parent context.Context, cfg config.Config) error {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.SetupTracing(ctx, cfg.Telemetry.OTLPEndpoint, cfg.Telemetry.ServiceName)
	if err != nil {
		logger.Warn("tracing_disabled", zap.Error(err))
	}

	j, err := journal.Open()
	if err != nil {
		return err
	}
	defer j.Close()

	gw := buildGateway(ctx, cfg)
	ag := agent.New(gw, session.NewStore(),
		agent.WithLogger(logger.Named("agent")),
		agent.WithJournal(j),
		agent.WithPacing(cfg.Agent.Pacing()),
		agent.WithCandidates(cfg.Agent.Candidates),
	)
	defer ag.Close()

	pdf := report.NewChromiumPDFRenderer(cfg.Export.ChromePath)
	if !pdf.Available() {
		logger.Warn("pdf_export_unavailable", zap.String("reason", report.ErrNoBrowser.Error()))
	}

	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	srv := server.New(ag,
		server.WithLogger(logger.Named("http")),
		server.WithHistory(j),
		server.WithPDFRenderer(pdf),
		server.WithWebDir(resolveWebDir(cfg.WebDir)),
	)
	httpSrv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("listening", zap.String("addr", cfg.Addr), zap.String("provider", cfg.LLM.Provider))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		srv.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("http_shutdown", zap.Error(err))
		}
		if err := shutdownTracing(shutdownCtx); err != nil {
			logger.Warn("tracing_shutdown", zap.Error(err))
		}
		return nil
	})
	return g.Wait()
}

func resolveWebDir(dir string) string {
	if filepath.IsAbs(dir) {
		return dir
	}
	if _, err := os.Stat(dir); err == nil {
		return dir
	}
	exe, err := os.Executable()
	if err != nil {
		return dir
	}
	candidate := filepath.Join(filepath.Dir(exe), "..", "..", dir)
	if _, err := os.Stat(candidate); err == nil {
		return candidate
	}
	return dir
}

func searchCmd() *cobra.Command {
	var sortMode string
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Run one landscape search and print the records as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mode, err := patent.ParseSortMode(sortMode)
			if err != nil {
				return err
			}
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			ctx := cmd.Context()
			store := session.NewStore()
			ag := agent.New(buildGateway(ctx, cfg), store,
				agent.WithLogger(logger.Named("agent")),
				agent.WithPacing(0),
				agent.WithCandidates(cfg.Agent.Candidates),
			)
			defer ag.Close()

			if _, err := ag.Search(ctx, args[0]); err != nil {
				for _, ev := range store.Snapshot().Log {
					fmt.Fprintf(cmd.ErrOrStderr(), "[%s] %s\n", ev.Type, ev.Message)
				}
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(patent.Project(store.Snapshot().Entities, mode))
		},
	}
	cmd.Flags().StringVar(&sortMode, "sort", string(patent.SortReplicability), "replicability or invalidation")
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	}
}
