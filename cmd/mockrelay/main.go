// mockrelay starts the programmable mock server: a route table of mock
// definitions served behind an optional upstream passthrough.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mockrelay/mockrelay/pkg/config"
	"github.com/mockrelay/mockrelay/pkg/engine"
	"github.com/mockrelay/mockrelay/pkg/logging"
	"github.com/mockrelay/mockrelay/pkg/store"
	filestore "github.com/mockrelay/mockrelay/pkg/store/file"
)

// Build-time variables set via ldflags.
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "mockrelay",
		Short:         "Programmable HTTP mock server with upstream passthrough",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(serveCmd(), versionCmd())
	return root
}

func serveCmd() *cobra.Command {
	var (
		configPath   string
		port         int
		definitions  string
		redirectBase string
		logLevel     string
		logFormat    string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the mock server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.Default()
			if configPath != "" {
				loaded, err := config.Load(configPath)
				if err != nil {
					return err
				}
				cfg = loaded
			}
			if cmd.Flags().Changed("port") {
				cfg.HTTPPort = port
			}
			if definitions != "" {
				cfg.Definitions = definitions
			}
			if redirectBase != "" {
				cfg.RedirectBase = redirectBase
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			level, err := logging.ParseLevel(logLevel)
			if err != nil {
				return err
			}
			format, err := logging.ParseFormat(logFormat)
			if err != nil {
				return err
			}
			log := logging.New(logging.Config{Level: level, Format: format})

			var defs store.Store
			if cfg.Definitions != "" {
				fs, err := filestore.New(cfg.Definitions, filestore.WithLogger(log))
				if err != nil {
					return err
				}
				if err := fs.Watch(); err != nil {
					log.Warn("definition file watching disabled", "error", err)
				}
				defer fs.Close()
				defs = fs
			} else {
				log.Warn("no definitions file configured, serving an empty route table")
				defs = store.NewMemory()
			}

			eng := engine.New(cfg, defs, engine.WithLogger(log))

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := eng.Start(ctx); err != nil {
				return err
			}
			log.Info("serving", "port", eng.Port())

			<-ctx.Done()
			stop()

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return eng.Stop(shutdownCtx)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file")
	cmd.Flags().IntVarP(&port, "port", "p", 8001, "listening port (0 for ephemeral)")
	cmd.Flags().StringVarP(&definitions, "definitions", "d", "", "path to the mock definitions YAML file")
	cmd.Flags().StringVar(&redirectBase, "redirect-base", "", "upstream base URL tried before local resolution")
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	cmd.Flags().StringVar(&logFormat, "log-format", "text", "log format (text, json)")
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "mockrelay %s (commit %s, built %s)\n", Version, Commit, BuildDate)
		},
	}
}
