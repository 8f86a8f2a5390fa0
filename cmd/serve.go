package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/conneroisu/paramtrail/internal/config"
	"github.com/conneroisu/paramtrail/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP host",
	Long: `Start the HTTP host. Every page request has its tracked query parameters
captured into the visitor's session; the API, redirect and form endpoints
read them back. The config file is reloaded on change unless --no-watch
is given.

Examples:
  paramtrail serve                 # Serve on localhost:8080
  paramtrail serve -p 3000         # Serve on port 3000
  paramtrail serve --host 0.0.0.0  # Listen on all interfaces`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

var (
	serveFlags   *StandardFlags
	serveNoWatch bool
)

func init() {
	rootCmd.AddCommand(serveCmd)

	serveFlags = AddStandardFlags(serveCmd, "server")
	serveCmd.Flags().BoolVar(&serveNoWatch, "no-watch", false, "Don't reload the config file on change")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	srv, err := server.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if path := viper.ConfigFileUsed(); path != "" && !serveNoWatch {
		fw, err := config.Watch(ctx, path, logger, func(next *config.Config) {
			if err := srv.Reload(next); err != nil {
				logger.Warn(ctx, err, "Reload rejected")
			}
		})
		if err != nil {
			logger.Warn(ctx, err, "Config watching disabled", "path", path)
		} else {
			defer fw.Stop()
		}
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Starting paramtrail at http://%s:%d (%d tracked parameters)\n",
		cfg.Server.Host, cfg.Server.Port, len(cfg.Parameters))

	return srv.Start(ctx)
}
