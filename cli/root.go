// Package cli is the excalidash command line: it runs the server and drives
// the dashboard engine against a running server.
package cli

import (
	"fmt"
	"os"
	"strings"
	"time"

	"excalidash/config"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

type App struct {
	cfg *config.Config

	ServerURL string
	Token     string
	Locale    string
	LogLevel  string
	Debounce  time.Duration
}

func NewRootCmd() *cobra.Command {
	cfg := config.Load()
	app := &App{cfg: cfg}

	cmd := &cobra.Command{
		Use:          "excalidash",
		Short:        "Excalidraw drawing dashboard server and client",
		SilenceUsage: true,
		Example: strings.TrimSpace(`
  # Run the API server on sqlite
  excalidash serve --storage sqlite

  # List drawings of a collection, oldest first
  excalidash ls --collection <id> --sort created --order asc

  # Import drawings and libraries
  excalidash import plan.excalidraw shapes.excalidrawlib
`),
	}

	cmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		level, err := logrus.ParseLevel(app.LogLevel)
		if err != nil {
			return fmt.Errorf("invalid log level: %w", err)
		}
		logrus.SetLevel(level)
		logrus.SetOutput(cmd.ErrOrStderr())
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
		return nil
	}

	cmd.PersistentFlags().StringVar(&app.LogLevel, "loglevel", cfg.LogLevel, "The log level (debug, info, warn, error)")
	cmd.PersistentFlags().StringVar(&app.ServerURL, "server", cfg.Client.ServerURL, "Server base URL")
	cmd.PersistentFlags().StringVar(&app.Token, "token", cfg.Client.Token, "Bearer token from /auth/login")
	cmd.PersistentFlags().StringVar(&app.Locale, "locale", cfg.Client.Locale, "Locale used to order names")
	cmd.PersistentFlags().DurationVar(&app.Debounce, "debounce", cfg.Client.SearchDebounce, "Search debounce delay")

	cmd.AddCommand(newServeCmd(app))
	cmd.AddCommand(newLsCmd(app))
	cmd.AddCommand(newNewCmd(app))
	cmd.AddCommand(newImportCmd(app))
	cmd.AddCommand(newMvCmd(app))
	cmd.AddCommand(newTrashCmd(app))
	cmd.AddCommand(newRmCmd(app))
	cmd.AddCommand(newDupCmd(app))
	cmd.AddCommand(newRenameCmd(app))
	cmd.AddCommand(newCollectionsCmd(app))

	return cmd
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
