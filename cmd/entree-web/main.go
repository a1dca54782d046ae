package main

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/entreepos/entree-web/internal/config"
	"github.com/entreepos/entree-web/internal/logging"
)

var (
	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:           "entree-web <command>",
	Short:         "Entree marketing site and Messenger landing page",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return err
		}
		l, err := logging.New(c.LogLevel, c.Dev)
		if err != nil {
			return err
		}
		cfg, logger = c, l
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd, seedUsersCmd, routesCmd)
}

// defaultDatabasePath returns the platform-specific application data path
// used when ENTREE_DATABASE_PATH is not set.
func defaultDatabasePath() (string, error) {
	homeDirectory, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	var applicationDirectory string
	switch runtime.GOOS {
	case "darwin":
		applicationDirectory = filepath.Join(homeDirectory, "Library", "Application Support", "Entree")
	case "windows":
		applicationDirectory = filepath.Join(homeDirectory, "AppData", "Roaming", "Entree")
	default: // linux and others
		applicationDirectory = filepath.Join(homeDirectory, ".local", "share", "Entree")
	}
	if err := os.MkdirAll(applicationDirectory, 0o755); err != nil {
		return "", fmt.Errorf("failed to create application directory: %w", err)
	}
	return filepath.Join(applicationDirectory, "users.db"), nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
