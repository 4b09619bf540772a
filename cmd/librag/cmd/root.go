package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"librag/internal/config"
	"librag/internal/logging"
)

var (
	// cfgPath is an explicit config file; empty means the default lookup
	cfgPath string
	// dbPath overrides database.path from the config
	dbPath string
	// logLevel overrides logging.level from the config
	logLevel string
	// outputFormat is the output format (table, json)
	outputFormat string

	cfg    *config.AppConfig
	logger *slog.Logger
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "librag",
	Short: "Library catalog and circulation with a natural-language query layer",
	Long: `librag manages a small library catalog and its borrow/return ledger, and
answers free-text questions about them by retrieving matching books and
transactions, deriving insights, and asking a language model.

Examples:
  # Load the sample catalog
  librag seed

  # Borrow and return
  librag borrow 2 --name "Alice" --college "MIT" --id-email alice@mit.edu
  librag return 2 --name "Alice"

  # Ask a question
  librag ask "Is 1984 available?" --reasoning

  # Interactive chat, or the HTTP API
  librag chat
  librag serve --addr :8080`,
	Version:       "0.1.0",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		_ = godotenv.Load()

		var err error
		if cfgPath == "" {
			cfg, _, err = config.LoadDefault()
		} else {
			cfg, err = config.Load(cfgPath)
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if dbPath != "" {
			cfg.Database.Path = dbPath
		}
		if logLevel != "" {
			cfg.Logging.Level = logLevel
		}
		logger = logging.New(os.Stderr, cfg.Logging.Level, cfg.Logging.Format)
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	return err
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "Path to YAML config file (defaults to ./config.yaml or ~/.config/librag/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "Path to the SQLite database (overrides config)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error (overrides config)")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "table", "Output format: table, json")
}
