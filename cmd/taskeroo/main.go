package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/taskeroo/taskeroo/internal/auth"
	"github.com/taskeroo/taskeroo/internal/config"
	"github.com/taskeroo/taskeroo/internal/db"
	"github.com/taskeroo/taskeroo/internal/display"
	"github.com/taskeroo/taskeroo/internal/keywords"
	"github.com/taskeroo/taskeroo/internal/logging"
	"github.com/taskeroo/taskeroo/internal/review"
)

// Version is set via ldflags at build time.
var Version = "dev"

var (
	cfgPath    string
	dbPath     string
	jsonOutput bool
	quietFlag  bool

	cfg    *config.Config
	logger zerolog.Logger
	store  *db.DB
)

var rootCmd = &cobra.Command{
	Use:           "taskeroo",
	Short:         "taskeroo - Gmail categorizer",
	Long:          "Taskeroo: fetch Gmail messages, categorize them with keyword and label signals, and review the results.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := config.LoadEnvFile(".env"); err != nil {
			return err
		}
		var err error
		cfg, err = config.Load(cfgPath)
		if err != nil {
			return err
		}
		if dbPath != "" {
			cfg.DBPath = dbPath
		}

		level := cfg.LogLevel
		if quietFlag {
			level = "warn"
		}
		logger = logging.NewConsole(level, os.Stderr)

		// Skip DB for commands that don't need it
		switch cmd.Name() {
		case "help", "version", "serve":
			return nil
		}
		if cmd.Parent() != nil && cmd.Parent().Name() == "auth" {
			return nil
		}

		store, err = db.Open(cmd.Context(), cfg.DBPath)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if store != nil {
			store.Close()
			store = nil
		}
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "taskeroo version %s\n", Version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "Config file (YAML); environment variables override it")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "Database path (default: db_path from config)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().BoolVarP(&quietFlag, "quiet", "q", false, "Suppress non-essential output")

	rootCmd.AddCommand(versionCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if store != nil {
		store.Close()
	}
	if err != nil {
		display.ErrorMsg(os.Stderr, "%v", err)
		os.Exit(1)
	}
}

func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func loadKeywords() keywords.Table {
	return keywords.Load(cfg.KeywordsPath, logger)
}

func reviewService() *review.Service {
	return review.New(store, loadKeywords(), logger)
}

func tokenStore() (auth.TokenStore, error) {
	if cfg.TokenStore == config.TokenStoreKeyring {
		return auth.OpenKeyring(expandHome(cfg.KeyringDir))
	}
	return &auth.FileTokenStore{Path: expandHome(cfg.TokenPath)}, nil
}

func newProvider(cmd *cobra.Command) (*auth.Provider, error) {
	ts, err := tokenStore()
	if err != nil {
		return nil, err
	}
	return auth.NewProvider(expandHome(cfg.CredentialsPath), ts, cmd.ErrOrStderr(), logger), nil
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}
