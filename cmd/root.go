package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/joescharf/tickeasy/internal/backend"
	"github.com/joescharf/tickeasy/internal/guard"
	"github.com/joescharf/tickeasy/internal/ledger"
	"github.com/joescharf/tickeasy/internal/metrics"
	"github.com/joescharf/tickeasy/internal/output"
	"github.com/joescharf/tickeasy/internal/review"
	"github.com/joescharf/tickeasy/internal/session"
	"github.com/joescharf/tickeasy/internal/store"
)

// Package-level shared dependencies, initialized in cobra.OnInitialize.
var (
	ui        *output.UI
	dataStore store.Store
	logger    *slog.Logger

	verbose bool
	dryRun  bool
)

var rootCmd = &cobra.Command{
	Use:   "tickeasy",
	Short: "Tickeasy operator console - moderate concerts and manage sessions",
	Long: `tickeasy is the operator console for the Tickeasy ticketing platform.
It signs operators in, shows concerts with their review history, submits
manual review decisions, and serves the console HTTP surface that adopts
cross-domain sign-in handoffs.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	DisableAutoGenTag: true,
}

// Execute is the main entry point called from main.go.
func Execute(version, commit, date string) {
	buildVersion = version
	buildCommit = commit
	buildDate = date

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig, initDeps)

	rootCmd.RunE = func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	}

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().BoolVarP(&dryRun, "dry-run", "n", false, "Show what would happen without making changes")
	rootCmd.PersistentFlags().String("config", "", "Config file (default ~/.config/tickeasy/config.yaml)")
}

func initConfig() {
	// If --config is explicitly set, use that file
	if cfgFile, _ := rootCmd.PersistentFlags().GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: cannot find home directory: %v\n", err)
			os.Exit(1)
		}

		configDir := filepath.Join(home, ".config", "tickeasy")
		viper.AddConfigPath(configDir)
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("TICKEASY")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	home, _ := os.UserHomeDir()
	setDefaults(filepath.Join(home, ".config", "tickeasy"))

	// Read config file if it exists (optional)
	_ = viper.ReadInConfig()
}

// setDefaults registers every config key with its default.
func setDefaults(stateDir string) {
	viper.SetDefault("state_dir", stateDir)
	viper.SetDefault("db_path", filepath.Join(stateDir, "tickeasy.db"))
	viper.SetDefault("api.base_url", "https://tickeasy-team-backend.onrender.com")
	viper.SetDefault("auth.login_url", "https://frontend-fz4o.onrender.com/login")
	viper.SetDefault("guard.protected_prefix", "/dashboard")
	viper.SetDefault("guard.preserve_next", true)
	viper.SetDefault("serve.port", 8080)
	viper.SetDefault("review.precheck_role", true)
	viper.SetDefault("anthropic.api_key", "")
	viper.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
}

func initDeps() {
	ui = output.New()
	ui.Verbose = verbose
	ui.DryRun = dryRun

	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	// Store is opened lazily so config/version commands run without a db.
}

// getStore returns the shared store, initializing it on first call.
func getStore() (store.Store, error) {
	if dataStore != nil {
		return dataStore, nil
	}

	dbPath := viper.GetString("db_path")
	s, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := s.Migrate(cmdContext()); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	dataStore = s
	return dataStore, nil
}

// cmdContext is the root command context, or Background when commands run
// outside Execute.
func cmdContext() context.Context {
	if ctx := rootCmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func getLogger() *slog.Logger {
	if logger == nil {
		return slog.Default()
	}
	return logger
}

// newBackend returns a client for the configured moderation service.
// Remote calls carry no timeout of their own; commands bound them by context.
func newBackend() *backend.Client {
	return backend.New(viper.GetString("api.base_url"), nil)
}

// cliSession binds the persistent store to an in-process server channel.
func cliSession() (*session.Context, error) {
	s, err := getStore()
	if err != nil {
		return nil, err
	}
	return session.New(s, nil).WithLogger(getLogger()), nil
}

// newEngine wires the review engine with its ledger reader and audit log.
func newEngine(client *backend.Client, m *metrics.Metrics) (*review.Engine, *ledger.Reader, error) {
	s, err := getStore()
	if err != nil {
		return nil, nil, err
	}
	reader := ledger.NewReader(client, getLogger(), m)
	engine := review.NewEngine(client, reader, s, review.DefaultConfig()).
		WithLogger(getLogger()).
		WithMetrics(m)
	return engine, reader, nil
}

func guardConfig() guard.Config {
	return guard.Config{
		ProtectedPrefix: viper.GetString("guard.protected_prefix"),
		LoginURL:        viper.GetString("auth.login_url"),
		PreserveNext:    viper.GetBool("guard.preserve_next"),
	}
}

// requireToken reads the current token or explains how to get one.
func requireToken(sess *session.Context) (string, error) {
	tok, err := sess.Token(cmdContext())
	if err != nil {
		return "", err
	}
	if tok == "" {
		return "", fmt.Errorf("not signed in (run 'tickeasy login' first)")
	}
	return tok, nil
}
