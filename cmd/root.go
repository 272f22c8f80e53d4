package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/shreedharv16/accesslint/internal/output"
	"github.com/shreedharv16/accesslint/internal/store"
)

// Package-level shared dependencies, initialized in cobra.OnInitialize.
var (
	ui        *output.UI
	dataStore store.Store

	verbose bool

	buildVersion string
	buildCommit  string
	buildDate    string
)

var rootCmd = &cobra.Command{
	Use:   "accesslint",
	Short: "Accessibility remediation agent for web projects",
	Long: `accesslint pairs an accessibility audit with an LLM agent.
Given a findings report and a project directory, it snapshots the files,
lets the agent fix the findings tool call by tool call, and applies the
resulting changes back to disk.`,
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

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().String("config", "", "Config file (default ~/.config/accesslint/config.yaml)")

	rootCmd.AddCommand(versionCmd)
}

func initConfig() {
	if cfgFile, _ := rootCmd.PersistentFlags().GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: cannot find home directory: %v\n", err)
			os.Exit(1)
		}
		viper.AddConfigPath(filepath.Join(home, ".config", "accesslint"))
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("ACCESSLINT")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	home, _ := os.UserHomeDir()
	defaultConfigDir := filepath.Join(home, ".config", "accesslint")

	viper.SetDefault("db_path", filepath.Join(defaultConfigDir, "accesslint.db"))
	viper.SetDefault("provider", "anthropic")
	viper.SetDefault("model", "claude-sonnet-4-5")
	viper.SetDefault("anthropic.api_key", "")
	viper.SetDefault("gollm.api_key", "")
	viper.SetDefault("max_iterations", 50)
	viper.SetDefault("timeout", "10m")
	viper.SetDefault("max_tokens", 4096)
	viper.SetDefault("context_budget_chars", 0)

	// Read config file if it exists (optional)
	_ = viper.ReadInConfig()
}

func initDeps() {
	ui = output.New()
	ui.Verbose = verbose
}

// getStore opens the SQLite store on first use so commands that don't need
// persistence run without touching the database.
func getStore() (store.Store, error) {
	if dataStore != nil {
		return dataStore, nil
	}
	s, err := store.NewSQLiteStore(viper.GetString("db_path"))
	if err != nil {
		return nil, err
	}
	dataStore = s
	return dataStore, nil
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("accesslint %s (commit %s, built %s)\n", buildVersion, buildCommit, buildDate)
	},
}
