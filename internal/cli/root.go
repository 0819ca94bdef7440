package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/ppiankov/lemma/internal/logging"
	"github.com/ppiankov/lemma/internal/model"
	"github.com/ppiankov/lemma/internal/pipeline"
)

// Version is set at build time
var Version = "v0.1.0"

var (
	cfgFile     string
	verbose     bool
	dataDir     string
	summaryFile string
	logLevel    string
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "lemma",
	Short: "Lemma - typed fact database and deduction engine",
	Long: `Lemma stores a book of types, adjectives, theorems and examples, and
deduces what follows from them.

Every derived fact carries the theorem application that established it,
and every contradiction is reported with both of its derivations.

Lemma applies theorems; it does not prove them.`,
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Display the version number and build information for Lemma.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("lemma %s\n", Version)
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.lemma/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVarP(&dataDir, "data", "d", "", "data directory of *.yaml records")
	rootCmd.PersistentFlags().StringVar(&summaryFile, "summary", "", "load the book from a JSON summary instead of the data directory")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")

	// Bind flags to viper
	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	_ = viper.BindPFlag("data.dir", rootCmd.PersistentFlags().Lookup("data"))
	_ = viper.BindPFlag("data.summary", rootCmd.PersistentFlags().Lookup("summary"))
	_ = viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))

	// Add subcommands
	rootCmd.AddCommand(versionCmd)
}

// initConfig reads in config file and ENV variables
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag
		viper.SetConfigFile(cfgFile)
	} else {
		// Find home directory
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error finding home directory: %v\n", err)
			return
		}

		// Search for config in home directory
		viper.AddConfigPath(home + "/.lemma")
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	// Read in environment variables that match LEMMA_*, e.g. LEMMA_DATA_DIR
	setDefaults(model.DefaultConfig())
	viper.SetEnvPrefix("LEMMA")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// If a config file is found, read it in
	if err := viper.ReadInConfig(); err == nil && verbose {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	}
}

// setDefaults registers every config key so that environment variables
// reach the unmarshalled config
func setDefaults(cfg *model.Config) {
	viper.SetDefault("data.dir", cfg.Data.Dir)
	viper.SetDefault("data.summary", cfg.Data.Summary)
	viper.SetDefault("search.max_visits", cfg.Search.MaxVisits)
	viper.SetDefault("analysis.workers", cfg.Analysis.Workers)
	viper.SetDefault("analysis.max_adjectives", cfg.Analysis.MaxAdjectives)
	viper.SetDefault("cache.enabled", cfg.Cache.Enabled)
	viper.SetDefault("cache.dir", cfg.Cache.Dir)
	viper.SetDefault("cache.memory_ttl", cfg.Cache.MemoryTTL)
	viper.SetDefault("cache.disk_ttl", cfg.Cache.DiskTTL)
	viper.SetDefault("llm.provider", cfg.LLM.Provider)
	viper.SetDefault("llm.model", cfg.LLM.Model)
	viper.SetDefault("llm.api_key", cfg.LLM.APIKey)
	viper.SetDefault("llm.base_url", cfg.LLM.BaseURL)
	viper.SetDefault("llm.timeout", cfg.LLM.Timeout)
	viper.SetDefault("llm.strict_citations", cfg.LLM.StrictCitations)
	viper.SetDefault("llm.max_tokens", cfg.LLM.MaxTokens)
	viper.SetDefault("llm.requests_per_second", cfg.LLM.RequestsPerSecond)
	viper.SetDefault("llm.http_proxy", cfg.LLM.HTTPProxy)
	viper.SetDefault("llm.https_proxy", cfg.LLM.HTTPSProxy)
	viper.SetDefault("llm.no_proxy", cfg.LLM.NoProxy)
	viper.SetDefault("log.level", cfg.Log.Level)
	viper.SetDefault("log.development", cfg.Log.Development)
}

// loadConfig merges defaults, config file, environment and flags
func loadConfig() (*model.Config, error) {
	cfg := model.DefaultConfig()
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.Output.Verbose = verbose
	if verbose && cfg.Log.Level != "debug" {
		cfg.Log.Level = "debug"
	}

	// Provider keys fall back to the provider's own environment variables
	switch cfg.LLM.Provider {
	case "openai":
		if cfg.LLM.APIKey == "" {
			cfg.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
		}
	case "ollama":
		if baseURL := os.Getenv("OLLAMA_BASE_URL"); baseURL != "" && cfg.LLM.BaseURL == "" {
			cfg.LLM.BaseURL = baseURL
		}
	}
	return cfg, nil
}

// setupWith builds the logger and the pipeline for cfg
func setupWith(cfg *model.Config) (*zap.Logger, *pipeline.Pipeline, error) {
	logger, err := logging.New(cfg.Log)
	if err != nil {
		return nil, nil, err
	}
	return logger, pipeline.New(cfg, logger), nil
}

// writeJSON writes v as indented JSON to path, or to stdout when path is "-"
func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	data = append(data, '\n')
	if path == "-" {
		_, err := os.Stdout.Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	if verbose {
		fmt.Printf("✓ Wrote JSON: %s\n", path)
	}
	return nil
}
