package model

import (
	"os"
	"path/filepath"
	"runtime"
	"time"
)

// Config is the complete lemma configuration
type Config struct {
	Data     DataConfig     `yaml:"data" mapstructure:"data"`
	Search   SearchConfig   `yaml:"search" mapstructure:"search"`
	Analysis AnalysisConfig `yaml:"analysis" mapstructure:"analysis"`
	Cache    CacheConfig    `yaml:"cache" mapstructure:"cache"`
	LLM      LLMConfig      `yaml:"llm" mapstructure:"llm"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
	Output   OutputConfig   `yaml:"output" mapstructure:"output"`
}

// DataConfig locates the book records
type DataConfig struct {
	Dir     string `yaml:"dir" mapstructure:"dir"`         // Directory of *.yaml records
	Summary string `yaml:"summary" mapstructure:"summary"` // JSON summary file, takes precedence over Dir when set
}

// SearchConfig bounds the backtracking matcher
type SearchConfig struct {
	MaxVisits int `yaml:"max_visits" mapstructure:"max_visits"` // Candidate match attempts per search, 0 = unbounded
}

// AnalysisConfig controls the parallel analysis commands
type AnalysisConfig struct {
	Workers       int `yaml:"workers" mapstructure:"workers"`
	MaxAdjectives int `yaml:"max_adjectives" mapstructure:"max_adjectives"` // Adjectives combined per open question
}

// CacheConfig controls search result caching
type CacheConfig struct {
	Enabled   bool          `yaml:"enabled" mapstructure:"enabled"`
	Dir       string        `yaml:"dir" mapstructure:"dir"`
	MemoryTTL time.Duration `yaml:"memory_ttl" mapstructure:"memory_ttl"`
	DiskTTL   time.Duration `yaml:"disk_ttl" mapstructure:"disk_ttl"`
}

// LLMConfig configures the optional proof narrator
type LLMConfig struct {
	Provider          string  `yaml:"provider" mapstructure:"provider"` // openai, ollama, "" (disabled)
	Model             string  `yaml:"model" mapstructure:"model"`
	APIKey            string  `yaml:"-" mapstructure:"api_key"`
	BaseURL           string  `yaml:"base_url,omitempty" mapstructure:"base_url"`
	Timeout           int     `yaml:"timeout" mapstructure:"timeout"` // seconds
	StrictCitations   bool    `yaml:"strict_citations" mapstructure:"strict_citations"`
	MaxTokens         int     `yaml:"max_tokens" mapstructure:"max_tokens"`
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	HTTPProxy         string  `yaml:"http_proxy,omitempty" mapstructure:"http_proxy"`
	HTTPSProxy        string  `yaml:"https_proxy,omitempty" mapstructure:"https_proxy"`
	NoProxy           string  `yaml:"no_proxy,omitempty" mapstructure:"no_proxy"` // Comma-separated hosts
}

// LogConfig configures the zap logger
type LogConfig struct {
	Level       string `yaml:"level" mapstructure:"level"` // debug, info, warn, error
	Development bool   `yaml:"development" mapstructure:"development"`
}

// OutputConfig controls report rendering
type OutputConfig struct {
	JSON     string `yaml:"json,omitempty" mapstructure:"json"`
	Markdown string `yaml:"markdown,omitempty" mapstructure:"markdown"`
	Verbose  bool   `yaml:"verbose" mapstructure:"verbose"`
}

// DefaultConfig returns the built-in defaults
func DefaultConfig() *Config {
	cacheDir := ".lemma/cache"
	if home, err := os.UserHomeDir(); err == nil {
		cacheDir = filepath.Join(home, ".lemma", "cache")
	}

	return &Config{
		Data: DataConfig{
			Dir: "./data",
		},
		Search: SearchConfig{
			MaxVisits: 100_000,
		},
		Analysis: AnalysisConfig{
			Workers:       runtime.NumCPU(),
			MaxAdjectives: 2,
		},
		Cache: CacheConfig{
			Enabled:   true,
			Dir:       cacheDir,
			MemoryTTL: 10 * time.Minute,
			DiskTTL:   24 * time.Hour,
		},
		LLM: LLMConfig{
			Timeout:           30,
			StrictCitations:   true,
			MaxTokens:         800,
			RequestsPerSecond: 1,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}
