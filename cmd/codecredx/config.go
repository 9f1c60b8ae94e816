package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/ravi-parthasarathy/codecredx/internal/secrets"
	"github.com/ravi-parthasarathy/codecredx/pkg/github"
	"github.com/ravi-parthasarathy/codecredx/pkg/llm"
	"github.com/ravi-parthasarathy/codecredx/pkg/report"
	"github.com/ravi-parthasarathy/codecredx/pkg/runner"
	"github.com/ravi-parthasarathy/codecredx/pkg/scoring"
	"github.com/ravi-parthasarathy/codecredx/pkg/stages"
)

const envPrefix = "CODECREDX"

type Config struct {
	Log      LogConfig      `mapstructure:"log"`
	GitHub   GitHubConfig   `mapstructure:"github"`
	LLM      LLMConfig      `mapstructure:"llm"`
	Scoring  scoring.Config `mapstructure:"scoring"`
	Report   ReportConfig   `mapstructure:"report"`
	Pipeline PipelineConfig `mapstructure:"pipeline"`
}

type LogConfig struct {
	Format string `mapstructure:"format"`
	Level  string `mapstructure:"level"`
}

type GitHubConfig struct {
	Token       string        `mapstructure:"token"`
	TokenFile   string        `mapstructure:"token-file"`
	APIURL      string        `mapstructure:"api-url"`
	UserAgent   string        `mapstructure:"user-agent"`
	Timeout     time.Duration `mapstructure:"timeout"`
	Concurrency int           `mapstructure:"concurrency"`
	SkipForks   bool          `mapstructure:"skip-forks"`
}

type LLMConfig struct {
	// Model is "provider:model". Empty disables summaries.
	Model          string        `mapstructure:"model"`
	APIKey         string        `mapstructure:"api-key"`
	APIKeyFile     string        `mapstructure:"api-key-file"`
	BaseURL        string        `mapstructure:"base-url"`
	Timeout        time.Duration `mapstructure:"timeout"`
	MaxTokens      int           `mapstructure:"max-tokens"`
	MaxRetries     int           `mapstructure:"max-retries"`
	MaxPromptChars int           `mapstructure:"max-prompt-chars"`
	System         string        `mapstructure:"system"`
	CacheFile      string        `mapstructure:"cache-file"`
}

type ReportConfig struct {
	Path string `mapstructure:"path"`
}

type PipelineConfig struct {
	// Graph is a DOT file replacing the default wiring.
	Graph     string `mapstructure:"graph"`
	MaxVisits int    `mapstructure:"max-visits"`
}

// setDefaults registers every key so that CODECREDX_* variables reach keys
// absent from the config file.
func setDefaults(v *viper.Viper) {
	sc := scoring.DefaultConfig()
	defaults := map[string]any{
		"log.format": "text",
		"log.level":  "info",

		"github.token":       "",
		"github.token-file":  "",
		"github.api-url":     "https://api.github.com",
		"github.user-agent":  "",
		"github.timeout":     10 * time.Second,
		"github.concurrency": stages.DefaultConcurrency,
		"github.skip-forks":  false,

		"llm.model":            "ollama:llama3",
		"llm.api-key":          "",
		"llm.api-key-file":     "",
		"llm.base-url":         "",
		"llm.timeout":          60 * time.Second,
		"llm.max-tokens":       512,
		"llm.max-retries":      3,
		"llm.max-prompt-chars": stages.DefaultMaxPromptChars,
		"llm.system":           "",
		"llm.cache-file":       "llm_cache.json",

		"scoring.stars-per-point":      sc.StarsPerPoint,
		"scoring.max-score":            sc.MaxScore,
		"scoring.fork-originality-min": sc.ForkOriginalityMin,
		"scoring.fork-originality-max": sc.ForkOriginalityMax,
		"scoring.documentation-bonus":  sc.DocumentationBonus,
		"scoring.contribution-weight":  sc.ContributionWeight,
		"scoring.originality-weight":   sc.OriginalityWeight,
		"scoring.elo-min":              sc.EloMin,
		"scoring.elo-max":              sc.EloMax,
		"scoring.role-pool":            sc.RolePool,
		"scoring.seed":                 sc.Seed,

		"report.path": report.DefaultPath,

		"pipeline.graph":      "",
		"pipeline.max-visits": 0,
	}
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
}

// loadConfig reads file (or codecredx.yaml in the working directory when
// file is empty), the environment and any flags already bound to v.
func loadConfig(v *viper.Viper, file string) (*Config, error) {
	setDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName(app)
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if v.GetBool("debug") {
		cfg.Log.Level = "debug"
	}
	if v.GetBool("json") {
		cfg.Log.Format = "json"
	}
	return &cfg, nil
}

// githubClient builds the REST client. The token is optional.
func (c *Config) githubClient(logger *zap.Logger) (*github.Client, error) {
	token, err := secrets.Optional(secrets.Source{
		Name:  "github token",
		Value: c.GitHub.Token,
		File:  c.GitHub.TokenFile,
		Env:   "GITHUB_TOKEN",
	})
	if err != nil {
		return nil, err
	}
	if token == "" {
		logger.Warn("no github token configured, requests are heavily rate limited")
	}

	client := github.New(logger, token)
	if c.GitHub.APIURL != "" {
		client.APIURL = strings.TrimRight(c.GitHub.APIURL, "/")
	}
	if c.GitHub.UserAgent != "" {
		client.UserAgent = c.GitHub.UserAgent
	}
	if c.GitHub.Timeout > 0 {
		client.HTTPClient.Timeout = c.GitHub.Timeout
	}
	return client, nil
}

// generator builds the summarizer's model. It returns nil when no model is
// configured.
func (c *Config) generator(logger *zap.Logger) (llm.TextGenerator, error) {
	if c.LLM.Model == "" {
		logger.Warn("no language model configured, summaries will be recorded as errors")
		return nil, nil
	}
	_, modelName, err := llm.ParseModelID(c.LLM.Model)
	if err != nil {
		return nil, err
	}
	key, err := secrets.Optional(secrets.Source{
		Name:  "llm api key",
		Value: c.LLM.APIKey,
		File:  c.LLM.APIKeyFile,
	})
	if err != nil {
		return nil, err
	}

	client, err := llm.NewClient(c.LLM.Model, llm.Options{
		APIKey:  key,
		BaseURL: c.LLM.BaseURL,
		Timeout: c.LLM.Timeout,
		Retry:   llm.Backoff{Attempts: c.LLM.MaxRetries},
	})
	if err != nil {
		return nil, err
	}

	var gen llm.TextGenerator = llm.NewPromptClient(client, modelName, c.LLM.System, c.LLM.MaxTokens, logger)
	if c.LLM.CacheFile != "" {
		gen = llm.NewCachedGenerator(gen, c.LLM.CacheFile, logger)
	}
	return gen, nil
}

// runnerOptions maps the config onto the runner. graphDOT is the content of
// the pipeline graph file, if any.
func (c *Config) runnerOptions() (runner.Options, error) {
	opts := runner.Options{
		Scoring:        c.Scoring,
		Concurrency:    c.GitHub.Concurrency,
		MaxPromptChars: c.LLM.MaxPromptChars,
		SkipForks:      c.GitHub.SkipForks,
		MaxVisits:      c.Pipeline.MaxVisits,
	}
	if c.Pipeline.Graph != "" {
		src, err := os.ReadFile(c.Pipeline.Graph)
		if err != nil {
			return runner.Options{}, fmt.Errorf("read pipeline graph: %w", err)
		}
		opts.GraphDOT = string(src)
	}
	return opts, nil
}

// newRunner assembles the runner and its collaborators from c.
func (c *Config) newRunner(logger *zap.Logger) (*runner.Runner, error) {
	gh, err := c.githubClient(logger.Named("github"))
	if err != nil {
		return nil, err
	}
	gen, err := c.generator(logger.Named("llm"))
	if err != nil {
		return nil, fmt.Errorf("language model: %w", err)
	}
	opts, err := c.runnerOptions()
	if err != nil {
		return nil, err
	}

	deps := runner.Deps{
		Repositories: gh,
		Profiles:     gh,
		Generator:    gen,
		Logger:       logger,
	}
	if c.Report.Path != "" {
		deps.Sink = report.NewFileSink(c.Report.Path)
	}
	return runner.New(deps, opts)
}
