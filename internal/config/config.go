// Package config provides configuration management for studycoach.
package config

import (
	"os"
	"path/filepath"
	"time"

	json "github.com/goccy/go-json"
)

// Defaults for settings.json.
const (
	DefaultModel            = "llama-3.3-70b-versatile"
	DefaultTopicsPerSession = 6
	DefaultMaxDepth         = 5
	DefaultRecentScoreCap   = 5
	DefaultAnswerTimeoutMin = 10
	DefaultTokenBudget      = 4000
	DefaultMaxConns         = 4
)

// Scoring defaults. Half-life shapes the forgetting curve; starvation
// accrues per day since the last review so no topic is neglected forever.
const (
	DefaultForgettingHalfLifeDays = 2.0
	DefaultStarvationPerDay       = 0.1
)

// Config holds all tunables for a study cycle. Secrets (API tokens)
// are deliberately absent: they come from the environment, never from
// the settings file.
type Config struct {
	DBPath                 string  `json:"db_path"`
	CorpusPath             string  `json:"corpus_path"`
	Model                  string  `json:"model"`
	TelegramChatID         string  `json:"telegram_chat_id"`
	TopicsPerSession       int     `json:"topics_per_session"`
	MaxDepth               int     `json:"max_depth"`
	RecentScoreCap         int     `json:"recent_score_cap"`
	AnswerTimeoutMinutes   int     `json:"answer_timeout_minutes"`
	ContentTokenBudget     int     `json:"content_token_budget"`
	MaxConns               int     `json:"max_conns"`
	ForgettingHalfLifeDays float64 `json:"forgetting_half_life_days"`
	StarvationPerDay       float64 `json:"starvation_per_day"`
}

// AnswerTimeout returns the per-topic answer collection window.
func (c *Config) AnswerTimeout() time.Duration {
	return time.Duration(c.AnswerTimeoutMinutes) * time.Minute
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		DBPath:                 DBPath(),
		CorpusPath:             CorpusPath(),
		Model:                  DefaultModel,
		TopicsPerSession:       DefaultTopicsPerSession,
		MaxDepth:               DefaultMaxDepth,
		RecentScoreCap:         DefaultRecentScoreCap,
		AnswerTimeoutMinutes:   DefaultAnswerTimeoutMin,
		ContentTokenBudget:     DefaultTokenBudget,
		MaxConns:               DefaultMaxConns,
		ForgettingHalfLifeDays: DefaultForgettingHalfLifeDays,
		StarvationPerDay:       DefaultStarvationPerDay,
	}
}

// DataDir returns the studycoach data directory (~/.studycoach).
func DataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".studycoach")
}

// DBPath returns the path to the progress database.
func DBPath() string {
	return filepath.Join(DataDir(), "studycoach.db")
}

// SettingsPath returns the path to the settings file.
func SettingsPath() string {
	return filepath.Join(DataDir(), "settings.json")
}

// CorpusPath returns the path to the corpus registry file.
func CorpusPath() string {
	return filepath.Join(DataDir(), "corpus.yaml")
}

// EnsureDataDir creates the data directory if it does not exist.
func EnsureDataDir() error {
	return os.MkdirAll(DataDir(), 0o755)
}

// EnsureSettings writes a default settings file if none exists.
func EnsureSettings() error {
	path := SettingsPath()
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return err
	}

	data, err := json.MarshalIndent(Default(), "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// EnsureAll creates the data directory and settings file.
func EnsureAll() error {
	if err := EnsureDataDir(); err != nil {
		return err
	}
	return EnsureSettings()
}

// Load reads settings.json, filling missing fields from defaults.
// Unknown fields in the file are ignored so older binaries can read
// newer settings.
func Load() (*Config, error) {
	data, err := os.ReadFile(SettingsPath())
	if err != nil {
		return nil, err
	}

	cfg := Default()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	cfg.normalize()
	return cfg, nil
}

// normalize clamps nonsensical values back to defaults.
func (c *Config) normalize() {
	if c.TopicsPerSession <= 0 {
		c.TopicsPerSession = DefaultTopicsPerSession
	}
	if c.MaxDepth <= 0 {
		c.MaxDepth = DefaultMaxDepth
	}
	if c.RecentScoreCap <= 0 {
		c.RecentScoreCap = DefaultRecentScoreCap
	}
	if c.AnswerTimeoutMinutes <= 0 {
		c.AnswerTimeoutMinutes = DefaultAnswerTimeoutMin
	}
	if c.MaxConns <= 0 {
		c.MaxConns = DefaultMaxConns
	}
	if c.ForgettingHalfLifeDays <= 0 {
		c.ForgettingHalfLifeDays = DefaultForgettingHalfLifeDays
	}
	if c.StarvationPerDay < 0 {
		c.StarvationPerDay = DefaultStarvationPerDay
	}
}
