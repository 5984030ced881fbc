package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

// ConfigSuite is a test suite for config operations.
type ConfigSuite struct {
	suite.Suite
	tempDir     string
	origHomeDir string
}

func (s *ConfigSuite) SetupTest() {
	var err error
	s.tempDir, err = os.MkdirTemp("", "config-test-*")
	s.Require().NoError(err)

	// Save and override HOME
	s.origHomeDir = os.Getenv("HOME")
	os.Setenv("HOME", s.tempDir)
}

func (s *ConfigSuite) TearDownTest() {
	os.Setenv("HOME", s.origHomeDir)
	os.RemoveAll(s.tempDir)
}

func TestConfigSuite(t *testing.T) {
	suite.Run(t, new(ConfigSuite))
}

// TestDefault tests default configuration values.
func (s *ConfigSuite) TestDefault() {
	cfg := Default()

	s.Equal(DefaultModel, cfg.Model)
	s.Equal(DefaultTopicsPerSession, cfg.TopicsPerSession)
	s.Equal(DefaultMaxDepth, cfg.MaxDepth)
	s.Equal(DefaultRecentScoreCap, cfg.RecentScoreCap)
	s.Equal(DefaultTokenBudget, cfg.ContentTokenBudget)
	s.Equal(DefaultMaxConns, cfg.MaxConns)
	s.Equal(DefaultForgettingHalfLifeDays, cfg.ForgettingHalfLifeDays)
	s.Equal(DefaultStarvationPerDay, cfg.StarvationPerDay)
	s.Equal(10*time.Minute, cfg.AnswerTimeout())
}

// TestDataDir tests data directory path.
func (s *ConfigSuite) TestDataDir() {
	dir := DataDir()
	s.Contains(dir, ".studycoach")
}

// TestDBPath tests database path.
func (s *ConfigSuite) TestDBPath() {
	path := DBPath()
	s.Contains(path, "studycoach.db")
}

// TestSettingsPath tests settings file path.
func (s *ConfigSuite) TestSettingsPath() {
	path := SettingsPath()
	s.Contains(path, "settings.json")
}

// TestEnsureAll tests full initialization.
func (s *ConfigSuite) TestEnsureAll() {
	err := EnsureAll()
	s.NoError(err)

	info, err := os.Stat(DataDir())
	s.NoError(err)
	s.True(info.IsDir())

	info, err = os.Stat(SettingsPath())
	s.NoError(err)
	s.False(info.IsDir())

	// Second call should not error (file exists)
	s.NoError(EnsureAll())
}

// TestLoad_TableDriven tests configuration loading with various scenarios.
func (s *ConfigSuite) TestLoad_TableDriven() {
	tests := []struct {
		name         string
		settingsJSON string
		wantErr      bool
		wantModel    string
		wantTopics   int
		wantTimeout  time.Duration
	}{
		{
			name:         "empty object falls back to defaults",
			settingsJSON: `{}`,
			wantModel:    DefaultModel,
			wantTopics:   DefaultTopicsPerSession,
			wantTimeout:  10 * time.Minute,
		},
		{
			name:         "custom model",
			settingsJSON: `{"model": "llama-3.1-8b-instant"}`,
			wantModel:    "llama-3.1-8b-instant",
			wantTopics:   DefaultTopicsPerSession,
			wantTimeout:  10 * time.Minute,
		},
		{
			name:         "custom topics and timeout",
			settingsJSON: `{"topics_per_session": 3, "answer_timeout_minutes": 30}`,
			wantModel:    DefaultModel,
			wantTopics:   3,
			wantTimeout:  30 * time.Minute,
		},
		{
			name:         "unknown fields ignored",
			settingsJSON: `{"future_knob": true, "questions_per_quiz": 4, "topics_per_session": 2}`,
			wantModel:    DefaultModel,
			wantTopics:   2,
			wantTimeout:  10 * time.Minute,
		},
		{
			name:         "nonsense values normalized",
			settingsJSON: `{"topics_per_session": -4, "max_depth": 0}`,
			wantModel:    DefaultModel,
			wantTopics:   DefaultTopicsPerSession,
			wantTimeout:  10 * time.Minute,
		},
		{
			name:         "invalid JSON errors",
			settingsJSON: `{invalid}`,
			wantErr:      true,
		},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			s.Require().NoError(EnsureDataDir())
			s.Require().NoError(os.WriteFile(
				filepath.Join(DataDir(), "settings.json"),
				[]byte(tt.settingsJSON),
				0o600,
			))

			cfg, err := Load()
			if tt.wantErr {
				s.Error(err)
				return
			}
			s.Require().NoError(err)
			s.Equal(tt.wantModel, cfg.Model)
			s.Equal(tt.wantTopics, cfg.TopicsPerSession)
			s.Equal(tt.wantTimeout, cfg.AnswerTimeout())
		})
	}
}

// TestLoad_MissingFile tests that a missing settings file is an error
// the caller can fall back from.
func (s *ConfigSuite) TestLoad_MissingFile() {
	_, err := Load()
	s.Error(err)
	s.True(os.IsNotExist(err))
}
