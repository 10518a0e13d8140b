package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LogFileName is the name of the rotating log file inside LogConfig.Dir.
const LogFileName = "apply.log"

// Config holds the full application configuration.
type Config struct {
	Retry     RetryConfig     `yaml:"retry" mapstructure:"retry"`
	Tracker   TrackerConfig   `yaml:"tracker" mapstructure:"tracker"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Agent     AgentConfig     `yaml:"agent" mapstructure:"agent"`
	Browser   BrowserConfig   `yaml:"browser" mapstructure:"browser"`
	Profile   ProfileConfig   `yaml:"profile" mapstructure:"profile"`
	Notion    NotionConfig    `yaml:"notion" mapstructure:"notion"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// RetryConfig configures the retry policy around automation attempts.
type RetryConfig struct {
	MaxAttempts       int     `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialDelaySecs  float64 `yaml:"initial_delay_secs" mapstructure:"initial_delay_secs"`
	BackoffMultiplier float64 `yaml:"backoff_multiplier" mapstructure:"backoff_multiplier"`
	MaxDelaySecs      float64 `yaml:"max_delay_secs" mapstructure:"max_delay_secs"`
}

// TrackerConfig configures the application history store.
type TrackerConfig struct {
	HistoryFile       string `yaml:"history_file" mapstructure:"history_file"`
	PreventDuplicates bool   `yaml:"prevent_duplicates" mapstructure:"prevent_duplicates"`
	AutoSave          bool   `yaml:"auto_save" mapstructure:"auto_save"`
	ExportFile        string `yaml:"export_file" mapstructure:"export_file"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key               string `yaml:"key" mapstructure:"key"`
	Model             string `yaml:"model" mapstructure:"model"`
	MaxTokens         int    `yaml:"max_tokens" mapstructure:"max_tokens"`
	RequestsPerMinute int    `yaml:"requests_per_minute" mapstructure:"requests_per_minute"`
}

// AgentConfig bounds a single agent turn.
type AgentConfig struct {
	MaxSteps        int    `yaml:"max_steps" mapstructure:"max_steps"`
	MaxToolErrors   int    `yaml:"max_tool_errors" mapstructure:"max_tool_errors"`
	TurnTimeoutSecs int    `yaml:"turn_timeout_secs" mapstructure:"turn_timeout_secs"`
	Mode            string `yaml:"mode" mapstructure:"mode"`
}

// TurnTimeout returns the per-turn deadline.
func (c AgentConfig) TurnTimeout() time.Duration {
	return time.Duration(c.TurnTimeoutSecs) * time.Second
}

// BrowserConfig describes how to launch the browser MCP server.
type BrowserConfig struct {
	Command             string   `yaml:"command" mapstructure:"command"`
	Args                []string `yaml:"args" mapstructure:"args"`
	PageLoadTimeoutSecs int      `yaml:"page_load_timeout_secs" mapstructure:"page_load_timeout_secs"`
}

// CallTimeout returns the per-tool-call deadline.
func (c BrowserConfig) CallTimeout() time.Duration {
	return time.Duration(c.PageLoadTimeoutSecs) * time.Second
}

// ProfileConfig points at the applicant profile.
type ProfileConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// NotionConfig holds Notion API credentials and the applications database.
type NotionConfig struct {
	Token      string `yaml:"token" mapstructure:"token"`
	DatabaseID string `yaml:"database_id" mapstructure:"database_id"`
}

// ServerConfig configures the dashboard server.
type ServerConfig struct {
	Port        int      `yaml:"port" mapstructure:"port"`
	CORSOrigins []string `yaml:"cors_origins" mapstructure:"cors_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level string `yaml:"level" mapstructure:"level"`
	// ConsoleLevel raises the threshold of the terminal sink so store
	// chatter stays in the log file and out of the chat session.
	ConsoleLevel string `yaml:"console_level" mapstructure:"console_level"`
	Format       string `yaml:"format" mapstructure:"format"`
	Dir          string `yaml:"dir" mapstructure:"dir"`
	MaxSizeMB    int    `yaml:"max_size_mb" mapstructure:"max_size_mb"`
	MaxBackups   int    `yaml:"max_backups" mapstructure:"max_backups"`
}

// Load reads configuration from .env, config.yaml and the environment.
func Load() (*Config, error) {
	// .env only seeds variables that are not already set.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, eris.Wrap(err, "config: read .env")
	}

	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("APPLY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.initial_delay_secs", 1.0)
	v.SetDefault("retry.backoff_multiplier", 2.0)
	v.SetDefault("retry.max_delay_secs", 0.0)
	v.SetDefault("tracker.history_file", "data/applications.json")
	v.SetDefault("tracker.prevent_duplicates", true)
	v.SetDefault("tracker.auto_save", true)
	v.SetDefault("tracker.export_file", "data/applications.csv")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.console_level", "warn")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.dir", "logs")
	v.SetDefault("log.max_size_mb", 10)
	v.SetDefault("log.max_backups", 5)
	v.SetDefault("anthropic.key", "")
	v.SetDefault("anthropic.model", "claude-sonnet-4-5-20250929")
	v.SetDefault("anthropic.max_tokens", 4096)
	v.SetDefault("anthropic.requests_per_minute", 50)
	v.SetDefault("agent.max_steps", 40)
	v.SetDefault("agent.max_tool_errors", 3)
	v.SetDefault("agent.turn_timeout_secs", 600)
	v.SetDefault("agent.mode", "application")
	v.SetDefault("browser.command", "npx")
	v.SetDefault("browser.args", []string{"@browsermcp/mcp@latest"})
	v.SetDefault("browser.page_load_timeout_secs", 30)
	v.SetDefault("profile.path", "profile.yaml")
	v.SetDefault("notion.token", "")
	v.SetDefault("notion.database_id", "")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors_origins", []string{"http://localhost:*", "http://127.0.0.1:*"})

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects retry settings that could not terminate or never back off.
func (c *Config) Validate() error {
	if c.Retry.MaxAttempts < 1 {
		return eris.Errorf("config: retry.max_attempts must be at least 1, got %d", c.Retry.MaxAttempts)
	}
	if c.Retry.BackoffMultiplier <= 1 {
		return eris.Errorf("config: retry.backoff_multiplier must be greater than 1, got %g", c.Retry.BackoffMultiplier)
	}
	if c.Retry.InitialDelaySecs < 0 || c.Retry.MaxDelaySecs < 0 {
		return eris.New("config: retry delays must not be negative")
	}
	switch c.Agent.Mode {
	case "", "application", "navigation":
	default:
		return eris.Errorf("config: unknown agent.mode %q", c.Agent.Mode)
	}
	return nil
}

// consoleOutput is the terminal sink. Stdout belongs to the operator session.
var consoleOutput zapcore.WriteSyncer = os.Stderr

// NewLogger builds a logger that writes to stderr and to a rotating file
// under cfg.Dir. An empty Dir disables the file sink.
func NewLogger(cfg LogConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, eris.Wrap(err, "config: parse log level")
	}
	consoleLevel := level
	if cfg.ConsoleLevel != "" {
		consoleLevel, err = zapcore.ParseLevel(cfg.ConsoleLevel)
		if err != nil {
			return nil, eris.Wrap(err, "config: parse console log level")
		}
		consoleLevel = max(consoleLevel, level)
	}

	var encCfg zapcore.EncoderConfig
	if cfg.Format == "console" {
		encCfg = zap.NewDevelopmentEncoderConfig()
	} else {
		encCfg = zap.NewProductionEncoderConfig()
		encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	}
	newEncoder := func() zapcore.Encoder {
		if cfg.Format == "console" {
			return zapcore.NewConsoleEncoder(encCfg)
		}
		return zapcore.NewJSONEncoder(encCfg)
	}

	cores := []zapcore.Core{
		zapcore.NewCore(newEncoder(), zapcore.Lock(consoleOutput), consoleLevel),
	}

	if cfg.Dir != "" {
		if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
			return nil, eris.Wrap(err, "config: create log dir")
		}
		file := &lumberjack.Logger{
			Filename:   filepath.Join(cfg.Dir, LogFileName),
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
		}
		cores = append(cores, zapcore.NewCore(newEncoder(), zapcore.AddSync(file), level))
	}

	return zap.New(zapcore.NewTee(cores...), zap.AddCaller()), nil
}

// InitLogger builds the logger and installs it as the zap global.
func InitLogger(cfg LogConfig) (*zap.Logger, error) {
	logger, err := NewLogger(cfg)
	if err != nil {
		return nil, err
	}
	zap.ReplaceGlobals(logger)
	return logger, nil
}
