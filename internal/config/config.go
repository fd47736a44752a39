package config

import (
	"fmt"
	"strings"
	"time"

	apperrors "brutalist/pkg/errors"
	"brutalist/pkg/logger"
	"brutalist/pkg/runner"

	"github.com/spf13/viper"
)

const (
	DefaultConfigName = "brutalist"
	EnvPrefix         = "BRUTALIST"
)

// DefaultTopics are the topics brutalist_report.py accepts for --topic.
var DefaultTopics = []string{
	"tech",
	"news",
	"business",
	"science",
	"gaming",
	"culture",
	"politics",
	"sports",
}

type Config struct {
	LogLevel string         `mapstructure:"log_level"`
	Topics   []string       `mapstructure:"topics"`
	Runner   RunnerConfig   `mapstructure:"runner"`
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Archive  ArchiveConfig  `mapstructure:"archive"`
	Queue    QueueConfig    `mapstructure:"queue"`
}

type RunnerConfig struct {
	Interpreter string        `mapstructure:"interpreter"`
	Script      string        `mapstructure:"script"`
	Dir         string        `mapstructure:"dir"`
	Timeout     time.Duration `mapstructure:"timeout"`
	StderrLimit int           `mapstructure:"stderr_limit"`
	Mode        string        `mapstructure:"mode"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
}

type ArchiveConfig struct {
	Dir   string `mapstructure:"dir"`
	Watch bool   `mapstructure:"watch"`
}

type QueueConfig struct {
	MaxConcurrent int `mapstructure:"max_concurrent"`
}

// Options controls where Load looks for the configuration file.
type Options struct {
	// File is an explicit config file; when set it must exist.
	File string
	// Path is an extra directory searched before the defaults.
	Path string
}

// DSN returns the postgres connection string
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		d.Host, d.Port, d.User, d.Password, d.Name)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "info")
	v.SetDefault("topics", DefaultTopics)

	v.SetDefault("runner.interpreter", runner.DefaultInterpreter())
	v.SetDefault("runner.script", runner.ScriptName)
	v.SetDefault("runner.dir", "")
	v.SetDefault("runner.timeout", time.Duration(0))
	v.SetDefault("runner.stderr_limit", runner.DefaultStderrLimit)
	v.SetDefault("runner.mode", runner.ModeStreaming.String())

	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 8080)

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "brutalist")
	v.SetDefault("database.password", "brutalist")
	v.SetDefault("database.name", "brutalist")

	v.SetDefault("archive.dir", "./reports")
	v.SetDefault("archive.watch", true)

	v.SetDefault("queue.max_concurrent", 1)
}

// Load reads configuration from file, BRUTALIST_* environment variables and
// defaults, in that order of precedence (env wins). A missing config file is
// not an error unless it was named explicitly.
func Load(opts Options) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	configPaths := []string{}
	if opts.Path != "" {
		configPaths = append(configPaths, opts.Path)
	}
	configPaths = append(configPaths, "./config", "/etc/brutalist", "$HOME/.brutalist")

	if opts.File != "" {
		v.SetConfigFile(opts.File)
	} else {
		for _, path := range configPaths {
			v.AddConfigPath(path)
		}
		v.SetConfigName(DefaultConfigName)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))

	// The plain DB_* variables are honored too.
	for key, env := range map[string]string{
		"database.host":     "DB_HOST",
		"database.port":     "DB_PORT",
		"database.user":     "DB_USER",
		"database.password": "DB_PASSWORD",
		"database.name":     "DB_NAME",
	} {
		envKey := EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, envKey, env); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			logger.WithFields(logger.Fields{
				"name":  DefaultConfigName,
				"paths": configPaths,
			}).Debug("No config file found, using defaults")
		} else {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	} else {
		logger.Infof("Loaded config file: %s", v.ConfigFileUsed())
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error decoding config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Default returns the configuration Load would produce with no file and no
// environment overrides.
func Default() *Config {
	v := viper.New()
	setDefaults(v)

	var cfg Config
	_ = v.Unmarshal(&cfg)
	return &cfg
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.Runner.Script) == "" {
		return apperrors.NewConfigError("runner.script", c.Runner.Script, "script path is required")
	}
	if strings.TrimSpace(c.Runner.Interpreter) == "" {
		return apperrors.NewConfigError("runner.interpreter", c.Runner.Interpreter, "interpreter is required")
	}
	if c.Runner.Timeout < 0 {
		return apperrors.NewConfigError("runner.timeout", c.Runner.Timeout, "timeout must not be negative")
	}
	if _, err := runner.ParseMode(c.Runner.Mode); err != nil {
		return apperrors.NewConfigError("runner.mode", c.Runner.Mode, err.Error())
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return apperrors.NewConfigError("server.port", c.Server.Port, "port must be between 1 and 65535")
	}
	if c.Queue.MaxConcurrent < 1 {
		return apperrors.NewConfigError("queue.max_concurrent", c.Queue.MaxConcurrent, "must be at least 1")
	}
	if len(c.Topics) == 0 {
		return apperrors.NewConfigError("topics", c.Topics, "at least one topic must be configured")
	}
	return nil
}

// RunnerOptions translates the runner section into runner options.
func (c *Config) RunnerOptions() []runner.OptFunc {
	mode, _ := runner.ParseMode(c.Runner.Mode)
	return []runner.OptFunc{
		runner.WithInterpreter(c.Runner.Interpreter),
		runner.WithScript(c.Runner.Script),
		runner.WithDir(c.Runner.Dir),
		runner.WithTimeout(c.Runner.Timeout),
		runner.WithStderrLimit(c.Runner.StderrLimit),
		runner.WithMode(mode),
	}
}

// IsValidTopic reports whether topic is one of the configured topics.
func (c *Config) IsValidTopic(topic string) bool {
	for _, t := range c.Topics {
		if t == topic {
			return true
		}
	}
	return false
}

// ValidateTopic returns ErrInvalidTopic when a present topic is unknown.
func (c *Config) ValidateTopic(topic *string) error {
	if topic == nil || c.IsValidTopic(*topic) {
		return nil
	}
	return fmt.Errorf("%w %q, available topics: %s", apperrors.ErrInvalidTopic, *topic, strings.Join(c.Topics, ", "))
}
