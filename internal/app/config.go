package app

import (
	"os"
	"path/filepath"
	"time"

	"github.com/creasty/defaults"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// AppConfig application configuration, loaded once at startup and passed
// into the services. Decision logic never reads configuration implicitly.
type AppConfig struct {
	File      string          `yaml:"-"` // config file path, not serialized
	Log       LogConfig       `yaml:"log"`
	Database  DatabaseConfig  `yaml:"database"`
	Policy    PolicyConfig    `yaml:"policy"`
	Borg      BorgConfig      `yaml:"borg"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
}

// LogConfig logging configuration
type LogConfig struct {
	// Level log level, see zapcore.ParseLevel
	Level string `yaml:"level" default:"info"`
	// File log file path, empty logs to stderr only
	File string `yaml:"file" default:"storage/logs/safe-backup.log"`
	// Production enables JSON output
	Production bool `yaml:"production"`
}

// DatabaseConfig EntropyWatcher database configuration
type DatabaseConfig struct {
	// Type database type, mysql or sqlite
	Type string `yaml:"type" default:"mysql"`
	// Path sqlite database file path
	Path string `yaml:"path" default:"storage/database/entropywatcher.sqlite3"`
	// UserName user name
	UserName string `yaml:"username" default:"entropyuser"`
	// Password password
	Password string `yaml:"password"`
	// Host host:port
	Host string `yaml:"host" default:"localhost:3306"`
	// Name database name
	Name string `yaml:"name" default:"entropywatcher"`
	// TablePrefix table prefix
	TablePrefix string `yaml:"table-prefix"`
	// AutoMigrate migrate the backup_runs table on connect
	AutoMigrate bool `yaml:"auto-migrate"`
	// Charset connection charset
	Charset string `yaml:"charset" default:"utf8mb4"`
	// ParseTime parse DATETIME columns into time.Time
	ParseTime bool `yaml:"parse-time" default:"true"`
	// MaxIdleConns max idle connections in the pool
	MaxIdleConns int `yaml:"max-idle-conns" default:"10"`
	// MaxOpenConns max open connections
	MaxOpenConns int `yaml:"max-open-conns" default:"100"`
}

// PolicyConfig backup decision thresholds.
// Thresholds are externally supplied, never hardcoded in the engine.
type PolicyConfig struct {
	// AbortFlaggedThreshold abort when this many files are flagged
	AbortFlaggedThreshold int64 `yaml:"abort-flagged-threshold" default:"5"`
	// AbortAv24hThreshold abort when this many AV events occurred in 24h
	AbortAv24hThreshold int64 `yaml:"abort-av24h-threshold" default:"5"`
	// PartialOnMissing missing files downgrade a full run to partial
	PartialOnMissing bool `yaml:"partial-on-missing" default:"true"`
	// MaxAgeMin maximum acceptable scan age in minutes
	MaxAgeMin int `yaml:"max-age-min" default:"30"`
}

// BorgConfig borg invocation defaults, overridable per run via flags.
type BorgConfig struct {
	// Repo borg repository location, carried in BORG_REPO
	Repo string `yaml:"repo"`
	// Passphrase carried in BORG_PASSPHRASE if set
	Passphrase string `yaml:"passphrase"`
	// Compression borg compression algorithm
	Compression string `yaml:"compression" default:"lz4"`
	// ExcludeFile where the generated exclude set is written
	ExcludeFile string `yaml:"exclude-file" default:"storage/excludes_borg.txt"`
	// ArchiveTemplate archive name template, {source} and {now} are expanded
	ArchiveTemplate string `yaml:"archive-template" default:"{source}-{now}"`
	// ExtraArgs additional borg arguments, e.g. --one-file-system
	ExtraArgs []string `yaml:"extra-args"`
}

// SchedulerConfig freshness/cooldown gate configuration.
type SchedulerConfig struct {
	// FreshnessSec max age of the latest scan summary to still trigger a run
	FreshnessSec int `yaml:"freshness-sec" default:"600"`
	// CooldownSec minimum spacing between triggered runs per source
	CooldownSec int `yaml:"cooldown-sec" default:"1800"`
	// StateFile persisted scheduler state, written via atomic rename
	StateFile string `yaml:"state-file" default:"storage/state/safe_backup_state.json"`
	// Cron schedule for watch mode
	Cron string `yaml:"cron" default:"@every 5m"`
}

// Freshness returns the freshness window as a duration.
func (c SchedulerConfig) Freshness() time.Duration {
	return time.Duration(c.FreshnessSec) * time.Second
}

// Cooldown returns the cooldown window as a duration.
func (c SchedulerConfig) Cooldown() time.Duration {
	return time.Duration(c.CooldownSec) * time.Second
}

// MaxAge returns the maximum acceptable scan age as a duration.
func (c PolicyConfig) MaxAge() time.Duration {
	return time.Duration(c.MaxAgeMin) * time.Minute
}

// LoadConfig loads configuration from a yaml file.
// Defaults are applied before unmarshal so that explicit zero values
// (e.g. partial-on-missing: false) survive.
func LoadConfig(f string) (*AppConfig, string, error) {
	realpath, err := filepath.Abs(f)
	if err != nil {
		return nil, "", err
	}
	realpath = filepath.Clean(realpath)

	c := new(AppConfig)
	c.File = realpath

	if err := defaults.Set(c); err != nil {
		return nil, realpath, errors.Wrap(err, "set default config failed")
	}

	file, err := os.ReadFile(realpath)
	if err != nil {
		return nil, realpath, errors.Wrap(err, "read config file failed")
	}

	if err := yaml.Unmarshal(file, c); err != nil {
		return nil, realpath, errors.Wrap(err, "parse config file failed")
	}

	if err := c.Validate(); err != nil {
		return nil, realpath, err
	}

	return c, realpath, nil
}

// Validate rejects configurations the engine cannot act on.
func (c *AppConfig) Validate() error {
	if c.Policy.AbortFlaggedThreshold <= 0 {
		return errors.New("policy.abort-flagged-threshold must be positive")
	}
	if c.Policy.AbortAv24hThreshold <= 0 {
		return errors.New("policy.abort-av24h-threshold must be positive")
	}
	if c.Policy.MaxAgeMin <= 0 {
		return errors.New("policy.max-age-min must be positive")
	}
	if c.Scheduler.FreshnessSec <= 0 {
		return errors.New("scheduler.freshness-sec must be positive")
	}
	if c.Scheduler.CooldownSec < 0 {
		return errors.New("scheduler.cooldown-sec must not be negative")
	}
	switch c.Database.Type {
	case "mysql", "sqlite":
	default:
		return errors.Errorf("unsupported database type %q", c.Database.Type)
	}
	return nil
}

// Save writes the configuration back to its file.
func (c *AppConfig) Save() error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return errors.Wrap(err, "marshal config failed")
	}

	if err := os.WriteFile(c.File, data, 0644); err != nil {
		return errors.Wrap(err, "write config file failed")
	}

	return nil
}
