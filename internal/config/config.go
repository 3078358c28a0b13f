// Package config manages user preferences stored in
// ~/.config/stackrun/config.toml. Every key can be overridden from the
// environment with the STACKRUN_ prefix (STACKRUN_REGION, ...). Command-line
// flags take precedence over both.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// envPrefix is the prefix for environment overrides.
const envPrefix = "STACKRUN"

// Config holds user preferences from ~/.config/stackrun/config.toml.
// All fields use flat snake_case TOML keys.
type Config struct {
	Region              string `mapstructure:"region"                toml:"region"`
	Profile             string `mapstructure:"profile"               toml:"profile"`
	PollIntervalSeconds int    `mapstructure:"poll_interval_seconds" toml:"poll_interval_seconds"`
	TemplateBucket      string `mapstructure:"template_bucket"       toml:"template_bucket"`
	SweepBuckets        bool   `mapstructure:"sweep_buckets"         toml:"sweep_buckets"`
	Color               bool   `mapstructure:"color"                 toml:"color"`

	// Static credentials are read from the environment only
	// (STACKRUN_ACCESS_KEY_ID, STACKRUN_SECRET_ACCESS_KEY). Values in
	// config.toml are ignored and Save never writes them.
	AccessKeyID     string `mapstructure:"-" toml:"-"`
	SecretAccessKey string `mapstructure:"-" toml:"-"`
}

// PollInterval returns the configured event polling interval.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalSeconds) * time.Second
}

// validator is a function that validates a string value for a config key.
type validator func(value string) error

// validators maps settable config keys to their validation functions.
var validators = map[string]validator{
	"region":                validateRegion,
	"profile":               validateProfile,
	"poll_interval_seconds": validatePollInterval,
	"template_bucket":       validateBucketName,
	"sweep_buckets":         validateBool,
	"color":                 validateBool,
}

// ValidKeys returns the sorted list of valid config key names.
func ValidKeys() []string {
	keys := make([]string, 0, len(validators))
	for k := range validators {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// DefaultConfigDir returns the default config directory path
// (~/.config/stackrun). If STACKRUN_CONFIG_DIR is set, that value is used
// instead.
func DefaultConfigDir() string {
	if dir := os.Getenv("STACKRUN_CONFIG_DIR"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "stackrun")
	}
	return filepath.Join(home, ".config", "stackrun")
}

// Load reads configDir/config.toml, applies environment overrides, and fills
// defaults for missing keys. A missing file is not an error.
func Load(configDir string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()

	v.SetDefault("region", "")
	v.SetDefault("profile", "")
	v.SetDefault("poll_interval_seconds", 4)
	v.SetDefault("template_bucket", "")
	v.SetDefault("sweep_buckets", true)
	v.SetDefault("color", true)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.AccessKeyID, cfg.SecretAccessKey = envCredentials()
	if cfg.PollIntervalSeconds < 1 {
		return nil, fmt.Errorf("poll_interval_seconds must be >= 1 (got %d)", cfg.PollIntervalSeconds)
	}

	return cfg, nil
}

// envCredentials reads the static credentials through a viper instance that
// has no config file, so only the environment can supply them.
func envCredentials() (accessKeyID, secretAccessKey string) {
	env := viper.New()
	env.SetEnvPrefix(envPrefix)
	_ = env.BindEnv("access_key_id")
	_ = env.BindEnv("secret_access_key")
	return env.GetString("access_key_id"), env.GetString("secret_access_key")
}

// Save writes the settable keys to configDir/config.toml, creating the
// directory if it does not exist. Credentials are never written.
func Save(cfg *Config, configDir string) error {
	if err := os.MkdirAll(configDir, 0o700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	v := viper.New()
	v.Set("region", cfg.Region)
	v.Set("profile", cfg.Profile)
	v.Set("poll_interval_seconds", cfg.PollIntervalSeconds)
	v.Set("template_bucket", cfg.TemplateBucket)
	v.Set("sweep_buckets", cfg.SweepBuckets)
	v.Set("color", cfg.Color)

	path := filepath.Join(configDir, "config.toml")
	if err := v.WriteConfigAs(path); err != nil {
		return err
	}
	return os.Chmod(path, 0o600)
}

// Get returns the string form of a settable key.
func (c *Config) Get(key string) (string, error) {
	switch key {
	case "region":
		return c.Region, nil
	case "profile":
		return c.Profile, nil
	case "poll_interval_seconds":
		return strconv.Itoa(c.PollIntervalSeconds), nil
	case "template_bucket":
		return c.TemplateBucket, nil
	case "sweep_buckets":
		return strconv.FormatBool(c.SweepBuckets), nil
	case "color":
		return strconv.FormatBool(c.Color), nil
	}
	return "", fmt.Errorf("unknown config key %q; valid keys: %s", key, strings.Join(ValidKeys(), ", "))
}

// Set validates and applies a single key-value pair to the config.
// Returns an error if the key is unknown or the value fails validation.
func (c *Config) Set(key, value string) error {
	validate, ok := validators[key]
	if !ok {
		return fmt.Errorf("unknown config key %q; valid keys: %s", key, strings.Join(ValidKeys(), ", "))
	}

	if err := validate(value); err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}

	switch key {
	case "region":
		c.Region = value
	case "profile":
		c.Profile = value
	case "poll_interval_seconds":
		n, _ := strconv.Atoi(value) // already validated
		c.PollIntervalSeconds = n
	case "template_bucket":
		c.TemplateBucket = value
	case "sweep_buckets":
		c.SweepBuckets = value == "true"
	case "color":
		c.Color = value == "true"
	}

	return nil
}

// regionPattern matches valid AWS region formats like us-west-2, eu-central-1.
var regionPattern = regexp.MustCompile(`^[a-z]{2}(-gov)?-[a-z]+-\d+$`)

// bucketPattern is the S3 bucket naming rule for new buckets.
var bucketPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9.-]{1,61}[a-z0-9]$`)

func validateRegion(value string) error {
	if value == "" {
		return nil // empty clears the region
	}
	if !regionPattern.MatchString(value) {
		return fmt.Errorf("%q does not match AWS region format (e.g., us-west-2)", value)
	}
	return nil
}

func validateProfile(value string) error {
	if strings.ContainsAny(value, " \t\n") {
		return fmt.Errorf("%q must not contain whitespace", value)
	}
	return nil
}

func validatePollInterval(value string) error {
	n, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("%q is not a valid integer", value)
	}
	if n < 1 {
		return fmt.Errorf("must be >= 1 (got %d)", n)
	}
	if n > 60 {
		return fmt.Errorf("must be <= 60 (got %d)", n)
	}
	return nil
}

func validateBucketName(value string) error {
	if value == "" {
		return nil // empty falls back to the derived default
	}
	if !bucketPattern.MatchString(value) || strings.Contains(value, "..") {
		return fmt.Errorf("%q is not a valid S3 bucket name", value)
	}
	return nil
}

func validateBool(value string) error {
	if value != "true" && value != "false" {
		return fmt.Errorf("%q is not a valid boolean (use true or false)", value)
	}
	return nil
}
