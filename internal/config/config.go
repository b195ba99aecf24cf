package config

import (
	"errors"
	"fmt"
	"io/fs"
	"mwdb/pkg/api"
	"mwdb/pkg/storage/postgres"
	"os"
	"path/filepath"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"gopkg.in/yaml.v3"
)

const (
	// FileName is the name of the configuration file in the home directory.
	FileName = ".mwdb.yml"
	// MarkerFileName is the name of the default listener marker file in the
	// home directory.
	MarkerFileName = ".mwdb-listener.yml"

	fileMode = 0o600
	dirMode  = 0o700
)

// Config represents the CLI configuration. It is read from a YAML file and
// MWDB_* environment variables, the latter taking precedence.
//
// Every boolean defaults to false: cleanenv applies env-default to zero
// values, so a true default could not be turned off in the file.
type Config struct {
	// Environment selects the logger flavour (development, production)
	Environment string `env:"MWDB_ENVIRONMENT" env-default:"development" yaml:"environment"`

	// API contains the MWDB server and authentication settings
	API struct {
		// URL is the MWDB REST API root
		URL string `env:"MWDB_API_URL" env-default:"https://mwdb.cert.pl/api/" yaml:"url"`
		// Key is a long-lived API key, used instead of username and password
		Key string `env:"MWDB_API_KEY" yaml:"key"`
		// Username for session authentication
		Username string `env:"MWDB_USERNAME" yaml:"username"`
		// Password for session authentication
		Password string `env:"MWDB_PASSWORD" yaml:"password"`
		// Insecure disables TLS certificate verification
		Insecure bool `env:"MWDB_INSECURE" yaml:"insecure"`
		// IgnoreRateLimit fails on 429 responses instead of waiting for Retry-After
		IgnoreRateLimit bool `env:"MWDB_IGNORE_RATE_LIMIT" yaml:"ignoreRateLimit"`
		// RetryOnDowntime retries requests failing with a connection error or 502/504
		RetryOnDowntime bool `env:"MWDB_RETRY_ON_DOWNTIME" yaml:"retryOnDowntime"`
		// SkipPostRetries disables downtime retries of POST requests
		SkipPostRetries bool `env:"MWDB_SKIP_POST_RETRIES" yaml:"skipPostRetries"`
		// MaxDowntimeRetries limits the number of downtime retries
		MaxDowntimeRetries int `env:"MWDB_MAX_DOWNTIME_RETRIES" env-default:"5" yaml:"maxDowntimeRetries"`
		// DowntimeTimeout is the first pause between downtime retries
		DowntimeTimeout time.Duration `env:"MWDB_DOWNTIME_TIMEOUT" env-default:"10s" yaml:"downtimeTimeout"`
		// RequestsPerSecond throttles outgoing requests, 0 disables throttling
		RequestsPerSecond float64 `env:"MWDB_REQUESTS_PER_SECOND" env-default:"0" yaml:"requestsPerSecond"`
		// Timeout bounds a single HTTP round trip
		Timeout time.Duration `env:"MWDB_TIMEOUT" env-default:"2m" yaml:"timeout"`
	} `yaml:"api"`

	// Listener contains the defaults of the listen command
	Listener struct {
		// Interval is the pause between polls when nothing new was found
		Interval time.Duration `env:"MWDB_LISTENER_INTERVAL" env-default:"15s" yaml:"interval"`
		// PageSize is the number of objects requested per poll, 0 uses the server default
		PageSize int `env:"MWDB_LISTENER_PAGE_SIZE" env-default:"0" yaml:"pageSize"`
		// MarkerFile keeps the last seen object per listened type
		MarkerFile string `env:"MWDB_LISTENER_MARKER_FILE" yaml:"markerFile"`
		// MetricsAddr exposes Prometheus metrics on this address when set
		MetricsAddr string `env:"MWDB_LISTENER_METRICS_ADDR" yaml:"metricsAddr"`
		// Enqueue hands every delivered object to the mirror workers; needs Database.URL
		Enqueue bool `env:"MWDB_LISTENER_ENQUEUE" yaml:"enqueue"`
	} `yaml:"listener"`

	// Database keeps markers and the job queue in PostgreSQL when URL is set
	Database struct {
		// URL is a postgres:// connection URL
		URL string `env:"MWDB_DATABASE_URL" yaml:"url"`
		// MaxOpenConnections is the maximum number of open connections
		MaxOpenConnections int `env:"MWDB_DATABASE_MAX_OPEN_CONNECTIONS" env-default:"5" yaml:"maxOpenConnections"`
		// ConnMaxIdleTime closes connections idle for longer
		ConnMaxIdleTime time.Duration `env:"MWDB_DATABASE_CONN_MAX_IDLE_TIME" env-default:"5m" yaml:"connMaxIdleTime"`
	} `yaml:"database"`

	// Worker contains the defaults of the work command
	Worker struct {
		// Dir is where mirrored objects are stored
		Dir string `env:"MWDB_WORKER_DIR" yaml:"dir"`
		// Concurrency is the number of objects mirrored in parallel
		Concurrency int `env:"MWDB_WORKER_CONCURRENCY" env-default:"4" yaml:"concurrency"`
		// MetricsAddr exposes Prometheus metrics on this address when set
		MetricsAddr string `env:"MWDB_WORKER_METRICS_ADDR" yaml:"metricsAddr"`
	} `yaml:"worker"`

	// Output contains the defaults of the formatters
	Output struct {
		// Format is one of tabular, short, json
		Format string `env:"MWDB_FORMAT" env-default:"tabular" yaml:"format"`
		// NoColor disables ANSI styling
		NoColor bool `env:"MWDB_NO_COLOR" yaml:"noColor"`
		// NoHuman prints raw sizes and timestamps
		NoHuman bool `env:"MWDB_NO_HUMAN" yaml:"noHuman"`
	} `yaml:"output"`
}

// DefaultPath returns the configuration file in the user's home directory.
func DefaultPath() string {
	return homeFile(FileName)
}

// DefaultMarkerPath returns the listener marker file in the user's home directory.
func DefaultMarkerPath() string {
	return homeFile(MarkerFileName)
}

func homeFile(name string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		return name
	}

	return filepath.Join(home, name)
}

// Load receives the path for yaml config file and returns a filled Config
// struct. A missing file is not an error: the configuration then comes from
// the environment and defaults only.
func Load(configPath string) (*Config, error) {
	var cfg Config

	_, err := os.Stat(configPath)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		err = cleanenv.ReadEnv(&cfg)
	case err == nil:
		err = cleanenv.ReadConfig(configPath, &cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("could not read config: %w", err)
	}

	return &cfg, nil
}

// APIOptions maps the configuration onto API client options.
func (c *Config) APIOptions() api.Options {
	opts := api.DefaultOptions()
	opts.APIURL = c.API.URL
	opts.APIKey = c.API.Key
	opts.Username = c.API.Username
	opts.Password = c.API.Password
	opts.Insecure = c.API.Insecure
	opts.ObeyRateLimiter = !c.API.IgnoreRateLimit
	opts.RetryOnDowntime = c.API.RetryOnDowntime
	opts.RetryIdempotent = !c.API.SkipPostRetries
	opts.MaxDowntimeRetries = c.API.MaxDowntimeRetries
	opts.DowntimeTimeout = c.API.DowntimeTimeout
	opts.RequestsPerSecond = c.API.RequestsPerSecond
	opts.Timeout = c.API.Timeout

	return opts
}

// PostgresOptions maps the database section onto connection options.
func (c *Config) PostgresOptions() postgres.Options {
	return postgres.Options{
		URL:                c.Database.URL,
		MaxOpenConnections: c.Database.MaxOpenConnections,
		ConnMaxIdleTime:    c.Database.ConnMaxIdleTime,
	}
}

// Credentials are the authentication settings persisted by the login command.
// Either Key or Username with Password is set.
type Credentials struct {
	Key      string
	Username string
	Password string
}

// StoreCredentials writes credentials into the api section of the config file,
// creating it when missing. Other settings in the file are preserved and
// credentials stored previously are replaced.
func StoreCredentials(configPath string, creds Credentials) error {
	return update(configPath, func(section map[string]any) {
		clearCredentials(section)
		for k, v := range map[string]string{"key": creds.Key, "username": creds.Username, "password": creds.Password} {
			if v != "" {
				section[k] = v
			}
		}
	})
}

// ClearCredentials removes credentials from the config file. A missing file
// is left missing.
func ClearCredentials(configPath string) error {
	if _, err := os.Stat(configPath); errors.Is(err, fs.ErrNotExist) {
		return nil
	}

	return update(configPath, clearCredentials)
}

func clearCredentials(section map[string]any) {
	delete(section, "key")
	delete(section, "username")
	delete(section, "password")
}

// update rewrites the api section of the config file. The file is decoded
// into plain maps so that unknown keys survive and neither env overrides nor
// defaults leak into it.
func update(configPath string, fn func(section map[string]any)) error {
	doc := map[string]any{}

	b, err := os.ReadFile(configPath)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return fmt.Errorf("could not read config: %w", err)
	default:
		if err := yaml.Unmarshal(b, &doc); err != nil {
			return fmt.Errorf("could not parse config: %w", err)
		}
		if doc == nil {
			doc = map[string]any{}
		}
	}

	section, _ := doc["api"].(map[string]any)
	if section == nil {
		section = map[string]any{}
	}
	fn(section)
	doc["api"] = section
	if len(section) == 0 {
		delete(doc, "api")
	}

	out, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("could not encode config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(configPath), dirMode); err != nil {
		return fmt.Errorf("could not create config directory: %w", err)
	}
	if err := os.WriteFile(configPath, out, fileMode); err != nil {
		return fmt.Errorf("could not write config: %w", err)
	}
	// WriteFile keeps the mode of an existing file.
	if err := os.Chmod(configPath, fileMode); err != nil {
		return fmt.Errorf("could not restrict config permissions: %w", err)
	}

	return nil
}
