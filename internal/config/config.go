// Package config loads the application configuration from nightcrawler.yml
// and the environment.
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gotify/configor"
	"github.com/pkg/errors"

	"github.com/jonathan/nightcrawler/internal/page"
)

// DefaultFile is the configuration file looked up in the working directory.
const DefaultFile = "nightcrawler.yml"

// Config is the application configuration. Every field has a default, so a
// missing file is not an error.
type Config struct {
	Server struct {
		Host       string `yaml:"host" default:"127.0.0.1" env:"NIGHTCRAWLER_HOST"`
		Port       int    `yaml:"port" default:"8787" env:"NIGHTCRAWLER_PORT" validate:"min=1,max=65535"`
		CORSOrigin string `yaml:"corsOrigin" env:"NIGHTCRAWLER_CORS_ORIGIN"`
	} `yaml:"server"`
	Storage struct {
		Driver  string `yaml:"driver" default:"file" env:"NIGHTCRAWLER_STORAGE" validate:"oneof=file sqlite postgres"`
		DSN     string `yaml:"dsn" env:"NIGHTCRAWLER_STORAGE_DSN" validate:"required_if=Driver postgres"`
		Keyring *bool  `yaml:"keyring" default:"false" env:"NIGHTCRAWLER_KEYRING"`
	} `yaml:"storage"`
	LLM struct {
		BaseURL        string `yaml:"baseURL" env:"NIGHTCRAWLER_OPENAI_BASE_URL" validate:"omitempty,url"`
		TimeoutSeconds int    `yaml:"timeoutSeconds" env:"NIGHTCRAWLER_LLM_TIMEOUT" validate:"min=0"`
	} `yaml:"llm"`
	Optimizer struct {
		BatchDelayMS int `yaml:"batchDelayMs" default:"200" env:"NIGHTCRAWLER_BATCH_DELAY_MS" validate:"min=0"`
	} `yaml:"optimizer"`
	Browser struct {
		Headless       *bool  `yaml:"headless" default:"false" env:"NIGHTCRAWLER_HEADLESS"`
		StartURL       string `yaml:"startURL" default:"https://www.linkedin.com/jobs/" env:"NIGHTCRAWLER_START_URL" validate:"url"`
		UserDataDir    string `yaml:"userDataDir" env:"NIGHTCRAWLER_CHROME_PROFILE"`
		ExecPath       string `yaml:"execPath" env:"NIGHTCRAWLER_CHROME_PATH"`
		TimeoutSeconds int    `yaml:"timeoutSeconds" default:"30" env:"NIGHTCRAWLER_BROWSER_TIMEOUT" validate:"min=1"`
	} `yaml:"browser"`
	Timings struct {
		SettleMS          int `yaml:"settleMs" default:"1000" validate:"min=0"`
		NavigationDelayMS int `yaml:"navigationDelayMs" default:"1000" validate:"min=0"`
		InitialQuietMS    int `yaml:"initialQuietMs" default:"1500" validate:"min=0"`
		NavigationQuietMS int `yaml:"navigationQuietMs" default:"1000" validate:"min=0"`
		PollIntervalMS    int `yaml:"pollIntervalMs" default:"1000" validate:"min=1"`
	} `yaml:"timings"`
	Log struct {
		Level string `yaml:"level" default:"info" env:"NIGHTCRAWLER_LOG_LEVEL" validate:"oneof=trace debug info warn warning error"`
		JSON  *bool  `yaml:"json" default:"false" env:"NIGHTCRAWLER_LOG_JSON"`
	} `yaml:"log"`
}

// Load reads the given files, falling back to defaults and environment
// variables, and validates the result.
func Load(files ...string) (*Config, error) {
	conf := new(Config)
	if err := configor.New(&configor.Config{}).Load(conf, files...); err != nil {
		return nil, errors.Wrap(err, "failed to load configuration")
	}
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	return conf, nil
}

// Validate checks value ranges and enumerations.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return errors.Wrap(err, "config error")
	}
	return nil
}

// PageTimings converts the millisecond settings into watcher timings.
func (c *Config) PageTimings() page.Timings {
	return page.Timings{
		Settle:          ms(c.Timings.SettleMS),
		NavigationDelay: ms(c.Timings.NavigationDelayMS),
		InitialQuiet:    ms(c.Timings.InitialQuietMS),
		NavigationQuiet: ms(c.Timings.NavigationQuietMS),
		PollInterval:    ms(c.Timings.PollIntervalMS),
	}
}

// BatchDelay is the pause between batch optimization calls.
func (c *Config) BatchDelay() time.Duration {
	return ms(c.Optimizer.BatchDelayMS)
}

// LLMTimeout is the HTTP client timeout for completion calls. Zero means none.
func (c *Config) LLMTimeout() time.Duration {
	return time.Duration(c.LLM.TimeoutSeconds) * time.Second
}

// BrowserTimeout bounds one-shot browser rendering.
func (c *Config) BrowserTimeout() time.Duration {
	return time.Duration(c.Browser.TimeoutSeconds) * time.Second
}

// Headless reports whether Chrome runs without a window.
func (c *Config) Headless() bool {
	return boolValue(c.Browser.Headless)
}

// UseKeyring reports whether the API key is kept in the OS keychain.
func (c *Config) UseKeyring() bool {
	return boolValue(c.Storage.Keyring)
}

// LogJSON reports whether logs are emitted as JSON.
func (c *Config) LogJSON() bool {
	return boolValue(c.Log.JSON)
}

// StorageDSN returns the storage location, defaulting file and sqlite
// storage to the user's config directory.
func (c *Config) StorageDSN() (string, error) {
	if c.Storage.DSN != "" || c.Storage.Driver == "postgres" {
		return c.Storage.DSN, nil
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", errors.Wrap(err, "failed to locate config directory")
	}
	return filepath.Join(dir, "nightcrawler"), nil
}

func ms(n int) time.Duration {
	return time.Duration(n) * time.Millisecond
}

func boolValue(b *bool) bool {
	return b != nil && *b
}
