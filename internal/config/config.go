// Package config loads the sitectl settings from defaults, a YAML file, a
// .env file and SITECTL_* environment variables, in that order.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ghodss/yaml"
	"github.com/joho/godotenv"
	"github.com/sitegrid/sitegrid/internal/util"
)

const (
	OutputColumn   = "column"
	OutputNoHeader = "no-header"
	OutputJson     = "json"
	OutputJsonRaw  = "json-raw"
	OutputYaml     = "yaml"
)

// Outputs lists the accepted values of Config.Output.
var Outputs = []string{OutputColumn, OutputNoHeader, OutputJson, OutputJsonRaw, OutputYaml}

// DefaultServiceURL is optionally overridden at build time using ldflags.
var DefaultServiceURL = "https://api.sitegrid.io"

// Duration is a time.Duration that reads "30s" style strings from YAML.
type Duration time.Duration

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		var n int64
		if err2 := json.Unmarshal(b, &n); err2 != nil {
			return fmt.Errorf("invalid duration %s", string(b))
		}
		*d = Duration(time.Duration(n) * time.Second)
		return nil
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

type Config struct {
	ServiceURL     string   `json:"service_url"`
	TokenFile      string   `json:"token_file"`
	Output         string   `json:"output"`
	Debug          bool     `json:"debug"`
	RequestTimeout Duration `json:"request_timeout"`
	Retries        int      `json:"retries"`
	RetryWait      Duration `json:"retry_wait"`
	RateLimit      float64  `json:"rate_limit"`
	RateBurst      int      `json:"rate_burst"`
	PerPage        int      `json:"per_page"`
	BadgeCap       int      `json:"badge_cap"`
	WatchInterval  Duration `json:"watch_interval"`
	CacheTTL       Duration `json:"cache_ttl"`
	InsecureTLS    bool     `json:"insecure_skip_tls_verify"`
	OIDC           OIDC     `json:"oidc"`

	// path of the file the settings were read from, empty if none.
	source string
}

type OIDC struct {
	Issuer   string `json:"issuer"`
	ClientID string `json:"client_id"`
}

func configDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "sitectl")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "sitectl")
}

// DefaultPath is where Load looks when neither a path nor SITECTL_CONFIG is given.
func DefaultPath() string {
	return filepath.Join(configDir(), "config.yaml")
}

func Default() *Config {
	return &Config{
		ServiceURL:     DefaultServiceURL,
		TokenFile:      filepath.Join(configDir(), "token.json"),
		Output:         OutputColumn,
		RequestTimeout: Duration(30 * time.Second),
		Retries:        2,
		RetryWait:      Duration(500 * time.Millisecond),
		PerPage:        20,
		BadgeCap:       99,
		WatchInterval:  Duration(30 * time.Second),
		CacheTTL:       Duration(time.Minute),
		OIDC: OIDC{
			Issuer:   "https://auth.sitegrid.io/realms/sitegrid",
			ClientID: "sitectl",
		},
	}
}

// Source is the file the configuration was read from, if any.
func (c *Config) Source() string {
	return c.source
}

// Load reads the configuration. An explicit path must exist; the default path
// is optional.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		if p, ok := util.LookupEnv("SITECTL_CONFIG"); ok {
			path, explicit = p, true
		} else {
			path = DefaultPath()
		}
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("invalid config file %s: %w", path, err)
		}
		cfg.source = path
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return nil, fmt.Errorf("could not read config file: %w", err)
	}

	_ = godotenv.Load()

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	var err error
	var errs []error
	c.ServiceURL = util.Getenv("SITECTL_SERVICE_URL", c.ServiceURL)
	c.TokenFile = util.Getenv("SITECTL_TOKEN_FILE", c.TokenFile)
	c.Output = util.Getenv("SITECTL_OUTPUT", c.Output)
	c.OIDC.Issuer = util.Getenv("SITECTL_OIDC_ISSUER", c.OIDC.Issuer)
	c.OIDC.ClientID = util.Getenv("SITECTL_OIDC_CLIENT_ID", c.OIDC.ClientID)

	if c.Debug, err = util.GetenvBool("SITECTL_DEBUG", c.Debug); err != nil {
		errs = append(errs, err)
	}
	if c.InsecureTLS, err = util.GetenvBool("SITECTL_INSECURE_SKIP_TLS_VERIFY", c.InsecureTLS); err != nil {
		errs = append(errs, err)
	}
	if c.Retries, err = util.GetenvInt("SITECTL_RETRIES", c.Retries); err != nil {
		errs = append(errs, err)
	}
	if c.RateBurst, err = util.GetenvInt("SITECTL_RATE_BURST", c.RateBurst); err != nil {
		errs = append(errs, err)
	}
	if c.PerPage, err = util.GetenvInt("SITECTL_PER_PAGE", c.PerPage); err != nil {
		errs = append(errs, err)
	}
	if c.BadgeCap, err = util.GetenvInt("SITECTL_BADGE_CAP", c.BadgeCap); err != nil {
		errs = append(errs, err)
	}
	if c.RateLimit, err = util.GetenvFloat("SITECTL_RATE_LIMIT", c.RateLimit); err != nil {
		errs = append(errs, err)
	}

	durations := []struct {
		name  string
		value *Duration
	}{
		{"SITECTL_REQUEST_TIMEOUT", &c.RequestTimeout},
		{"SITECTL_RETRY_WAIT", &c.RetryWait},
		{"SITECTL_WATCH_INTERVAL", &c.WatchInterval},
		{"SITECTL_CACHE_TTL", &c.CacheTTL},
	}
	for _, d := range durations {
		v, err := util.GetenvDuration(d.name, d.value.Std())
		if err != nil {
			errs = append(errs, err)
			continue
		}
		*d.value = Duration(v)
	}
	return errors.Join(errs...)
}

// Validate checks the values that cannot be corrected later by a flag.
func (c *Config) Validate() error {
	var errs []error
	u, err := url.Parse(c.ServiceURL)
	if err != nil {
		errs = append(errs, fmt.Errorf("invalid service url %q: %w", c.ServiceURL, err))
	} else if (u.Scheme != "https" && u.Scheme != "http") || u.Host == "" {
		errs = append(errs, fmt.Errorf("invalid service url %q: an http:// or https:// URL is required", c.ServiceURL))
	}
	if c.OIDC.Issuer != "" {
		if u, err := url.Parse(c.OIDC.Issuer); err != nil || u.Host == "" {
			errs = append(errs, fmt.Errorf("invalid oidc issuer %q", c.OIDC.Issuer))
		}
	}
	if !ValidOutput(c.Output) {
		errs = append(errs, fmt.Errorf("invalid output %q: must be one of %s", c.Output, strings.Join(Outputs, ", ")))
	}
	if c.TokenFile == "" {
		errs = append(errs, errors.New("token file must be set"))
	}
	if c.RequestTimeout < 0 {
		errs = append(errs, errors.New("request timeout must not be negative"))
	}
	if c.Retries < 0 || c.RetryWait < 0 {
		errs = append(errs, errors.New("retries and retry wait must not be negative"))
	}
	if c.RateLimit < 0 || c.RateBurst < 0 {
		errs = append(errs, errors.New("rate limit and burst must not be negative"))
	}
	if c.PerPage < 1 || c.PerPage > 100 {
		errs = append(errs, fmt.Errorf("per page must be between 1 and 100, got %d", c.PerPage))
	}
	if c.BadgeCap < 1 {
		errs = append(errs, fmt.Errorf("badge cap must be positive, got %d", c.BadgeCap))
	}
	if c.WatchInterval.Std() < time.Second {
		errs = append(errs, fmt.Errorf("watch interval must be at least 1s, got %s", c.WatchInterval.Std()))
	}
	return errors.Join(errs...)
}

func ValidOutput(output string) bool {
	for _, o := range Outputs {
		if o == output {
			return true
		}
	}
	return false
}
