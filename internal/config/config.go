package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
	log "github.com/sirupsen/logrus"
	yamlv3 "gopkg.in/yaml.v3"
)

// Strategy names accepted by Fetch.Strategy.
const (
	StrategyJSF  = "jsf"
	StrategyJSON = "json"
)

// Portal holds everything needed to open an authenticated session.
type Portal struct {
	Username string `koanf:"username" yaml:"username"`
	Password string `koanf:"password" yaml:"password"`
	LoginURL string `koanf:"login_url" yaml:"login_url"`

	// InsecureSkipVerify disables TLS certificate validation. Some ENT
	// deployments serve a certificate the system store does not trust;
	// this must be an explicit opt-in, never a default.
	InsecureSkipVerify bool `koanf:"insecure_skip_verify" yaml:"insecure_skip_verify"`
}

// Fetch selects and parameterizes the timetable fetch strategy.
type Fetch struct {
	// Strategy is "jsf" or "json". When empty it is derived from which
	// URL is set (planning URL wins).
	Strategy string `koanf:"strategy" yaml:"strategy"`

	// PlanningURL is the JSF planning page (jsf strategy).
	PlanningURL string `koanf:"planning_url" yaml:"planning_url"`
	// EventsURL is the direct JSON endpoint (json strategy).
	EventsURL string `koanf:"events_url" yaml:"events_url"`

	// FormSource and WidgetID identify the schedule widget inside the JSF
	// page. The defaults match the exchange captured from the browser but
	// differ between portal deployments.
	FormSource string `koanf:"form_source" yaml:"form_source"`
	WidgetID   string `koanf:"widget_id" yaml:"widget_id"`
}

// Calendar controls the produced iCalendar file.
type Calendar struct {
	// Timezone is the IANA zone all event times are normalized to.
	Timezone string `koanf:"timezone" yaml:"timezone"`
	ProdID   string `koanf:"prodid" yaml:"prodid"`
}

// Output locates the written calendar file.
type Output struct {
	Path string `koanf:"path" yaml:"path"`
}

// Serve configures the optional long-running mode.
type Serve struct {
	Listen string `koanf:"listen" yaml:"listen"`
	// Refresh is a cron expression for periodic re-sync in serve mode.
	Refresh string `koanf:"refresh" yaml:"refresh"`
}

// Config is the top-level application configuration.
type Config struct {
	Portal   Portal   `koanf:"portal" yaml:"portal"`
	Fetch    Fetch    `koanf:"fetch" yaml:"fetch"`
	Calendar Calendar `koanf:"calendar" yaml:"calendar"`
	Output   Output   `koanf:"output" yaml:"output"`
	Serve    Serve    `koanf:"serve" yaml:"serve"`
}

// Defaults returns the built-in configuration, before file and env layers.
func Defaults() Config {
	return Config{
		Fetch: Fetch{
			FormSource: "form:j_idt117",
			WidgetID:   "webscolaapp.Planning_9156244072397193466",
		},
		Calendar: Calendar{
			Timezone: "Europe/Paris",
			ProdID:   "-//EDT Sync//github.com//",
		},
		Output: Output{
			Path: filepath.Join("docs", "edt.ics"),
		},
		Serve: Serve{
			Listen:  "127.0.0.1:8080",
			Refresh: "0 */6 * * *",
		},
	}
}

// envKeys maps the bare environment variable names the original deployment
// used onto config keys. Anything not listed here is ignored so the process
// environment does not leak into the config tree.
var envKeys = map[string]string{
	"USERNAME":             "portal.username",
	"PASSWORD":             "portal.password",
	"LOGIN_URL":            "portal.login_url",
	"INSECURE_SKIP_VERIFY": "portal.insecure_skip_verify",
	"ENT_EVENTS_URL":       "fetch.planning_url",
	"EVENTS_URL":           "fetch.events_url",
	"FETCH_STRATEGY":       "fetch.strategy",
	"TIMEZONE":             "calendar.timezone",
	"OUTPUT_PATH":          "output.path",
	"LISTEN":               "serve.listen",
	"REFRESH_CRON":         "serve.refresh",
}

// Load builds the effective configuration: struct defaults, then the YAML
// file at path (missing file is fine), then environment variables.
func Load(path string) (Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Defaults(), "koanf"), nil); err != nil {
		return Config{}, fmt.Errorf("loading defaults: %w", err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			if os.IsNotExist(err) {
				log.Debugf("no config file at %s, using defaults and environment", path)
			} else {
				return Config{}, fmt.Errorf("loading config file %s: %w", path, err)
			}
		} else {
			log.Infof("loaded configuration from %s", path)
		}
	}

	err := k.Load(env.Provider(".", env.Opt{
		TransformFunc: func(key, value string) (string, any) {
			mapped, ok := envKeys[key]
			if !ok {
				return "", nil
			}
			return mapped, value
		},
	}), nil)
	if err != nil {
		return Config{}, fmt.Errorf("loading environment: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshaling config: %w", err)
	}
	cfg.Normalize()

	return cfg, nil
}

// Normalize fills zero values so partially-filled configs behave, and derives
// the fetch strategy when it was left implicit.
func (c *Config) Normalize() {
	def := Defaults()
	if c.Fetch.FormSource == "" {
		c.Fetch.FormSource = def.Fetch.FormSource
	}
	if c.Fetch.WidgetID == "" {
		c.Fetch.WidgetID = def.Fetch.WidgetID
	}
	if c.Calendar.Timezone == "" {
		c.Calendar.Timezone = def.Calendar.Timezone
	}
	if c.Calendar.ProdID == "" {
		c.Calendar.ProdID = def.Calendar.ProdID
	}
	if c.Output.Path == "" {
		c.Output.Path = def.Output.Path
	}
	if c.Serve.Listen == "" {
		c.Serve.Listen = def.Serve.Listen
	}
	if c.Serve.Refresh == "" {
		c.Serve.Refresh = def.Serve.Refresh
	}
	if c.Fetch.Strategy == "" {
		switch {
		case c.Fetch.PlanningURL != "":
			c.Fetch.Strategy = StrategyJSF
		case c.Fetch.EventsURL != "":
			c.Fetch.Strategy = StrategyJSON
		}
	}
}

// Validate checks everything required before the first network call.
func (c *Config) Validate() error {
	if c.Portal.Username == "" || c.Portal.Password == "" {
		return errors.New("USERNAME and PASSWORD must be set")
	}
	if c.Portal.LoginURL == "" {
		return errors.New("LOGIN_URL must be set")
	}
	switch c.Fetch.Strategy {
	case StrategyJSF:
		if c.Fetch.PlanningURL == "" {
			return errors.New("ENT_EVENTS_URL (planning URL) must be set for the jsf strategy")
		}
	case StrategyJSON:
		if c.Fetch.EventsURL == "" {
			return errors.New("EVENTS_URL must be set for the json strategy")
		}
	case "":
		return errors.New("no fetch strategy: set ENT_EVENTS_URL or EVENTS_URL")
	default:
		return fmt.Errorf("unknown fetch strategy %q", c.Fetch.Strategy)
	}
	return nil
}

// Save writes cfg as YAML to path, creating the parent directory. The write
// is atomic (temp file + rename) and the file ends up 0600 since it carries
// credentials.
func Save(path string, cfg Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yamlv3.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".edtsync-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
