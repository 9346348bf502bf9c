// Package config binds environment variables and an optional config file
// to the runtime's tunables, per SPEC_FULL.md's "Configuration" ambient
// stack section, grounded on the teacher's viper-based config loading
// (cmd/cobra_cli.go). The agent-type table is a separate TOML document
// (internal/agenttypes), deliberately kept off viper per spec §9's framing
// of AGENT_TYPES as its own config table.
package config

import (
	"fmt"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config is the runtime's tunable surface.
type Config struct {
	DeepseekAPIKey   string
	DeepseekBaseURL  string
	DeepseekModel    string
	AnthropicBaseURL string
	AnthropicToken   string

	CompactionThreshold int
	TeammateIdleTimeout int // seconds
	TeammatePollInterval int // seconds
	TeammateWorkCap     int

	AgentTypesPath string
	SessionsRoot   string
	OTLPEndpoint   string
}

func defaults(v *viper.Viper) {
	v.SetDefault("compaction_threshold", 50000)
	v.SetDefault("teammate_idle_timeout", 60)
	v.SetDefault("teammate_poll_interval", 5)
	v.SetDefault("teammate_work_cap", 50)
	v.SetDefault("sessions_root", ".sessions")
	v.SetDefault("agent_types_path", "agent_types.toml")
}

// Load binds config from process environment and an optional file at path
// ("cortex.yaml" or "cortex.toml"; empty means env-only).
func Load(path string) (*Config, error) {
	v := viper.New()
	defaults(v)

	v.SetEnvPrefix("")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	for _, key := range []string{
		"deepseek_api_key", "deepseek_base_url", "deepseek_model",
		"anthropic_base_url", "anthropic_auth_token",
	} {
		_ = v.BindEnv(key)
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	return &Config{
		DeepseekAPIKey:        v.GetString("deepseek_api_key"),
		DeepseekBaseURL:       v.GetString("deepseek_base_url"),
		DeepseekModel:         v.GetString("deepseek_model"),
		AnthropicBaseURL:      v.GetString("anthropic_base_url"),
		AnthropicToken:        v.GetString("anthropic_auth_token"),
		CompactionThreshold:   v.GetInt("compaction_threshold"),
		TeammateIdleTimeout:   v.GetInt("teammate_idle_timeout"),
		TeammatePollInterval:  v.GetInt("teammate_poll_interval"),
		TeammateWorkCap:       v.GetInt("teammate_work_cap"),
		AgentTypesPath:        v.GetString("agent_types_path"),
		SessionsRoot:          v.GetString("sessions_root"),
		OTLPEndpoint:          v.GetString("otlp_endpoint"),
	}, nil
}

// Dump renders the resolved config as YAML, grounded on the teacher's
// swe_bench/config.go Marshal helper, for the `cortex config show`
// diagnostic command — never the config file format itself, which stays
// generic via viper.
func (c *Config) Dump() ([]byte, error) {
	return yaml.Marshal(c)
}

// Watcher hot-reloads a config file, calling onChange with the freshly
// parsed Config whenever the file is rewritten, matching the teacher's
// preference for fsnotify-driven reload over polling.
type Watcher struct {
	w *fsnotify.Watcher
}

// WatchFile starts watching path for changes, invoking onChange on every
// write event. Callers should defer Close.
func WatchFile(path string, onChange func(*Config)) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("new fsnotify watcher: %w", err)
	}
	if err := fw.Add(path); err != nil {
		fw.Close()
		return nil, fmt.Errorf("watch %s: %w", path, err)
	}
	go func() {
		for event := range fw.Events {
			if event.Op&fsnotify.Write == 0 {
				continue
			}
			if cfg, err := Load(path); err == nil {
				onChange(cfg)
			}
		}
	}()
	return &Watcher{w: fw}, nil
}

// Close stops the underlying fsnotify watcher.
func (w *Watcher) Close() error { return w.w.Close() }
