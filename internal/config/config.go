// Package config loads PatentOS settings from an optional YAML file, an
// optional .env file and the process environment, in that order.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	ProviderGemini    = "gemini"
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
)

type LLMConfig struct {
	Provider       string `yaml:"provider"`
	Model          string `yaml:"model"`
	APIKey         string `yaml:"api_key"`
	BaseURL        string `yaml:"base_url"`
	CallTimeoutSec int    `yaml:"call_timeout_sec"`
	MaxAttempts    int    `yaml:"max_attempts"`
}

// CallTimeout is the per-attempt deadline for one model call.
func (c LLMConfig) CallTimeout() time.Duration {
	return time.Duration(c.CallTimeoutSec) * time.Second
}

type AgentConfig struct {
	Candidates int `yaml:"candidates"`
	PacingMS   int `yaml:"pacing_ms"`
}

// Pacing is the delay between cosmetic narration steps.
func (c AgentConfig) Pacing() time.Duration {
	return time.Duration(c.PacingMS) * time.Millisecond
}

type TelemetryConfig struct {
	OTLPEndpoint string `yaml:"otlp_endpoint"`
	ServiceName  string `yaml:"service_name"`
}

type ExportConfig struct {
	ChromePath string `yaml:"chrome_path"`
}

type Config struct {
	Addr      string          `yaml:"addr"`
	WebDir    string          `yaml:"web_dir"`
	Debug     bool            `yaml:"debug"`
	LLM       LLMConfig       `yaml:"llm"`
	Agent     AgentConfig     `yaml:"agent"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Export    ExportConfig    `yaml:"export"`
}

func Default() Config {
	return Config{
		Addr:   ":8090",
		WebDir: "web",
		LLM: LLMConfig{
			Provider:       ProviderGemini,
			CallTimeoutSec: 60,
			MaxAttempts:    3,
		},
		Agent: AgentConfig{
			Candidates: 6,
			PacingMS:   400,
		},
		Telemetry: TelemetryConfig{ServiceName: "patentos"},
	}
}

// Load reads path over the defaults. An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file %q: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config file %q: %w", path, err)
	}
	return cfg, nil
}

// LoadDotEnv loads KEY=VALUE files into the environment without overriding
// variables that are already set. Missing files are ignored.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// ApplyEnv overlays environment variables. API_KEY wins over the
// provider-specific key variables.
func (c *Config) ApplyEnv(getenv func(string) string) {
	get := func(k string) string { return strings.TrimSpace(getenv(k)) }
	if v := get("PATENTOS_ADDR"); v != "" {
		c.Addr = v
	}
	if v := get("PATENTOS_WEB_DIR"); v != "" {
		c.WebDir = v
	}
	if v := get("PATENTOS_PROVIDER"); v != "" {
		c.LLM.Provider = strings.ToLower(v)
	}
	if v := get("PATENTOS_MODEL"); v != "" {
		c.LLM.Model = v
	}
	if v := get("PATENTOS_BASE_URL"); v != "" {
		c.LLM.BaseURL = v
	}
	if n, ok := envInt(get("PATENTOS_CALL_TIMEOUT_SEC")); ok {
		c.LLM.CallTimeoutSec = n
	}
	if n, ok := envInt(get("PATENTOS_MAX_ATTEMPTS")); ok {
		c.LLM.MaxAttempts = n
	}
	if n, ok := envInt(get("PATENTOS_CANDIDATES")); ok {
		c.Agent.Candidates = n
	}
	if v := get("PATENTOS_PACING_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			c.Agent.PacingMS = n
		}
	}
	if v := get("OTEL_EXPORTER_OTLP_ENDPOINT"); v != "" {
		c.Telemetry.OTLPEndpoint = v
	}
	if v := get("PATENTOS_CHROME_PATH"); v != "" {
		c.Export.ChromePath = v
	}

	if v := get("API_KEY"); v != "" {
		c.LLM.APIKey = v
	} else if c.LLM.APIKey == "" {
		c.LLM.APIKey = get(providerKeyVar(c.LLM.Provider))
	}
}

func providerKeyVar(provider string) string {
	switch provider {
	case ProviderAnthropic:
		return "ANTHROPIC_API_KEY"
	case ProviderOpenAI:
		return "OPENAI_API_KEY"
	default:
		return "GEMINI_API_KEY"
	}
}

// Validate rejects settings the server cannot start with. A missing API key
// is not an error here: it is reported on every search instead.
func (c Config) Validate() error {
	switch c.LLM.Provider {
	case ProviderGemini, ProviderAnthropic, ProviderOpenAI:
	default:
		return fmt.Errorf("unsupported llm provider %q", c.LLM.Provider)
	}
	if strings.TrimSpace(c.Addr) == "" {
		return errors.New("addr is required")
	}
	if c.Agent.Candidates <= 0 || c.Agent.Candidates > 25 {
		return fmt.Errorf("agent.candidates must be between 1 and 25, got %d", c.Agent.Candidates)
	}
	if c.Agent.PacingMS < 0 {
		return fmt.Errorf("agent.pacing_ms must not be negative")
	}
	return nil
}

func envInt(v string) (int, bool) {
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}
