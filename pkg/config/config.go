// Package config loads a2apipe settings from defaults, an optional YAML
// file and A2APIPE_ environment variables, in that order of precedence.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix prefixes every environment override. Nesting levels are
// separated by a double underscore: A2APIPE_AGENTS__READER__PORT.
const EnvPrefix = "A2APIPE_"

// EnvOpenAIKey is honoured as the LLM credential when llm.api_key is unset.
const EnvOpenAIKey = "OPENAI_API_KEY"

type Config struct {
	Log       LogConfig              `koanf:"log"`
	LLM       LLMConfig              `koanf:"llm"`
	Telemetry TelemetryConfig        `koanf:"telemetry"`
	Agents    map[string]AgentConfig `koanf:"agents"`
	Pipeline  PipelineConfig         `koanf:"pipeline"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"` // json, text
}

type LLMConfig struct {
	Provider string        `koanf:"provider"` // openai
	BaseURL  string        `koanf:"base_url"`
	APIKey   string        `koanf:"api_key"`
	Timeout  time.Duration `koanf:"timeout"` // per model call, 0 disables
}

type TelemetryConfig struct {
	Exporter     string `koanf:"exporter"` // none, stdout, otlp, prometheus
	OTLPEndpoint string `koanf:"otlp_endpoint"`
	OTLPInsecure bool   `koanf:"otlp_insecure"`
}

// AgentConfig is the server side of one role.
type AgentConfig struct {
	Host       string `koanf:"host"`
	Port       int    `koanf:"port"`
	PublicHost string `koanf:"public_host"`
	RPCPath    string `koanf:"rpc_path"`
	Model      string `koanf:"model"`
}

// PipelineConfig is the coordinator side.
type PipelineConfig struct {
	Dataset   string            `koanf:"dataset"`
	OutputDir string            `koanf:"output_dir"`
	Endpoints map[string]string `koanf:"endpoints"`
	Models    map[string]string `koanf:"models"`
	HistoryDB string            `koanf:"history_db"`
}

var defaults = map[string]any{
	"log.level":          "info",
	"log.format":         "text",
	"llm.provider":       "openai",
	"llm.timeout":        "120s",
	"telemetry.exporter": "none",

	"agents.reader.host":            "0.0.0.0",
	"agents.reader.port":            8001,
	"agents.reader.public_host":     "localhost",
	"agents.reader.rpc_path":        "/a2a",
	"agents.reader.model":           "gpt-4o-mini",
	"agents.analyst.host":           "0.0.0.0",
	"agents.analyst.port":           8002,
	"agents.analyst.public_host":    "localhost",
	"agents.analyst.rpc_path":       "/a2a",
	"agents.analyst.model":          "gpt-4o-mini",
	"agents.visualizer.host":        "0.0.0.0",
	"agents.visualizer.port":        8003,
	"agents.visualizer.public_host": "localhost",
	"agents.visualizer.rpc_path":    "/a2a",
	"agents.visualizer.model":       "gpt-4o",

	"pipeline.dataset":    "data/sales_marketing.csv",
	"pipeline.output_dir": "artifacts",
}

// Load reads the configuration. An empty path skips the file layer.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	for key, value := range defaults {
		if err := k.Set(key, value); err != nil {
			return nil, fmt.Errorf("config default %s: %w", key, err)
		}
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("load config env: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if cfg.LLM.APIKey == "" {
		cfg.LLM.APIKey = os.Getenv(EnvOpenAIKey)
	}
	return &cfg, nil
}

// envKey maps A2APIPE_LLM__BASE_URL to llm.base_url.
func envKey(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".")
}

// Agent returns the settings of a role, or the zero value.
func (c *Config) Agent(role string) AgentConfig {
	if c == nil || c.Agents == nil {
		return AgentConfig{}
	}
	return c.Agents[strings.ToLower(role)]
}
