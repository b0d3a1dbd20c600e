package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/germanamz/llamagent/pkg/chattmpl"
	"github.com/germanamz/llamagent/pkg/executor"
	"github.com/germanamz/llamagent/pkg/generate"
	"github.com/germanamz/llamagent/pkg/inference/llamaserver"
	"github.com/germanamz/llamagent/pkg/safety"
	"gopkg.in/yaml.v3"
)

// ErrConfig is wrapped by every configuration error.
var ErrConfig = errors.New("engine: invalid config")

// Defaults applied by WithDefaults.
const (
	DefaultAgentName     = "assistant"
	DefaultInstructions  = "You are a helpful assistant that can perform calculations and execute basic shell commands. Only run safe, read-only commands."
	DefaultMaxIterations = 10
	DefaultToolHost      = "localhost"
)

// Config is the top-level engine configuration.
type Config struct {
	Model           ModelConfig      `yaml:"model"`
	Chat            ChatConfig       `yaml:"chat"`
	Agent           AgentConfig      `yaml:"agent"`
	Shell           ShellConfig      `yaml:"shell"`
	ToolServer      ToolServerConfig `yaml:"tool_server"`
	MCPServers      []MCPConfig      `yaml:"mcp_servers"`
	Audit           AuditConfig      `yaml:"audit"`
	PermissionsFile string           `yaml:"permissions_file"`
	Log             LogConfig        `yaml:"log"`
}

// ModelConfig selects the model and sizes generation.
type ModelConfig struct {
	Path         string `yaml:"path"`
	EngineURL    string `yaml:"engine_url"`
	APIKey       string `yaml:"api_key"` //nolint:gosec // configuration field, not a hardcoded secret
	ContextSize  int    `yaml:"ctx_size"`  // 0 = use the server's context size.
	BatchSize    int    `yaml:"batch_size"`
	MaxNewTokens int    `yaml:"max_new_tokens"`
}

// ChatConfig selects how conversations are rendered and parsed.
type ChatConfig struct {
	Format       string `yaml:"format"`
	TemplateFile string `yaml:"template_file"`
	ToolChoice   string `yaml:"tool_choice"`
}

// AgentConfig holds agent behaviour settings.
type AgentConfig struct {
	Name          string `yaml:"name"`
	Instructions  string `yaml:"instructions"`
	MaxIterations int    `yaml:"max_iterations"`
	Confirm       bool   `yaml:"confirm"`
	TurnTimeout   string `yaml:"turn_timeout"` // Duration string, e.g. "2m". Empty = no timeout.
}

// ShellConfig configures the shell tool.
type ShellConfig struct {
	Mode           string        `yaml:"mode"` // "shell" or "argv".
	MaxOutputBytes int           `yaml:"max_output_bytes"`
	Dir            string        `yaml:"dir"`
	Policy         safety.Policy `yaml:"policy"`
}

// ToolServerConfig exposes the local tools over MCP when Port is set.
type ToolServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"` // 0 = disabled.
}

// MCPConfig describes a remote tool provider. Exactly one of Command or URL
// must be set.
type MCPConfig struct {
	Name      string   `yaml:"name"`
	Command   string   `yaml:"command"`
	Args      []string `yaml:"args"`
	URL       string   `yaml:"url"`
	Transport string   `yaml:"transport"` // For URL servers: "http" (default) or "sse".
}

// AuditConfig enables the command audit log.
type AuditConfig struct {
	DBPath string `yaml:"db_path"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "text" or "json".
}

// LoadConfig reads a YAML file and returns a Config.
// Environment variables referenced as ${VAR} or $VAR in the YAML are expanded
// before parsing.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is caller-provided configuration, not user input
	if err != nil {
		return Config{}, fmt.Errorf("engine: load config: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return Config{}, fmt.Errorf("%w: parse %s: %v", ErrConfig, path, err)
	}

	return cfg, nil
}

// WithDefaults returns a copy of c with unset fields filled in.
func (c Config) WithDefaults() Config {
	if c.Model.EngineURL == "" {
		c.Model.EngineURL = llamaserver.DefaultURL
	}
	if c.Model.BatchSize == 0 {
		c.Model.BatchSize = generate.DefaultBatchSize
	}
	if c.Model.MaxNewTokens == 0 {
		c.Model.MaxNewTokens = generate.DefaultMaxNewTokens
	}

	if c.Chat.Format == "" {
		c.Chat.Format = string(chattmpl.FormatHermes)
	}
	if c.Chat.ToolChoice == "" {
		c.Chat.ToolChoice = chattmpl.ToolChoiceAuto
	}

	if c.Agent.Name == "" {
		c.Agent.Name = DefaultAgentName
	}
	if c.Agent.Instructions == "" {
		c.Agent.Instructions = DefaultInstructions
	}
	if c.Agent.MaxIterations == 0 {
		c.Agent.MaxIterations = DefaultMaxIterations
	}

	if c.Shell.Mode == "" {
		c.Shell.Mode = string(executor.ModeShell)
	}
	if c.Shell.MaxOutputBytes == 0 {
		c.Shell.MaxOutputBytes = executor.DefaultMaxOutputBytes
	}
	if len(c.Shell.Policy.Allowed) == 0 && len(c.Shell.Policy.Blocked) == 0 {
		c.Shell.Policy = safety.DefaultPolicy()
	}

	if c.ToolServer.Host == "" {
		c.ToolServer.Host = DefaultToolHost
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}

	return c
}

// Validate checks that the configuration is internally consistent.
func (c Config) Validate() error {
	return c.validate(true)
}

func (c Config) validate(needModel bool) error {
	if needModel && c.Model.Path == "" {
		return fmt.Errorf("%w: model path is required", ErrConfig)
	}
	if c.Model.ContextSize < 0 {
		return fmt.Errorf("%w: ctx_size must not be negative", ErrConfig)
	}
	if c.Model.BatchSize <= 0 {
		return fmt.Errorf("%w: batch_size must be positive", ErrConfig)
	}
	if c.Model.MaxNewTokens <= 0 {
		return fmt.Errorf("%w: max_new_tokens must be positive", ErrConfig)
	}

	if _, err := chattmpl.ParseFormat(c.Chat.Format); err != nil {
		return fmt.Errorf("%w: %v", ErrConfig, err)
	}
	switch c.Chat.ToolChoice {
	case "", chattmpl.ToolChoiceAuto, chattmpl.ToolChoiceNone, chattmpl.ToolChoiceRequired:
	default:
		return fmt.Errorf("%w: unknown tool_choice %q", ErrConfig, c.Chat.ToolChoice)
	}

	if c.Agent.MaxIterations < 0 {
		return fmt.Errorf("%w: max_iterations must not be negative", ErrConfig)
	}
	if c.Agent.TurnTimeout != "" {
		if _, err := time.ParseDuration(c.Agent.TurnTimeout); err != nil {
			return fmt.Errorf("%w: turn_timeout: %v", ErrConfig, err)
		}
	}

	switch executor.Mode(c.Shell.Mode) {
	case "", executor.ModeShell, executor.ModeArgv:
	default:
		return fmt.Errorf("%w: unknown shell mode %q", ErrConfig, c.Shell.Mode)
	}
	if c.Shell.MaxOutputBytes < 0 {
		return fmt.Errorf("%w: max_output_bytes must not be negative", ErrConfig)
	}

	if c.ToolServer.Port < 0 || c.ToolServer.Port > 65535 {
		return fmt.Errorf("%w: tool server port %d out of range", ErrConfig, c.ToolServer.Port)
	}

	mcpNames := make(map[string]struct{}, len(c.MCPServers))
	for _, m := range c.MCPServers {
		if m.Name == "" {
			return fmt.Errorf("%w: mcp server name is required", ErrConfig)
		}
		if (m.Command == "") == (m.URL == "") {
			return fmt.Errorf("%w: mcp server %q: exactly one of command or url is required", ErrConfig, m.Name)
		}
		switch m.Transport {
		case "", "http", "sse":
		default:
			return fmt.Errorf("%w: mcp server %q: unknown transport %q", ErrConfig, m.Name, m.Transport)
		}
		if _, dup := mcpNames[m.Name]; dup {
			return fmt.Errorf("%w: duplicate mcp server name %q", ErrConfig, m.Name)
		}
		mcpNames[m.Name] = struct{}{}
	}

	if _, err := ParseLevel(c.Log.Level); err != nil {
		return err
	}
	switch c.Log.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("%w: unknown log format %q", ErrConfig, c.Log.Format)
	}

	return nil
}

// TurnTimeout returns the parsed agent turn timeout, or zero.
func (c Config) TurnTimeout() time.Duration {
	d, _ := time.ParseDuration(c.Agent.TurnTimeout)
	return d
}

// ParseLevel maps a level name to a slog.Level. Empty means info.
func ParseLevel(s string) (slog.Level, error) {
	if s == "" {
		return slog.LevelInfo, nil
	}

	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("%w: log level %q: %v", ErrConfig, s, err)
	}
	return l, nil
}
