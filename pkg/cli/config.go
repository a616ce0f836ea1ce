package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/goccy/go-yaml"

	"github.com/haivivi/koe/pkg/storage"
)

const (
	// DefaultBaseDir is the base configuration directory name
	DefaultBaseDir = ".koe"
	// DefaultConfigFile is the default configuration filename
	DefaultConfigFile = "config.yaml"
)

// Config represents the main configuration structure for a CLI app
type Config struct {
	// AppName is the application name (e.g., "koe")
	AppName string `yaml:"-"`

	// CurrentContext is the name of the currently active context
	CurrentContext string `yaml:"current_context,omitempty"`

	// Contexts is a map of context name to context configuration
	Contexts map[string]*Context `yaml:"contexts,omitempty"`

	// configPath is the path to the config file
	configPath string
}

// Context is one named set of synthesis settings.
type Context struct {
	// Name is the context name
	Name string `yaml:"name"`

	// DictDir is the compiled lexicon directory (see `koe lexicon compile`).
	DictDir string `yaml:"dict_dir,omitempty"`

	// UserDict is the user dictionary file applied to the analyzer (optional).
	UserDict string `yaml:"user_dict,omitempty"`

	// Models lists voice model bundles loaded at startup. Entries are
	// filesystem paths or s3://bucket/key locations.
	Models []string `yaml:"models,omitempty"`

	// Backend is the inference backend name (reference, onnx).
	Backend string `yaml:"backend,omitempty"`

	// Acceleration is auto, cpu or gpu.
	Acceleration string `yaml:"acceleration,omitempty"`

	// CPUThreads bounds inference threads (0 = backend default).
	CPUThreads int `yaml:"cpu_threads,omitempty"`

	// DefaultStyle is the style id used when --style is not given.
	DefaultStyle uint32 `yaml:"default_style,omitempty"`

	// S3 configures access to s3:// locations (optional).
	S3 *storage.S3Config `yaml:"s3,omitempty"`

	// Extra stores free-form settings
	Extra map[string]string `yaml:"extra,omitempty"`
}

// envOverrides are the KOE_* variables that take precedence over a context.
type envOverrides struct {
	DictDir      string           `env:"DICT_DIR"`
	UserDict     string           `env:"USER_DICT"`
	Models       []string         `env:"MODELS" envSeparator:","`
	Backend      string           `env:"BACKEND"`
	Acceleration string           `env:"ACCELERATION"`
	CPUThreads   int              `env:"CPU_THREADS"`
	S3           storage.S3Config `envPrefix:"S3_"`
}

// EnvPrefix prefixes every environment override.
const EnvPrefix = "KOE_"

// ApplyEnv overrides ctx with KOE_* variables. A nil environ reads the
// process environment.
func (ctx *Context) ApplyEnv(environ map[string]string) error {
	var o envOverrides
	if err := env.ParseWithOptions(&o, env.Options{Prefix: EnvPrefix, Environment: environ}); err != nil {
		return fmt.Errorf("failed to parse environment: %w", err)
	}
	if o.DictDir != "" {
		ctx.DictDir = o.DictDir
	}
	if o.UserDict != "" {
		ctx.UserDict = o.UserDict
	}
	if len(o.Models) > 0 {
		ctx.Models = o.Models
	}
	if o.Backend != "" {
		ctx.Backend = o.Backend
	}
	if o.Acceleration != "" {
		ctx.Acceleration = o.Acceleration
	}
	if o.CPUThreads != 0 {
		ctx.CPUThreads = o.CPUThreads
	}
	if o.S3 != (storage.S3Config{}) {
		if ctx.S3 == nil {
			ctx.S3 = &storage.S3Config{}
		}
		mergeS3(ctx.S3, o.S3)
	}
	return nil
}

func mergeS3(dst *storage.S3Config, src storage.S3Config) {
	if src.Region != "" {
		dst.Region = src.Region
	}
	if src.Endpoint != "" {
		dst.Endpoint = src.Endpoint
	}
	if src.AccessKeyID != "" {
		dst.AccessKeyID = src.AccessKeyID
	}
	if src.SecretAccessKey != "" {
		dst.SecretAccessKey = src.SecretAccessKey
	}
	if src.PathStyle {
		dst.PathStyle = true
	}
	if src.Prefix != "" {
		dst.Prefix = src.Prefix
	}
}

// LoadConfig loads or creates configuration for the specified app
func LoadConfig(appName string) (*Config, error) {
	return LoadConfigWithPath(appName, "")
}

// LoadConfigWithPath loads configuration from a custom path
func LoadConfigWithPath(appName, customPath string) (*Config, error) {
	var configPath string

	if customPath != "" {
		configPath = customPath
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		configPath = filepath.Join(home, DefaultBaseDir, appName, DefaultConfigFile)
	}

	// Ensure config directory exists
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	cfg := &Config{
		AppName:    appName,
		Contexts:   make(map[string]*Context),
		configPath: configPath,
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			// Create empty config file
			return cfg, cfg.Save()
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	// Ensure contexts map is initialized
	if cfg.Contexts == nil {
		cfg.Contexts = make(map[string]*Context)
	}

	cfg.AppName = appName
	cfg.configPath = configPath

	return cfg, nil
}

// Save saves the configuration to disk
func (c *Config) Save() error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(c.configPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// Path returns the config file path
func (c *Config) Path() string {
	return c.configPath
}

// Dir returns the config directory path
func (c *Config) Dir() string {
	return filepath.Dir(c.configPath)
}

// AddContext adds a new context
func (c *Config) AddContext(name string, ctx *Context) error {
	ctx.Name = name
	c.Contexts[name] = ctx
	return c.Save()
}

// DeleteContext removes a context
func (c *Config) DeleteContext(name string) error {
	if _, ok := c.Contexts[name]; !ok {
		return fmt.Errorf("context %q not found", name)
	}
	delete(c.Contexts, name)
	if c.CurrentContext == name {
		c.CurrentContext = ""
	}
	return c.Save()
}

// UseContext sets the current context
func (c *Config) UseContext(name string) error {
	if _, ok := c.Contexts[name]; !ok {
		return fmt.Errorf("context %q not found", name)
	}
	c.CurrentContext = name
	return c.Save()
}

// GetContext returns a specific context
func (c *Config) GetContext(name string) (*Context, error) {
	ctx, ok := c.Contexts[name]
	if !ok {
		return nil, fmt.Errorf("context %q not found", name)
	}
	return ctx, nil
}

// GetCurrentContext returns the current context
func (c *Config) GetCurrentContext() (*Context, error) {
	if c.CurrentContext == "" {
		return nil, fmt.Errorf("no current context set")
	}
	return c.GetContext(c.CurrentContext)
}

// ResolveContext returns the context by name, or current context if name is empty
func (c *Config) ResolveContext(name string) (*Context, error) {
	if name == "" {
		return c.GetCurrentContext()
	}
	return c.GetContext(name)
}

// ListContexts returns all context names
func (c *Config) ListContexts() []string {
	names := make([]string, 0, len(c.Contexts))
	for name := range c.Contexts {
		names = append(names, name)
	}
	return names
}

// GetExtra returns an extra value for the context
func (ctx *Context) GetExtra(key string) string {
	if ctx.Extra == nil {
		return ""
	}
	return ctx.Extra[key]
}

// SetExtra sets an extra value for the context
func (ctx *Context) SetExtra(key, value string) {
	if ctx.Extra == nil {
		ctx.Extra = make(map[string]string)
	}
	ctx.Extra[key] = value
}

// MaskSecret masks a credential for display
func MaskSecret(key string) string {
	if len(key) <= 8 {
		return strings.Repeat("*", len(key))
	}
	return key[:4] + strings.Repeat("*", len(key)-8) + key[len(key)-4:]
}
