package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/viper"
	"github.com/subosito/gotenv"

	"github.com/artpar/promoter/internal/core/classify"
	"github.com/artpar/promoter/internal/core/domain"
	"github.com/artpar/promoter/internal/shell/fabric"
)

// =============================================================================
// Config Types
// =============================================================================

// Source modes.
const (
	SourceRemote = "remote"
	SourceLocal  = "local"
	SourceGit    = "git"
)

// Config holds all application configuration.
type Config struct {
	Auth    AuthConfig    `mapstructure:"auth"`
	Fabric  FabricConfig  `mapstructure:"fabric"`
	Source  SourceConfig  `mapstructure:"source"`
	Target  TargetConfig  `mapstructure:"target"`
	Role    RoleConfig    `mapstructure:"role"`
	Deploy  DeployConfig  `mapstructure:"deploy"`
	Report  ReportConfig  `mapstructure:"report"`
	History HistoryConfig `mapstructure:"history"`
	Log     LogConfig     `mapstructure:"log"`
}

// AuthConfig holds the service principal credential.
type AuthConfig struct {
	TenantID     string `mapstructure:"tenant_id"`
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`

	// Token is a pre-acquired bearer token. When set, the client
	// credential fields are ignored.
	Token string `mapstructure:"token"`
}

// FabricConfig holds platform API client configuration.
type FabricConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// SourceConfig selects where items come from.
type SourceConfig struct {
	// Mode is one of remote, local or git.
	Mode        string `mapstructure:"mode"`
	WorkspaceID string `mapstructure:"workspace_id"`
	Path        string `mapstructure:"path"`
	RepoURL     string `mapstructure:"repo_url"`
	Branch      string `mapstructure:"branch"`
}

// TargetConfig identifies the workspace items are promoted into.
type TargetConfig struct {
	WorkspaceID   string `mapstructure:"workspace_id"`
	WorkspaceName string `mapstructure:"workspace_name"`
	CapacityID    string `mapstructure:"capacity_id"`
}

// Ref returns the target as a workspace reference.
func (c TargetConfig) Ref() domain.WorkspaceRef {
	return domain.WorkspaceRef{ID: c.WorkspaceID, Name: c.WorkspaceName}
}

// RoleConfig controls the role granted on the target workspace.
type RoleConfig struct {
	Skip      bool `mapstructure:"skip"`
	Mandatory bool `mapstructure:"mandatory"`

	// PrincipalID defaults to auth.client_id.
	PrincipalID   string `mapstructure:"principal_id"`
	PrincipalType string `mapstructure:"principal_type"`
	Role          string `mapstructure:"role"`
}

// DeployConfig holds per-run deployment switches.
type DeployConfig struct {
	Types        []string      `mapstructure:"types"`
	ItemInterval time.Duration `mapstructure:"item_interval"`
	DryRun       bool          `mapstructure:"dry_run"`
	NameSuffix   string        `mapstructure:"name_suffix"`
}

// ReportConfig holds the report file location. An empty path disables it.
type ReportConfig struct {
	Path string `mapstructure:"path"`
}

// HistoryConfig holds run history storage. An empty DSN disables it.
type HistoryConfig struct {
	DSN string `mapstructure:"dsn"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// =============================================================================
// Config Loading
// =============================================================================

// envAliases maps config keys to the environment names used by existing
// deployment pipelines. The PROMOTER_ prefixed name always wins.
var envAliases = map[string][]string{
	"auth.tenant_id":        {"TENANT_ID_ENV"},
	"auth.client_id":        {"CLIENT_ID_ENV"},
	"auth.client_secret":    {"CLIENT_SECRET_ENV"},
	"target.capacity_id":    {"CAPACITY_ID_ENV"},
	"source.workspace_id":   {"DEV_WORKSPACE_ID"},
	"target.workspace_id":   {"PROD_WORKSPACE_ID"},
	"target.workspace_name": {"PROD_WORKSPACE_NAME"},
	"role.skip":             {"SKIP_ROLE_ASSIGNMENT"},
	"source.repo_url":       {"GITHUB_REPO_PATH"},
	"source.branch":         {"GITHUB_BRANCH"},
}

const envPrefix = "PROMOTER"

// LoadConfig loads configuration from file and environment.
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault("auth.tenant_id", "")
	v.SetDefault("auth.client_id", "")
	v.SetDefault("auth.client_secret", "")
	v.SetDefault("auth.token", "")
	v.SetDefault("fabric.base_url", fabric.DefaultBaseURL)
	v.SetDefault("fabric.timeout", "30s")
	v.SetDefault("source.mode", SourceRemote)
	v.SetDefault("source.workspace_id", "")
	v.SetDefault("source.path", ".")
	v.SetDefault("source.repo_url", "")
	v.SetDefault("source.branch", "Dev-Branch")
	v.SetDefault("target.workspace_id", "")
	v.SetDefault("target.workspace_name", "")
	v.SetDefault("target.capacity_id", "")
	v.SetDefault("role.skip", false)
	v.SetDefault("role.mandatory", false)
	v.SetDefault("role.principal_id", "")
	v.SetDefault("role.principal_type", fabric.PrincipalServicePrincipal)
	v.SetDefault("role.role", fabric.RoleAdmin)
	v.SetDefault("deploy.types", []string{})
	v.SetDefault("deploy.item_interval", "2s")
	v.SetDefault("deploy.dry_run", false)
	v.SetDefault("deploy.name_suffix", "")
	v.SetDefault("report.path", "deployment_report.json")
	v.SetDefault("history.dsn", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	// Load from file if provided
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			// Only return error if file was explicitly specified and is invalid
			if _, ok := err.(viper.ConfigParseError); ok {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
			// File not found is OK, we'll use defaults
		}
	}

	// Enable environment variable overrides
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, aliases := range envAliases {
		names := append([]string{envName(key)}, aliases...)
		if err := v.BindEnv(append([]string{key}, names...)...); err != nil {
			return nil, fmt.Errorf("failed to bind env for %s: %w", key, err)
		}
	}

	// Unmarshal config
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.Role.PrincipalID == "" {
		cfg.Role.PrincipalID = cfg.Auth.ClientID
	}

	return &cfg, nil
}

// envName returns the prefixed environment name for a config key.
func envName(key string) string {
	return envPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

// LoadDotEnv loads variables from a .env file into the process environment.
// Variables already set are kept. A missing file is not an error.
func LoadDotEnv(path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err := gotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// =============================================================================
// Validation
// =============================================================================

// ValidateSource checks the settings needed to enumerate items.
func (c *Config) ValidateSource() error {
	var result *multierror.Error

	switch c.Source.Mode {
	case SourceRemote:
		if c.Source.WorkspaceID == "" {
			result = multierror.Append(result, errors.New("source.workspace_id is required for remote sources"))
		}
		result = multierror.Append(result, c.validateAuth())
	case SourceLocal:
		if c.Source.Path == "" {
			result = multierror.Append(result, errors.New("source.path is required for local sources"))
		}
	case SourceGit:
		if c.Source.RepoURL == "" {
			result = multierror.Append(result, errors.New("source.repo_url is required for git sources"))
		}
	default:
		result = multierror.Append(result, fmt.Errorf("source.mode %q must be one of remote, local, git", c.Source.Mode))
	}

	if _, err := classify.ParseTypeFilter(c.Deploy.Types); err != nil {
		result = multierror.Append(result, fmt.Errorf("deploy.types: %w", err))
	}

	return result.ErrorOrNil()
}

// Validate checks everything a deploy run needs and reports all problems at
// once.
func (c *Config) Validate() error {
	var result *multierror.Error

	if err := c.ValidateSource(); err != nil {
		result = multierror.Append(result, err)
	}
	if c.Source.Mode != SourceRemote && !c.Deploy.DryRun {
		result = multierror.Append(result, c.validateAuth())
	}

	if c.Target.Ref().IsZero() {
		result = multierror.Append(result, errors.New("target.workspace_id or target.workspace_name is required"))
	}
	if c.Deploy.ItemInterval < 0 {
		result = multierror.Append(result, errors.New("deploy.item_interval must not be negative"))
	}
	if !c.Role.Skip && !c.Deploy.DryRun {
		if c.Role.PrincipalID == "" && c.Auth.Token != "" {
			result = multierror.Append(result, errors.New("role.principal_id is required when auth.token is used"))
		}
		switch c.Role.Role {
		case fabric.RoleAdmin, fabric.RoleMember, fabric.RoleContributor, fabric.RoleViewer:
		default:
			result = multierror.Append(result, fmt.Errorf("role.role %q is not a workspace role", c.Role.Role))
		}
	}

	return result.ErrorOrNil()
}

func (c *Config) validateAuth() error {
	if c.Auth.Token != "" {
		return nil
	}
	var result *multierror.Error
	if c.Auth.TenantID == "" {
		result = multierror.Append(result, errors.New("auth.tenant_id is required"))
	}
	if c.Auth.ClientID == "" {
		result = multierror.Append(result, errors.New("auth.client_id is required"))
	}
	if c.Auth.ClientSecret == "" {
		result = multierror.Append(result, errors.New("auth.client_secret is required"))
	}
	return result.ErrorOrNil()
}

// =============================================================================
// Logger Setup
// =============================================================================

// SetupLogger creates a logger with the configured level and format. Logs go
// to stderr so the summary on stdout stays clean.
func SetupLogger(cfg *Config) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Log.Level) {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if strings.ToLower(cfg.Log.Format) == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}

	return slog.New(handler)
}
