package model

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// NotionAuthToken and NotionAuthOAuth are the supported credential modes
// for the Notion side. Internal integrations use a static token; public
// integrations go through OAuth and need refresh handling.
const (
	NotionAuthToken = "token"
	NotionAuthOAuth = "oauth"
)

// NotionConfig holds the Notion side of a tenant's configuration.
type NotionConfig struct {
	// DatabaseIDs lists the databases whose pages are synced. At least
	// one is required.
	DatabaseIDs []string `mapstructure:"database_ids" yaml:"database_ids"`

	// AuthMode is "token" or "oauth".
	AuthMode string `mapstructure:"auth_mode" yaml:"auth_mode"`

	// Bindings names the page properties backing each synced field.
	Bindings FieldBindings `mapstructure:"bindings" yaml:"bindings"`
}

// AzDOConfig holds the Azure DevOps side of a tenant's configuration.
type AzDOConfig struct {
	// OrgURL is the organization root, e.g. https://dev.azure.com/acme.
	OrgURL string `mapstructure:"org_url" yaml:"org_url"`

	// Project is the project name or id that receives work items.
	Project string `mapstructure:"project" yaml:"project"`

	// WorkItemType is the type used for created items (default "Task").
	WorkItemType string `mapstructure:"work_item_type" yaml:"work_item_type"`

	// AreaPath, when set, classifies created work items.
	AreaPath string `mapstructure:"area_path" yaml:"area_path"`

	// DefaultState is the state new work items receive from the process
	// template. Creation only issues a follow-up transition when the
	// desired state differs from it.
	DefaultState string `mapstructure:"default_state" yaml:"default_state"`
}

// TenantConfig is the full per-tenant configuration consumed by the
// execution wrapper. Credential values themselves live in the keyring,
// keyed by tenant id.
type TenantConfig struct {
	Notion NotionConfig `mapstructure:"notion" yaml:"notion"`
	AzDO   AzDOConfig   `mapstructure:"azdo" yaml:"azdo"`
	Rules  MappingRules `mapstructure:"rules" yaml:"rules"`

	// RateLimitDelayMS is the fixed pause after every processed item.
	// The default was tuned against Notion's observed limits.
	RateLimitDelayMS int `mapstructure:"rate_limit_delay_ms" yaml:"rate_limit_delay_ms"`
}

// AppConfig is the top-level configuration file: shared settings plus
// one TenantConfig per tenant id.
type AppConfig struct {
	// DBPath is the sqlite file holding run records.
	DBPath string `mapstructure:"db_path" yaml:"db_path"`

	Tenants map[string]TenantConfig `mapstructure:"tenants" yaml:"tenants"`
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/syncbridge/config.yaml.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "config.yaml")
	}
	return filepath.Join(home, ".config", "syncbridge", "config.yaml")
}

// DefaultDBPath returns the default sqlite path next to the config file.
func DefaultDBPath() string {
	return filepath.Join(filepath.Dir(DefaultConfigPath()), "syncbridge.db")
}

// defaultAppConfig returns a configuration with no tenants and sensible
// shared defaults.
func defaultAppConfig() *AppConfig {
	return &AppConfig{
		DBPath:  DefaultDBPath(),
		Tenants: map[string]TenantConfig{},
	}
}

// LoadConfig reads configuration from the given YAML file path using
// Viper. If the file does not exist, it returns a default configuration.
func LoadConfig(path string) (*AppConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.SetDefault("db_path", DefaultDBPath())

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(*os.PathError); ok {
			return defaultAppConfig(), nil
		}
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return defaultAppConfig(), nil
		}
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	cfg := defaultAppConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	// Apply per-tenant defaults.
	for id, tc := range cfg.Tenants {
		if tc.Notion.AuthMode == "" {
			tc.Notion.AuthMode = NotionAuthToken
		}
		if tc.AzDO.WorkItemType == "" {
			tc.AzDO.WorkItemType = "Task"
		}
		if tc.AzDO.DefaultState == "" {
			tc.AzDO.DefaultState = "New"
		}
		if tc.RateLimitDelayMS == 0 {
			tc.RateLimitDelayMS = 350
		}
		cfg.Tenants[id] = tc
	}

	return cfg, nil
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("db_path", cfg.DBPath)
	v.Set("tenants", cfg.Tenants)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}
