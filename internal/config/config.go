package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/cobra"
)

type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Cache     CacheConfig     `koanf:"cache"`
	Harvest   HarvestConfig   `koanf:"harvest"`
	Models    ModelsConfig    `koanf:"models"`
	Store     StoreConfig     `koanf:"store"`
	Tokens    TokensConfig    `koanf:"tokens"`
	Sheets    SheetsConfig    `koanf:"sheets"`
	HubSpot   HubSpotConfig   `koanf:"hubspot"`
	Zoho      ZohoConfig      `koanf:"zoho"`
	Webhooks  []WebhookConfig `koanf:"webhooks"`
	Notify    NotifyConfig    `koanf:"notify"`
	Scheduler SchedulerConfig `koanf:"scheduler"`
}

type ServerConfig struct {
	Port            int    `koanf:"port"`
	LogLevel        string `koanf:"log_level"`
	ReadTimeout     string `koanf:"read_timeout"`
	WriteTimeout    string `koanf:"write_timeout"`
	ShutdownTimeout string `koanf:"shutdown_timeout"`
}

type CacheConfig struct {
	Addr      string `koanf:"addr"`
	Password  string `koanf:"password"`
	DB        int    `koanf:"db"`
	KeyPrefix string `koanf:"key_prefix"`
}

type HarvestConfig struct {
	ScanLimit    int    `koanf:"scan_limit"`
	MinTTL       string `koanf:"min_ttl"`
	MaxTTL       string `koanf:"max_ttl"`
	ProcessedTTL string `koanf:"processed_ttl"`
	MaxMessages  int    `koanf:"max_messages"`
}

type ModelsConfig struct {
	Registry []ModelRegistry `koanf:"registry"`
}

type ModelRegistry struct {
	Name     string `koanf:"name"`
	Provider string `koanf:"provider"`
	BaseURL  string `koanf:"base_url"`
	APIKey   string `koanf:"api_key"`
}

type StoreConfig struct {
	Driver string `koanf:"driver"` // "postgres" or "file"
	DSN    string `koanf:"dsn"`
	Path   string `koanf:"path"`
}

type TokensConfig struct {
	Path string `koanf:"path"`
}

type SheetsConfig struct {
	ClientID     string `koanf:"client_id"`
	ClientSecret string `koanf:"client_secret"`
	SheetName    string `koanf:"sheet_name"`
}

type HubSpotConfig struct {
	BaseURL      string `koanf:"base_url"`
	ClientID     string `koanf:"client_id"`
	ClientSecret string `koanf:"client_secret"`
	TokenURL     string `koanf:"token_url"`
}

type ZohoConfig struct {
	ClientID     string `koanf:"client_id"`
	ClientSecret string `koanf:"client_secret"`
	AccountsURL  string `koanf:"accounts_url"`
}

type WebhookConfig struct {
	ID      string   `koanf:"id"`
	URL     string   `koanf:"url"`
	Headers string   `koanf:"headers"` // JSON object of header name -> value
	Events  []string `koanf:"events"`
	Active  bool     `koanf:"active"`
}

type NotifyConfig struct {
	Slack    SlackNotifyConfig    `koanf:"slack"`
	Telegram TelegramNotifyConfig `koanf:"telegram"`
}

type SlackNotifyConfig struct {
	Enabled  bool   `koanf:"enabled"`
	BotToken string `koanf:"bot_token"`
	Channel  string `koanf:"channel"`
}

type TelegramNotifyConfig struct {
	Enabled  bool   `koanf:"enabled"`
	BotToken string `koanf:"bot_token"`
	ChatID   int64  `koanf:"chat_id"`
}

type SchedulerConfig struct {
	Schedule        string `koanf:"schedule"` // cron spec or "@every 1m"
	ShutdownTimeout string `koanf:"shutdown_timeout"`
}

const (
	DefaultServerPort            = 8090
	DefaultServerLogLevel        = "info"
	DefaultServerReadTimeout     = "10s"
	DefaultServerWriteTimeout    = "10s"
	DefaultServerShutdownTimeout = "5s"

	DefaultCacheAddr      = "localhost:6379"
	DefaultCacheKeyPrefix = "chat:"

	DefaultHarvestScanLimit    = 500
	DefaultHarvestMinTTL       = "0s"
	DefaultHarvestMaxTTL       = "110m"
	DefaultHarvestProcessedTTL = "5m"
	DefaultHarvestMaxMessages  = 50

	DefaultModelPrimary   = "gpt-4o-mini"
	DefaultModelFallback  = "claude-3-haiku"
	DefaultOpenAIBaseURL  = "https://api.openai.com/v1"
	DefaultHubSpotBaseURL = "https://api.hubapi.com"
	DefaultHubSpotToken   = "https://api.hubapi.com/oauth/v1/token"
	DefaultZohoAccounts   = "https://accounts.zoho.com"
	DefaultSheetName      = "Leads"

	DefaultStoreDriver = "file"

	DefaultSchedulerSchedule        = "@every 1m"
	DefaultSchedulerShutdownTimeout = "30s"
)

func Load(cmd *cobra.Command) (*Config, error) {
	k := koanf.New(".")

	defaults := map[string]interface{}{
		"server.port":             DefaultServerPort,
		"server.log_level":        DefaultServerLogLevel,
		"server.read_timeout":     DefaultServerReadTimeout,
		"server.write_timeout":    DefaultServerWriteTimeout,
		"server.shutdown_timeout": DefaultServerShutdownTimeout,
		"cache.addr":              DefaultCacheAddr,
		"cache.key_prefix":        DefaultCacheKeyPrefix,
		"harvest.scan_limit":      DefaultHarvestScanLimit,
		"harvest.min_ttl":         DefaultHarvestMinTTL,
		"harvest.max_ttl":         DefaultHarvestMaxTTL,
		"harvest.processed_ttl":   DefaultHarvestProcessedTTL,
		"harvest.max_messages":    DefaultHarvestMaxMessages,
		"models.registry": []ModelRegistry{
			{Name: DefaultModelPrimary, Provider: "openai"},
			{Name: DefaultModelFallback, Provider: "anthropic"},
		},
		"store.driver":               DefaultStoreDriver,
		"store.path":                 filepath.Join(xdg.DataHome, "fluffy", "leads.json"),
		"tokens.path":                filepath.Join(xdg.DataHome, "fluffy", "tokens.json"),
		"sheets.sheet_name":          DefaultSheetName,
		"hubspot.base_url":           DefaultHubSpotBaseURL,
		"hubspot.token_url":          DefaultHubSpotToken,
		"zoho.accounts_url":          DefaultZohoAccounts,
		"scheduler.schedule":         DefaultSchedulerSchedule,
		"scheduler.shutdown_timeout": DefaultSchedulerShutdownTimeout,
	}
	for key, value := range defaults {
		k.Set(key, value)
	}

	configPath := ""
	if cmd != nil {
		if flag := cmd.Flags().Lookup("config"); flag != nil {
			configPath = strings.TrimSpace(flag.Value.String())
		}
	}

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, err
		}
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			globalPath := filepath.Join(home, ".fluffy", "config.yaml")
			if err := k.Load(file.Provider(globalPath), yaml.Parser()); err != nil {
				slog.Debug("Global config not found or invalid", "path", globalPath, "error", err)
			}
		}
	}

	k.Load(env.Provider("FLUFFY_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, "FLUFFY_")), "_", ".", -1)
	}), nil)

	if cmd != nil {
		k.Load(posflag.Provider(cmd.Flags(), ".", k), nil)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}

	for i, m := range cfg.Models.Registry {
		if m.Provider == "" {
			cfg.Models.Registry[i].Provider = "openai"
		}
	}

	// Inject standard env vars if missing
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		for i, m := range cfg.Models.Registry {
			if m.Provider == "openai" && m.APIKey == "" {
				cfg.Models.Registry[i].APIKey = key
			}
		}
	}
	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
		for i, m := range cfg.Models.Registry {
			if m.Provider == "anthropic" && m.APIKey == "" {
				cfg.Models.Registry[i].APIKey = key
			}
		}
	}
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		for i, m := range cfg.Models.Registry {
			if m.Provider == "gemini" && m.APIKey == "" {
				cfg.Models.Registry[i].APIKey = key
			}
		}
	}

	return &cfg, nil
}
