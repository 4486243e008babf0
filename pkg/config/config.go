// Package config loads the service configuration from environment variables
// and flags through viper. Every key has a default so the broker runs with no
// configuration at all; environment variables are honored both bare
// (API_BASE_URL) and prefixed (LINGODESK_API_BASE_URL).
package config

import (
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// Config is the resolved service configuration, read-only after startup.
type Config struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`

	FrontendOrigin     string `mapstructure:"frontend_origin"`
	APIBaseURL         string `mapstructure:"api_base_url"`
	DefaultClientLang  string `mapstructure:"default_client_lang"`
	TranslationEnabled bool   `mapstructure:"translation_enabled"`
	MaxMessageLength   int    `mapstructure:"max_message_length"`

	BotInactivitySec      int     `mapstructure:"bot_inactivity_sec"`
	BotSuppressSec        int     `mapstructure:"bot_suppress_sec"`
	TranslationTimeoutSec float64 `mapstructure:"translation_timeout_sec"`

	// Comma-separated in the environment, split by Load.
	LibreEndpoints       []string `mapstructure:"-"`
	LibreDetectEndpoints []string `mapstructure:"-"`

	LLMBaseURL string `mapstructure:"llm_base_url"`
	LLMAPIKey  string `mapstructure:"llm_api_key"`
	LLMModel   string `mapstructure:"llm_model"`

	DBPath    string `mapstructure:"db_path"`
	StaticDir string `mapstructure:"static_dir"`
	RulesFile string `mapstructure:"rules_file"`

	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
}

// BotInactivity is the delay between a customer message and bot takeover.
func (c *Config) BotInactivity() time.Duration {
	return time.Duration(c.BotInactivitySec) * time.Second
}

// BotSuppress is the hold added by each agent typing signal.
func (c *Config) BotSuppress() time.Duration {
	return time.Duration(c.BotSuppressSec) * time.Second
}

// TranslationTimeout is the per-endpoint translation request timeout.
func (c *Config) TranslationTimeout() time.Duration {
	return time.Duration(c.TranslationTimeoutSec * float64(time.Second))
}

var envKeys = []string{
	"host",
	"port",
	"frontend_origin",
	"api_base_url",
	"default_client_lang",
	"translation_enabled",
	"max_message_length",
	"bot_inactivity_sec",
	"bot_suppress_sec",
	"translation_timeout_sec",
	"libre_endpoints",
	"libre_detect_endpoints",
	"llm_base_url",
	"llm_api_key",
	"llm_model",
	"db_path",
	"static_dir",
	"rules_file",
	"log_level",
	"log_format",
}

// Init registers defaults and environment bindings on the global viper.
// Call once before Load, typically from the CLI's init.
func Init() {
	InitViper(viper.GetViper())
}

// InitViper registers defaults and environment bindings on a specific viper
// instance, mainly for tests.
func InitViper(v *viper.Viper) {
	v.SetDefault("host", "0.0.0.0")
	v.SetDefault("port", 5000)
	v.SetDefault("frontend_origin", "*")
	v.SetDefault("api_base_url", "")
	v.SetDefault("default_client_lang", "fr")
	v.SetDefault("translation_enabled", true)
	v.SetDefault("max_message_length", 500)
	v.SetDefault("bot_inactivity_sec", 30)
	v.SetDefault("bot_suppress_sec", 5)
	v.SetDefault("translation_timeout_sec", 5.0)
	v.SetDefault("libre_endpoints", strings.Join([]string{
		"https://libretranslate.de/translate",
		"https://translate.astian.org/translate",
		"https://libretranslate.com/translate",
	}, ","))
	v.SetDefault("libre_detect_endpoints", "")
	v.SetDefault("llm_base_url", "http://127.0.0.1:8080/v1")
	v.SetDefault("llm_api_key", "sk-noauth")
	v.SetDefault("llm_model", "qwen2.5-3b-instruct-q5_k_m")
	v.SetDefault("db_path", "data/lingodesk.db")
	v.SetDefault("static_dir", "")
	v.SetDefault("rules_file", "")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")

	for _, key := range envKeys {
		bare := strings.ToUpper(key)
		v.BindEnv(key, "LINGODESK_"+bare, bare)
	}
}

// Load resolves the configuration from the global viper.
func Load() (*Config, error) {
	return LoadViper(viper.GetViper())
}

// LoadViper resolves the configuration from a specific viper instance.
func LoadViper(v *viper.Viper) (*Config, error) {
	var cfg Config

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &cfg,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return nil, errors.Wrap(err, "creating config decoder")
	}
	if err := decoder.Decode(settingsOf(v)); err != nil {
		return nil, errors.Wrap(err, "decoding configuration")
	}

	cfg.DefaultClientLang = normalizeLang(cfg.DefaultClientLang)
	cfg.LibreEndpoints = splitList(v.GetString("libre_endpoints"))
	cfg.LibreDetectEndpoints = splitList(v.GetString("libre_detect_endpoints"))
	if len(cfg.LibreDetectEndpoints) == 0 {
		cfg.LibreDetectEndpoints = deriveDetectEndpoints(cfg.LibreEndpoints)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// settingsOf resolves every known key through viper so environment overrides
// are visible to the decoder.
func settingsOf(v *viper.Viper) map[string]interface{} {
	settings := make(map[string]interface{}, len(envKeys))
	for _, key := range envKeys {
		settings[key] = v.Get(key)
	}
	return settings
}

func (c *Config) validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return errors.Errorf("port must be between 1 and 65535, got %d", c.Port)
	}
	if len(c.DefaultClientLang) != 2 {
		return errors.Errorf("default_client_lang must be a 2-letter code, got %q", c.DefaultClientLang)
	}
	if c.MaxMessageLength <= 0 {
		return errors.Errorf("max_message_length must be positive, got %d", c.MaxMessageLength)
	}
	if c.BotInactivitySec <= 0 {
		return errors.Errorf("bot_inactivity_sec must be positive, got %d", c.BotInactivitySec)
	}
	if c.BotSuppressSec < 0 {
		return errors.Errorf("bot_suppress_sec must not be negative, got %d", c.BotSuppressSec)
	}
	if c.TranslationTimeoutSec <= 0 {
		return errors.Errorf("translation_timeout_sec must be positive, got %v", c.TranslationTimeoutSec)
	}
	if len(c.LibreEndpoints) == 0 {
		return errors.New("libre_endpoints must not be empty")
	}
	if c.DBPath == "" {
		return errors.New("db_path must not be empty")
	}
	return nil
}

func normalizeLang(lang string) string {
	lang = strings.ToLower(strings.TrimSpace(lang))
	if len(lang) > 2 {
		lang = lang[:2]
	}
	return lang
}

func splitList(raw string) []string {
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// deriveDetectEndpoints maps translate endpoints to their detection
// counterparts by path substitution, e.g. /translate -> /detect.
func deriveDetectEndpoints(endpoints []string) []string {
	out := make([]string, 0, len(endpoints))
	for _, ep := range endpoints {
		out = append(out, strings.Replace(ep, "/translate", "/detect", 1))
	}
	return out
}
