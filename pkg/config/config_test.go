package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestViper(t *testing.T) *viper.Viper {
	t.Helper()
	v := viper.New()
	InitViper(v)
	return v
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadViper(newTestViper(t))
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Host)
	assert.Equal(t, 5000, cfg.Port)
	assert.Equal(t, "fr", cfg.DefaultClientLang)
	assert.True(t, cfg.TranslationEnabled)
	assert.Equal(t, 500, cfg.MaxMessageLength)
	assert.Equal(t, 30*time.Second, cfg.BotInactivity())
	assert.Equal(t, 5*time.Second, cfg.BotSuppress())
	assert.Equal(t, 5*time.Second, cfg.TranslationTimeout())
	assert.Equal(t, []string{
		"https://libretranslate.de/translate",
		"https://translate.astian.org/translate",
		"https://libretranslate.com/translate",
	}, cfg.LibreEndpoints)
	assert.Equal(t, "http://127.0.0.1:8080/v1", cfg.LLMBaseURL)
	assert.Equal(t, "sk-noauth", cfg.LLMAPIKey)
	assert.Equal(t, "qwen2.5-3b-instruct-q5_k_m", cfg.LLMModel)
}

func TestDetectEndpointsDerivedFromTranslate(t *testing.T) {
	cfg, err := LoadViper(newTestViper(t))
	require.NoError(t, err)

	assert.Equal(t, []string{
		"https://libretranslate.de/detect",
		"https://translate.astian.org/detect",
		"https://libretranslate.com/detect",
	}, cfg.LibreDetectEndpoints)
}

func TestDetectEndpointsExplicit(t *testing.T) {
	v := newTestViper(t)
	v.Set("libre_detect_endpoints", "https://example.com/detect , https://other.example/detect")

	cfg, err := LoadViper(v)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"https://example.com/detect",
		"https://other.example/detect",
	}, cfg.LibreDetectEndpoints)
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("DEFAULT_CLIENT_LANG", "en")
	t.Setenv("LINGODESK_MAX_MESSAGE_LENGTH", "120")
	t.Setenv("BOT_INACTIVITY_SEC", "7")
	t.Setenv("TRANSLATION_TIMEOUT_SEC", "2.5")
	t.Setenv("LIBRE_ENDPOINTS", "http://127.0.0.1:6000/translate")

	cfg, err := LoadViper(newTestViper(t))
	require.NoError(t, err)

	assert.Equal(t, "en", cfg.DefaultClientLang)
	assert.Equal(t, 120, cfg.MaxMessageLength)
	assert.Equal(t, 7*time.Second, cfg.BotInactivity())
	assert.Equal(t, 2500*time.Millisecond, cfg.TranslationTimeout())
	assert.Equal(t, []string{"http://127.0.0.1:6000/translate"}, cfg.LibreEndpoints)
	assert.Equal(t, []string{"http://127.0.0.1:6000/detect"}, cfg.LibreDetectEndpoints)
}

func TestNormalizeLang(t *testing.T) {
	v := newTestViper(t)
	v.Set("default_client_lang", "FR-ca")

	cfg, err := LoadViper(v)
	require.NoError(t, err)
	assert.Equal(t, "fr", cfg.DefaultClientLang)
}

func TestValidation(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value interface{}
	}{
		{"bad port", "port", 0},
		{"bad lang", "default_client_lang", "x"},
		{"bad max length", "max_message_length", -1},
		{"bad inactivity", "bot_inactivity_sec", 0},
		{"bad suppress", "bot_suppress_sec", -2},
		{"bad timeout", "translation_timeout_sec", 0},
		{"no endpoints", "libre_endpoints", " , "},
		{"no db path", "db_path", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := newTestViper(t)
			v.Set(tt.key, tt.value)

			_, err := LoadViper(v)
			assert.Error(t, err)
		})
	}
}
