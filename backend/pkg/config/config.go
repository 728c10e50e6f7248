package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	apperrors "texvoice/backend/pkg/errors"

	"github.com/joho/godotenv"
)

// Config holds the process-level configuration read from the environment.
// The guild allowlist, speaker assignments and pronunciation dictionary live
// in their own JSON documents (see internal/settings).
type Config struct {
	// App
	Env      string
	LogLevel string

	// Discord
	DiscordBotToken     string // Overrides the token stored in the bot settings document
	VoiceConnectTimeout time.Duration

	// Persisted documents
	BotSettingsPath  string
	UserSettingsPath string
	DictionaryPath   string

	// Speech engine
	VoicevoxURL          string
	VoicevoxTimeout      time.Duration
	SynthesisConcurrency int

	// Audio
	FFmpegPath string

	// Speech limits
	MaxSpeechChars       int
	MaxPendingUtterances int

	// Admin HTTP server (empty disables it)
	AdminAddr string
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Try to load .env file, but don't fail if it doesn't exist
	_ = godotenv.Load()

	cfg := &Config{
		Env:                  getEnv("ENV", "development"),
		LogLevel:             getEnv("LOG_LEVEL", ""),
		DiscordBotToken:      getEnv("DISCORD_BOT_TOKEN", ""),
		VoiceConnectTimeout:  time.Duration(getEnvInt("VOICE_CONNECT_TIMEOUT", 10)) * time.Second,
		BotSettingsPath:      getEnv("BOT_SETTINGS_PATH", "botSetting.json"),
		UserSettingsPath:     getEnv("USER_SETTINGS_PATH", "userSetting.json"),
		DictionaryPath:       getEnv("DICTIONARY_PATH", "dict.json"),
		VoicevoxURL:          strings.TrimRight(getEnv("VOICEVOX_URL", "http://127.0.0.1:50021"), "/"),
		VoicevoxTimeout:      time.Duration(getEnvInt("VOICEVOX_TIMEOUT", 60)) * time.Second,
		SynthesisConcurrency: getEnvInt("SYNTHESIS_CONCURRENCY", 2),
		FFmpegPath:           getEnv("FFMPEG_PATH", "ffmpeg"),
		MaxSpeechChars:       getEnvInt("MAX_SPEECH_CHARS", 50),
		MaxPendingUtterances: getEnvInt("MAX_PENDING_UTTERANCES", 64),
		AdminAddr:            os.Getenv("ADMIN_ADDR"),
	}
	if _, set := os.LookupEnv("ADMIN_ADDR"); !set {
		cfg.AdminAddr = ":8080"
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that required configuration values are set
func (c *Config) Validate() error {
	if c.BotSettingsPath == "" {
		return apperrors.NewConfigMissingRequired("BOT_SETTINGS_PATH")
	}
	if c.UserSettingsPath == "" {
		return apperrors.NewConfigMissingRequired("USER_SETTINGS_PATH")
	}
	if c.DictionaryPath == "" {
		return apperrors.NewConfigMissingRequired("DICTIONARY_PATH")
	}
	if c.VoicevoxURL == "" {
		return apperrors.NewConfigMissingRequired("VOICEVOX_URL")
	}
	if !strings.HasPrefix(c.VoicevoxURL, "http://") && !strings.HasPrefix(c.VoicevoxURL, "https://") {
		return apperrors.NewConfigValidationFailed("VOICEVOX_URL", "must be an http(s) URL")
	}
	if c.MaxSpeechChars <= 0 {
		return apperrors.NewConfigValidationFailed("MAX_SPEECH_CHARS", "must be positive")
	}
	if c.SynthesisConcurrency <= 0 {
		return apperrors.NewConfigValidationFailed("SYNTHESIS_CONCURRENCY", "must be positive")
	}
	if c.MaxPendingUtterances <= 0 {
		return apperrors.NewConfigValidationFailed("MAX_PENDING_UTTERANCES", "must be positive")
	}
	// The Discord token may come from the bot settings document instead
	return nil
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var result int
		if _, err := fmt.Sscanf(value, "%d", &result); err == nil {
			return result
		}
	}
	return defaultValue
}
