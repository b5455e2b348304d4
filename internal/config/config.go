// Package config loads voicedesk configuration from a YAML file with
// environment variable overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type ServerConfig struct {
	Bind string `yaml:"bind"`
	Port int    `yaml:"port"`
}

type SessionConfig struct {
	MaxAudioChunks           int `yaml:"max_audio_chunks"`
	MaxHistoryTurns          int `yaml:"max_history_turns"`
	HistoryRetainPrefix      int `yaml:"history_retain_prefix"`
	IdleTimeoutMinutes       int `yaml:"idle_timeout_minutes"`
	ProcessingTimeoutSeconds int `yaml:"processing_timeout_seconds"`
}

type STTConfig struct {
	Mode     string `yaml:"mode"` // mock, openai
	BaseURL  string `yaml:"base_url"`
	APIKey   string `yaml:"api_key"`
	Model    string `yaml:"model"`
	Language string `yaml:"language"`
}

type LLMConfig struct {
	Mode        string  `yaml:"mode"` // mock, openai
	BaseURL     string  `yaml:"base_url"`
	APIKey      string  `yaml:"api_key"`
	Model       string  `yaml:"model"`
	MaxTokens   int     `yaml:"max_tokens"`
	Temperature float64 `yaml:"temperature"`
}

type TTSConfig struct {
	Mode         string `yaml:"mode"` // mock, elevenlabs
	APIKey       string `yaml:"api_key"`
	VoiceID      string `yaml:"voice_id"`
	ModelID      string `yaml:"model_id"`
	OutputFormat string `yaml:"output_format"`
}

type ShopConfig struct {
	DBPath string `yaml:"db_path"`
}

type Config struct {
	LogLevel string        `yaml:"log_level"`
	Server   ServerConfig  `yaml:"server"`
	Session  SessionConfig `yaml:"session"`
	STT      STTConfig     `yaml:"stt"`
	LLM      LLMConfig     `yaml:"llm"`
	TTS      TTSConfig     `yaml:"tts"`
	Shop     ShopConfig    `yaml:"shop"`
}

// Default returns the configuration used when no file or overrides are present.
func Default() Config {
	return Config{
		LogLevel: "info",
		Server: ServerConfig{
			Bind: "0.0.0.0",
			Port: 8090,
		},
		Session: SessionConfig{
			MaxAudioChunks:           1000,
			MaxHistoryTurns:          20,
			HistoryRetainPrefix:      2,
			IdleTimeoutMinutes:       30,
			ProcessingTimeoutSeconds: 60,
		},
		STT: STTConfig{
			Mode:     "openai",
			BaseURL:  "https://api.openai.com/v1",
			Model:    "whisper-1",
			Language: "en",
		},
		LLM: LLMConfig{
			Mode:        "openai",
			BaseURL:     "https://api.openai.com/v1",
			Model:       "gpt-4o-mini",
			MaxTokens:   1024,
			Temperature: 0.7,
		},
		TTS: TTSConfig{
			Mode:         "elevenlabs",
			VoiceID:      "sarah",
			ModelID:      "eleven_turbo_v2_5",
			OutputFormat: "pcm_24000",
		},
		Shop: ShopConfig{
			DBPath: "./data/voicedesk.db",
		},
	}
}

// Load reads the config file at path (if non-empty), applies environment
// overrides, and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config file: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	if err := validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	overrideString(&cfg.LogLevel, "VOICEDESK_LOG_LEVEL")
	overrideString(&cfg.Server.Bind, "VOICEDESK_SERVER_BIND")
	overrideInt(&cfg.Server.Port, "VOICEDESK_SERVER_PORT")
	overrideInt(&cfg.Session.MaxAudioChunks, "VOICEDESK_SESSION_MAX_AUDIO_CHUNKS")
	overrideInt(&cfg.Session.MaxHistoryTurns, "VOICEDESK_SESSION_MAX_HISTORY_TURNS")
	overrideInt(&cfg.Session.HistoryRetainPrefix, "VOICEDESK_SESSION_HISTORY_RETAIN_PREFIX")
	overrideInt(&cfg.Session.IdleTimeoutMinutes, "VOICEDESK_SESSION_IDLE_TIMEOUT_MINUTES")
	overrideInt(&cfg.Session.ProcessingTimeoutSeconds, "VOICEDESK_SESSION_PROCESSING_TIMEOUT_SECONDS")
	overrideString(&cfg.STT.Mode, "VOICEDESK_STT_MODE")
	overrideString(&cfg.STT.BaseURL, "VOICEDESK_STT_BASE_URL")
	overrideString(&cfg.STT.APIKey, "VOICEDESK_STT_API_KEY")
	overrideString(&cfg.STT.Model, "VOICEDESK_STT_MODEL")
	overrideString(&cfg.STT.Language, "VOICEDESK_STT_LANGUAGE")
	overrideString(&cfg.LLM.Mode, "VOICEDESK_LLM_MODE")
	overrideString(&cfg.LLM.BaseURL, "VOICEDESK_LLM_BASE_URL")
	overrideString(&cfg.LLM.APIKey, "VOICEDESK_LLM_API_KEY")
	overrideString(&cfg.LLM.Model, "VOICEDESK_LLM_MODEL")
	overrideInt(&cfg.LLM.MaxTokens, "VOICEDESK_LLM_MAX_TOKENS")
	overrideFloat(&cfg.LLM.Temperature, "VOICEDESK_LLM_TEMPERATURE")
	overrideString(&cfg.TTS.Mode, "VOICEDESK_TTS_MODE")
	overrideString(&cfg.TTS.APIKey, "VOICEDESK_TTS_API_KEY")
	overrideString(&cfg.TTS.VoiceID, "VOICEDESK_TTS_VOICE_ID")
	overrideString(&cfg.TTS.ModelID, "VOICEDESK_TTS_MODEL_ID")
	overrideString(&cfg.TTS.OutputFormat, "VOICEDESK_TTS_OUTPUT_FORMAT")
	overrideString(&cfg.Shop.DBPath, "VOICEDESK_SHOP_DB_PATH")

	// Fall back to the conventional provider keys when the voicedesk-specific
	// ones are not set.
	if cfg.STT.APIKey == "" {
		cfg.STT.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.LLM.APIKey == "" {
		cfg.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.TTS.APIKey == "" {
		cfg.TTS.APIKey = os.Getenv("ELEVENLABS_API_KEY")
	}
}

func overrideString(target *string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok && strings.TrimSpace(value) != "" {
		*target = value
	}
}

func overrideInt(target *int, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			*target = parsed
		}
	}
}

func overrideFloat(target *float64, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			*target = parsed
		}
	}
}

func validate(cfg Config) error {
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return errors.New("server.port must be between 1 and 65535")
	}
	if cfg.Session.MaxAudioChunks <= 0 {
		return errors.New("session.max_audio_chunks must be positive")
	}
	if cfg.Session.MaxHistoryTurns <= 0 {
		return errors.New("session.max_history_turns must be positive")
	}
	if cfg.Session.HistoryRetainPrefix < 0 {
		return errors.New("session.history_retain_prefix must be >= 0")
	}
	if cfg.Session.HistoryRetainPrefix >= cfg.Session.MaxHistoryTurns {
		return errors.New("session.history_retain_prefix must be smaller than max_history_turns")
	}
	if cfg.Session.IdleTimeoutMinutes <= 0 {
		return errors.New("session.idle_timeout_minutes must be positive")
	}
	if cfg.Session.ProcessingTimeoutSeconds <= 0 {
		return errors.New("session.processing_timeout_seconds must be positive")
	}
	switch cfg.STT.Mode {
	case "mock", "openai":
	default:
		return errors.New("stt.mode must be one of mock|openai")
	}
	switch cfg.LLM.Mode {
	case "mock", "openai":
	default:
		return errors.New("llm.mode must be one of mock|openai")
	}
	switch cfg.TTS.Mode {
	case "mock", "elevenlabs":
	default:
		return errors.New("tts.mode must be one of mock|elevenlabs")
	}
	if cfg.TTS.Mode == "elevenlabs" && cfg.TTS.VoiceID == "" {
		return errors.New("tts.voice_id must be set when mode=elevenlabs")
	}
	if cfg.Shop.DBPath == "" {
		return errors.New("shop.db_path must not be empty")
	}
	return nil
}
