package config

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/varoOP/tilawa/internal/domain"
	"github.com/varoOP/tilawa/internal/logger"
)

// EnvPrefix is the prefix of every environment variable the config reads
const EnvPrefix = "TILAWA"

// SetDefaults registers every key so environment variables are picked up
// even when no config file mentions them.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "info")
	v.SetDefault("database_dir", ".")
	v.SetDefault("staging_dir", "")

	v.SetDefault("quran_api_base", "https://quranapi.pages.dev/api")
	v.SetDefault("translation_api_base", "https://api.alquran.cloud/v1")
	v.SetDefault("content_timeout", 15*time.Second)
	v.SetDefault("transfer_timeout", 300*time.Second)
	v.SetDefault("request_timeout", time.Duration(0))

	v.SetDefault("languages", []string{"ru", "uz"})
	v.SetDefault("default_language", "")
	v.SetDefault("translation_editions", map[string]string{
		"ru": "ru.kuliev",
		"uz": "uz.sodik",
	})

	v.SetDefault("reciters_file", "")
	v.SetDefault("captions_file", "")

	v.SetDefault("coalesce_misses", true)
	v.SetDefault("upload_rate", 1.0)
	v.SetDefault("upload_burst", 2)

	v.SetDefault("discord_webhook_url", "")

	v.SetDefault("telegram.api_id", 0)
	v.SetDefault("telegram.api_hash", "")
	v.SetDefault("telegram.phone", "")
	v.SetDefault("telegram.password", "")
	v.SetDefault("telegram.storage_channel", "")
	v.SetDefault("telegram.session_file", "")
}

// Load loads configuration from multiple sources:
// 1. Config file (config.yaml, optional)
// 2. Environment variables (TILAWA_*)
func Load() (*domain.Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom reads and validates the configuration held by v.
func LoadFrom(v *viper.Viper) (*domain.Config, error) {
	SetDefaults(v)

	cfg := &domain.Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	for i, lang := range cfg.Languages {
		cfg.Languages[i] = strings.ToLower(strings.TrimSpace(lang))
	}
	if cfg.DefaultLanguage == "" && len(cfg.Languages) > 0 {
		cfg.DefaultLanguage = cfg.Languages[0]
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func validate(cfg *domain.Config) error {
	if _, err := logger.ParseLevel(cfg.LogLevel); err != nil {
		return err
	}

	if len(cfg.Languages) == 0 {
		return fmt.Errorf("languages must list at least one language")
	}
	if !slices.Contains(cfg.Languages, cfg.DefaultLanguage) {
		return fmt.Errorf("default_language %q is not one of languages %v", cfg.DefaultLanguage, cfg.Languages)
	}

	if cfg.ContentTimeout < 0 || cfg.TransferTimeout < 0 || cfg.RequestTimeout < 0 {
		return fmt.Errorf("timeouts must not be negative")
	}
	if cfg.UploadRate < 0 || cfg.UploadBurst < 0 {
		return fmt.Errorf("upload_rate and upload_burst must not be negative")
	}

	if cfg.QuranAPIBase == "" {
		return fmt.Errorf("quran_api_base is required (set via config.yaml or TILAWA_QURAN_API_BASE environment variable)")
	}
	if cfg.TranslationAPIBase == "" {
		return fmt.Errorf("translation_api_base is required (set via config.yaml or TILAWA_TRANSLATION_API_BASE environment variable)")
	}

	return nil
}
