package domain

import (
	"time"

	"github.com/pkg/errors"
)

type Config struct {
	LogLevel    string `mapstructure:"log_level"`
	DatabaseDir string `mapstructure:"database_dir"`
	StagingDir  string `mapstructure:"staging_dir"`

	QuranAPIBase       string `mapstructure:"quran_api_base"`
	TranslationAPIBase string `mapstructure:"translation_api_base"`

	ContentTimeout  time.Duration `mapstructure:"content_timeout"`
	TransferTimeout time.Duration `mapstructure:"transfer_timeout"`
	// RequestTimeout bounds a whole delivery; zero disables it.
	RequestTimeout time.Duration `mapstructure:"request_timeout"`

	// Languages is ordered; the first entry is the default unless DefaultLanguage is set.
	Languages           []string          `mapstructure:"languages"`
	DefaultLanguage     string            `mapstructure:"default_language"`
	TranslationEditions map[string]string `mapstructure:"translation_editions"`

	RecitersFile string `mapstructure:"reciters_file"`
	CaptionsFile string `mapstructure:"captions_file"`

	CoalesceMisses bool    `mapstructure:"coalesce_misses"`
	UploadRate     float64 `mapstructure:"upload_rate"`
	UploadBurst    int     `mapstructure:"upload_burst"`

	DiscordWebhookURL string `mapstructure:"discord_webhook_url"`

	Telegram TelegramConfig `mapstructure:"telegram"`
}

// TelegramConfig holds the user session used for storage-channel uploads.
type TelegramConfig struct {
	APIID          int    `mapstructure:"api_id"`
	APIHash        string `mapstructure:"api_hash"`
	Phone          string `mapstructure:"phone"`
	Password       string `mapstructure:"password"`
	StorageChannel string `mapstructure:"storage_channel"`
	SessionFile    string `mapstructure:"session_file"`
}

// ValidateStorage checks the settings required by commands that upload audio.
func (c *Config) ValidateStorage() error {
	switch {
	case c.Telegram.APIID == 0:
		return errors.New("telegram.api_id is required (set via config.yaml or TILAWA_TELEGRAM_API_ID environment variable)")
	case c.Telegram.APIHash == "":
		return errors.New("telegram.api_hash is required (set via config.yaml or TILAWA_TELEGRAM_API_HASH environment variable)")
	case c.Telegram.Phone == "":
		return errors.New("telegram.phone is required (set via config.yaml or TILAWA_TELEGRAM_PHONE environment variable)")
	case c.Telegram.StorageChannel == "":
		return errors.New("telegram.storage_channel is required (set via config.yaml or TILAWA_TELEGRAM_STORAGE_CHANNEL environment variable)")
	}
	return nil
}
