package config

import "path/filepath"

func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Port:        8000,
			WebhookPath: "/",
		},
		WhatsApp: WhatsAppConfig{
			AccessToken:   "${WPP_TOKEN}",
			PhoneNumberID: "${PHONE_NUMBER_ID}",
			VerifyToken:   "${VERIFICATION_TOKEN}",
			SendDelayMs:   50,
		},
		Storage: StorageConfig{
			DBPath: filepath.Join(DefaultConfigDir(), "zapdesk.db"),
		},
		Archive: ArchiveConfig{
			Dir: filepath.Join(DefaultConfigDir(), "payloads"),
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}
