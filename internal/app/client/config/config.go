package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	defaultLogLevel  = "info"
	defaultEnv       = "local"
	defaultConfigDir = ".confsync"
)

// defaultShardURLs - статический список шардов бэкенда. Пользователь
// детерминированно закрепляется за одним из них по хэшу userID.
var defaultShardURLs = []string{
	"https://confsync-shard-0.firebaseio.com",
	"https://confsync-shard-1.firebaseio.com",
	"https://confsync-shard-2.firebaseio.com",
}

type Config struct {
	Env          string   `mapstructure:"app_env"`
	LogLevel     string   `mapstructure:"log_level"`
	ConfigDir    string   `mapstructure:"config_dir"`
	TokenPath    string   `mapstructure:"token_path"`
	QueuePath    string   `mapstructure:"queue_path"`
	ShardURLs    []string `mapstructure:"shard_urls"`
	AnalyticsURL string   `mapstructure:"analytics_url"`
}

// MustLoad загружает конфигурацию клиента
func MustLoad() *Config {
	// Определяем путь к .env файлу (относительно места запуска)
	envPath := ".env"
	if _, err := os.Stat(envPath); os.IsNotExist(err) {
		// Пробуем найти .env в родительской директории
		envPath = "../.env"
	}

	// Загружаем .env файл если существует
	if _, err := os.Stat(envPath); err == nil {
		if err := godotenv.Load(envPath); err != nil {
			fmt.Printf("Ошибка загрузки .env файла: %v\n", err)
		}
	}

	viper.AutomaticEnv()

	// Устанавливаем значения по умолчанию
	viper.SetDefault("APP_ENV", defaultEnv)
	viper.SetDefault("LOG_LEVEL", defaultLogLevel)
	viper.SetDefault("CONFIG_DIR", defaultConfigDir)
	viper.SetDefault("SHARD_URLS", strings.Join(defaultShardURLs, ","))
	viper.SetDefault("ANALYTICS_URL", "")

	// Получаем домашнюю директорию пользователя
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "."
	}

	// Вычисляем пути для хранения данных
	configDir := viper.GetString("CONFIG_DIR")
	if configDir == defaultConfigDir {
		configDir = filepath.Join(homeDir, configDir)
	}

	// Создаем директории если их нет
	if err := os.MkdirAll(configDir, 0700); err != nil {
		fmt.Printf("Ошибка создания директории конфигурации: %v\n", err)
	}

	config := &Config{
		Env:          viper.GetString("APP_ENV"),
		LogLevel:     viper.GetString("LOG_LEVEL"),
		ConfigDir:    configDir,
		TokenPath:    filepath.Join(configDir, "token"),
		QueuePath:    filepath.Join(configDir, "queue.db"),
		ShardURLs:    splitShardURLs(viper.GetString("SHARD_URLS")),
		AnalyticsURL: viper.GetString("ANALYTICS_URL"),
	}

	// Валидация конфигурации
	if err := config.validate(); err != nil {
		panic(fmt.Sprintf("Ошибка конфигурации: %v", err))
	}

	return config
}

func splitShardURLs(raw string) []string {
	var urls []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			urls = append(urls, part)
		}
	}
	return urls
}

func (c *Config) validate() error {
	if len(c.ShardURLs) == 0 {
		return fmt.Errorf("shard_urls не может быть пустым")
	}
	if c.ConfigDir == "" {
		return fmt.Errorf("config_dir не может быть пустым")
	}
	return nil
}

// IsProd проверяет, prod ли окружение
func (c *Config) IsProd() bool {
	return c.Env == "prod"
}

// IsDev проверяет, dev ли окружение
func (c *Config) IsDev() bool {
	return c.Env == "dev"
}

// IsLocal проверяет, local ли окружение
func (c *Config) IsLocal() bool {
	return c.Env == "local" || c.Env == ""
}
