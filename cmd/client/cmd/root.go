// cmd/client/cmd/root.go
package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/exp/slog"

	"confsync/cmd/client/cmd/types"
	"confsync/internal/analytics"
	"confsync/internal/app/client"
	"confsync/internal/app/client/config"
	"confsync/internal/backend/firedb"
	"confsync/internal/utils/logger"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile    string
	cfg        *config.Config
	log        *slog.Logger
	app        *client.App
	debug      bool
	jsonOutput bool
	shardURL   string
)

var rootCmd = &cobra.Command{
	Use:   "confsync",
	Short: "ConfSync - клиент синхронизации данных посетителя конференции",
	Long: `ConfSync — это клиентское приложение посетителя конференции.

Закладки на доклады, отзывы, просмотренные видео и идентификаторы
push-уведомлений синхронизируются между всеми устройствами пользователя
через шардированную базу данных реального времени. Действия, выполненные
без подключения, накапливаются локально и отправляются при следующей
аутентификации.`,
	PersistentPreRunE: setupApp,
	SilenceUsage:      true,
	SilenceErrors:     true,
}

func Execute() {
	err := rootCmd.Execute()

	if app != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		app.Shutdown(ctx)
		cancel()
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Ошибка: %v\n", err)
		os.Exit(1)
	}
}

func setupApp(cmd *cobra.Command, _ []string) error {
	// Загружаем конфигурацию
	var err error
	cfg, err = loadConfig()
	if err != nil {
		return fmt.Errorf("ошибка загрузки конфигурации: %w", err)
	}

	// Переопределяем настройки из флагов командной строки
	if shardURL != "" {
		cfg.ShardURLs = []string{shardURL}
	}
	if debug {
		cfg.Env = "local"
	}

	// Настраиваем логгер
	log = logger.New(cfg.Env)

	tracker := analytics.Tracker(analytics.Noop{})
	if cfg.AnalyticsURL != "" {
		tracker = analytics.NewHTTPTracker(cfg.AnalyticsURL, log)
	}

	// Создаем приложение
	app, err = client.New(cfg, log, firedb.NewClient(log), client.WithTracker(tracker))
	if err != nil {
		return fmt.Errorf("ошибка инициализации приложения: %w", err)
	}

	// Пробуем войти по сохраненным учетным данным. Неудача не фатальна:
	// команды записи откладывают действия в локальную очередь.
	if creds, err := app.LoadCredentials(); err == nil && creds != nil {
		authCtx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
		if err := app.Auth(authCtx, creds.UserID, creds.AccessToken); err != nil {
			log.Warn("Не удалось войти по сохраненному токену", "error", err)
		}
		cancel()
	}

	ctx := context.WithValue(cmd.Context(), types.ClientAppKey, app)
	ctx = context.WithValue(ctx, types.ConfigKey, cfg)
	cmd.SetContext(ctx)

	return nil
}

func loadConfig() (*config.Config, error) {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		// Ищем конфиг в стандартных местах
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}

		configDir := filepath.Join(home, ".confsync")
		viper.AddConfigPath(configDir)
		viper.AddConfigPath(".")
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		// Конфиг не найден, используем значения по умолчанию
	}

	// Загружаем конфигурацию через стандартный метод
	return config.MustLoad(), nil
}

func init() {
	cobra.OnInitialize()

	// Глобальные флаги
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "конфигурационный файл")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "включить отладочный режим")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "вывод в формате JSON")
	rootCmd.PersistentFlags().StringVar(&shardURL, "shard", "", "URL шарда (отключает выбор по хешу)")

	// Команды будут добавлены в init() соответствующих файлов
}
