package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"confsync/cmd/client/cmd/types"
	"confsync/internal/app/client"
	"confsync/internal/domain/userdata"
)

// NotifyCmd - родительская команда для идентификаторов push-уведомлений
var NotifyCmd = &cobra.Command{
	Use:   "notify",
	Short: "Идентификаторы push-уведомлений",
}

var AddCmd = &cobra.Command{
	Use:   "add <registration-id>",
	Short: "Зарегистрировать идентификатор устройства",
	Long: `Добавляет идентификатор push-регистрации текущего устройства к
множеству устройств пользователя. Повторное добавление того же
идентификатора безвредно.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, ok := cmd.Context().Value(types.ClientAppKey).(*client.App)
		if !ok || app == nil {
			return fmt.Errorf("приложение не инициализировано")
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()

		err := app.AddNotificationID(ctx, args[0])
		if errors.Is(err, userdata.ErrNotAuthenticated) {
			if err := app.Offline().QueueNotificationID(args[0]); err != nil {
				return fmt.Errorf("ошибка постановки в очередь: %w", err)
			}
			color.Yellow("⚠️  Нет подключения, действие отложено в очередь")
			return nil
		}
		if err != nil {
			return fmt.Errorf("ошибка регистрации идентификатора: %w", err)
		}

		color.Green("✅ Идентификатор зарегистрирован: %s", args[0])
		return nil
	},
}
