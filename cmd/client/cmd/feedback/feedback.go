package feedback

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

// FeedbackCmd - родительская команда для отзывов о докладах
var FeedbackCmd = &cobra.Command{
	Use:   "feedback",
	Short: "Отзывы о докладах",
}

var RateCmd = &cobra.Command{
	Use:   "rate <session-uuid>",
	Short: "Отметить доклад как оцененный",
	Long: `Отмечает, что пользователь оставил отзыв о докладе. Сам текст
отзыва собирает отдельная система; здесь хранится только факт оценки,
чтобы не предлагать доклад повторно.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, ok := cmd.Context().Value(types.ClientAppKey).(*client.App)
		if !ok || app == nil {
			return fmt.Errorf("приложение не инициализировано")
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()

		err := app.MarkSessionRated(ctx, args[0], 0)
		if errors.Is(err, userdata.ErrNotAuthenticated) {
			if err := app.Offline().QueueFeedback(args[0], time.Now().UnixMilli()); err != nil {
				return fmt.Errorf("ошибка постановки в очередь: %w", err)
			}
			color.Yellow("⚠️  Нет подключения, действие отложено в очередь")
			return nil
		}
		if err != nil {
			return fmt.Errorf("ошибка записи отзыва: %w", err)
		}

		color.Green("✅ Доклад отмечен как оцененный: %s", args[0])
		return nil
	},
}
