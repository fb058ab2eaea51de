// cmd/client/cmd/queue/replay.go
package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"confsync/cmd/client/cmd/types"
	"confsync/internal/app/client"
)

var ReplayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Отправить отложенные действия",
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, ok := cmd.Context().Value(types.ClientAppKey).(*client.App)
		if !ok || app == nil {
			return fmt.Errorf("приложение не инициализировано")
		}

		fmt.Println("=== Отправка очереди ===")

		if !app.IsAuthed() {
			return fmt.Errorf("требуется аутентификация. Выполните: confsync auth login")
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), 60*time.Second)
		defer cancel()

		start := time.Now()
		result, err := app.Offline().Replay(ctx)
		if err != nil {
			return fmt.Errorf("ошибка отправки очереди: %w", err)
		}

		duration := time.Since(start)

		fmt.Println()
		color.Green("✅ Отправка завершена!")
		fmt.Printf("Время выполнения: %v\n", duration.Round(time.Millisecond))
		fmt.Printf("Отправлено действий: %d\n", result.Applied)

		if result.Failed > 0 {
			color.Yellow("Не отправлено: %d", result.Failed)
			for i, e := range result.Errors {
				if i < 3 { // Показываем только первые 3 ошибки
					fmt.Printf("  • %s/%s: %s\n", e.Attribute, e.Key, e.Error)
				}
			}
			if len(result.Errors) > 3 {
				fmt.Printf("  ... и еще %d ошибок\n", len(result.Errors)-3)
			}
		}

		stats := app.Offline().Stats()
		fmt.Printf("Всего отправок: %d\n", stats.TotalReplays)
		if !stats.LastSuccessful.IsZero() {
			fmt.Printf("Последняя успешная: %s\n",
				stats.LastSuccessful.Format("2006-01-02 15:04:05"))
		}

		return nil
	},
}
