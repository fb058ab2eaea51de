// cmd/client/cmd/watch/watch.go
package watch

import (
	"encoding/json"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"confsync/cmd/client/cmd/types"
	"confsync/internal/app/client"
)

var WatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Следить за изменениями закладок и отзывов",
	Long: `Подписывается на изменения закладок и отзывов пользователя и
печатает каждое событие по мере прихода. Изменения, сделанные на других
устройствах, появляются здесь в реальном времени. Остановка - Ctrl+C.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, ok := cmd.Context().Value(types.ClientAppKey).(*client.App)
		if !ok || app == nil {
			return fmt.Errorf("приложение не инициализировано")
		}

		if !app.IsAuthed() {
			return fmt.Errorf("требуется аутентификация. Выполните: confsync auth login")
		}

		err := app.SubscribeToSessionUpdates(func(key string, value json.RawMessage) {
			printUpdate("session", key, value)
		})
		if err != nil {
			return fmt.Errorf("ошибка подписки на закладки: %w", err)
		}

		err = app.SubscribeToFeedbackUpdates(func(key string, value json.RawMessage) {
			printUpdate("feedback", key, value)
		})
		if err != nil {
			return fmt.Errorf("ошибка подписки на отзывы: %w", err)
		}

		fmt.Println("Подписка активна, ожидание событий... (Ctrl+C для выхода)")

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		<-ctx.Done()

		fmt.Println()
		fmt.Println("Остановлено")
		return nil
	},
}

func printUpdate(kind, key string, value json.RawMessage) {
	ts := color.New(color.FgCyan).SprintFunc()
	if value == nil {
		fmt.Printf("%s %s удалено\n", ts(kind), key)
		return
	}
	fmt.Printf("%s %s = %s\n", ts(kind), key, string(value))
}
