// cmd/client/cmd/auth/status.go
package auth

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"confsync/cmd/client/cmd/types"
	"confsync/internal/app/client"
)

var StatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Состояние авторизации",
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, ok := cmd.Context().Value(types.ClientAppKey).(*client.App)
		if !ok || app == nil {
			return fmt.Errorf("приложение не инициализировано")
		}

		fmt.Println("=== Состояние авторизации ===")

		if app.IsAuthed() {
			userID := app.UserID()
			color.Green("✅ Выполнен вход: %s", userID)
			fmt.Printf("Шард: %s\n", app.SelectShard(userID))
			fmt.Printf("Смещение серверных часов: %d мс\n", app.ClockOffset())
		} else {
			color.Yellow("❌ Вход не выполнен")
		}

		if pending, err := app.Offline().Pending(); err == nil {
			fmt.Printf("Отложенных действий: %d\n", len(pending))
		}

		return nil
	},
}
