// cmd/client/cmd/auth/logout.go
package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"confsync/cmd/client/cmd/types"
	"confsync/internal/app/client"
)

var LogoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Выйти и забыть сохраненный токен",
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, ok := cmd.Context().Value(types.ClientAppKey).(*client.App)
		if !ok || app == nil {
			return fmt.Errorf("приложение не инициализировано")
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
		defer cancel()

		if err := app.UnAuth(ctx); err != nil {
			return fmt.Errorf("ошибка выхода: %w", err)
		}

		if err := app.ClearCredentials(); err != nil {
			return fmt.Errorf("ошибка удаления токена: %w", err)
		}

		color.Green("✅ Выход выполнен")
		return nil
	},
}
