// cmd/client/cmd/auth/login.go
package auth

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"confsync/cmd/client/cmd/types"
	"confsync/internal/app/client"
)

var (
	rememberMe bool
)

var LoginCmd = &cobra.Command{
	Use:   "login",
	Short: "Войти на шард пользователя",
	Long: `Аутентификация на шарде базы данных реального времени.

Шард выбирается детерминированно по идентификатору пользователя.
После входа отложенные действия из локальной очереди отправляются
автоматически.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, ok := cmd.Context().Value(types.ClientAppKey).(*client.App)
		if !ok || app == nil {
			return fmt.Errorf("приложение не инициализировано")
		}

		fmt.Println("=== Вход в систему ===")
		fmt.Println()

		// Запрашиваем идентификатор пользователя
		fmt.Print("Идентификатор пользователя: ")
		var userID string
		_, _ = fmt.Scanln(&userID)

		// Запрашиваем access-токен
		fmt.Print("Access-токен: ")
		token, err := term.ReadPassword(int(os.Stdin.Fd()))
		if err != nil {
			return fmt.Errorf("ошибка чтения токена: %w", err)
		}
		fmt.Println()

		fmt.Printf("Шард пользователя: %s\n", app.SelectShard(userID))

		// Выполняем вход
		fmt.Println("Аутентификация...")
		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()

		if err := app.Auth(ctx, userID, string(token)); err != nil {
			return fmt.Errorf("ошибка аутентификации: %w", err)
		}

		// Сохраняем учетные данные
		if rememberMe {
			if err := app.SaveCredentials(userID, string(token)); err != nil {
				return fmt.Errorf("ошибка сохранения токена: %w", err)
			}
		}

		fmt.Println()
		color.Green("✅ Вход выполнен успешно!")

		if pending, err := app.Offline().Pending(); err == nil && len(pending) > 0 {
			fmt.Printf("Отложенных действий в очереди: %d (отправляются в фоне)\n", len(pending))
		}

		return nil
	},
}

func init() {
	LoginCmd.Flags().BoolVarP(&rememberMe, "remember", "r", false, "запомнить меня (сохранить токен)")
}
