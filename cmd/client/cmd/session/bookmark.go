// cmd/client/cmd/session/bookmark.go
package session

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

var BookmarkCmd = &cobra.Command{
	Use:   "bookmark <session-uuid>",
	Short: "Добавить закладку на доклад",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return toggle(cmd, args[0], true)
	},
}

var UnbookmarkCmd = &cobra.Command{
	Use:   "unbookmark <session-uuid>",
	Short: "Снять закладку с доклада",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return toggle(cmd, args[0], false)
	},
}

func toggle(cmd *cobra.Command, sessionUUID string, bookmarked bool) error {
	app, ok := cmd.Context().Value(types.ClientAppKey).(*client.App)
	if !ok || app == nil {
		return fmt.Errorf("приложение не инициализировано")
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	err := app.ToggleSession(ctx, sessionUUID, bookmarked, 0)
	if errors.Is(err, userdata.ErrNotAuthenticated) {
		// Без подключения действие откладывается с локальным временем
		if err := app.Offline().QueueBookmark(sessionUUID, bookmarked, time.Now().UnixMilli()); err != nil {
			return fmt.Errorf("ошибка постановки в очередь: %w", err)
		}
		color.Yellow("⚠️  Нет подключения, действие отложено в очередь")
		return nil
	}
	if err != nil {
		return fmt.Errorf("ошибка записи закладки: %w", err)
	}

	if bookmarked {
		color.Green("✅ Закладка добавлена: %s", sessionUUID)
	} else {
		color.Green("✅ Закладка снята: %s", sessionUUID)
	}
	return nil
}
