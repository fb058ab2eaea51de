package video

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

// VideoCmd - родительская команда для просмотренных видео
var VideoCmd = &cobra.Command{
	Use:   "video",
	Short: "Просмотренные видеозаписи докладов",
}

var ViewedCmd = &cobra.Command{
	Use:   "viewed <video-id>",
	Short: "Отметить видео как просмотренное",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, ok := cmd.Context().Value(types.ClientAppKey).(*client.App)
		if !ok || app == nil {
			return fmt.Errorf("приложение не инициализировано")
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()

		err := app.MarkVideoAsViewed(ctx, args[0], 0)
		if errors.Is(err, userdata.ErrNotAuthenticated) {
			if err := app.Offline().QueueVideo(args[0], time.Now().UnixMilli()); err != nil {
				return fmt.Errorf("ошибка постановки в очередь: %w", err)
			}
			color.Yellow("⚠️  Нет подключения, действие отложено в очередь")
			return nil
		}
		if err != nil {
			return fmt.Errorf("ошибка записи отметки: %w", err)
		}

		color.Green("✅ Видео отмечено как просмотренное: %s", args[0])
		return nil
	},
}
