// cmd/client/cmd/init.go
package cmd

import (
	"confsync/cmd/client/cmd/auth"
	"confsync/cmd/client/cmd/feedback"
	"confsync/cmd/client/cmd/notify"
	"confsync/cmd/client/cmd/queue"
	"confsync/cmd/client/cmd/session"
	"confsync/cmd/client/cmd/video"
	"confsync/cmd/client/cmd/watch"
)

func init() {
	// Добавляем команды аутентификации
	rootCmd.AddCommand(auth.AuthCmd)
	auth.AuthCmd.AddCommand(auth.LoginCmd)
	auth.AuthCmd.AddCommand(auth.LogoutCmd)
	auth.AuthCmd.AddCommand(auth.StatusCmd)

	// Команды работы с данными посетителя
	rootCmd.AddCommand(session.SessionCmd)
	session.SessionCmd.AddCommand(session.BookmarkCmd)
	session.SessionCmd.AddCommand(session.UnbookmarkCmd)

	rootCmd.AddCommand(feedback.FeedbackCmd)
	feedback.FeedbackCmd.AddCommand(feedback.RateCmd)

	rootCmd.AddCommand(video.VideoCmd)
	video.VideoCmd.AddCommand(video.ViewedCmd)

	rootCmd.AddCommand(notify.NotifyCmd)
	notify.NotifyCmd.AddCommand(notify.AddCmd)

	rootCmd.AddCommand(queue.QueueCmd)
	queue.QueueCmd.AddCommand(queue.ListCmd)
	queue.QueueCmd.AddCommand(queue.ReplayCmd)

	rootCmd.AddCommand(watch.WatchCmd)
}
