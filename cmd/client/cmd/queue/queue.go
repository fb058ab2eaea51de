package queue

import (
	"github.com/spf13/cobra"
)

// QueueCmd - родительская команда локальной очереди отложенных действий
var QueueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Локальная очередь отложенных действий",
	Long: `Действия, выполненные без подключения, накапливаются в локальной
очереди и отправляются при следующей аутентификации. Команда позволяет
просматривать очередь и запускать отправку вручную.`,
}
