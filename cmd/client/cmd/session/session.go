package session

import (
	"github.com/spf13/cobra"
)

// SessionCmd - родительская команда для закладок на доклады
var SessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Закладки на доклады",
	Long:  `Добавление и снятие закладок на доклады конференции.`,
}
