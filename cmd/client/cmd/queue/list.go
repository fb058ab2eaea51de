// cmd/client/cmd/queue/list.go
package queue

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"confsync/cmd/client/cmd/types"
	"confsync/internal/app/client"
	"confsync/internal/domain/userdata"
)

var listFormat string

var ListCmd = &cobra.Command{
	Use:   "list",
	Short: "Показать очередь",
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, ok := cmd.Context().Value(types.ClientAppKey).(*client.App)
		if !ok || app == nil {
			return fmt.Errorf("приложение не инициализировано")
		}

		pending, err := app.Offline().Pending()
		if err != nil {
			return fmt.Errorf("ошибка чтения очереди: %w", err)
		}

		switch listFormat {
		case "json":
			return printActionsJSON(pending)
		default:
			return printActionsTable(pending)
		}
	},
}

func printActionsTable(actions []*userdata.PendingAction) error {
	if len(actions) == 0 {
		fmt.Println("Очередь пуста")
		return nil
	}

	fmt.Printf("Отложенных действий: %d\n\n", len(actions))

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tАТРИБУТ\tКЛЮЧ\tЛОКАЛЬНОЕ ВРЕМЯ")
	for _, a := range actions {
		ts := "-"
		if a.LocalTimestamp > 0 {
			ts = time.UnixMilli(a.LocalTimestamp).Format("2006-01-02 15:04:05")
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", a.ID, a.Attribute, a.Key, ts)
	}
	return w.Flush()
}

func printActionsJSON(actions []*userdata.PendingAction) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(actions)
}

func init() {
	ListCmd.Flags().StringVar(&listFormat, "format", "table", "формат вывода (table, json)")
}
