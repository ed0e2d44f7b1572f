package main

import (
	"fmt"
	"os"
	"sort"
	"time"

	"charm.land/lipgloss/v2"
	"charm.land/lipgloss/v2/table"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/DonaGreenAds/Fluffy-Chats-sub001/internal/token"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show connected destinations and their sync state",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg == nil {
			return fmt.Errorf("config not loaded")
		}

		tokens, err := token.NewFileStore(cfg.Tokens.Path)
		if err != nil {
			return err
		}
		records, err := tokens.List(cmd.Context())
		if err != nil {
			return err
		}

		asYAML, _ := cmd.Flags().GetBool("yaml")
		if asYAML {
			return yaml.NewEncoder(os.Stdout).Encode(statusReport(records))
		}

		fmt.Println(renderStatusTable(records))
		return nil
	},
}

type destinationStatus struct {
	Destination string    `yaml:"destination"`
	Connected   bool      `yaml:"connected"`
	LiveSync    bool      `yaml:"live_sync"`
	Exported    int       `yaml:"exported"`
	LastSyncAt  time.Time `yaml:"last_sync_at,omitempty"`
}

func statusReport(records map[string]*token.Record) []destinationStatus {
	out := make([]destinationStatus, 0, len(records))
	for dest, rec := range records {
		out = append(out, destinationStatus{
			Destination: dest,
			Connected:   rec.AccessToken != "",
			LiveSync:    rec.LiveSync,
			Exported:    rec.ExportedCount,
			LastSyncAt:  rec.LastSyncAt,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Destination < out[j].Destination })
	return out
}

func renderStatusTable(records map[string]*token.Record) string {
	if len(records) == 0 {
		return "No destinations connected"
	}

	purple := lipgloss.Color("99")
	gray := lipgloss.Color("245")

	headerStyle := lipgloss.NewStyle().
		Foreground(purple).
		Bold(true).
		Align(lipgloss.Center).
		Padding(0, 1)
	cellStyle := lipgloss.NewStyle().
		Foreground(gray).
		Padding(0, 1)

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(purple)).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		}).
		Headers("Destination", "Connected", "Live Sync", "Exported", "Last Sync")

	for _, st := range statusReport(records) {
		lastSync := "never"
		if !st.LastSyncAt.IsZero() {
			lastSync = st.LastSyncAt.Local().Format("2006-01-02 15:04")
		}
		t.Row(
			st.Destination,
			yesNo(st.Connected),
			yesNo(st.LiveSync),
			fmt.Sprintf("%d", st.Exported),
			lastSync,
		)
	}

	return t.String()
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}

func init() {
	rootCmd.AddCommand(statusCmd)
	statusCmd.Flags().Bool("yaml", false, "Emit machine-readable YAML instead of a table")
}
