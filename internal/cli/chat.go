package cli

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"schemeadvisor/internal/tui"
)

func newChatCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Interactive question-and-answer session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			composer, session, err := newComposer(cmd, a)
			if err != nil {
				return err
			}
			m := session.Manifest()
			summary := fmt.Sprintf("%d passages indexed with %s", m.Rows, m.ModelID)
			if m.Rows == 0 {
				summary = "index is empty; run `schemeadvisor index` first"
			}
			program := tea.NewProgram(tui.New(composer, summary), tea.WithAltScreen())
			_, err = program.Run()
			return err
		},
	}
}
