package cli

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/mnemo/internal/ui/tui"
)

func newBrowseCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "browse",
		Short: "Browse and delete memories interactively",
		Args:  cobra.NoArgs,
		RunE: withApp(opts, func(cmd *cobra.Command, a *app, args []string) error {
			m, err := a.openMemory()
			if err != nil {
				return err
			}

			program := tea.NewProgram(tui.NewModel(m), tea.WithAltScreen(), tea.WithContext(cmd.Context()))
			a.bus.SubscribeAll(tui.NewTUI(program).Notify)

			_, err = program.Run()
			return err
		}),
	}
}
