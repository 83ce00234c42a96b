package cli

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"quickroot/ui"
)

// NewRootCmd builds the quickroot command tree. Without a subcommand it
// starts the interactive UI.
func NewRootCmd(open OpenFunc) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "quickroot",
		Short: "Store shell snippets and run them as root",
		Long: `quickroot keeps a list of named shell scripts, runs them with elevated
privileges (su or sudo), and imports or exports the list as JSON.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: withSession(open, func(cmd *cobra.Command, args []string, s *Session) error {
			app := ui.NewApp(s.Repo, s.Gateway, s.Flow)
			p := tea.NewProgram(app, tea.WithAltScreen())
			if _, err := p.Run(); err != nil {
				return fmt.Errorf("error running app: %w", err)
			}
			return nil
		}),
	}

	rootCmd.AddCommand(listCmd(open))
	rootCmd.AddCommand(addCmd(open))
	rootCmd.AddCommand(deleteCmd(open))
	rootCmd.AddCommand(runCmd(open))
	rootCmd.AddCommand(exportCmd(open))
	rootCmd.AddCommand(importCmd(open))

	return rootCmd
}

type sessionRunE func(cmd *cobra.Command, args []string, s *Session) error

func withSession(open OpenFunc, fn sessionRunE) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		s, err := open()
		if err != nil {
			return err
		}
		defer s.Close()
		return fn(cmd, args, s)
	}
}
