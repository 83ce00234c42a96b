package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"quickroot/model"
	"quickroot/repo"
	"quickroot/runner"
	"quickroot/transfer"
)

var (
	okMark   = color.New(color.FgGreen).Sprint("✓")
	failMark = color.New(color.FgRed).Sprint("✗")
)

func listCmd(open OpenFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored commands",
		Args:  cobra.NoArgs,
		RunE: withSession(open, func(cmd *cobra.Command, args []string, s *Session) error {
			commands := s.Repo.List()
			out := cmd.OutOrStdout()
			if len(commands) == 0 {
				fmt.Fprintln(out, "No commands stored.")
				return nil
			}

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tSCRIPT")
			for _, c := range commands {
				script := strings.ReplaceAll(c.Script, "\n", "; ")
				fmt.Fprintf(w, "%d\t%s\t%s\n", c.ID, c.Name, script)
			}
			return w.Flush()
		}),
	}
}

func addCmd(open OpenFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "add <name> [script]",
		Short: "Add a command",
		Args:  cobra.RangeArgs(1, 2),
		RunE: withSession(open, func(cmd *cobra.Command, args []string, s *Session) error {
			script := ""
			if len(args) == 2 {
				script = args[1]
			}
			c, err := s.Repo.Add(args[0], script)
			if err != nil {
				return fmt.Errorf("failed to add command: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s Added %s (id %d)\n", okMark, c.Name, c.ID)
			return nil
		}),
	}
}

func deleteCmd(open OpenFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id|name>",
		Short: "Delete a command",
		Args:  cobra.ExactArgs(1),
		RunE: withSession(open, func(cmd *cobra.Command, args []string, s *Session) error {
			c, err := resolve(s, args[0])
			if err != nil {
				return err
			}
			removed, err := s.Repo.Delete(c.ID)
			if err != nil {
				return fmt.Errorf("failed to delete command: %w", err)
			}
			if !removed {
				return fmt.Errorf("%w: %s", repo.ErrNotFound, args[0])
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s Deleted %s\n", okMark, c.Name)
			return nil
		}),
	}
}

func runCmd(open OpenFunc) *cobra.Command {
	var params map[string]string
	cmd := &cobra.Command{
		Use:   "run <id|name>",
		Short: "Run a command with elevated privileges",
		Long: `Run a stored command with elevated privileges. Scripts containing {{name}}
placeholders need a value for each one, given as --param name=value.`,
		Args: cobra.ExactArgs(1),
		RunE: withSession(open, func(cmd *cobra.Command, args []string, s *Session) error {
			c, err := resolve(s, args[0])
			if err != nil {
				return err
			}
			if missing := runner.MissingParams(c.Script, params); len(missing) > 0 {
				return fmt.Errorf("%s needs values for %s (use --param name=value)", c.Name, strings.Join(missing, ", "))
			}
			script := runner.SubstituteParams(c.Script, params)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			res, err := s.Gateway.Exec(ctx, script)
			out, errOut := cmd.OutOrStdout(), cmd.ErrOrStderr()
			for _, line := range res.Stdout {
				fmt.Fprintln(out, line)
			}
			for _, line := range res.Stderr {
				fmt.Fprintln(errOut, line)
			}
			if err != nil {
				fmt.Fprintf(errOut, "%s %s failed (exit %d)\n", failMark, c.Name, res.ExitCode)
				return fmt.Errorf("run %s: %w", c.Name, err)
			}
			fmt.Fprintf(out, "%s %s executed\n", okMark, c.Name)
			return nil
		}),
	}
	cmd.Flags().StringToStringVar(&params, "param", nil, "value for a {{name}} placeholder (repeatable, name=value)")
	return cmd
}

func exportCmd(open OpenFunc) *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export commands to a timestamped JSON file",
		Args:  cobra.NoArgs,
		RunE: withSession(open, func(cmd *cobra.Command, args []string, s *Session) error {
			flow := s.Flow
			if dir != "" {
				flow = transfer.New(s.Repo, dir, s.Logger)
			}
			n, path := flow.Export(time.Now())
			if n.Kind == transfer.NoticeError {
				return errors.New(n.Text)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s Exported %d commands to %s\n", okMark, len(s.Repo.List()), path)
			return nil
		}),
	}
	cmd.Flags().StringVar(&dir, "dir", "", "export directory (default from config)")
	return cmd
}

func importCmd(open OpenFunc) *cobra.Command {
	var appendMode, overwrite bool
	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Import commands from a JSON file",
		Long: `Import commands from a JSON file. Choose --append to keep existing commands
and add the imported ones with fresh ids, or --overwrite to replace the list.`,
		Args: cobra.ExactArgs(1),
		RunE: withSession(open, func(cmd *cobra.Command, args []string, s *Session) error {
			policy := transfer.PolicyAppend
			if overwrite {
				policy = transfer.PolicyOverwrite
			}

			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("failed to open import file: %w", err)
			}
			defer f.Close()

			n, err := s.Flow.Import(f, policy)
			if err != nil {
				return err
			}
			if n.Kind == transfer.NoticeError {
				return errors.New(n.Text)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", okMark, n.Text)
			return nil
		}),
	}
	cmd.Flags().BoolVar(&appendMode, "append", false, "append imported commands with fresh ids")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "replace all commands with the imported ones")
	cmd.MarkFlagsMutuallyExclusive("append", "overwrite")
	cmd.MarkFlagsOneRequired("append", "overwrite")
	return cmd
}

// resolve finds a command by numeric id first, then by exact name.
func resolve(s *Session, ref string) (model.Command, error) {
	if id, err := strconv.ParseInt(ref, 10, 64); err == nil {
		if c, ok := s.Repo.Get(id); ok {
			return c, nil
		}
	}
	if c, ok := s.Repo.FindByName(ref); ok {
		return c, nil
	}
	return model.Command{}, fmt.Errorf("%w: %s", repo.ErrNotFound, ref)
}

// Execute runs the root command with the real session and exits non-zero on
// failure.
func Execute() {
	if err := NewRootCmd(OpenSession).ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
