package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"excalidash/core"
	"excalidash/dashboard"

	"github.com/spf13/cobra"
)

func newNewCmd(app *App) *cobra.Command {
	var collection string

	cmd := &cobra.Command{
		Use:   "new [name]",
		Short: "Create an empty drawing",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := ""
			if len(args) == 1 {
				name = args[0]
			}
			return run(cmd, app, sessionOptions{scope: core.ParseScope(collection)}, func(ctx context.Context, d *dashboard.Dashboard) (*dashboard.Op, error) {
				return d.CreateDrawing(ctx, name)
			})
		},
	}
	cmd.Flags().StringVarP(&collection, "collection", "c", "", "Collection to create the drawing in")
	return cmd
}

func newImportCmd(app *App) *cobra.Command {
	var collection string

	cmd := &cobra.Command{
		Use:   "import <file>...",
		Short: "Import .excalidraw drawings and .excalidrawlib libraries",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			files := make([]dashboard.File, 0, len(args))
			for _, path := range args {
				data, err := os.ReadFile(path)
				if err != nil {
					return err
				}
				files = append(files, dashboard.File{Name: filepath.Base(path), Data: data})
			}

			d, err := openDashboard(cmd, app, sessionOptions{scope: core.AllScope()})
			if err != nil {
				return err
			}
			op, err := d.ImportFiles(cmd.Context(), parseTarget(collection), files...)
			if err != nil {
				return err
			}
			if err := finish(d, op); err != nil {
				return err
			}

			summary, _ := op.Summary()
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, summary)
			for _, e := range summary.Errors {
				fmt.Fprintln(out, trashStyle.Render("  "+e.Error()))
			}
			if summary.FailedCount > 0 {
				return fmt.Errorf("%d of %d files failed", summary.FailedCount, len(files))
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&collection, "collection", "c", "", "Collection to import drawings into")
	return cmd
}

func newMvCmd(app *App) *cobra.Command {
	var to string

	cmd := &cobra.Command{
		Use:   "mv <id>... --to <collection>",
		Short: `Move drawings to a collection ("null" for unorganized)`,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, app, sessionOptions{scope: core.AllScope()}, func(ctx context.Context, d *dashboard.Dashboard) (*dashboard.Op, error) {
				return d.Move(ctx, parseTarget(to), args...)
			})
		},
	}
	cmd.Flags().StringVar(&to, "to", "", "Target collection id")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

func newTrashCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "trash <id>...",
		Short: "Move drawings to the trash",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, app, sessionOptions{scope: core.AllScope()}, func(ctx context.Context, d *dashboard.Dashboard) (*dashboard.Op, error) {
				return d.Trash(ctx, args...)
			})
		},
	}
}

func newRmCmd(app *App) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "rm <id>...",
		Short: "Permanently delete drawings",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, app, sessionOptions{scope: core.AllScope(), yes: yes}, func(ctx context.Context, d *dashboard.Dashboard) (*dashboard.Op, error) {
				return d.Delete(ctx, args...)
			})
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation")
	return cmd
}

func newDupCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "dup <id>...",
		Short: "Duplicate drawings",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, app, sessionOptions{scope: core.AllScope()}, func(ctx context.Context, d *dashboard.Dashboard) (*dashboard.Op, error) {
				return d.Duplicate(ctx, args...)
			})
		},
	}
}

func newRenameCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "rename <id> <name>",
		Short: "Rename a drawing",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, app, sessionOptions{scope: core.AllScope()}, func(ctx context.Context, d *dashboard.Dashboard) (*dashboard.Op, error) {
				return d.Rename(ctx, args[0], args[1])
			})
		},
	}
}
