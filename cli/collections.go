package cli

import (
	"context"

	"excalidash/core"
	"excalidash/dashboard"

	"github.com/spf13/cobra"
)

func newCollectionsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "collections",
		Aliases: []string{"col"},
		Short:   "List and manage collections",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := openDashboard(cmd, app, sessionOptions{scope: core.AllScope()})
			if err != nil {
				return err
			}
			renderCollections(cmd.OutOrStdout(), d.Collections())
			return nil
		},
	}
	cmd.AddCommand(newCollectionsCreateCmd(app))
	cmd.AddCommand(newCollectionsRenameCmd(app))
	cmd.AddCommand(newCollectionsRmCmd(app))
	return cmd
}

func newCollectionsCreateCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "create <name>",
		Short: "Create a collection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, app, sessionOptions{scope: core.AllScope()}, func(ctx context.Context, d *dashboard.Dashboard) (*dashboard.Op, error) {
				return d.CreateCollection(ctx, args[0])
			})
		},
	}
}

func newCollectionsRenameCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "rename <id> <name>",
		Short: "Rename a collection",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, app, sessionOptions{scope: core.AllScope()}, func(ctx context.Context, d *dashboard.Dashboard) (*dashboard.Op, error) {
				return d.RenameCollection(ctx, args[0], args[1])
			})
		},
	}
}

func newCollectionsRmCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "rm <id>",
		Short: "Delete a collection; its drawings become unorganized",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, app, sessionOptions{scope: core.AllScope()}, func(ctx context.Context, d *dashboard.Dashboard) (*dashboard.Op, error) {
				return d.DeleteCollection(ctx, args[0])
			})
		},
	}
}
