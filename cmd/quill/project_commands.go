package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"quill/internal/bootstrap"
)

func newProjectCommand(ctx *commandContext) *cobra.Command {
	projectCmd := &cobra.Command{
		Use:   "project",
		Short: "Manage projects",
	}
	projectCmd.AddCommand(newProjectCreateCommand(ctx))
	projectCmd.AddCommand(newProjectListCommand(ctx))
	return projectCmd
}

func newProjectCreateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "create <name>",
		Short: "Create a project (no-op when it exists)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			user, err := ctx.requireUser()
			if err != nil {
				return err
			}
			return ctx.withApp(func(app *bootstrap.App) error {
				project, err := app.Store.EnsureProject(commandCtx(cmd), user, args[0])
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, map[string]string{"id": project.ID, "name": project.Name, "userId": project.UserID})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Project %s (%s)\n", project.Name, project.ID)
				return nil
			})
		},
	}
}

func newProjectListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the user's projects",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			user, err := ctx.requireUser()
			if err != nil {
				return err
			}
			return ctx.withApp(func(app *bootstrap.App) error {
				projects, err := app.Store.ListProjects(commandCtx(cmd), user)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					out := make([]map[string]string, 0, len(projects))
					for _, p := range projects {
						out = append(out, map[string]string{"id": p.ID, "name": p.Name, "userId": p.UserID})
					}
					return writeJSON(cmd, out)
				}
				rows := make([][]string, 0, len(projects))
				for _, p := range projects {
					rows = append(rows, []string{p.Name, p.ID, formatStamp(p.CreatedAt)})
				}
				printRows(cmd.OutOrStdout(), []string{"Name", "ID", "Created"}, rows, nil)
				return nil
			})
		},
	}
}
