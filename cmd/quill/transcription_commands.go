package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"quill/internal/api"
	"quill/internal/bootstrap"
	"quill/internal/store"
)

func newTranscriptionCommand(ctx *commandContext) *cobra.Command {
	transcriptionCmd := &cobra.Command{
		Use:     "transcription",
		Aliases: []string{"tr"},
		Short:   "Manage transcriptions",
	}
	transcriptionCmd.AddCommand(newTranscriptionCreateCommand(ctx))
	transcriptionCmd.AddCommand(newTranscriptionListCommand(ctx))
	transcriptionCmd.AddCommand(newTranscriptionDeleteCommand(ctx))
	return transcriptionCmd
}

func newTranscriptionCreateCommand(ctx *commandContext) *cobra.Command {
	var project string

	cmd := &cobra.Command{
		Use:   "create <title>",
		Short: "Create a transcription, optionally inside a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			user, err := ctx.requireUser()
			if err != nil {
				return err
			}
			return ctx.withApp(func(app *bootstrap.App) error {
				c := commandCtx(cmd)
				tr := store.Transcription{UserID: user, Title: args[0]}
				if name := strings.TrimSpace(project); name != "" {
					p, err := app.Store.EnsureProject(c, user, name)
					if err != nil {
						return err
					}
					tr.ProjectID = p.ID
				}
				created, err := app.Store.CreateTranscription(c, tr)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, api.FromTranscription(created))
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created transcription %s\n", created.ID)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&project, "project", "p", "", "Project name (created when missing)")
	return cmd
}

func newTranscriptionListCommand(ctx *commandContext) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the user's transcriptions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			user, err := ctx.requireUser()
			if err != nil {
				return err
			}
			return ctx.withApp(func(app *bootstrap.App) error {
				items, err := app.Store.ListTranscriptions(commandCtx(cmd), user, all)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					out := make([]api.Transcription, 0, len(items))
					for _, t := range items {
						out = append(out, api.FromTranscription(t))
					}
					return writeJSON(cmd, out)
				}
				rows := make([][]string, 0, len(items))
				for _, t := range items {
					rows = append(rows, []string{t.ID, t.Title, itoa(t.CurrentVersion), formatOptionalStamp(t.LastBackupAt), yesNo(t.IsActive)})
				}
				printRows(cmd.OutOrStdout(), []string{"ID", "Title", "Version", "Last Backup", "Active"}, rows,
					[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft, alignLeft})
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "Include deleted transcriptions")
	return cmd
}

func newTranscriptionDeleteCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Soft-delete a transcription; its versions stay readable",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(func(app *bootstrap.App) error {
				c := commandCtx(cmd)
				tr, err := app.Store.GetTranscription(c, args[0])
				if err != nil {
					return err
				}
				if tr == nil {
					return fmt.Errorf("transcription %s not found", args[0])
				}
				if user := ctx.user(); user != "" && tr.UserID != user {
					return errors.New("transcription belongs to another user")
				}
				changed, err := app.Store.DeactivateTranscription(c, tr.ID)
				if err != nil {
					return err
				}
				if !changed {
					fmt.Fprintf(cmd.OutOrStdout(), "Transcription %s was already deleted\n", tr.ID)
					return nil
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted transcription %s\n", tr.ID)
				return nil
			})
		},
	}
}
