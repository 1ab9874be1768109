package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"quill/internal/api"
	"quill/internal/bootstrap"
	"quill/internal/transcript"
)

func newSessionCommand(ctx *commandContext) *cobra.Command {
	sessionCmd := &cobra.Command{
		Use:   "session",
		Short: "Work with live editing sessions",
	}
	sessionCmd.AddCommand(newSessionSaveCommand(ctx))
	sessionCmd.AddCommand(newSessionLoadCommand(ctx))
	sessionCmd.AddCommand(newSessionListCommand(ctx))
	sessionCmd.AddCommand(newSessionBackupCommand(ctx))
	sessionCmd.AddCommand(newSessionHistoryCommand(ctx))
	sessionCmd.AddCommand(newSessionRestoreCommand(ctx))
	return sessionCmd
}

func parseSlot(value string) (int, error) {
	slot, err := strconv.Atoi(value)
	if err != nil || slot < 1 {
		return 0, fmt.Errorf("invalid transcription number %q", value)
	}
	return slot, nil
}

func printSession(cmd *cobra.Command, ctx *commandContext, mediaID string, slot int, snap transcript.Snapshot) error {
	if ctx.jsonOutput() {
		return writeJSON(cmd, api.SessionResponse{MediaID: mediaID, TranscriptionNumber: slot, Content: api.FromSnapshot(snap)})
	}
	fmt.Fprint(cmd.OutOrStdout(), renderDocument(snap))
	return nil
}

func newSessionSaveCommand(ctx *commandContext) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "save <media-id> <number>",
		Short: "Overwrite a slot's working copy from a JSON snapshot",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			slot, err := parseSlot(args[1])
			if err != nil {
				return err
			}
			snap, err := readSnapshot(cmd, file)
			if err != nil {
				return err
			}
			return ctx.withApp(func(app *bootstrap.App) error {
				meta, err := app.Sessions.Save(commandCtx(cmd), args[0], slot, snap)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, api.FromSessionMetadata(meta))
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Saved %s #%d (%d words, %d blocks)\n", meta.MediaID, meta.TranscriptionNumber, meta.WordCount, meta.BlockCount)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "Snapshot JSON file (default stdin)")
	return cmd
}

func newSessionLoadCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "load <media-id> <number>",
		Short: "Print a slot's working copy",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			slot, err := parseSlot(args[1])
			if err != nil {
				return err
			}
			return ctx.withApp(func(app *bootstrap.App) error {
				snap, err := app.Sessions.Load(commandCtx(cmd), args[0], slot)
				if err != nil {
					return err
				}
				return printSession(cmd, ctx, args[0], slot, snap)
			})
		},
	}
}

func newSessionListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list <media-id>",
		Short: "List the slots of a media item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(func(app *bootstrap.App) error {
				slots, err := app.Sessions.List(commandCtx(cmd), args[0])
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, api.FromSlots(args[0], slots))
				}
				rows := make([][]string, 0, len(slots))
				for _, s := range slots {
					row := []string{itoa(s.Number), "-", "-", "-"}
					if s.Metadata != nil {
						row = []string{itoa(s.Number), formatStamp(s.Metadata.LastSaved), itoa(s.Metadata.WordCount), itoa(s.Metadata.BlockCount)}
					}
					rows = append(rows, row)
				}
				printRows(cmd.OutOrStdout(), []string{"Number", "Last Saved", "Words", "Blocks"}, rows,
					[]columnAlignment{alignRight, alignLeft, alignRight, alignRight})
				return nil
			})
		},
	}
}

func newSessionBackupCommand(ctx *commandContext) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "backup <media-id> <number>",
		Short: "Append a snapshot to a slot's backup trail",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			slot, err := parseSlot(args[1])
			if err != nil {
				return err
			}
			snap, err := readSnapshot(cmd, file)
			if err != nil {
				return err
			}
			return ctx.withApp(func(app *bootstrap.App) error {
				f, err := app.Sessions.Backup(commandCtx(cmd), args[0], slot, snap)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, api.FromTrailFile(f))
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", f.Name)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "Snapshot JSON file (default stdin)")
	return cmd
}

func newSessionHistoryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "history <media-id> <number>",
		Short: "List a slot's backup trail newest first",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			slot, err := parseSlot(args[1])
			if err != nil {
				return err
			}
			return ctx.withApp(func(app *bootstrap.App) error {
				files, err := app.Sessions.History(commandCtx(cmd), args[0], slot)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, api.SessionHistoryResponse{MediaID: args[0], TranscriptionNumber: slot, Backups: api.FromTrailFiles(files)})
				}
				rows := make([][]string, 0, len(files))
				for _, f := range files {
					rows = append(rows, []string{f.Name, formatStamp(f.Created), itoa(f.Counts.Words), itoa(f.Counts.Blocks), formatSize(f.Size)})
				}
				printRows(cmd.OutOrStdout(), []string{"File", "Created", "Words", "Blocks", "Size"}, rows,
					[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignRight})
				return nil
			})
		},
	}
}

func newSessionRestoreCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "restore <media-id> <number> <backup-file>",
		Short: "Replace a slot's working copy with a trail backup",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			slot, err := parseSlot(args[1])
			if err != nil {
				return err
			}
			return ctx.withApp(func(app *bootstrap.App) error {
				snap, err := app.Sessions.Restore(commandCtx(cmd), args[0], slot, args[2])
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return printSession(cmd, ctx, args[0], slot, snap)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Restored %s #%d from %s\n", args[0], slot, args[2])
				return nil
			})
		},
	}
}
