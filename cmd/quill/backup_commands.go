package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"quill/internal/api"
	"quill/internal/bootstrap"
	"quill/internal/store"
	"quill/internal/versions"
)

func newBackupCommand(ctx *commandContext) *cobra.Command {
	backupCmd := &cobra.Command{
		Use:   "backup",
		Short: "Create, inspect, and restore transcription versions",
	}
	backupCmd.AddCommand(newBackupTriggerCommand(ctx))
	backupCmd.AddCommand(newBackupHistoryCommand(ctx))
	backupCmd.AddCommand(newBackupPreviewCommand(ctx))
	backupCmd.AddCommand(newBackupRestoreCommand(ctx))
	backupCmd.AddCommand(newBackupCleanupCommand(ctx))
	return backupCmd
}

func newBackupTriggerCommand(ctx *commandContext) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "trigger <transcription-id>",
		Short: "Write a new version from a JSON snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, err := readSnapshot(cmd, file)
			if err != nil {
				return err
			}
			return ctx.withApp(func(app *bootstrap.App) error {
				b, err := app.Versions.CreateVersion(commandCtx(cmd), ctx.user(), args[0], snap)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, api.BackupResponse{Backup: api.FromBackup(b)})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created version %d (%s)\n%s\n", b.Version, b.ID, b.FilePath)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "Snapshot JSON file (default stdin)")
	return cmd
}

func newBackupHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var from, to string

	cmd := &cobra.Command{
		Use:   "history <transcription-id>",
		Short: "List versions newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var start, end time.Time
			ranged := strings.TrimSpace(from) != "" || strings.TrimSpace(to) != ""
			if ranged {
				var err error
				if start, err = parseBound(from, time.Time{}); err != nil {
					return err
				}
				if end, err = parseBound(to, time.Now()); err != nil {
					return err
				}
			}
			return ctx.withApp(func(app *bootstrap.App) error {
				c := commandCtx(cmd)
				var (
					backups []*store.Backup
					err     error
				)
				if ranged {
					backups, err = app.Versions.FindByDateRange(c, ctx.user(), args[0], start, end)
				} else {
					backups, err = app.Versions.History(c, ctx.user(), args[0], limit)
				}
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, api.BackupListResponse{TranscriptionID: args[0], Backups: api.FromBackups(backups)})
				}
				rows := make([][]string, 0, len(backups))
				for _, b := range backups {
					rows = append(rows, []string{
						itoa(b.Version), b.ID, formatStamp(b.CreatedAt),
						itoa(b.WordCount), itoa(b.BlockCount), itoa(b.SpeakerCount), formatSize(b.FileSize),
					})
				}
				printRows(cmd.OutOrStdout(),
					[]string{"Version", "ID", "Created", "Words", "Blocks", "Speakers", "Size"}, rows,
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight})
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Maximum versions to list (default from config)")
	cmd.Flags().StringVar(&from, "from", "", "Only versions created at or after this time (RFC3339 or YYYY-MM-DD)")
	cmd.Flags().StringVar(&to, "to", "", "Only versions created at or before this time (RFC3339 or YYYY-MM-DD)")
	return cmd
}

// parseBound accepts RFC3339 or a bare date. A bare date used as an upper
// bound covers the whole day.
func parseBound(value string, fallback time.Time) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return fallback, nil
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	day, err := time.ParseInLocation("2006-01-02", value, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid time %q (want RFC3339 or YYYY-MM-DD)", value)
	}
	if !fallback.IsZero() {
		return day.Add(24*time.Hour - time.Nanosecond), nil
	}
	return day, nil
}

func newBackupPreviewCommand(ctx *commandContext) *cobra.Command {
	var version int

	cmd := &cobra.Command{
		Use:   "preview <backup-id | transcription-id>",
		Short: "Print a version's document (use --version to select by number)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(func(app *bootstrap.App) error {
				c := commandCtx(cmd)
				backupID, err := resolveBackupID(cmd, app, ctx.user(), args[0], version)
				if err != nil {
					return err
				}
				p, err := app.Versions.Preview(c, ctx.user(), backupID)
				if err != nil {
					return err
				}
				return printPreview(cmd, ctx, p)
			})
		},
	}
	cmd.Flags().IntVar(&version, "version", 0, "Treat the argument as a transcription id and pick this version")
	return cmd
}

func newBackupRestoreCommand(ctx *commandContext) *cobra.Command {
	var version int

	cmd := &cobra.Command{
		Use:   "restore <backup-id | transcription-id>",
		Short: "Make a version the transcription's current version",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(func(app *bootstrap.App) error {
				backupID, err := resolveBackupID(cmd, app, ctx.user(), args[0], version)
				if err != nil {
					return err
				}
				p, err := app.Versions.Restore(commandCtx(cmd), ctx.user(), backupID)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return printPreview(cmd, ctx, p)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Restored version %d of %s\n", p.Backup.Version, p.Backup.TranscriptionID)
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&version, "version", 0, "Treat the argument as a transcription id and pick this version")
	return cmd
}

func resolveBackupID(cmd *cobra.Command, app *bootstrap.App, user, arg string, version int) (string, error) {
	if version <= 0 {
		return arg, nil
	}
	b, err := app.Versions.FindByVersion(commandCtx(cmd), user, arg, version)
	if err != nil {
		return "", err
	}
	if b == nil {
		return "", fmt.Errorf("version %d of %s not found", version, arg)
	}
	return b.ID, nil
}

func printPreview(cmd *cobra.Command, ctx *commandContext, p *versions.Preview) error {
	if ctx.jsonOutput() {
		return writeJSON(cmd, api.PreviewResponse{Backup: api.FromBackup(p.Backup), Content: api.FromSnapshot(p.Snapshot)})
	}
	fmt.Fprint(cmd.OutOrStdout(), renderDocument(p.Snapshot))
	return nil
}

func newBackupCleanupCommand(ctx *commandContext) *cobra.Command {
	var keep int

	cmd := &cobra.Command{
		Use:   "cleanup <transcription-id>",
		Short: "Prune versions beyond the newest --keep",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(func(app *bootstrap.App) error {
				result, err := app.Versions.Cleanup(commandCtx(cmd), ctx.user(), args[0], keep)
				if err != nil {
					return err
				}
				effective := keep
				if effective < 0 {
					effective = app.Config.Backups.KeepCount
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, api.FromCleanup(args[0], effective, result))
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Removed %d versions (kept newest %d)\n", len(result.Removed), effective)
				if result.MissingFiles > 0 {
					fmt.Fprintf(out, "%d version files were already missing\n", result.MissingFiles)
				}
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&keep, "keep", "k", -1, "Versions to keep (default from config)")
	return cmd
}
