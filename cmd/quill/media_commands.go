package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"quill/internal/bootstrap"
	"quill/internal/mediaslot"
	"quill/internal/store"
	"quill/internal/transcript"
)

func newMediaCommand(ctx *commandContext) *cobra.Command {
	mediaCmd := &cobra.Command{
		Use:   "media",
		Short: "Manage project media slots",
	}
	mediaCmd.AddCommand(newMediaAddCommand(ctx))
	mediaCmd.AddCommand(newMediaRemoveCommand(ctx))
	mediaCmd.AddCommand(newMediaIndexCommand(ctx))
	return mediaCmd
}

func newMediaAddCommand(ctx *commandContext) *cobra.Command {
	var transcriptionID string
	var primary bool
	var url string

	cmd := &cobra.Command{
		Use:   "add <project> [file]",
		Short: "Import a media file into the next free slot, or register an external URL",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			user, err := ctx.requireUser()
			if err != nil {
				return err
			}
			url = strings.TrimSpace(url)
			if (len(args) == 2) == (url != "") {
				return errors.New("pass either a file or --url")
			}
			return ctx.withApp(func(app *bootstrap.App) error {
				c := commandCtx(cmd)
				project, err := app.Store.EnsureProject(c, user, args[0])
				if err != nil {
					return err
				}

				record := store.MediaFile{UserID: user, ProjectID: project.ID}
				var slot mediaslot.Slot
				if url != "" {
					record.FileName = url
					record.URL = url
					record.Kind = string(transcript.MediaExternal)
				} else {
					var name string
					slot, name, err = app.Media.ImportFile(c, user, project.Name, args[1])
					if err != nil {
						return err
					}
					record.SlotID = slot.ID
					record.FileName = name
					record.Kind = string(transcript.MediaLocal)
				}

				media, err := app.Store.CreateMedia(c, record)
				if err != nil {
					if slot.Number > 0 {
						_ = app.Media.RemoveMedia(c, user, project.Name, slot.Number)
					}
					return err
				}
				if id := strings.TrimSpace(transcriptionID); id != "" {
					if err := app.Store.LinkMedia(c, id, media.ID, primary); err != nil {
						return err
					}
				}

				if ctx.jsonOutput() {
					return writeJSON(cmd, map[string]any{
						"id":       media.ID,
						"slotId":   media.SlotID,
						"fileName": media.FileName,
						"kind":     media.Kind,
						"dir":      slot.Dir,
					})
				}
				out := cmd.OutOrStdout()
				if slot.Number > 0 {
					fmt.Fprintf(out, "Imported %s into %s (%s)\n", media.FileName, slot.ID, media.ID)
				} else {
					fmt.Fprintf(out, "Registered external media %s (%s)\n", media.URL, media.ID)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&transcriptionID, "transcription", "t", "", "Link the media to this transcription")
	cmd.Flags().BoolVar(&primary, "primary", false, "Make the linked media the transcription's primary media")
	cmd.Flags().StringVar(&url, "url", "", "Register external media by URL instead of importing a file")
	return cmd
}

func newMediaRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <project> <number>",
		Short: "Delete a media slot and free its number",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			user, err := ctx.requireUser()
			if err != nil {
				return err
			}
			number, err := strconv.Atoi(strings.TrimPrefix(args[1], "media-"))
			if err != nil {
				return fmt.Errorf("invalid media number %q", args[1])
			}
			return ctx.withApp(func(app *bootstrap.App) error {
				c := commandCtx(cmd)
				project, err := app.Store.EnsureProject(c, user, args[0])
				if err != nil {
					return err
				}
				media, err := app.Store.MediaBySlot(c, project.ID, mediaslot.SlotID(number))
				if err != nil {
					return err
				}
				if media != nil {
					if _, err := app.Store.DeleteMedia(c, media.ID); err != nil {
						return err
					}
				}
				if err := app.Media.RemoveMedia(c, user, project.Name, number); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", mediaslot.SlotID(number))
				return nil
			})
		},
	}
}

func newMediaIndexCommand(ctx *commandContext) *cobra.Command {
	var rebuild bool

	cmd := &cobra.Command{
		Use:   "index <project>",
		Short: "Show the media slot index of a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			user, err := ctx.requireUser()
			if err != nil {
				return err
			}
			return ctx.withApp(func(app *bootstrap.App) error {
				c := commandCtx(cmd)
				var ix mediaslot.Index
				if rebuild {
					ix, err = app.Media.Rebuild(c, user, args[0])
				} else {
					ix, err = app.Media.Load(c, user, args[0])
				}
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, ix)
				}

				names := map[string]string{}
				if project, err := app.Store.EnsureProject(c, user, args[0]); err == nil {
					if files, err := app.Store.ListProjectMedia(c, project.ID); err == nil {
						for _, f := range files {
							names[f.SlotID] = f.FileName
						}
					}
				}
				out := cmd.OutOrStdout()
				available := make([]string, 0, len(ix.Available))
				for _, n := range ix.Available {
					available = append(available, itoa(n))
				}
				fmt.Fprintf(out, "Next number: %d\n", ix.NextNumber)
				fmt.Fprintf(out, "Available:   %s\n", strings.Join(available, ", "))
				rows := make([][]string, 0, len(ix.Active))
				for _, id := range ix.Active {
					rows = append(rows, []string{id, names[id]})
				}
				printRows(out, []string{"Slot", "File"}, rows, nil)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&rebuild, "rebuild", false, "Rebuild the index from the slot directories")
	return cmd
}
