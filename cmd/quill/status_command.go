package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/sys/unix"

	"quill/internal/api"
	"quill/internal/bootstrap"
	"quill/internal/daemonrun"
	"quill/internal/preflight"
)

type statusReport struct {
	Daemon    api.DaemonStatus `json:"daemon"`
	Preflight []checkResult    `json:"preflight"`
}

type checkResult struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail"`
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show directory checks, daemon state, and store counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			report := statusReport{
				Daemon: api.DaemonStatus{
					DatabasePath: cfg.DatabasePath(),
					DataDir:      cfg.Paths.DataDir,
					LockFilePath: cfg.DaemonLockPath(),
				},
			}
			results := preflight.CheckDirectories(cfg)
			for _, r := range results {
				report.Preflight = append(report.Preflight, checkResult{Name: r.Name, Passed: r.Passed, Detail: r.Detail})
			}
			if pid, err := daemonrun.ReadPID(cfg); err == nil && pid > 0 && processAlive(pid) {
				report.Daemon.Running = true
				report.Daemon.PID = pid
			}
			if preflight.AllPassed(results) {
				err := ctx.withApp(func(app *bootstrap.App) error {
					stats, err := app.Store.Stats(commandCtx(cmd))
					if err != nil {
						return err
					}
					report.Daemon.Stats = api.FromStats(stats)
					return nil
				})
				if err != nil {
					return err
				}
			}

			if ctx.jsonOutput() {
				return writeJSON(cmd, report)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Daemon running: %s", yesNo(report.Daemon.Running))
			if report.Daemon.Running {
				fmt.Fprintf(out, " (pid %d)", report.Daemon.PID)
			}
			fmt.Fprintln(out)
			fmt.Fprintf(out, "Database: %s\n", report.Daemon.DatabasePath)
			fmt.Fprintf(out, "Data directory: %s\n", report.Daemon.DataDir)
			if s := report.Daemon.Stats; s != nil {
				fmt.Fprintf(out, "Projects: %d  Transcriptions: %d  Versions: %d  Media: %d\n",
					s.Projects, s.Transcriptions, s.Backups, s.MediaFiles)
			}
			rows := make([][]string, 0, len(report.Preflight))
			for _, r := range report.Preflight {
				rows = append(rows, []string{r.Name, yesNo(r.Passed), r.Detail})
			}
			printRows(out, []string{"Check", "OK", "Detail"}, rows, nil)
			return nil
		},
	}
}

func processAlive(pid int) bool {
	err := unix.Kill(pid, 0)
	return err == nil || errors.Is(err, unix.EPERM)
}
