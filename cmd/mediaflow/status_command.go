package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"mediaflow/internal/api"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon, workflow and dependency status",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			status, err := client.status(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if ctx.flags.json {
				return writeJSON(out, status)
			}
			renderDaemonStatus(out, status, shouldColorize(out))
			return nil
		},
	}
}

func renderDaemonStatus(out io.Writer, status api.DaemonStatus, colorize bool) {
	lines := renderSectionHeader("Daemon", colorize)
	running := statusError
	if status.Running {
		running = statusOK
	}
	lines = append(lines,
		renderStatusLine("Running", running, fmt.Sprintf("%s (pid %d)", yesNo(status.Running), status.PID), colorize),
		renderStatusLine("Storage", statusInfo, status.StorageBackend, colorize),
	)
	db := statusOK
	dbDetail := fmt.Sprintf("%s schema v%d", status.Database.Driver, status.Database.SchemaVersion)
	if !status.Database.Reachable {
		db = statusError
		dbDetail = status.Database.Error
	}
	lines = append(lines, renderStatusLine("Database", db, dbDetail, colorize))

	wf := status.Workflow
	lines = append(lines, "")
	lines = append(lines, renderSectionHeader("Workflow", colorize)...)
	lines = append(lines,
		renderStatusLine("Workers", statusInfo, strconv.Itoa(wf.Workers), colorize),
		renderStatusLine("Queue", statusInfo, fmt.Sprintf("%d/%d queued, %d in flight", wf.QueueDepth, wf.QueueCapacity, wf.InFlight), colorize),
		renderStatusLine("Jobs", statusInfo, fmt.Sprintf("%d total, %d uploading, %d processing, %d completed, %d failed",
			wf.Jobs.Total, wf.Jobs.Uploading, wf.Jobs.Processing, wf.Jobs.Completed, wf.Jobs.Failed), colorize),
	)
	if wf.LastError != "" {
		lines = append(lines, renderStatusLine("Last error", statusWarn, wf.LastError, colorize))
	}

	if len(status.Dependencies) > 0 {
		lines = append(lines, "")
		lines = append(lines, renderSectionHeader("Dependencies", colorize)...)
		for _, dep := range status.Dependencies {
			kind, detail := statusOK, dep.Command
			if !dep.Available {
				kind, detail = statusError, dep.Detail
				if dep.Optional {
					kind = statusWarn
				}
			}
			lines = append(lines, renderStatusLine(dep.Name, kind, detail, colorize))
		}
	}
	for _, line := range lines {
		fmt.Fprintln(out, line)
	}
}
