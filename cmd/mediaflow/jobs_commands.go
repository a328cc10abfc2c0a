package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"mediaflow/internal/api"
	"mediaflow/internal/jobs"
	"mediaflow/internal/logging"
	"mediaflow/internal/report"
	"mediaflow/internal/users"
)

func newJobsCommand(ctx *commandContext) *cobra.Command {
	jobsCmd := &cobra.Command{
		Use:     "jobs",
		Aliases: []string{"videos"},
		Short:   "Inspect and manage media jobs",
	}
	jobsCmd.AddCommand(newJobsListCommand(ctx))
	jobsCmd.AddCommand(newJobsShowCommand(ctx))
	jobsCmd.AddCommand(newJobsDeleteCommand(ctx))
	jobsCmd.AddCommand(newJobsSubmitCommand(ctx))
	jobsCmd.AddCommand(newJobsExportCommand(ctx))
	return jobsCmd
}

func newJobsListCommand(ctx *commandContext) *cobra.Command {
	var status, sensitivity, search string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List jobs of your organization",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			videos, err := client.listVideos(cmd.Context(), status, sensitivity, search)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if ctx.flags.json {
				return writeJSON(out, api.VideoListResponse{Videos: videos, Count: len(videos)})
			}
			if len(videos) == 0 {
				fmt.Fprintln(out, "No jobs")
				return nil
			}
			fmt.Fprintln(out, renderVideoTable(videos, shouldColorize(out)))
			return nil
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "Filter by status (uploading, processing, completed, failed)")
	cmd.Flags().StringVar(&sensitivity, "sensitivity", "", "Filter by verdict (pending, safe, flagged)")
	cmd.Flags().StringVar(&search, "search", "", "Match original file names")
	return cmd
}

func newJobsShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			video, err := client.getVideo(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if ctx.flags.json {
				return writeJSON(out, api.VideoResponse{Video: video})
			}
			writeVideoDetail(out, video, shouldColorize(out))
			return nil
		},
	}
}

func newJobsDeleteCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a job and its stored media",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			if err := client.deleteVideo(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted job %s\n", args[0])
			return nil
		},
	}
}

func newJobsSubmitCommand(ctx *commandContext) *cobra.Command {
	var mimeType string
	cmd := &cobra.Command{
		Use:   "submit <file>",
		Short: "Upload a media file and start processing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			video, err := client.submitVideo(cmd.Context(), args[0], strings.TrimSpace(mimeType))
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if ctx.flags.json {
				return writeJSON(out, api.VideoResponse{Video: video})
			}
			fmt.Fprintf(out, "Submitted %s as job %s (%s)\n", video.OriginalName, video.ID, video.Status)
			return nil
		},
	}
	cmd.Flags().StringVar(&mimeType, "mime-type", "", "Override the media type derived from the file extension")
	return cmd
}

func newJobsExportCommand(ctx *commandContext) *cobra.Command {
	var organization, output, status string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write an XLSX report of one organization's jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(organization) == "" {
				return fmt.Errorf("--organization is required")
			}
			filter := jobs.Filter{Organization: strings.TrimSpace(organization)}
			if status != "" {
				parsed, ok := jobs.ParseStatus(status)
				if !ok {
					return fmt.Errorf("unknown status %q", status)
				}
				filter.Status = parsed
			}
			var data []byte
			err := ctx.withStores(cmd.Context(), func(c context.Context, store *jobs.Store, _ *users.Store) error {
				var err error
				data, err = report.NewExporter(store, logging.NewNop()).ExportXLSX(c, filter)
				return err
			})
			if err != nil {
				return err
			}
			if err := os.WriteFile(output, data, 0o644); err != nil {
				return fmt.Errorf("write report: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&organization, "organization", "o", "", "Organization to report on")
	cmd.Flags().StringVar(&output, "output", "mediaflow-report.xlsx", "Destination XLSX file")
	cmd.Flags().StringVar(&status, "status", "", "Only include jobs in this status")
	return cmd
}

func renderVideoTable(videos []api.Video, colorize bool) string {
	rows := make([][]string, 0, len(videos))
	for _, v := range videos {
		rows = append(rows, []string{
			v.ID,
			v.OriginalName,
			colorStatus(v.Status, colorize),
			strconv.Itoa(v.ProcessingProgress) + "%",
			v.SensitivityStatus,
			humanBytes(v.Size),
			v.CreatedAt,
		})
	}
	return renderTable(
		[]string{"ID", "Name", "Status", "Progress", "Sensitivity", "Size", "Created"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft, alignRight, alignLeft},
	)
}

func writeVideoDetail(out io.Writer, v api.Video, colorize bool) {
	for _, line := range renderSectionHeader(v.OriginalName, colorize) {
		fmt.Fprintln(out, line)
	}
	kind := jobStatusKind(v.Status)
	fmt.Fprintln(out, renderStatusLine("Status", kind, fmt.Sprintf("%s %d%%", v.Status, v.ProcessingProgress), colorize))
	fmt.Fprintln(out, renderStatusLine("Sensitivity", statusInfo, v.SensitivityStatus, colorize))
	fmt.Fprintln(out, renderStatusLine("ID", statusInfo, v.ID, colorize))
	fmt.Fprintln(out, renderStatusLine("Owner", statusInfo, v.Owner, colorize))
	fmt.Fprintln(out, renderStatusLine("Size", statusInfo, humanBytes(v.Size), colorize))
	if v.Duration > 0 {
		fmt.Fprintln(out, renderStatusLine("Duration", statusInfo, fmt.Sprintf("%.1fs", v.Duration), colorize))
	}
	if v.Metadata != nil && v.Metadata.Width > 0 {
		fmt.Fprintln(out, renderStatusLine("Resolution", statusInfo,
			fmt.Sprintf("%dx%d %s", v.Metadata.Width, v.Metadata.Height, v.Metadata.Codec), colorize))
	}
	if v.StreamPath != "" {
		fmt.Fprintln(out, renderStatusLine("Stream", statusInfo, v.StreamPath, colorize))
	}
	if v.ErrorMessage != "" {
		fmt.Fprintln(out, renderStatusLine("Error", statusError, v.ErrorMessage, colorize))
	}
}

func humanBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
