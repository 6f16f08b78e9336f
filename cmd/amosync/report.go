package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"amosync/pkg/logger"
	"amosync/pkg/report"
	"amosync/pkg/ui"
	"github.com/spf13/cobra"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Inspect the reports of past sync runs",
	Long: `Every sync run saves a report under the per-user data directory,
named after its run id. 'amosync sync --from-report' retries the cameras a
report lists as unfinished.`,
}

var reportShowCmd = &cobra.Command{
	Use:   "show [run-id|latest]",
	Short: "Print a run report",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		reports, err := report.NewManager("", logger.GetLogger())
		if err != nil {
			return err
		}
		ref := "latest"
		if len(args) == 1 {
			ref = args[0]
		}
		r, err := loadReport(reports, ref)
		if err != nil {
			return err
		}
		printReport(r)
		return nil
	},
}

var reportDeleteCmd = &cobra.Command{
	Use:   "delete <run-id>",
	Short: "Delete a run report",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		reports, err := report.NewManager("", logger.GetLogger())
		if err != nil {
			return err
		}
		if err := reports.Delete(args[0]); err != nil {
			return err
		}
		ui.PrintSuccess(os.Stdout, "Report removed: "+args[0])
		return nil
	},
}

func init() {
	reportCmd.AddCommand(reportShowCmd, reportDeleteCmd)
	rootCmd.AddCommand(reportCmd)
}

func printReport(r *report.Report) {
	ui.PrintInfo(os.Stdout, "Run", r.RunID)
	ui.PrintInfo(os.Stdout, "Started", r.StartedAt.Format(time.RFC3339))
	ui.PrintInfo(os.Stdout, "Duration", ui.FormatDuration(r.FinishedAt.Sub(r.StartedAt)))
	fmt.Println()

	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "CAMERA\tSTATUS\tWINDOW\tMERGED\tABSENT\tFAILED\tENTRIES")
	for _, c := range r.Cameras {
		window := "-"
		if c.WindowStart != "" {
			window = c.WindowStart + ".." + c.WindowEnd
		}
		failed := "-"
		if len(c.FailedMonths) > 0 {
			failed = strings.Join(c.FailedMonths, ",")
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%d\t%s\t%d\n",
			c.CameraID, c.Status, window, c.MergedMonths, c.AbsentMonths, failed, c.Entries)
	}
	tw.Flush()

	if unfinished := r.Unfinished(); len(unfinished) > 0 {
		fmt.Println()
		ui.PrintWarning(os.Stdout, fmt.Sprintf("%d cameras unfinished, retry with: amosync sync --from-report %s", len(unfinished), r.RunID))
	}
}
