package ui

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"amosync/pkg/syncer"
)

// PrintSummary writes one row per camera and a totals line
func PrintSummary(w io.Writer, summary *syncer.Summary) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "CAMERA\tSTATUS\tWINDOW\tMERGED\tABSENT\tFAILED\tENTRIES\tDURATION")

	for _, r := range summary.Results {
		window := "-"
		if r.Window != nil {
			window = r.Window.Start.String() + ".." + r.Window.End.String()
		}
		failed := "-"
		if len(r.FailedMonths) > 0 {
			names := make([]string, len(r.FailedMonths))
			for i, m := range r.FailedMonths {
				names[i] = m.String()
			}
			failed = strings.Join(names, ",")
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%d\t%s\t%d\t%s\n",
			r.CameraID, colorStatus(r.Status), window,
			r.MergedMonths, r.AbsentMonths, failed, r.Entries, FormatDuration(r.Duration))
	}
	tw.Flush()

	fmt.Fprintf(w, "\n%s synced %d • skipped %d • partial %d • failed %d • cancelled %d • %s\n",
		Cyan("run "+summary.RunID),
		summary.Count(syncer.StatusSynced),
		summary.Count(syncer.StatusSkipped),
		summary.Count(syncer.StatusPartialFailure),
		summary.Count(syncer.StatusFailed),
		summary.Count(syncer.StatusCancelled),
		FormatDuration(summary.FinishedAt.Sub(summary.StartedAt)),
	)

	for _, r := range summary.Results {
		if r.Err != nil && r.Status != syncer.StatusPartialFailure {
			fmt.Fprintf(w, "  %s camera %d: %v\n", Red("✗"), r.CameraID, r.Err)
		}
	}
}

func colorStatus(s syncer.Status) string {
	switch s {
	case syncer.StatusSynced:
		return Green(string(s))
	case syncer.StatusSkipped:
		return Dim(string(s))
	case syncer.StatusPartialFailure, syncer.StatusCancelled:
		return Yellow(string(s))
	default:
		return Red(string(s))
	}
}
