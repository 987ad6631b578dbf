package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/yungbote/categorylink/internal/refactor"
	"github.com/yungbote/categorylink/internal/services"
)

func writeSummary(w io.Writer, r refactor.Report) {
	fmt.Fprintf(w, "run %s  batch_size=%d termination=%s\n", r.RunID, r.BatchSize, r.Termination)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "CATEGORY\tSTATUS\tTARGET\tEDGES\tBATCHES\tINVOCATIONS\tELAPSED")
	done := 0
	for _, o := range r.Outcomes {
		if o.Status == refactor.StatusDone {
			done++
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%d\t%s\n",
			o.Category, o.Status, o.Target, o.EdgesCreated, o.Batches, o.Invocations, round(o.Elapsed))
	}
	_ = tw.Flush()

	fmt.Fprintf(w, "completed %d/%d categories, %d relationships created in %s\n",
		done, len(r.Outcomes), r.TotalMigrated, round(r.Elapsed))
	for _, o := range r.Outcomes {
		if short := o.Shortfall(); short > 0 {
			fmt.Fprintf(w, "note: %s linked %d of %d children; %d have no matching category node\n",
				o.Category, o.EdgesCreated, o.Target, short)
		}
	}
	for _, o := range r.Failed() {
		if o.Status == refactor.StatusFailed {
			fmt.Fprintf(w, "failed: %s (%s): %s\n", o.Category, o.ErrorKind, o.Error)
		}
	}
	if r.Error != "" {
		fmt.Fprintf(w, "job error (%s): %s\n", r.ErrorKind, r.Error)
	}
}

func writePlan(w io.Writer, p refactor.Plan) {
	fmt.Fprintf(w, "batch_size=%d termination=%s\n", p.BatchSize, p.Termination)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "CATEGORY\tUNLINKED\tPRODUCTIVE\tINVOCATIONS")
	for _, c := range p.Categories {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\n", c.Category, c.Unlinked, c.Productive, c.Invocations)
	}
	_ = tw.Flush()
	fmt.Fprintf(w, "%d categories, %d unlinked children, %d batch invocations\n",
		len(p.Categories), p.Unlinked, p.Invocations)
}

func writeHistory(w io.Writer, entries []services.RunHistoryEntry) {
	if len(entries) == 0 {
		fmt.Fprintln(w, "no runs recorded")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tSTATUS\tSTARTED\tCATEGORIES\tMIGRATED\tERROR")
	for _, e := range entries {
		run := e.Run
		if run == nil {
			continue
		}
		errText := ""
		if run.ErrorKind != "" {
			errText = run.ErrorKind
		}
		for _, o := range e.Outcomes {
			if o != nil && o.Status == string(refactor.StatusFailed) {
				errText = fmt.Sprintf("%s: %s", o.Category, o.ErrorKind)
				break
			}
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%s\n",
			run.ID, run.Status, run.StartedAt.Format(time.RFC3339), run.Categories, run.TotalMigrated, errText)
	}
	_ = tw.Flush()
}

func round(d time.Duration) time.Duration {
	return d.Round(time.Millisecond)
}
