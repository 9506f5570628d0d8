/*-------------------------------------------------------------------------
 *
 * LATS Admin - Run Report Console Output
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package report

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"golang.org/x/term"
)

// maxReasonWidth keeps long store messages from blowing up the table
const maxReasonWidth = 72

// Render prints the report as console tables. Colors and rounded borders
// are used only when w is a terminal.
func (r *RunReport) Render(w io.Writer) {
	tty := isTerminal(w)

	t := table.NewWriter()
	t.SetOutputMirror(w)
	if tty {
		t.SetStyle(table.StyleRounded)
	} else {
		t.SetStyle(table.StyleLight)
	}

	title := fmt.Sprintf("Import %s (%s)", r.Source, r.State)
	if r.DryRun {
		title += " [dry run]"
	}
	t.SetTitle(title)
	t.AppendHeader(table.Row{"Outcome", "Records"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignLeft},
		{Number: 2, Align: text.AlignRight},
	})

	t.AppendRow(table.Row{"Imported", paint(tty, text.FgGreen, r.Imported)})
	t.AppendRow(table.Row{"Skipped (duplicate)", r.SkippedDuplicate})
	t.AppendRow(table.Row{"Rejected (invalid)", paint(tty, text.FgYellow, r.RejectedInvalid)})
	t.AppendRow(table.Row{"Errored", paint(tty, text.FgRed, r.Errored)})
	t.AppendRow(table.Row{"Not attempted", r.NotAttempted})
	t.AppendSeparator()
	t.AppendFooter(table.Row{"Total", r.Total})
	t.Render()

	fmt.Fprintf(w, "Batches: %d submitted, %d succeeded, %d failed\n",
		r.Batches.Total, r.Batches.Succeeded, r.Batches.Failed)
	fmt.Fprintf(w, "Run %s finished in %s\n", r.RunID, r.Duration().Round(time.Millisecond))
	if r.Cancelled {
		fmt.Fprintln(w, "Run was cancelled; submitted batches were allowed to finish")
	}
	if r.Fatal != "" {
		fmt.Fprintf(w, "Run aborted: %s\n", r.Fatal)
	}

	if len(r.Errors) == 0 {
		return
	}

	et := table.NewWriter()
	et.SetOutputMirror(w)
	if tty {
		et.SetStyle(table.StyleRounded)
	} else {
		et.SetStyle(table.StyleLight)
	}
	et.SetTitle(fmt.Sprintf("Errors (%d of %d)", len(r.Errors), r.ErrorCount))
	et.AppendHeader(table.Row{"Line", "Batch", "#", "Phone", "Stage", "Reason"})
	et.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignRight},
		{Number: 2, Align: text.AlignRight},
		{Number: 3, Align: text.AlignRight},
		{Number: 6, WidthMax: maxReasonWidth},
	})
	for _, e := range r.Errors {
		et.AppendRow(table.Row{blank(e.Line), blank(e.Batch), blank(e.Index), e.Phone, e.Stage, e.Reason})
	}
	et.Render()
}

func paint(tty bool, c text.Color, n int) any {
	if !tty || n == 0 {
		return n
	}
	return c.Sprint(n)
}

func blank(n int) any {
	if n == 0 {
		return ""
	}
	return n
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
