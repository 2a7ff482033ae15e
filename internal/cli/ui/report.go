package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/conduit-lang/metanode/internal/meta/codec"
	"github.com/conduit-lang/metanode/internal/meta/manager"
	"github.com/fatih/color"
	"github.com/google/uuid"
)

// WriteFindings lists what a repair would do. name resolves node ids for
// display.
func WriteFindings(w io.Writer, f manager.Findings, name func(uuid.UUID) string, noColor bool) {
	if f.Empty() {
		WriteSuccess(w, "Scene is up to date", noColor)
		return
	}

	t := NewTable(w, noColor, "ACTION", "NODE")
	add := func(action string, ids []uuid.UUID) {
		for _, id := range ids {
			t.AddRow(action, name(id))
		}
	}
	add("relink", f.Relink)
	add("delete duplicate singleton", f.Singleton)
	add("delete orphan", f.Orphaned)
	add("update", f.Update)
	add("delete deprecated", f.Deprecated)
	t.Render()
}

// WriteRepairLog writes one coloured line per repair, with any migration
// report indented below it, and a summary line
func WriteRepairLog(w io.Writer, log manager.RepairLog, noColor bool) {
	green := newColor(noColor, color.FgGreen)
	red := newColor(noColor, color.FgRed)
	yellow := newColor(noColor, color.FgYellow)

	for _, e := range log {
		if e.Failed() {
			red.Fprintf(w, "✗ %s\n", e)
			continue
		}
		green.Fprintf(w, "✓ %s\n", e)
		if e.Report != nil && !e.Report.Empty() {
			writeIndented(w, yellow, e.Report.String())
		}
	}

	failures := len(log.Failures())
	summary := fmt.Sprintf("%d repairs, %d failed", len(log)-failures, failures)
	if failures > 0 {
		red.Fprintln(w, summary)
		return
	}
	fmt.Fprintln(w, summary)
}

// WriteCodecReport writes what a deserialize could not restore
func WriteCodecReport(w io.Writer, r *codec.Report, noColor bool) {
	if r == nil || r.Empty() {
		return
	}
	writeIndented(w, newColor(noColor, color.FgYellow), r.String())
}

func writeIndented(w io.Writer, c *color.Color, text string) {
	for _, line := range strings.Split(strings.TrimRight(text, "\n"), "\n") {
		c.Fprintf(w, "    %s\n", line)
	}
}
