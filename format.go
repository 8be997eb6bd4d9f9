package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

// Statusf writes progress chatter to stderr; --quiet silences it.
func (cc *CLIContext) Statusf(format string, args ...any) {
	if !cc.Flags.Quiet {
		fmt.Fprintf(os.Stderr, format, args...)
	}
}

var sizeUnits = []string{"KB", "MB", "GB", "TB"}

// formatSize renders bytes in binary units with one decimal ("1.5 MB").
func formatSize(bytes int64) string {
	if bytes < 1024 {
		return fmt.Sprintf("%d B", bytes)
	}

	v := float64(bytes) / 1024
	unit := 0

	for v >= 1024 && unit < len(sizeUnits)-1 {
		v /= 1024
		unit++
	}

	return fmt.Sprintf("%.1f %s", v, sizeUnits[unit])
}

// formatTime shows the clock for this year's runs and the year otherwise,
// like ls -l.
func formatTime(t time.Time) string {
	switch {
	case t.IsZero():
		return "-"
	case t.Year() == time.Now().Year():
		return t.Format("Jan _2 15:04")
	default:
		return t.Format("Jan _2  2006")
	}
}

// formatDuration renders a run length rounded to the second.
func formatDuration(start, end time.Time) string {
	if start.IsZero() || end.IsZero() {
		return "-"
	}

	return end.Sub(start).Round(time.Second).String()
}

// printTable left-aligns rows under headers, two spaces between columns.
// Every row must have len(headers) cells.
func printTable(w io.Writer, headers []string, rows [][]string) {
	all := append([][]string{headers}, rows...)

	widths := make([]int, len(headers))
	for _, row := range all {
		for i, cell := range row {
			widths[i] = max(widths[i], len(cell))
		}
	}

	for _, row := range all {
		printRow(w, row, widths)
	}
}

func printRow(w io.Writer, cells []string, widths []int) {
	parts := make([]string, len(cells))
	for i, cell := range cells {
		parts[i] = fmt.Sprintf("%-*s", widths[i], cell)
	}

	fmt.Fprintln(w, strings.TrimRight(strings.Join(parts, "  "), " "))
}

// printJSON is the --json output path for every command.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encoding JSON output: %w", err)
	}

	return nil
}
