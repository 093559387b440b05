package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"text/tabwriter"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/idelchi/dirhover/internal/decoration"
	"github.com/idelchi/dirhover/internal/dirstat"
	"github.com/idelchi/dirhover/internal/format"
)

const (
	// TabSpacing is the number of spaces between tabwriter columns.
	TabSpacing = 2
)

// PrintJSON outputs v in indented JSON format.
func PrintJSON(v any, writer io.Writer) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding JSON output: %w", err)
	}

	if _, err := fmt.Fprintln(writer, string(data)); err != nil {
		return err
	}

	return nil
}

// PrintYAML outputs v in YAML format.
func PrintYAML(v any, writer io.Writer) error {
	enc := yaml.NewEncoder(writer)
	enc.SetIndent(2)

	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encoding YAML output: %w", err)
	}

	return enc.Close()
}

// PrintTable outputs a calculation report in human-readable table format.
//
//nolint:errcheck // Errors surface through Flush.
func PrintTable(report *dirstat.Report, f *format.Formatter, writer io.Writer) error {
	w := tabwriter.NewWriter(writer, 0, 4, TabSpacing, ' ', 0)

	fmt.Fprintf(w, "Path:\t%s\n", report.Path)
	fmt.Fprintf(w, "Total size:\t%s (%d bytes)\n", f.Size(report.Stats.Size), report.Stats.Size)
	fmt.Fprintf(w, "Files:\t%d\n", report.Stats.FileCount)
	fmt.Fprintf(w, "Folders:\t%d\n", report.Stats.FolderCount)

	if report.ErrorCount > 0 {
		fmt.Fprintf(w, "Unreadable entries:\t%d\n", report.ErrorCount)
	}

	fmt.Fprintf(w, "\nElapsed:\t%v\n", report.Elapsed)

	return w.Flush()
}

// PrintStatusBar outputs a report as one line rendered from template.
func PrintStatusBar(
	report *dirstat.Report,
	template string,
	f *format.Formatter,
	mtime time.Time,
	writer io.Writer,
) error {
	vars := f.ReportVars(filepath.Base(report.Path), report.Stats, mtime)

	_, err := fmt.Fprintln(writer, format.Render(template, vars))

	return err
}

// PrintTooltips outputs the rendered tooltip of each decoration, separated by blank lines.
func PrintTooltips(decorations []decoration.Decoration, writer io.Writer) error {
	for i, d := range decorations {
		if i > 0 {
			if _, err := fmt.Fprintln(writer); err != nil {
				return err
			}
		}

		if _, err := fmt.Fprintf(writer, "%s\n%s\n", d.Path, d.Tooltip); err != nil {
			return err
		}
	}

	return nil
}

// PrintDecorations outputs one table row per decoration.
//
//nolint:errcheck // Errors surface through Flush.
func PrintDecorations(decorations []decoration.Decoration, f *format.Formatter, writer io.Writer) error {
	w := tabwriter.NewWriter(writer, 0, 4, TabSpacing, ' ', 0)

	fmt.Fprintln(w, "NAME\tSTATE\tSIZE\tFILES\tFOLDERS")

	for _, d := range decorations {
		size, files, folders := "-", "-", "-"

		switch d.State {
		case decoration.StateFile:
			size = f.Size(d.Info.Size)
		case decoration.StateReady:
			size = f.Size(d.Stats.Size)
			files = strconv.FormatUint(d.Stats.FileCount, 10)
			folders = strconv.FormatUint(d.Stats.FolderCount, 10)
		case decoration.StateCalculating, decoration.StateTimedOut:
		}

		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", d.Name, d.State, size, files, folders)
	}

	return w.Flush()
}
