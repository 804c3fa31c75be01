package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"

	"github.com/danieljhkim/mirrorsync/internal/dispatch"
)

var (
	// fatih/color disables itself when stdout is not a TTY. Helpers write to
	// os.Stdout explicitly so redirections made after init are honoured.
	successColor = color.New(color.FgGreen, color.Bold)
	warningColor = color.New(color.FgYellow, color.Bold)
	errorColor   = color.New(color.FgRed, color.Bold)
	infoColor    = color.New(color.FgCyan)
	headerColor  = color.New(color.FgBlue, color.Bold)
	labelColor   = color.New(color.FgWhite, color.Bold)
	valueColor   = color.New(color.FgHiBlack)
	dimColor     = color.New(color.FgHiBlack)
)

// PrintSection prints a section header
func PrintSection(title string) {
	fmt.Println()
	_, _ = headerColor.Fprintf(os.Stdout, "▸ %s\n", title)
	fmt.Println()
}

// PrintSuccess prints a success message with a checkmark
func PrintSuccess(msg string) {
	_, _ = successColor.Fprintf(os.Stdout, "✓ %s\n", msg)
}

// PrintWarning prints a warning message with a warning symbol
func PrintWarning(msg string) {
	_, _ = warningColor.Fprintf(os.Stdout, "⚠ %s\n", msg)
}

// PrintError prints an error message to stderr
func PrintError(msg string) {
	_, _ = errorColor.Fprintf(os.Stderr, "✗ %s\n", msg)
}

// PrintInfo prints an informational message
func PrintInfo(msg string) {
	fmt.Println(msg)
}

// PrintLabelValue prints a label-value pair
func PrintLabelValue(label, value string) {
	_, _ = labelColor.Fprintf(os.Stdout, "  %s: ", label)
	_, _ = valueColor.Fprintln(os.Stdout, value)
}

// PrintList prints a list of items with bullet points
func PrintList(items []string, indent int) {
	indentStr := strings.Repeat("  ", indent)
	for _, item := range items {
		_, _ = infoColor.Fprintf(os.Stdout, "%s• %s\n", indentStr, item)
	}
}

// PrintTable prints a simple table
func PrintTable(headers []string, rows [][]string) {
	if len(headers) == 0 || len(rows) == 0 {
		return
	}

	colWidths := make([]int, len(headers))
	for i, header := range headers {
		colWidths[i] = len(header)
	}
	for _, row := range rows {
		for i, cell := range row {
			if i < len(colWidths) && len(cell) > colWidths[i] {
				colWidths[i] = len(cell)
			}
		}
	}

	_, _ = headerColor.Fprint(os.Stdout, "  ")
	for i, header := range headers {
		if i > 0 {
			fmt.Print("  ")
		}
		_, _ = headerColor.Fprintf(os.Stdout, "%-*s", colWidths[i], header)
	}
	fmt.Println()

	fmt.Print("  ")
	for i, width := range colWidths {
		if i > 0 {
			fmt.Print("  ")
		}
		fmt.Print(strings.Repeat("-", width))
	}
	fmt.Println()

	for _, row := range rows {
		fmt.Print("  ")
		for i, cell := range row {
			if i >= len(colWidths) {
				break
			}
			if i > 0 {
				fmt.Print("  ")
			}
			_, _ = valueColor.Fprintf(os.Stdout, "%-*s", colWidths[i], cell)
		}
		fmt.Println()
	}
}

// PrintEmptyState prints a message when there's no data to show
func PrintEmptyState(msg string) {
	_, _ = dimColor.Fprintf(os.Stdout, "  %s\n", msg)
}

// PrintCount prints a count with proper formatting
func PrintCount(count int, singular, plural string) string {
	if count == 1 {
		return fmt.Sprintf("%d %s", count, singular)
	}
	return fmt.Sprintf("%d %s", count, plural)
}

// outcomeLine renders one outcome as "<repo> <ref> <old>..<new>".
func outcomeLine(o dispatch.Outcome) string {
	repo := o.Repository
	if repo == "" {
		repo = "?"
	}
	line := fmt.Sprintf("%s %s %s..%s", repo, o.Event.Ref, o.Event.OldSHA.Short(), o.Event.NewSHA.Short())
	if o.Origin != "" {
		line += " from " + o.Origin
	}
	if o.Classification != "" {
		line += " (" + o.Classification + ")"
	}
	return line
}

// printReport prints one line per outcome and a summary.
func printReport(report *dispatch.Report) {
	if len(report.Outcomes) == 0 {
		PrintEmptyState("No ref updates")
		return
	}
	for _, o := range report.Outcomes {
		line := outcomeLine(o)
		switch o.Status {
		case dispatch.StatusApplied:
			PrintSuccess(line)
		case dispatch.StatusUnchanged:
			PrintInfo("  " + line + ": already up to date")
		case dispatch.StatusPartial:
			PrintWarning(fmt.Sprintf("%s: mirrors lagging: %s", line, strings.Join(o.FailedMirrors, ", ")))
		case dispatch.StatusSkipped:
			_, _ = dimColor.Fprintf(os.Stdout, "  %s: skipped: %s\n", line, o.Error)
		default:
			PrintError(fmt.Sprintf("%s: %s", line, o.Error))
		}
	}

	summary := PrintCount(len(report.Outcomes), "update", "updates")
	if n := report.Count(dispatch.StatusFailed) + report.Count(dispatch.StatusPartial); n > 0 {
		summary += fmt.Sprintf(", %d with errors", n)
	}
	_, _ = dimColor.Fprintf(os.Stdout, "  %s\n", summary)
}

// emitReport prints report in the selected format and returns its error.
func emitReport(report *dispatch.Report, err error) error {
	if report == nil {
		return err
	}
	if jsonOutput {
		if jerr := outputJSON(report); jerr != nil {
			return jerr
		}
	} else {
		printReport(report)
	}
	return err
}
