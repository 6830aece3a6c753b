// Package printer formats CLI output with colors.
// Author: momentics <momentics@gmail.com>
package printer

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/fatih/color"
)

var (
	green  = color.New(color.FgGreen)
	yellow = color.New(color.FgYellow)
	red    = color.New(color.FgRed, color.Bold)
	cyan   = color.New(color.FgCyan)
)

// Out is where the non-error helpers write. Tests swap it for a buffer.
var Out io.Writer = os.Stdout

// Success prints a success message in green with a checkmark prefix
func Success(format string, a ...any) {
	green.Fprintf(Out, "✓ %s", fmt.Sprintf(format, a...))
}

// Warning prints a warning message in yellow
func Warning(format string, a ...any) {
	yellow.Fprintf(Out, "! %s", fmt.Sprintf(format, a...))
}

// Step prints a step message with emphasis (used in multi-step operations)
func Step(format string, a ...any) {
	cyan.Fprintf(Out, "→ %s", fmt.Sprintf(format, a...))
}

// Printf prints a plain formatted message
func Printf(format string, a ...any) {
	fmt.Fprintf(Out, format, a...)
}

// Error prints title and explanation to stderr and returns a plain error
// for Cobra (which is configured not to print it again).
func Error(title string, explanation string, suggestions []string) error {
	red.Fprintf(os.Stderr, "%s\n\n", title)
	if explanation != "" {
		fmt.Fprintf(os.Stderr, "%s\n", explanation)
	}
	if len(suggestions) > 0 {
		fmt.Fprintf(os.Stderr, "\n")
		for i, s := range suggestions {
			fmt.Fprintf(os.Stderr, "  %d. %s\n", i+1, s)
		}
	}
	return fmt.Errorf("%s", title)
}

// Table prints key/value pairs sorted by key, keys padded to one column.
func Table(title string, rows map[string]any) {
	keys := make([]string, 0, len(rows))
	width := 0
	for k := range rows {
		keys = append(keys, k)
		if len(k) > width {
			width = len(k)
		}
	}
	sort.Strings(keys)

	cyan.Fprintf(Out, "%s\n", title)
	fmt.Fprintln(Out, strings.Repeat("-", len(title)))
	for _, k := range keys {
		fmt.Fprintf(Out, "  %-*s  %v\n", width, k, rows[k])
	}
}
