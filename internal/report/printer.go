package report

import (
	"fmt"
	"io"
)

// Print writes a human-readable rendition of the report, grouped by file,
// followed by a final pass/fail line. This is the CLI's only output format.
func Print(w io.Writer, r Report) {
	lastFile := ""
	first := true
	for _, d := range r.Diagnostics {
		if first || d.File != lastFile {
			if !first {
				fmt.Fprintln(w)
			}
			if d.File == "" {
				fmt.Fprintln(w, "package:")
			} else {
				fmt.Fprintf(w, "%s:\n", d.File)
			}
			lastFile = d.File
			first = false
		}
		if d.Span.IsZero() {
			fmt.Fprintf(w, "  %s[%s]: %s\n", d.Severity, d.Rule, d.Message)
		} else {
			fmt.Fprintf(w, "  %d:%d %s[%s]: %s\n",
				d.Span.StartLine, d.Span.StartColumn, d.Severity, d.Rule, d.Message)
		}
	}

	if !first {
		fmt.Fprintln(w)
	}
	fmt.Fprintln(w, Summary(r))
}

// Summary renders the one-line verdict used both by the CLI and as the
// check run title on GitHub.
func Summary(r Report) string {
	if r.Passed() {
		if r.Warnings() == 0 && r.Hints() == 0 {
			return "All good!"
		}
		return fmt.Sprintf("passed with %d warning%s and %d hint%s",
			r.Warnings(), plural(r.Warnings()), r.Hints(), plural(r.Hints()))
	}
	if r.Warnings() == 0 {
		return fmt.Sprintf("failed: %d error%s", r.Errors(), plural(r.Errors()))
	}
	return fmt.Sprintf("failed: %d error%s, %d warning%s",
		r.Errors(), plural(r.Errors()), r.Warnings(), plural(r.Warnings()))
}

func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}
