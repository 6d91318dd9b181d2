package github

import (
	"fmt"
	"path"

	"github.com/typst/package-check/internal/report"
)

// OutcomeFromReport converts an analysis report into a check run outcome.
// pathPrefix rebases the package-relative diagnostic paths onto the
// repository root so annotations land on the right files in the PR view.
func OutcomeFromReport(rep report.Report, pathPrefix string) Outcome {
	outcome := Outcome{
		Conclusion: conclusion(rep),
		Title:      report.Summary(rep),
		Summary: fmt.Sprintf(
			"Our bots have automatically run some checks on your package. "+
				"They found %d error(s), %d warning(s) and %d hint(s).\n\n"+
				"Warnings and hints are suggestions; your package can still be accepted "+
				"if you prefer not to fix them.\n\n"+
				"A human being will review your package soon, too.",
			rep.Errors(), rep.Warnings(), rep.Hints()),
	}

	for _, d := range rep.Diagnostics {
		if d.File == "" || d.Span.IsZero() {
			// Package-level findings have no place to anchor an annotation;
			// they are covered by the summary counts.
			continue
		}
		outcome.Annotations = append(outcome.Annotations, Annotation{
			Path:        path.Join(pathPrefix, d.File),
			StartLine:   d.Span.StartLine,
			EndLine:     d.Span.EndLine,
			StartColumn: d.Span.StartColumn,
			EndColumn:   d.Span.EndColumn,
			Level:       level(d.Severity),
			Message:     fmt.Sprintf("[%s] %s", d.Rule, d.Message),
		})
	}
	return outcome
}

// conclusion maps the verdict onto GitHub's conclusion values: errors fail
// the run, a clean report succeeds, and warnings-only reports are neutral so
// they do not block a merge.
func conclusion(rep report.Report) string {
	switch {
	case rep.Errors() > 0:
		return "failure"
	case rep.Warnings() > 0:
		return "neutral"
	default:
		return "success"
	}
}

func level(sev report.Severity) string {
	switch sev {
	case report.SeverityError:
		return "failure"
	case report.SeverityWarning:
		return "warning"
	default:
		return "notice"
	}
}
