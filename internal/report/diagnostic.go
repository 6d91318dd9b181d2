// Package report defines the diagnostic model shared by every check, and the
// aggregation step that turns raw rule output into a stable, printable report.
package report

import "fmt"

// Severity classifies how serious a diagnostic is. Only errors fail a run;
// warnings and hints annotate it.
type Severity int

const (
	SeverityHint Severity = iota
	SeverityWarning
	SeverityError
)

func (s Severity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	default:
		return "hint"
	}
}

// Span is a source location within a file. Lines and columns are 1-indexed;
// a zero value means the position is unknown (a file-level diagnostic).
type Span struct {
	StartLine   int
	StartColumn int
	EndLine     int
	EndColumn   int
}

// IsZero reports whether the span carries no position information.
func (s Span) IsZero() bool {
	return s == Span{}
}

// Line builds a span covering the given column range on a single line.
func Line(line, startCol, endCol int) Span {
	return Span{StartLine: line, StartColumn: startCol, EndLine: line, EndColumn: endCol}
}

// Diagnostic is a single reported issue. It is immutable once produced.
type Diagnostic struct {
	Severity Severity
	Rule     string // stable rule identifier, e.g. "imports/unresolved"
	Message  string
	File     string // path relative to the package root; empty for package-level issues
	Span     Span
}

// Error builds an error-severity diagnostic.
func Error(rule, file string, span Span, format string, args ...any) Diagnostic {
	return Diagnostic{
		Severity: SeverityError,
		Rule:     rule,
		File:     file,
		Span:     span,
		Message:  fmt.Sprintf(format, args...),
	}
}

// Warning builds a warning-severity diagnostic.
func Warning(rule, file string, span Span, format string, args ...any) Diagnostic {
	return Diagnostic{
		Severity: SeverityWarning,
		Rule:     rule,
		File:     file,
		Span:     span,
		Message:  fmt.Sprintf(format, args...),
	}
}

// Hint builds a hint-severity diagnostic.
func Hint(rule, file string, span Span, format string, args ...any) Diagnostic {
	return Diagnostic{
		Severity: SeverityHint,
		Rule:     rule,
		File:     file,
		Span:     span,
		Message:  fmt.Sprintf(format, args...),
	}
}
