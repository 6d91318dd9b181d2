package report

import "sort"

// Report is the final, ordered outcome of one analysis run. It is never
// mutated after aggregation.
type Report struct {
	Diagnostics []Diagnostic
}

// Aggregate merges raw rule output into a Report: exact repeats are removed
// and the remainder is sorted so that two runs over the same input produce
// byte-identical output.
func Aggregate(diags []Diagnostic) Report {
	seen := make(map[Diagnostic]struct{}, len(diags))
	unique := make([]Diagnostic, 0, len(diags))
	for _, d := range diags {
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		unique = append(unique, d)
	}

	sort.SliceStable(unique, func(i, j int) bool {
		a, b := unique[i], unique[j]
		if a.File != b.File {
			return a.File < b.File
		}
		if a.Span.StartLine != b.Span.StartLine {
			return a.Span.StartLine < b.Span.StartLine
		}
		if a.Span.StartColumn != b.Span.StartColumn {
			return a.Span.StartColumn < b.Span.StartColumn
		}
		if a.Severity != b.Severity {
			return a.Severity > b.Severity // errors before warnings before hints
		}
		if a.Rule != b.Rule {
			return a.Rule < b.Rule
		}
		return a.Message < b.Message
	})

	return Report{Diagnostics: unique}
}

// Passed reports the overall verdict: a run passes unless at least one
// error-severity diagnostic exists.
func (r Report) Passed() bool {
	return r.Errors() == 0
}

// Errors counts error-severity diagnostics.
func (r Report) Errors() int { return r.count(SeverityError) }

// Warnings counts warning-severity diagnostics.
func (r Report) Warnings() int { return r.count(SeverityWarning) }

// Hints counts hint-severity diagnostics.
func (r Report) Hints() int { return r.count(SeverityHint) }

func (r Report) count(sev Severity) int {
	n := 0
	for _, d := range r.Diagnostics {
		if d.Severity == sev {
			n++
		}
	}
	return n
}
