package checks

import (
	"regexp"
	"strings"

	"github.com/typst/package-check/internal/report"
)

// readmeRule checks that a README exists and does not rely on GitHub
// Markdown extensions the registry's renderer does not support.
type readmeRule struct{}

func (r *readmeRule) ID() string { return "readme" }

const readmeName = "README.md"

var (
	alertPattern    = regexp.MustCompile(`^>\s*\[!(NOTE|TIP|IMPORTANT|WARNING|CAUTION)\]`)
	tasklistPattern = regexp.MustCompile(`^\s*[-*+]\s+\[[ xX]\]\s`)
)

func (r *readmeRule) Evaluate(ctx *Context) []report.Diagnostic {
	content, ok := ctx.Tree.File(readmeName)
	if !ok {
		return []report.Diagnostic{report.Warning("readme/missing", "", report.Span{},
			"the package has no %s; one is required for publication", readmeName)}
	}

	var diags []report.Diagnostic
	inFence := false
	for i, line := range strings.Split(string(content), "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			inFence = !inFence
			continue
		}
		if inFence {
			continue
		}

		if alertPattern.MatchString(line) {
			diags = append(diags, report.Warning("readme/alert", readmeName,
				report.Line(i+1, 1, len(line)+1),
				"GFM alert boxes are not rendered on the package registry"))
		}
		if tasklistPattern.MatchString(line) {
			diags = append(diags, report.Warning("readme/tasklist", readmeName,
				report.Line(i+1, 1, len(line)+1),
				"GFM task lists are not rendered on the package registry"))
		}
	}

	return diags
}
