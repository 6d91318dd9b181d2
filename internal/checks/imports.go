package checks

import (
	"strings"

	"github.com/typst/package-check/internal/imports"
	"github.com/typst/package-check/internal/report"
)

// importsRule turns the structural findings of the import graph into
// diagnostics: unresolved imports, import cycles, missing sibling packages,
// entrypoint self-imports by relative path, and unreachable files.
type importsRule struct{}

func (r *importsRule) ID() string { return "imports" }

func (r *importsRule) Evaluate(ctx *Context) []report.Diagnostic {
	if ctx.Graph == nil {
		return nil
	}
	g := ctx.Graph

	var diags []report.Diagnostic

	for _, ref := range g.Unresolved {
		diags = append(diags, report.Error("imports/unresolved",
			g.Nodes[ref.From].Path, span(ref.Directive),
			"import of %q does not resolve to a file in this package", ref.Directive.Target))
	}

	for _, ref := range g.Malformed {
		diags = append(diags, report.Error("imports/malformed",
			g.Nodes[ref.From].Path, span(ref.Directive),
			"malformed package reference %q: %s", ref.Directive.Target, ref.Reason))
	}

	for _, ref := range g.External {
		// Existence is only checkable against a local registry clone, and
		// only there may a missing package be reported (offline determinism).
		if ctx.Registry != nil && !ref.Found {
			diags = append(diags, report.Error("registry/package-not-found",
				g.Nodes[ref.From].Path, span(ref.Directive),
				"package %s does not exist in the local registry clone", ref.Spec))
		}
		// A package importing itself through the registry pins an older
		// version forever.
		if ctx.Spec != nil && ref.Spec.Namespace == ctx.Spec.Namespace && ref.Spec.Name == ctx.Spec.Name {
			diags = append(diags, report.Warning("imports/self-reference",
				g.Nodes[ref.From].Path, span(ref.Directive),
				"this package imports itself through the registry; use a relative path instead"))
		}
	}

	for _, cycle := range g.Cycles {
		diags = append(diags, report.Error("imports/cycle",
			cycle.Anchor, report.Span{},
			"import cycle between %s", strings.Join(cycle.Members, ", ")))
	}

	for _, edge := range g.Edges {
		if edge.To == g.Entrypoint() && edge.From != g.Entrypoint() {
			diags = append(diags, report.Warning("imports/entrypoint-path",
				g.Nodes[edge.From].Path, span(edge.Directive),
				"this import should use the package specification, not a relative path to the entrypoint"))
		}
	}

	for _, path := range g.Unreachable {
		if isTemplateFile(ctx, path) {
			continue
		}
		diags = append(diags, report.Hint("imports/unreachable",
			path, report.Span{},
			"this file is never imported from the entrypoint"))
	}

	return diags
}

// isTemplateFile excludes a template package's scaffolding from the
// unreachable-file hint: template files are instantiated by users, not
// imported by the package.
func isTemplateFile(ctx *Context, path string) bool {
	t := ctx.Manifest.Template
	if t == nil || t.Path == "" {
		return false
	}
	prefix := strings.TrimSuffix(t.Path, "/") + "/"
	return strings.HasPrefix(path, prefix)
}

// span converts a directive's position into a diagnostic span.
func span(d imports.Directive) report.Span {
	return report.Line(d.Line, d.StartColumn, d.EndColumn)
}
