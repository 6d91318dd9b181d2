package checks

import (
	logger "github.com/sirupsen/logrus"

	"github.com/typst/package-check/internal/imports"
	"github.com/typst/package-check/internal/manifest"
	"github.com/typst/package-check/internal/report"
	"github.com/typst/package-check/internal/sources"
)

// Analyzer runs the full pipeline over one package: manifest, import graph,
// rule engine, aggregation. One Analyzer may serve many concurrent runs; its
// fields are read-only after construction.
type Analyzer struct {
	Registry *sources.Registry // nil in plain directory mode
	History  History           // nil when no clone history is available
	Disabled map[string]bool   // rule IDs to skip
}

// AnalyzeTree checks an already-loaded package tree. spec is nil when the
// package is a plain directory rather than a registry entry.
func (a *Analyzer) AnalyzeTree(spec *sources.PackageSpec, tree *sources.Tree) report.Report {
	m, diags := manifest.Load(tree)
	if m == nil {
		// Without a readable manifest there is no entrypoint to start from;
		// resolving imports or running rules would only produce noise.
		return report.Aggregate(diags)
	}

	var graph *imports.Graph
	if tree.Has(m.Package.Entrypoint) {
		graph = imports.Resolve(tree, m.Package.Entrypoint, a.Registry)
	}

	ctx := &Context{
		Spec:     spec,
		Manifest: m,
		Tree:     tree,
		Graph:    graph,
		Registry: a.Registry,
		History:  a.History,
	}
	diags = append(diags, NewEngine(DefaultRules(), a.Disabled).Run(ctx)...)
	return report.Aggregate(diags)
}

// AnalyzeDir checks the package rooted at dir (CLI mode without a spec).
func (a *Analyzer) AnalyzeDir(dir string) (report.Report, error) {
	tree, err := sources.LoadDir(dir)
	if err != nil {
		return report.Report{}, err
	}
	logger.Debugf("loaded %d files from %s", tree.Len(), dir)
	return a.AnalyzeTree(nil, tree), nil
}

// AnalyzeSpec checks a named, versioned package out of the local registry
// clone. A missing package surfaces as a registry/package-not-found
// diagnostic, not an error: CI must behave identically with or without
// network access, and the only truth is the local clone.
func (a *Analyzer) AnalyzeSpec(spec *sources.PackageSpec) (report.Report, error) {
	tree, err := a.Registry.Locate(spec)
	if err != nil {
		return report.Aggregate([]report.Diagnostic{
			report.Error("registry/package-not-found", "", report.Span{},
				"package %s does not exist in the local registry clone", spec),
		}), nil
	}
	return a.AnalyzeTree(spec, tree), nil
}
