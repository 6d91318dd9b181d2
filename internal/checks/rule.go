// Package checks hosts the rule engine and the rule set that together make
// up the check side of package review. Rules are independent, side-effect
// free, and isolated from each other's failures.
package checks

import (
	logger "github.com/sirupsen/logrus"

	"github.com/typst/package-check/internal/imports"
	"github.com/typst/package-check/internal/manifest"
	"github.com/typst/package-check/internal/report"
	"github.com/typst/package-check/internal/sources"
)

// History exposes the commit metadata a rule may need from the registry
// clone. It is nil when no git history is available (plain directory mode).
type History interface {
	// FileAuthors returns the distinct author emails that ever touched a
	// path, relative to the clone root.
	FileAuthors(path string) ([]string, error)
}

// Context carries the read-only inputs of one analysis run. Rules must not
// mutate anything reachable from it.
type Context struct {
	Spec     *sources.PackageSpec // nil when checking a plain directory
	Manifest *manifest.Manifest   // nil when the manifest was malformed
	Tree     *sources.Tree
	Graph    *imports.Graph     // nil when no entrypoint could be resolved
	Registry *sources.Registry  // nil in plain directory mode
	History  History            // nil when commit metadata is unavailable
}

// Rule is one independent check. Implementations return zero or more
// diagnostics and must not panic; if they do anyway, the engine contains the
// damage.
type Rule interface {
	ID() string
	Evaluate(ctx *Context) []report.Diagnostic
}

// Engine executes a fixed, ordered list of rules. Execution order never
// affects report content: only the aggregator's sort determines output order.
type Engine struct {
	rules    []Rule
	disabled map[string]bool
}

// NewEngine creates an engine over the given rules. Rule IDs listed in
// disabled are skipped entirely.
func NewEngine(rules []Rule, disabled map[string]bool) *Engine {
	return &Engine{rules: rules, disabled: disabled}
}

// DefaultRules returns the full rule set in its fixed order.
func DefaultRules() []Rule {
	return []Rule{
		&manifestRule{},
		&importsRule{},
		&namingRule{},
		&filesRule{},
		&readmeRule{},
		&authorsRule{},
	}
}

// Run evaluates every enabled rule. A panicking rule yields a single
// engine/internal-failure diagnostic naming it, and the remaining rules still
// run: one bad rule must not blind the whole report.
func (e *Engine) Run(ctx *Context) []report.Diagnostic {
	var diags []report.Diagnostic
	for _, rule := range e.rules {
		if e.disabled[rule.ID()] {
			logger.Debugf("rule %s is disabled, skipping", rule.ID())
			continue
		}
		diags = append(diags, e.runOne(rule, ctx)...)
	}
	return diags
}

func (e *Engine) runOne(rule Rule, ctx *Context) (diags []report.Diagnostic) {
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("rule %s panicked: %v", rule.ID(), r)
			diags = []report.Diagnostic{report.Error(
				"engine/internal-failure", "", report.Span{},
				"internal failure while running rule %s: %v", rule.ID(), r,
			)}
		}
	}()
	return rule.Evaluate(ctx)
}
