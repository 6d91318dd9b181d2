package checks

import (
	"path"

	logger "github.com/sirupsen/logrus"

	"github.com/typst/package-check/internal/manifest"
	"github.com/typst/package-check/internal/report"
)

// authorsRule warns when, according to the clone's git history, the people
// who committed this version's manifest share no author with those of the
// previous version. A full handover is suspicious enough to deserve a second
// look from a human reviewer.
type authorsRule struct{}

func (r *authorsRule) ID() string { return "authors" }

func (r *authorsRule) Evaluate(ctx *Context) []report.Diagnostic {
	if ctx.Spec == nil || ctx.Registry == nil || ctx.History == nil {
		return nil
	}

	previous, ok := ctx.Registry.PreviousVersion(ctx.Spec)
	if !ok {
		return nil
	}

	previousAuthors, err := ctx.History.FileAuthors(path.Join(previous.RegistryPath(), manifest.FileName))
	if err != nil {
		logger.Debugf("authors: no history for %s: %v", previous, err)
		return nil
	}
	currentAuthors, err := ctx.History.FileAuthors(path.Join(ctx.Spec.RegistryPath(), manifest.FileName))
	if err != nil {
		logger.Debugf("authors: no history for %s: %v", ctx.Spec, err)
		return nil
	}

	if len(previousAuthors) == 0 || len(currentAuthors) == 0 {
		return nil
	}
	if intersects(previousAuthors, currentAuthors) {
		return nil
	}

	return []report.Diagnostic{report.Warning("authors/changed", manifest.FileName,
		report.Span{},
		"the authors of this version are not the same as those of %s (according to git history)",
		previous.Version)}
}

func intersects(a, b []string) bool {
	set := make(map[string]struct{}, len(a))
	for _, v := range a {
		set[v] = struct{}{}
	}
	for _, v := range b {
		if _, ok := set[v]; ok {
			return true
		}
	}
	return false
}
