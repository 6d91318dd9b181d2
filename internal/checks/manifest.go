package checks

import (
	"strings"

	"github.com/typst/package-check/internal/manifest"
	"github.com/typst/package-check/internal/report"
)

// osiLicenses is the subset of SPDX identifiers accepted by the registry.
var osiLicenses = map[string]bool{
	"AGPL-3.0-only":     true,
	"AGPL-3.0-or-later": true,
	"Apache-2.0":        true,
	"BSD-2-Clause":      true,
	"BSD-3-Clause":      true,
	"BSL-1.0":           true,
	"CC0-1.0":           true,
	"EPL-2.0":           true,
	"EUPL-1.2":          true,
	"GPL-2.0-only":      true,
	"GPL-2.0-or-later":  true,
	"GPL-3.0-only":      true,
	"GPL-3.0-or-later":  true,
	"ISC":               true,
	"LGPL-2.1-only":     true,
	"LGPL-2.1-or-later": true,
	"LGPL-3.0-only":     true,
	"LGPL-3.0-or-later": true,
	"MIT":               true,
	"MIT-0":             true,
	"MPL-2.0":           true,
	"OFL-1.1":           true,
	"Unlicense":         true,
	"Zlib":              true,
}

// manifestRule validates registry-level consistency of the manifest: the
// directory a package lives in must agree with what the manifest declares,
// and publication metadata must be present and acceptable.
type manifestRule struct{}

func (r *manifestRule) ID() string { return "manifest" }

func (r *manifestRule) Evaluate(ctx *Context) []report.Diagnostic {
	var diags []report.Diagnostic
	pkg := ctx.Manifest.Package

	if ctx.Spec != nil {
		if pkg.Name != ctx.Spec.Name {
			diags = append(diags, report.Error("manifest/name-mismatch", manifest.FileName,
				keySpan(ctx, "name"),
				"unexpected package name: %q was expected. To publish a new package, create a new directory in packages/%s/",
				ctx.Spec.Name, ctx.Spec.Namespace))
		}
		if v := ctx.Manifest.SemVersion(); v != nil && !v.Equal(ctx.Spec.Version) {
			diags = append(diags, report.Error("manifest/version-mismatch", manifest.FileName,
				keySpan(ctx, "version"),
				"unexpected version number: %q was expected. To publish a new version, create a new directory in packages/%s/%s/",
				ctx.Spec.Version, ctx.Spec.Namespace, ctx.Spec.Name))
		}
	}

	switch {
	case pkg.License == "":
		diags = append(diags, report.Error("manifest/license", manifest.FileName,
			report.Span{}, "package.license is required"))
	case !licenseAccepted(pkg.License):
		diags = append(diags, report.Error("manifest/license", manifest.FileName,
			keySpan(ctx, "license"),
			"license %q is not an accepted SPDX OSI-approved identifier", pkg.License))
	}

	if pkg.Description == "" {
		diags = append(diags, report.Warning("manifest/description", manifest.FileName,
			report.Span{}, "package.description should describe the package in a sentence"))
	}
	if len(pkg.Authors) == 0 {
		diags = append(diags, report.Warning("manifest/authors", manifest.FileName,
			report.Span{}, "package.authors should list at least one author"))
	}

	return diags
}

// licenseAccepted accepts a single identifier or an OR-expression where each
// alternative is accepted.
func licenseAccepted(expr string) bool {
	for _, part := range strings.Split(expr, " OR ") {
		if !osiLicenses[strings.TrimSpace(part)] {
			return false
		}
	}
	return true
}

// keySpan points a diagnostic at a `key = ...` line of the manifest.
func keySpan(ctx *Context, key string) report.Span {
	data, ok := ctx.Tree.File(manifest.FileName)
	if !ok {
		return report.Span{}
	}
	for i, line := range strings.Split(string(data), "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, key+" ") || strings.HasPrefix(trimmed, key+"=") {
			start := strings.Index(line, key) + 1
			return report.Line(i+1, start, len(line)+1)
		}
	}
	return report.Span{}
}
