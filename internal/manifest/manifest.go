// Package manifest parses and validates typst.toml, the declarative manifest
// every package must carry at its root.
package manifest

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/Masterminds/semver/v3"

	"github.com/typst/package-check/internal/report"
	"github.com/typst/package-check/internal/sources"
)

// FileName is the manifest's fixed location within a package.
const FileName = "typst.toml"

// Manifest mirrors the typst.toml schema.
type Manifest struct {
	Package  Package   `toml:"package"`
	Template *Template `toml:"template"`
}

// Package is the required [package] section.
type Package struct {
	Name        string   `toml:"name"`
	Version     string   `toml:"version"`
	Entrypoint  string   `toml:"entrypoint"`
	Authors     []string `toml:"authors"`
	License     string   `toml:"license"`
	Description string   `toml:"description"`
	Homepage    string   `toml:"homepage"`
	Repository  string   `toml:"repository"`
	Keywords    []string `toml:"keywords"`
	Categories  []string `toml:"categories"`
	Compiler    string   `toml:"compiler"`
	Exclude     []string `toml:"exclude"`
}

// Template is the optional [template] section for template packages.
type Template struct {
	Path       string `toml:"path"`
	Entrypoint string `toml:"entrypoint"`
	Thumbnail  string `toml:"thumbnail"`
}

// Version returns the parsed semantic version, or nil when it is invalid.
// Validate reports the invalid case separately.
func (m *Manifest) SemVersion() *semver.Version {
	v, err := semver.StrictNewVersion(m.Package.Version)
	if err != nil {
		return nil
	}
	return v
}

var namePattern = regexp.MustCompile(`^[a-z][a-z0-9]*(-[a-z0-9]+)*$`)

// Parse decodes manifest bytes. A syntax failure is returned as an error with
// the decoder's reason; callers turn it into a manifest/malformed diagnostic.
func Parse(data []byte) (*Manifest, error) {
	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("invalid TOML: %w", err)
	}
	return &m, nil
}

// Load reads and parses the manifest out of a package tree. When the file is
// missing or malformed it returns a nil manifest plus the diagnostics that
// explain why, letting the CLI short-circuit the rest of the pipeline.
func Load(tree *sources.Tree) (*Manifest, []report.Diagnostic) {
	data, ok := tree.File(FileName)
	if !ok {
		return nil, []report.Diagnostic{
			report.Error("manifest/missing", "", report.Span{},
				"no %s found at the package root", FileName),
		}
	}

	m, err := Parse(data)
	if err != nil {
		return nil, []report.Diagnostic{
			report.Error("manifest/malformed", FileName, report.Span{}, "%v", err),
		}
	}

	return m, m.Validate(tree)
}

// Validate checks required fields and formats. The resulting diagnostics all
// carry the manifest/invalid rule; a manifest that validates cleanly may
// still be rejected by higher-level rules (registry consistency, license).
func (m *Manifest) Validate(tree *sources.Tree) []report.Diagnostic {
	var diags []report.Diagnostic
	invalid := func(format string, args ...any) {
		diags = append(diags, report.Error(
			"manifest/invalid", FileName, locate(tree, keyOf(format)), format, args...))
	}

	switch {
	case m.Package.Name == "":
		invalid("package.name is required")
	case !namePattern.MatchString(m.Package.Name):
		invalid("package.name %q must be kebab-case (lowercase letters, digits and hyphens)", m.Package.Name)
	}

	switch {
	case m.Package.Version == "":
		invalid("package.version is required")
	default:
		if _, err := semver.StrictNewVersion(m.Package.Version); err != nil {
			invalid("package.version %q is not a valid semantic version", m.Package.Version)
		}
	}

	switch {
	case m.Package.Entrypoint == "":
		invalid("package.entrypoint is required")
	case !strings.HasSuffix(m.Package.Entrypoint, ".typ"):
		invalid("package.entrypoint %q must be a .typ file", m.Package.Entrypoint)
	case !tree.Has(m.Package.Entrypoint):
		invalid("package.entrypoint %q does not exist in the package", m.Package.Entrypoint)
	}

	if m.Template != nil {
		if m.Template.Path == "" || m.Template.Entrypoint == "" {
			invalid("template.path and template.entrypoint are required for template packages")
		}
	}

	return diags
}

// keyOf extracts the "section.key" prefix of a validation message so the
// diagnostic can point at the offending manifest line.
func keyOf(message string) string {
	key, _, _ := strings.Cut(message, " ")
	_, key, found := strings.Cut(key, ".")
	if !found {
		return ""
	}
	return key
}

// locate finds the 1-indexed line of a `key =` assignment in the manifest so
// errors can be annotated in place. Falls back to a file-level span.
func locate(tree *sources.Tree, key string) report.Span {
	if key == "" {
		return report.Span{}
	}
	data, ok := tree.File(FileName)
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
