package sources

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Masterminds/semver/v3"
)

// ErrPackageNotFound is returned when a spec does not resolve to a directory
// in the local clone. Callers turn it into a diagnostic, never a crash: the
// registry is strictly offline, so an absent package is a finding, not a
// reason to go fetch anything.
var ErrPackageNotFound = errors.New("package not found in local registry")

// Registry resolves package specs against a local clone of the package
// repository, laid out as packages/<namespace>/<name>/<version>.
type Registry struct {
	root string
}

// NewRegistry creates a registry rooted at the clone directory (the one
// containing the top-level packages/ folder).
func NewRegistry(root string) *Registry {
	return &Registry{root: root}
}

// Root returns the clone directory this registry reads from.
func (r *Registry) Root() string { return r.root }

// Dir returns the directory a spec maps to, whether or not it exists.
func (r *Registry) Dir(spec *PackageSpec) string {
	return filepath.Join(r.root, "packages", spec.Namespace, spec.Name, spec.Version.String())
}

// Has reports whether the spec resolves to an existing package directory.
func (r *Registry) Has(spec *PackageSpec) bool {
	info, err := os.Stat(r.Dir(spec))
	return err == nil && info.IsDir()
}

// Locate loads the spec's file tree from the local clone. A missing package
// or version yields ErrPackageNotFound.
func (r *Registry) Locate(spec *PackageSpec) (*Tree, error) {
	dir := r.Dir(spec)
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrPackageNotFound, spec)
	}
	return LoadDir(dir)
}

// PreviousVersion returns the highest published version of the same package
// below spec's version, or false when this is the first version.
func (r *Registry) PreviousVersion(spec *PackageSpec) (*PackageSpec, bool) {
	versionsDir := filepath.Join(r.root, "packages", spec.Namespace, spec.Name)
	entries, err := os.ReadDir(versionsDir)
	if err != nil {
		return nil, false
	}

	var best *semver.Version
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		version, err := semver.StrictNewVersion(entry.Name())
		if err != nil {
			continue
		}
		if !version.LessThan(spec.Version) {
			continue
		}
		if best == nil || best.LessThan(version) {
			best = version
		}
	}
	if best == nil {
		return nil, false
	}

	return &PackageSpec{Namespace: spec.Namespace, Name: spec.Name, Version: best}, true
}
