// Package sources resolves a package's files into an in-memory tree, either
// from a plain directory or from the registry layout of a local
// typst/packages clone. No loader in this package ever touches the network.
package sources

import (
	"fmt"
	"path"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// DefaultNamespace is assumed when a package spec omits the namespace.
const DefaultNamespace = "preview"

// PackageSpec identifies a versioned package within a registry namespace,
// e.g. "@preview/cetz:0.2.0".
type PackageSpec struct {
	Namespace string
	Name      string
	Version   *semver.Version
}

// ParseSpec parses "[@namespace/]name:version". The namespace defaults to
// "preview" when omitted, matching the public registry.
func ParseSpec(s string) (*PackageSpec, error) {
	namespace := DefaultNamespace
	rest := s
	if strings.HasPrefix(rest, "@") {
		slash := strings.Index(rest, "/")
		if slash < 0 {
			return nil, fmt.Errorf("invalid package spec %q: missing name after namespace", s)
		}
		namespace = rest[1:slash]
		rest = rest[slash+1:]
	}

	name, versionStr, ok := strings.Cut(rest, ":")
	if !ok {
		return nil, fmt.Errorf("invalid package spec %q: missing version", s)
	}
	if namespace == "" || name == "" {
		return nil, fmt.Errorf("invalid package spec %q: empty namespace or name", s)
	}

	version, err := semver.StrictNewVersion(versionStr)
	if err != nil {
		return nil, fmt.Errorf("invalid package spec %q: bad version %q: %w", s, versionStr, err)
	}

	return &PackageSpec{Namespace: namespace, Name: name, Version: version}, nil
}

func (s *PackageSpec) String() string {
	return fmt.Sprintf("@%s/%s:%s", s.Namespace, s.Name, s.Version)
}

// RegistryPath is the package's directory relative to the clone root,
// always with forward slashes.
func (s *PackageSpec) RegistryPath() string {
	return path.Join("packages", s.Namespace, s.Name, s.Version.String())
}
