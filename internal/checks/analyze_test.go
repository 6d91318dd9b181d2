package checks

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/typst/package-check/internal/manifest"
	"github.com/typst/package-check/internal/report"
	"github.com/typst/package-check/internal/sources"
)

const cleanManifest = `[package]
name = "mypkg"
version = "1.0.0"
entrypoint = "lib.typ"
authors = ["A Person"]
license = "MIT"
description = "A tidy package"
`

func cleanFiles() map[string]string {
	return map[string]string{
		manifest.FileName: cleanManifest,
		"lib.typ":         "#let mypkg-version = version(1, 0, 0)\n",
		"README.md":       "# mypkg\n",
	}
}

// seedRegistryPackage writes a package version into a registry layout on disk.
func seedRegistryPackage(t *testing.T, root, namespace, name, version string, files map[string]string) {
	t.Helper()
	dir := filepath.Join(root, "packages", namespace, name, version)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	for p, content := range files {
		full := filepath.Join(dir, filepath.FromSlash(p))
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
	}
}

func TestAnalyzer_AnalyzeTree(t *testing.T) {
	t.Parallel()

	t.Run("should pass a clean package with no diagnostics", func(t *testing.T) {
		t.Parallel()

		// given
		analyzer := &Analyzer{}
		tree := packageTree(cleanFiles())

		// when
		rep := analyzer.AnalyzeTree(nil, tree)

		// then
		assert.True(t, rep.Passed())
		assert.Empty(t, rep.Diagnostics)
	})

	t.Run("should fail with exactly one error for a missing import", func(t *testing.T) {
		t.Parallel()

		// given
		files := cleanFiles()
		files["lib.typ"] = "#import \"missing.typ\": *\n"
		analyzer := &Analyzer{}

		// when
		rep := analyzer.AnalyzeTree(nil, packageTree(files))

		// then
		assert.False(t, rep.Passed())
		assert.Equal(t, 1, rep.Errors())
		require.NotEmpty(t, rep.Diagnostics)
		assert.Equal(t, "imports/unresolved", rep.Diagnostics[0].Rule)
	})

	t.Run("should short-circuit after a missing manifest", func(t *testing.T) {
		t.Parallel()

		// given
		analyzer := &Analyzer{}
		tree := packageTree(map[string]string{"lib.typ": "#import \"missing.typ\"\n"})

		// when
		rep := analyzer.AnalyzeTree(nil, tree)

		// then
		require.Len(t, rep.Diagnostics, 1)
		assert.Equal(t, "manifest/missing", rep.Diagnostics[0].Rule)
	})

	t.Run("should short-circuit after a malformed manifest", func(t *testing.T) {
		t.Parallel()

		// given
		analyzer := &Analyzer{}
		tree := packageTree(map[string]string{manifest.FileName: "[package\nbroken"})

		// when
		rep := analyzer.AnalyzeTree(nil, tree)

		// then
		require.Len(t, rep.Diagnostics, 1)
		assert.Equal(t, "manifest/malformed", rep.Diagnostics[0].Rule)
	})

	t.Run("should still run rules when the entrypoint is missing", func(t *testing.T) {
		t.Parallel()

		// given
		files := cleanFiles()
		delete(files, "lib.typ")
		analyzer := &Analyzer{}

		// when
		rep := analyzer.AnalyzeTree(nil, packageTree(files))

		// then
		assert.False(t, rep.Passed())
		byID := rulesByID(rep.Diagnostics)
		assert.Equal(t, 1, byID["manifest/invalid"])
	})

	t.Run("should honor disabled rules", func(t *testing.T) {
		t.Parallel()

		// given
		files := cleanFiles()
		delete(files, "README.md")
		analyzer := &Analyzer{Disabled: map[string]bool{"readme": true}}

		// when
		rep := analyzer.AnalyzeTree(nil, packageTree(files))

		// then
		assert.Empty(t, rep.Diagnostics)
	})
}

func TestAnalyzer_AnalyzeDir(t *testing.T) {
	t.Parallel()

	t.Run("should analyze a package laid out on disk", func(t *testing.T) {
		t.Parallel()

		// given
		dir := t.TempDir()
		for p, content := range cleanFiles() {
			require.NoError(t, os.WriteFile(filepath.Join(dir, p), []byte(content), 0o644))
		}
		analyzer := &Analyzer{}

		// when
		rep, err := analyzer.AnalyzeDir(dir)

		// then
		require.NoError(t, err)
		assert.True(t, rep.Passed())
	})

	t.Run("should fail for a directory that does not exist", func(t *testing.T) {
		t.Parallel()

		// given
		analyzer := &Analyzer{}

		// when
		_, err := analyzer.AnalyzeDir(filepath.Join(t.TempDir(), "nope"))

		// then
		assert.Error(t, err)
	})
}

func TestAnalyzer_AnalyzeSpec(t *testing.T) {
	t.Parallel()

	t.Run("should check a version out of the local registry clone", func(t *testing.T) {
		t.Parallel()

		// given
		root := t.TempDir()
		seedRegistryPackage(t, root, "preview", "mypkg", "1.0.0", cleanFiles())
		analyzer := &Analyzer{Registry: sources.NewRegistry(root)}
		spec, err := sources.ParseSpec("@preview/mypkg:1.0.0")
		require.NoError(t, err)

		// when
		rep, err := analyzer.AnalyzeSpec(spec)

		// then
		require.NoError(t, err)
		assert.True(t, rep.Passed())
	})

	t.Run("should report an absent package as a finding, not an error", func(t *testing.T) {
		t.Parallel()

		// given
		analyzer := &Analyzer{Registry: sources.NewRegistry(t.TempDir())}
		spec, err := sources.ParseSpec("@preview/other:2.0.0")
		require.NoError(t, err)

		// when
		rep, err := analyzer.AnalyzeSpec(spec)

		// then
		require.NoError(t, err)
		assert.False(t, rep.Passed())
		require.Len(t, rep.Diagnostics, 1)
		assert.Equal(t, "registry/package-not-found", rep.Diagnostics[0].Rule)
	})

	t.Run("should flag imports of packages absent from the clone", func(t *testing.T) {
		t.Parallel()

		// given
		root := t.TempDir()
		files := cleanFiles()
		files["lib.typ"] = "#import \"@preview/other:2.0.0\": thing\n"
		seedRegistryPackage(t, root, "preview", "mypkg", "1.0.0", files)
		analyzer := &Analyzer{Registry: sources.NewRegistry(root)}
		spec, err := sources.ParseSpec("@preview/mypkg:1.0.0")
		require.NoError(t, err)

		// when
		rep, err := analyzer.AnalyzeSpec(spec)

		// then
		require.NoError(t, err)
		assert.False(t, rep.Passed())
		byID := rulesByID(rep.Diagnostics)
		assert.Equal(t, 1, byID["registry/package-not-found"])
	})
}

type fakeHistory struct {
	authors map[string][]string
}

func (h *fakeHistory) FileAuthors(path string) ([]string, error) {
	return h.authors[path], nil
}

func TestAuthorsRule(t *testing.T) {
	t.Parallel()

	manifestPath := func(version string) string {
		return "packages/preview/mypkg/" + version + "/" + manifest.FileName
	}

	registryWithVersions := func(t *testing.T) *sources.Registry {
		t.Helper()
		root := t.TempDir()
		seedRegistryPackage(t, root, "preview", "mypkg", "0.9.0", cleanFiles())
		seedRegistryPackage(t, root, "preview", "mypkg", "1.0.0", cleanFiles())
		return sources.NewRegistry(root)
	}

	t.Run("should warn when no author is shared with the previous version", func(t *testing.T) {
		t.Parallel()

		// given
		spec, err := sources.ParseSpec("@preview/mypkg:1.0.0")
		require.NoError(t, err)
		ctx := &Context{
			Spec:     spec,
			Manifest: &manifest.Manifest{},
			Tree:     packageTree(nil),
			Registry: registryWithVersions(t),
			History: &fakeHistory{authors: map[string][]string{
				manifestPath("0.9.0"): {"old@example.com"},
				manifestPath("1.0.0"): {"new@example.com"},
			}},
		}

		// when
		diags := (&authorsRule{}).Evaluate(ctx)

		// then
		require.Len(t, diags, 1)
		assert.Equal(t, "authors/changed", diags[0].Rule)
		assert.Equal(t, report.SeverityWarning, diags[0].Severity)
		assert.Contains(t, diags[0].Message, "0.9.0")
	})

	t.Run("should stay silent when an author is shared", func(t *testing.T) {
		t.Parallel()

		// given
		spec, err := sources.ParseSpec("@preview/mypkg:1.0.0")
		require.NoError(t, err)
		ctx := &Context{
			Spec:     spec,
			Manifest: &manifest.Manifest{},
			Tree:     packageTree(nil),
			Registry: registryWithVersions(t),
			History: &fakeHistory{authors: map[string][]string{
				manifestPath("0.9.0"): {"old@example.com", "shared@example.com"},
				manifestPath("1.0.0"): {"shared@example.com"},
			}},
		}

		// when
		diags := (&authorsRule{}).Evaluate(ctx)

		// then
		assert.Empty(t, diags)
	})

	t.Run("should stay silent for the first published version", func(t *testing.T) {
		t.Parallel()

		// given
		root := t.TempDir()
		seedRegistryPackage(t, root, "preview", "mypkg", "1.0.0", cleanFiles())
		spec, err := sources.ParseSpec("@preview/mypkg:1.0.0")
		require.NoError(t, err)
		ctx := &Context{
			Spec:     spec,
			Manifest: &manifest.Manifest{},
			Tree:     packageTree(nil),
			Registry: sources.NewRegistry(root),
			History:  &fakeHistory{},
		}

		// when
		diags := (&authorsRule{}).Evaluate(ctx)

		// then
		assert.Empty(t, diags)
	})

	t.Run("should stay silent without history", func(t *testing.T) {
		t.Parallel()

		// given
		spec, err := sources.ParseSpec("@preview/mypkg:1.0.0")
		require.NoError(t, err)
		ctx := &Context{
			Spec:     spec,
			Manifest: &manifest.Manifest{},
			Tree:     packageTree(nil),
			Registry: registryWithVersions(t),
		}

		// when
		diags := (&authorsRule{}).Evaluate(ctx)

		// then
		assert.Empty(t, diags)
	})
}
