package github

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/typst/package-check/internal/report"
)

func TestOutcomeFromReport(t *testing.T) {
	t.Parallel()

	t.Run("should conclude failure when errors are present", func(t *testing.T) {
		t.Parallel()

		// given
		rep := report.Aggregate([]report.Diagnostic{
			report.Error("imports/unresolved", "lib.typ", report.Line(3, 1, 10), "file not found"),
			report.Warning("manifest/description", "typst.toml", report.Span{}, "missing"),
		})

		// when
		outcome := OutcomeFromReport(rep, "packages/preview/pkg/1.0.0")

		// then
		assert.Equal(t, "failure", outcome.Conclusion)
		assert.Contains(t, outcome.Title, "failed")
		assert.Contains(t, outcome.Summary, "1 error(s), 1 warning(s) and 0 hint(s)")
	})

	t.Run("should conclude neutral for a warnings-only report", func(t *testing.T) {
		t.Parallel()

		// given
		rep := report.Aggregate([]report.Diagnostic{
			report.Warning("readme/missing", "", report.Span{}, "no README"),
		})

		// when
		outcome := OutcomeFromReport(rep, "")

		// then
		assert.Equal(t, "neutral", outcome.Conclusion)
	})

	t.Run("should conclude success for a clean report", func(t *testing.T) {
		t.Parallel()

		// given
		rep := report.Aggregate(nil)

		// when
		outcome := OutcomeFromReport(rep, "")

		// then
		assert.Equal(t, "success", outcome.Conclusion)
		assert.Equal(t, "All good!", outcome.Title)
	})

	t.Run("should rebase annotation paths onto the repository root", func(t *testing.T) {
		t.Parallel()

		// given
		rep := report.Aggregate([]report.Diagnostic{
			report.Error("imports/unresolved", "src/lib.typ", report.Line(3, 5, 12), "file not found"),
		})

		// when
		outcome := OutcomeFromReport(rep, "packages/preview/pkg/1.0.0")

		// then
		require.Len(t, outcome.Annotations, 1)
		a := outcome.Annotations[0]
		assert.Equal(t, "packages/preview/pkg/1.0.0/src/lib.typ", a.Path)
		assert.Equal(t, 3, a.StartLine)
		assert.Equal(t, 5, a.StartColumn)
		assert.Equal(t, "failure", a.Level)
		assert.Equal(t, "[imports/unresolved] file not found", a.Message)
	})

	t.Run("should skip diagnostics without a file or position", func(t *testing.T) {
		t.Parallel()

		// given
		rep := report.Aggregate([]report.Diagnostic{
			report.Error("manifest/missing", "", report.Span{}, "no manifest"),
			report.Warning("manifest/description", "typst.toml", report.Span{}, "missing"),
			report.Hint("imports/unreachable", "orphan.typ", report.Span{}, "never imported"),
		})

		// when
		outcome := OutcomeFromReport(rep, "prefix")

		// then
		assert.Empty(t, outcome.Annotations)
		assert.Equal(t, "failure", outcome.Conclusion)
	})

	t.Run("should map severities onto annotation levels", func(t *testing.T) {
		t.Parallel()

		// given
		rep := report.Aggregate([]report.Diagnostic{
			report.Error("a/a", "f.typ", report.Line(1, 1, 2), "e"),
			report.Warning("b/b", "f.typ", report.Line(2, 1, 2), "w"),
			report.Hint("c/c", "f.typ", report.Line(3, 1, 2), "h"),
		})

		// when
		outcome := OutcomeFromReport(rep, "")

		// then
		require.Len(t, outcome.Annotations, 3)
		assert.Equal(t, "failure", outcome.Annotations[0].Level)
		assert.Equal(t, "warning", outcome.Annotations[1].Level)
		assert.Equal(t, "notice", outcome.Annotations[2].Level)
	})
}
