package sources

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSpec(t *testing.T) {
	t.Parallel()

	t.Run("should parse a fully qualified spec", func(t *testing.T) {
		t.Parallel()

		// given
		input := "@preview/cetz:0.2.0"

		// when
		spec, err := ParseSpec(input)

		// then
		require.NoError(t, err)
		assert.Equal(t, "preview", spec.Namespace)
		assert.Equal(t, "cetz", spec.Name)
		assert.Equal(t, "0.2.0", spec.Version.String())
	})

	t.Run("should default the namespace to preview", func(t *testing.T) {
		t.Parallel()

		// given
		input := "cetz:0.2.0"

		// when
		spec, err := ParseSpec(input)

		// then
		require.NoError(t, err)
		assert.Equal(t, "preview", spec.Namespace)
		assert.Equal(t, "cetz", spec.Name)
	})

	t.Run("should reject a spec without a version", func(t *testing.T) {
		t.Parallel()

		// given
		input := "@preview/cetz"

		// when
		_, err := ParseSpec(input)

		// then
		assert.Error(t, err)
	})

	t.Run("should reject a namespace without a name", func(t *testing.T) {
		t.Parallel()

		// given
		input := "@preview"

		// when
		_, err := ParseSpec(input)

		// then
		assert.Error(t, err)
	})

	t.Run("should reject a loose version like 1.0", func(t *testing.T) {
		t.Parallel()

		// given
		input := "cetz:1.0"

		// when
		_, err := ParseSpec(input)

		// then
		assert.Error(t, err)
	})

	t.Run("should render back to the canonical form", func(t *testing.T) {
		t.Parallel()

		// given
		spec, err := ParseSpec("cetz:0.2.0")
		require.NoError(t, err)

		// when
		rendered := spec.String()

		// then
		assert.Equal(t, "@preview/cetz:0.2.0", rendered)
	})

	t.Run("should map to the registry directory layout", func(t *testing.T) {
		t.Parallel()

		// given
		spec, err := ParseSpec("@preview/cetz:0.2.0")
		require.NoError(t, err)

		// when
		p := spec.RegistryPath()

		// then
		assert.Equal(t, "packages/preview/cetz/0.2.0", p)
	})
}
