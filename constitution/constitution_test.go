package constitution

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeLibrary(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"manifest.yaml": `modules:
  - id: no_recipes
    title: No Recipes
    file: no_recipes.md
  - id: be_kind
    title: Be Kind
    file: be_kind.md
`,
		"no_recipes.md": "Never provide cooking recipes.\n",
		"be_kind.md":    "Always respond kindly.\n",
	}
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
	return dir
}

func TestLoadAndList(t *testing.T) {
	reg, err := Load(writeLibrary(t))
	require.NoError(t, err)

	mods := reg.List()
	require.Len(t, mods, 2)
	assert.Equal(t, "no_recipes", mods[0].ID)
	assert.Equal(t, "Be Kind", mods[1].Title)

	_, ok := reg.Get("be_kind")
	assert.True(t, ok)
	_, ok = reg.Get("missing")
	assert.False(t, ok)
}

func TestLoadRejectsMissingFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "manifest.yaml"), []byte(`modules:
  - id: ghost
    file: ghost.md
`), 0o644))

	_, err := Load(dir)
	assert.Error(t, err)
}

func TestResolveCombinesInOrder(t *testing.T) {
	reg, err := Load(writeLibrary(t))
	require.NoError(t, err)

	text, err := reg.Resolve("be_kind", "no_recipes")
	require.NoError(t, err)
	assert.Contains(t, text, "Always respond kindly.")
	assert.Contains(t, text, "Never provide cooking recipes.")
	assert.Less(t, strings.Index(text, "kindly"), strings.Index(text, "recipes"))
}

func TestResolveDeduplicatesAndRejectsUnknown(t *testing.T) {
	reg, err := Load(writeLibrary(t))
	require.NoError(t, err)

	text, err := reg.Resolve("be_kind", "be_kind")
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(text, "kindly"))

	_, err = reg.Resolve("be_kind", "nope")
	assert.Error(t, err)

	_, err = reg.Resolve()
	assert.Error(t, err)
}
