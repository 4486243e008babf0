package seed

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lingodesk/lingodesk/pkg/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(context.Background(), filepath.Join(t.TempDir(), "kb.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestImport(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	imported, skipped, err := Import(ctx, s)
	require.NoError(t, err)
	assert.Equal(t, len(Templates()), imported)
	assert.Zero(t, skipped)

	// Seeded entries answer real customer phrasings in both languages.
	match, err := s.RetrieveBest(ctx, "conditions de retrait", "", 3)
	require.NoError(t, err)
	require.NotNil(t, match)
	assert.Contains(t, match.AnswerZH, "提现")

	match, err = s.RetrieveBest(ctx, "", "详细 描述 问题", 3)
	require.NoError(t, err)
	require.NotNil(t, match)
	assert.Equal(t, "请详细描述一下你遇到的问题", match.AnswerZH)
}

func TestImportIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	first, _, err := Import(ctx, s)
	require.NoError(t, err)
	second, _, err := Import(ctx, s)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	// Re-importing merges rather than duplicating.
	match, err := s.RetrieveBest(ctx, "", "欢迎 gamesawa", 3)
	require.NoError(t, err)
	require.NotNil(t, match)
	assert.Equal(t, "欢迎来到gamesawa", match.AnswerZH)
}

func TestTemplatesAreComplete(t *testing.T) {
	seen := make(map[string]bool)
	for _, tpl := range Templates() {
		assert.NotEmpty(t, tpl.Key)
		assert.False(t, seen[tpl.Key], "duplicate template key %s", tpl.Key)
		seen[tpl.Key] = true
		assert.NotEmpty(t, tpl.TriggerZH, "template %s has no Chinese trigger", tpl.Key)
		assert.NotEmpty(t, tpl.TriggerFR, "template %s has no French trigger", tpl.Key)
		assert.NotEmpty(t, tpl.AnswerZH, "template %s has no Chinese answer", tpl.Key)
	}
}
