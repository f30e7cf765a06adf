package playbook

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func populated(t *testing.T) *Playbook {
	t.Helper()
	p := New(4000)
	accepted := p.ValidateAndMerge([]Delta{
		{Type: TypeSkill, Name: "skill_1_0", Payload: "runbook", Metadata: map[string]string{"tool_calls": "3"}},
		{Type: TypeReference, Payload: "https://example.com/doc"},
		{Type: TypeClarification, Payload: "Is staging shared?"},
	})
	require.Len(t, accepted, 3)
	return p
}

func TestFileStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "playbook.json")
	store := NewFileStore(path, 2000)

	original := populated(t)
	require.NoError(t, store.Save(original))

	loaded, err := store.Load()
	require.NoError(t, err)

	assert.Equal(t, original.Version, loaded.Version)
	assert.Equal(t, original.TokenBudget, loaded.TokenBudget)
	require.Len(t, loaded.Items, len(original.Items))
	for i, item := range original.Items {
		assert.Equal(t, item.ID, loaded.Items[i].ID)
		assert.Equal(t, item.Type, loaded.Items[i].Type)
		assert.Equal(t, item.Name, loaded.Items[i].Name)
		assert.Equal(t, item.Payload, loaded.Items[i].Payload)
		assert.Equal(t, item.VersionCreated, loaded.Items[i].VersionCreated)
		assert.Equal(t, item.Metadata, loaded.Items[i].Metadata)
	}
}

func TestFileStoreMissingFileYieldsEmptyPlaybook(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "absent.json"), 3000)

	p, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, 1, p.Version)
	assert.Equal(t, 3000, p.TokenBudget)
	assert.Empty(t, p.Items)
}

func TestFileStoreSaveRefreshesUpdatedAt(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "playbook.json"), 2000)
	p := New(2000)
	stale := time.Now().Add(-time.Hour)
	p.UpdatedAt = stale

	require.NoError(t, store.Save(p))
	assert.True(t, p.UpdatedAt.After(stale))
}

func TestSQLiteStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "playbook.db")
	store, err := NewSQLiteStore(path, 2000)
	require.NoError(t, err)
	defer store.Close()

	original := populated(t)
	require.NoError(t, store.Save(original))

	loaded, err := store.Load()
	require.NoError(t, err)

	assert.Equal(t, original.Version, loaded.Version)
	assert.Equal(t, original.TokenBudget, loaded.TokenBudget)
	require.Len(t, loaded.Items, len(original.Items))
	for i, item := range original.Items {
		assert.Equal(t, item.ID, loaded.Items[i].ID)
		assert.Equal(t, item.Type, loaded.Items[i].Type)
		assert.Equal(t, item.Payload, loaded.Items[i].Payload)
		assert.Equal(t, item.Metadata, loaded.Items[i].Metadata)
	}
}

func TestSQLiteStoreEmptyDatabase(t *testing.T) {
	store, err := NewSQLiteStore(":memory:", 2500)
	require.NoError(t, err)
	defer store.Close()

	p, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, 1, p.Version)
	assert.Equal(t, 2500, p.TokenBudget)
	assert.Empty(t, p.Items)
}

func TestSQLiteStoreSaveIsIdempotent(t *testing.T) {
	store, err := NewSQLiteStore(":memory:", 2000)
	require.NoError(t, err)
	defer store.Close()

	p := populated(t)
	require.NoError(t, store.Save(p))
	require.NoError(t, store.Save(p))

	loaded, err := store.Load()
	require.NoError(t, err)
	assert.Len(t, loaded.Items, len(p.Items))
}
