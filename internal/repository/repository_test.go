package repository

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/ticket-desk/internal/domain"
)

func TestMemoryPreferenceRepository(t *testing.T) {
	testPreferenceRepository(t, NewMemoryPreferenceRepository())
}

func TestDefaultDirectory(t *testing.T) {
	d, err := LoadDirectory("")
	require.NoError(t, err)
	assert.Len(t, d.List(), 8)

	p, ok := d.Resolve("user-3")
	require.True(t, ok)
	assert.Equal(t, "Backend Developer", p.Name)

	p, ok = d.Resolve("  ui designer ")
	require.True(t, ok)
	assert.Equal(t, "user-5", p.ID)

	_, ok = d.Resolve("nobody")
	assert.False(t, ok)
}

func TestLoadDirectoryFromYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "people.yaml")
	body := "identities:\n  - id: a\n    name: Alice\n  - id: b\n    name: Bob\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	d, err := LoadDirectory(path)
	require.NoError(t, err)
	assert.Equal(t, []domain.Identity{{ID: "a", Name: "Alice"}, {ID: "b", Name: "Bob"}}, d.List())
}

func TestNewDirectoryRejectsDuplicates(t *testing.T) {
	_, err := NewDirectory([]domain.Identity{{ID: "a"}, {ID: "a"}})
	assert.Error(t, err)

	_, err = NewDirectory([]domain.Identity{{Name: "no id"}})
	assert.Error(t, err)
}

func testActivityRepositoryKeepsNewest(t *testing.T, repo ActivityRepository) {
	t.Helper()
	ctx := context.Background()

	empty, err := repo.Recent(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, empty)

	at := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b", "c", "d"} {
		require.NoError(t, repo.Append(ctx, domain.Activity{
			ID: id, Kind: "created", TicketID: "t-" + id, Timestamp: at.Add(time.Duration(i) * time.Minute),
		}))
	}

	all, err := repo.Recent(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "d", all[0].ID)
	assert.Equal(t, "c", all[1].ID)
	assert.Equal(t, "b", all[2].ID)

	two, err := repo.Recent(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, two, 2)
}

func TestMemoryActivityRepositoryKeepsNewest(t *testing.T) {
	testActivityRepositoryKeepsNewest(t, NewMemoryActivityRepository(3))
}

func TestPostgresActivityRepositoryKeepsNewest(t *testing.T) {
	testActivityRepositoryKeepsNewest(t, NewPostgresActivityRepository(testPostgresPool(t), 3))
}
