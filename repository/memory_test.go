package repository

import (
	"context"
	"testing"

	"cloudbox/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestMemoryFileRepository(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	files := store.Files()
	owner := primitive.NewObjectID()

	folder, err := models.NewFileEntry("Docs", "", "", 0, owner, nil, true)
	require.NoError(t, err)
	require.NoError(t, files.Add(ctx, folder))

	t.Run("should strip relations on write", func(t *testing.T) {
		file, err := models.NewFileEntry("a.txt", "p", "text/plain", 1, owner, &folder.ID, false)
		require.NoError(t, err)
		require.NoError(t, files.Add(ctx, file))

		got, err := files.GetByID(ctx, file.ID)
		require.NoError(t, err)
		assert.Empty(t, got.Versions)
		assert.Equal(t, "a.txt", got.Name)

		assert.ErrorIs(t, files.Add(ctx, file), models.ErrInvalidOperation)
	})

	t.Run("should list children by owner, folders first", func(t *testing.T) {
		sub, err := models.NewFileEntry("Sub", "", "", 0, owner, &folder.ID, true)
		require.NoError(t, err)
		require.NoError(t, files.Add(ctx, sub))
		foreign, err := models.NewFileEntry("b.txt", "p", "text/plain", 1, primitive.NewObjectID(), &folder.ID, false)
		require.NoError(t, err)
		require.NoError(t, files.Add(ctx, foreign))

		children, err := files.GetChildren(ctx, &folder.ID, owner)
		require.NoError(t, err)
		require.Len(t, children, 2)
		assert.Equal(t, "Sub", children[0].Name)
		assert.Equal(t, "a.txt", children[1].Name)

		roots, err := files.GetChildren(ctx, nil, owner)
		require.NoError(t, err)
		require.Len(t, roots, 1)
		assert.Equal(t, folder.ID, roots[0].ID)
	})

	t.Run("should report missing entries", func(t *testing.T) {
		_, err := files.GetByID(ctx, primitive.NewObjectID())
		assert.ErrorIs(t, err, models.ErrNotFound)

		ghost, err := models.NewFileEntry("x", "", "", 0, owner, nil, true)
		require.NoError(t, err)
		assert.ErrorIs(t, files.Update(ctx, ghost), models.ErrNotFound)
	})

	t.Run("should find entries by share link", func(t *testing.T) {
		share, err := models.NewSharedAccess(folder.ID, primitive.NewObjectID(), models.AccessLevelView)
		require.NoError(t, err)
		require.NoError(t, store.Shares().Add(ctx, share))

		got, err := files.GetByShareLink(ctx, share.ShareLink)
		require.NoError(t, err)
		assert.Equal(t, folder.ID, got.ID)

		_, err = files.GetByShareLink(ctx, "missing")
		assert.ErrorIs(t, err, models.ErrNotFound)
	})

	t.Run("should fail on a cancelled context", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := files.GetByID(cctx, folder.ID)
		assert.ErrorIs(t, err, models.ErrUnavailable)
	})
}

func TestMemoryVersionRepository(t *testing.T) {
	ctx := context.Background()
	versions := NewMemoryStore().Versions()
	id := primitive.NewObjectID()

	_, err := versions.GetLatestVersion(ctx, id)
	assert.ErrorIs(t, err, models.ErrNotFound)

	v2 := models.NewFileVersion(id, "b", "p2", 2, 2)
	v1 := models.NewFileVersion(id, "a", "p1", 1, 1)
	require.NoError(t, versions.Add(ctx, &v2))
	require.NoError(t, versions.Add(ctx, &v1))

	dup := models.NewFileVersion(id, "c", "p3", 3, 2)
	assert.ErrorIs(t, versions.Add(ctx, &dup), models.ErrInvalidOperation)

	all, err := versions.GetByFileEntryID(ctx, id)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, 1, all[0].VersionNumber)

	latest, err := versions.GetLatestVersion(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 2, latest.VersionNumber)

	require.NoError(t, versions.DeleteByFileEntryID(ctx, id))
	all, err = versions.GetByFileEntryID(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestMemoryUserRepository(t *testing.T) {
	ctx := context.Background()
	users := NewMemoryStore().Users()

	u := &models.User{ID: primitive.NewObjectID(), Email: "a@example.com"}
	require.NoError(t, users.Add(ctx, u))

	got, err := users.GetByEmail(ctx, "A@Example.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	dup := &models.User{ID: primitive.NewObjectID(), Email: "A@EXAMPLE.COM"}
	assert.ErrorIs(t, users.Add(ctx, dup), models.ErrInvalidOperation)

	_, err = users.GetByID(ctx, primitive.NewObjectID())
	assert.ErrorIs(t, err, models.ErrNotFound)
}
