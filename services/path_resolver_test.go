package services

import (
	"context"
	"testing"

	"cloudbox/models"
	"cloudbox/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

func addFolder(t *testing.T, files FileRepository, name string, owner primitive.ObjectID, parent *primitive.ObjectID) *models.FileEntry {
	t.Helper()
	f, err := models.NewFileEntry(name, "", "", 0, owner, parent, true)
	require.NoError(t, err)
	require.NoError(t, files.Add(context.Background(), f))
	return f
}

func TestResolveFolderPath(t *testing.T) {
	ctx := context.Background()
	owner := primitive.NewObjectID()
	files := repository.NewMemoryStore().Files()
	r := NewPathResolver(files, zap.NewNop())

	docs := addFolder(t, files, "Docs", owner, nil)
	year := addFolder(t, files, "2024", owner, &docs.ID)

	t.Run("should return empty for the root", func(t *testing.T) {
		assert.Equal(t, "", r.ResolveFolderPath(ctx, nil))
	})

	t.Run("should join names root first", func(t *testing.T) {
		assert.Equal(t, "Docs", r.ResolveFolderPath(ctx, &docs.ID))
		assert.Equal(t, "Docs/2024", r.ResolveFolderPath(ctx, &year.ID))
	})

	t.Run("should stop at a missing link", func(t *testing.T) {
		ghost := primitive.NewObjectID()
		orphan := addFolder(t, files, "Orphan", owner, &ghost)
		assert.Equal(t, "Orphan", r.ResolveFolderPath(ctx, &orphan.ID))

		missing := primitive.NewObjectID()
		assert.Equal(t, "", r.ResolveFolderPath(ctx, &missing))
	})

	t.Run("should stop at a file", func(t *testing.T) {
		file, err := models.NewFileEntry("a.txt", "p", "text/plain", 1, owner, nil, false)
		require.NoError(t, err)
		require.NoError(t, files.Add(ctx, file))
		under := addFolder(t, files, "Under", owner, &file.ID)

		assert.Equal(t, "Under", r.ResolveFolderPath(ctx, &under.ID))
	})

	t.Run("should terminate on a cycle", func(t *testing.T) {
		a := addFolder(t, files, "A", owner, nil)
		b := addFolder(t, files, "B", owner, &a.ID)
		a.ParentFolderID = &b.ID
		require.NoError(t, files.Update(ctx, a))

		assert.Equal(t, "A/B", r.ResolveFolderPath(ctx, &b.ID))
	})
}

func TestStorageKey(t *testing.T) {
	assert.Equal(t, "report.txt", StorageKey("", "report.txt"))
	assert.Equal(t, "Docs/2024/report.txt", StorageKey("Docs/2024", "report.txt"))
}
