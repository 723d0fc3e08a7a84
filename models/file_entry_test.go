package models

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestNewFileEntry(t *testing.T) {
	owner := primitive.NewObjectID()

	t.Run("should reject an empty name", func(t *testing.T) {
		for _, name := range []string{"", "   "} {
			_, err := NewFileEntry(name, "p", "text/plain", 1, owner, nil, false)
			assert.True(t, errors.Is(err, ErrInvalidArgument), "name %q", name)
		}
	})

	t.Run("should reject a negative size", func(t *testing.T) {
		_, err := NewFileEntry("a.txt", "p", "text/plain", -1, owner, nil, false)
		assert.ErrorIs(t, err, ErrInvalidArgument)
	})

	t.Run("should give a file version 1", func(t *testing.T) {
		e, err := NewFileEntry("a.txt", "objects/x/a.txt", "text/plain", 12, owner, nil, false)
		require.NoError(t, err)

		require.Len(t, e.Versions, 1)
		v := e.Versions[0]
		assert.Equal(t, 1, v.VersionNumber)
		assert.Equal(t, e.ID, v.FileEntryID)
		assert.Equal(t, "a.txt", v.Name)
		assert.Equal(t, "objects/x/a.txt", v.FilePath)
		assert.Equal(t, int64(12), v.Size)
	})

	t.Run("should force folder fields", func(t *testing.T) {
		parent := primitive.NewObjectID()
		e, err := NewFileEntry("Docs", "ignored", "text/plain", 99, owner, &parent, true)
		require.NoError(t, err)

		assert.True(t, e.IsFolder)
		assert.Empty(t, e.Path)
		assert.Equal(t, FolderContentType, e.ContentType)
		assert.Zero(t, e.Size)
		assert.Empty(t, e.Versions)
		assert.Equal(t, &parent, e.ParentFolderID)
	})
}

func TestFileEntryRestoreVersion(t *testing.T) {
	owner := primitive.NewObjectID()

	t.Run("should refuse folders", func(t *testing.T) {
		f, err := NewFileEntry("Docs", "", "", 0, owner, nil, true)
		require.NoError(t, err)
		assert.ErrorIs(t, f.RestoreVersion(1, "p", "txt", 1), ErrInvalidOperation)
	})

	t.Run("should report a missing version", func(t *testing.T) {
		e, err := NewFileEntry("a.txt", "p1", "text/plain", 3, owner, nil, false)
		require.NoError(t, err)
		assert.ErrorIs(t, e.RestoreVersion(2, "p", "txt", 1), ErrNotFound)
	})

	t.Run("should roll live metadata back without extending the log", func(t *testing.T) {
		e, err := NewFileEntry("a.txt", "p1", "text/plain", 3, owner, nil, false)
		require.NoError(t, err)
		require.NoError(t, e.ApplyUpload("b.txt", "p2", "text/plain", 7))
		require.NoError(t, e.Versions.Append(NewFileVersion(e.ID, "b.txt", "p2", 7, 2)))
		before := e.UpdatedAt
		time.Sleep(time.Millisecond)

		require.NoError(t, e.RestoreVersion(1, "p3", "txt", 3))

		assert.Equal(t, "a.txt", e.Name)
		assert.Equal(t, "p3", e.Path)
		assert.Equal(t, "txt", e.ContentType)
		assert.Equal(t, int64(3), e.Size)
		assert.True(t, e.UpdatedAt.After(before))
		assert.Equal(t, 2, e.Versions.Latest())
	})
}

func TestFileEntryApplyUpload(t *testing.T) {
	folder, err := NewFileEntry("Docs", "", "", 0, primitive.NewObjectID(), nil, true)
	require.NoError(t, err)
	assert.ErrorIs(t, folder.ApplyUpload("a", "p", "t", 1), ErrInvalidOperation)
}

func TestFileEntryIsChildOf(t *testing.T) {
	owner := primitive.NewObjectID()
	parent := primitive.NewObjectID()
	other := primitive.NewObjectID()

	root, _ := NewFileEntry("r", "", "", 0, owner, nil, true)
	child, _ := NewFileEntry("c", "", "", 0, owner, &parent, true)

	assert.True(t, root.IsChildOf(nil))
	assert.False(t, root.IsChildOf(&parent))
	assert.True(t, child.IsChildOf(&parent))
	assert.False(t, child.IsChildOf(&other))
	assert.False(t, child.IsChildOf(nil))
}

func TestFileEntryProjection(t *testing.T) {
	owner := primitive.NewObjectID()
	folder, _ := NewFileEntry("Docs", "", "", 0, owner, nil, true)
	child, _ := NewFileEntry("a.txt", "p", "text/plain", 4, owner, &folder.ID, false)
	folder.Children = []FileEntry{*child}

	dto := folder.Projection()
	assert.Equal(t, folder.ID, dto.ID)
	assert.True(t, dto.IsFolder)
	require.Len(t, dto.Children, 1)
	assert.Equal(t, "a.txt", dto.Children[0].Name)
	assert.Equal(t, &folder.ID, dto.Children[0].ParentFolderID)
}
