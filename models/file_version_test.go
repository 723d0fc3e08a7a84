package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestVersionLog(t *testing.T) {
	id := primitive.NewObjectID()

	t.Run("should start empty", func(t *testing.T) {
		var log VersionLog
		assert.Equal(t, 0, log.Latest())
		assert.Equal(t, 1, log.Next())
		_, ok := log.Find(1)
		assert.False(t, ok)
	})

	t.Run("should only accept the next number", func(t *testing.T) {
		var log VersionLog
		require.NoError(t, log.Append(NewFileVersion(id, "a", "p1", 1, 1)))
		assert.ErrorIs(t, log.Append(NewFileVersion(id, "a", "p", 1, 1)), ErrInvalidOperation)
		assert.ErrorIs(t, log.Append(NewFileVersion(id, "a", "p", 1, 3)), ErrInvalidOperation)
		require.NoError(t, log.Append(NewFileVersion(id, "b", "p2", 2, 2)))

		v, ok := log.Find(2)
		require.True(t, ok)
		assert.Equal(t, "b", v.Name)
		_, ok = log.Find(0)
		assert.False(t, ok)
	})
}

func TestNewVersionLog(t *testing.T) {
	id := primitive.NewObjectID()

	t.Run("should order versions by number", func(t *testing.T) {
		log, err := NewVersionLog([]FileVersion{
			NewFileVersion(id, "c", "p3", 3, 3),
			NewFileVersion(id, "a", "p1", 1, 1),
			NewFileVersion(id, "b", "p2", 2, 2),
		})
		require.NoError(t, err)
		require.Len(t, log, 3)
		for i, v := range log {
			assert.Equal(t, i+1, v.VersionNumber)
		}
	})

	t.Run("should reject gaps and duplicates", func(t *testing.T) {
		_, err := NewVersionLog([]FileVersion{
			NewFileVersion(id, "a", "p1", 1, 1),
			NewFileVersion(id, "c", "p3", 3, 3),
		})
		assert.ErrorIs(t, err, ErrInvalidOperation)

		_, err = NewVersionLog([]FileVersion{
			NewFileVersion(id, "a", "p1", 1, 1),
			NewFileVersion(id, "a", "p1", 1, 1),
		})
		assert.ErrorIs(t, err, ErrInvalidOperation)
	})

	t.Run("should accept an empty history", func(t *testing.T) {
		log, err := NewVersionLog(nil)
		require.NoError(t, err)
		assert.Equal(t, 0, log.Latest())
	})
}

func TestFileVersionProjectionHidesPath(t *testing.T) {
	v := NewFileVersion(primitive.NewObjectID(), "a", "objects/secret/a", 1, 1)
	dto := v.Projection()
	assert.Equal(t, v.FileVersionID, dto.FileVersionID)
	assert.Equal(t, 1, dto.VersionNumber)
}
