package services_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"cloudbox/metrics"
	"cloudbox/models"
	"cloudbox/repository"
	"cloudbox/services"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type testEngine struct {
	svc   *services.FileService
	store *repository.MemoryStore
	blobs *services.MemoryBlobStore
}

func newTestEngine(t *testing.T, opts ...services.FileServiceOption) *testEngine {
	t.Helper()
	logger := zap.NewNop()
	store := repository.NewMemoryStore()
	blobs := services.NewMemoryBlobStore()

	svc := services.NewFileService(
		store.Files(),
		services.NewVersionManager(store.Versions(), services.NewMemoryEntryLocker(), logger),
		services.NewAccessControl(store.Shares(), store.Users(), logger),
		services.NewPathResolver(store.Files(), logger),
		blobs,
		logger,
		opts...,
	)
	return &testEngine{svc: svc, store: store, blobs: blobs}
}

func (e *testEngine) addUser(t *testing.T) primitive.ObjectID {
	t.Helper()
	u := &models.User{ID: primitive.NewObjectID()}
	u.Email = u.ID.Hex() + "@example.com"
	require.NoError(t, e.store.Users().Add(context.Background(), u))
	return u.ID
}

func textUpload(name, body string) services.FileUpload {
	return services.FileUpload{
		Content:     strings.NewReader(body),
		Filename:    name,
		Size:        int64(len(body)),
		ContentType: "text/plain",
	}
}

func TestUpload(t *testing.T) {
	ctx := context.Background()

	t.Run("should create a root file with version 1", func(t *testing.T) {
		e := newTestEngine(t)
		owner := e.addUser(t)

		dto, err := e.svc.Upload(ctx, textUpload("a.txt", "hello"), owner, nil, nil)
		require.NoError(t, err)

		assert.Equal(t, "a.txt", dto.Name)
		assert.Equal(t, int64(5), dto.Size)
		assert.Equal(t, "text/plain", dto.ContentType)
		assert.Nil(t, dto.ParentFolderID)
		assert.True(t, strings.HasSuffix(dto.Path, "/a.txt"))

		data, ok := e.blobs.Get(dto.Path)
		require.True(t, ok)
		assert.Equal(t, "hello", string(data))

		versions, err := e.svc.GetFileVersions(ctx, dto.ID, owner)
		require.NoError(t, err)
		require.Len(t, versions, 1)
		assert.Equal(t, 1, versions[0].VersionNumber)
	})

	t.Run("should key content by folder path", func(t *testing.T) {
		e := newTestEngine(t)
		owner := e.addUser(t)

		docs, err := e.svc.CreateFolder(ctx, "Docs", owner, nil)
		require.NoError(t, err)
		year, err := e.svc.CreateFolder(ctx, "2024", owner, &docs.ID)
		require.NoError(t, err)

		dto, err := e.svc.Upload(ctx, textUpload("report.txt", "q4"), owner, &year.ID, nil)
		require.NoError(t, err)

		assert.True(t, strings.HasPrefix(dto.Path, "objects/"))
		assert.True(t, strings.HasSuffix(dto.Path, "/Docs/2024/report.txt"), dto.Path)
		assert.Equal(t, &year.ID, dto.ParentFolderID)
	})

	t.Run("should default the content type", func(t *testing.T) {
		e := newTestEngine(t)
		owner := e.addUser(t)

		up := textUpload("blob", "x")
		up.ContentType = ""
		dto, err := e.svc.Upload(ctx, up, owner, nil, nil)
		require.NoError(t, err)
		assert.Equal(t, "application/octet-stream", dto.ContentType)
	})

	t.Run("should reject empty content and names", func(t *testing.T) {
		e := newTestEngine(t)
		owner := e.addUser(t)

		_, err := e.svc.Upload(ctx, services.FileUpload{Filename: "a.txt"}, owner, nil, nil)
		assert.ErrorIs(t, err, models.ErrInvalidArgument)

		_, err = e.svc.Upload(ctx, textUpload("", "x"), owner, nil, nil)
		assert.ErrorIs(t, err, models.ErrInvalidArgument)
		assert.Zero(t, e.blobs.Len())
	})

	t.Run("should reject a parent that is missing or a file", func(t *testing.T) {
		e := newTestEngine(t)
		owner := e.addUser(t)

		missing := primitive.NewObjectID()
		_, err := e.svc.Upload(ctx, textUpload("a.txt", "x"), owner, &missing, nil)
		assert.ErrorIs(t, err, models.ErrInvalidArgument)

		file, err := e.svc.Upload(ctx, textUpload("a.txt", "x"), owner, nil, nil)
		require.NoError(t, err)
		_, err = e.svc.Upload(ctx, textUpload("b.txt", "y"), owner, &file.ID, nil)
		assert.ErrorIs(t, err, models.ErrInvalidArgument)
		assert.Equal(t, 1, e.blobs.Len())
	})

	t.Run("should refuse uploads into someone else's folder", func(t *testing.T) {
		e := newTestEngine(t)
		owner, other := e.addUser(t), e.addUser(t)

		folder, err := e.svc.CreateFolder(ctx, "Docs", owner, nil)
		require.NoError(t, err)

		_, err = e.svc.Upload(ctx, textUpload("a.txt", "x"), other, &folder.ID, nil)
		assert.ErrorIs(t, err, models.ErrUnauthorized)
	})

	t.Run("should append a version on update and keep the location", func(t *testing.T) {
		e := newTestEngine(t)
		owner := e.addUser(t)

		folder, err := e.svc.CreateFolder(ctx, "Docs", owner, nil)
		require.NoError(t, err)
		first, err := e.svc.Upload(ctx, textUpload("a.txt", "one"), owner, &folder.ID, nil)
		require.NoError(t, err)

		second, err := e.svc.Upload(ctx, textUpload("b.txt", "second"), owner, nil, &first.ID)
		require.NoError(t, err)

		assert.Equal(t, first.ID, second.ID)
		assert.Equal(t, "b.txt", second.Name)
		assert.Equal(t, int64(6), second.Size)
		assert.Equal(t, &folder.ID, second.ParentFolderID)
		assert.True(t, strings.HasSuffix(second.Path, "/Docs/b.txt"), second.Path)
		assert.NotEqual(t, first.Path, second.Path)

		versions, err := e.svc.GetFileVersions(ctx, first.ID, owner)
		require.NoError(t, err)
		require.Len(t, versions, 2)
		assert.Equal(t, "a.txt", versions[0].Name)
		assert.Equal(t, "b.txt", versions[1].Name)
		assert.Equal(t, 2, versions[1].VersionNumber)

		old, ok := e.blobs.Get(first.Path)
		require.True(t, ok, "version 1 content must survive an update")
		assert.Equal(t, "one", string(old))
	})

	t.Run("should refuse updates by non-owners and on folders", func(t *testing.T) {
		e := newTestEngine(t)
		owner, other := e.addUser(t), e.addUser(t)

		file, err := e.svc.Upload(ctx, textUpload("a.txt", "x"), owner, nil, nil)
		require.NoError(t, err)
		folder, err := e.svc.CreateFolder(ctx, "Docs", owner, nil)
		require.NoError(t, err)

		_, err = e.svc.Upload(ctx, textUpload("a.txt", "y"), other, nil, &file.ID)
		assert.ErrorIs(t, err, models.ErrUnauthorized)

		_, err = e.svc.Upload(ctx, textUpload("a.txt", "y"), owner, nil, &folder.ID)
		assert.ErrorIs(t, err, models.ErrUnauthorized)

		missing := primitive.NewObjectID()
		_, err = e.svc.Upload(ctx, textUpload("a.txt", "y"), owner, nil, &missing)
		assert.ErrorIs(t, err, models.ErrUnauthorized)
	})

	t.Run("should number concurrent updates without gaps", func(t *testing.T) {
		e := newTestEngine(t)
		owner := e.addUser(t)

		file, err := e.svc.Upload(ctx, textUpload("a.txt", "v1"), owner, nil, nil)
		require.NoError(t, err)

		const writers = 12
		var wg sync.WaitGroup
		errs := make(chan error, writers)
		for i := 0; i < writers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, err := e.svc.Upload(ctx, textUpload("a.txt", fmt.Sprintf("v%d", i+2)), owner, nil, &file.ID)
				errs <- err
			}(i)
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			require.NoError(t, err)
		}

		versions, err := e.svc.GetFileVersions(ctx, file.ID, owner)
		require.NoError(t, err)
		require.Len(t, versions, writers+1)
		for i, v := range versions {
			assert.Equal(t, i+1, v.VersionNumber)
		}
	})
}

func TestCreateFolder(t *testing.T) {
	ctx := context.Background()

	t.Run("should create nested folders", func(t *testing.T) {
		e := newTestEngine(t)
		owner := e.addUser(t)

		root, err := e.svc.CreateFolder(ctx, "Docs", owner, nil)
		require.NoError(t, err)
		assert.True(t, root.IsFolder)
		assert.Equal(t, models.FolderContentType, root.ContentType)
		assert.Empty(t, root.Path)

		child, err := e.svc.CreateFolder(ctx, "2024", owner, &root.ID)
		require.NoError(t, err)
		assert.Equal(t, &root.ID, child.ParentFolderID)

		got, err := e.svc.GetFileOrFolder(ctx, root.ID, owner)
		require.NoError(t, err)
		require.Len(t, got.Children, 1)
		assert.Equal(t, "2024", got.Children[0].Name)
	})

	t.Run("should validate the name and parent", func(t *testing.T) {
		e := newTestEngine(t)
		owner, other := e.addUser(t), e.addUser(t)

		_, err := e.svc.CreateFolder(ctx, "  ", owner, nil)
		assert.ErrorIs(t, err, models.ErrInvalidArgument)

		missing := primitive.NewObjectID()
		_, err = e.svc.CreateFolder(ctx, "x", owner, &missing)
		assert.ErrorIs(t, err, models.ErrInvalidArgument)

		parent, err := e.svc.CreateFolder(ctx, "Docs", owner, nil)
		require.NoError(t, err)
		_, err = e.svc.CreateFolder(ctx, "x", other, &parent.ID)
		assert.ErrorIs(t, err, models.ErrUnauthorized)
	})
}

func TestGetFileOrFolder(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)
	owner, other := e.addUser(t), e.addUser(t)

	file, err := e.svc.Upload(ctx, textUpload("a.txt", "x"), owner, nil, nil)
	require.NoError(t, err)

	t.Run("should return the owner's file without children", func(t *testing.T) {
		got, err := e.svc.GetFileOrFolder(ctx, file.ID, owner)
		require.NoError(t, err)
		assert.Equal(t, file.ID, got.ID)
		assert.Empty(t, got.Children)
	})

	t.Run("should refuse strangers", func(t *testing.T) {
		_, err := e.svc.GetFileOrFolder(ctx, file.ID, other)
		assert.ErrorIs(t, err, models.ErrUnauthorized)
	})

	t.Run("should report missing entries", func(t *testing.T) {
		_, err := e.svc.GetFileOrFolder(ctx, primitive.NewObjectID(), owner)
		assert.ErrorIs(t, err, models.ErrNotFound)
	})
}

type recordingNotifier struct {
	mu     sync.Mutex
	shares []models.SharedAccess
	err    error
}

func (n *recordingNotifier) NotifyShared(_ context.Context, _ *models.FileEntry, share *models.SharedAccess) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.shares = append(n.shares, *share)
	return n.err
}

func TestSharing(t *testing.T) {
	ctx := context.Background()

	t.Run("should grant read access to the target only", func(t *testing.T) {
		notifier := &recordingNotifier{}
		e := newTestEngine(t, services.WithShareNotifier(notifier))
		owner, grantee, stranger := e.addUser(t), e.addUser(t), e.addUser(t)

		file, err := e.svc.Upload(ctx, textUpload("a.txt", "x"), owner, nil, nil)
		require.NoError(t, err)

		share, err := e.svc.ShareFileOrFolder(ctx, file.ID, owner, grantee, models.AccessLevelView)
		require.NoError(t, err)
		assert.Len(t, share.ShareLink, 32)
		require.Len(t, notifier.shares, 1)
		assert.Equal(t, grantee, notifier.shares[0].UserID)

		_, err = e.svc.GetFileOrFolder(ctx, file.ID, grantee)
		assert.NoError(t, err)

		got, err := e.svc.GetByShareLink(ctx, share.ShareLink, grantee)
		require.NoError(t, err)
		assert.Equal(t, file.ID, got.ID)

		_, err = e.svc.GetByShareLink(ctx, share.ShareLink, stranger)
		assert.ErrorIs(t, err, models.ErrUnauthorized)
		_, err = e.svc.GetFileOrFolder(ctx, file.ID, stranger)
		assert.ErrorIs(t, err, models.ErrUnauthorized)
	})

	t.Run("should treat unknown links as unauthorized", func(t *testing.T) {
		e := newTestEngine(t)
		user := e.addUser(t)

		_, err := e.svc.GetByShareLink(ctx, "deadbeef", user)
		assert.ErrorIs(t, err, models.ErrUnauthorized)
		_, err = e.svc.GetByShareLink(ctx, "", user)
		assert.ErrorIs(t, err, models.ErrUnauthorized)
	})

	t.Run("should only let the owner share", func(t *testing.T) {
		e := newTestEngine(t)
		owner, grantee := e.addUser(t), e.addUser(t)

		file, err := e.svc.Upload(ctx, textUpload("a.txt", "x"), owner, nil, nil)
		require.NoError(t, err)
		_, err = e.svc.ShareFileOrFolder(ctx, file.ID, owner, grantee, models.AccessLevelEdit)
		require.NoError(t, err)

		// An edit grant does not delegate sharing or writing.
		_, err = e.svc.ShareFileOrFolder(ctx, file.ID, grantee, owner, models.AccessLevelView)
		assert.ErrorIs(t, err, models.ErrUnauthorized)
		_, err = e.svc.Upload(ctx, textUpload("a.txt", "y"), grantee, nil, &file.ID)
		assert.ErrorIs(t, err, models.ErrUnauthorized)
		assert.ErrorIs(t, e.svc.DeleteFileOrFolder(ctx, file.ID, grantee), models.ErrUnauthorized)
	})

	t.Run("should validate the target and level", func(t *testing.T) {
		e := newTestEngine(t)
		owner, grantee := e.addUser(t), e.addUser(t)

		file, err := e.svc.Upload(ctx, textUpload("a.txt", "x"), owner, nil, nil)
		require.NoError(t, err)

		_, err = e.svc.ShareFileOrFolder(ctx, file.ID, owner, primitive.NewObjectID(), models.AccessLevelView)
		assert.ErrorIs(t, err, models.ErrNotFound)
		_, err = e.svc.ShareFileOrFolder(ctx, file.ID, owner, grantee, models.AccessLevel("admin"))
		assert.ErrorIs(t, err, models.ErrInvalidArgument)
		_, err = e.svc.ShareFileOrFolder(ctx, primitive.NewObjectID(), owner, grantee, models.AccessLevelView)
		assert.ErrorIs(t, err, models.ErrNotFound)
	})

	t.Run("should mint a new link on every share", func(t *testing.T) {
		e := newTestEngine(t)
		owner, grantee := e.addUser(t), e.addUser(t)

		file, err := e.svc.Upload(ctx, textUpload("a.txt", "x"), owner, nil, nil)
		require.NoError(t, err)

		a, err := e.svc.ShareFileOrFolder(ctx, file.ID, owner, grantee, models.AccessLevelView)
		require.NoError(t, err)
		b, err := e.svc.ShareFileOrFolder(ctx, file.ID, owner, grantee, models.AccessLevelView)
		require.NoError(t, err)
		assert.NotEqual(t, a.ShareLink, b.ShareLink)

		shares, err := e.svc.ListShares(ctx, file.ID, owner)
		require.NoError(t, err)
		assert.Len(t, shares, 2)

		_, err = e.svc.ListShares(ctx, file.ID, grantee)
		assert.ErrorIs(t, err, models.ErrUnauthorized)
	})

	t.Run("should succeed when the notifier fails", func(t *testing.T) {
		notifier := &recordingNotifier{err: errors.New("smtp down")}
		e := newTestEngine(t, services.WithShareNotifier(notifier))
		owner, grantee := e.addUser(t), e.addUser(t)

		file, err := e.svc.Upload(ctx, textUpload("a.txt", "x"), owner, nil, nil)
		require.NoError(t, err)

		share, err := e.svc.ShareFileOrFolder(ctx, file.ID, owner, grantee, models.AccessLevelView)
		require.NoError(t, err)
		assert.NotEmpty(t, share.ShareLink)
	})

	t.Run("should revoke a single grant", func(t *testing.T) {
		e := newTestEngine(t)
		owner, grantee := e.addUser(t), e.addUser(t)

		file, err := e.svc.Upload(ctx, textUpload("a.txt", "x"), owner, nil, nil)
		require.NoError(t, err)
		share, err := e.svc.ShareFileOrFolder(ctx, file.ID, owner, grantee, models.AccessLevelView)
		require.NoError(t, err)

		assert.ErrorIs(t, e.svc.RevokeShare(ctx, file.ID, grantee, share.ID), models.ErrUnauthorized)
		assert.ErrorIs(t, e.svc.RevokeShare(ctx, file.ID, owner, primitive.NewObjectID()), models.ErrNotFound)
		require.NoError(t, e.svc.RevokeShare(ctx, file.ID, owner, share.ID))

		_, err = e.svc.GetFileOrFolder(ctx, file.ID, grantee)
		assert.ErrorIs(t, err, models.ErrUnauthorized)
		_, err = e.svc.GetByShareLink(ctx, share.ShareLink, grantee)
		assert.ErrorIs(t, err, models.ErrUnauthorized)
	})
}

func TestListFolderContents(t *testing.T) {
	ctx := context.Background()

	t.Run("should list the caller's root", func(t *testing.T) {
		e := newTestEngine(t)
		owner, other := e.addUser(t), e.addUser(t)

		_, err := e.svc.Upload(ctx, textUpload("b.txt", "x"), owner, nil, nil)
		require.NoError(t, err)
		_, err = e.svc.CreateFolder(ctx, "Docs", owner, nil)
		require.NoError(t, err)
		_, err = e.svc.Upload(ctx, textUpload("mine.txt", "x"), other, nil, nil)
		require.NoError(t, err)

		list, err := e.svc.ListFolderContents(ctx, nil, owner)
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, "Docs", list[0].Name)
		assert.Equal(t, "b.txt", list[1].Name)
	})

	t.Run("should list a shared folder for its grantee", func(t *testing.T) {
		e := newTestEngine(t)
		owner, grantee, stranger := e.addUser(t), e.addUser(t), e.addUser(t)

		folder, err := e.svc.CreateFolder(ctx, "Shared", owner, nil)
		require.NoError(t, err)
		_, err = e.svc.Upload(ctx, textUpload("a.txt", "x"), owner, &folder.ID, nil)
		require.NoError(t, err)
		_, err = e.svc.ShareFileOrFolder(ctx, folder.ID, owner, grantee, models.AccessLevelView)
		require.NoError(t, err)

		list, err := e.svc.ListFolderContents(ctx, &folder.ID, grantee)
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, "a.txt", list[0].Name)

		got, err := e.svc.GetFileOrFolder(ctx, folder.ID, grantee)
		require.NoError(t, err)
		assert.Len(t, got.Children, 1)

		_, err = e.svc.ListFolderContents(ctx, &folder.ID, stranger)
		assert.ErrorIs(t, err, models.ErrUnauthorized)
	})

	t.Run("should reject files and unknown ids", func(t *testing.T) {
		e := newTestEngine(t)
		owner := e.addUser(t)

		file, err := e.svc.Upload(ctx, textUpload("a.txt", "x"), owner, nil, nil)
		require.NoError(t, err)
		_, err = e.svc.ListFolderContents(ctx, &file.ID, owner)
		assert.ErrorIs(t, err, models.ErrInvalidArgument)

		missing := primitive.NewObjectID()
		_, err = e.svc.ListFolderContents(ctx, &missing, owner)
		assert.ErrorIs(t, err, models.ErrInvalidArgument)
	})

	t.Run("should return an empty list for an empty folder", func(t *testing.T) {
		e := newTestEngine(t)
		owner := e.addUser(t)

		folder, err := e.svc.CreateFolder(ctx, "Empty", owner, nil)
		require.NoError(t, err)
		list, err := e.svc.ListFolderContents(ctx, &folder.ID, owner)
		require.NoError(t, err)
		assert.NotNil(t, list)
		assert.Empty(t, list)
	})
}

func TestRestoreFileVersion(t *testing.T) {
	ctx := context.Background()

	t.Run("should roll back without extending the history", func(t *testing.T) {
		e := newTestEngine(t)
		owner := e.addUser(t)

		first, err := e.svc.Upload(ctx, textUpload("a.txt", "one"), owner, nil, nil)
		require.NoError(t, err)
		_, err = e.svc.Upload(ctx, textUpload("b.md", "second"), owner, nil, &first.ID)
		require.NoError(t, err)

		restored, err := e.svc.RestoreFileVersion(ctx, first.ID, owner, 1)
		require.NoError(t, err)

		assert.Equal(t, "a.txt", restored.Name)
		assert.Equal(t, int64(3), restored.Size)
		assert.Equal(t, "txt", restored.ContentType)
		assert.NotEqual(t, first.Path, restored.Path)
		assert.True(t, strings.HasSuffix(restored.Path, "/a.txt"))

		data, ok := e.blobs.Get(restored.Path)
		require.True(t, ok)
		assert.Equal(t, "one", string(data))

		versions, err := e.svc.GetFileVersions(ctx, first.ID, owner)
		require.NoError(t, err)
		assert.Len(t, versions, 2)

		got, err := e.svc.GetFileOrFolder(ctx, first.ID, owner)
		require.NoError(t, err)
		assert.Equal(t, restored.Path, got.Path)
	})

	t.Run("should report unknown versions and folders", func(t *testing.T) {
		e := newTestEngine(t)
		owner, other := e.addUser(t), e.addUser(t)

		file, err := e.svc.Upload(ctx, textUpload("a.txt", "one"), owner, nil, nil)
		require.NoError(t, err)
		folder, err := e.svc.CreateFolder(ctx, "Docs", owner, nil)
		require.NoError(t, err)

		_, err = e.svc.RestoreFileVersion(ctx, file.ID, owner, 7)
		assert.ErrorIs(t, err, models.ErrNotFound)
		_, err = e.svc.RestoreFileVersion(ctx, file.ID, other, 1)
		assert.ErrorIs(t, err, models.ErrUnauthorized)
		_, err = e.svc.RestoreFileVersion(ctx, folder.ID, owner, 1)
		assert.ErrorIs(t, err, models.ErrInvalidOperation)
		_, err = e.svc.GetFileVersions(ctx, folder.ID, owner)
		assert.ErrorIs(t, err, models.ErrInvalidOperation)
	})
}

func TestDeleteFileOrFolder(t *testing.T) {
	ctx := context.Background()

	t.Run("should remove a file with its history and grants", func(t *testing.T) {
		e := newTestEngine(t)
		owner, grantee := e.addUser(t), e.addUser(t)

		file, err := e.svc.Upload(ctx, textUpload("a.txt", "one"), owner, nil, nil)
		require.NoError(t, err)
		_, err = e.svc.Upload(ctx, textUpload("a.txt", "two"), owner, nil, &file.ID)
		require.NoError(t, err)
		share, err := e.svc.ShareFileOrFolder(ctx, file.ID, owner, grantee, models.AccessLevelView)
		require.NoError(t, err)
		require.Equal(t, 2, e.blobs.Len())

		require.NoError(t, e.svc.DeleteFileOrFolder(ctx, file.ID, owner))

		assert.Zero(t, e.blobs.Len())
		_, err = e.svc.GetFileOrFolder(ctx, file.ID, owner)
		assert.ErrorIs(t, err, models.ErrNotFound)
		versions, err := e.store.Versions().GetByFileEntryID(ctx, file.ID)
		require.NoError(t, err)
		assert.Empty(t, versions)
		_, err = e.store.Shares().GetByLink(ctx, share.ShareLink)
		assert.ErrorIs(t, err, models.ErrNotFound)
	})

	t.Run("should remove restored content", func(t *testing.T) {
		e := newTestEngine(t)
		owner := e.addUser(t)

		file, err := e.svc.Upload(ctx, textUpload("a.txt", "one"), owner, nil, nil)
		require.NoError(t, err)
		_, err = e.svc.Upload(ctx, textUpload("a.txt", "two"), owner, nil, &file.ID)
		require.NoError(t, err)

		_, err = e.svc.RestoreFileVersion(ctx, file.ID, owner, 1)
		require.NoError(t, err)
		assert.Equal(t, 3, e.blobs.Len())

		// The first restored copy is replaced by the second and dropped.
		_, err = e.svc.RestoreFileVersion(ctx, file.ID, owner, 2)
		require.NoError(t, err)
		assert.Equal(t, 3, e.blobs.Len())

		require.NoError(t, e.svc.DeleteFileOrFolder(ctx, file.ID, owner))
		assert.Zero(t, e.blobs.Len())
	})

	t.Run("should drop a restored copy once an update replaces it", func(t *testing.T) {
		e := newTestEngine(t)
		owner := e.addUser(t)

		file, err := e.svc.Upload(ctx, textUpload("a.txt", "one"), owner, nil, nil)
		require.NoError(t, err)
		restored, err := e.svc.RestoreFileVersion(ctx, file.ID, owner, 1)
		require.NoError(t, err)
		require.Equal(t, 2, e.blobs.Len())

		_, err = e.svc.Upload(ctx, textUpload("a.txt", "two"), owner, nil, &file.ID)
		require.NoError(t, err)

		assert.Equal(t, 2, e.blobs.Len())
		_, ok := e.blobs.Get(restored.Path)
		assert.False(t, ok)
		_, ok = e.blobs.Get(file.Path)
		assert.True(t, ok, "version 1 content is kept")
	})

	t.Run("should refuse non-empty folders", func(t *testing.T) {
		e := newTestEngine(t)
		owner := e.addUser(t)

		folder, err := e.svc.CreateFolder(ctx, "Docs", owner, nil)
		require.NoError(t, err)
		child, err := e.svc.Upload(ctx, textUpload("a.txt", "x"), owner, &folder.ID, nil)
		require.NoError(t, err)

		assert.ErrorIs(t, e.svc.DeleteFileOrFolder(ctx, folder.ID, owner), models.ErrInvalidOperation)

		require.NoError(t, e.svc.DeleteFileOrFolder(ctx, child.ID, owner))
		require.NoError(t, e.svc.DeleteFileOrFolder(ctx, folder.ID, owner))
	})

	t.Run("should report missing entries and strangers", func(t *testing.T) {
		e := newTestEngine(t)
		owner, other := e.addUser(t), e.addUser(t)

		assert.ErrorIs(t, e.svc.DeleteFileOrFolder(ctx, primitive.NewObjectID(), owner), models.ErrNotFound)

		file, err := e.svc.Upload(ctx, textUpload("a.txt", "x"), owner, nil, nil)
		require.NoError(t, err)
		assert.ErrorIs(t, e.svc.DeleteFileOrFolder(ctx, file.ID, other), models.ErrUnauthorized)
	})
}

func TestFileServiceMetrics(t *testing.T) {
	ctx := context.Background()
	reg := prometheus.NewRegistry()
	e := newTestEngine(t, services.WithMetrics(metrics.NewEngineMetrics(reg)))
	owner := e.addUser(t)

	_, err := e.svc.Upload(ctx, textUpload("a.txt", "hello"), owner, nil, nil)
	require.NoError(t, err)
	_, err = e.svc.GetFileOrFolder(ctx, primitive.NewObjectID(), owner)
	require.Error(t, err)

	families, err := reg.Gather()
	require.NoError(t, err)

	counts := map[string]float64{}
	var uploaded float64
	for _, mf := range families {
		switch mf.GetName() {
		case "cloudbox_operations_total":
			for _, m := range mf.GetMetric() {
				var op, outcome string
				for _, l := range m.GetLabel() {
					switch l.GetName() {
					case "operation":
						op = l.GetValue()
					case "outcome":
						outcome = l.GetValue()
					}
				}
				counts[op+"/"+outcome] = m.GetCounter().GetValue()
			}
		case "cloudbox_uploaded_bytes_total":
			uploaded = mf.GetMetric()[0].GetCounter().GetValue()
		}
	}

	assert.Equal(t, float64(1), counts["upload/ok"])
	assert.Equal(t, float64(1), counts["get/not_found"])
	assert.Equal(t, float64(5), uploaded)
}

type signingBlobStore struct {
	*services.MemoryBlobStore
}

func (s signingBlobStore) SignedURL(_ context.Context, pointer string, _ time.Duration) (string, error) {
	return "https://blobs.example.com/" + pointer, nil
}

func TestGetDownloadURL(t *testing.T) {
	ctx := context.Background()

	t.Run("should refuse backends without signing", func(t *testing.T) {
		e := newTestEngine(t)
		owner := e.addUser(t)
		file, err := e.svc.Upload(ctx, textUpload("a.txt", "x"), owner, nil, nil)
		require.NoError(t, err)

		_, err = e.svc.GetDownloadURL(ctx, file.ID, owner)
		assert.ErrorIs(t, err, models.ErrInvalidOperation)
	})

	t.Run("should sign the current pointer for readers", func(t *testing.T) {
		logger := zap.NewNop()
		store := repository.NewMemoryStore()
		blobs := signingBlobStore{services.NewMemoryBlobStore()}
		svc := services.NewFileService(
			store.Files(),
			services.NewVersionManager(store.Versions(), services.NewMemoryEntryLocker(), logger),
			services.NewAccessControl(store.Shares(), store.Users(), logger),
			services.NewPathResolver(store.Files(), logger),
			blobs,
			logger,
		)
		e := &testEngine{svc: svc, store: store, blobs: blobs.MemoryBlobStore}
		owner, grantee, stranger := e.addUser(t), e.addUser(t), e.addUser(t)

		file, err := svc.Upload(ctx, textUpload("a.txt", "x"), owner, nil, nil)
		require.NoError(t, err)
		_, err = svc.ShareFileOrFolder(ctx, file.ID, owner, grantee, models.AccessLevelView)
		require.NoError(t, err)

		link, err := svc.GetDownloadURL(ctx, file.ID, grantee)
		require.NoError(t, err)
		assert.Equal(t, "https://blobs.example.com/"+file.Path, link)

		_, err = svc.GetDownloadURL(ctx, file.ID, stranger)
		assert.ErrorIs(t, err, models.ErrUnauthorized)

		folder, err := svc.CreateFolder(ctx, "Docs", owner, nil)
		require.NoError(t, err)
		_, err = svc.GetDownloadURL(ctx, folder.ID, owner)
		assert.ErrorIs(t, err, models.ErrInvalidOperation)
	})
}
