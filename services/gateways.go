package services

import (
	"context"
	"io"
	"time"

	"cloudbox/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// FileRepository persists FileEntry nodes. GetByID and GetByShareLink return
// an error wrapping models.ErrNotFound when nothing matches; driver failures
// wrap models.ErrUnavailable.
type FileRepository interface {
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.FileEntry, error)
	GetChildren(ctx context.Context, parentID *primitive.ObjectID, ownerID primitive.ObjectID) ([]models.FileEntry, error)
	GetByShareLink(ctx context.Context, shareLink string) (*models.FileEntry, error)
	Add(ctx context.Context, entry *models.FileEntry) error
	Update(ctx context.Context, entry *models.FileEntry) error
	Delete(ctx context.Context, id primitive.ObjectID) error
	GetVersions(ctx context.Context, fileEntryID primitive.ObjectID) ([]models.FileVersion, error)
}

// VersionRepository persists the version log. Add must reject a second
// version with the same (file entry, number) pair.
type VersionRepository interface {
	Add(ctx context.Context, version *models.FileVersion) error
	GetByFileEntryID(ctx context.Context, fileEntryID primitive.ObjectID) ([]models.FileVersion, error)
	GetLatestVersion(ctx context.Context, fileEntryID primitive.ObjectID) (*models.FileVersion, error)
	DeleteByFileEntryID(ctx context.Context, fileEntryID primitive.ObjectID) error
}

type SharedAccessRepository interface {
	Add(ctx context.Context, share *models.SharedAccess) error
	GetByLink(ctx context.Context, shareLink string) (*models.SharedAccess, error)
	GetByFileEntryID(ctx context.Context, fileEntryID primitive.ObjectID) ([]models.SharedAccess, error)
	Delete(ctx context.Context, id primitive.ObjectID) error
	DeleteByFileEntryID(ctx context.Context, fileEntryID primitive.ObjectID) error
}

type UserRepository interface {
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	Add(ctx context.Context, user *models.User) error
}

// BlobStore moves file content in and out of object storage. Upload takes a
// logical key such as "Docs/2024/report.txt" and returns the pointer that is
// stored on the entry. UploadVersion copies a historical version's bytes to a
// fresh pointer.
type BlobStore interface {
	Upload(ctx context.Context, content io.Reader, size int64, contentType, key string) (string, error)
	UploadVersion(ctx context.Context, version models.FileVersion) (string, error)
	Delete(ctx context.Context, pointer string) error
}

// DownloadSigner is implemented by blob stores that can hand out direct,
// time-limited download links.
type DownloadSigner interface {
	SignedURL(ctx context.Context, pointer string, ttl time.Duration) (string, error)
}

// EntryLocker serializes work on a single entry. The returned func releases
// the lock and is safe to call once.
type EntryLocker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// ShareNotifier is told about every grant after it has been persisted.
type ShareNotifier interface {
	NotifyShared(ctx context.Context, entry *models.FileEntry, share *models.SharedAccess) error
}
