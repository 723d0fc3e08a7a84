package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"cloudbox/metrics"
	"cloudbox/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

const (
	defaultContentType = "application/octet-stream"
	downloadURLTTL     = 15 * time.Minute
)

// FileUpload is one file received from a caller.
type FileUpload struct {
	Content     io.Reader
	Filename    string
	Size        int64
	ContentType string
}

// FileService is the façade over the file tree. Every method either returns
// a result or one error wrapping a models sentinel.
type FileService struct {
	files    FileRepository
	versions *VersionManager
	access   *AccessControl
	paths    *PathResolver
	blobs    BlobStore
	notifier ShareNotifier
	metrics  *metrics.EngineMetrics
	logger   *zap.Logger
}

type FileServiceOption func(*FileService)

func WithShareNotifier(n ShareNotifier) FileServiceOption {
	return func(s *FileService) { s.notifier = n }
}

func WithMetrics(m *metrics.EngineMetrics) FileServiceOption {
	return func(s *FileService) { s.metrics = m }
}

func NewFileService(files FileRepository, versions *VersionManager, access *AccessControl, paths *PathResolver, blobs BlobStore, logger *zap.Logger, opts ...FileServiceOption) *FileService {
	s := &FileService{
		files:    files,
		versions: versions,
		access:   access,
		paths:    paths,
		blobs:    blobs,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Upload stores a new file, or a new version of fileEntryID when given.
func (s *FileService) Upload(ctx context.Context, file FileUpload, userID primitive.ObjectID, parentFolderID, fileEntryID *primitive.ObjectID) (dto *models.FileDTO, err error) {
	defer s.observe("upload", time.Now(), &err)

	if file.Content == nil || file.Size <= 0 {
		return nil, fmt.Errorf("%w: file cannot be empty", models.ErrInvalidArgument)
	}
	if strings.TrimSpace(file.Filename) == "" {
		return nil, fmt.Errorf("%w: file name cannot be empty", models.ErrInvalidArgument)
	}
	contentType := file.ContentType
	if contentType == "" {
		contentType = defaultContentType
	}

	if parentFolderID != nil {
		if _, err := s.loadParent(ctx, *parentFolderID, userID); err != nil {
			return nil, err
		}
	}

	folderID := parentFolderID
	var existing *models.FileEntry
	if fileEntryID != nil {
		existing, err = s.files.GetByID(ctx, *fileEntryID)
		if err != nil {
			if errors.Is(err, models.ErrNotFound) {
				return nil, fmt.Errorf("%w: user does not own the file or it is a folder", models.ErrUnauthorized)
			}
			return nil, err
		}
		if !s.access.CanWrite(existing, userID) || existing.IsFolder {
			return nil, fmt.Errorf("%w: user does not own the file or it is a folder", models.ErrUnauthorized)
		}
		// An update stays where the file already lives.
		folderID = existing.ParentFolderID
	}

	key := StorageKey(s.paths.ResolveFolderPath(ctx, folderID), file.Filename)
	pointer, err := s.blobs.Upload(ctx, file.Content, file.Size, contentType, key)
	if err != nil {
		s.logger.Error("blob upload failed", zap.String("path", key), zap.String("user_id", userID.Hex()), zap.Error(err))
		return nil, fmt.Errorf("failed to upload content: %w", err)
	}
	s.metrics.AddUploadedBytes(file.Size)

	if existing != nil {
		if err := s.applyUpdate(ctx, existing, file, contentType, pointer); err != nil {
			return nil, err
		}
		s.logger.Info("file updated",
			zap.String("file_id", existing.ID.Hex()),
			zap.String("path", pointer),
			zap.String("user_id", userID.Hex()),
			zap.Int("version", existing.Versions.Latest()))
		out := existing.Projection()
		return &out, nil
	}

	entry, err := models.NewFileEntry(file.Filename, pointer, contentType, file.Size, userID, parentFolderID, false)
	if err != nil {
		s.discardBlob(ctx, pointer)
		return nil, err
	}
	if err := s.files.Add(ctx, entry); err != nil {
		s.discardBlob(ctx, pointer)
		return nil, fmt.Errorf("failed to persist file: %w", err)
	}
	if err := s.versions.CreateInitialVersion(ctx, entry); err != nil {
		if derr := s.files.Delete(ctx, entry.ID); derr != nil {
			s.logger.Error("failed to roll back file entry", zap.String("file_id", entry.ID.Hex()), zap.Error(derr))
		}
		s.discardBlob(ctx, pointer)
		return nil, err
	}

	s.logger.Info("file added",
		zap.String("file_id", entry.ID.Hex()),
		zap.String("path", pointer),
		zap.String("user_id", userID.Hex()))
	out := entry.Projection()
	return &out, nil
}

func (s *FileService) applyUpdate(ctx context.Context, existing *models.FileEntry, file FileUpload, contentType, pointer string) error {
	replaced := existing.Path
	persisted := false
	err := s.versions.WithEntryLock(ctx, existing, func(ctx context.Context) error {
		if err := existing.ApplyUpload(file.Filename, pointer, contentType, file.Size); err != nil {
			return err
		}
		if err := s.files.Update(ctx, existing); err != nil {
			return fmt.Errorf("failed to persist file: %w", err)
		}
		persisted = true
		_, err := s.versions.appendLocked(ctx, existing, file.Filename, pointer, file.Size)
		return err
	})
	if err != nil {
		if !persisted {
			s.discardBlob(ctx, pointer)
		}
		return err
	}
	s.releaseContent(ctx, existing, replaced)
	return nil
}

// CreateFolder adds an empty folder under parentFolderID, or at the root.
func (s *FileService) CreateFolder(ctx context.Context, name string, userID primitive.ObjectID, parentFolderID *primitive.ObjectID) (dto *models.FileDTO, err error) {
	defer s.observe("create_folder", time.Now(), &err)

	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("%w: folder name cannot be empty", models.ErrInvalidArgument)
	}

	var parent *models.FileEntry
	if parentFolderID != nil {
		if parent, err = s.loadParent(ctx, *parentFolderID, userID); err != nil {
			return nil, err
		}
	}

	folder, err := models.NewFileEntry(name, "", "", 0, userID, parentFolderID, true)
	if err != nil {
		return nil, err
	}
	if err := s.files.Add(ctx, folder); err != nil {
		return nil, fmt.Errorf("failed to persist folder: %w", err)
	}
	if parent != nil {
		parent.Children = append(parent.Children, *folder)
	}

	s.logger.Info("folder created", zap.String("file_id", folder.ID.Hex()), zap.String("user_id", userID.Hex()))
	out := folder.Projection()
	return &out, nil
}

// GetFileOrFolder returns the entry, with its direct children for a folder.
func (s *FileService) GetFileOrFolder(ctx context.Context, id, userID primitive.ObjectID) (dto *models.FileDTO, err error) {
	defer s.observe("get", time.Now(), &err)

	entry, err := s.loadEntry(ctx, id)
	if err != nil {
		return nil, err
	}
	if !s.access.CanRead(entry, userID) {
		return nil, fmt.Errorf("%w: user does not have access to %s", models.ErrUnauthorized, id.Hex())
	}
	if err := s.attachChildren(ctx, entry); err != nil {
		return nil, err
	}
	out := entry.Projection()
	return &out, nil
}

// GetByShareLink opens an entry through a link issued to userID.
func (s *FileService) GetByShareLink(ctx context.Context, shareLink string, userID primitive.ObjectID) (dto *models.FileDTO, err error) {
	defer s.observe("get_by_share_link", time.Now(), &err)

	if shareLink == "" {
		return nil, fmt.Errorf("%w: invalid share link or no access", models.ErrUnauthorized)
	}
	entry, err := s.files.GetByShareLink(ctx, shareLink)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, fmt.Errorf("%w: invalid share link or no access", models.ErrUnauthorized)
		}
		return nil, err
	}
	if err := s.access.LoadShares(ctx, entry); err != nil {
		return nil, err
	}
	if !s.access.CanReadViaLink(entry, userID, shareLink) {
		return nil, fmt.Errorf("%w: invalid share link or no access", models.ErrUnauthorized)
	}
	if err := s.attachChildren(ctx, entry); err != nil {
		return nil, err
	}
	out := entry.Projection()
	return &out, nil
}

// GetDownloadURL returns a short-lived direct link to a readable file's
// current content.
func (s *FileService) GetDownloadURL(ctx context.Context, id, userID primitive.ObjectID) (link string, err error) {
	defer s.observe("download_url", time.Now(), &err)

	entry, err := s.loadEntry(ctx, id)
	if err != nil {
		return "", err
	}
	if !s.access.CanRead(entry, userID) {
		return "", fmt.Errorf("%w: user does not have access to %s", models.ErrUnauthorized, id.Hex())
	}
	if entry.IsFolder {
		return "", fmt.Errorf("%w: folders cannot be downloaded", models.ErrInvalidOperation)
	}
	signer, ok := s.blobs.(DownloadSigner)
	if !ok {
		return "", fmt.Errorf("%w: storage backend does not support direct downloads", models.ErrInvalidOperation)
	}
	return signer.SignedURL(ctx, entry.Path, downloadURLTTL)
}

// ShareFileOrFolder grants targetUserID access and returns the new grant.
func (s *FileService) ShareFileOrFolder(ctx context.Context, id, ownerID, targetUserID primitive.ObjectID, level models.AccessLevel) (share *models.SharedAccess, err error) {
	defer s.observe("share", time.Now(), &err)

	entry, err := s.files.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	share, err = s.access.MintShare(ctx, entry, ownerID, targetUserID, level)
	if err != nil {
		return nil, err
	}

	if s.notifier != nil {
		if nerr := s.notifier.NotifyShared(ctx, entry, share); nerr != nil {
			s.logger.Warn("share notification failed",
				zap.String("file_id", entry.ID.Hex()),
				zap.String("user_id", targetUserID.Hex()),
				zap.Error(nerr))
		}
	}
	return share, nil
}

func (s *FileService) ListShares(ctx context.Context, id, ownerID primitive.ObjectID) (shares []models.SharedAccess, err error) {
	defer s.observe("list_shares", time.Now(), &err)

	entry, err := s.files.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.access.ListShares(ctx, entry, ownerID)
}

func (s *FileService) RevokeShare(ctx context.Context, id, ownerID, shareID primitive.ObjectID) (err error) {
	defer s.observe("revoke_share", time.Now(), &err)

	entry, err := s.files.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.access.RevokeShare(ctx, entry, ownerID, shareID); err != nil {
		return err
	}
	s.logger.Info("share revoked", zap.String("file_id", id.Hex()), zap.String("share_id", shareID.Hex()))
	return nil
}

// ListFolderContents returns the direct children of folderID, or the
// caller's root entries when folderID is nil.
func (s *FileService) ListFolderContents(ctx context.Context, folderID *primitive.ObjectID, userID primitive.ObjectID) (dtos []models.FileDTO, err error) {
	defer s.observe("list_contents", time.Now(), &err)

	parentID, ownerID := folderID, userID
	if folderID != nil {
		folder, err := s.files.GetByID(ctx, *folderID)
		if err != nil && !errors.Is(err, models.ErrNotFound) {
			return nil, err
		}
		if folder == nil || !folder.IsFolder {
			return nil, fmt.Errorf("%w: %s is not a folder", models.ErrInvalidArgument, folderID.Hex())
		}
		if err := s.access.LoadShares(ctx, folder); err != nil {
			return nil, err
		}
		if !s.access.CanRead(folder, userID) {
			return nil, fmt.Errorf("%w: user does not have access to this folder", models.ErrUnauthorized)
		}
		ownerID = folder.OwnerID
	}

	children, err := s.files.GetChildren(ctx, parentID, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list folder contents: %w", err)
	}
	dtos = make([]models.FileDTO, 0, len(children))
	for i := range children {
		dtos = append(dtos, children[i].Projection())
	}
	return dtos, nil
}

// GetFileVersions lists every version of a file the caller owns.
func (s *FileService) GetFileVersions(ctx context.Context, fileID, userID primitive.ObjectID) (dtos []models.FileVersionDTO, err error) {
	defer s.observe("list_versions", time.Now(), &err)

	file, err := s.ownedFile(ctx, fileID, userID)
	if err != nil {
		return nil, err
	}
	log, err := s.versions.ListVersions(ctx, file)
	if err != nil {
		return nil, err
	}
	dtos = make([]models.FileVersionDTO, 0, len(log))
	for _, v := range log {
		dtos = append(dtos, v.Projection())
	}
	return dtos, nil
}

// RestoreFileVersion rolls the live file back to versionNumber. The version
// log is not extended.
func (s *FileService) RestoreFileVersion(ctx context.Context, fileID, userID primitive.ObjectID, versionNumber int) (dto *models.FileDTO, err error) {
	defer s.observe("restore_version", time.Now(), &err)

	file, err := s.ownedFile(ctx, fileID, userID)
	if err != nil {
		return nil, err
	}
	version, err := s.versions.FindVersion(ctx, file, versionNumber)
	if err != nil {
		return nil, err
	}

	pointer, err := s.blobs.UploadVersion(ctx, version)
	if err != nil {
		s.logger.Error("failed to materialize version", zap.String("file_id", fileID.Hex()), zap.Int("version", versionNumber), zap.Error(err))
		return nil, fmt.Errorf("failed to restore content: %w", err)
	}

	replaced := file.Path
	if err := file.RestoreVersion(versionNumber, pointer, contentTypeToken(version.FilePath), version.Size); err != nil {
		s.discardBlob(ctx, pointer)
		return nil, err
	}
	if err := s.files.Update(ctx, file); err != nil {
		s.discardBlob(ctx, pointer)
		return nil, fmt.Errorf("failed to persist file: %w", err)
	}
	s.releaseContent(ctx, file, replaced)

	s.logger.Info("file restored",
		zap.String("file_id", fileID.Hex()),
		zap.Int("version", versionNumber),
		zap.String("path", pointer))
	out := file.Projection()
	return &out, nil
}

// DeleteFileOrFolder removes an entry the caller owns. Folders must be empty.
func (s *FileService) DeleteFileOrFolder(ctx context.Context, id, userID primitive.ObjectID) (err error) {
	defer s.observe("delete", time.Now(), &err)

	entry, err := s.files.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !s.access.CanWrite(entry, userID) {
		return fmt.Errorf("%w: user does not own %s", models.ErrUnauthorized, id.Hex())
	}

	if entry.IsFolder {
		children, err := s.files.GetChildren(ctx, &entry.ID, entry.OwnerID)
		if err != nil {
			return fmt.Errorf("failed to check folder contents: %w", err)
		}
		if len(children) > 0 {
			return fmt.Errorf("%w: cannot delete a folder with contents, delete children first", models.ErrInvalidOperation)
		}
	}

	if err := s.access.RevokeAll(ctx, entry); err != nil {
		return err
	}

	if !entry.IsFolder {
		if err := s.blobs.Delete(ctx, entry.Path); err != nil {
			return fmt.Errorf("failed to delete content: %w", err)
		}
		s.deleteVersionContent(ctx, entry)
		if err := s.versions.DeleteVersions(ctx, entry); err != nil {
			return err
		}
	}

	if err := s.files.Delete(ctx, entry.ID); err != nil {
		return fmt.Errorf("failed to delete entry: %w", err)
	}

	kind := "file"
	if entry.IsFolder {
		kind = "folder"
	}
	s.logger.Info(kind+" deleted", zap.String("file_id", id.Hex()), zap.String("user_id", userID.Hex()))
	return nil
}

// deleteVersionContent removes historical blobs. Failures are logged only;
// the entry itself is already unreachable content-wise.
func (s *FileService) deleteVersionContent(ctx context.Context, entry *models.FileEntry) {
	log, err := s.versions.ListVersions(ctx, entry)
	if err != nil {
		s.logger.Warn("could not list versions for cleanup", zap.String("file_id", entry.ID.Hex()), zap.Error(err))
		return
	}
	seen := map[string]struct{}{entry.Path: {}}
	for _, v := range log {
		if _, ok := seen[v.FilePath]; ok || v.FilePath == "" {
			continue
		}
		seen[v.FilePath] = struct{}{}
		if err := s.blobs.Delete(ctx, v.FilePath); err != nil {
			s.logger.Warn("failed to delete version content",
				zap.String("file_id", entry.ID.Hex()),
				zap.Int("version", v.VersionNumber),
				zap.Error(err))
		}
	}
}

// releaseContent deletes a pointer the entry no longer serves, unless a
// version still owns it. Restored copies are the only such pointers.
func (s *FileService) releaseContent(ctx context.Context, entry *models.FileEntry, pointer string) {
	if pointer == "" || pointer == entry.Path {
		return
	}
	log, err := s.versions.ListVersions(ctx, entry)
	if err != nil {
		s.logger.Warn("could not list versions, keeping replaced content",
			zap.String("file_id", entry.ID.Hex()), zap.String("path", pointer), zap.Error(err))
		return
	}
	for _, v := range log {
		if v.FilePath == pointer {
			return
		}
	}
	if err := s.blobs.Delete(ctx, pointer); err != nil {
		s.logger.Warn("failed to delete replaced content",
			zap.String("file_id", entry.ID.Hex()), zap.String("path", pointer), zap.Error(err))
	}
}

func (s *FileService) loadEntry(ctx context.Context, id primitive.ObjectID) (*models.FileEntry, error) {
	entry, err := s.files.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.access.LoadShares(ctx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// loadParent checks that id is a folder owned by userID.
func (s *FileService) loadParent(ctx context.Context, id, userID primitive.ObjectID) (*models.FileEntry, error) {
	parent, err := s.files.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, fmt.Errorf("%w: parent folder does not exist or is not a folder", models.ErrInvalidArgument)
		}
		return nil, err
	}
	if !parent.IsFolder {
		return nil, fmt.Errorf("%w: parent folder does not exist or is not a folder", models.ErrInvalidArgument)
	}
	if !s.access.CanWrite(parent, userID) {
		return nil, fmt.Errorf("%w: user does not own the parent folder", models.ErrUnauthorized)
	}
	return parent, nil
}

func (s *FileService) ownedFile(ctx context.Context, id, userID primitive.ObjectID) (*models.FileEntry, error) {
	file, err := s.files.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !s.access.CanWrite(file, userID) {
		return nil, fmt.Errorf("%w: user does not own %s", models.ErrUnauthorized, id.Hex())
	}
	if file.IsFolder {
		return nil, fmt.Errorf("%w: folders have no versions", models.ErrInvalidOperation)
	}
	return file, nil
}

// attachChildren loads one level of children for a folder. Children are
// listed under the folder owner so grantees see the same contents.
func (s *FileService) attachChildren(ctx context.Context, entry *models.FileEntry) error {
	if !entry.IsFolder {
		return nil
	}
	children, err := s.files.GetChildren(ctx, &entry.ID, entry.OwnerID)
	if err != nil {
		return fmt.Errorf("failed to load children: %w", err)
	}
	entry.Children = children
	return nil
}

func (s *FileService) discardBlob(ctx context.Context, pointer string) {
	// The request context may be the reason we are here.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := s.blobs.Delete(ctx, pointer); err != nil {
		s.logger.Error("orphaned blob", zap.String("path", pointer), zap.Error(err))
		return
	}
	s.logger.Warn("discarded blob after failed write", zap.String("path", pointer))
}

func (s *FileService) observe(operation string, start time.Time, err *error) {
	s.metrics.Observe(operation, start, *err)
}

// contentTypeToken is the text after the last '.' of a stored path.
func contentTypeToken(path string) string {
	if i := strings.LastIndex(path, "."); i >= 0 {
		return path[i+1:]
	}
	return path
}
