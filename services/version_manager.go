package services

import (
	"context"
	"errors"
	"fmt"

	"cloudbox/models"

	"go.uber.org/zap"
)

// VersionManager owns the version log of every file. Numbers are computed
// from the repository under the entry lock, so concurrent uploads against one
// entry cannot mint the same number.
type VersionManager struct {
	versions VersionRepository
	locker   EntryLocker
	logger   *zap.Logger
}

func NewVersionManager(versions VersionRepository, locker EntryLocker, logger *zap.Logger) *VersionManager {
	return &VersionManager{versions: versions, locker: locker, logger: logger}
}

// CreateInitialVersion persists version 1 of a freshly built file entry.
func (m *VersionManager) CreateInitialVersion(ctx context.Context, entry *models.FileEntry) error {
	if entry.IsFolder {
		return fmt.Errorf("%w: folders have no versions", models.ErrInvalidOperation)
	}
	if entry.Versions.Latest() == 0 {
		if err := entry.Versions.Append(models.NewFileVersion(entry.ID, entry.Name, entry.Path, entry.Size, 1)); err != nil {
			return err
		}
	}

	first := entry.Versions[0]
	if err := m.versions.Add(ctx, &first); err != nil {
		return fmt.Errorf("failed to persist initial version: %w", err)
	}
	return nil
}

// WithEntryLock runs fn while holding the lock for entry.
func (m *VersionManager) WithEntryLock(ctx context.Context, entry *models.FileEntry, fn func(ctx context.Context) error) error {
	unlock, err := m.locker.Lock(ctx, entry.ID.Hex())
	if err != nil {
		return err
	}
	defer unlock()
	return fn(ctx)
}

// AppendVersion records a new upload as version max+1 and returns its number.
func (m *VersionManager) AppendVersion(ctx context.Context, entry *models.FileEntry, newName, newPath string, newSize int64) (int, error) {
	var number int
	err := m.WithEntryLock(ctx, entry, func(ctx context.Context) error {
		var err error
		number, err = m.appendLocked(ctx, entry, newName, newPath, newSize)
		return err
	})
	return number, err
}

// appendLocked expects the caller to hold the entry lock.
func (m *VersionManager) appendLocked(ctx context.Context, entry *models.FileEntry, newName, newPath string, newSize int64) (int, error) {
	if entry.IsFolder {
		return 0, fmt.Errorf("%w: folders have no versions", models.ErrInvalidOperation)
	}

	latest := 0
	current, err := m.versions.GetLatestVersion(ctx, entry.ID)
	switch {
	case err == nil:
		latest = current.VersionNumber
	case errors.Is(err, models.ErrNotFound):
	default:
		return 0, fmt.Errorf("failed to read latest version: %w", err)
	}

	version := models.NewFileVersion(entry.ID, newName, newPath, newSize, latest+1)
	if err := m.versions.Add(ctx, &version); err != nil {
		return 0, fmt.Errorf("failed to persist version %d: %w", version.VersionNumber, err)
	}

	if entry.Versions.Latest() == latest {
		if err := entry.Versions.Append(version); err != nil {
			return 0, err
		}
	} else if _, err := m.ListVersions(ctx, entry); err != nil {
		// The version is stored; only the in-memory copy is stale.
		m.logger.Warn("failed to reload version log",
			zap.String("file_id", entry.ID.Hex()), zap.Error(err))
	}

	m.logger.Debug("appended version",
		zap.String("file_id", entry.ID.Hex()),
		zap.Int("version", version.VersionNumber))
	return version.VersionNumber, nil
}

// ListVersions loads the version log of entry in ascending order and caches it
// on the entry.
func (m *VersionManager) ListVersions(ctx context.Context, entry *models.FileEntry) (models.VersionLog, error) {
	if entry.IsFolder {
		return nil, fmt.Errorf("%w: folders have no versions", models.ErrInvalidOperation)
	}
	stored, err := m.versions.GetByFileEntryID(ctx, entry.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load versions: %w", err)
	}
	log, err := models.NewVersionLog(stored)
	if err != nil {
		return nil, err
	}
	entry.Versions = log
	return log, nil
}

func (m *VersionManager) FindVersion(ctx context.Context, entry *models.FileEntry, versionNumber int) (models.FileVersion, error) {
	log, err := m.ListVersions(ctx, entry)
	if err != nil {
		return models.FileVersion{}, err
	}
	version, ok := log.Find(versionNumber)
	if !ok {
		return models.FileVersion{}, fmt.Errorf("%w: version %d of file %s", models.ErrNotFound, versionNumber, entry.ID.Hex())
	}
	return version, nil
}

// DeleteVersions drops the whole log of entry. Content is not touched.
func (m *VersionManager) DeleteVersions(ctx context.Context, entry *models.FileEntry) error {
	if err := m.versions.DeleteByFileEntryID(ctx, entry.ID); err != nil {
		return fmt.Errorf("failed to delete versions: %w", err)
	}
	entry.Versions = nil
	return nil
}
