package services

import (
	"context"
	"errors"
	"fmt"

	"cloudbox/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// AccessControl holds every capability decision the engine makes. The Can*
// predicates are pure over the entry and its loaded shares; mutating
// operations go through the repositories.
type AccessControl struct {
	shares SharedAccessRepository
	users  UserRepository
	logger *zap.Logger
}

func NewAccessControl(shares SharedAccessRepository, users UserRepository, logger *zap.Logger) *AccessControl {
	return &AccessControl{shares: shares, users: users, logger: logger}
}

// CanRead is true for the owner and for any grantee, whatever the level.
func (a *AccessControl) CanRead(entry *models.FileEntry, userID primitive.ObjectID) bool {
	if entry.OwnerID == userID {
		return true
	}
	for _, share := range entry.SharedAccesses {
		if share.FileEntryID == entry.ID && share.UserID == userID {
			return true
		}
	}
	return false
}

// CanReadViaLink requires a grant on entry issued to exactly this user under
// exactly this link.
func (a *AccessControl) CanReadViaLink(entry *models.FileEntry, userID primitive.ObjectID, shareLink string) bool {
	if shareLink == "" {
		return false
	}
	for _, share := range entry.SharedAccesses {
		if share.FileEntryID == entry.ID && share.UserID == userID && share.ShareLink == shareLink {
			return true
		}
	}
	return false
}

// CanWrite is ownership only. Edit grants do not delegate writes.
func (a *AccessControl) CanWrite(entry *models.FileEntry, userID primitive.ObjectID) bool {
	return entry.OwnerID == userID
}

// LoadShares attaches the entry's grants from the repository.
func (a *AccessControl) LoadShares(ctx context.Context, entry *models.FileEntry) error {
	shares, err := a.shares.GetByFileEntryID(ctx, entry.ID)
	if err != nil {
		return fmt.Errorf("failed to load shares: %w", err)
	}
	entry.SharedAccesses = shares
	return nil
}

// MintShare grants targetUserID access to entry under a fresh link. Sharing
// twice creates two independent grants.
func (a *AccessControl) MintShare(ctx context.Context, entry *models.FileEntry, ownerID, targetUserID primitive.ObjectID, level models.AccessLevel) (*models.SharedAccess, error) {
	if !a.CanWrite(entry, ownerID) {
		return nil, fmt.Errorf("%w: only the owner can share %s", models.ErrUnauthorized, entry.ID.Hex())
	}
	if !level.Valid() {
		return nil, fmt.Errorf("%w: unknown access level %q", models.ErrInvalidArgument, level)
	}
	if _, err := a.users.GetByID(ctx, targetUserID); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, fmt.Errorf("%w: target user %s", models.ErrNotFound, targetUserID.Hex())
		}
		return nil, fmt.Errorf("failed to look up target user: %w", err)
	}

	share, err := models.NewSharedAccess(entry.ID, targetUserID, level)
	if err != nil {
		return nil, err
	}
	if err := a.shares.Add(ctx, share); err != nil {
		return nil, fmt.Errorf("failed to persist share: %w", err)
	}
	entry.SharedAccesses = append(entry.SharedAccesses, *share)

	a.logger.Info("share granted",
		zap.String("file_id", entry.ID.Hex()),
		zap.String("user_id", targetUserID.Hex()),
		zap.String("access_level", string(level)))
	return share, nil
}

func (a *AccessControl) ListShares(ctx context.Context, entry *models.FileEntry, ownerID primitive.ObjectID) ([]models.SharedAccess, error) {
	if !a.CanWrite(entry, ownerID) {
		return nil, fmt.Errorf("%w: only the owner can list shares of %s", models.ErrUnauthorized, entry.ID.Hex())
	}
	if err := a.LoadShares(ctx, entry); err != nil {
		return nil, err
	}
	return entry.SharedAccesses, nil
}

// RevokeShare deletes one grant. The share must belong to entry.
func (a *AccessControl) RevokeShare(ctx context.Context, entry *models.FileEntry, ownerID, shareID primitive.ObjectID) error {
	if !a.CanWrite(entry, ownerID) {
		return fmt.Errorf("%w: only the owner can revoke shares of %s", models.ErrUnauthorized, entry.ID.Hex())
	}
	if err := a.LoadShares(ctx, entry); err != nil {
		return err
	}

	idx := -1
	for i, share := range entry.SharedAccesses {
		if share.ID == shareID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf("%w: share %s on %s", models.ErrNotFound, shareID.Hex(), entry.ID.Hex())
	}

	if err := a.shares.Delete(ctx, shareID); err != nil {
		return fmt.Errorf("failed to delete share: %w", err)
	}
	entry.SharedAccesses = append(entry.SharedAccesses[:idx], entry.SharedAccesses[idx+1:]...)
	return nil
}

// RevokeAll drops every grant on entry.
func (a *AccessControl) RevokeAll(ctx context.Context, entry *models.FileEntry) error {
	if err := a.shares.DeleteByFileEntryID(ctx, entry.ID); err != nil {
		return fmt.Errorf("failed to clear shares: %w", err)
	}
	entry.SharedAccesses = nil
	return nil
}
