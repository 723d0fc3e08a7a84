package models

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type AccessLevel string

const (
	AccessLevelView AccessLevel = "view"
	AccessLevelEdit AccessLevel = "edit"
)

// ParseAccessLevel accepts the canonical names case-insensitively.
func ParseAccessLevel(s string) (AccessLevel, error) {
	switch AccessLevel(strings.ToLower(strings.TrimSpace(s))) {
	case AccessLevelView:
		return AccessLevelView, nil
	case AccessLevelEdit:
		return AccessLevelEdit, nil
	}
	return "", fmt.Errorf("%w: unknown access level %q", ErrInvalidArgument, s)
}

func (l AccessLevel) Valid() bool {
	return l == AccessLevelView || l == AccessLevelEdit
}

// SharedAccess grants a user access to an entry through a secret link.
type SharedAccess struct {
	ID          primitive.ObjectID `bson:"_id" json:"id"`
	FileEntryID primitive.ObjectID `bson:"file_entry_id" json:"file_entry_id"`
	UserID      primitive.ObjectID `bson:"user_id" json:"user_id"`
	AccessLevel AccessLevel        `bson:"access_level" json:"access_level"`
	ShareLink   string             `bson:"share_link" json:"share_link"`
	CreatedAt   time.Time          `bson:"created_at" json:"created_at"`
}

func NewSharedAccess(fileEntryID, userID primitive.ObjectID, level AccessLevel) (*SharedAccess, error) {
	if !level.Valid() {
		return nil, fmt.Errorf("%w: unknown access level %q", ErrInvalidArgument, level)
	}
	link, err := NewShareLink()
	if err != nil {
		return nil, err
	}
	return &SharedAccess{
		ID:          primitive.NewObjectID(),
		FileEntryID: fileEntryID,
		UserID:      userID,
		AccessLevel: level,
		ShareLink:   link,
		CreatedAt:   time.Now().UTC(),
	}, nil
}

// NewShareLink returns 128 random bits, hex encoded.
func NewShareLink() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate share link: %w", err)
	}
	return hex.EncodeToString(b), nil
}
