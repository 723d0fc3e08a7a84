package services

import (
	"context"
	"fmt"
	"time"

	"cloudbox/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// NotificationService records an in-app notification for every grant.
type NotificationService struct {
	notificationCollection *mongo.Collection
}

func NewNotificationService(db *mongo.Database) *NotificationService {
	return &NotificationService{
		notificationCollection: db.Collection("notification_logs"),
	}
}

// NewShareNotification builds the log entry for a grant on entry.
func NewShareNotification(entry *models.FileEntry, share *models.SharedAccess) models.NotificationLog {
	kind, itemType, label := "file_shared", "file", "File"
	if entry.IsFolder {
		kind, itemType, label = "folder_shared", "folder", "Folder"
	}
	return models.NotificationLog{
		ID:        primitive.NewObjectID(),
		UserID:    share.UserID,
		Type:      kind,
		Title:     fmt.Sprintf("%s shared with you: %s", label, entry.Name),
		Message:   fmt.Sprintf("A %s named %s was shared with you with %s access.", itemType, entry.Name, share.AccessLevel),
		ItemID:    entry.ID,
		ItemType:  itemType,
		CreatedAt: time.Now().UTC(),
	}
}

func (s *NotificationService) NotifyShared(ctx context.Context, entry *models.FileEntry, share *models.SharedAccess) error {
	notification := NewShareNotification(entry, share)
	if _, err := s.notificationCollection.InsertOne(ctx, notification); err != nil {
		return fmt.Errorf("%w: failed to log notification: %v", models.ErrUnavailable, err)
	}
	return nil
}

// ListForUser returns the newest notifications first.
func (s *NotificationService) ListForUser(ctx context.Context, userID primitive.ObjectID, limit int64) ([]models.NotificationLog, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}).SetLimit(limit)
	cursor, err := s.notificationCollection.Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to list notifications: %v", models.ErrUnavailable, err)
	}
	defer cursor.Close(ctx)

	var out []models.NotificationLog
	if err := cursor.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("%w: failed to decode notifications: %v", models.ErrUnavailable, err)
	}
	return out, nil
}
