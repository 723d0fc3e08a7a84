package repository

import (
	"context"
	"errors"
	"fmt"

	"cloudbox/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	filesCollection    = "files"
	versionsCollection = "file_versions"
	sharesCollection   = "shared_accesses"
	usersCollection    = "users"
)

// mongoErr translates driver errors into the models taxonomy.
func mongoErr(err error, what string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return fmt.Errorf("%w: %s", models.ErrNotFound, what)
	case mongo.IsDuplicateKeyError(err):
		return fmt.Errorf("%w: %s already exists", models.ErrInvalidOperation, what)
	default:
		return fmt.Errorf("%w: %s: %v", models.ErrUnavailable, what, err)
	}
}

// EnsureIndexes creates every index the repositories rely on, including the
// unique (file_entry_id, version_number) pair that backs version numbering.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	indexes := map[string][]mongo.IndexModel{
		filesCollection: {
			{Keys: bson.D{{Key: "owner_id", Value: 1}, {Key: "parent_folder_id", Value: 1}}},
		},
		versionsCollection: {
			{
				Keys:    bson.D{{Key: "file_entry_id", Value: 1}, {Key: "version_number", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
		},
		sharesCollection: {
			{Keys: bson.D{{Key: "share_link", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "file_entry_id", Value: 1}}},
		},
		usersCollection: {
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		"notification_logs": {
			{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}}},
		},
	}

	for name, idx := range indexes {
		if _, err := db.Collection(name).Indexes().CreateMany(ctx, idx); err != nil {
			return fmt.Errorf("failed to create indexes on %s: %w", name, err)
		}
	}
	return nil
}

type MongoFileRepository struct {
	fileCollection  *mongo.Collection
	shareCollection *mongo.Collection
	versions        *MongoVersionRepository
}

func NewMongoFileRepository(db *mongo.Database) *MongoFileRepository {
	return &MongoFileRepository{
		fileCollection:  db.Collection(filesCollection),
		shareCollection: db.Collection(sharesCollection),
		versions:        NewMongoVersionRepository(db),
	}
}

func (r *MongoFileRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*models.FileEntry, error) {
	var entry models.FileEntry
	if err := r.fileCollection.FindOne(ctx, bson.M{"_id": id}).Decode(&entry); err != nil {
		return nil, mongoErr(err, "file entry "+id.Hex())
	}
	return &entry, nil
}

func (r *MongoFileRepository) GetChildren(ctx context.Context, parentID *primitive.ObjectID, ownerID primitive.ObjectID) ([]models.FileEntry, error) {
	filter := bson.M{"owner_id": ownerID, "parent_folder_id": nil}
	if parentID != nil {
		filter["parent_folder_id"] = *parentID
	}
	opts := options.Find().SetSort(bson.D{{Key: "is_folder", Value: -1}, {Key: "name", Value: 1}})

	cursor, err := r.fileCollection.Find(ctx, filter, opts)
	if err != nil {
		return nil, mongoErr(err, "children")
	}
	defer cursor.Close(ctx)

	var children []models.FileEntry
	if err := cursor.All(ctx, &children); err != nil {
		return nil, mongoErr(err, "children")
	}
	return children, nil
}

func (r *MongoFileRepository) GetByShareLink(ctx context.Context, shareLink string) (*models.FileEntry, error) {
	var share models.SharedAccess
	if err := r.shareCollection.FindOne(ctx, bson.M{"share_link": shareLink}).Decode(&share); err != nil {
		return nil, mongoErr(err, "share link")
	}
	return r.GetByID(ctx, share.FileEntryID)
}

func (r *MongoFileRepository) Add(ctx context.Context, entry *models.FileEntry) error {
	_, err := r.fileCollection.InsertOne(ctx, entry)
	return mongoErr(err, "file entry "+entry.ID.Hex())
}

func (r *MongoFileRepository) Update(ctx context.Context, entry *models.FileEntry) error {
	update := bson.M{"$set": bson.M{
		"name":         entry.Name,
		"path":         entry.Path,
		"content_type": entry.ContentType,
		"size":         entry.Size,
		"updated_at":   entry.UpdatedAt,
	}}
	result, err := r.fileCollection.UpdateOne(ctx, bson.M{"_id": entry.ID}, update)
	if err != nil {
		return mongoErr(err, "file entry "+entry.ID.Hex())
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("%w: file entry %s", models.ErrNotFound, entry.ID.Hex())
	}
	return nil
}

func (r *MongoFileRepository) Delete(ctx context.Context, id primitive.ObjectID) error {
	_, err := r.fileCollection.DeleteOne(ctx, bson.M{"_id": id})
	return mongoErr(err, "file entry "+id.Hex())
}

func (r *MongoFileRepository) GetVersions(ctx context.Context, fileEntryID primitive.ObjectID) ([]models.FileVersion, error) {
	return r.versions.GetByFileEntryID(ctx, fileEntryID)
}

type MongoVersionRepository struct {
	versionCollection *mongo.Collection
}

func NewMongoVersionRepository(db *mongo.Database) *MongoVersionRepository {
	return &MongoVersionRepository{versionCollection: db.Collection(versionsCollection)}
}

func (r *MongoVersionRepository) Add(ctx context.Context, version *models.FileVersion) error {
	_, err := r.versionCollection.InsertOne(ctx, version)
	return mongoErr(err, fmt.Sprintf("version %d of %s", version.VersionNumber, version.FileEntryID.Hex()))
}

func (r *MongoVersionRepository) GetByFileEntryID(ctx context.Context, fileEntryID primitive.ObjectID) ([]models.FileVersion, error) {
	opts := options.Find().SetSort(bson.D{{Key: "version_number", Value: 1}})
	cursor, err := r.versionCollection.Find(ctx, bson.M{"file_entry_id": fileEntryID}, opts)
	if err != nil {
		return nil, mongoErr(err, "versions")
	}
	defer cursor.Close(ctx)

	var versions []models.FileVersion
	if err := cursor.All(ctx, &versions); err != nil {
		return nil, mongoErr(err, "versions")
	}
	return versions, nil
}

func (r *MongoVersionRepository) GetLatestVersion(ctx context.Context, fileEntryID primitive.ObjectID) (*models.FileVersion, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "version_number", Value: -1}})
	var version models.FileVersion
	if err := r.versionCollection.FindOne(ctx, bson.M{"file_entry_id": fileEntryID}, opts).Decode(&version); err != nil {
		return nil, mongoErr(err, "latest version of "+fileEntryID.Hex())
	}
	return &version, nil
}

func (r *MongoVersionRepository) DeleteByFileEntryID(ctx context.Context, fileEntryID primitive.ObjectID) error {
	_, err := r.versionCollection.DeleteMany(ctx, bson.M{"file_entry_id": fileEntryID})
	return mongoErr(err, "versions")
}

type MongoSharedAccessRepository struct {
	shareCollection *mongo.Collection
}

func NewMongoSharedAccessRepository(db *mongo.Database) *MongoSharedAccessRepository {
	return &MongoSharedAccessRepository{shareCollection: db.Collection(sharesCollection)}
}

func (r *MongoSharedAccessRepository) Add(ctx context.Context, share *models.SharedAccess) error {
	_, err := r.shareCollection.InsertOne(ctx, share)
	return mongoErr(err, "share")
}

func (r *MongoSharedAccessRepository) GetByLink(ctx context.Context, shareLink string) (*models.SharedAccess, error) {
	var share models.SharedAccess
	if err := r.shareCollection.FindOne(ctx, bson.M{"share_link": shareLink}).Decode(&share); err != nil {
		return nil, mongoErr(err, "share link")
	}
	return &share, nil
}

func (r *MongoSharedAccessRepository) GetByFileEntryID(ctx context.Context, fileEntryID primitive.ObjectID) ([]models.SharedAccess, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	cursor, err := r.shareCollection.Find(ctx, bson.M{"file_entry_id": fileEntryID}, opts)
	if err != nil {
		return nil, mongoErr(err, "shares")
	}
	defer cursor.Close(ctx)

	var shares []models.SharedAccess
	if err := cursor.All(ctx, &shares); err != nil {
		return nil, mongoErr(err, "shares")
	}
	return shares, nil
}

func (r *MongoSharedAccessRepository) Delete(ctx context.Context, id primitive.ObjectID) error {
	_, err := r.shareCollection.DeleteOne(ctx, bson.M{"_id": id})
	return mongoErr(err, "share "+id.Hex())
}

func (r *MongoSharedAccessRepository) DeleteByFileEntryID(ctx context.Context, fileEntryID primitive.ObjectID) error {
	_, err := r.shareCollection.DeleteMany(ctx, bson.M{"file_entry_id": fileEntryID})
	return mongoErr(err, "shares")
}

type MongoUserRepository struct {
	userCollection *mongo.Collection
}

func NewMongoUserRepository(db *mongo.Database) *MongoUserRepository {
	return &MongoUserRepository{userCollection: db.Collection(usersCollection)}
}

func (r *MongoUserRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	var user models.User
	if err := r.userCollection.FindOne(ctx, bson.M{"_id": id}).Decode(&user); err != nil {
		return nil, mongoErr(err, "user "+id.Hex())
	}
	return &user, nil
}

func (r *MongoUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := r.userCollection.FindOne(ctx, bson.M{"email": email}).Decode(&user); err != nil {
		return nil, mongoErr(err, "user with email "+email)
	}
	return &user, nil
}

func (r *MongoUserRepository) Add(ctx context.Context, user *models.User) error {
	_, err := r.userCollection.InsertOne(ctx, user)
	return mongoErr(err, "user "+user.Email)
}
