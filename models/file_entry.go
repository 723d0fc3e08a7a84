package models

import (
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// FolderContentType is the content type every folder carries.
const FolderContentType = "folder"

// FileEntry is a node (file or folder) in a user's tree.
type FileEntry struct {
	ID             primitive.ObjectID  `bson:"_id" json:"id"`
	Name           string              `bson:"name" json:"name"`
	IsFolder       bool                `bson:"is_folder" json:"is_folder"`
	Path           string              `bson:"path,omitempty" json:"path,omitempty"` // content pointer, empty for folders
	ContentType    string              `bson:"content_type" json:"content_type"`
	Size           int64               `bson:"size" json:"size"`
	OwnerID        primitive.ObjectID  `bson:"owner_id" json:"owner_id"`
	ParentFolderID *primitive.ObjectID `bson:"parent_folder_id,omitempty" json:"parent_folder_id,omitempty"`
	CreatedAt      time.Time           `bson:"created_at" json:"created_at"`
	UpdatedAt      time.Time           `bson:"updated_at" json:"updated_at"`

	// Loaded from their own collections, never embedded in the entry document.
	Children       []FileEntry    `bson:"-" json:"-"`
	SharedAccesses []SharedAccess `bson:"-" json:"-"`
	Versions       VersionLog     `bson:"-" json:"-"`
}

// NewFileEntry builds a file or folder node. Folders ignore path, contentType
// and size. Files start with version 1.
func NewFileEntry(name, path, contentType string, size int64, ownerID primitive.ObjectID, parentFolderID *primitive.ObjectID, isFolder bool) (*FileEntry, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("%w: name cannot be empty", ErrInvalidArgument)
	}
	if size < 0 {
		return nil, fmt.Errorf("%w: size cannot be negative", ErrInvalidArgument)
	}

	now := time.Now().UTC()
	entry := &FileEntry{
		ID:             primitive.NewObjectID(),
		Name:           name,
		IsFolder:       isFolder,
		Path:           path,
		ContentType:    contentType,
		Size:           size,
		OwnerID:        ownerID,
		ParentFolderID: parentFolderID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if isFolder {
		entry.Path = ""
		entry.ContentType = FolderContentType
		entry.Size = 0
		return entry, nil
	}

	if err := entry.Versions.Append(NewFileVersion(entry.ID, name, path, size, 1)); err != nil {
		return nil, err
	}
	return entry, nil
}

// ApplyUpload overwrites the live metadata with a newly uploaded content.
func (e *FileEntry) ApplyUpload(name, path, contentType string, size int64) error {
	if e.IsFolder {
		return fmt.Errorf("%w: cannot upload content into a folder", ErrInvalidOperation)
	}
	e.Name = name
	e.Path = path
	e.ContentType = contentType
	e.Size = size
	e.UpdatedAt = time.Now().UTC()
	return nil
}

// RestoreVersion rolls the live metadata back to a historical version. The
// version log is left untouched.
func (e *FileEntry) RestoreVersion(versionNumber int, newPath, newContentType string, newSize int64) error {
	if e.IsFolder {
		return fmt.Errorf("%w: cannot restore a folder", ErrInvalidOperation)
	}
	version, ok := e.Versions.Find(versionNumber)
	if !ok {
		return fmt.Errorf("%w: version %d", ErrNotFound, versionNumber)
	}

	e.Name = version.Name
	e.Path = newPath
	e.ContentType = newContentType
	e.Size = newSize
	e.UpdatedAt = time.Now().UTC()
	return nil
}

// IsChildOf reports whether the entry sits directly under parentID (nil for root).
func (e *FileEntry) IsChildOf(parentID *primitive.ObjectID) bool {
	if parentID == nil || e.ParentFolderID == nil {
		return parentID == nil && e.ParentFolderID == nil
	}
	return *e.ParentFolderID == *parentID
}

// FileDTO is the caller-facing projection of a FileEntry.
type FileDTO struct {
	ID             primitive.ObjectID  `json:"id"`
	Name           string              `json:"name"`
	Path           string              `json:"path,omitempty"`
	ContentType    string              `json:"content_type"`
	Size           int64               `json:"size"`
	ParentFolderID *primitive.ObjectID `json:"parent_folder_id,omitempty"`
	IsFolder       bool                `json:"is_folder"`
	CreatedAt      time.Time           `json:"created_at"`
	UpdatedAt      time.Time           `json:"updated_at"`
	Children       []FileDTO           `json:"children,omitempty"`
}

func (e *FileEntry) Projection() FileDTO {
	dto := FileDTO{
		ID:             e.ID,
		Name:           e.Name,
		Path:           e.Path,
		ContentType:    e.ContentType,
		Size:           e.Size,
		ParentFolderID: e.ParentFolderID,
		IsFolder:       e.IsFolder,
		CreatedAt:      e.CreatedAt,
		UpdatedAt:      e.UpdatedAt,
	}
	for i := range e.Children {
		dto.Children = append(dto.Children, e.Children[i].Projection())
	}
	return dto
}
