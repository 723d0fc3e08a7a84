package services

import (
	"context"
	"errors"
	"strings"

	"cloudbox/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// PathResolver derives the folder path used to build storage keys. It is
// never consulted for access decisions.
type PathResolver struct {
	files  FileRepository
	logger *zap.Logger
}

func NewPathResolver(files FileRepository, logger *zap.Logger) *PathResolver {
	return &PathResolver{files: files, logger: logger}
}

// ResolveFolderPath walks from parentFolderID up to the root and returns the
// folder names joined with "/" in root-to-leaf order. A missing link, a
// non-folder or a repeated id ends the walk; the names collected so far
// still form the result.
func (r *PathResolver) ResolveFolderPath(ctx context.Context, parentFolderID *primitive.ObjectID) string {
	var names []string
	seen := make(map[primitive.ObjectID]struct{})

	for id := parentFolderID; id != nil; {
		if _, ok := seen[*id]; ok {
			r.logger.Warn("cycle in folder chain", zap.String("folder_id", id.Hex()))
			break
		}
		seen[*id] = struct{}{}

		folder, err := r.files.GetByID(ctx, *id)
		if err != nil {
			if !errors.Is(err, models.ErrNotFound) {
				r.logger.Warn("folder path resolution stopped", zap.String("folder_id", id.Hex()), zap.Error(err))
			}
			break
		}
		if !folder.IsFolder {
			break
		}
		names = append(names, folder.Name)
		id = folder.ParentFolderID
	}

	for i, j := 0, len(names)-1; i < j; i, j = i+1, j-1 {
		names[i], names[j] = names[j], names[i]
	}
	return strings.Join(names, "/")
}

// StorageKey joins a folder path and a file name.
func StorageKey(folderPath, filename string) string {
	if folderPath == "" {
		return filename
	}
	return folderPath + "/" + filename
}
