package models

import (
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type FileVersion struct {
	FileVersionID primitive.ObjectID `bson:"_id" json:"file_version_id"`
	FileEntryID   primitive.ObjectID `bson:"file_entry_id" json:"file_entry_id"`
	Name          string             `bson:"name" json:"name"`
	FilePath      string             `bson:"file_path" json:"-"`
	Size          int64              `bson:"size" json:"size"`
	VersionNumber int                `bson:"version_number" json:"version_number"`
	CreatedAt     time.Time          `bson:"created_at" json:"created_at"`
}

func NewFileVersion(fileEntryID primitive.ObjectID, name, filePath string, size int64, versionNumber int) FileVersion {
	return FileVersion{
		FileVersionID: primitive.NewObjectID(),
		FileEntryID:   fileEntryID,
		Name:          name,
		FilePath:      filePath,
		Size:          size,
		VersionNumber: versionNumber,
		CreatedAt:     time.Now().UTC(),
	}
}

// VersionLog is the append-only history of a file, kept in version order.
// Index i always holds version i+1.
type VersionLog []FileVersion

// Latest returns the highest version number, or 0 for an empty log.
func (l VersionLog) Latest() int {
	return len(l)
}

// Next is the number the next appended version must carry.
func (l VersionLog) Next() int {
	return l.Latest() + 1
}

func (l VersionLog) Find(versionNumber int) (FileVersion, bool) {
	if versionNumber < 1 || versionNumber > len(l) {
		return FileVersion{}, false
	}
	return l[versionNumber-1], true
}

// Append adds v to the log. v must carry exactly Next() as its number.
func (l *VersionLog) Append(v FileVersion) error {
	if v.VersionNumber != l.Next() {
		return fmt.Errorf("%w: version %d out of sequence, expected %d", ErrInvalidOperation, v.VersionNumber, l.Next())
	}
	*l = append(*l, v)
	return nil
}

// NewVersionLog builds a log from versions in any order. It fails if the
// numbers do not form the sequence 1..n.
func NewVersionLog(versions []FileVersion) (VersionLog, error) {
	log := make(VersionLog, len(versions))
	for _, v := range versions {
		if v.VersionNumber < 1 || v.VersionNumber > len(versions) {
			return nil, fmt.Errorf("%w: version %d outside 1..%d", ErrInvalidOperation, v.VersionNumber, len(versions))
		}
		if log[v.VersionNumber-1].VersionNumber != 0 {
			return nil, fmt.Errorf("%w: duplicate version %d", ErrInvalidOperation, v.VersionNumber)
		}
		log[v.VersionNumber-1] = v
	}
	return log, nil
}

// FileVersionDTO omits the internal content pointer.
type FileVersionDTO struct {
	FileVersionID primitive.ObjectID `json:"file_version_id"`
	FileEntryID   primitive.ObjectID `json:"file_entry_id"`
	Name          string             `json:"name"`
	Size          int64              `json:"size"`
	VersionNumber int                `json:"version_number"`
	CreatedAt     time.Time          `json:"created_at"`
}

func (v FileVersion) Projection() FileVersionDTO {
	return FileVersionDTO{
		FileVersionID: v.FileVersionID,
		FileEntryID:   v.FileEntryID,
		Name:          v.Name,
		Size:          v.Size,
		VersionNumber: v.VersionNumber,
		CreatedAt:     v.CreatedAt,
	}
}
