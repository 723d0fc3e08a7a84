package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"cloudbox/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const objectPrefix = "objects/"

// newObjectName places a logical key under a unique prefix so that two
// uploads with the same key never share a physical object.
func newObjectName(key string) string {
	return objectPrefix + primitive.NewObjectID().Hex() + "/" + strings.TrimPrefix(key, "/")
}

// logicalKey recovers the key a pointer was created from.
func logicalKey(pointer string) string {
	rest, ok := strings.CutPrefix(pointer, objectPrefix)
	if !ok {
		return pointer
	}
	if _, key, found := strings.Cut(rest, "/"); found {
		return key
	}
	return rest
}

type memoryObject struct {
	data        []byte
	contentType string
}

// MemoryBlobStore keeps objects in a map. Used for local runs and tests.
type MemoryBlobStore struct {
	mu      sync.RWMutex
	objects map[string]memoryObject
}

func NewMemoryBlobStore() *MemoryBlobStore {
	return &MemoryBlobStore{objects: make(map[string]memoryObject)}
}

func (s *MemoryBlobStore) Upload(ctx context.Context, content io.Reader, size int64, contentType, key string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%w: %v", models.ErrUnavailable, err)
	}
	data, err := io.ReadAll(content)
	if err != nil {
		return "", fmt.Errorf("%w: reading upload: %v", models.ErrUnavailable, err)
	}
	if size >= 0 && int64(len(data)) != size {
		return "", fmt.Errorf("%w: expected %d bytes, read %d", models.ErrInvalidArgument, size, len(data))
	}

	name := newObjectName(key)
	s.mu.Lock()
	s.objects[name] = memoryObject{data: data, contentType: contentType}
	s.mu.Unlock()
	return name, nil
}

func (s *MemoryBlobStore) UploadVersion(ctx context.Context, version models.FileVersion) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%w: %v", models.ErrUnavailable, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	src, ok := s.objects[version.FilePath]
	if !ok {
		return "", fmt.Errorf("%w: content of version %d", models.ErrNotFound, version.VersionNumber)
	}
	name := newObjectName(logicalKey(version.FilePath))
	s.objects[name] = memoryObject{data: bytes.Clone(src.data), contentType: src.contentType}
	return name, nil
}

func (s *MemoryBlobStore) Delete(ctx context.Context, pointer string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", models.ErrUnavailable, err)
	}
	s.mu.Lock()
	delete(s.objects, pointer)
	s.mu.Unlock()
	return nil
}

// Get returns a copy of the object's bytes.
func (s *MemoryBlobStore) Get(pointer string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, ok := s.objects[pointer]
	if !ok {
		return nil, false
	}
	return bytes.Clone(obj.data), true
}

func (s *MemoryBlobStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}
