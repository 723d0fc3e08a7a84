package repository

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"cloudbox/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MemoryStore implements every repository over plain maps. It backs local
// runs and tests and enforces the same uniqueness rules as the Mongo indexes.
type MemoryStore struct {
	mu       sync.RWMutex
	entries  map[primitive.ObjectID]models.FileEntry
	versions map[primitive.ObjectID][]models.FileVersion
	shares   map[primitive.ObjectID]models.SharedAccess
	users    map[primitive.ObjectID]models.User
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries:  make(map[primitive.ObjectID]models.FileEntry),
		versions: make(map[primitive.ObjectID][]models.FileVersion),
		shares:   make(map[primitive.ObjectID]models.SharedAccess),
		users:    make(map[primitive.ObjectID]models.User),
	}
}

// Files returns the FileRepository view of the store.
func (s *MemoryStore) Files() *MemoryFileRepository { return &MemoryFileRepository{s} }

func (s *MemoryStore) Versions() *MemoryVersionRepository { return &MemoryVersionRepository{s} }

func (s *MemoryStore) Shares() *MemorySharedAccessRepository { return &MemorySharedAccessRepository{s} }

func (s *MemoryStore) Users() *MemoryUserRepository { return &MemoryUserRepository{s} }

func checkCtx(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", models.ErrUnavailable, err)
	}
	return nil
}

// stored strips relations that live in other maps.
func stored(e *models.FileEntry) models.FileEntry {
	out := *e
	out.Children = nil
	out.SharedAccesses = nil
	out.Versions = nil
	return out
}

type MemoryFileRepository struct{ s *MemoryStore }

func (r *MemoryFileRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*models.FileEntry, error) {
	if err := checkCtx(ctx); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	e, ok := r.s.entries[id]
	if !ok {
		return nil, fmt.Errorf("%w: file entry %s", models.ErrNotFound, id.Hex())
	}
	return &e, nil
}

func (r *MemoryFileRepository) GetChildren(ctx context.Context, parentID *primitive.ObjectID, ownerID primitive.ObjectID) ([]models.FileEntry, error) {
	if err := checkCtx(ctx); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []models.FileEntry
	for _, e := range r.s.entries {
		if e.OwnerID == ownerID && e.IsChildOf(parentID) {
			out = append(out, e)
		}
	}
	sortEntries(out)
	return out, nil
}

func (r *MemoryFileRepository) GetByShareLink(ctx context.Context, shareLink string) (*models.FileEntry, error) {
	if err := checkCtx(ctx); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, sh := range r.s.shares {
		if sh.ShareLink == shareLink {
			if e, ok := r.s.entries[sh.FileEntryID]; ok {
				return &e, nil
			}
		}
	}
	return nil, fmt.Errorf("%w: share link", models.ErrNotFound)
}

func (r *MemoryFileRepository) Add(ctx context.Context, entry *models.FileEntry) error {
	if err := checkCtx(ctx); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.entries[entry.ID]; ok {
		return fmt.Errorf("%w: file entry %s already exists", models.ErrInvalidOperation, entry.ID.Hex())
	}
	r.s.entries[entry.ID] = stored(entry)
	return nil
}

func (r *MemoryFileRepository) Update(ctx context.Context, entry *models.FileEntry) error {
	if err := checkCtx(ctx); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.entries[entry.ID]; !ok {
		return fmt.Errorf("%w: file entry %s", models.ErrNotFound, entry.ID.Hex())
	}
	r.s.entries[entry.ID] = stored(entry)
	return nil
}

func (r *MemoryFileRepository) Delete(ctx context.Context, id primitive.ObjectID) error {
	if err := checkCtx(ctx); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.entries, id)
	return nil
}

func (r *MemoryFileRepository) GetVersions(ctx context.Context, fileEntryID primitive.ObjectID) ([]models.FileVersion, error) {
	return r.s.Versions().GetByFileEntryID(ctx, fileEntryID)
}

type MemoryVersionRepository struct{ s *MemoryStore }

func (r *MemoryVersionRepository) Add(ctx context.Context, version *models.FileVersion) error {
	if err := checkCtx(ctx); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, v := range r.s.versions[version.FileEntryID] {
		if v.VersionNumber == version.VersionNumber {
			return fmt.Errorf("%w: version %d of %s already exists", models.ErrInvalidOperation, version.VersionNumber, version.FileEntryID.Hex())
		}
	}
	r.s.versions[version.FileEntryID] = append(r.s.versions[version.FileEntryID], *version)
	return nil
}

func (r *MemoryVersionRepository) GetByFileEntryID(ctx context.Context, fileEntryID primitive.ObjectID) ([]models.FileVersion, error) {
	if err := checkCtx(ctx); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := append([]models.FileVersion(nil), r.s.versions[fileEntryID]...)
	sort.Slice(out, func(i, j int) bool { return out[i].VersionNumber < out[j].VersionNumber })
	return out, nil
}

func (r *MemoryVersionRepository) GetLatestVersion(ctx context.Context, fileEntryID primitive.ObjectID) (*models.FileVersion, error) {
	versions, err := r.GetByFileEntryID(ctx, fileEntryID)
	if err != nil {
		return nil, err
	}
	if len(versions) == 0 {
		return nil, fmt.Errorf("%w: no versions for %s", models.ErrNotFound, fileEntryID.Hex())
	}
	latest := versions[len(versions)-1]
	return &latest, nil
}

func (r *MemoryVersionRepository) DeleteByFileEntryID(ctx context.Context, fileEntryID primitive.ObjectID) error {
	if err := checkCtx(ctx); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.versions, fileEntryID)
	return nil
}

type MemorySharedAccessRepository struct{ s *MemoryStore }

func (r *MemorySharedAccessRepository) Add(ctx context.Context, share *models.SharedAccess) error {
	if err := checkCtx(ctx); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, sh := range r.s.shares {
		if sh.ShareLink == share.ShareLink {
			return fmt.Errorf("%w: share link collision", models.ErrInvalidOperation)
		}
	}
	r.s.shares[share.ID] = *share
	return nil
}

func (r *MemorySharedAccessRepository) GetByLink(ctx context.Context, shareLink string) (*models.SharedAccess, error) {
	if err := checkCtx(ctx); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, sh := range r.s.shares {
		if sh.ShareLink == shareLink {
			return &sh, nil
		}
	}
	return nil, fmt.Errorf("%w: share link", models.ErrNotFound)
}

func (r *MemorySharedAccessRepository) GetByFileEntryID(ctx context.Context, fileEntryID primitive.ObjectID) ([]models.SharedAccess, error) {
	if err := checkCtx(ctx); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []models.SharedAccess
	for _, sh := range r.s.shares {
		if sh.FileEntryID == fileEntryID {
			out = append(out, sh)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *MemorySharedAccessRepository) Delete(ctx context.Context, id primitive.ObjectID) error {
	if err := checkCtx(ctx); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.shares, id)
	return nil
}

func (r *MemorySharedAccessRepository) DeleteByFileEntryID(ctx context.Context, fileEntryID primitive.ObjectID) error {
	if err := checkCtx(ctx); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for id, sh := range r.s.shares {
		if sh.FileEntryID == fileEntryID {
			delete(r.s.shares, id)
		}
	}
	return nil
}

type MemoryUserRepository struct{ s *MemoryStore }

func (r *MemoryUserRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	if err := checkCtx(ctx); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, fmt.Errorf("%w: user %s", models.ErrNotFound, id.Hex())
	}
	return &u, nil
}

func (r *MemoryUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	if err := checkCtx(ctx); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, u := range r.s.users {
		if strings.EqualFold(u.Email, email) {
			return &u, nil
		}
	}
	return nil, fmt.Errorf("%w: user with email %s", models.ErrNotFound, email)
}

func (r *MemoryUserRepository) Add(ctx context.Context, user *models.User) error {
	if err := checkCtx(ctx); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		if strings.EqualFold(u.Email, user.Email) {
			return fmt.Errorf("%w: email already registered", models.ErrInvalidOperation)
		}
	}
	r.s.users[user.ID] = *user
	return nil
}

// sortEntries puts folders first, then orders by name.
func sortEntries(entries []models.FileEntry) {
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].IsFolder != entries[j].IsFolder {
			return entries[i].IsFolder
		}
		return entries[i].Name < entries[j].Name
	})
}
