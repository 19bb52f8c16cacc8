package inmemdb

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/notas/core"
	"github.com/trezcool/notas/core/profile"
)

type profileRepository struct {
	db *DB
}

var _ profile.Repository = (*profileRepository)(nil)

func NewProfileRepository(db *DB) profile.Repository {
	return &profileRepository{db: db}
}

func (repo *profileRepository) EmailExists(_ context.Context, email string, excludedIDs ...string) (bool, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	excluded := make(map[string]struct{}, len(excludedIDs))
	for _, id := range excludedIDs {
		excluded[id] = struct{}{}
	}
	for _, p := range repo.db.profiles {
		if _, ok := excluded[p.ID]; !ok && p.Email == email {
			return true, nil
		}
	}
	return false, nil
}

func (repo *profileRepository) CreateProfile(_ context.Context, p profile.Profile) (profile.Profile, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	for _, other := range repo.db.profiles {
		if other.Email == p.Email {
			return profile.Profile{}, core.NewConflictError(errors.New("duplicate email"), "profiles_email_key")
		}
	}
	repo.db.profiles[p.ID] = p
	return p, nil
}

func (repo *profileRepository) GetProfileByID(_ context.Context, id string) (profile.Profile, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if p, ok := repo.db.profiles[id]; ok {
		return p, nil
	}
	return profile.Profile{}, profile.ErrNotFound
}

func (repo *profileRepository) GetProfileByEmail(_ context.Context, email string) (profile.Profile, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	for _, p := range repo.db.profiles {
		if p.Email == email {
			return p, nil
		}
	}
	return profile.Profile{}, profile.ErrNotFound
}

func (repo *profileRepository) GetProfilesByID(_ context.Context, ids ...string) ([]profile.Profile, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	profiles := make([]profile.Profile, 0, len(ids))
	for _, id := range ids {
		if p, ok := repo.db.profiles[id]; ok {
			profiles = append(profiles, p)
		}
	}
	return profiles, nil
}

func (repo *profileRepository) UpdateProfile(_ context.Context, p profile.Profile) (profile.Profile, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	orig, ok := repo.db.profiles[p.ID]
	if !ok {
		return profile.Profile{}, profile.ErrNotFound
	}
	orig.FullName = p.FullName
	orig.AvatarURL = p.AvatarURL
	if p.PasswordHash != nil {
		orig.PasswordHash = p.PasswordHash
	}
	orig.UpdatedAt = p.UpdatedAt
	repo.db.profiles[p.ID] = orig
	return orig, nil
}
