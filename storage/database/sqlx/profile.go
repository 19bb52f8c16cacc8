package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/notas/core"
	"github.com/trezcool/notas/core/profile"
	"github.com/trezcool/notas/storage/database"
)

const profileColumns = "id, full_name, email, role, avatar_url, password_hash, created_at, updated_at"

type profileRow struct {
	ID           string      `db:"id"`
	FullName     string      `db:"full_name"`
	Email        string      `db:"email"`
	Role         string      `db:"role"`
	AvatarURL    null.String `db:"avatar_url"`
	PasswordHash []byte      `db:"password_hash"`
	CreatedAt    time.Time   `db:"created_at"`
	UpdatedAt    time.Time   `db:"updated_at"`
}

func (r profileRow) toProfile() profile.Profile {
	return profile.Profile{
		ID:           r.ID,
		FullName:     r.FullName,
		Email:        r.Email,
		Role:         core.Role(r.Role),
		AvatarURL:    r.AvatarURL.String,
		PasswordHash: r.PasswordHash,
		CreatedAt:    r.CreatedAt.UTC(),
		UpdatedAt:    r.UpdatedAt.UTC(),
	}
}

type profileRepository struct {
	db *sqlx.DB
}

var _ profile.Repository = (*profileRepository)(nil)

func NewProfileRepository(db *sqlx.DB) profile.Repository {
	return &profileRepository{db: db}
}

func (repo *profileRepository) EmailExists(ctx context.Context, email string, excludedIDs ...string) (bool, error) {
	excludedIDs = onlyValidIDs(excludedIDs)
	q, args := "SELECT EXISTS (SELECT 1 FROM profiles WHERE email = ?)", []interface{}{email}
	if len(excludedIDs) > 0 {
		q, args = "SELECT EXISTS (SELECT 1 FROM profiles WHERE email = ? AND id NOT IN (?))", []interface{}{email, excludedIDs}
	}
	q, args, err := in(repo.db, q, args...)
	if err != nil {
		return false, errors.Wrap(err, "building query")
	}

	var found bool
	if err = repo.db.GetContext(ctx, &found, q, args...); err != nil {
		return false, database.MapError(err)
	}
	return found, nil
}

func (repo *profileRepository) CreateProfile(ctx context.Context, p profile.Profile) (profile.Profile, error) {
	row := profileRow{
		ID:           p.ID,
		FullName:     p.FullName,
		Email:        p.Email,
		Role:         string(p.Role),
		AvatarURL:    null.NewString(p.AvatarURL, p.AvatarURL != ""),
		PasswordHash: p.PasswordHash,
		CreatedAt:    p.CreatedAt,
		UpdatedAt:    p.UpdatedAt,
	}
	_, err := repo.db.NamedExecContext(ctx, `
		INSERT INTO profiles (`+profileColumns+`)
		VALUES (:id, :full_name, :email, :role, :avatar_url, :password_hash, :created_at, :updated_at)`,
		row,
	)
	if err != nil {
		return profile.Profile{}, database.MapError(err)
	}
	return row.toProfile(), nil
}

func (repo *profileRepository) get(ctx context.Context, where string, arg interface{}) (profile.Profile, error) {
	var row profileRow
	err := repo.db.GetContext(ctx, &row, "SELECT "+profileColumns+" FROM profiles WHERE "+where, arg)
	if err != nil {
		if err == sql.ErrNoRows {
			return profile.Profile{}, profile.ErrNotFound
		}
		return profile.Profile{}, database.MapError(err)
	}
	return row.toProfile(), nil
}

func (repo *profileRepository) GetProfileByID(ctx context.Context, id string) (profile.Profile, error) {
	if !validIDs(id) {
		return profile.Profile{}, profile.ErrNotFound
	}
	return repo.get(ctx, "id = $1", id)
}

func (repo *profileRepository) GetProfileByEmail(ctx context.Context, email string) (profile.Profile, error) {
	return repo.get(ctx, "email = $1", email)
}

func (repo *profileRepository) GetProfilesByID(ctx context.Context, ids ...string) ([]profile.Profile, error) {
	if ids = onlyValidIDs(ids); len(ids) == 0 {
		return []profile.Profile{}, nil
	}
	q, args, err := in(repo.db, "SELECT "+profileColumns+" FROM profiles WHERE id IN (?)", ids)
	if err != nil {
		return nil, errors.Wrap(err, "building query")
	}

	var rows []profileRow
	if err = repo.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, database.MapError(err)
	}
	profiles := make([]profile.Profile, len(rows))
	for i, r := range rows {
		profiles[i] = r.toProfile()
	}
	return profiles, nil
}

func (repo *profileRepository) UpdateProfile(ctx context.Context, p profile.Profile) (profile.Profile, error) {
	if !validIDs(p.ID) {
		return profile.Profile{}, profile.ErrNotFound
	}
	var row profileRow
	err := repo.db.GetContext(ctx, &row, `
		UPDATE profiles
		SET full_name = $2, avatar_url = $3, password_hash = COALESCE($4, password_hash), updated_at = $5
		WHERE id = $1
		RETURNING `+profileColumns,
		p.ID, p.FullName, null.NewString(p.AvatarURL, p.AvatarURL != ""), p.PasswordHash, p.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return profile.Profile{}, profile.ErrNotFound
		}
		return profile.Profile{}, database.MapError(err)
	}
	return row.toProfile(), nil
}
