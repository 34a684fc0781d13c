package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/pulsegram/apiserver/types"
)

const userSelect = `
		SELECT id, email, username, name, password_hash, date_of_birth,
			COALESCE(gender, ''), COALESCE(bio, ''), COALESCE(location, ''), COALESCE(profile_pic, ''),
			created_at, updated_at
		FROM users`

// UserRepository handles persistence for users.
type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) GetByID(ctx context.Context, id int) (types.User, error) {
	query := userSelect + `
		WHERE id = $1`
	return scanUser(r.db.QueryRowContext(ctx, query, id))
}

func (r *UserRepository) GetByUsername(ctx context.Context, username string) (types.User, error) {
	query := userSelect + `
		WHERE username = $1`
	return scanUser(r.db.QueryRowContext(ctx, query, username))
}

// GetByUsernameOrEmail finds the user whose username or email equals login.
// A username match wins when both exist.
func (r *UserRepository) GetByUsernameOrEmail(ctx context.Context, login string) (types.User, error) {
	query := userSelect + `
		WHERE username = $1 OR email = $1
		ORDER BY (username = $1) DESC
		LIMIT 1`
	return scanUser(r.db.QueryRowContext(ctx, query, login))
}

func (r *UserRepository) Create(ctx context.Context, user types.User) (types.User, error) {
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now

	const query = `
		INSERT INTO users (email, username, name, password_hash, date_of_birth, gender, bio, location, profile_pic, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		user.Email,
		user.Username,
		user.Name,
		user.PasswordHash,
		nullTime(user.DateOfBirth),
		nullString(string(user.Gender)),
		nullString(user.Bio),
		nullString(user.Location),
		nullString(user.ProfilePic),
		user.CreatedAt,
		user.UpdatedAt,
	).Scan(&user.ID); err != nil {
		return types.User{}, mapConstraintError(err)
	}
	return user, nil
}

// Update persists the profile fields of user. Email and password are not
// changed here.
func (r *UserRepository) Update(ctx context.Context, user types.User) (types.User, error) {
	user.UpdatedAt = time.Now()

	const query = `
		UPDATE users
		SET username = $1,
			name = $2,
			date_of_birth = $3,
			gender = $4,
			bio = $5,
			location = $6,
			profile_pic = $7,
			updated_at = $8
		WHERE id = $9`
	result, err := r.db.ExecContext(
		ctx,
		query,
		user.Username,
		user.Name,
		nullTime(user.DateOfBirth),
		nullString(string(user.Gender)),
		nullString(user.Bio),
		nullString(user.Location),
		nullString(user.ProfilePic),
		user.UpdatedAt,
		user.ID,
	)
	if err != nil {
		return types.User{}, mapConstraintError(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return types.User{}, err
	}
	if affected == 0 {
		return types.User{}, ErrNotFound
	}
	return user, nil
}

func scanUser(row rowScanner) (types.User, error) {
	var (
		user   types.User
		dob    sql.NullTime
		gender string
	)
	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.Username,
		&user.Name,
		&user.PasswordHash,
		&dob,
		&gender,
		&user.Bio,
		&user.Location,
		&user.ProfilePic,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.User{}, ErrNotFound
		}
		return types.User{}, err
	}
	if dob.Valid {
		t := dob.Time
		user.DateOfBirth = &t
	}
	user.Gender = types.Gender(gender)
	return user, nil
}
