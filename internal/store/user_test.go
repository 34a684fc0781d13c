package store

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/pulsegram/apiserver/types"
	"github.com/stretchr/testify/require"
)

var userColumns = []string{
	"id", "email", "username", "name", "password_hash", "date_of_birth",
	"gender", "bio", "location", "profile_pic", "created_at", "updated_at",
}

func TestUserRepository_GetByUsername(t *testing.T) {
	db, mock := newMock(t)
	dob := time.Date(1990, 1, 2, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(q("WHERE username = $1")).WithArgs("alice").
		WillReturnRows(sqlmock.NewRows(userColumns).
			AddRow(1, "a@x.io", "alice", "Alice", "hash", dob, "female", "", "", "", fixedTime, fixedTime))

	u, err := NewUserRepository(db).GetByUsername(context.Background(), "alice")
	require.NoError(t, err)
	require.Equal(t, 1, u.ID)
	require.Equal(t, types.GenderFemale, u.Gender)
	require.NotNil(t, u.DateOfBirth)
	require.True(t, dob.Equal(*u.DateOfBirth))
}

func TestUserRepository_GetByUsernameOrEmail_NotFound(t *testing.T) {
	db, mock := newMock(t)

	mock.ExpectQuery(q("WHERE username = $1 OR email = $1")).WithArgs("ghost").
		WillReturnError(sql.ErrNoRows)

	_, err := NewUserRepository(db).GetByUsernameOrEmail(context.Background(), "ghost")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestUserRepository_GetByID_NullOptionalFields(t *testing.T) {
	db, mock := newMock(t)

	mock.ExpectQuery(q("WHERE id = $1")).WithArgs(3).
		WillReturnRows(sqlmock.NewRows(userColumns).
			AddRow(3, "c@x.io", "carol", "Carol", "hash", nil, "", "", "", "", fixedTime, fixedTime))

	u, err := NewUserRepository(db).GetByID(context.Background(), 3)
	require.NoError(t, err)
	require.Nil(t, u.DateOfBirth)
	require.Equal(t, types.Gender(""), u.Gender)
}

func TestUserRepository_Create(t *testing.T) {
	db, mock := newMock(t)

	mock.ExpectQuery(q("INSERT INTO users")).
		WithArgs("a@x.io", "alice", "Alice", "hash", nil, nil, nil, "Riga", nil, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(42))

	u, err := NewUserRepository(db).Create(context.Background(), types.User{
		Email: "a@x.io", Username: "alice", Name: "Alice", PasswordHash: "hash", Location: "Riga",
	})
	require.NoError(t, err)
	require.Equal(t, 42, u.ID)
	require.False(t, u.CreatedAt.IsZero())
}

func TestUserRepository_Create_Duplicate(t *testing.T) {
	db, mock := newMock(t)

	mock.ExpectQuery(q("INSERT INTO users")).
		WillReturnError(&pq.Error{Code: pqUniqueViolation, Constraint: "users_username_key"})

	_, err := NewUserRepository(db).Create(context.Background(), types.User{Username: "alice"})
	require.ErrorIs(t, err, ErrConflict)
}

func TestUserRepository_Update(t *testing.T) {
	db, mock := newMock(t)

	mock.ExpectExec(q("UPDATE users")).
		WithArgs("alice2", "Alice", nil, "other", "hi", nil, nil, sqlmock.AnyArg(), 1).
		WillReturnResult(sqlmock.NewResult(0, 1))

	u, err := NewUserRepository(db).Update(context.Background(), types.User{
		ID: 1, Username: "alice2", Name: "Alice", Gender: types.GenderOther, Bio: "hi",
	})
	require.NoError(t, err)
	require.Equal(t, "alice2", u.Username)
}

func TestUserRepository_Update_NotFound(t *testing.T) {
	db, mock := newMock(t)

	mock.ExpectExec(q("UPDATE users")).WillReturnResult(sqlmock.NewResult(0, 0))

	_, err := NewUserRepository(db).Update(context.Background(), types.User{ID: 9})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestUserRepository_Update_UsernameTaken(t *testing.T) {
	db, mock := newMock(t)

	mock.ExpectExec(q("UPDATE users")).
		WillReturnError(&pq.Error{Code: pqUniqueViolation, Constraint: "users_username_key"})

	_, err := NewUserRepository(db).Update(context.Background(), types.User{ID: 1, Username: "bob"})
	require.ErrorIs(t, err, ErrConflict)
}
