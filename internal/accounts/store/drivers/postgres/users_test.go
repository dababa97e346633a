package postgres

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/aussiebroadwan/wellmeet/internal/accounts/domain"
	"github.com/aussiebroadwan/wellmeet/internal/accounts/predicate"
	"github.com/aussiebroadwan/wellmeet/internal/accounts/store"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
)

var created = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, mock.ExpectationsWereMet())
		_ = db.Close()
	})
	return db, mock
}

func userRow() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "username", "email", "password_hash", "first_name", "last_name", "role", "created_at", "modified_at",
	})
}

func sampleUser() domain.User {
	return domain.User{
		Username:     "alice",
		Email:        "alice@example.com",
		PasswordHash: "$argon2id$hash",
		FirstName:    "Alice",
		LastName:     "Liddell",
		Role:         domain.RoleUser,
		CreatedAt:    created,
	}
}

func TestCreateUserReturnsID(t *testing.T) {
	db, mock := newMock(t)
	u := sampleUser()

	mock.ExpectQuery(`(?s)^INSERT INTO users .* RETURNING id$`).
		WithArgs(u.Username, u.Email, u.PasswordHash, u.FirstName, u.LastName, "User", created, nil).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(11)))

	id, err := newUsersRepo(db).CreateUser(context.Background(), u)
	require.NoError(t, err)
	require.Equal(t, int64(11), id)
}

func TestCreateUserMapsUniqueViolation(t *testing.T) {
	cases := map[string]string{
		"users_username_key": "username",
		"users_email_key":    "email",
		"some_other_index":   "record",
	}
	for constraint, field := range cases {
		t.Run(constraint, func(t *testing.T) {
			db, mock := newMock(t)
			mock.ExpectQuery(`(?s)^INSERT INTO users`).
				WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: constraint})

			_, err := newUsersRepo(db).CreateUser(context.Background(), sampleUser())
			require.ErrorIs(t, err, store.ErrAlreadyExists)

			var conflict *store.ConflictError
			require.True(t, errors.As(err, &conflict))
			require.Equal(t, field, conflict.Field)
		})
	}
}

func TestCreateUserPassesOtherErrors(t *testing.T) {
	db, mock := newMock(t)
	fk := &pgconn.PgError{Code: "23503", ConstraintName: "users_fk"}
	mock.ExpectQuery(`(?s)^INSERT INTO users`).WillReturnError(fk)

	_, err := newUsersRepo(db).CreateUser(context.Background(), sampleUser())
	require.ErrorIs(t, err, fk)
	require.NotErrorIs(t, err, store.ErrAlreadyExists)
}

func TestGetUserByID(t *testing.T) {
	db, mock := newMock(t)
	modified := created.Add(time.Hour)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT `+userColumns+` FROM users WHERE id = $1`)).
		WithArgs(int64(3)).
		WillReturnRows(userRow().AddRow(int64(3), "alice", "alice@example.com", "h", "Alice", "Liddell", "Admin", created, modified))

	u, err := newUsersRepo(db).GetUserByID(context.Background(), 3)
	require.NoError(t, err)
	require.Equal(t, int64(3), u.ID)
	require.Equal(t, domain.RoleAdmin, u.Role)
	require.Equal(t, created, u.CreatedAt)
	require.NotNil(t, u.ModifiedAt)
	require.Equal(t, modified, *u.ModifiedAt)
}

func TestGetUserNotFound(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta(`FROM users WHERE username = $1`)).
		WithArgs("ghost").
		WillReturnRows(userRow())

	_, err := newUsersRepo(db).GetUserByUsername(context.Background(), "ghost")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestUpdateUser(t *testing.T) {
	modified := created.Add(time.Minute)
	u := sampleUser()
	u.ID = 5
	u.ModifiedAt = &modified

	t.Run("updated", func(t *testing.T) {
		db, mock := newMock(t)
		mock.ExpectExec(`(?s)^UPDATE users.*WHERE id = \$8$`).
			WithArgs(u.Username, u.Email, u.PasswordHash, u.FirstName, u.LastName, "User", modified, int64(5)).
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, newUsersRepo(db).UpdateUser(context.Background(), u))
	})

	t.Run("missing row", func(t *testing.T) {
		db, mock := newMock(t)
		mock.ExpectExec(`(?s)^UPDATE users`).WillReturnResult(sqlmock.NewResult(0, 0))

		require.ErrorIs(t, newUsersRepo(db).UpdateUser(context.Background(), u), store.ErrNotFound)
	})

	t.Run("conflict", func(t *testing.T) {
		db, mock := newMock(t)
		mock.ExpectExec(`(?s)^UPDATE users`).
			WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "users_email_key"})

		err := newUsersRepo(db).UpdateUser(context.Background(), u)
		var conflict *store.ConflictError
		require.ErrorAs(t, err, &conflict)
		require.Equal(t, "email", conflict.Field)
	})
}

func TestDeleteUser(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM users WHERE id = $1`)).
		WithArgs(int64(4)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM users WHERE id = $1`)).
		WithArgs(int64(4)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	repo := newUsersRepo(db)
	deleted, err := repo.DeleteUser(context.Background(), 4)
	require.NoError(t, err)
	require.True(t, deleted)

	deleted, err = repo.DeleteUser(context.Background(), 4)
	require.NoError(t, err)
	require.False(t, deleted)
}

func TestQueryPageNumbersPlaceholders(t *testing.T) {
	db, mock := newMock(t)
	role := domain.RoleAdmin
	p := predicate.Build(domain.FilterSet{Role: &role, Username: "Al"})

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM users WHERE role = $1 AND LOWER(username) LIKE $2`)).
		WithArgs("Admin", "%al%").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(7)))
	mock.ExpectQuery(regexp.QuoteMeta(`ORDER BY id LIMIT $3 OFFSET $4`)).
		WithArgs("Admin", "%al%", 3, 3).
		WillReturnRows(userRow().
			AddRow(int64(4), "alan", "alan@example.com", "h", "Alan", "T", "Admin", created, nil).
			AddRow(int64(5), "alba", "alba@example.com", "h", "Alba", "T", "Admin", created, nil))

	users, total, err := newUsersRepo(db).QueryPage(context.Background(), 2, 3, p)
	require.NoError(t, err)
	require.Equal(t, int64(7), total)
	require.Len(t, users, 2)
	require.Equal(t, "alan", users[0].Username)
	require.Nil(t, users[0].ModifiedAt)
}

func TestQueryPageSkipsRowsWhenNothingMatches(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM users`)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(0)))

	users, total, err := newUsersRepo(db).QueryPage(context.Background(), 1, 10, predicate.Predicate{})
	require.NoError(t, err)
	require.Zero(t, total)
	require.NotNil(t, users)
	require.Empty(t, users)
}

func TestWithTx(t *testing.T) {
	t.Run("commits", func(t *testing.T) {
		db, mock := newMock(t)
		mock.ExpectBegin()
		mock.ExpectExec(`DELETE FROM users`).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		st := &Store{db: db}
		err := st.WithTx(context.Background(), func(tx store.Tx) error {
			_, err := tx.Users().DeleteUser(context.Background(), 1)
			return err
		})
		require.NoError(t, err)
	})

	t.Run("rolls back on error", func(t *testing.T) {
		db, mock := newMock(t)
		mock.ExpectBegin()
		mock.ExpectRollback()

		boom := errors.New("boom")
		st := &Store{db: db}
		err := st.WithTx(context.Background(), func(store.Tx) error { return boom })
		require.ErrorIs(t, err, boom)
	})
}
