package postgres_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/aussiebroadwan/wellmeet/internal/accounts/domain"
	"github.com/aussiebroadwan/wellmeet/internal/accounts/predicate"
	"github.com/aussiebroadwan/wellmeet/internal/accounts/store"
	"github.com/aussiebroadwan/wellmeet/internal/accounts/store/drivers/postgres"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// startPostgres runs a throwaway postgres container and returns its DSN.
func startPostgres(t *testing.T) string {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping postgres container test in -short mode")
	}
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "wellmeet",
			"POSTGRES_PASSWORD": "wellmeet",
			"POSTGRES_DB":       "wellmeet",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	return fmt.Sprintf("postgres://wellmeet:wellmeet@%s:%s/wellmeet?sslmode=disable", host, port.Port())
}

func TestPostgresStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	st, err := postgres.NewStore(ctx, startPostgres(t))
	require.NoError(t, err)
	defer st.Close()

	require.NoError(t, st.ApplyMigrations())
	require.NoError(t, st.ApplyMigrations())

	created := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	in := domain.User{
		Username:     "alice",
		Email:        "alice@example.com",
		PasswordHash: "$argon2id$hash",
		FirstName:    "Alice",
		LastName:     "Liddell",
		Role:         domain.RoleAdmin,
		CreatedAt:    created,
	}
	id, err := st.Users().CreateUser(ctx, in)
	require.NoError(t, err)

	got, err := st.Users().GetUserByID(ctx, id)
	require.NoError(t, err)
	in.ID = id
	require.Equal(t, in, got)

	dup := in
	dup.Email = "other@example.com"
	_, err = st.Users().CreateUser(ctx, dup)
	var conflict *store.ConflictError
	require.ErrorAs(t, err, &conflict)
	require.Equal(t, "username", conflict.Field)

	modified := created.Add(time.Minute)
	got.FirstName = "Al"
	got.ModifiedAt = &modified
	require.NoError(t, st.WithTx(ctx, func(tx store.Tx) error {
		return tx.Users().UpdateUser(ctx, got)
	}))

	role := domain.RoleAdmin
	users, total, err := st.Users().QueryPage(ctx, 1, 10, predicate.Build(domain.FilterSet{Role: &role, Name: "al"}))
	require.NoError(t, err)
	require.Equal(t, int64(1), total)
	require.Equal(t, "Al", users[0].FirstName)
	require.Equal(t, modified, *users[0].ModifiedAt)

	deleted, err := st.Users().DeleteUser(ctx, id)
	require.NoError(t, err)
	require.True(t, deleted)

	_, err = st.Users().GetUserByID(ctx, id)
	require.ErrorIs(t, err, store.ErrNotFound)
}
