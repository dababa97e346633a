package service_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aussiebroadwan/wellmeet/internal/accounts/domain"
	"github.com/aussiebroadwan/wellmeet/internal/accounts/predicate"
	"github.com/aussiebroadwan/wellmeet/internal/accounts/service"
	"github.com/aussiebroadwan/wellmeet/internal/accounts/store/drivers/sqlite"
	"github.com/aussiebroadwan/wellmeet/pkg/cryptox"
	"github.com/aussiebroadwan/wellmeet/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)

type fixture struct {
	svc    *service.UserService
	store  *sqlite.Store
	tokens *jwtx.HS256Issuer
	logs   *bytes.Buffer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	st, err := sqlite.NewStore(filepath.Join(t.TempDir(), "accounts.db"))
	require.NoError(t, err)
	require.NoError(t, st.ApplyMigrations())
	t.Cleanup(func() { _ = st.Close() })

	clock := func() time.Time { return now }
	tokens, err := jwtx.NewHS256Issuer([]byte("0123456789abcdef0123456789abcdef"), jwtx.VerifyOptions{
		Issuer:   "wellmeet",
		Audience: []string{"wellmeet-api"},
	}, 0, clock)
	require.NoError(t, err)

	logs := &bytes.Buffer{}
	return &fixture{
		svc: &service.UserService{
			Store:  st,
			Hasher: cryptox.NewArgon2Hasher(cryptox.Argon2Params{Memory: 1024, Iterations: 1}, "pepper"),
			Tokens: tokens,
			Logger: slog.New(slog.NewTextHandler(logs, &slog.HandlerOptions{Level: slog.LevelDebug})),
			Now:    clock,
		},
		store:  st,
		tokens: tokens,
		logs:   logs,
	}
}

func (f *fixture) register(t *testing.T, username string, role domain.Role) domain.UserView {
	t.Helper()
	u, err := f.svc.Register(context.Background(), &domain.RegisterInput{
		Username:  username,
		Email:     username + "@example.com",
		Password:  "P@ss-" + username,
		FirstName: "First",
		LastName:  "Last",
		Role:      role,
	})
	require.NoError(t, err)
	return u
}

func requireKind(t *testing.T, err error, kind service.Kind) {
	t.Helper()
	require.Error(t, err)
	require.Equal(t, kind, service.KindOf(err), "error: %v", err)
}

func TestRegisterStoresOnlyTheDigest(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	view, err := f.svc.Register(ctx, &domain.RegisterInput{
		Username:  "alice",
		Email:     "Alice@X.com",
		Password:  "P@ss1",
		FirstName: " Alice ",
		LastName:  "Liddell",
	})
	require.NoError(t, err)
	require.Positive(t, view.ID)
	require.Equal(t, "alice", view.Username)
	require.Equal(t, "alice@x.com", view.Email)
	require.Equal(t, "Alice", view.FirstName)
	require.Equal(t, domain.RoleUser, view.Role)
	require.Equal(t, now, view.CreatedAt)
	require.Nil(t, view.ModifiedAt)

	stored, err := f.store.Users().GetUserByID(ctx, view.ID)
	require.NoError(t, err)
	require.NotEqual(t, "P@ss1", stored.PasswordHash)
	require.True(t, f.svc.Hasher.Verify("P@ss1", stored.PasswordHash))
	require.False(t, f.svc.Hasher.Verify("P@ss2", stored.PasswordHash))
}

func TestRegisterDuplicateLeavesStorageUnchanged(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, "alice", domain.RoleUser)

	t.Run("username", func(t *testing.T) {
		_, err := f.svc.Register(ctx, &domain.RegisterInput{Username: "alice", Email: "other@example.com", Password: "x"})
		requireKind(t, err, service.KindAlreadyExists)
		require.ErrorIs(t, err, service.ErrAlreadyExists)
		require.Equal(t, "Username 'alice' already exists.", service.MessageOf(err))
	})

	t.Run("email differs only in case", func(t *testing.T) {
		_, err := f.svc.Register(ctx, &domain.RegisterInput{Username: "bob", Email: "ALICE@example.com", Password: "x"})
		requireKind(t, err, service.KindAlreadyExists)
		require.Equal(t, "Email 'alice@example.com' already exists.", service.MessageOf(err))
	})

	page, err := f.svc.List(ctx, 1, 10, domain.FilterSet{})
	require.NoError(t, err)
	require.Equal(t, int64(1), page.TotalRecords)
}

func TestRegisterRejectsInvalidInput(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Register(ctx, nil)
	requireKind(t, err, service.KindInvalidArgument)

	cases := map[string]domain.RegisterInput{
		"empty username":       {Email: "a@x.com", Password: "x"},
		"blank username":       {Username: "   ", Email: "a@x.com", Password: "x"},
		"username with space":  {Username: "al ice", Email: "a@x.com", Password: "x"},
		"empty email":          {Username: "alice", Password: "x"},
		"malformed email":      {Username: "alice", Email: "not-an-email", Password: "x"},
		"display name email":   {Username: "alice", Email: "Alice <a@x.com>", Password: "x"},
		"empty password":       {Username: "alice", Email: "a@x.com"},
		"unknown role":         {Username: "alice", Email: "a@x.com", Password: "x", Role: "Root"},
		"lowercase role value": {Username: "alice", Email: "a@x.com", Password: "x", Role: "admin"},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := f.svc.Register(ctx, &in)
			requireKind(t, err, service.KindInvalidArgument)
		})
	}

	page, err := f.svc.List(ctx, 1, 10, domain.FilterSet{})
	require.NoError(t, err)
	require.Zero(t, page.TotalRecords)
}

func TestConcurrentRegistrationCreatesOneUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	const workers = 8
	var (
		wg   sync.WaitGroup
		errs = make([]error, workers)
	)
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = f.svc.Register(ctx, &domain.RegisterInput{
				Username: "racer",
				Email:    fmt.Sprintf("racer%d@example.com", i),
				Password: "pw",
			})
		}()
	}
	wg.Wait()

	var ok int
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		requireKind(t, err, service.KindAlreadyExists)
	}
	require.Equal(t, 1, ok)
}

func TestLoginIssuesTokenForStoredUser(t *testing.T) {
	f := newFixture(t)
	u := f.register(t, "alice", domain.RoleAdmin)

	tv, err := f.svc.Login(context.Background(), domain.LoginInput{Username: "alice", Password: "P@ss-alice"})
	require.NoError(t, err)
	require.Equal(t, "alice", tv.Username)
	require.Equal(t, domain.RoleAdmin, tv.Role)
	require.Equal(t, now.Add(4*time.Hour), tv.ExpiresAt)

	claims, err := f.tokens.Verify(tv.Token)
	require.NoError(t, err)
	id, err := claims.UserID()
	require.NoError(t, err)
	require.Equal(t, u.ID, id)
	require.Equal(t, "alice", claims.Username)
	require.Equal(t, "alice@example.com", claims.Email)
	require.Equal(t, "Admin", claims.Role)
	require.Equal(t, claims.IssuedAt.Add(4*time.Hour), claims.ExpiresAt.Time)
}

func TestLoginFailuresAreIndistinguishable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, "alice", domain.RoleUser)

	_, wrongPassword := f.svc.Login(ctx, domain.LoginInput{Username: "alice", Password: "wrong"})
	_, unknownUser := f.svc.Login(ctx, domain.LoginInput{Username: "nobody", Password: "P@ss-alice"})
	_, wrongCase := f.svc.Login(ctx, domain.LoginInput{Username: "ALICE", Password: "P@ss-alice"})
	_, empty := f.svc.Login(ctx, domain.LoginInput{})

	for _, err := range []error{wrongPassword, unknownUser, wrongCase, empty} {
		requireKind(t, err, service.KindUnauthorized)
		require.ErrorIs(t, err, service.ErrUnauthorized)
		require.Equal(t, "Invalid username or password.", service.MessageOf(err))
	}
}

func TestGetByIDMissingOrDeleted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.register(t, "alice", domain.RoleUser)

	got, err := f.svc.GetByID(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, u, got)

	_, err = f.svc.GetByID(ctx, 9999)
	requireKind(t, err, service.KindNotFound)

	deleted, err := f.svc.Delete(ctx, u.ID)
	require.NoError(t, err)
	require.True(t, deleted)

	_, err = f.svc.GetByID(ctx, u.ID)
	requireKind(t, err, service.KindNotFound)
}

func TestDeleteTwice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.register(t, "alice", domain.RoleUser)

	ok, err := f.svc.Delete(ctx, u.ID)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = f.svc.Delete(ctx, u.ID)
	requireKind(t, err, service.KindNotFound)
	require.False(t, ok)
}

func TestUpdate(t *testing.T) {
	ctx := context.Background()
	ptr := func(s string) *string { return &s }

	t.Run("applies only provided fields", func(t *testing.T) {
		f := newFixture(t)
		u := f.register(t, "alice", domain.RoleUser)

		got, err := f.svc.Update(ctx, u.ID, domain.UpdateInput{FirstName: ptr("Alicia"), Email: ptr("NEW@example.com")})
		require.NoError(t, err)
		require.Equal(t, "Alicia", got.FirstName)
		require.Equal(t, "Last", got.LastName)
		require.Equal(t, "alice", got.Username)
		require.Equal(t, "new@example.com", got.Email)
		require.Equal(t, u.CreatedAt, got.CreatedAt)
		require.NotNil(t, got.ModifiedAt)
		require.Equal(t, now, *got.ModifiedAt)

		reread, err := f.svc.GetByID(ctx, u.ID)
		require.NoError(t, err)
		require.Equal(t, got, reread)

		stored, err := f.store.Users().GetUserByID(ctx, u.ID)
		require.NoError(t, err)
		require.True(t, f.svc.Hasher.Verify("P@ss-alice", stored.PasswordHash), "password untouched")
	})

	t.Run("role change", func(t *testing.T) {
		f := newFixture(t)
		u := f.register(t, "alice", domain.RoleUser)
		admin := domain.RoleAdmin

		got, err := f.svc.Update(ctx, u.ID, domain.UpdateInput{Role: &admin})
		require.NoError(t, err)
		require.Equal(t, domain.RoleAdmin, got.Role)
	})

	t.Run("keeping own username is not a conflict", func(t *testing.T) {
		f := newFixture(t)
		u := f.register(t, "alice", domain.RoleUser)

		_, err := f.svc.Update(ctx, u.ID, domain.UpdateInput{Username: ptr("alice"), Email: ptr("alice@example.com")})
		require.NoError(t, err)
	})

	t.Run("taken username", func(t *testing.T) {
		f := newFixture(t)
		f.register(t, "alice", domain.RoleUser)
		bob := f.register(t, "bob", domain.RoleUser)

		_, err := f.svc.Update(ctx, bob.ID, domain.UpdateInput{Username: ptr("alice")})
		requireKind(t, err, service.KindAlreadyExists)
		require.Equal(t, "Username 'alice' already exists.", service.MessageOf(err))

		reread, err := f.svc.GetByID(ctx, bob.ID)
		require.NoError(t, err)
		require.Equal(t, bob, reread)
	})

	t.Run("missing user", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.Update(ctx, 42, domain.UpdateInput{FirstName: ptr("x")})
		requireKind(t, err, service.KindNotFound)
	})

	t.Run("invalid values", func(t *testing.T) {
		f := newFixture(t)
		u := f.register(t, "alice", domain.RoleUser)
		bogus := domain.Role("Root")

		for _, in := range []domain.UpdateInput{
			{Username: ptr("")},
			{Email: ptr("nope")},
			{Role: &bogus},
		} {
			_, err := f.svc.Update(ctx, u.ID, in)
			requireKind(t, err, service.KindInvalidArgument)
		}
	})
}

func TestListFiltersAndPaginates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for i := range 3 {
		f.register(t, fmt.Sprintf("admin%d", i), domain.RoleAdmin)
	}
	for i := range 12 {
		f.register(t, fmt.Sprintf("user%02d", i), domain.RoleUser)
	}

	admin := domain.RoleAdmin
	page, err := f.svc.List(ctx, 1, 10, domain.FilterSet{Role: &admin})
	require.NoError(t, err)
	require.Len(t, page.Data, 3)
	require.Equal(t, int64(3), page.TotalRecords)
	for _, u := range page.Data {
		require.Equal(t, domain.RoleAdmin, u.Role)
	}

	user := domain.RoleUser
	first, err := f.svc.List(ctx, 1, 10, domain.FilterSet{Role: &user})
	require.NoError(t, err)
	require.Len(t, first.Data, 10)
	require.Equal(t, int64(12), first.TotalRecords)
	require.Equal(t, 2, first.TotalPages())

	second, err := f.svc.List(ctx, 2, 10, domain.FilterSet{Role: &user})
	require.NoError(t, err)
	require.Len(t, second.Data, 2)
	require.Equal(t, int64(12), second.TotalRecords)
	require.Greater(t, second.Data[0].ID, first.Data[9].ID)

	beyond, err := f.svc.List(ctx, 5, 10, domain.FilterSet{})
	require.NoError(t, err)
	require.Empty(t, beyond.Data)
	require.Equal(t, int64(15), beyond.TotalRecords)

	named, err := f.svc.List(ctx, 1, 10, domain.FilterSet{Username: "USER0"})
	require.NoError(t, err)
	require.Equal(t, int64(10), named.TotalRecords)

	clamped, err := f.svc.List(ctx, 1, 1000, domain.FilterSet{})
	require.NoError(t, err)
	require.Equal(t, service.MaxPageSize, clamped.PageSize)
	require.Len(t, clamped.Data, 15)
}

func TestListRejectsBadPaging(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	later := now.Add(time.Hour)
	bogus := domain.Role("Root")

	for name, call := range map[string]func() error{
		"page zero":      func() error { _, err := f.svc.List(ctx, 0, 10, domain.FilterSet{}); return err },
		"size zero":      func() error { _, err := f.svc.List(ctx, 1, 0, domain.FilterSet{}); return err },
		"unknown role":   func() error { _, err := f.svc.List(ctx, 1, 10, domain.FilterSet{Role: &bogus}); return err },
		"inverted range": func() error { _, err := f.svc.List(ctx, 1, 10, domain.FilterSet{CreatedFrom: &later, CreatedTo: &now}); return err },
	} {
		t.Run(name, func(t *testing.T) {
			requireKind(t, call(), service.KindInvalidArgument)
		})
	}
}

func TestListRejectsOverflowingOffset(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, "alice", domain.RoleUser)
	f.register(t, "bob", domain.RoleUser)

	page, err := f.svc.List(ctx, math.MaxInt64/5, 10, domain.FilterSet{})
	requireKind(t, err, service.KindInvalidArgument)
	require.Equal(t, "Page number is too large.", service.MessageOf(err))
	require.Empty(t, page.Data)

	// The oversized page size is clamped before the check.
	_, err = f.svc.List(ctx, math.MaxInt/service.MaxPageSize+2, 1000, domain.FilterSet{})
	requireKind(t, err, service.KindInvalidArgument)
}

func TestListLastAddressablePage(t *testing.T) {
	f := newFixture(t)
	f.register(t, "alice", domain.RoleUser)
	f.register(t, "bob", domain.RoleUser)

	last := math.MaxInt/10 + 1
	page, err := f.svc.List(context.Background(), last, 10, domain.FilterSet{})
	require.NoError(t, err)
	require.Empty(t, page.Data)
	require.Equal(t, int64(2), page.TotalRecords)
}

func TestListFoldsNonASCIICase(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.Register(ctx, &domain.RegisterInput{
		Username: "ÅSAÉ",
		Email:    "asa@example.com",
		Password: "P@ss-asa",
	})
	require.NoError(t, err)
	f.register(t, "asae", domain.RoleUser)

	filter := domain.FilterSet{Username: "åsaé"}
	page, err := f.svc.List(ctx, 1, 10, filter)
	require.NoError(t, err)
	require.Equal(t, int64(1), page.TotalRecords)
	require.Len(t, page.Data, 1)
	require.Equal(t, "ÅSAÉ", page.Data[0].Username)

	stored, err := f.store.Users().GetUserByUsername(ctx, "ÅSAÉ")
	require.NoError(t, err)
	require.True(t, predicate.Build(filter).Match(stored))
}

func TestLoginUpgradesDigestFromOtherAlgorithm(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	argon := cryptox.NewArgon2Hasher(cryptox.Argon2Params{Memory: 1024, Iterations: 1}, "pepper")
	bc := cryptox.NewBcryptHasher(4, "pepper")
	multi := &cryptox.MultiHasher{Argon2: argon, Bcrypt: bc, Primary: bc}
	f.svc.Hasher = multi

	u := f.register(t, "alice", domain.RoleUser)
	before, err := f.store.Users().GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(before.PasswordHash, "$2"))

	multi.Primary = argon
	_, err = f.svc.Login(ctx, domain.LoginInput{Username: "alice", Password: "P@ss-alice"})
	require.NoError(t, err)

	after, err := f.store.Users().GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(after.PasswordHash, "$argon2id$"))
	require.Equal(t, before.ModifiedAt, after.ModifiedAt)
	require.Contains(t, f.logs.String(), "password digest upgraded")

	_, err = f.svc.Login(ctx, domain.LoginInput{Username: "alice", Password: "P@ss-alice"})
	require.NoError(t, err)
	_, err = f.svc.Login(ctx, domain.LoginInput{Username: "alice", Password: "wrong"})
	requireKind(t, err, service.KindUnauthorized)
}

func TestRegisterLoginScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	view, err := f.svc.Register(ctx, &domain.RegisterInput{Username: "alice", Email: "a@x.com", Password: "P@ss1"})
	require.NoError(t, err)

	tv, err := f.svc.Login(ctx, domain.LoginInput{Username: "alice", Password: "P@ss1"})
	require.NoError(t, err)
	claims, err := f.tokens.Verify(tv.Token)
	require.NoError(t, err)
	require.Equal(t, string(view.Role), claims.Role)

	_, err = f.svc.Login(ctx, domain.LoginInput{Username: "alice", Password: "wrong"})
	requireKind(t, err, service.KindUnauthorized)

	require.NotContains(t, f.logs.String(), "P@ss1")
	require.NotContains(t, f.logs.String(), "wrong")
}

func TestStorageFailureIsOpaque(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.store.Close())

	_, err := f.svc.GetByID(context.Background(), 1)
	requireKind(t, err, service.KindServerError)
	require.ErrorIs(t, err, service.ErrServer)
	require.Equal(t, "internal server error", service.MessageOf(err))
	require.Contains(t, f.logs.String(), "level=ERROR")

	var se *service.Error
	require.True(t, errors.As(err, &se))
	require.Error(t, se.Err, "cause kept for logs")
}
