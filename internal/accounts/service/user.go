package service

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"net/mail"
	"strings"
	"sync"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/aussiebroadwan/wellmeet/internal/accounts/domain"
	"github.com/aussiebroadwan/wellmeet/internal/accounts/predicate"
	"github.com/aussiebroadwan/wellmeet/internal/accounts/store"
	"github.com/aussiebroadwan/wellmeet/pkg/cryptox"
	"github.com/aussiebroadwan/wellmeet/pkg/slogx"
)

const (
	// MaxPageSize caps List; larger requests are clamped, not rejected.
	MaxPageSize = 100

	maxUsernameLength = 64
	maxNameLength     = 100
)

var (
	errUnknownUser   = errors.New("unknown username")
	errWrongPassword = errors.New("password mismatch")
)

// TokenIssuer signs access tokens. *jwtx.HS256Issuer satisfies it.
type TokenIssuer interface {
	Issue(userID int64, username, email, role string) (string, time.Time, error)
}

// UserService owns registration, login and user CRUD. It holds no request
// state and is safe for concurrent use; all fields must be set before the
// first call and not changed afterwards.
type UserService struct {
	Store  store.Store
	Hasher cryptox.Hasher
	Tokens TokenIssuer

	// Logger is used when the request context carries none.
	Logger *slog.Logger

	// Now defaults to time.Now. Timestamps are stored as UTC milliseconds.
	Now func() time.Time

	dummyOnce   sync.Once
	dummyDigest string
}

// Login checks username and password and issues an access token. An
// unknown username and a wrong password fail identically.
func (s *UserService) Login(ctx context.Context, in domain.LoginInput) (domain.TokenView, error) {
	l := s.logger(ctx).With(slog.String("username", in.Username))

	if in.Username == "" || in.Password == "" {
		s.burnVerify(in.Password)
		return domain.TokenView{}, s.fail(l, "login", unauthorized(msgInvalidCredentials, errors.New("empty credentials")))
	}

	u, err := s.Store.Users().GetUserByUsername(ctx, in.Username)
	switch {
	case errors.Is(err, store.ErrNotFound):
		s.burnVerify(in.Password)
		return domain.TokenView{}, s.fail(l, "login", unauthorized(msgInvalidCredentials, errUnknownUser))
	case err != nil:
		return domain.TokenView{}, s.fail(l, "login", err)
	}

	if !s.Hasher.Verify(in.Password, u.PasswordHash) {
		return domain.TokenView{}, s.fail(l, "login", unauthorized(msgInvalidCredentials, errWrongPassword))
	}
	s.upgradeDigest(ctx, l, u, in.Password)

	token, exp, err := s.Tokens.Issue(u.ID, u.Username, u.Email, string(u.Role))
	if err != nil {
		return domain.TokenView{}, s.fail(l, "login", err)
	}

	l.Info("user logged in", slog.Int64("user_id", u.ID), slog.String("role", string(u.Role)))
	return domain.TokenView{
		Token:     token,
		Username:  u.Username,
		Role:      u.Role,
		ExpiresAt: exp,
	}, nil
}

// Register creates an account. The uniqueness checks give a precise message
// for the common case; the unique constraints catch concurrent registrations
// that pass both checks.
func (s *UserService) Register(ctx context.Context, in *domain.RegisterInput) (domain.UserView, error) {
	l := s.logger(ctx)
	if in == nil {
		return domain.UserView{}, s.fail(l, "register", invalidArgument("Request body is required."))
	}
	l = l.With(slog.String("username", in.Username))

	u, err := s.validateRegistration(in)
	if err != nil {
		return domain.UserView{}, s.fail(l, "register", err)
	}

	users := s.Store.Users()
	if err := checkUnused(ctx, users.GetUserByUsername, "username", u.Username, 0); err != nil {
		return domain.UserView{}, s.fail(l, "register", err)
	}
	if err := checkUnused(ctx, users.GetUserByEmail, "email", u.Email, 0); err != nil {
		return domain.UserView{}, s.fail(l, "register", err)
	}

	u.PasswordHash, err = s.Hasher.Hash(in.Password)
	if err != nil {
		return domain.UserView{}, s.fail(l, "register", err)
	}
	u.CreatedAt = s.now()

	u.ID, err = users.CreateUser(ctx, u)
	if err != nil {
		return domain.UserView{}, s.fail(l, "register", conflictOr(err, u))
	}

	l.Info("user registered", slog.Int64("user_id", u.ID), slog.String("role", string(u.Role)))
	return u.View(), nil
}

func (s *UserService) validateRegistration(in *domain.RegisterInput) (domain.User, error) {
	u := domain.User{
		Username:  strings.TrimSpace(in.Username),
		FirstName: strings.TrimSpace(in.FirstName),
		LastName:  strings.TrimSpace(in.LastName),
		Role:      in.Role,
	}

	if err := validateUsername(u.Username); err != nil {
		return u, err
	}
	email, err := normalizeEmail(in.Email)
	if err != nil {
		return u, err
	}
	u.Email = email

	if in.Password == "" {
		return u, invalidArgument("Password is required.")
	}
	if err := validateNames(u.FirstName, u.LastName); err != nil {
		return u, err
	}

	if u.Role == "" {
		u.Role = domain.RoleUser
	}
	if !u.Role.Valid() {
		return u, invalidArgument("Role '%s' is not valid.", u.Role)
	}
	return u, nil
}

// GetByID returns the projection of a single user.
func (s *UserService) GetByID(ctx context.Context, id int64) (domain.UserView, error) {
	l := s.logger(ctx).With(slog.Int64("user_id", id))

	u, err := s.Store.Users().GetUserByID(ctx, id)
	if err != nil {
		return domain.UserView{}, s.fail(l, "get_user", notFoundOr(err, id))
	}

	l.Debug("user fetched")
	return u.View(), nil
}

// Update applies the provided fields in a single read-modify-write
// transaction and stamps ModifiedAt.
func (s *UserService) Update(ctx context.Context, id int64, in domain.UpdateInput) (domain.UserView, error) {
	l := s.logger(ctx).With(slog.Int64("user_id", id))

	in, err := normalizeUpdate(in)
	if err != nil {
		return domain.UserView{}, s.fail(l, "update_user", err)
	}

	var updated domain.User
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		users := tx.Users()

		u, err := users.GetUserByID(ctx, id)
		if err != nil {
			return notFoundOr(err, id)
		}

		if in.Username != nil && *in.Username != u.Username {
			if err := checkUnused(ctx, users.GetUserByUsername, "username", *in.Username, id); err != nil {
				return err
			}
			u.Username = *in.Username
		}
		if in.Email != nil && *in.Email != u.Email {
			if err := checkUnused(ctx, users.GetUserByEmail, "email", *in.Email, id); err != nil {
				return err
			}
			u.Email = *in.Email
		}
		if in.FirstName != nil {
			u.FirstName = *in.FirstName
		}
		if in.LastName != nil {
			u.LastName = *in.LastName
		}
		if in.Role != nil {
			u.Role = *in.Role
		}

		now := s.now()
		u.ModifiedAt = &now

		if err := users.UpdateUser(ctx, u); err != nil {
			return notFoundOr(conflictOr(err, u), id)
		}
		updated = u
		return nil
	})
	if err != nil {
		return domain.UserView{}, s.fail(l, "update_user", err)
	}

	l.Info("user updated")
	return updated.View(), nil
}

// Delete removes the user. Deleting an id that does not exist, including
// one deleted earlier, is NotFound.
func (s *UserService) Delete(ctx context.Context, id int64) (bool, error) {
	l := s.logger(ctx).With(slog.Int64("user_id", id))

	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		deleted, err := tx.Users().DeleteUser(ctx, id)
		if err != nil {
			return err
		}
		if !deleted {
			return notFound("User %d not found.", id)
		}
		return nil
	})
	if err != nil {
		return false, s.fail(l, "delete_user", err)
	}

	l.Info("user deleted")
	return true, nil
}

// List returns one page of users matching filter, ordered by id.
func (s *UserService) List(
	ctx context.Context,
	pageNumber, pageSize int,
	filter domain.FilterSet,
) (domain.Page[domain.UserView], error) {
	l := s.logger(ctx)

	switch {
	case pageNumber < 1:
		return domain.Page[domain.UserView]{}, s.fail(l, "list_users", invalidArgument("Page number must be at least 1."))
	case pageSize < 1:
		return domain.Page[domain.UserView]{}, s.fail(l, "list_users", invalidArgument("Page size must be at least 1."))
	case pageNumber-1 > math.MaxInt/min(pageSize, MaxPageSize):
		// The row offset of such a page does not fit in an int.
		return domain.Page[domain.UserView]{}, s.fail(l, "list_users", invalidArgument("Page number is too large."))
	case filter.Role != nil && !filter.Role.Valid():
		return domain.Page[domain.UserView]{}, s.fail(l, "list_users", invalidArgument("Role '%s' is not valid.", *filter.Role))
	case filter.CreatedFrom != nil && filter.CreatedTo != nil && filter.CreatedFrom.After(*filter.CreatedTo):
		return domain.Page[domain.UserView]{}, s.fail(l, "list_users", invalidArgument("created_from must not be after created_to."))
	}
	pageSize = min(pageSize, MaxPageSize)

	rows, total, err := s.Store.Users().QueryPage(ctx, pageNumber, pageSize, predicate.Build(filter))
	if err != nil {
		return domain.Page[domain.UserView]{}, s.fail(l, "list_users", err)
	}

	views := make([]domain.UserView, len(rows))
	for i, u := range rows {
		views[i] = u.View()
	}

	l.Debug("users listed", slog.Int("page", pageNumber), slog.Int("count", len(views)), slog.Int64("total", total))
	return domain.Page[domain.UserView]{
		Data:         views,
		TotalRecords: total,
		PageNumber:   pageNumber,
		PageSize:     pageSize,
	}, nil
}

// fail converts err to an *Error at the service boundary and logs it:
// business rejections at warn, everything else at error with the cause.
func (s *UserService) fail(l *slog.Logger, op string, err error) error {
	var se *Error
	if !errors.As(err, &se) {
		se = serverError(err)
	}

	attrs := []any{slog.String("op", op), slog.String("kind", se.Kind.String())}
	if se.Err != nil {
		attrs = append(attrs, slog.Any("error", se.Err))
	}
	if se.Kind == KindServerError {
		l.Error("user operation failed", attrs...)
	} else {
		l.Warn("user operation rejected", append(attrs, slog.String("reason", se.Message))...)
	}
	return se
}

func (s *UserService) logger(ctx context.Context) *slog.Logger {
	return slogx.FromContextOr(ctx, s.Logger)
}

func (s *UserService) now() time.Time {
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	return now().UTC().Truncate(time.Millisecond)
}

// burnVerify runs a verification against a throwaway digest so that a
// login for an unknown user costs the same as one with a wrong password.
func (s *UserService) burnVerify(password string) {
	s.dummyOnce.Do(func() {
		s.dummyDigest, _ = s.Hasher.Hash("wellmeet-timing-equalizer")
	})
	_ = s.Hasher.Verify(password, s.dummyDigest)
}

// upgradeDigest replaces a digest made by a non-primary algorithm once the
// plaintext is known to match it. Failures are logged and never fail the
// login.
func (s *UserService) upgradeDigest(ctx context.Context, l *slog.Logger, u domain.User, password string) {
	r, ok := s.Hasher.(cryptox.Rehasher)
	if !ok || !r.NeedsRehash(u.PasswordHash) {
		return
	}

	digest, err := s.Hasher.Hash(password)
	if err != nil {
		l.Warn("password rehash failed", slog.Int64("user_id", u.ID), slog.Any("error", err))
		return
	}

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		cur, err := tx.Users().GetUserByID(ctx, u.ID)
		if err != nil {
			return err
		}
		if cur.PasswordHash != u.PasswordHash {
			return nil
		}
		cur.PasswordHash = digest
		return tx.Users().UpdateUser(ctx, cur)
	})
	if err != nil {
		l.Warn("password rehash failed", slog.Int64("user_id", u.ID), slog.Any("error", err))
		return
	}
	l.Info("password digest upgraded", slog.Int64("user_id", u.ID))
}

type lookupFunc func(ctx context.Context, value string) (domain.User, error)

// checkUnused fails AlreadyExists when value is held by a user other than
// self (0 for none).
func checkUnused(ctx context.Context, lookup lookupFunc, field, value string, self int64) error {
	existing, err := lookup(ctx, value)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return nil
	case err != nil:
		return err
	case existing.ID == self:
		return nil
	default:
		return alreadyExists(field, value)
	}
}

// conflictOr names the colliding field of a unique violation raised by the
// store at write time.
func conflictOr(err error, u domain.User) error {
	var conflict *store.ConflictError
	if !errors.As(err, &conflict) {
		return err
	}
	switch conflict.Field {
	case "username":
		return alreadyExists("username", u.Username)
	case "email":
		return alreadyExists("email", u.Email)
	default:
		return &Error{Kind: KindAlreadyExists, Message: "User already exists.", Err: err}
	}
}

func notFoundOr(err error, id int64) error {
	if errors.Is(err, store.ErrNotFound) {
		return notFound("User %d not found.", id)
	}
	return err
}

func validateUsername(username string) error {
	switch {
	case username == "":
		return invalidArgument("Username is required.")
	case utf8.RuneCountInString(username) > maxUsernameLength:
		return invalidArgument("Username must be at most %d characters.", maxUsernameLength)
	case strings.ContainsFunc(username, isSpaceOrControl):
		return invalidArgument("Username must not contain whitespace.")
	}
	return nil
}

func validateNames(first, last string) error {
	if utf8.RuneCountInString(first) > maxNameLength || utf8.RuneCountInString(last) > maxNameLength {
		return invalidArgument("Names must be at most %d characters.", maxNameLength)
	}
	return nil
}

// normalizeEmail accepts a bare address and returns it lowercased.
func normalizeEmail(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", invalidArgument("Email is required.")
	}
	addr, err := mail.ParseAddress(raw)
	if err != nil || addr.Name != "" || addr.Address != raw {
		return "", invalidArgument("Email '%s' is not a valid address.", raw)
	}
	return strings.ToLower(addr.Address), nil
}

func normalizeUpdate(in domain.UpdateInput) (domain.UpdateInput, error) {
	if in.Username != nil {
		v := strings.TrimSpace(*in.Username)
		if err := validateUsername(v); err != nil {
			return in, err
		}
		in.Username = &v
	}
	if in.Email != nil {
		v, err := normalizeEmail(*in.Email)
		if err != nil {
			return in, err
		}
		in.Email = &v
	}
	if in.FirstName != nil {
		v := strings.TrimSpace(*in.FirstName)
		in.FirstName = &v
	}
	if in.LastName != nil {
		v := strings.TrimSpace(*in.LastName)
		in.LastName = &v
	}
	var first, last string
	if in.FirstName != nil {
		first = *in.FirstName
	}
	if in.LastName != nil {
		last = *in.LastName
	}
	if err := validateNames(first, last); err != nil {
		return in, err
	}
	if in.Role != nil && !in.Role.Valid() {
		return in, invalidArgument("Role '%s' is not valid.", *in.Role)
	}
	return in, nil
}

func isSpaceOrControl(r rune) bool {
	return unicode.IsSpace(r) || unicode.IsControl(r)
}
