package sqlite

import (
	"context"
	"database/sql"
	"strings"

	"github.com/aussiebroadwan/wellmeet/internal/accounts/store"
	_ "modernc.org/sqlite"
)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

type Store struct {
	db *sql.DB
}

var _ store.Store = (*Store)(nil)

// NewStore opens the database file at path. Foreign keys, WAL and a busy
// timeout are enabled on every connection, and write transactions take the
// lock up front so concurrent writers queue instead of failing to upgrade.
func NewStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return nil, err
	}

	// Each connection to :memory: is a separate database.
	if path == MemoryPath {
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func dsn(path string) string {
	params := []string{
		"_pragma=foreign_keys(1)",
		"_pragma=busy_timeout(5000)",
		"_txlock=immediate",
	}
	if path != MemoryPath {
		params = append(params, "_pragma=journal_mode(WAL)")
	}
	return "file:" + path + "?" + strings.Join(params, "&")
}

func (s *Store) Close() error { return s.db.Close() }

// Ping verifies the database connection is still alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Users() store.Users { return &usersRepo{db: s.db} }

// WithTx runs fn in an immediate transaction (see dsn) so read-modify-write
// sequences in fn cannot interleave with another writer.
func (s *Store) WithTx(ctx context.Context, fn func(tx store.Tx) error) error {
	return store.RunInTx(ctx, s.db, nil, func(tx *sql.Tx) error {
		return fn(txStore{tx: tx})
	})
}

type txStore struct {
	tx *sql.Tx
}

func (t txStore) Users() store.Users { return &usersRepo{db: t.tx} }
