package gate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/cespare/xxhash/v2"
	_ "github.com/mattn/go-sqlite3"
)

// SQLiteTokenStore persists sessions so they survive a restart of the
// gate. Rows are keyed by the xxhash of the token; the token text is
// re-checked on lookup so a hash collision cannot leak a session.
type SQLiteTokenStore struct {
	db  *sql.DB
	ttl time.Duration
}

func OpenSQLiteTokenStore(ctx context.Context, path string, ttl time.Duration) (*SQLiteTokenStore, error) {
	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%v?_busy_timeout=5000&_journal_mode=wal", path))
	if err != nil {
		return nil, fmt.Errorf("gate: unable to open session db %v, cause %w", path, err)
	}
	_, err = db.ExecContext(ctx, `create table if not exists sessions(
		token_hash integer not null,
		token text not null,
		username text not null,
		expires_at integer not null,
		primary key (token_hash, token))`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("gate: unable to create sessions table, cause %w", err)
	}
	return &SQLiteTokenStore{db: db, ttl: ttl}, nil
}

func (s *SQLiteTokenStore) Save(ctx context.Context, token, username string) error {
	expires := time.Now().Add(s.ttl).Unix()
	_, err := s.db.ExecContext(ctx,
		`insert or replace into sessions (token_hash, token, username, expires_at) values (?, ?, ?, ?)`,
		tokenHash(token), token, username, expires)
	return err
}

func (s *SQLiteTokenStore) Lookup(ctx context.Context, token string) (string, bool, error) {
	var username string
	err := s.db.QueryRowContext(ctx,
		`select username from sessions where token_hash = ? and token = ? and expires_at > ?`,
		tokenHash(token), token, time.Now().Unix()).Scan(&username)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	} else if err != nil {
		return "", false, err
	}
	return username, true, nil
}

func (s *SQLiteTokenStore) Delete(ctx context.Context, token string) error {
	_, err := s.db.ExecContext(ctx,
		`delete from sessions where token_hash = ? and token = ?`, tokenHash(token), token)
	return err
}

// PurgeExpired drops rows whose expiry already passed. The gate works
// without ever calling it, this just keeps the file from growing.
func (s *SQLiteTokenStore) PurgeExpired(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `delete from sessions where expires_at <= ?`, time.Now().Unix())
	return err
}

func (s *SQLiteTokenStore) Close() error {
	return s.db.Close()
}

func tokenHash(token string) int64 {
	return int64(xxhash.Sum64String(token))
}
