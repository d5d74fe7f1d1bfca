package gate

import (
	"context"
	"errors"
	"time"

	"github.com/allegro/bigcache/v3"
)

type (
	// TokenStore keeps the set of live session tokens and the username
	// each one belongs to. Tokens disappear either by Delete (logout) or
	// by aging out of the store.
	TokenStore interface {
		Save(ctx context.Context, token, username string) error
		Lookup(ctx context.Context, token string) (username string, found bool, err error)
		Delete(ctx context.Context, token string) error
	}

	memStore struct {
		cache *bigcache.BigCache
	}
)

// InMemoryTokenStore keeps sessions in process memory. Everything is
// lost on restart; users simply log in again.
func InMemoryTokenStore(ttl time.Duration) TokenStore {
	cache, _ := bigcache.NewBigCache(bigcache.DefaultConfig(ttl))
	return &memStore{cache: cache}
}

func (m *memStore) Save(ctx context.Context, token, username string) error {
	return m.cache.Set(token, []byte(username))
}

func (m *memStore) Lookup(ctx context.Context, token string) (string, bool, error) {
	buf, err := m.cache.Get(token)
	if errors.Is(err, bigcache.ErrEntryNotFound) {
		return "", false, nil
	} else if err != nil {
		return "", false, err
	}
	return string(buf), len(buf) > 0, nil
}

func (m *memStore) Delete(ctx context.Context, token string) error {
	err := m.cache.Delete(token)
	if errors.Is(err, bigcache.ErrEntryNotFound) {
		return nil
	}
	return err
}
