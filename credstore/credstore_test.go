package credstore

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const sampleConfig = `
credentials:
  usernames:
    admin:
      name: Administrator
      email: admin@example.com
      password: $2b$12$notarealhashbutlooks.like.one
      role: administrator
    demo:
      name: Demo User
      email: demo@example.com
      password: $2b$12$anothernotarealhash.value
cookie:
  name: econtool_session
  key: super-secret-signing-key
  expiry_days: 30
preauthorized:
  emails:
    - analyst@example.com
`

func tempConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if content != "" {
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	}
	return path
}

func TestLoad(t *testing.T) {
	path := tempConfig(t, sampleConfig)
	cfg, err := Load(path)
	require.NoError(t, err)

	admin, ok := cfg.User("admin")
	require.True(t, ok)
	require.Equal(t, "Administrator", admin.Name)
	require.Equal(t, "admin@example.com", admin.Email)
	require.Equal(t, "administrator", admin.Role)

	require.Equal(t, "econtool_session", cfg.Cookie.Name)
	require.Equal(t, "super-secret-signing-key", cfg.Cookie.Key)
	require.Equal(t, 30, cfg.Cookie.ExpiryDays)

	require.True(t, cfg.PreauthorizationEnabled())
	require.True(t, cfg.PreauthorizedEmail("analyst@example.com"))
	require.False(t, cfg.PreauthorizedEmail("stranger@example.com"))
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	var notFound ConfigNotFound
	require.True(t, errors.As(err, &notFound))
}

func TestLoadMalformed(t *testing.T) {
	path := tempConfig(t, "credentials: [not, a, mapping\n")
	_, err := Load(path)
	var malformed MalformedConfig
	require.True(t, errors.As(err, &malformed))
}

func TestUpdateRoundTrip(t *testing.T) {
	path := tempConfig(t, sampleConfig)
	store := NewStore(path)

	err := store.Update(func(cfg *Config) error {
		cfg.SetUser("analyst", User{
			Name:     "Analyst",
			Email:    "analyst@example.com",
			Password: "$2b$12$yetanotherhash",
		})
		return nil
	})
	require.NoError(t, err)

	cfg, err := store.Snapshot()
	require.NoError(t, err)
	_, ok := cfg.User("analyst")
	require.True(t, ok)
	// pre-existing records survive the rewrite
	_, ok = cfg.User("admin")
	require.True(t, ok)
}

func TestUpdateErrorDiscardsChanges(t *testing.T) {
	path := tempConfig(t, sampleConfig)
	store := NewStore(path)

	boom := errors.New("boom")
	err := store.Update(func(cfg *Config) error {
		cfg.SetUser("ghost", User{Name: "Ghost"})
		return boom
	})
	require.ErrorIs(t, err, boom)

	cfg, err := store.Snapshot()
	require.NoError(t, err)
	_, ok := cfg.User("ghost")
	require.False(t, ok)
}

func TestEnsure(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	store := NewStore(path)
	require.NoError(t, store.Ensure("econtool_session", 30))

	cfg, err := store.Snapshot()
	require.NoError(t, err)
	require.Equal(t, "econtool_session", cfg.Cookie.Name)
	require.Equal(t, 30, cfg.Cookie.ExpiryDays)
	require.NotEmpty(t, cfg.Cookie.Key)
	require.Empty(t, cfg.Credentials.Usernames)

	// second key must differ from the first, and Ensure refuses to
	// overwrite an existing file
	other := NewStore(filepath.Join(t.TempDir(), "config.yaml"))
	require.NoError(t, other.Ensure("econtool_session", 30))
	otherCfg, err := other.Snapshot()
	require.NoError(t, err)
	require.NotEqual(t, cfg.Cookie.Key, otherCfg.Cookie.Key)

	require.Error(t, store.Ensure("econtool_session", 30))
}
