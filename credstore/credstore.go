// Package credstore reads and writes the credential file shared between
// the hash generator and the auth gate.
//
// The file is plain YAML and is meant to stay human-editable: an
// administrator adding a user by hand and the registration flow adding a
// user over HTTP both end up writing the same layout.
package credstore

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

type (
	// User is one record under credentials.usernames. Password always
	// holds a salted hash, never the plaintext.
	User struct {
		Name     string `yaml:"name"`
		Email    string `yaml:"email"`
		Password string `yaml:"password"`
		Role     string `yaml:"role,omitempty"`
	}

	Credentials struct {
		Usernames map[string]User `yaml:"usernames"`
	}

	// Cookie holds the process-wide session settings. It is loaded once
	// at startup and handed to the gate, never mutated afterwards.
	Cookie struct {
		Name       string `yaml:"name"`
		Key        string `yaml:"key"`
		ExpiryDays int    `yaml:"expiry_days"`
	}

	Preauthorized struct {
		Emails []string `yaml:"emails"`
	}

	Config struct {
		Credentials   Credentials   `yaml:"credentials"`
		Cookie        Cookie        `yaml:"cookie"`
		Preauthorized Preauthorized `yaml:"preauthorized"`
	}

	// Store serializes access to one credential file. Writers go through
	// Update so concurrent registrations cannot clobber each other within
	// this process; saves replace the file atomically so a reader never
	// sees a torn write.
	Store struct {
		mu   sync.Mutex
		path string
	}
)

func NewStore(path string) *Store {
	return &Store{path: path}
}

func (s *Store) Path() string { return s.path }

// Load parses the credential file at path without going through a Store.
func Load(path string) (*Config, error) {
	buf, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ConfigNotFound{Path: path}
	} else if err != nil {
		return nil, fmt.Errorf("credstore: unable to read %v, cause %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(buf, &cfg); err != nil {
		return nil, MalformedConfig{Path: path, Cause: err}
	}
	if cfg.Credentials.Usernames == nil {
		cfg.Credentials.Usernames = map[string]User{}
	}
	return &cfg, nil
}

// Snapshot returns the current contents of the file.
func (s *Store) Snapshot() (*Config, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Load(s.path)
}

// Save replaces the file with cfg.
func (s *Store) Save(cfg *Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked(cfg)
}

// Update runs fn against the current contents and persists the result.
// The whole read-modify-write cycle holds the store lock.
func (s *Store) Update(fn func(*Config) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cfg, err := Load(s.path)
	if err != nil {
		return err
	}
	if err := fn(cfg); err != nil {
		return err
	}
	return s.saveLocked(cfg)
}

// Ensure scaffolds a fresh credential file with a random cookie key.
// It refuses to touch an existing file.
func (s *Store) Ensure(cookieName string, expiryDays int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := os.Stat(s.path); err == nil {
		return fmt.Errorf("credstore: %v already exists", s.path)
	} else if !errors.Is(err, os.ErrNotExist) {
		return err
	}
	key, err := randomKey(32)
	if err != nil {
		return err
	}
	return s.saveLocked(&Config{
		Credentials: Credentials{Usernames: map[string]User{}},
		Cookie: Cookie{
			Name:       cookieName,
			Key:        key,
			ExpiryDays: expiryDays,
		},
	})
}

func (s *Store) saveLocked(cfg *Config) error {
	buf, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("credstore: unable to encode config, cause %w", err)
	}
	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".credstore-*")
	if err != nil {
		return fmt.Errorf("credstore: unable to create temp file in %v, cause %w", dir, err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(buf); err != nil {
		tmp.Close()
		return fmt.Errorf("credstore: unable to write %v, cause %w", tmp.Name(), err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), s.path)
}

// User returns the record for username, if any.
func (c *Config) User(username string) (User, bool) {
	u, ok := c.Credentials.Usernames[username]
	return u, ok
}

func (c *Config) SetUser(username string, u User) {
	if c.Credentials.Usernames == nil {
		c.Credentials.Usernames = map[string]User{}
	}
	c.Credentials.Usernames[username] = u
}

// PreauthorizationEnabled reports whether self-registration is restricted
// to the allowlist. An empty list means open registration.
func (c *Config) PreauthorizationEnabled() bool {
	return len(c.Preauthorized.Emails) > 0
}

func (c *Config) PreauthorizedEmail(email string) bool {
	for _, e := range c.Preauthorized.Emails {
		if e == email {
			return true
		}
	}
	return false
}

func randomKey(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
