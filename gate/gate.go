package gate

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"time"

	"github.com/econtool/authgate/credstore"
	"golang.org/x/crypto/bcrypt"
)

type (
	// PlainText holds a password on its way into a hash. Callers should
	// Zero it as soon as the gate returns.
	PlainText []byte

	// Identity is what the gate knows about an authenticated caller.
	// Role is informational only; nothing in the gate enforces it.
	Identity struct {
		Username string
		Name     string
		Role     string
	}

	NewUser struct {
		Username string
		Name     string
		Email    string
		Role     string
		Password PlainText
	}

	Gate struct {
		store  *credstore.Store
		cookie credstore.Cookie
		tokens TokenStore
	}
)

const defaultExpiryDays = 30

func (p PlainText) Zero() {
	for i := range p {
		p[i] = 0
	}
}

// New builds a gate over the given store. The cookie settings are fixed
// for the lifetime of the gate; a missing signing key is refused here
// rather than silently invalidating every session later.
func New(store *credstore.Store, cookie credstore.Cookie, tokens TokenStore) (*Gate, error) {
	if cookie.Key == "" {
		return nil, errors.New("gate: cookie signing key is empty")
	}
	if cookie.ExpiryDays <= 0 {
		cookie.ExpiryDays = defaultExpiryDays
	}
	return &Gate{store: store, cookie: cookie, tokens: tokens}, nil
}

func (g *Gate) CookieName() string { return g.cookie.Name }

// SessionTTL is how long a freshly issued session stays valid.
func (g *Gate) SessionTTL() time.Duration {
	return time.Duration(g.cookie.ExpiryDays) * 24 * time.Hour
}

// Login verifies username/password against the stored hash and, on
// success, issues a session token bounded by the cookie expiry.
func (g *Gate) Login(ctx context.Context, username string, password PlainText) (string, Identity, error) {
	cfg, err := g.store.Snapshot()
	if err != nil {
		return "", Identity{}, err
	}
	user, ok := cfg.User(username)
	if !ok {
		return "", Identity{}, UserNotFound{Username: username}
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), password); err != nil {
		return "", Identity{}, WrongPassword{Username: username}
	}
	token, err := signToken([]byte(g.cookie.Key), username, user.Name, g.SessionTTL())
	if err != nil {
		return "", Identity{}, fmt.Errorf("gate: unable to sign session token, cause %w", err)
	}
	if err := g.tokens.Save(ctx, token, username); err != nil {
		return "", Identity{}, fmt.Errorf("gate: unable to save session token, cause %w", err)
	}
	return token, Identity{Username: username, Name: user.Name, Role: user.Role}, nil
}

// Authenticate resolves a session token back to an identity. The token
// must carry a valid, unexpired signature and must still be present in
// the token store (logout removes it there).
func (g *Gate) Authenticate(ctx context.Context, token string) (Identity, error) {
	username, found, err := g.tokens.Lookup(ctx, token)
	if err != nil {
		return Identity{}, fmt.Errorf("gate: unable to look up session token, cause %w", err)
	}
	if !found {
		return Identity{}, ErrInvalidSession
	}
	claims, err := parseToken([]byte(g.cookie.Key), token)
	if err != nil || claims.Subject != username {
		return Identity{}, ErrInvalidSession
	}
	cfg, err := g.store.Snapshot()
	if err != nil {
		return Identity{}, err
	}
	user, ok := cfg.User(username)
	if !ok {
		// user was removed from the file while the session was live
		return Identity{}, ErrInvalidSession
	}
	return Identity{Username: username, Name: user.Name, Role: user.Role}, nil
}

// Register adds a new user record. It never issues a session: the user
// still has to log in afterwards.
func (g *Gate) Register(ctx context.Context, nu NewUser) error {
	if nu.Username == "" {
		return MalformedInput{Field: "username", Reason: "must not be empty"}
	}
	if len(nu.Password) == 0 {
		return MalformedInput{Field: "password", Reason: "must not be empty"}
	}
	if _, err := mail.ParseAddress(nu.Email); err != nil {
		return MalformedInput{Field: "email", Reason: "not a valid address"}
	}
	hash, err := HashPassword(nu.Password)
	if err != nil {
		return err
	}
	return g.store.Update(func(cfg *credstore.Config) error {
		if _, exists := cfg.User(nu.Username); exists {
			return DuplicateUsername{Username: nu.Username}
		}
		if cfg.PreauthorizationEnabled() && !cfg.PreauthorizedEmail(nu.Email) {
			return EmailNotPreauthorized{Email: nu.Email}
		}
		cfg.SetUser(nu.Username, credstore.User{
			Name:     nu.Name,
			Email:    nu.Email,
			Password: hash,
			Role:     nu.Role,
		})
		return nil
	})
}

// ForgotPassword replaces the user's password with a random one and
// returns the plaintext exactly once. Delivering it to the user happens
// out of band.
func (g *Gate) ForgotPassword(ctx context.Context, username string) (string, error) {
	newPassword, err := RandomPassword()
	if err != nil {
		return "", err
	}
	hash, err := HashPassword(PlainText(newPassword))
	if err != nil {
		return "", err
	}
	err = g.store.Update(func(cfg *credstore.Config) error {
		user, ok := cfg.User(username)
		if !ok {
			return UserNotFound{Username: username}
		}
		user.Password = hash
		cfg.SetUser(username, user)
		return nil
	})
	if err != nil {
		return "", err
	}
	return newPassword, nil
}

// ResetPassword verifies the old password before storing a hash of the
// new one.
func (g *Gate) ResetPassword(ctx context.Context, username string, oldPassword, newPassword PlainText) error {
	if len(newPassword) == 0 {
		return MalformedInput{Field: "password", Reason: "must not be empty"}
	}
	hash, err := HashPassword(newPassword)
	if err != nil {
		return err
	}
	return g.store.Update(func(cfg *credstore.Config) error {
		user, ok := cfg.User(username)
		if !ok {
			return UserNotFound{Username: username}
		}
		if err := bcrypt.CompareHashAndPassword([]byte(user.Password), oldPassword); err != nil {
			return WrongPassword{Username: username}
		}
		user.Password = hash
		cfg.SetUser(username, user)
		return nil
	})
}

// UpdateDetails mutates the display name and email of an existing user.
// Empty fields keep their current value.
func (g *Gate) UpdateDetails(ctx context.Context, username, name, email string) error {
	if email != "" {
		if _, err := mail.ParseAddress(email); err != nil {
			return MalformedInput{Field: "email", Reason: "not a valid address"}
		}
	}
	return g.store.Update(func(cfg *credstore.Config) error {
		user, ok := cfg.User(username)
		if !ok {
			return UserNotFound{Username: username}
		}
		if name != "" {
			user.Name = name
		}
		if email != "" {
			user.Email = email
		}
		cfg.SetUser(username, user)
		return nil
	})
}

// Logout invalidates the session token.
func (g *Gate) Logout(ctx context.Context, token string) error {
	return g.tokens.Delete(ctx, token)
}

// HashPassword produces the salted hash stored in the credential file.
func HashPassword(password PlainText) (string, error) {
	hash, err := bcrypt.GenerateFromPassword(password, bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("gate: unable to hash password, cause %w", err)
	}
	return string(hash), nil
}
