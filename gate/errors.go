package gate

import (
	"errors"
	"fmt"
)

type (
	DuplicateUsername struct {
		Username string
	}

	UserNotFound struct {
		Username string
	}

	WrongPassword struct {
		Username string
	}

	EmailNotPreauthorized struct {
		Email string
	}

	MalformedInput struct {
		Field  string
		Reason string
	}
)

// ErrInvalidSession covers every way a session token can stop being
// acceptable: bad signature, expired, or removed by logout.
var ErrInvalidSession = errors.New("invalid or expired session")

func (d DuplicateUsername) Error() string {
	return fmt.Sprintf("username %v is already taken", d.Username)
}

func (u UserNotFound) Error() string {
	return fmt.Sprintf("user %v not found", u.Username)
}

func (w WrongPassword) Error() string {
	return fmt.Sprintf("wrong password for user %v", w.Username)
}

func (e EmailNotPreauthorized) Error() string {
	return fmt.Sprintf("email %v is not pre-authorized to register", e.Email)
}

func (m MalformedInput) Error() string {
	return fmt.Sprintf("invalid %v: %v", m.Field, m.Reason)
}
