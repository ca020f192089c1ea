package account

import (
	"errors"
	"fmt"
)

var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrInvalid      = errors.New("invalid account data")
	ErrUnavailable  = errors.New("accounts are unavailable")
)

var (
	ErrInvalidCredentials = fmt.Errorf("invalid username or password: %w", ErrUnauthorized)
	ErrInvalidToken       = fmt.Errorf("invalid or expired token: %w", ErrUnauthorized)
	ErrInvalidUsername    = fmt.Errorf("username must be 3-32 characters of a-z, 0-9, '.', '_' or '-': %w", ErrInvalid)
	ErrInvalidPassword    = fmt.Errorf("password must be 6-128 characters: %w", ErrInvalid)
	ErrUsernameTaken      = fmt.Errorf("username already taken: %w", ErrInvalid)
)
