package auth

import "errors"

var (
	ErrNotFound           = errors.New("auth: not found")
	ErrAlreadyExists      = errors.New("auth: already exists")
	ErrInvalidInput       = errors.New("auth: invalid input")
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	ErrAccountArchived    = errors.New("auth: account archived")
)

// ErrInvalidToken indicates a bearer or refresh token failed validation.
var ErrInvalidToken = errors.New("auth: invalid token")
