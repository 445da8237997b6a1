package domain

import "errors"

var (
	ErrUserNotFound    = errors.New("user_not_found")
	ErrEmailTaken      = errors.New("email_taken")
	ErrUsernameTaken   = errors.New("username_taken")
	ErrInvalidUsername = errors.New("invalid_username")
)
