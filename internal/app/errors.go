package app

import (
	"errors"

	"learnai/pkg/auth"
)

var (
	ErrEmailAndPasswordRequired = errors.New("email and password required")
	// ErrPasswordTooShort is returned by SignUp when the password fails auth.ValidatePassword.
	ErrPasswordTooShort   = auth.ErrPasswordTooShort
	ErrEmailAlreadyExists = errors.New("email already exists")
	// ErrInvalidCredentials covers both an unknown email and a wrong password.
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidMembership  = errors.New("invalid membership tier")

	ErrMissingOnboardingFields = errors.New("missing userId or answers")
	ErrProfileNotFound         = errors.New("profile not found")

	ErrMissingSessionFields = errors.New("missing userId or topic")
	ErrSessionNotFound      = errors.New("session not found")
	ErrMissingMessage       = errors.New("missing message")
	// ErrUpstream indicates the language model call failed; the user turn is kept.
	ErrUpstream = errors.New("tutor response failed")

	ErrMissingUploadFields = errors.New("missing required fields")
	ErrInvalidUpload       = errors.New("invalid upload")
)
