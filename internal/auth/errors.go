package auth

import (
	"chatroom/backend/internal/localization"
	"fmt"
)

// Kind is a user-readable cause of an authentication failure.
type Kind int

const (
	Other Kind = iota
	InvalidEmail
	WrongPassword
	UserNotFound
	NetworkError
	EmailNotVerified
	EmailInUse
	WeakPassword
	InvalidToken
)

func (k Kind) String() string {
	switch k {
	case InvalidEmail:
		return "invalid_email"
	case WrongPassword:
		return "wrong_password"
	case UserNotFound:
		return "user_not_found"
	case NetworkError:
		return "network_error"
	case EmailNotVerified:
		return "email_not_verified"
	case EmailInUse:
		return "email_in_use"
	case WeakPassword:
		return "weak_password"
	case InvalidToken:
		return "invalid_token"
	}
	return "other"
}

// MessageKey returns the localization key of the message shown to the user.
func (k Kind) MessageKey() string {
	switch k {
	case InvalidEmail:
		return localization.KeyAuthInvalidEmail
	case WrongPassword:
		return localization.KeyAuthWrongPassword
	case UserNotFound:
		return localization.KeyAuthUserNotFound
	case NetworkError:
		return localization.KeyAuthNetworkError
	case EmailNotVerified:
		return localization.KeyAuthEmailNotVerified
	case EmailInUse:
		return localization.KeyAuthEmailInUse
	case WeakPassword:
		return localization.KeyAuthWeakPassword
	case InvalidToken:
		return localization.KeyAuthInvalidToken
	}
	return localization.KeyAuthOther
}

// Error is a typed authentication failure.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return "auth: " + e.Kind.String()
	}
	return fmt.Sprintf("auth: %s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error of the same Kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

func fail(kind Kind, err error) error {
	return &Error{Kind: kind, Err: err}
}

// Sentinels for errors.Is.
var (
	ErrInvalidEmail     = &Error{Kind: InvalidEmail}
	ErrWrongPassword    = &Error{Kind: WrongPassword}
	ErrUserNotFound     = &Error{Kind: UserNotFound}
	ErrNetwork          = &Error{Kind: NetworkError}
	ErrEmailNotVerified = &Error{Kind: EmailNotVerified}
	ErrEmailInUse       = &Error{Kind: EmailInUse}
	ErrWeakPassword     = &Error{Kind: WeakPassword}
	ErrInvalidToken     = &Error{Kind: InvalidToken}
)
