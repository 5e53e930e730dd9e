package repo

import "fmt"

// The user-error types below are caller-correctable and carry the offending
// value so handlers can render a legible 4xx. Store failures stay plain
// wrapped errors and map to 500s.

// DuplicatePrefixError means the user already has a dogear with this
// (normalized) prefix.
type DuplicatePrefixError struct {
	Prefix string
}

func (e *DuplicatePrefixError) Error() string {
	return fmt.Sprintf("you already have a dogear for the prefix %q", e.Prefix)
}

// PrefixMismatchError means the supplied current URL doesn't sit under the
// supplied prefix.
type PrefixMismatchError struct {
	Prefix  string
	Current string
}

func (e *PrefixMismatchError) Error() string {
	return fmt.Sprintf("the URL %q doesn't match the prefix %q", e.Current, e.Prefix)
}

// BadUsernameError means the requested username fails the allowed shape.
type BadUsernameError struct {
	Username string
}

func (e *BadUsernameError) Error() string {
	return fmt.Sprintf("can't use %q as a username: usernames can only use letters, numbers, hyphens (-), and underscores (_), and can't be longer than 80 characters", e.Username)
}

// DuplicateUsernameError means the username is taken.
type DuplicateUsernameError struct {
	Username string
}

func (e *DuplicateUsernameError) Error() string {
	return fmt.Sprintf("the username %q is already taken", e.Username)
}

// PasswordError covers the small set of password-shape complaints.
type PasswordError struct {
	Reason string
}

func (e *PasswordError) Error() string { return e.Reason }

var (
	errEmptyPassword      = &PasswordError{Reason: "empty password isn't allowed"}
	errPasswordsDontMatch = &PasswordError{Reason: "new passwords didn't match"}
	errWrongPassword      = &PasswordError{Reason: "old password was wrong"}
)
