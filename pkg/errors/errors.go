package errors

import (
	stdErrors "errors"
	"fmt"
)

// New returns an error with the given message.
func New(msg string) error {
	return stdErrors.New(msg)
}

// Is is the standard library's errors.Is.
func Is(err, target error) bool {
	return stdErrors.Is(err, target)
}

// As is the standard library's errors.As.
func As(err error, target interface{}) bool {
	return stdErrors.As(err, target)
}

// Join is the standard library's errors.Join.
func Join(errs ...error) error {
	return stdErrors.Join(errs...)
}

// contextError annotates an error with a description of what was being done
// when it occurred.
type contextError struct {
	context string
	err     error
}

// WithContext wraps `err` with `context`. A nil error stays nil so callers
// can wrap unconditionally.
func WithContext(err error, context string) error {
	if err == nil {
		return nil
	}
	return contextError{context: context, err: err}
}

func (err contextError) Error() string {
	return fmt.Sprintf("%s: %s", err.context, err.err)
}

func (err contextError) Unwrap() error {
	return err.err
}

// FriendlyError is an error whose message is meant to be shown to users
// directly, without the chain of contexts that led to it.
type FriendlyError struct {
	msg string
}

// NewFriendlyError formats a user facing error.
func NewFriendlyError(template string, args ...interface{}) error {
	return FriendlyError{msg: fmt.Sprintf(template, args...)}
}

func (err FriendlyError) Error() string {
	return err.msg
}

// FriendlyMessage returns the message to show to the user.
func (err FriendlyError) FriendlyMessage() string {
	return err.msg
}

type friendlyMessager interface {
	FriendlyMessage() string
}

// GetPrintableMessage returns the message that should be printed for `err`.
// If any error in the chain has a friendly message, that's preferred over
// the full context chain.
func GetPrintableMessage(err error) string {
	var friendly friendlyMessager
	if As(err, &friendly) {
		return friendly.FriendlyMessage()
	}
	return err.Error()
}
