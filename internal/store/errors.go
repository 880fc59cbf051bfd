package store

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrUnknownCollection = errors.New("unknown collection")
	ErrUnknownColumn     = errors.New("unknown column")
	ErrInvalidQuery      = errors.New("invalid query")
)

// Codes reported by the remote store. The SQL codes follow PostgreSQL's SQLSTATE.
const (
	CodeUniqueViolation     = "23505"
	CodeForeignKeyViolation = "23503"
	CodeStaleRead           = "PGRST301"
	CodeUnauthorized        = "PGRST302"
	CodeNetwork             = "NETWORK"
)

// Error is a structured failure returned by a [Store].
type Error struct {
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Code == "" {
		return e.Message
	}
	return fmt.Sprintf("%s (code %s)", e.Message, e.Code)
}

func (e *Error) Unwrap() error { return e.Err }

// NewError builds an [*Error] with the given code.
func NewError(code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// ErrorKind is the store-independent classification of a failure.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindUniqueViolation
	KindForeignKeyViolation
	KindStaleRead
	KindUnauthorized
	KindNetwork
	KindCanceled
)

func (k ErrorKind) String() string {
	switch k {
	case KindUniqueViolation:
		return "unique_violation"
	case KindForeignKeyViolation:
		return "foreign_key_violation"
	case KindStaleRead:
		return "stale_read"
	case KindUnauthorized:
		return "unauthorized"
	case KindNetwork:
		return "network"
	case KindCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// KindOf maps an error onto an [ErrorKind]. This is the only place that knows store codes.
func KindOf(err error) ErrorKind {
	if err == nil {
		return KindUnknown
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return KindCanceled
	}

	var se *Error
	if !errors.As(err, &se) {
		return KindUnknown
	}

	switch se.Code {
	case CodeUniqueViolation:
		return KindUniqueViolation
	case CodeForeignKeyViolation:
		return KindForeignKeyViolation
	case CodeStaleRead:
		return KindStaleRead
	case CodeUnauthorized:
		return KindUnauthorized
	case CodeNetwork:
		return KindNetwork
	default:
		return KindUnknown
	}
}
