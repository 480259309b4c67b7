package todos

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies service failures for the API layer.
type Kind uint8

const (
	KindValidation Kind = iota + 1
	KindNotFound
	KindStore
)

var (
	ErrValidation = errors.New("validation error")
	ErrNotFound   = errors.New("todo not found")
	ErrStore      = errors.New("store error")
)

func (k Kind) sentinel() error {
	switch k {
	case KindValidation:
		return ErrValidation
	case KindNotFound:
		return ErrNotFound
	default:
		return ErrStore
	}
}

// Status is the HTTP status the kind maps to.
func (k Kind) Status() int {
	switch k {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// Error carries a client-safe Message. Err is the underlying cause, if any.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	return target == e.Kind.sentinel()
}

func validationf(format string, args ...any) error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func notFound() error {
	return &Error{Kind: KindNotFound, Message: "Todo not found"}
}

// storeErr classifies an error coming back from the store.
func storeErr(op string, err error) error {
	if errors.Is(err, ErrNotFound) {
		return notFound()
	}
	return &Error{Kind: KindStore, Message: "Server error", Err: fmt.Errorf("%s: %w", op, err)}
}

// KindOf returns the kind of err, treating unknown errors as store failures.
func KindOf(err error) Kind {
	var te *Error
	if errors.As(err, &te) {
		return te.Kind
	}
	return KindStore
}
