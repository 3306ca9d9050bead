package llm

import (
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/togpt/togpt/internal/i18n"
)

// Kind classifies adapter failures for callers.
type Kind int

const (
	KindValidation Kind = iota + 1
	KindTransient
	KindTerminal
	KindContinuation
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindTransient:
		return "transient"
	case KindTerminal:
		return "terminal"
	case KindContinuation:
		return "continuation"
	default:
		return "unknown"
	}
}

// Category is the cause of a provider failure.
type Category int

const (
	CategoryUnknown Category = iota
	CategoryNetwork
	CategoryInvalidArgument
	CategoryRateLimited
	CategoryUnauthorized
	CategoryServer
)

// Error is returned by Adapter operations. Message is user-facing and
// already localized.
type Error struct {
	Kind     Kind
	Category Category
	Message  string
	Err      error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches the kind sentinels below.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Message == "" && t.Err == nil && t.Kind == e.Kind
}

var (
	ErrValidation   = &Error{Kind: KindValidation}
	ErrTransient    = &Error{Kind: KindTransient}
	ErrTerminal     = &Error{Kind: KindTerminal}
	ErrContinuation = &Error{Kind: KindContinuation}
)

// StatusError is a provider failure carrying the backend's HTTP status and
// status code string (e.g. "INVALID_ARGUMENT").
type StatusError struct {
	Provider   string
	StatusCode int
	Code       string
	Err        error
}

func (e *StatusError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: %d %s: %v", e.Provider, e.StatusCode, e.Code, e.Err)
	}
	return fmt.Sprintf("%s: %d: %v", e.Provider, e.StatusCode, e.Err)
}

func (e *StatusError) Unwrap() error { return e.Err }

var errEmptyResponse = errors.New("empty response")

// Categorize inspects a provider error.
func Categorize(err error) Category {
	if err == nil {
		return CategoryUnknown
	}
	var se *StatusError
	if errors.As(err, &se) {
		switch {
		case se.Code == "INVALID_ARGUMENT" || se.StatusCode == 400:
			return CategoryInvalidArgument
		case se.StatusCode == 429 || se.Code == "RESOURCE_EXHAUSTED":
			return CategoryRateLimited
		case se.StatusCode == 401 || se.StatusCode == 403:
			return CategoryUnauthorized
		case se.StatusCode >= 500:
			return CategoryServer
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return CategoryNetwork
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return CategoryNetwork
	}
	msg := strings.ToLower(err.Error())
	for _, hint := range []string{"connection refused", "connection reset", "no such host", "network", "failed to fetch"} {
		if strings.Contains(msg, hint) {
			return CategoryNetwork
		}
	}
	return CategoryUnknown
}

// retryable reports whether another attempt could succeed.
func (c Category) retryable() bool {
	return c != CategoryInvalidArgument && c != CategoryUnauthorized
}

func (c Category) message(language string) string {
	switch c {
	case CategoryNetwork:
		return i18n.T(language, i18n.NetworkError)
	case CategoryInvalidArgument:
		return i18n.T(language, i18n.InvalidRequest)
	case CategoryRateLimited:
		return i18n.T(language, i18n.RateLimited)
	case CategoryUnauthorized:
		return i18n.T(language, i18n.Unauthorized)
	case CategoryServer:
		return i18n.T(language, i18n.ServerError)
	default:
		return i18n.T(language, i18n.ServiceDown)
	}
}
