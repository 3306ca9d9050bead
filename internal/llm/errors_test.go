package llm

import (
	"errors"
	"fmt"
	"net"
	"testing"
)

func TestCategorize(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Category
	}{
		{"invalid argument code", &StatusError{StatusCode: 400, Code: "INVALID_ARGUMENT"}, CategoryInvalidArgument},
		{"bad request", &StatusError{StatusCode: 400}, CategoryInvalidArgument},
		{"rate limited", &StatusError{StatusCode: 429}, CategoryRateLimited},
		{"unauthorized", &StatusError{StatusCode: 401}, CategoryUnauthorized},
		{"forbidden", &StatusError{StatusCode: 403}, CategoryUnauthorized},
		{"server", &StatusError{StatusCode: 502}, CategoryServer},
		{"wrapped status", fmt.Errorf("stream: %w", &StatusError{StatusCode: 503}), CategoryServer},
		{"dial error", &net.OpError{Op: "dial", Err: errors.New("refused")}, CategoryNetwork},
		{"network text", errors.New("Failed to fetch"), CategoryNetwork},
		{"unknown", errors.New("something odd"), CategoryUnknown},
		{"nil", nil, CategoryUnknown},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := Categorize(tc.err); got != tc.want {
				t.Errorf("Categorize(%v)=%v, want %v", tc.err, got, tc.want)
			}
		})
	}
}

func TestCategoryMessages(t *testing.T) {
	tests := []struct {
		c    Category
		lang string
		want string
	}{
		{CategoryNetwork, "auto", "Bağlantı hatası. İnternet bağlantınızı kontrol edip tekrar deneyin."},
		{CategoryRateLimited, "tr", "Çok fazla istek gönderildi. Lütfen biraz bekleyip tekrar deneyin."},
		{CategoryServer, "tr", "Sunucu hatası. Lütfen daha sonra tekrar deneyin."},
		{CategoryUnknown, "tr", "Şu anda AI servisi yanıt vermiyor. Lütfen daha sonra tekrar deneyin."},
		{CategoryUnauthorized, "en", "Authorization error. Please try again later."},
	}
	for _, tc := range tests {
		if got := tc.c.message(tc.lang); got != tc.want {
			t.Errorf("message(%v, %s)=%q, want %q", tc.c, tc.lang, got, tc.want)
		}
	}
}

func TestErrorIsKind(t *testing.T) {
	cause := errors.New("cause")
	err := fmt.Errorf("wrapped: %w", &Error{Kind: KindTerminal, Message: "msg", Err: cause})
	if !errors.Is(err, ErrTerminal) {
		t.Error("expected ErrTerminal match")
	}
	if errors.Is(err, ErrTransient) {
		t.Error("unexpected ErrTransient match")
	}
	if !errors.Is(err, cause) {
		t.Error("cause should be reachable")
	}
}

func TestRetryable(t *testing.T) {
	for c, want := range map[Category]bool{
		CategoryUnknown:         true,
		CategoryNetwork:         true,
		CategoryRateLimited:     true,
		CategoryServer:          true,
		CategoryInvalidArgument: false,
		CategoryUnauthorized:    false,
	} {
		if got := c.retryable(); got != want {
			t.Errorf("%v.retryable()=%v, want %v", c, got, want)
		}
	}
}
