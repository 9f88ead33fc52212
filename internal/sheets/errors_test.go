package sheets

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"testing"

	"google.golang.org/api/googleapi"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		kind      Kind
		retryable bool
		fatal     bool
	}{
		{"rate limit", &googleapi.Error{Code: http.StatusTooManyRequests}, KindRateLimit, true, false},
		{"quota 403", &googleapi.Error{Code: http.StatusForbidden, Errors: []googleapi.ErrorItem{{Reason: "rateLimitExceeded"}}}, KindRateLimit, true, false},
		{"not found", &googleapi.Error{Code: http.StatusNotFound}, KindNotFound, false, true},
		{"forbidden", &googleapi.Error{Code: http.StatusForbidden}, KindAuth, false, true},
		{"unauthorized", &googleapi.Error{Code: http.StatusUnauthorized}, KindAuth, false, true},
		{"server error", &googleapi.Error{Code: http.StatusBadGateway}, KindConnection, true, false},
		{"bad request", &googleapi.Error{Code: http.StatusBadRequest}, KindRequest, false, false},
		{"wrapped network", fmt.Errorf("dial: %w", errors.New("connection refused")), KindConnection, true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := classify("read sheet", "Acme", tt.err)
			var sErr *Error
			if !errors.As(err, &sErr) {
				t.Fatalf("Expected *Error, got %T", err)
			}
			if sErr.Kind != tt.kind {
				t.Errorf("Expected kind %s, got %s", tt.kind, sErr.Kind)
			}
			if sErr.IsRetryable() != tt.retryable {
				t.Errorf("Expected retryable %v, got %v", tt.retryable, sErr.IsRetryable())
			}
			if IsFatal(err) != tt.fatal {
				t.Errorf("Expected fatal %v, got %v", tt.fatal, IsFatal(err))
			}
			if !errors.Is(err, tt.err) {
				t.Error("Expected underlying error to be reachable")
			}
		})
	}
}

func TestClassifyKeepsCancellation(t *testing.T) {
	err := classify("read sheet", "Acme", fmt.Errorf("do: %w", context.Canceled))
	var sErr *Error
	if errors.As(err, &sErr) {
		t.Errorf("Expected cancellation to pass through, got %v", err)
	}
}

func TestErrorMessage(t *testing.T) {
	err := &Error{Kind: KindNotFound, Op: "list sheets", Target: "abc", StatusCode: 404, Underlying: errors.New("missing")}
	if !strings.Contains(err.Error(), "HTTP 404") || !strings.Contains(err.Error(), "not_found") {
		t.Errorf("Unexpected message %q", err.Error())
	}
}

func TestHint(t *testing.T) {
	if Hint(&Error{Kind: KindCredentials}) == "" {
		t.Error("Expected hint for missing credentials")
	}
	if Hint(errors.New("other")) != "" {
		t.Error("Expected no hint for unrelated errors")
	}
}

func TestNewClientMissingCredentials(t *testing.T) {
	_, err := NewClient(context.Background(), filepath.Join(t.TempDir(), "missing.json"))
	var sErr *Error
	if !errors.As(err, &sErr) {
		t.Fatalf("Expected *Error, got %v", err)
	}
	if sErr.Kind != KindCredentials {
		t.Errorf("Expected kind %s, got %s", KindCredentials, sErr.Kind)
	}
	if !IsFatal(err) {
		t.Error("Expected missing credentials to be fatal")
	}
}
