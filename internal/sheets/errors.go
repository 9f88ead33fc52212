package sheets

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/api/googleapi"
)

type Kind string

const (
	KindCredentials Kind = "credentials_not_found"
	KindNotFound    Kind = "not_found"
	KindAuth        Kind = "auth"
	KindRateLimit   Kind = "rate_limited"
	KindConnection  Kind = "connection"
	KindRequest     Kind = "request"
)

// Error describes a failed spreadsheet call.
type Error struct {
	Kind       Kind
	Op         string
	Target     string
	StatusCode int
	Underlying error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s %s: %s (HTTP %d): %v", e.Op, e.Target, e.Kind, e.StatusCode, e.Underlying)
	}
	return fmt.Sprintf("%s %s: %s: %v", e.Op, e.Target, e.Kind, e.Underlying)
}

func (e *Error) Unwrap() error {
	return e.Underlying
}

// IsRetryable reports whether trying the same call again may succeed.
func (e *Error) IsRetryable() bool {
	return e.Kind == KindRateLimit || e.Kind == KindConnection
}

// IsFatal reports whether err means the spreadsheet cannot be used at all:
// missing credentials, a missing spreadsheet, or rejected access.
func IsFatal(err error) bool {
	var sErr *Error
	if !errors.As(err, &sErr) {
		return false
	}
	switch sErr.Kind {
	case KindCredentials, KindNotFound, KindAuth:
		return true
	}
	return false
}

// Hint suggests a fix for fatal errors.
func Hint(err error) string {
	var sErr *Error
	if !errors.As(err, &sErr) {
		return ""
	}
	switch sErr.Kind {
	case KindCredentials:
		return "set GOOGLE_CREDENTIALS_FILE to the service account key file"
	case KindNotFound:
		return "check SPREADSHEET_ID and that the sheet is shared with the service account"
	case KindAuth:
		return "share the spreadsheet with the service account email and check the key is valid"
	case KindRateLimit:
		return "wait a minute or raise FETCH_DELAY"
	}
	return ""
}

func classify(op, target string, err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}

	sErr := &Error{Kind: KindConnection, Op: op, Target: target, Underlying: err}

	var gErr *googleapi.Error
	if errors.As(err, &gErr) {
		sErr.StatusCode = gErr.Code
		switch {
		case gErr.Code == http.StatusTooManyRequests || rateLimitReason(gErr):
			sErr.Kind = KindRateLimit
		case gErr.Code == http.StatusNotFound:
			sErr.Kind = KindNotFound
		case gErr.Code == http.StatusUnauthorized || gErr.Code == http.StatusForbidden:
			sErr.Kind = KindAuth
		case gErr.Code >= 500:
			sErr.Kind = KindConnection
		case gErr.Code >= 400:
			sErr.Kind = KindRequest
		}
	}
	return sErr
}

// Older quota errors arrive as 403 with a rate limit reason.
func rateLimitReason(gErr *googleapi.Error) bool {
	for _, item := range gErr.Errors {
		if item.Reason == "rateLimitExceeded" || item.Reason == "userRateLimitExceeded" {
			return true
		}
	}
	return false
}
