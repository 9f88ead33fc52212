package notifications

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"net/http"
	"strings"
	"sync"
	"time"

	"did_alerts/internal/retry"

	"github.com/rs/zerolog/log"
)

const maxClientsInMessage = 10

// Client posts plain-text messages to an ntfy topic.
type Client struct {
	httpClient *http.Client
	baseURL    string
	topic      string
	enabled    bool
	priority   string
	retry      retry.Config

	mutex        sync.Mutex
	totalSent    int64
	totalFailed  int64
	totalRetries int64
}

// ClientAlert is one client's line in a report notification.
type ClientAlert struct {
	Client       string
	Quantity     int
	Total        string
	DaysToTarget int
}

type NotificationError struct {
	Type       string
	StatusCode int
	Attempt    int
	Underlying error
}

func (e *NotificationError) Error() string {
	return fmt.Sprintf("notification failed [%s] attempt %d: %v", e.Type, e.Attempt, e.Underlying)
}

func (e *NotificationError) Unwrap() error {
	return e.Underlying
}

func (e *NotificationError) IsRetryable() bool {
	switch e.Type {
	case "network", "server", "timeout", "rate_limit":
		return true
	case "auth", "client":
		return false
	default:
		return e.StatusCode >= 500
	}
}

func NewClient(baseURL, topic string, enabled bool, priority string, retryConfig retry.Config) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: retryConfig.Timeout,
		},
		baseURL:  strings.TrimRight(baseURL, "/"),
		topic:    topic,
		enabled:  enabled,
		priority: priority,
		retry:    retryConfig,
	}
}

func (c *Client) Enabled() bool {
	return c.enabled
}

// SendNotification posts message with title, retrying network, server and
// rate limit failures with exponential backoff.
func (c *Client) SendNotification(ctx context.Context, title, message string) error {
	if !c.enabled {
		log.Debug().Msg("Notifications disabled, skipping")
		return nil
	}

	var lastErr error
	for attempt := 0; attempt <= c.retry.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := c.calculateBackoff(attempt)
			log.Debug().
				Int("attempt", attempt).
				Dur("delay", delay).
				Msg("Retrying notification after delay")

			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
			c.incrementRetries()
		}

		err := c.sendSingleNotification(ctx, title, message, attempt+1)
		if err == nil {
			c.recordSuccess()
			return nil
		}
		lastErr = err

		var notifErr *NotificationError
		if errors.As(err, &notifErr) && !notifErr.IsRetryable() {
			log.Warn().
				Err(err).
				Int("attempt", attempt+1).
				Msg("Non-retryable error, giving up")
			c.recordFailure()
			return err
		}

		log.Warn().
			Err(err).
			Int("attempt", attempt+1).
			Int("max_retries", c.retry.MaxRetries).
			Msg("Notification attempt failed")
	}

	c.recordFailure()
	return &NotificationError{
		Type:       "max_retries_exceeded",
		Attempt:    c.retry.MaxRetries + 1,
		Underlying: lastErr,
	}
}

func (c *Client) sendSingleNotification(ctx context.Context, title, message string, attempt int) error {
	url := fmt.Sprintf("%s/%s", c.baseURL, c.topic)

	log.Debug().
		Str("url", url).
		Int("attempt", attempt).
		Msg("Sending notification")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBufferString(message))
	if err != nil {
		return &NotificationError{Type: "client", Attempt: attempt, Underlying: err}
	}

	req.Header.Set("Content-Type", "text/plain")
	if title != "" {
		req.Header.Set("Title", title)
	}
	if c.priority != "" {
		req.Header.Set("Priority", c.priority)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &NotificationError{Type: "network", Attempt: attempt, Underlying: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return &NotificationError{
			Type:       categorizeHTTPError(resp.StatusCode),
			StatusCode: resp.StatusCode,
			Attempt:    attempt,
			Underlying: fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status),
		}
	}

	log.Debug().
		Int("status_code", resp.StatusCode).
		Int("attempt", attempt).
		Msg("Notification sent successfully")
	return nil
}

// NotifyReport sends one message summarising the clients due on targetDay.
// Nothing is sent when alerts is empty.
func (c *Client) NotifyReport(ctx context.Context, targetDay int, alerts []ClientAlert) error {
	if !c.enabled {
		return nil
	}
	if len(alerts) == 0 {
		log.Debug().Int("day", targetDay).Msg("No clients to notify about")
		return nil
	}

	log.Info().
		Int("day", targetDay).
		Int("clients", len(alerts)).
		Msg("Sending report notification")

	return c.SendNotification(ctx, formatTitle(targetDay, alerts), formatBatchMessage(alerts))
}

func formatTitle(targetDay int, alerts []ClientAlert) string {
	if len(alerts) == 1 {
		return fmt.Sprintf("DID billing day %d: 1 client", targetDay)
	}
	return fmt.Sprintf("DID billing day %d: %d clients", targetDay, len(alerts))
}

func formatBatchMessage(alerts []ClientAlert) string {
	var sb strings.Builder

	shown := min(len(alerts), maxClientsInMessage)
	for _, a := range alerts[:shown] {
		fmt.Fprintf(&sb, "• %s: %d DIDs, $%s, %s\n", a.Client, a.Quantity, a.Total, dueText(a.DaysToTarget))
	}
	if remaining := len(alerts) - shown; remaining > 0 {
		fmt.Fprintf(&sb, "... and %d more clients\n", remaining)
	}

	return strings.TrimSuffix(sb.String(), "\n")
}

func dueText(days int) string {
	switch {
	case days == 0:
		return "due today"
	case days == 1:
		return "due tomorrow"
	case days > 1:
		return fmt.Sprintf("due in %d days", days)
	case days == -1:
		return "1 day ago"
	default:
		return fmt.Sprintf("%d days ago", -days)
	}
}

func (c *Client) recordSuccess() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.totalSent++
}

func (c *Client) recordFailure() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.totalFailed++
}

func (c *Client) incrementRetries() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.totalRetries++
}

func (c *Client) calculateBackoff(attempt int) time.Duration {
	base := float64(c.retry.BaseDelay)
	backoff := base * math.Pow(2, float64(attempt-1))

	// ±25% jitter
	jitter := rand.Float64()*0.5 - 0.25
	backoff = backoff * (1 + jitter)

	if maxBackoff := float64(c.retry.MaxDelay); backoff > maxBackoff {
		backoff = maxBackoff
	}
	return time.Duration(backoff)
}

func categorizeHTTPError(statusCode int) string {
	switch {
	case statusCode == 401 || statusCode == 403:
		return "auth"
	case statusCode == 429:
		return "rate_limit"
	case statusCode >= 400 && statusCode < 500:
		return "client"
	case statusCode >= 500:
		return "server"
	default:
		return "unknown"
	}
}

// GetMetrics returns current notification metrics
func (c *Client) GetMetrics() (sent, failed, retries int64) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.totalSent, c.totalFailed, c.totalRetries
}
