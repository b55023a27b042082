package slack

import (
	"errors"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/slack-go/slack"
	"github.com/sony/gobreaker"

	"github.com/prite36/smart-irrigation/internal/models"
)

const (
	rateLimitBackoff     = 1 * time.Minute
	messageLimitBackoff  = 5 * time.Minute
	breakerOpenTimeout   = 2 * time.Minute
	breakerFailThreshold = 3
)

type poster interface {
	PostMessage(channelID string, options ...slack.MsgOption) (string, string, error)
}

// Client posts irrigation notifications to a Slack channel. Repeated
// failures open a circuit breaker so an unreachable Slack is not retried on
// every action.
type Client struct {
	api       poster
	channelID string
	breaker   *gobreaker.CircuitBreaker

	mu            sync.Mutex
	suppressUntil time.Time
	now           func() time.Time
}

// NewClient returns nil when Slack is not configured; a nil Client drops
// every message.
func NewClient(token, channelID string) *Client {
	if token == "" || channelID == "" {
		log.Println("[INFO] Slack token or channel ID is not configured. Slack notifications will be disabled.")
		return nil
	}
	return newClient(slack.New(token), channelID)
}

func newClient(api poster, channelID string) *Client {
	return &Client{
		api:       api,
		channelID: channelID,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "slack",
			Timeout: breakerOpenTimeout,
			ReadyToTrip: func(c gobreaker.Counts) bool {
				return c.ConsecutiveFailures >= breakerFailThreshold
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				log.Printf("[WARN] Slack circuit breaker %s -> %s", from, to)
			},
		}),
		now: time.Now,
	}
}

// Record implements irrigationlog.Sink. Posting happens in the background.
func (c *Client) Record(entry models.LogEntry) {
	if c == nil {
		return
	}
	go c.SendRichMessage(ActionMessage(entry))
}

// SendMessage sends a plain text message wrapped as an info block.
func (c *Client) SendMessage(message string) bool {
	return c.SendRichMessage(NewInfoMessage("Irrigation Notification", message))
}

// SendRichMessage posts block kit options and reports whether Slack accepted them.
func (c *Client) SendRichMessage(options slack.MsgOption) bool {
	if c == nil || c.api == nil {
		return false
	}
	if c.IsRateLimited() {
		log.Println("[WARN] Skipping Slack message due to rate limit backoff")
		return false
	}

	_, err := c.breaker.Execute(func() (interface{}, error) {
		_, _, err := c.api.PostMessage(c.channelID, options)
		return nil, err
	})
	if err == nil {
		return true
	}

	if c.isRateLimitError(err) {
		c.handleRateLimit(err)
	} else {
		log.Printf("[ERROR] Failed to send Slack message: %v", err)
	}
	return false
}

func (c *Client) isRateLimitError(err error) bool {
	var rateLimited *slack.RateLimitedError
	if errors.As(err, &rateLimited) {
		return true
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "rate_limited") ||
		strings.Contains(errStr, "message_limit_exceeded") ||
		strings.Contains(errStr, "too_many_requests")
}

func (c *Client) handleRateLimit(err error) {
	backoff := rateLimitBackoff

	var rateLimited *slack.RateLimitedError
	switch {
	case errors.As(err, &rateLimited) && rateLimited.RetryAfter > 0:
		backoff = rateLimited.RetryAfter
	case strings.Contains(strings.ToLower(err.Error()), "message_limit_exceeded"):
		backoff = messageLimitBackoff
	}

	c.mu.Lock()
	c.suppressUntil = c.now().Add(backoff)
	c.mu.Unlock()
	log.Printf("[WARN] Slack rate limit detected (%v). Messages will be suppressed for %v", err, backoff)
}

// IsRateLimited reports whether messages are currently being suppressed.
func (c *Client) IsRateLimited() bool {
	if c == nil {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now().Before(c.suppressUntil)
}
