package slack

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/slack-go/slack"

	"github.com/prite36/smart-irrigation/internal/models"
)

type fakePoster struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (p *fakePoster) PostMessage(channelID string, options ...slack.MsgOption) (string, string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	return channelID, "1700000000.000100", p.err
}

func TestIsRateLimitError(t *testing.T) {
	client := &Client{}

	testCases := []struct {
		name     string
		err      error
		expected bool
	}{
		{
			name:     "message_limit_exceeded error",
			err:      errors.New("message_limit_exceeded"),
			expected: true,
		},
		{
			name:     "rate_limited error",
			err:      errors.New("rate_limited"),
			expected: true,
		},
		{
			name:     "typed rate limit error",
			err:      &slack.RateLimitedError{RetryAfter: 30 * time.Second},
			expected: true,
		},
		{
			name:     "other error",
			err:      errors.New("some other error"),
			expected: false,
		},
		{
			name:     "case insensitive",
			err:      errors.New("MESSAGE_LIMIT_EXCEEDED"),
			expected: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			result := client.isRateLimitError(tc.err)
			if result != tc.expected {
				t.Errorf("Expected %v, got %v for error: %v", tc.expected, result, tc.err)
			}
		})
	}
}

func TestHandleRateLimit(t *testing.T) {
	base := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

	testCases := []struct {
		name     string
		err      error
		expected time.Duration
	}{
		{"message limit gets longer backoff", errors.New("message_limit_exceeded"), 5 * time.Minute},
		{"rate limited", errors.New("rate_limited"), 1 * time.Minute},
		{"retry after from slack", &slack.RateLimitedError{RetryAfter: 42 * time.Second}, 42 * time.Second},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			client := newClient(&fakePoster{}, "C123")
			client.now = func() time.Time { return base }

			client.handleRateLimit(tc.err)

			if got := client.suppressUntil.Sub(base); got != tc.expected {
				t.Errorf("Expected %v backoff, got %v", tc.expected, got)
			}
		})
	}
}

func TestIsRateLimited(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	client := newClient(&fakePoster{}, "C123")
	client.now = func() time.Time { return now }

	if client.IsRateLimited() {
		t.Error("Expected client to not be rate limited initially")
	}

	client.handleRateLimit(errors.New("rate_limited"))
	if !client.IsRateLimited() {
		t.Error("Expected client to be rate limited after a rate limit error")
	}

	now = now.Add(2 * time.Minute)
	if client.IsRateLimited() {
		t.Error("Expected client to not be rate limited after the backoff elapsed")
	}
}

func TestSendRichMessageSuppressedWhileRateLimited(t *testing.T) {
	api := &fakePoster{err: errors.New("rate_limited")}
	client := newClient(api, "C123")

	if client.SendMessage("first") {
		t.Fatal("Expected first send to fail")
	}
	if client.SendMessage("second") {
		t.Fatal("Expected second send to be suppressed")
	}
	if api.calls != 1 {
		t.Errorf("Expected 1 call to Slack, got %d", api.calls)
	}
}

func TestBreakerOpensAfterRepeatedFailures(t *testing.T) {
	api := &fakePoster{err: errors.New("channel_not_found")}
	client := newClient(api, "C123")

	for i := 0; i < breakerFailThreshold+2; i++ {
		client.SendMessage("pump started")
	}
	if api.calls != breakerFailThreshold {
		t.Errorf("Expected %d calls before the breaker opened, got %d", breakerFailThreshold, api.calls)
	}
}

func TestNilClientDropsMessages(t *testing.T) {
	var client *Client
	if client.SendMessage("hello") {
		t.Error("Expected nil client to drop the message")
	}
	client.Record(models.LogEntry{Action: models.ActionManualStop})
}

func TestActionBlocks(t *testing.T) {
	moisture := 18.0
	blocks := actionBlocks(models.LogEntry{
		Timestamp:    time.Date(2025, 1, 1, 6, 0, 0, 0, time.UTC),
		Action:       models.ActionResumedAfterRain,
		Duration:     5,
		Reason:       "Even after rain, soil needs water. Current moisture: 18%",
		SoilMoisture: &moisture,
	})

	if len(blocks) != 3 {
		t.Fatalf("Expected 3 blocks, got %d", len(blocks))
	}
	section, ok := blocks[1].(*slack.SectionBlock)
	if !ok {
		t.Fatalf("Expected section block, got %T", blocks[1])
	}
	if len(section.Fields) != 4 {
		t.Errorf("Expected 4 fields, got %d", len(section.Fields))
	}

	stop := actionBlocks(models.LogEntry{Action: models.ActionManualStop})
	if len(stop) != 2 {
		t.Errorf("Expected 2 blocks without a reason, got %d", len(stop))
	}
}
