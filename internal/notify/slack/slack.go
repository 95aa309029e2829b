// Package slack posts emergency change notifications to a Slack incoming
// webhook.
package slack

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	slackapi "github.com/slack-go/slack"
	"github.com/zulandar/seatplan/internal/notify"
	"go.uber.org/zap"
)

// maxRetries is the max number of retries for rate-limited posts.
const maxRetries = 3

// poster sends one webhook message. It matches slackapi.PostWebhookContext.
type poster func(ctx context.Context, url string, msg *slackapi.WebhookMessage) error

// Notifier implements notify.Notifier for a Slack incoming webhook.
type Notifier struct {
	webhookURL  string
	post        poster
	baseBackoff time.Duration
	log         *zap.Logger
}

// Opts holds parameters for creating a Notifier.
type Opts struct {
	WebhookURL string
	// For testing: replace the HTTP post.
	Post poster
	Log  *zap.Logger
}

// New creates a Slack Notifier.
func New(opts Opts) (*Notifier, error) {
	if opts.WebhookURL == "" {
		return nil, fmt.Errorf("slack: webhook URL is required")
	}
	n := &Notifier{
		webhookURL:  opts.WebhookURL,
		post:        slackapi.PostWebhookContext,
		baseBackoff: time.Second,
		log:         opts.Log,
	}
	if n.log == nil {
		n.log = zap.NewNop()
	}
	if opts.Post != nil {
		n.post = opts.Post
	}
	return n, nil
}

// Notify posts ev as a message with one attachment.
func (n *Notifier) Notify(ctx context.Context, ev notify.Event) error {
	msg := buildWebhookMessage(notify.Format(ev))
	err := n.retryOnRateLimit(ctx, func() error {
		return n.post(ctx, n.webhookURL, msg)
	})
	if err != nil {
		return fmt.Errorf("slack: post webhook: %w", err)
	}
	return nil
}

func buildWebhookMessage(m notify.Message) *slackapi.WebhookMessage {
	att := slackapi.Attachment{
		Title:    m.Title,
		Text:     m.Body,
		Color:    m.Color,
		Fallback: m.Title,
	}
	for _, f := range m.Fields {
		att.Fields = append(att.Fields, slackapi.AttachmentField{
			Title: f.Name,
			Value: f.Value,
			Short: f.Short,
		})
	}
	return &slackapi.WebhookMessage{
		Text:        m.Title,
		Attachments: []slackapi.Attachment{att},
	}
}

// retryOnRateLimit calls fn and retries on Slack rate limit errors, waiting
// for Retry-After when Slack sends one. It respects context cancellation.
func (n *Notifier) retryOnRateLimit(ctx context.Context, fn func() error) error {
	for attempt := 0; attempt <= maxRetries; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}

		var rle *slackapi.RateLimitedError
		if !errors.As(err, &rle) {
			return err
		}
		if attempt == maxRetries {
			return err
		}

		wait := rle.RetryAfter
		if wait <= 0 {
			wait = time.Duration(math.Pow(2, float64(attempt))) * n.baseBackoff
		}
		n.log.Warn("slack rate limited, retrying",
			zap.Int("attempt", attempt+1),
			zap.Int("max_retries", maxRetries),
			zap.Duration("wait", wait),
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
	return nil // unreachable
}
