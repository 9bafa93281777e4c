package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"strings"
	"time"

	"github.com/resend/resend-go/v2"
)

// EmailService sends transactional emails.
type EmailService interface {
	SendVerificationCode(ctx context.Context, toEmail, code, idempotencyKey string) error
}

// NoopEmailService logs instead of sending. Used when email verification
// is disabled so the rest of the flow still works in development.
type NoopEmailService struct{}

func (s *NoopEmailService) SendVerificationCode(ctx context.Context, toEmail, code, idempotencyKey string) error {
	log.Printf("[EmailService] noop send verification code to=%s code=%s", toEmail, code)
	return nil
}

// ResendEmailService sends emails through the Resend REST API.
type ResendEmailService struct {
	from     string
	siteName string
	client   *resend.Client
}

func NewResendEmailService(apiKey, from, siteName string) (*ResendEmailService, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("resend api key is required")
	}
	if from == "" {
		return nil, fmt.Errorf("email from address is required")
	}
	if siteName == "" {
		siteName = "the site"
	}
	return &ResendEmailService{
		from:     from,
		siteName: siteName,
		client:   resend.NewClient(apiKey),
	}, nil
}

func (s *ResendEmailService) SendVerificationCode(ctx context.Context, toEmail, code, idempotencyKey string) error {
	if toEmail == "" || code == "" {
		return fmt.Errorf("toEmail and code are required")
	}

	params := &resend.SendEmailRequest{
		From:    s.from,
		To:      []string{toEmail},
		Subject: fmt.Sprintf("Confirm your email for %s", s.siteName),
		Text: fmt.Sprintf("Enter the code %s to confirm this email address on %s. The code expires in 15 minutes.",
			code, s.siteName),
		Html: fmt.Sprintf("<p>Enter the code <strong>%s</strong> to confirm this email address on %s.</p><p>The code expires in 15 minutes.</p>",
			code, s.siteName),
	}
	options := &resend.SendEmailOptions{}
	if key := strings.TrimSpace(idempotencyKey); key != "" {
		options.IdempotencyKey = key
	}

	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		_, err := s.client.Emails.SendWithOptions(ctx, params, options)
		if err == nil {
			return nil
		}
		lastErr = err

		wait, retryable := resendRetryDelay(err, attempt)
		if !retryable {
			return fmt.Errorf("resend send failed: %w", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
	return fmt.Errorf("resend send failed after retries: %w", lastErr)
}

// resendRetryDelay decides whether a send failure is worth retrying and
// how long to back off. Rate limits honor the server's Retry-After,
// capped so a misbehaving header cannot stall the request.
func resendRetryDelay(err error, attempt int) (time.Duration, bool) {
	var rateLimitErr *resend.RateLimitError
	if errors.As(err, &rateLimitErr) {
		if after, parseErr := time.ParseDuration(strings.TrimSpace(rateLimitErr.RetryAfter) + "s"); parseErr == nil && after > 0 {
			if after > 30*time.Second {
				after = 30 * time.Second
			}
			return after, true
		}
		return time.Duration(attempt+1) * time.Second, true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return time.Duration(attempt+1) * 500 * time.Millisecond, true
	}
	if strings.Contains(strings.ToLower(err.Error()), "timeout") {
		return time.Duration(attempt+1) * 500 * time.Millisecond, true
	}

	return 0, false
}
