package accountguard

import (
	"context"
	"log/slog"
	"net/url"
)

// Mailer delivers a password reset token to the account's email address.
// Rendering and sending the message is entirely the implementation's job.
type Mailer interface {
	SendPasswordReset(ctx context.Context, email, token string) error
}

// MailerFunc adapts a function to Mailer.
type MailerFunc func(ctx context.Context, email, token string) error

func (f MailerFunc) SendPasswordReset(ctx context.Context, email, token string) error {
	return f(ctx, email, token)
}

// LogMailer writes the reset link to the log instead of sending mail. It is
// meant for development servers.
type LogMailer struct {
	Logger *slog.Logger
	// LinkBaseURL gets the token appended as the "token" query parameter.
	LinkBaseURL string
}

func (m *LogMailer) SendPasswordReset(ctx context.Context, email, token string) error {
	logger := m.Logger
	if logger == nil {
		logger = slog.Default()
	}

	link := token
	if m.LinkBaseURL != "" {
		u, err := url.Parse(m.LinkBaseURL)
		if err != nil {
			return err
		}
		q := u.Query()
		q.Set("token", token)
		u.RawQuery = q.Encode()
		link = u.String()
	}

	logger.InfoContext(ctx, "password reset link (development mailer)",
		slog.String("email", email),
		slog.String("reset_link", link))
	return nil
}
