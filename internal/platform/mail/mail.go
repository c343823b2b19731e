// Copyright (c) 2026 Kinbank. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package mail delivers rendered HTML messages.

[SMTPSender] talks to a real relay through go-mail. [LogSender] writes the
message to the structured log instead and is the development default when no
SMTP host is configured.
*/
package mail

import (
	"context"
	"fmt"
	"log/slog"

	gomail "github.com/wneessen/go-mail"
)

// Sender is the delivery contract consumed by the notifier.
type Sender interface {
	Send(ctx context.Context, recipient, subject, htmlBody string) error
}

// SMTPOptions configures an [SMTPSender].
type SMTPOptions struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SMTPSender delivers through an SMTP relay. One connection is dialled per message.
type SMTPSender struct {
	client *gomail.Client
	from   string
}

// NewSMTPSender prepares a client. No connection is opened until Send.
func NewSMTPSender(opts SMTPOptions) (*SMTPSender, error) {
	clientOptions := []gomail.Option{
		gomail.WithPort(opts.Port),
		gomail.WithTLSPolicy(gomail.TLSOpportunistic),
	}
	if opts.Username != "" {
		clientOptions = append(clientOptions,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(opts.Username),
			gomail.WithPassword(opts.Password),
		)
	}

	client, err := gomail.NewClient(opts.Host, clientOptions...)
	if err != nil {
		return nil, fmt.Errorf("mail: failed to create smtp client: %w", err)
	}

	return &SMTPSender{client: client, from: opts.From}, nil
}

// Send builds a single-part HTML message and delivers it.
func (sender *SMTPSender) Send(ctx context.Context, recipient, subject, htmlBody string) error {
	message := gomail.NewMsg()
	if err := message.From(sender.from); err != nil {
		return fmt.Errorf("mail: invalid sender %q: %w", sender.from, err)
	}
	if err := message.To(recipient); err != nil {
		return fmt.Errorf("mail: invalid recipient: %w", err)
	}
	message.Subject(subject)
	message.SetBodyString(gomail.TypeTextHTML, htmlBody)

	if err := sender.client.DialAndSendWithContext(ctx, message); err != nil {
		return fmt.Errorf("mail: delivery failed: %w", err)
	}
	return nil
}

// LogSender records messages in the log instead of sending them.
type LogSender struct {
	logger *slog.Logger
}

// NewLogSender returns a sender that logs at info level.
func NewLogSender(logger *slog.Logger) *LogSender {
	return &LogSender{logger: logger}
}

// Send never fails.
func (sender *LogSender) Send(_ context.Context, recipient, subject, htmlBody string) error {
	sender.logger.Info("mail_logged",
		slog.String("to", recipient),
		slog.String("subject", subject),
		slog.Int("body_bytes", len(htmlBody)),
		slog.String("body", htmlBody),
	)
	return nil
}
