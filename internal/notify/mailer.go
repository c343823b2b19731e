// Copyright (c) 2026 Kinbank. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package notify renders transactional emails and hands them to a [mail.Sender].

Templates are embedded in the binary. Rendering happens before delivery, so a
template error never reaches the relay.
*/
package notify

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"net/url"
	"strings"
	"time"

	"github.com/taibuivan/kinbank/internal/platform/mail"
)

//go:embed templates/*.html
var templateFiles embed.FS

// Subjects of the outbound messages.
const (
	SubjectActivation = "Activate your Kinbank account"
	SubjectRecovery   = "Your Kinbank password recovery code"
)

// Mailer implements the notification port of the auth service.
type Mailer struct {
	sender    mail.Sender
	templates *template.Template
	baseURL   string
	now       func() time.Time
}

// NewMailer parses the embedded templates.
//
// baseURL is the public address of the API, used to build activation links.
func NewMailer(sender mail.Sender, baseURL string) (*Mailer, error) {
	templates, err := template.ParseFS(templateFiles, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("notify: failed to parse templates: %w", err)
	}

	return &Mailer{
		sender:    sender,
		templates: templates,
		baseURL:   strings.TrimRight(baseURL, "/"),
		now:       time.Now,
	}, nil
}

type activationView struct {
	Username  string
	Token     string
	Link      string
	ExpiresAt string
	ValidFor  string
}

type recoveryView struct {
	Code      string
	ExpiresAt string
	ValidFor  string
}

// SendActivation delivers the activation link for token.
func (mailer *Mailer) SendActivation(ctx context.Context, email, username, token string, expiresAt time.Time) error {
	view := activationView{
		Username:  username,
		Token:     token,
		Link:      mailer.baseURL + "/activate?token=" + url.QueryEscape(token),
		ExpiresAt: expiresAt.UTC().Format(time.RFC1123),
		ValidFor:  mailer.validFor(expiresAt),
	}
	return mailer.deliver(ctx, email, SubjectActivation, "activation.html", view)
}

// SendRecoveryCode delivers a one-time password recovery code.
func (mailer *Mailer) SendRecoveryCode(ctx context.Context, email, code string, expiresAt time.Time) error {
	view := recoveryView{
		Code:      code,
		ExpiresAt: expiresAt.UTC().Format(time.RFC1123),
		ValidFor:  mailer.validFor(expiresAt),
	}
	return mailer.deliver(ctx, email, SubjectRecovery, "recovery.html", view)
}

func (mailer *Mailer) deliver(ctx context.Context, recipient, subject, name string, view any) error {
	var body bytes.Buffer
	if err := mailer.templates.ExecuteTemplate(&body, name, view); err != nil {
		return fmt.Errorf("notify: render %s: %w", name, err)
	}

	if err := mailer.sender.Send(ctx, recipient, subject, body.String()); err != nil {
		return fmt.Errorf("notify_send_failed: %w", err)
	}
	return nil
}

// validFor renders the remaining lifetime rounded to whole seconds.
func (mailer *Mailer) validFor(expiresAt time.Time) string {
	remaining := expiresAt.Sub(mailer.now()).Round(time.Second)
	if remaining < 0 {
		remaining = 0
	}
	return "valid for " + remaining.String()
}
