// AngelaMos | 2026
// notifier.go

package mail

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"
	"text/template"

	"github.com/carterperez-dev/cms-backend/internal/config"
)

const (
	verifyPath = "/account/verify-email"
	resetPath  = "/account/reset-password"
	forgotPath = "/account/forgot-password"
)

var templates = template.Must(template.New("mail").Parse(`
{{define "verify"}}Hi {{.Name}},

Thanks for registering. Please verify your email address by visiting:

{{.Link}}
{{end}}
{{define "already_registered"}}Hello,

Your email {{.Email}} is already registered.
If you don't know your password you can reset it here:

{{.Link}}
{{end}}
{{define "reset"}}Hi {{.Name}},

Use the link below to reset your password. It is valid for a limited time.

{{.Link}}
{{end}}
`))

type templateData struct {
	Name  string
	Email string
	Link  string
}

// Notifier renders account emails and hands them to a Mailer. Links point
// at the request origin when one is given, else at the configured base URL.
type Notifier struct {
	mailer  Mailer
	from    string
	baseURL string
}

func NewNotifier(mailer Mailer, cfg config.MailConfig) *Notifier {
	return &Notifier{
		mailer:  mailer,
		from:    cfg.From,
		baseURL: cfg.BaseURL,
	}
}

func (n *Notifier) SendVerificationEmail(
	ctx context.Context,
	to, name, token, origin string,
) error {
	return n.send(ctx, to, "Sign-up Verification - Verify Email", "verify", templateData{
		Name: name,
		Link: n.link(origin, verifyPath, token),
	})
}

func (n *Notifier) SendAlreadyRegisteredEmail(ctx context.Context, to, origin string) error {
	return n.send(ctx, to, "Sign-up Verification - Email Already Registered", "already_registered", templateData{
		Email: to,
		Link:  n.link(origin, forgotPath, ""),
	})
}

func (n *Notifier) SendPasswordResetEmail(
	ctx context.Context,
	to, name, token, origin string,
) error {
	return n.send(ctx, to, "Sign-up Verification - Reset Password", "reset", templateData{
		Name: name,
		Link: n.link(origin, resetPath, token),
	})
}

func (n *Notifier) send(
	ctx context.Context,
	to, subject, tmpl string,
	data templateData,
) error {
	var body bytes.Buffer
	if err := templates.ExecuteTemplate(&body, tmpl, data); err != nil {
		return fmt.Errorf("render %s email: %w", tmpl, err)
	}

	err := n.mailer.Send(ctx, Message{
		From:    n.from,
		To:      to,
		Subject: subject,
		Body:    body.String(),
	})
	if err != nil {
		return fmt.Errorf("send %s email: %w", tmpl, err)
	}

	return nil
}

func (n *Notifier) link(origin, path, token string) string {
	base := strings.TrimRight(origin, "/")
	if base == "" {
		base = strings.TrimRight(n.baseURL, "/")
	}

	link := base + path
	if token != "" {
		link += "?token=" + url.QueryEscape(token)
	}
	return link
}
