// Package email sends workflow notifications via SMTP.
package email

import (
	"bytes"
	"fmt"
	"html/template"
	"net/smtp"
	"strings"
)

type Config struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
	FromName string
}

type Service struct {
	config Config
	server string
	auth   smtp.Auth
}

func NewService(config Config) *Service {
	auth := smtp.PlainAuth("", config.Username, config.Password, config.Host)
	return &Service{
		config: config,
		server: config.Host + ":" + config.Port,
		auth:   auth,
	}
}

// IsConfigured reports whether SMTP settings are complete. Notifications
// are silently skipped when unconfigured.
func (s *Service) IsConfigured() bool {
	return s.config.Host != "" && s.config.Port != "" && s.config.From != ""
}

func (s *Service) SendHTMLEmail(to []string, subject, htmlBody string) error {
	if !s.IsConfigured() {
		return fmt.Errorf("email not configured")
	}

	from := s.config.From
	if s.config.FromName != "" {
		from = fmt.Sprintf("%s <%s>", s.config.FromName, s.config.From)
	}

	boundary := "boundary-surat"

	var msg bytes.Buffer
	fmt.Fprintf(&msg, "To: %s\r\n", strings.Join(to, ", "))
	fmt.Fprintf(&msg, "From: %s\r\n", from)
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	fmt.Fprintf(&msg, "MIME-Version: 1.0\r\n")
	fmt.Fprintf(&msg, "Content-Type: multipart/alternative; boundary=\"%s\"\r\n", boundary)
	fmt.Fprintf(&msg, "\r\n")

	fmt.Fprintf(&msg, "--%s\r\n", boundary)
	fmt.Fprintf(&msg, "Content-Type: text/plain; charset=UTF-8\r\n")
	fmt.Fprintf(&msg, "\r\n")
	fmt.Fprintf(&msg, "Please view this email in an HTML-capable email client.\r\n")
	fmt.Fprintf(&msg, "\r\n")

	fmt.Fprintf(&msg, "--%s\r\n", boundary)
	fmt.Fprintf(&msg, "Content-Type: text/html; charset=UTF-8\r\n")
	fmt.Fprintf(&msg, "\r\n")
	fmt.Fprintf(&msg, "%s\r\n", htmlBody)
	fmt.Fprintf(&msg, "\r\n")
	fmt.Fprintf(&msg, "--%s--\r\n", boundary)

	return smtp.SendMail(s.server, s.auth, s.config.From, to, msg.Bytes())
}

type SignatureRequestData struct {
	AppName      string
	SignerName   string
	LetterNumber string
	Subject      string
	LetterURL    string
}

type DecisionData struct {
	AppName      string
	AuthorName   string
	SignerName   string
	LetterNumber string
	Subject      string
	Decision     string
	Notes        string
	LetterURL    string
}

// SendSignatureRequest notifies a signatory their approval is awaited.
func (s *Service) SendSignatureRequest(to string, data SignatureRequestData) error {
	if data.AppName == "" {
		data.AppName = "Surat"
	}
	subject := fmt.Sprintf("Signature requested: %s", data.Subject)
	html, err := renderTemplate(signatureRequestTemplate, data)
	if err != nil {
		return fmt.Errorf("render signature request template: %w", err)
	}
	return s.SendHTMLEmail([]string{to}, subject, html)
}

// SendDecisionNotice notifies the letter author of an approval or rejection.
func (s *Service) SendDecisionNotice(to string, data DecisionData) error {
	if data.AppName == "" {
		data.AppName = "Surat"
	}
	subject := fmt.Sprintf("Letter %s: %s", data.Decision, data.Subject)
	html, err := renderTemplate(decisionTemplate, data)
	if err != nil {
		return fmt.Errorf("render decision template: %w", err)
	}
	return s.SendHTMLEmail([]string{to}, subject, html)
}

func renderTemplate(tmpl string, data interface{}) (string, error) {
	t := template.Must(template.New("email").Parse(tmpl))
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

const signatureRequestTemplate = `<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>Signature requested</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { border-bottom: 2px solid #0066cc; padding-bottom: 10px; margin-bottom: 20px; }
        .button { display: inline-block; padding: 12px 24px; background: #0066cc; color: white; text-decoration: none; border-radius: 4px; margin: 20px 0; }
        .meta { background: #f5f5f5; padding: 12px; border-radius: 4px; }
    </style>
</head>
<body>
    <div class="header">
        <h1>{{.AppName}}</h1>
    </div>

    <h2>Hello {{.SignerName}},</h2>

    <p>A letter is waiting for your signature.</p>

    <div class="meta">
        <p><strong>Number:</strong> {{.LetterNumber}}</p>
        <p><strong>Subject:</strong> {{.Subject}}</p>
    </div>

    <p>
        <a href="{{.LetterURL}}" class="button">Review and Sign</a>
    </p>
</body>
</html>`

const decisionTemplate = `<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>Letter decision</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { border-bottom: 2px solid #0066cc; padding-bottom: 10px; margin-bottom: 20px; }
        .button { display: inline-block; padding: 12px 24px; background: #0066cc; color: white; text-decoration: none; border-radius: 4px; margin: 20px 0; }
        .meta { background: #f5f5f5; padding: 12px; border-radius: 4px; }
        .notes { background: #fff3cd; padding: 12px; border-radius: 4px; margin: 20px 0; }
    </style>
</head>
<body>
    <div class="header">
        <h1>{{.AppName}}</h1>
    </div>

    <h2>Hello {{.AuthorName}},</h2>

    <p>{{.SignerName}} has <strong>{{.Decision}}</strong> your letter.</p>

    <div class="meta">
        <p><strong>Number:</strong> {{.LetterNumber}}</p>
        <p><strong>Subject:</strong> {{.Subject}}</p>
    </div>

    {{if .Notes}}
    <div class="notes">
        <strong>Notes:</strong> {{.Notes}}
    </div>
    {{end}}

    <p>
        <a href="{{.LetterURL}}" class="button">Open Letter</a>
    </p>
</body>
</html>`
