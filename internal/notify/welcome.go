package notify

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
)

// Welcome is the data carried by a new subscriber's welcome email.
type Welcome struct {
	Email        string
	Name         string
	TempPassword string
	TierName     string
}

// Sender delivers a rendered message.
type Sender interface {
	Send(ctx context.Context, msg Message) (string, error)
}

// WelcomeMailer renders and sends the welcome email.
type WelcomeMailer struct {
	sender       Sender
	from         string
	portalURL    string
	supportEmail string
}

type MailerConfig struct {
	From         string
	PortalURL    string
	SupportEmail string
}

func NewWelcomeMailer(sender Sender, cfg MailerConfig) *WelcomeMailer {
	if cfg.From == "" {
		cfg.From = "SignalCore IntelliLead <welcome@signalcoredata.com>"
	}
	if cfg.PortalURL == "" {
		cfg.PortalURL = "https://portal.signalcoredata.com/login"
	}
	if cfg.SupportEmail == "" {
		cfg.SupportEmail = "support@signalcoredata.com"
	}
	return &WelcomeMailer{
		sender:       sender,
		from:         cfg.From,
		portalURL:    cfg.PortalURL,
		supportEmail: cfg.SupportEmail,
	}
}

var welcomeTemplate = template.Must(template.New("welcome").Parse(`
<div style="font-family: 'Inter', -apple-system, sans-serif; max-width: 600px; margin: 0 auto; background: #0f172a; color: #fff; padding: 40px; border-radius: 16px; border: 1px solid #1e293b;">
  <div style="text-align: center; margin-bottom: 30px;">
    <h1 style="color: #10b981; margin: 0; font-size: 24px; text-transform: uppercase; letter-spacing: 2px;">Welcome to SignalCore</h1>
    <p style="color: #94a3b8; margin-top: 10px; font-weight: 500;">Your {{.TierName}} subscription is now active</p>
  </div>
  <div style="background: #1e293b; padding: 24px; border-radius: 12px; margin-bottom: 24px; border: 1px solid #334155;">
    <h2 style="color: #fff; margin: 0 0 16px 0; font-size: 18px; text-transform: uppercase;">Your Login Credentials</h2>
    <p style="margin: 8px 0; color: #cbd5e1; font-size: 14px;"><strong>Email:</strong> {{.Email}}</p>
    <p style="margin: 8px 0; color: #cbd5e1; font-size: 14px;"><strong>Temporary Password:</strong> <code style="background: #10b98120; padding: 4px 8px; border-radius: 4px; color: #10b981; font-weight: bold;">{{.TempPassword}}</code></p>
  </div>
  <div style="text-align: center; margin-bottom: 32px;">
    <a href="{{.PortalURL}}" style="display: inline-block; background: #10b981; color: #fff; padding: 14px 32px; border-radius: 10px; text-decoration: none; font-weight: 900; text-transform: uppercase; letter-spacing: 1px; font-size: 12px;">Access Your Portal</a>
  </div>
  <p style="color: #64748b; font-size: 13px; text-align: center; line-height: 1.6;">
    We recommend changing your password after your first login.<br>
    Questions? Reply to this email or contact <a href="mailto:{{.SupportEmail}}" style="color: #10b981; text-decoration: none;">{{.SupportEmail}}</a>
  </p>
  <hr style="border: none; border-top: 1px solid #334155; margin: 32px 0;">
  <p style="color: #475569; font-size: 11px; text-align: center; text-transform: uppercase; letter-spacing: 1px; font-weight: bold;">
    SignalCore IntelliLead | Predictive Market Intelligence<br>
    Spokane, WA
  </p>
</div>
`))

type welcomeData struct {
	Welcome
	PortalURL    string
	SupportEmail string
}

// Render returns the subject and HTML body for w.
func (m *WelcomeMailer) Render(w Welcome) (string, string, error) {
	if w.TierName == "" {
		w.TierName = "The Feed"
	}

	var buf bytes.Buffer
	err := welcomeTemplate.Execute(&buf, welcomeData{
		Welcome:      w,
		PortalURL:    m.portalURL,
		SupportEmail: m.supportEmail,
	})
	if err != nil {
		return "", "", fmt.Errorf("rendering welcome email: %w", err)
	}

	subject := fmt.Sprintf("Welcome to SignalCore %s! Your login credentials", w.TierName)
	return subject, buf.String(), nil
}

func (m *WelcomeMailer) SendWelcome(ctx context.Context, w Welcome) error {
	subject, html, err := m.Render(w)
	if err != nil {
		return err
	}

	_, err = m.sender.Send(ctx, Message{
		From:    m.from,
		To:      []string{w.Email},
		Subject: subject,
		HTML:    html,
	})
	if err != nil {
		return fmt.Errorf("sending welcome email to %s: %w", w.Email, err)
	}
	return nil
}
