package publisher

import (
	"context"
	"fmt"
	"html"
	"net/smtp"
	"strings"

	"github.com/ryosukesatoh/researchtldr/internal/pipeline"
)

// EmailPublisher sends the report as an HTML email via SMTP.
type EmailPublisher struct {
	host     string
	port     int
	username string
	password string
	from     string
	to       []string
	send     func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewEmailPublisher(host string, port int, username, password, from string, to []string) *EmailPublisher {
	return &EmailPublisher{
		host:     host,
		port:     port,
		username: username,
		password: password,
		from:     from,
		to:       to,
		send:     smtp.SendMail,
	}
}

func (p *EmailPublisher) Publish(_ context.Context, report *pipeline.BatchReport) error {
	if report.Updated() == 0 && report.Failed() == 0 {
		return nil
	}
	subject := fmt.Sprintf("ResearchTLDR: %s (%s)", headline(report), report.FinishedAt.Format("2006-01-02"))

	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/html; charset=\"UTF-8\"\r\n\r\n%s",
		p.from,
		strings.Join(p.to, ","),
		subject,
		buildHTMLBody(report),
	)

	addr := fmt.Sprintf("%s:%d", p.host, p.port)
	var auth smtp.Auth
	if p.username != "" {
		auth = smtp.PlainAuth("", p.username, p.password, p.host)
	}

	if err := p.send(addr, auth, p.from, p.to, []byte(msg)); err != nil {
		return fmt.Errorf("email: failed to send: %w", err)
	}
	return nil
}

func buildHTMLBody(report *pipeline.BatchReport) string {
	var sb strings.Builder

	sb.WriteString(`<!DOCTYPE html><html><head><style>
body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; max-width: 700px; margin: 0 auto; padding: 20px; color: #333; }
h1 { color: #1a1a2e; border-bottom: 2px solid #e94560; padding-bottom: 10px; }
.paper { border: 1px solid #ddd; border-radius: 8px; padding: 15px; margin-bottom: 15px; }
.paper h3 { margin-top: 0; color: #0f3460; }
.failed { border-color: #e94560; }
.meta { color: #666; font-size: 0.9em; margin-bottom: 10px; }
</style></head><body>`)

	fmt.Fprintf(&sb, "<h1>ResearchTLDR summaries</h1><p><em>%s</em> &middot; %s</p>",
		report.FinishedAt.Format("January 2, 2006 15:04 MST"), html.EscapeString(headline(report)))

	for i, e := range entries(report) {
		class := "paper"
		if e.Outcome == pipeline.OutcomeFailed {
			class += " failed"
		}
		fmt.Fprintf(&sb, `<div class="%s">`, class)
		fmt.Fprintf(&sb, `<h3>%d. <a href="%s">%s</a></h3>`, i+1, html.EscapeString(e.absURL()), html.EscapeString(e.Title))
		if e.Error != "" {
			fmt.Fprintf(&sb, `<div class="meta">failed: %s</div></div>`, html.EscapeString(e.Error))
			continue
		}
		fmt.Fprintf(&sb, `<div class="meta">%s</div>`, html.EscapeString(e.Model))
		fmt.Fprintf(&sb, "<p>%s</p>", html.EscapeString(e.TLDR))
		if len(e.WhatsNew) > 0 {
			sb.WriteString("<ul>")
			for _, w := range e.WhatsNew {
				fmt.Fprintf(&sb, "<li>%s</li>", html.EscapeString(w))
			}
			sb.WriteString("</ul>")
		}
		sb.WriteString("</div>")
	}

	sb.WriteString("</body></html>")
	return sb.String()
}
