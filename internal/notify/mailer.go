package notify

import (
	"context"
	"crypto/tls"
	"fmt"
	"mime"
	"net"
	"net/smtp"
	"strings"
	"time"

	"hrm/config"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
)

// Mailer is the outbound transport used by the queue.
type Mailer interface {
	Send(ctx context.Context, to, subject, htmlBody string) error
	Configured() bool
	Name() string
}

// NewMailer builds the transport selected by cfg.Mail.Transport. It returns
// nil when delivery is disabled.
func NewMailer(ctx context.Context, cfg *config.Config) (Mailer, error) {
	switch cfg.Mail.Transport {
	case "smtp":
		return NewSMTPMailer(cfg.SMTP, cfg.Mail), nil
	case "ses":
		return NewSESMailer(ctx, cfg.SES, cfg.Mail)
	default:
		return nil, nil
	}
}

type SMTPMailer struct {
	smtp config.SMTPConfig
	mail config.MailConfig
}

func NewSMTPMailer(smtpCfg config.SMTPConfig, mailCfg config.MailConfig) *SMTPMailer {
	return &SMTPMailer{smtp: smtpCfg, mail: mailCfg}
}

func (m *SMTPMailer) Name() string { return "smtp" }

func (m *SMTPMailer) Configured() bool {
	return m.smtp.Host != "" && m.smtp.Port > 0 && m.mail.FromEmail != ""
}

// Send delivers one message. The dial and the whole SMTP exchange are bounded
// by ctx's deadline.
func (m *SMTPMailer) Send(ctx context.Context, to, subject, htmlBody string) error {
	if !m.Configured() {
		return ErrMailerNotConfigured
	}
	addr := net.JoinHostPort(m.smtp.Host, fmt.Sprint(m.smtp.Port))
	dialer := &net.Dialer{Timeout: 10 * time.Second}

	var conn net.Conn
	var err error
	if m.smtp.UseTLS || m.smtp.Port == 465 {
		conn, err = (&tls.Dialer{NetDialer: dialer, Config: &tls.Config{ServerName: m.smtp.Host}}).DialContext(ctx, "tcp", addr)
	} else {
		conn, err = dialer.DialContext(ctx, "tcp", addr)
	}
	if err != nil {
		return fmt.Errorf("failed to connect to SMTP server: %w", err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	defer conn.Close()

	client, err := smtp.NewClient(conn, m.smtp.Host)
	if err != nil {
		return fmt.Errorf("failed to create SMTP client: %w", err)
	}
	defer client.Close()

	if ok, _ := client.Extension("STARTTLS"); ok && !(m.smtp.UseTLS || m.smtp.Port == 465) {
		if err := client.StartTLS(&tls.Config{ServerName: m.smtp.Host}); err != nil {
			return fmt.Errorf("STARTTLS failed: %w", err)
		}
	}
	if m.smtp.Username != "" {
		auth := smtp.PlainAuth("", m.smtp.Username, m.smtp.Password, m.smtp.Host)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("SMTP authentication failed: %w", err)
		}
	}
	if err := client.Mail(m.mail.FromEmail); err != nil {
		return fmt.Errorf("failed to set sender: %w", err)
	}
	if err := client.Rcpt(to); err != nil {
		return fmt.Errorf("failed to set recipient: %w", err)
	}
	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("failed to get data writer: %w", err)
	}
	if _, err := w.Write(buildMessage(m.mail, to, subject, htmlBody)); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to finish message: %w", err)
	}
	return client.Quit()
}

func buildMessage(mail config.MailConfig, to, subject, htmlBody string) []byte {
	from := mail.FromEmail
	if mail.FromName != "" {
		from = fmt.Sprintf("%s <%s>", mime.QEncoding.Encode("utf-8", mail.FromName), mail.FromEmail)
	}
	var b strings.Builder
	b.WriteString("From: " + from + "\r\n")
	b.WriteString("To: " + to + "\r\n")
	b.WriteString("Subject: " + mime.QEncoding.Encode("utf-8", subject) + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=UTF-8\r\n")
	b.WriteString("Date: " + time.Now().Format(time.RFC1123Z) + "\r\n")
	b.WriteString("\r\n")
	b.WriteString(htmlBody)
	return []byte(b.String())
}

// SESAPI is the subset of the SES client used here.
type SESAPI interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

type SESMailer struct {
	client SESAPI
	mail   config.MailConfig
}

func NewSESMailer(ctx context.Context, sesCfg config.SESConfig, mailCfg config.MailConfig) (*SESMailer, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(sesCfg.Region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return &SESMailer{client: ses.NewFromConfig(awsCfg), mail: mailCfg}, nil
}

// NewSESMailerWithClient is used by tests and callers that share an SES client.
func NewSESMailerWithClient(client SESAPI, mailCfg config.MailConfig) *SESMailer {
	return &SESMailer{client: client, mail: mailCfg}
}

func (m *SESMailer) Name() string { return "ses" }

func (m *SESMailer) Configured() bool { return m.client != nil && m.mail.FromEmail != "" }

func (m *SESMailer) Send(ctx context.Context, to, subject, htmlBody string) error {
	if !m.Configured() {
		return ErrMailerNotConfigured
	}
	source := m.mail.FromEmail
	if m.mail.FromName != "" {
		source = fmt.Sprintf("%s <%s>", m.mail.FromName, m.mail.FromEmail)
	}
	_, err := m.client.SendEmail(ctx, &ses.SendEmailInput{
		Destination: &types.Destination{
			ToAddresses: []string{to},
		},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(subject), Charset: aws.String("UTF-8")},
			Body: &types.Body{
				Html: &types.Content{Data: aws.String(htmlBody), Charset: aws.String("UTF-8")},
			},
		},
		Source: aws.String(source),
	})
	if err != nil {
		return fmt.Errorf("ses send: %w", err)
	}
	return nil
}
