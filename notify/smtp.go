package notify

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/smtp"
	"sync"

	"github.com/rs/zerolog"

	profauth "github.com/avandrel/profauth"
)

// SMTPConfig holds the connection settings for [SMTPNotifier]. The
// notifier speaks implicit TLS, as used on port 465.
type SMTPConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
}

// SMTPNotifier delivers email notifications over SMTP. SMS requests are
// rejected with profauth.ErrSMSNotImplemented.
type SMTPNotifier struct {
	config SMTPConfig
	log    zerolog.Logger
}

// NewSMTPNotifier creates an SMTPNotifier with the given settings. From
// defaults to Username when empty.
func NewSMTPNotifier(cfg SMTPConfig, log zerolog.Logger) *SMTPNotifier {
	if cfg.From == "" {
		cfg.From = cfg.Username
	}
	return &SMTPNotifier{config: cfg, log: log}
}

func (n *SMTPNotifier) Send(ctx context.Context, media profauth.Media, recipient, subject, body string) error {
	if media != profauth.MediaEmail {
		return profauth.ErrSMSNotImplemented
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := n.send(recipient, subject, body); err != nil {
		n.log.Warn().Err(err).Str("recipient", recipient).Msg("email delivery failed")
		return err
	}

	n.log.Info().Str("recipient", recipient).Str("subject", subject).Msg("email delivered")
	return nil
}

func (n *SMTPNotifier) send(to, subject, body string) error {
	msg := []byte(
		fmt.Sprintf("From: %s\r\n", n.config.From) +
			fmt.Sprintf("To: %s\r\n", to) +
			fmt.Sprintf("Subject: %s\r\n", subject) +
			"MIME-Version: 1.0\r\n" +
			"Content-Type: text/plain; charset=\"utf-8\"\r\n" +
			"\r\n" +
			body,
	)

	serverAddr := n.config.Host + ":" + n.config.Port

	tlsConfig := &tls.Config{
		ServerName: n.config.Host,
	}

	conn, err := tls.Dial("tcp", serverAddr, tlsConfig)
	if err != nil {
		return err
	}
	defer conn.Close()

	client, err := smtp.NewClient(conn, n.config.Host)
	if err != nil {
		return err
	}
	defer client.Quit()

	auth := smtp.PlainAuth("", n.config.Username, n.config.Password, n.config.Host)
	if err := client.Auth(auth); err != nil {
		return err
	}

	if err := client.Mail(n.config.From); err != nil {
		return err
	}
	if err := client.Rcpt(to); err != nil {
		return err
	}

	w, err := client.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(msg); err != nil {
		return err
	}
	return w.Close()
}

// Message is one notification captured by [Recorder].
type Message struct {
	Media     profauth.Media
	Recipient string
	Subject   string
	Body      string
}

// Recorder is a Notifier test double that captures every message instead
// of delivering it.
type Recorder struct {
	mu       sync.Mutex
	messages []Message
}

func (r *Recorder) Send(_ context.Context, media profauth.Media, recipient, subject, body string) error {
	if media != profauth.MediaEmail {
		return profauth.ErrSMSNotImplemented
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, Message{
		Media:     media,
		Recipient: recipient,
		Subject:   subject,
		Body:      body,
	})
	return nil
}

// Messages returns a snapshot of everything sent so far.
func (r *Recorder) Messages() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Message, len(r.messages))
	copy(out, r.messages)
	return out
}
