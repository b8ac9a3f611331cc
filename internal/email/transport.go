package email

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	gomail "gopkg.in/gomail.v2"
)

// Transport delivers a composed message. Implementations must return an
// error describing the underlying failure; callers record it verbatim.
type Transport interface {
	Send(ctx context.Context, msg *Message) error
}

// SMTPConfig configures the SMTP transport.
type SMTPConfig struct {
	Host        string
	Port        int
	Username    string
	Password    string
	FromAddress string
	FromName    string
}

// SMTPTransport sends mail through a standard SMTP relay.
type SMTPTransport struct {
	cfg    SMTPConfig
	dialer *gomail.Dialer
	logger *zap.Logger
}

// NewSMTPTransport creates an SMTPTransport.
func NewSMTPTransport(cfg SMTPConfig, logger *zap.Logger) *SMTPTransport {
	return &SMTPTransport{
		cfg:    cfg,
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		logger: logger,
	}
}

// Send delivers msg, honoring ctx cancellation so a stalled relay surfaces
// as an error instead of hanging the workflow.
func (t *SMTPTransport) Send(ctx context.Context, msg *Message) error {
	m := gomail.NewMessage()
	m.SetAddressHeader("From", t.cfg.FromAddress, t.cfg.FromName)
	m.SetAddressHeader("To", msg.To, msg.ToName)
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/plain", msg.Body)
	for _, path := range msg.Attachments {
		m.Attach(path)
	}

	done := make(chan error, 1)
	go func() {
		done <- t.dialer.DialAndSend(m)
	}()

	select {
	case err := <-done:
		if err != nil {
			t.logger.Error("SMTP send failed",
				zap.String("to", msg.To),
				zap.String("subject", msg.Subject),
				zap.Error(err))
			return fmt.Errorf("smtp send: %w", err)
		}
		t.logger.Info("Email sent",
			zap.String("to", msg.To),
			zap.String("subject", msg.Subject),
			zap.Int("attachments", len(msg.Attachments)))
		return nil
	case <-ctx.Done():
		return fmt.Errorf("smtp send: %w", ctx.Err())
	}
}
