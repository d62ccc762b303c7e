// Package email delivers order mail over SMTP. All server settings come from
// Config; nothing is read from the environment here.
package email

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"

	"github.com/wneessen/go-mail"
)

type Config struct {
	Host         string
	Port         int
	Username     string
	Password     string
	From         string
	TLSMandatory bool
}

type Attachment struct {
	Name string
	Data []byte
}

type Message struct {
	To          string
	Subject     string
	Body        string
	Attachments []Attachment
}

type Sender struct {
	cfg    Config
	logger *slog.Logger
}

func NewSender(cfg Config, logger *slog.Logger) *Sender {
	return &Sender{
		cfg:    cfg,
		logger: logger,
	}
}

func (s *Sender) Send(ctx context.Context, m Message) error {
	msg, err := s.build(m)
	if err != nil {
		return err
	}

	client, err := mail.NewClient(s.cfg.Host, s.clientOptions()...)
	if err != nil {
		return fmt.Errorf("create smtp client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("send mail: %w", err)
	}

	s.logger.Info("email sent", "to", m.To, "subject", m.Subject, "attachments", len(m.Attachments))
	return nil
}

func (s *Sender) clientOptions() []mail.Option {
	policy := mail.TLSOpportunistic
	if s.cfg.TLSMandatory {
		policy = mail.TLSMandatory
	}

	opts := []mail.Option{
		mail.WithPort(s.cfg.Port),
		mail.WithTLSPolicy(policy),
	}
	if s.cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthLogin),
			mail.WithUsername(s.cfg.Username),
			mail.WithPassword(s.cfg.Password),
		)
	}
	return opts
}

func (s *Sender) build(m Message) (*mail.Msg, error) {
	msg := mail.NewMsg()

	if err := msg.From(s.cfg.From); err != nil {
		return nil, fmt.Errorf("invalid sender %q: %w", s.cfg.From, err)
	}
	if err := msg.To(m.To); err != nil {
		return nil, fmt.Errorf("invalid recipient %q: %w", m.To, err)
	}
	msg.Subject(m.Subject)
	msg.SetBodyString(mail.TypeTextPlain, m.Body)

	for _, a := range m.Attachments {
		if err := msg.AttachReader(a.Name, bytes.NewReader(a.Data)); err != nil {
			return nil, fmt.Errorf("attach %s: %w", a.Name, err)
		}
	}

	return msg, nil
}
