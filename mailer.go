package auth

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/mail"
	"net/url"

	"github.com/dajohi/goemail"
	goerrors "github.com/goliatone/go-errors"
)

// SMTPMailer delivers mail from a preset address over SMTPS.
//
// SMTPMailer implements the Mailer interface.
type SMTPMailer struct {
	smtp        *goemail.SMTP
	mailName    string
	mailAddress string
	disabled    bool
	logger      Logger
}

var _ Mailer = (*SMTPMailer)(nil)

// NewSMTPMailer creates the SMTP client. Mail is considered disabled when
// any of the required credentials are missing; a disabled mailer logs and
// drops messages instead of failing.
func NewSMTPMailer(cfg SMTPConfig) (*SMTPMailer, error) {
	logger := defLogger{}

	if cfg.Host == "" || cfg.User == "" || cfg.Password == "" {
		logger.Info("mail: DISABLED")
		return &SMTPMailer{disabled: true, logger: logger}, nil
	}

	u, err := url.Parse(fmt.Sprintf("smtps://%v:%v@%v", cfg.User, cfg.Password, cfg.Host))
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to parse mail host")
	}

	addr, err := mail.ParseAddress(cfg.From)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to parse mail from address")
	}

	smtp, err := goemail.NewSMTP(u.String(), &tls.Config{
		InsecureSkipVerify: cfg.SkipVerify,
	})
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to set up smtp client")
	}

	return &SMTPMailer{
		smtp:        smtp,
		mailName:    addr.Name,
		mailAddress: addr.Address,
		logger:      logger,
	}, nil
}

func (m *SMTPMailer) WithLogger(logger Logger) *SMTPMailer {
	if logger != nil {
		m.logger = logger
	}
	return m
}

// IsEnabled returns whether the mail server is enabled
func (m *SMTPMailer) IsEnabled() bool {
	return !m.disabled
}

// Send delivers a message to a single recipient address. The send is
// synchronous; callers decide how a failure propagates.
func (m *SMTPMailer) Send(ctx context.Context, to, subject, body string) error {
	if m.disabled {
		m.logger.Info("mail disabled, dropping message", "to", to, "subject", subject)
		return nil
	}

	if _, err := mail.ParseAddress(to); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryBadInput, "invalid recipient address")
	}

	msg := goemail.NewMessage(m.mailAddress, subject, body)
	msg.SetName(m.mailName)
	msg.AddTo(to)

	if err := m.smtp.Send(msg); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to send email")
	}

	return nil
}
