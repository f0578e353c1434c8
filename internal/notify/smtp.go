package notify

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/mail"
	"net/url"
	"strconv"

	"github.com/dajohi/goemail"
)

// SMTPConfig describes the outbound mail server.
type SMTPConfig struct {
	Host       string
	Port       int
	User       string
	Password   string
	From       string
	SkipVerify bool
}

// URL renders the goemail connection string. Port 465 uses implicit TLS.
func (c SMTPConfig) URL() (string, error) {
	if c.Host == "" {
		return "", errors.New("notify: smtp host required")
	}
	scheme := "smtp"
	if c.Port == 465 {
		scheme = "smtps"
	}
	host := c.Host
	if c.Port > 0 {
		host = c.Host + ":" + strconv.Itoa(c.Port)
	}
	u := url.URL{Scheme: scheme, Host: host}
	if c.User != "" {
		u.User = url.UserPassword(c.User, c.Password)
	}
	return u.String(), nil
}

// SMTPMailer sends mail synchronously through an SMTP relay.
type SMTPMailer struct {
	client      *goemail.SMTP
	fromName    string
	fromAddress string
}

// NewSMTPMailer validates the sender address and prepares the client.
func NewSMTPMailer(cfg SMTPConfig) (*SMTPMailer, error) {
	raw, err := cfg.URL()
	if err != nil {
		return nil, err
	}
	from, err := mail.ParseAddress(cfg.From)
	if err != nil {
		return nil, fmt.Errorf("notify: parse from address: %w", err)
	}
	tlsConfig := &tls.Config{ServerName: cfg.Host, InsecureSkipVerify: cfg.SkipVerify} //nolint:gosec // opt-in for dev relays
	client, err := goemail.NewSMTP(raw, tlsConfig)
	if err != nil {
		return nil, fmt.Errorf("notify: smtp client: %w", err)
	}
	return &SMTPMailer{client: client, fromName: from.Name, fromAddress: from.Address}, nil
}

// Send delivers one HTML message. The context is checked before dialing;
// goemail itself does not accept one.
func (m *SMTPMailer) Send(ctx context.Context, to, subject, htmlBody string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrDelivery, err)
	}
	msg := goemail.NewHTMLMessage(m.fromAddress, subject, htmlBody)
	if m.fromName != "" {
		msg.SetName(m.fromName)
	}
	msg.AddTo(to)
	if err := m.client.Send(msg); err != nil {
		return fmt.Errorf("%w: smtp send to %s: %w", ErrDelivery, to, err)
	}
	return nil
}
