package mail

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Zhima-Mochi/textile-storefront/internal/domain/notification"
	gomail "github.com/wneessen/go-mail"
)

const (
	gmailHost       = "smtp.gmail.com"
	implicitTLSPort = 465
	defaultPort     = 587
)

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	FromName string
	// Timeout is the dial and I/O timeout of one SMTP session.
	Timeout time.Duration
}

// SMTPTransport sends mail through one relay. Each call opens its own session.
type SMTPTransport struct {
	cfg  SMTPConfig
	opts []gomail.Option
}

var _ Transport = (*SMTPTransport)(nil)

// NewSMTPTransport returns notification.ErrNoCredentials when username or
// password is missing so the caller can run without mail.
func NewSMTPTransport(cfg SMTPConfig) (*SMTPTransport, error) {
	if cfg.Username == "" || cfg.Password == "" {
		return nil, notification.ErrNoCredentials
	}
	if cfg.Port == 0 {
		cfg.Port = defaultPort
	}
	if cfg.Host == "" && strings.HasSuffix(strings.ToLower(cfg.Username), "@gmail.com") {
		cfg.Host = gmailHost
	}
	if cfg.Host == "" {
		return nil, fmt.Errorf("mail: smtp host is required")
	}
	if cfg.From == "" {
		cfg.From = cfg.Username
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConnectTimeout
	}

	opts := []gomail.Option{
		gomail.WithPort(cfg.Port),
		gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
		gomail.WithUsername(cfg.Username),
		gomail.WithPassword(cfg.Password),
		gomail.WithTimeout(cfg.Timeout),
	}
	if cfg.Port == implicitTLSPort {
		opts = append(opts, gomail.WithSSL())
	} else {
		opts = append(opts, gomail.WithTLSPolicy(gomail.TLSMandatory))
	}

	return &SMTPTransport{cfg: cfg, opts: opts}, nil
}

func (t *SMTPTransport) Host() string { return t.cfg.Host }

func (t *SMTPTransport) client() (*gomail.Client, error) {
	c, err := gomail.NewClient(t.cfg.Host, t.opts...)
	if err != nil {
		return nil, fmt.Errorf("mail: new client: %w", err)
	}
	return c, nil
}

// Verify dials, authenticates and hangs up.
func (t *SMTPTransport) Verify(ctx context.Context) error {
	c, err := t.client()
	if err != nil {
		return err
	}
	if err := c.DialWithContext(ctx); err != nil {
		return fmt.Errorf("mail: verify %s:%d: %w", t.cfg.Host, t.cfg.Port, err)
	}
	return c.Close()
}

func (t *SMTPTransport) Send(ctx context.Context, msg notification.Message) error {
	m, err := t.buildMsg(msg)
	if err != nil {
		return err
	}
	c, err := t.client()
	if err != nil {
		return err
	}
	if err := c.DialAndSendWithContext(ctx, m); err != nil {
		return fmt.Errorf("mail: deliver: %w", err)
	}
	return nil
}

func (t *SMTPTransport) buildMsg(msg notification.Message) (*gomail.Msg, error) {
	m := gomail.NewMsg()
	if err := m.FromFormat(t.cfg.FromName, t.cfg.From); err != nil {
		return nil, fmt.Errorf("mail: from: %w", err)
	}
	if err := m.To(msg.To); err != nil {
		return nil, fmt.Errorf("mail: to: %w", err)
	}
	m.Subject(msg.Subject)
	m.SetBodyString(gomail.TypeTextPlain, msg.Text)
	if msg.HTML != "" {
		m.AddAlternativeString(gomail.TypeTextHTML, msg.HTML)
	}
	if a := msg.Attachment; a != nil {
		err := m.AttachReader(a.Filename, bytes.NewReader(a.Data),
			gomail.WithFileContentType(gomail.ContentType(a.ContentType)))
		if err != nil {
			return nil, fmt.Errorf("mail: attach %s: %w", a.Filename, err)
		}
	}
	return m, nil
}
