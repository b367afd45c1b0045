package mail

import (
	"context"
	"fmt"
	"strings"
	"time"

	gomail "github.com/wneessen/go-mail"

	"wpguard/internal/platform/config"
	"wpguard/internal/platform/errors"
	"wpguard/internal/utils"
)

// Message is a plain-text notification.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Notifier delivers messages to the administrator.
type Notifier interface {
	Send(ctx context.Context, msg Message) error
}

// SMTPNotifier sends mail through an SMTP relay.
type SMTPNotifier struct {
	host    string
	from    string
	options []gomail.Option
	logger  *utils.Logger
}

// NewSMTPNotifier 创建 SMTP 邮件发送器
func NewSMTPNotifier(cfg config.MailConfig, logger *utils.Logger) (*SMTPNotifier, error) {
	if strings.TrimSpace(cfg.Host) == "" {
		return nil, errors.New(errors.KindMail, "mail.new", "smtp host is required")
	}
	if strings.TrimSpace(cfg.From) == "" {
		return nil, errors.New(errors.KindMail, "mail.new", "sender address is required")
	}

	opts := []gomail.Option{
		gomail.WithTimeout(30 * time.Second),
		gomail.WithTLSPolicy(tlsPolicy(cfg.TLSPolicy)),
	}
	if cfg.Port > 0 {
		opts = append(opts, gomail.WithPort(cfg.Port))
	}
	if cfg.Username != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(cfg.Username),
			gomail.WithPassword(cfg.Password),
		)
	}

	return &SMTPNotifier{
		host:    cfg.Host,
		from:    cfg.From,
		options: opts,
		logger:  logger,
	}, nil
}

func tlsPolicy(name string) gomail.TLSPolicy {
	switch strings.ToLower(name) {
	case "mandatory":
		return gomail.TLSMandatory
	case "none":
		return gomail.NoTLS
	default:
		return gomail.TLSOpportunistic
	}
}

func (n *SMTPNotifier) build(msg Message) (*gomail.Msg, error) {
	m := gomail.NewMsg()
	if err := m.From(n.from); err != nil {
		return nil, fmt.Errorf("invalid sender %q: %w", n.from, err)
	}
	if err := m.To(msg.To); err != nil {
		return nil, fmt.Errorf("invalid recipient %q: %w", msg.To, err)
	}
	m.Subject(msg.Subject)
	m.SetBodyString(gomail.TypeTextPlain, msg.Body)
	return m, nil
}

// Send dials the relay for every message. Alerts are rare, so no
// connection is kept open between checks.
func (n *SMTPNotifier) Send(ctx context.Context, msg Message) error {
	m, err := n.build(msg)
	if err != nil {
		return errors.Wrap(errors.KindMail, "mail.build", "failed to build message", err)
	}

	client, err := gomail.NewClient(n.host, n.options...)
	if err != nil {
		return errors.Wrap(errors.KindMail, "mail.client", "failed to create smtp client", err)
	}
	if err := client.DialAndSendWithContext(ctx, m); err != nil {
		return errors.Wrap(errors.KindMail, "mail.send", "failed to send mail to "+msg.To, err)
	}
	if n.logger != nil {
		n.logger.InfoTag("Mail", "已发送邮件 %q 至 %s", msg.Subject, msg.To)
	}
	return nil
}

// LogNotifier only logs messages. It stands in when no relay is configured.
type LogNotifier struct {
	Logger *utils.Logger
}

func (n LogNotifier) Send(_ context.Context, msg Message) error {
	if n.Logger != nil {
		n.Logger.WarnTag("Mail", "未配置 SMTP，邮件未发送: to=%s subject=%q\n%s", msg.To, msg.Subject, msg.Body)
	}
	return nil
}

// FromConfig returns an SMTP notifier, or a LogNotifier when no host is set.
func FromConfig(cfg config.MailConfig, logger *utils.Logger) (Notifier, error) {
	if strings.TrimSpace(cfg.Host) == "" {
		return LogNotifier{Logger: logger}, nil
	}
	return NewSMTPNotifier(cfg, logger)
}
