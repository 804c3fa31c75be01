package notify

import (
	"context"
	"fmt"

	"github.com/wneessen/go-mail"
	"k8s.io/klog/v2"
)

// TLS policies accepted by SMTPConfig.TLS.
const (
	TLSNone          = "none"
	TLSOpportunistic = "opportunistic"
	TLSMandatory     = "mandatory"
)

// SMTPConfig configures an SMTPNotifier.
type SMTPConfig struct {
	Host     string
	Port     int
	From     string
	ReplyTo  string
	Username string
	Password string
	TLS      string
}

// SMTPNotifier sends plain-text mail.
type SMTPNotifier struct {
	cfg  SMTPConfig
	opts []mail.Option
}

// NewSMTPNotifier validates cfg and creates an SMTPNotifier. No connection is
// made until the first Notify.
func NewSMTPNotifier(cfg SMTPConfig) (*SMTPNotifier, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("smtp host is required")
	}
	if cfg.From == "" {
		return nil, fmt.Errorf("smtp sender address is required")
	}

	var policy mail.TLSPolicy
	switch cfg.TLS {
	case "", TLSNone:
		policy = mail.NoTLS
	case TLSOpportunistic:
		policy = mail.TLSOpportunistic
	case TLSMandatory:
		policy = mail.TLSMandatory
	default:
		return nil, fmt.Errorf("unknown smtp tls policy %q", cfg.TLS)
	}

	opts := []mail.Option{mail.WithTLSPolicy(policy)}
	if cfg.Port > 0 {
		opts = append(opts, mail.WithPort(cfg.Port))
	}
	if cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password),
		)
	}
	return &SMTPNotifier{cfg: cfg, opts: opts}, nil
}

// Notify mails message to recipient.
func (n *SMTPNotifier) Notify(ctx context.Context, repository, message, recipient string) error {
	if recipient == "" {
		klog.V(1).InfoS("No recipient, dropping notification", "repository", repository)
		return nil
	}

	msg, err := n.buildMessage(repository, message, recipient)
	if err != nil {
		return err
	}

	client, err := mail.NewClient(n.cfg.Host, n.opts...)
	if err != nil {
		return fmt.Errorf("failed to create smtp client: %w", err)
	}
	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("failed to send mail to %s: %w", recipient, err)
	}
	klog.V(1).InfoS("Sent notification", "repository", repository, "recipient", recipient)
	return nil
}

func (n *SMTPNotifier) buildMessage(repository, message, recipient string) (*mail.Msg, error) {
	msg := mail.NewMsg()
	if err := msg.From(n.cfg.From); err != nil {
		return nil, fmt.Errorf("invalid sender address %q: %w", n.cfg.From, err)
	}
	if err := msg.To(recipient); err != nil {
		return nil, fmt.Errorf("invalid recipient address %q: %w", recipient, err)
	}
	if n.cfg.ReplyTo != "" {
		if err := msg.ReplyTo(n.cfg.ReplyTo); err != nil {
			return nil, fmt.Errorf("invalid reply-to address %q: %w", n.cfg.ReplyTo, err)
		}
	}
	msg.SetCharset(mail.CharsetUTF8)
	msg.Subject(Subject(repository))
	msg.SetDate()
	msg.SetBodyString(mail.TypeTextPlain, message)
	return msg, nil
}
