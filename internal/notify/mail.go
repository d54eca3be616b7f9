package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wneessen/go-mail"

	"github.com/m3rciful/pointshop/internal/checkout"
	"github.com/m3rciful/pointshop/internal/telemetry"
)

// Transport sends prepared messages, e.g. *mail.Client.
type Transport interface {
	DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error
}

// SMTPOptions configures NewSMTPTransport.
type SMTPOptions struct {
	Host     string
	Port     int
	Username string
	Password string
	// TLSPolicy is mandatory, opportunistic or none.
	TLSPolicy string
	Timeout   time.Duration
}

// NewSMTPTransport builds a go-mail client.
func NewSMTPTransport(o SMTPOptions) (*mail.Client, error) {
	opts := []mail.Option{mail.WithPort(o.Port)}
	switch o.TLSPolicy {
	case "none":
		opts = append(opts, mail.WithTLSPolicy(mail.NoTLS))
	case "opportunistic":
		opts = append(opts, mail.WithTLSPolicy(mail.TLSOpportunistic))
	default:
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
	}
	if o.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(o.Username),
			mail.WithPassword(o.Password),
		)
	}
	if o.Timeout > 0 {
		opts = append(opts, mail.WithTimeout(o.Timeout))
	}
	c, err := mail.NewClient(o.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("notify: smtp client: %w", err)
	}
	return c, nil
}

// Mailer emails order summaries to the operator and, optionally, the buyer.
type Mailer struct {
	transport       Transport
	from            string
	operator        string
	notifyPurchaser bool
	queue           Queue
	metrics         *telemetry.Metrics
}

// MailerOptions configures a Mailer.
type MailerOptions struct {
	From            string
	Operator        string
	NotifyPurchaser bool
	Queue           Queue
	Metrics         *telemetry.Metrics
}

// NewMailer wraps transport.
func NewMailer(transport Transport, o MailerOptions) *Mailer {
	return &Mailer{
		transport:       transport,
		from:            o.From,
		operator:        o.Operator,
		notifyPurchaser: o.NotifyPurchaser,
		queue:           o.Queue,
		metrics:         o.Metrics,
	}
}

// NotifyOrder implements checkout.Notifier.
func (m *Mailer) NotifyOrder(ctx context.Context, o checkout.Order) error {
	msgs, err := m.messages(o)
	if err != nil {
		m.metrics.Notification(ChannelEmail, err)
		return err
	}
	if len(msgs) == 0 {
		return nil
	}
	return deliver(ctx, m.queue, m.metrics, ChannelEmail, "notify.email", func(ctx context.Context) error {
		return m.transport.DialAndSendWithContext(ctx, msgs...)
	})
}

func (m *Mailer) messages(o checkout.Order) ([]*mail.Msg, error) {
	var msgs []*mail.Msg
	if m.operator != "" {
		msg, err := m.build(m.operator, "New order "+o.OrderID, Summary(o))
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, msg)
	}
	if m.notifyPurchaser && o.Email != "" {
		msg, err := m.build(o.Email, "Your order "+o.OrderID, PurchaserSummary(o))
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}

func (m *Mailer) build(to, subject, body string) (*mail.Msg, error) {
	msg := mail.NewMsg()
	if err := msg.From(m.from); err != nil {
		return nil, fmt.Errorf("notify: from %q: %w", m.from, err)
	}
	if err := msg.To(to); err != nil {
		return nil, fmt.Errorf("notify: to %q: %w", to, err)
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextPlain, body)
	return msg, nil
}

// PurchaserSummary is the email body sent to the buyer.
func PurchaserSummary(o checkout.Order) string {
	return fmt.Sprintf("Thank you for your order.\n\n%s\n\nRemaining balance: %d points", Summary(o), o.Balance)
}

// errNoTransport is returned when mail is configured without a transport.
var errNoTransport = errors.New("notify: no mail transport")

// Validate reports configuration errors detected at startup.
func (m *Mailer) Validate() error {
	if m.transport == nil {
		return errNoTransport
	}
	if _, err := m.build(m.operatorOrFrom(), "check", ""); err != nil {
		return err
	}
	return nil
}

func (m *Mailer) operatorOrFrom() string {
	if m.operator != "" {
		return m.operator
	}
	return m.from
}
