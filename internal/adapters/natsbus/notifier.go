package natsbus

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	nats "github.com/nats-io/nats.go"

	"threatwatch/internal/domain"
)

const DefaultSubject = "threatwatch.alerts"

// AlertEvent is the message body published for every new alert.
type AlertEvent struct {
	Alert     domain.Alert     `json:"alert"`
	Indicator domain.Indicator `json:"indicator"`
}

// Notifier publishes alerts to a NATS subject. The subject gets a severity
// suffix, e.g. threatwatch.alerts.critical, so subscribers can filter with
// wildcards.
type Notifier struct {
	nc      *nats.Conn
	subject string
}

// Connect dials url with reconnects enabled.
func Connect(url, subject string) (*Notifier, error) {
	nc, err := nats.Connect(url,
		nats.Name("threatwatch"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect %s: %w", url, err)
	}
	return New(nc, subject), nil
}

func New(nc *nats.Conn, subject string) *Notifier {
	if subject == "" {
		subject = DefaultSubject
	}
	return &Notifier{nc: nc, subject: subject}
}

func (n *Notifier) Subject(sev domain.Severity) string { return n.subject + "." + string(sev) }

func (n *Notifier) Notify(ctx context.Context, alert domain.Alert, ind domain.Indicator) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(AlertEvent{Alert: alert, Indicator: ind})
	if err != nil {
		return fmt.Errorf("encode alert %s: %w", alert.ID, err)
	}
	hdr := nats.Header{}
	hdr.Set("Alert-Id", alert.ID)
	msg := &nats.Msg{Subject: n.Subject(alert.Severity), Data: data, Header: hdr}
	if err := n.nc.PublishMsg(msg); err != nil {
		return fmt.Errorf("publish alert %s: %w", alert.ID, err)
	}
	return nil
}

// Close flushes pending messages and closes the connection.
func (n *Notifier) Close() {
	_ = n.nc.Drain()
}
