// Package audit fans sync outcomes out to NATS for downstream consumers
// (ops dashboards, anomaly detection). Publishing is fire-and-forget; a
// broker outage never fails a sync request.
package audit

import (
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/gi-connect/gi-connect-stack/common/logging"
)

type Publisher struct {
	conn    *nats.Conn
	subject string
	log     *logging.Logger
}

// Record is the message published after each sync attempt.
type Record struct {
	Kind     string `json:"kind"` // event, order, product
	VendorID string `json:"vendor_id"`
	Status   string `json:"status"` // ok, failed
	At       string `json:"at"`
}

// New connects to NATS and returns a Publisher. A nil Publisher is returned
// without error when url is empty; all its methods are nil-safe no-ops.
func New(url, subject string, log *logging.Logger) (*Publisher, error) {
	if url == "" {
		return nil, nil
	}

	conn, err := nats.Connect(url,
		nats.Name("gi-sync"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.Timeout(5*time.Second),
	)
	if err != nil {
		return nil, err
	}

	return &Publisher{conn: conn, subject: subject, log: log}, nil
}

// Publish emits a sync outcome on <subject>.<kind>. Errors are logged and
// swallowed.
func (p *Publisher) Publish(kind, vendorID, status string) {
	if p == nil || p.conn == nil {
		return
	}

	payload, err := json.Marshal(Record{
		Kind:     kind,
		VendorID: vendorID,
		Status:   status,
		At:       time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return
	}

	if err := p.conn.Publish(p.subject+"."+kind, payload); err != nil {
		p.log.Warn("audit publish failed", "kind", kind, "error", err)
	}
}

func (p *Publisher) Close() {
	if p == nil || p.conn == nil {
		return
	}
	p.conn.Drain()
}
