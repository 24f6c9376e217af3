package notify

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/bvkay/LEMI-423-Reader/internal/domain"
	"github.com/bvkay/LEMI-423-Reader/internal/ports"
)

// DefaultSubject is used when no subject is configured.
const DefaultSubject = "lemi423.outcomes"

// Publisher is the part of *nats.Conn the notifier needs.
type Publisher interface {
	Publish(subj string, data []byte) error
}

// Message is the JSON body published for each file outcome.
type Message struct {
	RunID   string         `json:"run_id"`
	SentAt  time.Time      `json:"sent_at"`
	Outcome domain.Outcome `json:"outcome"`
}

type NATSNotifier struct {
	pub     Publisher
	subject string
	now     func() time.Time
}

func NewNATSNotifier(pub Publisher, subject string) *NATSNotifier {
	if subject == "" {
		subject = DefaultSubject
	}
	return &NATSNotifier{pub: pub, subject: subject, now: time.Now}
}

// Connect dials url with a client name and bounded reconnects.
func Connect(url string) (*nats.Conn, error) {
	nc, err := nats.Connect(url,
		nats.Name("lemi423"),
		nats.MaxReconnects(5),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS at %s: %w", url, err)
	}
	return nc, nil
}

// Notify publishes o on <subject>.<status>.
func (n *NATSNotifier) Notify(runID string, o domain.Outcome) error {
	payload, err := json.Marshal(Message{RunID: runID, SentAt: n.now().UTC(), Outcome: o})
	if err != nil {
		return fmt.Errorf("marshal outcome for %s: %w", o.Path, err)
	}
	subject := n.subject + "." + string(o.Status)
	if err := n.pub.Publish(subject, payload); err != nil {
		return fmt.Errorf("publish outcome for %s to %s: %w", o.Path, subject, err)
	}
	return nil
}

var (
	_ ports.Notifier = (*NATSNotifier)(nil)
	_ Publisher      = (*nats.Conn)(nil)
)
