package events

import (
	"context"
	"time"

	"github.com/bytedance/sonic"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	log2 "lms/log"
)

// LoanChannel carries lifecycle notifications for the admin console and other
// listeners. Publishing happens after commit and never feeds back into the
// ledger.
const LoanChannel = "loan-events"

const (
	EventBorrowed = "loan.borrowed"
	EventReturned = "loan.returned"
	EventCanceled = "loan.canceled"
	EventPurged   = "loan.purged"
)

type Message struct {
	ID         string    `json:"id"`
	Event      string    `json:"event"`
	LoanID     uint      `json:"loan_id"`
	Reference  string    `json:"reference"`
	BookID     uint      `json:"book_id"`
	CardNumber string    `json:"card_number"`
	At         time.Time `json:"at"`
}

func (m Message) MarshalBinary() ([]byte, error) {
	return sonic.Marshal(m)
}

type Publisher struct {
	c *redis.Client
}

func NewPublisher(c *redis.Client) *Publisher {
	return &Publisher{c: c}
}

// Publish is fire-and-forget: a notification failure is logged, never surfaced
// to the lending operation that triggered it. A nil publisher drops messages.
func (p *Publisher) Publish(ctx context.Context, m Message) {
	if p == nil || p.c == nil {
		return
	}
	m.ID = uuid.New().String()
	logger := log2.GetLogger(ctx)
	if err := p.c.Publish(ctx, LoanChannel, m).Err(); err != nil {
		logger.WithError(err).Errorf("error publishing %s message to %s channel", m.Event, LoanChannel)
		return
	}
	logger.Infof("%s message published to channel :%s", m.Event, LoanChannel)
}
