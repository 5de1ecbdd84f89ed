package kafka

import (
	"context"
	"time"

	"github.com/BiblioOps/Noticus/internal/obs/retry"
)

// SMSMessage is the wire format the SMS gateway consumes from the
// outbound topic.
type SMSMessage struct {
	Phone  string    `json:"phone"`
	Body   string    `json:"body"`
	SentAt time.Time `json:"sent_at"`
}

// SMSKafka publishes outbound text messages for the gateway. Publish
// failures are retried in-call with a small policy; the caller sees a
// single error once the policy is exhausted.
type SMSKafka struct {
	p   *Producer
	pol retry.Policy
}

func NewSMSKafka(p *Producer, pol retry.Policy) *SMSKafka {
	return &SMSKafka{p: p, pol: pol}
}

func (s *SMSKafka) Publish(ctx context.Context, phone, body string) error {
	msg := SMSMessage{Phone: phone, Body: body, SentAt: time.Now().UTC()}
	return s.pol.Do(ctx, func() error {
		return s.p.PublishJSON(ctx, []byte(phone), msg)
	})
}
