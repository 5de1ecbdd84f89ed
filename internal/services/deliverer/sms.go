package deliverer

import (
	"context"

	kafkax "github.com/BiblioOps/Noticus/internal/repository/kafka"
)

// SMSSender hands the rendered text body to the gateway topic. The
// gateway owns the actual carrier call.
type SMSSender struct {
	gw *kafkax.SMSKafka
}

var _ Sender = (*SMSSender)(nil)

func NewSMSSender(gw *kafkax.SMSKafka) *SMSSender { return &SMSSender{gw: gw} }

func (s *SMSSender) Send(ctx context.Context, recipient string, msg Message) error {
	return s.gw.Publish(ctx, recipient, msg.TextBody)
}
