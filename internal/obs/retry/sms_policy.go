package retry

import (
	"time"

	"go.uber.org/zap"
)

// SMSPublishPolicy bounds the in-call retries of a gateway-topic
// publish. Exhaustion surfaces as one error to the delivery worker,
// which records the failure; re-delivery stays an explicit operation.
func SMSPublishPolicy(log *zap.Logger) Policy {
	return Policy{
		Name:     "sms_publish",
		Attempts: 3,
		Base:     100 * time.Millisecond,
		Max:      2 * time.Second,
		Jitter:   0.2,
		Log:      log,
	}
}
