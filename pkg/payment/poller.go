package payment

import (
	"context"
	"log"
	"time"
)

// PollBudget bounds a polling loop: at most MaxAttempts queries, Interval
// apart. The default budget covers roughly one minute, which is how long an
// STK prompt stays on the customer's phone.
type PollBudget struct {
	MaxAttempts int
	Interval    time.Duration
}

var DefaultPollBudget = PollBudget{MaxAttempts: 12, Interval: 5 * time.Second}

func (b PollBudget) withDefaults() PollBudget {
	if b.MaxAttempts <= 0 {
		b.MaxAttempts = DefaultPollBudget.MaxAttempts
	}
	if b.Interval <= 0 {
		b.Interval = DefaultPollBudget.Interval
	}
	return b
}

// Poll queries the gateway for a checkout request until a terminal outcome
// or the budget runs out. Pending responses and inconclusive attempts
// (network errors, unrecognized codes) both consume an attempt and keep the
// loop going; only ctx cancellation or a terminal outcome stops it early.
// After the budget is exhausted the result is a TIMEOUT outcome, never an
// indefinite hang.
func Poll(ctx context.Context, p Provider, checkoutRequestID string, budget PollBudget) Outcome {
	budget = budget.withDefaults()
	for attempt := 1; attempt <= budget.MaxAttempts; attempt++ {
		outcome, err := p.QueryStatus(ctx, checkoutRequestID)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return Outcome{Status: StatusTimeout, Description: "Status polling cancelled."}
			}
			log.Printf("[MPESA poll] checkout_request_id=%s attempt=%d/%d inconclusive: %v", checkoutRequestID, attempt, budget.MaxAttempts, err)
		case outcome.Terminal():
			log.Printf("[MPESA poll] checkout_request_id=%s attempt=%d/%d resolved status=%s code=%s", checkoutRequestID, attempt, budget.MaxAttempts, outcome.Status, outcome.Code)
			return outcome
		default:
			log.Printf("[MPESA poll] checkout_request_id=%s attempt=%d/%d still pending", checkoutRequestID, attempt, budget.MaxAttempts)
		}
		if attempt == budget.MaxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return Outcome{Status: StatusTimeout, Description: "Status polling cancelled."}
		case <-time.After(budget.Interval):
		}
	}
	return Outcome{Status: StatusTimeout, Description: "Transaction timed out. Please try again."}
}
