package dispatch

import (
	"fmt"

	"github.com/Knetic/govaluate"

	"github.com/lancehub/lancehub/internal/domain/bid"
)

// EvalFilter evaluates a user's mute expression against an event. A true
// result means the push is suppressed for that user. Expressions see the
// event's amount, delivery time, status, project and version, e.g.
// "amount < 50 && status != 'ACCEPTED'".
func EvalFilter(expression string, ev bid.Changed) (bool, error) {
	expr, err := govaluate.NewEvaluableExpression(expression)
	if err != nil {
		return false, fmt.Errorf("parse filter: %w", err)
	}
	amount, _ := ev.Amount.Float64()
	params := map[string]interface{}{
		"amount":           amount,
		"deliveryTimeDays": float64(ev.DeliveryTimeDays),
		"status":           string(ev.NewStatus),
		"projectId":        ev.ProjectID.String(),
		"bidId":            ev.BidID.String(),
		"version":          float64(ev.Version),
	}
	result, err := expr.Evaluate(params)
	if err != nil {
		return false, fmt.Errorf("evaluate filter: %w", err)
	}
	muted, ok := result.(bool)
	if !ok {
		return false, fmt.Errorf("filter must evaluate to a boolean, got %T", result)
	}
	return muted, nil
}

// ValidateFilter checks an expression parses and references only known
// event fields, so bad filters are rejected at write time rather than
// silently ignored at dispatch time.
func ValidateFilter(expression string) error {
	expr, err := govaluate.NewEvaluableExpression(expression)
	if err != nil {
		return fmt.Errorf("parse filter: %w", err)
	}
	known := map[string]struct{}{
		"amount":           {},
		"deliveryTimeDays": {},
		"status":           {},
		"projectId":        {},
		"bidId":            {},
		"version":          {},
	}
	for _, v := range expr.Vars() {
		if _, ok := known[v]; !ok {
			return fmt.Errorf("unknown filter field %q", v)
		}
	}
	return nil
}
