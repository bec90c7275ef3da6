// Package executor is the hardware boundary: it turns one schedule entry
// into a charge or discharge command on the battery controller.
package executor

import (
	"context"

	"github.com/fleetvolt/battsched/core/model"
)

// Executor issues a single charge or discharge command and reports the
// realized rate. The realized rate may legitimately differ from the
// requested rate due to conversion losses; callers must not assume equality.
type Executor interface {
	Execute(ctx context.Context, mode model.Mode, rateKW float64) (actualRateKW float64, err error)
}
