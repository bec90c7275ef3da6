package executor

import (
	"context"
	"fmt"

	"github.com/fleetvolt/battsched/core/logger"
	"github.com/fleetvolt/battsched/core/model"
)

// Conversion efficiency applied by the simulated power stage.
const (
	dischargeEfficiency = 0.98
	chargeEfficiency    = 0.97
)

// SimExecutor simulates the hardware control path. Production deployments
// replace it with an implementation driving the real battery controller.
type SimExecutor struct {
	deviceID string
	log      logger.Logger
}

// NewSimExecutor creates a simulated executor for the given device.
func NewSimExecutor(deviceID string, log logger.Logger) *SimExecutor {
	return &SimExecutor{deviceID: deviceID, log: log}
}

// Execute applies the command and returns the realized rate.
func (e *SimExecutor) Execute(_ context.Context, mode model.Mode, rateKW float64) (float64, error) {
	var actual float64
	switch mode {
	case model.ModeDischarge:
		actual = rateKW * dischargeEfficiency
	case model.ModeCharge:
		actual = rateKW * chargeEfficiency
	default:
		return 0, fmt.Errorf("invalid mode: %d", mode)
	}
	if e.log != nil {
		e.log.Debugf("device %s: %s at %.2f kW (realized %.2f kW)",
			e.deviceID, mode, rateKW, actual)
	}
	return actual, nil
}
