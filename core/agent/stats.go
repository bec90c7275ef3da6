package agent

import (
	"gonum.org/v1/gonum/stat"

	"github.com/fleetvolt/battsched/core/model"
)

type executionSummary struct {
	Executions     int
	SuccessRatio   float64
	MeanActualKW   float64
	StdDevActualKW float64
}

// summarize reduces execution history to the figures reported by the health
// loop. Rates are taken from successful executions only.
func summarize(recs []model.ExecutionRecord) executionSummary {
	s := executionSummary{Executions: len(recs)}
	if len(recs) == 0 {
		return s
	}
	var rates []float64
	successes := 0
	for _, r := range recs {
		if r.Status != model.ExecutionSuccess {
			continue
		}
		successes++
		if r.ActualRateKW != nil {
			rates = append(rates, *r.ActualRateKW)
		}
	}
	s.SuccessRatio = float64(successes) / float64(len(recs))
	if len(rates) > 0 {
		s.MeanActualKW = stat.Mean(rates, nil)
		if len(rates) > 1 {
			s.StdDevActualKW = stat.StdDev(rates, nil)
		}
	}
	return s
}
