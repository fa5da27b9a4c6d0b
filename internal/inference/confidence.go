package inference

// ConfidenceEstimator assigns a confidence score to a completion. The
// default is a stand-in heuristic, not real model calibration; it exists as
// an interface so a calibrated scorer can replace it without touching the
// router.
type ConfidenceEstimator interface {
	Estimate(text string, task TaskType) float64
}

// HeuristicEstimator scores deterministically from surface features of the
// text. Scores land in [0.70, 0.95].
type HeuristicEstimator struct{}

func (HeuristicEstimator) Estimate(text string, task TaskType) float64 {
	score := 0.70

	// Longer, structured answers read as more complete.
	if len(text) > 200 {
		score += 0.10
	} else if len(text) > 50 {
		score += 0.05
	}

	// A hedged answer on a medical task is the expected register.
	if disclaimedTasks[task] && hasDisclaimer(text) {
		score += 0.10
	}

	if score > 0.95 {
		score = 0.95
	}
	return score
}
