package optimizer

import "time"

// OptimizationStep is one optimizer iteration: the candidate template, its
// score against the verification spec, and free-text feedback.
type OptimizationStep struct {
	Iteration int       `json:"iteration"`
	Template  string    `json:"template"`
	Score     float64   `json:"score" validate:"min=0,max=1"`
	Feedback  string    `json:"feedback"`
	Timestamp time.Time `json:"timestamp"`
}

// Trajectory is the append-only record of one optimization run. "Best so far"
// is derived from it rather than tracked alongside it, so the log and the
// winner can never diverge.
type Trajectory []OptimizationStep

// Best returns the highest-scoring step, earliest iteration on ties. The
// second return is false when the trajectory is empty.
func (t Trajectory) Best() (OptimizationStep, bool) {
	if len(t) == 0 {
		return OptimizationStep{}, false
	}
	best := t[0]
	for _, step := range t[1:] {
		if step.Score > best.Score {
			best = step
		}
	}
	return best, true
}

// FinalScore returns the best recorded score, or 0 for an empty trajectory.
func (t Trajectory) FinalScore() float64 {
	best, ok := t.Best()
	if !ok {
		return 0
	}
	return best.Score
}
