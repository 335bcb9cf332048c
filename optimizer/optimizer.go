// Package optimizer runs the bounded search loop that asks the gateway for
// improved template variants, scores each against the program's verification
// spec, and keeps the full trajectory for auditability.
package optimizer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/promptforge/promptforge/gateway"
	"github.com/promptforge/promptforge/internal/logging"
	"github.com/promptforge/promptforge/program"
)

// Defaults bounding worst-case latency. Both are configurable per run.
const (
	DefaultMaxIterations    = 3
	DefaultQualityThreshold = 1.0
)

var validate = validator.New()

// IterationCallback observes each appended step as it happens.
type IterationCallback func(iteration int, step OptimizationStep)

// Optimizer searches for a higher-scoring template variant.
type Optimizer struct {
	gw            gateway.Gateway
	logger        logging.Logger
	maxIterations int
	threshold     float64
	callback      IterationCallback
}

// Option configures an Optimizer.
type Option func(*Optimizer)

// WithMaxIterations bounds the search loop.
func WithMaxIterations(n int) Option {
	return func(o *Optimizer) {
		if n > 0 {
			o.maxIterations = n
		}
	}
}

// WithQualityThreshold sets the early-stopping score.
func WithQualityThreshold(threshold float64) Option {
	return func(o *Optimizer) {
		o.threshold = threshold
	}
}

// WithIterationCallback registers an observer for each step.
func WithIterationCallback(cb IterationCallback) Option {
	return func(o *Optimizer) {
		o.callback = cb
	}
}

// New creates an Optimizer with the default bounds.
func New(gw gateway.Gateway, logger logging.Logger, opts ...Option) *Optimizer {
	o := &Optimizer{
		gw:            gw,
		logger:        logger,
		maxIterations: DefaultMaxIterations,
		threshold:     DefaultQualityThreshold,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Optimize runs the search. It terminates Converged (a candidate reached the
// threshold) or Exhausted (iteration budget spent); both return a program.
// A gateway failure mid-loop ends the search early and falls back to the best
// candidate seen, or the original program when no iteration completed. The
// trajectory is always returned for the caller's metadata.
func (o *Optimizer) Optimize(ctx context.Context, prog *program.PromptProgram) (*program.PromptProgram, Trajectory, error) {
	if len(prog.Verification) == 0 {
		// Nothing to score against; the caller should have skipped us.
		return prog, nil, nil
	}

	trajectory := Trajectory{}
	for i := 0; i < o.maxIterations; i++ {
		// Cancellation checkpoint: no new gateway call once the owning
		// request is gone.
		if err := ctx.Err(); err != nil {
			o.logger.Debug("optimization cancelled", "iteration", i)
			break
		}

		candidate, reasoning, err := o.propose(ctx, prog, trajectory)
		if err != nil {
			o.logger.Warn("proposal failed, falling back to best candidate", "iteration", i, "error", err)
			break
		}

		score, feedback := scoreTemplate(candidate, prog.Verification)
		if reasoning != "" {
			feedback = feedback + "; " + reasoning
		}

		step := OptimizationStep{
			Iteration: i,
			Template:  candidate,
			Score:     score,
			Feedback:  feedback,
			Timestamp: time.Now(),
		}
		trajectory = append(trajectory, step)
		if o.callback != nil {
			o.callback(i, step)
		}

		if score >= o.threshold {
			o.logger.Debug("optimization converged", "iteration", i, "score", score)
			break
		}
	}

	best, ok := trajectory.Best()
	if !ok {
		return prog, trajectory, nil
	}
	if best.Template == prog.Template {
		return prog, trajectory, nil
	}
	// A winning candidate must still render against the program's own inputs;
	// otherwise the original template stands.
	if _, err := program.Render(best.Template, prog.TemplateData()); err != nil {
		o.logger.Warn("best candidate does not render, keeping original template", "error", err)
		return prog, trajectory, nil
	}
	improved := prog.WithTemplate(best.Template)
	improved.Annotate("optimizer_iterations", fmt.Sprintf("%d", len(trajectory)))
	improved.Annotate("optimizer_score", fmt.Sprintf("%.2f", best.Score))
	return improved, trajectory, nil
}

type proposal struct {
	Template  string `json:"template" validate:"required"`
	Reasoning string `json:"reasoning"`
}

// propose asks the gateway for a new variant, conditioned on the full
// trajectory so later proposals can react to earlier scores and feedback.
func (o *Optimizer) propose(ctx context.Context, prog *program.PromptProgram, trajectory Trajectory) (string, string, error) {
	var history strings.Builder
	for _, step := range trajectory {
		fmt.Fprintf(&history, "- iteration %d (score %.2f): %s\n  template: %s\n",
			step.Iteration, step.Score, step.Feedback, step.Template)
	}
	if history.Len() == 0 {
		history.WriteString("(none yet)\n")
	}

	var caseNames []string
	for _, tc := range prog.Verification {
		caseNames = append(caseNames, tc.Name)
	}

	ask := fmt.Sprintf(`Improve the following prompt template. Placeholders such as {{.instruction}} must be preserved verbatim.

Current template:
%s

Verification checks the template must satisfy: %s

Previous attempts:
%s
Respond ONLY with a raw JSON object, no markdown, no code fences:
{"template": "the improved template text", "reasoning": "what changed and why"}`,
		prog.Template, strings.Join(caseNames, ", "), history.String())

	response, err := o.gw.Generate(ctx, ask)
	if err != nil {
		return "", "", err
	}

	cleaned := cleanJSONResponse(response)
	var p proposal
	if err := json.Unmarshal([]byte(cleaned), &p); err != nil {
		return "", "", fmt.Errorf("failed to parse proposal: %w", err)
	}
	if err := validate.Struct(&p); err != nil {
		return "", "", fmt.Errorf("invalid proposal structure: %w", err)
	}
	return p.Template, p.Reasoning, nil
}

// scoreTemplate runs every verification case against the candidate and
// returns passed/total with feedback naming the failures.
func scoreTemplate(candidate string, cases []program.TestCase) (float64, string) {
	if len(cases) == 0 {
		return 0, "no verification cases"
	}

	passed := 0
	var failures []string
	for _, tc := range cases {
		rendered, err := program.Render(candidate, tc.Input)
		if err != nil {
			failures = append(failures, tc.Name+" (render error)")
			continue
		}
		if tc.Expect.Check(rendered) {
			passed++
		} else {
			failures = append(failures, tc.Name)
		}
	}

	score := float64(passed) / float64(len(cases))
	feedback := fmt.Sprintf("passed %d/%d verification cases", passed, len(cases))
	if len(failures) > 0 {
		feedback += ": failed " + strings.Join(failures, ", ")
	}
	return score, feedback
}

// cleanJSONResponse strips markdown fences and surrounding prose from a
// gateway response so the JSON payload can be parsed.
func cleanJSONResponse(response string) string {
	response = strings.TrimSpace(response)
	response = strings.TrimPrefix(response, "```json")
	response = strings.TrimPrefix(response, "```")
	response = strings.TrimSuffix(response, "```")
	response = strings.TrimSpace(response)

	if strings.HasPrefix(response, "{") {
		return response
	}

	start := strings.Index(response, "{")
	end := strings.LastIndex(response, "}")
	if start != -1 && end != -1 && end > start {
		return response[start : end+1]
	}
	return response
}
