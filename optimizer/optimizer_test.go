package optimizer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/promptforge/promptforge/gateway"
	"github.com/promptforge/promptforge/internal/logging"
	"github.com/promptforge/promptforge/program"
)

func testProgram() *program.PromptProgram {
	prog := program.New(program.IntentGenerate, program.Inputs{Instruction: "solve it"})
	prog.Template = "Task: {{.instruction}}"
	prog.Verification = []program.TestCase{
		{
			Name:   "keeps_instruction",
			Input:  map[string]string{"instruction": "PROBE"},
			Expect: program.ContainsPredicate{Substr: "PROBE"},
		},
		{
			Name:   "has_answer_cue",
			Input:  map[string]string{"instruction": "PROBE"},
			Expect: program.ContainsPredicate{Substr: "Answer:"},
		},
	}
	return prog
}

func TestOptimizeEarlyStopping(t *testing.T) {
	gw := gateway.NewMock(`{"template": "Task: {{.instruction}}\nAnswer:", "reasoning": "added answer cue"}`)
	o := New(gw, logging.NewMockLogger())

	prog := testProgram()
	improved, trajectory, err := o.Optimize(context.Background(), prog)
	require.NoError(t, err)

	require.Len(t, trajectory, 1, "a perfect score on iteration 0 must stop the loop")
	assert.Equal(t, 1, gw.Calls())
	assert.Equal(t, 1.0, trajectory[0].Score)
	assert.Equal(t, "1.1.0", improved.Version)
	assert.Contains(t, improved.Template, "Answer:")
}

func TestOptimizeExhaustionPicksBestEarliest(t *testing.T) {
	gw := gateway.NewMock("")
	gw.QueueResponses(
		`{"template": "Answer: something", "reasoning": "first"}`,
		`{"template": "no cues at all", "reasoning": "second"}`,
		`{"template": "Answer: something else", "reasoning": "third"}`,
	)
	o := New(gw, logging.NewMockLogger())

	prog := testProgram()
	improved, trajectory, err := o.Optimize(context.Background(), prog)
	require.NoError(t, err)

	require.Len(t, trajectory, 3, "no candidate reaches threshold, budget is spent")
	assert.Equal(t, 3, gw.Calls())
	assert.Equal(t, 0.5, trajectory[0].Score)
	assert.Equal(t, 0.0, trajectory[1].Score)
	assert.Equal(t, 0.5, trajectory[2].Score)

	// Ties on the best score break to the earliest iteration.
	assert.Equal(t, "Answer: something", improved.Template)
}

func TestOptimizeGatewayFailureFallsBackToOriginal(t *testing.T) {
	gw := gateway.NewMock("irrelevant")
	gw.FailWith(gateway.NewError(gateway.KindUnavailable, "backend down", nil))
	o := New(gw, logging.NewMockLogger())

	prog := testProgram()
	improved, trajectory, err := o.Optimize(context.Background(), prog)
	require.NoError(t, err, "gateway failure is recovered, not propagated")

	assert.Empty(t, trajectory)
	assert.Same(t, prog, improved, "iteration 0 never completed, original wins")
}

type flakyGateway struct {
	responses []string
	calls     int
}

func (f *flakyGateway) Generate(ctx context.Context, prompt string) (string, error) {
	f.calls++
	if f.calls > len(f.responses) {
		return "", gateway.NewError(gateway.KindTimeout, "too slow", nil)
	}
	return f.responses[f.calls-1], nil
}

func TestOptimizeMidLoopFailureKeepsBestSoFar(t *testing.T) {
	gw := &flakyGateway{responses: []string{
		`{"template": "Answer: partial", "reasoning": "half the cases"}`,
	}}
	o := New(gw, logging.NewMockLogger())

	prog := testProgram()
	improved, trajectory, err := o.Optimize(context.Background(), prog)
	require.NoError(t, err)

	require.Len(t, trajectory, 1)
	assert.Equal(t, 2, gw.calls, "the failing call ends the loop")
	assert.Equal(t, "Answer: partial", improved.Template)
}

func TestOptimizeCancelledBeforeStart(t *testing.T) {
	gw := gateway.NewMock("irrelevant")
	o := New(gw, logging.NewMockLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	prog := testProgram()
	improved, trajectory, err := o.Optimize(ctx, prog)
	require.NoError(t, err)
	assert.Empty(t, trajectory)
	assert.Same(t, prog, improved)
	assert.Zero(t, gw.Calls(), "no gateway call once the request is cancelled")
}

func TestOptimizeEmptyVerificationIsNoop(t *testing.T) {
	gw := gateway.NewMock("irrelevant")
	o := New(gw, logging.NewMockLogger())

	prog := program.New(program.IntentGenerate, program.Inputs{Instruction: "x"})
	prog.Template = "Task: {{.instruction}}"

	improved, trajectory, err := o.Optimize(context.Background(), prog)
	require.NoError(t, err)
	assert.Same(t, prog, improved)
	assert.Empty(t, trajectory)
	assert.Zero(t, gw.Calls())
}

func TestOptimizeUnrenderableCandidateKeepsOriginal(t *testing.T) {
	// Syntactically broken templates score zero on every case, but one of them
	// still wins a trajectory where nothing scored higher. It must not replace
	// a template that renders.
	gw := gateway.NewMock(`{"template": "Task: {{.instruction", "reasoning": "dropped a brace"}`)
	o := New(gw, logging.NewMockLogger())

	prog := testProgram()
	improved, trajectory, err := o.Optimize(context.Background(), prog)
	require.NoError(t, err)

	require.Len(t, trajectory, DefaultMaxIterations)
	for _, step := range trajectory {
		assert.Zero(t, step.Score)
	}
	assert.Same(t, prog, improved, "an unrenderable winner falls back to the original")
}

func TestOptimizeMalformedProposalIsFatalForTheLoop(t *testing.T) {
	gw := gateway.NewMock("this is not json at all")
	o := New(gw, logging.NewMockLogger())

	prog := testProgram()
	improved, trajectory, err := o.Optimize(context.Background(), prog)
	require.NoError(t, err)
	assert.Empty(t, trajectory)
	assert.Same(t, prog, improved)
}

func TestTrajectoryBest(t *testing.T) {
	trajectory := Trajectory{
		{Iteration: 0, Score: 0.4},
		{Iteration: 1, Score: 0.8},
		{Iteration: 2, Score: 0.8},
	}

	best, ok := trajectory.Best()
	require.True(t, ok)
	assert.Equal(t, 1, best.Iteration, "earliest of the tied best scores")

	_, ok = Trajectory{}.Best()
	assert.False(t, ok)
	assert.Zero(t, Trajectory{}.FinalScore())
}

func TestCleanJSONResponse(t *testing.T) {
	testCases := []struct {
		name     string
		raw      string
		expected string
	}{
		{
			name:     "fenced json",
			raw:      "```json\n{\"template\": \"x\"}\n```",
			expected: `{"template": "x"}`,
		},
		{
			name:     "prose around object",
			raw:      `Sure! Here it is: {"template": "x"} hope that helps`,
			expected: `{"template": "x"}`,
		},
		{
			name:     "already clean",
			raw:      `{"template": "x"}`,
			expected: `{"template": "x"}`,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, cleanJSONResponse(tc.raw))
		})
	}
}
