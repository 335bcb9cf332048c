package compiler

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/promptforge/promptforge/internal/logging"
	"github.com/promptforge/promptforge/program"
	"github.com/promptforge/promptforge/retrieval"
)

func newTestCompiler(pairs []retrieval.ExamplePair, opts ...Option) *Compiler {
	logger := logging.NewMockLogger()
	retriever := retrieval.New(retrieval.NewPool(pairs), logger)
	return New(retriever, logger, opts...)
}

func TestBuildSimpleTier(t *testing.T) {
	c := newTestCompiler([]retrieval.ExamplePair{{Input: "short ask", Output: "short answer"}})

	prog, retrievalErr := c.Build(context.Background(), program.Inputs{Instruction: "write a limerick"}, program.IntentGenerate)
	require.NoError(t, retrievalErr)

	assert.Equal(t, TierSimple, prog.StrategyMeta["tier"])
	assert.Equal(t, roleByIntent[program.IntentGenerate], prog.StrategyMeta["role"])
	assert.NotContains(t, prog.Template, "restate the request", "simple tier carries no scaffold")
	assert.Contains(t, prog.Template, "{{.instruction}}")
	assert.Empty(t, prog.Verification)
}

func TestBuildComplexTierFromCodePresence(t *testing.T) {
	c := newTestCompiler(nil)

	inputs := program.Inputs{
		Instruction: "fix this",
		CodeSnippet: "def f(): bar()",
		ErrorText:   "NameError: bar",
	}
	prog, _ := c.Build(context.Background(), inputs, program.IntentDebugRuntime)

	assert.Equal(t, TierComplex, prog.StrategyMeta["tier"])
	assert.Contains(t, prog.Template, "restate the request")
	assert.Contains(t, prog.Template, "{{.code}}")
	assert.Contains(t, prog.Template, "{{.error}}")
}

func TestBuildComplexTierFromLength(t *testing.T) {
	c := newTestCompiler(nil, WithComplexityTokenLimit(5))

	prog, _ := c.Build(context.Background(), program.Inputs{
		Instruction: "one two three four five six seven eight nine ten",
	}, program.IntentGenerate)

	assert.Equal(t, TierComplex, prog.StrategyMeta["tier"])
}

func TestBuildInjectsExamples(t *testing.T) {
	c := newTestCompiler([]retrieval.ExamplePair{
		{Input: "sort a slice", Output: "use the sort package"},
		{Input: "reverse a slice", Output: "iterate from both ends"},
	}, WithRetrievalK(2))

	prog, retrievalErr := c.Build(context.Background(), program.Inputs{Instruction: "sort a slice fast"}, program.IntentGenerate)
	require.NoError(t, retrievalErr)

	assert.Contains(t, prog.Template, "use the sort package")
	assert.Equal(t, "2", prog.StrategyMeta["retrieval_count"])
}

func TestBuildSurvivesRetrievalFailure(t *testing.T) {
	c := newTestCompiler(nil) // empty pool

	prog, retrievalErr := c.Build(context.Background(), program.Inputs{Instruction: "anything"}, program.IntentGenerate)

	require.Error(t, retrievalErr, "failure is reported to the caller")
	assert.True(t, retrieval.IsKind(retrievalErr, retrieval.KindEmptyPool))
	require.NotNil(t, prog, "but compilation still produced a program")
	assert.Equal(t, "EmptyPoolError", prog.StrategyMeta["retrieval_failed"])
	assert.Contains(t, prog.Template, "{{.instruction}}")
}

func TestBuildWithoutRetriever(t *testing.T) {
	c := New(nil, logging.NewMockLogger())

	prog, retrievalErr := c.Build(context.Background(), program.Inputs{Instruction: "anything"}, program.IntentGenerate)
	require.NoError(t, retrievalErr)
	assert.NotContains(t, prog.Template, "Examples")
}

func TestBuildVerificationFromExpectation(t *testing.T) {
	c := newTestCompiler(nil)

	prog, _ := c.Build(context.Background(), program.Inputs{
		Instruction: "adjust the formatter",
		Context:     "expected: exactly one trailing newline",
	}, program.IntentRefactor)

	require.Len(t, prog.Verification, 2)
	assert.Equal(t, "stated_expectation_present", prog.Verification[0].Name)
	assert.Equal(t, "instruction_placeholder_survives", prog.Verification[1].Name)
}

type outputShape struct {
	Summary string `json:"summary"`
	Score   int    `json:"score"`
}

func TestBuildVerificationFromSchema(t *testing.T) {
	c := newTestCompiler(nil)

	prog, _ := c.Build(context.Background(), program.Inputs{
		Instruction:   "rate this essay",
		SchemaContext: &outputShape{},
	}, program.IntentGenerate)

	assert.Equal(t, TierComplex, prog.StrategyMeta["tier"], "schema presence selects the complex tier")
	assert.Contains(t, prog.Template, "single JSON object")
	assert.Contains(t, prog.Template, "summary")

	require.NotEmpty(t, prog.Verification)
	assert.Equal(t, "schema_instructions_survive", prog.Verification[0].Name)
}

func TestBuildTemplateRenders(t *testing.T) {
	c := newTestCompiler(nil)

	inputs := program.Inputs{
		Instruction: "explain the bug",
		Context:     "it happens on startup",
		CodeSnippet: "x := nil",
		ErrorText:   "invalid nil assignment",
	}
	prog, _ := c.Build(context.Background(), inputs, program.IntentExplain)

	rendered, err := prog.Render()
	require.NoError(t, err)
	assert.Contains(t, rendered, "explain the bug")
	assert.Contains(t, rendered, "it happens on startup")
	assert.Contains(t, rendered, "x := nil")
	assert.Contains(t, rendered, "invalid nil assignment")
	assert.Contains(t, rendered, roleByIntent[program.IntentExplain])
}

func TestBuildUnknownIntentFallsBackToGenerateRole(t *testing.T) {
	c := newTestCompiler(nil)

	prog, _ := c.Build(context.Background(), program.Inputs{Instruction: "x"}, program.Intent("bogus"))
	assert.Equal(t, roleByIntent[program.IntentGenerate], prog.StrategyMeta["role"])
}
