// Package compiler assembles a prompt program from a request, its resolved
// intent and retrieved examples. Retrieval failure degrades compilation, it
// never aborts it.
package compiler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/invopop/jsonschema"

	"github.com/promptforge/promptforge/internal/logging"
	"github.com/promptforge/promptforge/internal/tokens"
	"github.com/promptforge/promptforge/program"
	"github.com/promptforge/promptforge/retrieval"
)

// Tier names the strategy tiers.
const (
	TierSimple  = "simple"
	TierComplex = "complex"
)

// roleByIntent is the fixed intent to role mapping.
var roleByIntent = map[program.Intent]string{
	program.IntentGenerate:     "a versatile expert assistant",
	program.IntentDebugRuntime: "a senior debugging engineer",
	program.IntentDebugVague:   "a methodical diagnostic engineer",
	program.IntentRefactor:     "a code quality specialist",
	program.IntentExplain:      "a patient technical explainer",
}

var expectationText = regexp.MustCompile(`(?i)expected\s*:\s*([^\n]+)`)

// Compiler builds prompt programs.
type Compiler struct {
	retriever         *retrieval.Retriever
	counter           *tokens.Counter
	logger            logging.Logger
	retrievalK        int
	complexTokenLimit int
}

// Option configures a Compiler.
type Option func(*Compiler)

// WithRetrievalK sets how many examples are requested per compilation.
func WithRetrievalK(k int) Option {
	return func(c *Compiler) {
		c.retrievalK = k
	}
}

// WithComplexityTokenLimit sets the token count above which the complex tier
// is selected.
func WithComplexityTokenLimit(limit int) Option {
	return func(c *Compiler) {
		c.complexTokenLimit = limit
	}
}

// New creates a Compiler. The retriever may be nil, in which case compilation
// always proceeds without examples.
func New(retriever *retrieval.Retriever, logger logging.Logger, opts ...Option) *Compiler {
	c := &Compiler{
		retriever:         retriever,
		counter:           tokens.NewCounter(),
		logger:            logger,
		retrievalK:        3,
		complexTokenLimit: 120,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Build assembles the program. The returned retrieval error, if any, is
// informational: it has already been recovered from and annotated.
func (c *Compiler) Build(ctx context.Context, inputs program.Inputs, intent program.Intent) (*program.PromptProgram, error) {
	prog := program.New(intent, inputs)
	prog.Constraints = append([]string{}, inputs.ConstraintTags...)

	tier := c.selectTier(inputs)
	role := roleByIntent[intent]
	if role == "" {
		role = roleByIntent[program.IntentGenerate]
	}
	prog.Annotate("tier", tier)
	prog.Annotate("role", role)

	examples, retrievalErr := c.retrieve(ctx, inputs.Instruction)
	if retrievalErr != nil {
		// Recovered locally: compilation proceeds without examples.
		var re *retrieval.Error
		kind := "error"
		if errors.As(retrievalErr, &re) {
			kind = re.Kind.String()
		}
		prog.Annotate("retrieval_failed", kind)
		c.logger.Warn("retrieval failed, compiling without examples", "error", retrievalErr)
	} else {
		prog.Annotate("retrieval_count", fmt.Sprintf("%d", len(examples)))
	}

	schemaSection, schemaPresent := c.schemaSection(inputs.SchemaContext)
	prog.Template = c.assemble(inputs, role, tier, examples, schemaSection)
	prog.Verification = c.buildVerification(inputs, schemaPresent)
	if len(prog.Verification) == 0 {
		prog.Annotate("verification", "empty")
	}

	return prog, retrievalErr
}

// selectTier is the explicit complexity heuristic: token count over the
// instruction and context, plus the presence of code, error or schema fields.
func (c *Compiler) selectTier(inputs program.Inputs) string {
	if inputs.CodeSnippet != "" || inputs.ErrorText != "" || inputs.SchemaContext != nil {
		return TierComplex
	}
	if c.counter.Count(inputs.Instruction)+c.counter.Count(inputs.Context) > c.complexTokenLimit {
		return TierComplex
	}
	return TierSimple
}

func (c *Compiler) retrieve(ctx context.Context, query string) ([]retrieval.ExamplePair, error) {
	if c.retriever == nil {
		return nil, nil
	}
	return c.retriever.Find(ctx, query, c.retrievalK)
}

// schemaSection reflects the structured schema context into a JSON schema for
// inclusion in the template.
func (c *Compiler) schemaSection(schemaCtx any) (string, bool) {
	if schemaCtx == nil {
		return "", false
	}
	schema := jsonschema.Reflect(schemaCtx)
	raw, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		c.logger.Warn("failed to marshal schema context", "error", err)
		return "", false
	}
	return fmt.Sprintf("Respond with a single JSON object conforming to this schema:\n%s\n\n", string(raw)), true
}

// assemble writes the template. Placeholders stay named so the optimizer can
// rewrite the surrounding prose without losing the request fields.
func (c *Compiler) assemble(inputs program.Inputs, role, tier string, examples []retrieval.ExamplePair, schemaSection string) string {
	var sb strings.Builder

	sb.WriteString("You are ")
	sb.WriteString(role)
	sb.WriteString(".\n\n")

	if schemaSection != "" {
		sb.WriteString(schemaSection)
	}

	if len(examples) > 0 {
		sb.WriteString("Examples of similar requests and good responses:\n")
		for _, ex := range examples {
			sb.WriteString("Input: ")
			sb.WriteString(ex.Input)
			sb.WriteString("\nOutput: ")
			sb.WriteString(ex.Output)
			sb.WriteString("\n")
		}
		sb.WriteString("\n")
	}

	if tier == TierComplex {
		// Restate-and-reason scaffold. The restatement is internal to the
		// model's reasoning and must not appear in its final answer.
		sb.WriteString("Before answering, restate the request in your own words and reason through your approach step by step. ")
		sb.WriteString("Do not include the restatement or the reasoning in your final answer; output only the result.\n\n")
	}

	sb.WriteString("Task: {{.instruction}}\n")
	if inputs.Context != "" {
		sb.WriteString("\nContext:\n{{.context}}\n")
	}
	if inputs.CodeSnippet != "" {
		sb.WriteString("\nCode:\n{{.code}}\n")
	}
	if inputs.ErrorText != "" {
		sb.WriteString("\nError output:\n{{.error}}\n")
	}

	return sb.String()
}

// buildVerification derives scoring cases from the schema context and from
// expectation language in the request itself. No signal means no cases, which
// downstream skips the optimizer.
func (c *Compiler) buildVerification(inputs program.Inputs, schemaPresent bool) []program.TestCase {
	var cases []program.TestCase

	if schemaPresent {
		cases = append(cases, program.TestCase{
			Name:   "schema_instructions_survive",
			Input:  map[string]string{"instruction": inputs.Instruction},
			Expect: program.JSONObjectPredicate{},
		})
	}

	for _, source := range []string{inputs.Context, inputs.Instruction} {
		if m := expectationText.FindStringSubmatch(source); m != nil {
			cases = append(cases, program.TestCase{
				Name:   "stated_expectation_present",
				Input:  map[string]string{"instruction": inputs.Instruction, "context": source},
				Expect: program.ContainsPredicate{Substr: strings.TrimSpace(m[1])},
			})
			break
		}
	}

	// With any signal present, also guard the instruction placeholder so an
	// optimized template cannot drop the request itself.
	if len(cases) > 0 {
		const probe = "__forge_probe_instruction__"
		cases = append(cases, program.TestCase{
			Name:   "instruction_placeholder_survives",
			Input:  map[string]string{"instruction": probe},
			Expect: program.ContainsPredicate{Substr: probe},
		})
	}

	return cases
}
