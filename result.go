package promptforge

import (
	"github.com/promptforge/promptforge/optimizer"
	"github.com/promptforge/promptforge/program"
)

// Modes selecting how much work the pipeline does per request.
const (
	ModeFast      = "fast"
	ModeOptimized = "optimized"
)

// Request is the inbound contract from the front-end layer.
type Request struct {
	Instruction string   `json:"instruction" validate:"required"`
	Context     string   `json:"context"`
	Mode        string   `json:"mode" validate:"required,oneof=fast optimized"`
	Constraints []string `json:"constraints"`
	CodeSnippet string   `json:"codeSnippet,omitempty"`
	ErrorText   string   `json:"errorText,omitempty"`
	// SchemaContext is an optional structured object whose reflected JSON
	// schema constrains the expected output.
	SchemaContext any `json:"schemaContext,omitempty"`
	// HighQuality gates the optimizer; without it the compiled program is
	// validated and returned directly.
	HighQuality bool `json:"highQuality"`
	// IncludeTrajectory asks for the full optimization trajectory in the
	// result metadata.
	IncludeTrajectory bool `json:"includeTrajectory"`
}

// inputs converts the request into the program payload.
func (r *Request) inputs() program.Inputs {
	return program.Inputs{
		Instruction:    r.Instruction,
		Context:        r.Context,
		CodeSnippet:    r.CodeSnippet,
		ErrorText:      r.ErrorText,
		SchemaContext:  r.SchemaContext,
		ConstraintTags: r.Constraints,
	}
}

// Metadata describes how the pipeline arrived at its result. Degraded paths
// are visible here rather than silently absorbed.
type Metadata struct {
	Intent          string               `json:"intent"`
	IntentReason    string               `json:"intentReason"`
	Tier            string               `json:"tier"`
	Iterations      int                  `json:"iterations"`
	FinalScore      float64              `json:"finalScore"`
	CacheHit        bool                 `json:"cacheHit"`
	RetrievalFailed bool                 `json:"retrievalFailed"`
	RetrievalError  string               `json:"retrievalError,omitempty"`
	RepairInvoked   bool                 `json:"repairInvoked"`
	RepairSucceeded bool                 `json:"repairSucceeded"`
	Warnings        []string             `json:"warnings,omitempty"`
	Trajectory      optimizer.Trajectory `json:"trajectory,omitempty"`
}

// Result is the outbound contract: the final rendered text plus metadata.
// Response carries the model output when generation is enabled.
type Result struct {
	Rendered string                 `json:"rendered"`
	Response string                 `json:"response,omitempty"`
	Program  *program.PromptProgram `json:"-"`
	Metadata Metadata               `json:"metadata"`
}
