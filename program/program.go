// Package program defines the prompt program, the structured unit of work the
// pipeline compiles, optimizes, validates and renders.
package program

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// Intent is the closed set of request classifications produced by the router.
type Intent string

const (
	IntentGenerate     Intent = "generate"
	IntentDebugRuntime Intent = "debug_runtime"
	IntentDebugVague   Intent = "debug_vague"
	IntentRefactor     Intent = "refactor"
	IntentExplain      Intent = "explain"
)

// Inputs is the structured payload of a request. It is immutable once the
// compiler has assembled the program.
type Inputs struct {
	Instruction    string
	Context        string
	CodeSnippet    string
	ErrorText      string
	SchemaContext  any
	ConstraintTags []string
}

// PromptProgram is the unit of work throughout the pipeline.
//
// The intent is set once by the router; the template is written by the
// compiler and replaced only by the optimizer (which also bumps the version);
// verification and inputs are read-only after compilation; StrategyMeta is
// append-only.
type PromptProgram struct {
	ID           string
	Version      string
	Intent       Intent
	Template     string
	Inputs       Inputs
	StrategyMeta map[string]string
	Verification []TestCase
	Constraints  []string
}

// New creates a program with a fresh ID at version 1.0.0.
func New(intent Intent, inputs Inputs) *PromptProgram {
	return &PromptProgram{
		ID:           uuid.NewString(),
		Version:      "1.0.0",
		Intent:       intent,
		Inputs:       inputs,
		StrategyMeta: make(map[string]string),
	}
}

// Annotate appends a strategy annotation. Existing keys are never overwritten;
// repeated writes to the same key are suffixed so the history stays visible.
func (p *PromptProgram) Annotate(key, value string) {
	if p.StrategyMeta == nil {
		p.StrategyMeta = make(map[string]string)
	}
	if _, exists := p.StrategyMeta[key]; !exists {
		p.StrategyMeta[key] = value
		return
	}
	for i := 2; ; i++ {
		k := fmt.Sprintf("%s#%d", key, i)
		if _, exists := p.StrategyMeta[k]; !exists {
			p.StrategyMeta[k] = value
			return
		}
	}
}

// WithTemplate returns a copy of the program carrying the replacement template
// and a bumped minor version. The original is left untouched so the optimizer
// trajectory can keep referring to earlier candidates.
func (p *PromptProgram) WithTemplate(template string) *PromptProgram {
	clone := *p
	clone.Template = template
	clone.Version = bumpMinor(p.Version)
	clone.StrategyMeta = make(map[string]string, len(p.StrategyMeta))
	for k, v := range p.StrategyMeta {
		clone.StrategyMeta[k] = v
	}
	return &clone
}

// bumpMinor increments the minor component of a semantic version string.
// Unparseable versions reset to 1.1.0 rather than failing the pipeline.
func bumpMinor(version string) string {
	parts := strings.SplitN(version, ".", 3)
	if len(parts) != 3 {
		return "1.1.0"
	}
	major, err1 := strconv.Atoi(parts[0])
	minor, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil {
		return "1.1.0"
	}
	return fmt.Sprintf("%d.%d.0", major, minor+1)
}
