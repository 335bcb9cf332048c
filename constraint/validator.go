package constraint

import (
	"context"
	"fmt"
	"strings"

	"github.com/promptforge/promptforge/gateway"
	"github.com/promptforge/promptforge/internal/logging"
	"github.com/promptforge/promptforge/program"
)

// repairAttempts is the fixed self-repair budget: the caller can rely on at
// most one extra gateway call per validation.
const repairAttempts = 1

// Outcome is the result of validating one program.
type Outcome struct {
	Passed          bool
	Warnings        []string
	Rendered        string
	RepairInvoked   bool
	RepairSucceeded bool
}

// Validator checks declared constraints and self-repairs once on failure.
type Validator struct {
	gw     gateway.Gateway
	logger logging.Logger
}

// NewValidator creates a Validator. The gateway is only consulted for repair.
func NewValidator(gw gateway.Gateway, logger logging.Logger) *Validator {
	return &Validator{gw: gw, logger: logger}
}

// Validate checks rendered against the program's constraints. On failure it
// asks the gateway for a corrected version exactly once, re-validates it, and
// returns whatever that produced. Warnings survive either way.
func (v *Validator) Validate(ctx context.Context, prog *program.PromptProgram, rendered string) Outcome {
	return v.check(ctx, prog, rendered, repairAttempts, Outcome{Rendered: rendered})
}

// check is depth-limited recursion: attemptsRemaining reaching zero returns
// whatever the last pass produced, which makes the single-retry contract
// structural rather than counted.
func (v *Validator) check(ctx context.Context, prog *program.PromptProgram, rendered string, attemptsRemaining int, acc Outcome) Outcome {
	violations, unknown := v.violations(prog.Constraints, rendered)
	acc.Rendered = rendered
	acc.Passed = len(violations) == 0
	for _, w := range append(unknown, violations...) {
		if !contains(acc.Warnings, w) {
			acc.Warnings = append(acc.Warnings, w)
		}
	}

	if acc.Passed || attemptsRemaining == 0 {
		if acc.RepairInvoked {
			acc.RepairSucceeded = acc.Passed
		}
		return acc
	}

	// Cancellation checkpoint before the repair call.
	if err := ctx.Err(); err != nil {
		v.logger.Debug("skipping repair, request cancelled")
		return acc
	}

	acc.RepairInvoked = true
	repaired, err := v.repair(ctx, rendered, violations)
	if err != nil {
		// Recovered locally: the unrepaired result stands, warnings intact.
		v.logger.Warn("self-repair failed, returning original validation result", "error", err)
		return acc
	}

	return v.check(ctx, prog, repaired, attemptsRemaining-1, acc)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// violations checks every declared constraint. Unknown names are reported
// separately; they warn but do not fail validation.
func (v *Validator) violations(constraints []string, rendered string) (violated, unknown []string) {
	for _, name := range constraints {
		check := Lookup(name)
		if check == nil {
			unknown = append(unknown, fmt.Sprintf("constraint %q: unknown, skipped", name))
			continue
		}
		if ok, detail := check(rendered); !ok {
			violated = append(violated, fmt.Sprintf("constraint %q violated: %s", name, detail))
		}
	}
	return violated, unknown
}

// repair sends the text plus the concrete violations to the gateway and asks
// for a corrected version.
func (v *Validator) repair(ctx context.Context, rendered string, violations []string) (string, error) {
	ask := fmt.Sprintf(`The following text violates output constraints.

Text:
%s

Violations:
- %s

Return a corrected version of the text that satisfies every violated constraint. Respond with the corrected text only, nothing else.`,
		rendered, strings.Join(violations, "\n- "))

	fixed, err := v.gw.Generate(ctx, ask)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(fixed), nil
}
