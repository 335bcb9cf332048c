// Package constraint checks a compiled program's rendered text against its
// declared output constraints and performs at most one self-repair pass.
package constraint

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/promptforge/promptforge/program"
)

// Check inspects rendered text for one constraint. It returns whether the
// constraint holds and a human-readable detail when it does not.
type Check func(rendered string) (ok bool, detail string)

var codeFence = regexp.MustCompile("(?m)^```")

// Lookup resolves a constraint name to its check. Parameterized constraints
// use a name:arg form, e.g. "max_lines:40". Unknown names resolve to nil.
func Lookup(name string) Check {
	base, arg, _ := strings.Cut(name, ":")
	switch base {
	case "no_code_fences":
		return checkNoCodeFences
	case "single_json_object":
		return checkSingleJSONObject
	case "no_placeholders":
		return checkNoPlaceholders
	case "max_lines":
		limit, err := strconv.Atoi(arg)
		if err != nil || limit < 1 {
			return nil
		}
		return maxLines(limit)
	default:
		return nil
	}
}

func checkNoCodeFences(rendered string) (bool, string) {
	if codeFence.MatchString(rendered) {
		return false, "text contains a fenced code block marker"
	}
	return true, ""
}

func checkSingleJSONObject(rendered string) (bool, string) {
	if !program.SingleJSONValue(rendered) {
		return false, "text is not parseable as exactly one JSON value"
	}
	return true, ""
}

func checkNoPlaceholders(rendered string) (bool, string) {
	if strings.Contains(rendered, "{{") || strings.Contains(rendered, "}}") {
		return false, "text still contains unexpanded template placeholders"
	}
	return true, ""
}

func maxLines(limit int) Check {
	return func(rendered string) (bool, string) {
		lines := strings.Count(rendered, "\n") + 1
		if lines > limit {
			return false, fmt.Sprintf("text has %d lines, limit is %d", lines, limit)
		}
		return true, ""
	}
}
