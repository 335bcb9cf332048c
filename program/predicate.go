package program

import (
	"encoding/json"
	"errors"
	"io"
	"regexp"
	"strings"
)

// Predicate is one expected-output check inside a verification test case.
// Predicates are pure functions over the rendered text.
type Predicate interface {
	Name() string
	Check(rendered string) bool
}

// TestCase pairs an input context with an expected-output predicate. Cases
// are used purely for scoring candidate templates during optimization.
type TestCase struct {
	Name   string
	Input  map[string]string
	Expect Predicate
}

// ContainsPredicate passes when the rendered text contains the substring.
type ContainsPredicate struct {
	Substr string
}

func (c ContainsPredicate) Name() string { return "contains" }

func (c ContainsPredicate) Check(rendered string) bool {
	return strings.Contains(rendered, c.Substr)
}

// PatternPredicate passes when the rendered text matches the pattern.
type PatternPredicate struct {
	re *regexp.Regexp
}

// NewPatternPredicate compiles expr into a predicate.
func NewPatternPredicate(expr string) (PatternPredicate, error) {
	re, err := regexp.Compile(expr)
	if err != nil {
		return PatternPredicate{}, err
	}
	return PatternPredicate{re: re}, nil
}

func (p PatternPredicate) Name() string { return "pattern" }

func (p PatternPredicate) Check(rendered string) bool {
	return p.re.MatchString(rendered)
}

// JSONObjectPredicate passes when the rendered text mentions JSON output
// requirements, keeping schema instructions alive across template rewrites.
type JSONObjectPredicate struct{}

func (JSONObjectPredicate) Name() string { return "json_object" }

func (JSONObjectPredicate) Check(rendered string) bool {
	lower := strings.ToLower(rendered)
	return strings.Contains(lower, "json")
}

// SingleJSONValue reports whether text parses as exactly one JSON value with
// no trailing content. Shared by predicates and output constraints.
func SingleJSONValue(text string) bool {
	dec := json.NewDecoder(strings.NewReader(strings.TrimSpace(text)))
	var v any
	if err := dec.Decode(&v); err != nil {
		return false
	}
	// A second decode must hit EOF for the value to be the only one; any
	// other outcome means trailing content.
	var extra any
	return errors.Is(dec.Decode(&extra), io.EOF)
}
