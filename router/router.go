// Package router classifies a request into one of the closed intent set using
// an ordered cascade of pure predicate rules with a lightweight semantic
// fallback. Classification never fails; the default intent is recorded, not
// silent.
package router

import (
	"regexp"
	"strings"

	"github.com/promptforge/promptforge/internal/logging"
	"github.com/promptforge/promptforge/internal/tokens"
	"github.com/promptforge/promptforge/program"
)

// maxSentimentTokens bounds the text handed to the sentiment fallback so the
// semantic step stays cheap regardless of request size.
const maxSentimentTokens = 256

// negativeSentimentCutoff is the polarity below which an instruction counts
// as carrying negative sentiment.
const negativeSentimentCutoff = -0.1

var (
	expectationMarker = regexp.MustCompile(`(?i)\bexpected\s*:|\bshould\s+(return|be|output|print|produce)\b`)
	failureConcept    = regexp.MustCompile(`(?i)\b(error|fail|fails|failing|failed|crash|crashes|exception|traceback|broken|bug|segfault)\b`)
)

// refactorVerbs are matched as stems so inflected and non-English variants
// (optimizes, optimizar) still hit.
var refactorVerbs = []string{
	"improve",
	"optimi",
	"refactor",
	"restructur",
	"rewrite",
	"simplif",
	"clean up",
	"cleanup",
	"speed up",
	"streamlin",
	"moderniz",
}

// Router classifies requests. The sentiment step is the only rule allowed to
// consult an external capability; everything else is a pure predicate.
type Router struct {
	sentiment Sentiment
	counter   *tokens.Counter
	logger    logging.Logger
}

// Option configures a Router.
type Option func(*Router)

// WithSentiment swaps the semantic fallback, e.g. for tests.
func WithSentiment(s Sentiment) Option {
	return func(r *Router) {
		r.sentiment = s
	}
}

// New creates a Router with the lexicon-based sentiment fallback.
func New(logger logging.Logger, opts ...Option) *Router {
	r := &Router{
		sentiment: NewLexiconSentiment(),
		counter:   tokens.NewCounter(),
		logger:    logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Classify resolves the request's intent. The returned reason names the rule
// that fired; "default" marks the no-signal fallback so it is never silent.
func (r *Router) Classify(in program.Inputs) (program.Intent, string) {
	if in.CodeSnippet != "" && in.ErrorText != "" {
		return program.IntentDebugRuntime, "code_and_error_present"
	}

	if expectationMarker.MatchString(in.Context) {
		return program.IntentRefactor, "expectation_marker"
	}

	bounded := r.counter.Truncate(in.Instruction, maxSentimentTokens)
	if r.sentiment.Polarity(bounded) < negativeSentimentCutoff && failureConcept.MatchString(bounded) {
		return program.IntentDebugVague, "negative_sentiment_with_failure_concept"
	}

	lower := strings.ToLower(in.Instruction)
	for _, verb := range refactorVerbs {
		if strings.Contains(lower, verb) {
			return program.IntentRefactor, "refactor_verb:" + verb
		}
	}

	r.logger.Debug("no routing signal matched, defaulting", "instruction_tokens", r.counter.Count(in.Instruction))
	return program.IntentGenerate, "default"
}
