package router

import "strings"

// Sentiment scores text polarity in [-1, 1]. Implementations must be cheap
// and pure; the router truncates input before calling.
type Sentiment interface {
	Polarity(text string) float64
}

// LexiconSentiment is a small word-list polarity scorer. It is deliberately
// simple: the router only needs a negative/non-negative signal, and the
// interface lets callers plug in a real classifier.
type LexiconSentiment struct {
	negative map[string]struct{}
	positive map[string]struct{}
}

// NewLexiconSentiment builds the default scorer.
func NewLexiconSentiment() *LexiconSentiment {
	return &LexiconSentiment{
		negative: wordSet(
			"broken", "breaks", "fails", "failing", "failed", "wrong",
			"bad", "crash", "crashes", "crashing", "stuck", "confusing",
			"confused", "frustrating", "annoying", "terrible", "awful",
			"useless", "doesn't", "doesnt", "can't", "cant", "won't",
			"wont", "never", "nothing", "weird", "strange", "unexpected",
		),
		positive: wordSet(
			"great", "good", "nice", "works", "working", "perfect",
			"love", "clean", "correct", "fine", "well",
		),
	}
}

func wordSet(words ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

// Polarity returns (positive - negative) hits normalized by word count.
func (s *LexiconSentiment) Polarity(text string) float64 {
	fields := strings.Fields(strings.ToLower(text))
	if len(fields) == 0 {
		return 0
	}
	var score float64
	for _, f := range fields {
		f = strings.Trim(f, ".,!?;:\"'()")
		if _, ok := s.negative[f]; ok {
			score--
		}
		if _, ok := s.positive[f]; ok {
			score++
		}
	}
	return score / float64(len(fields))
}

// StaticSentiment always returns a fixed polarity. Useful for stubbing the
// semantic fallback in tests without touching the rule cascade.
type StaticSentiment struct {
	Score float64
}

func (s StaticSentiment) Polarity(string) float64 { return s.Score }
