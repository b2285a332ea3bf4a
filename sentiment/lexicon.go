package sentiment

import (
	"context"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

var positiveWords = []string{
	"love", "loved", "loving", "like", "liked", "great", "good", "excellent",
	"amazing", "awesome", "wonderful", "fantastic", "happy", "glad", "best",
	"perfect", "nice", "brilliant", "enjoy", "enjoyed", "beautiful", "recommend",
	"pleased", "delightful", "superb", "fun", "helpful", "easy", "fast", "works",
}

var negativeWords = []string{
	"hate", "hated", "bad", "terrible", "awful", "horrible", "worst", "poor",
	"sad", "angry", "disappointed", "disappointing", "broken", "useless", "boring",
	"slow", "ugly", "annoying", "waste", "fail", "failed", "fails", "bug", "buggy",
	"crash", "crashes", "refund", "wrong", "difficult", "problem",
}

var negations = map[string]bool{
	"not": true, "no": true, "never": true, "nothing": true, "hardly": true,
	"dont": true, "doesnt": true, "didnt": true, "isnt": true, "wasnt": true,
	"cant": true, "cannot": true, "wont": true, "aint": true,
}

// LexiconAnalyzer scores text against fixed word lists. A negation flips the
// polarity of the next scored word; ties are Positive.
type LexiconAnalyzer struct {
	weights map[string]int
}

// NewLexiconAnalyzer builds the analyzer with the built-in word lists.
func NewLexiconAnalyzer() *LexiconAnalyzer {
	weights := make(map[string]int, len(positiveWords)+len(negativeWords))
	for _, w := range positiveWords {
		weights[w] = 1
	}
	for _, w := range negativeWords {
		weights[w] = -1
	}
	return &LexiconAnalyzer{weights: weights}
}

// Normalize applies NFKC and Unicode case folding.
func Normalize(text string) string {
	return cases.Fold().String(norm.NFKC.String(strings.TrimSpace(text)))
}

// Tokens splits normalized text into words, dropping apostrophes so "don't"
// becomes "dont".
func Tokens(text string) []string {
	text = strings.NewReplacer("'", "", "’", "").Replace(Normalize(text))
	return strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}

// Score returns the summed polarity of text.
func (a *LexiconAnalyzer) Score(text string) int {
	score := 0
	negate := false
	for _, tok := range Tokens(text) {
		if negations[tok] {
			negate = true
			continue
		}
		w, ok := a.weights[tok]
		if !ok {
			continue
		}
		if negate {
			w = -w
			negate = false
		}
		score += w
	}
	return score
}

func (a *LexiconAnalyzer) Analyze(ctx context.Context, text string) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	text, err := ValidateText(text)
	if err != nil {
		return Result{}, err
	}
	label := Positive
	if a.Score(text) < 0 {
		label = Negative
	}
	return Result{Sentiment: label, InputText: text}, nil
}
