package rag

import (
	"context"
	"strings"
	"unicode"
	"unicode/utf8"
)

// minTokenRunes is the shortest token kept by the keyword tokenizer.
// Tokens of two runes or fewer ("is", "a", "of") carry no signal.
const minTokenRunes = 3

// shortFragmentDamping is added to the fragment token count so empty
// fragments score 0 instead of dividing by zero.
const shortFragmentDamping = 0.1

// KeywordScorer scores fragments by lexical overlap with the question.
// It has no external dependencies and is always available.
type KeywordScorer struct{}

// Name implements Scorer.
func (KeywordScorer) Name() string { return CapabilityKeyword.String() }

// Score implements Scorer. It never returns an error.
func (KeywordScorer) Score(_ context.Context, question string, texts []string) ([]float64, error) {
	terms := termCounts(question)
	out := make([]float64, len(texts))
	for i, text := range texts {
		out[i] = keywordScore(terms, text)
	}
	return out, nil
}

// KeywordScore returns the overlap score of a single fragment text against
// question: the sum over fragment tokens of that token's count in the
// question, divided by the fragment token count plus 0.1.
func KeywordScore(question, text string) float64 {
	return keywordScore(termCounts(question), text)
}

func keywordScore(terms map[string]int, text string) float64 {
	tokens := tokenize(text)
	matches := 0
	for _, tok := range tokens {
		matches += terms[tok]
	}
	return float64(matches) / (float64(len(tokens)) + shortFragmentDamping)
}

// termCounts builds the multiset of tokens in s.
func termCounts(s string) map[string]int {
	counts := make(map[string]int)
	for _, tok := range tokenize(s) {
		counts[tok]++
	}
	return counts
}

// tokenize lowercases s, strips every rune that is neither a word character
// (letter, number, underscore) nor whitespace, splits on whitespace and keeps
// tokens of at least minTokenRunes runes.
func tokenize(s string) []string {
	cleaned := strings.Map(func(r rune) rune {
		if r == '_' || unicode.IsLetter(r) || unicode.IsNumber(r) || unicode.IsSpace(r) {
			return unicode.ToLower(r)
		}
		return -1
	}, s)

	fields := strings.Fields(cleaned)
	out := fields[:0]
	for _, f := range fields {
		if utf8.RuneCountInString(f) >= minTokenRunes {
			out = append(out, f)
		}
	}
	return out
}
