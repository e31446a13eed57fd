package cluster

import (
	"sort"
	"strings"
	"unicode"

	"github.com/cgast/embird/internal/domain/entity"
)

const (
	titleWeight   = 3.0
	summaryWeight = 1.0
	minTokenLen   = 3
	maxLabelTerms = 4
)

// label derives a short, deterministic cluster name by weighted term
// frequency over the cluster's member articles' titles and summaries.
func label(articles []entity.ClusterArticle) string {
	scores := make(map[string]float64)
	for _, a := range articles {
		addTokenScores(scores, a.Title, titleWeight)
		addTokenScores(scores, a.Summary, summaryWeight)
	}

	ranked := rankTokens(scores)
	chosen := make([]string, 0, maxLabelTerms)
	for _, token := range ranked {
		if len(chosen) >= maxLabelTerms {
			break
		}
		if collidesWithChosen(token, chosen) {
			continue
		}
		chosen = append(chosen, token)
	}

	if len(chosen) == 0 {
		return "Uncategorized"
	}

	display := make([]string, len(chosen))
	for i, t := range chosen {
		display[i] = capitalize(t)
	}
	return strings.Join(display, ", ")
}

func addTokenScores(scores map[string]float64, text string, weight float64) {
	for _, token := range tokenize(text) {
		scores[token] += weight
	}
}

// tokenize lowercases and splits on non-letter runs, keeping alphabetic
// tokens of at least minTokenLen that are not stop words.
func tokenize(text string) []string {
	var tokens []string
	var current strings.Builder

	flush := func() {
		if current.Len() == 0 {
			return
		}
		word := current.String()
		current.Reset()
		if len(word) < minTokenLen {
			return
		}
		if isStopWord(word) {
			return
		}
		tokens = append(tokens, word)
	}

	for _, r := range text {
		if unicode.IsLetter(r) {
			current.WriteRune(unicode.ToLower(r))
		} else {
			flush()
		}
	}
	flush()

	return tokens
}

func rankTokens(scores map[string]float64) []string {
	tokens := make([]string, 0, len(scores))
	for t := range scores {
		tokens = append(tokens, t)
	}
	sort.Slice(tokens, func(i, j int) bool {
		if scores[tokens[i]] != scores[tokens[j]] {
			return scores[tokens[i]] > scores[tokens[j]]
		}
		return tokens[i] < tokens[j]
	})
	return tokens
}

// collidesWithChosen reports whether token is a substring or superstring of
// any already-chosen term, which would make the label redundant.
func collidesWithChosen(token string, chosen []string) bool {
	for _, c := range chosen {
		if strings.Contains(token, c) || strings.Contains(c, token) {
			return true
		}
	}
	return false
}

func capitalize(word string) string {
	if word == "" {
		return word
	}
	r := []rune(word)
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}
