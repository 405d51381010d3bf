package command

import (
	"fmt"
	"slices"
	"strings"

	"github.com/eleven-am/sightline/internal/shared"
)

const DefaultCutoff = 0.7

// SingleWordCutoff applies when a one-word transcript is compared with a
// one-word phrase. Candidates must also be within one character in length,
// so "restart" never becomes "start".
const SingleWordCutoff = 0.75

type MatchKind string

const (
	MatchExact MatchKind = "exact"
	MatchWord  MatchKind = "word"
	MatchFuzzy MatchKind = "fuzzy"
	MatchNone  MatchKind = "none"
)

type Match struct {
	Command    Command
	Kind       MatchKind
	Phrase     string
	Score      float64
	Normalized string
}

type normalizedPhrase struct {
	text    string
	command Command
}

// Matcher maps transcripts to canonical commands. It is immutable after
// construction and safe for concurrent use.
type Matcher struct {
	cutoff  float64
	phrases []normalizedPhrase
}

func NewMatcher(phrases []Phrase, cutoff float64) (*Matcher, error) {
	if cutoff <= 0 || cutoff > 1 {
		return nil, fmt.Errorf("fuzzy cutoff %v out of (0,1]: %w", cutoff, shared.ErrInvalidConfig)
	}
	if len(phrases) == 0 {
		phrases = DefaultPhrases
	}

	m := &Matcher{cutoff: cutoff}
	seen := make(map[string]bool, len(phrases))
	for _, p := range phrases {
		norm := Normalize(p.Text)
		if norm == "" || seen[norm] {
			continue
		}
		seen[norm] = true
		m.phrases = append(m.phrases, normalizedPhrase{text: norm, command: p.Command})
	}
	return m, nil
}

func (m *Matcher) Cutoff() float64 {
	return m.cutoff
}

// Match runs exact, whole-word and fuzzy matching in that order. A one-word
// transcript is fuzzy matched against one-word phrases first. Anything left
// over is a Conversation.
func (m *Matcher) Match(transcript string) Match {
	norm := Normalize(transcript)
	if norm == "" {
		return Match{Command: Conversation, Kind: MatchNone}
	}

	for _, p := range m.phrases {
		if p.text == norm {
			return Match{Command: p.command, Kind: MatchExact, Phrase: p.text, Score: 1, Normalized: norm}
		}
	}

	if cmd, ok := matchWord(norm); ok {
		return Match{Command: cmd, Kind: MatchWord, Phrase: string(cmd), Score: 1, Normalized: norm}
	}

	if !strings.Contains(norm, " ") {
		if p, score, ok := m.matchSingleWord(norm); ok {
			return Match{Command: p.command, Kind: MatchFuzzy, Phrase: p.text, Score: score, Normalized: norm}
		}
	}

	var best normalizedPhrase
	bestScore := 0.0
	for _, p := range m.phrases {
		if !strings.Contains(p.text, " ") {
			continue
		}
		if score := Similarity(norm, p.text); score > bestScore {
			best, bestScore = p, score
		}
	}
	if bestScore >= m.cutoff {
		return Match{Command: best.command, Kind: MatchFuzzy, Phrase: best.text, Score: bestScore, Normalized: norm}
	}

	return Match{Command: Conversation, Kind: MatchNone, Score: bestScore, Normalized: norm}
}

func (m *Matcher) matchSingleWord(word string) (normalizedPhrase, float64, bool) {
	var best normalizedPhrase
	bestScore := 0.0
	for _, p := range m.phrases {
		if strings.Contains(p.text, " ") {
			continue
		}
		if d := len(p.text) - len(word); d > 1 || d < -1 {
			continue
		}
		if score := Similarity(word, p.text); score > bestScore {
			best, bestScore = p, score
		}
	}
	return best, bestScore, bestScore >= SingleWordCutoff
}

func matchWord(norm string) (Command, bool) {
	tokens := strings.Fields(norm)
	for _, cmd := range wordCommands {
		if slices.Contains(tokens, string(cmd)) {
			return cmd, true
		}
	}
	return "", false
}
