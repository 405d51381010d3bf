package command

import (
	"strings"
	"unicode"
)

type Command string

const (
	Start        Command = "start"
	Stop         Command = "stop"
	Exit         Command = "exit"
	Quit         Command = "quit"
	WhatIsAhead  Command = "what-is-in-front"
	WhoIsAhead   Command = "who-is-in-front"
	ReadText     Command = "read-text"
	Conversation Command = "conversation"
)

type Phrase struct {
	Text    string
	Command Command
}

// DefaultPhrases is the allowed phrase table in declaration order. Fuzzy ties
// go to the earlier entry.
var DefaultPhrases = []Phrase{
	{"stop", Stop},
	{"start", Start},
	{"exit", Exit},
	{"quit", Quit},
	{"stop detection", Stop},
	{"start detection", Start},
	{"what is in front of me", WhatIsAhead},
	{"what's in front of me", WhatIsAhead},
	{"what is infront of me", WhatIsAhead},
	{"what's infront of me", WhatIsAhead},
	{"what is this", WhatIsAhead},
	{"who is in front of me", WhoIsAhead},
	{"who's in front of me", WhoIsAhead},
	{"who is infront of me", WhoIsAhead},
	{"who is this", WhoIsAhead},
	{"read this", ReadText},
	{"read that", ReadText},
	{"read the text", ReadText},
	{"read text", ReadText},
}

var wordCommands = []Command{Stop, Start, Exit, Quit}

var expansions = map[string]string{
	"what's":  "what is",
	"whats":   "what is",
	"who's":   "who is",
	"whos":    "who is",
	"infront": "in front",
}

// Normalize lowercases a transcript, expands the contractions the recognizer
// commonly emits, drops punctuation and collapses whitespace.
func Normalize(s string) string {
	s = strings.ToLower(s)
	s = strings.NewReplacer("’", "'", "‘", "'").Replace(s)

	tokens := strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
	})

	out := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		if exp, ok := expansions[tok]; ok {
			out = append(out, exp)
			continue
		}
		tok = strings.ReplaceAll(tok, "'", "")
		if tok != "" {
			out = append(out, tok)
		}
	}
	return strings.Join(out, " ")
}
