// Package classify decides whether an inbound chat message is a nutrition
// question or a description of food that was eaten.
package classify

import (
	"regexp"
	"strings"

	"github.com/hpungsan/nosh/internal/errors"
)

// Classification is the kind of an inbound message.
type Classification int

const (
	FoodEntry Classification = iota
	Question
)

// String returns the stored form of c.
func (c Classification) String() string {
	if c == Question {
		return "question"
	}
	return "food_entry"
}

// Parse returns the Classification for its stored form.
func Parse(s string) (Classification, bool) {
	switch s {
	case "question":
		return Question, true
	case "food_entry":
		return FoodEntry, true
	}
	return FoodEntry, false
}

// Rule is one entry in the ordered classification table.
type Rule struct {
	Name   string
	Result Classification
	Match  func(normalized string, words []string) bool
}

// questionWords open a question when they are the first word of a message.
var questionWords = map[string]bool{
	"how": true, "what": true, "why": true, "when": true, "where": true,
	"which": true, "who": true, "can": true, "could": true, "would": true,
	"should": true, "do": true, "does": true, "did": true, "is": true,
	"are": true, "was": true, "were": true, "will": true, "am": true,
	"may": true,
}

// possessiveWords only open a question when a subject pronoun follows,
// so "had eggs for breakfast" stays a food entry.
var possessiveWords = map[string]bool{"have": true, "has": true, "had": true}

var subjectPronouns = map[string]bool{
	"i": true, "you": true, "we": true, "they": true, "he": true, "she": true, "it": true,
}

// advicePhrases mark a request for guidance anywhere in the message.
var advicePhrases = []string{
	"recommend", "suggest", "advice", "help", "tell me", "how much", "how many",
}

var wordRegex = regexp.MustCompile(`[\p{L}\p{N}']+`)

var rules = []Rule{
	{
		Name:   "question_mark",
		Result: Question,
		Match: func(normalized string, _ []string) bool {
			return strings.Contains(normalized, "?")
		},
	},
	{
		Name:   "leading_question_word",
		Result: Question,
		Match: func(_ string, words []string) bool {
			if len(words) == 0 {
				return false
			}
			if questionWords[words[0]] {
				return true
			}
			return possessiveWords[words[0]] && len(words) > 1 && subjectPronouns[words[1]]
		},
	},
	{
		Name:   "advice_phrase",
		Result: Question,
		Match: func(_ string, words []string) bool {
			joined := " " + strings.Join(words, " ") + " "
			for _, p := range advicePhrases {
				if strings.Contains(joined, " "+p+" ") {
					return true
				}
			}
			return false
		},
	},
	{
		Name:   "default",
		Result: FoodEntry,
		Match:  func(string, []string) bool { return true },
	},
}

// Rules returns a copy of the ordered rule table.
func Rules() []Rule {
	out := make([]Rule, len(rules))
	copy(out, rules)
	return out
}

// Classify returns the classification of text. The first matching rule wins.
// Empty or whitespace-only text is rejected with INVALID_INPUT.
func Classify(text string) (Classification, error) {
	c, _, err := Explain(text)
	return c, err
}

// Explain is Classify that also reports which rule matched.
func Explain(text string) (Classification, string, error) {
	normalized := strings.ToLower(strings.TrimSpace(text))
	if normalized == "" {
		return FoodEntry, "", errors.NewInvalidInput("message is empty")
	}
	words := wordRegex.FindAllString(normalized, -1)
	for _, r := range rules {
		if r.Match(normalized, words) {
			return r.Result, r.Name, nil
		}
	}
	return FoodEntry, "default", nil
}
