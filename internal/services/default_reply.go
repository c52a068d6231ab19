package services

import (
	"slices"
	"strings"
	"unicode"

	"pms-assistant/internal/models"
)

const (
	greetingReply = "Hello! I'm the PMS AI assistant. The AI service is having connection problems, so this is a basic response. Please try again shortly."
	projectReply  = "This looks like a question about your project. The AI service is having connection problems, so I can't give an accurate answer right now. Please try again shortly."
	taskReply     = "This looks like a question about your tasks. The AI service is having connection problems, so I can't give an accurate answer right now. Please try again shortly."
	genericReply  = "Sorry, the AI service is temporarily unavailable. Please try again shortly."
)

var defaultSuggestions = []string{
	"Check project progress",
	"View assigned tasks",
	"Review this sprint's goals",
}

type cannedRule struct {
	words     []string // matched as whole words
	fragments []string // matched anywhere in the message
	reply     string
}

// Checked in order; the first match wins. Greetings need a whole word so
// "this" is not read as "hi".
var cannedRules = []cannedRule{
	{words: []string{"hello", "hi", "hey"}, fragments: []string{"안녕"}, reply: greetingReply},
	{fragments: []string{"project", "프로젝트"}, reply: projectReply},
	{fragments: []string{"task", "태스크"}, reply: taskReply},
}

// DefaultReply is the last cascade tier. It is deterministic and cannot fail.
func DefaultReply(message string) models.ChatReply {
	lower := strings.ToLower(message)
	words := strings.FieldsFunc(lower, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	reply := genericReply
	for _, rule := range cannedRules {
		if rule.matches(lower, words) {
			reply = rule.reply
			break
		}
	}

	return models.ChatReply{
		Reply:       reply,
		Confidence:  0.0,
		Suggestions: slices.Clone(defaultSuggestions),
		Tier:        models.TierDefault,
	}
}

func (r cannedRule) matches(lower string, words []string) bool {
	for _, w := range r.words {
		if slices.Contains(words, w) {
			return true
		}
	}
	for _, f := range r.fragments {
		if strings.Contains(lower, f) {
			return true
		}
	}
	return false
}
