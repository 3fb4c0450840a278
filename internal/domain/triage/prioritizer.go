package triage

import "strings"

// Priority is a queue priority class from 1 (routine) to 4 (emergency).
type Priority int

const (
	PriorityLow       Priority = 1
	PriorityMedium    Priority = 2
	PriorityHigh      Priority = 3
	PriorityEmergency Priority = 4
)

func (p Priority) Valid() bool {
	return p >= PriorityLow && p <= PriorityEmergency
}

func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityMedium:
		return "medium"
	case PriorityHigh:
		return "high"
	case PriorityEmergency:
		return "emergency"
	}
	return "unknown"
}

// Prioritizer assigns a priority class from free-text symptoms using fixed
// keyword tables. It holds no mutable state.
type Prioritizer struct {
	emergency []string
	high      []string
}

// PrioritizerRules configures the keyword tables. Phrases are matched
// case-insensitively as substrings.
type PrioritizerRules struct {
	Emergency []string
	High      []string
}

var DefaultRules = PrioritizerRules{
	Emergency: []string{"chest pain", "difficulty breathing", "severe bleeding",
		"unconscious", "heart attack", "stroke", "seizure"},
	High: []string{"fever", "vomiting", "severe pain", "infection"},
}

func NewPrioritizer(rules PrioritizerRules) *Prioritizer {
	return &Prioritizer{
		emergency: lowerAll(rules.Emergency),
		high:      lowerAll(rules.High),
	}
}

func DefaultPrioritizer() *Prioritizer {
	return NewPrioritizer(DefaultRules)
}

// Prioritize classifies symptom text. Emergency phrases short-circuit to 4
// without considering age. Patients over 65 or under 5 get at least 2.
// An age of zero or less means unknown. history is accepted for callers that
// collect it but does not currently affect the result.
func (p *Prioritizer) Prioritize(symptomText string, age int, history string) Priority {
	text := strings.ToLower(symptomText)

	if containsAny(text, p.emergency) {
		return PriorityEmergency
	}

	priority := PriorityLow
	if containsAny(text, p.high) {
		priority = maxPriority(priority, PriorityHigh)
	}
	if age > 0 && (age > 65 || age < 5) {
		priority = maxPriority(priority, PriorityMedium)
	}
	return priority
}

func containsAny(text string, phrases []string) bool {
	for _, ph := range phrases {
		if ph != "" && strings.Contains(text, ph) {
			return true
		}
	}
	return false
}

func maxPriority(a, b Priority) Priority {
	if a > b {
		return a
	}
	return b
}

func lowerAll(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strings.ToLower(s)
	}
	return out
}
