package triage

import (
	"math"
	"sort"
)

const (
	// MatchThreshold is the exclusive lower bound a case must clear to be surfaced.
	MatchThreshold = 0.3
	// MaxMatches caps the number of cases FindSimilar returns.
	MaxMatches = 5
)

// Query is a patient's reported presentation.
type Query struct {
	Symptoms    []string `json:"symptoms"`
	Description string   `json:"symptom_description,omitempty"`
	Age         int      `json:"patient_age,omitempty"`
	Gender      string   `json:"patient_gender,omitempty"`
}

// Match is a reference case paired with its similarity to a query.
type Match struct {
	ReferenceCase
	SimilarityScore float64 `json:"similarity_score"`
}

// Score computes the weighted similarity between a query and the case at idx.
//
// The symptom component divides by the query's distinct symptom count, so the
// score is not symmetric. The age bonus is added even with no symptom overlap.
func (c *Corpus) Score(q Query, idx int) float64 {
	return c.score(normalizeSymptoms(q.Symptoms), q.Age, idx)
}

func (c *Corpus) score(query map[string]struct{}, age int, idx int) float64 {
	caseSet := c.symSets[idx]
	if len(query) == 0 || len(caseSet) == 0 {
		return 0
	}

	var weighted float64
	for s := range query {
		if _, ok := caseSet[s]; ok {
			weighted += c.Weight(s)
		}
	}
	symptomScore := weighted / float64(len(query))

	return math.Min(symptomScore+ageBonus(age, c.cases[idx].PatientAge), 1.0)
}

func ageBonus(queryAge, caseAge int) float64 {
	if queryAge <= 0 || caseAge <= 0 {
		return 0
	}
	diff := queryAge - caseAge
	if diff < 0 {
		diff = -diff
	}
	switch {
	case diff <= 5:
		return 0.2
	case diff <= 15:
		return 0.1
	}
	return 0
}

// FindSimilar returns up to MaxMatches cases scoring above MatchThreshold,
// best first. Equal scores keep corpus order.
func (c *Corpus) FindSimilar(q Query) []Match {
	query := normalizeSymptoms(q.Symptoms)
	matches := make([]Match, 0, MaxMatches)
	for i := range c.cases {
		score := c.score(query, q.Age, i)
		if score > MatchThreshold {
			matches = append(matches, Match{ReferenceCase: c.cases[i], SimilarityScore: score})
		}
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].SimilarityScore > matches[j].SimilarityScore
	})
	if len(matches) > MaxMatches {
		matches = matches[:MaxMatches]
	}
	return matches
}
