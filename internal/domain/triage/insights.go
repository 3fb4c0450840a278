package triage

import "strings"

const (
	analysisMethod    = "Case-based reasoning with patient database"
	matchingAlgorithm = "Weighted symptom similarity with demographic factors"
)

// Insights explains a bundle to the patient and clinician.
type Insights struct {
	AnalysisMethod        string   `json:"analysis_method"`
	DatabaseCasesAnalyzed int      `json:"database_cases_analyzed"`
	MatchingAlgorithm     string   `json:"matching_algorithm"`
	ConfidenceExplanation string   `json:"confidence_explanation"`
	RiskFactors           []string `json:"risk_factors"`
	FollowUpTimeline      string   `json:"follow_up_timeline"`
	RedFlags              []string `json:"red_flags"`
}

// Analysis is a bundle together with its insights and the legacy urgency fields.
type Analysis struct {
	Bundle
	UrgencyLevel         int      `json:"urgency_level"`
	SuggestedSpecialists []string `json:"suggested_specialists"`
	Insights             Insights `json:"ai_insights"`
}

// Analyze runs Recommend and layers the insight lookups on top.
func (c *Corpus) Analyze(q Query) Analysis {
	b := c.Recommend(q)
	return Analysis{
		Bundle:               b,
		UrgencyLevel:         UrgencyLevel(b.RiskLevel),
		SuggestedSpecialists: SuggestedSpecialists(q.Symptoms),
		Insights: Insights{
			AnalysisMethod:        analysisMethod,
			DatabaseCasesAnalyzed: c.Len(),
			MatchingAlgorithm:     matchingAlgorithm,
			ConfidenceExplanation: ConfidenceExplanation(b.Confidence),
			RiskFactors:           RiskFactors(q.Symptoms, q.Age),
			FollowUpTimeline:      FollowUpTimeline(b.RiskLevel),
			RedFlags:              RedFlags(q.Symptoms),
		},
	}
}

func ConfidenceExplanation(confidence float64) string {
	switch {
	case confidence >= 0.8:
		return "Very high confidence - symptoms closely match known cases"
	case confidence >= 0.6:
		return "High confidence - good symptom pattern match"
	case confidence >= 0.4:
		return "Moderate confidence - partial symptom match found"
	case confidence >= 0.2:
		return "Low confidence - limited symptom similarity"
	default:
		return "Very low confidence - no clear pattern match"
	}
}

var highRiskSymptoms = map[string]bool{
	"chest_pain":          true,
	"shortness_of_breath": true,
	"severe_headache":     true,
	"neck_stiffness":      true,
}

// RiskFactors annotates age extremes and concerning symptoms. A non-positive
// age is treated as unknown.
func RiskFactors(symptoms []string, age int) []string {
	factors := []string{}
	switch {
	case age > 65:
		factors = append(factors, "Advanced age increases risk of complications")
	case age > 0 && age < 5:
		factors = append(factors, "Young age requires careful monitoring")
	}
	for _, s := range distinctTokens(symptoms) {
		if highRiskSymptoms[s] {
			factors = append(factors, displayName(s)+" is a concerning symptom")
		}
	}
	return factors
}

var followUpTimelines = map[RiskLevel]string{
	RiskCritical: "Immediate emergency care required",
	RiskHigh:     "Seek medical attention within 2-4 hours",
	RiskModerate: "Schedule doctor visit within 24-48 hours",
	RiskLow:      "Monitor symptoms, contact doctor if worsening",
}

func FollowUpTimeline(risk RiskLevel) string {
	if t, ok := followUpTimelines[risk]; ok {
		return t
	}
	return "Consult healthcare provider"
}

var redFlagWarnings = map[string]string{
	"chest_pain":          "Chest pain may indicate heart attack",
	"shortness_of_breath": "Breathing difficulty requires urgent evaluation",
	"severe_headache":     "Sudden severe headache may indicate serious condition",
	"neck_stiffness":      "Neck stiffness with fever suggests meningitis",
	"confusion":           "Altered mental status requires immediate attention",
	"high_fever":          "Very high fever can lead to complications",
}

// RedFlags returns the warning for every red-flag symptom, in query order.
func RedFlags(symptoms []string) []string {
	flags := []string{}
	for _, s := range distinctTokens(symptoms) {
		if w, ok := redFlagWarnings[s]; ok {
			flags = append(flags, w)
		}
	}
	return flags
}

var urgencyByRisk = map[RiskLevel]int{
	RiskLow:      1,
	RiskModerate: 2,
	RiskHigh:     3,
	RiskCritical: 4,
}

// UrgencyLevel maps a risk level onto the 1-4 scale used by older clients.
func UrgencyLevel(risk RiskLevel) int {
	if u, ok := urgencyByRisk[risk]; ok {
		return u
	}
	return 1
}

var specialistPatterns = []struct {
	pattern     string
	specialists []string
}{
	{"fever", []string{"General Medicine", "Internal Medicine"}},
	{"chest pain", []string{"Cardiology", "Emergency Medicine"}},
	{"headache", []string{"Neurology", "General Medicine"}},
	{"cough", []string{"Pulmonology", "General Medicine"}},
	{"abdominal pain", []string{"Gastroenterology", "General Surgery"}},
}

// SuggestedSpecialists matches symptom text against known patterns.
// Tokens are compared with underscores read as spaces.
func SuggestedSpecialists(symptoms []string) []string {
	seen := map[string]bool{}
	out := []string{}
	for _, s := range symptoms {
		text := strings.ReplaceAll(strings.ToLower(s), "_", " ")
		for _, p := range specialistPatterns {
			if !strings.Contains(text, p.pattern) {
				continue
			}
			for _, sp := range p.specialists {
				if !seen[sp] {
					seen[sp] = true
					out = append(out, sp)
				}
			}
		}
	}
	return out
}

func distinctTokens(symptoms []string) []string {
	seen := make(map[string]bool, len(symptoms))
	out := make([]string, 0, len(symptoms))
	for _, s := range symptoms {
		s = strings.ToLower(strings.TrimSpace(s))
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

// displayName turns "shortness_of_breath" into "Shortness Of Breath".
func displayName(token string) string {
	words := strings.Split(token, "_")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
