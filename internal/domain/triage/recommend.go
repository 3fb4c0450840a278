package triage

// RiskLevel is the coarse severity bucket derived from matched cases.
type RiskLevel string

const (
	RiskUnknown  RiskLevel = "unknown"
	RiskLow      RiskLevel = "low"
	RiskModerate RiskLevel = "moderate"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// Emergency reports whether the risk level calls for urgent care.
func (r RiskLevel) Emergency() bool {
	return r == RiskHigh || r == RiskCritical
}

const topCases = 3

const noMatchAdvice = "Consult a doctor for proper diagnosis"

var (
	urgentAdvice = []string{
		"Seek immediate medical attention",
		"Consider emergency room visit if symptoms worsen",
	}
	tierAdvice = map[RiskLevel][]string{
		RiskLow: {
			"Over-the-counter medications may help with symptoms",
			"Rest and home care are usually sufficient",
			"Contact doctor if symptoms persist beyond a few days",
		},
		RiskModerate: {
			"Schedule appointment with doctor within 24-48 hours",
			"Monitor symptoms closely",
			"Follow prescribed treatment plan",
		},
	}
	wellnessAdvice = []string{
		"Stay hydrated",
		"Get adequate rest",
		"Monitor your temperature regularly",
	}
)

// Bundle is the recommendation returned for a triage query.
type Bundle struct {
	RiskLevel          RiskLevel `json:"risk_level"`
	PossibleConditions []string  `json:"possible_conditions"`
	Recommendations    []string  `json:"recommendations"`
	SimilarCases       []Match   `json:"similar_cases"`
	Confidence         float64   `json:"confidence"`
	EmergencyRequired  bool      `json:"emergency_required"`
}

// Recommend synthesizes a bundle from the top matches for the query.
func (c *Corpus) Recommend(q Query) Bundle {
	return recommendFrom(c.FindSimilar(q))
}

func recommendFrom(matches []Match) Bundle {
	if len(matches) == 0 {
		return Bundle{
			RiskLevel:          RiskUnknown,
			PossibleConditions: []string{},
			Recommendations:    []string{noMatchAdvice},
			SimilarCases:       []Match{},
		}
	}
	if len(matches) > topCases {
		matches = matches[:topCases]
	}

	risk := mostSevere(matches)
	return Bundle{
		RiskLevel:          risk,
		PossibleConditions: distinctDiagnoses(matches),
		Recommendations:    recommendationsFor(risk),
		SimilarCases:       matches,
		Confidence:         matches[0].SimilarityScore,
		EmergencyRequired:  risk.Emergency(),
	}
}

func mostSevere(matches []Match) RiskLevel {
	worst := SeverityLow
	for _, m := range matches {
		if severityRank[m.Severity] > severityRank[worst] {
			worst = m.Severity
		}
	}
	return RiskLevel(worst)
}

func distinctDiagnoses(matches []Match) []string {
	seen := make(map[string]bool, len(matches))
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		if seen[m.Diagnosis] {
			continue
		}
		seen[m.Diagnosis] = true
		out = append(out, m.Diagnosis)
	}
	return out
}

func recommendationsFor(risk RiskLevel) []string {
	var recs []string
	if risk.Emergency() {
		recs = append(recs, urgentAdvice...)
	}
	recs = append(recs, tierAdvice[risk]...)
	return append(recs, wellnessAdvice...)
}
