package triage

import (
	"errors"
	"fmt"
	"strings"
)

// Severity is the clinical severity recorded on a reference case.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityModerate Severity = "moderate"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

var severityRank = map[Severity]int{
	SeverityLow:      1,
	SeverityModerate: 2,
	SeverityHigh:     3,
	SeverityCritical: 4,
}

func (s Severity) Valid() bool {
	_, ok := severityRank[s]
	return ok
}

// DefaultSymptomWeight applies to any token missing from the weight table.
const DefaultSymptomWeight = 0.5

var ErrInvalidCorpus = errors.New("invalid case corpus")

// ReferenceCase is a curated, resolved consultation used as a matching exemplar.
type ReferenceCase struct {
	CaseID             string   `json:"case_id"`
	PatientAge         int      `json:"patient_age"`
	PatientGender      string   `json:"patient_gender"`
	Village            string   `json:"village"`
	Symptoms           []string `json:"symptoms"`
	SymptomDescription string   `json:"symptom_description"`
	Diagnosis          string   `json:"diagnosis"`
	Treatment          string   `json:"treatment"`
	DoctorName         string   `json:"doctor_name"`
	DoctorQuote        string   `json:"doctor_quote"`
	ConsultationDate   string   `json:"consultation_date"`
	RecoveryTime       string   `json:"recovery_time"`
	Severity           Severity `json:"severity"`
}

// Corpus is the read-only set of reference cases and symptom weights the
// scorer matches against. It is safe for concurrent use once constructed.
type Corpus struct {
	cases   []ReferenceCase
	symSets []map[string]struct{}
	weights map[string]float64
}

// NewCorpus validates and copies the given cases and weights.
func NewCorpus(cases []ReferenceCase, weights map[string]float64) (*Corpus, error) {
	c := &Corpus{
		cases:   make([]ReferenceCase, 0, len(cases)),
		symSets: make([]map[string]struct{}, 0, len(cases)),
		weights: make(map[string]float64, len(weights)),
	}
	seen := make(map[string]bool, len(cases))
	for _, rc := range cases {
		if rc.CaseID == "" {
			return nil, fmt.Errorf("%w: case_id is required", ErrInvalidCorpus)
		}
		if seen[rc.CaseID] {
			return nil, fmt.Errorf("%w: duplicate case_id %s", ErrInvalidCorpus, rc.CaseID)
		}
		seen[rc.CaseID] = true
		if !rc.Severity.Valid() {
			return nil, fmt.Errorf("%w: case %s has invalid severity %q", ErrInvalidCorpus, rc.CaseID, rc.Severity)
		}
		set := normalizeSymptoms(rc.Symptoms)
		if len(set) == 0 {
			return nil, fmt.Errorf("%w: case %s has no symptoms", ErrInvalidCorpus, rc.CaseID)
		}
		rc.Symptoms = append([]string(nil), rc.Symptoms...)
		c.cases = append(c.cases, rc)
		c.symSets = append(c.symSets, set)
	}
	for token, w := range weights {
		if w < 0 || w > 1 {
			return nil, fmt.Errorf("%w: weight for %s out of range: %v", ErrInvalidCorpus, token, w)
		}
		c.weights[strings.ToLower(strings.TrimSpace(token))] = w
	}
	return c, nil
}

// Len returns the number of reference cases.
func (c *Corpus) Len() int { return len(c.cases) }

// Cases returns a copy of the reference cases in corpus order.
func (c *Corpus) Cases() []ReferenceCase {
	out := make([]ReferenceCase, len(c.cases))
	copy(out, c.cases)
	return out
}

// Weight returns the importance weight of a symptom token.
func (c *Corpus) Weight(token string) float64 {
	if w, ok := c.weights[token]; ok {
		return w
	}
	return DefaultSymptomWeight
}

// normalizeSymptoms lowercases, trims and de-duplicates symptom tokens.
func normalizeSymptoms(symptoms []string) map[string]struct{} {
	set := make(map[string]struct{}, len(symptoms))
	for _, s := range symptoms {
		s = strings.ToLower(strings.TrimSpace(s))
		if s == "" {
			continue
		}
		set[s] = struct{}{}
	}
	return set
}

// DefaultCorpus returns the built-in rural clinic reference cases.
func DefaultCorpus() *Corpus {
	c, err := NewCorpus(defaultCases, defaultWeights)
	if err != nil {
		panic(err)
	}
	return c
}

var defaultWeights = map[string]float64{
	"fever":               0.8,
	"cough":               0.7,
	"headache":            0.6,
	"chest_pain":          0.9,
	"shortness_of_breath": 0.9,
	"stomach_pain":        0.7,
	"nausea":              0.6,
	"vomiting":            0.7,
	"diarrhea":            0.7,
	"rash":                0.6,
	"joint_pain":          0.7,
	"fatigue":             0.5,
	"dizziness":           0.6,
	"weight_loss":         0.8,
	"night_sweats":        0.8,
	"frequent_urination":  0.7,
	"excessive_thirst":    0.7,
	"blurred_vision":      0.6,
	"memory_loss":         0.8,
	"confusion":           0.8,
	"anxiety":             0.6,
	"palpitations":        0.7,
}

var defaultCases = []ReferenceCase{
	{
		CaseID: "RTP001", PatientAge: 45, PatientGender: "male", Village: "Rampur",
		Symptoms:           []string{"fever", "cough", "headache", "body_ache"},
		SymptomDescription: "High fever for 3 days, dry cough, severe headache, muscle pain",
		Diagnosis:          "Viral Fever",
		Treatment:          "Paracetamol 500mg twice daily, plenty of fluids, rest",
		DoctorName:         "Dr. Sharma",
		DoctorQuote:        "This is a typical viral fever case. The combination of high fever with body ache and dry cough indicates viral infection. Rest and symptomatic treatment will help recovery in 5-7 days.",
		ConsultationDate:   "2024-01-15", RecoveryTime: "6 days", Severity: SeverityModerate,
	},
	{
		CaseID: "RTP002", PatientAge: 28, PatientGender: "female", Village: "Krishnapur",
		Symptoms:           []string{"stomach_pain", "nausea", "vomiting", "diarrhea"},
		SymptomDescription: "Severe stomach cramps, frequent vomiting, loose motions since morning",
		Diagnosis:          "Gastroenteritis",
		Treatment:          "ORS solution, Metronidazole 400mg thrice daily, light diet",
		DoctorName:         "Dr. Patel",
		DoctorQuote:        "This appears to be acute gastroenteritis, likely from contaminated food or water. Hydration is key. The antibiotic will help if bacterial. Avoid solid foods for 24 hours.",
		ConsultationDate:   "2024-01-20", RecoveryTime: "3 days", Severity: SeverityModerate,
	},
	{
		CaseID: "RTP003", PatientAge: 65, PatientGender: "male", Village: "Govindpur",
		Symptoms:           []string{"chest_pain", "shortness_of_breath", "dizziness"},
		SymptomDescription: "Sharp chest pain, difficulty breathing, feeling lightheaded",
		Diagnosis:          "Hypertensive Crisis",
		Treatment:          "Immediate BP medication, hospital referral, cardiac monitoring",
		DoctorName:         "Dr. Kumar",
		DoctorQuote:        "This is a serious condition requiring immediate attention. The chest pain with breathing difficulty in an elderly patient suggests cardiovascular involvement. Emergency referral is necessary.",
		ConsultationDate:   "2024-01-25", RecoveryTime: "14 days", Severity: SeverityHigh,
	},
	{
		CaseID: "RTP004", PatientAge: 8, PatientGender: "female", Village: "Rampur",
		Symptoms:           []string{"fever", "rash", "sore_throat"},
		SymptomDescription: "Mild fever, red rash on body, throat pain while swallowing",
		Diagnosis:          "Viral Exanthem",
		Treatment:          "Paracetamol syrup, throat lozenges, calamine lotion for rash",
		DoctorName:         "Dr. Sharma",
		DoctorQuote:        "This is a common viral infection in children causing fever and rash. The rash will fade in 3-4 days. Keep the child hydrated and comfortable.",
		ConsultationDate:   "2024-02-01", RecoveryTime: "5 days", Severity: SeverityLow,
	},
	{
		CaseID: "RTP005", PatientAge: 35, PatientGender: "female", Village: "Madhavpur",
		Symptoms:           []string{"headache", "neck_stiffness", "fever", "sensitivity_to_light"},
		SymptomDescription: "Severe headache, stiff neck, high fever, eyes hurt in bright light",
		Diagnosis:          "Suspected Meningitis",
		Treatment:          "Immediate hospital referral, IV antibiotics, lumbar puncture",
		DoctorName:         "Dr. Gupta",
		DoctorQuote:        "The combination of severe headache, neck stiffness, and photophobia is highly concerning for meningitis. This requires immediate hospital admission and aggressive treatment.",
		ConsultationDate:   "2024-02-05", RecoveryTime: "21 days", Severity: SeverityCritical,
	},
	{
		CaseID: "RTP006", PatientAge: 22, PatientGender: "male", Village: "Sundarpur",
		Symptoms:           []string{"cough", "weight_loss", "night_sweats", "fatigue"},
		SymptomDescription: "Persistent cough for 6 weeks, unexplained weight loss, night sweats",
		Diagnosis:          "Pulmonary Tuberculosis",
		Treatment:          "Anti-TB therapy (DOTS), nutritional support, isolation initially",
		DoctorName:         "Dr. Singh",
		DoctorQuote:        "The chronic cough with constitutional symptoms like weight loss and night sweats strongly suggests tuberculosis. Sputum test confirmed it. DOTS therapy for 6 months is essential.",
		ConsultationDate:   "2024-02-10", RecoveryTime: "180 days", Severity: SeverityHigh,
	},
	{
		CaseID: "RTP007", PatientAge: 40, PatientGender: "female", Village: "Krishnapur",
		Symptoms:           []string{"joint_pain", "morning_stiffness", "swelling"},
		SymptomDescription: "Pain in multiple joints, stiffness worse in morning, swollen knuckles",
		Diagnosis:          "Rheumatoid Arthritis",
		Treatment:          "Methotrexate, NSAIDs, physiotherapy, regular monitoring",
		DoctorName:         "Dr. Mehta",
		DoctorQuote:        "The pattern of joint involvement and morning stiffness indicates inflammatory arthritis. Early treatment with disease-modifying drugs is crucial to prevent joint damage.",
		ConsultationDate:   "2024-02-15", RecoveryTime: "ongoing", Severity: SeverityModerate,
	},
	{
		CaseID: "RTP008", PatientAge: 55, PatientGender: "male", Village: "Rampur",
		Symptoms:           []string{"frequent_urination", "excessive_thirst", "fatigue", "blurred_vision"},
		SymptomDescription: "Urinating every hour, always thirsty, tired all the time, vision problems",
		Diagnosis:          "Type 2 Diabetes Mellitus",
		Treatment:          "Metformin, dietary changes, regular exercise, blood sugar monitoring",
		DoctorName:         "Dr. Sharma",
		DoctorQuote:        "These are classic symptoms of diabetes. The blood sugar is quite high. With proper medication and lifestyle changes, we can control this effectively.",
		ConsultationDate:   "2024-02-20", RecoveryTime: "ongoing", Severity: SeverityModerate,
	},
	{
		CaseID: "RTP009", PatientAge: 30, PatientGender: "female", Village: "Govindpur",
		Symptoms:           []string{"missed_periods", "nausea", "breast_tenderness", "fatigue"},
		SymptomDescription: "Missed period for 6 weeks, morning sickness, sore breasts, feeling tired",
		Diagnosis:          "Pregnancy (First Trimester)",
		Treatment:          "Folic acid supplements, prenatal vitamins, regular check-ups",
		DoctorName:         "Dr. Priya",
		DoctorQuote:        "Congratulations! You're about 6 weeks pregnant. Start taking folic acid immediately and avoid alcohol, smoking. Regular antenatal check-ups are important.",
		ConsultationDate:   "2024-02-25", RecoveryTime: "N/A", Severity: SeverityLow,
	},
	{
		CaseID: "RTP010", PatientAge: 12, PatientGender: "male", Village: "Madhavpur",
		Symptoms:           []string{"wheezing", "shortness_of_breath", "cough", "chest_tightness"},
		SymptomDescription: "Whistling sound while breathing, can't run without getting breathless, dry cough at night",
		Diagnosis:          "Bronchial Asthma",
		Treatment:          "Salbutamol inhaler, preventive inhaler, avoid triggers, peak flow monitoring",
		DoctorName:         "Dr. Reddy",
		DoctorQuote:        "This is asthma triggered by dust and exercise. With proper inhaler technique and avoiding triggers, the child can lead a normal active life.",
		ConsultationDate:   "2024-03-01", RecoveryTime: "ongoing", Severity: SeverityModerate,
	},
	{
		CaseID: "RTP011", PatientAge: 70, PatientGender: "female", Village: "Sundarpur",
		Symptoms:           []string{"memory_loss", "confusion", "difficulty_speaking", "mood_changes"},
		SymptomDescription: "Forgetting recent events, getting confused about time and place, trouble finding words",
		Diagnosis:          "Early Dementia",
		Treatment:          "Cognitive assessment, family counseling, safety measures, routine establishment",
		DoctorName:         "Dr. Agarwal",
		DoctorQuote:        "The cognitive decline pattern suggests early dementia. While we can't reverse it, we can slow progression and improve quality of life with proper care and routine.",
		ConsultationDate:   "2024-03-05", RecoveryTime: "progressive", Severity: SeverityHigh,
	},
	{
		CaseID: "RTP012", PatientAge: 25, PatientGender: "male", Village: "Krishnapur",
		Symptoms:           []string{"skin_rash", "itching", "redness", "scaling"},
		SymptomDescription: "Red, itchy patches on arms and legs, skin is flaky and dry",
		Diagnosis:          "Eczema (Atopic Dermatitis)",
		Treatment:          "Moisturizing cream, topical steroid, antihistamine, avoid irritants",
		DoctorName:         "Dr. Jain",
		DoctorQuote:        "This is eczema, a chronic skin condition. Regular moisturizing is key. Use the steroid cream only during flare-ups. Identify and avoid your triggers.",
		ConsultationDate:   "2024-03-10", RecoveryTime: "ongoing", Severity: SeverityLow,
	},
	{
		CaseID: "RTP013", PatientAge: 50, PatientGender: "female", Village: "Rampur",
		Symptoms:           []string{"hot_flashes", "night_sweats", "mood_swings", "irregular_periods"},
		SymptomDescription: "Sudden heat waves, sweating at night, emotional ups and downs, periods becoming irregular",
		Diagnosis:          "Menopause",
		Treatment:          "Hormone replacement therapy, calcium supplements, lifestyle modifications",
		DoctorName:         "Dr. Priya",
		DoctorQuote:        "You're entering menopause, which is natural at your age. HRT can help with symptoms. Focus on calcium-rich diet and regular exercise for bone health.",
		ConsultationDate:   "2024-03-15", RecoveryTime: "ongoing", Severity: SeverityLow,
	},
	{
		CaseID: "RTP014", PatientAge: 18, PatientGender: "male", Village: "Govindpur",
		Symptoms:           []string{"severe_headache", "vomiting", "fever", "neck_pain"},
		SymptomDescription: "Worst headache of life, projectile vomiting, high fever, neck hurts to move",
		Diagnosis:          "Acute Meningitis",
		Treatment:          "Emergency hospitalization, IV antibiotics, supportive care, isolation",
		DoctorName:         "Dr. Kumar",
		DoctorQuote:        "This is acute bacterial meningitis - a medical emergency. Immediate IV antibiotics are started. With prompt treatment, full recovery is expected.",
		ConsultationDate:   "2024-03-20", RecoveryTime: "14 days", Severity: SeverityCritical,
	},
	{
		CaseID: "RTP015", PatientAge: 38, PatientGender: "female", Village: "Madhavpur",
		Symptoms:           []string{"anxiety", "palpitations", "sweating", "trembling"},
		SymptomDescription: "Constant worry, heart racing, excessive sweating, hands shaking",
		Diagnosis:          "Generalized Anxiety Disorder",
		Treatment:          "Counseling, relaxation techniques, mild anxiolytic if needed, lifestyle changes",
		DoctorName:         "Dr. Verma",
		DoctorQuote:        "Anxiety is treatable. Counseling and relaxation techniques work well. Medication is only if symptoms are severe. Regular exercise helps significantly.",
		ConsultationDate:   "2024-03-25", RecoveryTime: "60 days", Severity: SeverityModerate,
	},
}
