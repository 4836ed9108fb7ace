package domain

// SymptomThreshold is a severity ceiling: symptoms at or below it stay visible
type SymptomThreshold struct {
	SeverityThreshold int  `json:"severityThreshold" yaml:"severity_threshold"`
	ShowAll           bool `json:"showAll" yaml:"show_all"`
}

// DiagnosisThreshold is a probability floor: diagnoses at or above it stay visible
type DiagnosisThreshold struct {
	ProbabilityThreshold float64 `json:"probabilityThreshold" yaml:"probability_threshold"`
	ShowAll              bool    `json:"showAll" yaml:"show_all"`
}

// TreatmentThreshold is a priority ceiling: treatments at or below it stay visible
type TreatmentThreshold struct {
	PriorityThreshold int  `json:"priorityThreshold" yaml:"priority_threshold"`
	ShowAll           bool `json:"showAll" yaml:"show_all"`
}

// ThresholdConfig holds the visibility cutoffs per graph kind
type ThresholdConfig struct {
	Symptoms   SymptomThreshold   `json:"symptoms" yaml:"symptoms"`
	Diagnoses  DiagnosisThreshold `json:"diagnoses" yaml:"diagnoses"`
	Treatments TreatmentThreshold `json:"treatments" yaml:"treatments"`
}

// DefaultThresholds returns the thresholds a new session starts with
func DefaultThresholds() ThresholdConfig {
	return ThresholdConfig{
		Symptoms:   SymptomThreshold{SeverityThreshold: 7},
		Diagnoses:  DiagnosisThreshold{ProbabilityThreshold: 0.2},
		Treatments: TreatmentThreshold{PriorityThreshold: 7},
	}
}

// SetSymptomThreshold sets the severity ceiling, clamped to 1-10
func (c *ThresholdConfig) SetSymptomThreshold(v int) {
	c.Symptoms.SeverityThreshold = ClampInt(v, MinSeverity, MaxSeverity)
}

// SetDiagnosisThreshold sets the probability floor, clamped to 0-1
func (c *ThresholdConfig) SetDiagnosisThreshold(v float64) {
	c.Diagnoses.ProbabilityThreshold = Clamp01(v)
}

// SetTreatmentThreshold sets the priority ceiling, clamped to 1-10
func (c *ThresholdConfig) SetTreatmentThreshold(v int) {
	c.Treatments.PriorityThreshold = ClampInt(v, MinPriority, MaxPriority)
}

// SetShowAll toggles the filtering override for one kind. Kinds without a
// threshold are ignored and false is returned.
func (c *ThresholdConfig) SetShowAll(kind NodeKind, showAll bool) bool {
	switch kind {
	case KindSymptom:
		c.Symptoms.ShowAll = showAll
	case KindDiagnosis:
		c.Diagnoses.ShowAll = showAll
	case KindTreatment:
		c.Treatments.ShowAll = showAll
	default:
		return false
	}
	return true
}

// Clamp brings every threshold into its documented range
func (c *ThresholdConfig) Clamp() {
	c.SetSymptomThreshold(c.Symptoms.SeverityThreshold)
	c.SetDiagnosisThreshold(c.Diagnoses.ProbabilityThreshold)
	c.SetTreatmentThreshold(c.Treatments.PriorityThreshold)
}
