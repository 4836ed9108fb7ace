package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultThresholds(t *testing.T) {
	cfg := DefaultThresholds()

	assert.Equal(t, 7, cfg.Symptoms.SeverityThreshold)
	assert.Equal(t, 0.2, cfg.Diagnoses.ProbabilityThreshold)
	assert.Equal(t, 7, cfg.Treatments.PriorityThreshold)
	assert.False(t, cfg.Symptoms.ShowAll)
	assert.False(t, cfg.Diagnoses.ShowAll)
	assert.False(t, cfg.Treatments.ShowAll)
}

func TestThresholdSettersClamp(t *testing.T) {
	cfg := DefaultThresholds()

	cfg.SetSymptomThreshold(0)
	assert.Equal(t, 1, cfg.Symptoms.SeverityThreshold)
	cfg.SetSymptomThreshold(12)
	assert.Equal(t, 10, cfg.Symptoms.SeverityThreshold)

	cfg.SetDiagnosisThreshold(-0.5)
	assert.Equal(t, 0.0, cfg.Diagnoses.ProbabilityThreshold)
	cfg.SetDiagnosisThreshold(1.5)
	assert.Equal(t, 1.0, cfg.Diagnoses.ProbabilityThreshold)

	cfg.SetTreatmentThreshold(42)
	assert.Equal(t, 10, cfg.Treatments.PriorityThreshold)
}

func TestThresholdSetShowAll(t *testing.T) {
	cfg := DefaultThresholds()

	assert.True(t, cfg.SetShowAll(KindDiagnosis, true))
	assert.True(t, cfg.Diagnoses.ShowAll)
	assert.False(t, cfg.SetShowAll(KindAction, true))
}

func TestThresholdClamp(t *testing.T) {
	cfg := ThresholdConfig{
		Symptoms:   SymptomThreshold{SeverityThreshold: -4},
		Diagnoses:  DiagnosisThreshold{ProbabilityThreshold: 2},
		Treatments: TreatmentThreshold{PriorityThreshold: 0},
	}
	cfg.Clamp()

	assert.Equal(t, 1, cfg.Symptoms.SeverityThreshold)
	assert.Equal(t, 1.0, cfg.Diagnoses.ProbabilityThreshold)
	assert.Equal(t, 1, cfg.Treatments.PriorityThreshold)
}
