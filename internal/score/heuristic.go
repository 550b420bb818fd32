package score

import (
	"context"

	"github.com/diabepredict/diabepredict/internal/model"
)

// HeuristicScorer is the fallback linear formula used when no trained
// model artifact is configured. It normalizes each biomarker against a
// nominal ceiling and applies flat risk-factor multipliers.
type HeuristicScorer struct{}

func NewHeuristicScorer() *HeuristicScorer {
	return &HeuristicScorer{}
}

func (s *HeuristicScorer) Score(ctx context.Context, rec model.PatientRecord) (float64, error) {
	p := (rec.Age/100 + rec.BMI/50 + rec.Glucose/300 + rec.BloodPressure/200 +
		rec.LDL/400 - rec.HDL/200 + rec.Triglycerides/500 + rec.WHR/2) / 5
	if rec.FamilyHistory {
		p *= 1.2
	}
	if rec.MedicationUse {
		p *= 1.3
	}
	if p < 0 {
		p = 0
	}
	if p > 0.95 {
		p = 0.95
	}
	return p, nil
}

func (s *HeuristicScorer) Info() model.ModelInfo {
	return model.ModelInfo{
		Name:      "heuristic-v1",
		Algorithm: "weighted-sum",
		Features:  FeatureColumns[:len(FeatureColumns)-1],
	}
}
