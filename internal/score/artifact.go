package score

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"

	"github.com/diabepredict/diabepredict/internal/model"
)

// artifactFile is the on-disk shape of a trained logistic-regression
// model: intercept plus one weight per canonical feature column.
type artifactFile struct {
	Name      string             `json:"name"`
	Algorithm string             `json:"algorithm"`
	Intercept float64            `json:"intercept"`
	Weights   map[string]float64 `json:"weights"`
	Metrics   struct {
		Accuracy  float64 `json:"accuracy"`
		Precision float64 `json:"precision"`
		Recall    float64 `json:"recall"`
		AUC       float64 `json:"auc"`
	} `json:"metrics"`
}

// ArtifactScorer evaluates a pre-trained classifier loaded from a JSON
// coefficient file. Training and calibration happen outside this service.
type ArtifactScorer struct {
	info      model.ModelInfo
	intercept float64
	weights   []float64
}

// LoadArtifact reads and validates a model file. Every canonical feature
// column must carry a weight; unknown weight keys are rejected so a
// mismatched artifact fails at startup, not at scoring time.
func LoadArtifact(path string) (*ArtifactScorer, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read model artifact: %w", err)
	}

	var af artifactFile
	if err := json.Unmarshal(raw, &af); err != nil {
		return nil, fmt.Errorf("parse model artifact %s: %w", path, err)
	}
	if af.Name == "" {
		return nil, fmt.Errorf("model artifact %s has no name", path)
	}

	known := make(map[string]bool, len(FeatureColumns))
	weights := make([]float64, len(FeatureColumns))
	for i, col := range FeatureColumns {
		w, ok := af.Weights[col]
		if !ok {
			return nil, fmt.Errorf("model artifact %s missing weight for %q", path, col)
		}
		weights[i] = w
		known[col] = true
	}
	for col := range af.Weights {
		if !known[col] {
			return nil, fmt.Errorf("model artifact %s has weight for unknown column %q", path, col)
		}
	}

	info := model.ModelInfo{
		Name:      af.Name,
		Algorithm: af.Algorithm,
		Features:  FeatureColumns,
	}
	info.Metrics = af.Metrics

	return &ArtifactScorer{
		info:      info,
		intercept: af.Intercept,
		weights:   weights,
	}, nil
}

func (s *ArtifactScorer) Score(ctx context.Context, rec model.PatientRecord) (float64, error) {
	z := s.intercept
	for i, x := range FeatureVector(rec) {
		z += s.weights[i] * x
	}
	return 1 / (1 + math.Exp(-z)), nil
}

func (s *ArtifactScorer) Info() model.ModelInfo {
	return s.info
}
