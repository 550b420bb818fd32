package score

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/diabepredict/diabepredict/internal/model"
)

// RemoteScorer delegates scoring to an external model service over HTTP.
type RemoteScorer struct {
	endpoint string
	name     string
	client   *http.Client
}

func NewRemoteScorer(endpoint string) *RemoteScorer {
	return &RemoteScorer{
		endpoint: endpoint,
		name:     "remote",
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type remoteRequest struct {
	Columns  []string  `json:"columns"`
	Features []float64 `json:"features"`
}

type remoteResponse struct {
	Probability float64 `json:"probability"`
	Model       string  `json:"model"`
}

func (s *RemoteScorer) Score(ctx context.Context, rec model.PatientRecord) (float64, error) {
	body, err := json.Marshal(remoteRequest{
		Columns:  FeatureColumns,
		Features: FeatureVector(rec),
	})
	if err != nil {
		return 0, fmt.Errorf("marshal scoring request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewBuffer(body))
	if err != nil {
		return 0, fmt.Errorf("create scoring request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("model service request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("model service returned status %d", resp.StatusCode)
	}

	var out remoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, fmt.Errorf("decode model service response: %w", err)
	}
	if out.Probability < 0 || out.Probability > 1 {
		return 0, fmt.Errorf("model service returned probability %g outside [0,1]", out.Probability)
	}
	return out.Probability, nil
}

func (s *RemoteScorer) Info() model.ModelInfo {
	return model.ModelInfo{
		Name:      s.name,
		Algorithm: "external",
		Features:  FeatureColumns,
	}
}
