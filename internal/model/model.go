package model

import (
	"context"
	"fmt"
	"time"
)

type User struct {
	ID           int64     `db:"id" json:"id"`
	Username     string    `db:"username" json:"username"`
	PasswordHash string    `db:"password_hash" json:"-"`
	Email        string    `db:"email" json:"email"`
	CreatedAt    time.Time `db:"created_at" json:"createdAt"`
}

// PatientRecord holds one patient's biomarkers, the unit of scoring.
type PatientRecord struct {
	Age           float64 `json:"age"`
	Pregnancies   float64 `json:"pregnancies"`
	BMI           float64 `json:"bmi"`
	Glucose       float64 `json:"glucose"`
	BloodPressure float64 `json:"bloodPressure"`
	LDL           float64 `json:"ldl"`
	HDL           float64 `json:"hdl"`
	Triglycerides float64 `json:"triglycerides"`
	WHR           float64 `json:"whr"`
	FamilyHistory bool    `json:"familyHistory"`
	MedicationUse bool    `json:"medicationUse"`
}

// Outlier reports whether any biomarker falls outside the ranges the
// training data treated as normal. Classifier models receive it as an
// extra input column.
func (r PatientRecord) Outlier() bool {
	return r.Glucose > 180 || r.BMI > 35 || r.BloodPressure > 140 ||
		r.LDL > 160 || r.HDL < 30 || r.Triglycerides > 400
}

type fieldRange struct {
	name     string
	value    float64
	min, max float64
}

// Validate checks every biomarker against its admissible range.
func (r PatientRecord) Validate() error {
	ranges := []fieldRange{
		{"age", r.Age, 0, 120},
		{"pregnancies", r.Pregnancies, 0, 20},
		{"bmi", r.BMI, 10, 70},
		{"glucose", r.Glucose, 0, 300},
		{"bloodPressure", r.BloodPressure, 0, 200},
		{"ldl", r.LDL, 0, 400},
		{"hdl", r.HDL, 0, 200},
		{"triglycerides", r.Triglycerides, 0, 1000},
		{"whr", r.WHR, 0, 2},
	}
	for _, f := range ranges {
		if f.value < f.min || f.value > f.max {
			return fmt.Errorf("%s must be between %g and %g, got %g", f.name, f.min, f.max, f.value)
		}
	}
	return nil
}

type RiskBand string

const (
	RiskLow      RiskBand = "low"
	RiskModerate RiskBand = "moderate"
	RiskHigh     RiskBand = "high"
)

// Assessment is the outcome of scoring a single record.
type Assessment struct {
	Probability     float64  `json:"probability"`
	Band            RiskBand `json:"band"`
	Horizon         string   `json:"horizon"`
	Recommendations []string `json:"recommendations"`
	ModelUsed       string   `json:"modelUsed"`
}

const (
	AnalysisIndividual = "individual"
	AnalysisBatch      = "batch"
)

// Analysis is one persisted row of a user's assessment history.
type Analysis struct {
	ID           int64     `db:"id" json:"id"`
	UserID       int64     `db:"user_id" json:"userId"`
	AnalysisType string    `db:"analysis_type" json:"analysisType"`
	Parameters   string    `db:"parameters" json:"parameters"`
	Result       string    `db:"result" json:"result"`
	Probability  float64   `db:"probability" json:"probability"`
	CreatedAt    time.Time `db:"created_at" json:"createdAt"`
}

// ModelInfo describes the scoring model behind the service.
type ModelInfo struct {
	Name      string   `json:"name"`
	Algorithm string   `json:"algorithm"`
	Features  []string `json:"features"`
	Metrics   struct {
		Accuracy  float64 `json:"accuracy"`
		Precision float64 `json:"precision"`
		Recall    float64 `json:"recall"`
		AUC       float64 `json:"auc"`
	} `json:"metrics"`
}

// Scorer turns a patient record into a diabetes-risk probability in [0,1].
// Implementations are interchangeable: heuristic formula, serialized
// classifier, or a remote model service.
type Scorer interface {
	Score(ctx context.Context, rec PatientRecord) (float64, error)
	Info() ModelInfo
}
