// Package batch scores patient cohorts uploaded as CSV. It remaps
// localized column headers onto the canonical model columns, coerces cell
// values, scores each row, and aggregates cohort statistics.
package batch

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/diabepredict/diabepredict/internal/model"
	"github.com/diabepredict/diabepredict/internal/score"
)

// RequiredColumns are the headers a cohort CSV must carry, after alias
// remapping. The derived outlier column is computed, never uploaded.
var RequiredColumns = []string{
	"Age", "Pregnancies", "BMI", "Glucose", "BloodPressure",
	"LDL", "HDL", "Triglycerides", "WHR", "FamilyHistory", "MedicationUse",
}

// columnAliases maps localized export headers onto canonical names.
var columnAliases = map[string]string{
	"Âge":                   "Age",
	"Nombre de grossesses":  "Pregnancies",
	"Grossesses":            "Pregnancies",
	"IMC":                   "BMI",
	"Glucose sanguin":       "Glucose",
	"Pression artérielle":   "BloodPressure",
	"Triglycérides":         "Triglycerides",
	"Ratio Taille/Hanche":   "WHR",
	"Antécédents familiaux": "FamilyHistory",
	"Médicaments":           "MedicationUse",
	"Médication":            "MedicationUse",
}

// criticalColumns must parse cleanly; a malformed value here marks the
// row as errored instead of silently scoring on a zero.
var criticalColumns = map[string]bool{
	"Age":     true,
	"BMI":     true,
	"Glucose": true,
}

// Row is one scored (or rejected) line of the upload.
type Row struct {
	Line        int                 `json:"line"`
	Record      model.PatientRecord `json:"record"`
	Outlier     bool                `json:"outlier"`
	Probability float64             `json:"probability"`
	Band        model.RiskBand      `json:"band"`
	Horizon     string              `json:"horizon"`
	Error       string              `json:"error,omitempty"`
}

type Summary struct {
	Total           int                    `json:"total"`
	Scored          int                    `json:"scored"`
	Errored         int                    `json:"errored"`
	MeanProbability float64                `json:"meanProbability"`
	HighRisk        int                    `json:"highRisk"`
	Bands           map[model.RiskBand]int `json:"bands"`
}

// Report is the outcome of scoring one uploaded cohort.
type Report struct {
	BatchID   string  `json:"batchId"`
	ModelUsed string  `json:"modelUsed"`
	Rows      []Row   `json:"rows"`
	Summary   Summary `json:"summary"`
}

// MissingColumnsError names the required headers absent from an upload.
type MissingColumnsError struct {
	Columns []string
}

func (e *MissingColumnsError) Error() string {
	return fmt.Sprintf("missing required columns: %s", strings.Join(e.Columns, ", "))
}

// Process reads a cohort CSV and scores every row with the given scorer.
func Process(ctx context.Context, r io.Reader, scorer model.Scorer) (*Report, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("empty file")
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	index, err := mapHeader(header)
	if err != nil {
		return nil, err
	}

	report := &Report{
		BatchID:   uuid.NewString(),
		ModelUsed: scorer.Info().Name,
		Summary:   Summary{Bands: map[model.RiskBand]int{}},
	}

	var probabilitySum float64
	line := 1
	for {
		cells, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			report.Rows = append(report.Rows, Row{Line: line, Error: fmt.Sprintf("malformed row: %v", err)})
			report.Summary.Errored++
			continue
		}

		row := Row{Line: line}
		rec, err := parseRecord(cells, index)
		if err != nil {
			row.Error = err.Error()
			report.Rows = append(report.Rows, row)
			report.Summary.Errored++
			continue
		}

		p, err := scorer.Score(ctx, rec)
		if err != nil {
			row.Error = fmt.Sprintf("scoring failed: %v", err)
			report.Rows = append(report.Rows, row)
			report.Summary.Errored++
			continue
		}

		p = math.Round(p*100) / 100
		row.Record = rec
		row.Outlier = rec.Outlier()
		row.Probability = p
		row.Band = score.Band(p)
		row.Horizon = score.Horizon(p)
		report.Rows = append(report.Rows, row)

		probabilitySum += p
		report.Summary.Scored++
		report.Summary.Bands[row.Band]++
		if row.Band == model.RiskHigh {
			report.Summary.HighRisk++
		}
	}

	report.Summary.Total = report.Summary.Scored + report.Summary.Errored
	if report.Summary.Scored > 0 {
		report.Summary.MeanProbability = math.Round(probabilitySum/float64(report.Summary.Scored)*10000) / 10000
	}
	if report.Summary.Total == 0 {
		return nil, fmt.Errorf("no data rows in file")
	}
	return report, nil
}

// mapHeader resolves canonical column positions, applying aliases, and
// reports every missing required column at once.
func mapHeader(header []string) (map[string]int, error) {
	index := make(map[string]int, len(header))
	for i, h := range header {
		name := strings.TrimSpace(h)
		if canonical, ok := columnAliases[name]; ok {
			name = canonical
		}
		index[name] = i
	}

	var missing []string
	for _, col := range RequiredColumns {
		if _, ok := index[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, &MissingColumnsError{Columns: missing}
	}
	return index, nil
}

func parseRecord(cells []string, index map[string]int) (model.PatientRecord, error) {
	get := func(col string) (float64, error) {
		i := index[col]
		if i >= len(cells) {
			return 0, nil
		}
		raw := strings.TrimSpace(cells[i])
		if raw == "" {
			return 0, nil
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			if criticalColumns[col] {
				return 0, fmt.Errorf("invalid value %q for critical column %s", raw, col)
			}
			return 0, nil
		}
		return v, nil
	}

	var rec model.PatientRecord
	var err error
	if rec.Age, err = get("Age"); err != nil {
		return rec, err
	}
	if rec.Pregnancies, err = get("Pregnancies"); err != nil {
		return rec, err
	}
	if rec.BMI, err = get("BMI"); err != nil {
		return rec, err
	}
	if rec.Glucose, err = get("Glucose"); err != nil {
		return rec, err
	}
	if rec.BloodPressure, err = get("BloodPressure"); err != nil {
		return rec, err
	}
	if rec.LDL, err = get("LDL"); err != nil {
		return rec, err
	}
	if rec.HDL, err = get("HDL"); err != nil {
		return rec, err
	}
	if rec.Triglycerides, err = get("Triglycerides"); err != nil {
		return rec, err
	}
	if rec.WHR, err = get("WHR"); err != nil {
		return rec, err
	}
	rec.FamilyHistory = parseFlag(cells, index, "FamilyHistory")
	rec.MedicationUse = parseFlag(cells, index, "MedicationUse")
	return rec, nil
}

// parseFlag accepts the encodings seen in exported cohorts: 0/1, yes/no,
// oui/non, true/false.
func parseFlag(cells []string, index map[string]int, col string) bool {
	i := index[col]
	if i >= len(cells) {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(cells[i])) {
	case "1", "yes", "oui", "true":
		return true
	default:
		return false
	}
}

// WriteCSV renders the scored cohort back to CSV, input columns first and
// the computed columns appended, matching the exportable results table.
func (r *Report) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)

	header := append([]string{}, RequiredColumns...)
	header = append(header, "Outlier", "Probability", "RiskLevel", "Horizon", "Error")
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for _, row := range r.Rows {
		rec := row.Record
		cells := []string{
			formatNum(rec.Age), formatNum(rec.Pregnancies), formatNum(rec.BMI),
			formatNum(rec.Glucose), formatNum(rec.BloodPressure), formatNum(rec.LDL),
			formatNum(rec.HDL), formatNum(rec.Triglycerides), formatNum(rec.WHR),
			boolCell(rec.FamilyHistory), boolCell(rec.MedicationUse),
			boolCell(row.Outlier),
			strconv.FormatFloat(row.Probability, 'f', 2, 64),
			string(row.Band), row.Horizon, row.Error,
		}
		if err := cw.Write(cells); err != nil {
			return fmt.Errorf("write row %d: %w", row.Line, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

func formatNum(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func boolCell(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
