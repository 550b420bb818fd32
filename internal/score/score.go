// Package score provides interchangeable diabetes-risk scorers and the
// banding applied to their output.
package score

import "github.com/diabepredict/diabepredict/internal/model"

// FeatureColumns is the canonical model input order. Batch CSVs carry the
// same names minus the derived outlier column.
var FeatureColumns = []string{
	"Age", "Pregnancies", "BMI", "Glucose", "BloodPressure",
	"LDL", "HDL", "Triglycerides", "WHR", "FamilyHistory",
	"MedicationUse", "outlier",
}

// FeatureVector flattens a record into FeatureColumns order.
func FeatureVector(rec model.PatientRecord) []float64 {
	v := []float64{
		rec.Age, rec.Pregnancies, rec.BMI, rec.Glucose, rec.BloodPressure,
		rec.LDL, rec.HDL, rec.Triglycerides, rec.WHR, 0, 0, 0,
	}
	if rec.FamilyHistory {
		v[9] = 1
	}
	if rec.MedicationUse {
		v[10] = 1
	}
	if rec.Outlier() {
		v[11] = 1
	}
	return v
}

// Band maps a probability onto the three-level risk scale.
func Band(p float64) model.RiskBand {
	switch {
	case p < 0.4:
		return model.RiskLow
	case p < 0.7:
		return model.RiskModerate
	default:
		return model.RiskHigh
	}
}

// Horizon estimates how far out onset is likely given the probability.
func Horizon(p float64) string {
	switch {
	case p < 0.2:
		return "onset unlikely within 10 years"
	case p < 0.5:
		return "onset likely within 5-10 years"
	case p < 0.8:
		return "onset likely within 3-5 years"
	default:
		return "onset likely within 3 years"
	}
}

var recommendations = map[model.RiskBand][]string{
	model.RiskLow: {
		"Keep up current dietary habits",
		"Maintain regular physical activity (30 min/day)",
		"Annual fasting glucose check",
		"Monitor weight and BMI",
	},
	model.RiskModerate: {
		"Consult a physician for a full metabolic workup",
		"Increase physical activity to 45 min/day",
		"Cut fast sugars and saturated fats",
		"Quarterly glucose monitoring recommended",
		"Weight loss advised if BMI above 25",
	},
	model.RiskHigh: {
		"Urgent medical consultation recommended",
		"Supervised physical activity program",
		"Strict low-carbohydrate diet",
		"Monthly glucose monitoring",
		"Full endocrinology workup",
		"Assess remaining cardiovascular risk factors",
	},
}

// Recommendations returns the advice list for a risk band.
func Recommendations(band model.RiskBand) []string {
	return recommendations[band]
}

// Assess wraps a probability into a full assessment.
func Assess(p float64, modelName string) model.Assessment {
	band := Band(p)
	return model.Assessment{
		Probability:     p,
		Band:            band,
		Horizon:         Horizon(p),
		Recommendations: Recommendations(band),
		ModelUsed:       modelName,
	}
}
