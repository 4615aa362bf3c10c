package estimate

import "time"

// Result is the uniform envelope returned by every tier
type Result struct {
	Milestone       Milestone `json:"milestone"`
	DaysEstimated   int       `json:"days_estimated"`
	EstimatedDate   time.Time `json:"estimated_date"`
	Confidence      float64   `json:"confidence"`
	ConfidenceLevel Level     `json:"confidence_level"`
	Method          Method    `json:"method"`
	ModelName       string    `json:"model_name"`

	// diagnostics
	Source           string `json:"source,omitempty"` // historical match: species, species_similar, genus
	SupportCount     int    `json:"support_count,omitempty"`
	UnseenCategories int    `json:"unseen_categories"`
	Variability      int    `json:"variability,omitempty"` // heuristic ± days
}

// NewResult fills the derived fields of a result. days is clamped to at
// least one and confidence to [floor, 100].
func NewResult(req *Request, days int, confidence, floor float64, method Method, model string) Result {
	if days < 1 {
		days = 1
	}
	confidence = ClampConfidence(confidence, floor)
	return Result{
		Milestone:       req.Milestone,
		DaysEstimated:   days,
		EstimatedDate:   AddDays(req.StartDate, days),
		Confidence:      confidence,
		ConfidenceLevel: LevelFor(confidence),
		Method:          method,
		ModelName:       model,
	}
}
