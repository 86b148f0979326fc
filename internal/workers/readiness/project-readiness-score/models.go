// internal/workers/readiness/project-readiness-score/models.go
package projectreadinessscore

import "readiness-workers/internal/readiness"

type Input struct {
	CurrentScore   float64             `json:"currentScore"`
	Recommendation *Recommendation     `json:"recommendation,omitempty"`
	Gaps           []readiness.GapItem `json:"gaps,omitempty"`
}

// Recommendation is an externally suggested next step. ImpactPoints, when
// set, replaces the severity mapping.
type Recommendation struct {
	Title        string             `json:"title"`
	Severity     readiness.Severity `json:"severity,omitempty"`
	ImpactPoints *float64           `json:"impactPoints,omitempty"`
}

type Output struct {
	CurrentScore   float64             `json:"currentScore"`
	ProjectedScore float64             `json:"projectedScore"`
	Delta          float64             `json:"delta"`
	Selected       readiness.Candidate `json:"selected"`
}
