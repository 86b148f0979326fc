// internal/workers/readiness/score-readiness/models.go
package scorereadiness

import (
	"encoding/json"

	"readiness-workers/internal/readiness"
)

// Input carries either an inline scored rubric or the org whose stored
// snapshot should be scored.
type Input struct {
	OrgID        string          `json:"orgId"`
	ScoredRubric json.RawMessage `json:"scoredRubric,omitempty"`
	MaxGaps      *int            `json:"maxGaps,omitempty"`
}

type Output struct {
	OrgID string `json:"orgId"`
	readiness.Report
}
