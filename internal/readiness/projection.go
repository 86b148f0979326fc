package readiness

import "math"

// Candidate is something the founder could do next. An explicit ImpactPoints
// wins over the severity mapping.
type Candidate struct {
	Title        string   `json:"title"`
	Severity     Severity `json:"severity,omitempty"`
	ImpactPoints *float64 `json:"impact_points,omitempty"`
}

// SeverityImpact maps a severity to the points it is assumed to add.
func SeverityImpact(s Severity) float64 {
	switch s {
	case SeverityHigh:
		return 5
	case SeverityMedium:
		return 3
	case SeverityLow:
		return 1
	default:
		return 0
	}
}

// Impact is never negative.
func (c Candidate) Impact() float64 {
	impact := SeverityImpact(c.Severity)
	if c.ImpactPoints != nil {
		impact = *c.ImpactPoints
	}
	if impact < 0 || math.IsNaN(impact) {
		return 0
	}
	return impact
}

// ProjectScore is the score after completing c, to one decimal and capped at 100.
func ProjectScore(current float64, c Candidate) float64 {
	projected := math.Round((current+c.Impact())*10) / 10
	return math.Min(100, projected)
}

// CandidateFromGap uses the gap's severity, not its raw point difference.
func CandidateFromGap(g GapItem) Candidate {
	return Candidate{Title: g.Title, Severity: g.Severity}
}

// BestCandidate returns the highest-impact candidate; ties go to the more
// urgent severity, then to the earliest.
func BestCandidate(candidates []Candidate) (Candidate, bool) {
	if len(candidates) == 0 {
		return Candidate{}, false
	}
	best := candidates[0]
	for _, c := range candidates[1:] {
		switch {
		case c.Impact() > best.Impact():
			best = c
		case c.Impact() == best.Impact() && c.Severity.order() < best.Severity.order():
			best = c
		}
	}
	return best, true
}

// Projection is the expected effect of the single best next step.
type Projection struct {
	CurrentScore   float64   `json:"current_score"`
	ProjectedScore float64   `json:"projected_score"`
	Delta          float64   `json:"delta"`
	Selected       Candidate `json:"selected"`
}

// Project picks the best candidate and projects current with it.
func Project(current float64, candidates []Candidate) (Projection, bool) {
	best, ok := BestCandidate(candidates)
	if !ok {
		return Projection{CurrentScore: current, ProjectedScore: current}, false
	}
	projected := ProjectScore(current, best)
	return Projection{
		CurrentScore:   current,
		ProjectedScore: projected,
		Delta:          roundTo(projected-current, 1),
		Selected:       best,
	}, true
}
