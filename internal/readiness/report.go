package readiness

// Report is everything the readiness views show for one scored rubric.
type Report struct {
	OverallScore float64          `json:"overallScore"`
	Categories   []ParsedCategory `json:"categories"`
	Summary      Summary          `json:"summary"`
	TopGaps      []GapItem        `json:"topGaps"`
	MissingItems []GapItem        `json:"missingItems"`
	TaskGroups   []TaskGroup      `json:"taskGroups"`
	NextStep     *Projection      `json:"nextStep,omitempty"`
}

// BuildReport scores tree and ranks its gaps. The next step comes from the
// top gaps, or from every missing item when no top gap exists.
func BuildReport(tree Tree, maxGaps int) Report {
	categories := ParseRubric(tree)
	summary := Summarize(tree)

	report := Report{
		OverallScore: summary.Overall.RawPercentage,
		Categories:   categories,
		Summary:      summary,
		TopGaps:      TopGaps(categories, tree, maxGaps),
		MissingItems: AllMissingItems(categories, tree),
		TaskGroups:   PendingTaskGroups(tree),
	}

	source := report.TopGaps
	if len(source) == 0 {
		source = report.MissingItems
	}
	candidates := make([]Candidate, 0, len(source))
	for _, g := range source {
		candidates = append(candidates, CandidateFromGap(g))
	}
	if p, ok := Project(report.OverallScore, candidates); ok {
		report.NextStep = &p
	}
	return report
}
