package readiness

import "math"

// ParsedCategory is a scored snapshot of one category. Score is always in [0,100].
type ParsedCategory struct {
	Key          string  `json:"key"`
	Name         string  `json:"name"`
	Score        int     `json:"score"`
	Weight       float64 `json:"weight"`
	MaximumPoint float64 `json:"maximum_point"`
	Items        []Item  `json:"items"`
}

// ParseRubric scores every category of tree in document order. It never
// fails: malformed items contribute zero instead of blanking the category.
func ParseRubric(tree Tree) []ParsedCategory {
	categories := make([]ParsedCategory, 0, len(tree.Categories))
	for _, block := range tree.Categories {
		items := block.ScorableItems()

		var earned, maximum float64
		for _, item := range items {
			earned += item.Points
			maximum += item.MaximumPoints
		}

		categories = append(categories, ParsedCategory{
			Key:          block.Key,
			Name:         block.DisplayName(),
			Score:        percentScore(earned, maximum),
			Weight:       block.Weight,
			MaximumPoint: block.MaximumPoint,
			Items:        items,
		})
	}
	return categories
}

func percentScore(earned, maximum float64) int {
	if maximum <= 0 {
		return 0
	}
	score := math.Round(100 * earned / maximum)
	switch {
	case math.IsNaN(score) || score < 0:
		return 0
	case score > 100:
		return 100
	}
	return int(score)
}

type CategorySummary struct {
	Key           string  `json:"key"`
	CategoryName  string  `json:"category_name"`
	Earned        float64 `json:"earned"`
	Maximum       float64 `json:"maximum"`
	Percentage    float64 `json:"percentage"`
	Weight        float64 `json:"weight"`
	WeightedScore float64 `json:"weighted_score"`
}

type OverallSummary struct {
	TotalEarned   float64 `json:"total_earned"`
	TotalMaximum  float64 `json:"total_maximum"`
	RawPercentage float64 `json:"raw_percentage"`
	WeightedTotal float64 `json:"weighted_total"`
}

type Summary struct {
	Categories []CategorySummary `json:"categories"`
	Overall    OverallSummary    `json:"overall"`
}

// Summarize reports earned points against each category's declared
// maximum_point. The overall maximum sums item maxima, so a rubric with every
// item at its maximum reaches a raw percentage of 100.
func Summarize(tree Tree) Summary {
	var summary Summary
	var weighted float64

	for _, block := range tree.Categories {
		var earned, itemMax float64
		for _, item := range block.ScorableItems() {
			earned += item.Points
			itemMax += item.MaximumPoints
		}

		var pct, wScore float64
		if block.MaximumPoint > 0 {
			pct = earned / block.MaximumPoint * 100
			wScore = earned / block.MaximumPoint * block.Weight
		}

		summary.Categories = append(summary.Categories, CategorySummary{
			Key:           block.Key,
			CategoryName:  block.DisplayName(),
			Earned:        earned,
			Maximum:       block.MaximumPoint,
			Percentage:    roundTo(pct, 1),
			Weight:        block.Weight,
			WeightedScore: roundTo(wScore, 2),
		})

		summary.Overall.TotalEarned += earned
		summary.Overall.TotalMaximum += itemMax
		weighted += wScore
	}

	if summary.Overall.TotalMaximum > 0 {
		summary.Overall.RawPercentage = roundTo(summary.Overall.TotalEarned/summary.Overall.TotalMaximum*100, 1)
	}
	summary.Overall.WeightedTotal = roundTo(weighted, 2)
	return summary
}

func roundTo(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
