package readiness

import (
	"math"
	"sort"
)

type Severity string

const (
	SeverityHigh   Severity = "high"
	SeverityMedium Severity = "medium"
	SeverityLow    Severity = "low"
)

// order is the urgency rank used for tie-breaks: high sorts first.
func (s Severity) order() int {
	switch s {
	case SeverityHigh:
		return 0
	case SeverityMedium:
		return 1
	default:
		return 2
	}
}

// GapItem is one recommended improvement. Severity comes from the rank of the
// enclosing category in the current snapshot, never from the item itself.
type GapItem struct {
	Title        string   `json:"title"`
	Severity     Severity `json:"severity"`
	ImpactPoints int      `json:"impact_points"`
	CategoryKey  string   `json:"category_key,omitempty"`
	CategoryName string   `json:"category_name,omitempty"`
	SubtopicName string   `json:"subtopic_name,omitempty"`
}

func severityForRank(rank int) Severity {
	switch rank {
	case 0:
		return SeverityHigh
	case 1:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// rankCategories returns a copy sorted worst-first; equal scores keep source order.
func rankCategories(categories []ParsedCategory) []ParsedCategory {
	ranked := make([]ParsedCategory, len(categories))
	copy(ranked, categories)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score < ranked[j].Score
	})
	return ranked
}

// categoryItems prefers the tree's current items for a category and falls
// back to the ones captured at parse time.
func categoryItems(tree Tree, c ParsedCategory) []Item {
	if block, ok := tree.Category(c.Key); ok {
		return block.ScorableItems()
	}
	return c.Items
}

func newGap(c ParsedCategory, item Item, severity Severity) GapItem {
	return GapItem{
		Title:        item.title(),
		Severity:     severity,
		ImpactPoints: int(math.Round(item.gap())),
		CategoryKey:  c.Key,
		CategoryName: c.Name,
		SubtopicName: item.SubtopicName,
	}
}

// TopGaps picks the single largest gap from each of the maxGaps worst
// categories. A category with nothing left to gain is skipped rather than
// replaced by the next one, so fewer than maxGaps items may come back.
func TopGaps(categories []ParsedCategory, tree Tree, maxGaps int) []GapItem {
	if maxGaps <= 0 {
		return []GapItem{}
	}

	ranked := rankCategories(categories)
	if len(ranked) > maxGaps {
		ranked = ranked[:maxGaps]
	}

	gaps := make([]GapItem, 0, len(ranked))
	for rank, c := range ranked {
		var best *Item
		items := categoryItems(tree, c)
		for i := range items {
			if items[i].gap() <= 0 {
				continue
			}
			if best == nil || items[i].gap() > best.gap() {
				best = &items[i]
			}
		}
		if best == nil {
			continue
		}
		gaps = append(gaps, newGap(c, *best, severityForRank(rank)))
	}
	return gaps
}

// AllMissingItems lists every incomplete item, grouped by category worst-first.
func AllMissingItems(categories []ParsedCategory, tree Tree) []GapItem {
	gaps := []GapItem{}
	for rank, c := range rankCategories(categories) {
		severity := severityForRank(rank)
		for _, item := range categoryItems(tree, c) {
			if item.Points < item.MaximumPoints {
				gaps = append(gaps, newGap(c, item, severity))
			}
		}
	}
	return gaps
}

type Task struct {
	SubtopicName    string `json:"subcategory_name"`
	Title           string `json:"title"`
	Description     string `json:"description"`
	PotentialPoints int    `json:"potential_points"`
	MaximumPoints   int    `json:"maximum_points"`
	SortOrder       int    `json:"sort_order"`
}

// TaskGroup collects the pending tasks of one category.
type TaskGroup struct {
	CategoryKey     string   `json:"category_key"`
	CategoryName    string   `json:"category_name"`
	Title           string   `json:"title"`
	Impact          Severity `json:"impact"`
	SortOrder       int      `json:"sort_order"`
	Tasks           []Task   `json:"tasks"`
	TotalInCategory int      `json:"total_in_category"`
	DoneCount       int      `json:"done_count"`
}

// ImpactForIncrease grades how much a task can still add: 4+ points is high,
// 3 is medium, anything less is low.
func ImpactForIncrease(increase int) Severity {
	switch {
	case increase >= 4:
		return SeverityHigh
	case increase >= 3:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// PendingTaskGroups returns one group per category that still has incomplete
// items, in rubric order. A group's impact is the best impact of its tasks.
func PendingTaskGroups(tree Tree) []TaskGroup {
	groups := []TaskGroup{}
	for _, block := range tree.Categories {
		items := block.ScorableItems()
		group := TaskGroup{
			CategoryKey:     block.Key,
			CategoryName:    block.DisplayName(),
			Title:           block.DisplayName(),
			Impact:          SeverityLow,
			TotalInCategory: len(items),
		}

		for _, item := range items {
			maxPts := int(math.Round(item.MaximumPoints))
			current := int(math.Round(item.Points))
			if current >= maxPts {
				group.DoneCount++
				continue
			}
			task := Task{
				SubtopicName:    item.SubtopicName,
				Title:           item.title(),
				Description:     item.Question,
				PotentialPoints: maxPts - current,
				MaximumPoints:   maxPts,
				SortOrder:       len(group.Tasks),
			}
			group.Tasks = append(group.Tasks, task)
			if impact := ImpactForIncrease(task.PotentialPoints); impact.order() < group.Impact.order() {
				group.Impact = impact
			}
		}

		if len(group.Tasks) == 0 {
			continue
		}
		group.SortOrder = len(groups)
		groups = append(groups, group)
	}
	return groups
}
