// Package readiness turns a scored readiness rubric into category scores,
// ranked improvement gaps and projected scores. Everything here is pure: no
// I/O, no shared state, safe to call from any goroutine.
package readiness

import "strings"

// Tree is a scored rubric with categories kept in document order.
type Tree struct {
	Categories []CategoryBlock `json:"categories"`
}

// CategoryBlock is one top-level rubric category.
type CategoryBlock struct {
	Key          string     `json:"key"`
	Name         string     `json:"category_name"`
	Weight       float64    `json:"weight"`
	MaximumPoint float64    `json:"maximum_point"`
	Subtopics    []Subtopic `json:"subtopics"`
}

type Subtopic struct {
	Key   string `json:"key"`
	Items []Item `json:"items"`
}

// Item is a single rubric question. Only items with HasOptions set are scored.
type Item struct {
	Question      string   `json:"question"`
	Answer        string   `json:"answer,omitempty"`
	Points        float64  `json:"points"`
	MaximumPoints float64  `json:"maximum_points"`
	Reasoning     string   `json:"reasoning,omitempty"`
	SubtopicName  string   `json:"subtopic_name"`
	HasOptions    bool     `json:"has_options"`
	Options       []Option `json:"options,omitempty"`
	RequiredValue bool     `json:"required_value,omitempty"`
	Value         string   `json:"value,omitempty"`
}

type Option struct {
	Label  string  `json:"label"`
	Points float64 `json:"points"`
}

// DisplayName is the category name, or its key when the rubric carries none.
func (c CategoryBlock) DisplayName() string {
	if c.Name != "" {
		return c.Name
	}
	return c.Key
}

// ScorableItems flattens every subtopic and keeps only option-bearing items.
func (c CategoryBlock) ScorableItems() []Item {
	var items []Item
	for _, sub := range c.Subtopics {
		for _, item := range sub.Items {
			if item.HasOptions {
				items = append(items, item)
			}
		}
	}
	return items
}

// Category returns the block stored under key.
func (t Tree) Category(key string) (CategoryBlock, bool) {
	for _, c := range t.Categories {
		if c.Key == key {
			return c, true
		}
	}
	return CategoryBlock{}, false
}

// ItemCount is the number of scorable items across the tree.
func (t Tree) ItemCount() int {
	n := 0
	for _, c := range t.Categories {
		n += len(c.ScorableItems())
	}
	return n
}

func (i Item) title() string {
	if i.Question != "" {
		return i.Question
	}
	return i.SubtopicName
}

func (i Item) gap() float64 {
	return i.MaximumPoints - i.Points
}

var (
	reservedKeys = []string{"totals", "_overall"}
	metadataKeys = []string{"weight", "Category_Name", "maximum_point"}
)

// IsReservedKey reports whether a top-level key holds tree metadata rather than a category.
func IsReservedKey(key string) bool {
	return matchesAny(key, reservedKeys)
}

func isMetadataKey(key string) bool {
	return matchesAny(key, metadataKeys)
}

func matchesAny(key string, set []string) bool {
	for _, k := range set {
		if strings.EqualFold(key, k) {
			return true
		}
	}
	return false
}
