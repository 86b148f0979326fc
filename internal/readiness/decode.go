package readiness

import (
	stderrors "errors"
	"math"
	"strings"

	"github.com/tidwall/gjson"
)

var (
	ErrInvalidJSON = stderrors.New("scored rubric is not valid JSON")
	ErrNotObject   = stderrors.New("scored rubric is not a JSON object")
)

// DecodeTree reads a scored rubric document. Category, subtopic and option
// order follow the document. Only syntactically broken input or a non-object
// document is an error; structural oddities are defaulted.
func DecodeTree(data []byte) (Tree, error) {
	if !gjson.ValidBytes(data) {
		return Tree{}, ErrInvalidJSON
	}
	root := gjson.ParseBytes(data)
	// Snapshots stored as text come back as a JSON string holding the object.
	if root.Type == gjson.String && gjson.Valid(root.Str) {
		root = gjson.Parse(root.Str)
	}
	if !root.IsObject() {
		return Tree{}, ErrNotObject
	}
	return treeFrom(root), nil
}

func treeFrom(root gjson.Result) Tree {
	var tree Tree
	index := map[string]int{}

	root.ForEach(func(k, v gjson.Result) bool {
		key := k.String()
		if IsReservedKey(key) || !v.IsObject() {
			return true
		}
		block := categoryFrom(key, v)
		// Duplicate keys keep the first position and the last value.
		if i, ok := index[key]; ok {
			tree.Categories[i] = block
			return true
		}
		index[key] = len(tree.Categories)
		tree.Categories = append(tree.Categories, block)
		return true
	})
	return tree
}

func categoryFrom(key string, v gjson.Result) CategoryBlock {
	block := CategoryBlock{Key: key}

	v.ForEach(func(k, member gjson.Result) bool {
		name := k.String()
		switch {
		case isMetadataKey(name):
			switch strings.ToLower(name) {
			case "category_name":
				block.Name = member.String()
			case "weight":
				block.Weight = numberOf(member)
			case "maximum_point":
				block.MaximumPoint = numberOf(member)
			}
		case member.IsArray():
			block.Subtopics = append(block.Subtopics, subtopicFrom(name, member))
		}
		return true
	})
	return block
}

func subtopicFrom(key string, list gjson.Result) Subtopic {
	sub := Subtopic{Key: key}
	for _, element := range list.Array() {
		if !element.IsObject() {
			continue
		}
		item := itemFrom(element)
		if item.SubtopicName == "" {
			item.SubtopicName = key
		}
		sub.Items = append(sub.Items, item)
	}
	return sub
}

func itemFrom(v gjson.Result) Item {
	fields := map[string]gjson.Result{}
	v.ForEach(func(k, value gjson.Result) bool {
		fields[strings.ToLower(k.String())] = value
		return true
	})

	item := Item{
		Question:  fields["question"].String(),
		Answer:    fields["answer"].String(),
		Points:    numberOf(fields["points"]),
		Reasoning: fields["reasoning"].String(),
		Value:     fields["value"].String(),
	}

	if name, ok := fields["subcategory_name"]; ok {
		item.SubtopicName = name.String()
	} else if name, ok := fields["subtopic_name"]; ok {
		item.SubtopicName = name.String()
	}

	if rv, ok := fields["required_value"]; ok {
		item.RequiredValue = truthy(rv)
	}

	opts, hasOptions := fields["options"]
	item.HasOptions = hasOptions
	if hasOptions && opts.IsObject() {
		opts.ForEach(func(label, points gjson.Result) bool {
			item.Options = append(item.Options, Option{Label: label.String(), Points: numberOf(points)})
			return true
		})
	}

	if maxPoints, ok := fields["maximum_points"]; ok {
		item.MaximumPoints = numberOf(maxPoints)
	} else {
		item.MaximumPoints = bestOption(item.Options)
	}
	return item
}

// numberOf coerces numbers and numeric strings; anything else is 0.
func numberOf(v gjson.Result) float64 {
	switch v.Type {
	case gjson.Number, gjson.String:
		f := v.Float()
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return 0
		}
		return f
	default:
		return 0
	}
}

func truthy(v gjson.Result) bool {
	switch v.Type {
	case gjson.True:
		return true
	case gjson.Number:
		return v.Float() != 0
	case gjson.String:
		return strings.TrimSpace(v.Str) != ""
	case gjson.JSON:
		return true
	default:
		return false
	}
}

func bestOption(options []Option) float64 {
	best := 0.0
	for _, o := range options {
		if o.Points > best {
			best = o.Points
		}
	}
	return best
}
