package matching

import (
	"encoding/json"
	"math"
	"strings"

	"github.com/spf13/cast"
)

// NormalizeRows normalizes every row, keeping order.
func NormalizeRows(rows []map[string]interface{}) []MatchRecord {
	out := make([]MatchRecord, 0, len(rows))
	for _, row := range rows {
		out = append(out, NormalizeRow(row))
	}
	return out
}

// NormalizeRow coerces a raw match row as written by the pipeline. Scores may
// arrive as numbers, numeric strings or JSON-encoded strings; JSON columns may
// be encoded once or twice.
func NormalizeRow(row map[string]interface{}) MatchRecord {
	return MatchRecord{
		OrgID:              cast.ToString(field(row, "org_id")),
		InvestorOrgID:      cast.ToString(field(row, "investor_org_id", "investor_id")),
		FitScore:           clampScore(coerceNumber(field(row, "fit_score_0_to_100", "fit_score"))),
		FitScoreIfEligible: clampScore(coerceNumber(field(row, "fit_score_if_eligible_0_to_100", "fit_score_if_eligible"))),
		Eligible:           coerceBool(field(row, "eligible")),
		InvestorProfile:    unwrapJSON(field(row, "investor_profile")),
		CategoryBreakdown:  unwrapJSON(field(row, "category_breakdown")),
		GateFailReasons:    gateReasons(field(row, "gate_fail_reasons")),
	}
}

// field returns the first non-nil value among the aliases.
func field(row map[string]interface{}, keys ...string) interface{} {
	for _, k := range keys {
		if v, ok := row[k]; ok && v != nil {
			return v
		}
	}
	return nil
}

func coerceNumber(v interface{}) float64 {
	// Two rounds of JSON unwrapping at most.
	for depth := 0; depth < 3; depth++ {
		switch t := v.(type) {
		case nil:
			return 0
		case []byte:
			v = string(t)
		case string:
			s := strings.TrimSpace(t)
			if f, err := cast.ToFloat64E(s); err == nil {
				return f
			}
			var inner interface{}
			if err := json.Unmarshal([]byte(s), &inner); err != nil {
				return 0
			}
			v = inner
		default:
			f, err := cast.ToFloat64E(t)
			if err != nil {
				return 0
			}
			return f
		}
	}
	return 0
}

func clampScore(f float64) int {
	if math.IsNaN(f) {
		return 0
	}
	r := math.Round(f)
	switch {
	case r < 0:
		return 0
	case r > 100:
		return 100
	}
	return int(r)
}

func coerceBool(v interface{}) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case []byte:
		return coerceBool(string(t))
	case string:
		switch strings.ToLower(strings.Trim(strings.TrimSpace(t), `"`)) {
		case "true", "yes", "1", "y", "t":
			return true
		}
		return false
	default:
		f, err := cast.ToFloat64E(t)
		return err == nil && f != 0
	}
}

// unwrapJSON decodes a value that may be a JSON string, possibly encoded
// twice. Empty or undecodable values become an empty object.
func unwrapJSON(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}, []interface{}:
		return t
	case []byte:
		return unwrapJSON(string(t))
	case string:
		var parsed interface{}
		if err := json.Unmarshal([]byte(t), &parsed); err != nil {
			return map[string]interface{}{}
		}
		if s, ok := parsed.(string); ok {
			var inner interface{}
			if err := json.Unmarshal([]byte(s), &inner); err == nil {
				parsed = inner
			}
		}
		if isEmpty(parsed) {
			return map[string]interface{}{}
		}
		return parsed
	default:
		if isEmpty(t) {
			return map[string]interface{}{}
		}
		return t
	}
}

func isEmpty(v interface{}) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	case bool:
		return !t
	case map[string]interface{}:
		return len(t) == 0
	case []interface{}:
		return len(t) == 0
	case float64:
		return t == 0
	default:
		return false
	}
}

func gateReasons(v interface{}) []string {
	reasons := []string{}
	switch t := v.(type) {
	case nil:
	case []string:
		for _, s := range t {
			if s = strings.TrimSpace(s); s != "" {
				reasons = append(reasons, s)
			}
		}
	case []interface{}:
		for _, item := range t {
			if s := strings.TrimSpace(cast.ToString(item)); s != "" {
				reasons = append(reasons, s)
			}
		}
	case []byte:
		return gateReasons(string(t))
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return reasons
		}
		var parsed interface{}
		if err := json.Unmarshal([]byte(s), &parsed); err == nil {
			if inner, ok := parsed.(string); !ok || inner != s {
				return gateReasons(parsed)
			}
		}
		reasons = append(reasons, s)
	default:
		if s := cast.ToString(t); s != "" {
			reasons = append(reasons, s)
		}
	}
	return reasons
}
