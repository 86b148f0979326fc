// internal/workers/readiness/score-readiness/schema.go
package scorereadiness

import "readiness-workers/internal/common/validation"

var inputSchema = validation.MustCompile(`{
  "type": "object",
  "properties": {
    "orgId": {"type": "string", "minLength": 1, "maxLength": 100},
    "scoredRubric": {"type": ["object", "string"]},
    "maxGaps": {"type": "integer", "minimum": 0, "maximum": 20}
  },
  "anyOf": [
    {"required": ["orgId"]},
    {"required": ["scoredRubric"]}
  ]
}`)
