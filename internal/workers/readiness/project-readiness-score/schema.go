// internal/workers/readiness/project-readiness-score/schema.go
package projectreadinessscore

import "readiness-workers/internal/common/validation"

var inputSchema = validation.MustCompile(`{
  "type": "object",
  "required": ["currentScore"],
  "properties": {
    "currentScore": {"type": "number", "minimum": 0, "maximum": 100},
    "recommendation": {
      "type": "object",
      "required": ["title"],
      "properties": {
        "title": {"type": "string", "minLength": 1},
        "severity": {"enum": ["high", "medium", "low", ""]},
        "impactPoints": {"type": "number", "minimum": 0}
      }
    },
    "gaps": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["title", "severity"],
        "properties": {
          "title": {"type": "string"},
          "severity": {"enum": ["high", "medium", "low"]}
        }
      }
    }
  },
  "anyOf": [
    {"required": ["recommendation"]},
    {"required": ["gaps"], "properties": {"gaps": {"minItems": 1}}}
  ]
}`)
