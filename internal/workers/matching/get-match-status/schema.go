// internal/workers/matching/get-match-status/schema.go
package getmatchstatus

import "readiness-workers/internal/common/validation"

var inputSchema = validation.MustCompile(`{
  "type": "object",
  "required": ["orgId"],
  "properties": {
    "orgId": {"type": "string", "minLength": 1, "maxLength": 100},
    "knownStatus": {"enum": ["", "no_profile", "generating", "matching", "ready", "error"]}
  }
}`)
