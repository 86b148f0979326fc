// internal/workers/matching/load-startup-bootstrap/schema.go
package loadstartupbootstrap

import "readiness-workers/internal/common/validation"

var inputSchema = validation.MustCompile(`{
  "type": "object",
  "required": ["orgId"],
  "properties": {
    "orgId": {"type": "string", "minLength": 1, "maxLength": 100},
    "force": {"type": "boolean"}
  }
}`)
