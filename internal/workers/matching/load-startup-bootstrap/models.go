// internal/workers/matching/load-startup-bootstrap/models.go
package loadstartupbootstrap

import (
	"readiness-workers/internal/matching"
	"readiness-workers/internal/readiness"
)

type Input struct {
	OrgID string `json:"orgId"`
	Force bool   `json:"force,omitempty"`
}

// Output leaves readiness null for an org that has not been scored yet.
type Output struct {
	OrgID     string                  `json:"orgId"`
	Readiness *readiness.Report       `json:"readiness"`
	Matches   matching.StatusResponse `json:"matches"`
}
