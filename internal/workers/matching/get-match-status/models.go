// internal/workers/matching/get-match-status/models.go
package getmatchstatus

import "readiness-workers/internal/matching"

type Input struct {
	OrgID       string          `json:"orgId"`
	KnownStatus matching.Status `json:"knownStatus,omitempty"`
}

type Output struct {
	OrgID string `json:"orgId"`
	matching.StatusResponse
}
