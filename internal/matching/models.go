package matching

import (
	"context"
)

// Status is what callers see for an org's investor matches.
type Status string

const (
	StatusNoProfile  Status = "no_profile"
	StatusGenerating Status = "generating"
	StatusMatching   Status = "matching"
	StatusReady      Status = "ready"
	StatusError      Status = "error"
)

// Running reports whether the remote pipeline is still producing matches.
func (s Status) Running() bool {
	return s == StatusGenerating || s == StatusMatching
}

// MatchRecord is one normalized startup/investor match row.
type MatchRecord struct {
	OrgID              string      `json:"org_id"`
	InvestorOrgID      string      `json:"investor_org_id"`
	FitScore           int         `json:"fit_score"`
	FitScoreIfEligible int         `json:"fit_score_if_eligible"`
	Eligible           bool        `json:"eligible"`
	InvestorProfile    interface{} `json:"investor_profile"`
	CategoryBreakdown  interface{} `json:"category_breakdown"`
	GateFailReasons    []string    `json:"gate_fail_reasons"`
}

// StatusResponse is the single answer GetMatchStatus gives, whatever failed underneath.
type StatusResponse struct {
	Status     Status        `json:"status"`
	Matches    []MatchRecord `json:"matches"`
	MatchCount int           `json:"match_count"`
	Message    string        `json:"message,omitempty"`
	Error      string        `json:"error,omitempty"`
}

// RemoteStatus is the pipeline's own view of an org.
type RemoteStatus struct {
	Status     string                   `json:"status"`
	Matches    []map[string]interface{} `json:"matches"`
	MatchCount int                      `json:"match_count"`
	Error      string                   `json:"error,omitempty"`
}

// TriggerAck is the pipeline's reply to a run request.
type TriggerAck struct {
	OK         bool   `json:"ok"`
	Status     string `json:"status"`
	Message    string `json:"message"`
	MatchCount int    `json:"match_count"`
}

// MatchReader reads raw match rows for an org.
type MatchReader interface {
	ReadMatches(ctx context.Context, orgID string) ([]map[string]interface{}, error)
}

type PipelineClient interface {
	Status(ctx context.Context, orgID string) (*RemoteStatus, error)
	Trigger(ctx context.Context, orgID string, maxMatches int) (*TriggerAck, error)
}

// Dispatcher asks for more matches in the background. It never blocks the
// caller and reports nothing back.
type Dispatcher interface {
	Dispatch(orgID string, have int)
}
