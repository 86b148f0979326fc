// internal/workers/readiness/project-readiness-score/handler_test.go
package projectreadinessscore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"readiness-workers/internal/common/errors"
	"readiness-workers/internal/common/logger"
	"readiness-workers/internal/readiness"
)

func floatPtr(f float64) *float64 { return &f }

func TestHandler_Execute(t *testing.T) {
	tests := []struct {
		name          string
		input         *Input
		expectedScore float64
		expectedTitle string
	}{
		{
			name: "recommendation with explicit impact",
			input: &Input{
				CurrentScore:   72.4,
				Recommendation: &Recommendation{Title: "Close a pilot", ImpactPoints: floatPtr(4)},
			},
			expectedScore: 76.4,
			expectedTitle: "Close a pilot",
		},
		{
			name: "recommendation falls back to severity",
			input: &Input{
				CurrentScore:   80,
				Recommendation: &Recommendation{Title: "Assign IP", Severity: readiness.SeverityHigh},
			},
			expectedScore: 85,
			expectedTitle: "Assign IP",
		},
		{
			name: "best gap wins",
			input: &Input{
				CurrentScore: 50,
				Gaps: []readiness.GapItem{
					{Title: "Hire CTO", Severity: readiness.SeverityLow, ImpactPoints: 9},
					{Title: "Revenue model", Severity: readiness.SeverityMedium, ImpactPoints: 2},
				},
			},
			expectedScore: 53,
			expectedTitle: "Revenue model",
		},
		{
			name: "clamped at 100",
			input: &Input{
				CurrentScore: 98,
				Gaps:         []readiness.GapItem{{Title: "Data room", Severity: readiness.SeverityHigh}},
			},
			expectedScore: 100,
			expectedTitle: "Data room",
		},
	}

	h := NewHandler(LoadConfig(), nil, logger.NewTestLogger(t))
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			output, err := h.Execute(context.Background(), tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expectedScore, output.ProjectedScore)
			assert.Equal(t, tt.expectedTitle, output.Selected.Title)
			assert.GreaterOrEqual(t, output.Delta, 0.0)
		})
	}
}

func TestHandler_Execute_InvalidInput(t *testing.T) {
	h := NewHandler(LoadConfig(), nil, logger.NewTestLogger(t))

	for _, input := range []*Input{nil, {CurrentScore: 40}, {CurrentScore: 140, Gaps: []readiness.GapItem{{Title: "x"}}}} {
		_, err := h.Execute(context.Background(), input)
		require.Error(t, err)
		stdErr, ok := errors.AsStandardError(err)
		require.True(t, ok)
		assert.Equal(t, errors.ErrCodeInvalidInput, stdErr.Code)
	}
}

func TestInputSchema(t *testing.T) {
	valid := []string{
		`{"currentScore": 40, "recommendation": {"title": "Pitch deck", "impactPoints": 2}}`,
		`{"currentScore": 0, "gaps": [{"title": "Pitch deck", "severity": "low", "impact_points": 3}]}`,
	}
	for _, doc := range valid {
		assert.True(t, inputSchema.ValidateJSON([]byte(doc)).Valid, doc)
	}

	invalid := []string{
		`{"gaps": [{"title": "a", "severity": "high"}]}`,
		`{"currentScore": 40}`,
		`{"currentScore": 40, "gaps": []}`,
		`{"currentScore": 101, "recommendation": {"title": "a"}}`,
		`{"currentScore": 40, "recommendation": {"title": "a", "impactPoints": -1}}`,
		`{"currentScore": 40, "gaps": [{"title": "a", "severity": "urgent"}]}`,
	}
	for _, doc := range invalid {
		assert.False(t, inputSchema.ValidateJSON([]byte(doc)).Valid, doc)
	}
}
