package matching

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	commonhttp "readiness-workers/internal/common/http"
	"readiness-workers/internal/common/logger"
)

// ==========================
// Test Doubles
// ==========================

type readResult struct {
	rows []map[string]interface{}
	err  error
}

// fakeReader returns its results in order and repeats the last one.
type fakeReader struct {
	mu      sync.Mutex
	results []readResult
	calls   int
}

func newFakeReader(results ...readResult) *fakeReader {
	return &fakeReader{results: results}
}

func (f *fakeReader) ReadMatches(ctx context.Context, orgID string) ([]map[string]interface{}, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.calls
	if i >= len(f.results) {
		i = len(f.results) - 1
	}
	f.calls++
	return f.results[i].rows, f.results[i].err
}

func (f *fakeReader) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type mockPipeline struct {
	mock.Mock
}

func (m *mockPipeline) Status(ctx context.Context, orgID string) (*RemoteStatus, error) {
	args := m.Called(ctx, orgID)
	st, _ := args.Get(0).(*RemoteStatus)
	return st, args.Error(1)
}

func (m *mockPipeline) Trigger(ctx context.Context, orgID string, maxMatches int) (*TriggerAck, error) {
	args := m.Called(ctx, orgID, maxMatches)
	ack, _ := args.Get(0).(*TriggerAck)
	return ack, args.Error(1)
}

// hangingPipeline never answers before the caller gives up.
type hangingPipeline struct{}

func (hangingPipeline) Status(ctx context.Context, orgID string) (*RemoteStatus, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (hangingPipeline) Trigger(ctx context.Context, orgID string, maxMatches int) (*TriggerAck, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

type spyDispatcher struct {
	mu    sync.Mutex
	calls []int
}

func (s *spyDispatcher) Dispatch(orgID string, have int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, have)
}

func (s *spyDispatcher) Calls() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int(nil), s.calls...)
}

func matchRows(n int) []map[string]interface{} {
	rows := make([]map[string]interface{}, n)
	for i := range rows {
		rows[i] = map[string]interface{}{
			"org_id":             "org-1",
			"investor_org_id":    "inv-" + string(rune('a'+i)),
			"fit_score_0_to_100": 90 - i,
			"eligible":           "true",
		}
	}
	return rows
}

func newTestOrchestrator(t *testing.T, primary, secondary MatchReader, pipeline PipelineClient, topUp Dispatcher) *Orchestrator {
	cfg := Config{TargetMatches: 10, ReadTimeout: time.Second, StatusTimeout: time.Second, TriggerTimeout: time.Second}
	return NewOrchestrator(cfg, primary, secondary, pipeline, topUp, logger.NewTestLogger(t))
}

// ==========================
// Stored Matches
// ==========================

func TestGetMatchStatus_FewRowsTriggersOneTopUp(t *testing.T) {
	primary := newFakeReader(readResult{rows: matchRows(3)})
	pipeline := &mockPipeline{}
	topUp := &spyDispatcher{}

	o := newTestOrchestrator(t, primary, nil, pipeline, topUp)
	resp := o.GetMatchStatus(context.Background(), "org-1", "")

	assert.Equal(t, StatusReady, resp.Status)
	assert.Len(t, resp.Matches, 3)
	assert.Equal(t, 3, resp.MatchCount)
	assert.Equal(t, 90, resp.Matches[0].FitScore)
	assert.True(t, resp.Matches[0].Eligible)
	assert.Equal(t, []int{3}, topUp.Calls())
	pipeline.AssertNotCalled(t, "Status", mock.Anything, mock.Anything)
	pipeline.AssertNotCalled(t, "Trigger", mock.Anything, mock.Anything, mock.Anything)
}

func TestGetMatchStatus_EnoughRowsNoTopUp(t *testing.T) {
	primary := newFakeReader(readResult{rows: matchRows(10)})
	topUp := &spyDispatcher{}

	o := newTestOrchestrator(t, primary, nil, &mockPipeline{}, topUp)
	resp := o.GetMatchStatus(context.Background(), "org-1", "")

	assert.Equal(t, StatusReady, resp.Status)
	assert.Len(t, resp.Matches, 10)
	assert.Empty(t, topUp.Calls())
}

func TestGetMatchStatus_FallsBackToScopedReader(t *testing.T) {
	primary := newFakeReader(readResult{err: errors.New("permission denied for table startup_investor_matches")})
	secondary := newFakeReader(readResult{rows: matchRows(2)})

	o := newTestOrchestrator(t, primary, secondary, &mockPipeline{}, &spyDispatcher{})
	resp := o.GetMatchStatus(context.Background(), "org-1", "")

	assert.Equal(t, StatusReady, resp.Status)
	assert.Len(t, resp.Matches, 2)
	assert.Equal(t, 1, primary.Calls())
	assert.Equal(t, 1, secondary.Calls())
}

func TestGetMatchStatus_BothReadersFail(t *testing.T) {
	primary := newFakeReader(readResult{err: errors.New("permission denied")})
	secondary := newFakeReader(readResult{err: errors.New("connection reset")})
	pipeline := &mockPipeline{}

	o := newTestOrchestrator(t, primary, secondary, pipeline, &spyDispatcher{})
	resp := o.GetMatchStatus(context.Background(), "org-1", StatusMatching)

	assert.Equal(t, StatusError, resp.Status)
	assert.Contains(t, resp.Error, "could not be read")
	assert.NotNil(t, resp.Matches)
	pipeline.AssertNotCalled(t, "Status", mock.Anything, mock.Anything)
}

// ==========================
// Caller Hint
// ==========================

func TestGetMatchStatus_HintKeptWithoutStatusCall(t *testing.T) {
	primary := newFakeReader(readResult{rows: []map[string]interface{}{}})
	pipeline := &mockPipeline{}

	o := newTestOrchestrator(t, primary, nil, pipeline, &spyDispatcher{})
	resp := o.GetMatchStatus(context.Background(), "org-1", StatusMatching)

	assert.Equal(t, StatusMatching, resp.Status)
	assert.Empty(t, resp.Matches)
	assert.NotNil(t, resp.Matches)
	assert.Equal(t, 2, primary.Calls(), "one read plus one re-read")
	pipeline.AssertNotCalled(t, "Status", mock.Anything, mock.Anything)
	pipeline.AssertNotCalled(t, "Trigger", mock.Anything, mock.Anything, mock.Anything)
}

func TestGetMatchStatus_HintReReadFindsRows(t *testing.T) {
	primary := newFakeReader(
		readResult{rows: nil},
		readResult{rows: matchRows(4)},
	)
	topUp := &spyDispatcher{}

	o := newTestOrchestrator(t, primary, nil, &mockPipeline{}, topUp)
	resp := o.GetMatchStatus(context.Background(), "org-1", StatusGenerating)

	assert.Equal(t, StatusReady, resp.Status)
	assert.Len(t, resp.Matches, 4)
	assert.Equal(t, []int{4}, topUp.Calls())
}

func TestGetMatchStatus_HintReReadFallsBack(t *testing.T) {
	primary := newFakeReader(
		readResult{rows: nil},
		readResult{err: errors.New("statement timeout")},
	)
	secondary := newFakeReader(readResult{rows: matchRows(1)})

	o := newTestOrchestrator(t, primary, secondary, &mockPipeline{}, &spyDispatcher{})
	resp := o.GetMatchStatus(context.Background(), "org-1", StatusMatching)

	assert.Equal(t, StatusReady, resp.Status)
	assert.Equal(t, 1, secondary.Calls())
}

// ==========================
// Remote Pipeline
// ==========================

func TestGetMatchStatus_StatusTimeoutIsNotReachable(t *testing.T) {
	primary := newFakeReader(readResult{rows: nil})
	cfg := Config{TargetMatches: 10, StatusTimeout: 20 * time.Millisecond}
	o := NewOrchestrator(cfg, primary, nil, hangingPipeline{}, &spyDispatcher{}, logger.NewTestLogger(t))

	start := time.Now()
	resp := o.GetMatchStatus(context.Background(), "org-1", "")

	assert.Equal(t, StatusError, resp.Status)
	assert.Contains(t, resp.Error, "not reachable")
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestGetMatchStatus_StatusRejected(t *testing.T) {
	primary := newFakeReader(readResult{rows: nil})
	pipeline := &mockPipeline{}
	pipeline.On("Status", mock.Anything, "org-1").
		Return(nil, &commonhttp.StatusError{StatusCode: 500, Body: "boom"})

	o := newTestOrchestrator(t, primary, nil, pipeline, &spyDispatcher{})
	resp := o.GetMatchStatus(context.Background(), "org-1", "")

	assert.Equal(t, StatusError, resp.Status)
	assert.Contains(t, resp.Error, "status check failed")
	assert.NotEqual(t, StatusMatching, resp.Status)
	pipeline.AssertNotCalled(t, "Trigger", mock.Anything, mock.Anything, mock.Anything)
}

func TestGetMatchStatus_RemoteAlreadyRunning(t *testing.T) {
	for _, remote := range []string{"generating", "matching"} {
		t.Run(remote, func(t *testing.T) {
			pipeline := &mockPipeline{}
			pipeline.On("Status", mock.Anything, "org-1").Return(&RemoteStatus{Status: remote}, nil)

			o := newTestOrchestrator(t, newFakeReader(readResult{}), nil, pipeline, &spyDispatcher{})
			resp := o.GetMatchStatus(context.Background(), "org-1", "")

			assert.Equal(t, Status(remote), resp.Status)
			pipeline.AssertNotCalled(t, "Trigger", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestGetMatchStatus_RemoteReadyWithRows(t *testing.T) {
	pipeline := &mockPipeline{}
	pipeline.On("Status", mock.Anything, "org-1").Return(&RemoteStatus{
		Status:  "ready",
		Matches: matchRows(2),
	}, nil)
	topUp := &spyDispatcher{}

	o := newTestOrchestrator(t, newFakeReader(readResult{}), nil, pipeline, topUp)
	resp := o.GetMatchStatus(context.Background(), "org-1", "")

	assert.Equal(t, StatusReady, resp.Status)
	assert.Len(t, resp.Matches, 2)
	assert.Equal(t, []int{2}, topUp.Calls())
	pipeline.AssertNotCalled(t, "Trigger", mock.Anything, mock.Anything, mock.Anything)
}

func TestGetMatchStatus_IdleTriggersPipeline(t *testing.T) {
	tests := []struct {
		name     string
		remote   string
		ack      *TriggerAck
		expected Status
	}{
		{name: "no profile, ack generating", remote: "no_profile", ack: &TriggerAck{OK: true, Status: "generating"}, expected: StatusGenerating},
		{name: "ready without rows, ack matching", remote: "ready", ack: &TriggerAck{OK: true, Status: "matching"}, expected: StatusMatching},
		{name: "error, ack without status", remote: "error", ack: &TriggerAck{OK: true}, expected: StatusGenerating},
		{name: "empty status", remote: "", ack: &TriggerAck{OK: true, Status: "generating", Message: "started"}, expected: StatusGenerating},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pipeline := &mockPipeline{}
			pipeline.On("Status", mock.Anything, "org-1").Return(&RemoteStatus{Status: tt.remote}, nil)
			pipeline.On("Trigger", mock.Anything, "org-1", 10).Return(tt.ack, nil).Once()

			o := newTestOrchestrator(t, newFakeReader(readResult{}), nil, pipeline, &spyDispatcher{})
			resp := o.GetMatchStatus(context.Background(), "org-1", "")

			assert.Equal(t, tt.expected, resp.Status)
			assert.Empty(t, resp.Error)
			assert.Equal(t, tt.ack.Message, resp.Message)
			pipeline.AssertExpectations(t)
		})
	}
}

func TestGetMatchStatus_TriggerNotAcknowledged(t *testing.T) {
	tests := []struct {
		name string
		ack  *TriggerAck
		err  error
	}{
		{name: "ok false", ack: &TriggerAck{OK: false, Message: "queue full"}},
		{name: "transport error", err: errors.New("connection refused")},
		{name: "nil ack", ack: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pipeline := &mockPipeline{}
			pipeline.On("Status", mock.Anything, "org-1").Return(&RemoteStatus{Status: "no_profile"}, nil)
			pipeline.On("Trigger", mock.Anything, "org-1", 10).Return(tt.ack, tt.err).Once()

			o := newTestOrchestrator(t, newFakeReader(readResult{}), nil, pipeline, &spyDispatcher{})
			resp := o.GetMatchStatus(context.Background(), "org-1", "")

			assert.Equal(t, StatusError, resp.Status)
			assert.Contains(t, resp.Error, "pipeline may be busy or misconfigured")
			pipeline.AssertNumberOfCalls(t, "Trigger", 1)
		})
	}
}

func TestGetMatchStatus_AckReadyReadsAgain(t *testing.T) {
	primary := newFakeReader(
		readResult{rows: nil},
		readResult{rows: matchRows(10)},
	)
	pipeline := &mockPipeline{}
	pipeline.On("Status", mock.Anything, "org-1").Return(&RemoteStatus{Status: "no_profile"}, nil)
	pipeline.On("Trigger", mock.Anything, "org-1", 10).
		Return(&TriggerAck{OK: true, Status: "ready", Message: "Already have 10 matches"}, nil)

	o := newTestOrchestrator(t, primary, nil, pipeline, &spyDispatcher{})
	resp := o.GetMatchStatus(context.Background(), "org-1", "")

	assert.Equal(t, StatusReady, resp.Status)
	assert.Len(t, resp.Matches, 10)
	assert.Equal(t, "Already have 10 matches", resp.Message)
	assert.Equal(t, 2, primary.Calls())
}

func TestGetMatchStatus_AckReadyWithFewRowsDoesNotTopUp(t *testing.T) {
	primary := newFakeReader(
		readResult{rows: nil},
		readResult{rows: matchRows(3)},
	)
	pipeline := &mockPipeline{}
	pipeline.On("Status", mock.Anything, "org-1").Return(&RemoteStatus{Status: "no_profile"}, nil)
	pipeline.On("Trigger", mock.Anything, "org-1", 10).
		Return(&TriggerAck{OK: true, Status: "ready"}, nil)
	topUp := &spyDispatcher{}

	o := newTestOrchestrator(t, primary, nil, pipeline, topUp)
	resp := o.GetMatchStatus(context.Background(), "org-1", "")

	assert.Equal(t, StatusReady, resp.Status)
	assert.Len(t, resp.Matches, 3)
	pipeline.AssertNumberOfCalls(t, "Trigger", 1)
	assert.Empty(t, topUp.Calls(), "one trigger per request")
}

func TestGetMatchStatus_AckReadyWithoutReadableRowsKeepsPolling(t *testing.T) {
	tests := []struct {
		name   string
		reread readResult
	}{
		{name: "empty re-read", reread: readResult{rows: []map[string]interface{}{}}},
		{name: "failed re-read", reread: readResult{err: errors.New("connection reset")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			primary := newFakeReader(readResult{rows: nil}, tt.reread)
			pipeline := &mockPipeline{}
			pipeline.On("Status", mock.Anything, "org-1").Return(&RemoteStatus{Status: "no_profile"}, nil)
			pipeline.On("Trigger", mock.Anything, "org-1", 10).
				Return(&TriggerAck{OK: true, Status: "ready", Message: "Already have 10 matches"}, nil)
			topUp := &spyDispatcher{}

			o := newTestOrchestrator(t, primary, nil, pipeline, topUp)
			resp := o.GetMatchStatus(context.Background(), "org-1", "")

			assert.Equal(t, StatusMatching, resp.Status)
			assert.Empty(t, resp.Matches)
			assert.Empty(t, resp.Error)
			assert.Equal(t, "Already have 10 matches", resp.Message)
			assert.Empty(t, topUp.Calls())
		})
	}
}
