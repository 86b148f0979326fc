package registry

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testActivity(id string) Activity {
	return Activity{
		ID:                   id,
		DisplayName:          "Score Readiness",
		Category:             "readiness",
		TaskType:             id,
		ImplementationStatus: "completed",
		Timeout:              "15s",
	}
}

func TestRegistry_SaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "activity-registry.json")

	reg := New()
	require.NoError(t, reg.Add(testActivity("score-readiness")))
	require.NoError(t, reg.Save(path))

	loaded, err := LoadRegistry(path)
	require.NoError(t, err)
	require.Len(t, loaded.Activities, 1)

	a, ok := loaded.Find("score-readiness")
	require.True(t, ok)
	assert.Equal(t, "readiness", a.Category)
}

func TestRegistry_AddDuplicate(t *testing.T) {
	reg := New()
	require.NoError(t, reg.Add(testActivity("score-readiness")))
	err := reg.Add(testActivity("score-readiness"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")
}

func TestRegistry_Update(t *testing.T) {
	reg := New()
	require.NoError(t, reg.Add(testActivity("get-match-status")))

	require.NoError(t, reg.Update("get-match-status", "retries", "3"))
	require.NoError(t, reg.Update("get-match-status", "status", "verified"))
	require.NoError(t, reg.Update("get-match-status", "timeout", "30s"))

	a, _ := reg.Find("get-match-status")
	assert.Equal(t, 3, a.Retries)
	assert.Equal(t, "verified", a.ImplementationStatus)
	assert.Equal(t, "30s", a.Timeout)

	tests := []struct {
		name  string
		id    string
		field string
		value string
	}{
		{"unknown id", "nope", "status", "completed"},
		{"unknown field", "get-match-status", "color", "red"},
		{"bad retries", "get-match-status", "retries", "three"},
		{"bad status", "get-match-status", "status", "shipped"},
		{"bad timeout", "get-match-status", "timeout", "soon"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, reg.Update(tt.id, tt.field, tt.value))
		})
	}
}

func TestRegistry_Validate(t *testing.T) {
	assert.Error(t, New().Validate())

	reg := New()
	require.NoError(t, reg.Add(testActivity("score-readiness")))
	assert.NoError(t, reg.Validate())

	dupTask := testActivity("other")
	dupTask.TaskType = "score-readiness"
	reg.Activities = append(reg.Activities, dupTask)
	err := reg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate task type")

	reg = New()
	missing := testActivity("x")
	missing.Category = ""
	reg.Activities = append(reg.Activities, missing)
	assert.Error(t, reg.Validate())
}

func TestRegistry_Unregistered(t *testing.T) {
	reg := New()
	require.NoError(t, reg.Add(testActivity("score-readiness")))

	assert.Equal(t, []string{"get-match-status"}, reg.Unregistered([]string{"score-readiness", "get-match-status"}))
	assert.Empty(t, reg.Unregistered([]string{"score-readiness"}))
}

func TestRegistry_ShippedFileIsValid(t *testing.T) {
	reg, err := LoadRegistry(filepath.Join("..", "..", "configs", "activity-registry.json"))
	require.NoError(t, err)
	require.NoError(t, reg.Validate())

	assert.Empty(t, reg.Unregistered([]string{
		"score-readiness",
		"project-readiness-score",
		"get-match-status",
		"load-startup-bootstrap",
	}))
}
