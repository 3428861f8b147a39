package gate

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/pilot/internal/oracle"
	"github.com/randalmurphal/pilot/internal/plan"
)

func TestAutoApprover(t *testing.T) {
	a := AutoApprover{}

	d, err := a.ApprovePlan(context.Background(), &plan.Plan{}, "do things")
	require.NoError(t, err)
	assert.True(t, d.Approved())

	d, err = a.ApproveTask(context.Background(), plan.Task{ID: "t1"}, RiskHigh, "")
	require.NoError(t, err)
	assert.True(t, d.Approved())
}

func TestRiskAtLeast(t *testing.T) {
	assert.True(t, RiskHigh.AtLeast(RiskMedium))
	assert.True(t, RiskMedium.AtLeast(RiskMedium))
	assert.False(t, RiskLow.AtLeast(RiskMedium))
	assert.True(t, RiskLow.AtLeast(RiskLow))
	// Unknown levels never meet a real threshold.
	assert.False(t, Risk("weird").AtLeast(RiskLow))
}

func TestHeuristicClassifier(t *testing.T) {
	c := HeuristicClassifier{}
	cases := []struct {
		name string
		task plan.Task
		want Risk
	}{
		{"read only", plan.Task{Title: "Read the README", Description: "Summarize the project"}, RiskLow},
		{"destructive", plan.Task{Title: "Clean up", Description: "Delete stale build artifacts"}, RiskHigh},
		{"production", plan.Task{Title: "Deploy service", Description: "Ship to users"}, RiskHigh},
		{"secret handling", plan.Task{Title: "Rotate the API key", Description: ""}, RiskHigh},
		{"dependency change", plan.Task{Title: "Install pytest", Description: "Add test dependency"}, RiskMedium},
		{"config edit", plan.Task{Title: "Update config", Description: "Adjust timeout settings"}, RiskMedium},
		{"case insensitive", plan.Task{Title: "DROP TABLE users", Description: ""}, RiskHigh},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := c.Classify(context.Background(), tc.task)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

type stubOracle struct {
	response string
	err      error
}

func (s *stubOracle) Complete(_ context.Context, _ oracle.Request) (string, error) {
	return s.response, s.err
}

func (s *stubOracle) Model() string { return "stub" }

func TestOracleClassifier(t *testing.T) {
	c := NewOracleClassifier(&stubOracle{response: `{"risk":"high","reason":"touches credentials"}`}, nil)
	got, err := c.Classify(context.Background(), plan.Task{ID: "t1", Title: "Innocuous title"})
	require.NoError(t, err)
	assert.Equal(t, RiskHigh, got)
}

func TestOracleClassifier_FallsBackOnError(t *testing.T) {
	c := NewOracleClassifier(&stubOracle{err: errors.New("unavailable")}, nil)
	got, err := c.Classify(context.Background(), plan.Task{ID: "t1", Title: "Delete old branches"})
	require.NoError(t, err)
	assert.Equal(t, RiskHigh, got, "fallback heuristic should classify the task")
}

func TestOracleClassifier_FallsBackOnUnknownLevel(t *testing.T) {
	c := NewOracleClassifier(&stubOracle{response: `{"risk":"catastrophic","reason":"?"}`}, nil)
	got, err := c.Classify(context.Background(), plan.Task{ID: "t1", Title: "Read docs"})
	require.NoError(t, err)
	assert.Equal(t, RiskLow, got)
}
