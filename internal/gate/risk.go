package gate

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/randalmurphal/pilot/internal/oracle"
	"github.com/randalmurphal/pilot/internal/plan"
)

// Risk is the classified danger level of a task. The orchestrator treats it
// as opaque input: it only compares against a threshold to decide whether
// the gate sees the task.
type Risk string

const (
	RiskLow    Risk = "low"
	RiskMedium Risk = "medium"
	RiskHigh   Risk = "high"
)

// rank orders risk levels for threshold comparison. Unknown levels rank
// lowest so a bad classification never forces a prompt.
func (r Risk) rank() int {
	switch r {
	case RiskLow:
		return 1
	case RiskMedium:
		return 2
	case RiskHigh:
		return 3
	default:
		return 0
	}
}

// AtLeast reports whether r meets or exceeds the threshold.
func (r Risk) AtLeast(threshold Risk) bool {
	return r.rank() >= threshold.rank()
}

// Classifier assigns a risk level to a task before it reaches the gate.
type Classifier interface {
	Classify(ctx context.Context, t plan.Task) (Risk, error)
}

// Keyword lists for the heuristic classifier. Matching is case-insensitive
// substring over the task title and description.
var (
	highRiskKeywords = []string{
		"delete", "drop table", "drop database", "rm -rf", "truncate",
		"force push", "force-push", "production", "prod ", "deploy",
		"credential", "secret", "api key", "password", "migrate",
		"overwrite", "wipe", "revoke",
	}
	mediumRiskKeywords = []string{
		"install", "uninstall", "upgrade", "modify", "rename", "move",
		"refactor", "schema", "config", "environment", "permission",
		"network", "git push", "commit", "database",
	}
)

// HeuristicClassifier scores tasks by keyword match. It is the default:
// cheap, deterministic, and never needs an oracle call.
type HeuristicClassifier struct{}

func (HeuristicClassifier) Classify(_ context.Context, t plan.Task) (Risk, error) {
	text := strings.ToLower(t.Title + " " + t.Description)
	for _, kw := range highRiskKeywords {
		if strings.Contains(text, kw) {
			return RiskHigh, nil
		}
	}
	for _, kw := range mediumRiskKeywords {
		if strings.Contains(text, kw) {
			return RiskMedium, nil
		}
	}
	return RiskLow, nil
}

// riskAssessment is the oracle classifier's structured reply.
type riskAssessment struct {
	Risk   string `json:"risk" jsonschema:"enum=low,enum=medium,enum=high"`
	Reason string `json:"reason"`
}

const riskSystemPrompt = `You are a risk assessor for an autonomous coding assistant.
Given a task, classify how dangerous it is to execute without human review.

- low: read-only or easily reversible edits within the project
- medium: dependency changes, configuration edits, schema or interface changes
- high: destructive operations, anything touching production, credentials, or data loss potential

Respond with JSON: {"risk": "low"|"medium"|"high", "reason": "..."}`

// OracleClassifier asks the reasoning service to judge risk. It degrades to
// the heuristic on any oracle failure so classification never blocks a run.
type OracleClassifier struct {
	client   oracle.Client
	fallback HeuristicClassifier
	logger   *slog.Logger
}

// NewOracleClassifier builds a classifier backed by the given oracle client.
func NewOracleClassifier(client oracle.Client, logger *slog.Logger) *OracleClassifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &OracleClassifier{client: client, logger: logger}
}

func (c *OracleClassifier) Classify(ctx context.Context, t plan.Task) (Risk, error) {
	prompt := fmt.Sprintf("Task: %s\n\n%s", t.Title, t.Description)
	assessment, err := oracle.ExecuteWithSchema[riskAssessment](ctx, c.client, oracle.Request{
		SystemPrompt: riskSystemPrompt,
		UserPrompt:   prompt,
		SchemaName:   "risk_assessment",
	})
	if err != nil {
		c.logger.Warn("risk classification via oracle failed, using heuristic",
			"task_id", t.ID,
			"error", err)
		return c.fallback.Classify(ctx, t)
	}

	switch Risk(assessment.Risk) {
	case RiskLow, RiskMedium, RiskHigh:
		return Risk(assessment.Risk), nil
	default:
		c.logger.Warn("oracle returned unknown risk level, using heuristic",
			"task_id", t.ID,
			"risk", assessment.Risk)
		return c.fallback.Classify(ctx, t)
	}
}
