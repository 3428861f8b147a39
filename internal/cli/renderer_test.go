package cli

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/randalmurphal/pilot/internal/events"
	"github.com/randalmurphal/pilot/internal/plan"
)

func TestRenderer_Narrative(t *testing.T) {
	var buf bytes.Buffer
	r := newRenderer(&buf)

	p := &plan.Plan{Tasks: []plan.Task{
		{ID: "t1", Title: "Read docs"},
		{ID: "t2", Title: "Summarize"},
	}}
	evs := []events.Event{
		events.NewEvent(events.EventPlanningStarted, "s", events.PlanningStartedData{Request: "go"}),
		events.NewEvent(events.EventPlanCreated, "s", events.PlanCreatedData{Plan: p, TaskCount: 2}),
		events.NewEvent(events.EventTaskStarted, "s", events.TaskStartedData{TaskID: "t1", Title: "Read docs", Step: 1}),
		events.NewEvent(events.EventDebugStarted, "s", events.DebugStartedData{TaskID: "t1", Attempt: 1, Reason: "syntax error"}),
		events.NewEvent(events.EventTaskCompleted, "s", events.TaskCompletedData{TaskID: "t1", Result: "done\nextra detail"}),
		events.NewEvent(events.EventTaskFailed, "s", events.TaskFailedData{TaskID: "t2", Reason: "budget exhausted"}),
		events.NewEvent(events.EventExecutionCompleted, "s", events.ExecutionCompletedData{
			TotalTasks: 2, CompletedTasks: 1, FailedTasks: 1,
			TotalSteps: 4, Duration: 42 * time.Second, Success: false,
		}),
	}
	for _, ev := range evs {
		r.renderOne(ev)
	}

	out := buf.String()
	for _, want := range []string{
		"planning...",
		"plan ready: 2 task(s)",
		"Read docs",
		"debug attempt 1: syntax error",
		"✓ done",
		"budget exhausted",
		"stopped: 1/2 tasks completed, 1 failed",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	// Multi-line results collapse to the first line.
	if strings.Contains(out, "extra detail") {
		t.Error("result should be truncated to its first line")
	}
	// Plain writers get no ANSI codes.
	if strings.Contains(out, "\033[") {
		t.Error("non-terminal output should be colorless")
	}
}

func TestRenderer_ClosedChannelEnds(t *testing.T) {
	var buf bytes.Buffer
	r := newRenderer(&buf)

	ch := make(chan events.Event, 1)
	ch <- events.NewEvent(events.EventExecutionFailed, "s", events.ExecutionFailedData{Reason: "cancelled"})
	close(ch)

	done := make(chan struct{})
	go func() {
		r.Render(ch)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Render did not return after channel close")
	}
	if !strings.Contains(buf.String(), "aborted: cancelled") {
		t.Errorf("output = %q", buf.String())
	}
}
