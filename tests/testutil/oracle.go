// Package testutil provides shared test doubles for integration tests.
package testutil

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/randalmurphal/pilot/internal/events"
	"github.com/randalmurphal/pilot/internal/oracle"
)

// ScriptedOracle replays canned responses or errors in call order and
// records every prompt it receives. Safe for concurrent use.
type ScriptedOracle struct {
	mu        sync.Mutex
	responses []string
	errs      []error
	prompts   []string
	calls     int

	// hangAt, when >= 0, makes that call (0-based) block until the
	// caller's context is cancelled.
	hangAt int
}

// NewScriptedOracle creates an oracle that returns the given responses in
// order and fails once they run out.
func NewScriptedOracle(responses ...string) *ScriptedOracle {
	return &ScriptedOracle{responses: responses, hangAt: -1}
}

// FailAt makes call i (0-based) return err instead of its scripted response.
func (s *ScriptedOracle) FailAt(i int, err error) *ScriptedOracle {
	s.mu.Lock()
	defer s.mu.Unlock()
	for len(s.errs) <= i {
		s.errs = append(s.errs, nil)
	}
	s.errs[i] = err
	return s
}

// HangAt makes call i (0-based) block until the context is cancelled,
// then return the context's error.
func (s *ScriptedOracle) HangAt(i int) *ScriptedOracle {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hangAt = i
	return s
}

// Complete implements oracle.Client.
func (s *ScriptedOracle) Complete(ctx context.Context, req oracle.Request) (string, error) {
	if ctx.Err() != nil {
		return "", ctx.Err()
	}

	s.mu.Lock()
	i := s.calls
	s.calls++
	s.prompts = append(s.prompts, req.UserPrompt)
	hang := s.hangAt == i
	var scriptedErr error
	if i < len(s.errs) {
		scriptedErr = s.errs[i]
	}
	var resp string
	if i < len(s.responses) {
		resp = s.responses[i]
	}
	outOfScript := i >= len(s.responses)
	s.mu.Unlock()

	if hang {
		<-ctx.Done()
		return "", ctx.Err()
	}
	if scriptedErr != nil {
		return "", scriptedErr
	}
	if outOfScript {
		return "", errors.New("scripted oracle: out of responses")
	}
	return resp, nil
}

// Model implements oracle.Client.
func (s *ScriptedOracle) Model() string { return "scripted" }

// Calls returns how many times Complete was invoked.
func (s *ScriptedOracle) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// Prompt returns the user prompt of call i, or "" if that call never happened.
func (s *ScriptedOracle) Prompt(i int) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i < 0 || i >= len(s.prompts) {
		return ""
	}
	return s.prompts[i]
}

// Drain reads events from ch until it goes quiet for 100ms or closes.
func Drain(ch <-chan events.Event) []events.Event {
	var out []events.Event
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, ev)
		case <-time.After(100 * time.Millisecond):
			return out
		}
	}
}

// Types projects a slice of events onto their type tags.
func Types(evs []events.Event) []events.EventType {
	types := make([]events.EventType, len(evs))
	for i, ev := range evs {
		types[i] = ev.Type
	}
	return types
}

// Filter returns the events of the given type, in order.
func Filter(evs []events.Event, typ events.EventType) []events.Event {
	var out []events.Event
	for _, ev := range evs {
		if ev.Type == typ {
			out = append(out, ev)
		}
	}
	return out
}
