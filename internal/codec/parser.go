package codec

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/randalmurphal/pilot/internal/errors"
	"github.com/randalmurphal/pilot/internal/util"
)

// excerptLen bounds the diagnostic excerpt attached to parse errors.
const excerptLen = 200

// ParseVerdict extracts a structured verdict from raw oracle output.
// The parse is deliberately liberal about the wrapping — models drift
// between bare JSON, fenced JSON, and JSON embedded in prose — but strict
// about the contract once a JSON object is in hand.
func ParseVerdict(text string) (*Verdict, error) {
	raw := ExtractJSON(StripFences(text))
	if raw == "" {
		return nil, errors.ErrVerdictMalformed(util.TruncateHead(strings.TrimSpace(text), excerptLen))
	}

	if !gjson.Valid(raw) {
		return nil, errors.ErrVerdictMalformed(util.TruncateHead(raw, excerptLen))
	}

	var v Verdict
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return nil, errors.ErrVerdictSchema(schemaDiagnosis(raw, err), util.TruncateHead(raw, excerptLen)).WithCause(err)
	}

	if err := validateVerdict(&v, raw); err != nil {
		return nil, err
	}

	return &v, nil
}

// validateVerdict enforces the wire contract on a decoded verdict.
func validateVerdict(v *Verdict, raw string) error {
	excerpt := util.TruncateHead(raw, excerptLen)

	if !validStatuses[v.Status] {
		return errors.ErrVerdictSchema(fmt.Sprintf("unknown status %q", v.Status), excerpt)
	}
	if !gjson.Get(raw, "result").Exists() {
		return errors.ErrVerdictSchema("missing required field: result", excerpt)
	}
	if !gjson.Get(raw, "log_entries").Exists() {
		return errors.ErrVerdictSchema("missing required field: log_entries", excerpt)
	}

	for i, entry := range v.LogEntries {
		if !validLevels[entry.Level] {
			return errors.ErrVerdictSchema(fmt.Sprintf("log_entries[%d]: unknown level %q", i, entry.Level), excerpt)
		}
	}
	for i, fc := range v.FilesChanged {
		if !validActions[fc.Action] {
			return errors.ErrVerdictSchema(fmt.Sprintf("files_changed[%d]: unknown action %q", i, fc.Action), excerpt)
		}
	}

	switch v.Status {
	case VerdictSuccess:
		if strings.TrimSpace(v.Result) == "" {
			return errors.ErrVerdictSchema("success verdict with empty result", excerpt)
		}
	case VerdictFailed, VerdictNeedsDebug:
		if v.Error == nil || strings.TrimSpace(v.Error.Message) == "" {
			return errors.ErrVerdictSchema(fmt.Sprintf("%s verdict without an error message", v.Status), excerpt)
		}
	}

	return nil
}

// schemaDiagnosis probes the raw JSON for the usual decode failures so the
// error names the offending field instead of parroting encoding/json.
func schemaDiagnosis(raw string, decodeErr error) string {
	checks := []struct {
		path string
		want string
	}{
		{"status", "String"},
		{"result", "String"},
		{"log_entries", "JSON"},
		{"next_steps", "JSON"},
		{"files_changed", "JSON"},
		{"error", "JSON"},
	}
	for _, c := range checks {
		val := gjson.Get(raw, c.path)
		if !val.Exists() {
			continue
		}
		switch c.want {
		case "String":
			if val.Type != gjson.String {
				return fmt.Sprintf("field %q has wrong type (%s)", c.path, val.Type)
			}
		case "JSON":
			if !val.IsArray() && !val.IsObject() {
				return fmt.Sprintf("field %q has wrong type (%s)", c.path, val.Type)
			}
		}
	}
	return decodeErr.Error()
}

// StripFences removes one layer of markdown code fencing (```json ... ```)
// from oracle output, leaving the inner content untouched.
func StripFences(s string) string {
	trimmed := strings.TrimSpace(s)
	if !strings.HasPrefix(trimmed, "```") {
		return s
	}

	// Drop the opening fence line (``` or ```json)
	newline := strings.IndexByte(trimmed, '\n')
	if newline == -1 {
		return s
	}
	inner := trimmed[newline+1:]

	end := strings.LastIndex(inner, "```")
	if end == -1 {
		return s
	}
	return inner[:end]
}

// ExtractJSON returns the first balanced top-level {...} span in s, or ""
// when none exists. Brace counting skips braces inside JSON strings.
func ExtractJSON(s string) string {
	start := strings.IndexByte(s, '{')
	if start == -1 {
		return ""
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if escaped {
			escaped = false
			continue
		}
		switch c {
		case '\\':
			if inString {
				escaped = true
			}
		case '"':
			inString = !inString
		case '{':
			if !inString {
				depth++
			}
		case '}':
			if !inString {
				depth--
				if depth == 0 {
					return s[start : i+1]
				}
			}
		}
	}
	return ""
}
