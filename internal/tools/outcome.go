// Package tools holds named operations a reasoning provider may invoke, the
// JSON Schema each one declares for its arguments, and the serial executor
// that validates and runs them.
package tools

import (
	"encoding/json"
	"fmt"
)

// Outcome is the result of one tool invocation: a Success or a Failure.
// Failures are data, not errors; they are fed back into the conversation.
type Outcome interface {
	ToolName() string
	OK() bool
	// Content renders the outcome as the text of a tool turn.
	Content() string
	isOutcome()
}

// Success carries the data a tool returned.
type Success struct {
	Name string
	Data any
}

// Failure carries structured error messages, e.g. schema violations.
type Failure struct {
	Name   string
	Errors []string
}

func (s Success) ToolName() string { return s.Name }
func (f Failure) ToolName() string { return f.Name }

func (Success) OK() bool { return true }
func (Failure) OK() bool { return false }

func (Success) isOutcome() {}
func (Failure) isOutcome() {}

// Content renders Data as JSON.
func (s Success) Content() string {
	data, err := json.Marshal(map[string]any{"ok": true, "data": s.Data})
	if err != nil {
		return fmt.Sprintf(`{"ok":true,"data":%q}`, fmt.Sprint(s.Data))
	}
	return string(data)
}

// Content renders Errors as JSON.
func (f Failure) Content() string {
	data, _ := json.Marshal(map[string]any{"ok": false, "errors": f.Errors})
	return string(data)
}

// Fail builds a Failure from formatted text.
func Fail(name, format string, args ...any) Failure {
	return Failure{Name: name, Errors: []string{fmt.Sprintf(format, args...)}}
}
