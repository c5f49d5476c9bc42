// Copyright (C) 2024 NebulaStream Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

// Package enginerr defines the closed set of error kinds that can cross
// a worker, pipeline, or query boundary inside the streaming core.
package enginerr

import "fmt"

// Kind tags an Error with one of the taxonomy entries from the
// error-handling design.
type Kind int

const (
	// ConfigurationInvalid is a validation failure on startup input.
	// Fatal; surfaces to the caller of register_query.
	ConfigurationInvalid Kind = iota
	// SchemaMismatch means the wire format does not match the declared
	// schema. Fails the affected source only; the query continues for
	// other sources.
	SchemaMismatch
	// BufferPoolExhausted is transient back-pressure; not reported
	// unless a stop token fires during the wait.
	BufferPoolExhausted
	// PipelineExecutionError is a runtime failure inside compiled code.
	// The task is abandoned and the query transitions to Failed.
	PipelineExecutionError
	// InvariantViolated is an internal contract broken, e.g. the chunk
	// sequencer observing seen_chunks > last_chunk_number.
	InvariantViolated
	// QueryStopTimeout means a graceful stop did not complete within
	// its deadline.
	QueryStopTimeout
)

func (k Kind) String() string {
	switch k {
	case ConfigurationInvalid:
		return "ConfigurationInvalid"
	case SchemaMismatch:
		return "SchemaMismatch"
	case BufferPoolExhausted:
		return "BufferPoolExhausted"
	case PipelineExecutionError:
		return "PipelineExecutionError"
	case InvariantViolated:
		return "InvariantViolated"
	case QueryStopTimeout:
		return "QueryStopTimeout"
	default:
		return "Unknown"
	}
}

// Error is the tagged error type that crosses worker, pipeline, and
// query boundaries. It wraps an optional underlying cause.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// New constructs an Error of the given kind.
func New(k Kind, msg string, args ...any) *Error {
	return &Error{Kind: k, Message: fmt.Sprintf(msg, args...)}
}

// Wrap constructs an Error of the given kind around an existing cause.
func Wrap(k Kind, cause error, msg string, args ...any) *Error {
	return &Error{Kind: k, Message: fmt.Sprintf(msg, args...), Cause: cause}
}

// Fatal reports whether a query observing this error kind must
// transition to a terminal Failed state rather than continue.
func (e *Error) Fatal() bool {
	switch e.Kind {
	case ConfigurationInvalid, PipelineExecutionError, InvariantViolated, QueryStopTimeout:
		return true
	default:
		return false
	}
}
