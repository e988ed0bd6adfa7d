/*
Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package errors defines the typed error kinds shared across the
// reconciliation engine, so that callers can distinguish a fatal
// configuration problem from a per-tick snapshot or actuation failure.
package errors

import "fmt"

// ConfigurationError indicates the configuration file failed to load or
// validate. It is fatal at startup.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("invalid configuration: %s", e.Reason)
	}
	return fmt.Sprintf("invalid configuration: %s: %s", e.Field, e.Reason)
}

func NewConfigurationError(field, reason string) *ConfigurationError {
	return &ConfigurationError{Field: field, Reason: reason}
}

// SnapshotError indicates a cluster or cloud read failed. The affected scope
// (cluster-wide, or a single fleet) is skipped for the current tick.
type SnapshotError struct {
	Source string // "cluster" or "fleet"
	Name   string // fleet key, empty for cluster-wide errors
	Err    error
}

func (e *SnapshotError) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("%s snapshot: %s", e.Source, e.Err)
	}
	return fmt.Sprintf("%s snapshot for %s: %s", e.Source, e.Name, e.Err)
}

func (e *SnapshotError) Unwrap() error { return e.Err }

func NewSnapshotError(source, name string, err error) *SnapshotError {
	return &SnapshotError{Source: source, Name: name, Err: err}
}

// ActuationError indicates a write against the cloud fleet API or the
// orchestrator API failed. It is logged and retried on the next tick.
type ActuationError struct {
	Fleet     string
	Operation string
	Err       error
}

func (e *ActuationError) Error() string {
	return fmt.Sprintf("actuating %s on %s: %s", e.Operation, e.Fleet, e.Err)
}

func (e *ActuationError) Unwrap() error { return e.Err }

func NewActuationError(fleet, operation string, err error) *ActuationError {
	return &ActuationError{Fleet: fleet, Operation: operation, Err: err}
}

// InvalidQuantity indicates a CPU or memory quantity string could not be
// parsed. At load time this bubbles up as a ConfigurationError. Pod resource
// requests are read from the orchestrator as already-parsed quantities, so
// nothing in the control loop raises it mid-run.
type InvalidQuantity struct {
	Input string
	Kind  string // "cpu" or "memory"
}

func (e *InvalidQuantity) Error() string {
	return fmt.Sprintf("invalid %s quantity %q", e.Kind, e.Input)
}

func NewInvalidQuantity(kind, input string) *InvalidQuantity {
	return &InvalidQuantity{Input: input, Kind: kind}
}
