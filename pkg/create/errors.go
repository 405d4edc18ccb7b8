package create

import (
	"fmt"
	"strings"
)

// ImmutableKeyError reports an attempt to overwrite a protected instance key.
type ImmutableKeyError struct {
	Key string
}

func (e *ImmutableKeyError) Error() string {
	return fmt.Sprintf("key %q is immutable and cannot be changed", e.Key)
}

// CreatorError marks a failure a creation strategy raised deliberately. The
// message is considered end-user friendly and no call trace is captured for
// it when the failure is aggregated.
type CreatorError struct {
	Message string
}

func (e *CreatorError) Error() string { return e.Message }

// NewCreatorError builds a CreatorError with a formatted message.
func NewCreatorError(format string, args ...any) *CreatorError {
	return &CreatorError{Message: fmt.Sprintf(format, args...)}
}

// UnavailableSharedDataError reports access to collection-shared data outside
// of a collection phase.
type UnavailableSharedDataError struct{}

func (e *UnavailableSharedDataError) Error() string {
	return "collection shared data are available only during collection"
}

// OperationKind names the orchestrator pass a failure belongs to.
type OperationKind string

const (
	OpCreate        OperationKind = "create"
	OpCollect       OperationKind = "collect"
	OpSave          OperationKind = "save"
	OpRemove        OperationKind = "remove"
	OpConvertorFind OperationKind = "convertor_find"
	OpConvertorRun  OperationKind = "convertor_run"
)

// OperationFailure records one plugin failure inside an aggregated pass.
// Trace is empty for failures raised through CreatorError.
type OperationFailure struct {
	Identifier string
	Label      string
	Message    string
	Trace      string
}

// OperationFailedError aggregates per-plugin failures of one orchestrator
// pass. The pass itself continues past failing plugins, so an error of this
// type still implies partial success for the plugins missing from Failures.
type OperationFailedError struct {
	Op       OperationKind
	Failures []OperationFailure
}

func (e *OperationFailedError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s failed for %d plugin(s):", e.Op, len(e.Failures))
	for _, failure := range e.Failures {
		label := failure.Label
		if label == "" {
			label = failure.Identifier
		}
		fmt.Fprintf(&sb, " [%s] %s;", label, failure.Message)
	}
	return strings.TrimSuffix(sb.String(), ";")
}

// FailuresFor returns the failures recorded for the given plugin identifier.
func (e *OperationFailedError) FailuresFor(identifier string) []OperationFailure {
	var matched []OperationFailure
	for _, failure := range e.Failures {
		if failure.Identifier == identifier {
			matched = append(matched, failure)
		}
	}
	return matched
}
