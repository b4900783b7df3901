package roast

import "errors"

// Kind classifies a pipeline failure. Provider-specific error shapes are
// folded into exactly one kind at the boundary where they occur; the API
// layer decides what each kind may reveal to the caller.
type Kind int

const (
	// KindUnknown is the zero value; anything unclassified collapses to a
	// generic message at the API boundary.
	KindUnknown Kind = iota
	// KindInputValidation covers syntactically bad input.
	KindInputValidation
	// KindPrivacyViolation covers URLs resolving to non-public addresses,
	// or failing to resolve at gate time (fail closed).
	KindPrivacyViolation
	// KindCaptureUnresolvable means the host no longer resolved at capture time.
	KindCaptureUnresolvable
	// KindCaptureTimeout means the page did not finish loading in time.
	KindCaptureTimeout
	// KindCaptureBlocked covers every other capture error.
	KindCaptureBlocked
	// KindGeneration covers model transport, parse, and schema failures.
	KindGeneration
	// KindStorage covers blob upload failures.
	KindStorage
	// KindPersistence covers record insert failures.
	KindPersistence
	// KindRateLimited marks an admission rejection.
	KindRateLimited
)

// Failure is the single typed error carried through the pipeline. Msg is
// safe to consider for display; Cause holds the full diagnostic detail and
// goes to the log only.
type Failure struct {
	Kind  Kind
	Msg   string
	Cause error
}

// Error implements the error interface.
func (f *Failure) Error() string {
	if f.Cause != nil {
		return f.Msg + ": " + f.Cause.Error()
	}
	return f.Msg
}

// Unwrap exposes the underlying cause for errors.Is/As chains.
func (f *Failure) Unwrap() error {
	return f.Cause
}

// NewFailure builds a Failure of the given kind.
func NewFailure(kind Kind, msg string, cause error) *Failure {
	return &Failure{Kind: kind, Msg: msg, Cause: cause}
}

// KindOf extracts the failure kind from an error chain, or KindUnknown.
func KindOf(err error) Kind {
	var f *Failure
	if errors.As(err, &f) {
		return f.Kind
	}
	return KindUnknown
}

// FailureMessage returns the display-candidate message from an error chain,
// or the empty string if the error is not a classified Failure.
func FailureMessage(err error) string {
	var f *Failure
	if errors.As(err, &f) {
		return f.Msg
	}
	return ""
}

// ErrRecordNotFound is returned by record stores for absent IDs.
var ErrRecordNotFound = errors.New("record not found")
