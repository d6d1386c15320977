package errorsx

import "errors"

// ReasonedError tags an error with the ReasonCode the UI and metrics key on.
// The message is always the underlying error's; the code only classifies it.
type ReasonedError struct {
	Err    error
	Reason ReasonCode
}

func (e ReasonedError) Error() string {
	if e.Err == nil {
		return string(e.Reason)
	}
	return e.Err.Error()
}

func (e ReasonedError) Unwrap() error { return e.Err }

// New is for package-level sentinels compared with errors.Is
func New(reason ReasonCode, msg string) error {
	return ReasonedError{Err: errors.New(msg), Reason: reason}
}

// Wrap classifies err under reason. The innermost code wins: an error that
// already carries one anywhere in its chain comes back unchanged, so a
// sentinel's code survives being re-wrapped by outer layers.
func Wrap(err error, reason ReasonCode) error {
	if err == nil {
		return nil
	}
	if _, ok := lookup(err); ok {
		return err
	}
	return ReasonedError{Err: err, Reason: reason}
}

// Reason reports the code attached to err, ReasonUnknown when none is.
func Reason(err error) ReasonCode {
	if code, ok := lookup(err); ok {
		return code
	}
	return ReasonUnknown
}

// HasReason is shorthand for Reason(err) == reason
func HasReason(err error, reason ReasonCode) bool {
	return Reason(err) == reason
}

func lookup(err error) (ReasonCode, bool) {
	var re ReasonedError
	if err == nil || !errors.As(err, &re) {
		return "", false
	}
	return re.Reason, true
}
