package event

import "errors"

// ErrPermanent marks an event that must be dropped: redelivery cannot fix it.
var ErrPermanent = errors.New("permanent event failure")

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }
func (e *permanentError) Is(target error) bool { return target == ErrPermanent }

// Permanent wraps err so consumers commit the event instead of redelivering it.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

func IsPermanent(err error) bool { return errors.Is(err, ErrPermanent) }

// IsRetriable reports whether the bus should redeliver. Everything that is not
// explicitly permanent is retriable, deadline and store failures included.
func IsRetriable(err error) bool { return err != nil && !IsPermanent(err) }
