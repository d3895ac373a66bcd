package driver

// FatalError marks an error that corrupts turn invariants per spec.md
// §7's Fatal error kind: the driver has already persisted an error
// event and the process must run shutdown and exit non-zero rather
// than return control to the prompt. Callers check for it with
// errors.As.
type FatalError struct {
	Err error
}

func (e *FatalError) Error() string {
	return e.Err.Error()
}

func (e *FatalError) Unwrap() error {
	return e.Err
}

// fatal wraps err as a FatalError, or returns nil unchanged.
func fatal(err error) error {
	if err == nil {
		return nil
	}
	return &FatalError{Err: err}
}
