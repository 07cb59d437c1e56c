package commands

import "errors"

// usageError marks failures the user can fix locally: bad arguments, missing
// configuration, an unreadable config file. Service-side failures stay
// unwrapped.
type usageError struct {
	err error
}

func (e *usageError) Error() string { return e.err.Error() }

func (e *usageError) Unwrap() error { return e.err }

// ExitCode maps an Execute error to a process exit code: 2 for local
// configuration and usage problems, 1 for API and unexpected failures.
func ExitCode(err error) int {
	var usage *usageError
	if errors.As(err, &usage) {
		return 2
	}
	return 1
}
