package accounts

import (
	"fmt"
)

// DecodeError is returned for storage entries that are not valid
// System.Account entries or balances.
type DecodeError struct {
	Key     string
	Problem string
	Err     error
}

// Error returns the error message.
func (e DecodeError) Error() string {
	msg := "invalid entry"
	if e.Key != "" {
		msg += " " + e.Key
	}

	if e.Err == nil {
		return fmt.Sprintf("%s: %s", msg, e.Problem)
	}

	return fmt.Sprintf("%s: %s: %s", msg, e.Problem, e.Err)
}

func (e DecodeError) Unwrap() error {
	return e.Err
}
