package tkv

import (
	"fmt"
)

// DecodingError represents an error that occurs while decoding a tuple.
type DecodingError struct {
	ObjectType string
	Text       string
	Err        error
}

// Error returns the error message.
func (e DecodingError) Error() string {
	suffix := e.ObjectType
	if e.Text != "" {
		suffix = fmt.Sprintf("%s, %s", suffix, e.Text)
	}

	return fmt.Sprintf("failed to decode %s: %s", suffix, e.Err)
}

func (e DecodingError) Unwrap() error {
	return e.Err
}

// NewTupleDecodingError returns a new tuple decoding error.
func NewTupleDecodingError(text string, err error) error {
	if err == nil {
		return nil
	}

	return DecodingError{
		ObjectType: "tuple",
		Text:       text,
		Err:        err,
	}
}
