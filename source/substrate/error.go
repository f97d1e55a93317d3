package substrate

import (
	"fmt"
)

// DecodingError is returned when a node response cannot be decoded.
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

// NewStorageChangeDecodingError returns a storage change decoding error.
func NewStorageChangeDecodingError(text string, err error) error {
	if err == nil {
		return nil
	}

	return DecodingError{
		ObjectType: "storage change",
		Text:       text,
		Err:        err,
	}
}

// NewStorageKeysDecodingError returns a key list decoding error.
func NewStorageKeysDecodingError(text string, err error) error {
	if err == nil {
		return nil
	}

	return DecodingError{
		ObjectType: "storage keys",
		Text:       text,
		Err:        err,
	}
}

// NewBlockHashDecodingError returns a block hash decoding error.
func NewBlockHashDecodingError(text string, err error) error {
	if err == nil {
		return nil
	}

	return DecodingError{
		ObjectType: "block hash",
		Text:       text,
		Err:        err,
	}
}

// CallError is returned when a JSON-RPC call fails.
type CallError struct {
	Method string
	Err    error
}

// Error returns the error message.
func (e CallError) Error() string {
	return fmt.Sprintf("%s failed: %s", e.Method, e.Err)
}

func (e CallError) Unwrap() error {
	return e.Err
}
