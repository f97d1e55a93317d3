// Package marshaller encodes typed reports in the formats the tools print.
package marshaller

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownFormat is returned by ForFormat for unsupported formats.
var ErrUnknownFormat = errors.New("unknown format")

// TypedMarshaller is a generic interface for typed marshalling operations.
type TypedMarshaller[T any] interface {
	Marshal(data T) ([]byte, error)
	Unmarshal(data []byte) (T, error)
}

// Format names an output format.
type Format string

const (
	// FormatYAML is the default output format.
	FormatYAML Format = "yaml"
	// FormatJSON is indented JSON.
	FormatJSON Format = "json"
)

// ForFormat returns the marshaller of the named format.
func ForFormat[T any](format string) (TypedMarshaller[T], error) {
	switch Format(strings.ToLower(format)) {
	case FormatYAML, "yml", "":
		return NewTypedYamlMarshaller[T](), nil
	case FormatJSON:
		return NewTypedJSONMarshaller[T](), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

func zero[T any]() T {
	var out T
	return out
}
