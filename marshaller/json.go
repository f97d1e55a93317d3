package marshaller

import (
	"encoding/json"
)

// TypedJSONMarshaller is a generic JSON marshaller for typed objects.
// Output is indented with two spaces.
type TypedJSONMarshaller[T any] struct{}

// NewTypedJSONMarshaller creates a new TypedJSONMarshaller for the specified type.
func NewTypedJSONMarshaller[T any]() TypedJSONMarshaller[T] {
	return TypedJSONMarshaller[T]{}
}

// Marshal serializes the typed data to JSON format.
func (m TypedJSONMarshaller[T]) Marshal(data T) ([]byte, error) {
	marshalled, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return []byte{}, errMarshal(FormatJSON, err)
	}

	return append(marshalled, '\n'), nil
}

// Unmarshal deserializes JSON data into a typed object.
func (m TypedJSONMarshaller[T]) Unmarshal(data []byte) (T, error) {
	var out T

	err := json.Unmarshal(data, &out)
	if err != nil {
		return zero[T](), errUnmarshal(FormatJSON, err)
	}

	return out, nil
}
