// Package options contains helpers for functional options.
package options

// OptionConstructor returns the default value of an options struct.
type OptionConstructor[T any] func() T

// OptionCallback modifies an options struct.
type OptionCallback[T any] func(*T)

// ApplyOptions builds the options struct from defaults and callbacks.
func ApplyOptions[T any](constructor OptionConstructor[T], cbs []OptionCallback[T]) T {
	var opts T

	if constructor != nil {
		opts = constructor()
	}

	for _, cb := range cbs {
		if cb != nil {
			cb(&opts)
		}
	}

	return opts
}

// ApplyAndValidate builds the options struct and checks it with validate.
func ApplyAndValidate[T any](
	constructor OptionConstructor[T],
	cbs []OptionCallback[T],
	validate func(T) error,
) (T, error) {
	opts := ApplyOptions(constructor, cbs)

	if validate != nil {
		if err := validate(opts); err != nil {
			var zero T
			return zero, err
		}
	}

	return opts, nil
}
