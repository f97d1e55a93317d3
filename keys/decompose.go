package keys

import (
	"regexp"
)

const (
	// SegmentLen is the number of hex characters in module and function
	// identifiers.
	SegmentLen = 32
)

//nolint:gochecknoglobals
var storageKeyPattern = regexp.MustCompile(`^(0x[0-9a-fA-F]{32})([0-9a-fA-F]{32})([0-9a-fA-F]*)$`)

// Components are the fixed-width parts of a storage key.
type Components struct {
	ModuleKey string // 0x-prefixed module identifier.
	FnKey     string // Function identifier, no prefix.
	ParamsKey string // Encoded parameters, verbatim.
}

// Key rebuilds the storage key.
func (c Components) Key() string {
	return c.ModuleKey + c.FnKey + c.ParamsKey
}

// Decompose splits a storage key into module, function and parameter
// segments. The parameter segment is returned as is, without decoding.
func Decompose(key string) (Components, error) {
	match := storageKeyPattern.FindStringSubmatch(key)
	if match == nil {
		return Components{}, errInvalidKey(key, "expected 0x + 32 hex + 32 hex + hex*")
	}

	return Components{
		ModuleKey: match[1],
		FnKey:     match[2],
		ParamsKey: match[3],
	}, nil
}
