package keys

import (
	"fmt"
	"math/rand/v2"
)

const (
	// Fanout is the number of sub-prefixes produced by Split.
	Fanout = 256
	// DefaultSampleProbability is the inclusion probability used for
	// ad hoc sampling of sub-prefixes.
	DefaultSampleProbability = 0.05
)

// Split returns the 256 children of prefix, formed by appending every
// one-byte value as two lowercase hex characters.
func Split(prefix string) []string {
	out := make([]string, 0, Fanout)
	for i := range Fanout {
		out = append(out, fmt.Sprintf("%s%02x", prefix, i))
	}

	return out
}

// Sample returns the children of prefix, each one included independently
// with the given probability. The result is not reproducible unless a seeded
// rnd is passed; a nil rnd uses the global source.
func Sample(prefix string, probability float64, rnd *rand.Rand) []string {
	draw := rand.Float64
	if rnd != nil {
		draw = rnd.Float64
	}

	var out []string

	for _, child := range Split(prefix) {
		if draw() < probability {
			out = append(out, child)
		}
	}

	return out
}
