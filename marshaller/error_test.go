package marshaller //nolint:testpackage

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrors(t *testing.T) {
	t.Parallel()

	rootErr := errors.New("root cause")

	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{"marshal yaml", errMarshal(FormatYAML, rootErr), "failed to marshal yaml: root cause"},
		{"marshal json", errMarshal(FormatJSON, rootErr), "failed to marshal json: root cause"},
		{"unmarshal yaml", errUnmarshal(FormatYAML, rootErr), "failed to unmarshal yaml: root cause"},
		{"unmarshal json", errUnmarshal(FormatJSON, rootErr), "failed to unmarshal json: root cause"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			require.Error(t, tt.err)
			assert.Equal(t, tt.expected, tt.err.Error())
			require.ErrorIs(t, tt.err, rootErr)
		})
	}
}

func TestErrors_NilParent(t *testing.T) {
	t.Parallel()

	require.NoError(t, errMarshal(FormatYAML, nil))
	require.NoError(t, errUnmarshal(FormatJSON, nil))
}

func TestErrors_As(t *testing.T) {
	t.Parallel()

	var (
		marshalErr   MarshalError
		unmarshalErr UnmarshalError
	)

	require.ErrorAs(t, errMarshal(FormatJSON, errors.New("x")), &marshalErr)
	assert.Equal(t, FormatJSON, marshalErr.Format)

	require.ErrorAs(t, errUnmarshal(FormatYAML, errors.New("x")), &unmarshalErr)
	assert.Equal(t, FormatYAML, unmarshalErr.Format)
}
