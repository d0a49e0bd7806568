package adapters

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckVersion(t *testing.T) {
	tests := []struct {
		name     string
		expected int64
		current  int64
		exists   bool
		wantErr  bool
	}{
		{"any version, missing stream", AnyVersion, 0, false, false},
		{"any version, existing stream", AnyVersion, 7, true, false},
		{"no stream, missing stream", NoStream, 0, false, false},
		{"no stream, existing stream", NoStream, 3, true, true},
		{"stream exists, existing stream", StreamExists, 3, true, false},
		{"stream exists, missing stream", StreamExists, 0, false, true},
		{"exact match", 5, 5, true, false},
		{"exact mismatch", 5, 6, true, true},
		{"exact version, missing stream", 5, 0, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckVersion("Assignment-1", tt.expected, tt.current, tt.exists)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrConcurrencyConflict)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestCheckVersionRejectsNegativeVersions(t *testing.T) {
	err := CheckVersion("Assignment-1", -42, 0, false)
	require.ErrorIs(t, err, ErrInvalidVersion)
}

func TestConcurrencyErrorDetails(t *testing.T) {
	err := NewConcurrencyError("Assignment-1", 2, 5)

	assert.ErrorIs(t, err, ErrConcurrencyConflict)
	assert.Contains(t, err.Error(), "Assignment-1")
	assert.Contains(t, err.Error(), "expected version 2")

	var ce *ConcurrencyError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, int64(5), ce.ActualVersion)
}
