package version

import (
	"testing"

	"github.com/rxtech-lab/moth-trading/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckCompatibility(t *testing.T) {
	tests := []struct {
		name           string
		resultsVersion string
		engineVersion  string
		expectError    bool
		errorContains  string
	}{
		{name: "exact match", resultsVersion: "1.2.0", engineVersion: "1.2.0"},
		{name: "patch differs", resultsVersion: "1.2.0", engineVersion: "1.2.5"},
		{name: "v prefix", resultsVersion: "v1.2.0", engineVersion: "1.2.3"},
		{name: "development results", resultsVersion: "dev", engineVersion: "3.0.0"},
		{name: "development engine", resultsVersion: "1.2.0", engineVersion: "dev"},
		{
			name:           "minor differs",
			resultsVersion: "1.3.0",
			engineVersion:  "1.2.0",
			expectError:    true,
			errorContains:  "1.3.x",
		},
		{
			name:           "major differs",
			resultsVersion: "2.0.0",
			engineVersion:  "1.2.0",
			expectError:    true,
			errorContains:  "2.0.x",
		},
		{
			name:           "missing results version",
			resultsVersion: "",
			engineVersion:  "1.2.0",
			expectError:    true,
			errorContains:  "no engine version",
		},
		{
			name:           "invalid results version",
			resultsVersion: "latest",
			engineVersion:  "1.2.0",
			expectError:    true,
			errorContains:  "invalid results version",
		},
		{
			name:           "invalid engine version",
			resultsVersion: "1.2.0",
			engineVersion:  "nightly",
			expectError:    true,
			errorContains:  "invalid engine version",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := CheckCompatibility(tc.resultsVersion, tc.engineVersion)

			if !tc.expectError {
				assert.NoError(t, err)

				return
			}

			require.Error(t, err)
			assert.Equal(t, errors.ErrCodeIncompatibleVersion, errors.GetCode(err))
			assert.Contains(t, err.Error(), tc.errorContains)
		})
	}
}

func TestGetVersion(t *testing.T) {
	original := Version
	t.Cleanup(func() { Version = original })

	Version = "1.4.2"
	assert.Equal(t, "1.4.2", GetVersion())
}
