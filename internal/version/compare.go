package version

import (
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/rxtech-lab/moth-trading/pkg/errors"
)

// developmentVersion marks a build without a release version.
const developmentVersion = "dev"

// CheckCompatibility reports whether results written by resultsVersion can be
// compared with runs of engineVersion.
//
// Compatibility Rules:
//   - If either version is "dev", the check is skipped
//   - Major and minor versions must match exactly
//   - Patch versions can differ (e.g., 1.2.0 is compatible with 1.2.5)
//
// An empty resultsVersion comes from results written before versions were
// recorded and is treated as incompatible.
func CheckCompatibility(resultsVersion, engineVersion string) error {
	resultsVersion = strings.TrimPrefix(resultsVersion, "v")
	engineVersion = strings.TrimPrefix(engineVersion, "v")

	if resultsVersion == developmentVersion || engineVersion == developmentVersion {
		return nil
	}

	if resultsVersion == "" {
		return errors.New(errors.ErrCodeIncompatibleVersion, "results carry no engine version")
	}

	results, err := semver.NewVersion(resultsVersion)
	if err != nil {
		return errors.Wrapf(errors.ErrCodeIncompatibleVersion, err, "invalid results version '%s'", resultsVersion)
	}

	current, err := semver.NewVersion(engineVersion)
	if err != nil {
		return errors.Wrapf(errors.ErrCodeIncompatibleVersion, err, "invalid engine version '%s'", engineVersion)
	}

	if results.Major() != current.Major() || results.Minor() != current.Minor() {
		return errors.Newf(errors.ErrCodeIncompatibleVersion,
			"results were written by %d.%d.x but the engine is %d.%d.x",
			results.Major(), results.Minor(), current.Major(), current.Minor())
	}

	return nil
}
