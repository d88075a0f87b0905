// Package semver checks remote API versions against caller constraints.
package semver

import (
	"fmt"
	"regexp"
	"strconv"

	masterminds "github.com/Masterminds/semver/v3"
)

const logPrefix = "semver:compat"

var majorOnlyRegex = regexp.MustCompile(`^\d+$`)

// IsMajorOnly checks if a range string is a major-only version (e.g., "1").
func IsMajorOnly(rangeStr string) bool {
	return majorOnlyRegex.MatchString(rangeStr)
}

// SatisfiesRange checks if a version string satisfies a range. A major-only
// range matches every version of that major.
func SatisfiesRange(version, rangeStr string) bool {
	return CheckCompatible(version, rangeStr) == nil
}

// CheckCompatible returns nil when version satisfies constraint. An empty
// constraint accepts any valid version.
func CheckCompatible(version, constraint string) error {
	sv, err := masterminds.NewVersion(version)
	if err != nil {
		return fmt.Errorf("%s - invalid version %q: %w", logPrefix, version, err)
	}
	if constraint == "" {
		return nil
	}

	if IsMajorOnly(constraint) {
		major, err := strconv.ParseUint(constraint, 10, 64)
		if err != nil {
			return fmt.Errorf("%s - invalid major %q: %w", logPrefix, constraint, err)
		}
		if sv.Major() != major {
			return fmt.Errorf("%s - version %s is not major %d", logPrefix, version, major)
		}
		return nil
	}

	c, err := masterminds.NewConstraint(constraint)
	if err != nil {
		return fmt.Errorf("%s - invalid constraint %q: %w", logPrefix, constraint, err)
	}
	if ok, errs := c.Validate(sv); !ok {
		return fmt.Errorf("%s - version %s does not satisfy %s: %v", logPrefix, version, constraint, errs)
	}
	return nil
}

// ValidateConstraint reports whether a constraint string can be parsed.
func ValidateConstraint(constraint string) error {
	if constraint == "" || IsMajorOnly(constraint) {
		return nil
	}
	if _, err := masterminds.NewConstraint(constraint); err != nil {
		return fmt.Errorf("%s - invalid constraint %q: %w", logPrefix, constraint, err)
	}
	return nil
}
