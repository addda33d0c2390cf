package chunkeval

import (
	"fmt"
	"strings"
)

// Version is a parsed major.minor.patch version. Minor and Patch are -1 when
// the source string did not specify them.
type Version struct {
	Major int
	Minor int
	Patch int
}

// ParseVersion parses "X.Y.Z", "X.Y" or "X". Trailing text is ignored, so
// "2.1.0-beta" parses as {2, 1, 0}.
func ParseVersion(versionStr string) (Version, error) {
	version := Version{Minor: -1, Patch: -1}
	if _, err := fmt.Sscanf(versionStr, "%d.%d.%d", &version.Major, &version.Minor, &version.Patch); err != nil {
		if _, err := fmt.Sscanf(versionStr, "%d.%d", &version.Major, &version.Minor); err != nil {
			if _, err := fmt.Sscanf(versionStr, "%d", &version.Major); err != nil {
				return Version{}, fmt.Errorf("error parsing version: %v", err)
			}
		}
	}
	if version.Major < 0 {
		return Version{}, fmt.Errorf("invalid version: %s", versionStr)
	}
	return version, nil
}

// ParsePythonVersion parses "python --version" output (e.g., "Python 3.10.5").
func ParsePythonVersion(versionStr string) (Version, error) {
	parts := strings.Split(versionStr, " ")
	if len(parts) != 2 || parts[0] != "Python" {
		return Version{}, fmt.Errorf("invalid version string: %s", versionStr)
	}
	return ParseVersion(parts[1])
}

// ParsePipVersion parses "pip --version" output (e.g., "pip 23.0 from ...").
func ParsePipVersion(versionStr string) (Version, error) {
	parts := strings.Split(versionStr, " ")
	if len(parts) < 2 || !strings.HasPrefix(parts[0], "pip") {
		return Version{}, fmt.Errorf("invalid version string: %s", versionStr)
	}
	return ParseVersion(parts[1])
}

// Compare returns -1 if v < other, 0 if equal, 1 if v > other.
func (v *Version) Compare(other Version) int {
	pairs := [][2]int{{v.Major, other.Major}, {v.Minor, other.Minor}, {v.Patch, other.Patch}}
	for _, p := range pairs {
		if p[0] > p[1] {
			return 1
		}
		if p[0] < p[1] {
			return -1
		}
	}
	return 0
}

// String formats the version, omitting unspecified components.
func (v *Version) String() string {
	if v.Patch != -1 {
		return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
	}
	if v.Minor != -1 {
		return fmt.Sprintf("%d.%d", v.Major, v.Minor)
	}
	return fmt.Sprintf("%d", v.Major)
}
