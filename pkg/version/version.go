// Package version holds the HKDS module's semantic version.
package version

import "fmt"

// Semantic version components.
const (
	Major = 0
	Minor = 1
	Patch = 0
	Label = ""
)

// String returns the full version string.
func String() string {
	v := fmt.Sprintf("v%d.%d.%d", Major, Minor, Patch)
	if Label != "" {
		v += "-" + Label
	}
	return v
}

// Full returns a descriptive version string.
func Full() string {
	return fmt.Sprintf("hkds-go %s", String())
}
