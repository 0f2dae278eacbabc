package version

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// Latest asks for the newest installed gateway build.
const Latest = "latest"

// ResolveInstalled picks the gateway build to launch from the version directories
// found under dir.
//
// Resolution Rules:
//   - An empty request or "latest" selects the highest installed version
//   - A concrete version must parse as semver and be installed
//   - A constraint such as ">= 10.19" selects the highest installed version satisfying it
//   - Directory names that are not versions are ignored
//
// The returned string is the directory name as installed, so "1019" stays "1019".
func ResolveInstalled(dir, requested string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("cannot list gateway versions in '%s': %w", dir, err)
	}

	names := make([]string, 0, len(entries))

	for _, entry := range entries {
		if entry.IsDir() {
			names = append(names, entry.Name())
		}
	}

	return Resolve(names, requested)
}

// Resolve applies the rules of ResolveInstalled to a list of directory names.
func Resolve(installed []string, requested string) (string, error) {
	candidates := parseInstalled(installed)
	if len(candidates) == 0 {
		return "", fmt.Errorf("no gateway versions installed")
	}

	requested = strings.TrimSpace(requested)
	if requested == "" || strings.EqualFold(requested, Latest) {
		return candidates[0].name, nil
	}

	if exact, err := semver.NewVersion(strings.TrimPrefix(requested, "v")); err == nil {
		for _, candidate := range candidates {
			if candidate.version.Equal(exact) {
				return candidate.name, nil
			}
		}

		return "", fmt.Errorf("gateway version '%s' is not installed", requested)
	}

	constraint, err := semver.NewConstraint(requested)
	if err != nil {
		return "", fmt.Errorf("invalid gateway version '%s': %w", requested, err)
	}

	for _, candidate := range candidates {
		if constraint.Check(candidate.version) {
			return candidate.name, nil
		}
	}

	return "", fmt.Errorf("no installed gateway version satisfies '%s'", requested)
}

type installedVersion struct {
	name    string
	version *semver.Version
}

// parseInstalled returns the parseable names, newest first.
func parseInstalled(names []string) []installedVersion {
	parsed := make([]installedVersion, 0, len(names))

	for _, name := range names {
		v, err := semver.NewVersion(strings.TrimPrefix(name, "v"))
		if err != nil {
			continue
		}

		parsed = append(parsed, installedVersion{name: name, version: v})
	}

	sort.SliceStable(parsed, func(i, j int) bool {
		return parsed[i].version.GreaterThan(parsed[j].version)
	})

	return parsed
}
