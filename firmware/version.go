package firmware

import (
	"fmt"
	"regexp"
	"strconv"
)

const (
	MinimumVersion = "2.0.0RC2"
	LatestVersion  = "2.0.5"

	// ClockCapVersion is the first release whose set_clock_hz accepts max_rp2040_freq.
	ClockCapVersion = "2.0.4"
)

var (
	releasePattern = regexp.MustCompile(`^(\d+)\.(\d+)\.(\d+)(RC|beta|alpha)?(\d+)?$`)
	devPattern     = regexp.MustCompile(`^(\d+)\.(\d+)-dev$`)
)

// Version is a parsed firmware release identifier.
type Version struct {
	Major, Minor, Patch int
	// PreRelease is "", "alpha", "beta", "RC" or "dev".
	PreRelease string
	// PreReleaseNumber is -1 when absent.
	PreReleaseNumber int
}

// ParseVersion accepts "major.minor.patch[alpha|beta|RC]N" and "major.minor-dev".
func ParseVersion(version string) (Version, error) {
	if m := devPattern.FindStringSubmatch(version); m != nil {
		return Version{
			Major:      atoi(m[1]),
			Minor:      atoi(m[2]),
			PreRelease: "dev",
		}, nil
	}
	m := releasePattern.FindStringSubmatch(version)
	if m == nil || (m[4] != "" && m[5] == "") {
		return Version{}, fmt.Errorf("invalid firmware version: %s", version)
	}
	v := Version{
		Major:            atoi(m[1]),
		Minor:            atoi(m[2]),
		Patch:            atoi(m[3]),
		PreRelease:       m[4],
		PreReleaseNumber: -1,
	}
	if m[5] != "" {
		v.PreReleaseNumber = atoi(m[5])
	}
	return v, nil
}

// CompareVersions returns a negative number when a < b, zero when equal and a
// positive number when a > b.
func CompareVersions(a, b string) (int, error) {
	va, err := ParseVersion(a)
	if err != nil {
		return 0, err
	}
	vb, err := ParseVersion(b)
	if err != nil {
		return 0, err
	}
	return va.Compare(vb), nil
}

// Compare orders v against o. A -dev build sorts after every release of the
// same major.minor.
func (v Version) Compare(o Version) int {
	if v.Major != o.Major {
		return sign(v.Major - o.Major)
	}
	if v.Minor != o.Minor {
		return sign(v.Minor - o.Minor)
	}
	if v.PreRelease == "dev" && o.PreRelease != "dev" {
		return 1
	}
	if o.PreRelease == "dev" && v.PreRelease != "dev" {
		return -1
	}
	if v.Patch != o.Patch {
		return sign(v.Patch - o.Patch)
	}
	if v.PreRelease == o.PreRelease {
		return sign(max(v.PreReleaseNumber, 0) - max(o.PreReleaseNumber, 0))
	}
	return sign(preReleaseRank(v.PreRelease) - preReleaseRank(o.PreRelease))
}

// AtLeast reports whether version is min or newer. Unparsable versions are not.
func AtLeast(version, min string) bool {
	cmp, err := CompareVersions(version, min)
	return err == nil && cmp >= 0
}

// DownloadURL points at the UF2 image of a firmware release.
func DownloadURL(version string) string {
	return fmt.Sprintf("https://github.com/TinyTapeout/tt-micropython-firmware/releases/download/v%s/tt-demo-rp2040-v%s.uf2", version, version)
}

func preReleaseRank(p string) int {
	switch p {
	case "alpha":
		return 0
	case "beta":
		return 1
	case "RC":
		return 2
	default:
		return 3
	}
}

func sign(n int) int {
	switch {
	case n < 0:
		return -1
	case n > 0:
		return 1
	}
	return 0
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
