package device

import (
	"fmt"
	"regexp"
	"strconv"
)

// Profile describes the hardware and app build the client impersonates
type Profile struct {
	Manufacturer   string `json:"manufacturer"`
	Device         string `json:"device"`
	Model          string `json:"model"`
	AndroidRelease string `json:"android_release"`
	AndroidVersion int    `json:"android_version"`
	DPI            string `json:"dpi"`
	Resolution     string `json:"resolution"`
	Chipset        string `json:"chipset"`
	AppVersion     string `json:"app_version"`
	VersionCode    string `json:"version_code"`
}

// DefaultProfile matches the app build the bundled signing key belongs to
func DefaultProfile() Profile {
	return Profile{
		Manufacturer:   "Xiaomi",
		Device:         "capricorn",
		Model:          "MI 5s",
		AndroidRelease: "6.0.1",
		AndroidVersion: 23,
		DPI:            "640dpi",
		Resolution:     "1440x2560",
		Chipset:        "qcom",
		AppVersion:     "10.26.0",
		VersionCode:    "146536611",
	}
}

// userAgentRe mirrors the exact template UserAgent produces; any deviation
// fails validation.
var userAgentRe = regexp.MustCompile(
	`^Instagram ([\d.]+) Android \((\d+)/([\d.]+); (\d+dpi); (\d+x\d+); ([^;]+); ([^;]+); ([^;]+); ([^;]+); en_US\)$`)

// ErrInvalidUserAgent is returned when a user-agent string does not match
// the app's template.
type ErrInvalidUserAgent struct {
	UserAgent string
}

func (e *ErrInvalidUserAgent) Error() string {
	return fmt.Sprintf("invalid user agent: %q", e.UserAgent)
}

// UserAgent formats the app user-agent string for a profile
func UserAgent(p Profile) string {
	return fmt.Sprintf("Instagram %s Android (%d/%s; %s; %s; %s; %s; %s; %s; en_US)",
		p.AppVersion, p.AndroidVersion, p.AndroidRelease, p.DPI, p.Resolution,
		p.Manufacturer, p.Device, p.Model, p.Chipset)
}

// ParseUserAgent parses a user-agent string back into a Profile. Strings not
// produced by UserAgent fail with ErrInvalidUserAgent.
func ParseUserAgent(ua string) (Profile, error) {
	m := userAgentRe.FindStringSubmatch(ua)
	if m == nil {
		return Profile{}, &ErrInvalidUserAgent{UserAgent: ua}
	}
	version, err := strconv.Atoi(m[2])
	if err != nil {
		return Profile{}, &ErrInvalidUserAgent{UserAgent: ua}
	}
	return Profile{
		AppVersion:     m[1],
		AndroidVersion: version,
		AndroidRelease: m[3],
		DPI:            m[4],
		Resolution:     m[5],
		Manufacturer:   m[6],
		Device:         m[7],
		Model:          m[8],
		Chipset:        m[9],
	}, nil
}
