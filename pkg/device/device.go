// Package device generates and formats the per-install identity the vendor's
// mobile app derives on first run: UUIDs, device IDs and the user-agent
// string matching a declared hardware profile. All identifiers are stable
// across sessions when a seed is provided.
package device

import (
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/google/uuid"
)

// App-level constants bundled with the impersonated application build.
const (
	SigKey        = "4f8732eb9ba7d1c8e8897a75d6474d4eb3f5279137431b2aafb71fafe2abe178"
	SigKeyVersion = "4"
	Capabilities  = "3brTBw=="
	AppID         = "567067343352427"
	FBHTTPEngine  = "Liger"
)

// GenerateUUID returns an RFC-4122 UUID string. When seed is non-empty the
// UUID is derived from md5(seed) and therefore stable across calls; otherwise
// a time-based v1 UUID is generated. When hexOnly is set the dashes are
// stripped.
func GenerateUUID(hexOnly bool, seed string) string {
	var u uuid.UUID
	if seed != "" {
		sum := md5.Sum([]byte(seed))
		u, _ = uuid.FromBytes(sum[:])
	} else {
		var err error
		u, err = uuid.NewUUID()
		if err != nil {
			// NewUUID only fails when no clock sequence is obtainable;
			// fall back to random
			u = uuid.New()
		}
	}
	s := u.String()
	if hexOnly {
		return strings.ReplaceAll(s, "-", "")
	}
	return s
}

// GenerateDeviceID returns the android device identifier derived from seed:
// "android-" followed by the first 16 hex chars of md5(seed).
func GenerateDeviceID(seed string) string {
	sum := md5.Sum([]byte(seed))
	return "android-" + hex.EncodeToString(sum[:])[:16]
}

// GenerateAdID returns the advertising identifier. An empty seed falls back
// to the given username. The seed is mangled through sha256 before UUID
// derivation so the ad id is stable but not trivially linkable to the login.
func GenerateAdID(seed, username string) string {
	if seed == "" {
		seed = username
	}
	sum := sha256.Sum256([]byte(seed))
	return GenerateUUID(false, hex.EncodeToString(sum[:]))
}

// PhoneID derives the phone identifier from the device identity. It is a
// pure function of deviceID.
func PhoneID(deviceID string) string {
	return GenerateUUID(false, deviceID)
}

// Identity bundles the per-install identifiers
type Identity struct {
	UUID      string `json:"uuid"`
	DeviceID  string `json:"device_id"`
	AdID      string `json:"ad_id"`
	PhoneID   string `json:"phone_id"`
	SessionID string `json:"session_id"`
}

// NewIdentity derives a full identity from a seed. When seed is empty every
// identifier is freshly generated; username only feeds the ad id fallback.
func NewIdentity(seed, username string) Identity {
	deviceID := GenerateDeviceID(seedOr(seed, GenerateUUID(false, "")))
	return Identity{
		UUID:      GenerateUUID(false, seed),
		DeviceID:  deviceID,
		AdID:      GenerateAdID(seed, username),
		PhoneID:   PhoneID(deviceID),
		SessionID: GenerateUUID(false, ""),
	}
}

func seedOr(seed, fallback string) string {
	if seed != "" {
		return seed
	}
	return fallback
}
