// Package session holds the long-lived, serializable state of one logged-in
// identity: device identifiers, hardware profile, signing key fields and the
// cookie jar. A session must only be used from a single goroutine; callers
// wanting parallelism instantiate one session per worker.
package session

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"igclient/pkg/cookiejar"
	"igclient/pkg/device"
	"igclient/pkg/errors"
)

// Session is the state restored from and persisted to settings. Identity and
// signing fields are immutable after construction; only the jar mutates, via
// Set-Cookie responses.
type Session struct {
	Identity      device.Identity
	Profile       device.Profile
	SigningKey    []byte
	SigKeyVersion string
	Capabilities  string
	Jar           *cookiejar.Jar
	CreatedAt     time.Time
}

// New creates a fresh session. A non-empty seed makes every identifier
// deterministic, which keeps login state reusable across processes and makes
// signatures reproducible in fixtures. username only feeds the ad-id
// fallback.
func New(seed, username string) *Session {
	return &Session{
		Identity:      device.NewIdentity(seed, username),
		Profile:       device.DefaultProfile(),
		SigningKey:    []byte(device.SigKey),
		SigKeyVersion: device.SigKeyVersion,
		Capabilities:  device.Capabilities,
		Jar:           cookiejar.New(),
		CreatedAt:     time.Now(),
	}
}

// UserAgent formats the session's user-agent string
func (s *Session) UserAgent() string {
	return device.UserAgent(s.Profile)
}

// bytesValue carries raw bytes through JSON as the
// {"__class__":"bytes","__value__":<base64>} envelope. Plain JSON strings
// are accepted on load for older blobs.
type bytesValue []byte

func (b bytesValue) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]string{
		"__class__": "bytes",
		"__value__": base64.StdEncoding.EncodeToString(b),
	})
}

func (b *bytesValue) UnmarshalJSON(data []byte) error {
	var envelope struct {
		Class string `json:"__class__"`
		Value string `json:"__value__"`
	}
	if err := json.Unmarshal(data, &envelope); err == nil && envelope.Class == "bytes" {
		decoded, err := base64.StdEncoding.DecodeString(envelope.Value)
		if err != nil {
			return fmt.Errorf("bad bytes envelope: %w", err)
		}
		*b = decoded
		return nil
	}
	var plain string
	if err := json.Unmarshal(data, &plain); err != nil {
		return fmt.Errorf("unsupported cookie encoding")
	}
	*b = []byte(plain)
	return nil
}

// settingsBlob is the persisted settings shape
type settingsBlob struct {
	UUID      string          `json:"uuid"`
	DeviceID  string          `json:"device_id"`
	AdID      string          `json:"ad_id"`
	PhoneID   string          `json:"phone_id"`
	SessionID string          `json:"session_id"`
	Cookie    bytesValue      `json:"cookie"`
	CreatedTS int64           `json:"created_ts"`
	Profile   *device.Profile `json:"device_profile,omitempty"`
}

// DumpSettings serializes the session for persistence. created_ts records
// the serialization time.
func (s *Session) DumpSettings() ([]byte, error) {
	profile := s.Profile
	blob := settingsBlob{
		UUID:      s.Identity.UUID,
		DeviceID:  s.Identity.DeviceID,
		AdID:      s.Identity.AdID,
		PhoneID:   s.Identity.PhoneID,
		SessionID: s.Identity.SessionID,
		Cookie:    bytesValue(s.Jar.Dump()),
		CreatedTS: time.Now().Unix(),
		Profile:   &profile,
	}
	data, err := json.Marshal(blob)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize settings: %w", err)
	}
	return data, nil
}

// LoadSettings restores a session from a settings blob. A blob whose
// authentication cookies have already expired is rejected here, before any
// network call, with a cookie_expired error.
func LoadSettings(data []byte) (*Session, error) {
	var blob settingsBlob
	if err := json.Unmarshal(data, &blob); err != nil {
		return nil, fmt.Errorf("failed to parse settings: %w", err)
	}

	jar := cookiejar.New()
	if len(blob.Cookie) > 0 {
		var err error
		jar, err = cookiejar.Load(blob.Cookie)
		if err != nil {
			return nil, fmt.Errorf("failed to restore cookie jar: %w", err)
		}
	}

	if expires, ok := jar.AuthExpires(); ok && expires.Before(time.Now()) {
		return nil, errors.New(errors.KindCookieExpired,
			fmt.Sprintf("authentication cookies expired at %s", expires.Format(time.RFC3339)), 0)
	}

	profile := device.DefaultProfile()
	if blob.Profile != nil {
		profile = *blob.Profile
	}

	return &Session{
		Identity: device.Identity{
			UUID:      blob.UUID,
			DeviceID:  blob.DeviceID,
			AdID:      blob.AdID,
			PhoneID:   blob.PhoneID,
			SessionID: blob.SessionID,
		},
		Profile:       profile,
		SigningKey:    []byte(device.SigKey),
		SigKeyVersion: device.SigKeyVersion,
		Capabilities:  device.Capabilities,
		Jar:           jar,
		CreatedAt:     time.Unix(blob.CreatedTS, 0),
	}, nil
}
