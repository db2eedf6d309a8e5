package session

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"igclient/pkg/cookiejar"
	"igclient/pkg/errors"
)

func TestNewSessionDeterministicFromSeed(t *testing.T) {
	a := New("seed", "user")
	b := New("seed", "user")

	assert.Equal(t, a.Identity.UUID, b.Identity.UUID)
	assert.Equal(t, a.Identity.DeviceID, b.Identity.DeviceID)
	assert.Equal(t, a.Identity.PhoneID, b.Identity.PhoneID)
	assert.NotEmpty(t, a.SigningKey)
	assert.Equal(t, "4", a.SigKeyVersion)
}

func TestSettingsRoundTrip(t *testing.T) {
	sess := New("seed", "user")
	expiry := time.Now().Add(48 * time.Hour).UTC()
	sess.Jar.Set(cookiejar.Cookie{
		Name: "sessionid", Value: "s3cret", Domain: ".instagram.com", Path: "/",
		Expires: &expiry,
	})
	sess.Jar.Set(cookiejar.Cookie{Name: "ds_user_id", Value: "42", Domain: ".instagram.com"})

	blob, err := sess.DumpSettings()
	require.NoError(t, err)

	restored, err := LoadSettings(blob)
	require.NoError(t, err)

	assert.Equal(t, sess.Identity, restored.Identity)
	assert.Equal(t, sess.Profile, restored.Profile)
	assert.Equal(t, sess.Jar.All(), restored.Jar.All())
	assert.Equal(t, sess.UserAgent(), restored.UserAgent())
}

func TestSettingsBlobShape(t *testing.T) {
	sess := New("seed", "user")
	blob, err := sess.DumpSettings()
	require.NoError(t, err)

	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(blob, &raw))
	for _, key := range []string{"uuid", "device_id", "ad_id", "phone_id", "session_id", "cookie", "created_ts"} {
		assert.Contains(t, raw, key)
	}

	// Cookie bytes travel in the bytes envelope
	var envelope struct {
		Class string `json:"__class__"`
		Value string `json:"__value__"`
	}
	require.NoError(t, json.Unmarshal(raw["cookie"], &envelope))
	assert.Equal(t, "bytes", envelope.Class)
	assert.NotEmpty(t, envelope.Value)
}

func TestLoadSettingsAcceptsPlainStringCookie(t *testing.T) {
	blob := []byte(`{"uuid":"u","device_id":"android-0011223344556677","ad_id":"a",` +
		`"phone_id":"p","session_id":"s","cookie":"[]","created_ts":1700000000}`)
	sess, err := LoadSettings(blob)
	require.NoError(t, err)
	assert.Equal(t, "android-0011223344556677", sess.Identity.DeviceID)
	assert.Empty(t, sess.Jar.All())
}

func TestLoadSettingsRejectsExpiredCookies(t *testing.T) {
	sess := New("seed", "user")
	expired := time.Now().Add(-time.Hour).UTC()
	sess.Jar.Set(cookiejar.Cookie{
		Name: "sessionid", Value: "old", Domain: ".instagram.com",
		Expires: &expired,
	})

	blob, err := sess.DumpSettings()
	require.NoError(t, err)

	_, err = LoadSettings(blob)
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindCookieExpired))
}

func TestLoadSettingsRejectsGarbage(t *testing.T) {
	_, err := LoadSettings([]byte("not json"))
	assert.Error(t, err)
}

func TestFileStore(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	assert.False(t, store.Exists("alice"))
	_, err = store.Load("alice")
	assert.ErrorIs(t, err, ErrSettingsNotFound)

	require.NoError(t, store.Save("alice", []byte(`{"uuid":"u"}`)))
	assert.True(t, store.Exists("alice"))

	data, err := store.Load("alice")
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"uuid":"u"}`), data)

	require.NoError(t, store.Delete("alice"))
	assert.False(t, store.Exists("alice"))
	assert.ErrorIs(t, store.Delete("alice"), ErrSettingsNotFound)
}

func TestFileStoreRejectsEmptyUsername(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	assert.ErrorIs(t, store.Save("", nil), ErrInvalidUsername)
}

func TestEncryptedFileStoreRoundTrip(t *testing.T) {
	path := t.TempDir() + "/settings.enc"
	store, err := NewEncryptedFileStore(path, "passphrase")
	require.NoError(t, err)

	require.NoError(t, store.Save("bob", []byte("payload")))
	data, err := store.Load("bob")
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), data)

	// A wrong passphrase cannot decrypt
	other, err := NewEncryptedFileStore(path, "wrong")
	require.NoError(t, err)
	_, err = other.Load("bob")
	assert.Error(t, err)
}

func TestManagerFallbackChain(t *testing.T) {
	primary, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	secondary, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	manager := NewManagerWithStores(primary, secondary)
	require.NoError(t, manager.Save("carol", []byte("blob")))

	// Both stores received the save; loads prefer the first
	assert.True(t, primary.Exists("carol"))
	assert.True(t, secondary.Exists("carol"))

	require.NoError(t, primary.Delete("carol"))
	data, err := manager.Load("carol")
	require.NoError(t, err)
	assert.Equal(t, []byte("blob"), data)

	require.NoError(t, manager.Delete("carol"))
	assert.False(t, manager.Exists("carol"))
}
