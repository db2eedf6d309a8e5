package cookiejar

import (
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func expiresAt(t time.Time) *time.Time {
	u := t.UTC()
	return &u
}

func TestDumpLoadRoundTripsByteExactly(t *testing.T) {
	jar := New()
	jar.Set(Cookie{Name: "csrftoken", Value: "abc", Domain: ".instagram.com", Path: "/"})
	jar.Set(Cookie{
		Name: "sessionid", Value: "s3cret", Domain: ".instagram.com", Path: "/",
		Expires: expiresAt(time.Now().Add(24 * time.Hour)),
	})

	dumped := jar.Dump()
	restored, err := Load(dumped)
	require.NoError(t, err)
	assert.Equal(t, dumped, restored.Dump())
	assert.Equal(t, jar.All(), restored.All())
}

func TestLoadRejectsGarbage(t *testing.T) {
	_, err := Load([]byte("not json"))
	assert.Error(t, err)
}

func TestGetDefaultsToAPIHost(t *testing.T) {
	jar := New()
	jar.Set(Cookie{Name: "csrftoken", Value: "tok", Domain: ".instagram.com"})

	v, ok := jar.Get("csrftoken", "")
	require.True(t, ok)
	assert.Equal(t, "tok", v)
}

func TestGetDomainMatching(t *testing.T) {
	jar := New()
	jar.Set(Cookie{Name: "c", Value: "exact", Domain: "i.instagram.com"})
	jar.Set(Cookie{Name: "d", Value: "suffix", Domain: ".instagram.com"})
	jar.Set(Cookie{Name: "e", Value: "other", Domain: "example.com"})

	v, ok := jar.Get("c", "i.instagram.com")
	require.True(t, ok)
	assert.Equal(t, "exact", v)

	v, ok = jar.Get("d", "i.instagram.com")
	require.True(t, ok)
	assert.Equal(t, "suffix", v)

	_, ok = jar.Get("e", "i.instagram.com")
	assert.False(t, ok)
}

func TestGetSkipsExpired(t *testing.T) {
	jar := New()
	jar.Set(Cookie{
		Name: "sessionid", Value: "old", Domain: ".instagram.com",
		Expires: expiresAt(time.Now().Add(-time.Hour)),
	})

	_, ok := jar.Get("sessionid", "")
	assert.False(t, ok)
}

func TestGetPrefersLatestExpiry(t *testing.T) {
	jar := New()
	jar.Set(Cookie{
		Name: "tok", Value: "sooner", Domain: "i.instagram.com",
		Expires: expiresAt(time.Now().Add(time.Hour)),
	})
	jar.Set(Cookie{
		Name: "tok", Value: "later", Domain: ".instagram.com",
		Expires: expiresAt(time.Now().Add(48 * time.Hour)),
	})

	v, ok := jar.Get("tok", "")
	require.True(t, ok)
	assert.Equal(t, "later", v)

	// A cookie without expiry wins over any dated one
	jar.Set(Cookie{Name: "tok", Value: "forever", Domain: "instagram.com"})
	v, ok = jar.Get("tok", "")
	require.True(t, ok)
	assert.Equal(t, "forever", v)
}

func TestAuthExpires(t *testing.T) {
	jar := New()
	_, ok := jar.AuthExpires()
	assert.False(t, ok)

	// Non-auth cookies are ignored
	jar.Set(Cookie{Name: "csrftoken", Value: "x", Domain: ".instagram.com",
		Expires: expiresAt(time.Now().Add(time.Minute))})
	_, ok = jar.AuthExpires()
	assert.False(t, ok)

	soonest := time.Now().Add(time.Hour).UTC()
	jar.Set(Cookie{Name: "sessionid", Value: "s", Domain: ".instagram.com",
		Expires: expiresAt(time.Now().Add(72 * time.Hour))})
	jar.Set(Cookie{Name: "ds_user_id", Value: "123", Domain: ".instagram.com",
		Expires: &soonest})
	// No expiry means the cookie never bounds the session lifetime
	jar.Set(Cookie{Name: "ds_user", Value: "name", Domain: ".instagram.com"})

	expires, ok := jar.AuthExpires()
	require.True(t, ok)
	assert.Equal(t, soonest, expires)
}

func TestHTTPCookieJarInterface(t *testing.T) {
	jar := New()
	u, _ := url.Parse("https://i.instagram.com/api/v1/si/fetch_headers/")

	expiry := time.Now().Add(time.Hour).UTC().Truncate(time.Second)
	jar.SetCookies(u, []*http.Cookie{
		{Name: "csrftoken", Value: "tok", Domain: ".instagram.com", Path: "/", Expires: expiry},
		{Name: "mid", Value: "m"},
	})

	v, ok := jar.Get("csrftoken", "")
	require.True(t, ok)
	assert.Equal(t, "tok", v)

	// Domainless cookies inherit the request host
	v, ok = jar.Get("mid", "i.instagram.com")
	require.True(t, ok)
	assert.Equal(t, "m", v)

	sent := jar.Cookies(u)
	names := make([]string, 0, len(sent))
	for _, c := range sent {
		names = append(names, c.Name)
	}
	assert.ElementsMatch(t, []string{"csrftoken", "mid"}, names)
}
