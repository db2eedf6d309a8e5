// Package cookiejar implements the serializable cookie store owned by a
// session. The jar is not safe for concurrent use; a session is
// single-goroutine by contract.
package cookiejar

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultDomain is the vendor API host cookies resolve against when no
// domain is given.
const DefaultDomain = "i.instagram.com"

// authCookieNames are the cookies whose expiry bounds the session's
// authentication lifetime.
var authCookieNames = []string{"sessionid", "ds_user_id", "ds_user"}

// Cookie is one stored cookie. A nil Expires means the cookie never expires.
type Cookie struct {
	Name    string     `json:"name"`
	Value   string     `json:"value"`
	Domain  string     `json:"domain"`
	Path    string     `json:"path"`
	Expires *time.Time `json:"expires,omitempty"`
}

// Jar is an ordered, serializable cookie store
type Jar struct {
	cookies []Cookie
}

// New creates an empty jar
func New() *Jar {
	return &Jar{}
}

// Load deserializes a jar previously produced by Dump. The format round
// trips byte-exactly.
func Load(data []byte) (*Jar, error) {
	var cookies []Cookie
	if err := json.Unmarshal(data, &cookies); err != nil {
		return nil, fmt.Errorf("failed to parse cookie jar: %w", err)
	}
	return &Jar{cookies: cookies}, nil
}

// Dump serializes the jar
func (j *Jar) Dump() []byte {
	if j.cookies == nil {
		j.cookies = []Cookie{}
	}
	data, _ := json.Marshal(j.cookies)
	return data
}

// Set inserts or replaces a cookie, keyed by (name, domain)
func (j *Jar) Set(c Cookie) {
	for i := range j.cookies {
		if j.cookies[i].Name == c.Name && j.cookies[i].Domain == c.Domain {
			j.cookies[i] = c
			return
		}
	}
	j.cookies = append(j.cookies, c)
}

// Get resolves the freshest non-expired cookie value for name. An empty
// domain defaults to the vendor API host. A cookie matches when its domain
// equals the target host or when its leading-dot-stripped domain is a suffix
// of the target host. Among multiple matches the one with the latest expiry
// wins; a cookie without expiry effectively never expires and wins over any
// dated one.
func (j *Jar) Get(name, domain string) (string, bool) {
	if domain == "" {
		domain = DefaultDomain
	}
	now := time.Now()

	var best *Cookie
	for i := range j.cookies {
		c := &j.cookies[i]
		if c.Name != name || !domainMatches(c.Domain, domain) {
			continue
		}
		if c.Expires != nil && c.Expires.Before(now) {
			continue
		}
		if best == nil || laterExpiry(c, best) {
			best = c
		}
	}
	if best == nil {
		return "", false
	}
	return best.Value, true
}

// AuthExpires returns the earliest expiry across the authentication cookies.
// Cookies without an expiry are ignored. The second return is false when no
// dated authentication cookie exists.
func (j *Jar) AuthExpires() (time.Time, bool) {
	var min time.Time
	found := false
	for i := range j.cookies {
		c := &j.cookies[i]
		if c.Expires == nil || !isAuthCookie(c.Name) {
			continue
		}
		if !found || c.Expires.Before(min) {
			min = *c.Expires
			found = true
		}
	}
	return min, found
}

// All returns a copy of every stored cookie in insertion order
func (j *Jar) All() []Cookie {
	out := make([]Cookie, len(j.cookies))
	copy(out, j.cookies)
	return out
}

// SetCookies implements http.CookieJar so responses mutate the jar via
// Set-Cookie.
func (j *Jar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	for _, hc := range cookies {
		domain := hc.Domain
		if domain == "" {
			domain = u.Hostname()
		}
		c := Cookie{
			Name:   hc.Name,
			Value:  hc.Value,
			Domain: domain,
			Path:   hc.Path,
		}
		if !hc.Expires.IsZero() {
			expires := hc.Expires.UTC()
			c.Expires = &expires
		} else if hc.MaxAge > 0 {
			expires := time.Now().Add(time.Duration(hc.MaxAge) * time.Second).UTC()
			c.Expires = &expires
		}
		j.Set(c)
	}
}

// Cookies implements http.CookieJar
func (j *Jar) Cookies(u *url.URL) []*http.Cookie {
	host := u.Hostname()
	now := time.Now()
	var out []*http.Cookie
	for i := range j.cookies {
		c := &j.cookies[i]
		if !domainMatches(c.Domain, host) {
			continue
		}
		if c.Expires != nil && c.Expires.Before(now) {
			continue
		}
		out = append(out, &http.Cookie{Name: c.Name, Value: c.Value})
	}
	return out
}

func isAuthCookie(name string) bool {
	for _, n := range authCookieNames {
		if name == n {
			return true
		}
	}
	return false
}

func domainMatches(cookieDomain, host string) bool {
	if cookieDomain == host {
		return true
	}
	return strings.HasSuffix(host, strings.TrimPrefix(cookieDomain, "."))
}

// laterExpiry reports whether a should be preferred over b: an absent expiry
// counts as infinitely far in the future.
func laterExpiry(a, b *Cookie) bool {
	if a.Expires == nil {
		return true
	}
	if b.Expires == nil {
		return false
	}
	return a.Expires.After(*b.Expires)
}
