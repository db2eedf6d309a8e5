// Package signature implements the request-body signing scheme the vendor's
// mobile app applies to every authenticated POST, plus the typing-breadcrumb
// token required by comment endpoints.
package signature

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/url"
	"time"
)

// Sign returns the hex HMAC-SHA256 of body under key
func Sign(key, body []byte) string {
	mac := hmac.New(sha256.New, key)
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// SignedForm wraps a canonical JSON body in the signed wire envelope:
// exactly ig_sig_key_version and signed_body, nothing else.
func SignedForm(key []byte, keyVersion string, params *Params) (url.Values, error) {
	body, err := params.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("failed to serialize signed body: %w", err)
	}
	form := url.Values{}
	form.Set("ig_sig_key_version", keyVersion)
	form.Set("signed_body", Sign(key, body)+"."+string(body))
	return form, nil
}

// Params is an insertion-ordered parameter set. Its JSON form uses minimal
// separators and preserves the order keys were set in, which the signature
// covers.
type Params struct {
	keys   []string
	values map[string]interface{}
}

// NewParams creates an empty ordered parameter set
func NewParams() *Params {
	return &Params{values: make(map[string]interface{})}
}

// Set adds or replaces a key. A replaced key keeps its original position.
func (p *Params) Set(key string, value interface{}) *Params {
	if _, ok := p.values[key]; !ok {
		p.keys = append(p.keys, key)
	}
	p.values[key] = value
	return p
}

// Get returns the value for key
func (p *Params) Get(key string) (interface{}, bool) {
	v, ok := p.values[key]
	return v, ok
}

// Len returns the number of keys
func (p *Params) Len() int {
	return len(p.keys)
}

// Keys returns the keys in insertion order
func (p *Params) Keys() []string {
	out := make([]string, len(p.keys))
	copy(out, p.keys)
	return out
}

// Form flattens the parameters into url.Values for unsigned posts. Non-string
// values are JSON-encoded.
func (p *Params) Form() url.Values {
	form := url.Values{}
	for _, k := range p.keys {
		switch v := p.values[k].(type) {
		case string:
			form.Set(k, v)
		default:
			encoded, _ := json.Marshal(v)
			form.Set(k, string(encoded))
		}
	}
	return form
}

// MarshalJSON produces the canonical compact JSON form
func (p *Params) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range p.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		keyJSON, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(keyJSON)
		buf.WriteByte(':')
		valJSON, err := json.Marshal(p.values[k])
		if err != nil {
			return nil, err
		}
		buf.Write(valJSON)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// breadcrumbKey is the fixed HMAC key the app uses for the typing token
const breadcrumbKey = "iN4$aGr0m"

// Breadcrumb computes the user_breadcrumb obfuscation token for a comment of
// the given byte size. The token mimics typing duration and keystroke count;
// the vendor validates its HMAC.
func Breadcrumb(size int) string {
	elapsed := randBetween(500, 1500) + size*randBetween(500, 1500)
	keystrokes := size / randBetween(3, 5)
	if keystrokes < 1 {
		keystrokes = 1
	}
	now := time.Now().UnixMilli()

	payload := fmt.Sprintf("%d %d %d %d", size, elapsed, keystrokes, now)
	mac := hmac.New(sha256.New, []byte(breadcrumbKey))
	mac.Write([]byte(payload))

	return base64.StdEncoding.EncodeToString(mac.Sum(nil)) + "\n" +
		base64.StdEncoding.EncodeToString([]byte(payload)) + "\n"
}

func randBetween(min, max int) int {
	return min + rand.Intn(max-min+1)
}
