package transport

import (
	"context"
	stderrors "errors"
	"net/url"
	"regexp"

	"igclient/pkg/device"
	"igclient/pkg/errors"
	"igclient/pkg/signature"
)

// uuidRe validates the uuid half of a rank token
var uuidRe = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)

// Login runs the vendor's fixed two-call login sequence: a prelogin POST
// that seeds the CSRF cookie, then the signed credentials POST. On success
// the OnLogin callback (if set) receives the session for persistence.
func (c *Client) Login(ctx context.Context, username, password string) error {
	query := url.Values{}
	query.Set("challenge_type", "signup")
	query.Set("guid", device.GenerateUUID(true, ""))
	if _, err := c.Call(ctx, Request{
		Endpoint:  "si/fetch_headers/",
		EmptyPost: true,
		Query:     query,
	}); err != nil {
		return err
	}

	if _, ok := c.sess.Jar.Get("csrftoken", ""); !ok {
		return &errors.Error{
			Kind:    errors.KindGeneric,
			Message: "Unable to get csrf from prelogin.",
		}
	}

	params := signature.NewParams().
		Set("device_id", c.sess.Identity.DeviceID).
		Set("guid", c.sess.Identity.UUID).
		Set("adid", c.sess.Identity.AdID).
		Set("phone_id", c.sess.Identity.PhoneID).
		Set("_csrftoken", c.CSRFToken()).
		Set("username", username).
		Set("password", password).
		Set("login_attempt_count", "0")

	body, err := c.Call(ctx, Request{Endpoint: "accounts/login/", Params: params})
	if err != nil {
		var apiErr *errors.Error
		if stderrors.As(err, &apiErr) && apiErr.Code == 400 && apiErr.Kind == errors.KindGeneric {
			apiErr.Kind = errors.KindBadCredentials
		}
		return err
	}

	loggedIn, _ := body["logged_in_user"].(map[string]interface{})
	if loggedIn == nil || loggedIn["pk"] == nil {
		return &errors.Error{
			Kind:    errors.KindBadCredentials,
			Message: "login response carries no user",
		}
	}

	c.logger.InfoWithFields("logged in", map[string]interface{}{
		"username": username,
		"user_id":  c.AuthenticatedUserID(),
	})

	if c.OnLogin != nil {
		c.OnLogin(c.sess)
	}
	return nil
}

// CSRFToken returns the current csrftoken cookie value
func (c *Client) CSRFToken() string {
	v, _ := c.sess.Jar.Get("csrftoken", "")
	return v
}

// AuthenticatedUserID returns the logged-in user's numeric id, read from the
// ds_user_id cookie.
func (c *Client) AuthenticatedUserID() string {
	v, _ := c.sess.Jar.Get("ds_user_id", "")
	return v
}

// AuthenticatedUserName returns the logged-in user's name, read from the
// ds_user cookie.
func (c *Client) AuthenticatedUserName() string {
	v, _ := c.sess.Jar.Get("ds_user", "")
	return v
}

// RankToken returns the per-feed pagination token "<user_id>_<uuid>", or ""
// when unauthenticated. The token must remain stable across pages of one
// logical feed.
func (c *Client) RankToken() string {
	uid := c.AuthenticatedUserID()
	if uid == "" {
		return ""
	}
	return uid + "_" + c.sess.Identity.UUID
}

// ValidRankToken reports whether s has the "<user_id>_<uuid>" shape
func ValidRankToken(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] == '_' {
			return i > 0 && allDigits(s[:i]) && uuidRe.MatchString(s[i+1:])
		}
	}
	return false
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// AuthenticatedParams returns the parameter set merged into any POST body
// that requires authentication.
func (c *Client) AuthenticatedParams() *signature.Params {
	return signature.NewParams().
		Set("_csrftoken", c.CSRFToken()).
		Set("_uuid", c.sess.Identity.UUID).
		Set("_uid", c.AuthenticatedUserID())
}
